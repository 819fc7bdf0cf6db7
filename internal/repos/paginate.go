package repos

const (
	DefaultPageSize = 10
	MaxPageSize     = 1000
)

// Paginate is a fixed-size page window; Page starts at 1.
type Paginate struct {
	Page  int `form:"page" json:"page"`
	Limit int `form:"limit" json:"limit"`
}

// Normalize fills defaults and clamps the limit.
func (p Paginate) Normalize() Paginate {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

func (p Paginate) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// Page is one window of results plus the unpaged total.
type Page[T any] struct {
	Data     []T   `json:"data"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Pages    int   `json:"pages"`
}

func newPage[T any](data []T, total int64, p Paginate) Page[T] {
	if data == nil {
		data = []T{}
	}
	pages := int((total + int64(p.Limit) - 1) / int64(p.Limit))
	return Page[T]{Data: data, Total: total, Page: p.Page, PageSize: p.Limit, Pages: pages}
}
