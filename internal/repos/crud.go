package repos

import (
	"context"
	"errors"
	"time"

	"taskboard/internal/apperr"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// scoper is implemented by the structured filters.
type scoper interface {
	scope(db *gorm.DB) (*gorm.DB, error)
	empty() bool
}

// crud is the CRUD contract shared by the rule, filter and action tables.
type crud[T any] struct {
	db     *gorm.DB
	log    *logrus.Entry
	entity string
}

func newCrud[T any](db *gorm.DB, logger *logrus.Logger, entity string) crud[T] {
	if logger == nil {
		logger = logrus.New()
	}
	return crud[T]{db: db, log: logger.WithField("repo", entity), entity: entity}
}

func (c crud[T]) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	transaction := tx
	if transaction == nil {
		transaction = c.db
	}
	return transaction.WithContext(ctx)
}

func (c crud[T]) internal(op string, err error) error {
	c.log.Errorf("%s failed: %v", op, err)
	return apperr.Internal(c.entity+": "+op, err)
}

func (c crud[T]) create(ctx context.Context, tx *gorm.DB, row *T) (*T, error) {
	if err := c.conn(ctx, tx).Create(row).Error; err != nil {
		return nil, c.internal("create", err)
	}
	return row, nil
}

func (c crud[T]) bulkCreate(ctx context.Context, tx *gorm.DB, rows []*T) ([]*T, error) {
	if len(rows) == 0 {
		return []*T{}, nil
	}
	if err := c.conn(ctx, tx).Create(&rows).Error; err != nil {
		return nil, c.internal("bulk create", err)
	}
	return rows, nil
}

func (c crud[T]) get(ctx context.Context, tx *gorm.DB, f scoper) (*T, error) {
	q, err := f.scope(c.conn(ctx, tx))
	if err != nil {
		return nil, err
	}
	var row T
	if err := q.Order("created_at ASC").First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("%s not found", c.entity)
		}
		return nil, c.internal("get", err)
	}
	return &row, nil
}

func (c crud[T]) list(ctx context.Context, tx *gorm.DB, f scoper, p Paginate) (Page[T], error) {
	p = p.Normalize()
	q, err := f.scope(c.conn(ctx, tx).Model(new(T)))
	if err != nil {
		return Page[T]{}, err
	}
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return Page[T]{}, c.internal("count", err)
	}
	var rows []T
	if err := q.Order("created_at DESC").Offset(p.Offset()).Limit(p.Limit).Find(&rows).Error; err != nil {
		return Page[T]{}, c.internal("list", err)
	}
	return newPage(rows, total, p), nil
}

// update writes only the given columns and always refreshes updated_at.
func (c crud[T]) update(ctx context.Context, tx *gorm.DB, f scoper, updates map[string]interface{}) error {
	if f.empty() {
		return apperr.BadRequest("%s update requires a filter", c.entity)
	}
	q, err := f.scope(c.conn(ctx, tx).Model(new(T)))
	if err != nil {
		return err
	}
	updates["updated_at"] = time.Now()
	res := q.Updates(updates)
	if res.Error != nil {
		return c.internal("update", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("%s not found", c.entity)
	}
	return nil
}

func (c crud[T]) delete(ctx context.Context, tx *gorm.DB, f scoper) (int64, error) {
	if f.empty() {
		return 0, apperr.BadRequest("%s delete requires a filter", c.entity)
	}
	q, err := f.scope(c.conn(ctx, tx))
	if err != nil {
		return 0, err
	}
	res := q.Delete(new(T))
	if res.Error != nil {
		return 0, c.internal("delete", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, apperr.NotFound("%s not found", c.entity)
	}
	return res.RowsAffected, nil
}
