package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Workspace 租户边界，规则与看板都归属于某个工作区
type Workspace struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (w *Workspace) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	return nil
}

type Board struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	WorkspaceID string    `gorm:"size:64;not null;index" json:"workspace_id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Workspace *Workspace `gorm:"foreignKey:WorkspaceID;constraint:OnDelete:CASCADE" json:"-"`
}

func (b *Board) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// List 看板中的列
type List struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	BoardID   string    `gorm:"size:36;not null;index" json:"board_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Position  int       `gorm:"not null;default:0" json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Board *Board `gorm:"foreignKey:BoardID;constraint:OnDelete:CASCADE" json:"-"`
}

func (l *List) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

// Card 卡片；Position 在列内从 0 开始
type Card struct {
	ID          string                      `gorm:"primaryKey;size:36" json:"id"`
	WorkspaceID string                      `gorm:"size:64;not null;index" json:"workspace_id"`
	BoardID     string                      `gorm:"size:36;not null;index" json:"board_id"`
	ListID      string                      `gorm:"size:36;not null;index" json:"list_id"`
	Title       string                      `gorm:"size:512;not null" json:"title"`
	Description string                      `gorm:"type:text" json:"description"`
	Position    int                         `gorm:"not null;default:0" json:"position"`
	Labels      datatypes.JSONSlice[string] `json:"labels"`
	Archived    bool                        `gorm:"not null;default:false;index" json:"archived"`
	CreatedBy   string                      `gorm:"size:64" json:"created_by"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`

	List *List `gorm:"foreignKey:ListID;constraint:OnDelete:CASCADE" json:"-"`
}

func (c *Card) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// HasLabel reports whether the card carries label.
func (c *Card) HasLabel(label string) bool {
	for _, l := range c.Labels {
		if l == label {
			return true
		}
	}
	return false
}
