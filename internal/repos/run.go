package repos

import (
	"context"

	"taskboard/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RunFilter selects automation_run rows. WorkspaceID is always required by
// callers; the rest narrow the audit view.
type RunFilter struct {
	WorkspaceID string
	RuleID      string
	CardID      string
	Status      string
	Event       string
}

func (f RunFilter) eq() []Field {
	return presentFields(
		Field{"workspace_id", f.WorkspaceID},
		Field{"rule_id", f.RuleID},
		Field{"card_id", f.CardID},
		Field{"status", f.Status},
		Field{"event", f.Event},
	)
}

func (f RunFilter) empty() bool { return len(f.eq()) == 0 }

func (f RunFilter) scope(db *gorm.DB) (*gorm.DB, error) {
	for _, fld := range f.eq() {
		db = db.Where(fld.Column+" = ?", fld.Value)
	}
	return db, nil
}

type RunRepo interface {
	Create(ctx context.Context, tx *gorm.DB, run *models.AutomationRun) (*models.AutomationRun, error)
	GetList(ctx context.Context, tx *gorm.DB, f RunFilter, p Paginate) (Page[models.AutomationRun], error)
}

type runRepo struct {
	crud[models.AutomationRun]
}

func NewRunRepo(db *gorm.DB, logger *logrus.Logger) RunRepo {
	return &runRepo{crud: newCrud[models.AutomationRun](db, logger, "automation_run")}
}

func (r *runRepo) Create(ctx context.Context, tx *gorm.DB, run *models.AutomationRun) (*models.AutomationRun, error) {
	return r.create(ctx, tx, run)
}

func (r *runRepo) GetList(ctx context.Context, tx *gorm.DB, f RunFilter, p Paginate) (Page[models.AutomationRun], error) {
	return r.list(ctx, tx, f, p)
}
