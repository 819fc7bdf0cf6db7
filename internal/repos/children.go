package repos

import (
	"context"

	"taskboard/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ChildUpdate is the partial update for filter and action rows.
type ChildUpdate struct {
	GroupType *string
	Type      *string
	Condition *map[string]string
}

func (u ChildUpdate) columns() map[string]interface{} {
	return RuleUpdate(u).columns()
}

type FilterRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *models.AutomationRuleFilter) (*models.AutomationRuleFilter, error)
	BulkCreate(ctx context.Context, tx *gorm.DB, rows []*models.AutomationRuleFilter) ([]*models.AutomationRuleFilter, error)
	Get(ctx context.Context, tx *gorm.DB, f ChildFilter) (*models.AutomationRuleFilter, error)
	GetList(ctx context.Context, tx *gorm.DB, f ChildFilter, p Paginate) (Page[models.AutomationRuleFilter], error)
	GetByRuleID(ctx context.Context, tx *gorm.DB, ruleID string) ([]models.AutomationRuleFilter, error)
	GetByRuleIDs(ctx context.Context, tx *gorm.DB, ruleIDs []string) (map[string][]models.AutomationRuleFilter, error)
	Update(ctx context.Context, tx *gorm.DB, f ChildFilter, patch ChildUpdate) error
	Delete(ctx context.Context, tx *gorm.DB, f ChildFilter) (int64, error)
}

type ActionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *models.AutomationRuleAction) (*models.AutomationRuleAction, error)
	BulkCreate(ctx context.Context, tx *gorm.DB, rows []*models.AutomationRuleAction) ([]*models.AutomationRuleAction, error)
	Get(ctx context.Context, tx *gorm.DB, f ChildFilter) (*models.AutomationRuleAction, error)
	GetList(ctx context.Context, tx *gorm.DB, f ChildFilter, p Paginate) (Page[models.AutomationRuleAction], error)
	GetByRuleID(ctx context.Context, tx *gorm.DB, ruleID string) ([]models.AutomationRuleAction, error)
	Update(ctx context.Context, tx *gorm.DB, f ChildFilter, patch ChildUpdate) error
	Delete(ctx context.Context, tx *gorm.DB, f ChildFilter) (int64, error)
}

// childRepo backs both FilterRepo and ActionRepo; the two tables share a shape.
type childRepo[T any] struct {
	crud[T]
}

func NewFilterRepo(db *gorm.DB, logger *logrus.Logger) FilterRepo {
	return &filterRepo{childRepo[models.AutomationRuleFilter]{newCrud[models.AutomationRuleFilter](db, logger, "automation_rule_filter")}}
}

func NewActionRepo(db *gorm.DB, logger *logrus.Logger) ActionRepo {
	return &childRepo[models.AutomationRuleAction]{newCrud[models.AutomationRuleAction](db, logger, "automation_rule_action")}
}

func (r *childRepo[T]) Create(ctx context.Context, tx *gorm.DB, row *T) (*T, error) {
	return r.create(ctx, tx, row)
}

func (r *childRepo[T]) BulkCreate(ctx context.Context, tx *gorm.DB, rows []*T) ([]*T, error) {
	return r.bulkCreate(ctx, tx, rows)
}

func (r *childRepo[T]) Get(ctx context.Context, tx *gorm.DB, f ChildFilter) (*T, error) {
	return r.get(ctx, tx, f)
}

func (r *childRepo[T]) GetList(ctx context.Context, tx *gorm.DB, f ChildFilter, p Paginate) (Page[T], error) {
	return r.list(ctx, tx, f, p)
}

func (r *childRepo[T]) GetByRuleID(ctx context.Context, tx *gorm.DB, ruleID string) ([]T, error) {
	out := []T{}
	if ruleID == "" {
		return out, nil
	}
	if err := r.conn(ctx, tx).
		Where("rule_id = ?", ruleID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, r.internal("get by rule", err)
	}
	return out, nil
}

func (r *childRepo[T]) Update(ctx context.Context, tx *gorm.DB, f ChildFilter, patch ChildUpdate) error {
	return r.update(ctx, tx, f, patch.columns())
}

func (r *childRepo[T]) Delete(ctx context.Context, tx *gorm.DB, f ChildFilter) (int64, error) {
	return r.delete(ctx, tx, f)
}

type filterRepo struct {
	childRepo[models.AutomationRuleFilter]
}

// GetByRuleIDs loads the filters of many rules in one query, grouped by rule.
func (r *filterRepo) GetByRuleIDs(ctx context.Context, tx *gorm.DB, ruleIDs []string) (map[string][]models.AutomationRuleFilter, error) {
	out := make(map[string][]models.AutomationRuleFilter, len(ruleIDs))
	if len(ruleIDs) == 0 {
		return out, nil
	}
	var rows []models.AutomationRuleFilter
	if err := r.conn(ctx, tx).
		Where("rule_id IN ?", ruleIDs).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.internal("get by rules", err)
	}
	for _, row := range rows {
		out[row.RuleID] = append(out[row.RuleID], row)
	}
	return out, nil
}
