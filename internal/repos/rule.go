package repos

import (
	"context"

	"taskboard/internal/apperr"
	"taskboard/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RuleUpdate is a partial update; nil fields are left untouched.
type RuleUpdate struct {
	GroupType *string
	Type      *string
	Condition *map[string]string
}

func (u RuleUpdate) columns() map[string]interface{} {
	out := map[string]interface{}{}
	if u.GroupType != nil {
		out["group_type"] = *u.GroupType
	}
	if u.Type != nil {
		out["type"] = *u.Type
	}
	if u.Condition != nil {
		out["condition"] = models.JSONCondition(*u.Condition)
	}
	return out
}

type RuleRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rule *models.AutomationRule) (*models.AutomationRule, error)
	Get(ctx context.Context, tx *gorm.DB, f RuleFilter) (*models.AutomationRule, error)
	GetList(ctx context.Context, tx *gorm.DB, f RuleFilter, p Paginate) (Page[models.AutomationRule], error)
	Update(ctx context.Context, tx *gorm.DB, f RuleFilter, patch RuleUpdate) error
	Delete(ctx context.Context, tx *gorm.DB, f RuleFilter) (int64, error)
	MatchRules(ctx context.Context, tx *gorm.DB, f RuleFilter) ([]models.RuleDetail, error)
}

type ruleRepo struct {
	crud[models.AutomationRule]
}

func NewRuleRepo(db *gorm.DB, logger *logrus.Logger) RuleRepo {
	return &ruleRepo{crud: newCrud[models.AutomationRule](db, logger, "automation_rule")}
}

func (r *ruleRepo) Create(ctx context.Context, tx *gorm.DB, rule *models.AutomationRule) (*models.AutomationRule, error) {
	return r.create(ctx, tx, rule)
}

func (r *ruleRepo) Get(ctx context.Context, tx *gorm.DB, f RuleFilter) (*models.AutomationRule, error) {
	return r.get(ctx, tx, f)
}

func (r *ruleRepo) GetList(ctx context.Context, tx *gorm.DB, f RuleFilter, p Paginate) (Page[models.AutomationRule], error) {
	return r.list(ctx, tx, f, p)
}

func (r *ruleRepo) Update(ctx context.Context, tx *gorm.DB, f RuleFilter, patch RuleUpdate) error {
	return r.update(ctx, tx, f, patch.columns())
}

// Delete removes the matching rules together with their filters and actions.
// The foreign keys cascade as well; the explicit child deletes keep stores
// without enforced constraints consistent.
func (r *ruleRepo) Delete(ctx context.Context, tx *gorm.DB, f RuleFilter) (int64, error) {
	if f.empty() {
		return 0, apperr.BadRequest("automation_rule delete requires a filter")
	}
	var deleted int64
	err := r.conn(ctx, tx).Transaction(func(txx *gorm.DB) error {
		q, err := f.scope(txx.Model(&models.AutomationRule{}))
		if err != nil {
			return err
		}
		var ids []string
		if err := q.Pluck("id", &ids).Error; err != nil {
			return r.internal("delete", err)
		}
		if len(ids) == 0 {
			return apperr.NotFound("automation_rule not found")
		}
		if err := txx.Where("rule_id IN ?", ids).Delete(&models.AutomationRuleFilter{}).Error; err != nil {
			return r.internal("delete filters", err)
		}
		if err := txx.Where("rule_id IN ?", ids).Delete(&models.AutomationRuleAction{}).Error; err != nil {
			return r.internal("delete actions", err)
		}
		res := txx.Where("id IN ?", ids).Delete(&models.AutomationRule{})
		if res.Error != nil {
			return r.internal("delete", res.Error)
		}
		deleted = res.RowsAffected
		return nil
	})
	return deleted, err
}

// MatchRules returns every rule whose stored condition shares at least one
// key/value with f.Condition (plus the comparison expansion), each with its
// action rows attached. Actions for all candidates are loaded in one query.
func (r *ruleRepo) MatchRules(ctx context.Context, tx *gorm.DB, f RuleFilter) ([]models.RuleDetail, error) {
	conn := r.conn(ctx, tx)
	q, err := f.matchScope(conn)
	if err != nil {
		return nil, err
	}
	var rules []models.AutomationRule
	if err := q.Order("created_at ASC").Find(&rules).Error; err != nil {
		return nil, r.internal("match", err)
	}
	if len(rules) == 0 {
		return []models.RuleDetail{}, nil
	}

	ids := make([]string, 0, len(rules))
	for _, rule := range rules {
		ids = append(ids, rule.ID)
	}
	var actions []models.AutomationRuleAction
	if err := r.conn(ctx, tx).
		Where("rule_id IN ?", ids).
		Order("created_at ASC").
		Find(&actions).Error; err != nil {
		return nil, r.internal("match actions", err)
	}

	byRule := make(map[string][]models.AutomationRuleAction, len(rules))
	for _, a := range actions {
		byRule[a.RuleID] = append(byRule[a.RuleID], a)
	}
	out := make([]models.RuleDetail, 0, len(rules))
	for _, rule := range rules {
		acts := byRule[rule.ID]
		if acts == nil {
			acts = []models.AutomationRuleAction{}
		}
		out = append(out, models.RuleDetail{AutomationRule: rule, Action: acts})
	}
	return out, nil
}
