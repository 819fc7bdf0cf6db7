package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AutomationRule 自动化规则
type AutomationRule struct {
	ID          string            `gorm:"primaryKey;size:36" json:"id"`
	WorkspaceID string            `gorm:"size:64;not null;index" json:"workspace_id"`
	GroupType   string            `gorm:"size:32;not null;index" json:"group_type"`
	Type        string            `gorm:"size:64;not null;index" json:"type"`
	Condition   datatypes.JSONMap `json:"condition"`
	CreatedBy   string            `gorm:"size:64" json:"created_by,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`

	Filters []AutomationRuleFilter `gorm:"foreignKey:RuleID;constraint:OnDelete:CASCADE" json:"-"`
	Actions []AutomationRuleAction `gorm:"foreignKey:RuleID;constraint:OnDelete:CASCADE" json:"-"`
}

func (AutomationRule) TableName() string { return "automation_rule" }

func (r *AutomationRule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// AutomationRuleFilter 规则的附加过滤条件
type AutomationRuleFilter struct {
	ID        string            `gorm:"primaryKey;size:36" json:"id"`
	RuleID    string            `gorm:"size:36;not null;index" json:"rule_id"`
	GroupType string            `gorm:"size:32" json:"group_type"`
	Type      string            `gorm:"size:64" json:"type"`
	Condition datatypes.JSONMap `json:"condition"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (AutomationRuleFilter) TableName() string { return "automation_rule_filter" }

func (f *AutomationRuleFilter) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// AutomationRuleAction 规则命中后执行的动作
type AutomationRuleAction struct {
	ID        string            `gorm:"primaryKey;size:36" json:"id"`
	RuleID    string            `gorm:"size:36;not null;index" json:"rule_id"`
	GroupType string            `gorm:"size:32" json:"group_type"`
	Type      string            `gorm:"size:64" json:"type"`
	Condition datatypes.JSONMap `json:"condition"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (AutomationRuleAction) TableName() string { return "automation_rule_action" }

func (a *AutomationRuleAction) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// JSONCondition converts a flat condition into the stored JSON column value.
func JSONCondition(in map[string]string) datatypes.JSONMap {
	out := make(datatypes.JSONMap, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// RuleDetail is a rule together with its resolved action rows.
type RuleDetail struct {
	AutomationRule
	Action []AutomationRuleAction `json:"action"`
}

// AutomationRun 执行记录用于审计
type AutomationRun struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RuleID      string    `gorm:"size:36;index" json:"rule_id"`
	WorkspaceID string    `gorm:"size:64;index" json:"workspace_id"`
	CardID      string    `gorm:"size:36;index" json:"card_id"`
	Event       string    `gorm:"size:64" json:"event"`
	Status      string    `gorm:"size:16;index" json:"status"` // success, skipped, failed
	Actions     int       `json:"actions"`
	Message     string    `gorm:"type:text" json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	RunSuccess = "success"
	RunSkipped = "skipped"
	RunFailed  = "failed"
)
