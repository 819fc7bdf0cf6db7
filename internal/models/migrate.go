package models

import "gorm.io/gorm"

// All lists every persisted model in dependency order.
func All() []interface{} {
	return []interface{}{
		&Workspace{},
		&Board{},
		&List{},
		&Card{},
		&AutomationRule{},
		&AutomationRuleFilter{},
		&AutomationRuleAction{},
		&AutomationRun{},
	}
}

// Migrate runs AutoMigrate and, on PostgreSQL, the JSONB indexes the rule
// matcher relies on.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(All()...); err != nil {
		return err
	}
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS idx_automation_rule_condition ON automation_rule USING GIN (condition)",
		"CREATE INDEX IF NOT EXISTS idx_automation_rule_ws_created ON automation_rule(workspace_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_cards_list_position ON cards(list_id, position)",
	}
	for _, s := range stmts {
		if err := db.Exec(s).Error; err != nil {
			return err
		}
	}
	return nil
}
