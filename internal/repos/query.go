package repos

import (
	"sort"

	"taskboard/internal/apperr"
	"taskboard/internal/automation"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Field is a single column = value test used by the Or / Not groups.
type Field struct {
	Column string
	Value  interface{}
}

// RuleFilter selects automation_rule rows. Plain fields are AND'ed when set,
// Or is AND'ed on as one OR group, each Not entry adds a negated equality and
// every Condition key adds condition->>'key' = value.
type RuleFilter struct {
	ID          string
	WorkspaceID string
	GroupType   string
	Type        string
	CreatedBy   string
	Or          []Field
	Not         []Field
	Condition   map[string]string
}

// ChildFilter selects automation_rule_filter and automation_rule_action rows.
type ChildFilter struct {
	ID        string
	RuleID    string
	GroupType string
	Type      string
	Or        []Field
	Not       []Field
	Condition map[string]string
}

var ruleColumns = map[string]struct{}{
	"id": {}, "workspace_id": {}, "group_type": {}, "type": {}, "created_by": {},
}

var childColumns = map[string]struct{}{
	"id": {}, "rule_id": {}, "group_type": {}, "type": {},
}

func (f RuleFilter) eq() []Field {
	return presentFields(
		Field{"id", f.ID},
		Field{"workspace_id", f.WorkspaceID},
		Field{"group_type", f.GroupType},
		Field{"type", f.Type},
		Field{"created_by", f.CreatedBy},
	)
}

func (f RuleFilter) empty() bool {
	return len(f.eq()) == 0 && len(f.Or) == 0 && len(f.Not) == 0 && len(f.Condition) == 0
}

func (f ChildFilter) eq() []Field {
	return presentFields(
		Field{"id", f.ID},
		Field{"rule_id", f.RuleID},
		Field{"group_type", f.GroupType},
		Field{"type", f.Type},
	)
}

func (f ChildFilter) empty() bool {
	return len(f.eq()) == 0 && len(f.Or) == 0 && len(f.Not) == 0 && len(f.Condition) == 0
}

func presentFields(fields ...Field) []Field {
	out := fields[:0]
	for _, f := range fields {
		if s, ok := f.Value.(string); ok && s == "" {
			continue
		}
		out = append(out, f)
	}
	return out
}

// whereClauses builds the conjunction for eq / or / not in a fixed order so the
// same filter always yields the same SQL.
func whereClauses(allowed map[string]struct{}, eq, or, not []Field) ([]clause.Expression, error) {
	var exprs []clause.Expression
	for _, f := range eq {
		exprs = append(exprs, clause.Eq{Column: clause.Column{Name: f.Column}, Value: f.Value})
	}
	if len(or) > 0 {
		group := make([]clause.Expression, 0, len(or))
		for _, f := range or {
			if _, ok := allowed[f.Column]; !ok {
				return nil, apperr.BadRequest("unknown filter column: %s", f.Column)
			}
			group = append(group, clause.Eq{Column: clause.Column{Name: f.Column}, Value: f.Value})
		}
		exprs = append(exprs, anyOf(group))
	}
	for _, f := range not {
		if _, ok := allowed[f.Column]; !ok {
			return nil, apperr.BadRequest("unknown filter column: %s", f.Column)
		}
		exprs = append(exprs, clause.Neq{Column: clause.Column{Name: f.Column}, Value: f.Value})
	}
	return exprs, nil
}

// conditionEquals tests condition->>key = value. PostgreSQL gets a JSONB
// containment test so idx_automation_rule_condition (GIN) serves it; other
// dialects use the datatypes JSON extract form. Stored condition values are
// always strings, so both forms agree.
type conditionEquals struct {
	Key   string
	Value string
}

func (e conditionEquals) Build(builder clause.Builder) {
	if stmt, ok := builder.(*gorm.Statement); ok && stmt.Dialector.Name() == "postgres" {
		builder.WriteQuoted("condition")
		builder.WriteString(" @> ")
		builder.AddVar(builder, datatypes.JSONMap{e.Key: e.Value})
		builder.WriteString("::jsonb")
		return
	}
	datatypes.JSONQuery("condition").Equals(e.Value, e.Key).Build(builder)
}

// conditionAnd is the default condition handling: every key must match.
func conditionAnd(condition map[string]string) []clause.Expression {
	keys := make([]string, 0, len(condition))
	for k := range condition {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	exprs := make([]clause.Expression, 0, len(keys))
	for _, k := range keys {
		exprs = append(exprs, conditionEquals{Key: k, Value: condition[k]})
	}
	return exprs
}

// conditionUnion ORs the match clauses together; a rule qualifies when any
// clause holds for its stored condition.
func conditionUnion(clauses []automation.MatchClause) clause.Expression {
	exprs := make([]clause.Expression, 0, len(clauses))
	for _, c := range clauses {
		exprs = append(exprs, conditionEquals{Key: c.Key, Value: c.Value})
	}
	return anyOf(exprs)
}

func (f RuleFilter) scope(db *gorm.DB) (*gorm.DB, error) {
	exprs, err := whereClauses(ruleColumns, f.eq(), f.Or, f.Not)
	if err != nil {
		return nil, err
	}
	exprs = append(exprs, conditionAnd(f.Condition)...)
	return apply(db, exprs), nil
}

// matchScope is scope with the condition union in place of the AND'ed
// condition predicates.
func (f RuleFilter) matchScope(db *gorm.DB) (*gorm.DB, error) {
	exprs, err := whereClauses(ruleColumns, f.eq(), f.Or, f.Not)
	if err != nil {
		return nil, err
	}
	if clauses := automation.MatchClauses(f.Condition); len(clauses) > 0 {
		exprs = append(exprs, conditionUnion(clauses))
	}
	return apply(db, exprs), nil
}

func (f ChildFilter) scope(db *gorm.DB) (*gorm.DB, error) {
	exprs, err := whereClauses(childColumns, f.eq(), f.Or, f.Not)
	if err != nil {
		return nil, err
	}
	exprs = append(exprs, conditionAnd(f.Condition)...)
	return apply(db, exprs), nil
}

// anyOf ORs exprs. A lone expression is returned as is: gorm joins a
// single-element OR group onto the preceding conditions with OR.
func anyOf(exprs []clause.Expression) clause.Expression {
	if len(exprs) == 1 {
		return exprs[0]
	}
	return clause.Or(exprs...)
}

func apply(db *gorm.DB, exprs []clause.Expression) *gorm.DB {
	for _, e := range exprs {
		db = db.Where(e)
	}
	return db
}
