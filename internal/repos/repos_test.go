package repos

import (
	"context"
	"strings"
	"testing"

	"taskboard/internal/apperr"
	"taskboard/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := "file:repos_" + name + "?mode=memory&cache=shared&_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.AutomationRule{},
		&models.AutomationRuleFilter{},
		&models.AutomationRuleAction{},
		&models.AutomationRun{},
	))
	return db
}

type fixture struct {
	db      *gorm.DB
	rules   RuleRepo
	filters FilterRepo
	actions ActionRepo
}

func newFixture(t *testing.T) fixture {
	db := newTestDB(t)
	logger := logrus.New()
	return fixture{
		db:      db,
		rules:   NewRuleRepo(db, logger),
		filters: NewFilterRepo(db, logger),
		actions: NewActionRepo(db, logger),
	}
}

func (f fixture) rule(t *testing.T, workspace, typ string, cond map[string]string) *models.AutomationRule {
	t.Helper()
	r, err := f.rules.Create(context.Background(), nil, &models.AutomationRule{
		WorkspaceID: workspace,
		GroupType:   "card",
		Type:        typ,
		Condition:   models.JSONCondition(cond),
	})
	require.NoError(t, err)
	require.NotEmpty(t, r.ID)
	return r
}

func (f fixture) addActions(t *testing.T, ruleID string, types ...string) {
	t.Helper()
	rows := make([]*models.AutomationRuleAction, 0, len(types))
	for _, typ := range types {
		rows = append(rows, &models.AutomationRuleAction{
			RuleID:    ruleID,
			GroupType: "card",
			Type:      typ,
			Condition: datatypes.JSONMap{"action*": "move"},
		})
	}
	_, err := f.actions.BulkCreate(context.Background(), nil, rows)
	require.NoError(t, err)
}

func ruleIDs(details []models.RuleDetail) []string {
	out := make([]string, 0, len(details))
	for _, d := range details {
		out = append(out, d.ID)
	}
	return out
}

func TestMatchRules_EmptyResultIsNotAnError(t *testing.T) {
	f := newFixture(t)
	got, err := f.rules.MatchRules(context.Background(), nil, RuleFilter{
		WorkspaceID: "W1",
		Condition:   map[string]string{"action*": "card.created"},
	})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMatchRules_UnionAcrossKeys(t *testing.T) {
	f := newFixture(t)
	moved := f.rule(t, "W1", "when_a_card_action_over_board", map[string]string{"action*": "card.moved.into"})
	byMe := f.rule(t, "W1", "when_a_card_is_created_or_edited", map[string]string{"action*": "card.renamed", "by": "by-me"})
	f.rule(t, "W1", "when_a_card_is_archived", map[string]string{"action*": "card.archived"})

	ctx := context.Background()
	got, err := f.rules.MatchRules(ctx, nil, RuleFilter{
		WorkspaceID: "W1",
		Condition:   map[string]string{"action*": "card.moved.into"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{moved.ID}, ruleIDs(got))

	got, err = f.rules.MatchRules(ctx, nil, RuleFilter{
		WorkspaceID: "W1",
		Condition:   map[string]string{"action*": "card.moved.into", "by": "by-me"},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{moved.ID, byMe.ID}, ruleIDs(got))
}

func TestMatchRules_ScopedToWorkspace(t *testing.T) {
	f := newFixture(t)
	mine := f.rule(t, "W1", "when_a_card_is_created_or_edited", map[string]string{"action*": "card.created"})
	f.rule(t, "W2", "when_a_card_is_created_or_edited", map[string]string{"action*": "card.created"})

	got, err := f.rules.MatchRules(context.Background(), nil, RuleFilter{
		WorkspaceID: "W1",
		Condition:   map[string]string{"action*": "card.created"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{mine.ID}, ruleIDs(got))
}

func TestMatchRules_ComparisonExpansion(t *testing.T) {
	f := newFixture(t)
	exactly := f.rule(t, "W1", "when_list_has_number_of_cards", map[string]string{"list*": "L1", "number-comparison*": "exactly", "number*": "3"})
	more := f.rule(t, "W1", "when_list_has_number_of_cards", map[string]string{"list*": "L1", "number-comparison*": "more-than", "number*": "5"})
	addedTo := f.rule(t, "W1", "when_a_card_action_over_list", map[string]string{"action*": "card.added.to", "list*": "L1"})

	ctx := context.Background()
	for _, ev := range []string{"card.moved.into", "card.moved.out.of", "card.copied", "card.created.in", "card.archived", "card.unarchived"} {
		got, err := f.rules.MatchRules(ctx, nil, RuleFilter{
			WorkspaceID: "W1",
			Condition:   map[string]string{"action*": ev},
		})
		require.NoError(t, err, ev)
		assert.ElementsMatch(t, []string{exactly.ID, more.ID, addedTo.ID}, ruleIDs(got), ev)
	}

	got, err := f.rules.MatchRules(ctx, nil, RuleFilter{
		WorkspaceID: "W1",
		Condition:   map[string]string{"action*": "card.renamed"},
	})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMatchRules_ActionAttachment(t *testing.T) {
	f := newFixture(t)
	withActions := f.rule(t, "W1", "when_a_card_is_created_or_edited", map[string]string{"action*": "card.created"})
	bare := f.rule(t, "W1", "when_a_card_is_created_or_edited", map[string]string{"action*": "card.created", "by": "by-me"})
	f.addActions(t, withActions.ID, "action_the_card", "notify", "action_the_label")

	got, err := f.rules.MatchRules(context.Background(), nil, RuleFilter{
		WorkspaceID: "W1",
		Condition:   map[string]string{"action*": "card.created"},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, d := range got {
		require.NotNil(t, d.Action)
		switch d.ID {
		case withActions.ID:
			assert.Len(t, d.Action, 3)
		case bare.ID:
			assert.Len(t, d.Action, 0)
		default:
			t.Fatalf("unexpected rule %s", d.ID)
		}
	}
}

func TestMatchRules_BatchedActionFetch(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 4; i++ {
		r := f.rule(t, "W1", "when_a_card_is_created_or_edited", map[string]string{"action*": "card.updated", "filter": string(rune('a' + i))})
		f.addActions(t, r.ID, "notify")
	}

	var actionQueries int
	require.NoError(t, f.db.Callback().Query().After("gorm:query").Register("test:count_actions", func(tx *gorm.DB) {
		if tx.Statement.Table == "automation_rule_action" {
			actionQueries++
		}
	}))

	got, err := f.rules.MatchRules(context.Background(), nil, RuleFilter{
		WorkspaceID: "W1",
		Condition:   map[string]string{"action*": "card.updated"},
	})
	require.NoError(t, err)
	assert.Len(t, got, 4)
	assert.Equal(t, 1, actionQueries)
}

func TestMatchRules_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rule := f.rule(t, "W1", "when_a_card_action_over_board", map[string]string{"action*": "card.moved.into"})
	_, err := f.actions.BulkCreate(ctx, nil, []*models.AutomationRuleAction{
		{RuleID: rule.ID, Type: "move_card", Condition: datatypes.JSONMap{"list*": "L2"}},
		{RuleID: rule.ID, Type: "notify", Condition: datatypes.JSONMap{"field_value*": "moved"}},
	})
	require.NoError(t, err)

	got, err := f.rules.MatchRules(ctx, nil, RuleFilter{
		WorkspaceID: "W1",
		Condition:   map[string]string{"action*": "card.moved.into"},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Len(t, got[0].Action, 2)

	got, err = f.rules.MatchRules(ctx, nil, RuleFilter{
		WorkspaceID: "W1",
		Condition:   map[string]string{"action*": "card.archived"},
	})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRuleRepo_PartialUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rule := f.rule(t, "W1", "when_a_card_action_over_board", map[string]string{"action*": "card.moved.into"})

	group := "list"
	require.NoError(t, f.rules.Update(ctx, nil, RuleFilter{ID: rule.ID}, RuleUpdate{GroupType: &group}))

	got, err := f.rules.Get(ctx, nil, RuleFilter{ID: rule.ID})
	require.NoError(t, err)
	assert.Equal(t, "list", got.GroupType)
	assert.Equal(t, "when_a_card_action_over_board", got.Type)
	assert.Equal(t, "card.moved.into", got.Condition["action*"])

	empty := map[string]string{}
	require.NoError(t, f.rules.Update(ctx, nil, RuleFilter{ID: rule.ID}, RuleUpdate{Condition: &empty}))
	got, err = f.rules.Get(ctx, nil, RuleFilter{ID: rule.ID})
	require.NoError(t, err)
	assert.Empty(t, got.Condition)

	err = f.rules.Update(ctx, nil, RuleFilter{ID: "missing"}, RuleUpdate{GroupType: &group})
	assert.True(t, apperr.IsNotFound(err))
}

func TestRuleRepo_DeleteTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rule := f.rule(t, "W1", "when_a_card_is_archived", map[string]string{"action*": "card.archived"})

	n, err := f.rules.Delete(ctx, nil, RuleFilter{ID: rule.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = f.rules.Delete(ctx, nil, RuleFilter{ID: rule.ID})
	assert.True(t, apperr.IsNotFound(err))
}

func TestRuleRepo_DeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rule := f.rule(t, "W1", "when_a_card_is_archived", map[string]string{"action*": "card.archived"})
	f.addActions(t, rule.ID, "notify")
	_, err := f.filters.Create(ctx, nil, &models.AutomationRuleFilter{RuleID: rule.ID, Condition: datatypes.JSONMap{"by": "by-me"}})
	require.NoError(t, err)

	_, err = f.rules.Delete(ctx, nil, RuleFilter{ID: rule.ID})
	require.NoError(t, err)

	acts, err := f.actions.GetByRuleID(ctx, nil, rule.ID)
	require.NoError(t, err)
	assert.Empty(t, acts)
	filters, err := f.filters.GetByRuleID(ctx, nil, rule.ID)
	require.NoError(t, err)
	assert.Empty(t, filters)
}

func TestRuleRepo_DeleteRequiresFilter(t *testing.T) {
	f := newFixture(t)
	_, err := f.rules.Delete(context.Background(), nil, RuleFilter{})
	assert.Equal(t, 400, apperr.StatusOf(err))
}

func TestRuleRepo_GetNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.rules.Get(context.Background(), nil, RuleFilter{ID: "nope"})
	assert.True(t, apperr.IsNotFound(err))
}

func TestRuleRepo_GetListFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.rule(t, "W1", "when_a_card_is_archived", map[string]string{"action*": "card.archived"})
	b := f.rule(t, "W1", "when_a_card_is_copied", map[string]string{"action*": "card.copied"})
	c := f.rule(t, "W1", "when_a_card_is_created_or_edited", map[string]string{"action*": "card.created"})
	f.rule(t, "W2", "when_a_card_is_archived", map[string]string{"action*": "card.archived"})

	page, err := f.rules.GetList(ctx, nil, RuleFilter{WorkspaceID: "W1"}, Paginate{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	assert.Equal(t, 10, page.PageSize)

	page, err = f.rules.GetList(ctx, nil, RuleFilter{
		WorkspaceID: "W1",
		Or:          []Field{{Column: "type", Value: "when_a_card_is_archived"}, {Column: "type", Value: "when_a_card_is_copied"}},
	}, Paginate{})
	require.NoError(t, err)
	var ids []string
	for _, r := range page.Data {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)

	page, err = f.rules.GetList(ctx, nil, RuleFilter{
		WorkspaceID: "W1",
		Not:         []Field{{Column: "type", Value: "when_a_card_is_archived"}},
	}, Paginate{})
	require.NoError(t, err)
	ids = ids[:0]
	for _, r := range page.Data {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []string{b.ID, c.ID}, ids)

	page, err = f.rules.GetList(ctx, nil, RuleFilter{
		WorkspaceID: "W1",
		Condition:   map[string]string{"action*": "card.created"},
	}, Paginate{})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, c.ID, page.Data[0].ID)

	_, err = f.rules.GetList(ctx, nil, RuleFilter{Or: []Field{{Column: "1=1; --", Value: "x"}}}, Paginate{})
	assert.Equal(t, 400, apperr.StatusOf(err))
}

func TestRuleRepo_SingleOrFieldStaysScoped(t *testing.T) {
	f := newFixture(t)
	f.rule(t, "W2", "when_a_card_is_archived", map[string]string{"action*": "card.archived"})

	page, err := f.rules.GetList(context.Background(), nil, RuleFilter{
		WorkspaceID: "W1",
		Or:          []Field{{Column: "type", Value: "when_a_card_is_archived"}},
	}, Paginate{})
	require.NoError(t, err)
	assert.Empty(t, page.Data)
}

func TestRuleRepo_Pagination(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 7; i++ {
		f.rule(t, "W1", "when_a_card_is_archived", map[string]string{"action*": "card.archived"})
	}
	page, err := f.rules.GetList(context.Background(), nil, RuleFilter{WorkspaceID: "W1"}, Paginate{Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.EqualValues(t, 7, page.Total)
	assert.Len(t, page.Data, 3)
	assert.Equal(t, 3, page.Pages)

	page, err = f.rules.GetList(context.Background(), nil, RuleFilter{WorkspaceID: "W1"}, Paginate{Page: 3, Limit: 3})
	require.NoError(t, err)
	assert.Len(t, page.Data, 1)
}

func TestChildRepos_CRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rule := f.rule(t, "W1", "when_a_card_action_over_list", map[string]string{"action*": "card.moved.into", "list*": "L1"})

	rows, err := f.filters.BulkCreate(ctx, nil, []*models.AutomationRuleFilter{
		{RuleID: rule.ID, GroupType: "card", Type: "list", Condition: datatypes.JSONMap{"list*": "L1"}},
		{RuleID: rule.ID, GroupType: "card", Type: "subject", Condition: datatypes.JSONMap{"by": "by-me"}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	got, err := f.filters.Get(ctx, nil, ChildFilter{RuleID: rule.ID, Condition: map[string]string{"by": "by-me"}})
	require.NoError(t, err)
	assert.Equal(t, rows[1].ID, got.ID)

	typ := "member"
	require.NoError(t, f.filters.Update(ctx, nil, ChildFilter{ID: got.ID}, ChildUpdate{Type: &typ}))
	got, err = f.filters.Get(ctx, nil, ChildFilter{ID: got.ID})
	require.NoError(t, err)
	assert.Equal(t, "member", got.Type)
	assert.Equal(t, "by-me", got.Condition["by"])

	grouped, err := f.filters.GetByRuleIDs(ctx, nil, []string{rule.ID, "other"})
	require.NoError(t, err)
	assert.Len(t, grouped[rule.ID], 2)
	assert.Empty(t, grouped["other"])

	n, err := f.filters.Delete(ctx, nil, ChildFilter{RuleID: rule.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	act, err := f.actions.Create(ctx, nil, &models.AutomationRuleAction{RuleID: rule.ID, Type: "notify", Condition: datatypes.JSONMap{"field_value*": "hi"}})
	require.NoError(t, err)
	page, err := f.actions.GetList(ctx, nil, ChildFilter{RuleID: rule.ID}, Paginate{})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, act.ID, page.Data[0].ID)

	_, err = f.actions.Delete(ctx, nil, ChildFilter{ID: act.ID})
	require.NoError(t, err)
	_, err = f.actions.Delete(ctx, nil, ChildFilter{ID: act.ID})
	assert.True(t, apperr.IsNotFound(err))
}

func TestPaginate_Normalize(t *testing.T) {
	p := Paginate{}.Normalize()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultPageSize, p.Limit)
	assert.Equal(t, MaxPageSize, Paginate{Limit: 5000}.Normalize().Limit)
	assert.Equal(t, 20, Paginate{Page: 3, Limit: 10}.Offset())
}

func TestRunRepo_ListScopedAndFiltered(t *testing.T) {
	db := newTestDB(t)
	runs := NewRunRepo(db, nil)
	ctx := context.Background()

	for _, r := range []models.AutomationRun{
		{RuleID: "r1", WorkspaceID: "ws1", CardID: "c1", Event: "card.archived", Status: models.RunSuccess},
		{RuleID: "r1", WorkspaceID: "ws1", CardID: "c2", Event: "card.archived", Status: models.RunFailed},
		{RuleID: "r2", WorkspaceID: "ws2", CardID: "c3", Event: "card.copied", Status: models.RunSuccess},
	} {
		run := r
		_, err := runs.Create(ctx, nil, &run)
		require.NoError(t, err)
		require.NotZero(t, run.ID)
	}

	page, err := runs.GetList(ctx, nil, RunFilter{WorkspaceID: "ws1"}, Paginate{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, DefaultPageSize, page.PageSize)

	page, err = runs.GetList(ctx, nil, RunFilter{WorkspaceID: "ws1", Status: models.RunFailed}, Paginate{})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "c2", page.Data[0].CardID)
}

func TestMatchScope_ConditionSQLPerDialect(t *testing.T) {
	filter := RuleFilter{WorkspaceID: "ws1", Condition: map[string]string{"action*": "card.archived"}}

	pg, err := gorm.Open(postgres.Open("host=localhost user=taskboard dbname=taskboard sslmode=disable"),
		&gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)
	q, err := filter.matchScope(pg.Model(&models.AutomationRule{}))
	require.NoError(t, err)
	stmt := q.Find(&[]models.AutomationRule{}).Statement
	assert.Contains(t, stmt.SQL.String(), `"condition" @> $2::jsonb`)
	assert.NotContains(t, stmt.SQL.String(), "json_extract_path_text")
	assert.Contains(t, stmt.Vars, datatypes.JSONMap{"action*": "card.archived"})

	lite, err := gorm.Open(sqlite.Open("file:repos_dryrun?mode=memory"), &gorm.Config{DryRun: true})
	require.NoError(t, err)
	q, err = filter.matchScope(lite.Model(&models.AutomationRule{}))
	require.NoError(t, err)
	stmt = q.Find(&[]models.AutomationRule{}).Statement
	assert.Contains(t, stmt.SQL.String(), "JSON_EXTRACT(")
	assert.NotContains(t, stmt.SQL.String(), "@>")
}
