package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"taskboard/internal/config"
	"taskboard/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := "file:services_" + name + "?mode=memory&cache=shared&_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, models.Migrate(db))
	return db
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	return l
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []AutomationNotice
}

func (r *recordingNotifier) Notify(_ context.Context, n AutomationNotice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
	return nil
}

func (r *recordingNotifier) all() []AutomationNotice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AutomationNotice(nil), r.notices...)
}

// engine wires the services the way the server does.
type engine struct {
	db         *gorm.DB
	automation *AutomationService
	cards      *CardService
	boards     *BoardService
	executor   *AutomationExecutor
	notices    *recordingNotifier

	board             *models.Board
	todo, doing, done *models.List
}

const testWorkspace = "ws1"

func newEngine(t *testing.T, mutate ...func(*config.AutomationConfig)) *engine {
	t.Helper()
	db := newServiceTestDB(t)
	cfg := config.GetDefaultConfig().Automation
	for _, m := range mutate {
		m(&cfg)
	}
	log := quietLogger()
	e := &engine{db: db, notices: &recordingNotifier{}}
	e.automation = NewAutomationService(db, log, cfg)
	e.cards = NewCardService(db, log)
	e.boards = NewBoardService(db, log)
	e.executor = NewAutomationExecutor(e.automation, e.cards, log, cfg)
	e.executor.SetNotifier(e.notices)
	e.cards.SetAutomation(e.automation, e.executor)

	ctx := context.Background()
	var err error
	e.board, err = e.boards.CreateBoard(ctx, &BoardCreateRequest{WorkspaceID: testWorkspace, Name: "Sprint"})
	require.NoError(t, err)
	for _, l := range []struct {
		name string
		dst  **models.List
	}{{"Todo", &e.todo}, {"Doing", &e.doing}, {"Done", &e.done}} {
		*l.dst, err = e.boards.CreateList(ctx, &ListCreateRequest{WorkspaceID: testWorkspace, BoardID: e.board.ID, Name: l.name})
		require.NoError(t, err)
	}
	return e
}

func (e *engine) rule(t *testing.T, owner, typ string, cond map[string]interface{}, actions ...ChildRequest) *RuleBundle {
	t.Helper()
	b, err := e.automation.CreateRule(context.Background(), &RuleCreateRequest{
		WorkspaceID: testWorkspace,
		CreatedBy:   owner,
		Type:        typ,
		Condition:   cond,
		Actions:     actions,
	})
	require.NoError(t, err)
	return b
}

func (e *engine) card(t *testing.T, list *models.List, title, actor string) *models.Card {
	t.Helper()
	c, err := e.cards.CreateCard(context.Background(), &CreateCardRequest{
		WorkspaceID: testWorkspace, ActorID: actor, ListID: list.ID, Title: title,
	})
	require.NoError(t, err)
	return c
}

func (e *engine) runs(t *testing.T, q RunQuery) []models.AutomationRun {
	t.Helper()
	page, err := e.automation.ListRuns(context.Background(), testWorkspace, q)
	require.NoError(t, err)
	return page.Data
}

func act(typ string, cond map[string]interface{}) ChildRequest {
	return ChildRequest{Type: typ, Condition: cond}
}
