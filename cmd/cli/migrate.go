package cli

import (
	"context"
	"fmt"

	"taskboard/internal/automation"
	"taskboard/internal/config"
	"taskboard/internal/models"
	"taskboard/internal/services"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	flagSeed          bool
	flagSeedWorkspace string
	flagSeedOwner     string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if err := config.InitLogger(cfg); err != nil {
			return err
		}
		db, err := openDatabase(cfg)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		logrus.Info("Starting database migration...")
		if err := models.Migrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logrus.Info("Database migration completed")

		if flagSeed {
			board, err := seedDemo(cmd.Context(), db, cfg.Automation, flagSeedWorkspace, flagSeedOwner)
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			logrus.Infof("Seeded demo board %s in workspace %s", board.ID, flagSeedWorkspace)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().BoolVar(&flagSeed, "seed", false, "create a demo board with lists and automation rules")
	migrateCmd.Flags().StringVar(&flagSeedWorkspace, "workspace", "demo", "workspace id used by --seed")
	migrateCmd.Flags().StringVar(&flagSeedOwner, "owner", "admin", "user id that owns the seeded rules")
}

// seedDemo 创建 Todo/Doing/Done 三列看板及两条示例规则
func seedDemo(ctx context.Context, db *gorm.DB, cfg config.AutomationConfig, workspaceID, owner string) (*models.Board, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := logrus.StandardLogger()
	boards := services.NewBoardService(db, logger)
	rules := services.NewAutomationService(db, logger, cfg)

	if _, err := boards.EnsureWorkspace(ctx, workspaceID, "Demo"); err != nil {
		return nil, err
	}
	board, err := boards.CreateBoard(ctx, &services.BoardCreateRequest{WorkspaceID: workspaceID, Name: "Demo"})
	if err != nil {
		return nil, err
	}
	lists := map[string]*models.List{}
	for _, name := range []string{"Todo", "Doing", "Done"} {
		l, err := boards.CreateList(ctx, &services.ListCreateRequest{WorkspaceID: workspaceID, BoardID: board.ID, Name: name})
		if err != nil {
			return nil, err
		}
		lists[name] = l
	}

	seeds := []services.RuleCreateRequest{
		{
			Type: string(automation.WhenACardActionOverList),
			Condition: automation.AnyMap(automation.CardActionOverListCondition{
				Action: automation.EventCardMovedInto,
				List:   lists["Done"].ID,
			}.Map()),
			Actions: []services.ChildRequest{{
				Type:      string(automation.ActionTheCard),
				Condition: map[string]interface{}{string(automation.SelectionAction): automation.VerbArchive},
			}},
		},
		{
			Type: string(automation.WhenListHasNumberOfCards),
			Condition: automation.AnyMap(automation.ListCardCountCondition{
				List:       lists["Doing"].ID,
				Comparison: automation.NumberMoreThan,
				Number:     3,
			}.Map()),
			Actions: []services.ChildRequest{{
				Type:      string(automation.ActionNotify),
				Condition: map[string]interface{}{string(automation.SelectionFieldValue): "Doing has more than 3 cards"},
			}},
		},
	}
	for i := range seeds {
		seeds[i].WorkspaceID = workspaceID
		seeds[i].CreatedBy = owner
		if _, err := rules.CreateRule(ctx, &seeds[i]); err != nil {
			return nil, err
		}
	}
	return board, nil
}
