package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"taskboard/internal/config"
	"taskboard/internal/middleware"
	"taskboard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestSeedDemo(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:cli_seed?mode=memory&cache=shared&_foreign_keys=on"),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, models.Migrate(db))

	board, err := seedDemo(context.Background(), db, config.GetDefaultConfig().Automation, "demo", "admin")
	require.NoError(t, err)
	assert.Equal(t, "demo", board.WorkspaceID)

	var lists, rules, actions int64
	require.NoError(t, db.Model(&models.List{}).Where("board_id = ?", board.ID).Count(&lists).Error)
	require.NoError(t, db.Model(&models.AutomationRule{}).Where("workspace_id = ?", "demo").Count(&rules).Error)
	require.NoError(t, db.Model(&models.AutomationRuleAction{}).Count(&actions).Error)
	assert.EqualValues(t, 3, lists)
	assert.EqualValues(t, 2, rules)
	assert.EqualValues(t, 2, actions)
}

func TestTokenCommands(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"token", "--secret", "s3cret", "--workspace", "ws1", "--user", "alice"})
	require.NoError(t, rootCmd.Execute())

	tok := strings.TrimSpace(out.String())
	claims, err := middleware.ParseToken(tok, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject())
	assert.Equal(t, "ws1", claims.WorkspaceID)

	out.Reset()
	rootCmd.SetArgs([]string{"token-decode", tok, "--secret", "s3cret"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), `"workspace_id": "ws1"`)

	rootCmd.SetArgs([]string{"token-decode", tok, "--secret", "wrong"})
	assert.Error(t, rootCmd.Execute())
}
