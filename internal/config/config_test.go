package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aafontoura/budget-notion/internal/common"
)

func validConfig() *Config {
	return &Config{
		DatabasePath: "/tmp/budget.db",
		LLM: LLM{
			Provider: "ollama",
			Timeout:  30 * time.Second,
		},
		BatchSize:           DefaultBatchSize,
		ConfidenceThreshold: DefaultConfidenceThreshold,
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejectsMissingDatabasePath(t *testing.T) {
	cfg := validConfig()
	cfg.DatabasePath = ""

	err := cfg.Validate()
	require.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestValidateRejectsBadBatchSize(t *testing.T) {
	cfg := validConfig()
	cfg.BatchSize = 0

	err := cfg.Validate()
	require.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestValidateRejectsOutOfRangeConfidence(t *testing.T) {
	for _, threshold := range []float64{-0.1, 1.1} {
		cfg := validConfig()
		cfg.ConfidenceThreshold = threshold
		assert.ErrorIs(t, cfg.Validate(), common.ErrInvalidConfig)
	}
}

func TestRequireNotion(t *testing.T) {
	cfg := validConfig()

	err := cfg.RequireNotion()
	require.ErrorIs(t, err, common.ErrMissingConfig)
	var userErr *common.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.UserMessage, "BUDGET_NOTION_TOKEN")

	cfg.Notion.Token = "secret"
	err = cfg.RequireNotion()
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.UserMessage, "BUDGET_NOTION_DATABASE_ID")

	cfg.Notion.DatabaseID = "db-123"
	require.NoError(t, cfg.RequireNotion())
}
