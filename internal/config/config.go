// Package config loads application settings from viper, layering config
// file values under BUDGET_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/aafontoura/budget-notion/internal/common"
)

// Default tuning values applied when the config file omits them.
const (
	DefaultBatchSize           = 35
	DefaultConfidenceThreshold = 0.7
	DefaultLLMTimeout          = 120 * time.Second
)

// Notion holds credentials for the Notion integration.
type Notion struct {
	Token      string
	DatabaseID string
}

// LLM holds provider settings for the categorization client.
type LLM struct {
	Provider    string
	BaseURL     string
	Model       string
	APIKey      string
	Timeout     time.Duration
	Temperature float64
}

// Config is the resolved application configuration. Treat it as immutable
// after Load.
type Config struct {
	DatabasePath        string
	Notion              Notion
	LLM                 LLM
	BatchSize           int
	ConfidenceThreshold float64
}

// SetDefaults registers fallback values on the global viper instance. Call
// before ReadInConfig so explicit settings win.
func SetDefaults() {
	viper.SetDefault("database.path", defaultDatabasePath())
	viper.SetDefault("llm.provider", "ollama")
	viper.SetDefault("llm.base_url", "")
	viper.SetDefault("llm.model", "")
	viper.SetDefault("llm.timeout", DefaultLLMTimeout)
	viper.SetDefault("llm.temperature", 0.1)
	viper.SetDefault("categorization.batch_size", DefaultBatchSize)
	viper.SetDefault("categorization.confidence_threshold", DefaultConfidenceThreshold)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")
}

// Load builds a Config from the current viper state and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		DatabasePath: viper.GetString("database.path"),
		Notion: Notion{
			Token:      viper.GetString("notion.token"),
			DatabaseID: viper.GetString("notion.database_id"),
		},
		LLM: LLM{
			Provider:    viper.GetString("llm.provider"),
			BaseURL:     viper.GetString("llm.base_url"),
			Model:       viper.GetString("llm.model"),
			APIKey:      viper.GetString("llm.api_key"),
			Timeout:     viper.GetDuration("llm.timeout"),
			Temperature: viper.GetFloat64("llm.temperature"),
		},
		BatchSize:           viper.GetInt("categorization.batch_size"),
		ConfidenceThreshold: viper.GetFloat64("categorization.confidence_threshold"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks ranges and required fields. Notion credentials are not
// required here; commands that touch Notion check them at call time.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("%w: database.path is required", common.ErrMissingConfig)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: categorization.batch_size must be at least 1, got %d",
			common.ErrInvalidConfig, c.BatchSize)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: categorization.confidence_threshold must be in [0, 1], got %g",
			common.ErrInvalidConfig, c.ConfidenceThreshold)
	}
	return nil
}

// RequireNotion returns an error when Notion credentials are missing.
func (c *Config) RequireNotion() error {
	if c.Notion.Token == "" {
		return common.NewUserError(
			"Notion token not configured. Set BUDGET_NOTION_TOKEN or add notion.token to your config file.",
			fmt.Errorf("%w: notion.token", common.ErrMissingConfig),
		)
	}
	if c.Notion.DatabaseID == "" {
		return common.NewUserError(
			"Notion database not configured. Set BUDGET_NOTION_DATABASE_ID or add notion.database_id to your config file.",
			fmt.Errorf("%w: notion.database_id", common.ErrMissingConfig),
		)
	}
	return nil
}

func defaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "budget.db"
	}
	return filepath.Join(home, ".config", "budget", "budget.db")
}
