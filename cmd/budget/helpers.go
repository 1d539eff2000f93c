package main

import (
	"context"
	"fmt"

	"github.com/aafontoura/budget-notion/internal/categorize"
	"github.com/aafontoura/budget-notion/internal/config"
	"github.com/aafontoura/budget-notion/internal/llm"
	"github.com/aafontoura/budget-notion/internal/repository"
	"github.com/aafontoura/budget-notion/internal/syncer"
)

func openSQLite(ctx context.Context, cfg *config.Config) (*repository.SQLiteRepository, error) {
	repo, err := repository.NewSQLiteRepository(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", cfg.DatabasePath, err)
	}
	return repo, nil
}

func openNotion(cfg *config.Config) (*repository.NotionRepository, error) {
	if err := cfg.RequireNotion(); err != nil {
		return nil, err
	}
	return repository.NewNotionRepository(cfg.Notion.Token, cfg.Notion.DatabaseID)
}

func buildSyncEngine(ctx context.Context, cfg *config.Config) (*syncer.Engine, func(), error) {
	sqlite, err := openSQLite(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	notion, err := openNotion(cfg)
	if err != nil {
		_ = sqlite.Close()
		return nil, nil, err
	}
	cleanup := func() { _ = sqlite.Close() }
	return syncer.New(notion, sqlite), cleanup, nil
}

func buildCategorizer(cfg *config.Config, opts ...categorize.Option) (*categorize.Service, error) {
	client, err := llm.NewClient(llm.Config{
		Provider:    cfg.LLM.Provider,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		Timeout:     cfg.LLM.Timeout,
		Temperature: cfg.LLM.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	opts = append([]categorize.Option{categorize.WithBatchSize(cfg.BatchSize)}, opts...)
	return categorize.NewService(client, opts...), nil
}
