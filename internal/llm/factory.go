package llm

import (
	"fmt"
	"time"
)

// Config holds provider settings for constructing a Client.
type Config struct {
	Provider    string
	BaseURL     string
	Model       string
	APIKey      string
	Timeout     time.Duration
	Temperature float64
}

// NewClient creates an LLM client for the configured provider.
func NewClient(cfg Config) (Client, error) {
	switch cfg.Provider {
	case "ollama", "":
		return newOllamaClient(cfg)
	case "openai", "gateway":
		return newGatewayClient(cfg)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
}
