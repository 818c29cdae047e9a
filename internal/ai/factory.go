package ai

import (
	"strings"

	"github.com/fdg312/calorie-hub/internal/config"
)

func NewProvider(cfg *config.Config) Provider {
	mode := strings.ToLower(strings.TrimSpace(cfg.AIMode))
	if mode == "" {
		mode = config.AIModeMock
	}

	switch mode {
	case config.AIModeOpenAI:
		return NewOpenAIProvider(cfg)
	default:
		return NewMockProvider()
	}
}
