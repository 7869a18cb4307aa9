package vision

import (
	"fmt"
	"os"
	"time"

	"github.com/Korkidis/ai-risk-shield-sub000/internal/config"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/shield"
)

// NewClientFromConfig creates a vision Client based on the vision config type.
// The API key is read from the environment variable named by cfg.APIKeyEnv.
func NewClientFromConfig(cfg config.VisionConfig, logger shield.Logger) (Client, error) {
	switch cfg.Type {
	case "openai":
		key := os.Getenv(cfg.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("environment variable %s is not set", cfg.APIKeyEnv)
		}
		return NewOpenAIClient(OpenAIOptions{
			APIKey:            key,
			Model:             cfg.Model,
			BaseURL:           cfg.BaseURL,
			RequestsPerMinute: cfg.RequestsPerMinute,
			Timeout:           time.Duration(cfg.TimeoutSeconds) * time.Second,
			BreakerFailures:   uint32(cfg.BreakerFailures),
			Logger:            logger,
		})
	default:
		return nil, fmt.Errorf("unknown vision type: %s", cfg.Type)
	}
}
