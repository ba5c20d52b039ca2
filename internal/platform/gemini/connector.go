package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/deckgen-api/internal/config"
	"github.com/phrazzld/deckgen-api/internal/generation"
	"google.golang.org/genai"
)

// Connector hands out one Client session per task run. The underlying genai
// client is shared; sessions only own the files and jobs they create.
type Connector struct {
	api          remoteAPI
	config       config.GeminiConfig
	pollInterval time.Duration
	renderer     *DeckRenderer
	logger       *slog.Logger
}

// Ensure Connector implements generation.Connector interface
var _ generation.Connector = (*Connector)(nil)

// NewConnector creates a Connector backed by the Gemini API.
func NewConnector(
	ctx context.Context,
	cfg config.GeminiConfig,
	pollInterval time.Duration,
	logger *slog.Logger,
) (*Connector, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return newConnector(&genaiRemote{client: client}, cfg, pollInterval, logger)
}

func newConnector(
	api remoteAPI,
	cfg config.GeminiConfig,
	pollInterval time.Duration,
	logger *slog.Logger,
) (*Connector, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}
	if pollInterval <= 0 {
		return nil, fmt.Errorf("%w: poll interval must be positive", generation.ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Connector{
		api:          api,
		config:       cfg,
		pollInterval: pollInterval,
		renderer:     &DeckRenderer{FontPath: cfg.FontPath},
		logger:       logger.With(slog.String("component", "gemini")),
	}, nil
}

// Connect implements generation.Connector.
func (c *Connector) Connect(ctx context.Context) (generation.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", generation.ErrRemoteUnavailable, err)
	}
	return newClient(c), nil
}
