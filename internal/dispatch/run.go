package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/angeloszaimis/healthwatch/config"
	"github.com/angeloszaimis/healthwatch/internal/healthcheck"
	"github.com/angeloszaimis/healthwatch/internal/httpclient"
)

// Run performs a single one-shot check of every endpoint in cfg with a fresh
// HTTP client. recorder may be nil.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger, recorder healthcheck.Recorder) (healthcheck.Summary, error) {
	d, err := NewFromConfig(cfg, logger, recorder)
	if err != nil {
		return healthcheck.Summary{}, err
	}
	return d.Run(ctx, cfg).Summary, nil
}

// NewFromConfig wires a Dispatcher to a real HTTP prober built from cfg.
func NewFromConfig(cfg *config.Config, logger *slog.Logger, recorder healthcheck.Recorder) (*Dispatcher, error) {
	client, err := httpclient.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("build http client: %w", err)
	}
	return New(healthcheck.NewHTTPProber(client, recorder), logger), nil
}
