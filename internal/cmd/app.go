package cmd

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dotcommander/mcpagent/internal/agent"
	"github.com/dotcommander/mcpagent/internal/catalog"
	"github.com/dotcommander/mcpagent/internal/dispatch"
	"github.com/dotcommander/mcpagent/internal/errs"
	"github.com/dotcommander/mcpagent/internal/fantasybridge"
	"github.com/dotcommander/mcpagent/internal/mcp"
	"github.com/dotcommander/mcpagent/internal/metrics"
)

// discover connects to every enabled server and builds the catalog. On
// success the catalog owns the connections.
func (rt *runtime) discover(ctx context.Context, log zerolog.Logger, m *metrics.Metrics) (*catalog.Catalog, error) {
	svc := mcp.New(&rt.cfg, log, mcp.WithVersion(rt.build.Version))
	cat, err := catalog.Discover(ctx, svc, svc.ServerNames(), catalog.Options{
		Collisions: rt.cfg.Agent.ToolCollisions,
		Log:        log,
		Metrics:    m,
	})
	if err != nil {
		_ = svc.Close()
		return nil, err
	}
	return cat, nil
}

// newLoop binds the catalog to the configured model.
func (rt *runtime) newLoop(ctx context.Context, cat *catalog.Catalog, log zerolog.Logger, m *metrics.Metrics) (*agent.Loop, error) {
	key, err := rt.cfg.Model.ResolveAPIKey(ctx, rt.cfg.Environ)
	if err != nil {
		return nil, err
	}

	temperature := rt.cfg.Model.Temperature
	var maxTokens *int64
	if rt.cfg.Model.MaxTokens > 0 {
		maxTokens = &rt.cfg.Model.MaxTokens
	}
	model, err := fantasybridge.New(fantasybridge.Config{
		API:         rt.cfg.Model.API,
		Model:       rt.cfg.Model.Name,
		BaseURL:     rt.cfg.Model.BaseURL,
		APIKey:      key,
		Temperature: &temperature,
		MaxTokens:   maxTokens,
		Timeout:     rt.cfg.Model.Timeout,
		Log:         log,
	}, cat.Tools())
	if err != nil {
		return nil, errs.Wrapf(err, "Could not set up the %s model provider.", rt.cfg.Model.API)
	}

	tools := dispatch.New(cat, dispatch.Options{
		ValidateArguments: rt.cfg.Agent.ValidateArguments,
		Log:               log,
		Metrics:           m,
	})
	return agent.New(model, tools, agent.Config{
		SystemPrompt:  rt.cfg.Agent.SystemPrompt,
		MaxIterations: rt.cfg.Agent.MaxIterations,
		ChunkSize:     rt.cfg.Agent.ChunkSize,
		ChunkDelay:    rt.cfg.Agent.ChunkDelay,
		Log:           log,
		Metrics:       m,
	}), nil
}
