// Package fantasybridge implements the model completion service on top of
// charm.land/fantasy.
package fantasybridge

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"charm.land/fantasy"
	fopenaicompat "charm.land/fantasy/providers/openaicompat"
	"github.com/rs/zerolog"

	"github.com/dotcommander/mcpagent/internal/catalog"
	"github.com/dotcommander/mcpagent/internal/proto"
)

const retryDelay = time.Second

// Config represents provider configuration used by the fantasy bridge.
type Config struct {
	API         string
	Model       string
	BaseURL     string
	APIKey      string
	Temperature *float64
	MaxTokens   *int64
	// Timeout bounds one completion. Zero means no bound.
	Timeout    time.Duration
	HTTPClient *http.Client
	Log        zerolog.Logger
}

// Client completes transcripts with one model, offering it a fixed tool set.
type Client struct {
	provider fantasy.Provider
	config   Config
	tools    []fantasy.Tool
}

// New creates a Client. The tools are bound to every completion.
func New(cfg Config, tools []catalog.Descriptor) (*Client, error) {
	if cfg.API == "" || cfg.Model == "" {
		return nil, fmt.Errorf("missing fantasy provider configuration")
	}
	provider, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{provider: provider, config: cfg, tools: fromDescriptors(tools)}, nil
}

// Providers lists the api names with a native provider. Other names use the
// openai-compatible provider.
func Providers() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func newProvider(cfg Config) (fantasy.Provider, error) {
	api := cfg.API
	if api == "azure-ad" {
		api = "azure"
	}
	if build, ok := providers[api]; ok {
		provider, err := build(cfg)
		if err != nil {
			return nil, fmt.Errorf("new fantasy %s provider: %w", api, err)
		}
		return provider, nil
	}

	opts := []fopenaicompat.Option{fopenaicompat.WithName(cfg.API)}
	if cfg.APIKey != "" {
		opts = append(opts, fopenaicompat.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, fopenaicompat.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, fopenaicompat.WithHTTPClient(cfg.HTTPClient))
	}
	provider, err := fopenaicompat.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("new fantasy openai-compatible provider: %w", err)
	}
	return provider, nil
}

// Complete runs one completion round over messages. A retryable provider
// error is retried once.
func (c *Client) Complete(ctx context.Context, messages []proto.Message) (proto.Response, error) {
	resp, err := c.complete(ctx, messages)
	if err == nil || !retryable(err) {
		return resp, err
	}
	c.config.Log.Warn().Err(err).Str("api", c.config.API).Msg("retrying completion")
	select {
	case <-time.After(retryDelay):
	case <-ctx.Done():
		return proto.Response{}, ctx.Err()
	}
	return c.complete(ctx, messages)
}

func (c *Client) complete(ctx context.Context, messages []proto.Message) (proto.Response, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	model, err := c.provider.LanguageModel(ctx, c.config.Model)
	if err != nil {
		return proto.Response{}, describe(c.config.API, fmt.Errorf("fantasy language model: %w", err))
	}

	seq, err := model.Stream(ctx, c.buildCall(messages))
	if err != nil {
		return proto.Response{}, describe(c.config.API, fmt.Errorf("fantasy stream: %w", err))
	}

	resp, warnings, err := collect(seq)
	for _, w := range warnings {
		c.config.Log.Warn().Str("api", c.config.API).Msg(w)
	}
	if err != nil {
		return proto.Response{}, describe(c.config.API, err)
	}
	return resp, nil
}

func (c *Client) buildCall(messages []proto.Message) fantasy.Call {
	return fantasy.Call{
		Prompt:          toFantasyPrompt(messages),
		MaxOutputTokens: c.config.MaxTokens,
		Temperature:     c.config.Temperature,
		Tools:           c.tools,
		ToolChoice:      toolChoice(c.tools),
		ProviderOptions: fantasy.ProviderOptions{},
	}
}
