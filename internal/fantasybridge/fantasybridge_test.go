package fantasybridge

import (
	"errors"
	"fmt"
	"testing"

	"charm.land/fantasy"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/mcpagent/internal/catalog"
	"github.com/dotcommander/mcpagent/internal/errs"
	"github.com/dotcommander/mcpagent/internal/proto"
)

func parts(ps ...fantasy.StreamPart) func(func(fantasy.StreamPart) bool) {
	return func(yield func(fantasy.StreamPart) bool) {
		for _, p := range ps {
			if !yield(p) {
				return
			}
		}
	}
}

func TestNewRouting(t *testing.T) {
	for name, cfg := range map[string]Config{
		"openai":             {API: "openai", Model: "gpt-4o-mini"},
		"anthropic":          {API: "anthropic", Model: "sonnet", APIKey: "token", BaseURL: "https://example.com/v1"},
		"azure-ad alias":     {API: "azure-ad", Model: "gpt", APIKey: "token", BaseURL: "https://example.openai.azure.com"},
		"openrouter":         {API: "openrouter", Model: "x", APIKey: "token"},
		"deepseek compat":    {API: "deepseek", Model: "deepseek-chat", BaseURL: "https://api.deepseek.com/v1"},
		"ollama without key": {API: "ollama", Model: "llama3", BaseURL: "http://localhost:11434/v1"},
	} {
		t.Run(name, func(t *testing.T) {
			client, err := New(cfg, nil)
			require.NoError(t, err)
			require.NotNil(t, client)
		})
	}

	t.Run("missing provider config returns error", func(t *testing.T) {
		client, err := New(Config{}, nil)
		require.Error(t, err)
		require.Nil(t, client)
	})
}

func TestBuildCall(t *testing.T) {
	temp := 0.2
	tokens := int64(512)
	client, err := New(Config{API: "deepseek", Model: "deepseek-chat", Temperature: &temp, MaxTokens: &tokens}, []catalog.Descriptor{
		{Name: "get_quote", Description: "quote", Schema: catalog.Schema{
			Properties: map[string]any{"symbol": map[string]any{"type": "string"}},
			Required:   []string{"symbol"},
		}},
	})
	require.NoError(t, err)

	call := client.buildCall([]proto.Message{{Role: proto.RoleUser, Content: "hi"}})
	require.Len(t, call.Prompt, 1)
	require.Equal(t, &temp, call.Temperature)
	require.Equal(t, &tokens, call.MaxOutputTokens)
	require.Len(t, call.Tools, 1)
	require.NotNil(t, call.ToolChoice)
	require.Equal(t, fantasy.ToolChoiceAuto, *call.ToolChoice)

	fn, ok := call.Tools[0].(fantasy.FunctionTool)
	require.True(t, ok)
	require.Equal(t, "get_quote", fn.Name)
	require.Equal(t, "object", fn.InputSchema["type"])
	require.Equal(t, []string{"symbol"}, fn.InputSchema["required"])

	bare, err := New(Config{API: "deepseek", Model: "deepseek-chat"}, nil)
	require.NoError(t, err)
	require.Nil(t, bare.buildCall(nil).ToolChoice)
}

func TestCollect(t *testing.T) {
	t.Run("text and tool calls", func(t *testing.T) {
		resp, warnings, err := collect(parts(
			fantasy.StreamPart{Type: fantasy.StreamPartTypeTextDelta, Delta: "checking "},
			fantasy.StreamPart{Type: fantasy.StreamPartTypeTextDelta, Delta: "the quote"},
			fantasy.StreamPart{Type: fantasy.StreamPartTypeToolCall, ID: "tc_1", ToolCallName: "get_quote", ToolCallInput: `{"symbol":"AAPL"}`},
			fantasy.StreamPart{Type: fantasy.StreamPartTypeToolCall, ID: "tc_1", ToolCallName: "get_quote", ToolCallInput: `{"symbol":"AAPL"}`},
			fantasy.StreamPart{Type: fantasy.StreamPartTypeToolCall, ToolCallName: "get_news"},
			fantasy.StreamPart{Type: fantasy.StreamPartTypeToolCall, ID: "srv", ToolCallName: "web_search", ProviderExecuted: true},
			fantasy.StreamPart{Type: fantasy.StreamPartTypeFinish},
		))
		require.NoError(t, err)
		require.Empty(t, warnings)
		require.Equal(t, proto.Response{
			Content: "checking the quote",
			ToolCalls: []proto.ToolCall{
				{ID: "tc_1", Name: "get_quote", Arguments: map[string]any{"symbol": "AAPL"}},
				{Name: "get_news", Arguments: map[string]any{}},
			},
		}, resp)
	})

	t.Run("invalid arguments fail the round", func(t *testing.T) {
		_, _, err := collect(parts(
			fantasy.StreamPart{Type: fantasy.StreamPartTypeToolCall, ID: "tc_1", ToolCallName: "get_quote", ToolCallInput: `{"symbol":`},
		))
		require.ErrorContains(t, err, "get_quote")
	})

	t.Run("stream error", func(t *testing.T) {
		_, _, err := collect(parts(
			fantasy.StreamPart{Type: fantasy.StreamPartTypeTextDelta, Delta: "partial"},
			fantasy.StreamPart{Type: fantasy.StreamPartTypeError, Error: errors.New("connection reset")},
		))
		require.EqualError(t, err, "connection reset")
	})

	t.Run("warnings are deduplicated", func(t *testing.T) {
		_, warnings, err := collect(parts(fantasy.StreamPart{
			Type: fantasy.StreamPartTypeWarnings,
			Warnings: []fantasy.CallWarning{
				{Type: fantasy.CallWarningTypeUnsupportedSetting, Setting: "top_k"},
				{Type: fantasy.CallWarningTypeUnsupportedSetting, Setting: "top_k"},
			},
		}))
		require.NoError(t, err)
		require.Equal(t, []string{"unsupported setting: top_k"}, warnings)
	})
}

func TestDescribe(t *testing.T) {
	t.Run("plain error", func(t *testing.T) {
		err := describe("deepseek", errors.New("dial tcp: refused"))
		var e errs.Error
		require.ErrorAs(t, err, &e)
		require.Equal(t, "There was a problem with the deepseek API request.", e.Reason)
	})

	t.Run("missing model", func(t *testing.T) {
		err := describe("openai", fmt.Errorf("fantasy stream: %w", &fantasy.ProviderError{StatusCode: 404}))
		var e errs.Error
		require.ErrorAs(t, err, &e)
		require.Contains(t, e.Reason, "model")
	})

	t.Run("context length", func(t *testing.T) {
		err := describe("openai", &fantasy.ProviderError{StatusCode: 400, Message: "context_length_exceeded"})
		var e errs.Error
		require.ErrorAs(t, err, &e)
		require.Equal(t, "Maximum prompt size exceeded.", e.Reason)
	})

	t.Run("retryable", func(t *testing.T) {
		require.False(t, retryable(errors.New("x")))
		require.False(t, retryable(describe("openai", &fantasy.ProviderError{StatusCode: 400})))
	})
}
