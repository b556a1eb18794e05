package proto

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTranscript(t *testing.T) {
	t.Run("seeds system and user", func(t *testing.T) {
		tr := NewTranscript("be helpful", "hi")
		msgs := tr.Messages()
		require.Len(t, msgs, 2)
		require.Equal(t, RoleSystem, msgs[0].Role)
		require.Equal(t, RoleUser, msgs[1].Role)
		require.Equal(t, "hi", msgs[1].Content)
	})

	t.Run("empty system prompt is skipped", func(t *testing.T) {
		tr := NewTranscript("", "hi")
		require.Equal(t, 1, tr.Len())
	})

	t.Run("tool message must answer a known call", func(t *testing.T) {
		tr := NewTranscript("sys", "hi")
		err := tr.Append(Message{Role: RoleTool, ToolCallID: "call_1", Content: "x"})
		require.True(t, errors.Is(err, ErrUnknownToolCall))
		require.Equal(t, 2, tr.Len())

		require.NoError(t, tr.Append(Message{
			Role:      RoleAssistant,
			ToolCalls: []ToolCall{{ID: "call_1", Name: "get_quote"}},
		}))
		require.NoError(t, tr.Append(Message{Role: RoleTool, ToolCallID: "call_1", Name: "get_quote", Content: "42"}))
		require.Equal(t, 4, tr.Len())
	})

	t.Run("assistant calls need ids", func(t *testing.T) {
		tr := NewTranscript("sys", "hi")
		require.Error(t, tr.Append(Message{Role: RoleAssistant, ToolCalls: []ToolCall{{Name: "x"}}}))
	})

	t.Run("unknown role", func(t *testing.T) {
		tr := NewTranscript("sys", "hi")
		require.Error(t, tr.Append(Message{Role: "robot"}))
	})

	t.Run("messages returns a copy", func(t *testing.T) {
		tr := NewTranscript("sys", "hi")
		msgs := tr.Messages()
		msgs[1].Content = "changed"
		require.Equal(t, "hi", tr.Messages()[1].Content)
	})
}

func TestNormalizeCalls(t *testing.T) {
	calls := NormalizeCalls([]ToolCall{
		{Name: "a"},
		{ID: "abc", Name: "b", Arguments: map[string]any{"x": 1}},
		{Name: "c"},
	})
	require.Equal(t, "call_1", calls[0].ID)
	require.Equal(t, "abc", calls[1].ID)
	require.Equal(t, "call_3", calls[2].ID)
	require.NotNil(t, calls[0].Arguments)
	require.Equal(t, 1, calls[1].Arguments["x"])
}
