package event

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEventJSON(t *testing.T) {
	t.Run("tool_start", func(t *testing.T) {
		bts, err := json.Marshal(ToolStart("call_1", "get_quote", map[string]any{"symbol": "AAPL"}, 1, 2))
		require.NoError(t, err)
		require.JSONEq(t, `{
			"type": "tool_start",
			"tool_id": "call_1",
			"tool_name": "get_quote",
			"tool_args": {"symbol": "AAPL"},
			"progress": "1/2"
		}`, string(bts))
	})

	t.Run("tool_plan", func(t *testing.T) {
		bts, err := json.Marshal(ToolPlan(3))
		require.NoError(t, err)
		require.JSONEq(t, `{"type":"tool_plan","content":"model requested 3 tool call(s)","tool_count":3}`, string(bts))
	})

	t.Run("empty payload fields are kept", func(t *testing.T) {
		for name, tc := range map[string]struct {
			event Event
			want  string
		}{
			"tool_start": {ToolStart("c1", "noop", nil, 1, 1), `{"type":"tool_start","tool_id":"c1","tool_name":"noop","tool_args":{},"progress":"1/1"}`},
			"tool_end":   {ToolEnd("c1", "noop", ""), `{"type":"tool_end","tool_id":"c1","tool_name":"noop","result":""}`},
			"tool_error": {ToolError("c1", ""), `{"type":"tool_error","tool_id":"c1","error":""}`},
			"tool_plan":  {Event{Type: TypeToolPlan}, `{"type":"tool_plan","content":"","tool_count":0}`},
			"status":     {Status(""), `{"type":"status","content":""}`},
			"chunk":      {ResponseChunk(""), `{"type":"ai_response_chunk","content":""}`},
			"end":        {ResponseEnd(""), `{"type":"ai_response_end","content":""}`},
			"error":      {Failure(""), `{"type":"error","content":""}`},
		} {
			t.Run(name, func(t *testing.T) {
				bts, err := json.Marshal(tc.event)
				require.NoError(t, err)
				require.JSONEq(t, tc.want, string(bts))
			})
		}
	})

	t.Run("decodes back", func(t *testing.T) {
		in := ToolEnd("c1", "get_quote", "42.00")
		bts, err := json.Marshal(in)
		require.NoError(t, err)
		var out Event
		require.NoError(t, json.Unmarshal(bts, &out))
		require.Equal(t, in, out)
	})

	t.Run("tool_error", func(t *testing.T) {
		bts, err := json.Marshal(ToolError("call_2", "boom"))
		require.NoError(t, err)
		require.JSONEq(t, `{"type":"tool_error","tool_id":"call_2","error":"boom"}`, string(bts))
	})
}

func TestTerminal(t *testing.T) {
	require.True(t, ResponseEnd("x").Terminal())
	require.True(t, Failure("x").Terminal())
	require.False(t, Status("x").Terminal())
	require.False(t, ResponseChunk("x").Terminal())
}

func TestChanRespectsContext(t *testing.T) {
	ch := make(Chan)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.Error(t, ch.Emit(ctx, Status("nobody listens")))
}

func TestChanDeliversToWaitingReader(t *testing.T) {
	ch := make(Chan)
	got := make(chan Event)
	go func() { got <- <-ch }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Eventually(t, func() bool {
		return ch.Emit(ctx, Failure("request cancelled")) == nil
	}, time.Second, time.Millisecond)
	require.Equal(t, Failure("request cancelled"), <-got)
}
