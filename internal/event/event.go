// Package event defines the progress records an agent loop streams to its
// caller.
package event

import (
	"context"
	"encoding/json"
	"fmt"
)

// Type tags an Event.
type Type string

// Event types, in the order a caller usually sees them.
const (
	TypeStatus        Type = "status"
	TypeToolPlan      Type = "tool_plan"
	TypeToolStart     Type = "tool_start"
	TypeToolEnd       Type = "tool_end"
	TypeToolError     Type = "tool_error"
	TypeResponseStart Type = "ai_response_start"
	TypeResponseChunk Type = "ai_response_chunk"
	TypeResponseEnd   Type = "ai_response_end"
	TypeError         Type = "error"
)

// Event is one entry of the stream. Only the fields of its Type are set.
type Event struct {
	Type      Type           `json:"type"`
	Content   string         `json:"content,omitempty"`
	ToolCount int            `json:"tool_count,omitempty"`
	ToolID    string         `json:"tool_id,omitempty"`
	ToolName  string         `json:"tool_name,omitempty"`
	ToolArgs  map[string]any `json:"tool_args,omitempty"`
	Progress  string         `json:"progress,omitempty"`
	Result    string         `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Terminal reports whether the event ends a conversation.
func (e Event) Terminal() bool {
	return e.Type == TypeResponseEnd || e.Type == TypeError
}

type (
	contentPayload struct {
		Type    Type   `json:"type"`
		Content string `json:"content"`
	}
	planPayload struct {
		Type      Type   `json:"type"`
		Content   string `json:"content"`
		ToolCount int    `json:"tool_count"`
	}
	startPayload struct {
		Type     Type           `json:"type"`
		ToolID   string         `json:"tool_id"`
		ToolName string         `json:"tool_name"`
		ToolArgs map[string]any `json:"tool_args"`
		Progress string         `json:"progress"`
	}
	endPayload struct {
		Type     Type   `json:"type"`
		ToolID   string `json:"tool_id"`
		ToolName string `json:"tool_name"`
		Result   string `json:"result"`
	}
	errorPayload struct {
		Type   Type   `json:"type"`
		ToolID string `json:"tool_id"`
		Error  string `json:"error"`
	}
)

// MarshalJSON writes every payload field of the event's Type, including
// empty ones, and nothing else.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case TypeToolPlan:
		return json.Marshal(planPayload{e.Type, e.Content, e.ToolCount})
	case TypeToolStart:
		args := e.ToolArgs
		if args == nil {
			args = map[string]any{}
		}
		return json.Marshal(startPayload{e.Type, e.ToolID, e.ToolName, args, e.Progress})
	case TypeToolEnd:
		return json.Marshal(endPayload{e.Type, e.ToolID, e.ToolName, e.Result})
	case TypeToolError:
		return json.Marshal(errorPayload{e.Type, e.ToolID, e.Error})
	case TypeStatus, TypeResponseStart, TypeResponseChunk, TypeResponseEnd, TypeError:
		return json.Marshal(contentPayload{e.Type, e.Content})
	}
	type plain Event
	return json.Marshal(plain(e))
}

// Status builds a status event.
func Status(content string) Event {
	return Event{Type: TypeStatus, Content: content}
}

// ToolPlan builds a tool_plan event for n calls.
func ToolPlan(n int) Event {
	return Event{
		Type:      TypeToolPlan,
		Content:   fmt.Sprintf("model requested %d tool call(s)", n),
		ToolCount: n,
	}
}

// ToolStart builds a tool_start event. i is 1-based.
func ToolStart(id, name string, args map[string]any, i, n int) Event {
	return Event{
		Type:     TypeToolStart,
		ToolID:   id,
		ToolName: name,
		ToolArgs: args,
		Progress: fmt.Sprintf("%d/%d", i, n),
	}
}

// ToolEnd builds a tool_end event.
func ToolEnd(id, name, result string) Event {
	return Event{Type: TypeToolEnd, ToolID: id, ToolName: name, Result: result}
}

// ToolError builds a tool_error event.
func ToolError(id, msg string) Event {
	return Event{Type: TypeToolError, ToolID: id, Error: msg}
}

// ResponseStart builds an ai_response_start event.
func ResponseStart() Event {
	return Event{Type: TypeResponseStart, Content: "composing the answer..."}
}

// ResponseChunk builds an ai_response_chunk event.
func ResponseChunk(chunk string) Event {
	return Event{Type: TypeResponseChunk, Content: chunk}
}

// ResponseEnd builds an ai_response_end event carrying the full answer.
func ResponseEnd(full string) Event {
	return Event{Type: TypeResponseEnd, Content: full}
}

// Failure builds a terminal error event.
func Failure(content string) Event {
	return Event{Type: TypeError, Content: content}
}

// Sink receives events in emission order.
type Sink interface {
	Emit(ctx context.Context, e Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Event) error

// Emit implements Sink.
func (f SinkFunc) Emit(ctx context.Context, e Event) error {
	return f(ctx, e)
}

// Chan is a Sink writing to a channel. Emit blocks until the reader takes
// the event or ctx is done.
type Chan chan Event

// Emit implements Sink. A reader already waiting gets the event even when
// ctx is done.
func (c Chan) Emit(ctx context.Context, e Event) error {
	select {
	case c <- e:
		return nil
	default:
	}
	select {
	case c <- e:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("emit %s: %w", e.Type, ctx.Err())
	}
}
