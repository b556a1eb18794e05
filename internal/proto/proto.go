// Package proto holds the conversation types shared by the agent loop, the
// tool dispatcher and the model completion bridge.
package proto

import (
	"errors"
	"fmt"
	"strings"
)

// Role is the author of a message.
type Role string

// Roles accepted in a transcript.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ErrUnknownToolCall is returned when a tool message answers a call id that no
// assistant message in the transcript requested.
var ErrUnknownToolCall = errors.New("tool message references an unknown tool call")

// ToolCall is a model-requested tool invocation.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Message is one turn in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// ToolCalls is only set on assistant messages.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID and Name are only set on tool messages.
	ToolCallID string `json:"tool_call_id,omitempty"`
	Name       string `json:"name,omitempty"`
	IsError    bool   `json:"is_error,omitempty"`
}

// Response is what the model returned for one completion round.
type Response struct {
	Content   string
	ToolCalls []ToolCall
}

// HasToolCalls reports whether the model asked for at least one tool.
func (r Response) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// SyntheticCallID is the positional id given to a call the model left
// without one. Position is 1-based and only unique within a single response.
func SyntheticCallID(position int) string {
	return fmt.Sprintf("call_%d", position)
}

// NormalizeCalls fills in missing call ids and nil argument maps.
func NormalizeCalls(calls []ToolCall) []ToolCall {
	out := make([]ToolCall, len(calls))
	for i, call := range calls {
		if call.ID == "" {
			call.ID = SyntheticCallID(i + 1)
		}
		if call.Arguments == nil {
			call.Arguments = map[string]any{}
		}
		out[i] = call
	}
	return out
}

// Transcript is the append-only message history of one conversation.
//
// It is not safe for concurrent use; each conversation owns its own.
type Transcript struct {
	messages []Message
	calls    map[string]struct{}
}

// NewTranscript seeds a transcript with a system prompt and the user message.
func NewTranscript(system, user string) *Transcript {
	t := &Transcript{calls: map[string]struct{}{}}
	if system != "" {
		t.messages = append(t.messages, Message{Role: RoleSystem, Content: system})
	}
	t.messages = append(t.messages, Message{Role: RoleUser, Content: user})
	return t
}

// Append adds msg to the end of the transcript.
func (t *Transcript) Append(msg Message) error {
	if t.calls == nil {
		t.calls = map[string]struct{}{}
	}
	switch msg.Role {
	case RoleSystem, RoleUser:
	case RoleAssistant:
		for _, call := range msg.ToolCalls {
			if call.ID == "" {
				return fmt.Errorf("assistant tool call %q has no id", call.Name)
			}
			t.calls[call.ID] = struct{}{}
		}
	case RoleTool:
		if _, ok := t.calls[msg.ToolCallID]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownToolCall, msg.ToolCallID)
		}
	default:
		return fmt.Errorf("unknown role %q", msg.Role)
	}
	t.messages = append(t.messages, msg)
	return nil
}

// Messages returns a copy of the transcript.
func (t *Transcript) Messages() []Message {
	return append([]Message(nil), t.messages...)
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	return len(t.messages)
}

// String renders the transcript as a readable log, mostly for debugging.
func (t *Transcript) String() string {
	var sb strings.Builder
	for _, msg := range t.messages {
		switch msg.Role {
		case RoleTool:
			fmt.Fprintf(&sb, "[tool %s] %s\n", msg.Name, msg.Content)
		case RoleAssistant:
			fmt.Fprintf(&sb, "[assistant] %s\n", msg.Content)
			for _, call := range msg.ToolCalls {
				fmt.Fprintf(&sb, "  -> %s(%s)\n", call.Name, call.ID)
			}
		default:
			fmt.Fprintf(&sb, "[%s] %s\n", msg.Role, msg.Content)
		}
	}
	return sb.String()
}
