package fantasybridge

import (
	"encoding/json"
	"fmt"
	"strings"

	"charm.land/fantasy"

	"github.com/dotcommander/mcpagent/internal/proto"
)

// collect folds a fantasy part stream into one response. Warnings are
// returned deduplicated.
func collect(seq func(yield func(fantasy.StreamPart) bool)) (proto.Response, []string, error) {
	var text strings.Builder
	var calls []proto.ToolCall
	var warnings []string
	seenCalls := map[string]struct{}{}
	seenWarnings := map[string]struct{}{}

	for part := range seq {
		switch part.Type {
		case fantasy.StreamPartTypeTextDelta:
			text.WriteString(part.Delta)
		case fantasy.StreamPartTypeToolCall:
			if part.ProviderExecuted {
				continue
			}
			if part.ID != "" {
				if _, exists := seenCalls[part.ID]; exists {
					continue
				}
				seenCalls[part.ID] = struct{}{}
			}
			args, err := decodeArguments(part.ToolCallInput)
			if err != nil {
				return proto.Response{}, warnings, fmt.Errorf("tool call %s: %w", part.ToolCallName, err)
			}
			calls = append(calls, proto.ToolCall{ID: part.ID, Name: part.ToolCallName, Arguments: args})
		case fantasy.StreamPartTypeError:
			if part.Error != nil {
				return proto.Response{}, warnings, part.Error
			}
		case fantasy.StreamPartTypeWarnings:
			for _, warning := range part.Warnings {
				msg := warningText(warning)
				key := string(warning.Type) + ":" + msg
				if _, exists := seenWarnings[key]; exists {
					continue
				}
				seenWarnings[key] = struct{}{}
				warnings = append(warnings, msg)
			}
		default:
		}
	}

	return proto.Response{Content: text.String(), ToolCalls: calls}, warnings, nil
}

func warningText(w fantasy.CallWarning) string {
	if text := strings.TrimSpace(w.Message); text != "" {
		return text
	}
	if text := strings.TrimSpace(w.Details); text != "" {
		return text
	}
	if w.Setting != "" {
		return fmt.Sprintf("unsupported setting: %s", w.Setting)
	}
	return "provider warning"
}

func decodeArguments(input string) (map[string]any, error) {
	if strings.TrimSpace(input) == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return nil, fmt.Errorf("invalid arguments %q: %w", input, err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}
