package fantasybridge

import (
	"encoding/json"
	"errors"

	"charm.land/fantasy"

	"github.com/dotcommander/mcpagent/internal/catalog"
	"github.com/dotcommander/mcpagent/internal/proto"
)

func toFantasyPrompt(input []proto.Message) fantasy.Prompt {
	messages := make([]fantasy.Message, 0, len(input))

	for _, msg := range input {
		switch msg.Role {
		case proto.RoleSystem:
			messages = append(messages, textMessage(fantasy.MessageRoleSystem, msg.Content))
		case proto.RoleUser:
			messages = append(messages, textMessage(fantasy.MessageRoleUser, msg.Content))
		case proto.RoleAssistant:
			parts := make([]fantasy.MessagePart, 0, 1+len(msg.ToolCalls))
			if msg.Content != "" {
				parts = append(parts, fantasy.TextPart{Text: msg.Content})
			}
			for _, call := range msg.ToolCalls {
				parts = append(parts, fantasy.ToolCallPart{
					ToolCallID:       call.ID,
					ToolName:         call.Name,
					Input:            encodeArguments(call.Arguments),
					ProviderExecuted: false,
				})
			}
			if len(parts) > 0 {
				messages = append(messages, fantasy.Message{
					Role:    fantasy.MessageRoleAssistant,
					Content: parts,
				})
			}
		case proto.RoleTool:
			var output fantasy.ToolResultOutputContent
			if msg.IsError {
				output = fantasy.ToolResultOutputContentError{Error: errors.New(msg.Content)}
			} else {
				output = fantasy.ToolResultOutputContentText{Text: msg.Content}
			}
			messages = append(messages, fantasy.Message{
				Role: fantasy.MessageRoleTool,
				Content: []fantasy.MessagePart{
					fantasy.ToolResultPart{ToolCallID: msg.ToolCallID, Output: output},
				},
			})
		}
	}

	return messages
}

func textMessage(role fantasy.MessageRole, text string) fantasy.Message {
	return fantasy.Message{
		Role:    role,
		Content: []fantasy.MessagePart{fantasy.TextPart{Text: text}},
	}
}

func encodeArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	bts, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(bts)
}

func fromDescriptors(descs []catalog.Descriptor) []fantasy.Tool {
	tools := make([]fantasy.Tool, 0, len(descs))
	for _, d := range descs {
		tools = append(tools, fantasy.FunctionTool{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.Schema.Object(),
		})
	}
	return tools
}

func toolChoice(tools []fantasy.Tool) *fantasy.ToolChoice {
	if len(tools) == 0 {
		return nil
	}
	choice := fantasy.ToolChoiceAuto
	return &choice
}
