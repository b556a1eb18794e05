package catalog

import (
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
)

func TestExtractSchema(t *testing.T) {
	for name, tc := range map[string]struct {
		tool     mcp.Tool
		strategy string
		props    map[string]any
		required []string
	}{
		"raw schema wins": {
			tool: mcp.NewToolWithRawSchema("raw", "", json.RawMessage(
				`{"type":"object","properties":{"city":{"type":"string"}},"required":["city"]}`,
			)),
			strategy: "raw-input-schema",
			props:    map[string]any{"city": map[string]any{"type": "string"}},
			required: []string{"city"},
		},
		"declared schema": {
			tool:     mcp.NewTool("declared", mcp.WithNumber("days", mcp.Required())),
			strategy: "declared-input-schema",
			props:    map[string]any{"days": map[string]any{"type": "number"}},
			required: []string{"days"},
		},
		"properties without a type": {
			tool: mcp.Tool{Name: "untyped", InputSchema: mcp.ToolInputSchema{
				Properties: map[string]any{"q": map[string]any{"type": "string"}},
			}},
			strategy: "untyped-properties",
			props:    map[string]any{"q": map[string]any{"type": "string"}},
		},
		"raw schema that is not an object falls through": {
			tool:     mcp.NewToolWithRawSchema("array", "", json.RawMessage(`{"type":"array"}`)),
			strategy: "none",
			props:    map[string]any{},
		},
		"no schema at all": {
			tool:     mcp.Tool{Name: "bare"},
			strategy: "none",
			props:    map[string]any{},
		},
	} {
		t.Run(name, func(t *testing.T) {
			schema, strategy := ExtractSchema(tc.tool)
			require.Equal(t, tc.strategy, strategy)
			require.Equal(t, tc.props, schema.Properties)
			require.Equal(t, tc.required, schema.Required)
		})
	}
}

func TestSchemaObject(t *testing.T) {
	obj := Schema{Required: []string{"a"}}.Object()
	require.Equal(t, map[string]any{
		"type":       "object",
		"properties": map[string]any{},
		"required":   []string{"a"},
	}, obj)

	require.NotContains(t, Schema{}.Object(), "required")
}
