package catalog

import (
	"encoding/json"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"
)

// Schema is the normalized parameter schema of a tool.
type Schema struct {
	Properties map[string]any
	Required   []string
}

// Object renders the schema as a JSON-Schema object.
func (s Schema) Object() map[string]any {
	props := s.Properties
	if props == nil {
		props = map[string]any{}
	}
	obj := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(s.Required) > 0 {
		obj["required"] = slices.Clone(s.Required)
	}
	return obj
}

type strategy struct {
	name    string
	extract func(mcp.Tool) (Schema, bool)
}

// strategies are tried in order; the first that yields a schema wins.
var strategies = []strategy{
	{name: "raw-input-schema", extract: fromRawSchema},
	{name: "declared-input-schema", extract: fromDeclaredSchema},
	{name: "untyped-properties", extract: fromUntypedProperties},
}

// ExtractSchema returns the parameter schema of a tool and the name of the
// strategy that produced it. A tool without a usable schema gets empty
// parameters and strategy "none".
func ExtractSchema(tool mcp.Tool) (Schema, string) {
	for _, s := range strategies {
		if schema, ok := s.extract(tool); ok {
			return schema, s.name
		}
	}
	return Schema{Properties: map[string]any{}}, "none"
}

func fromRawSchema(tool mcp.Tool) (Schema, bool) {
	if len(tool.RawInputSchema) == 0 {
		return Schema{}, false
	}
	var obj map[string]any
	if err := json.Unmarshal(tool.RawInputSchema, &obj); err != nil {
		return Schema{}, false
	}
	return normalize(obj)
}

func fromDeclaredSchema(tool mcp.Tool) (Schema, bool) {
	in := tool.InputSchema
	if in.Type != "object" || in.Properties == nil {
		return Schema{}, false
	}
	return Schema{Properties: in.Properties, Required: slices.Clone(in.Required)}, true
}

func fromUntypedProperties(tool mcp.Tool) (Schema, bool) {
	in := tool.InputSchema
	if in.Type != "" || len(in.Properties) == 0 {
		return Schema{}, false
	}
	return Schema{Properties: in.Properties, Required: slices.Clone(in.Required)}, true
}

// normalize reduces a JSON-Schema object to properties and required names.
func normalize(obj map[string]any) (Schema, bool) {
	if t, _ := obj["type"].(string); t != "object" {
		return Schema{}, false
	}
	props, ok := obj["properties"].(map[string]any)
	if !ok {
		return Schema{}, false
	}
	var required []string
	switch req := obj["required"].(type) {
	case []string:
		required = slices.Clone(req)
	case []any:
		for _, r := range req {
			if name, ok := r.(string); ok {
				required = append(required, name)
			}
		}
	}
	return Schema{Properties: props, Required: required}, true
}
