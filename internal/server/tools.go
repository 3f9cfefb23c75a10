package server

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ironsheep/doc-intake-mcp/internal/document"
)

// Tool represents an MCP tool definition
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

func kindNames() []string {
	out := make([]string, len(document.Kinds))
	for i, k := range document.Kinds {
		out[i] = string(k)
	}
	return out
}

var sessionIDProperty = map[string]any{
	"type":        "string",
	"minLength":   1,
	"description": "Chat session the upload belongs to",
}

// ToolDefinitions returns all available tools
func ToolDefinitions() []Tool {
	return []Tool{
		{
			Name: "document_upload",
			Description: "Read a photographed identity card, driver's license or vehicle log card and add its fields " +
				"to the session's record. The identity card must come first. Provide either a file path or base64 image data.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"session_id": sessionIDProperty,
					"kind": map[string]any{
						"type":        "string",
						"enum":        kindNames(),
						"description": "Which document the photo shows",
					},
					"path": map[string]any{
						"type":        "string",
						"minLength":   1,
						"description": "Absolute path to the photo (PNG, JPEG or GIF)",
					},
					"image_base64": map[string]any{
						"type":        "string",
						"minLength":   1,
						"description": "Base64-encoded photo bytes",
					},
				},
				"required": []string{"session_id", "kind"},
				"oneOf": []any{
					map[string]any{"required": []string{"path"}},
					map[string]any{"required": []string{"image_base64"}},
				},
				"additionalProperties": false,
			},
		},
		{
			Name:        "session_status",
			Description: "Report which documents a session has contributed, the merged fields and what is expected next.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"session_id": sessionIDProperty,
				},
				"required":             []string{"session_id"},
				"additionalProperties": false,
			},
		},
		{
			Name:        "session_contact",
			Description: "Attach a contact name and phone number to the session's record. Requires an identity card.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"session_id": sessionIDProperty,
					"name": map[string]any{
						"type":        "string",
						"description": "Contact name",
					},
					"phone": map[string]any{
						"type":        "string",
						"pattern":     `^\+?[0-9 ()-]{6,20}$`,
						"description": "Contact phone number",
					},
				},
				"required":             []string{"session_id"},
				"anyOf":                []any{map[string]any{"required": []string{"name"}}, map[string]any{"required": []string{"phone"}}},
				"additionalProperties": false,
			},
		},
		{
			Name:        "record_retry_export",
			Description: "Retry the workflow board export of a complete record whose earlier export failed.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"person_key": map[string]any{
						"type":        "string",
						"pattern":     `^[a-z0-9_]+$`,
						"description": "Person key as reported by document_upload",
					},
				},
				"required":             []string{"person_key"},
				"additionalProperties": false,
			},
		},
	}
}

// compileSchemas compiles each tool's input schema for argument validation.
func compileSchemas(tools []Tool) (map[string]*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	for _, t := range tools {
		b, err := json.Marshal(t.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("marshal %s schema: %w", t.Name, err)
		}
		if err := compiler.AddResource(t.Name+".json", bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("add %s schema: %w", t.Name, err)
		}
	}

	out := make(map[string]*jsonschema.Schema, len(tools))
	for _, t := range tools {
		schema, err := compiler.Compile(t.Name + ".json")
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", t.Name, err)
		}
		out[t.Name] = schema
	}
	return out, nil
}

// validateArgs checks raw tool arguments against the tool's schema.
func validateArgs(schema *jsonschema.Schema, args json.RawMessage) error {
	if len(bytes.TrimSpace(args)) == 0 {
		args = json.RawMessage("{}")
	}
	var v any
	if err := json.Unmarshal(args, &v); err != nil {
		return fmt.Errorf("arguments are not JSON: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("arguments do not match schema: %w", err)
	}
	return nil
}
