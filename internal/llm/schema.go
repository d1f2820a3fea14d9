package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SchemaField defines a field in the expected output schema.
type SchemaField struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // string, number, integer, boolean
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Schema describes a flat JSON object the model must answer with.
type Schema struct {
	Name        string
	Description string
	Fields      []SchemaField
}

// JSONSchema renders the schema as a JSON Schema object.
func (s *Schema) JSONSchema() json.RawMessage {
	props := make(map[string]any, len(s.Fields))
	required := []string{}
	for _, f := range s.Fields {
		props[f.Name] = map[string]any{
			"type":        f.Type,
			"description": f.Description,
		}
		if f.Required {
			required = append(required, f.Name)
		}
	}
	out, _ := json.Marshal(map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	})
	return out
}

// Instruction is the system-prompt form of the schema.
func (s *Schema) Instruction() string {
	return fmt.Sprintf(`You must respond with ONLY a valid JSON object matching this schema:

%s

Do not include any text outside the JSON object. No markdown, no explanation.`, s.describe())
}

func (s *Schema) describe() string {
	var sb strings.Builder
	sb.WriteString("{\n")
	for i, f := range s.Fields {
		required := ""
		if f.Required {
			required = " (REQUIRED)"
		}
		fmt.Fprintf(&sb, `  "%s": <%s>%s // %s`, f.Name, f.Type, required, f.Description)
		if i < len(s.Fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}")
	return sb.String()
}

// StripCodeFence removes a surrounding markdown code fence, which some
// models add even when told not to.
func StripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
