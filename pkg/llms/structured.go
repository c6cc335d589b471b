package llms

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"
	schemavalidate "github.com/santhosh-tekuri/jsonschema/v6"
)

// SchemaFor derives a JSON schema object from a Go struct type.
func SchemaFor(v interface{}) (map[string]interface{}, error) {
	reflector := &jsonschema.Reflector{
		DoNotReference: true,
		Anonymous:      true,
	}
	schema := reflector.Reflect(v)

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	return out, nil
}

// jsonInstruction renders the text-mode instruction appended to the last
// user message when a model without native structured output must emit
// JSON.
func jsonInstruction(schema map[string]interface{}) string {
	var fields []string
	if props, ok := schema["properties"].(map[string]interface{}); ok {
		names := make([]string, 0, len(props))
		for name := range props {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			info, _ := props[name].(map[string]interface{})
			fieldType, _ := info["type"].(string)
			if fieldType == "" {
				fieldType = "string"
			}
			desc, _ := info["description"].(string)
			fields = append(fields, fmt.Sprintf("  %q: <%s> - %s", name, fieldType, desc))
		}
	}

	return fmt.Sprintf(`

IMPORTANT: You must respond with a valid JSON object (NOT the schema itself).

Required JSON format:
{
%s
}

Respond ONLY with a JSON object containing actual values for these fields. Do NOT return the schema definition itself.`,
		strings.Join(fields, "\n"))
}

// stripCodeFences removes a markdown code fence wrapper, preferring a
// ```json fence over a generic one.
func stripCodeFences(text string) string {
	if idx := strings.Index(text, "```json"); idx >= 0 {
		start := idx + len("```json")
		if end := strings.Index(text[start:], "```"); end > 0 {
			return strings.TrimSpace(text[start : start+end])
		}
	}
	if idx := strings.Index(text, "```"); idx >= 0 {
		start := idx + len("```")
		if end := strings.Index(text[start:], "```"); end > 0 {
			return strings.TrimSpace(text[start : start+end])
		}
	}
	return strings.TrimSpace(text)
}

// ExtractJSON pulls the first balanced JSON object out of model text.
// Code fences are stripped first; prose around the object is ignored.
func ExtractJSON(text string) (string, error) {
	text = stripCodeFences(text)

	start := strings.Index(text, "{")
	if start < 0 {
		return "", fmt.Errorf("no JSON object found in response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1], nil
				}
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON object in response")
}

// ValidateJSON checks a JSON document against a schema and decodes it
// into out on success.
func ValidateJSON(doc string, schema map[string]interface{}, out interface{}) error {
	schemaData, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}
	schemaDoc, err := schemavalidate.UnmarshalJSON(bytes.NewReader(schemaData))
	if err != nil {
		return fmt.Errorf("failed to parse schema: %w", err)
	}

	compiler := schemavalidate.NewCompiler()
	if err := compiler.AddResource("schema.json", schemaDoc); err != nil {
		return fmt.Errorf("failed to register schema: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("failed to compile schema: %w", err)
	}

	value, err := schemavalidate.UnmarshalJSON(strings.NewReader(doc))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := compiled.Validate(value); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	return json.Unmarshal([]byte(doc), out)
}
