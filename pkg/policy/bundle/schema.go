package bundle

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kaptinlin/jsonschema"
)

// SchemaJSON is the JSON Schema every bundle document must satisfy.
const SchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "PolicyBundle",
  "type": "object",
  "required": ["rules"],
  "additionalProperties": false,
  "properties": {
    "version": {"type": "string", "maxLength": 128},
    "rules": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "effect", "reason"],
        "additionalProperties": false,
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "effect": {"enum": ["allow", "deny", "escalate"]},
          "action": {"type": "string"},
          "resource": {"type": "string"},
          "actor": {"type": "string"},
          "min_risk": {"enum": ["low", "medium", "high", "critical"]},
          "reason": {"type": "string"},
          "priority": {"type": "integer"}
        }
      }
    },
    "rate_limits": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["action_class", "window_seconds", "max_requests"],
        "additionalProperties": false,
        "properties": {
          "action_class": {"type": "string", "minLength": 1},
          "window_seconds": {"type": "integer", "minimum": 1},
          "max_requests": {"type": "integer", "minimum": 1}
        }
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiledSchema, schemaErr = compiler.Compile([]byte(SchemaJSON))
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile bundle schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// validateSchema checks a JSON document against SchemaJSON and returns the
// violations, sorted.
func validateSchema(data []byte) ([]string, error) {
	schema, err := loadSchema()
	if err != nil {
		return nil, err
	}
	result := schema.ValidateJSON(data)
	if result.IsValid() {
		return nil, nil
	}
	reasons := make([]string, 0, len(result.Errors))
	for keyword, detail := range result.Errors {
		reasons = append(reasons, fmt.Sprintf("schema %s: %v", keyword, detail))
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "schema validation failed")
	}
	sort.Strings(reasons)
	return reasons, nil
}
