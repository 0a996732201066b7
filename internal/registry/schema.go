package registry

import (
	"fmt"

	"github.com/kaptinlin/jsonschema"

	"github.com/aigoflow/proof-service/internal/models"
)

// descriptorSchema is the registration contract for model descriptors,
// both on-disk model.json files and upload payloads.
const descriptorSchema = `{
	"type": "object",
	"required": ["id", "name", "input_type", "input_dim", "labels", "trace_length"],
	"properties": {
		"id": {"type": "string", "minLength": 1, "maxLength": 128, "pattern": "^[a-z0-9][a-z0-9_-]*$"},
		"name": {"type": "string", "minLength": 1, "maxLength": 256},
		"description": {"type": "string", "maxLength": 2048},
		"input_type": {"enum": ["text", "structured_fields", "raw"]},
		"input_dim": {"type": "integer", "minimum": 1, "maximum": 65536},
		"labels": {
			"type": "array",
			"minItems": 1,
			"maxItems": 1024,
			"items": {"type": "string", "minLength": 1}
		},
		"trace_length": {"type": "integer", "minimum": 1},
		"fields": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name", "min", "max"],
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"description": {"type": "string"},
					"min": {"type": "integer"},
					"max": {"type": "integer"}
				}
			}
		},
		"metadata": {
			"type": "object",
			"additionalProperties": {"type": "string"}
		}
	}
}`

var compiledSchema *jsonschema.Schema

func init() {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile([]byte(descriptorSchema))
	if err != nil {
		panic(fmt.Sprintf("registry: descriptor schema does not compile: %v", err))
	}
	compiledSchema = schema
}

// ValidateDescriptor checks a raw descriptor document against the
// registration schema, reporting the specific violation.
func ValidateDescriptor(raw []byte) error {
	result := compiledSchema.ValidateJSON(raw)
	if result.IsValid() {
		return nil
	}
	return models.Invalid("descriptor validation failed: %v", result.Errors)
}
