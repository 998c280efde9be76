package governance

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Per-kind JSON Schemas for gated action params. Validation happens when a
// change is queued so the king never reviews a structurally broken request;
// re-dispatch trusts the stored payload.
var schemaSources = map[ActionKind]string{
	ActionModifyCode: `{
		"type": "object",
		"required": ["filePath", "content"],
		"properties": {
			"filePath": {"type": "string", "minLength": 1},
			"content": {"type": "string"},
			"commitMessage": {"type": "string"}
		}
	}`,
	ActionCreateComponent: `{
		"type": "object",
		"required": ["name"],
		"properties": {
			"name": {"type": "string", "minLength": 1},
			"html": {"type": "string"},
			"js": {"type": "string"},
			"css": {"type": "string"},
			"targetUsers": {"type": "array", "items": {"type": "string"}}
		}
	}`,
	ActionDeploy: `{
		"type": "object"
	}`,
	ActionModifyUser: `{
		"type": "object",
		"required": ["userId", "changes"],
		"properties": {
			"userId": {"type": ["string", "number"]},
			"changes": {
				"type": "object",
				"properties": {
					"role": {"enum": ["king", "admin", "support", "twin", "viewer"]},
					"status": {"type": "string"}
				}
			}
		}
	}`,
	ActionApproveRequest: `{
		"type": "object",
		"required": ["requestId"],
		"properties": {
			"requestId": {"type": ["string", "number"]},
			"reviewerId": {"type": ["string", "number"]}
		}
	}`,
}

// ParamValidator validates gated action params against the schemas above.
type ParamValidator struct {
	schemas map[ActionKind]*jsonschema.Schema
}

// NewParamValidator compiles the embedded schemas.
func NewParamValidator() (*ParamValidator, error) {
	schemas := make(map[ActionKind]*jsonschema.Schema, len(schemaSources))
	for kind, src := range schemaSources {
		schema, err := jsonschema.CompileString(string(kind)+".json", src)
		if err != nil {
			return nil, fmt.Errorf("compile schema for %s: %w", kind, err)
		}
		schemas[kind] = schema
	}
	return &ParamValidator{schemas: schemas}, nil
}

// Validate checks params for a kind. Kinds without a schema pass.
func (v *ParamValidator) Validate(kind ActionKind, params map[string]any) error {
	schema, ok := v.schemas[kind]
	if !ok {
		return nil
	}
	value := any(params)
	if params == nil {
		value = map[string]any{}
	}
	if err := schema.Validate(value); err != nil {
		return &InvalidParamsError{Action: kind, Err: err}
	}
	return nil
}
