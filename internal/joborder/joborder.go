// Package joborder checks job orders, the documents that bind values to a
// pipeline's external inputs, against the inputs inferred from the pipeline.
package joborder

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/kaptinlin/jsonschema"

	"github.com/alexisbeaulieu97/appflow/internal/model"
	apperrors "github.com/alexisbeaulieu97/appflow/pkg/errors"
)

// InputsField is the job order key holding input values. Job orders without
// it are treated as a bare input mapping.
const InputsField = "inputs"

// SchemaFor builds the JSON Schema of a job order's inputs: one property per
// external input, arrays for list inputs, anything but an array otherwise.
func SchemaFor(inputs map[string]model.Port) map[string]any {
	properties := make(map[string]any, len(inputs))
	required := make([]any, 0)
	for _, id := range sortedIDs(inputs) {
		port := inputs[id]
		if port.List {
			properties[id] = map[string]any{"type": "array"}
		} else {
			properties[id] = map[string]any{"not": map[string]any{"type": "array"}}
		}
		if port.Required {
			required = append(required, id)
		}
	}

	schema := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Checker validates job orders against a compiled input schema.
type Checker struct {
	inputs map[string]model.Port
	schema *jsonschema.Schema
}

// NewChecker compiles the schema for inputs.
func NewChecker(inputs map[string]model.Port) (*Checker, error) {
	raw, err := json.Marshal(SchemaFor(inputs))
	if err != nil {
		return nil, fmt.Errorf("encode input schema: %w", err)
	}
	compiled, err := jsonschema.NewCompiler().Compile(raw)
	if err != nil {
		return nil, fmt.Errorf("compile input schema: %w", err)
	}
	return &Checker{inputs: inputs, schema: compiled}, nil
}

// Check compiles the schema for inputs and validates job against it.
func Check(inputs map[string]model.Port, job any) error {
	checker, err := NewChecker(inputs)
	if err != nil {
		return err
	}
	return checker.Check(job)
}

// Check validates job. Every mismatch is listed in the returned
// ValidationError's Problems.
func (c *Checker) Check(job any) error {
	values, ok := model.Normalize(job).(model.Document)
	if !ok {
		return apperrors.NewValidationError(InputsField, fmt.Sprintf("job order is %T, expected mapping", job), nil)
	}
	if nested, present := values[InputsField]; present {
		if values, ok = nested.(model.Document); !ok {
			return apperrors.NewValidationError(InputsField, "inputs must be a mapping", nil)
		}
	}

	instance, err := jsonValue(values)
	if err != nil {
		return apperrors.NewValidationError(InputsField, "job order is not representable as JSON", err)
	}
	result := c.schema.Validate(instance)
	if result.IsValid() {
		return nil
	}

	problems := c.describe(values)
	if len(problems) == 0 {
		problems = []string{result.Error()}
	}
	verr := apperrors.NewValidationProblems(InputsField, problems).(*apperrors.ValidationError)
	verr.Err = errors.New(result.Error())
	return verr
}

func (c *Checker) describe(values model.Document) []string {
	var problems []string
	for _, id := range sortedIDs(c.inputs) {
		port := c.inputs[id]
		value, present := values[id]
		switch {
		case !present:
			if port.Required {
				problems = append(problems, fmt.Sprintf("missing required input %q", id))
			}
		case port.List:
			if _, isList := value.([]any); !isList {
				problems = append(problems, fmt.Sprintf("input %q expects a list", id))
			}
		default:
			if _, isList := value.([]any); isList {
				problems = append(problems, fmt.Sprintf("input %q expects a single value", id))
			}
		}
	}

	unknown := make([]string, 0)
	for id := range values {
		if _, declared := c.inputs[id]; !declared {
			unknown = append(unknown, id)
		}
	}
	sort.Strings(unknown)
	for _, id := range unknown {
		problems = append(problems, fmt.Sprintf("unknown input %q", id))
	}
	return problems
}

// jsonValue round-trips v through JSON so the validator only sees JSON types.
func jsonValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func sortedIDs(inputs map[string]model.Port) []string {
	ids := make([]string, 0, len(inputs))
	for id := range inputs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
