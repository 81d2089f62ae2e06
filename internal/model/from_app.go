package model

import (
	"fmt"

	apperrors "github.com/alexisbeaulieu97/appflow/pkg/errors"
)

// SingleStepID is the step id and app name used by FromApp.
const SingleStepID = "app"

// FromApp wraps app in a one-step pipeline whose inputs and outputs are wired
// to pipeline-level ports of the same names. A validation failure of the
// result means the wrapping itself is wrong, not the caller's input.
func FromApp(app *App) (*Pipeline, error) {
	if app == nil || app.Schema == nil {
		return nil, apperrors.NewValidationError("app", "app has no schema", nil)
	}

	inputs := make(map[string]Connections, len(app.Schema.Inputs))
	for _, port := range app.Schema.Inputs {
		inputs[port.ID] = Connections{port.ID}
	}
	outputs := make(map[string]Connections, len(app.Schema.Outputs))
	for _, port := range app.Schema.Outputs {
		outputs[port.ID] = Connections{port.ID}
	}

	pipeline := &Pipeline{
		Apps: map[string]*App{SingleStepID: app},
		Steps: []Step{{
			ID:      SingleStepID,
			App:     AppRef{Name: SingleStepID},
			Inputs:  inputs,
			Outputs: outputs,
		}},
	}
	if err := pipeline.Validate(); err != nil {
		return nil, err
	}
	return pipeline, nil
}

// AsPipeline returns m itself when it is a pipeline and wraps apps with FromApp.
func AsPipeline(m Model) (*Pipeline, error) {
	switch val := m.(type) {
	case nil:
		return nil, apperrors.NewValidationError(TypeField, "document is null", nil)
	case *Pipeline:
		return val, nil
	case *App:
		return FromApp(val)
	default:
		return nil, apperrors.NewValidationError(TypeField, fmt.Sprintf("%s cannot be run as a pipeline", m.Type()), nil)
	}
}
