package model

import (
	"fmt"

	apperrors "github.com/alexisbeaulieu97/appflow/pkg/errors"
)

// Inputs infers the pipeline-level inputs: every unqualified connection feeding
// a step input. When one external input feeds several step inputs the
// descriptors are merged into the loosest schema every consumer accepts: it is
// required if any consumer requires it, and a list only if every consumer
// accepts a list.
//
// Inputs does not validate the pipeline; it only fails when a step's app cannot
// be resolved or does not declare the input being wired.
func (p *Pipeline) Inputs() (map[string]Port, error) {
	result := make(map[string]Port)

	for i := range p.Steps {
		step := &p.Steps[i]
		for _, inputID := range sortedKeys(step.Inputs) {
			for _, conn := range step.Inputs[inputID] {
				if !IsExternal(conn) {
					continue
				}

				app, err := p.AppFor(step)
				if err != nil {
					return nil, err
				}
				port, ok := app.Input(inputID)
				if !ok {
					return nil, apperrors.NewValidationError(
						fmt.Sprintf("steps[%d].inputs", i),
						fmt.Sprintf("app for step %s declares no input %q", step.ID, inputID),
						nil,
					)
				}

				merged, seen := result[conn]
				if !seen {
					result[conn] = port.Copy()
					continue
				}
				if port.Required {
					merged.Required = true
				}
				if !port.List {
					merged.List = false
				}
				result[conn] = merged
			}
		}
	}

	return result, nil
}
