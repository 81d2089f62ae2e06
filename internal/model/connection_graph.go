package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alexisbeaulieu97/appflow/internal/graph"
	apperrors "github.com/alexisbeaulieu97/appflow/pkg/errors"
)

// buildGraph derives the connection graph from the steps in declaration order.
// Local port ids are visited in sorted order so repeated builds produce the
// same wire lists.
func (p *Pipeline) buildGraph() (*ConnectionGraph, error) {
	g := graph.New[StepInfo]()

	declared := make(map[string]struct{}, len(p.Steps))
	for i := range p.Steps {
		declared[p.Steps[i].ID] = struct{}{}
	}

	inputs := make(map[string]struct{})
	outputs := make(map[string]struct{})

	for i := range p.Steps {
		step := &p.Steps[i]
		app, err := p.AppFor(step)
		if err != nil {
			return nil, err
		}
		g.AddNode(step.ID, graph.StepKind, StepInfo{Step: step, App: app})

		for _, inputID := range sortedKeys(step.Inputs) {
			for _, conn := range step.Inputs[inputID] {
				srcStep, srcPort, qualified := SplitConnection(conn)
				if !qualified {
					inputs[conn] = struct{}{}
					g.EnsureNode(conn, graph.InputKind)
					if err := g.Connect(conn, step.ID, graph.Wire{Destination: inputID}); err != nil {
						return nil, err
					}
					continue
				}

				if _, ok := declared[srcStep]; !ok {
					g.Warn("step %s input %s reads from undeclared step %s", step.ID, inputID, srcStep)
					p.log.Warnf("step %s input %s reads from undeclared step %s", step.ID, inputID, srcStep)
				}
				g.EnsureNode(srcStep, graph.StepKind)
				if err := g.Connect(srcStep, step.ID, graph.Wire{Source: srcPort, Destination: inputID}); err != nil {
					return nil, err
				}
			}
		}

		for _, outputID := range sortedKeys(step.Outputs) {
			for _, dst := range step.Outputs[outputID] {
				if !IsExternal(dst) {
					g.Warn("ignoring invalid output value: %s", dst)
					p.log.Warnf("ignoring invalid output value: %s", dst)
					continue
				}
				outputs[dst] = struct{}{}
				g.EnsureNode(dst, graph.OutputKind)
				if err := g.Connect(step.ID, dst, graph.Wire{Source: outputID}); err != nil {
					return nil, err
				}
			}
		}
	}

	if clash := intersect(inputs, declared); len(clash) > 0 {
		return nil, apperrors.NewValidationError("steps", fmt.Sprintf("some inputs have same id as steps: %s", strings.Join(clash, ", ")), nil)
	}
	if clash := intersect(outputs, declared); len(clash) > 0 {
		return nil, apperrors.NewValidationError("steps", fmt.Sprintf("some outputs have same id as steps: %s", strings.Join(clash, ", ")), nil)
	}
	if cycle := g.Cycle(); cycle != nil {
		return nil, apperrors.NewValidationError("steps", fmt.Sprintf("cycles in pipeline: %s", strings.Join(cycle, " -> ")), nil)
	}

	return g, nil
}

func intersect(a, b map[string]struct{}) []string {
	var out []string
	for key := range a {
		if _, ok := b[key]; ok {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}
