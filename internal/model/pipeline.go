package model

import (
	"fmt"

	"github.com/alexisbeaulieu97/appflow/internal/graph"
	"github.com/alexisbeaulieu97/appflow/internal/logger"
	apperrors "github.com/alexisbeaulieu97/appflow/pkg/errors"
)

// StepInfo annotates a step node of the connection graph.
type StepInfo struct {
	Step *Step
	App  *App
}

// ConnectionGraph is the graph derived from pipeline steps. Step nodes carry a
// StepInfo; external input and output nodes carry the zero value.
type ConnectionGraph = graph.Graph[StepInfo]

// Pipeline is a directed acyclic graph of steps, each bound to an App.
//
// The connection graph is cached after a successful Validate. The cache is the
// only mutable state; a Pipeline must not be validated from several goroutines
// at once.
type Pipeline struct {
	Apps  map[string]*App
	Steps []Step
	Attrs map[string]any

	written written
	graph   *ConnectionGraph
	log   *logger.Logger
}

// SetLogger routes warnings raised while building the graph to log.
func (p *Pipeline) SetLogger(log *logger.Logger) {
	p.log = log
}

// Type implements Model.
func (p *Pipeline) Type() string { return TypePipeline }

// Validate checks every app, builds the connection graph and caches it.
// Structural problems abort at the first one found.
func (p *Pipeline) Validate() error {
	if p == nil {
		return apperrors.NewValidationError("pipeline", "pipeline is null", nil)
	}
	p.Invalidate()
	return validate("pipeline", p)
}

// Invalidate drops the cached connection graph.
func (p *Pipeline) Invalidate() {
	p.graph = nil
}

// Graph returns the cached connection graph, validating first when needed.
func (p *Pipeline) Graph() (*ConnectionGraph, error) {
	if p.graph == nil {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return p.graph, nil
}

func (p *Pipeline) check() ([]string, error) {
	if len(p.Steps) == 0 {
		return nil, apperrors.NewValidationError("steps", "no steps", nil)
	}

	seen := make(map[string]int, len(p.Steps))
	for i := range p.Steps {
		step := &p.Steps[i]
		field := fmt.Sprintf("steps[%d]", i)
		if step.ID == "" {
			return nil, apperrors.NewValidationError(field+".id", "id cannot be empty", nil)
		}
		if first, dup := seen[step.ID]; dup {
			return nil, apperrors.NewValidationError(field+".id", fmt.Sprintf("duplicate step id %q (first declared at steps[%d])", step.ID, first), nil)
		}
		seen[step.ID] = i
		if step.App.IsZero() {
			return nil, apperrors.NewValidationError(field+".app", "app cannot be null", nil)
		}

		app, err := p.AppFor(step)
		if err != nil {
			return nil, err
		}
		if step.App.Inline != nil {
			if err := app.Validate(); err != nil {
				return nil, within(field+".app", err)
			}
		}
	}

	for _, name := range sortedKeys(p.Apps) {
		app := p.Apps[name]
		if app == nil {
			return nil, apperrors.NewValidationError("apps."+name, "bad app: null", nil)
		}
		if err := app.Validate(); err != nil {
			return nil, within("apps."+name, err)
		}
	}

	g, err := p.buildGraph()
	if err != nil {
		return nil, err
	}
	p.graph = g
	return nil, nil
}

// AppFor resolves the app bound to step, inline or by name.
func (p *Pipeline) AppFor(step *Step) (*App, error) {
	if step.App.Inline != nil {
		return step.App.Inline, nil
	}
	if app, ok := p.Apps[step.App.Name]; ok && app != nil {
		return app, nil
	}
	return nil, apperrors.NewValidationError("steps", fmt.Sprintf("no app for step %s", step.ID), nil)
}

// AppForStep resolves the app of the step with the given id.
func (p *Pipeline) AppForStep(stepID string) (*App, error) {
	step, ok := p.Step(stepID)
	if !ok {
		return nil, apperrors.NewValidationError("steps", fmt.Sprintf("no step %s", stepID), nil)
	}
	return p.AppFor(step)
}

// Step looks up a step by id.
func (p *Pipeline) Step(id string) (*Step, bool) {
	for i := range p.Steps {
		if p.Steps[i].ID == id {
			return &p.Steps[i], true
		}
	}
	return nil, false
}

// Encode implements Model.
func (p *Pipeline) Encode() Document {
	doc := Document{TypeField: TypePipeline}
	if p.Apps != nil {
		apps := make(Document, len(p.Apps))
		for name, app := range p.Apps {
			if app == nil {
				apps[name] = nil
				continue
			}
			apps[name] = app.Encode()
		}
		doc["apps"] = apps
	}
	steps := make([]any, 0, len(p.Steps))
	for _, step := range p.Steps {
		steps = append(steps, step.Encode())
	}
	doc["steps"] = steps
	p.written.restore(doc)
	mergeAttrs(doc, p.Attrs)
	return doc
}

func decodePipeline(doc Document) (*Pipeline, error) {
	pipeline := &Pipeline{
		Attrs:   extraAttrs(doc, "apps", "steps"),
		written: recordWritten(doc, "apps"),
	}

	if err := CheckField(doc, "steps", ListKind, false); err != nil {
		return nil, decodeError("", err)
	}

	apps, present, err := mappingField(doc, "apps")
	if err != nil {
		return nil, decodeError("", err)
	}
	if present {
		pipeline.Apps = make(map[string]*App, len(apps))
		for _, name := range sortedKeys(apps) {
			path := "apps." + name
			appDoc, ok := apps[name].(Document)
			if !ok {
				return nil, apperrors.NewValidationError(path, fmt.Sprintf("bad app: %s", describe(apps[name])), nil)
			}
			app, err := decodeApp(appDoc, path)
			if err != nil {
				return nil, err
			}
			pipeline.Apps[name] = app
		}
	}

	items := doc["steps"].([]any)
	pipeline.Steps = make([]Step, 0, len(items))
	for i, item := range items {
		path := fmt.Sprintf("steps[%d]", i)
		stepDoc, ok := item.(Document)
		if !ok {
			return nil, apperrors.NewValidationError(path, fmt.Sprintf("step is %s, expected mapping", describe(item)), nil)
		}
		step, err := decodeStep(stepDoc, path)
		if err != nil {
			return nil, err
		}
		pipeline.Steps = append(pipeline.Steps, step)
	}

	return pipeline, nil
}
