package model

import (
	"fmt"
	"slices"
	"strings"

	apperrors "github.com/alexisbeaulieu97/appflow/pkg/errors"
)

// Separator splits a port-qualified connection string into step id and port id.
const Separator = "."

// Connections is the normalized form of a connection spec: a null spec is
// empty and a single string is a one-element list.
type Connections []string

// SplitConnection splits "<step>.<port>" on the first separator. Unqualified
// strings name a pipeline-level input or output and report qualified == false.
func SplitConnection(conn string) (stepID, portID string, qualified bool) {
	stepID, portID, qualified = strings.Cut(conn, Separator)
	if !qualified {
		return "", "", false
	}
	return stepID, portID, true
}

// IsExternal reports whether conn names a pipeline-level port.
func IsExternal(conn string) bool {
	return !strings.Contains(conn, Separator)
}

func (c Connections) encode() any {
	switch len(c) {
	case 0:
		return nil
	case 1:
		return c[0]
	default:
		out := make([]any, 0, len(c))
		for _, conn := range c {
			out = append(out, conn)
		}
		return out
	}
}

// AppRef binds a step to an app, either by name in Pipeline.Apps or inline.
type AppRef struct {
	Name   string
	Inline *App
}

// IsZero reports whether the reference names no app at all.
func (r AppRef) IsZero() bool {
	return r.Name == "" && r.Inline == nil
}

func (r AppRef) String() string {
	if r.Inline != nil {
		return "<inline app>"
	}
	return r.Name
}

// Step instantiates an app inside a pipeline. Inputs map a local input id to
// the connections feeding it; Outputs map a local output id to the
// pipeline-level outputs it is published as.
type Step struct {
	ID      string
	App     AppRef
	Inputs  map[string]Connections
	Outputs map[string]Connections
	Attrs   map[string]any

	// specs keeps the wiring fields as declared so Encode reproduces scalar
	// and list forms, empty strings and explicit nulls.
	specs map[string]any
}

// Encode returns the document form of the step.
func (s Step) Encode() Document {
	doc := Document{"id": s.ID}
	switch {
	case s.App.Inline != nil:
		doc["app"] = s.App.Inline.Encode()
	case s.App.Name != "":
		doc["app"] = s.App.Name
	default:
		doc["app"] = nil
	}
	if value, ok := s.encodeWiring("inputs", s.Inputs); ok {
		doc["inputs"] = value
	}
	if value, ok := s.encodeWiring("outputs", s.Outputs); ok {
		doc["outputs"] = value
	}
	mergeAttrs(doc, s.Attrs)
	return doc
}

// encodeWiring emits the declared spec of every port whose connections are
// unchanged since decoding and the normalized form of the others.
func (s Step) encodeWiring(field string, wiring map[string]Connections) (any, bool) {
	declared, ok := s.specs[field]
	if wiring == nil {
		return nil, ok && declared == nil
	}

	specs, _ := declared.(Document)
	doc := make(Document, len(wiring))
	for port, conns := range wiring {
		if spec, found := specs[port]; found {
			if normalized, err := normalizeConnections(spec); err == nil && slices.Equal(normalized, conns) {
				doc[port] = DeepCopy(spec)
				continue
			}
		}
		doc[port] = conns.encode()
	}
	return doc, true
}

func decodeStep(doc Document, path string) (Step, error) {
	if err := CheckField(doc, "id", StringKind, false); err != nil {
		return Step{}, decodeError(path, err)
	}
	if err := CheckField(doc, "app", StringKind|MappingKind, false); err != nil {
		return Step{}, decodeError(path, err)
	}

	step := Step{
		ID:    doc["id"].(string),
		Attrs: extraAttrs(doc, "id", "app", "inputs", "outputs"),
	}

	switch ref := doc["app"].(type) {
	case string:
		step.App.Name = ref
	case Document:
		app, err := decodeApp(ref, joinPath(path, "app"))
		if err != nil {
			return Step{}, err
		}
		step.App.Inline = app
	}

	var err error
	if step.Inputs, err = decodeWiring(doc, "inputs", path); err != nil {
		return Step{}, err
	}
	if step.Outputs, err = decodeWiring(doc, "outputs", path); err != nil {
		return Step{}, err
	}
	for _, field := range []string{"inputs", "outputs"} {
		if value, ok := doc[field]; ok {
			if step.specs == nil {
				step.specs = make(map[string]any, 2)
			}
			step.specs[field] = DeepCopy(value)
		}
	}
	return step, nil
}

func decodeWiring(doc Document, field, path string) (map[string]Connections, error) {
	wiring, present, err := mappingField(doc, field)
	if err != nil {
		return nil, decodeError(path, err)
	}
	if !present {
		return nil, nil
	}

	out := make(map[string]Connections, len(wiring))
	for port, spec := range wiring {
		conns, err := normalizeConnections(spec)
		if err != nil {
			return nil, apperrors.NewValidationError(joinPath(path, field+"."+port), err.Error(), err)
		}
		out[port] = conns
	}
	return out, nil
}

// normalizeConnections accepts null, a single string or a list of strings.
// Empty strings carry no connection and are dropped; Encode still re-emits
// them from the declared spec.
func normalizeConnections(spec any) (Connections, error) {
	switch val := spec.(type) {
	case nil:
		return nil, nil
	case string:
		if val == "" {
			return nil, nil
		}
		return Connections{val}, nil
	case []any:
		var out Connections
		for i, item := range val {
			conn, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("connection %d is %s, expected string", i, describe(item))
			}
			if conn == "" {
				continue
			}
			out = append(out, conn)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("connection spec is %s, expected string or list", describe(spec))
	}
}
