package model

import (
	"errors"
	"fmt"
	"maps"
	"strings"

	apperrors "github.com/alexisbeaulieu97/appflow/pkg/errors"
)

// Port describes one input or output of an app.
// Attrs keeps every other declared key so the descriptor round-trips.
type Port struct {
	ID       string
	Required bool
	List     bool
	Attrs    map[string]any

	written written
}

// Copy returns a deep copy of the port.
func (p Port) Copy() Port {
	p.Attrs = copyAttrs(p.Attrs)
	p.written = maps.Clone(p.written)
	return p
}

// Encode returns the document form of the port.
func (p Port) Encode() Document {
	doc := Document{"id": p.ID}
	if p.Required {
		doc["required"] = true
	}
	if p.List {
		doc["list"] = true
	}
	p.written.restore(doc)
	mergeAttrs(doc, p.Attrs)
	return doc
}

// Param describes a typed app parameter.
type Param struct {
	ID    string
	Type  string
	Attrs map[string]any
}

// Encode returns the document form of the parameter.
func (p Param) Encode() Document {
	doc := Document{"id": p.ID, "type": p.Type}
	mergeAttrs(doc, p.Attrs)
	return doc
}

var schemaCollections = []string{"inputs", "outputs", "params"}

// Schema declares the inputs, outputs and parameters of an app.
// A nil collection stands for a null field; an empty one is valid.
type Schema struct {
	Inputs  []Port  `validate:"required,unique=ID"`
	Outputs []Port  `validate:"required,unique=ID"`
	Params  []Param `validate:"required,unique=ID"`
	Attrs   map[string]any

	// shape holds field shape failures found while decoding, per collection.
	shape   map[string][]string
	written written
}

// Type implements Model.
func (s *Schema) Type() string { return TypeSchema }

// Validate reports every violated schema invariant in one ValidationError.
func (s *Schema) Validate() error {
	if s == nil {
		return apperrors.NewValidationError("schema", "schema is null", nil)
	}
	return validate("schema", s)
}

// check lists the problems of each collection in declaration order: null or
// duplicate ids first, then the shape of its elements.
func (s *Schema) check() ([]string, error) {
	structural := structProblems(s)
	var problems []string
	for _, field := range schemaCollections {
		for _, problem := range structural {
			if strings.HasPrefix(problem, field+" ") {
				problems = append(problems, problem)
			}
		}
		problems = append(problems, s.shape[field]...)
	}
	return problems, nil
}

// Encode implements Model.
func (s *Schema) Encode() Document {
	doc := Document{TypeField: TypeSchema}
	if s.Inputs != nil {
		doc["inputs"] = encodePorts(s.Inputs)
	}
	if s.Outputs != nil {
		doc["outputs"] = encodePorts(s.Outputs)
	}
	if s.Params != nil {
		params := make([]any, 0, len(s.Params))
		for _, param := range s.Params {
			params = append(params, param.Encode())
		}
		doc["params"] = params
	}
	s.written.restore(doc)
	mergeAttrs(doc, s.Attrs)
	return doc
}

// Input looks up an input port by id.
func (s *Schema) Input(id string) (Port, bool) {
	for _, port := range s.Inputs {
		if port.ID == id {
			return port, true
		}
	}
	return Port{}, false
}

func encodePorts(ports []Port) []any {
	out := make([]any, 0, len(ports))
	for _, port := range ports {
		out = append(out, port.Encode())
	}
	return out
}

// decodeSchema never fails: shape problems are kept on the schema and
// reported by Validate together with the other invariants.
func decodeSchema(doc Document) *Schema {
	schema := &Schema{
		Attrs:   extraAttrs(doc, schemaCollections...),
		written: recordWritten(doc, schemaCollections...),
	}
	schema.Inputs = schema.decodePorts(doc, "inputs")
	schema.Outputs = schema.decodePorts(doc, "outputs")
	schema.Params = schema.decodeParams(doc)
	return schema
}

func (s *Schema) decodePorts(doc Document, field string) []Port {
	items, present := s.collection(doc, field)
	if !present {
		return nil
	}

	ports := make([]Port, 0, len(items))
	for i, item := range items {
		itemPath := fmt.Sprintf("%s[%d]", field, i)
		entry, ok := item.(Document)
		if !ok {
			s.reject(field, fmt.Sprintf("%s is %s, expected mapping", itemPath, describe(item)))
			continue
		}
		ports = append(ports, Port{
			ID:       s.stringAt(entry, field, itemPath, "id"),
			Required: s.boolAt(entry, field, itemPath, "required"),
			List:     s.boolAt(entry, field, itemPath, "list"),
			Attrs:    extraAttrs(entry, "id", "required", "list"),
			written:  recordWritten(entry, "required", "list"),
		})
	}
	return ports
}

func (s *Schema) decodeParams(doc Document) []Param {
	items, present := s.collection(doc, "params")
	if !present {
		return nil
	}

	params := make([]Param, 0, len(items))
	for i, item := range items {
		itemPath := fmt.Sprintf("params[%d]", i)
		entry, ok := item.(Document)
		if !ok {
			s.reject("params", fmt.Sprintf("%s is %s, expected mapping", itemPath, describe(item)))
			continue
		}
		params = append(params, Param{
			ID:    s.stringAt(entry, "params", itemPath, "id"),
			Type:  s.stringAt(entry, "params", itemPath, "type"),
			Attrs: extraAttrs(entry, "id", "type"),
		})
	}
	return params
}

// collection returns the items of a list field. Absent and null fields are
// left nil for the null check; a value of another shape is reported and
// decoded as an empty list.
func (s *Schema) collection(doc Document, field string) ([]any, bool) {
	value := doc[field]
	if value == nil {
		return nil, false
	}
	items, ok := value.([]any)
	if !ok {
		s.reject(field, fmt.Sprintf("%s is %s, expected list", field, describe(value)))
		return []any{}, true
	}
	return items, true
}

// stringAt reads a non-null string field of a collection element. Empty
// strings are accepted.
func (s *Schema) stringAt(entry Document, collection, path, field string) string {
	if err := CheckField(entry, field, StringKind, false); err != nil {
		s.rejectField(collection, path, err)
		return ""
	}
	return entry[field].(string)
}

// boolAt reads an optional, nullable bool field of a collection element.
func (s *Schema) boolAt(entry Document, collection, path, field string) bool {
	value, err := boolField(entry, field)
	if err != nil {
		s.rejectField(collection, path, err)
	}
	return value
}

func (s *Schema) rejectField(collection, path string, err error) {
	var fieldErr *FieldError
	if errors.As(err, &fieldErr) {
		located := *fieldErr
		located.Field = joinPath(path, fieldErr.Field)
		s.reject(collection, located.Error())
		return
	}
	s.reject(collection, fmt.Sprintf("%s: %v", path, err))
}

func (s *Schema) reject(collection, problem string) {
	if s.shape == nil {
		s.shape = make(map[string][]string)
	}
	s.shape[collection] = append(s.shape[collection], problem)
}

// stringField returns the string value of an optional, nullable field.
func stringField(doc Document, field string) (string, error) {
	if _, ok := doc[field]; !ok {
		return "", nil
	}
	if err := CheckField(doc, field, StringKind, true); err != nil {
		return "", err
	}
	value, _ := doc[field].(string)
	return value, nil
}

// boolField returns the boolean value of an optional, nullable field.
func boolField(doc Document, field string) (bool, error) {
	if _, ok := doc[field]; !ok {
		return false, nil
	}
	if err := CheckField(doc, field, BoolKind, true); err != nil {
		return false, err
	}
	value, _ := doc[field].(bool)
	return value, nil
}

// mappingField returns an optional, nullable mapping; present is false for absent and null fields.
func mappingField(doc Document, field string) (Document, bool, error) {
	if _, ok := doc[field]; !ok {
		return nil, false, nil
	}
	if err := CheckField(doc, field, MappingKind, true); err != nil {
		return nil, false, err
	}
	value, ok := doc[field].(Document)
	return value, ok, nil
}
