// Package model holds the app and pipeline data model: schemas, apps, pipelines,
// their validation and the connection graph derived from pipeline steps.
//
// Models are built from plain structured documents (mappings, sequences,
// strings, booleans and nulls) tagged with a "$$type" discriminator, and encode
// back to the same shape.
package model

import (
	"fmt"
	"sort"

	apperrors "github.com/alexisbeaulieu97/appflow/pkg/errors"
)

// TypeField is the discriminator key carried by every encoded model.
const TypeField = "$$type"

// Discriminator values understood by Decode.
const (
	TypePipeline  = "app/pipeline"
	TypeDockerApp = "app/tool/docker"
	TypeSchema    = "schema/app/sbgsdk"
)

// Document is the generic mapping form of a model.
type Document = map[string]any

// Model is implemented by every decodable type.
type Model interface {
	// Type returns the discriminator written to TypeField.
	Type() string
	// Validate checks the model invariants and returns a *errors.ValidationError on failure.
	Validate() error
	// Encode returns the document form of the model, including TypeField.
	Encode() Document
}

// Decode turns a tagged document into its model. The tag selects the variant;
// documents without a tag, or with an unknown tag, are rejected.
func Decode(v any) (Model, error) {
	doc, ok := Normalize(v).(Document)
	if !ok {
		return nil, apperrors.NewValidationError("", fmt.Sprintf("document is %s, expected mapping", describe(v)), nil)
	}

	tag, err := stringField(doc, TypeField)
	if err != nil {
		return nil, decodeError("", err)
	}

	switch tag {
	case TypePipeline:
		pipeline, err := decodePipeline(doc)
		if err != nil {
			return nil, err
		}
		return pipeline, nil
	case TypeDockerApp:
		app, err := decodeApp(doc, "")
		if err != nil {
			return nil, err
		}
		return app, nil
	case TypeSchema:
		return decodeSchema(doc), nil
	case "":
		return nil, apperrors.NewValidationError(TypeField, "document has no type", nil)
	default:
		return nil, apperrors.NewValidationError(TypeField, fmt.Sprintf("unknown document type %q", tag), nil)
	}
}

// Normalize converts mappings with non-string keys, as produced by some YAML
// decoders, into Documents so the rest of the package only sees one shape.
func Normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(Document, len(val))
		for k, item := range val {
			out[k] = Normalize(item)
		}
		return out
	case map[any]any:
		out := make(Document, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = Normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Normalize(item)
		}
		return out
	default:
		return v
	}
}

// DeepCopy returns a copy of a document tree that shares no mappings or sequences with v.
func DeepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = DeepCopy(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = DeepCopy(item)
		}
		return out
	default:
		return v
	}
}

func copyAttrs(attrs map[string]any) map[string]any {
	if attrs == nil {
		return nil
	}
	return DeepCopy(attrs).(map[string]any)
}

// extraAttrs collects every key of doc not listed in known.
func extraAttrs(doc Document, known ...string) map[string]any {
	var out map[string]any
	for key, value := range doc {
		if key == TypeField || containsString(known, key) {
			continue
		}
		if out == nil {
			out = make(map[string]any)
		}
		out[key] = DeepCopy(value)
	}
	return out
}

// written holds optional keys that were declared with a zero value (null,
// false or ""). Typed fields cannot tell those apart from absent keys, so
// Encode restores them from here.
type written map[string]any

func recordWritten(doc Document, keys ...string) written {
	var out written
	for _, key := range keys {
		value, ok := doc[key]
		if !ok || !isZeroValue(value) {
			continue
		}
		if out == nil {
			out = make(written)
		}
		out[key] = value
	}
	return out
}

// restore adds every recorded key that doc does not already carry.
func (w written) restore(doc Document) {
	for key, value := range w {
		if _, ok := doc[key]; !ok {
			doc[key] = value
		}
	}
}

func isZeroValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case bool:
		return !val
	case string:
		return val == ""
	default:
		return false
	}
}

func mergeAttrs(doc Document, attrs map[string]any) {
	for key, value := range attrs {
		if _, exists := doc[key]; !exists {
			doc[key] = DeepCopy(value)
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func joinPath(prefix, field string) string {
	if prefix == "" {
		return field
	}
	return prefix + "." + field
}
