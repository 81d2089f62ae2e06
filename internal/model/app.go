package model

import (
	"fmt"

	apperrors "github.com/alexisbeaulieu97/appflow/pkg/errors"
)

// ImageRef names the container image an app runs in.
type ImageRef struct {
	Repo  string
	Tag   string
	Attrs map[string]any

	written written
}

func (r *ImageRef) encode() Document {
	doc := Document{}
	if r.Repo != "" {
		doc["image_repo"] = r.Repo
	}
	if r.Tag != "" {
		doc["image_tag"] = r.Tag
	}
	r.written.restore(doc)
	mergeAttrs(doc, r.Attrs)
	return doc
}

// App is a single invokable unit described by its Schema.
type App struct {
	Schema    *Schema
	Image     *ImageRef
	WrapperID string
	Attrs     map[string]any

	written written
}

// Type implements Model.
func (a *App) Type() string { return TypeDockerApp }

// Validate delegates to the schema; an app has no invariants of its own.
func (a *App) Validate() error {
	if a == nil {
		return apperrors.NewValidationError("app", "app is null", nil)
	}
	if a.Schema == nil {
		return apperrors.NewValidationError("schema", "app has no schema", nil)
	}
	return a.Schema.Validate()
}

// Inputs maps each input id of the schema to its port descriptor.
func (a *App) Inputs() map[string]Port {
	if a == nil || a.Schema == nil {
		return map[string]Port{}
	}
	out := make(map[string]Port, len(a.Schema.Inputs))
	for _, port := range a.Schema.Inputs {
		out[port.ID] = port
	}
	return out
}

// Input looks up a single input port by id.
func (a *App) Input(id string) (Port, bool) {
	if a == nil || a.Schema == nil {
		return Port{}, false
	}
	return a.Schema.Input(id)
}

// Encode implements Model.
func (a *App) Encode() Document {
	doc := Document{TypeField: TypeDockerApp}
	if a.Schema != nil {
		doc["schema"] = a.Schema.Encode()
	}
	if a.Image != nil {
		doc["docker_image_ref"] = a.Image.encode()
	}
	if a.WrapperID != "" {
		doc["wrapper_id"] = a.WrapperID
	}
	a.written.restore(doc)
	mergeAttrs(doc, a.Attrs)
	return doc
}

// decodeApp decodes an app document. Untagged documents are accepted because
// apps nested in pipelines often omit the discriminator.
func decodeApp(doc Document, path string) (*App, error) {
	tag, err := stringField(doc, TypeField)
	if err != nil {
		return nil, decodeError(path, err)
	}
	if tag != "" && tag != TypeDockerApp {
		return nil, apperrors.NewValidationError(joinPath(path, TypeField), fmt.Sprintf("bad app type %q", tag), nil)
	}

	app := &App{
		Attrs:   extraAttrs(doc, "schema", "docker_image_ref", "wrapper_id"),
		written: recordWritten(doc, "schema", "docker_image_ref", "wrapper_id"),
	}

	schemaDoc, present, err := mappingField(doc, "schema")
	if err != nil {
		return nil, decodeError(path, err)
	}
	if present {
		schemaPath := joinPath(path, "schema")
		schemaTag, err := stringField(schemaDoc, TypeField)
		if err != nil {
			return nil, decodeError(schemaPath, err)
		}
		if schemaTag != "" && schemaTag != TypeSchema {
			return nil, apperrors.NewValidationError(joinPath(schemaPath, TypeField), fmt.Sprintf("bad schema type %q", schemaTag), nil)
		}
		app.Schema = decodeSchema(schemaDoc)
	}

	imageDoc, present, err := mappingField(doc, "docker_image_ref")
	if err != nil {
		return nil, decodeError(path, err)
	}
	if present {
		imagePath := joinPath(path, "docker_image_ref")
		repo, err := stringField(imageDoc, "image_repo")
		if err != nil {
			return nil, decodeError(imagePath, err)
		}
		tag, err := stringField(imageDoc, "image_tag")
		if err != nil {
			return nil, decodeError(imagePath, err)
		}
		app.Image = &ImageRef{
			Repo:    repo,
			Tag:     tag,
			Attrs:   extraAttrs(imageDoc, "image_repo", "image_tag"),
			written: recordWritten(imageDoc, "image_repo", "image_tag"),
		}
	}

	if app.WrapperID, err = stringField(doc, "wrapper_id"); err != nil {
		return nil, decodeError(path, err)
	}

	return app, nil
}
