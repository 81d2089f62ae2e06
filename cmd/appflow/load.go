package main

import (
	"context"

	"github.com/alexisbeaulieu97/appflow/internal/loader"
	"github.com/alexisbeaulieu97/appflow/internal/model"
)

// loadPipeline loads ref and returns it as a validated pipeline, wrapping bare
// apps in a single-step pipeline. The caller must close the returned loader.
func loadPipeline(ctx context.Context, root *rootFlags, ref string) (*model.Pipeline, *loader.Loader, error) {
	l, err := root.newLoader()
	if err != nil {
		return nil, nil, err
	}

	m, err := l.LoadModel(ctx, ref)
	if err != nil {
		_ = l.Close()
		return nil, nil, err
	}
	p, err := model.AsPipeline(m)
	if err != nil {
		_ = l.Close()
		return nil, nil, err
	}
	p.SetLogger(root.log)
	if err := p.Validate(); err != nil {
		_ = l.Close()
		return nil, nil, err
	}
	return p, l, nil
}
