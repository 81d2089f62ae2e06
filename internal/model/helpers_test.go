package model

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func parseYAML(t *testing.T, src string) any {
	t.Helper()

	var doc any
	require.NoError(t, yaml.Unmarshal([]byte(src), &doc))
	return doc
}

func decodeYAML(t *testing.T, src string) Model {
	t.Helper()

	m, err := Decode(parseYAML(t, src))
	require.NoError(t, err)
	return m
}

func decodePipelineYAML(t *testing.T, src string) *Pipeline {
	t.Helper()

	p, ok := decodeYAML(t, src).(*Pipeline)
	require.True(t, ok, "document did not decode to a pipeline")
	return p
}

func newApp(inputs []Port, outputs []Port) *App {
	if inputs == nil {
		inputs = []Port{}
	}
	if outputs == nil {
		outputs = []Port{}
	}
	return &App{Schema: &Schema{Inputs: inputs, Outputs: outputs, Params: []Param{}}}
}

const twoStepApps = `
"$$type": app/pipeline
apps:
  A1:
    schema:
      inputs: [{id: x}]
      outputs: [{id: y}]
      params: []
  A2:
    schema:
      inputs: [{id: z, list: true}]
      outputs: [{id: w}]
      params: []
`
