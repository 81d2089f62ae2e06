package model

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/appflow/internal/graph"
	"github.com/alexisbeaulieu97/appflow/internal/logger"
	apperrors "github.com/alexisbeaulieu97/appflow/pkg/errors"
)

func TestPipelineGraphChain(t *testing.T) {
	t.Parallel()

	p := decodePipelineYAML(t, twoStepApps+`
steps:
  - {id: s1, app: A1, inputs: {x: in1}, outputs: {y: out1}}
  - {id: s2, app: A2, inputs: {z: s1.y}, outputs: {w: final}}
`)
	require.NoError(t, p.Validate())

	g, err := p.Graph()
	require.NoError(t, err)
	require.Equal(t, []string{"s1", "in1", "out1", "s2", "final"}, g.NodeIDs())
	require.Equal(t, []string{"s1", "s2"}, g.NodeIDs(graph.StepKind))
	require.Equal(t, []string{"in1"}, g.NodeIDs(graph.InputKind))
	require.Equal(t, []string{"out1", "final"}, g.NodeIDs(graph.OutputKind))

	require.Equal(t, []graph.Wire{{Source: "y", Destination: "z"}}, g.Edge("s1", "s2"))
	require.Equal(t, []graph.Wire{{Destination: "x"}}, g.Edge("in1", "s1"))
	require.Equal(t, []graph.Wire{{Source: "w"}}, g.Edge("s2", "final"))

	node, ok := g.Node("s2")
	require.True(t, ok)
	require.Equal(t, "s2", node.Value.Step.ID)
	require.Same(t, p.Apps["A2"], node.Value.App)

	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	require.Less(t, indexOf(order, "s1"), indexOf(order, "s2"))
}

func TestPipelineGraphFanIn(t *testing.T) {
	t.Parallel()

	p := decodePipelineYAML(t, twoStepApps+`
steps:
  - {id: s1, app: A1, inputs: {x: in1}}
  - {id: s2, app: A2, inputs: {z: [s1.y, in1]}}
`)
	g, err := p.Graph()
	require.NoError(t, err)

	require.ElementsMatch(t, []string{"s1", "in1"}, g.Predecessors("s2"))
	require.ElementsMatch(t, []string{"s1", "s2"}, g.Successors("in1"))

	require.Equal(t, []graph.Wire{{Destination: "z"}}, g.Edge("in1", "s2"))
}

func TestPipelineGraphAccumulatesWiresBetweenSteps(t *testing.T) {
	t.Parallel()

	p := decodePipelineYAML(t, `
"$$type": app/pipeline
apps:
  src:
    schema: {inputs: [], outputs: [{id: a}, {id: b}], params: []}
  dst:
    schema: {inputs: [{id: p}, {id: q}], outputs: [], params: []}
steps:
  - {id: s1, app: src}
  - {id: s2, app: dst, inputs: {q: s1.b, p: s1.a}}
`)
	g, err := p.Graph()
	require.NoError(t, err)

	require.Equal(t, []graph.Wire{{Source: "a", Destination: "p"}, {Source: "b", Destination: "q"}}, g.Edge("s1", "s2"))
}

func TestPipelineValidateFailures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		steps   string
		field   string
		message string
	}{
		{
			name: "input collides with step id",
			steps: `
steps:
  - {id: in1, app: A1, inputs: {x: src}, outputs: {y: out1}}
  - {id: s2, app: A2, inputs: {z: in1}, outputs: {w: final}}
`,
			field:   "steps",
			message: "some inputs have same id as steps: in1",
		},
		{
			name: "output collides with step id",
			steps: `
steps:
  - {id: s1, app: A1, inputs: {x: in1}, outputs: {y: s2}}
  - {id: s2, app: A2, inputs: {z: s1.y}}
`,
			field:   "steps",
			message: "some outputs have same id as steps: s2",
		},
		{
			name: "cycle",
			steps: `
steps:
  - {id: s1, app: A1, inputs: {x: s2.w}, outputs: {y: out1}}
  - {id: s2, app: A2, inputs: {z: s1.y}}
`,
			field:   "steps",
			message: "cycles in pipeline: s1 -> s2 -> s1",
		},
		{
			name:    "no steps",
			steps:   "steps: []\n",
			field:   "steps",
			message: "no steps",
		},
		{
			name: "duplicate step id",
			steps: `
steps:
  - {id: s1, app: A1}
  - {id: s1, app: A2}
`,
			field:   "steps[1].id",
			message: `duplicate step id "s1" (first declared at steps[0])`,
		},
		{
			name: "unknown app",
			steps: `
steps:
  - {id: s1, app: missing}
`,
			field:   "steps",
			message: "no app for step s1",
		},
		{
			name: "empty app reference",
			steps: `
steps:
  - {id: s1, app: ""}
`,
			field:   "steps[0].app",
			message: "app cannot be null",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			p := decodePipelineYAML(t, twoStepApps+tc.steps)
			err := p.Validate()

			var validationErr *apperrors.ValidationError
			require.ErrorAs(t, err, &validationErr)
			require.Equal(t, tc.field, validationErr.Field)
			require.Equal(t, tc.message, validationErr.Message)

			_, graphErr := p.Graph()
			require.Error(t, graphErr)
		})
	}
}

func TestPipelineValidateReportsInvalidApps(t *testing.T) {
	t.Parallel()

	p := decodePipelineYAML(t, `
"$$type": app/pipeline
apps:
  bad:
    schema: {inputs: [{id: a}, {id: a}], outputs: [], params: []}
steps:
  - {id: s1, app: bad}
`)
	err := p.Validate()
	validationErr, ok := err.(*apperrors.ValidationError)
	require.True(t, ok, "got %T", err)
	require.Equal(t, "apps.bad.schema", validationErr.Field)
	require.Equal(t, []string{"inputs IDs must be unique"}, validationErr.Problems)
}

func TestPipelineValidateInlineApp(t *testing.T) {
	t.Parallel()

	p := decodePipelineYAML(t, `
"$$type": app/pipeline
steps:
  - id: s1
    app:
      schema: {inputs: [{id: x}], outputs: [{id: y}], params: []}
    inputs: {x: reads}
    outputs: {y: result}
`)
	require.NoError(t, p.Validate())

	app, err := p.AppForStep("s1")
	require.NoError(t, err)
	require.Same(t, p.Steps[0].App.Inline, app)

	broken := decodePipelineYAML(t, `
"$$type": app/pipeline
steps:
  - id: s1
    app:
      schema: {inputs: null, outputs: [], params: []}
`)
	err = broken.Validate()
	validationErr, ok := err.(*apperrors.ValidationError)
	require.True(t, ok, "got %T", err)
	require.Equal(t, "steps[0].app.schema", validationErr.Field)
	require.Equal(t, []string{"inputs cannot be null"}, validationErr.Problems)
}

func TestPipelineValidateIsIdempotent(t *testing.T) {
	t.Parallel()

	p := decodePipelineYAML(t, twoStepApps+`
steps:
  - {id: s1, app: A1, inputs: {x: in1}, outputs: {y: out1}}
  - {id: s2, app: A2, inputs: {z: s1.y}, outputs: {w: final}}
`)
	require.NoError(t, p.Validate())
	first, err := p.Graph()
	require.NoError(t, err)

	require.NoError(t, p.Validate())
	second, err := p.Graph()
	require.NoError(t, err)

	require.NotSame(t, first, second)
	require.Equal(t, first.NodeIDs(), second.NodeIDs())
	require.Equal(t, first.Edges(), second.Edges())

	p.Invalidate()
	third, err := p.Graph()
	require.NoError(t, err)
	require.Equal(t, first.Edges(), third.Edges())
}

func TestPipelineSkipsQualifiedOutputs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := logger.New(logger.Options{Level: "warn", Writer: &buf})
	require.NoError(t, err)

	p := decodePipelineYAML(t, twoStepApps+`
steps:
  - {id: s1, app: A1, inputs: {x: in1}, outputs: {y: s2.z}}
  - {id: s2, app: A2, inputs: {z: s1.y}}
`)
	p.SetLogger(log)
	require.NoError(t, p.Validate())

	g, err := p.Graph()
	require.NoError(t, err)
	require.Equal(t, []string{"ignoring invalid output value: s2.z"}, g.Warnings())
	require.False(t, g.HasNode("s2.z"))
	require.Contains(t, buf.String(), "ignoring invalid output value: s2.z")
}

func TestPipelineWarnsOnUndeclaredStep(t *testing.T) {
	t.Parallel()

	p := decodePipelineYAML(t, twoStepApps+`
steps:
  - {id: s2, app: A2, inputs: {z: ghost.y}}
`)
	require.NoError(t, p.Validate())

	g, err := p.Graph()
	require.NoError(t, err)
	require.Equal(t, []string{"step s2 input z reads from undeclared step ghost"}, g.Warnings())

	node, ok := g.Node("ghost")
	require.True(t, ok)
	require.Equal(t, graph.StepKind, node.Kind)
	require.Nil(t, node.Value.Step)
}

func TestPipelineConnectionSplitsOnFirstSeparator(t *testing.T) {
	t.Parallel()

	p := decodePipelineYAML(t, `
"$$type": app/pipeline
apps:
  A:
    schema: {inputs: [{id: x}], outputs: [{id: out.v2}], params: []}
steps:
  - {id: s1, app: A}
  - {id: s2, app: A, inputs: {x: s1.out.v2}}
`)
	g, err := p.Graph()
	require.NoError(t, err)

	require.Equal(t, []graph.Wire{{Source: "out.v2", Destination: "x"}}, g.Edge("s1", "s2"))
}

func indexOf(values []string, target string) int {
	for i, v := range values {
		if v == target {
			return i
		}
	}
	return -1
}
