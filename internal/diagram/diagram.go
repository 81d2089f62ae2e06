// Package diagram renders pipeline connection graphs as Graphviz DOT.
package diagram

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
	"gopkg.in/go-playground/colors.v1" //nolint

	appgraph "github.com/alexisbeaulieu97/appflow/internal/graph"
	"github.com/alexisbeaulieu97/appflow/internal/model"
)

// Extension is appended to output paths that lack it.
const Extension = ".dot"

type style struct {
	shape string
	fill  string
}

func palette() (map[appgraph.Kind]style, error) {
	step, err := colors.RGB(222, 235, 247) //nolint
	if err != nil {
		return nil, fmt.Errorf("unable to get step colour: %w", err)
	}
	input, err := colors.RGB(229, 245, 224) //nolint
	if err != nil {
		return nil, fmt.Errorf("unable to get input colour: %w", err)
	}
	output, err := colors.RGB(254, 230, 206) //nolint
	if err != nil {
		return nil, fmt.Errorf("unable to get output colour: %w", err)
	}

	return map[appgraph.Kind]style{
		appgraph.StepKind:   {shape: "box", fill: step.ToHEX().String()},
		appgraph.InputKind:  {shape: "invhouse", fill: input.ToHEX().String()},
		appgraph.OutputKind: {shape: "house", fill: output.ToHEX().String()},
	}, nil
}

// Build converts a connection graph into a drawable graph. Step nodes are
// labelled with the app they run and edges with the wires they carry.
func Build(g *model.ConnectionGraph) (graph.Graph[string, string], error) {
	styles, err := palette()
	if err != nil {
		return nil, err
	}

	out := graph.New(graph.StringHash, graph.Directed())
	for _, node := range g.Nodes() {
		st := styles[node.Kind]
		err := out.AddVertex(node.ID,
			graph.VertexAttribute("label", escape(nodeLabel(node))),
			graph.VertexAttribute("shape", st.shape),
			graph.VertexAttribute("style", "filled"),
			graph.VertexAttribute("fillcolor", st.fill),
		)
		if err != nil {
			return nil, fmt.Errorf("unable to add vertex %s: %w", node.ID, err)
		}
	}

	for _, edge := range g.Edges() {
		labels := make([]string, 0, len(edge.Wires))
		for _, wire := range edge.Wires {
			labels = append(labels, wire.String())
		}
		err := out.AddEdge(edge.From, edge.To, graph.EdgeAttribute("label", escape(strings.Join(labels, ", "))))
		if err != nil {
			return nil, fmt.Errorf("unable to add edge from %s to %s: %w", edge.From, edge.To, err)
		}
	}

	return out, nil
}

// Render writes g to w in DOT format.
func Render(g *model.ConnectionGraph, w io.Writer) error {
	drawable, err := Build(g)
	if err != nil {
		return err
	}
	if err := draw.DOT(drawable, w, draw.GraphAttribute("rankdir", "LR")); err != nil {
		return fmt.Errorf("unable to render dot: %w", err)
	}
	return nil
}

// Draw writes the connection graph of p to path, appending Extension when
// missing, and returns the path written. The pipeline is validated first if
// its graph has not been built.
func Draw(p *model.Pipeline, path string) (string, error) {
	g, err := p.Graph()
	if err != nil {
		return "", fmt.Errorf("unable to build connection graph: %w", err)
	}
	if !strings.HasSuffix(path, Extension) {
		path += Extension
	}

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("unable to create file %s: %w", path, err)
	}
	renderErr := Render(g, file)
	closeErr := file.Close()
	if renderErr != nil {
		return "", fmt.Errorf("unable to write %s: %w", path, renderErr)
	}
	if closeErr != nil {
		return "", fmt.Errorf("unable to close %s: %w", path, closeErr)
	}
	return path, nil
}

func nodeLabel(node *appgraph.Node[model.StepInfo]) string {
	if node.Kind != appgraph.StepKind || node.Value.Step == nil {
		return node.ID
	}
	return fmt.Sprintf(`%s\n(%s)`, node.ID, node.Value.Step.App)
}

func escape(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
