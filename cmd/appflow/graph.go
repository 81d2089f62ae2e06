package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/appflow/internal/diagram"
	"github.com/alexisbeaulieu97/appflow/internal/graph"
	"github.com/alexisbeaulieu97/appflow/internal/model"
)

type graphOptions struct {
	dotPath string
}

func newGraphCmd(root *rootFlags) *cobra.Command {
	opts := &graphOptions{}

	cmd := &cobra.Command{
		Use:   "graph <document>",
		Short: "Print the connection graph of a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(cmd, root, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.dotPath, "dot", "", "Also write a Graphviz DOT file (\".dot\" is appended when missing)")

	return cmd
}

func runGraph(cmd *cobra.Command, root *rootFlags, opts *graphOptions, ref string) error {
	ctx, cancel := root.commandContext(cmd)
	defer cancel()

	p, l, err := loadPipeline(ctx, root, ref)
	if err != nil {
		return newCommandError("show graph", fmt.Sprintf("loading %s", ref), err, "Run 'appflow validate' on the document for details.")
	}
	defer l.Close()

	g, err := p.Graph()
	if err != nil {
		return newCommandError("show graph", "building connection graph", err, "Run 'appflow validate' on the document for details.")
	}

	if err := renderGraph(cmd, g, newStyles(cmd.OutOrStdout(), root.noColor)); err != nil {
		return err
	}

	if opts.dotPath != "" {
		written, err := diagram.Draw(p, opts.dotPath)
		if err != nil {
			root.log.WithFields(map[string]any{"error": err.Error(), "path": opts.dotPath}).Warn("unable to draw diagram")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nDiagram written to %s\n", written)
	}
	return nil
}

func renderGraph(cmd *cobra.Command, g *model.ConnectionGraph, st styles) error {
	out := cmd.OutOrStdout()

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "%s\t%s\n", st.header.Render("Steps:"), strings.Join(g.NodeIDs(graph.StepKind), ", "))
	fmt.Fprintf(writer, "%s\t%s\n", st.header.Render("Inputs:"), strings.Join(g.NodeIDs(graph.InputKind), ", "))
	fmt.Fprintf(writer, "%s\t%s\n", st.header.Render("Outputs:"), strings.Join(g.NodeIDs(graph.OutputKind), ", "))
	if err := writer.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%s\n", st.header.Render("Edges:"))
	writer = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, edge := range g.Edges() {
		wires := make([]string, 0, len(edge.Wires))
		for _, wire := range edge.Wires {
			wires = append(wires, wire.String())
		}
		fmt.Fprintf(writer, "  %s -> %s\t%s\n", edge.From, edge.To, st.muted.Render("["+strings.Join(wires, ", ")+"]"))
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	if order, err := g.TopologicalOrder(); err == nil {
		fmt.Fprintf(out, "\n%s %s\n", st.header.Render("Order:"), strings.Join(order, ", "))
	}

	for _, warning := range g.Warnings() {
		fmt.Fprintf(out, "%s %s\n", st.warnMark(), warning)
	}
	return nil
}
