package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/alexisbeaulieu97/appflow/internal/model"
)

type inputsOptions struct {
	format string
}

func newInputsCmd(root *rootFlags) *cobra.Command {
	opts := &inputsOptions{}

	cmd := &cobra.Command{
		Use:   "inputs <document>",
		Short: "Print the external inputs of a pipeline or app",
		Long: `Inputs prints every pipeline-level input with the merged descriptor of
the step inputs it feeds. A bare app is treated as a single-step pipeline.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInputs(cmd, root, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "json", "Output format (json or yaml)")

	return cmd
}

func runInputs(cmd *cobra.Command, root *rootFlags, opts *inputsOptions, ref string) error {
	if opts.format != "json" && opts.format != "yaml" {
		return newCommandError("list inputs", "checking flags", fmt.Errorf("unknown format %q", opts.format), "Use --format json or --format yaml.")
	}

	ctx, cancel := root.commandContext(cmd)
	defer cancel()

	p, l, err := loadPipeline(ctx, root, ref)
	if err != nil {
		return newCommandError("list inputs", fmt.Sprintf("loading %s", ref), err, "Run 'appflow validate' on the document for details.")
	}
	defer l.Close()

	inputs, err := p.Inputs()
	if err != nil {
		return newCommandError("list inputs", "inferring pipeline inputs", err, "Check that every step input is declared by its app.")
	}

	return renderInputs(cmd, inputs, opts.format)
}

func renderInputs(cmd *cobra.Command, inputs map[string]model.Port, format string) error {
	doc := make(map[string]any, len(inputs))
	for id, port := range inputs {
		doc[id] = port.Encode()
	}

	if format == "yaml" {
		encoder := yaml.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent(2)
		if err := encoder.Encode(doc); err != nil {
			return fmt.Errorf("encode inputs: %w", err)
		}
		return encoder.Close()
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(doc)
}
