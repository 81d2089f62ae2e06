package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/appflow/internal/joborder"
)

func newCheckJobCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-job <document> <job-order>",
		Short: "Check a job order against the inputs a pipeline needs",
		Long: `Check-job infers the pipeline-level inputs of the document and verifies
that the job order provides every required input, a list for every list input
and nothing the pipeline does not consume.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckJob(cmd, root, args[0], args[1])
		},
	}

	return cmd
}

func runCheckJob(cmd *cobra.Command, root *rootFlags, ref, jobRef string) error {
	ctx, cancel := root.commandContext(cmd)
	defer cancel()

	p, l, err := loadPipeline(ctx, root, ref)
	if err != nil {
		return newCommandError("check job", fmt.Sprintf("loading %s", ref), err, "Run 'appflow validate' on the document for details.")
	}
	defer l.Close()

	inputs, err := p.Inputs()
	if err != nil {
		return newCommandError("check job", "inferring pipeline inputs", err, "Check that every step input is declared by its app.")
	}

	job, err := l.Load(ctx, jobRef)
	if err != nil {
		return newCommandError("check job", fmt.Sprintf("loading %s", jobRef), err, "Check that the job order exists and is valid JSON or YAML.")
	}

	if err := joborder.Check(inputs, job); err != nil {
		return newCommandError("check job", fmt.Sprintf("checking %s", jobRef), err, "Provide every required input and use lists only for list inputs.")
	}

	st := newStyles(cmd.OutOrStdout(), root.noColor)
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s provides the %d inputs of %s\n", st.okMark(), jobRef, len(inputs), ref)
	return nil
}
