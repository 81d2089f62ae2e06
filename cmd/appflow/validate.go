package main

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/alexisbeaulieu97/appflow/internal/model"
)

type validateOptions struct {
	jobs int
}

type validateResult struct {
	ref      string
	kind     string
	warnings []string
	err      error
}

func newValidateCmd(root *rootFlags) *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate <document>...",
		Short: "Validate app, schema and pipeline documents",
		Long: `Validate loads every document, resolves its references and checks it.
Documents are processed concurrently; one line is printed per document and
the command fails if any document is invalid.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, root, opts, args)
		},
	}

	cmd.Flags().IntVarP(&opts.jobs, "jobs", "j", runtime.NumCPU(), "Number of documents validated concurrently")

	return cmd
}

func runValidate(cmd *cobra.Command, root *rootFlags, opts *validateOptions, refs []string) error {
	ctx, cancel := root.commandContext(cmd)
	defer cancel()

	results := make([]validateResult, len(refs))
	group, groupCtx := errgroup.WithContext(ctx)
	if opts.jobs > 0 {
		group.SetLimit(opts.jobs)
	}

	for i, ref := range refs {
		group.Go(func() error {
			results[i] = validateDocument(groupCtx, root, ref)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return newCommandError("validate", "running validation", err, "Retry with --verbose for details.")
	}

	st := newStyles(cmd.OutOrStdout(), root.noColor)
	out := cmd.OutOrStdout()
	var failed []error
	for _, res := range results {
		if res.err != nil {
			failed = append(failed, fmt.Errorf("%s: %w", res.ref, res.err))
			fmt.Fprintf(out, "%s %s: %v\n", st.failMark(), res.ref, res.err)
			continue
		}
		fmt.Fprintf(out, "%s %s %s\n", st.okMark(), res.ref, st.muted.Render("("+res.kind+")"))
		for _, warning := range res.warnings {
			fmt.Fprintf(out, "  %s %s\n", st.warnMark(), warning)
		}
	}

	if len(failed) > 0 {
		return newCommandError("validate",
			fmt.Sprintf("%d of %d documents are invalid", len(failed), len(refs)),
			errors.Join(failed...),
			"Fix the reported fields and run validate again.")
	}
	return nil
}

func validateDocument(ctx context.Context, root *rootFlags, ref string) validateResult {
	res := validateResult{ref: ref}
	log := root.log.WithFields(map[string]any{"document": ref})

	l, err := root.newLoader()
	if err != nil {
		res.err = err
		return res
	}
	defer func() {
		if err := l.Close(); err != nil {
			log.Error(err, "cleanup failed")
		}
	}()

	m, err := l.LoadModel(ctx, ref)
	if err != nil {
		res.err = err
		return res
	}
	res.kind = m.Type()

	if err := m.Validate(); err != nil {
		res.err = err
		return res
	}
	if p, ok := m.(*model.Pipeline); ok {
		g, err := p.Graph()
		if err != nil {
			res.err = err
			return res
		}
		res.warnings = g.Warnings()
	}
	log.Debug("document is valid")
	return res
}
