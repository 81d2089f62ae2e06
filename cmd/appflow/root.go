package main

import (
	"context"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/appflow/internal/loader"
	"github.com/alexisbeaulieu97/appflow/internal/logger"
)

type rootFlags struct {
	verbose  bool
	logLevel string
	noColor  bool
	allowGit bool
	timeout  time.Duration

	log *logger.Logger
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "appflow",
		Short:         "Validate and inspect app and pipeline descriptions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := flags.logLevel
			if flags.verbose {
				level = "debug"
			}
			log, err := logger.New(logger.Options{
				Level:         level,
				HumanReadable: supportsUnicode(cmd.ErrOrStderr()),
				Writer:        cmd.ErrOrStderr(),
			})
			if err != nil {
				return newCommandError("start", "configuring logging", err, "Use one of trace, debug, info, warn or error for --log-level.")
			}
			flags.log = log
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "Log level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "Disable coloured output")
	cmd.PersistentFlags().BoolVar(&flags.allowGit, "allow-git", false, "Allow git+https and git+ssh references (shallow clones into a temp dir)")
	cmd.PersistentFlags().DurationVar(&flags.timeout, "timeout", 60*time.Second, "Overall time limit for fetching documents; 0 disables it")

	cmd.AddCommand(newValidateCmd(flags))
	cmd.AddCommand(newInputsCmd(flags))
	cmd.AddCommand(newGraphCmd(flags))
	cmd.AddCommand(newCheckJobCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func (f *rootFlags) newLoader() (*loader.Loader, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	if f.timeout > 0 {
		client.Timeout = f.timeout
	}
	return loader.New(
		loader.WithLogger(f.log),
		loader.WithGit(f.allowGit),
		loader.WithHTTPClient(client),
	)
}

func (f *rootFlags) commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if f.timeout > 0 {
		return context.WithTimeout(ctx, f.timeout)
	}
	return context.WithCancel(ctx)
}
