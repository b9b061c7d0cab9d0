package main

import (
	"github.com/spf13/cobra"

	"captioner/internal/daemonrun"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var opts daemonrun.Options

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web runner in the foreground",
		Long: `Serve the batch API (scan, submit, progress, cancel) behind an
authenticating reverse proxy. Equivalent to running captionerd.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Bind, "bind", "", "Listen address (default: paths.api_bind)")
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	cmd.Flags().BoolVar(&opts.Development, "dev", false, "Include source locations in logs")
	return cmd
}
