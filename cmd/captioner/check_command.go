package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"captioner/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check binaries, directories, and external services",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			results := preflight.RunAll(cmd.Context(), cfg)
			if !cfg.BazarrConfigured() {
				fmt.Fprintln(out, renderStatusLine("Bazarr", statusInfo, "not configured", colorize))
			}
			if !cfg.KeytermsConfigured() {
				fmt.Fprintln(out, renderStatusLine("Keyterm LLM", statusInfo, "not configured", colorize))
			}
			for _, r := range results {
				kind := statusOK
				switch {
				case r.Passed:
				case r.Optional:
					kind = statusWarn
				default:
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}
			if failed := preflight.Failed(results); len(failed) > 0 {
				return errors.New("one or more required checks failed")
			}
			return nil
		},
	}
}
