package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"captioner/internal/config"
	"captioner/internal/keyterms"
	"captioner/internal/media"
	"captioner/internal/services/llm"
)

func newKeytermsCommand(ctx *commandContext) *cobra.Command {
	keytermsCmd := &cobra.Command{
		Use:   "keyterms",
		Short: "Manage per-show keyterm lists",
	}
	keytermsCmd.AddCommand(newKeytermsGenerateCommand(ctx))
	keytermsCmd.AddCommand(newKeytermsShowCommand(ctx))
	return keytermsCmd
}

func newKeytermsGenerateCommand(ctx *commandContext) *cobra.Command {
	var replace bool
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "generate <media-file>",
		Short: "Ask the LLM for keyterms and save them to the show's CSV",
		Long: `Build a keyterm list for the show or movie a media file belongs to and
write it to Transcripts/Keyterms/<Name>_keyterms.csv. Existing terms are kept
unless --replace is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			mediaPath, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			classification := media.Classify(mediaPath)
			if classification.Category() == media.CategoryUnknown {
				return fmt.Errorf("cannot determine a show or movie name for %s", mediaPath)
			}
			logger, err := ctx.logger(cfg)
			if err != nil {
				return err
			}

			client := llm.NewClient(llm.Config{
				APIKey:         cfg.Keyterms.APIKey,
				BaseURL:        cfg.Keyterms.BaseURL,
				Model:          cfg.Keyterms.Model,
				Referer:        cfg.Keyterms.Referer,
				Title:          cfg.Keyterms.Title,
				TimeoutSeconds: cfg.Keyterms.TimeoutSeconds,
			})
			generator := keyterms.NewGenerator(client, logger)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", classification.Category(), media.DisplayName(classification))

			if dryRun {
				est := generator.Estimate(classification)
				fmt.Fprintf(out, "Estimated %d tokens with %s (about $%.4f)\n", est.Tokens, est.Model, est.EstimatedCost)
				return nil
			}
			if !cfg.KeytermsConfigured() {
				return fmt.Errorf("keyterms.api_key is not set (or export OPENROUTER_API_KEY)")
			}

			existing, _, err := keyterms.LoadForMedia(mediaPath)
			if err != nil {
				return err
			}
			gen, err := generator.Generate(cmd.Context(), classification, existing, !replace)
			if err != nil {
				return err
			}
			path, err := keyterms.SaveForMedia(cmd.Context(), mediaPath, gen.Keyterms)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved %d keyterms to %s\n", len(gen.Keyterms), path)
			fmt.Fprintf(out, "%s: %d tokens, about $%.4f\n", gen.Model, gen.TokenCount, gen.EstimatedCost)
			return nil
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "Discard the existing list instead of merging")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only print the token and cost estimate")
	return cmd
}

func newKeytermsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <media-file>",
		Short: "Print the keyterm list that applies to a media file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mediaPath, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			terms, path, err := keyterms.LoadForMedia(mediaPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(terms) == 0 {
				fmt.Fprintf(out, "No keyterms at %s\n", path)
				return nil
			}
			fmt.Fprintf(out, "%s (%d terms)\n", path, len(terms))
			fmt.Fprintln(out, strings.Join(terms, ", "))
			return nil
		},
	}
}
