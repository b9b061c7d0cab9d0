package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"captioner/internal/batch"
	"captioner/internal/config"
	"captioner/internal/daemonrun"
	"captioner/internal/discovery"
	"captioner/internal/job"
	"captioner/internal/keyterms"
	"captioner/internal/language"
	"captioner/internal/logging"
	"captioner/internal/preflight"
	"captioner/internal/queue"
	"captioner/internal/stats"
)

type runOptions struct {
	listPath      string
	model         string
	language      string
	keyterms      string
	force         bool
	noTranscripts bool
	limit         int
	concurrency   int
	skipChecks    bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [directory]",
		Short: "Generate subtitles for every media file under a directory or in a file list",
		Long: `Scan a directory (default: paths.media_root) or read a newline-delimited
file list, skip media whose outputs already exist, and transcribe the rest.
A summary with the failed files is printed when the batch finishes.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if len(args) == 1 && opts.listPath != "" {
				return errors.New("pass either a directory or --list, not both")
			}
			root := cfg.Paths.MediaRoot
			if len(args) == 1 {
				if root, err = config.ExpandPath(args[0]); err != nil {
					return fmt.Errorf("resolve directory: %w", err)
				}
			}
			return runBatch(cmd, ctx, cfg, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.listPath, "list", "l", "", "Newline-delimited file of media paths to process")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "Deepgram model (default: deepgram.model)")
	cmd.Flags().StringVar(&opts.language, "language", "", "Transcription language (default: deepgram.language)")
	cmd.Flags().StringVar(&opts.keyterms, "keyterms", "", "Comma-separated keyterms applied to every file")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "Regenerate outputs even when they already exist")
	cmd.Flags().BoolVar(&opts.noTranscripts, "no-transcripts", false, "Only write subtitles")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Maximum number of files to process (default: workers.batch_size)")
	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "j", 0, "Files processed in parallel (default: workers.concurrency)")
	cmd.Flags().BoolVar(&opts.skipChecks, "skip-checks", false, "Skip the preflight checks")
	return cmd
}

func runBatch(cmd *cobra.Command, cmdCtx *commandContext, base *config.Config, root string, opts runOptions) error {
	cfg, err := applyRunOverrides(base, opts)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if !opts.skipChecks {
		if failed := preflight.Failed(preflight.Essentials(cfg)); len(failed) > 0 {
			for _, r := range failed {
				fmt.Fprintf(out, "%s: %s\n", r.Name, r.Detail)
			}
			return errors.New("preflight checks failed; run `captioner check` for details")
		}
	}

	logger, err := cmdCtx.logger(cfg)
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limit := opts.limit
	if limit <= 0 {
		limit = cfg.Workers.BatchSize
	}
	scanner := discovery.NewScanner(
		job.Flags{TranscriptEnabled: cfg.Transcripts.Enabled, ForceRegenerate: cfg.Transcripts.ForceRegenerate},
		discovery.WithLimit(limit),
		discovery.WithLogger(logger),
	)
	var report discovery.Report
	if opts.listPath != "" {
		listPath, err := config.ExpandPath(opts.listPath)
		if err != nil {
			return fmt.Errorf("resolve file list: %w", err)
		}
		report, err = scanner.FromList(sigCtx, listPath)
		if err != nil {
			return err
		}
	} else {
		report, err = scanner.Scan(sigCtx, root)
		if err != nil {
			return err
		}
	}
	renderDiscovery(out, report)
	if len(report.Files) == 0 {
		fmt.Fprintln(out, "No files need processing")
		return nil
	}

	specs := make([]job.Spec, 0, len(report.Files))
	terms := splitKeyterms(opts.keyterms)
	for _, file := range report.Files {
		spec := job.NewSpec(file, cfg)
		spec.Options.Keyterms = slices.Clone(terms)
		specs = append(specs, spec)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open progress store: %w", err)
	}
	defer store.Close()
	coordinator, err := daemonrun.NewCoordinator(cfg, store, logger)
	if err != nil {
		return err
	}

	handle, err := coordinator.Submit(sigCtx, specs, submitter(), batch.WithSkipped(report.Skipped...))
	if err != nil {
		return fmt.Errorf("start batch: %w", err)
	}
	fmt.Fprintf(out, "Batch %s: %d file(s) queued (model %s, language %s, concurrency %d)\n",
		handle.ID, handle.Count, cfg.Deepgram.Model, cfg.Deepgram.Language, cfg.Workers.Concurrency)

	waitDone := make(chan struct{})
	go func() {
		select {
		case <-sigCtx.Done():
			fmt.Fprintln(out, "Interrupted; cancelling remaining files")
			if err := coordinator.Cancel(context.Background(), handle.ID); err != nil && !errors.Is(err, queue.ErrBatchNotFound) {
				logger.Debug("cancel after interrupt", logging.Error(err))
			}
		case <-waitDone:
		}
	}()
	summary, err := coordinator.Wait(context.Background(), handle.ID)
	close(waitDone)
	if err != nil {
		return fmt.Errorf("wait for batch: %w", err)
	}

	renderSummary(out, summary)
	if sigCtx.Err() != nil {
		return context.Canceled
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d file(s) failed", summary.Failed)
	}
	return nil
}

// applyRunOverrides returns a copy of base with command-line overrides applied.
func applyRunOverrides(base *config.Config, opts runOptions) (*config.Config, error) {
	cfg := *base
	if model := strings.TrimSpace(opts.model); model != "" {
		if !slices.Contains(config.ModelChoices, model) {
			return nil, fmt.Errorf("unsupported model %q (choose from %s)", model, strings.Join(config.ModelChoices, ", "))
		}
		cfg.Deepgram.Model = model
	}
	if lang := strings.TrimSpace(opts.language); lang != "" {
		normalized, err := language.Normalize(lang)
		if err != nil {
			return nil, err
		}
		cfg.Deepgram.Language = normalized
	}
	if opts.force {
		cfg.Transcripts.ForceRegenerate = true
	}
	if opts.noTranscripts {
		cfg.Transcripts.Enabled = false
	}
	if opts.concurrency < 0 {
		return nil, errors.New("--concurrency must be positive")
	}
	if opts.concurrency > 0 {
		cfg.Workers.Concurrency = opts.concurrency
	}
	return &cfg, nil
}

func splitKeyterms(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	terms := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			terms = append(terms, p)
		}
	}
	return keyterms.Dedupe(terms)
}

func submitter() string {
	if user := strings.TrimSpace(os.Getenv("USER")); user != "" {
		return "cli:" + user
	}
	return "cli"
}

func renderDiscovery(out io.Writer, report discovery.Report) {
	for _, inv := range report.Invalid {
		if inv.Line > 0 {
			fmt.Fprintf(out, "Skipping line %d (%s): %s\n", inv.Line, inv.Reason, inv.Value)
			continue
		}
		fmt.Fprintf(out, "Skipping %s: %s\n", inv.Value, inv.Reason)
	}
	fmt.Fprintf(out, "Found %d file(s) to process, %d already up to date\n", len(report.Files), len(report.Skipped))
	if report.Truncated {
		fmt.Fprintln(out, "File limit reached; remaining media will be picked up by the next run")
	}
}

func renderSummary(out io.Writer, summary stats.Summary) {
	elapsed := "-"
	if !summary.EndTime.IsZero() {
		elapsed = summary.EndTime.Sub(summary.StartTime).Round(time.Second).String()
	}
	rows := [][]string{
		{"Processed", fmt.Sprintf("%d", summary.Processed)},
		{"Skipped", fmt.Sprintf("%d", summary.Skipped)},
		{"Failed", fmt.Sprintf("%d", summary.Failed)},
		{"Minutes", fmt.Sprintf("%.1f", summary.TotalMinutes)},
		{"Estimated cost", fmt.Sprintf("$%.2f", summary.EstimatedCost)},
		{"Model", summary.Model},
		{"Elapsed", elapsed},
	}
	fmt.Fprintln(out, renderTable([]column{left("Batch"), right("Value")}, rows))
	if len(summary.FailedFiles) > 0 {
		fmt.Fprintln(out, "Failed files:")
		for _, path := range summary.FailedFiles {
			fmt.Fprintf(out, "  - %s\n", path)
		}
	}
}
