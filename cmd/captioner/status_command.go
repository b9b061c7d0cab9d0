package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"captioner/internal/api"
	"captioner/internal/batch"
	"captioner/internal/joblog"
	"captioner/internal/queue"
	"captioner/internal/stats"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status <batch-id>",
		Short: "Show a batch and the progress of each file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				view, err := api.NewBatchService(store).Describe(cmd.Context(), strings.TrimSpace(args[0]))
				if errors.Is(err, queue.ErrBatchNotFound) {
					return fmt.Errorf("batch %s not found", args[0])
				}
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.JobResponse{State: view.Status, Data: view})
				}
				renderBatch(cmd.OutOrStdout(), view)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the batch as JSON")
	return cmd
}

func renderBatch(out io.Writer, view *api.BatchView) {
	colorize := shouldColorize(out)
	fmt.Fprintf(out, "Batch %s\n", view.ID)
	fmt.Fprintln(out, renderStatusLine("Status", batchStatusKind(view.Status), view.Status, colorize))
	if view.SubmittedBy != "" {
		fmt.Fprintln(out, renderStatusLine("Submitted by", statusInfo, view.SubmittedBy, colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Model", statusInfo, fmt.Sprintf("%s (%s)", view.Model, view.Language), colorize))
	c := view.Counts
	fmt.Fprintln(out, renderStatusLine("Progress", statusInfo,
		fmt.Sprintf("%d/%d finished (%d done, %d skipped, %d failed, %d active)", c.Finished, c.Total, c.Done, c.Skipped, c.Failed, c.Active),
		colorize))
	if view.ErrorMessage != "" {
		fmt.Fprintln(out, renderStatusLine("Error", statusWarn, view.ErrorMessage, colorize))
	}
	if summary, err := batch.DecodeSummary(string(view.Summary)); err == nil && len(view.Summary) > 0 {
		fmt.Fprintln(out, renderStatusLine("Cost", statusInfo,
			fmt.Sprintf("$%.2f for %.1f minutes", summary.EstimatedCost, summary.TotalMinutes), colorize))
	}

	rows := make([][]string, 0, len(view.Files))
	for _, f := range view.Files {
		detail := f.ErrorMessage
		if f.ErrorKind != "" {
			detail = f.ErrorKind + ": " + detail
		}
		minutes := ""
		if f.DurationMinutes > 0 {
			minutes = fmt.Sprintf("%.1f", f.DurationMinutes)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", f.Position+1),
			colorCell(f.State, fileStateKind(f.State), colorize),
			filepath.Base(f.Path),
			minutes,
			detail,
		})
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable([]column{right("#"), left("State"), left("File"), right("Minutes"), left("Detail")}, rows))
	}
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent batches and processing-time statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			err = ctx.withStore(func(store *queue.Store) error {
				views, err := api.NewBatchService(store).List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				renderHistory(out, views)
				return nil
			})
			if err != nil {
				return err
			}

			if err := renderSavedRuns(out, cfg.Paths.LogDir, limit); err != nil {
				return err
			}

			records, unreadable, err := joblog.ReadAll(cfg.Paths.LogDir)
			if err != nil {
				return fmt.Errorf("read job logs: %w", err)
			}
			renderTiming(out, joblog.AnalyzeTiming(records), len(unreadable))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of batches to show")
	return cmd
}

func renderHistory(out io.Writer, views []api.BatchView) {
	if len(views) == 0 {
		fmt.Fprintln(out, "No batches recorded")
		return
	}
	colorize := shouldColorize(out)
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{
			v.ID,
			colorCell(v.Status, batchStatusKind(v.Status), colorize),
			v.Model,
			fmt.Sprintf("%d/%d", v.Counts.Finished, v.Counts.Total),
			fmt.Sprintf("%d", v.Counts.Failed),
			formatCreated(v.CreatedAt),
		})
	}
	fmt.Fprintln(out, renderTable([]column{left("Batch"), left("Status"), left("Model"), right("Finished"), right("Failed"), left("Created")}, rows))
}

// renderSavedRuns lists the newest run summaries saved in dir.
func renderSavedRuns(out io.Writer, dir string, limit int) error {
	files, err := stats.List(dir)
	if err != nil {
		return fmt.Errorf("list run summaries: %w", err)
	}
	if len(files) == 0 {
		fmt.Fprintln(out, "No run summaries saved")
		return nil
	}
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	rows := make([][]string, 0, len(files))
	unreadable := 0
	for _, path := range files {
		summary, err := stats.Load(path)
		if err != nil {
			unreadable++
			continue
		}
		started := ""
		if !summary.StartTime.IsZero() {
			started = summary.StartTime.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{
			strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), stats.FilePrefix), ".json"),
			started,
			fmt.Sprintf("%d", summary.Processed),
			fmt.Sprintf("%d", summary.Skipped),
			fmt.Sprintf("%d", summary.Failed),
			fmt.Sprintf("%.1f", summary.TotalMinutes),
			fmt.Sprintf("$%.2f", summary.EstimatedCost),
		})
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable([]column{
			left("Run"), left("Started"), right("Processed"), right("Skipped"), right("Failed"), right("Minutes"), right("Cost"),
		}, rows))
	}
	if unreadable > 0 {
		fmt.Fprintf(out, "%d run summary file(s) could not be parsed\n", unreadable)
	}
	return nil
}

func renderTiming(out io.Writer, timing joblog.Timing, unreadable int) {
	if timing.Jobs == 0 {
		fmt.Fprintln(out, "No completed jobs with media duration yet")
		return
	}
	rows := [][]string{
		{"Jobs", fmt.Sprintf("%d", timing.Jobs)},
		{"Mean multiplier", fmt.Sprintf("%.3f", timing.Mean)},
		{"Median multiplier", fmt.Sprintf("%.3f", timing.Median)},
		{"Range", fmt.Sprintf("%.3f - %.3f", timing.Min, timing.Max)},
		{"Conservative estimate", fmt.Sprintf("%.3f", timing.Conservative())},
		{"Media processed", (time.Duration(timing.TotalVideoSeconds) * time.Second).String()},
		{"Processing time", (time.Duration(timing.TotalProcessingSeconds) * time.Second).String()},
	}
	fmt.Fprintln(out, renderTable([]column{left("Timing"), right("Value")}, rows))
	if unreadable > 0 {
		fmt.Fprintf(out, "%d job log(s) could not be parsed\n", unreadable)
	}
}

func formatCreated(value string) string {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return parsed.Local().Format("2006-01-02 15:04")
}
