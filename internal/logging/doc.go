// Package logging assembles structured slog loggers and formatting helpers used
// across captioner.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code tags log lines
// with batch IDs, media paths, stages, and correlation IDs automatically. A
// tee handler lets batch runs mirror output into a per-batch log file, and
// CleanupOldLogs prunes job logs and stats summaries past their retention.
package logging
