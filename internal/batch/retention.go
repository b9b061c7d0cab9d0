package batch

import (
	"log/slog"
	"path/filepath"

	"captioner/internal/config"
	"captioner/internal/joblog"
	"captioner/internal/logging"
	"captioner/internal/stats"
)

// LogDirName is the subdirectory of the log directory holding per-batch logs.
const LogDirName = "batches"

// LogPath returns the per-batch log file for id.
func LogPath(cfg *config.Config, id string) string {
	return filepath.Join(cfg.Paths.LogDir, LogDirName, id+".log")
}

// PruneLogs removes job logs, stats summaries, and batch logs older than
// logging.retention_days and returns how many files were removed.
func PruneLogs(cfg *config.Config, logger *slog.Logger) int {
	if cfg == nil {
		return 0
	}
	return logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: joblog.Pattern},
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: stats.FilePrefix + "*.json"},
		logging.RetentionTarget{Dir: filepath.Join(cfg.Paths.LogDir, LogDirName), Pattern: "*.log"},
	)
}
