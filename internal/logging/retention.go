package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// RetentionTarget selects files in Dir whose base name matches Pattern.
// An empty Pattern matches every regular file. Paths listed in Exclude are
// never removed, whatever their age.
type RetentionTarget struct {
	Dir     string
	Pattern string
	Exclude []string
}

// CleanupOldLogs deletes files selected by targets whose modification time is
// older than retentionDays and reports how many were deleted. Zero or a
// negative retention keeps everything.
func CleanupOldLogs(logger *slog.Logger, retentionDays int, targets ...RetentionTarget) int {
	if retentionDays <= 0 {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed := 0
	for _, target := range targets {
		for _, path := range target.expired(cutoff) {
			if err := os.Remove(path); err != nil {
				WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
					String("path", path),
					Error(err),
					String(FieldErrorHint, "check file permissions and log_dir ownership"),
					String(FieldImpact, "old log file remains on disk"),
				)
				continue
			}
			removed++
			if logger != nil {
				logger.Debug("log pruned", String("path", path), String(FieldEventType, "log_pruned"))
			}
		}
	}
	return removed
}

// expired lists absolute paths under the target that predate cutoff.
func (t RetentionTarget) expired(cutoff time.Time) []string {
	dir := strings.TrimSpace(t.Dir)
	if dir == "" {
		return nil
	}
	pattern := globPattern(t.Pattern)
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil
	}
	excluded := absPaths(t.Exclude)
	var out []string
	for _, match := range matches {
		abs, err := filepath.Abs(match)
		if err != nil || slices.Contains(excluded, abs) {
			continue
		}
		info, err := os.Lstat(abs)
		if err != nil || !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
			continue
		}
		out = append(out, abs)
	}
	return out
}

func globPattern(pattern string) string {
	if p := strings.TrimSpace(pattern); p != "" {
		return p
	}
	return "*"
}

func absPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p = strings.TrimSpace(p); p == "" {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			out = append(out, abs)
		}
	}
	return out
}
