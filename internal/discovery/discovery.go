// Package discovery finds media files that need work, either by walking a
// directory tree or by reading an explicit newline-delimited file list. Both
// modes apply the skip policy before returning candidates.
package discovery

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"captioner/internal/job"
	"captioner/internal/logging"
	"captioner/internal/media"
)

// Invalid reasons reported for file-list entries.
const (
	ReasonNotFound    = "not found"
	ReasonNotFile     = "not a regular file"
	ReasonUnsupported = "unsupported extension"
)

// InvalidEntry is a file-list line that failed validation.
type InvalidEntry struct {
	Line   int
	Value  string
	Reason string
}

// Report is the outcome of a discovery pass.
type Report struct {
	Files     []media.File
	Skipped   []string
	Invalid   []InvalidEntry
	Truncated bool
}

// Option customizes a Scanner.
type Option func(*Scanner)

// WithLimit caps the number of candidate files returned. Zero means no cap.
func WithLimit(limit int) Option {
	return func(s *Scanner) {
		if limit > 0 {
			s.limit = limit
		}
	}
}

// WithLogger routes discovery diagnostics to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Scanner discovers media files and filters them through the skip policy.
type Scanner struct {
	flags  job.Flags
	limit  int
	logger *slog.Logger
}

// NewScanner constructs a scanner for the given skip-policy flags.
func NewScanner(flags job.Flags, opts ...Option) *Scanner {
	s := &Scanner{flags: flags, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "discovery")
	return s
}

// Scan walks root recursively. Ordering follows the directory walk.
func (s *Scanner) Scan(ctx context.Context, root string) (Report, error) {
	var report Report
	info, err := os.Stat(root)
	if err != nil {
		return report, fmt.Errorf("scan %s: %w", root, err)
	}
	if !info.IsDir() {
		return report, fmt.Errorf("scan %s: not a directory", root)
	}

	errLimit := errors.New("limit reached")
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			logging.WarnWithContext(s.logger, "directory unreadable; skipping subtree", "discovery_walk_error",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "media below this directory is not considered"),
				logging.String(logging.FieldErrorHint, "check directory permissions"),
			)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !media.Supported(path) || !regularFile(path, d) {
			return nil
		}
		if s.accept(&report, path) && s.limit > 0 && len(report.Files) >= s.limit {
			report.Truncated = true
			return errLimit
		}
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, errLimit) {
		return report, fmt.Errorf("scan %s: %w", root, walkErr)
	}

	s.logger.Info("directory scan complete",
		logging.String("root", root),
		logging.Int("candidates", len(report.Files)),
		logging.Int("skipped", len(report.Skipped)),
		logging.Bool("truncated", report.Truncated),
		logging.String(logging.FieldEventType, "discovery_scan_complete"),
	)
	return report, nil
}

// FromList reads a newline-delimited list of media paths. Blank lines and
// lines starting with # are ignored; invalid entries are logged with their
// line number and skipped. Order is preserved.
func (s *Scanner) FromList(ctx context.Context, listPath string) (Report, error) {
	var report Report
	file, err := os.Open(listPath)
	if err != nil {
		return report, fmt.Errorf("open file list: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if reason := validateEntry(line); reason != "" {
			report.Invalid = append(report.Invalid, InvalidEntry{Line: lineNo, Value: line, Reason: reason})
			logging.WarnWithContext(s.logger, "file list entry skipped", "discovery_invalid_entry",
				logging.Int("line", lineNo),
				logging.String("path", line),
				logging.String("reason", reason),
				logging.String(logging.FieldImpact, "entry is not processed"),
				logging.String(logging.FieldErrorHint, "fix or remove the line in the file list"),
			)
			continue
		}
		if s.accept(&report, line) && s.limit > 0 && len(report.Files) >= s.limit {
			report.Truncated = true
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return report, fmt.Errorf("read file list: %w", err)
	}

	s.logger.Info("file list loaded",
		logging.String("list", listPath),
		logging.Int("candidates", len(report.Files)),
		logging.Int("skipped", len(report.Skipped)),
		logging.Int("invalid", len(report.Invalid)),
		logging.String(logging.FieldEventType, "discovery_list_complete"),
	)
	return report, nil
}

// accept applies the skip policy and records the path. It reports whether
// the path became a candidate.
func (s *Scanner) accept(report *Report, path string) bool {
	file, err := media.NewFile(path)
	if err != nil {
		report.Invalid = append(report.Invalid, InvalidEntry{Value: path, Reason: err.Error()})
		return false
	}
	if job.DecideOnDisk(file.Path, s.flags) == job.Skip {
		report.Skipped = append(report.Skipped, file.Path)
		s.logger.Debug("already processed", logging.String("path", file.Path))
		return false
	}
	report.Files = append(report.Files, file)
	return true
}

// regularFile accepts regular files and symlinks that resolve to one.
// Symlinked directories are never descended into.
func regularFile(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func validateEntry(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return ReasonNotFound
	}
	if !info.Mode().IsRegular() {
		return ReasonNotFile
	}
	if !media.Supported(path) {
		return ReasonUnsupported
	}
	return ""
}
