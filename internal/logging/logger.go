package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"captioner/internal/config"
)

// LogFileName is the CLI's log file under paths.log_dir.
const LogFileName = "captioner.log"

// Options describes logger construction parameters. Outputs lists "stdout",
// "stderr", or file paths; an empty list means stdout.
type Options struct {
	Level       string
	Format      string
	Outputs     []string
	Development bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	level := new(slog.LevelVar)
	level.Set(ParseLevel(opts.Level))
	addSource := opts.Development || level.Level() <= slog.LevelDebug

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format != "" && format != "console" && format != "json" {
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
	w, err := openOutputs(opts.Outputs)
	if err != nil {
		return nil, err
	}
	if format == "json" {
		return slog.New(newJSONHandler(w, level, addSource)), nil
	}
	return slog.New(newConsoleHandler(w, level, addSource)), nil
}

// NewFromConfig logs to stdout and to LogFileName in the configured log
// directory.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info"})
	}
	outputs := []string{"stdout"}
	if dir := strings.TrimSpace(cfg.Paths.LogDir); dir != "" {
		outputs = append(outputs, filepath.Join(dir, LogFileName))
	}
	return New(Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Outputs: outputs})
}

// OpenFileHandler returns a JSON handler appending to path. The returned
// closer releases the file.
func OpenFileHandler(path, level string) (slog.Handler, io.Closer, error) {
	file, err := appendFile(path)
	if err != nil {
		return nil, nil, err
	}
	return newJSONHandler(file, ParseLevel(level), false), file, nil
}

// ParseLevel maps a configured level name to slog; unknown names are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func openOutputs(outputs []string) (io.Writer, error) {
	var writers []io.Writer
	var seen []string
	for _, out := range outputs {
		out = strings.TrimSpace(out)
		if out == "" || slices.Contains(seen, out) {
			continue
		}
		seen = append(seen, out)
		switch out {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			file, err := appendFile(out)
			if err != nil {
				return nil, err
			}
			writers = append(writers, file)
		}
	}
	switch len(writers) {
	case 0:
		return os.Stdout, nil
	case 1:
		return writers[0], nil
	}
	return io.MultiWriter(writers...), nil
}

func appendFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return file, nil
}
