// Package daemonrun wires the long-lived captioner components: the
// transcription pipeline, the batch coordinator, and the web runner process.
// Both the captionerd binary and "captioner serve" start the web runner
// through Run; "captioner run" builds its coordinator with NewCoordinator.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"captioner/internal/batch"
	"captioner/internal/config"
	"captioner/internal/daemon"
	"captioner/internal/deps"
	"captioner/internal/joblog"
	"captioner/internal/logging"
	"captioner/internal/pipeline"
	"captioner/internal/queue"
	"captioner/internal/services/deepgram"
	"captioner/internal/services/ffmpeg"
)

const (
	logPrefix  = "captionerd-"
	logPointer = "captionerd.log"
	pidFile    = "captionerd.pid"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Bind overrides paths.api_bind when set.
	Bind string
}

// NewPipelineRunner builds the single-file runner backed by ffmpeg, ffprobe,
// and the Deepgram HTTP client.
func NewPipelineRunner(cfg *config.Config, logger *slog.Logger) *pipeline.Runner {
	ffmpegPath := deps.ResolveFFmpegPath(cfg.FFmpegBinary())
	return pipeline.NewRunner(cfg, pipeline.Dependencies{
		Extractor: ffmpeg.NewExtractor(ffmpegPath, nil),
		Prober:    ffmpeg.NewProber(deps.ResolveFFprobePath(cfg.FFmpegBinary(), cfg.FFprobeBinary()), nil),
		Transcriber: deepgram.NewClient(deepgram.Config{
			APIKey:         cfg.Deepgram.APIKey,
			BaseURL:        cfg.Deepgram.BaseURL,
			TimeoutSeconds: cfg.Deepgram.TimeoutSeconds,
		}),
		JobLog: joblog.NewWriter(cfg.Paths.LogDir),
		Logger: logger,
	})
}

// NewCoordinator builds a batch coordinator over store using the production
// pipeline runner.
func NewCoordinator(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*batch.Coordinator, error) {
	return batch.NewCoordinator(cfg, batch.Dependencies{
		Runner: NewPipelineRunner(cfg, logger),
		Store:  store,
		Logger: logger,
	})
}

// Run starts the web runner and blocks until ctx is cancelled or the process
// receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if bind := strings.TrimSpace(opts.Bind); bind != "" {
		copied := *cfg
		copied.Paths.APIBind = bind
		cfg = &copied
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, logPrefix+runID+".log")
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		Outputs:     []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logPointer, err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: logPrefix + "*.log", Exclude: []string{logPath}},
	)
	logDependencySnapshot(logger, cfg)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open progress store", logging.Error(err))
		return err
	}
	coordinator, err := NewCoordinator(cfg, store, logger)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create batch coordinator: %w", err)
	}
	d, err := daemon.New(cfg, store, coordinator, logger)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.api_bind and that no other captionerd holds the lock"),
			logging.String(logging.FieldImpact, "web runner unavailable"),
		)
		return err
	}

	pidPath := filepath.Join(cfg.Paths.StateDir, pidFile)
	if err := writePIDFile(pidPath); err != nil {
		logger.Warn("pid file not written", logging.Error(err))
	}
	defer os.Remove(pidPath)

	<-signalCtx.Done()
	logger.Info("captioner daemon shutting down")
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logPointer)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	ffmpegPath := deps.ResolveFFmpegPath(cfg.FFmpegBinary())
	ffprobePath := deps.ResolveFFprobePath(cfg.FFmpegBinary(), cfg.FFprobeBinary())
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("deepgram_key_present", strings.TrimSpace(cfg.Deepgram.APIKey) != ""),
		logging.String("deepgram_model", cfg.Deepgram.Model),
		logging.Bool("ffmpeg_available", deps.Available(ffmpegPath)),
		logging.String("ffmpeg_binary", ffmpegPath),
		logging.Bool("ffprobe_available", deps.Available(ffprobePath)),
		logging.String("ffprobe_binary", ffprobePath),
		logging.Bool("bazarr_configured", cfg.BazarrConfigured()),
		logging.Bool("keyterms_configured", cfg.KeytermsConfigured()),
		logging.Bool("notifications_enabled", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.Int("concurrency", cfg.Workers.Concurrency),
	)
}
