package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"captioner/internal/api"
	"captioner/internal/batch"
	"captioner/internal/config"
	"captioner/internal/discovery"
	"captioner/internal/job"
	"captioner/internal/language"
	"captioner/internal/logging"
	"captioner/internal/media"
	"captioner/internal/queue"
)

var (
	// ErrOutsideMediaRoot rejects scan roots that escape the media root.
	ErrOutsideMediaRoot = errors.New("path must be under the media root")
	// ErrInvalidRequest marks submissions that cannot be turned into a batch.
	ErrInvalidRequest = errors.New("invalid request")
)

// Daemon owns the web runner: the single-instance lock, the batch
// coordinator, and the HTTP API server.
type Daemon struct {
	cfg         *config.Config
	logger      *slog.Logger
	store       *queue.Store
	coordinator *batch.Coordinator
	batches     *api.BatchService
	server      *apiServer

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt time.Time
	cancel    context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool      `json:"running"`
	PID           int       `json:"pid"`
	QueueDBPath   string    `json:"queue_db_path"`
	LockFilePath  string    `json:"lock_file_path"`
	ActiveBatches []string  `json:"active_batches"`
	StartedAt     time.Time `json:"started_at,omitzero"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, coordinator *batch.Coordinator, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || coordinator == nil {
		return nil, errors.New("daemon requires config, store, and batch coordinator")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "daemon"),
		store:       store,
		coordinator: coordinator,
		batches:     api.NewBatchService(store),
		lockPath:    cfg.LockPath(),
		lock:        flock.New(cfg.LockPath()),
	}
	d.server = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the single-instance lock, closes batches a previous process
// left open, and starts the HTTP API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("ensure lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another captionerd instance is already running")
	}

	if n, err := d.store.MarkInterrupted(ctx); err != nil {
		logging.WarnWithContext(d.logger, "interrupted batches not closed", "mark_interrupted_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "batches from a previous run stay running in the progress view"),
		)
	} else if n > 0 {
		d.logger.Info("closed batches interrupted by a previous run",
			logging.String(logging.FieldEventType, "batches_interrupted"),
			logging.Int64("batches", n),
		)
	}
	batch.PruneLogs(d.cfg, d.logger)

	var serverCtx context.Context
	serverCtx, d.cancel = context.WithCancel(ctx)
	if err := d.server.start(serverCtx); err != nil {
		d.cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}

	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("captioner daemon started",
		logging.String("lock", d.lockPath),
		logging.String("bind", d.cfg.Paths.APIBind),
	)
	return nil
}

// Stop shuts down the API server, cancels running batches, and releases the
// lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := d.coordinator.Close(ctx); err != nil {
		logging.WarnWithContext(d.logger, "batches still running at shutdown", "shutdown_timeout",
			logging.Error(err),
			logging.String(logging.FieldImpact, "unfinished batches are marked interrupted on next start"),
		)
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("captioner daemon stopped")
}

// Close stops the daemon and releases the store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Addr returns the API listener address once started.
func (d *Daemon) Addr() string {
	return d.server.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	active := d.coordinator.Active()
	slices.Sort(active)
	return Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		QueueDBPath:   d.store.Path(),
		LockFilePath:  d.lockPath,
		ActiveBatches: active,
		StartedAt:     d.startedAt,
	}
}

// Scan lists media under root that still needs work, capped at the
// configured scan limit. An empty root scans the whole media root.
func (d *Daemon) Scan(ctx context.Context, root string) (api.ScanResponse, error) {
	resolved, err := d.resolveUnderMediaRoot(root)
	if err != nil {
		return api.ScanResponse{}, err
	}
	scanner := discovery.NewScanner(
		job.Flags{TranscriptEnabled: d.cfg.Transcripts.Enabled},
		discovery.WithLimit(d.cfg.Web.ScanLimit),
		discovery.WithLogger(d.logger),
	)
	report, err := scanner.Scan(ctx, resolved)
	if err != nil {
		return api.ScanResponse{}, err
	}
	files := make([]string, 0, len(report.Files))
	for _, f := range report.Files {
		files = append(files, f.Path)
	}
	return api.ScanResponse{Count: len(files), Files: files, Truncated: report.Truncated}, nil
}

// Submit validates req and starts a batch for the accepted files. Paths
// outside the media root, missing files, and unsupported extensions are
// reported as rejected.
func (d *Daemon) Submit(ctx context.Context, req api.SubmitRequest, by string) (api.SubmitResponse, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = d.cfg.Deepgram.Model
	}
	if !slices.Contains(config.ModelChoices, model) {
		return api.SubmitResponse{}, fmt.Errorf("%w: model %q is not supported", ErrInvalidRequest, model)
	}
	lang := strings.TrimSpace(req.Language)
	if lang == "" {
		lang = d.cfg.Deepgram.Language
	}
	lang, err := language.Normalize(lang)
	if err != nil {
		return api.SubmitResponse{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	resp := api.SubmitResponse{By: by}
	specs := make([]job.Spec, 0, len(req.Files))
	for _, raw := range req.Files {
		file, reason := d.acceptFile(raw)
		if reason != "" {
			resp.Rejected = append(resp.Rejected, api.RejectedFile{Path: raw, Reason: reason})
			continue
		}
		spec := job.NewSpec(file, d.cfg)
		spec.Options.Model = model
		spec.Options.Language = lang
		spec.Options.Keyterms = slices.Clone(req.Keyterms)
		spec.Force = spec.Force || req.Force
		specs = append(specs, spec)
	}
	if len(specs) == 0 {
		return resp, fmt.Errorf("%w: no valid files submitted", ErrInvalidRequest)
	}

	handle, err := d.coordinator.Submit(ctx, specs, by)
	if err != nil {
		return resp, err
	}
	resp.BatchID = handle.ID
	resp.Enqueued = handle.Count
	d.logger.Info("batch submitted",
		logging.String(logging.FieldEventType, "batch_submitted"),
		logging.String(logging.FieldBatchID, handle.ID),
		logging.String("by", by),
		logging.Int("enqueued", handle.Count),
		logging.Int("rejected", len(resp.Rejected)),
	)
	return resp, nil
}

// Describe returns a batch with its per-file progress.
func (d *Daemon) Describe(ctx context.Context, id string) (*api.BatchView, error) {
	return d.batches.Describe(ctx, id)
}

// Cancel stops a running batch.
func (d *Daemon) Cancel(ctx context.Context, id string) error {
	return d.coordinator.Cancel(ctx, id)
}

func (d *Daemon) acceptFile(raw string) (media.File, string) {
	path, err := d.resolveUnderMediaRoot(raw)
	if err != nil || strings.TrimSpace(raw) == "" {
		return media.File{}, "outside media root"
	}
	info, err := os.Stat(path)
	if err != nil {
		return media.File{}, discovery.ReasonNotFound
	}
	if !info.Mode().IsRegular() {
		return media.File{}, discovery.ReasonNotFile
	}
	file, err := media.NewFile(path)
	if err != nil {
		return media.File{}, discovery.ReasonUnsupported
	}
	return file, ""
}

func (d *Daemon) resolveUnderMediaRoot(path string) (string, error) {
	root := filepath.Clean(d.cfg.Paths.MediaRoot)
	path = strings.TrimSpace(path)
	if path == "" {
		return root, nil
	}
	if !filepath.IsAbs(path) {
		return "", ErrOutsideMediaRoot
	}
	cleaned := filepath.Clean(path)
	rel, err := filepath.Rel(root, cleaned)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrOutsideMediaRoot
	}
	return cleaned, nil
}
