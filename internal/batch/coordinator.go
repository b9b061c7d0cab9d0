package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"captioner/internal/config"
	"captioner/internal/job"
	"captioner/internal/logging"
	"captioner/internal/notifications"
	"captioner/internal/pipeline"
	"captioner/internal/queue"
	"captioner/internal/services"
	"captioner/internal/services/bazarr"
	"captioner/internal/stats"
)

// ErrNotActive is returned when a batch exists but is not being run by this
// coordinator.
var ErrNotActive = errors.New("batch is not active in this process")

// Runner executes one unit of work. *pipeline.Runner satisfies it.
type Runner interface {
	RunOne(ctx context.Context, spec job.Spec, progress pipeline.ProgressFunc) job.Result
}

// Handle identifies a submitted batch.
type Handle struct {
	ID    string `json:"batch_id"`
	Count int    `json:"count"`
}

// Dependencies are the collaborators a Coordinator drives.
type Dependencies struct {
	Runner   Runner
	Store    *queue.Store
	Bazarr   bazarr.Service
	Notifier notifications.Service
	Logger   *slog.Logger
	Now      func() time.Time
}

// Coordinator runs batches. It is safe for concurrent use.
type Coordinator struct {
	cfg      *config.Config
	runner   Runner
	store    *queue.Store
	bazarr   bazarr.Service
	notifier notifications.Service
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	active map[string]*run
	wg     sync.WaitGroup
}

type run struct {
	id    string
	specs []job.Spec

	// base carries the batch id but is never cancelled; store writes use it so
	// cancelled batches still record their outcome.
	base   context.Context
	ctx    context.Context
	cancel context.CancelFunc

	logger    *slog.Logger
	logCloser io.Closer
	recorder  *stats.Recorder

	finished  atomic.Int64
	cancelled atomic.Bool

	once    sync.Once
	done    chan struct{}
	summary stats.Summary
}

// NewCoordinator validates deps and builds a coordinator.
func NewCoordinator(cfg *config.Config, deps Dependencies) (*Coordinator, error) {
	if cfg == nil {
		return nil, errors.New("batch coordinator requires config")
	}
	if deps.Runner == nil {
		return nil, errors.New("batch coordinator requires a runner")
	}
	if deps.Store == nil {
		return nil, errors.New("batch coordinator requires a progress store")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	rescan := deps.Bazarr
	if rescan == nil {
		rescan = bazarr.NewConfiguredService(cfg)
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		cfg:      cfg,
		runner:   deps.Runner,
		store:    deps.Store,
		bazarr:   rescan,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "batch"),
		now:      now,
		active:   make(map[string]*run),
	}, nil
}

// SubmitOption adjusts a single Submit call.
type SubmitOption func(*submitOptions)

type submitOptions struct {
	skipped []string
}

// WithSkipped counts paths the caller already found up to date as skipped
// in the batch summary. They are not dispatched and get no file rows.
func WithSkipped(paths ...string) SubmitOption {
	return func(o *submitOptions) { o.skipped = append(o.skipped, paths...) }
}

// Submit records specs as a new batch and starts it in the background. The
// batch outlives ctx; use Cancel to stop it.
func (c *Coordinator) Submit(ctx context.Context, specs []job.Spec, submittedBy string, opts ...SubmitOption) (Handle, error) {
	var so submitOptions
	for _, opt := range opts {
		opt(&so)
	}
	id := uuid.NewString()
	model, language := c.batchModel(specs)
	filePaths := make([]string, len(specs))
	for i, spec := range specs {
		filePaths[i] = spec.File.Path
	}

	if _, err := c.store.CreateBatch(ctx, queue.NewBatch{
		ID:          id,
		SubmittedBy: submittedBy,
		Model:       model,
		Language:    language,
		Paths:       filePaths,
	}); err != nil {
		return Handle{}, fmt.Errorf("record batch: %w", err)
	}
	if err := c.store.MarkBatchRunning(ctx, id); err != nil {
		return Handle{}, fmt.Errorf("start batch: %w", err)
	}

	base := services.WithBatchID(context.WithoutCancel(ctx), id)
	runCtx, cancel := context.WithCancel(base)
	r := &run{
		id:       id,
		specs:    specs,
		base:     base,
		ctx:      runCtx,
		cancel:   cancel,
		recorder: stats.NewRecorder(model, language, c.cfg.PricePerMinute(model), c.now()),
		done:     make(chan struct{}),
	}
	r.logger, r.logCloser = c.batchLogger(base, id)
	for _, path := range so.skipped {
		r.recorder.Record(job.Result{Path: path, Status: job.StatusSkipped})
	}

	c.mu.Lock()
	c.active[id] = r
	c.mu.Unlock()

	c.wg.Add(1)
	go c.execute(r)

	return Handle{ID: id, Count: len(specs)}, nil
}

// Wait blocks until the batch has finalized and returns its summary. Batches
// finished earlier, or by another process, are read back from the store.
func (c *Coordinator) Wait(ctx context.Context, id string) (stats.Summary, error) {
	if r, ok := c.lookup(id); ok {
		select {
		case <-r.done:
			return r.summary, nil
		case <-ctx.Done():
			return stats.Summary{}, ctx.Err()
		}
	}
	batch, err := c.store.GetBatch(ctx, id)
	if err != nil {
		return stats.Summary{}, err
	}
	if !batch.Status.Terminal() {
		return stats.Summary{}, fmt.Errorf("%w: %s", ErrNotActive, id)
	}
	return DecodeSummary(batch.SummaryJSON)
}

// Status returns the batch with per-file progress.
func (c *Coordinator) Status(ctx context.Context, id string) (*queue.Snapshot, error) {
	return c.store.Snapshot(ctx, id)
}

// Cancel stops a running batch. Files that have not started are recorded as
// cancelled; files already running see a cancelled context and may still
// finish.
func (c *Coordinator) Cancel(ctx context.Context, id string) error {
	r, ok := c.lookup(id)
	if !ok {
		if _, err := c.store.GetBatch(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrNotActive, id)
	}
	if !r.cancelled.CompareAndSwap(false, true) {
		return nil
	}
	r.cancel()
	n, err := c.store.CancelQueued(r.base, id)
	if err != nil {
		logging.WarnWithContext(r.logger, "queued files not marked cancelled", "cancel_mark_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "progress view shows queued files until they are skipped"),
		)
	}
	r.logger.Info("batch cancellation requested",
		logging.String(logging.FieldEventType, "batch_cancel_requested"),
		logging.Int64("queued_cancelled", n),
	)
	return nil
}

// Active lists the ids of batches running in this process.
func (c *Coordinator) Active() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.active))
	for id := range c.active {
		ids = append(ids, id)
	}
	return ids
}

// Close cancels every running batch and waits for them to finalize or for
// ctx to expire.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	runs := make([]*run, 0, len(c.active))
	for _, r := range c.active {
		runs = append(runs, r)
	}
	c.mu.Unlock()
	for _, r := range runs {
		if r.cancelled.CompareAndSwap(false, true) {
			r.cancel()
		}
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for batches: %w", ctx.Err())
	}
}

func (c *Coordinator) lookup(id string) (*run, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.active[id]
	return r, ok
}

func (c *Coordinator) execute(r *run) {
	defer c.wg.Done()

	workers := c.concurrency()
	r.logger.Info("batch started",
		logging.String(logging.FieldEventType, "batch_started"),
		logging.Int("files", len(r.specs)),
		logging.Int("concurrency", workers),
	)
	c.publish(r, notifications.EventBatchStarted, notifications.Payload{
		"batchID": r.id,
		"count":   len(r.specs),
	})

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for pos, spec := range r.specs {
		select {
		case sem <- struct{}{}:
		case <-r.ctx.Done():
		}
		if r.ctx.Err() != nil {
			c.complete(r, pos, c.cancelledResult(spec))
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			c.runUnit(r, pos, spec)
		}()
	}
	wg.Wait()

	c.finalize(r)
}

func (c *Coordinator) runUnit(r *run, pos int, spec job.Spec) {
	storeCtx := services.WithJobPath(r.base, spec.File.Path)
	progress := func(state queue.FileState) {
		if state.Terminal() {
			return
		}
		if err := c.store.SetFileState(storeCtx, r.id, pos, state); err != nil {
			r.logger.Debug("file progress not recorded",
				logging.String(logging.FieldJobPath, spec.File.Path),
				logging.String("state", string(state)),
				logging.Error(err),
			)
		}
	}
	c.complete(r, pos, c.runGuarded(r, spec, progress))
}

// runGuarded converts a panicking unit into an errored result so the batch
// still reaches finalize.
func (c *Coordinator) runGuarded(r *run, spec job.Spec, progress pipeline.ProgressFunc) (result job.Result) {
	defer func() {
		p := recover()
		if p == nil {
			return
		}
		logging.ErrorWithContext(r.logger, "file worker panicked", "file_panic",
			logging.String(logging.FieldJobPath, spec.File.Path),
			logging.String("panic", fmt.Sprint(p)),
			logging.String("stack", string(debug.Stack())),
			logging.String(logging.FieldImpact, "file marked failed; remaining files continue"),
		)
		result = job.Result{
			Path:      spec.File.Path,
			Status:    job.StatusError,
			Error:     fmt.Sprintf("internal error: %v", p),
			ErrorKind: services.KindUnknown,
			Finished:  c.now(),
		}
	}()
	return c.runner.RunOne(r.ctx, spec, progress)
}

func (c *Coordinator) complete(r *run, pos int, result job.Result) {
	r.recorder.Record(result)
	if err := c.store.CompleteFile(r.base, r.id, pos, fileResult(result)); err != nil {
		logging.WarnWithContext(r.logger, "file outcome not recorded", "file_record_failed",
			logging.String(logging.FieldJobPath, result.Path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the progress database at "+c.store.Path()),
			logging.String(logging.FieldImpact, "progress view may show a stale state for this file"),
		)
	}

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "file_finished"),
		logging.String(logging.FieldJobPath, result.Path),
		logging.String("status", string(result.Status)),
	}
	if result.ErrorKind != "" {
		attrs = append(attrs, logging.String(logging.FieldErrorKind, result.ErrorKind))
	}
	r.logger.Info("file finished", logging.Args(attrs...)...)

	n := int(r.finished.Add(1))
	every := c.cfg.Workers.CheckpointEvery
	if every > 0 && n%every == 0 && n < len(r.specs) {
		snap := r.recorder.Snapshot()
		r.logger.Info("batch checkpoint",
			logging.String(logging.FieldEventType, "batch_checkpoint"),
			logging.Int("finished", n),
			logging.Int("total", len(r.specs)),
			logging.Int("processed", snap.Processed),
			logging.Int("skipped", snap.Skipped),
			logging.Int("failed", snap.Failed),
			logging.Float64("minutes", snap.TotalMinutes),
			logging.Float64("estimated_cost", snap.EstimatedCost),
		)
	}
}

// finalize runs once per batch after every file is terminal.
func (c *Coordinator) finalize(r *run) {
	r.once.Do(func() {
		summary := r.recorder.Finish(c.now())
		status := queue.BatchDone
		if r.cancelled.Load() {
			status = queue.BatchCancelled
		}

		if path, err := r.recorder.Save(c.cfg.Paths.LogDir); err != nil {
			logging.WarnWithContext(r.logger, "stats summary not saved", "stats_save_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on "+c.cfg.Paths.LogDir),
				logging.String(logging.FieldImpact, "run summary is only in the progress database"),
			)
		} else {
			r.logger.Debug("stats summary saved", logging.String("path", path))
		}

		data, err := json.Marshal(summary)
		if err != nil {
			data = nil
		}
		if err := c.store.FinishBatch(r.base, r.id, status, string(data), summary.EndTime); err != nil {
			logging.WarnWithContext(r.logger, "batch outcome not recorded", "batch_record_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "batch stays running in the progress view"),
			)
		}

		c.rescan(r)
		c.publish(r, notifications.EventBatchCompleted, notifications.Payload{
			"batchID":   r.id,
			"processed": summary.Processed,
			"skipped":   summary.Skipped,
			"failed":    summary.Failed,
			"minutes":   summary.TotalMinutes,
			"cost":      summary.EstimatedCost,
			"duration":  summary.EndTime.Sub(summary.StartTime),
		})
		c.purge(r)

		r.logger.Info("batch finished",
			logging.String(logging.FieldEventType, "batch_finished"),
			logging.String("status", string(status)),
			logging.Int("processed", summary.Processed),
			logging.Int("skipped", summary.Skipped),
			logging.Int("failed", summary.Failed),
			logging.Float64("minutes", summary.TotalMinutes),
			logging.Float64("estimated_cost", summary.EstimatedCost),
			logging.Duration("elapsed", summary.EndTime.Sub(summary.StartTime)),
		)

		r.summary = summary
		if r.logCloser != nil {
			_ = r.logCloser.Close()
		}
		r.cancel()

		c.mu.Lock()
		delete(c.active, r.id)
		c.mu.Unlock()
		close(r.done)
	})
}

func (c *Coordinator) rescan(r *run) {
	if !c.bazarr.Enabled() {
		return
	}
	if err := c.bazarr.Rescan(r.base); err != nil {
		logging.WarnWithContext(r.logger, "bazarr rescan failed", "bazarr_rescan_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check bazarr.base_url and bazarr.api_key"),
			logging.String(logging.FieldImpact, "indexer not refreshed"),
		)
		if err := c.store.SetBatchError(r.base, r.id, "bazarr rescan failed: "+err.Error()); err != nil {
			r.logger.Debug("batch error not recorded", logging.Error(err))
		}
		c.publish(r, notifications.EventError, notifications.Payload{
			"context": "Bazarr rescan",
			"error":   err.Error(),
		})
		return
	}
	r.logger.Info("bazarr rescan triggered", logging.String(logging.FieldEventType, "bazarr_rescan"))
}

func (c *Coordinator) publish(r *run, event notifications.Event, payload notifications.Payload) {
	if err := c.notifier.Publish(r.base, event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			r.logger.Debug("notification skipped during shutdown", logging.String("event", string(event)))
			return
		}
		logging.WarnWithContext(r.logger, "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "batch notification not delivered"),
		)
	}
}

func (c *Coordinator) purge(r *run) {
	hours := c.cfg.Workers.ResultRetentionHours
	if hours <= 0 {
		return
	}
	cutoff := c.now().Add(-time.Duration(hours) * time.Hour)
	removed, err := c.store.PurgeFinished(r.base, cutoff)
	if err != nil {
		r.logger.Debug("finished batch purge failed", logging.Error(err))
		return
	}
	if removed > 0 {
		r.logger.Debug("purged finished batches", logging.Int64("removed", removed))
	}
}

func (c *Coordinator) batchLogger(ctx context.Context, id string) (*slog.Logger, io.Closer) {
	base := c.logger
	var closer io.Closer
	if strings.TrimSpace(c.cfg.Paths.LogDir) != "" {
		handler, fileCloser, err := logging.OpenFileHandler(LogPath(c.cfg, id), c.cfg.Logging.Level)
		if err != nil {
			logging.WarnWithContext(c.logger, "batch log file unavailable", "batch_log_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "batch lines only reach the main log"),
			)
		} else {
			base = logging.TeeLogger(c.logger, handler)
			closer = fileCloser
		}
	}
	return logging.WithContext(ctx, base), closer
}

func (c *Coordinator) concurrency() int {
	if n := c.cfg.Workers.Concurrency; n > 0 {
		return n
	}
	return 1
}

func (c *Coordinator) batchModel(specs []job.Spec) (string, string) {
	model, language := c.cfg.Deepgram.Model, c.cfg.Deepgram.Language
	if len(specs) > 0 {
		if m := strings.TrimSpace(specs[0].Options.Model); m != "" {
			model = m
		}
		if l := strings.TrimSpace(specs[0].Options.Language); l != "" {
			language = l
		}
	}
	return model, language
}

func (c *Coordinator) cancelledResult(spec job.Spec) job.Result {
	return job.Result{
		Path:      spec.File.Path,
		Status:    job.StatusError,
		Error:     queue.CancelledMessage,
		ErrorKind: services.KindCancelled,
		Finished:  c.now(),
	}
}

func fileResult(result job.Result) queue.FileResult {
	out := queue.FileResult{
		ErrorMessage:    result.Error,
		ErrorKind:       result.ErrorKind,
		DurationMinutes: result.DurationMinutes,
		StartedAt:       result.Started,
		FinishedAt:      result.Finished,
	}
	switch result.Status {
	case job.StatusOK:
		out.State = queue.FileDone
		if data, err := json.Marshal(result.Outputs); err == nil {
			out.OutputsJSON = string(data)
		}
	case job.StatusSkipped:
		out.State = queue.FileSkipped
	default:
		out.State = queue.FileError
	}
	return out
}

// DecodeSummary parses a stored batch summary. An empty value yields a zero
// summary.
func DecodeSummary(raw string) (stats.Summary, error) {
	var summary stats.Summary
	if strings.TrimSpace(raw) == "" {
		return summary, nil
	}
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		return summary, fmt.Errorf("decode batch summary: %w", err)
	}
	return summary, nil
}
