package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"captioner/internal/config"
	"captioner/internal/fileutil"
	"captioner/internal/job"
	"captioner/internal/joblog"
	"captioner/internal/keyterms"
	"captioner/internal/logging"
	"captioner/internal/paths"
	"captioner/internal/queue"
	"captioner/internal/services"
	"captioner/internal/services/deepgram"
	"captioner/internal/subtitles"
)

// Stage names used in errors and log context.
const (
	StageCheck      = "check"
	StageExtract    = "extracting"
	StageKeyterms   = "keyterms"
	StageTranscribe = "transcribing"
	StageWrite      = "writing"
)

// AudioExtractor produces mono 16 kHz mp3 audio from a media file.
type AudioExtractor interface {
	Extract(ctx context.Context, src, dest string) error
}

// DurationProber measures media duration.
type DurationProber interface {
	Duration(ctx context.Context, src string) (time.Duration, error)
}

// ProgressFunc receives each state transition of a unit of work.
type ProgressFunc func(state queue.FileState)

// Dependencies are the external capabilities a Runner drives.
type Dependencies struct {
	Extractor   AudioExtractor
	Prober      DurationProber
	Transcriber deepgram.Transcriber
	JobLog      *joblog.Writer
	Logger      *slog.Logger
	Now         func() time.Time
}

// Runner executes single-file units of work. It is safe for concurrent use.
type Runner struct {
	cfg         *config.Config
	extractor   AudioExtractor
	prober      DurationProber
	transcriber deepgram.Transcriber
	jobLog      *joblog.Writer
	logger      *slog.Logger
	now         func() time.Time
}

// NewRunner builds a runner from cfg and deps.
func NewRunner(cfg *config.Config, deps Dependencies) *Runner {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{
		cfg:         cfg,
		extractor:   deps.Extractor,
		prober:      deps.Prober,
		transcriber: deps.Transcriber,
		jobLog:      deps.JobLog,
		logger:      logging.NewComponentLogger(logger, "pipeline"),
		now:         now,
	}
}

// RunOne processes spec and returns its result. Progress transitions are
// reported to progress when it is non-nil, ending with done, skipped, or
// error.
func (r *Runner) RunOne(ctx context.Context, spec job.Spec, progress ProgressFunc) job.Result {
	if progress == nil {
		progress = func(queue.FileState) {}
	}
	ctx = services.WithJobPath(ctx, spec.File.Path)
	logger := logging.WithContext(ctx, r.logger)

	result := job.Result{
		Path:    spec.File.Path,
		Started: r.now(),
		Outputs: job.Outputs{Subtitle: paths.SubtitlePath(spec.File.Path)},
	}

	outputs, duration, err := r.run(ctx, logger, spec, &result, progress)
	result.Finished = r.now()
	result.Outputs = outputs

	switch {
	case err != nil:
		result.Status = job.StatusError
		result.Error = err.Error()
		result.ErrorKind = err.Kind
		logging.ErrorWithContext(logger, "file failed", "file_failed",
			logging.String(logging.FieldErrorKind, err.Kind),
			logging.String(logging.FieldStage, err.Stage),
			logging.Error(err.Err),
			logging.String(logging.FieldErrorHint, errorHint(err.Kind)),
		)
		progress(queue.FileError)
	case result.Status == job.StatusSkipped:
		logger.Info("file skipped; outputs already exist",
			logging.String(logging.FieldEventType, "file_skipped"),
		)
		progress(queue.FileSkipped)
	default:
		result.Status = job.StatusOK
		r.fillTiming(&result, spec, duration)
		logger.Info("file complete",
			logging.String(logging.FieldEventType, "file_complete"),
			logging.String("subtitle", outputs.Subtitle),
			logging.Float64("duration_minutes", result.DurationMinutes),
			logging.Float64("estimated_cost", result.Cost),
			logging.Duration("elapsed", result.Elapsed()),
		)
		progress(queue.FileDone)
	}

	r.recordJob(ctx, logger, result)
	return result
}

func (r *Runner) run(ctx context.Context, logger *slog.Logger, spec job.Spec, result *job.Result, progress ProgressFunc) (job.Outputs, time.Duration, *Error) {
	outputs := result.Outputs
	if err := ctx.Err(); err != nil {
		return outputs, 0, classify(StageCheck, services.KindCancelled,
			services.Wrap(services.ErrCancelled, StageCheck, "dispatch", "batch cancelled before start", err))
	}
	if job.DecideOnDisk(spec.File.Path, spec.Flags()) == job.Skip {
		result.Status = job.StatusSkipped
		return outputs, 0, nil
	}
	if r.extractor == nil || r.transcriber == nil {
		return outputs, 0, classify(StageCheck, services.KindConfiguration,
			services.Wrap(services.ErrConfiguration, StageCheck, "runner", "extractor and transcriber are required", nil))
	}

	duration := r.probe(ctx, logger, spec)

	progress(queue.FileExtracting)
	audioPath, cleanup, err := r.tempAudio()
	if err != nil {
		return outputs, duration, classify(StageExtract, services.KindAudioExtraction,
			services.Wrap(services.ErrAudioExtraction, StageExtract, "temp file", "create temp audio", err))
	}
	defer cleanup()
	extractCtx := services.WithStage(ctx, StageExtract)
	if err := r.extractor.Extract(extractCtx, spec.File.Path, audioPath); err != nil {
		return outputs, duration, classify(StageExtract, services.KindAudioExtraction, err)
	}

	opts := spec.Options
	callerTerms := len(opts.Keyterms) > 0
	if !callerTerms && r.cfg.Keyterms.AutoLoad {
		opts.Keyterms = r.autoLoadKeyterms(logger, spec.File.Path)
	}

	progress(queue.FileTranscribing)
	transcribeCtx := services.WithStage(ctx, StageTranscribe)
	resp, err := r.transcriber.Transcribe(transcribeCtx, audioPath, deepgram.Options(opts))
	if err != nil {
		return outputs, duration, classify(StageTranscribe, services.KindTranscription, err)
	}
	if opts.DetectLanguage {
		if lang := resp.DetectedLanguage(); lang != "" {
			logger.Info("language detected",
				logging.String(logging.FieldEventType, "language_detected"),
				logging.String("language", lang),
			)
		}
	}
	cues := subtitles.BuildCues(resp, subtitles.CueOptions{
		DropMasked: strings.EqualFold(opts.ProfanityFilter, config.ProfanityRemove),
	})
	if len(cues) == 0 {
		err := deepgram.RequireSpeech(resp)
		if err == nil {
			err = services.Wrap(services.ErrNoSpeech, StageTranscribe, "subtitles", "response produced no subtitle cues", nil)
		}
		return outputs, duration, classify(StageTranscribe, services.KindNoSpeech, err)
	}
	if duration <= 0 && resp.Metadata.Duration > 0 {
		duration = time.Duration(resp.Metadata.Duration * float64(time.Second))
	}

	srt := subtitles.FormatSRT(cues)
	if issues := subtitles.ValidateSRT(srt); len(issues) > 0 {
		return outputs, duration, classify(StageWrite, services.KindMalformedResponse,
			services.Wrap(services.ErrMalformedResponse, StageWrite, "subtitles",
				"rendered subtitles are invalid: "+strings.Join(issues, "; "), nil))
	}

	progress(queue.FileWriting)
	if err := writeOutput(outputs.Subtitle, []byte(srt)); err != nil {
		return outputs, duration, classify(StageWrite, services.KindOutputWrite, err)
	}
	r.clearSyncMarker(logger, spec.File.Path)

	if spec.Transcript {
		path, err := r.writeTranscript(logger, spec.File.Path, resp)
		if err != nil {
			return outputs, duration, classify(StageWrite, services.KindOutputWrite, err)
		}
		outputs.Transcript = path
	}
	if spec.SaveRawJSON {
		path, err := writeRawJSON(spec.File.Path, resp.Raw)
		if err != nil {
			return outputs, duration, classify(StageWrite, services.KindOutputWrite, err)
		}
		outputs.RawJSON = path
	}
	if spec.SaveKeyterms && callerTerms {
		path, err := keyterms.SaveForMedia(ctx, spec.File.Path, opts.Keyterms)
		if err != nil {
			logging.WarnWithContext(logger, "keyterm csv not saved", "keyterms_save_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check Transcripts/Keyterms folder permissions"),
				logging.String(logging.FieldImpact, "keyterms will not auto-load for other episodes"),
			)
		} else {
			outputs.Keyterms = path
		}
	}
	return outputs, duration, nil
}

func (r *Runner) probe(ctx context.Context, logger *slog.Logger, spec job.Spec) time.Duration {
	if r.prober == nil {
		return 0
	}
	duration, err := r.prober.Duration(ctx, spec.File.Path)
	if err != nil {
		logging.WarnWithContext(logger, "media duration unavailable", "duration_probe_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "verify ffprobe is installed and the file is readable"),
			logging.String(logging.FieldImpact, "duration falls back to the transcription metadata"),
		)
		return 0
	}
	minutes := duration.Minutes()
	logger.Info("transcribing file",
		logging.String(logging.FieldEventType, "file_start"),
		logging.Float64("duration_minutes", minutes),
		logging.Float64("estimated_cost", minutes*r.cfg.PricePerMinute(spec.Options.Model)),
		logging.String("model", spec.Options.Model),
	)
	return duration
}

func (r *Runner) tempAudio() (string, func(), error) {
	dir := r.cfg.Paths.TempDir
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", nil, err
		}
	}
	file, err := os.CreateTemp(dir, "captioner-*.mp3")
	if err != nil {
		return "", nil, err
	}
	name := file.Name()
	_ = file.Close()
	return name, func() { _ = os.Remove(name) }, nil
}

func (r *Runner) autoLoadKeyterms(logger *slog.Logger, mediaPath string) []string {
	terms, path, err := keyterms.LoadForMedia(mediaPath)
	if err != nil {
		logging.WarnWithContext(logger, "keyterm csv unreadable; continuing without keyterms", "keyterms_load_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "fix or delete the keyterm csv"),
			logging.String(logging.FieldImpact, "transcription runs without keyterm boosting"),
		)
		return nil
	}
	if len(terms) > 0 {
		logger.Debug("keyterms loaded",
			logging.String("path", path),
			logging.Int("count", len(terms)),
		)
	}
	return terms
}

func (r *Runner) clearSyncMarker(logger *slog.Logger, mediaPath string) {
	marker := paths.SyncedMarkerPath(mediaPath)
	removed, err := fileutil.RemoveIfExists(marker)
	if err != nil {
		logging.WarnWithContext(logger, "sync marker not removed", "sync_marker_failed",
			logging.String("path", marker),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete the .synced marker manually"),
			logging.String(logging.FieldImpact, "sync tooling may skip the regenerated subtitle"),
		)
		return
	}
	if removed {
		logger.Info("sync marker removed", logging.String("path", marker))
	}
}

func (r *Runner) writeTranscript(logger *slog.Logger, mediaPath string, resp deepgram.Response) (string, error) {
	if _, err := paths.TranscriptsFolder(mediaPath); err != nil {
		return "", services.Wrap(services.ErrOutputWrite, StageWrite, "transcript", "create Transcripts folder", err)
	}
	speakers, err := subtitles.LoadSpeakerMap(paths.SpeakerMapPath(mediaPath))
	if err != nil {
		logging.WarnWithContext(logger, "speaker map unreadable; using generic labels", "speaker_map_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "transcript uses Speaker N labels"),
		)
		speakers = subtitles.SpeakerMap{}
	}
	path := paths.TranscriptPath(mediaPath)
	text := subtitles.RenderTranscript(subtitles.TranscriptTurns(resp), speakers)
	if err := writeOutput(path, []byte(text)); err != nil {
		return "", err
	}
	return path, nil
}

func writeRawJSON(mediaPath string, raw []byte) (string, error) {
	if _, err := paths.JSONFolder(mediaPath); err != nil {
		return "", services.Wrap(services.ErrOutputWrite, StageWrite, "raw json", "create JSON folder", err)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		pretty.Reset()
		pretty.Write(raw)
	}
	path := paths.RawJSONPath(mediaPath)
	if err := writeOutput(path, pretty.Bytes()); err != nil {
		return "", err
	}
	return path, nil
}

func writeOutput(path string, data []byte) error {
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return services.Wrap(services.ErrOutputWrite, StageWrite, "write", path, err)
	}
	return nil
}

func (r *Runner) fillTiming(result *job.Result, spec job.Spec, duration time.Duration) {
	if duration <= 0 {
		return
	}
	result.MediaDuration = duration
	result.DurationMinutes = duration.Minutes()
	result.Cost = result.DurationMinutes * r.cfg.PricePerMinute(spec.Options.Model)
	result.ProcessingRatio = result.Elapsed().Seconds() / duration.Seconds()
}

func (r *Runner) recordJob(ctx context.Context, logger *slog.Logger, result job.Result) {
	if r.jobLog == nil {
		return
	}
	batchID, _ := services.BatchIDFromContext(ctx)
	if _, err := r.jobLog.WriteResult(batchID, result); err != nil {
		logging.WarnWithContext(logger, "job log not written", "job_log_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, fmt.Sprintf("check permissions on %s", r.cfg.Paths.LogDir)),
			logging.String(logging.FieldImpact, "audit trail is missing this file"),
		)
	}
}

func errorHint(kind string) string {
	switch kind {
	case services.KindAudioExtraction:
		return "check the file plays and ffmpeg is installed"
	case services.KindTranscription, services.KindMalformedResponse:
		return "check the Deepgram API key, quota, and service status"
	case services.KindNoSpeech:
		return "file has no recognizable speech; verify the audio track"
	case services.KindOutputWrite:
		return "check write permissions beside the media file"
	case services.KindCancelled:
		return "batch was cancelled"
	case services.KindConfiguration:
		return "run captioner config validate"
	default:
		return "check logs for details"
	}
}
