package job

import (
	"time"

	"captioner/internal/config"
	"captioner/internal/media"
)

// Options carries the transcription request settings for one file.
type Options struct {
	Model           string   `json:"model"`
	Language        string   `json:"language"`
	ProfanityFilter string   `json:"profanity_filter"`
	Keyterms        []string `json:"keyterms,omitempty"`
	SmartFormat     bool     `json:"smart_format"`
	Punctuate       bool     `json:"punctuate"`
	Utterances      bool     `json:"utterances"`
	Paragraphs      bool     `json:"paragraphs"`
	Diarize         bool     `json:"diarize"`
	Numerals        bool     `json:"numerals"`
	FillerWords     bool     `json:"filler_words"`
	Measurements    bool     `json:"measurements"`
	DetectLanguage  bool     `json:"detect_language"`
}

// OptionsFromConfig builds request options from the configured defaults.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Model:           cfg.Deepgram.Model,
		Language:        cfg.Deepgram.Language,
		ProfanityFilter: cfg.Deepgram.ProfanityFilter,
		SmartFormat:     cfg.Deepgram.SmartFormat,
		Punctuate:       cfg.Deepgram.Punctuate,
		Utterances:      cfg.Deepgram.Utterances,
		Paragraphs:      cfg.Deepgram.Paragraphs,
		Diarize:         cfg.Deepgram.Diarize,
		Numerals:        cfg.Deepgram.Numerals,
		FillerWords:     cfg.Deepgram.FillerWords,
		Measurements:    cfg.Deepgram.Measurements,
		DetectLanguage:  cfg.Deepgram.DetectLanguage,
	}
}

// Spec is one file's unit of work. It is built before dispatch and passed by
// value; the Keyterms slice must not be mutated after construction.
type Spec struct {
	File         media.File
	Options      Options
	Force        bool
	Transcript   bool
	SaveRawJSON  bool
	SaveKeyterms bool
}

// Flags returns the skip-policy inputs carried by the spec.
func (s Spec) Flags() Flags {
	return Flags{TranscriptEnabled: s.Transcript, ForceRegenerate: s.Force}
}

// NewSpec builds a spec for file using configured defaults and flags.
func NewSpec(file media.File, cfg *config.Config) Spec {
	return Spec{
		File:         file,
		Options:      OptionsFromConfig(cfg),
		Force:        cfg.Transcripts.ForceRegenerate,
		Transcript:   cfg.Transcripts.Enabled,
		SaveRawJSON:  cfg.Transcripts.SaveRawJSON,
		SaveKeyterms: cfg.Transcripts.SaveKeyterms,
	}
}

// Status is the terminal outcome of one unit of work.
type Status string

const (
	StatusOK      Status = "ok"
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// Outputs lists the files a unit of work wrote.
type Outputs struct {
	Subtitle   string `json:"srt,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	RawJSON    string `json:"raw_json,omitempty"`
	Keyterms   string `json:"keyterms,omitempty"`
}

// Result is the immutable outcome of one unit of work.
type Result struct {
	Path            string        `json:"video"`
	Status          Status        `json:"status"`
	Outputs         Outputs       `json:"outputs"`
	Error           string        `json:"error,omitempty"`
	ErrorKind       string        `json:"error_kind,omitempty"`
	Started         time.Time     `json:"start"`
	Finished        time.Time     `json:"end"`
	MediaDuration   time.Duration `json:"-"`
	DurationMinutes float64       `json:"duration_minutes"`
	ProcessingRatio float64       `json:"processing_ratio"`
	Cost            float64       `json:"estimated_cost"`
}

// Elapsed returns the wall time the unit took.
func (r Result) Elapsed() time.Duration {
	if r.Finished.Before(r.Started) {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// Terminal reports whether status is a final state.
func (s Status) Terminal() bool {
	return s == StatusOK || s == StatusSkipped || s == StatusError
}
