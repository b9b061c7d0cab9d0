package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths locates media, logs, state, scratch audio and the web listener.
type Paths struct {
	MediaRoot string `toml:"media_root"`
	LogDir    string `toml:"log_dir"`
	StateDir  string `toml:"state_dir"`
	TempDir   string `toml:"temp_dir"`
	APIBind   string `toml:"api_bind"`
}

// Deepgram contains transcription API settings and request defaults.
type Deepgram struct {
	APIKey          string             `toml:"api_key"`
	BaseURL         string             `toml:"base_url"`
	Model           string             `toml:"model"`
	Language        string             `toml:"language"`
	ProfanityFilter string             `toml:"profanity_filter"`
	SmartFormat     bool               `toml:"smart_format"`
	Punctuate       bool               `toml:"punctuate"`
	Utterances      bool               `toml:"utterances"`
	Paragraphs      bool               `toml:"paragraphs"`
	Diarize         bool               `toml:"diarize"`
	Numerals        bool               `toml:"numerals"`
	FillerWords     bool               `toml:"filler_words"`
	Measurements    bool               `toml:"measurements"`
	DetectLanguage  bool               `toml:"detect_language"`
	TimeoutSeconds  int                `toml:"timeout_seconds"`
	Pricing         map[string]float64 `toml:"pricing"`
}

// Transcripts controls which artifacts accompany each subtitle.
type Transcripts struct {
	Enabled         bool `toml:"enabled"`
	SaveRawJSON     bool `toml:"save_raw_json"`
	SaveKeyterms    bool `toml:"save_keyterms"`
	ForceRegenerate bool `toml:"force_regenerate"`
}

// Keyterms contains LLM connection settings for keyterm generation.
type Keyterms struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	AutoLoad       bool   `toml:"auto_load"`
}

// Bazarr contains subtitle indexer settings. Both fields must be set for a
// rescan to be triggered.
type Bazarr struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Notifications selects which batch events are pushed to ntfy.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Batch          bool   `toml:"batch"`
	Errors         bool   `toml:"errors"`
}

// Workers controls batch fan-out.
type Workers struct {
	Concurrency          int `toml:"concurrency"`
	BatchSize            int `toml:"batch_size"`
	CheckpointEvery      int `toml:"checkpoint_every"`
	ResultRetentionHours int `toml:"result_retention_hours"`
}

// Web contains settings for the web runner.
type Web struct {
	AllowedEmails      []string `toml:"allowed_emails"`
	ScanLimit          int      `toml:"scan_limit"`
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`
}

// Logging selects the log format, level and how long job logs are kept.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for captioner.
//
// Sections:
//   - Paths: media root, log/state directories, API bind address
//   - Deepgram: transcription credentials, request flags, price table
//   - Transcripts: optional artifacts written beside the subtitle
//   - Keyterms: LLM settings for per-show keyterm generation
//   - Bazarr: subtitle indexer rescan after each batch
//   - Notifications: ntfy push notification settings
//   - Workers: pool size, batch cap, progress retention
//   - Web: proxy-header allowlist and scan limits
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Deepgram      Deepgram      `toml:"deepgram"`
	Transcripts   Transcripts   `toml:"transcripts"`
	Keyterms      Keyterms      `toml:"keyterms"`
	Bazarr        Bazarr        `toml:"bazarr"`
	Notifications Notifications `toml:"notifications"`
	Workers       Workers       `toml:"workers"`
	Web           Web           `toml:"web"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the per-user config location with ~ expanded.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPathRelative)
}

// Load reads the config at path, or the first existing default location when
// path is empty, applies environment overrides, and validates the result.
// It also returns the resolved path and whether that file existed; a missing
// file is not an error and yields the defaults.
func Load(path string) (*Config, string, bool, error) {
	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}
	cfg := Default()
	if exists {
		if err := decodeFile(resolved, &cfg); err != nil {
			return nil, "", false, err
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return fmt.Errorf("parse config %s:%d:%d: %w", path, row, col, err)
		}
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// resolveConfigPath picks the explicit path when given. Otherwise it tries
// the per-user file, then captioner.toml in the working directory, and falls
// back to the per-user path when neither exists.
func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		exists, err := isFile(expanded)
		return expanded, exists, err
	}

	userPath, err := expandPath(defaultConfigPathRelative)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs(defaultProjectConfigFile)
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{userPath, projectPath} {
		if ok, _ := isFile(candidate); ok {
			return candidate, true, nil
		}
	}
	return userPath, false, nil
}

func isFile(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("stat config: %w", err)
	}
	return !info.IsDir(), nil
}

// EnsureDirectories creates the log and state directories. The media root is
// never created; a missing media root surfaces as a discovery error instead.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.StateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.TempDir) != "" {
		if err := os.MkdirAll(c.Paths.TempDir, 0o755); err != nil {
			return fmt.Errorf("create temp directory %q: %w", c.Paths.TempDir, err)
		}
	}
	return nil
}

// QueuePath returns the progress store database location.
func (c *Config) QueuePath() string {
	return filepath.Join(c.Paths.StateDir, "queue.db")
}

// LockPath returns the web runner single-instance lock location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "captionerd.lock")
}

// FFmpegBinary returns the ffmpeg executable name used for audio extraction.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for duration probes.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// PricePerMinute returns the USD per-minute rate for a Deepgram model.
// Unknown models use the fallback rate.
func (c *Config) PricePerMinute(model string) float64 {
	key := strings.ToLower(strings.TrimSpace(model))
	if rate, ok := c.Deepgram.Pricing[key]; ok {
		return rate
	}
	return defaultFallbackPricePerMinute
}

// BazarrConfigured reports whether a rescan can be triggered.
func (c *Config) BazarrConfigured() bool {
	return c.Bazarr.BaseURL != "" && c.Bazarr.APIKey != ""
}

// KeytermsConfigured reports whether LLM keyterm generation has credentials.
func (c *Config) KeytermsConfigured() bool {
	return c.Keyterms.APIKey != ""
}

// EmailAllowed reports whether the identity may use the web runner. An empty
// allowlist admits every authenticated identity.
func (c *Config) EmailAllowed(identity string) bool {
	if len(c.Web.AllowedEmails) == 0 {
		return true
	}
	return slices.Contains(c.Web.AllowedEmails, strings.ToLower(strings.TrimSpace(identity)))
}

// expandPath resolves a leading "~" or "~/" against the home directory and
// returns a cleaned absolute path. The empty string is returned unchanged.
func expandPath(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		value = filepath.Join(home, strings.TrimPrefix(value[1:], "/"))
	}
	abs, err := filepath.Abs(value)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", value, err)
	}
	return abs, nil
}

// ExpandPath applies the same ~ and absolute-path rules used for config paths.
func ExpandPath(value string) (string, error) {
	return expandPath(value)
}

// CreateSample writes the annotated sample config to path, creating parent
// directories. An existing file is replaced.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
