package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"captioner/internal/language"
)

// ErrMissingCredential marks validation failures caused by an absent API key.
// Callers abort before any media is processed.
var ErrMissingCredential = errors.New("missing credential")

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDeepgram(); err != nil {
		return err
	}
	if err := c.validateBazarr(); err != nil {
		return err
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDeepgram() error {
	if c.Deepgram.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPathRelative
		}
		return fmt.Errorf("%w: deepgram.api_key is required. Set DEEPGRAM_API_KEY env var or edit %s (create with 'captioner config init')", ErrMissingCredential, defaultPath)
	}
	if !slices.Contains(ModelChoices, c.Deepgram.Model) {
		return fmt.Errorf("deepgram.model %q is not supported (choose one of %s)", c.Deepgram.Model, strings.Join(ModelChoices, ", "))
	}
	switch c.Deepgram.ProfanityFilter {
	case ProfanityOff, ProfanityTag, ProfanityRemove:
	default:
		return fmt.Errorf("deepgram.profanity_filter must be one of off, tag, remove (got %q)", c.Deepgram.ProfanityFilter)
	}
	if !language.Valid(c.Deepgram.Language) {
		return fmt.Errorf("deepgram.language %q is not a recognised language tag", c.Deepgram.Language)
	}
	for model, rate := range c.Deepgram.Pricing {
		if rate < 0 {
			return fmt.Errorf("deepgram.pricing.%s must be >= 0", model)
		}
	}
	return nil
}

func (c *Config) validateBazarr() error {
	if (c.Bazarr.BaseURL == "") != (c.Bazarr.APIKey == "") {
		return errors.New("bazarr.base_url and bazarr.api_key must be set together")
	}
	return nil
}

func (c *Config) validateWorkers() error {
	if err := ensurePositiveMap(map[string]int{
		"workers.concurrency":           c.Workers.Concurrency,
		"workers.checkpoint_every":      c.Workers.CheckpointEvery,
		"deepgram.timeout_seconds":      c.Deepgram.TimeoutSeconds,
		"keyterms.timeout_seconds":      c.Keyterms.TimeoutSeconds,
		"bazarr.timeout_seconds":        c.Bazarr.TimeoutSeconds,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
		"web.scan_limit":                c.Web.ScanLimit,
	}); err != nil {
		return err
	}
	if c.Workers.BatchSize < 0 {
		return errors.New("workers.batch_size must be >= 0")
	}
	if c.Workers.ResultRetentionHours < 0 {
		return errors.New("workers.result_retention_hours must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
