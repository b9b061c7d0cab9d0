package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDeepgram(); err != nil {
		return err
	}
	c.normalizeKeyterms()
	c.normalizeBazarr()
	c.normalizeWorkers()
	c.normalizeWeb()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	c.Paths.MediaRoot = strings.TrimSpace(c.Paths.MediaRoot)
	if c.Paths.MediaRoot == "" || c.Paths.MediaRoot == defaultMediaRoot {
		if value, ok := os.LookupEnv("MEDIA_ROOT"); ok && strings.TrimSpace(value) != "" {
			c.Paths.MediaRoot = strings.TrimSpace(value)
		}
	}
	if c.Paths.MediaRoot == "" {
		c.Paths.MediaRoot = defaultMediaRoot
	}
	if c.Paths.MediaRoot, err = expandPath(c.Paths.MediaRoot); err != nil {
		return fmt.Errorf("paths.media_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.TempDir, err = expandPath(strings.TrimSpace(c.Paths.TempDir)); err != nil {
		return fmt.Errorf("paths.temp_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeDeepgram() error {
	c.Deepgram.APIKey = strings.TrimSpace(c.Deepgram.APIKey)
	if c.Deepgram.APIKey == "" {
		if value, ok := os.LookupEnv("DEEPGRAM_API_KEY"); ok {
			c.Deepgram.APIKey = strings.TrimSpace(value)
		}
	}
	c.Deepgram.BaseURL = strings.TrimRight(strings.TrimSpace(c.Deepgram.BaseURL), "/")
	if c.Deepgram.BaseURL == "" {
		c.Deepgram.BaseURL = defaultDeepgramBaseURL
	}
	c.Deepgram.Model = strings.ToLower(strings.TrimSpace(c.Deepgram.Model))
	if c.Deepgram.Model == "" {
		c.Deepgram.Model = defaultDeepgramModel
	}
	c.Deepgram.Language = strings.TrimSpace(c.Deepgram.Language)
	if c.Deepgram.Language == "" {
		c.Deepgram.Language = defaultDeepgramLanguage
	}
	c.Deepgram.ProfanityFilter = strings.ToLower(strings.TrimSpace(c.Deepgram.ProfanityFilter))
	switch c.Deepgram.ProfanityFilter {
	case "", "false", "none":
		c.Deepgram.ProfanityFilter = ProfanityOff
	case "true":
		c.Deepgram.ProfanityFilter = ProfanityTag
	}
	if c.Deepgram.TimeoutSeconds <= 0 {
		c.Deepgram.TimeoutSeconds = defaultDeepgramTimeoutSeconds
	}

	pricing := defaultPricing()
	for model, rate := range c.Deepgram.Pricing {
		pricing[strings.ToLower(strings.TrimSpace(model))] = rate
	}
	for _, model := range ModelChoices {
		key := "PRICE_" + strings.ToUpper(strings.ReplaceAll(model, "-", "_"))
		value, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		rate, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("%s: invalid price %q: %w", key, value, err)
		}
		pricing[model] = rate
	}
	c.Deepgram.Pricing = pricing
	return nil
}

func (c *Config) normalizeKeyterms() {
	c.Keyterms.APIKey = strings.TrimSpace(c.Keyterms.APIKey)
	if c.Keyterms.APIKey == "" {
		if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.Keyterms.APIKey = strings.TrimSpace(value)
		}
	}
	c.Keyterms.BaseURL = strings.TrimSpace(c.Keyterms.BaseURL)
	if c.Keyterms.BaseURL == "" {
		c.Keyterms.BaseURL = defaultKeytermsBaseURL
	}
	c.Keyterms.Model = strings.TrimSpace(c.Keyterms.Model)
	if c.Keyterms.Model == "" {
		c.Keyterms.Model = defaultKeytermsModel
	}
	c.Keyterms.Referer = strings.TrimSpace(c.Keyterms.Referer)
	if c.Keyterms.Referer == "" {
		c.Keyterms.Referer = defaultKeytermsReferer
	}
	c.Keyterms.Title = strings.TrimSpace(c.Keyterms.Title)
	if c.Keyterms.Title == "" {
		c.Keyterms.Title = defaultKeytermsTitle
	}
	if c.Keyterms.TimeoutSeconds <= 0 {
		c.Keyterms.TimeoutSeconds = defaultKeytermsTimeoutSeconds
	}
}

func (c *Config) normalizeBazarr() {
	c.Bazarr.BaseURL = strings.TrimSpace(c.Bazarr.BaseURL)
	if c.Bazarr.BaseURL == "" {
		if value, ok := os.LookupEnv("BAZARR_BASE_URL"); ok {
			c.Bazarr.BaseURL = strings.TrimSpace(value)
		}
	}
	c.Bazarr.BaseURL = strings.TrimRight(c.Bazarr.BaseURL, "/")
	c.Bazarr.APIKey = strings.TrimSpace(c.Bazarr.APIKey)
	if c.Bazarr.APIKey == "" {
		if value, ok := os.LookupEnv("BAZARR_API_KEY"); ok {
			c.Bazarr.APIKey = strings.TrimSpace(value)
		}
	}
	if c.Bazarr.TimeoutSeconds <= 0 {
		c.Bazarr.TimeoutSeconds = defaultBazarrTimeoutSeconds
	}
}

func (c *Config) normalizeWorkers() {
	if c.Workers.Concurrency <= 0 {
		c.Workers.Concurrency = defaultConcurrency
	}
	if c.Workers.BatchSize < 0 {
		c.Workers.BatchSize = 0
	}
	if c.Workers.CheckpointEvery <= 0 {
		c.Workers.CheckpointEvery = defaultCheckpointEvery
	}
}

func (c *Config) normalizeWeb() {
	emails := c.Web.AllowedEmails
	if len(emails) == 0 {
		if value, ok := os.LookupEnv("ALLOWED_EMAILS"); ok {
			emails = strings.Split(value, ",")
		}
	}
	normalized := make([]string, 0, len(emails))
	seen := make(map[string]struct{}, len(emails))
	for _, email := range emails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" {
			continue
		}
		if _, exists := seen[email]; exists {
			continue
		}
		seen[email] = struct{}{}
		normalized = append(normalized, email)
	}
	c.Web.AllowedEmails = normalized
	if c.Web.ScanLimit <= 0 {
		c.Web.ScanLimit = defaultScanLimit
	}
	if len(c.Web.CORSAllowedOrigins) == 0 {
		c.Web.CORSAllowedOrigins = []string{defaultCORSOrigin}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
