package config

const (
	defaultMediaRoot               = "/media"
	defaultLogDir                  = "~/.local/share/captioner/logs"
	defaultStateDir                = "~/.local/share/captioner"
	defaultAPIBind                 = "127.0.0.1:7488"
	defaultDeepgramBaseURL         = "https://api.deepgram.com"
	defaultDeepgramModel           = "nova-3"
	defaultDeepgramLanguage        = "en"
	defaultProfanityFilter         = ProfanityOff
	defaultDeepgramTimeoutSeconds  = 600
	defaultKeytermsBaseURL         = "https://openrouter.ai/api/v1/chat/completions"
	defaultKeytermsModel           = "anthropic/claude-sonnet-4"
	defaultKeytermsReferer         = "https://github.com/captioner/captioner"
	defaultKeytermsTitle           = "Captioner Keyterms"
	defaultKeytermsTimeoutSeconds  = 60
	defaultBazarrTimeoutSeconds    = 10
	defaultNotifyRequestTimeout    = 10
	defaultConcurrency             = 4
	defaultCheckpointEvery         = 5
	defaultResultRetentionHours    = 24
	defaultScanLimit               = 500
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultLogRetentionDays        = 30
	defaultFallbackPricePerMinute  = 0.0043
	defaultConfigPathRelative      = "~/.config/captioner/config.toml"
	defaultProjectConfigFile       = "captioner.toml"
	defaultCORSOrigin              = "*"
)

// Profanity filter modes accepted by deepgram.profanity_filter.
const (
	ProfanityOff    = "off"
	ProfanityTag    = "tag"
	ProfanityRemove = "remove"
)

// ModelChoices lists the Deepgram models the runner accepts.
var ModelChoices = []string{"nova-3", "nova-2", "base", "enhanced"}

// defaultPricing is USD per audio minute.
func defaultPricing() map[string]float64 {
	return map[string]float64{
		"nova-3":   0.0043,
		"nova-2":   0.0125,
		"base":     0.0043,
		"enhanced": 0.0181,
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			MediaRoot: defaultMediaRoot,
			LogDir:    defaultLogDir,
			StateDir:  defaultStateDir,
			APIBind:   defaultAPIBind,
		},
		Deepgram: Deepgram{
			BaseURL:         defaultDeepgramBaseURL,
			Model:           defaultDeepgramModel,
			Language:        defaultDeepgramLanguage,
			ProfanityFilter: defaultProfanityFilter,
			SmartFormat:     true,
			Punctuate:       true,
			Utterances:      true,
			Diarize:         true,
			Numerals:        true,
			TimeoutSeconds:  defaultDeepgramTimeoutSeconds,
			Pricing:         defaultPricing(),
		},
		Transcripts: Transcripts{
			Enabled:      true,
			SaveKeyterms: true,
		},
		Keyterms: Keyterms{
			BaseURL:        defaultKeytermsBaseURL,
			Model:          defaultKeytermsModel,
			Referer:        defaultKeytermsReferer,
			Title:          defaultKeytermsTitle,
			TimeoutSeconds: defaultKeytermsTimeoutSeconds,
			AutoLoad:       true,
		},
		Bazarr: Bazarr{
			TimeoutSeconds: defaultBazarrTimeoutSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Batch:          true,
			Errors:         true,
		},
		Workers: Workers{
			Concurrency:          defaultConcurrency,
			CheckpointEvery:      defaultCheckpointEvery,
			ResultRetentionHours: defaultResultRetentionHours,
		},
		Web: Web{
			ScanLimit:          defaultScanLimit,
			CORSAllowedOrigins: []string{defaultCORSOrigin},
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
