package deepgram

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"captioner/internal/services"
)

const (
	defaultBaseURL        = "https://api.deepgram.com"
	defaultHTTPTimeout    = 10 * time.Minute
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 2 * time.Second
	defaultRetryMaxDelay  = 30 * time.Second
)

// Options are the per-request transcription settings. The field set matches
// job.Options so callers can convert directly.
type Options struct {
	Model           string
	Language        string
	ProfanityFilter string
	Keyterms        []string
	SmartFormat     bool
	Punctuate       bool
	Utterances      bool
	Paragraphs      bool
	Diarize         bool
	Numerals        bool
	FillerWords     bool
	Measurements    bool
	DetectLanguage  bool
}

// Transcriber is the transcription capability consumed by the pipeline.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, opts Options) (Response, error)
}

// Config captures the connection settings for the API.
type Config struct {
	APIKey         string
	BaseURL        string
	TimeoutSeconds int
}

// Client is an HTTP Transcriber.
type Client struct {
	cfg        Config
	httpClient *http.Client
	retry      services.Retry
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetry overrides the retry policy.
func WithRetry(attempts int, baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retry.Attempts = attempts
		c.retry.BaseDelay = baseDelay
		c.retry.MaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.retry.Sleep = sleeper
	}
}

// NewClient constructs a client for cfg.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
		retry: services.Retry{
			Attempts:  defaultRetryAttempts,
			BaseDelay: defaultRetryBaseDelay,
			MaxDelay:  defaultRetryMaxDelay,
		},
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Query encodes opts as /v1/listen query parameters.
func Query(opts Options) url.Values {
	q := url.Values{}
	if opts.Model != "" {
		q.Set("model", opts.Model)
	}
	if opts.DetectLanguage {
		q.Set("detect_language", "true")
	} else if opts.Language != "" {
		q.Set("language", opts.Language)
	}
	flags := []struct {
		key string
		on  bool
	}{
		{"smart_format", opts.SmartFormat},
		{"punctuate", opts.Punctuate},
		{"utterances", opts.Utterances},
		{"paragraphs", opts.Paragraphs},
		{"diarize", opts.Diarize},
		{"numerals", opts.Numerals},
		{"filler_words", opts.FillerWords},
		{"measurements", opts.Measurements},
	}
	for _, flag := range flags {
		if flag.on {
			q.Set(flag.key, "true")
		}
	}
	switch opts.ProfanityFilter {
	case "tag", "remove":
		q.Set("profanity_filter", "true")
	}
	// Keyterm prompting is a nova-3 feature; other models reject it.
	if strings.HasPrefix(opts.Model, "nova-3") {
		for _, term := range opts.Keyterms {
			if term = strings.TrimSpace(term); term != "" {
				q.Add("keyterm", term)
			}
		}
	}
	return q
}

// Transcribe uploads audioPath and returns the parsed response.
func (c *Client) Transcribe(ctx context.Context, audioPath string, opts Options) (Response, error) {
	if c.cfg.APIKey == "" {
		return Response{}, services.Wrap(services.ErrConfiguration, "transcribing", "deepgram", "api key required", nil)
	}
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return Response{}, services.Wrap(services.ErrTranscription, "transcribing", "deepgram", "read audio", err)
	}
	endpoint := c.cfg.BaseURL + "/v1/listen?" + Query(opts).Encode()

	var body []byte
	err = c.retry.Do(ctx, func() error {
		var sendErr error
		body, sendErr = c.send(ctx, endpoint, audio)
		return sendErr
	}, services.Temporary)
	if err == nil {
		return Parse(body)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Response{}, services.Wrap(services.ErrCancelled, "transcribing", "deepgram", "request cancelled", ctxErr)
	}
	return Response{}, services.Wrap(services.ErrTranscription, "transcribing", "deepgram", "", err)
}

func (c *Client) send(ctx context.Context, endpoint string, audio []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(audio))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "audio/mpeg")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http error (timeout=%s): %w", c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()
	return services.ReadBody("deepgram", resp)
}
