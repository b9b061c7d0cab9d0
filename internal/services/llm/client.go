package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"captioner/internal/services"
)

const (
	defaultBaseURL     = "https://openrouter.ai/api/v1/chat/completions"
	defaultHTTPTimeout = 60 * time.Second
	defaultMaxTokens   = 500
)

// ErrNotConfigured is returned when no API key is available.
var ErrNotConfigured = errors.New("llm: api key required")

// errEmptyContent marks a 200 response without any completion text. Some
// providers return it under load, so it is retried.
var errEmptyContent = errors.New("llm: empty completion")

// Config holds the OpenRouter connection settings.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// Completion is the text and token usage of one chat completion.
type Completion struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

func (c Completion) TotalTokens() int {
	return c.PromptTokens + c.CompletionTokens
}

// Client calls an OpenAI-compatible chat completion endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	retry      services.Retry
}

// Option customizes the client.
type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) { c.retry.Attempts = attempts }
}

func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retry.BaseDelay = baseDelay
		c.retry.MaxDelay = maxDelay
	}
}

// WithSleeper replaces the retry wait, for tests.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(c *Client) { c.retry.Sleep = sleep }
}

// NewClient trims cfg and applies opts. Requests are retried up to five
// times, backing off from one to ten seconds.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.Referer = strings.TrimSpace(cfg.Referer)
	cfg.Title = strings.TrimSpace(cfg.Title)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		retry:      services.Retry{Attempts: 5, BaseDelay: time.Second, MaxDelay: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Model() string { return c.cfg.Model }

// Configured reports whether the client has credentials.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIKey != ""
}

// Complete sends a system and user prompt and returns the first non-empty
// choice.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (Completion, error) {
	userPrompt = strings.TrimSpace(userPrompt)
	if userPrompt == "" {
		return Completion{}, errors.New("llm: user prompt required")
	}
	if !c.Configured() {
		return Completion{}, ErrNotConfigured
	}
	return c.complete(ctx, chatRequest{
		Model:     c.cfg.Model,
		Messages:  messages(systemPrompt, userPrompt),
		MaxTokens: defaultMaxTokens,
	})
}

// HealthCheck asks the model for {"ok":true} to prove the key and model work.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	completion, err := c.complete(ctx, chatRequest{
		Model:          c.cfg.Model,
		Messages:       messages("You must respond with JSON only.", `Respond with {"ok":true}`),
		ResponseFormat: map[string]string{"type": "json_object"},
		MaxTokens:      20,
	})
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal([]byte(StripCodeFence(completion.Content)), &parsed); err != nil {
		return fmt.Errorf("llm health: parse %q: %w", services.Snippet(completion.Content, 80), err)
	}
	if !parsed.OK {
		return errors.New("llm health: unexpected response")
	}
	return nil
}

func (c *Client) complete(ctx context.Context, payload chatRequest) (Completion, error) {
	var completion Completion
	err := c.retry.Do(ctx, func() error {
		resp, err := c.send(ctx, payload)
		if err != nil {
			return err
		}
		completion, err = resp.completion()
		return err
	}, func(err error) (time.Duration, bool) {
		if errors.Is(err, errEmptyContent) {
			return 0, true
		}
		return services.Temporary(err)
	})
	if err != nil {
		return Completion{}, err
	}
	if completion.Model == "" {
		completion.Model = payload.Model
	}
	return completion, nil
}

func (c *Client) send(ctx context.Context, payload chatRequest) (chatResponse, error) {
	var parsed chatResponse
	encoded, err := json.Marshal(payload)
	if err != nil {
		return parsed, fmt.Errorf("llm: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return parsed, fmt.Errorf("llm: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	// OpenRouter attributes usage to the app named by these headers.
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return parsed, fmt.Errorf("llm: http error (timeout=%s): %w", c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()
	body, err := services.ReadBody("llm", resp)
	if err != nil {
		return parsed, err
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return parsed, fmt.Errorf("llm: decode response: %w", err)
	}
	if parsed.Error != nil {
		return parsed, fmt.Errorf("llm: api error: %s", strings.TrimSpace(parsed.Error.Message))
	}
	return parsed, nil
}

// StripCodeFence removes a surrounding markdown code fence, if any.
func StripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	body, ok := strings.CutPrefix(trimmed, "```")
	if !ok {
		return trimmed
	}
	// The first line is empty or a language tag such as json.
	if tag, rest, found := strings.Cut(body, "\n"); found && !strings.ContainsAny(strings.TrimSpace(tag), " ,") {
		body = rest
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}
