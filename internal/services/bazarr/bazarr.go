// Package bazarr triggers a wanted-subtitle search in Bazarr after a batch
// writes new subtitle files.
package bazarr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"captioner/internal/config"
)

const (
	rescanPath     = "/api/system/tasks/SearchWantedSubtitles"
	statusPath     = "/api/system/status"
	defaultTimeout = 10 * time.Second
)

var (
	// ErrNotConfigured is returned by Status when the URL or API key is unset.
	ErrNotConfigured = errors.New("bazarr not configured")
	// ErrUnauthorized means Bazarr rejected the API key.
	ErrUnauthorized = errors.New("bazarr rejected the api key")
)

// HTTPDoer describes the HTTP client used by the Bazarr service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Service rescans the subtitle indexer.
type Service interface {
	Rescan(ctx context.Context) error
	// Status probes the system status endpoint to validate URL and key.
	Status(ctx context.Context) error
	Enabled() bool
}

type noopService struct{}

func (noopService) Rescan(context.Context) error { return nil }
func (noopService) Status(context.Context) error { return ErrNotConfigured }
func (noopService) Enabled() bool                { return false }

type httpService struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  HTTPDoer
}

// NewConfiguredService returns an HTTP service when both the base URL and
// API key are set, otherwise a service whose Rescan does nothing.
func NewConfiguredService(cfg *config.Config) Service {
	if cfg == nil || !cfg.BazarrConfigured() {
		return noopService{}
	}
	timeout := defaultTimeout
	if cfg.Bazarr.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.Bazarr.TimeoutSeconds) * time.Second
	}
	return NewHTTPService(cfg.Bazarr.BaseURL, cfg.Bazarr.APIKey, timeout, &http.Client{Timeout: timeout})
}

// NewHTTPService constructs an HTTP-backed Bazarr service.
func NewHTTPService(baseURL, apiKey string, timeout time.Duration, client HTTPDoer) Service {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &httpService{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		timeout: timeout,
		client:  client,
	}
}

func (s *httpService) Enabled() bool {
	return s.baseURL != "" && s.apiKey != ""
}

func (s *httpService) Rescan(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.call(ctx, http.MethodPost, rescanPath); err != nil {
		return fmt.Errorf("trigger bazarr rescan: %w", err)
	}
	return nil
}

func (s *httpService) Status(ctx context.Context) error {
	if !s.Enabled() {
		return ErrNotConfigured
	}
	return s.call(ctx, http.MethodGet, statusPath)
}

func (s *httpService) call(ctx context.Context, method, path string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-API-KEY", s.apiKey)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode >= http.StatusMultipleChoices:
		return fmt.Errorf("bazarr returned %d", resp.StatusCode)
	}
	return nil
}
