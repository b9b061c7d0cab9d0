package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"captioner/internal/config"
)

const userAgent = "captioner/1.0"

// Event names a notification type.
type Event string

const (
	EventBatchStarted   Event = "batch_started"
	EventBatchCompleted Event = "batch_completed"
	EventError          Event = "error"
	EventTest           Event = "test"
)

// Payload carries event fields. Recognized keys depend on the event:
//   - batch_started: batchID, count
//   - batch_completed: batchID, processed, skipped, failed, minutes, cost, duration
//   - error: context, error
type Payload map[string]any

// Service publishes notification events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		batch:    cfg.Notifications.Batch,
		errors:   cfg.Notifications.Errors,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	batch    bool
	errors   bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventBatchStarted:
		if !n.batch {
			return message{}, false
		}
		return message{
			title: "Captioner - Batch Started",
			body:  fmt.Sprintf("Transcribing %d file(s) (batch %s)", payload.count("count"), shortID(payload.text("batchID"))),
			tags:  []string{"captioner", "batch", "started"},
		}, true
	case EventBatchCompleted:
		if !n.batch {
			return message{}, false
		}
		return batchCompleted(payload), true
	case EventError:
		if !n.errors {
			return message{}, false
		}
		var b strings.Builder
		b.WriteString("Error")
		if label := payload.text("context"); label != "" {
			b.WriteString(" with ")
			b.WriteString(label)
		}
		b.WriteString(": ")
		if text := payload.text("error"); text != "" {
			b.WriteString(text)
		} else {
			b.WriteString("unknown")
		}
		return message{
			title:    "Captioner - Error",
			body:     b.String(),
			tags:     []string{"captioner", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Captioner - Test",
			body:     "Notification system test",
			tags:     []string{"captioner", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func batchCompleted(payload Payload) message {
	processed := payload.count("processed")
	skipped := payload.count("skipped")
	failed := payload.count("failed")
	duration := payload.elapsed("duration").Round(time.Second)

	title := "Captioner - Batch Complete"
	tags := []string{"captioner", "batch", "completed"}
	priority := ""
	if failed > 0 {
		title = "Captioner - Batch Complete (with errors)"
		tags = append(tags, "warning")
		priority = "high"
	}
	body := fmt.Sprintf("%d processed, %d skipped, %d failed in %s\n%.1f min transcribed, est. $%.2f",
		processed, skipped, failed, duration, payload.number("minutes"), payload.number("cost"))
	return message{title: title, body: body, tags: tags, priority: priority}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (p Payload) text(key string) string {
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (p Payload) count(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func (p Payload) number(key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func (p Payload) elapsed(key string) time.Duration {
	if d, ok := p[key].(time.Duration); ok && d > 0 {
		return d
	}
	return 0
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
