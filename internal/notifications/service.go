package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"podpipe/internal/config"
)

const userAgent = "podpipe/0.1.0"

// Service is the notification surface the workflow reports pipeline events to.
type Service interface {
	NotifyPublished(ctx context.Context, title, entryID string) error
	NotifyDuplicate(ctx context.Context, title, entryID string) error
	NotifyFailed(ctx context.Context, source, reason string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when a topic is
// configured, and a noop implementation otherwise.
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
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyPublished(ctx context.Context, title, entryID string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		title = entryID
	}
	return n.send(ctx, payload{
		title:   "Podpipe - Published",
		message: fmt.Sprintf("New episode in feed: %s", title),
		tags:    []string{"podpipe", "publish", "completed"},
	})
}

func (n *ntfyService) NotifyDuplicate(ctx context.Context, title, entryID string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		title = entryID
	}
	return n.send(ctx, payload{
		title:    "Podpipe - Already Published",
		message:  fmt.Sprintf("Skipped duplicate submission: %s", title),
		tags:     []string{"podpipe", "publish", "duplicate"},
		priority: "low",
	})
}

func (n *ntfyService) NotifyFailed(ctx context.Context, source, reason string) error {
	var builder strings.Builder
	builder.WriteString("Job failed")
	if source = strings.TrimSpace(source); source != "" {
		builder.WriteString(" for ")
		builder.WriteString(source)
	}
	builder.WriteString(": ")
	if reason = strings.TrimSpace(reason); reason != "" {
		builder.WriteString(reason)
	} else {
		builder.WriteString("unknown")
	}

	return n.send(ctx, payload{
		title:    "Podpipe - Error",
		message:  builder.String(),
		tags:     []string{"podpipe", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Podpipe - Test",
		message:  "Notification system test",
		tags:     []string{"podpipe", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyPublished(context.Context, string, string) error { return nil }
func (noopService) NotifyDuplicate(context.Context, string, string) error { return nil }
func (noopService) NotifyFailed(context.Context, string, string) error    { return nil }
func (noopService) TestNotification(context.Context) error                { return nil }
