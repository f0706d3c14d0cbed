package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"duet/internal/config"
)

const userAgent = "duet/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventScriptReady   Event = "script_ready"
	EventVideoReady    Event = "video_ready"
	EventProjectFailed Event = "project_failed"
	EventTest          Event = "test"
)

// Payload carries event fields such as "topic", "projectID", or "error".
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether svc delivers anything.
func Enabled(svc Service) bool {
	if svc == nil {
		return false
	}
	_, noop := svc.(noopService)
	return !noop
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
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, err := format(event, payload)
	if err != nil {
		return err
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, error) {
	topic := payload.text("topic")
	subject := topic
	if id := payload.text("projectID"); id != "" {
		subject = fmt.Sprintf("%s (project %s)", topic, id)
	}

	switch event {
	case EventScriptReady:
		return message{
			title: "Duet - Script Ready",
			body:  fmt.Sprintf("📝 Script ready for review: %s", subject),
			tags:  []string{"duet", "script", "review"},
		}, nil
	case EventVideoReady:
		body := fmt.Sprintf("🎬 Video ready: %s", subject)
		if seconds, ok := payload["durationSeconds"].(float64); ok && seconds > 0 {
			body = fmt.Sprintf("%s, %.1fs", body, seconds)
		}
		if output := payload.text("output"); output != "" {
			body = fmt.Sprintf("%s\nFile: %s", body, output)
		}
		return message{
			title:    "Duet - Video Ready",
			body:     body,
			tags:     []string{"duet", "render", "completed"},
			priority: "high",
		}, nil
	case EventProjectFailed:
		var b strings.Builder
		b.WriteString("❌ ")
		b.WriteString(subject)
		b.WriteString(" failed")
		if stage := payload.text("stage"); stage != "" {
			b.WriteString(" during ")
			b.WriteString(stage)
		}
		b.WriteString(": ")
		if errText := payload.text("error"); errText != "" {
			b.WriteString(errText)
		} else {
			b.WriteString("unknown")
		}
		tags := []string{"duet", "error"}
		if kind := payload.text("kind"); kind != "" {
			tags = append(tags, kind)
		}
		return message{
			title:    "Duet - Project Failed",
			body:     b.String(),
			tags:     tags,
			priority: "high",
		}, nil
	case EventTest:
		return message{
			title:    "Duet - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"duet", "test"},
			priority: "low",
		}, nil
	default:
		return message{}, fmt.Errorf("unknown notification event %q", event)
	}
}

func (p Payload) text(key string) string {
	value, ok := p[key]
	if !ok || value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

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
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
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

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
