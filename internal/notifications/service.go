package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tunevault/internal/config"
)

const userAgent = "tunevault/0.1.0"

// Service is what the workflow and CLI use to push operator notifications.
type Service interface {
	NotifyTrackFiled(ctx context.Context, title, artist, finalFile string) error
	NotifyJobFailed(ctx context.Context, url string, err error) error
	NotifyQueueDrained(ctx context.Context, processed, failed int, duration time.Duration) error
	TestNotification(ctx context.Context) error
}

// NewService returns an ntfy publisher for cfg, or a silent Service when
// no topic URL is set.
func NewService(cfg *config.Config) Service {
	if cfg == nil || strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return noopService{}
	}
	timeout := 10 * time.Second
	if secs := cfg.Notifications.RequestTimeout; secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}
	return &ntfyService{
		topicURL: strings.TrimSpace(cfg.Notifications.NtfyTopic),
		http:     &http.Client{Timeout: timeout},
		onFiled:  cfg.Notifications.Completed,
		onFailed: cfg.Notifications.Failed,
	}
}

// message is one ntfy publish. Title, tags and priority travel as headers.
type message struct {
	Title    string
	Body     string
	Tags     []string
	Priority string
}

func (m message) headers() http.Header {
	h := http.Header{}
	h.Set("User-Agent", userAgent)
	h.Set("Content-Type", "text/plain; charset=utf-8")
	if m.Title != "" {
		h.Set("Title", m.Title)
	}
	if len(m.Tags) > 0 {
		h.Set("Tags", strings.Join(m.Tags, ","))
	}
	if m.Priority != "" {
		h.Set("Priority", m.Priority)
	}
	return h
}

type ntfyService struct {
	topicURL string
	http     *http.Client
	onFiled  bool
	onFailed bool
}

func (n *ntfyService) NotifyTrackFiled(ctx context.Context, title, artist, finalFile string) error {
	if !n.onFiled {
		return nil
	}
	body := "🎵 Added to library: " + strings.TrimSpace(title)
	if artist = strings.TrimSpace(artist); artist != "" {
		body += " by " + artist
	}
	if finalFile = strings.TrimSpace(finalFile); finalFile != "" {
		body += "\nFile: " + finalFile
	}
	return n.publish(ctx, message{
		Title: "tunevault - Track Added",
		Body:  body,
		Tags:  []string{"tunevault", "library", "added"},
	})
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, url string, err error) error {
	if !n.onFailed {
		return nil
	}
	reason := "unknown"
	if err != nil {
		reason = strings.TrimSpace(err.Error())
	}
	body := "❌ Download failed"
	if url = strings.TrimSpace(url); url != "" {
		body += " for " + url
	}
	return n.publish(ctx, message{
		Title:    "tunevault - Error",
		Body:     body + ": " + reason,
		Tags:     []string{"tunevault", "error", "alert"},
		Priority: "high",
	})
}

// NotifyQueueDrained is always sent; it is the one summary per busy period.
func (n *ntfyService) NotifyQueueDrained(ctx context.Context, processed, failed int, duration time.Duration) error {
	elapsed := max(duration.Round(time.Second), 0)
	msg := message{
		Title: "tunevault - Queue Complete",
		Body:  fmt.Sprintf("Queue processing complete: %d items processed in %s", processed, elapsed),
		Tags:  []string{"tunevault", "queue", "completed"},
	}
	if failed > 0 {
		msg.Title += " (with errors)"
		msg.Body = fmt.Sprintf("Queue processing complete: %d succeeded, %d failed in %s", processed, failed, elapsed)
	}
	return n.publish(ctx, msg)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.publish(ctx, message{
		Title:    "tunevault - Test",
		Body:     "🧪 Notification system test",
		Tags:     []string{"tunevault", "test"},
		Priority: "low",
	})
}

func (n *ntfyService) publish(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.topicURL, strings.NewReader(msg.Body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header = msg.headers()

	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyTrackFiled(context.Context, string, string, string) error    { return nil }
func (noopService) NotifyJobFailed(context.Context, string, error) error              { return nil }
func (noopService) NotifyQueueDrained(context.Context, int, int, time.Duration) error { return nil }
func (noopService) TestNotification(context.Context) error                            { return nil }
