// Package notify reports pipeline outcomes to an external endpoint.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Veraticus/civic-flow/internal/common"
	"github.com/Veraticus/civic-flow/internal/model"
	"github.com/Veraticus/civic-flow/internal/service"
)

// EventRunFinished is sent once per pipeline run.
const EventRunFinished = "pipeline.run_finished"

// Event is the JSON body posted to the webhook.
type Event struct {
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Stats      map[string]int `json:"stats"`
	Event      string         `json:"event"`
	RunID      string         `json:"run_id"`
	Status     string         `json:"status"`
	Error      string         `json:"error,omitempty"`
	Warnings   []string       `json:"warnings"`
}

// EventFromRun builds the run-finished event for run.
func EventFromRun(run *model.PipelineRun) Event {
	ev := Event{
		Event:     EventRunFinished,
		RunID:     run.ID,
		Status:    string(run.Status),
		StartedAt: run.StartedAt,
		Error:     run.Error,
		Warnings:  run.Warnings,
		Stats: map[string]int{
			"loaded":     run.Loaded,
			"classified": run.Classified,
			"enriched":   run.Enriched,
		},
	}
	if run.FinishedAt != nil {
		ev.FinishedAt = *run.FinishedAt
	}
	if ev.Warnings == nil {
		ev.Warnings = []string{}
	}
	return ev
}

// Notifier delivers events.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// New returns a webhook notifier for url, or a no-op notifier when url is
// empty.
func New(url string, timeout time.Duration, retry service.RetryOptions) Notifier {
	if url == "" {
		return Noop{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: timeout},
		retry:  retry,
	}
}

// Noop discards events.
type Noop struct{}

// Notify implements Notifier.
func (Noop) Notify(context.Context, Event) error { return nil }

// Webhook posts events as JSON.
type Webhook struct {
	client *http.Client
	url    string
	retry  service.RetryOptions
}

// Notify posts ev, retrying transport failures and 5xx responses.
func (w *Webhook) Notify(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = common.WithRetry(ctx, func() error {
		return w.post(ctx, body)
	}, w.retry)
	if err != nil {
		return fmt.Errorf("notify %s: %w", ev.Event, err)
	}

	slog.Debug("notification delivered", "event", ev.Event, "run_id", ev.RunID)
	return nil
}

func (w *Webhook) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return common.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return common.Retryable(fmt.Errorf("send request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	// Drain a bounded amount so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return common.Retryable(fmt.Errorf("webhook status %d", resp.StatusCode))
	default:
		return common.Permanent(fmt.Errorf("webhook status %d", resp.StatusCode))
	}
}
