// Package webhook delivers terminal-receipt notifications. Delivery is
// best effort and fire-and-forget relative to the orchestrator: a failed
// delivery never changes receipt state, and exhausted retries are only
// logged.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/aigoflow/proof-service/internal/models"
)

// ValidateURL enforces HTTPS at submission time, before any work begins.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return models.InvalidWithHint(
			"webhook_url must use HTTPS",
			"provide a URL starting with https://")
	}
	return nil
}

type delivery struct {
	url     string
	receipt *models.Receipt
}

type Dispatcher struct {
	queue    chan delivery
	client   *http.Client
	attempts int
	backoff  time.Duration
}

// NewDispatcher configures bounded retries: attempt n waits
// backoff * 5^(n-1) after attempt n-1 fails.
func NewDispatcher(attempts int, backoff time.Duration) *Dispatcher {
	if attempts < 1 {
		attempts = 1
	}
	return &Dispatcher{
		queue:    make(chan delivery, 128),
		client:   &http.Client{Timeout: 10 * time.Second},
		attempts: attempts,
		backoff:  backoff,
	}
}

// Enqueue hands a terminal receipt off for delivery. Never blocks the
// caller: when the queue is full the delivery is dropped and logged.
func (d *Dispatcher) Enqueue(targetURL string, r *models.Receipt) {
	select {
	case d.queue <- delivery{url: targetURL, receipt: r}:
	default:
		slog.Warn("Webhook queue full, dropping delivery", "receipt_id", r.ID, "url", targetURL)
	}
}

// Run consumes the delivery queue until ctx is cancelled. Each delivery
// gets its own goroutine: one slow or retrying endpoint must not hold
// back deliveries to other endpoints.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case del := <-d.queue:
			go d.deliver(ctx, del)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, del delivery) {
	body, err := json.Marshal(del.receipt)
	if err != nil {
		slog.Error("Webhook payload marshal failed", "receipt_id", del.receipt.ID, "error", err)
		return
	}

	wait := d.backoff
	for attempt := 1; attempt <= d.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			wait *= 5
		}

		if err := d.post(ctx, del.url, body); err != nil {
			slog.Warn("Webhook delivery failed",
				"receipt_id", del.receipt.ID, "url", del.url,
				"attempt", attempt, "error", err)
			continue
		}

		slog.Info("Webhook delivered", "receipt_id", del.receipt.ID, "url", del.url, "attempt", attempt)
		return
	}

	slog.Error("Webhook delivery abandoned", "receipt_id", del.receipt.ID, "url", del.url, "attempts", d.attempts)
}

func (d *Dispatcher) post(ctx context.Context, targetURL string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return http.StatusText(e.code)
}
