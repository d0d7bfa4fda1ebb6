// Package notify delivers scan and batch results to external endpoints.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"crosscheck/pkg/utils"
)

// Notifier sends notifications.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// Notification represents a notification message.
type Notification struct {
	Type      NotificationType
	Title     string
	Message   string
	Data      interface{}
	Timestamp time.Time
}

// NotificationType represents the type of notification.
type NotificationType string

const (
	// NotificationCrosses lists the golden crosses found by a scan.
	NotificationCrosses NotificationType = "golden_crosses"
	NotificationBatch   NotificationType = "batch_summary"
)

// New returns a webhook notifier for url, or a no-op notifier when url is empty.
func New(url string) Notifier {
	if url == "" {
		return NoOpNotifier{}
	}
	return NewWebhookNotifier(url)
}

// WebhookNotifier sends notifications via HTTP webhook.
type WebhookNotifier struct {
	url    string
	client *http.Client
	retry  utils.RetryConfig
}

// NewWebhookNotifier creates a new WebhookNotifier.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		retry: utils.DefaultRetryConfig(),
	}
}

// Send posts the notification as JSON, retrying transport errors and 5xx responses.
func (w *WebhookNotifier) Send(ctx context.Context, n Notification) error {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}
	payload := map[string]interface{}{
		"type":      n.Type,
		"title":     n.Title,
		"message":   n.Message,
		"data":      n.Data,
		"timestamp": n.Timestamp.Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	return utils.Retry(ctx, w.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return utils.Permanent(fmt.Errorf("creating webhook request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "crosscheck/1.0")

		resp, err := w.client.Do(req)
		if err != nil {
			return fmt.Errorf("sending webhook: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("webhook returned status %d", resp.StatusCode)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return utils.Permanent(fmt.Errorf("webhook returned status %d", resp.StatusCode))
		}
		return nil
	})
}

// NoOpNotifier discards notifications.
type NoOpNotifier struct{}

// Send does nothing.
func (NoOpNotifier) Send(context.Context, Notification) error {
	return nil
}
