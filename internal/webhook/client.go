// internal/webhook/client.go

// Package webhook delivers compilation outcomes to the storefront backend.
// Delivery retries independently of the compile queue: a flaky backend must
// not trigger a multi-minute recompilation.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/photobooksgallery/ar-compiler/pkg/schema"
)

const secretHeader = "X-Webhook-Secret"

// Notifier is what the worker depends on; tests substitute a recorder.
type Notifier interface {
	NotifyComplete(ctx context.Context, projectID, viewURL, qrCodeURL string) error
	NotifyFailed(ctx context.Context, projectID, errorMessage string) error
}

// Client posts webhook envelopes to the backend's AR endpoint.
type Client struct {
	endpoint string
	secret   string
	http     *retryablehttp.Client
	logger   *slog.Logger
}

// NewClient targets baseURL's /webhooks/ar-service endpoint.
func NewClient(baseURL, secret string, logger *slog.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 4
	rc.RetryWaitMin = 1 * time.Second
	rc.RetryWaitMax = 30 * time.Second
	rc.HTTPClient.Timeout = 10 * time.Second
	rc.Logger = nil

	return &Client{
		endpoint: baseURL + "/webhooks/ar-service",
		secret:   secret,
		http:     rc,
		logger:   logger,
	}
}

// NotifyComplete reports a successful compilation.
func (c *Client) NotifyComplete(ctx context.Context, projectID, viewURL, qrCodeURL string) error {
	return c.send(ctx, schema.EventCompilationComplete, schema.CompilationCompletePayload{
		ProjectID: projectID,
		ViewURL:   viewURL,
		QRCodeURL: qrCodeURL,
		Status:    "ready",
	})
}

// NotifyFailed reports a failed compilation.
func (c *Client) NotifyFailed(ctx context.Context, projectID, errorMessage string) error {
	return c.send(ctx, schema.EventCompilationFailed, schema.CompilationFailedPayload{
		ProjectID:    projectID,
		ErrorMessage: errorMessage,
		Status:       "error",
	})
}

func (c *Client) send(ctx context.Context, event string, data any) error {
	envelope := schema.WebhookEnvelope{
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal webhook %s: %w", event, err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		req.Header.Set(secretHeader, c.secret)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("webhook delivery failed", "event", event, "err", err)
		return fmt.Errorf("deliver webhook %s: %w", event, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		c.logger.Error("webhook rejected", "event", event, "status", resp.StatusCode)
		return fmt.Errorf("webhook %s rejected with status %d", event, resp.StatusCode)
	}
	c.logger.Info("webhook delivered", "event", event, "status", resp.StatusCode)
	return nil
}
