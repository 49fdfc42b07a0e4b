package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/JakeFAU/site-enricher/internal/site"
)

// Webhook posts enrichment results to client-supplied URLs.
type Webhook struct {
	client *http.Client
}

// NewWebhook returns a Webhook whose deliveries time out after timeout.
func NewWebhook(timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Webhook{client: &http.Client{Timeout: timeout}}
}

// Deliver sends one JSON envelope to url with a bearer key. Any non-2xx
// response is an error. Deliveries are never retried.
func (w *Webhook) Deliver(ctx context.Context, url, key string, env site.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post callback: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post callback: unexpected status %d", resp.StatusCode)
	}
	return nil
}
