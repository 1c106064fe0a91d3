package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vigil-labs/vigil-core/internal/config"
	"github.com/vigil-labs/vigil-core/internal/protocol"
)

type webhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink posts alerts as JSON to an HTTP endpoint.
func NewWebhookSink(cfg config.AlertSinkConfig) Sink {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &webhookSink{
		url:    cfg.URL,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *webhookSink) Name() string { return "webhook" }

func (s *webhookSink) Deliver(ctx context.Context, alert protocol.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
