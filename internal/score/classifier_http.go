package score

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type httpClassifier struct {
	endpoint string
	client   *http.Client
}

type httpClassifyRequest struct {
	Text string `json:"text"`
}

type httpClassifyResponse struct {
	Labels []Label `json:"labels"`
}

// NewHTTPClassifier talks to a classifier service over HTTP. The endpoint
// accepts {"text": ...} and returns {"labels": [...]}.
func NewHTTPClassifier(endpoint string) Classifier {
	return &httpClassifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *httpClassifier) Classify(ctx context.Context, text string) ([]Label, error) {
	payload, err := json.Marshal(httpClassifyRequest{Text: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var decoded httpClassifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode classifier response: %w", err)
	}
	return decoded.Labels, nil
}
