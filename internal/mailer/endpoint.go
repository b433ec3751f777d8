package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// EndpointClient отправляет письма через HTTP-эндпоинт /api/send-email.
type EndpointClient struct {
	url  string
	http *http.Client
}

func NewEndpointClient(url string, c *http.Client) *EndpointClient {
	if c == nil {
		c = &http.Client{Timeout: 15 * time.Second}
	}
	return &EndpointClient{url: url, http: c}
}

func (c *EndpointClient) Send(ctx context.Context, m Mail) (string, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("notify endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var out sendResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode != http.StatusOK || !out.Success {
		return "", fmt.Errorf("notify endpoint: status %d: %s", resp.StatusCode, out.Error)
	}
	return out.MessageID, nil
}
