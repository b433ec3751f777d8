// Package backupclient talks to the pg backup sidecar that runs next to Postgres.
package backupclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const defaultURL = "http://pgbackup:8081"

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New берёт адрес из BACKUPCTL_URL, если base пустой.
func New(base string) *Client {
	if base == "" {
		base = os.Getenv("BACKUPCTL_URL")
	}
	if base == "" {
		base = defaultURL
	}
	return &Client{BaseURL: strings.TrimRight(base, "/"), HTTP: &http.Client{}}
}

func (c *Client) do(ctx context.Context, path string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("%s: http %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return strings.TrimSpace(string(body)), nil
}

// Trigger запускает pg_dump; ответ: имя созданного файла.
func (c *Client) Trigger(ctx context.Context) (string, error) {
	return c.do(ctx, "/cgi-bin/backup", 2*time.Minute)
}

// RestoreLatest накатывает последний дамп поверх текущей базы.
func (c *Client) RestoreLatest(ctx context.Context) (string, error) {
	return c.do(ctx, "/cgi-bin/restore-latest", 5*time.Minute)
}
