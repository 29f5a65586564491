package utils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultFetchAttempts bounds how often one download is tried.
const DefaultFetchAttempts = 5

type API struct {
	client   *http.Client
	attempts int
}

func NewAPI() *API {
	return &API{
		client:   &http.Client{Timeout: 60 * time.Second},
		attempts: DefaultFetchAttempts,
	}
}

// Get downloads url, retrying failed attempts.
func (a *API) Get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for i := 0; i < a.attempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		body, err := a.get(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("failed to fetch %s after %d attempts: %w", url, a.attempts, lastErr)
}

func (a *API) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
