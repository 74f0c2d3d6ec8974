package watch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// SnapshotSource produces the current event snapshot. The session polls it;
// implementations must be safe to call repeatedly.
type SnapshotSource interface {
	Fetch(ctx context.Context) (EventSnapshot, error)
}

const fetchTimeout = 15 * time.Second

// APIClient fetches one event's snapshot from the platform events API.
type APIClient struct {
	baseURL string
	slug    string
	client  *http.Client
}

// NewAPIClient returns a client bound to one event slug.
func NewAPIClient(baseURL, slug string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		slug:    slug,
		client:  &http.Client{Timeout: fetchTimeout},
	}
}

// Fetch implements SnapshotSource.Fetch via GET {baseURL}/events/{slug}.
func (c *APIClient) Fetch(ctx context.Context) (EventSnapshot, error) {
	endpoint := c.baseURL + "/events/" + url.PathEscape(c.slug)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return EventSnapshot{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return EventSnapshot{}, fmt.Errorf("failed to fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return EventSnapshot{}, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return EventSnapshot{}, fmt.Errorf("API returned status code: %d, response: %s", resp.StatusCode, string(body))
	}

	snap, err := DecodeSnapshot(body)
	if err != nil {
		return EventSnapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap, nil
}
