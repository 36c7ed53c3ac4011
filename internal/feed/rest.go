package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ianfigueroa/Titan/internal/domain"
)

const (
	restTimeout     = 10 * time.Second
	maxSnapshotSize = 8 << 20 // generous for depth limit 1000
)

// RESTClient is the net/http implementation of SnapshotFetcher.
type RESTClient struct {
	client *http.Client
}

// NewRESTClient creates a snapshot fetcher with a bounded request timeout.
func NewRESTClient() *RESTClient {
	return &RESTClient{
		client: &http.Client{Timeout: restTimeout},
	}
}

// Fetch issues one GET and returns the body. Non-2xx statuses are errors.
func (r *RESTClient) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, domain.NewFatalNetworkError("request", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, domain.NewNetworkError("get", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", domain.ErrSnapshotFetch, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotSize))
	if err != nil {
		return nil, domain.NewNetworkError("body", err)
	}
	return body, nil
}
