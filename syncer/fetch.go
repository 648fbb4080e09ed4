package syncer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

// maxDocumentBytes bounds a template document read from the network.
const maxDocumentBytes = 4 << 20

// Fetcher retrieves the raw template document found at url.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher performs a GET and fails with *NetworkError on transport
// errors and non-2xx responses.
type HTTPFetcher struct {
	Client  *http.Client
	Timeout time.Duration
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, &NetworkError{URL: url, Err: errors.New("url is required")}
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	reqCtx := ctx
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &NetworkError{URL: url, Status: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	if len(data) > maxDocumentBytes {
		return nil, &NetworkError{URL: url, Err: errors.New("document too large")}
	}
	return data, nil
}
