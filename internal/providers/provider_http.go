package providers

import (
	"context"
	"io"
	"net/http"

	"github.com/sidecartridge/booster/boosterd/internal/util"
)

// HTTP serves http:// and https:// URLs.
type HTTP struct {
	client    *http.Client
	attempts  int
	chunkSize int
}

// NewHTTP returns an HTTP provider using the given client.
func NewHTTP(client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}

	return &HTTP{
		client:    client,
		attempts:  1,
		chunkSize: DefaultChunkSize,
	}
}

// WithRetries sets how many times establishing the connection is attempted.
func (p *HTTP) WithRetries(attempts int) *HTTP {
	if attempts > 0 {
		p.attempts = attempts
	}

	return p
}

// Start issues a GET request for the URL and streams the body through the callbacks.
func (p *HTTP) Start(ctx context.Context, u util.URLComponents, cb Callbacks) (*Request, error) {
	// Prepare the request.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	return startRequest(ctx, cb, p.chunkSize, func(ctx context.Context) (int, int64, io.ReadCloser, error) {
		resp, err := tryRequest(ctx, p.client, req.WithContext(ctx), p.attempts)
		if err != nil {
			return 0, 0, nil, err
		}

		return resp.StatusCode, resp.ContentLength, resp.Body, nil
	}), nil
}
