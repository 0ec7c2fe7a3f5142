package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// tryRequest attempts the request up to attempts times, one second apart.
func tryRequest(ctx context.Context, client *http.Client, req *http.Request, attempts int) (*http.Response, error) {
	var err error

	for i := range attempts {
		var resp *http.Response

		resp, err = client.Do(req)
		if err == nil {
			return resp, nil
		}

		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}

	return nil, fmt.Errorf("http request failed after %d attempts: %w", attempts, err)
}
