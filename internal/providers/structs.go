package providers

import (
	"context"

	"github.com/sidecartridge/booster/boosterd/internal/util"
)

// Provider starts asynchronous downloads for a given protocol.
type Provider interface {
	Start(ctx context.Context, u util.URLComponents, cb Callbacks) (*Request, error)
}

// Callbacks are invoked by Request.Poll, on the polling goroutine.
//
// Header runs once the response headers are known, Body for every chunk of the body
// and Result once when the transfer ends. A non-nil error from Header or Body aborts
// the transfer, which then completes with that error.
type Callbacks struct {
	Header func(contentLength int64) error
	Body   func(chunk []byte) error
	Result func(res Result)
}

// Result is the outcome of a transfer.
type Result struct {
	StatusCode int
	Received   int64
	Err        error
}

// OK returns whether the transfer completed with a 200 status.
func (r Result) OK() bool {
	return r.Err == nil && r.StatusCode == 200
}
