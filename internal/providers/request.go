package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultChunkSize is the largest body chunk handed to the Body callback.
const DefaultChunkSize = 4096

type eventKind int

const (
	eventHeader eventKind = iota
	eventBody
	eventResult
)

type event struct {
	kind          eventKind
	contentLength int64
	chunk         []byte
	result        Result
}

// opener establishes the transfer and returns its status, length and body.
type opener func(ctx context.Context) (int, int64, io.ReadCloser, error)

// Request is an in-flight transfer.
//
// The transfer runs on its own goroutine but every callback is dispatched from Poll,
// so the owner never sees a callback run concurrently with its own code. The body
// reader waits for each chunk to be acknowledged before reading the next one.
type Request struct {
	cb     Callbacks
	cancel context.CancelFunc
	events chan event
	acks   chan error

	complete bool
	received int64
}

func startRequest(ctx context.Context, cb Callbacks, chunkSize int, open opener) *Request {
	ctx, cancel := context.WithCancel(ctx)

	r := &Request{
		cb:     cb,
		cancel: cancel,
		events: make(chan event),
		acks:   make(chan error, 1),
	}

	go r.run(ctx, chunkSize, open)

	return r
}

func (r *Request) run(ctx context.Context, chunkSize int, open opener) {
	status, length, body, err := open(ctx)
	if err != nil {
		r.finish(ctx, Result{Err: err})

		return
	}

	if body != nil {
		defer body.Close()
	}

	if status != http.StatusOK {
		r.finish(ctx, Result{StatusCode: status, Err: fmt.Errorf("%w: %d", ErrHTTPStatus, status)})

		return
	}

	err = r.deliver(ctx, event{kind: eventHeader, contentLength: length})
	if err != nil {
		r.finish(ctx, Result{StatusCode: status, Err: err})

		return
	}

	buf := make([]byte, chunkSize)

	for {
		n, err := body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])

			ackErr := r.deliver(ctx, event{kind: eventBody, chunk: chunk})
			if ackErr != nil {
				r.finish(ctx, Result{StatusCode: status, Err: ackErr})

				return
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				r.finish(ctx, Result{StatusCode: status})
			} else {
				r.finish(ctx, Result{StatusCode: status, Err: err})
			}

			return
		}
	}
}

// deliver hands an event to the owner and waits for its acknowledgement.
func (r *Request) deliver(ctx context.Context, ev event) error {
	select {
	case r.events <- ev:
	case <-ctx.Done():
		return ErrRequestCancelled
	}

	select {
	case err := <-r.acks:
		return err
	case <-ctx.Done():
		return ErrRequestCancelled
	}
}

func (r *Request) finish(ctx context.Context, res Result) {
	select {
	case r.events <- event{kind: eventResult, result: res}:
	case <-ctx.Done():
	}
}

// Poll dispatches pending events for up to wait and returns whether the transfer is complete.
func (r *Request) Poll(wait time.Duration) bool {
	if r.complete {
		return true
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case ev := <-r.events:
			r.handle(ev)

			if r.complete {
				return true
			}
		case <-timer.C:
			return r.complete
		}
	}
}

func (r *Request) handle(ev event) {
	switch ev.kind {
	case eventHeader:
		var err error
		if r.cb.Header != nil {
			err = r.cb.Header(ev.contentLength)
		}

		r.acks <- err
	case eventBody:
		r.received += int64(len(ev.chunk))

		var err error
		if r.cb.Body != nil {
			err = r.cb.Body(ev.chunk)
		}

		r.acks <- err
	case eventResult:
		r.complete = true
		r.cancel()

		res := ev.result
		res.Received = r.received

		if r.cb.Result != nil {
			r.cb.Result(res)
		}
	}
}

// Complete returns whether the transfer has ended.
func (r *Request) Complete() bool {
	return r.complete
}

// Received returns the number of body bytes handed to the Body callback.
func (r *Request) Received() int64 {
	return r.received
}

// Cancel aborts the transfer. No further callbacks are run.
func (r *Request) Cancel() {
	r.cancel()
	r.complete = true
}
