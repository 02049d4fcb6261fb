package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "client")

// OutgoingResult is the terminal outcome of one outgoing request.
type OutgoingResult struct {
	Body []byte
	Err  error
}

// OutgoingRequest is one queued outbound HTTP call. Resp carries exactly one
// OutgoingResult; the channel is buffered so the servicing goroutine never
// blocks on a caller that gave up.
type OutgoingRequest struct {
	Method string
	URL    string
	Body   []byte
	Limit  Limit
	Resp   chan OutgoingResult
}

// Outgoing is the producer side of the outbound request channel, shared by
// every heartbeat task and handler that talks to peers.
type Outgoing struct {
	queue *Queue[*OutgoingRequest]
}

func NewOutgoing() *Outgoing {
	return &Outgoing{queue: NewQueue[*OutgoingRequest]()}
}

// Queue enqueues req for the client loop.
func (o *Outgoing) Queue(req *OutgoingRequest) error {
	return o.queue.Push(req)
}

// Close stops accepting new requests.
func (o *Outgoing) Close() {
	o.queue.Close()
}

// Pop hands the next queued request to the consumer. Only the client loop
// (or a stand-in for it) may call this.
func (o *Outgoing) Pop(ctx context.Context) (*OutgoingRequest, error) {
	return o.queue.Pop(ctx)
}

// RunLoop drains the outgoing channel, servicing every request in its own
// goroutine so one slow target never blocks the rest. Returns when ctx is
// cancelled or the queue is closed.
func (o *Outgoing) RunLoop(ctx context.Context) error {
	for {
		req, err := o.Pop(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		go func(req *OutgoingRequest) {
			body, err := perform(ctx, req)
			if err != nil {
				log.WithError(err).WithField("url", req.URL).Debug("outgoing request failed")
			}
			req.Resp <- OutgoingResult{Body: body, Err: err}
		}(req)
	}
}

// perform runs one HTTP round trip under the request's limit.
func perform(ctx context.Context, req *OutgoingRequest) ([]byte, error) {
	if req.Limit.Time > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Limit.Time)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	reader := io.Reader(resp.Body)
	if req.Limit.Size > 0 {
		reader = io.LimitReader(resp.Body, req.Limit.Size+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if req.Limit.Size > 0 && int64(len(body)) > req.Limit.Size {
		return nil, ErrSizeLimitExceeded
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrTransport, resp.StatusCode, bytes.TrimSpace(body))
	}
	return body, nil
}
