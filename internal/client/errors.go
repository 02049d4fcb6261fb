package client

import "errors"

var (
	// ErrTimeout means Limit.Time elapsed before the response arrived.
	ErrTimeout = errors.New("request timed out")
	// ErrSizeLimitExceeded means the response body exceeded Limit.Size.
	ErrSizeLimitExceeded = errors.New("response size limit exceeded")
	// ErrTransport wraps underlying HTTP I/O failures.
	ErrTransport = errors.New("transport failure")
	// ErrSerialization wraps JSON encode/decode failures.
	ErrSerialization = errors.New("serialization failure")
	// ErrQueueClosed is returned when pushing to or popping from a closed
	// request queue.
	ErrQueueClosed = errors.New("request queue closed")
)
