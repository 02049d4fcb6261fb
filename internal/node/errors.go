package node

import (
	"errors"
	"net/http"

	"github.com/ziesha/bazuka/internal/blockchain"
	"github.com/ziesha/bazuka/internal/client"
)

var (
	// ErrNotListening means the inbound dispatcher is gone; the server is
	// shutting down.
	ErrNotListening = errors.New("node is not listening")
	// ErrNotAnswering means the response channel closed before a reply.
	ErrNotAnswering = errors.New("node is not answering")
	// ErrProtocolViolation marks malformed or semantically invalid peer
	// data; the offending IP gets punished.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrUnknownPath marks a request for a path the dispatcher does not
	// serve.
	ErrUnknownPath = errors.New("unknown path")
)

// statusOf maps an error to the HTTP status code of the RPC surface.
func statusOf(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrProtocolViolation), errors.Is(err, client.ErrSerialization),
		errors.Is(err, ErrUnknownPath):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotAnswering), errors.Is(err, ErrNotListening):
		return http.StatusServiceUnavailable
	case errors.Is(err, blockchain.ErrStore):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
