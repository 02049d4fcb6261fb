package client

import (
	"github.com/ziesha/bazuka/internal/core"
)

// HandshakeRequest introduces the caller. Node carries the caller's external
// address when it accepts inbound connections; a nil Node means a client-only
// caller that must not be added as a candidate.
type HandshakeRequest struct {
	Node *PeerAddress `json:"node,omitempty"`
}

// HandshakeResponse is the /peers reply: the responder's network time, its
// own info, and a sample of its active peers for discovery.
type HandshakeResponse struct {
	Timestamp uint64        `json:"timestamp"`
	Info      PeerInfo      `json:"info"`
	Peers     []PeerAddress `json:"peers"`
}

// StatsResponse is the read-only /stats snapshot.
type StatsResponse struct {
	Height      uint64 `json:"height"`
	PeerCount   int    `json:"peers"`
	MempoolSize int    `json:"mempool_size"`
	Timestamp   uint64 `json:"timestamp"`
}

// TransactRequest submits a signed transaction for mempool admission.
type TransactRequest struct {
	Tx core.Transaction `json:"tx"`
}

// TransactResponse reports the admission outcome. Error is a short
// human-readable reason when Accepted is false.
type TransactResponse struct {
	Accepted    bool   `json:"accepted"`
	Error       string `json:"error,omitempty"`
	MempoolSize int    `json:"mempool_size"`
}

// PostBlockRequest hands a block to the responder's chain.
type PostBlockRequest struct {
	Block core.Block `json:"block"`
}

type PostBlockResponse struct {
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// GetBlocksRequest asks for Count blocks starting at number Since.
type GetBlocksRequest struct {
	Since uint64 `json:"since"`
	Count uint64 `json:"count"`
}

type GetBlocksResponse struct {
	Blocks []core.Block `json:"blocks"`
}
