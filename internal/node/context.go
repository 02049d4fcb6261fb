package node

import (
	"github.com/benbjohnson/clock"

	"github.com/ziesha/bazuka/internal/blockchain"
	"github.com/ziesha/bazuka/internal/client"
	"github.com/ziesha/bazuka/internal/utils"
)

// NodeContext is the single mutable hub of the node: chain handle, mempool,
// peer tables, clock offset and the outgoing channel. Exactly one instance
// exists per process, guarded by the owning Node's reader-writer lock;
// nothing here locks on its own.
type NodeContext struct {
	clk  clock.Clock
	opts Options

	Blockchain  blockchain.Blockchain
	Mempool     *Mempool
	PeerManager *PeerManager
	Outgoing    *client.Outgoing

	// TimestampOffset is the signed delta applied to the local wall-clock
	// to produce network time. Only the clock-sync heartbeat writes it.
	TimestampOffset int64
}

func newContext(opts Options, bc blockchain.Blockchain, clk clock.Clock, out *client.Outgoing) *NodeContext {
	now := utils.LocalTimestamp(clk)
	return &NodeContext{
		clk:         clk,
		opts:        opts,
		Blockchain:  bc,
		Mempool:     NewMempool(opts.MempoolCapacity),
		PeerManager: NewPeerManager(opts.Bootstrap, now, uint64(opts.CandidateTTL.Seconds())),
		Outgoing:    out,
	}
}

// LocalTimestamp is the raw wall-clock in seconds.
func (c *NodeContext) LocalTimestamp() uint64 {
	return utils.LocalTimestamp(c.clk)
}

// NetworkTimestamp is the local wall-clock adjusted by the median-derived
// offset, so peers agree on time within a small tolerance.
func (c *NodeContext) NetworkTimestamp() uint64 {
	return uint64(int64(c.LocalTimestamp()) + c.TimestampOffset)
}

// GetInfo describes this node to peers.
func (c *NodeContext) GetInfo() (client.PeerInfo, error) {
	height, err := c.Blockchain.GetHeight()
	if err != nil {
		return client.PeerInfo{}, err
	}
	return client.PeerInfo{Height: height}, nil
}

// HandshakeRequest builds the introduction we send to peers: our external
// address, or a client-only introduction when we do not accept inbound.
func (c *NodeContext) HandshakeRequest() client.HandshakeRequest {
	if c.opts.ClientOnly || c.opts.ExternalAddr == nil {
		return client.HandshakeRequest{}
	}
	return client.HandshakeRequest{Node: c.opts.ExternalAddr}
}

// ActivePeers snapshots the healthy peers.
func (c *NodeContext) ActivePeers() []client.Peer {
	return c.PeerManager.GetRankedPeers(-1)
}

// Punish bans the IP of addr and records the event.
func (c *NodeContext) Punish(addr client.PeerAddress, secs uint64) {
	c.PeerManager.PunishIPFor(c.LocalTimestamp(), client.IPOf(addr), secs)
	punishmentsIssued.Inc()
}
