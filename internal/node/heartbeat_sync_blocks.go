package node

import (
	"context"
	"time"

	"github.com/ziesha/bazuka/internal/client"
)

// syncBlocks pulls missing blocks from the best peer ahead of us: among
// responding peers with a higher advertised height, the highest-power one
// wins. Peers serving invalid blocks are punished as protocol violators.
func (n *Node) syncBlocks(ctx context.Context) error {
	n.mu.RLock()
	bc := n.ctx.Blockchain
	peers := n.ctx.PeerManager.GetRankedPeers(n.opts.NumPeers)
	out := n.ctx.Outgoing
	maxBlocks := n.opts.MaxBlocksPerRequest
	n.mu.RUnlock()

	height, err := bc.GetHeight()
	if err != nil {
		return err
	}

	var source *client.Peer
	for i := range peers {
		p := &peers[i]
		if p.Info.Height <= height {
			continue
		}
		if source == nil || p.Stats.Power > source.Stats.Power {
			source = p
		}
	}
	if source == nil {
		return nil
	}

	limit := n.opts.OutgoingLimit.WithSize(8 * client.MB).WithTime(30 * time.Second)
	resp, err := client.JSONPost[client.GetBlocksRequest, client.GetBlocksResponse](
		ctx, out, client.PeerURL(source.Address, "/blocks"),
		client.GetBlocksRequest{Since: height, Count: maxBlocks}, limit)
	if err != nil {
		n.mu.Lock()
		n.ctx.Punish(source.Address, uint64(n.opts.NoResponsePunishment.Seconds()))
		n.mu.Unlock()
		return err
	}

	for i := range resp.Blocks {
		if err := bc.ApplyBlock(&resp.Blocks[i]); err != nil {
			// A peer feeding us unappliable blocks is violating the
			// protocol, not merely slow.
			n.mu.Lock()
			n.ctx.Punish(source.Address, uint64(n.opts.ViolationPunishment.Seconds()))
			n.mu.Unlock()
			return err
		}
		n.mu.Lock()
		n.ctx.Mempool.ReapIncluded(&resp.Blocks[i])
		n.mu.Unlock()
	}

	n.mu.Lock()
	now := n.ctx.LocalTimestamp()
	n.ctx.PeerManager.UpdatePeerStats(source.Address, func(p *client.Peer) {
		p.Stats.LastSeen = now
	})
	n.mu.Unlock()
	return nil
}
