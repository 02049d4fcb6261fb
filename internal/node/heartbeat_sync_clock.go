package node

import (
	"context"

	"github.com/ziesha/bazuka/internal/client"
	"github.com/ziesha/bazuka/internal/utils"
)

// syncClock aligns our network clock with the peer majority: handshake a
// peer sample, take the median of the returned timestamps, and store the
// delta against the local wall-clock. Non-responders get a short cool-down.
// An empty response set leaves the offset untouched.
func (n *Node) syncClock(ctx context.Context) error {
	n.mu.RLock()
	hs := n.ctx.HandshakeRequest()
	peers := n.ctx.PeerManager.GetRankedPeers(n.opts.NumPeers)
	out := n.ctx.Outgoing
	n.mu.RUnlock()

	if len(peers) == 0 {
		return nil
	}

	log.Debug("syncing clocks")
	results := n.handshake(ctx, out, hs, peers)

	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.ctx.LocalTimestamp()
	timestamps := make([]uint64, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			n.ctx.Punish(r.Peer.Address, uint64(n.opts.NoResponsePunishment.Seconds()))
			continue
		}
		n.ctx.PeerManager.UpdatePeerStats(r.Peer.Address, func(p *client.Peer) {
			p.Stats.LastSeen = now
			p.Stats.Power = r.Resp.Info.Power
			p.Info = r.Resp.Info
		})
		timestamps = append(timestamps, r.Resp.Timestamp)
	}
	if len(timestamps) > 0 {
		median := utils.Median(timestamps)
		n.ctx.TimestampOffset = int64(median) - int64(n.ctx.LocalTimestamp())
	}
	return nil
}
