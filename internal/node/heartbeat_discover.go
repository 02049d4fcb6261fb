package node

import (
	"context"

	"github.com/ziesha/bazuka/internal/client"
)

// discoverPeers grows and maintains the peer set: handshake current
// candidates to promote them, and ask existing peers for their peer lists.
// Peers that stop answering are demoted back to candidates; candidates that
// never answer simply age out of the table.
func (n *Node) discoverPeers(ctx context.Context) error {
	n.mu.RLock()
	hs := n.ctx.HandshakeRequest()
	candidates := n.ctx.PeerManager.GetCandidates(n.opts.NumPeers)
	peers := n.ctx.PeerManager.GetRankedPeers(n.opts.NumPeers)
	out := n.ctx.Outgoing
	external := n.opts.ExternalAddr
	n.mu.RUnlock()

	if len(candidates) == 0 && len(peers) == 0 {
		return nil
	}

	candidateResults := n.handshake(ctx, out, hs, asPeers(candidates))
	peerResults := n.handshake(ctx, out, hs, peers)

	n.mu.Lock()
	defer n.mu.Unlock()
	now := n.ctx.LocalTimestamp()

	for _, r := range candidateResults {
		if r.Err != nil {
			continue
		}
		n.ctx.PeerManager.AddPeer(now, client.Peer{
			Address: r.Peer.Address,
			Info:    r.Resp.Info,
			Stats:   client.PeerStats{LastSeen: now, Power: r.Resp.Info.Power},
		})
		n.addIntroductions(now, r.Resp.Peers, external)
	}
	for _, r := range peerResults {
		if r.Err != nil {
			n.ctx.PeerManager.MarkAsCandidate(now, r.Peer.Address)
			continue
		}
		n.ctx.PeerManager.UpdatePeerStats(r.Peer.Address, func(p *client.Peer) {
			p.Stats.LastSeen = now
			p.Stats.Power = r.Resp.Info.Power
			p.Info = r.Resp.Info
		})
		n.addIntroductions(now, r.Resp.Peers, external)
	}
	return nil
}

// addIntroductions registers peer-provided addresses as candidates, skipping
// our own external address. Caller holds the write lock.
func (n *Node) addIntroductions(now uint64, addrs []client.PeerAddress, external *client.PeerAddress) {
	for _, addr := range addrs {
		if external != nil && addr == *external {
			continue
		}
		n.ctx.PeerManager.AddCandidate(now, addr)
	}
}
