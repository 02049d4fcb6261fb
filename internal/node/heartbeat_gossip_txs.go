package node

import (
	"context"

	"github.com/ziesha/bazuka/internal/client"
	"github.com/ziesha/bazuka/internal/core"
)

// maxTxsPerGossipTick bounds how many mempool entries one tick relays.
const maxTxsPerGossipTick = 16

// gossipTxs relays freshly-admitted mempool transactions to a peer sample.
// The relayed cache keeps a tick from re-broadcasting what it already sent.
func (n *Node) gossipTxs(ctx context.Context) error {
	n.mu.RLock()
	pending := n.ctx.Mempool.Snapshot()
	peers := n.ctx.PeerManager.GetRankedPeers(n.opts.NumPeers)
	out := n.ctx.Outgoing
	n.mu.RUnlock()

	if len(peers) == 0 {
		return nil
	}

	fresh := make([]core.Transaction, 0, maxTxsPerGossipTick)
	for id, tx := range pending {
		if n.relayedTxs.Contains(id) {
			continue
		}
		fresh = append(fresh, tx)
		if len(fresh) >= maxTxsPerGossipTick {
			break
		}
	}

	for _, tx := range fresh {
		tx := tx
		client.GroupRequest(peers, func(p client.Peer) (client.TransactResponse, error) {
			return client.JSONPost[client.TransactRequest, client.TransactResponse](
				ctx, out, client.PeerURL(p.Address, "/transact"),
				client.TransactRequest{Tx: tx}, n.opts.OutgoingLimit)
		})
		n.relayedTxs.Add(tx.ID(), struct{}{})
	}
	return nil
}
