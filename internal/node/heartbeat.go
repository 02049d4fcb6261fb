package node

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ziesha/bazuka/internal/client"
)

type heartbeatTask struct {
	name     string
	interval time.Duration
	run      func(context.Context) error
}

// runHeartbeat drives the maintenance tasks on their own cadences. A failing
// task logs at debug and yields to its next tick; it never takes the node
// down.
func (n *Node) runHeartbeat(ctx context.Context) error {
	tasks := []heartbeatTask{
		{"sync_clock", n.opts.SyncClockInterval, n.syncClock},
		{"discover_peers", n.opts.DiscoverInterval, n.discoverPeers},
		{"sync_blocks", n.opts.SyncBlocksInterval, n.syncBlocks},
		{"gossip_txs", n.opts.GossipTxsInterval, n.gossipTxs},
		{"reap", n.opts.ReapInterval, n.reap},
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, t := range tasks {
		t := t
		g.Go(func() error {
			ticker := n.clk.Ticker(t.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := t.run(ctx); err != nil {
						heartbeatFailures.WithLabelValues(t.name).Inc()
						log.WithError(err).WithField("task", t.name).Debug("heartbeat task failed")
					}
				}
			}
		})
	}
	return g.Wait()
}

// handshake fans a handshake out to targets through the outgoing channel.
// Callers pass a snapshot; no lock is held while the requests are in flight.
func (n *Node) handshake(ctx context.Context, out *client.Outgoing, hs client.HandshakeRequest,
	targets []client.Peer) []client.GroupResult[client.HandshakeResponse] {
	return client.GroupRequest(targets, func(p client.Peer) (client.HandshakeResponse, error) {
		return client.JSONPost[client.HandshakeRequest, client.HandshakeResponse](
			ctx, out, client.PeerURL(p.Address, "/peers"), hs, n.opts.OutgoingLimit)
	})
}

// asPeers wraps bare addresses as Peer values for group requests.
func asPeers(addrs []client.PeerAddress) []client.Peer {
	peers := make([]client.Peer, len(addrs))
	for i, addr := range addrs {
		peers[i] = client.Peer{Address: addr}
	}
	return peers
}
