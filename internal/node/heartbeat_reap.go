package node

import "context"

// reap is the slow-cadence janitor: age out stale mempool entries, expire
// punishments and candidates, and shrink idle firewall counters.
func (n *Node) reap(context.Context) error {
	n.mu.Lock()
	retention := uint64(n.opts.MempoolRetention.Seconds())
	networkNow := n.ctx.NetworkTimestamp()
	if networkNow > retention {
		n.ctx.Mempool.ReapOlderThan(networkNow - retention)
	}
	n.ctx.PeerManager.Refresh(n.ctx.LocalTimestamp())
	n.mu.Unlock()

	n.firewall.Refresh()
	return nil
}
