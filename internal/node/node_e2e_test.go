package node

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziesha/bazuka/internal/client"
)

// Two real nodes over loopback: A bootstraps off B, promotes it after the
// handshake, and B learns A's advertised address.
func TestTwoNodeHandshake(t *testing.T) {
	b := startTestNode(t, nil)
	bAddr := netip.MustParseAddrPort(b.srv.Listener.Addr().String())

	aExternal := netip.MustParseAddrPort("1.2.3.4:8765")
	a := startTestNode(t, func(o *Options) {
		o.Bootstrap = []client.PeerAddress{bAddr}
		o.ExternalAddr = &aExternal
	})

	require.NoError(t, a.n.discoverPeers(a.ctx))

	a.n.mu.RLock()
	peers := a.n.ctx.PeerManager.GetPeers()
	require.Contains(t, peers, bAddr.Addr())
	assert.Equal(t, uint64(1), peers[bAddr.Addr()].Info.Height)
	a.n.mu.RUnlock()

	b.n.mu.RLock()
	assert.Contains(t, b.n.ctx.PeerManager.GetCandidates(-1), aExternal)
	b.n.mu.RUnlock()

	// Clock sync against the promoted peer: both mock clocks agree, so the
	// offset settles at zero.
	require.NoError(t, a.n.syncClock(a.ctx))
	a.n.mu.RLock()
	defer a.n.mu.RUnlock()
	assert.Equal(t, int64(0), a.n.ctx.TimestampOffset)
}

// The supervisor shuts down cleanly when its context is cancelled.
func TestRunStopsOnCancel(t *testing.T) {
	e := newBareTestNode(t, func(o *Options) {
		o.ListenAddr = "127.0.0.1:0"
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.n.Run(ctx) }()

	// Give the loops a moment to start, then pull the plug.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("node did not shut down")
	}
}
