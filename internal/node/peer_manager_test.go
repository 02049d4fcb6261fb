package node

import (
	"fmt"
	"math/rand"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziesha/bazuka/internal/client"
)

func addr(s string) client.PeerAddress {
	return netip.MustParseAddrPort(s)
}

func peerAt(s string, lastSeen, power uint64) client.Peer {
	return client.Peer{
		Address: addr(s),
		Info:    client.PeerInfo{Height: 1, Power: power},
		Stats:   client.PeerStats{LastSeen: lastSeen, Power: power},
	}
}

func newPM(bootstrap ...client.PeerAddress) *PeerManager {
	return NewPeerManager(bootstrap, 0, 600)
}

// assertDisjoint checks that the three tables never share an IP.
func assertDisjoint(t *testing.T, pm *PeerManager) {
	t.Helper()
	for ip := range pm.candidates {
		_, inPeers := pm.peers[ip]
		_, inPunished := pm.punishments[ip]
		assert.False(t, inPeers, "ip %s in candidates and peers", ip)
		assert.False(t, inPunished, "ip %s in candidates and punishments", ip)
	}
	for ip := range pm.peers {
		_, inPunished := pm.punishments[ip]
		assert.False(t, inPunished, "ip %s in peers and punishments", ip)
	}
}

func TestBootstrapSeedsCandidates(t *testing.T) {
	pm := newPM(addr("10.0.0.1:3030"), addr("10.0.0.2:3030"))
	assert.Len(t, pm.candidates, 2)
	assert.Empty(t, pm.peers)
	assert.Empty(t, pm.punishments)
}

func TestAddPeerPromotes(t *testing.T) {
	pm := newPM(addr("10.0.0.1:3030"))
	pm.AddPeer(0, peerAt("10.0.0.1:3030", 0, 1))

	ip := netip.MustParseAddr("10.0.0.1")
	assert.Contains(t, pm.peers, ip)
	assert.NotContains(t, pm.candidates, ip)
	assertDisjoint(t, pm)
}

func TestAddCandidateSkipsExistingPeer(t *testing.T) {
	pm := newPM()
	pm.AddPeer(0, peerAt("10.0.0.1:3030", 0, 1))
	pm.AddCandidate(0, addr("10.0.0.1:4040"))

	assert.Empty(t, pm.candidates)
	assertDisjoint(t, pm)
}

func TestPunishmentWindow(t *testing.T) {
	pm := newPM()
	pm.AddPeer(0, peerAt("10.0.0.1:3030", 0, 1))
	pm.AddCandidate(0, addr("10.0.0.2:3030"))

	ip := netip.MustParseAddr("10.0.0.1")
	pm.PunishIPFor(100, ip, 60)

	// Evicted from peers, banned through the window.
	assert.NotContains(t, pm.peers, ip)
	assert.True(t, pm.IsIPPunished(100, ip))
	assert.True(t, pm.IsIPPunished(159, ip))
	assert.False(t, pm.IsIPPunished(160, ip))
	assertDisjoint(t, pm)

	// Candidates and peers are refused while the ban holds.
	pm.AddCandidate(120, addr("10.0.0.1:3030"))
	assert.NotContains(t, pm.candidates, ip)
	pm.AddPeer(120, peerAt("10.0.0.1:3030", 120, 1))
	assert.NotContains(t, pm.peers, ip)

	// After expiry plus a refresh the IP is simply unknown.
	pm.Refresh(200)
	assert.NotContains(t, pm.punishments, ip)
	pm.AddCandidate(200, addr("10.0.0.1:3030"))
	assert.Contains(t, pm.candidates, ip)
}

func TestPunishmentNotShortened(t *testing.T) {
	pm := newPM()
	ip := netip.MustParseAddr("10.0.0.1")
	pm.PunishIPFor(0, ip, 1000)
	pm.PunishIPFor(10, ip, 60)
	assert.True(t, pm.IsIPPunished(900, ip))
}

func TestMarkAsCandidateDemotesOnlyPeers(t *testing.T) {
	pm := newPM()
	ip := netip.MustParseAddr("10.0.0.1")

	// Not a peer: no-op.
	pm.MarkAsCandidate(5, addr("10.0.0.1:3030"))
	assert.NotContains(t, pm.candidates, ip)

	pm.AddPeer(0, peerAt("10.0.0.1:3030", 0, 1))
	pm.MarkAsCandidate(5, addr("10.0.0.1:3030"))
	assert.NotContains(t, pm.peers, ip)
	require.Contains(t, pm.candidates, ip)
	assert.Equal(t, uint64(5), pm.candidates[ip].CandidatedSince)
	assertDisjoint(t, pm)
}

func TestCandidateTTL(t *testing.T) {
	pm := newPM()
	pm.AddCandidate(0, addr("10.0.0.1:3030"))
	ip := netip.MustParseAddr("10.0.0.1")

	pm.Refresh(599)
	assert.Contains(t, pm.candidates, ip)
	pm.Refresh(601)
	assert.NotContains(t, pm.candidates, ip)
}

func TestRefreshIdempotent(t *testing.T) {
	pm := newPM(addr("10.0.0.1:3030"), addr("10.0.0.2:3030"))
	pm.PunishIPFor(0, netip.MustParseAddr("10.0.0.3"), 50)

	pm.Refresh(100)
	candidates := len(pm.candidates)
	punishments := len(pm.punishments)
	pm.Refresh(100)
	assert.Equal(t, candidates, len(pm.candidates))
	assert.Equal(t, punishments, len(pm.punishments))
}

func TestRefreshSaturatesBackwardClock(t *testing.T) {
	pm := newPM()
	pm.AddCandidate(500, addr("10.0.0.1:3030"))
	// Clock moved backwards; age must saturate to zero, not wrap around into
	// an enormous age that would drop the entry at once.
	pm.Refresh(400)
	assert.Contains(t, pm.candidates, netip.MustParseAddr("10.0.0.1"))
}

func TestGetRankedPeers(t *testing.T) {
	pm := newPM()
	pm.AddPeer(0, peerAt("10.0.0.1:3030", 50, 1))
	pm.AddPeer(0, peerAt("10.0.0.2:3030", 100, 1))
	pm.AddPeer(0, peerAt("10.0.0.3:3030", 100, 9))
	unhealthy := peerAt("10.0.0.4:3030", 100, 50)
	unhealthy.Stats.LastFailedSeen = 200
	pm.AddPeer(0, unhealthy)

	ranked := pm.GetRankedPeers(10)
	require.Len(t, ranked, 3)
	assert.Equal(t, addr("10.0.0.3:3030"), ranked[0].Address) // most recent, highest power
	assert.Equal(t, addr("10.0.0.2:3030"), ranked[1].Address)
	assert.Equal(t, addr("10.0.0.1:3030"), ranked[2].Address)

	assert.Len(t, pm.GetRankedPeers(2), 2)
}

func TestGetRankedPeersDeterministicTieBreak(t *testing.T) {
	pm := newPM()
	pm.AddPeer(0, peerAt("10.0.0.2:3030", 10, 1))
	pm.AddPeer(0, peerAt("10.0.0.1:3030", 10, 1))

	for i := 0; i < 5; i++ {
		ranked := pm.GetRankedPeers(10)
		require.Len(t, ranked, 2)
		assert.Equal(t, addr("10.0.0.1:3030"), ranked[0].Address)
	}
}

// TestTablesDisjointUnderRandomOps drives the state machine with random
// operations and checks table disjointness after every step.
func TestTablesDisjointUnderRandomOps(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pm := newPM()
	addrs := make([]client.PeerAddress, 8)
	for i := range addrs {
		addrs[i] = addr(fmt.Sprintf("10.0.0.%d:3030", i+1))
	}

	for step := 0; step < 2000; step++ {
		now := uint64(step)
		a := addrs[rng.Intn(len(addrs))]
		switch rng.Intn(5) {
		case 0:
			pm.AddCandidate(now, a)
		case 1:
			pm.AddPeer(now, client.Peer{Address: a, Stats: client.PeerStats{LastSeen: now}})
		case 2:
			pm.PunishIPFor(now, client.IPOf(a), uint64(rng.Intn(100)))
		case 3:
			pm.MarkAsCandidate(now, a)
		case 4:
			pm.Refresh(now)
		}
		assertDisjoint(t, pm)
	}
}
