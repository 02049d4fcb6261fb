package node

import (
	"net/netip"
	"sort"

	"github.com/ziesha/bazuka/internal/client"
)

// CandidateDetails tracks a known address we have not yet handshaked with.
type CandidateDetails struct {
	Address         client.PeerAddress
	CandidatedSince uint64
}

// PunishmentDetails bans an IP until PunishedTill.
type PunishmentDetails struct {
	PunishedTill uint64
}

// PeerManager is the candidate/peer/punishment state machine. One slot per
// IP: the three tables are pairwise disjoint on their IP keys. It is not
// internally locked; it lives inside the node context and inherits its
// reader-writer discipline.
type PeerManager struct {
	candidateTTL uint64

	candidates  map[netip.Addr]CandidateDetails
	peers       map[netip.Addr]client.Peer
	punishments map[netip.Addr]PunishmentDetails
}

// NewPeerManager seeds the candidate table from the bootstrap list. Peers
// and punishments start empty.
func NewPeerManager(bootstrap []client.PeerAddress, now uint64, candidateTTL uint64) *PeerManager {
	pm := &PeerManager{
		candidateTTL: candidateTTL,
		candidates:   make(map[netip.Addr]CandidateDetails),
		peers:        make(map[netip.Addr]client.Peer),
		punishments:  make(map[netip.Addr]PunishmentDetails),
	}
	for _, addr := range bootstrap {
		pm.candidates[client.IPOf(addr)] = CandidateDetails{Address: addr, CandidatedSince: now}
	}
	return pm
}

// Refresh drops expired punishments and stale candidates. Idempotent for a
// fixed now; expiry is driven solely by time. An expired punishment goes to
// "no state": the IP must be rediscovered before it can be a candidate again.
func (pm *PeerManager) Refresh(now uint64) {
	for ip, det := range pm.punishments {
		if now > det.PunishedTill {
			delete(pm.punishments, ip)
		}
	}
	for ip, det := range pm.candidates {
		// Saturate on clocks moving backwards: a wrapped-around age would
		// drop fresh candidates at once, while a zero age keeps them until
		// real time passes the TTL.
		age := uint64(0)
		if now > det.CandidatedSince {
			age = now - det.CandidatedSince
		}
		if age >= pm.candidateTTL {
			delete(pm.candidates, ip)
		}
	}
}

// IsIPPunished reports whether ip is banned at wall-clock now.
func (pm *PeerManager) IsIPPunished(now uint64, ip netip.Addr) bool {
	det, ok := pm.punishments[ip.Unmap()]
	return ok && now < det.PunishedTill
}

// PunishIPFor installs or extends a ban until now+secs, evicting the IP from
// both the candidate and peer tables.
func (pm *PeerManager) PunishIPFor(now uint64, ip netip.Addr, secs uint64) {
	ip = ip.Unmap()
	delete(pm.candidates, ip)
	delete(pm.peers, ip)
	till := now + secs
	if cur, ok := pm.punishments[ip]; ok && cur.PunishedTill > till {
		till = cur.PunishedTill
	}
	pm.punishments[ip] = PunishmentDetails{PunishedTill: till}
}

// MarkAsCandidate demotes a peer back to candidate, for previously-good
// peers that stopped responding without yet tripping punishment. No-op if
// the IP is not currently a peer.
func (pm *PeerManager) MarkAsCandidate(now uint64, addr client.PeerAddress) {
	ip := client.IPOf(addr)
	if _, ok := pm.peers[ip]; !ok {
		return
	}
	delete(pm.peers, ip)
	pm.candidates[ip] = CandidateDetails{Address: addr, CandidatedSince: now}
}

// AddCandidate installs addr as a candidate unless its IP is already a peer
// or currently punished. An expired punishment entry not yet dropped by
// Refresh is cleared, so the IP never sits in two tables.
func (pm *PeerManager) AddCandidate(now uint64, addr client.PeerAddress) {
	ip := client.IPOf(addr)
	if _, ok := pm.peers[ip]; ok {
		return
	}
	if pm.IsIPPunished(now, ip) {
		return
	}
	delete(pm.punishments, ip)
	pm.candidates[ip] = CandidateDetails{Address: addr, CandidatedSince: now}
}

// AddPeer promotes an endpoint after a successful handshake: its IP leaves
// the candidate table and enters the peer table. Punished IPs are refused;
// an expired punishment entry is cleared.
func (pm *PeerManager) AddPeer(now uint64, peer client.Peer) {
	ip := client.IPOf(peer.Address)
	if pm.IsIPPunished(now, ip) {
		return
	}
	delete(pm.punishments, ip)
	delete(pm.candidates, ip)
	pm.peers[ip] = peer
}

// GetPeers returns the peer table, keyed by IP. Callers must not mutate it.
func (pm *PeerManager) GetPeers() map[netip.Addr]client.Peer {
	return pm.peers
}

// GetRankedPeers samples up to n healthy peers, most recently seen first,
// then by advisory power, tie-broken by address so selection is
// deterministic for a fixed peer set.
func (pm *PeerManager) GetRankedPeers(n int) []client.Peer {
	ranked := make([]client.Peer, 0, len(pm.peers))
	for _, p := range pm.peers {
		if p.Stats.Healthy() {
			ranked = append(ranked, p)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Stats.LastSeen != ranked[j].Stats.LastSeen {
			return ranked[i].Stats.LastSeen > ranked[j].Stats.LastSeen
		}
		if ranked[i].Stats.Power != ranked[j].Stats.Power {
			return ranked[i].Stats.Power > ranked[j].Stats.Power
		}
		return ranked[i].Address.String() < ranked[j].Address.String()
	})
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// GetCandidates samples up to n candidate addresses in deterministic order.
func (pm *PeerManager) GetCandidates(n int) []client.PeerAddress {
	out := make([]client.PeerAddress, 0, len(pm.candidates))
	for _, det := range pm.candidates {
		out = append(out, det.Address)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// UpdatePeerStats mutates the stats of a known peer in place.
func (pm *PeerManager) UpdatePeerStats(addr client.PeerAddress, update func(*client.Peer)) {
	ip := client.IPOf(addr)
	if p, ok := pm.peers[ip]; ok {
		update(&p)
		pm.peers[ip] = p
	}
}
