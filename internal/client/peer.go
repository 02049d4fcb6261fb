// Package client holds the wire types and the outbound half of the node's
// HTTP transport: typed JSON requests with size/time limits, and the client
// loop that services the outgoing request channel.
package client

import "net/netip"

// PeerAddress is a network endpoint. It text-marshals as "ip:port".
// Punishment, candidacy and peer bookkeeping all key on the IP alone; the
// port is retained for dialing.
type PeerAddress = netip.AddrPort

// IPOf returns the indexing key of an address: its IP, unmapped so that
// ::ffff:a.b.c.d and a.b.c.d count as the same source.
func IPOf(addr PeerAddress) netip.Addr {
	return addr.Addr().Unmap()
}

// PeerInfo is what a peer advertises about itself during a handshake.
type PeerInfo struct {
	Height uint64 `json:"height"`
	Power  uint64 `json:"power"`
}

// PeerStats tracks our side of the relationship with a peer. Power is an
// advisory weight influencing peer selection.
type PeerStats struct {
	LastSeen       uint64 `json:"last_seen"`
	LastFailedSeen uint64 `json:"last_failed_seen"`
	Power          uint64 `json:"power"`
}

// Healthy reports whether the peer's most recent interaction succeeded.
func (s PeerStats) Healthy() bool {
	return s.LastFailedSeen <= s.LastSeen
}

// Peer is a handshaked endpoint.
type Peer struct {
	Address PeerAddress `json:"address"`
	Info    PeerInfo    `json:"info"`
	Stats   PeerStats   `json:"stats"`
}
