package node

import (
	"time"

	"github.com/ziesha/bazuka/internal/client"
)

// FirewallConfig caps what a single source may send us.
type FirewallConfig struct {
	// MaxRequestsPerMinute is the per-source request rate cap.
	MaxRequestsPerMinute int
	// TrafficBudget is the per-source byte budget within TrafficWindow.
	TrafficBudget int64
	// TrafficWindow is the byte-budget measurement window.
	TrafficWindow time.Duration
}

// Options is the immutable configuration bundle of a node.
type Options struct {
	Network    string
	ListenAddr string
	// ExternalAddr is how peers reach us. Nil on client-only nodes, which
	// never advertise themselves for inbound.
	ExternalAddr *client.PeerAddress
	Bootstrap    []client.PeerAddress
	// MinerToken is an opaque identifier. The node keeps it here and does
	// not read it.
	MinerToken     string
	SocialProfiles map[string]string
	ClientOnly     bool

	// NumPeers is the sample size heartbeat tasks use when fanning out.
	NumPeers int

	// CandidateTTL drops candidates that linger unpromoted.
	CandidateTTL time.Duration
	// TripPunishment is applied to sources that trip the firewall. Must be
	// longer than Firewall.TrafficWindow.
	TripPunishment time.Duration
	// ViolationPunishment is applied on malformed or semantically invalid
	// peer data.
	ViolationPunishment time.Duration
	// NoResponsePunishment is the short cool-down for peers that fail to
	// answer a heartbeat call.
	NoResponsePunishment time.Duration

	// OutgoingLimit bounds routine peer calls.
	OutgoingLimit client.Limit

	SyncClockInterval  time.Duration
	DiscoverInterval   time.Duration
	SyncBlocksInterval time.Duration
	GossipTxsInterval  time.Duration
	ReapInterval       time.Duration

	MempoolCapacity  int
	MempoolRetention time.Duration

	MaxBlocksPerRequest uint64
	// MaxBodySize caps inbound request bodies.
	MaxBodySize int64

	Firewall FirewallConfig
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		NumPeers: 8,

		CandidateTTL:         600 * time.Second,
		TripPunishment:       20 * time.Minute,
		ViolationPunishment:  10 * time.Minute,
		NoResponsePunishment: time.Minute,

		OutgoingLimit: client.DefaultPeerLimit(),

		SyncClockInterval:  60 * time.Second,
		DiscoverInterval:   2 * time.Minute,
		SyncBlocksInterval: 15 * time.Second,
		GossipTxsInterval:  30 * time.Second,
		ReapInterval:       5 * time.Minute,

		MempoolCapacity:  1000,
		MempoolRetention: time.Hour,

		MaxBlocksPerRequest: 64,
		MaxBodySize:         16 * client.MB,

		Firewall: FirewallConfig{
			MaxRequestsPerMinute: 60,
			TrafficBudget:        4 * client.GB,
			TrafficWindow:        15 * time.Minute,
		},
	}
}
