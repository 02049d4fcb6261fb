package node

import (
	"net/netip"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"
)

// Firewall enforces per-source request-rate and byte-budget caps on inbound
// traffic. It is consulted before any work is queued for a request, so it
// carries its own lock instead of living under the context lock.
type Firewall struct {
	mu      sync.Mutex
	clk     clock.Clock
	conf    FirewallConfig
	sources map[netip.Addr]*sourceState
}

type sourceState struct {
	limiter     *rate.Limiter
	windowStart time.Time
	windowBytes int64
	lastSeen    time.Time
}

func NewFirewall(conf FirewallConfig, clk clock.Clock) *Firewall {
	return &Firewall{
		clk:     clk,
		conf:    conf,
		sources: make(map[netip.Addr]*sourceState),
	}
}

// Allow admits or rejects a request of requestSize bytes from ip. A rejected
// request must not be enqueued; callers are expected to punish the source.
func (f *Firewall) Allow(ip netip.Addr, requestSize int64) bool {
	ip = ip.Unmap()
	now := f.clk.Now()

	f.mu.Lock()
	defer f.mu.Unlock()

	src, ok := f.sources[ip]
	if !ok {
		perMinute := f.conf.MaxRequestsPerMinute
		src = &sourceState{
			limiter:     rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
			windowStart: now,
		}
		f.sources[ip] = src
	}
	src.lastSeen = now

	if !src.limiter.AllowN(now, 1) {
		firewallRejects.WithLabelValues("rate").Inc()
		return false
	}

	if now.Sub(src.windowStart) >= f.conf.TrafficWindow {
		src.windowStart = now
		src.windowBytes = 0
	}
	src.windowBytes += requestSize
	if src.windowBytes > f.conf.TrafficBudget {
		firewallRejects.WithLabelValues("traffic").Inc()
		return false
	}
	return true
}

// Refresh drops counters for sources that have been quiet for a full
// traffic window, bounding the map.
func (f *Firewall) Refresh() {
	now := f.clk.Now()
	f.mu.Lock()
	defer f.mu.Unlock()
	for ip, src := range f.sources {
		if now.Sub(src.lastSeen) >= f.conf.TrafficWindow {
			delete(f.sources, ip)
		}
	}
}
