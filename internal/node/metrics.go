package node

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	firewallRejects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bazuka",
		Subsystem: "firewall",
		Name:      "rejects_total",
		Help:      "Requests rejected by the firewall, by reason.",
	}, []string{"reason"})

	rpcServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bazuka",
		Subsystem: "rpc",
		Name:      "served_total",
		Help:      "Inbound RPCs dispatched, by path and outcome.",
	}, []string{"path", "outcome"})

	heartbeatFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bazuka",
		Subsystem: "heartbeat",
		Name:      "failures_total",
		Help:      "Heartbeat task failures, by task.",
	}, []string{"task"})

	punishmentsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bazuka",
		Subsystem: "peers",
		Name:      "punishments_total",
		Help:      "IP punishments issued.",
	})
)
