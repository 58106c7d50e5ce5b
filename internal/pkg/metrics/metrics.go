// Package metrics registers the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// NetworkSwitchesTotal counts network switches by target provider type.
	NetworkSwitchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletnode_network_switches_total",
			Help: "Number of active-network switches, by provider type.",
		},
		[]string{"provider_type"},
	)

	// ProbeResultsTotal counts network probe outcomes by resulting status.
	ProbeResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletnode_network_probe_results_total",
			Help: "Number of completed network probes, by resulting status.",
		},
		[]string{"status"},
	)

	// RPCRequestsTotal counts JSON-RPC requests by method and outcome.
	RPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletnode_rpc_requests_total",
			Help: "Number of JSON-RPC requests issued, by method and outcome.",
		},
		[]string{"method", "outcome"},
	)

	// RPCRequestDuration observes JSON-RPC round-trip latency by method.
	RPCRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "walletnode_rpc_request_duration_seconds",
			Help:    "JSON-RPC round-trip latency, by method.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// ChainHeadBlock tracks the latest block number seen by the tracker.
	ChainHeadBlock = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "walletnode_chain_head_block",
			Help: "Latest block number observed by the active block tracker.",
		},
	)
)

// MustRegisterMetrics registers every collector with the default registry.
// It panics on duplicate registration, so call it once from main.
func MustRegisterMetrics() {
	prometheus.MustRegister(
		NetworkSwitchesTotal,
		ProbeResultsTotal,
		RPCRequestsTotal,
		RPCRequestDuration,
		ChainHeadBlock,
	)
}
