package session

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	playsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guess_plays_total",
			Help: "Play attempts by outcome",
		},
		[]string{"outcome"},
	)
	readFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guess_contract_read_failures_total",
			Help: "Failed contract view calls",
		},
		[]string{"view"},
	)
	connectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guess_wallet_connects_total",
			Help: "Wallet handshakes by outcome",
		},
		[]string{"outcome"},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "guess_active_sessions",
			Help: "Sessions currently held by the registry",
		},
	)
)

func init() {
	prometheus.MustRegister(playsTotal)
	prometheus.MustRegister(readFailures)
	prometheus.MustRegister(connectsTotal)
	prometheus.MustRegister(activeSessions)
}
