// Package metrics exposes Prometheus instrumentation for the exchange and
// dispute machines hosted by the ledger.
package metrics

import (
	"math/big"
	"net/http"
	"sync"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/optiswap/optiswap/core/types"
)

// Machine labels.
const (
	MachineExchange = "exchange"
	MachineDispute  = "dispute"
	MachineLedger   = "ledger"
)

// ProtocolMetrics holds all Prometheus metrics for the protocol core.
type ProtocolMetrics struct {
	Transitions     *prometheus.CounterVec
	Rejections      *prometheus.CounterVec
	DisputeRounds   prometheus.Histogram
	DisputeOutcomes *prometheus.CounterVec
	EscrowLocked    prometheus.Gauge
}

var (
	protocolMetricsOnce sync.Once
	protocolMetrics     *ProtocolMetrics
)

// NewProtocolMetrics creates and registers the protocol metrics (singleton pattern).
func NewProtocolMetrics() *ProtocolMetrics {
	protocolMetricsOnce.Do(func() {
		protocolMetrics = &ProtocolMetrics{
			Transitions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "optiswap",
					Name:      "transitions_total",
					Help:      "Accepted state transitions by machine and operation",
				},
				[]string{"machine", "op"},
			),
			Rejections: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "optiswap",
					Name:      "rejections_total",
					Help:      "Rejected calls by machine and taxonomy reason",
				},
				[]string{"machine", "reason"},
			),
			DisputeRounds: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: "optiswap",
					Subsystem: "dispute",
					Name:      "rounds",
					Help:      "Bisection rounds played before a dispute ended",
					Buckets:   prometheus.LinearBuckets(0, 2, 16),
				},
			),
			DisputeOutcomes: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "optiswap",
					Subsystem: "dispute",
					Name:      "outcomes_total",
					Help:      "Finished disputes by outcome and reason",
				},
				[]string{"outcome", "reason"},
			),
			EscrowLocked: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: "optiswap",
					Name:      "escrow_locked",
					Help:      "Funds currently held by unsettled exchanges and disputes",
				},
			),
		}
	})
	return protocolMetrics
}

// Transition records an accepted operation.
func (m *ProtocolMetrics) Transition(machine, op string) {
	m.Transitions.WithLabelValues(machine, op).Inc()
}

// Rejection records a rejected operation under its taxonomy reason.
func (m *ProtocolMetrics) Rejection(machine string, err error) {
	m.Rejections.WithLabelValues(machine, types.Reason(err)).Inc()
}

// DisputeEnded records a finished dispute.
func (m *ProtocolMetrics) DisputeEnded(outcome, reason string, rounds int) {
	m.DisputeOutcomes.WithLabelValues(outcome, reason).Inc()
	m.DisputeRounds.Observe(float64(rounds))
}

// SetEscrow updates the locked-funds gauge.
func (m *ProtocolMetrics) SetEscrow(amount *uint256.Int) {
	if amount == nil {
		m.EscrowLocked.Set(0)
		return
	}
	f, _ := new(big.Float).SetInt(amount.ToBig()).Float64()
	m.EscrowLocked.Set(f)
}

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
