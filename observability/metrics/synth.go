package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// SynthMetrics bundles the collectors for the debt, share and fee-pool
// engines.
type SynthMetrics struct {
	cachedDebt     prometheus.Gauge
	shareSupply    prometheus.Gauge
	snapshotsTaken prometheus.Counter
	breakerTrips   prometheus.Counter
	periodsClosed  prometheus.Counter
	claimsPaid     prometheus.Counter
	feesClaimed    prometheus.Counter
}

var (
	synthOnce     sync.Once
	synthRegistry *SynthMetrics
)

// Synth returns the process-wide collector set, registering it on first use.
func Synth() *SynthMetrics {
	synthOnce.Do(func() {
		synthRegistry = &SynthMetrics{
			cachedDebt: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "synth_cached_debt",
				Help: "Cached total system debt in reference units.",
			}),
			shareSupply: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "synth_share_supply",
				Help: "Total outstanding debt shares.",
			}),
			snapshotsTaken: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "synth_debt_snapshots_total",
				Help: "Count of full debt snapshot recomputations.",
			}),
			breakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "synth_breaker_trips_total",
				Help: "Count of circuit breaker activations.",
			}),
			periodsClosed: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "synth_fee_periods_closed_total",
				Help: "Count of fee period rollovers.",
			}),
			claimsPaid: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "synth_claims_total",
				Help: "Count of successful fee claims.",
			}),
			feesClaimed: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "synth_fees_claimed_units_total",
				Help: "Cumulative claimed fees in reference units.",
			}),
		}
		prometheus.MustRegister(
			synthRegistry.cachedDebt,
			synthRegistry.shareSupply,
			synthRegistry.snapshotsTaken,
			synthRegistry.breakerTrips,
			synthRegistry.periodsClosed,
			synthRegistry.claimsPaid,
			synthRegistry.feesClaimed,
		)
	})
	return synthRegistry
}

// SetCachedDebt records the cached debt total after an incremental update.
func (m *SynthMetrics) SetCachedDebt(total *big.Int) {
	if m == nil {
		return
	}
	m.cachedDebt.Set(bigFloat(total))
}

// RecordSnapshot counts a full recomputation and records the fresh total.
func (m *SynthMetrics) RecordSnapshot(total *big.Int) {
	if m == nil {
		return
	}
	m.snapshotsTaken.Inc()
	m.cachedDebt.Set(bigFloat(total))
}

// SetShareSupply records the outstanding share supply.
func (m *SynthMetrics) SetShareSupply(supply *big.Int) {
	if m == nil {
		return
	}
	m.shareSupply.Set(bigFloat(supply))
}

// RecordBreakerTrip counts a circuit breaker activation.
func (m *SynthMetrics) RecordBreakerTrip() {
	if m == nil {
		return
	}
	m.breakerTrips.Inc()
}

// RecordPeriodClose counts a fee period rollover.
func (m *SynthMetrics) RecordPeriodClose() {
	if m == nil {
		return
	}
	m.periodsClosed.Inc()
}

// RecordClaim counts a paid claim and its fee volume.
func (m *SynthMetrics) RecordClaim(fees *big.Int) {
	if m == nil {
		return
	}
	m.claimsPaid.Inc()
	m.feesClaimed.Add(bigFloat(fees))
}

func bigFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
