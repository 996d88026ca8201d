package obs

import (
	"sync/atomic"
	"time"
)

// Metrics collects lightweight counters and latency stats for the order
// engine.
type Metrics struct {
	ordersPlaced   uint64
	ordersCanceled uint64
	redeems        uint64
	fills          uint64
	cycles         uint64
	cycleAborts    uint64
	cycleDeferrals uint64
	selfTriggers   uint64
	sinkErrors     uint64

	cycleLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	OrdersPlaced   uint64
	OrdersCanceled uint64
	Redeems        uint64
	Fills          uint64
	Cycles         uint64
	CycleAborts    uint64
	CycleDeferrals uint64
	SelfTriggers   uint64
	SinkErrors     uint64
	CycleLatency   LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncOrderPlaced records an accepted order placement.
func (m *Metrics) IncOrderPlaced() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ordersPlaced, 1)
}

// IncOrderCanceled records an order cancellation.
func (m *Metrics) IncOrderCanceled() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ordersCanceled, 1)
}

// IncRedeem records a redemption.
func (m *Metrics) IncRedeem() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.redeems, 1)
}

// IncFill records one executed order fill.
func (m *Metrics) IncFill() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.fills, 1)
}

// IncCycle records a completed scan/execute cycle.
func (m *Metrics) IncCycle() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.cycles, 1)
}

// IncCycleAbort records a cycle rolled back after a collaborator failure.
func (m *Metrics) IncCycleAbort() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.cycleAborts, 1)
}

// IncCycleDeferral records a cycle that stopped at the fill bound with
// range left over.
func (m *Metrics) IncCycleDeferral() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.cycleDeferrals, 1)
}

// IncSelfTrigger records a suppressed self-initiated trade notice.
func (m *Metrics) IncSelfTrigger() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.selfTriggers, 1)
}

// IncSinkError records a failed journal append.
func (m *Metrics) IncSinkError() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.sinkErrors, 1)
}

// ObserveCycle measures the duration of one scan/execute cycle.
func (m *Metrics) ObserveCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.cycleLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		OrdersPlaced:   atomic.LoadUint64(&m.ordersPlaced),
		OrdersCanceled: atomic.LoadUint64(&m.ordersCanceled),
		Redeems:        atomic.LoadUint64(&m.redeems),
		Fills:          atomic.LoadUint64(&m.fills),
		Cycles:         atomic.LoadUint64(&m.cycles),
		CycleAborts:    atomic.LoadUint64(&m.cycleAborts),
		CycleDeferrals: atomic.LoadUint64(&m.cycleDeferrals),
		SelfTriggers:   atomic.LoadUint64(&m.selfTriggers),
		SinkErrors:     atomic.LoadUint64(&m.sinkErrors),
		CycleLatency:   m.cycleLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
