package obs

import (
	"sync/atomic"
	"time"
)

// TraceGenerator hands out monotonically increasing trace IDs for journal
// events. IDs from different runs never collide because the default seed is
// the start time in nanoseconds.
type TraceGenerator struct {
	next uint64
}

// NewTraceGenerator returns a generator seeded with the given value. A zero
// seed picks the current time.
func NewTraceGenerator(seed uint64) *TraceGenerator {
	if seed == 0 {
		seed = uint64(time.Now().UTC().UnixNano())
	}
	return &TraceGenerator{next: seed}
}

// Next returns the next trace ID. Safe for concurrent use.
func (g *TraceGenerator) Next() uint64 {
	if g == nil {
		return 0
	}
	return atomic.AddUint64(&g.next, 1)
}
