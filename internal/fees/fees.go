package fees

import "main/internal/schema"

// Tracker keeps a running average of a per-trade cost sample for each
// market and quotes a fee adjusted against it. Integer division throughout;
// the average converges in the same truncating steps the update formula
// prescribes.
type Tracker struct {
	base    schema.Amount
	avgs    map[schema.MarketID]int64
	counts  map[schema.MarketID]int64
}

// NewTracker creates a tracker with the given base fee.
func NewTracker(base schema.Amount) *Tracker {
	return &Tracker{
		base:   base,
		avgs:   make(map[schema.MarketID]int64),
		counts: make(map[schema.MarketID]int64),
	}
}

// Update folds a new sample into the running average:
// newAvg = (oldAvg*count + sample) / (count+1).
func (t *Tracker) Update(market schema.MarketID, sample int64) {
	if sample < 0 {
		return
	}
	count := t.counts[market]
	t.avgs[market] = (t.avgs[market]*count + sample) / (count + 1)
	t.counts[market] = count + 1
}

// Average returns the current running average for a market.
func (t *Tracker) Average(market schema.MarketID) int64 {
	return t.avgs[market]
}

// Quote returns the fee for a trade given the current sample: half the base
// when the sample exceeds 110% of the average, double below 90%, otherwise
// the base fee. Before any sample is recorded the base fee applies.
func (t *Tracker) Quote(market schema.MarketID, sample int64) schema.Amount {
	count := t.counts[market]
	if count == 0 {
		return t.base
	}
	avg := t.avgs[market]
	if sample*10 > avg*11 {
		return t.base / 2
	}
	if sample*10 < avg*9 {
		return t.base * 2
	}
	return t.base
}
