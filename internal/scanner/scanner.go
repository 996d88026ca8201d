package scanner

import (
	"main/internal/book"
	"main/internal/schema"
)

// PendingSource exposes the aggregate pending amount per position key.
// *book.Book satisfies it.
type PendingSource interface {
	Pending(key book.Key) schema.Amount
}

var _ PendingSource = (*book.Book)(nil)

// Match is the first unresolved order found in a traversed range.
type Match struct {
	Level     schema.Tick
	Direction schema.Direction
	Amount    schema.Amount
}

// FirstCrossing walks the aligned levels between previous and current and
// returns the first level with a nonzero pending order on the side that the
// price movement fills.
//
// An upward move fills orders selling the base asset: the base's price has
// risen to their target. A downward move fills the quote-selling side. Only
// the first match is returned; after the caller executes it, execution
// itself moves the price, so the caller rescans from the post-execution
// price instead of resuming this range. Orders that the shrunken range no
// longer covers are intentionally left behind.
//
// The walk starts at the aligned previous level (inclusive) and stops at
// the aligned current level (exclusive), stepping by spacing.
func FirstCrossing(src PendingSource, market schema.MarketID, previous, current schema.Tick, spacing schema.Tick) (Match, bool) {
	if spacing <= 0 {
		return Match{}, false
	}
	from := schema.ResolveTick(previous, spacing)
	to := schema.ResolveTick(current, spacing)

	switch {
	case from < to:
		for level := from; level < to; level += spacing {
			key := book.Key{Market: market, Level: level, Direction: schema.DirectionSellBase}
			if amount := src.Pending(key); amount > 0 {
				return Match{Level: level, Direction: schema.DirectionSellBase, Amount: amount}, true
			}
		}
	case from > to:
		for level := from; level > to; level -= spacing {
			key := book.Key{Market: market, Level: level, Direction: schema.DirectionSellQuote}
			if amount := src.Pending(key); amount > 0 {
				return Match{Level: level, Direction: schema.DirectionSellQuote, Amount: amount}, true
			}
		}
	}
	return Match{}, false
}
