package schema

// SchemaVersion is the current event schema version.
const SchemaVersion uint16 = 1

// EventType defines the category of an event written to the journal.
type EventType uint16

const (
	EventUnknown EventType = iota
	EventOrderPlaced
	EventOrderCanceled
	EventFill
	EventRedeem
)

// EventHeader is the common metadata attached to every event.
type EventHeader struct {
	Type    EventType
	Version uint16
	Source  uint16
	Flags   uint16
	Seq     uint64
	TsEvent int64
	TsRecv  int64
	TraceID uint64
}

// NewHeader builds a header with the current schema version.
func NewHeader(eventType EventType, source uint16, seq uint64, tsEvent, tsRecv int64) EventHeader {
	return EventHeader{
		Type:    eventType,
		Version: SchemaVersion,
		Source:  source,
		Seq:     seq,
		TsEvent: tsEvent,
		TsRecv:  tsRecv,
	}
}

// MarketID is the numeric identifier for a tracked market.
type MarketID uint32

// AssetID is the numeric identifier for an asset.
type AssetID uint32

// AccountID identifies an account holding assets or claim shares.
type AccountID uint64

// Amount is an asset quantity in base units. Never negative in stored state.
type Amount int64

// Tick is a discretized price coordinate. Stored order keys are always a
// multiple of the market's tick spacing; the tracked last-observed tick is
// the raw post-scan value and need not be aligned.
type Tick int32

// Direction says which of the two assets in a market an order sells.
type Direction uint8

const (
	DirectionUnknown Direction = iota
	DirectionSellBase
	DirectionSellQuote
)

// IsValid reports whether the direction is one of the two tradable sides.
func (d Direction) IsValid() bool {
	return d == DirectionSellBase || d == DirectionSellQuote
}

// Opposite returns the other side of the market.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionSellBase:
		return DirectionSellQuote
	case DirectionSellQuote:
		return DirectionSellBase
	default:
		return DirectionUnknown
	}
}

func (d Direction) String() string {
	switch d {
	case DirectionSellBase:
		return "sellBase"
	case DirectionSellQuote:
		return "sellQuote"
	default:
		return "unknown"
	}
}

// OrderEvent is the payload for EventOrderPlaced and EventOrderCanceled.
type OrderEvent struct {
	Market    MarketID
	Level     Tick
	Direction Direction
	Owner     AccountID
	Amount    Amount
}

// FillEvent is the payload for EventFill.
type FillEvent struct {
	Market    MarketID
	Level     Tick
	Direction Direction
	AmountIn  Amount
	AmountOut Amount
	NewTick   Tick
}

// RedeemEvent is the payload for EventRedeem.
type RedeemEvent struct {
	Market    MarketID
	Level     Tick
	Direction Direction
	Owner     AccountID
	Share     Amount
	Output    Amount
}
