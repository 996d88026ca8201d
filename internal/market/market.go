package market

import (
	"errors"

	"main/internal/schema"
)

var (
	// ErrMarketFailure is returned when a trade cannot be executed:
	// unknown market, invalid parameters, or exhausted liquidity.
	ErrMarketFailure = errors.New("market failure")
	// ErrTransferFailure is returned when an account lacks the balance to
	// cover a transfer.
	ErrTransferFailure = errors.New("transfer failure")
)

// TradeResult reports the outcome of an executed trade.
type TradeResult struct {
	AmountOut schema.Amount
	NewTick   schema.Tick
	Fee       schema.Amount
}

// TradeNotice is the trade-completion notification delivered after every
// executed trade. Initiator carries the identity of whoever submitted the
// trade so listeners can recognize their own activity.
type TradeNotice struct {
	Market    schema.MarketID
	Initiator schema.AccountID
	Direction schema.Direction
	AmountIn  schema.Amount
	NewTick   schema.Tick
}

// Market is the external trading venue. It executes trades and reports the
// resulting price; custody of assets changes hands only inside
// ExecuteTrade.
type Market interface {
	CurrentPrice(market schema.MarketID) (schema.Tick, error)
	ExecuteTrade(market schema.MarketID, initiator schema.AccountID, direction schema.Direction, amountIn schema.Amount) (TradeResult, error)
}

// AssetTransfer moves assets between user accounts and the engine's
// custody account.
type AssetTransfer interface {
	TransferIn(asset schema.AssetID, from schema.AccountID, amount schema.Amount) error
	TransferOut(asset schema.AssetID, to schema.AccountID, amount schema.Amount) error
}

// Rollbacker is implemented by collaborators whose state a fill really
// mutates: balances and reserves, not just the engine's own aggregates.
// The engine snapshots every collaborator exposing it before the first
// fill of a cycle and runs the restores when the cycle aborts, so the
// abort stays all-or-nothing across the custody boundary.
type Rollbacker interface {
	SnapshotState() (restore func())
}
