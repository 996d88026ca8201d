package market

import (
	"fmt"

	"github.com/yanun0323/logs"

	"main/internal/errors"
	"main/internal/fees"
	"main/internal/points"
	"main/internal/schema"
)

// NotifyFunc receives a trade-completion notice synchronously, inside the
// trade that produced it. The execution engine's trigger callback is wired
// here, which is what makes its own fills re-enter it mid-cycle.
type NotifyFunc func(TradeNotice) error

type pool struct {
	spec    schema.MarketSpec
	base    schema.Amount
	quote   schema.Amount
	tickMul schema.Amount
}

// Venue is a constant-product paper market over the in-memory asset
// ledger. It stands in for the real exchange in the command and the tests.
type Venue struct {
	ledger  *Ledger
	account schema.AccountID
	pools   map[schema.MarketID]*pool
	fees    *fees.Tracker
	points  *points.Issuer
	cost    func() int64
	notify  NotifyFunc
}

var (
	_ Market     = (*Venue)(nil)
	_ Rollbacker = (*Venue)(nil)
)

// VenueOption configures optional venue collaborators.
type VenueOption func(*Venue)

// WithFees attaches a dynamic fee tracker fed by the cost sampler.
func WithFees(tracker *fees.Tracker, cost func() int64) VenueOption {
	return func(v *Venue) {
		v.fees = tracker
		v.cost = cost
	}
}

// WithPoints attaches a loyalty points issuer.
func WithPoints(issuer *points.Issuer) VenueOption {
	return func(v *Venue) {
		v.points = issuer
	}
}

// NewVenue creates a venue holding reserves in the given ledger account.
func NewVenue(ledger *Ledger, account schema.AccountID, opts ...VenueOption) *Venue {
	v := &Venue{
		ledger:  ledger,
		account: account,
		pools:   make(map[schema.MarketID]*pool),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// SetNotify registers the trade-completion listener. A single listener is
// enough: the engine is the only consumer and everything runs serialized.
func (v *Venue) SetNotify(notify NotifyFunc) {
	v.notify = notify
}

// AddPool seeds a market with initial reserves, minting them into the
// venue account.
func (v *Venue) AddPool(spec schema.MarketSpec, baseReserve, quoteReserve schema.Amount) error {
	if _, ok := v.pools[spec.ID]; ok {
		return errors.Wrap(ErrMarketFailure, fmt.Sprintf("pool exists: %d", spec.ID))
	}
	if baseReserve <= 0 || quoteReserve <= 0 {
		return errors.Wrap(ErrMarketFailure, "reserves must be positive")
	}
	mul := schema.Amount(1)
	for i := schema.Scale(0); i < spec.PriceScale; i++ {
		mul *= 10
	}
	v.pools[spec.ID] = &pool{
		spec:    spec,
		base:    baseReserve,
		quote:   quoteReserve,
		tickMul: mul,
	}
	v.ledger.Mint(spec.Base, v.account, baseReserve)
	v.ledger.Mint(spec.Quote, v.account, quoteReserve)
	return nil
}

// CurrentPrice derives the tick from the reserve ratio.
func (v *Venue) CurrentPrice(market schema.MarketID) (schema.Tick, error) {
	p, ok := v.pools[market]
	if !ok {
		return 0, errors.Wrap(ErrMarketFailure, fmt.Sprintf("unknown market: %d", market))
	}
	return p.tick(), nil
}

// ExecuteTrade swaps amountIn against the pool, moves custody through the
// ledger, and delivers the trade-completion notice before returning.
func (v *Venue) ExecuteTrade(market schema.MarketID, initiator schema.AccountID, direction schema.Direction, amountIn schema.Amount) (TradeResult, error) {
	p, ok := v.pools[market]
	if !ok {
		return TradeResult{}, errors.Wrap(ErrMarketFailure, fmt.Sprintf("unknown market: %d", market))
	}
	if amountIn <= 0 || !direction.IsValid() {
		return TradeResult{}, errors.Wrap(ErrMarketFailure, "invalid trade parameters")
	}

	feeBps := schema.Amount(0)
	var sample int64
	if v.fees != nil {
		if v.cost != nil {
			sample = v.cost()
		}
		feeBps = v.fees.Quote(market, sample)
	}
	fee, ok := schema.MulDiv(amountIn, feeBps, 10000)
	if !ok {
		return TradeResult{}, errors.Wrap(ErrMarketFailure, "fee overflow")
	}
	effectiveIn := amountIn - fee
	if effectiveIn <= 0 {
		return TradeResult{}, errors.Wrap(ErrMarketFailure, "trade too small for fee")
	}

	var reserveIn, reserveOut schema.Amount
	if direction == schema.DirectionSellBase {
		reserveIn, reserveOut = p.base, p.quote
	} else {
		reserveIn, reserveOut = p.quote, p.base
	}
	amountOut, ok := schema.MulDiv(reserveOut, effectiveIn, reserveIn+effectiveIn)
	if !ok {
		return TradeResult{}, errors.Wrap(ErrMarketFailure, "swap overflow")
	}
	if amountOut <= 0 || amountOut >= reserveOut {
		return TradeResult{}, errors.Wrap(ErrMarketFailure, "insufficient liquidity")
	}

	assetIn := p.spec.InputAsset(direction)
	assetOut := p.spec.OutputAsset(direction)
	if err := v.ledger.Transfer(assetIn, initiator, v.account, amountIn); err != nil {
		return TradeResult{}, errors.Wrap(err, "collect trade input")
	}
	if err := v.ledger.Transfer(assetOut, v.account, initiator, amountOut); err != nil {
		return TradeResult{}, errors.Wrap(err, "pay trade output")
	}

	// The whole amountIn enters the pool: the fee portion stays with the
	// liquidity as in a swap-fee venue.
	if direction == schema.DirectionSellBase {
		p.base += amountIn
		p.quote -= amountOut
	} else {
		p.quote += amountIn
		p.base -= amountOut
	}
	if v.fees != nil {
		v.fees.Update(market, sample)
	}

	newTick := p.tick()
	result := TradeResult{AmountOut: amountOut, NewTick: newTick, Fee: fee}
	logs.Infof("trade market=%d initiator=%d dir=%s in=%d out=%d fee=%d tick=%d",
		market, initiator, direction, amountIn, amountOut, fee, newTick)

	if v.notify != nil {
		notice := TradeNotice{
			Market:    market,
			Initiator: initiator,
			Direction: direction,
			AmountIn:  amountIn,
			NewTick:   newTick,
		}
		if err := v.notify(notice); err != nil {
			return TradeResult{}, errors.Wrap(err, "trade notification")
		}
	}
	return result, nil
}

// Swap executes a user trade, optionally minting loyalty points for the
// spent amount.
func (v *Venue) Swap(market schema.MarketID, trader schema.AccountID, direction schema.Direction, amountIn schema.Amount, pointsTo *schema.AccountID) (TradeResult, error) {
	result, err := v.ExecuteTrade(market, trader, direction, amountIn)
	if err != nil {
		return TradeResult{}, err
	}
	if v.points != nil {
		v.points.Award(pointsTo, amountIn)
	}
	return result, nil
}

// SnapshotState captures pool reserves and every ledger balance; the
// returned restore rewinds both, undoing any trades executed in between.
// Fee-tracker averages are advisory and are not rewound.
func (v *Venue) SnapshotState() func() {
	reserves := make(map[schema.MarketID][2]schema.Amount, len(v.pools))
	for id, p := range v.pools {
		reserves[id] = [2]schema.Amount{p.base, p.quote}
	}
	ledgerSnap := v.ledger.Snapshot()
	return func() {
		for id, r := range reserves {
			if p, ok := v.pools[id]; ok {
				p.base, p.quote = r[0], r[1]
			}
		}
		v.ledger.Restore(ledgerSnap)
	}
}

// Reserves returns the current pool reserves, mostly for tests.
func (v *Venue) Reserves(market schema.MarketID) (base, quote schema.Amount, ok bool) {
	p, found := v.pools[market]
	if !found {
		return 0, 0, false
	}
	return p.base, p.quote, true
}

func (p *pool) tick() schema.Tick {
	t, ok := schema.MulDiv(p.quote, p.tickMul, p.base)
	if !ok {
		return 0
	}
	return schema.Tick(t)
}
