package engine

import (
	"fmt"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/book"
	"main/internal/claims"
	"main/internal/codec"
	"main/internal/errors"
	"main/internal/market"
	"main/internal/obs"
	"main/internal/scanner"
	"main/internal/schema"
)

// SourceEngine tags journal events emitted by the engine.
const SourceEngine uint16 = 1

// DefaultMaxFillsPerCycle bounds how many orders one trigger may fill.
// Without a bound a single trigger could sweep an unbounded range; the
// remainder of the range is deferred to the next trigger instead.
const DefaultMaxFillsPerCycle = 16

// EventSink receives the engine's journal events. *journal.Writer
// satisfies it.
type EventSink interface {
	Record(header schema.EventHeader, payload []byte) error
}

// Config holds engine tuning.
type Config struct {
	MaxFillsPerCycle int
}

func (c Config) withDefaults() Config {
	if c.MaxFillsPerCycle == 0 {
		c.MaxFillsPerCycle = DefaultMaxFillsPerCycle
	}
	return c
}

type marketState struct {
	spec     schema.MarketSpec
	lastTick schema.Tick
}

// Engine is the take-profit order engine. It custodies deposited input
// assets, tracks pending orders per price level, fills them when trades
// move the market price across their level, and accounts proceeds to claim
// shares.
//
// The engine runs fully serialized: one triggering call completes before
// the next is observed, so no locking happens here. Reentrant trade
// notices caused by the engine's own fills are recognized by initiator
// identity and ignored.
type Engine struct {
	cfg     Config
	mkt     market.Market
	assets  market.AssetTransfer
	custody schema.AccountID

	book    *book.Book
	claims  *claims.Ledger
	markets map[schema.MarketID]*marketState

	rollbackers []market.Rollbacker

	metrics *obs.Metrics
	trace   *obs.TraceGenerator
	sink    EventSink
	seq     uint64
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithMetrics attaches a metrics container.
func WithMetrics(metrics *obs.Metrics) Option {
	return func(e *Engine) { e.metrics = metrics }
}

// WithSink attaches a journal event sink.
func WithSink(sink EventSink) Option {
	return func(e *Engine) { e.sink = sink }
}

// New creates an engine custodying assets under the given account.
func New(cfg Config, mkt market.Market, assets market.AssetTransfer, custody schema.AccountID, opts ...Option) *Engine {
	e := &Engine{
		cfg:     cfg.withDefaults(),
		mkt:     mkt,
		assets:  assets,
		custody: custody,
		book:    book.New(),
		claims:  claims.New(),
		markets: make(map[schema.MarketID]*marketState),
		trace:   obs.NewTraceGenerator(0),
	}
	for _, opt := range opts {
		opt(e)
	}
	// Collaborators holding real balances extend the cycle rollback
	// through the custody boundary.
	if r, ok := mkt.(market.Rollbacker); ok {
		e.rollbackers = append(e.rollbackers, r)
	}
	if r, ok := assets.(market.Rollbacker); ok {
		e.rollbackers = append(e.rollbackers, r)
	}
	return e
}

// Custodian returns the engine's custody account identity, the initiator
// recorded on every trade the engine executes.
func (e *Engine) Custodian() schema.AccountID {
	return e.custody
}

// TrackMarket registers a market and records its current price as the
// initial last-observed tick.
func (e *Engine) TrackMarket(spec schema.MarketSpec) error {
	if _, ok := e.markets[spec.ID]; ok {
		return errors.New(fmt.Sprintf("market already tracked: %d", spec.ID))
	}
	if spec.TickSpacing <= 0 {
		return errors.Wrap(book.ErrInvalidOrder, "tick spacing must be > 0")
	}
	tick, err := e.mkt.CurrentPrice(spec.ID)
	if err != nil {
		return errors.Wrap(err, "read initial price")
	}
	e.markets[spec.ID] = &marketState{spec: spec, lastTick: tick}
	return nil
}

// LastObservedTick returns the tick recorded after the last finished scan.
func (e *Engine) LastObservedTick(marketID schema.MarketID) (schema.Tick, bool) {
	st, ok := e.markets[marketID]
	if !ok {
		return 0, false
	}
	return st.lastTick, true
}

// PositionID resolves the raw tick to its spacing-aligned level and
// derives the position identifier for the key. Pure lookup, callable by
// anyone.
func (e *Engine) PositionID(marketID schema.MarketID, rawTick schema.Tick, direction schema.Direction) (schema.PositionID, schema.Tick, error) {
	st, ok := e.markets[marketID]
	if !ok {
		return schema.PositionID{}, 0, errors.Wrap(book.ErrInvalidOrder, "unknown market")
	}
	if !direction.IsValid() {
		return schema.PositionID{}, 0, errors.Wrap(book.ErrInvalidOrder, "unknown direction")
	}
	level := schema.ResolveTick(rawTick, st.spec.TickSpacing)
	return schema.NewPositionID(marketID, level, direction), level, nil
}

// PlaceOrder deposits amount of the sold asset and records a pending order
// at the resolved price level. Returns the level the order actually rests
// at, since the requested tick may not have been spacing-aligned.
func (e *Engine) PlaceOrder(owner schema.AccountID, marketID schema.MarketID, targetTick schema.Tick, direction schema.Direction, amount schema.Amount) (schema.Tick, error) {
	st, ok := e.markets[marketID]
	if !ok {
		return 0, errors.Wrap(book.ErrInvalidOrder, "unknown market")
	}
	if amount <= 0 || !direction.IsValid() {
		return 0, errors.Wrap(book.ErrInvalidOrder, "invalid placement")
	}
	level := schema.ResolveTick(targetTick, st.spec.TickSpacing)
	key := book.Key{Market: marketID, Level: level, Direction: direction}
	position := schema.NewPositionID(marketID, level, direction)

	if err := e.assets.TransferIn(st.spec.InputAsset(direction), owner, amount); err != nil {
		return 0, errors.Wrap(err, "deposit order input")
	}
	if err := e.book.Add(key, amount); err != nil {
		// Unreachable after validation; refund to keep the op atomic.
		_ = e.assets.TransferOut(st.spec.InputAsset(direction), owner, amount)
		return 0, err
	}
	if err := e.claims.Mint(position, owner, amount); err != nil {
		_ = e.book.Reduce(key, amount)
		_ = e.assets.TransferOut(st.spec.InputAsset(direction), owner, amount)
		return 0, err
	}

	e.metrics.IncOrderPlaced()
	e.emit(schema.EventOrderPlaced, codec.EncodeOrder(nil, schema.OrderEvent{
		Market:    marketID,
		Level:     level,
		Direction: direction,
		Owner:     owner,
		Amount:    amount,
	}))
	logs.Infof("order placed market=%d level=%d dir=%s owner=%d amount=%d position=%s",
		marketID, level, direction, owner, amount, position.Short())
	return level, nil
}

// CancelOrder withdraws amount from the caller's pending order and returns
// the original input asset.
func (e *Engine) CancelOrder(owner schema.AccountID, marketID schema.MarketID, rawTick schema.Tick, direction schema.Direction, amount schema.Amount) error {
	st, ok := e.markets[marketID]
	if !ok {
		return errors.Wrap(book.ErrInvalidOrder, "unknown market")
	}
	if amount <= 0 || !direction.IsValid() {
		return errors.Wrap(book.ErrInvalidOrder, "invalid cancellation")
	}
	level := schema.ResolveTick(rawTick, st.spec.TickSpacing)
	key := book.Key{Market: marketID, Level: level, Direction: direction}
	position := schema.NewPositionID(marketID, level, direction)

	if e.claims.ShareOf(position, owner) < amount {
		return claims.ErrInsufficientShare
	}
	// Should be unreachable given the share invariant, but checked so a
	// broken book can never be driven negative.
	if e.book.Pending(key) < amount {
		return book.ErrInvalidOrder
	}

	if err := e.claims.Burn(position, owner, amount); err != nil {
		return err
	}
	if err := e.book.Reduce(key, amount); err != nil {
		_ = e.claims.Mint(position, owner, amount)
		return err
	}
	if err := e.assets.TransferOut(st.spec.InputAsset(direction), owner, amount); err != nil {
		_ = e.book.Add(key, amount)
		_ = e.claims.Mint(position, owner, amount)
		return errors.Wrap(err, "refund canceled order")
	}

	e.metrics.IncOrderCanceled()
	e.emit(schema.EventOrderCanceled, codec.EncodeOrder(nil, schema.OrderEvent{
		Market:    marketID,
		Level:     level,
		Direction: direction,
		Owner:     owner,
		Amount:    amount,
	}))
	return nil
}

// Redeem burns shareAmount of the caller's claim shares and pays out the
// proportional slice of the position's filled output.
func (e *Engine) Redeem(owner schema.AccountID, marketID schema.MarketID, rawTick schema.Tick, direction schema.Direction, shareAmount schema.Amount) (schema.Amount, error) {
	st, ok := e.markets[marketID]
	if !ok {
		return 0, errors.Wrap(book.ErrInvalidOrder, "unknown market")
	}
	if !direction.IsValid() {
		return 0, errors.Wrap(book.ErrInvalidOrder, "unknown direction")
	}
	level := schema.ResolveTick(rawTick, st.spec.TickSpacing)
	position := schema.NewPositionID(marketID, level, direction)

	snap := e.claims.Snapshot()
	output, err := e.claims.Redeem(position, owner, shareAmount)
	if err != nil {
		return 0, err
	}
	if output > 0 {
		if err := e.assets.TransferOut(st.spec.OutputAsset(direction), owner, output); err != nil {
			e.claims.Restore(snap)
			return 0, errors.Wrap(err, "pay redemption")
		}
	}

	e.metrics.IncRedeem()
	e.emit(schema.EventRedeem, codec.EncodeRedeem(nil, schema.RedeemEvent{
		Market:    marketID,
		Level:     level,
		Direction: direction,
		Owner:     owner,
		Share:     shareAmount,
		Output:    output,
	}))
	logs.Infof("redeemed market=%d position=%s owner=%d share=%d output=%d",
		marketID, position.Short(), owner, shareAmount, output)
	return output, nil
}

// OnTrade is the trade-completion trigger. Notices for untracked markets
// are ignored; notices initiated by the engine itself are suppressed so a
// fill cannot recursively retrigger the cycle it came from.
func (e *Engine) OnTrade(notice market.TradeNotice) error {
	st, ok := e.markets[notice.Market]
	if !ok {
		return nil
	}
	if notice.Initiator == e.custody {
		e.metrics.IncSelfTrigger()
		return nil
	}
	return e.runCycle(st, notice.NewTick)
}

// runCycle repeatedly scans the range between the stored last-observed
// tick and the market's current tick, filling the first matched order each
// pass. The reference point stays the stored tick for the whole cycle;
// only the current side refreshes after each execution. A fill moves the
// price against the original swing, so the range shrinks, and an order the
// shrunken range no longer covers stays pending. The whole cycle commits
// or none of it does: the rollback armed before the first fill spans the
// book, the claims, and every collaborator exposing its state.
func (e *Engine) runCycle(st *marketState, currentTick schema.Tick) error {
	started := time.Now()
	marketID := st.spec.ID
	previous := st.lastTick
	current := currentTick

	var rollback func()

	fills := 0
	deferred := false
	for {
		match, ok := scanner.FirstCrossing(e.book, marketID, previous, current, st.spec.TickSpacing)
		if !ok {
			break
		}
		if fills >= e.cfg.MaxFillsPerCycle {
			// Leave the last-observed tick untouched so the next
			// trigger rescans the remainder of this range.
			deferred = true
			e.metrics.IncCycleDeferral()
			logs.Infof("cycle deferred market=%d after %d fills", marketID, fills)
			break
		}

		if rollback == nil {
			rollback = e.armRollback()
		}

		key := book.Key{Market: marketID, Level: match.Level, Direction: match.Direction}
		result, err := e.mkt.ExecuteTrade(marketID, e.custody, match.Direction, match.Amount)
		if err != nil {
			return e.abortCycle(rollback, err, "execute matched order")
		}
		if err := e.book.Reduce(key, match.Amount); err != nil {
			return e.abortCycle(rollback, err, "settle matched order")
		}
		position := schema.NewPositionID(marketID, match.Level, match.Direction)
		if err := e.claims.Credit(position, result.AmountOut); err != nil {
			return e.abortCycle(rollback, err, "credit fill proceeds")
		}

		fills++
		e.metrics.IncFill()
		e.emit(schema.EventFill, codec.EncodeFill(nil, schema.FillEvent{
			Market:    marketID,
			Level:     match.Level,
			Direction: match.Direction,
			AmountIn:  match.Amount,
			AmountOut: result.AmountOut,
			NewTick:   result.NewTick,
		}))
		logs.Infof("order filled market=%d level=%d dir=%s in=%d out=%d tick=%d",
			marketID, match.Level, match.Direction, match.Amount, result.AmountOut, result.NewTick)

		// Execution moved the price. Rescan the whole range against
		// the fresh post-execution price.
		current, err = e.mkt.CurrentPrice(marketID)
		if err != nil {
			return e.abortCycle(rollback, err, "read post-execution price")
		}
	}

	if !deferred {
		st.lastTick = current
	}
	e.metrics.IncCycle()
	e.metrics.ObserveCycle(time.Since(started))
	return nil
}

// armRollback captures the engine aggregates plus every rollback-capable
// collaborator and returns a restore covering all of them. A restored
// cycle leaves the last-observed tick untouched, so the next trigger
// rescans the same range.
func (e *Engine) armRollback() func() {
	bookSnap := e.book.Snapshot()
	claimSnap := e.claims.Snapshot()
	restores := make([]func(), 0, len(e.rollbackers))
	for _, r := range e.rollbackers {
		restores = append(restores, r.SnapshotState())
	}
	return func() {
		e.book.Restore(bookSnap)
		e.claims.Restore(claimSnap)
		for _, restore := range restores {
			restore()
		}
	}
}

func (e *Engine) abortCycle(rollback func(), err error, text string) error {
	rollback()
	e.metrics.IncCycleAbort()
	return errors.Wrap(err, text)
}

// Book exposes the order book for state snapshots and recovery.
func (e *Engine) Book() *book.Book {
	return e.book
}

// Claims exposes the claim ledger for state snapshots and recovery.
func (e *Engine) Claims() *claims.Ledger {
	return e.claims
}

// RestoreLastTick overrides the last observed tick for a market. Used only
// by recovery.
func (e *Engine) RestoreLastTick(marketID schema.MarketID, tick schema.Tick) {
	if st, ok := e.markets[marketID]; ok {
		st.lastTick = tick
	}
}

// SetSeq fast-forwards the journal sequence counter. Used only by
// recovery so new events continue after the replayed tail.
func (e *Engine) SetSeq(seq uint64) {
	e.seq = seq
}

// Seq returns the sequence of the last emitted journal event.
func (e *Engine) Seq() uint64 {
	return e.seq
}

func (e *Engine) emit(eventType schema.EventType, payload []byte) {
	if e.sink == nil {
		return
	}
	e.seq++
	now := time.Now().UTC().UnixNano()
	header := schema.NewHeader(eventType, SourceEngine, e.seq, now, now)
	header.TraceID = e.trace.Next()
	if err := e.sink.Record(header, payload); err != nil {
		e.metrics.IncSinkError()
		logs.Errorf("journal append failed, err: %+v", err)
	}
}
