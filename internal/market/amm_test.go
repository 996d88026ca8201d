package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/fees"
	"main/internal/points"
	"main/internal/schema"
)

const (
	venueAccount = schema.AccountID(1)
	trader       = schema.AccountID(42)
)

func testSpec() schema.MarketSpec {
	return schema.MarketSpec{
		ID:          1,
		Name:        "BASE-QUOTE",
		Base:        1,
		Quote:       2,
		TickSpacing: 60,
		PriceScale:  2,
	}
}

func newTestVenue(t *testing.T, opts ...VenueOption) (*Venue, *Ledger) {
	t.Helper()
	ledger := NewLedger()
	venue := NewVenue(ledger, venueAccount, opts...)
	require.NoError(t, venue.AddPool(testSpec(), 1000, 100000))
	return venue, ledger
}

func TestCurrentPriceFromReserves(t *testing.T) {
	venue, _ := newTestVenue(t)
	tick, err := venue.CurrentPrice(1)
	require.NoError(t, err)
	// quote/base = 100, scaled by 10^2.
	assert.Equal(t, schema.Tick(10000), tick)
}

func TestExecuteTradeMovesPriceAndCustody(t *testing.T) {
	venue, ledger := newTestVenue(t)
	ledger.Mint(2, trader, 10000)

	result, err := venue.ExecuteTrade(1, trader, schema.DirectionSellQuote, 10000)
	require.NoError(t, err)
	// out = floor(1000*10000/110000) = 90
	assert.Equal(t, schema.Amount(90), result.AmountOut)
	assert.Equal(t, schema.Amount(90), ledger.BalanceOf(1, trader))
	assert.Equal(t, schema.Amount(0), ledger.BalanceOf(2, trader))

	tick, err := venue.CurrentPrice(1)
	require.NoError(t, err)
	assert.Equal(t, result.NewTick, tick)
	assert.Greater(t, tick, schema.Tick(10000), "buying base must raise its price")
}

func TestExecuteTradeInsufficientBalance(t *testing.T) {
	venue, _ := newTestVenue(t)
	_, err := venue.ExecuteTrade(1, trader, schema.DirectionSellQuote, 10000)
	assert.ErrorIs(t, err, ErrTransferFailure)
}

func TestExecuteTradeUnknownMarket(t *testing.T) {
	venue, _ := newTestVenue(t)
	_, err := venue.ExecuteTrade(9, trader, schema.DirectionSellBase, 10)
	assert.ErrorIs(t, err, ErrMarketFailure)
}

func TestExecuteTradeNotifiesWithInitiator(t *testing.T) {
	venue, ledger := newTestVenue(t)
	ledger.Mint(2, trader, 10000)

	var got TradeNotice
	venue.SetNotify(func(notice TradeNotice) error {
		got = notice
		return nil
	})

	result, err := venue.ExecuteTrade(1, trader, schema.DirectionSellQuote, 10000)
	require.NoError(t, err)
	assert.Equal(t, trader, got.Initiator)
	assert.Equal(t, schema.MarketID(1), got.Market)
	assert.Equal(t, result.NewTick, got.NewTick)
}

func TestSwapAppliesFeeAndPoints(t *testing.T) {
	tracker := fees.NewTracker(30) // 30 bps base fee
	issuer := points.NewIssuer(2000)
	venue, ledger := newTestVenue(t, WithFees(tracker, func() int64 { return 100 }), WithPoints(issuer))
	ledger.Mint(2, trader, 10000)

	recipient := schema.AccountID(7)
	result, err := venue.Swap(1, trader, schema.DirectionSellQuote, 10000, &recipient)
	require.NoError(t, err)
	// fee = floor(10000*30/10000) = 30, effective input 9970.
	assert.Equal(t, schema.Amount(30), result.Fee)
	assert.Equal(t, schema.Amount(2000), issuer.BalanceOf(recipient))
	assert.Equal(t, int64(100), tracker.Average(1))
}

func TestSnapshotStateRewindsTrades(t *testing.T) {
	venue, ledger := newTestVenue(t)
	ledger.Mint(2, trader, 10000)

	restore := venue.SnapshotState()
	_, err := venue.ExecuteTrade(1, trader, schema.DirectionSellQuote, 10000)
	require.NoError(t, err)

	restore()
	base, quote, ok := venue.Reserves(1)
	require.True(t, ok)
	assert.Equal(t, schema.Amount(1000), base)
	assert.Equal(t, schema.Amount(100000), quote)
	assert.Equal(t, schema.Amount(10000), ledger.BalanceOf(2, trader))
	assert.Equal(t, schema.Amount(0), ledger.BalanceOf(1, trader))

	tick, err := venue.CurrentPrice(1)
	require.NoError(t, err)
	assert.Equal(t, schema.Tick(10000), tick)
}

func TestLedgerSnapshotSurvivesLaterMutation(t *testing.T) {
	ledger := NewLedger()
	ledger.Mint(1, trader, 50)

	snap := ledger.Snapshot()
	require.NoError(t, ledger.Transfer(1, trader, venueAccount, 20))

	ledger.Restore(snap)
	assert.Equal(t, schema.Amount(50), ledger.BalanceOf(1, trader))
	assert.Equal(t, schema.Amount(0), ledger.BalanceOf(1, venueAccount))

	// The same snapshot restores again after further changes.
	ledger.Mint(1, trader, 5)
	ledger.Restore(snap)
	assert.Equal(t, schema.Amount(50), ledger.BalanceOf(1, trader))
}

func TestLedgerTransferRejectsOverdraft(t *testing.T) {
	ledger := NewLedger()
	ledger.Mint(1, trader, 5)
	err := ledger.Transfer(1, trader, venueAccount, 6)
	assert.ErrorIs(t, err, ErrTransferFailure)
	assert.Equal(t, schema.Amount(5), ledger.BalanceOf(1, trader))
}
