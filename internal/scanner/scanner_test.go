package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/book"
	"main/internal/schema"
)

const market = schema.MarketID(1)

func TestUpwardScanFindsFirstMatch(t *testing.T) {
	b := book.New()
	require.NoError(t, b.Add(book.Key{Market: market, Level: 20, Direction: schema.DirectionSellBase}, 5))

	match, ok := FirstCrossing(b, market, 0, 30, 10)
	require.True(t, ok)
	assert.Equal(t, schema.Tick(20), match.Level)
	assert.Equal(t, schema.DirectionSellBase, match.Direction)
	assert.Equal(t, schema.Amount(5), match.Amount)
}

func TestUpwardScanExcludesCurrentLevel(t *testing.T) {
	b := book.New()
	require.NoError(t, b.Add(book.Key{Market: market, Level: 30, Direction: schema.DirectionSellBase}, 5))

	_, ok := FirstCrossing(b, market, 0, 30, 10)
	assert.False(t, ok, "order at the current level must not trigger")
}

func TestUpwardScanIgnoresOppositeSide(t *testing.T) {
	b := book.New()
	require.NoError(t, b.Add(book.Key{Market: market, Level: 20, Direction: schema.DirectionSellQuote}, 5))

	_, ok := FirstCrossing(b, market, 0, 30, 10)
	assert.False(t, ok, "an upward move only fills base-selling orders")
}

func TestDownwardScanFindsQuoteSide(t *testing.T) {
	b := book.New()
	require.NoError(t, b.Add(book.Key{Market: market, Level: 20, Direction: schema.DirectionSellQuote}, 5))
	require.NoError(t, b.Add(book.Key{Market: market, Level: 10, Direction: schema.DirectionSellQuote}, 3))

	match, ok := FirstCrossing(b, market, 30, 0, 10)
	require.True(t, ok)
	assert.Equal(t, schema.Tick(20), match.Level, "scan walks downward from the previous level")
	assert.Equal(t, schema.DirectionSellQuote, match.Direction)
}

func TestScanReturnsFirstOfSeveral(t *testing.T) {
	b := book.New()
	require.NoError(t, b.Add(book.Key{Market: market, Level: 10, Direction: schema.DirectionSellBase}, 1))
	require.NoError(t, b.Add(book.Key{Market: market, Level: 20, Direction: schema.DirectionSellBase}, 2))

	match, ok := FirstCrossing(b, market, 0, 30, 10)
	require.True(t, ok)
	assert.Equal(t, schema.Tick(10), match.Level, "nearest level to the previous price wins")
}

func TestScanAlignsUnalignedBounds(t *testing.T) {
	b := book.New()
	require.NoError(t, b.Add(book.Key{Market: market, Level: 0, Direction: schema.DirectionSellBase}, 4))

	// previous=5 aligns down to 0, current=25 aligns to 20.
	match, ok := FirstCrossing(b, market, 5, 25, 10)
	require.True(t, ok)
	assert.Equal(t, schema.Tick(0), match.Level)

	// current=5 aligns to 0: a downward move to 5 must not trigger the
	// level at 0, the price has not crossed it yet.
	q := book.New()
	require.NoError(t, q.Add(book.Key{Market: market, Level: 0, Direction: schema.DirectionSellQuote}, 4))
	_, ok = FirstCrossing(q, market, 30, 5, 10)
	assert.False(t, ok)
}

func TestScanEmptyRangeAndOtherMarkets(t *testing.T) {
	b := book.New()
	require.NoError(t, b.Add(book.Key{Market: 2, Level: 10, Direction: schema.DirectionSellBase}, 9))

	_, ok := FirstCrossing(b, market, 0, 30, 10)
	assert.False(t, ok, "orders on other markets must be invisible")

	_, ok = FirstCrossing(b, market, 30, 30, 10)
	assert.False(t, ok, "no movement means no range")
}
