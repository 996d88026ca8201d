package ops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/decimal"

	"main/internal/schema"
)

func decimalFromString(s string) decimal.Decimal {
	return decimal.Decimal(s)
}

const testConfig = `{
  "registry": {
    "assets": [{"name": "ETH"}, {"name": "USDC"}],
    "markets": [
      {
        "name": "ETH-USDC",
        "base": "ETH",
        "quote": "USDC",
        "tickSpacing": 60,
        "priceScale": 2,
        "initialPrice": "100.00",
        "baseReserve": 1000
      }
    ]
  },
  "engine": {"maxFillsPerCycle": 8},
  "fees": {"enabled": true, "baseFeeBps": 30},
  "points": {"enabled": true, "rateBps": 2000},
  "journal": {"dir": "data/journal", "filePrefix": "orders"},
  "snapshot": {"path": "data/snapshot.json"},
  "store": {"enabled": false},
  "demo": {
    "orders": [
      {"market": "ETH-USDC", "owner": 11, "direction": "sellBase", "targetPrice": "110.5", "amount": 50}
    ],
    "swaps": [
      {"market": "ETH-USDC", "trader": 22, "direction": "sellQuote", "amountIn": 20000}
    ]
  }
}`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadResolvesConfig(t *testing.T) {
	loaded, err := Load(writeConfig(t, testConfig))
	require.NoError(t, err)

	require.Len(t, loaded.Markets, 1)
	boot := loaded.Markets[0]
	assert.Equal(t, schema.MarketID(1), boot.Spec.ID)
	assert.Equal(t, schema.Tick(60), boot.Spec.TickSpacing)
	assert.Equal(t, schema.Tick(10000), boot.Spec.InitialTick)
	assert.Equal(t, schema.Amount(1000), boot.BaseReserve)
	assert.Equal(t, schema.Amount(100000), boot.QuoteReserve)

	assert.Equal(t, 8, loaded.Engine.MaxFillsPerCycle)
	assert.True(t, loaded.Fees.Enabled)
	assert.Equal(t, int64(30), loaded.Fees.BaseFeeBps)
	assert.Equal(t, int64(2000), loaded.Points.RateBps)
	assert.Equal(t, "data/journal", loaded.Journal.Dir)

	require.Len(t, loaded.Orders, 1)
	order := loaded.Orders[0]
	assert.Equal(t, schema.MarketID(1), order.Market)
	assert.Equal(t, schema.AccountID(11), order.Owner)
	assert.Equal(t, schema.DirectionSellBase, order.Direction)
	assert.Equal(t, schema.Tick(11050), order.TargetTick)
	assert.Equal(t, schema.Amount(50), order.Amount)

	require.Len(t, loaded.Swaps, 1)
	swap := loaded.Swaps[0]
	assert.Equal(t, schema.DirectionSellQuote, swap.Direction)
	assert.Equal(t, schema.Amount(20000), swap.AmountIn)
}

func TestLoadRejectsUnknownAsset(t *testing.T) {
	const bad = `{
  "registry": {
    "assets": [{"name": "ETH"}],
    "markets": [
      {"name": "ETH-USDC", "base": "ETH", "quote": "USDC", "tickSpacing": 60, "priceScale": 2, "initialPrice": "1", "baseReserve": 10}
    ]
  }
}`
	_, err := Load(writeConfig(t, bad))
	assert.Error(t, err)
}

func TestLoadRejectsUnknownDirection(t *testing.T) {
	const bad = `{
  "registry": {
    "assets": [{"name": "ETH"}, {"name": "USDC"}],
    "markets": [
      {"name": "ETH-USDC", "base": "ETH", "quote": "USDC", "tickSpacing": 60, "priceScale": 2, "initialPrice": "1", "baseReserve": 10}
    ]
  },
  "demo": {"swaps": [{"market": "ETH-USDC", "trader": 1, "direction": "buy", "amountIn": 5}]}
}`
	_, err := Load(writeConfig(t, bad))
	assert.Error(t, err)
}

func TestPriceToTick(t *testing.T) {
	for _, tc := range []struct {
		price string
		scale schema.Scale
		want  schema.Tick
		fails bool
	}{
		{price: "100.00", scale: 2, want: 10000},
		{price: "110.5", scale: 2, want: 11050},
		{price: "0.015", scale: 2, want: 1},
		{price: "1.239", scale: 2, want: 123},
		{price: "7", scale: 0, want: 7},
		{price: "0", scale: 2, want: 0},
		{price: "-3", scale: 2, fails: true},
		{price: "abc", scale: 2, fails: true},
		{price: "99999999999", scale: 4, fails: true},
	} {
		tick, err := PriceToTick(decimalFromString(tc.price), tc.scale)
		if tc.fails {
			assert.Error(t, err, tc.price)
			continue
		}
		require.NoError(t, err, tc.price)
		assert.Equal(t, tc.want, tick, tc.price)
	}
}
