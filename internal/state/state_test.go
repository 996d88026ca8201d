package state

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/book"
	"main/internal/claims"
	"main/internal/codec"
	"main/internal/journal"
	"main/internal/schema"
)

func seedState(t *testing.T) (*book.Book, *claims.Ledger) {
	t.Helper()
	b := book.New()
	c := claims.New()

	keyA := book.Key{Market: 1, Level: 60, Direction: schema.DirectionSellBase}
	keyB := book.Key{Market: 1, Level: 120, Direction: schema.DirectionSellQuote}
	require.NoError(t, b.Add(keyA, 100))
	require.NoError(t, b.Add(keyB, 40))

	posA := schema.NewPositionID(1, 60, schema.DirectionSellBase)
	posB := schema.NewPositionID(1, 120, schema.DirectionSellQuote)
	require.NoError(t, c.Mint(posA, 7, 100))
	require.NoError(t, c.Mint(posB, 8, 40))
	require.NoError(t, c.Credit(posB, 9000))
	return b, c
}

func TestSnapshotRoundTrip(t *testing.T) {
	b, c := seedState(t)
	ticks := map[schema.MarketID]schema.Tick{1: 75}

	snap := Capture(b, c, ticks, 12)
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, Write(path, snap))

	loaded, err := Read(path)
	require.NoError(t, err)
	require.NoError(t, Compare(snap, loaded))

	b2 := book.New()
	c2 := claims.New()
	gotTicks := loaded.Apply(b2, c2)
	assert.Equal(t, ticks, gotTicks)

	recaptured := Capture(b2, c2, gotTicks, 12)
	require.NoError(t, Compare(snap, recaptured))
}

func TestCompareDetectsDrift(t *testing.T) {
	b, c := seedState(t)
	ticks := map[schema.MarketID]schema.Tick{1: 75}
	snap := Capture(b, c, ticks, 12)

	require.NoError(t, b.Reduce(book.Key{Market: 1, Level: 60, Direction: schema.DirectionSellBase}, 1))
	drifted := Capture(b, c, ticks, 12)
	assert.Error(t, Compare(snap, drifted))
}

func writeJournal(t *testing.T, dir string, events []struct {
	eventType schema.EventType
	payload   []byte
}) {
	t.Helper()
	w, err := journal.NewWriter(journal.DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	for i, e := range events {
		header := schema.NewHeader(e.eventType, 1, uint64(i+1), int64(i+1), int64(i+1))
		require.NoError(t, w.Record(header, e.payload))
	}
	require.NoError(t, w.Close())
}

func TestRecoverReplaysJournal(t *testing.T) {
	dir := t.TempDir()
	writeJournal(t, dir, []struct {
		eventType schema.EventType
		payload   []byte
	}{
		{schema.EventOrderPlaced, codec.EncodeOrder(nil, schema.OrderEvent{
			Market: 1, Level: 60, Direction: schema.DirectionSellBase, Owner: 7, Amount: 100,
		})},
		{schema.EventOrderPlaced, codec.EncodeOrder(nil, schema.OrderEvent{
			Market: 1, Level: 60, Direction: schema.DirectionSellBase, Owner: 8, Amount: 900,
		})},
		{schema.EventFill, codec.EncodeFill(nil, schema.FillEvent{
			Market: 1, Level: 60, Direction: schema.DirectionSellBase, AmountIn: 1000, AmountOut: 500, NewTick: 55,
		})},
		{schema.EventRedeem, codec.EncodeRedeem(nil, schema.RedeemEvent{
			Market: 1, Level: 60, Direction: schema.DirectionSellBase, Owner: 7, Share: 50, Output: 25,
		})},
	})

	result, err := Recover(context.Background(), RecoverConfig{JournalDir: dir})
	require.NoError(t, err)

	position := schema.NewPositionID(1, 60, schema.DirectionSellBase)
	assert.Equal(t, schema.Amount(0), result.Book.Pending(book.Key{Market: 1, Level: 60, Direction: schema.DirectionSellBase}))
	assert.Equal(t, schema.Amount(950), result.Claims.Supply(position))
	assert.Equal(t, schema.Amount(475), result.Claims.Claimable(position))
	assert.Equal(t, schema.Amount(50), result.Claims.ShareOf(position, 7))
	assert.Equal(t, schema.Tick(55), result.LastTicks[1])
	assert.Equal(t, uint64(4), result.LastSeq)
}

func TestRecoverSkipsEventsCoveredBySnapshot(t *testing.T) {
	dir := t.TempDir()

	b, c := seedState(t)
	snap := Capture(b, c, map[schema.MarketID]schema.Tick{1: 75}, 2)
	snapPath := filepath.Join(dir, "snapshot.json")
	require.NoError(t, Write(snapPath, snap))

	// Seq 1-2 are already folded into the snapshot; only seq 3 applies.
	writeJournal(t, dir, []struct {
		eventType schema.EventType
		payload   []byte
	}{
		{schema.EventOrderPlaced, codec.EncodeOrder(nil, schema.OrderEvent{
			Market: 1, Level: 60, Direction: schema.DirectionSellBase, Owner: 7, Amount: 100,
		})},
		{schema.EventOrderPlaced, codec.EncodeOrder(nil, schema.OrderEvent{
			Market: 1, Level: 120, Direction: schema.DirectionSellQuote, Owner: 8, Amount: 40,
		})},
		{schema.EventFill, codec.EncodeFill(nil, schema.FillEvent{
			Market: 1, Level: 120, Direction: schema.DirectionSellQuote, AmountIn: 40, AmountOut: 11, NewTick: 118,
		})},
	})

	result, err := Recover(context.Background(), RecoverConfig{JournalDir: dir, SnapshotPath: snapPath})
	require.NoError(t, err)

	posB := schema.NewPositionID(1, 120, schema.DirectionSellQuote)
	assert.Equal(t, schema.Amount(100), result.Book.Pending(book.Key{Market: 1, Level: 60, Direction: schema.DirectionSellBase}))
	assert.Equal(t, schema.Amount(0), result.Book.Pending(book.Key{Market: 1, Level: 120, Direction: schema.DirectionSellQuote}))
	assert.Equal(t, schema.Amount(9011), result.Claims.Claimable(posB))
	assert.Equal(t, schema.Tick(118), result.LastTicks[1])
	assert.Equal(t, uint64(3), result.LastSeq)
}

func TestRecoverRejectsRedeemMismatch(t *testing.T) {
	dir := t.TempDir()
	writeJournal(t, dir, []struct {
		eventType schema.EventType
		payload   []byte
	}{
		{schema.EventOrderPlaced, codec.EncodeOrder(nil, schema.OrderEvent{
			Market: 1, Level: 60, Direction: schema.DirectionSellBase, Owner: 7, Amount: 100,
		})},
		{schema.EventFill, codec.EncodeFill(nil, schema.FillEvent{
			Market: 1, Level: 60, Direction: schema.DirectionSellBase, AmountIn: 100, AmountOut: 200, NewTick: 50,
		})},
		{schema.EventRedeem, codec.EncodeRedeem(nil, schema.RedeemEvent{
			Market: 1, Level: 60, Direction: schema.DirectionSellBase, Owner: 7, Share: 50, Output: 999,
		})},
	})

	_, err := Recover(context.Background(), RecoverConfig{JournalDir: dir})
	assert.Error(t, err)
}
