package book

import (
	"testing"

	"main/internal/schema"
)

func testKey(level schema.Tick) Key {
	return Key{Market: 1, Level: level, Direction: schema.DirectionSellBase}
}

func TestAddAndReduceRoundTrip(t *testing.T) {
	b := New()
	key := testKey(60)

	if err := b.Add(key, 100); err != nil {
		t.Fatalf("add: %v", err)
	}
	if got := b.Pending(key); got != 100 {
		t.Fatalf("pending = %d, want 100", got)
	}
	if err := b.Reduce(key, 100); err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if got := b.Pending(key); got != 0 {
		t.Fatalf("pending after round trip = %d, want 0", got)
	}
	if b.Len() != 0 {
		t.Fatalf("zero rows should be deleted, len = %d", b.Len())
	}
}

func TestAddRejectsNonPositive(t *testing.T) {
	b := New()
	if err := b.Add(testKey(0), 0); err != ErrInvalidOrder {
		t.Fatalf("add zero: %v, want ErrInvalidOrder", err)
	}
	if err := b.Add(testKey(0), -5); err != ErrInvalidOrder {
		t.Fatalf("add negative: %v, want ErrInvalidOrder", err)
	}
	bad := Key{Market: 1, Level: 0, Direction: schema.DirectionUnknown}
	if err := b.Add(bad, 5); err != ErrInvalidOrder {
		t.Fatalf("add unknown direction: %v, want ErrInvalidOrder", err)
	}
}

func TestReduceCannotGoNegative(t *testing.T) {
	b := New()
	key := testKey(-120)
	if err := b.Add(key, 10); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := b.Reduce(key, 11); err != ErrInvalidOrder {
		t.Fatalf("over-reduce: %v, want ErrInvalidOrder", err)
	}
	if got := b.Pending(key); got != 10 {
		t.Fatalf("failed reduce must not mutate, pending = %d", got)
	}
}

func TestSnapshotRestore(t *testing.T) {
	b := New()
	if err := b.Add(testKey(0), 7); err != nil {
		t.Fatalf("add: %v", err)
	}
	snap := b.Snapshot()

	if err := b.Add(testKey(60), 3); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := b.Reduce(testKey(0), 7); err != nil {
		t.Fatalf("reduce: %v", err)
	}

	b.Restore(snap)
	if got := b.Pending(testKey(0)); got != 7 {
		t.Fatalf("restored pending = %d, want 7", got)
	}
	if got := b.Pending(testKey(60)); got != 0 {
		t.Fatalf("restored pending at 60 = %d, want 0", got)
	}
}

func TestEntriesDeterministicOrder(t *testing.T) {
	b := New()
	keys := []Key{
		{Market: 2, Level: 0, Direction: schema.DirectionSellBase},
		{Market: 1, Level: 60, Direction: schema.DirectionSellQuote},
		{Market: 1, Level: 60, Direction: schema.DirectionSellBase},
		{Market: 1, Level: -60, Direction: schema.DirectionSellBase},
	}
	for _, key := range keys {
		if err := b.Add(key, 1); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	entries := b.Entries()
	if len(entries) != len(keys) {
		t.Fatalf("entries = %d, want %d", len(entries), len(keys))
	}
	want := []Key{keys[3], keys[2], keys[1], keys[0]}
	for i, entry := range entries {
		if entry.Key != want[i] {
			t.Fatalf("entries[%d] = %+v, want %+v", i, entry.Key, want[i])
		}
	}
}
