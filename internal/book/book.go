package book

import (
	"errors"
	"sort"

	"main/internal/schema"
)

// ErrInvalidOrder is returned when an operation would break the book's
// non-negativity or amount invariants.
var ErrInvalidOrder = errors.New("invalid order")

// Key addresses the aggregate pending amount for one position. The level is
// always spacing-aligned; the engine resolves raw ticks before touching the
// book.
type Key struct {
	Market    schema.MarketID
	Level     schema.Tick
	Direction schema.Direction
}

// Entry is one nonzero book row, used for snapshots.
type Entry struct {
	Key    Key
	Amount schema.Amount
}

// Book maps position keys to aggregate pending input amounts. A zero amount
// is equivalent to absence, so rows are deleted when they reach zero.
type Book struct {
	pending map[Key]schema.Amount
}

// New creates an empty order book.
func New() *Book {
	return &Book{pending: make(map[Key]schema.Amount)}
}

// Add increments the aggregate pending amount at a key.
func (b *Book) Add(key Key, amount schema.Amount) error {
	if amount <= 0 || !key.Direction.IsValid() {
		return ErrInvalidOrder
	}
	b.pending[key] += amount
	return nil
}

// Reduce decrements the aggregate pending amount at a key. It fails with
// ErrInvalidOrder if the result would go negative.
func (b *Book) Reduce(key Key, amount schema.Amount) error {
	if amount <= 0 {
		return ErrInvalidOrder
	}
	current := b.pending[key]
	if amount > current {
		return ErrInvalidOrder
	}
	next := current - amount
	if next == 0 {
		delete(b.pending, key)
		return nil
	}
	b.pending[key] = next
	return nil
}

// Pending returns the aggregate pending amount at a key.
func (b *Book) Pending(key Key) schema.Amount {
	return b.pending[key]
}

// Len returns the number of nonzero rows.
func (b *Book) Len() int {
	return len(b.pending)
}

// Entries returns all nonzero rows in deterministic order.
func (b *Book) Entries() []Entry {
	out := make([]Entry, 0, len(b.pending))
	for key, amount := range b.pending {
		out = append(out, Entry{Key: key, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		a, c := out[i].Key, out[j].Key
		if a.Market != c.Market {
			return a.Market < c.Market
		}
		if a.Level != c.Level {
			return a.Level < c.Level
		}
		return a.Direction < c.Direction
	})
	return out
}

// Snapshot returns a deep copy of the book state.
func (b *Book) Snapshot() map[Key]schema.Amount {
	clone := make(map[Key]schema.Amount, len(b.pending))
	for key, amount := range b.pending {
		clone[key] = amount
	}
	return clone
}

// Restore replaces the book state with a snapshot taken earlier.
func (b *Book) Restore(snapshot map[Key]schema.Amount) {
	b.pending = make(map[Key]schema.Amount, len(snapshot))
	for key, amount := range snapshot {
		b.pending[key] = amount
	}
}
