package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"main/internal/book"
	"main/internal/claims"
	"main/internal/schema"
)

// Snapshot captures the engine's durable state at a point in time: the
// pending order book, the claim ledger, and each market's last-observed
// tick. Together with the journal tail past LastSeq it is enough to
// rebuild the engine exactly.
type Snapshot struct {
	Timestamp int64           `json:"timestamp"`
	LastSeq   uint64          `json:"lastSeq"`
	Markets   []MarketEntry   `json:"markets"`
	Orders    []OrderEntry    `json:"orders"`
	Positions []PositionEntry `json:"positions"`
	Shares    []ShareEntry    `json:"shares"`
}

// MarketEntry records one market's last-observed tick.
type MarketEntry struct {
	Market   schema.MarketID `json:"market"`
	LastTick schema.Tick     `json:"lastTick"`
}

// OrderEntry is one pending book row.
type OrderEntry struct {
	Market    schema.MarketID  `json:"market"`
	Level     schema.Tick      `json:"level"`
	Direction schema.Direction `json:"direction"`
	Amount    schema.Amount    `json:"amount"`
}

// PositionEntry is one position's share supply and claimable output.
type PositionEntry struct {
	Position  schema.PositionID `json:"position"`
	Supply    schema.Amount     `json:"supply"`
	Claimable schema.Amount     `json:"claimable"`
}

// ShareEntry is one owner's claim share balance.
type ShareEntry struct {
	Position schema.PositionID `json:"position"`
	Owner    schema.AccountID  `json:"owner"`
	Amount   schema.Amount     `json:"amount"`
}

// Capture builds a snapshot from live state.
func Capture(b *book.Book, c *claims.Ledger, ticks map[schema.MarketID]schema.Tick, lastSeq uint64) Snapshot {
	markets := make([]MarketEntry, 0, len(ticks))
	for market, tick := range ticks {
		markets = append(markets, MarketEntry{Market: market, LastTick: tick})
	}
	sort.Slice(markets, func(i, j int) bool { return markets[i].Market < markets[j].Market })

	bookRows := b.Entries()
	orders := make([]OrderEntry, 0, len(bookRows))
	for _, row := range bookRows {
		orders = append(orders, OrderEntry{
			Market:    row.Key.Market,
			Level:     row.Key.Level,
			Direction: row.Key.Direction,
			Amount:    row.Amount,
		})
	}

	positionRows := c.PositionEntries()
	positions := make([]PositionEntry, 0, len(positionRows))
	for _, row := range positionRows {
		positions = append(positions, PositionEntry{
			Position:  row.Position,
			Supply:    row.Supply,
			Claimable: row.Claimable,
		})
	}

	shareRows := c.ShareEntries()
	shares := make([]ShareEntry, 0, len(shareRows))
	for _, row := range shareRows {
		shares = append(shares, ShareEntry{
			Position: row.Position,
			Owner:    row.Owner,
			Amount:   row.Amount,
		})
	}

	return Snapshot{
		Timestamp: time.Now().UTC().UnixNano(),
		LastSeq:   lastSeq,
		Markets:   markets,
		Orders:    orders,
		Positions: positions,
		Shares:    shares,
	}
}

// Apply loads the snapshot into the book and claim ledger, replacing their
// state, and returns the per-market ticks.
func (s Snapshot) Apply(b *book.Book, c *claims.Ledger) map[schema.MarketID]schema.Tick {
	pending := make(map[book.Key]schema.Amount, len(s.Orders))
	for _, row := range s.Orders {
		pending[book.Key{Market: row.Market, Level: row.Level, Direction: row.Direction}] = row.Amount
	}
	b.Restore(pending)

	positions := make([]claims.PositionEntry, 0, len(s.Positions))
	for _, row := range s.Positions {
		positions = append(positions, claims.PositionEntry{
			Position:  row.Position,
			Supply:    row.Supply,
			Claimable: row.Claimable,
		})
	}
	shares := make([]claims.ShareEntry, 0, len(s.Shares))
	for _, row := range s.Shares {
		shares = append(shares, claims.ShareEntry{
			Position: row.Position,
			Owner:    row.Owner,
			Amount:   row.Amount,
		})
	}
	c.ApplyEntries(positions, shares)

	ticks := make(map[schema.MarketID]schema.Tick, len(s.Markets))
	for _, row := range s.Markets {
		ticks[row.Market] = row.LastTick
	}
	return ticks
}

// Write stores a snapshot to disk as JSON.
func Write(path string, snapshot Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// Read loads a snapshot from disk.
func Read(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Compare checks that two snapshots carry the same state, ignoring
// timestamps.
func Compare(expected, actual Snapshot) error {
	if expected.LastSeq != actual.LastSeq {
		return fmt.Errorf("snapshot seq mismatch: expected=%d actual=%d", expected.LastSeq, actual.LastSeq)
	}
	if len(expected.Orders) != len(actual.Orders) {
		return fmt.Errorf("snapshot order count mismatch: expected=%d actual=%d", len(expected.Orders), len(actual.Orders))
	}
	for i := range expected.Orders {
		if expected.Orders[i] != actual.Orders[i] {
			return fmt.Errorf("snapshot order mismatch at %d: expected=%+v actual=%+v", i, expected.Orders[i], actual.Orders[i])
		}
	}
	if len(expected.Positions) != len(actual.Positions) {
		return fmt.Errorf("snapshot position count mismatch: expected=%d actual=%d", len(expected.Positions), len(actual.Positions))
	}
	for i := range expected.Positions {
		if expected.Positions[i] != actual.Positions[i] {
			return fmt.Errorf("snapshot position mismatch at %d", i)
		}
	}
	if len(expected.Shares) != len(actual.Shares) {
		return fmt.Errorf("snapshot share count mismatch: expected=%d actual=%d", len(expected.Shares), len(actual.Shares))
	}
	for i := range expected.Shares {
		if expected.Shares[i] != actual.Shares[i] {
			return fmt.Errorf("snapshot share mismatch at %d", i)
		}
	}
	if len(expected.Markets) != len(actual.Markets) {
		return fmt.Errorf("snapshot market count mismatch: expected=%d actual=%d", len(expected.Markets), len(actual.Markets))
	}
	for i := range expected.Markets {
		if expected.Markets[i] != actual.Markets[i] {
			return fmt.Errorf("snapshot market mismatch at %d", i)
		}
	}
	return nil
}
