package claims

import (
	"errors"
	"sort"

	"main/internal/schema"
)

var (
	// ErrNothingToClaim is returned when a position has no claimable output.
	ErrNothingToClaim = errors.New("nothing to claim")
	// ErrInsufficientShare is returned when an owner's share is smaller
	// than the amount requested.
	ErrInsufficientShare = errors.New("insufficient claim share")
	// ErrInvalidAmount is returned for non-positive share or credit amounts.
	ErrInvalidAmount = errors.New("invalid claim amount")
)

type shareKey struct {
	Position schema.PositionID
	Owner    schema.AccountID
}

// ShareEntry is one owner's balance row, used for snapshots.
type ShareEntry struct {
	Position schema.PositionID
	Owner    schema.AccountID
	Amount   schema.Amount
}

// PositionEntry is one position's supply and claimable output row.
type PositionEntry struct {
	Position  schema.PositionID
	Supply    schema.Amount
	Claimable schema.Amount
}

// Ledger tracks fungible claim shares per position and the output each
// position has accrued from fills. Mint and burn stay inside this package
// so the supply conservation invariant is enforced in one place: for every
// position, the sum of owner shares equals the recorded supply.
type Ledger struct {
	shares    map[shareKey]schema.Amount
	supply    map[schema.PositionID]schema.Amount
	claimable map[schema.PositionID]schema.Amount
}

// New creates an empty claim ledger.
func New() *Ledger {
	return &Ledger{
		shares:    make(map[shareKey]schema.Amount),
		supply:    make(map[schema.PositionID]schema.Amount),
		claimable: make(map[schema.PositionID]schema.Amount),
	}
}

// Mint issues shares to an owner, growing the position supply by the same
// amount.
func (l *Ledger) Mint(position schema.PositionID, owner schema.AccountID, amount schema.Amount) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	l.shares[shareKey{Position: position, Owner: owner}] += amount
	l.supply[position] += amount
	return nil
}

// Burn destroys shares held by an owner, shrinking the position supply by
// the same amount.
func (l *Ledger) Burn(position schema.PositionID, owner schema.AccountID, amount schema.Amount) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	key := shareKey{Position: position, Owner: owner}
	held := l.shares[key]
	if amount > held {
		return ErrInsufficientShare
	}
	l.setShare(key, held-amount)
	l.supply[position] -= amount
	if l.supply[position] == 0 {
		delete(l.supply, position)
	}
	return nil
}

// Credit adds realized fill proceeds to a position's claimable output.
// There is no cap: emissions are exactly what the market paid out.
func (l *Ledger) Credit(position schema.PositionID, amount schema.Amount) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	if amount == 0 {
		return nil
	}
	l.claimable[position] += amount
	return nil
}

// Redeem burns shareAmount of the owner's shares and pays out the
// proportional slice of the position's claimable output, rounded down.
// Residual dust stays with the position, so cumulative payouts can never
// exceed cumulative credits.
func (l *Ledger) Redeem(position schema.PositionID, owner schema.AccountID, shareAmount schema.Amount) (schema.Amount, error) {
	if shareAmount <= 0 {
		return 0, ErrInvalidAmount
	}
	claimable := l.claimable[position]
	if claimable <= 0 {
		return 0, ErrNothingToClaim
	}
	key := shareKey{Position: position, Owner: owner}
	held := l.shares[key]
	if shareAmount > held {
		return 0, ErrInsufficientShare
	}
	supply := l.supply[position]
	output, ok := schema.MulDiv(shareAmount, claimable, supply)
	if !ok {
		return 0, ErrInvalidAmount
	}

	l.setShare(key, held-shareAmount)
	l.supply[position] = supply - shareAmount
	if l.supply[position] == 0 {
		delete(l.supply, position)
	}
	l.claimable[position] = claimable - output
	if l.claimable[position] == 0 {
		delete(l.claimable, position)
	}
	return output, nil
}

// ShareOf returns the owner's share balance for a position.
func (l *Ledger) ShareOf(position schema.PositionID, owner schema.AccountID) schema.Amount {
	return l.shares[shareKey{Position: position, Owner: owner}]
}

// Supply returns the total share supply for a position.
func (l *Ledger) Supply(position schema.PositionID) schema.Amount {
	return l.supply[position]
}

// Claimable returns the redeemable output for a position.
func (l *Ledger) Claimable(position schema.PositionID) schema.Amount {
	return l.claimable[position]
}

func (l *Ledger) setShare(key shareKey, amount schema.Amount) {
	if amount == 0 {
		delete(l.shares, key)
		return
	}
	l.shares[key] = amount
}

// Snapshot captures a deep copy of the ledger state.
type Snapshot struct {
	Shares    map[shareKey]schema.Amount
	Supply    map[schema.PositionID]schema.Amount
	Claimable map[schema.PositionID]schema.Amount
}

// Snapshot returns a deep copy of the ledger state for cycle rollback.
func (l *Ledger) Snapshot() Snapshot {
	snap := Snapshot{
		Shares:    make(map[shareKey]schema.Amount, len(l.shares)),
		Supply:    make(map[schema.PositionID]schema.Amount, len(l.supply)),
		Claimable: make(map[schema.PositionID]schema.Amount, len(l.claimable)),
	}
	for key, amount := range l.shares {
		snap.Shares[key] = amount
	}
	for position, amount := range l.supply {
		snap.Supply[position] = amount
	}
	for position, amount := range l.claimable {
		snap.Claimable[position] = amount
	}
	return snap
}

// Restore replaces the ledger state with an earlier snapshot.
func (l *Ledger) Restore(snap Snapshot) {
	l.shares = make(map[shareKey]schema.Amount, len(snap.Shares))
	l.supply = make(map[schema.PositionID]schema.Amount, len(snap.Supply))
	l.claimable = make(map[schema.PositionID]schema.Amount, len(snap.Claimable))
	for key, amount := range snap.Shares {
		l.shares[key] = amount
	}
	for position, amount := range snap.Supply {
		l.supply[position] = amount
	}
	for position, amount := range snap.Claimable {
		l.claimable[position] = amount
	}
}

// ShareEntries returns all share rows in deterministic order.
func (l *Ledger) ShareEntries() []ShareEntry {
	out := make([]ShareEntry, 0, len(l.shares))
	for key, amount := range l.shares {
		out = append(out, ShareEntry{Position: key.Position, Owner: key.Owner, Amount: amount})
	}
	sortShareEntries(out)
	return out
}

// PositionEntries returns supply/claimable rows for every position that has
// either, in deterministic order.
func (l *Ledger) PositionEntries() []PositionEntry {
	merged := make(map[schema.PositionID]PositionEntry, len(l.supply))
	for position, amount := range l.supply {
		entry := merged[position]
		entry.Position = position
		entry.Supply = amount
		merged[position] = entry
	}
	for position, amount := range l.claimable {
		entry := merged[position]
		entry.Position = position
		entry.Claimable = amount
		merged[position] = entry
	}
	out := make([]PositionEntry, 0, len(merged))
	for _, entry := range merged {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		return lessPosition(out[i].Position, out[j].Position)
	})
	return out
}

// ApplyEntries loads position and share rows, replacing current state.
// Used when rebuilding the ledger from a persisted snapshot.
func (l *Ledger) ApplyEntries(positions []PositionEntry, shares []ShareEntry) {
	l.shares = make(map[shareKey]schema.Amount, len(shares))
	l.supply = make(map[schema.PositionID]schema.Amount, len(positions))
	l.claimable = make(map[schema.PositionID]schema.Amount, len(positions))
	for _, entry := range positions {
		if entry.Supply != 0 {
			l.supply[entry.Position] = entry.Supply
		}
		if entry.Claimable != 0 {
			l.claimable[entry.Position] = entry.Claimable
		}
	}
	for _, entry := range shares {
		if entry.Amount != 0 {
			l.shares[shareKey{Position: entry.Position, Owner: entry.Owner}] = entry.Amount
		}
	}
}

func sortShareEntries(entries []ShareEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Position != entries[j].Position {
			return lessPosition(entries[i].Position, entries[j].Position)
		}
		return entries[i].Owner < entries[j].Owner
	})
}

func lessPosition(a, b schema.PositionID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
