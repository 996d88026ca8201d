package market

import "main/internal/schema"

type balanceKey struct {
	Asset   schema.AssetID
	Account schema.AccountID
}

// Ledger is an in-memory multi-asset balance ledger.
type Ledger struct {
	balances map[balanceKey]schema.Amount
}

// NewLedger creates an empty asset ledger.
func NewLedger() *Ledger {
	return &Ledger{balances: make(map[balanceKey]schema.Amount)}
}

// Mint credits an account out of thin air. Used to seed test and demo
// balances and venue reserves.
func (l *Ledger) Mint(asset schema.AssetID, account schema.AccountID, amount schema.Amount) {
	if amount <= 0 {
		return
	}
	l.balances[balanceKey{Asset: asset, Account: account}] += amount
}

// Transfer moves amount of an asset between two accounts. It fails with
// ErrTransferFailure when the source balance is insufficient.
func (l *Ledger) Transfer(asset schema.AssetID, from, to schema.AccountID, amount schema.Amount) error {
	if amount <= 0 {
		return ErrTransferFailure
	}
	fromKey := balanceKey{Asset: asset, Account: from}
	if l.balances[fromKey] < amount {
		return ErrTransferFailure
	}
	l.balances[fromKey] -= amount
	l.balances[balanceKey{Asset: asset, Account: to}] += amount
	return nil
}

// BalanceOf returns an account's balance for an asset.
func (l *Ledger) BalanceOf(asset schema.AssetID, account schema.AccountID) schema.Amount {
	return l.balances[balanceKey{Asset: asset, Account: account}]
}

// LedgerSnapshot is an opaque copy of every balance in the ledger.
type LedgerSnapshot struct {
	balances map[balanceKey]schema.Amount
}

// Snapshot copies the current balances.
func (l *Ledger) Snapshot() LedgerSnapshot {
	cp := make(map[balanceKey]schema.Amount, len(l.balances))
	for key, amount := range l.balances {
		cp[key] = amount
	}
	return LedgerSnapshot{balances: cp}
}

// Restore replaces all balances with the snapshot's. The snapshot stays
// valid for further restores.
func (l *Ledger) Restore(snap LedgerSnapshot) {
	cp := make(map[balanceKey]schema.Amount, len(snap.balances))
	for key, amount := range snap.balances {
		cp[key] = amount
	}
	l.balances = cp
}

// Custody binds the ledger to a custody account, implementing
// AssetTransfer for the engine.
type Custody struct {
	ledger  *Ledger
	account schema.AccountID
}

// NewCustody creates the engine-facing transfer surface.
func NewCustody(ledger *Ledger, account schema.AccountID) *Custody {
	return &Custody{ledger: ledger, account: account}
}

// Account returns the custody account identity.
func (c *Custody) Account() schema.AccountID {
	return c.account
}

// TransferIn pulls amount of an asset from an account into custody.
func (c *Custody) TransferIn(asset schema.AssetID, from schema.AccountID, amount schema.Amount) error {
	return c.ledger.Transfer(asset, from, c.account, amount)
}

// TransferOut pays amount of an asset from custody to an account.
func (c *Custody) TransferOut(asset schema.AssetID, to schema.AccountID, amount schema.Amount) error {
	return c.ledger.Transfer(asset, c.account, to, amount)
}
