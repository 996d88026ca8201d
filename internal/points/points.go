package points

import "main/internal/schema"

// Issuer mints loyalty points proportional to spent amounts. Minting is a
// no-op when no recipient is supplied with the triggering call.
type Issuer struct {
	rateBps  int64
	balances map[schema.AccountID]schema.Amount
	supply   schema.Amount
}

// NewIssuer creates an issuer minting rateBps basis points of each spent
// amount.
func NewIssuer(rateBps int64) *Issuer {
	if rateBps < 0 {
		rateBps = 0
	}
	return &Issuer{
		rateBps:  rateBps,
		balances: make(map[schema.AccountID]schema.Amount),
	}
}

// Award mints points for a spend event. recipient may be nil.
func (i *Issuer) Award(recipient *schema.AccountID, spent schema.Amount) schema.Amount {
	if recipient == nil || spent <= 0 || i.rateBps == 0 {
		return 0
	}
	minted, ok := schema.MulDiv(spent, schema.Amount(i.rateBps), 10000)
	if !ok || minted == 0 {
		return 0
	}
	i.balances[*recipient] += minted
	i.supply += minted
	return minted
}

// BalanceOf returns an account's point balance.
func (i *Issuer) BalanceOf(account schema.AccountID) schema.Amount {
	return i.balances[account]
}

// Supply returns the total points minted.
func (i *Issuer) Supply() schema.Amount {
	return i.supply
}
