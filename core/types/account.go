package types

import "math/big"

// Account is the balance record for a single address. Amounts are denominated
// in the smallest unit of each asset and stored as big integers to match the
// precision used by the pool accounting.
type Account struct {
	Nonce uint64 `json:"nonce"`
	// BalanceLQD is the spendable native asset balance.
	BalanceLQD *big.Int `json:"balanceLQD"`
	// BalanceWLQD is the wrapped, pool-internal form of the native asset.
	BalanceWLQD *big.Int `json:"balanceWLQD"`
	// BalanceStable is the secondary stable asset used by the lending tier's
	// atomic-purchase extension.
	BalanceStable *big.Int `json:"balanceStable"`
}

// Normalize replaces nil balances with zero values so callers can operate on
// the account without nil checks.
func (a *Account) Normalize() *Account {
	if a == nil {
		return &Account{
			BalanceLQD:    big.NewInt(0),
			BalanceWLQD:   big.NewInt(0),
			BalanceStable: big.NewInt(0),
		}
	}
	if a.BalanceLQD == nil {
		a.BalanceLQD = big.NewInt(0)
	}
	if a.BalanceWLQD == nil {
		a.BalanceWLQD = big.NewInt(0)
	}
	if a.BalanceStable == nil {
		a.BalanceStable = big.NewInt(0)
	}
	return a
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return (&Account{}).Normalize()
	}
	clone := &Account{Nonce: a.Nonce}
	clone.Normalize()
	if a.BalanceLQD != nil {
		clone.BalanceLQD = new(big.Int).Set(a.BalanceLQD)
	}
	if a.BalanceWLQD != nil {
		clone.BalanceWLQD = new(big.Int).Set(a.BalanceWLQD)
	}
	if a.BalanceStable != nil {
		clone.BalanceStable = new(big.Int).Set(a.BalanceStable)
	}
	return clone
}
