package vault

import (
	"errors"
	"math/big"

	"liquidpool/core/types"
	"liquidpool/crypto"
)

var (
	errNilState            = errors.New("asset vault: state not configured")
	errInvalidAmount       = errors.New("asset vault: amount must be positive")
	errInsufficientBalance = errors.New("asset vault: insufficient balance")
)

type vaultState interface {
	GetAccount(addr crypto.Address) (*types.Account, error)
	PutAccount(addr crypto.Address, account *types.Account) error
	WrappedSupplyGet() (*big.Int, error)
	WrappedSupplyPut(supply *big.Int) error
}

// Vault converts between the native asset (LQD) and its wrapped pool-internal
// form (WLQD) on a single account. Conversions are always 1:1; the vault only
// tracks how much wrapped supply is outstanding. The supply counter lives in
// state so it survives a restart alongside the balances it mirrors.
type Vault struct {
	state vaultState
}

func New() *Vault {
	return &Vault{}
}

// SetState wires the vault to the shared account state.
func (v *Vault) SetState(state vaultState) { v.state = state }

// TotalWrapped reports the outstanding wrapped supply.
func (v *Vault) TotalWrapped() (*big.Int, error) {
	if v == nil || v.state == nil {
		return nil, errNilState
	}
	supply, err := v.state.WrappedSupplyGet()
	if err != nil {
		return nil, err
	}
	if supply == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(supply), nil
}

// Wrap converts amount of the holder's native balance into wrapped form.
func (v *Vault) Wrap(addr crypto.Address, amount *big.Int) error {
	if v == nil || v.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	account, err := v.state.GetAccount(addr)
	if err != nil {
		return err
	}
	account = account.Normalize()
	if account.BalanceLQD.Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	supply, err := v.TotalWrapped()
	if err != nil {
		return err
	}
	account.BalanceLQD = new(big.Int).Sub(account.BalanceLQD, amount)
	account.BalanceWLQD = new(big.Int).Add(account.BalanceWLQD, amount)
	if err := v.state.PutAccount(addr, account); err != nil {
		return err
	}
	return v.state.WrappedSupplyPut(new(big.Int).Add(supply, amount))
}

// Unwrap converts amount of the holder's wrapped balance back to native form.
func (v *Vault) Unwrap(addr crypto.Address, amount *big.Int) error {
	if v == nil || v.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	account, err := v.state.GetAccount(addr)
	if err != nil {
		return err
	}
	account = account.Normalize()
	if account.BalanceWLQD.Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	supply, err := v.TotalWrapped()
	if err != nil {
		return err
	}
	account.BalanceWLQD = new(big.Int).Sub(account.BalanceWLQD, amount)
	account.BalanceLQD = new(big.Int).Add(account.BalanceLQD, amount)
	if err := v.state.PutAccount(addr, account); err != nil {
		return err
	}
	return v.state.WrappedSupplyPut(new(big.Int).Sub(supply, amount))
}
