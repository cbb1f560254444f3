package pool

import (
	"math/big"

	"liquidpool/crypto"
)

// sharesFromAssets converts an asset amount into shares at the current
// exchange rate. Division floors, so rounding dust always accrues to the
// pool rather than the holder. An empty pool converts at identity.
func (e *Engine) sharesFromAssets(p *Pool, nav, amount *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0)
	}
	if p.TotalShares.Sign() == 0 || nav.Sign() == 0 {
		return new(big.Int).Set(amount)
	}
	shares := new(big.Int).Mul(amount, p.TotalShares)
	return shares.Quo(shares, nav)
}

// assetsFromShares converts a share amount into asset units at the current
// exchange rate, again flooring in the pool's favor.
func (e *Engine) assetsFromShares(p *Pool, nav, shares *big.Int) *big.Int {
	if shares == nil || shares.Sign() <= 0 {
		return big.NewInt(0)
	}
	if p.TotalShares.Sign() == 0 {
		return new(big.Int).Set(shares)
	}
	assets := new(big.Int).Mul(shares, nav)
	return assets.Quo(assets, p.TotalShares)
}

func (e *Engine) sharesOf(addr crypto.Address) (*big.Int, error) {
	shares, err := e.state.SharesGet(addr)
	if err != nil {
		return nil, err
	}
	if shares == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(shares), nil
}

func (e *Engine) mintShares(p *Pool, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if isZeroAddress(to) {
		return ErrZeroAddress
	}
	held, err := e.sharesOf(to)
	if err != nil {
		return err
	}
	if err := e.state.SharesPut(to, new(big.Int).Add(held, amount)); err != nil {
		return err
	}
	p.TotalShares = new(big.Int).Add(p.TotalShares, amount)
	return nil
}

func (e *Engine) burnShares(p *Pool, from crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	held, err := e.sharesOf(from)
	if err != nil {
		return err
	}
	if held.Cmp(amount) < 0 {
		return ErrInsufficientShares
	}
	if err := e.state.SharesPut(from, new(big.Int).Sub(held, amount)); err != nil {
		return err
	}
	p.TotalShares = new(big.Int).Sub(p.TotalShares, amount)
	return nil
}

// moveShares transfers shares between holders without touching total supply.
func (e *Engine) moveShares(from, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	fromHeld, err := e.sharesOf(from)
	if err != nil {
		return err
	}
	if fromHeld.Cmp(amount) < 0 {
		return ErrInsufficientShares
	}
	toHeld, err := e.sharesOf(to)
	if err != nil {
		return err
	}
	if err := e.state.SharesPut(from, new(big.Int).Sub(fromHeld, amount)); err != nil {
		return err
	}
	return e.state.SharesPut(to, new(big.Int).Add(toHeld, amount))
}

// Transfer moves holdings between accounts denominated in asset units. The
// share amount is derived at the current exchange rate, so both sides see the
// same asset value before and after.
func (e *Engine) Transfer(from, to crypto.Address, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if isZeroAddress(to) {
		return ErrZeroAddress
	}
	p, err := e.ensurePool()
	if err != nil {
		return err
	}
	nav, err := e.netAssetValue(p)
	if err != nil {
		return err
	}
	shares := e.sharesFromAssets(p, nav, amount)
	if shares.Sign() == 0 {
		return ErrInvalidAmount
	}
	if err := e.moveShares(from, to, shares); err != nil {
		return err
	}
	e.emit(SharesTransferred{From: from.Key(), To: to.Key(), Shares: shares})
	return nil
}
