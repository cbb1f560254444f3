package reserve

import (
	"errors"
	"math/big"
)

var errStrategyBalance = errors.New("reserve strategy: insufficient balance")

// HoldStrategy is the reference strategy implementation: a plain purse that
// accrues yield only when credited externally. It exists so the tier's
// weighted distribution can be exercised without a real venue.
type HoldStrategy struct {
	balance *big.Int
}

func NewHoldStrategy() *HoldStrategy {
	return &HoldStrategy{balance: big.NewInt(0)}
}

func (s *HoldStrategy) Balance() (*big.Int, error) {
	return new(big.Int).Set(s.balance), nil
}

func (s *HoldStrategy) Deposit(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	s.balance = new(big.Int).Add(s.balance, amount)
	return nil
}

func (s *HoldStrategy) Withdraw(amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	if s.balance.Cmp(amount) < 0 {
		return nil, errStrategyBalance
	}
	s.balance = new(big.Int).Sub(s.balance, amount)
	return new(big.Int).Set(amount), nil
}

// CreditYield adds externally accrued yield to the strategy's holdings.
func (s *HoldStrategy) CreditYield(amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	s.balance = new(big.Int).Add(s.balance, amount)
}
