package reserve

import (
	"errors"
	"fmt"
	"math/big"

	"liquidpool/core/types"
	"liquidpool/crypto"
)

var (
	errNilState            = errors.New("reserve tier: state not configured")
	errInvalidAmount       = errors.New("reserve tier: amount must be positive")
	errInsufficientBalance = errors.New("reserve tier: insufficient balance")
	errSlotOutOfRange      = errors.New("reserve tier: strategy slot out of range")
	errSlotReserved        = errors.New("reserve tier: slot 0 holds funds directly")
	errNilStrategy         = errors.New("reserve tier: strategy must not be nil")
)

// MaxStrategies bounds the allocation table, including the implicit slot 0
// hold-directly allocation.
const MaxStrategies = 8

type reserveState interface {
	GetAccount(addr crypto.Address) (*types.Account, error)
	PutAccount(addr crypto.Address, account *types.Account) error
	ReservePrincipalsGet() ([]*big.Int, error)
	ReservePrincipalsPut(principals []*big.Int) error
}

// Strategy is a pluggable yield venue the tier can delegate wrapped funds to.
// A frozen or otherwise unavailable strategy must fail from Balance() so the
// tier can abort before moving any funds.
type Strategy interface {
	Balance() (*big.Int, error)
	Deposit(amount *big.Int) error
	Withdraw(amount *big.Int) (*big.Int, error)
}

// Allocation pairs a strategy with its distribution weight. The principal
// pushed into each slot is persisted through state so it survives a restart.
type Allocation struct {
	Strategy Strategy
	Weight   uint64
}

// Tier holds a slice of the pooled wrapped asset and optionally sub-delegates
// it proportionally by weight across the allocation table. Slot 0 is the
// implicit "hold funds directly" allocation backed by the tier's module
// account.
type Tier struct {
	state         reserveState
	moduleAddress crypto.Address
	allocations   [MaxStrategies]Allocation
}

func NewTier(moduleAddr crypto.Address) *Tier {
	t := &Tier{moduleAddress: moduleAddr}
	t.allocations[0] = Allocation{Weight: 1}
	return t
}

// SetState wires the tier to the shared account state.
func (t *Tier) SetState(state reserveState) { t.state = state }

// ModuleAddress returns the account holding the tier's direct funds.
func (t *Tier) ModuleAddress() crypto.Address { return t.moduleAddress }

// SetStrategy installs or replaces a strategy in the given slot. Slot 0 is
// reserved for direct holdings.
func (t *Tier) SetStrategy(slot int, strategy Strategy, weight uint64) error {
	if slot == 0 {
		return errSlotReserved
	}
	if slot < 0 || slot >= MaxStrategies {
		return errSlotOutOfRange
	}
	if strategy == nil {
		return errNilStrategy
	}
	t.allocations[slot] = Allocation{Strategy: strategy, Weight: weight}
	return nil
}

// Principals returns the persisted per-slot principal table.
func (t *Tier) Principals() ([]*big.Int, error) {
	if t == nil || t.state == nil {
		return nil, errNilState
	}
	return t.loadPrincipals()
}

func (t *Tier) loadPrincipals() ([]*big.Int, error) {
	stored, err := t.state.ReservePrincipalsGet()
	if err != nil {
		return nil, err
	}
	principals := make([]*big.Int, MaxStrategies)
	for i := range principals {
		if i < len(stored) && stored[i] != nil {
			principals[i] = new(big.Int).Set(stored[i])
		} else {
			principals[i] = big.NewInt(0)
		}
	}
	return principals, nil
}

// SetDirectWeight adjusts the weight of the slot 0 hold-directly allocation.
func (t *Tier) SetDirectWeight(weight uint64) {
	t.allocations[0].Weight = weight
}

func (t *Tier) totalWeight() uint64 {
	var total uint64
	for i := range t.allocations {
		if i == 0 || t.allocations[i].Strategy != nil {
			total += t.allocations[i].Weight
		}
	}
	return total
}

// TotalReserves reports the tier's total holdings: direct funds plus every
// strategy balance, yield included. It fails if any strategy is unavailable.
func (t *Tier) TotalReserves() (*big.Int, error) {
	if t == nil || t.state == nil {
		return nil, errNilState
	}
	account, err := t.state.GetAccount(t.moduleAddress)
	if err != nil {
		return nil, err
	}
	total := new(big.Int).Set(account.Normalize().BalanceWLQD)
	for i := 1; i < MaxStrategies; i++ {
		strategy := t.allocations[i].Strategy
		if strategy == nil {
			continue
		}
		balance, err := strategy.Balance()
		if err != nil {
			return nil, fmt.Errorf("reserve tier: strategy slot %d: %w", i, err)
		}
		total.Add(total, balance)
	}
	return total, nil
}

// Deposit pulls amount of wrapped funds from the source account into the tier
// and distributes it across the allocation table by weight. Remainders from
// integer division stay in the direct allocation.
func (t *Tier) Deposit(from crypto.Address, amount *big.Int) error {
	if t == nil || t.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}

	// Plan the weighted split before touching any balance so a frozen
	// strategy aborts the whole deposit.
	shares := make([]*big.Int, MaxStrategies)
	totalWeight := t.totalWeight()
	remaining := new(big.Int).Set(amount)
	if totalWeight > 0 {
		weightInt := new(big.Int).SetUint64(totalWeight)
		for i := 1; i < MaxStrategies; i++ {
			alloc := t.allocations[i]
			if alloc.Strategy == nil || alloc.Weight == 0 {
				continue
			}
			if _, err := alloc.Strategy.Balance(); err != nil {
				return fmt.Errorf("reserve tier: strategy slot %d: %w", i, err)
			}
			share := new(big.Int).Mul(amount, new(big.Int).SetUint64(alloc.Weight))
			share.Quo(share, weightInt)
			if share.Sign() == 0 {
				continue
			}
			shares[i] = share
			remaining.Sub(remaining, share)
		}
	}

	source, err := t.state.GetAccount(from)
	if err != nil {
		return err
	}
	source = source.Normalize()
	if source.BalanceWLQD.Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	module, err := t.state.GetAccount(t.moduleAddress)
	if err != nil {
		return err
	}
	module = module.Normalize()

	source.BalanceWLQD = new(big.Int).Sub(source.BalanceWLQD, amount)
	module.BalanceWLQD = new(big.Int).Add(module.BalanceWLQD, remaining)

	if err := t.state.PutAccount(from, source); err != nil {
		return err
	}
	if err := t.state.PutAccount(t.moduleAddress, module); err != nil {
		return err
	}

	principals, err := t.loadPrincipals()
	if err != nil {
		return err
	}
	principals[0].Add(principals[0], remaining)
	for i := 1; i < MaxStrategies; i++ {
		if shares[i] == nil {
			continue
		}
		if err := t.allocations[i].Strategy.Deposit(shares[i]); err != nil {
			return fmt.Errorf("reserve tier: strategy slot %d: %w", i, err)
		}
		principals[i].Add(principals[i], shares[i])
	}
	return t.state.ReservePrincipalsPut(principals)
}

// Withdraw pulls amount of wrapped funds out of the tier into the destination
// account, draining direct holdings first and then strategies in slot order.
// The returned value may exceed the request when strategies pay out accrued
// yield alongside principal.
func (t *Tier) Withdraw(to crypto.Address, amount *big.Int) (*big.Int, error) {
	if t == nil || t.state == nil {
		return nil, errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}

	module, err := t.state.GetAccount(t.moduleAddress)
	if err != nil {
		return nil, err
	}
	module = module.Normalize()

	// Plan strategy pulls against live balances before mutating anything.
	remaining := new(big.Int).Set(amount)
	direct := module.BalanceWLQD
	fromDirect := new(big.Int).Set(remaining)
	if fromDirect.Cmp(direct) > 0 {
		fromDirect.Set(direct)
	}
	remaining.Sub(remaining, fromDirect)

	pulls := make([]*big.Int, MaxStrategies)
	for i := 1; i < MaxStrategies && remaining.Sign() > 0; i++ {
		strategy := t.allocations[i].Strategy
		if strategy == nil {
			continue
		}
		balance, err := strategy.Balance()
		if err != nil {
			return nil, fmt.Errorf("reserve tier: strategy slot %d: %w", i, err)
		}
		pull := new(big.Int).Set(remaining)
		if pull.Cmp(balance) > 0 {
			pull.Set(balance)
		}
		if pull.Sign() == 0 {
			continue
		}
		pulls[i] = pull
		remaining.Sub(remaining, pull)
	}
	if remaining.Sign() > 0 {
		return nil, errInsufficientBalance
	}

	principals, err := t.loadPrincipals()
	if err != nil {
		return nil, err
	}
	received := new(big.Int).Set(fromDirect)
	for i := 1; i < MaxStrategies; i++ {
		if pulls[i] == nil {
			continue
		}
		actual, err := t.allocations[i].Strategy.Withdraw(pulls[i])
		if err != nil {
			return nil, fmt.Errorf("reserve tier: strategy slot %d: %w", i, err)
		}
		received.Add(received, actual)
		if principals[i].Cmp(pulls[i]) > 0 {
			principals[i].Sub(principals[i], pulls[i])
		} else {
			principals[i] = big.NewInt(0)
		}
	}

	module.BalanceWLQD = new(big.Int).Sub(module.BalanceWLQD, fromDirect)
	if principals[0].Cmp(fromDirect) > 0 {
		principals[0].Sub(principals[0], fromDirect)
	} else {
		principals[0] = big.NewInt(0)
	}

	dest, err := t.state.GetAccount(to)
	if err != nil {
		return nil, err
	}
	dest = dest.Normalize()
	dest.BalanceWLQD = new(big.Int).Add(dest.BalanceWLQD, received)

	if err := t.state.PutAccount(t.moduleAddress, module); err != nil {
		return nil, err
	}
	if err := t.state.PutAccount(to, dest); err != nil {
		return nil, err
	}
	if err := t.state.ReservePrincipalsPut(principals); err != nil {
		return nil, err
	}
	return received, nil
}
