package pool

import (
	"errors"
	"math/big"

	"liquidpool/core/events"
	"liquidpool/core/types"
	"liquidpool/crypto"
	nativecommon "liquidpool/native/common"
)

var (
	errNilState = errors.New("pool engine: state not configured")
	errNilTiers = errors.New("pool engine: liquidity tiers not configured")

	// ErrReentrancy is returned when a collaborator re-enters a guarded
	// entry point while another one is still in flight.
	ErrReentrancy = errors.New("pool engine: reentrant call blocked")

	ErrInvalidAmount         = errors.New("pool engine: amount must be positive")
	ErrInsufficientBalance   = errors.New("pool engine: insufficient balance")
	ErrInsufficientShares    = errors.New("pool engine: insufficient shares")
	ErrZeroAddress           = errors.New("pool engine: zero address")
	ErrAmountBelowMinimum    = errors.New("pool engine: first deposit must exceed the minimum liquidity floor")
	ErrDepositsPaused        = errors.New("pool engine: deposits paused")
	ErrMaxSupplyExceeded     = errors.New("pool engine: max supply exceeded")
	ErrRequestNotFound       = errors.New("pool engine: withdrawal request not found")
	ErrNotRequestOwner       = errors.New("pool engine: caller does not own request")
	ErrNotClaimable          = errors.New("pool engine: request not claimable")
	ErrRequestClosed         = errors.New("pool engine: request already claimed or canceled")
	ErrNoActiveRequests      = errors.New("pool engine: no active withdrawal requests")
	ErrInvalidPercentage     = errors.New("pool engine: percentage exceeds 10000 basis points")
	ErrInsufficientLiquidity = errors.New("pool engine: insufficient on-hand liquidity")
)

var basisPoints = big.NewInt(10_000)

const moduleName = "pool"

type engineState interface {
	PoolGet() (*Pool, error)
	PoolPut(*Pool) error
	GetAccount(addr crypto.Address) (*types.Account, error)
	PutAccount(addr crypto.Address, account *types.Account) error
	SharesGet(addr crypto.Address) (*big.Int, error)
	SharesPut(addr crypto.Address, shares *big.Int) error
	RequestGet(id uint64) (*WithdrawalRequest, error)
	RequestPut(req *WithdrawalRequest) error
	RequestIndexGet(addr crypto.Address) ([]uint64, error)
	RequestIndexPut(addr crypto.Address, ids []uint64) error
	RequestSlotGet(id uint64) (uint64, bool, error)
	RequestSlotPut(id uint64, slot uint64) error
	RequestSlotDelete(id uint64) error
	ActiveRequestsGet() ([]uint64, error)
	ActiveRequestsPut(ids []uint64) error
}

// ReserveTier is the yield-bearing liquidity source drained second in the
// waterfall. Withdraw may return more than requested when yield accrued.
type ReserveTier interface {
	TotalReserves() (*big.Int, error)
	Deposit(from crypto.Address, amount *big.Int) error
	Withdraw(to crypto.Address, amount *big.Int) (*big.Int, error)
}

// LendingTier is the interest-free credit facility drained third.
type LendingTier interface {
	TotalLoaned() (*big.Int, error)
	TotalBought() (*big.Int, error)
	AvailableToLend() *big.Int
	PurchasingPower() *big.Int
	Borrow(borrower crypto.Address, amount *big.Int) (*big.Int, error)
	Repay(payer crypto.Address, amount *big.Int) (*big.Int, error)
	BuyAndBorrow(borrower crypto.Address, amount *big.Int) (*big.Int, error)
	RepayBought(payer crypto.Address, amount *big.Int) (*big.Int, error)
}

// AssetVault converts between the native asset and its wrapped pool form.
type AssetVault interface {
	Wrap(addr crypto.Address, amount *big.Int) error
	Unwrap(addr crypto.Address, amount *big.Int) error
}

// Engine orchestrates the pool's share accounting, the liquidity waterfall,
// the withdrawal request queue and the daily rebalance.
//
// All mutating entry points must be serialized by the caller (the daemon owns
// a single lock over the engine). The engine's own guard only defends against
// reentrant calls made by collaborators while an operation is in flight.
type Engine struct {
	state            engineState
	emitter          events.Emitter
	pauses           nativecommon.PauseView
	roles            nativecommon.RoleView
	vault            AssetVault
	reserve          ReserveTier
	lending          LendingTier
	moduleAddress    crypto.Address
	burnAddress      crypto.Address
	custodianAddress crypto.Address
	atomicBuy        bool
	busy             bool
}

// NewEngine constructs a pool engine bound to its custody, burn, and network
// custodian addresses.
func NewEngine(moduleAddr, burnAddr, custodianAddr crypto.Address) *Engine {
	return &Engine{
		emitter:          events.NoopEmitter{},
		moduleAddress:    moduleAddr,
		burnAddress:      burnAddr,
		custodianAddress: custodianAddr,
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetRoles wires the role table gating the administrative surface. A nil
// view grants everything.
func (e *Engine) SetRoles(r nativecommon.RoleView) { e.roles = r }

// SetTiers wires the liquidity collaborators consumed by the waterfall.
func (e *Engine) SetTiers(vault AssetVault, reserve ReserveTier, lending LendingTier) {
	e.vault = vault
	e.reserve = reserve
	e.lending = lending
}

// SetAtomicBuy toggles the lending tier's atomic-purchase extension as a
// fourth waterfall step.
func (e *Engine) SetAtomicBuy(enabled bool) { e.atomicBuy = enabled }

// ModuleAddress returns the engine's custody address.
func (e *Engine) ModuleAddress() crypto.Address { return e.moduleAddress }

// BurnAddress returns the sink holding the permanent minimum-liquidity shares.
func (e *Engine) BurnAddress() crypto.Address { return e.burnAddress }

// CustodianAddress returns the network custodian's address.
func (e *Engine) CustodianAddress() crypto.Address { return e.custodianAddress }

func (e *Engine) emit(ev events.Event) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(ev)
}

func (e *Engine) begin() error {
	if e.busy {
		return ErrReentrancy
	}
	e.busy = true
	return nil
}

func (e *Engine) end() { e.busy = false }

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.vault == nil || e.reserve == nil || e.lending == nil {
		return errNilTiers
	}
	return nil
}

func (e *Engine) ensurePool() (*Pool, error) {
	p, err := e.state.PoolGet()
	if err != nil {
		return nil, err
	}
	return p.Normalize(), nil
}

func (e *Engine) loadAccount(addr crypto.Address) (*types.Account, error) {
	account, err := e.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return account.Normalize(), nil
}

func isZeroAddress(addr crypto.Address) bool {
	for _, b := range addr.Bytes() {
		if b != 0 {
			return false
		}
	}
	return true
}

// onHand reports the custody account's total holdings, native plus wrapped.
func (e *Engine) onHand() (*types.Account, *big.Int, error) {
	module, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return nil, nil, err
	}
	total := new(big.Int).Add(module.BalanceLQD, module.BalanceWLQD)
	return module, total, nil
}

// netAssetValue computes the pool's NAV: on-hand plus reserves plus the
// custodian's presumed holdings, minus outstanding lending debt.
func (e *Engine) netAssetValue(p *Pool) (*big.Int, error) {
	_, onHand, err := e.onHand()
	if err != nil {
		return nil, err
	}
	reserves, err := e.reserve.TotalReserves()
	if err != nil {
		return nil, err
	}
	loaned, err := e.lending.TotalLoaned()
	if err != nil {
		return nil, err
	}
	nav := new(big.Int).Add(onHand, reserves)
	nav.Add(nav, p.TotalNetworkAmount)
	nav.Sub(nav, loaned)
	if nav.Sign() < 0 {
		nav.SetInt64(0)
	}
	return nav, nil
}

// Deposit converts the caller's native asset into pool shares after routing
// the inflow through the repayment waterfall. The minted share amount is
// returned.
func (e *Engine) Deposit(caller crypto.Address, amount *big.Int) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.begin(); err != nil {
		return nil, err
	}
	defer e.end()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if isZeroAddress(caller) {
		return nil, ErrZeroAddress
	}

	p, err := e.ensurePool()
	if err != nil {
		return nil, err
	}
	if p.DepositsPaused {
		return nil, ErrDepositsPaused
	}

	nav, err := e.netAssetValue(p)
	if err != nil {
		return nil, err
	}
	if p.MaxSupply.Sign() > 0 {
		projected := new(big.Int).Add(nav, amount)
		if projected.Cmp(p.MaxSupply) > 0 {
			return nil, ErrMaxSupplyExceeded
		}
	}

	depositor, err := e.loadAccount(caller)
	if err != nil {
		return nil, err
	}
	if depositor.BalanceLQD.Cmp(amount) < 0 {
		return nil, ErrInsufficientBalance
	}

	// Shares are priced before the deposit enters the pool's funds.
	var minted *big.Int
	if p.TotalShares.Sign() == 0 {
		if amount.Cmp(big.NewInt(MinimumLiquidity)) <= 0 {
			return nil, ErrAmountBelowMinimum
		}
		floor := big.NewInt(MinimumLiquidity)
		if err := e.mintShares(p, e.burnAddress, floor); err != nil {
			return nil, err
		}
		minted = new(big.Int).Sub(amount, floor)
	} else {
		minted = e.sharesFromAssets(p, nav, amount)
		if minted.Sign() == 0 {
			return nil, ErrInvalidAmount
		}
	}
	if err := e.mintShares(p, caller, minted); err != nil {
		return nil, err
	}

	module, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return nil, err
	}
	depositor.BalanceLQD = new(big.Int).Sub(depositor.BalanceLQD, amount)
	module.BalanceLQD = new(big.Int).Add(module.BalanceLQD, amount)
	if err := e.state.PutAccount(caller, depositor); err != nil {
		return nil, err
	}
	if err := e.state.PutAccount(e.moduleAddress, module); err != nil {
		return nil, err
	}

	if err := e.routeInflow(p, amount); err != nil {
		return nil, err
	}
	if err := e.state.PoolPut(p); err != nil {
		return nil, err
	}

	e.emit(Deposited{User: caller.Key(), Amount: amount, Shares: minted})
	return minted, nil
}

// Withdraw walks the liquidity waterfall for the requested amount. The
// receipt reports the portion paid immediately and, when liquidity ran out,
// the queued request covering the remainder. Once preconditions pass the
// operation cannot fail on illiquidity; it degrades to queuing.
func (e *Engine) Withdraw(caller crypto.Address, amount *big.Int) (*WithdrawalReceipt, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.begin(); err != nil {
		return nil, err
	}
	defer e.end()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	p, err := e.ensurePool()
	if err != nil {
		return nil, err
	}
	nav, err := e.netAssetValue(p)
	if err != nil {
		return nil, err
	}
	holderShares, err := e.sharesOf(caller)
	if err != nil {
		return nil, err
	}
	if amount.Cmp(e.assetsFromShares(p, nav, holderShares)) > 0 {
		return nil, ErrInsufficientBalance
	}

	remaining := new(big.Int).Set(amount)

	// Tier 1: on-hand working liquidity. Native funds are earmarked for the
	// queue; only the wrapped balance is spendable here.
	module, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return nil, err
	}
	take := new(big.Int).Set(remaining)
	if take.Cmp(module.BalanceWLQD) > 0 {
		take.Set(module.BalanceWLQD)
	}
	remaining.Sub(remaining, take)

	// Tier 2: reserve pool.
	if remaining.Sign() > 0 {
		reserves, err := e.reserve.TotalReserves()
		if err != nil {
			return nil, err
		}
		pull := new(big.Int).Set(remaining)
		if pull.Cmp(reserves) > 0 {
			pull.Set(reserves)
		}
		if pull.Sign() > 0 {
			if _, err := e.reserve.Withdraw(e.moduleAddress, pull); err != nil {
				return nil, err
			}
			remaining.Sub(remaining, pull)
		}
	}

	// Tier 3: lending facility borrow.
	if remaining.Sign() > 0 {
		available := e.lending.AvailableToLend()
		borrow := new(big.Int).Set(remaining)
		if borrow.Cmp(available) > 0 {
			borrow.Set(available)
		}
		if borrow.Sign() > 0 {
			actual, err := e.lending.Borrow(e.moduleAddress, borrow)
			if err != nil {
				return nil, err
			}
			remaining.Sub(remaining, actual)
		}
	}

	// Tier 4 (optional): atomic purchase through the lending facility.
	if e.atomicBuy && remaining.Sign() > 0 {
		power := e.lending.PurchasingPower()
		buy := new(big.Int).Set(remaining)
		if buy.Cmp(power) > 0 {
			buy.Set(power)
		}
		if buy.Sign() > 0 {
			actual, err := e.lending.BuyAndBorrow(e.moduleAddress, buy)
			if err != nil {
				return nil, err
			}
			remaining.Sub(remaining, actual)
		}
	}

	paid := new(big.Int).Sub(amount, remaining)

	// Share amounts are fixed against the pre-payout exchange rate so the
	// queued remainder cannot be manipulated by later ratio moves.
	sharesPaid := e.sharesFromAssets(p, nav, paid)
	sharesQueued := e.sharesFromAssets(p, nav, remaining)

	receipt := &WithdrawalReceipt{PaidNow: paid, Queued: new(big.Int).Set(remaining)}

	if remaining.Sign() > 0 {
		p.Throttled = true
		req, err := e.createRequest(p, caller, remaining, sharesQueued)
		if err != nil {
			return nil, err
		}
		if err := e.moveShares(caller, e.moduleAddress, sharesQueued); err != nil {
			return nil, err
		}
		receipt.RequestID = req.ID
		receipt.HasQueued = true
		e.emit(WithdrawalQueued{User: caller.Key(), RequestID: req.ID, Amount: remaining, Shares: sharesQueued})
	}

	if paid.Sign() > 0 {
		if err := e.burnShares(p, caller, sharesPaid); err != nil {
			return nil, err
		}
		if err := e.payOut(caller, paid); err != nil {
			return nil, err
		}
		e.emit(WithdrawalCompleted{User: caller.Key(), Amount: paid, Shares: sharesPaid})
	}

	if err := e.state.PoolPut(p); err != nil {
		return nil, err
	}
	return receipt, nil
}

// payOut sends amount of native asset from the custody account to the
// recipient. Wrapped working funds are unwrapped first so the native balance
// earmarked for the request queue is touched last.
func (e *Engine) payOut(to crypto.Address, amount *big.Int) error {
	module, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return err
	}
	unwrap := new(big.Int).Set(amount)
	if unwrap.Cmp(module.BalanceWLQD) > 0 {
		unwrap.Set(module.BalanceWLQD)
	}
	if unwrap.Sign() > 0 {
		if err := e.vault.Unwrap(e.moduleAddress, unwrap); err != nil {
			return err
		}
		module, err = e.loadAccount(e.moduleAddress)
		if err != nil {
			return err
		}
	}
	if module.BalanceLQD.Cmp(amount) < 0 {
		return ErrInsufficientLiquidity
	}
	recipient, err := e.loadAccount(to)
	if err != nil {
		return err
	}
	module.BalanceLQD = new(big.Int).Sub(module.BalanceLQD, amount)
	recipient.BalanceLQD = new(big.Int).Add(recipient.BalanceLQD, amount)
	if err := e.state.PutAccount(e.moduleAddress, module); err != nil {
		return err
	}
	return e.state.PutAccount(to, recipient)
}

// routeInflow applies the repayment waterfall to a fresh inflow that has
// already landed on the custody account in native form: fund the request
// queue's watermark, rebalance the native/wrapped custody split, then repay
// lending debt. Whatever remains stays on-hand in wrapped form for the next
// rebalance to sweep.
func (e *Engine) routeInflow(p *Pool, amount *big.Int) error {
	// Advance the queue watermark with the fresh funding. Dead windows left
	// by canceled requests need no funding; the watermark jumps them for
	// free as it reaches them, so the advance walks from dead window to dead
	// window.
	unfunded := new(big.Int).Sub(p.TotalWithdrawRequestQueuedAmount, p.TotalWithdrawRequestCompletedAmount)
	unfunded.Sub(unfunded, p.skippedTotal())
	if unfunded.Sign() > 0 {
		advance := new(big.Int).Set(amount)
		if advance.Cmp(unfunded) > 0 {
			advance.Set(unfunded)
		}
		for advance.Sign() > 0 {
			step := new(big.Int).Set(advance)
			if len(p.SkippedWindows) > 0 {
				gap := new(big.Int).Sub(p.SkippedWindows[0].Start, p.TotalWithdrawRequestCompletedAmount)
				if gap.Cmp(step) < 0 {
					step.Set(gap)
				}
			}
			p.TotalWithdrawRequestCompletedAmount = new(big.Int).Add(p.TotalWithdrawRequestCompletedAmount, step)
			advance.Sub(advance, step)
			p.consumeSkippedWindows()
		}
	}

	if err := e.rebalanceCustody(p); err != nil {
		return err
	}

	return e.repayDebts()
}

// repayDebts pushes as much of the custody account's working liquidity as
// possible against outstanding lending debt. Purchased debt settles first,
// ordinary loans second.
func (e *Engine) repayDebts() error {
	module, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return err
	}
	bought, err := e.lending.TotalBought()
	if err != nil {
		return err
	}
	if bought.Sign() > 0 && module.BalanceWLQD.Sign() > 0 {
		repay := new(big.Int).Set(module.BalanceWLQD)
		if repay.Cmp(bought) > 0 {
			repay.Set(bought)
		}
		if _, err := e.lending.RepayBought(e.moduleAddress, repay); err != nil {
			return err
		}
		module, err = e.loadAccount(e.moduleAddress)
		if err != nil {
			return err
		}
	}
	total, err := e.lending.TotalLoaned()
	if err != nil {
		return err
	}
	bought, err = e.lending.TotalBought()
	if err != nil {
		return err
	}
	loaned := new(big.Int).Sub(total, bought)
	if loaned.Sign() > 0 && module.BalanceWLQD.Sign() > 0 {
		repay := new(big.Int).Set(module.BalanceWLQD)
		if repay.Cmp(loaned) > 0 {
			repay.Set(loaned)
		}
		if _, err := e.lending.Repay(e.moduleAddress, repay); err != nil {
			return err
		}
	}
	return nil
}

// rebalanceCustody keeps the custody account's native balance matched to the
// queue's outstanding total, wrapping any surplus into working form and
// unwrapping to cover a shortfall.
func (e *Engine) rebalanceCustody(p *Pool) error {
	module, total, err := e.onHand()
	if err != nil {
		return err
	}
	target := new(big.Int).Set(p.WithdrawRequestOutstandingTotal)
	if target.Cmp(total) > 0 {
		target.Set(total)
	}
	switch module.BalanceLQD.Cmp(target) {
	case 1:
		surplus := new(big.Int).Sub(module.BalanceLQD, target)
		return e.vault.Wrap(e.moduleAddress, surplus)
	case -1:
		shortfall := new(big.Int).Sub(target, module.BalanceLQD)
		return e.vault.Unwrap(e.moduleAddress, shortfall)
	}
	return nil
}

// --- Read-only queries ---

// BalanceOf reports the holder's share balance converted to asset units.
func (e *Engine) BalanceOf(addr crypto.Address) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	p, err := e.ensurePool()
	if err != nil {
		return nil, err
	}
	nav, err := e.netAssetValue(p)
	if err != nil {
		return nil, err
	}
	shares, err := e.sharesOf(addr)
	if err != nil {
		return nil, err
	}
	return e.assetsFromShares(p, nav, shares), nil
}

// SharesOf reports the holder's raw share balance.
func (e *Engine) SharesOf(addr crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.sharesOf(addr)
}

// TotalAssetValue reports the pool's net asset value.
func (e *Engine) TotalAssetValue() (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	p, err := e.ensurePool()
	if err != nil {
		return nil, err
	}
	return e.netAssetValue(p)
}

// Liquidity reports how much a withdrawal could be paid immediately across
// every tier the waterfall can drain.
func (e *Engine) Liquidity() (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	module, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return nil, err
	}
	reserves, err := e.reserve.TotalReserves()
	if err != nil {
		return nil, err
	}
	total := new(big.Int).Add(module.BalanceWLQD, reserves)
	total.Add(total, e.lending.AvailableToLend())
	if e.atomicBuy {
		total.Add(total, e.lending.PurchasingPower())
	}
	return total, nil
}

// WillThrottle reports whether withdrawing the amount right now would fall
// through to the request queue.
func (e *Engine) WillThrottle(amount *big.Int) (bool, error) {
	if amount == nil || amount.Sign() <= 0 {
		return false, ErrInvalidAmount
	}
	liquidity, err := e.Liquidity()
	if err != nil {
		return false, err
	}
	return amount.Cmp(liquidity) > 0, nil
}

// PoolState returns a copy of the pool's global record.
func (e *Engine) PoolState() (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	p, err := e.ensurePool()
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// --- Administrative surface ---

func (e *Engine) requireAdmin(caller crypto.Address) error {
	return nativecommon.RequireRole(e.roles, nativecommon.RolePoolAdmin, caller.Key())
}

// SetReservePercentage updates the reserve tier's target ratio.
func (e *Engine) SetReservePercentage(caller crypto.Address, bps uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if bps > 10_000 {
		return ErrInvalidPercentage
	}
	p, err := e.ensurePool()
	if err != nil {
		return err
	}
	p.ReservePercentageBps = bps
	return e.state.PoolPut(p)
}

// RestoreNetwork clears the sticky throttle flag.
func (e *Engine) RestoreNetwork(caller crypto.Address) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	p, err := e.ensurePool()
	if err != nil {
		return err
	}
	p.Throttled = false
	return e.state.PoolPut(p)
}

// SetNetworkTotal overwrites the custodian's presumed holdings.
func (e *Engine) SetNetworkTotal(caller crypto.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	p, err := e.ensurePool()
	if err != nil {
		return err
	}
	p.TotalNetworkAmount = new(big.Int).Set(amount)
	return e.state.PoolPut(p)
}

// IncreaseNetworkTotal credits yield accrued by the custodian off-system.
// This is how staking rewards enter the exchange rate.
func (e *Engine) IncreaseNetworkTotal(caller crypto.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	p, err := e.ensurePool()
	if err != nil {
		return err
	}
	p.TotalNetworkAmount = new(big.Int).Add(p.TotalNetworkAmount, amount)
	return e.state.PoolPut(p)
}

// SetMaxSupply caps the pool's net asset value. Zero removes the cap.
func (e *Engine) SetMaxSupply(caller crypto.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	p, err := e.ensurePool()
	if err != nil {
		return err
	}
	p.MaxSupply = new(big.Int).Set(amount)
	return e.state.PoolPut(p)
}

// PauseDeposits halts new deposits.
func (e *Engine) PauseDeposits(caller crypto.Address) error {
	return e.setDepositsPaused(caller, true)
}

// ResumeDeposits re-enables deposits.
func (e *Engine) ResumeDeposits(caller crypto.Address) error {
	return e.setDepositsPaused(caller, false)
}

func (e *Engine) setDepositsPaused(caller crypto.Address, paused bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	p, err := e.ensurePool()
	if err != nil {
		return err
	}
	p.DepositsPaused = paused
	return e.state.PoolPut(p)
}

// FulfillWithdrawal injects custodian funds back through the inflow path,
// funding queued requests first. The custodian's presumed holdings shrink by
// the amount injected.
func (e *Engine) FulfillWithdrawal(caller crypto.Address, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.RequireRole(e.roles, nativecommon.RoleCustodian, caller.Key()); err != nil {
		return err
	}
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	p, err := e.ensurePool()
	if err != nil {
		return err
	}

	custodian, err := e.loadAccount(e.custodianAddress)
	if err != nil {
		return err
	}
	if custodian.BalanceLQD.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	module, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return err
	}
	custodian.BalanceLQD = new(big.Int).Sub(custodian.BalanceLQD, amount)
	module.BalanceLQD = new(big.Int).Add(module.BalanceLQD, amount)
	if err := e.state.PutAccount(e.custodianAddress, custodian); err != nil {
		return err
	}
	if err := e.state.PutAccount(e.moduleAddress, module); err != nil {
		return err
	}

	drawn := new(big.Int).Set(amount)
	if drawn.Cmp(p.TotalNetworkAmount) > 0 {
		drawn.Set(p.TotalNetworkAmount)
	}
	p.TotalNetworkAmount = new(big.Int).Sub(p.TotalNetworkAmount, drawn)

	if err := e.routeInflow(p, amount); err != nil {
		return err
	}
	if err := e.state.PoolPut(p); err != nil {
		return err
	}
	e.emit(NetworkFulfilled{Amount: amount})
	return nil
}
