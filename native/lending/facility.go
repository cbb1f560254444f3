package lending

import (
	"errors"
	"math/big"

	"liquidpool/core/types"
	"liquidpool/crypto"
)

var (
	errNilState            = errors.New("lending facility: state not configured")
	errInvalidAmount       = errors.New("lending facility: amount must be positive")
	errNotWhitelisted      = errors.New("lending facility: borrower not whitelisted")
	errInsufficientBalance = errors.New("lending facility: insufficient balance")
	errNoDebtToRepay       = errors.New("lending facility: no outstanding debt to repay")
	errNoQuoter            = errors.New("lending facility: quoter not configured")
)

type facilityState interface {
	GetAccount(addr crypto.Address) (*types.Account, error)
	PutAccount(addr crypto.Address, account *types.Account) error
	LoanBookGet() (*LoanBook, error)
	LoanBookPut(book *LoanBook) error
}

// LoanBook records the facility's outstanding debt, split between ordinary
// loans and purchased credit. It is persisted through state so the debt
// offsets survive a restart together with the balances they explain.
type LoanBook struct {
	Loaned *big.Int `json:"loaned"`
	Bought *big.Int `json:"bought"`
}

func (b *LoanBook) Normalize() *LoanBook {
	if b == nil {
		b = &LoanBook{}
	}
	if b.Loaned == nil {
		b.Loaned = big.NewInt(0)
	}
	if b.Bought == nil {
		b.Bought = big.NewInt(0)
	}
	return b
}

// Quoter prices conversions between the stable asset and the wrapped pool
// asset for the atomic-purchase extension. Implementations typically front a
// DEX pair; the facility only needs the spot quote.
type Quoter interface {
	StableToPool(amount *big.Int) *big.Int
	PoolToStable(amount *big.Int) *big.Int
}

// FixedQuote is a constant-rate quoter: pool = stable * Num / Den.
type FixedQuote struct {
	Num *big.Int
	Den *big.Int
}

func (q FixedQuote) StableToPool(amount *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 || q.Num == nil || q.Den == nil || q.Den.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, q.Num)
	return out.Quo(out, q.Den)
}

func (q FixedQuote) PoolToStable(amount *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 || q.Num == nil || q.Num.Sign() == 0 || q.Den == nil {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, q.Den)
	return out.Quo(out, q.Num)
}

// Facility is a whitelisted, interest-free credit line over pooled wrapped
// liquidity. The pool engine borrows from it to bridge short-term withdrawal
// gaps and repays it with priority on every inflow.
type Facility struct {
	state         facilityState
	moduleAddress crypto.Address
	borrowers     map[[20]byte]bool
	quote         Quoter
}

func NewFacility(moduleAddr crypto.Address) *Facility {
	return &Facility{
		moduleAddress: moduleAddr,
		borrowers:     make(map[[20]byte]bool),
	}
}

// SetState wires the facility to the shared account state.
func (f *Facility) SetState(state facilityState) { f.state = state }

// SetQuoter enables the atomic-purchase extension.
func (f *Facility) SetQuoter(q Quoter) { f.quote = q }

// ModuleAddress returns the account holding the facility's lendable funds.
func (f *Facility) ModuleAddress() crypto.Address { return f.moduleAddress }

// Whitelist authorizes an address to borrow.
func (f *Facility) Whitelist(addr crypto.Address) {
	f.borrowers[addr.Key()] = true
}

func (f *Facility) book() (*LoanBook, error) {
	if f == nil || f.state == nil {
		return nil, errNilState
	}
	book, err := f.state.LoanBookGet()
	if err != nil {
		return nil, err
	}
	return book.Normalize(), nil
}

// TotalLoaned reports outstanding debt across ordinary and purchased credit.
func (f *Facility) TotalLoaned() (*big.Int, error) {
	book, err := f.book()
	if err != nil {
		return nil, err
	}
	return new(big.Int).Add(book.Loaned, book.Bought), nil
}

// TotalBought reports the portion of debt backed by stable-asset purchases.
func (f *Facility) TotalBought() (*big.Int, error) {
	book, err := f.book()
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(book.Bought), nil
}

// AvailableToLend reports how much wrapped liquidity the facility could lend
// right now.
func (f *Facility) AvailableToLend() *big.Int {
	if f == nil || f.state == nil {
		return big.NewInt(0)
	}
	account, err := f.state.GetAccount(f.moduleAddress)
	if err != nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(account.Normalize().BalanceWLQD)
}

// PurchasingPower reports how much wrapped asset the facility's stable
// holdings could buy at the current quote.
func (f *Facility) PurchasingPower() *big.Int {
	if f == nil || f.state == nil || f.quote == nil {
		return big.NewInt(0)
	}
	account, err := f.state.GetAccount(f.moduleAddress)
	if err != nil {
		return big.NewInt(0)
	}
	return f.quote.StableToPool(account.Normalize().BalanceStable)
}

// Borrow moves up to amount of wrapped funds to the borrower and records the
// debt. The amount actually lent is returned.
func (f *Facility) Borrow(borrower crypto.Address, amount *big.Int) (*big.Int, error) {
	if f == nil || f.state == nil {
		return nil, errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	if !f.borrowers[borrower.Key()] {
		return nil, errNotWhitelisted
	}
	book, err := f.book()
	if err != nil {
		return nil, err
	}

	module, err := f.state.GetAccount(f.moduleAddress)
	if err != nil {
		return nil, err
	}
	module = module.Normalize()
	actual := new(big.Int).Set(amount)
	if actual.Cmp(module.BalanceWLQD) > 0 {
		actual.Set(module.BalanceWLQD)
	}
	if actual.Sign() == 0 {
		return big.NewInt(0), nil
	}

	target, err := f.state.GetAccount(borrower)
	if err != nil {
		return nil, err
	}
	target = target.Normalize()

	module.BalanceWLQD = new(big.Int).Sub(module.BalanceWLQD, actual)
	target.BalanceWLQD = new(big.Int).Add(target.BalanceWLQD, actual)

	if err := f.state.PutAccount(f.moduleAddress, module); err != nil {
		return nil, err
	}
	if err := f.state.PutAccount(borrower, target); err != nil {
		return nil, err
	}
	book.Loaned = new(big.Int).Add(book.Loaned, actual)
	if err := f.state.LoanBookPut(book); err != nil {
		return nil, err
	}
	return actual, nil
}

// Repay settles ordinary debt from the payer's wrapped balance. The amount
// actually repaid is returned.
func (f *Facility) Repay(payer crypto.Address, amount *big.Int) (*big.Int, error) {
	if f == nil || f.state == nil {
		return nil, errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	book, err := f.book()
	if err != nil {
		return nil, err
	}
	if book.Loaned.Sign() == 0 {
		return nil, errNoDebtToRepay
	}

	actual := new(big.Int).Set(amount)
	if actual.Cmp(book.Loaned) > 0 {
		actual.Set(book.Loaned)
	}

	payerAcc, err := f.state.GetAccount(payer)
	if err != nil {
		return nil, err
	}
	payerAcc = payerAcc.Normalize()
	if payerAcc.BalanceWLQD.Cmp(actual) < 0 {
		return nil, errInsufficientBalance
	}
	module, err := f.state.GetAccount(f.moduleAddress)
	if err != nil {
		return nil, err
	}
	module = module.Normalize()

	payerAcc.BalanceWLQD = new(big.Int).Sub(payerAcc.BalanceWLQD, actual)
	module.BalanceWLQD = new(big.Int).Add(module.BalanceWLQD, actual)

	if err := f.state.PutAccount(payer, payerAcc); err != nil {
		return nil, err
	}
	if err := f.state.PutAccount(f.moduleAddress, module); err != nil {
		return nil, err
	}
	book.Loaned = new(big.Int).Sub(book.Loaned, actual)
	if err := f.state.LoanBookPut(book); err != nil {
		return nil, err
	}
	return actual, nil
}

// BuyAndBorrow spends the facility's stable holdings to buy up to amount of
// the wrapped asset at the current quote and lends the purchase to the
// borrower atomically. The amount actually lent is returned.
func (f *Facility) BuyAndBorrow(borrower crypto.Address, amount *big.Int) (*big.Int, error) {
	if f == nil || f.state == nil {
		return nil, errNilState
	}
	if f.quote == nil {
		return nil, errNoQuoter
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	if !f.borrowers[borrower.Key()] {
		return nil, errNotWhitelisted
	}
	book, err := f.book()
	if err != nil {
		return nil, err
	}

	actual := new(big.Int).Set(amount)
	if power := f.PurchasingPower(); actual.Cmp(power) > 0 {
		actual.Set(power)
	}
	if actual.Sign() == 0 {
		return big.NewInt(0), nil
	}
	cost := f.quote.PoolToStable(actual)

	module, err := f.state.GetAccount(f.moduleAddress)
	if err != nil {
		return nil, err
	}
	module = module.Normalize()
	if module.BalanceStable.Cmp(cost) < 0 {
		return nil, errInsufficientBalance
	}
	target, err := f.state.GetAccount(borrower)
	if err != nil {
		return nil, err
	}
	target = target.Normalize()

	// The stable leg settles against the DEX; only the purchased wrapped
	// asset enters account state.
	module.BalanceStable = new(big.Int).Sub(module.BalanceStable, cost)
	target.BalanceWLQD = new(big.Int).Add(target.BalanceWLQD, actual)

	if err := f.state.PutAccount(f.moduleAddress, module); err != nil {
		return nil, err
	}
	if err := f.state.PutAccount(borrower, target); err != nil {
		return nil, err
	}
	book.Bought = new(big.Int).Add(book.Bought, actual)
	if err := f.state.LoanBookPut(book); err != nil {
		return nil, err
	}
	return actual, nil
}

// RepayBought settles purchased debt: wrapped funds leave the payer, are sold
// back at the current quote, and the proceeds restore the facility's stable
// holdings. The amount actually repaid is returned.
func (f *Facility) RepayBought(payer crypto.Address, amount *big.Int) (*big.Int, error) {
	if f == nil || f.state == nil {
		return nil, errNilState
	}
	if f.quote == nil {
		return nil, errNoQuoter
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	book, err := f.book()
	if err != nil {
		return nil, err
	}
	if book.Bought.Sign() == 0 {
		return nil, errNoDebtToRepay
	}

	actual := new(big.Int).Set(amount)
	if actual.Cmp(book.Bought) > 0 {
		actual.Set(book.Bought)
	}

	payerAcc, err := f.state.GetAccount(payer)
	if err != nil {
		return nil, err
	}
	payerAcc = payerAcc.Normalize()
	if payerAcc.BalanceWLQD.Cmp(actual) < 0 {
		return nil, errInsufficientBalance
	}
	module, err := f.state.GetAccount(f.moduleAddress)
	if err != nil {
		return nil, err
	}
	module = module.Normalize()

	proceeds := f.quote.PoolToStable(actual)
	payerAcc.BalanceWLQD = new(big.Int).Sub(payerAcc.BalanceWLQD, actual)
	module.BalanceStable = new(big.Int).Add(module.BalanceStable, proceeds)

	if err := f.state.PutAccount(payer, payerAcc); err != nil {
		return nil, err
	}
	if err := f.state.PutAccount(f.moduleAddress, module); err != nil {
		return nil, err
	}
	book.Bought = new(big.Int).Sub(book.Bought, actual)
	if err := f.state.LoanBookPut(book); err != nil {
		return nil, err
	}
	return actual, nil
}

// FundStable seeds the facility's stable balance. Funding is an
// administrative concern; the pool engine never calls this.
func (f *Facility) FundStable(from crypto.Address, amount *big.Int) error {
	return f.fund(from, amount, true)
}

// Fund seeds the facility's lendable wrapped balance.
func (f *Facility) Fund(from crypto.Address, amount *big.Int) error {
	return f.fund(from, amount, false)
}

func (f *Facility) fund(from crypto.Address, amount *big.Int, stable bool) error {
	if f == nil || f.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	source, err := f.state.GetAccount(from)
	if err != nil {
		return err
	}
	source = source.Normalize()
	module, err := f.state.GetAccount(f.moduleAddress)
	if err != nil {
		return err
	}
	module = module.Normalize()

	if stable {
		if source.BalanceStable.Cmp(amount) < 0 {
			return errInsufficientBalance
		}
		source.BalanceStable = new(big.Int).Sub(source.BalanceStable, amount)
		module.BalanceStable = new(big.Int).Add(module.BalanceStable, amount)
	} else {
		if source.BalanceWLQD.Cmp(amount) < 0 {
			return errInsufficientBalance
		}
		source.BalanceWLQD = new(big.Int).Sub(source.BalanceWLQD, amount)
		module.BalanceWLQD = new(big.Int).Add(module.BalanceWLQD, amount)
	}

	if err := f.state.PutAccount(from, source); err != nil {
		return err
	}
	return f.state.PutAccount(f.moduleAddress, module)
}
