package lending

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"liquidpool/core/types"
	"liquidpool/crypto"
)

type mockState struct {
	accounts map[[20]byte]*types.Account
	book     *LoanBook
}

func newMockState() *mockState {
	return &mockState{accounts: make(map[[20]byte]*types.Account)}
}

func (m *mockState) LoanBookGet() (*LoanBook, error) {
	if m.book == nil {
		return nil, nil
	}
	return &LoanBook{
		Loaned: new(big.Int).Set(m.book.Loaned),
		Bought: new(big.Int).Set(m.book.Bought),
	}, nil
}

func (m *mockState) LoanBookPut(book *LoanBook) error {
	book = book.Normalize()
	m.book = &LoanBook{
		Loaned: new(big.Int).Set(book.Loaned),
		Bought: new(big.Int).Set(book.Bought),
	}
	return nil
}

func (m *mockState) GetAccount(addr crypto.Address) (*types.Account, error) {
	account, ok := m.accounts[addr.Key()]
	if !ok {
		return nil, nil
	}
	return account.Clone(), nil
}

func (m *mockState) PutAccount(addr crypto.Address, account *types.Account) error {
	m.accounts[addr.Key()] = account.Clone()
	return nil
}

func testAddr(last byte) crypto.Address {
	var raw [20]byte
	raw[19] = last
	return crypto.NewAddress(crypto.LQDPrefix, raw[:])
}

func setBalances(t *testing.T, state *mockState, addr crypto.Address, wrapped, stable int64) {
	t.Helper()
	account := (&types.Account{}).Normalize()
	account.BalanceWLQD = big.NewInt(wrapped)
	account.BalanceStable = big.NewInt(stable)
	require.NoError(t, state.PutAccount(addr, account))
}

func wrapped(t *testing.T, state *mockState, addr crypto.Address) *big.Int {
	t.Helper()
	account, err := state.GetAccount(addr)
	require.NoError(t, err)
	return account.Normalize().BalanceWLQD
}

func loaned(t *testing.T, f *Facility) *big.Int {
	t.Helper()
	total, err := f.TotalLoaned()
	require.NoError(t, err)
	return total
}

func bought(t *testing.T, f *Facility) *big.Int {
	t.Helper()
	total, err := f.TotalBought()
	require.NoError(t, err)
	return total
}

func newTestFacility(t *testing.T) (*Facility, *mockState, crypto.Address) {
	t.Helper()
	state := newMockState()
	f := NewFacility(crypto.ModuleAddress("pool/lending"))
	f.SetState(state)
	borrower := testAddr(1)
	f.Whitelist(borrower)
	return f, state, borrower
}

func TestBorrowClampsToAvailable(t *testing.T) {
	f, state, borrower := newTestFacility(t)
	funder := testAddr(9)
	setBalances(t, state, funder, 3_000, 0)
	require.NoError(t, f.Fund(funder, big.NewInt(3_000)))

	actual, err := f.Borrow(borrower, big.NewInt(5_000))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(3_000), actual)
	require.Equal(t, big.NewInt(3_000), loaned(t, f))
	require.Equal(t, big.NewInt(0), f.AvailableToLend())
	require.Equal(t, big.NewInt(3_000), wrapped(t, state, borrower))
}

func TestLoanBookSurvivesRebuild(t *testing.T) {
	f, state, borrower := newTestFacility(t)
	funder := testAddr(9)
	setBalances(t, state, funder, 3_000, 0)
	require.NoError(t, f.Fund(funder, big.NewInt(3_000)))

	_, err := f.Borrow(borrower, big.NewInt(2_000))
	require.NoError(t, err)

	// A fresh facility over the same state still sees the debt.
	rebuilt := NewFacility(crypto.ModuleAddress("pool/lending"))
	rebuilt.SetState(state)
	require.Equal(t, big.NewInt(2_000), loaned(t, rebuilt))
	require.Equal(t, big.NewInt(0), bought(t, rebuilt))

	// And repayment against the rebuilt facility settles it.
	actual, err := rebuilt.Repay(borrower, big.NewInt(2_000))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(2_000), actual)
	require.Equal(t, big.NewInt(0), loaned(t, rebuilt))
}

func TestBorrowRequiresWhitelist(t *testing.T) {
	f, state, _ := newTestFacility(t)
	funder := testAddr(9)
	setBalances(t, state, funder, 1_000, 0)
	require.NoError(t, f.Fund(funder, big.NewInt(1_000)))

	_, err := f.Borrow(testAddr(7), big.NewInt(100))
	require.ErrorIs(t, err, errNotWhitelisted)
}

func TestRepayClampsToDebt(t *testing.T) {
	f, state, borrower := newTestFacility(t)
	funder := testAddr(9)
	setBalances(t, state, funder, 3_000, 0)
	require.NoError(t, f.Fund(funder, big.NewInt(3_000)))

	_, err := f.Borrow(borrower, big.NewInt(2_000))
	require.NoError(t, err)

	actual, err := f.Repay(borrower, big.NewInt(5_000))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(2_000), actual)
	require.Equal(t, big.NewInt(0), loaned(t, f))
	require.Equal(t, big.NewInt(3_000), f.AvailableToLend())

	_, err = f.Repay(borrower, big.NewInt(1))
	require.ErrorIs(t, err, errNoDebtToRepay)
}

func TestBuyAndBorrowSettlesStableLeg(t *testing.T) {
	f, state, borrower := newTestFacility(t)
	funder := testAddr(9)
	setBalances(t, state, funder, 0, 10_000)
	require.NoError(t, f.FundStable(funder, big.NewInt(10_000)))

	// 2 stable buys 1 wrapped.
	f.SetQuoter(FixedQuote{Num: big.NewInt(1), Den: big.NewInt(2)})
	require.Equal(t, big.NewInt(5_000), f.PurchasingPower())

	actual, err := f.BuyAndBorrow(borrower, big.NewInt(2_000))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(2_000), actual)
	require.Equal(t, big.NewInt(2_000), bought(t, f))
	require.Equal(t, big.NewInt(2_000), loaned(t, f))
	require.Equal(t, big.NewInt(2_000), wrapped(t, state, borrower))
	require.Equal(t, big.NewInt(3_000), f.PurchasingPower())

	// Repaying sells the wrapped asset back and restores stable holdings.
	repaid, err := f.RepayBought(borrower, big.NewInt(2_000))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(2_000), repaid)
	require.Equal(t, big.NewInt(0), bought(t, f))
	require.Equal(t, big.NewInt(5_000), f.PurchasingPower())
}

func TestBuyAndBorrowClampsToPurchasingPower(t *testing.T) {
	f, state, borrower := newTestFacility(t)
	funder := testAddr(9)
	setBalances(t, state, funder, 0, 1_000)
	require.NoError(t, f.FundStable(funder, big.NewInt(1_000)))
	f.SetQuoter(FixedQuote{Num: big.NewInt(1), Den: big.NewInt(2)})

	actual, err := f.BuyAndBorrow(borrower, big.NewInt(9_999))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(500), actual)
}

func TestBuyAndBorrowRequiresQuoter(t *testing.T) {
	f, _, borrower := newTestFacility(t)

	_, err := f.BuyAndBorrow(borrower, big.NewInt(100))
	require.ErrorIs(t, err, errNoQuoter)
	require.Equal(t, big.NewInt(0), f.PurchasingPower())
}

func TestFixedQuoteRoundTrip(t *testing.T) {
	q := FixedQuote{Num: big.NewInt(3), Den: big.NewInt(7)}

	// 700 stable -> 300 pool -> 700 stable.
	pool := q.StableToPool(big.NewInt(700))
	require.Equal(t, big.NewInt(300), pool)
	require.Equal(t, big.NewInt(700), q.PoolToStable(pool))

	require.Equal(t, big.NewInt(0), q.StableToPool(nil))
	require.Equal(t, big.NewInt(0), q.PoolToStable(big.NewInt(-1)))
}
