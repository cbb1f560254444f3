package vault

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"liquidpool/core/types"
	"liquidpool/crypto"
)

type mockState struct {
	accounts map[[20]byte]*types.Account
	wrapped  *big.Int
}

func newMockState() *mockState {
	return &mockState{accounts: make(map[[20]byte]*types.Account)}
}

func (m *mockState) WrappedSupplyGet() (*big.Int, error) {
	if m.wrapped == nil {
		return nil, nil
	}
	return new(big.Int).Set(m.wrapped), nil
}

func (m *mockState) WrappedSupplyPut(supply *big.Int) error {
	m.wrapped = new(big.Int).Set(supply)
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

func TestWrapUnwrapRoundTrip(t *testing.T) {
	state := newMockState()
	v := New()
	v.SetState(state)

	holder := testAddr(1)
	account := (&types.Account{}).Normalize()
	account.BalanceLQD = big.NewInt(1_000)
	require.NoError(t, state.PutAccount(holder, account))

	require.NoError(t, v.Wrap(holder, big.NewInt(600)))

	got, err := state.GetAccount(holder)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(400), got.BalanceLQD)
	require.Equal(t, big.NewInt(600), got.BalanceWLQD)
	supply, err := v.TotalWrapped()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(600), supply)

	require.NoError(t, v.Unwrap(holder, big.NewInt(600)))

	got, err = state.GetAccount(holder)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1_000), got.BalanceLQD)
	require.Equal(t, big.NewInt(0), got.BalanceWLQD)
	supply, err = v.TotalWrapped()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(0), supply)
}

func TestTotalWrappedSurvivesRebuild(t *testing.T) {
	state := newMockState()
	v := New()
	v.SetState(state)

	holder := testAddr(1)
	account := (&types.Account{}).Normalize()
	account.BalanceLQD = big.NewInt(1_000)
	require.NoError(t, state.PutAccount(holder, account))
	require.NoError(t, v.Wrap(holder, big.NewInt(750)))

	rebuilt := New()
	rebuilt.SetState(state)

	supply, err := rebuilt.TotalWrapped()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(750), supply)
}

func TestWrapValidation(t *testing.T) {
	state := newMockState()
	v := New()
	v.SetState(state)
	holder := testAddr(1)

	require.ErrorIs(t, v.Wrap(holder, big.NewInt(0)), errInvalidAmount)
	require.ErrorIs(t, v.Wrap(holder, nil), errInvalidAmount)
	require.ErrorIs(t, v.Wrap(holder, big.NewInt(5)), errInsufficientBalance)
	require.ErrorIs(t, v.Unwrap(holder, big.NewInt(5)), errInsufficientBalance)

	unwired := New()
	require.ErrorIs(t, unwired.Wrap(holder, big.NewInt(5)), errNilState)
}
