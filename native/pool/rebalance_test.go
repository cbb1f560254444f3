package pool

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRebalanceTopsUpReserveAndSweeps(t *testing.T) {
	env := newTestEnv(t)
	user := testAddr(1)
	env.fund(t, user, 20_000)

	_, err := env.engine.Deposit(user, big.NewInt(20_000))
	require.NoError(t, err)

	// Target 25% of NAV in reserve, remainder delegated.
	require.NoError(t, env.engine.SetReservePercentage(env.admin, 2_500))

	report, err := env.engine.Rebalance(env.admin)
	require.NoError(t, err)

	reserves, err := env.reserve.TotalReserves()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(5_000), reserves)
	require.Equal(t, big.NewInt(15_000), report.Swept)
	require.Zero(t, report.ReserveDeficit.Sign())
	require.Zero(t, report.Total.Sign())

	p, err := env.engine.PoolState()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(15_000), p.TotalNetworkAmount)

	// Delegation keeps the pool's value intact.
	nav, err := env.engine.TotalAssetValue()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(20_000), nav)

	custodian := env.balance(t, env.engine.CustodianAddress())
	require.Equal(t, big.NewInt(15_000), custodian.BalanceLQD)
}

func TestRebalanceDrainsReserveSurplus(t *testing.T) {
	env := newTestEnv(t)
	user := testAddr(1)
	env.fund(t, user, 20_000)

	_, err := env.engine.Deposit(user, big.NewInt(20_000))
	require.NoError(t, err)
	require.NoError(t, env.reserve.Deposit(env.engine.ModuleAddress(), big.NewInt(10_000)))

	require.NoError(t, env.engine.SetReservePercentage(env.admin, 2_500))
	_, err = env.engine.Rebalance(env.admin)
	require.NoError(t, err)

	reserves, err := env.reserve.TotalReserves()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(5_000), reserves)
}

func TestRebalanceReportsDeficits(t *testing.T) {
	env := newTestEnv(t)
	user := testAddr(1)
	whale := testAddr(9)
	env.fund(t, user, 11_000)
	env.fund(t, whale, 4_000)

	_, err := env.engine.Deposit(user, big.NewInt(11_000))
	require.NoError(t, err)
	require.NoError(t, env.engine.SetReservePercentage(env.admin, 0))
	_, err = env.engine.Rebalance(env.admin)
	require.NoError(t, err)

	// Borrow to cover a withdrawal, then queue another one.
	require.NoError(t, env.vault.Wrap(whale, big.NewInt(4_000)))
	require.NoError(t, env.lending.Fund(whale, big.NewInt(4_000)))
	_, err = env.engine.Withdraw(user, big.NewInt(4_000))
	require.NoError(t, err)

	receipt, err := env.engine.Withdraw(user, big.NewInt(2_000))
	require.NoError(t, err)
	require.True(t, receipt.HasQueued)

	require.NoError(t, env.engine.SetReservePercentage(env.admin, 2_500))
	report, err := env.engine.Rebalance(env.admin)
	require.NoError(t, err)

	require.Equal(t, big.NewInt(4_000), report.LendingDebt)
	require.Equal(t, big.NewInt(2_000), report.UnfundedQueue)
	require.True(t, report.ReserveDeficit.Sign() > 0)
	expected := new(big.Int).Add(report.ReserveDeficit, big.NewInt(6_000))
	require.Equal(t, expected, report.Total)
}

func TestRebalanceRepaysDebtFromInflow(t *testing.T) {
	env := newTestEnv(t)
	user := testAddr(1)
	bob := testAddr(2)
	whale := testAddr(9)
	env.fund(t, user, 11_000)
	env.fund(t, bob, 5_000)
	env.fund(t, whale, 4_000)

	_, err := env.engine.Deposit(user, big.NewInt(11_000))
	require.NoError(t, err)
	require.NoError(t, env.engine.SetReservePercentage(env.admin, 0))
	_, err = env.engine.Rebalance(env.admin)
	require.NoError(t, err)

	require.NoError(t, env.vault.Wrap(whale, big.NewInt(4_000)))
	require.NoError(t, env.lending.Fund(whale, big.NewInt(4_000)))
	_, err = env.engine.Withdraw(user, big.NewInt(4_000))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(4_000), env.loaned(t))

	// A later deposit repays the loan before anything else accumulates.
	_, err = env.engine.Deposit(bob, big.NewInt(5_000))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(0), env.loaned(t))
}

func TestRestoreNetworkClearsThrottle(t *testing.T) {
	env := newTestEnv(t)
	user := testAddr(1)
	env.fund(t, user, 11_000)

	_, err := env.engine.Deposit(user, big.NewInt(11_000))
	require.NoError(t, err)
	require.NoError(t, env.engine.SetReservePercentage(env.admin, 0))
	_, err = env.engine.Rebalance(env.admin)
	require.NoError(t, err)

	_, err = env.engine.Withdraw(user, big.NewInt(5_000))
	require.NoError(t, err)

	p, err := env.engine.PoolState()
	require.NoError(t, err)
	require.True(t, p.Throttled)

	// The flag is sticky until an operator clears it.
	require.NoError(t, env.engine.RestoreNetwork(env.admin))
	p, err = env.engine.PoolState()
	require.NoError(t, err)
	require.False(t, p.Throttled)
}
