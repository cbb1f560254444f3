package pool

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

// drainedEnv sets up a pool whose liquidity is fully delegated to the
// custodian, so every withdrawal falls through to the queue. Alice holds
// 5_000 shares, Carol 4_000, and the exchange rate is 1:1.
func drainedEnv(t *testing.T) *testEnv {
	t.Helper()
	env := newTestEnv(t)
	alice := testAddr(1)
	carol := testAddr(2)
	env.fund(t, alice, 6_000)
	env.fund(t, carol, 4_000)

	_, err := env.engine.Deposit(alice, big.NewInt(6_000))
	require.NoError(t, err)
	_, err = env.engine.Deposit(carol, big.NewInt(4_000))
	require.NoError(t, err)

	require.NoError(t, env.engine.SetReservePercentage(env.admin, 0))
	_, err = env.engine.Rebalance(env.admin)
	require.NoError(t, err)
	return env
}

func queueRequest(t *testing.T, env *testEnv, user int64, amount int64) uint64 {
	t.Helper()
	receipt, err := env.engine.Withdraw(testAddr(byte(user)), big.NewInt(amount))
	require.NoError(t, err)
	require.True(t, receipt.HasQueued)
	require.Equal(t, big.NewInt(amount), receipt.Queued)
	return receipt.RequestID
}

func TestClaimWaitsForFunding(t *testing.T) {
	env := drainedEnv(t)
	alice := testAddr(1)
	bob := testAddr(3)
	env.fund(t, bob, 5_000)

	id := queueRequest(t, env, 1, 5_000)

	_, err := env.engine.Claim(alice, id)
	require.ErrorIs(t, err, ErrNotClaimable)

	// A partial inflow funds part of the window but not all of it.
	_, err = env.engine.Deposit(bob, big.NewInt(3_000))
	require.NoError(t, err)
	_, err = env.engine.Claim(alice, id)
	require.ErrorIs(t, err, ErrNotClaimable)

	_, claimable, err := env.engine.GetRequest(id)
	require.NoError(t, err)
	require.False(t, claimable)

	_, err = env.engine.Deposit(bob, big.NewInt(2_000))
	require.NoError(t, err)

	_, claimable, err = env.engine.GetRequest(id)
	require.NoError(t, err)
	require.True(t, claimable)

	paid, err := env.engine.Claim(alice, id)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(5_000), paid)
	require.Equal(t, big.NewInt(5_000), env.balance(t, alice).BalanceLQD)

	p, err := env.engine.PoolState()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(0), p.WithdrawRequestOutstandingTotal)

	depth, err := env.engine.QueueDepth()
	require.NoError(t, err)
	require.Zero(t, depth)
}

func TestFundingIsFirstComeFirstServed(t *testing.T) {
	env := drainedEnv(t)
	bob := testAddr(3)
	env.fund(t, bob, 5_000)

	first := queueRequest(t, env, 1, 5_000)
	second := queueRequest(t, env, 2, 3_000)

	// Enough for the second request alone, but the first holds the earlier
	// window.
	_, err := env.engine.Deposit(bob, big.NewInt(5_000))
	require.NoError(t, err)

	_, claimable, err := env.engine.GetRequest(first)
	require.NoError(t, err)
	require.True(t, claimable)

	_, claimable, err = env.engine.GetRequest(second)
	require.NoError(t, err)
	require.False(t, claimable)
}

func TestClaimOwnershipAndTerminality(t *testing.T) {
	env := drainedEnv(t)
	alice := testAddr(1)
	carol := testAddr(2)
	bob := testAddr(3)
	env.fund(t, bob, 5_100)

	id := queueRequest(t, env, 1, 5_000)

	_, err := env.engine.Claim(carol, id)
	require.ErrorIs(t, err, ErrNotRequestOwner)

	_, err = env.engine.Claim(alice, 99)
	require.ErrorIs(t, err, ErrRequestNotFound)

	_, err = env.engine.Deposit(bob, big.NewInt(5_100))
	require.NoError(t, err)

	_, err = env.engine.Claim(alice, id)
	require.NoError(t, err)

	// A settled request stays settled.
	_, err = env.engine.Claim(alice, id)
	require.ErrorIs(t, err, ErrRequestClosed)
	require.ErrorIs(t, env.engine.Cancel(alice, id), ErrRequestClosed)
}

func TestClaimAll(t *testing.T) {
	env := drainedEnv(t)
	alice := testAddr(1)
	bob := testAddr(3)
	env.fund(t, bob, 9_000)

	queueRequest(t, env, 1, 2_000)
	queueRequest(t, env, 1, 3_000)

	_, err := env.engine.ClaimAll(testAddr(9))
	require.ErrorIs(t, err, ErrNoActiveRequests)

	// Fund only the first window.
	_, err = env.engine.Deposit(bob, big.NewInt(2_000))
	require.NoError(t, err)

	paid, err := env.engine.ClaimAll(alice)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(2_000), paid)

	_, err = env.engine.Deposit(bob, big.NewInt(3_000))
	require.NoError(t, err)

	paid, err = env.engine.ClaimAll(alice)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(3_000), paid)

	// With only settled history left, a repeat call is a harmless no-op.
	paid, err = env.engine.ClaimAll(alice)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(0), paid)
}

func TestClaimAllWithUnfundedHistoryPaysNothing(t *testing.T) {
	env := drainedEnv(t)
	alice := testAddr(1)
	bob := testAddr(3)
	env.fund(t, bob, 2_000)

	queueRequest(t, env, 1, 2_000)
	queueRequest(t, env, 1, 3_000)

	_, err := env.engine.Deposit(bob, big.NewInt(2_000))
	require.NoError(t, err)

	paid, err := env.engine.ClaimAll(alice)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(2_000), paid)

	// The second request is still waiting on funding; another sweep pays
	// nothing but does not error.
	paid, err = env.engine.ClaimAll(alice)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(0), paid)

	depth, err := env.engine.QueueDepth()
	require.NoError(t, err)
	require.Equal(t, 1, depth)
}

func TestCancelReturnsSharesAndSkipsWindow(t *testing.T) {
	env := drainedEnv(t)
	alice := testAddr(1)
	bob := testAddr(3)
	env.fund(t, bob, 5_000)

	first := queueRequest(t, env, 1, 5_000)
	second := queueRequest(t, env, 2, 3_000)

	// Partial funding lands inside the first window.
	_, err := env.engine.Deposit(bob, big.NewInt(2_000))
	require.NoError(t, err)

	require.NoError(t, env.engine.Cancel(alice, first))

	// The escrowed shares are back with their owner.
	shares, err := env.engine.SharesOf(alice)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(5_000), shares)

	p, err := env.engine.PoolState()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(3_000), p.WithdrawRequestOutstandingTotal)
	// The watermark skipped past the canceled window.
	require.Equal(t, big.NewInt(5_000), p.TotalWithdrawRequestCompletedAmount)

	// Fresh inflow now funds the second request directly.
	_, err = env.engine.Deposit(bob, big.NewInt(3_000))
	require.NoError(t, err)

	_, claimable, err := env.engine.GetRequest(second)
	require.NoError(t, err)
	require.True(t, claimable)
}

func TestCancelAheadOfWatermarkFreesWindow(t *testing.T) {
	env := drainedEnv(t)
	alice := testAddr(1)
	carol := testAddr(2)
	bob := testAddr(3)
	env.fund(t, bob, 3_000)

	first := queueRequest(t, env, 1, 2_000)
	middle := queueRequest(t, env, 2, 3_000)
	last := queueRequest(t, env, 1, 1_000)

	// Cancel the middle request before any funding arrives. Its window is
	// dead: the requests behind it must not wait for inflow covering it.
	require.NoError(t, env.engine.Cancel(carol, middle))

	// Exactly the two live windows' worth of inflow funds both of them.
	_, err := env.engine.Deposit(bob, big.NewInt(3_000))
	require.NoError(t, err)

	_, claimable, err := env.engine.GetRequest(first)
	require.NoError(t, err)
	require.True(t, claimable)
	_, claimable, err = env.engine.GetRequest(last)
	require.NoError(t, err)
	require.True(t, claimable)

	paid, err := env.engine.ClaimAll(alice)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(3_000), paid)

	p, err := env.engine.PoolState()
	require.NoError(t, err)
	require.Empty(t, p.SkippedWindows)
	require.Equal(t, big.NewInt(0), p.WithdrawRequestOutstandingTotal)
}

func TestCancelAll(t *testing.T) {
	env := drainedEnv(t)
	alice := testAddr(1)

	queueRequest(t, env, 1, 2_000)
	queueRequest(t, env, 1, 3_000)

	require.ErrorIs(t, env.engine.CancelAll(testAddr(9)), ErrNoActiveRequests)
	require.NoError(t, env.engine.CancelAll(alice))

	shares, err := env.engine.SharesOf(alice)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(5_000), shares)

	depth, err := env.engine.QueueDepth()
	require.NoError(t, err)
	require.Zero(t, depth)

	require.ErrorIs(t, env.engine.CancelAll(alice), ErrNoActiveRequests)
}

func TestSwapRemovalKeepsQueueConsistent(t *testing.T) {
	env := drainedEnv(t)
	alice := testAddr(1)
	carol := testAddr(2)

	first := queueRequest(t, env, 1, 1_000)
	middle := queueRequest(t, env, 2, 2_000)
	last := queueRequest(t, env, 1, 3_000)

	// Removing from the middle swaps the tail into its slot.
	require.NoError(t, env.engine.Cancel(carol, middle))

	depth, err := env.engine.QueueDepth()
	require.NoError(t, err)
	require.Equal(t, 2, depth)

	// Both survivors are still resolvable and cancelable.
	req, _, err := env.engine.GetRequest(last)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(3_000), req.Amount)

	require.NoError(t, env.engine.Cancel(alice, last))
	require.NoError(t, env.engine.Cancel(alice, first))

	depth, err = env.engine.QueueDepth()
	require.NoError(t, err)
	require.Zero(t, depth)
}

func TestListRequestsIncludesHistory(t *testing.T) {
	env := drainedEnv(t)
	alice := testAddr(1)

	first := queueRequest(t, env, 1, 1_000)
	second := queueRequest(t, env, 1, 2_000)
	require.NoError(t, env.engine.Cancel(alice, first))

	reqs, err := env.engine.ListRequests(alice)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	require.True(t, reqs[0].Canceled)
	require.Equal(t, second, reqs[1].ID)
	require.True(t, reqs[1].Pending())
}
