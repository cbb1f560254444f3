package pool

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"liquidpool/crypto"
)

func conversionPool(totalShares int64) *Pool {
	p := (&Pool{}).Normalize()
	p.TotalShares = big.NewInt(totalShares)
	return p
}

func TestSharesFromAssetsFloorsTowardPool(t *testing.T) {
	e := &Engine{}
	p := conversionPool(3)
	nav := big.NewInt(10)

	// 7 * 3 / 10 = 2.1, floored to 2.
	require.Equal(t, big.NewInt(2), e.sharesFromAssets(p, nav, big.NewInt(7)))
	require.Zero(t, e.sharesFromAssets(p, nav, big.NewInt(3)).Sign())
	require.Zero(t, e.sharesFromAssets(p, nav, nil).Sign())
	require.Zero(t, e.sharesFromAssets(p, nav, big.NewInt(-5)).Sign())
}

func TestAssetsFromSharesFloorsTowardPool(t *testing.T) {
	e := &Engine{}
	p := conversionPool(3)
	nav := big.NewInt(10)

	// 2 * 10 / 3 = 6.67, floored to 6.
	require.Equal(t, big.NewInt(6), e.assetsFromShares(p, nav, big.NewInt(2)))
	require.Equal(t, big.NewInt(10), e.assetsFromShares(p, nav, big.NewInt(3)))
	require.Equal(t, big.NewInt(0), e.assetsFromShares(p, nav, nil))
}

func TestConversionIdentityOnEmptyPool(t *testing.T) {
	e := &Engine{}
	p := conversionPool(0)
	nav := big.NewInt(0)

	require.Equal(t, big.NewInt(42), e.sharesFromAssets(p, nav, big.NewInt(42)))
	require.Equal(t, big.NewInt(42), e.assetsFromShares(p, nav, big.NewInt(42)))
}

func TestConversionZeroNAV(t *testing.T) {
	e := &Engine{}
	p := conversionPool(100)

	// With shares outstanding but no backing value, assets convert at
	// identity on the way in and to nothing on the way out.
	require.Equal(t, big.NewInt(5), e.sharesFromAssets(p, big.NewInt(0), big.NewInt(5)))
	require.Equal(t, big.NewInt(0), e.assetsFromShares(p, big.NewInt(0), big.NewInt(5)))
}

func TestRoundTripNeverFavorsHolder(t *testing.T) {
	e := &Engine{}
	for _, tc := range []struct {
		shares, nav, amount int64
	}{
		{3, 10, 7},
		{7, 10, 9},
		{1000, 3333, 501},
		{999_999, 1_000_003, 123_457},
	} {
		p := conversionPool(tc.shares)
		nav := big.NewInt(tc.nav)
		shares := e.sharesFromAssets(p, nav, big.NewInt(tc.amount))
		back := e.assetsFromShares(p, nav, shares)
		require.LessOrEqual(t, back.Int64(), tc.amount,
			"round trip %d shares / %d nav / %d amount", tc.shares, tc.nav, tc.amount)
	}
}

func TestMintBurnShareSupply(t *testing.T) {
	env := newTestEnv(t)
	p := (&Pool{}).Normalize()
	holder := testAddr(7)

	require.NoError(t, env.engine.mintShares(p, holder, big.NewInt(500)))
	require.Equal(t, big.NewInt(500), p.TotalShares)

	require.ErrorIs(t, env.engine.mintShares(p, crypto.Address{}, big.NewInt(1)), ErrZeroAddress)
	require.ErrorIs(t, env.engine.burnShares(p, holder, big.NewInt(501)), ErrInsufficientShares)

	require.NoError(t, env.engine.burnShares(p, holder, big.NewInt(200)))
	require.Equal(t, big.NewInt(300), p.TotalShares)

	held, err := env.engine.SharesOf(holder)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(300), held)
}
