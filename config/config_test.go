package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	require.Equal(t, uint64(1_000), cfg.ReservePercentageBps)
	require.False(t, cfg.AtomicBuyEnabled)
}

func TestLoadParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
ReservePercentageBps = 2500
AtomicBuyEnabled = true
MaxSupply = "500000000"
AdminAddresses = ["lqd1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqsmmc8keu"]
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint64(2_500), cfg.ReservePercentageBps)
	require.True(t, cfg.AtomicBuyEnabled)
	require.Len(t, cfg.AdminAddresses, 1)

	max, err := cfg.MaxSupplyAmount()
	require.NoError(t, err)
	require.Equal(t, "500000000", max.String())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.ReservePercentageBps = 10_001
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.MaxSupply = "not-a-number"
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.MaxSupply = "-5"
	require.Error(t, cfg.Validate())
}
