package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poold.yaml")
	raw := `listen_address: ":9000"
data_dir: /var/lib/poold
rebalance_schedule: "30 2 * * *"
operator_address: lqd1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqzy9nxj
rate_limit_rps: 5
rate_limit_burst: 10
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.ListenAddress)
	require.Equal(t, "/var/lib/poold", cfg.DataDir)
	require.Equal(t, "30 2 * * *", cfg.RebalanceSchedule)
	require.Equal(t, float64(5), cfg.RateLimitRPS)
	require.Equal(t, 10, cfg.RateLimitBurst)
	// Fields the file omits keep their defaults.
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "json", cfg.LogFormat)
}

func TestLoadRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poold.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`listen_address: ""`), 0o600))
	_, err := Load(path)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`rate_limit_rps: -1`), 0o600))
	_, err = Load(path)
	require.Error(t, err)
}
