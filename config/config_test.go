package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormaliseAppliesDefaults(t *testing.T) {
	cfg := Config{}.Normalise()
	require.Equal(t, "SUSD", cfg.StableAsset)
	require.EqualValues(t, 3600, cfg.SnapshotStaleSeconds)
	require.Equal(t, "2", cfg.BreakerDeviationFactor)
	require.Equal(t, "0.2", cfg.IssuanceRatio)
	require.Equal(t, "0.1", cfg.ClaimRatioBuffer)
	require.EqualValues(t, 7*24*3600, cfg.FeePeriodSeconds)
	require.Equal(t, 2, cfg.FeePeriodCount)
	require.EqualValues(t, 365*24*3600, cfg.RewardVestingSeconds)
	require.NoError(t, cfg.Validate())
	require.Equal(t, time.Hour, cfg.StalenessWindow())
}

func TestNormaliseCanonicalisesAsset(t *testing.T) {
	cfg := Config{StableAsset: "  susd "}.Normalise()
	require.Equal(t, "SUSD", cfg.StableAsset)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
stable_asset = "zusd"
snapshot_stale_seconds = 600
breaker_deviation_factor = "2.5"
issuance_ratio = "0.25"
fee_period_seconds = 3600
fee_period_count = 4
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "ZUSD", cfg.StableAsset)
	require.Equal(t, 10*time.Minute, cfg.StalenessWindow())
	require.Equal(t, time.Hour, cfg.FeePeriodDuration())
	require.Equal(t, 4, cfg.FeePeriodCount)
	// Omitted fields fall back to defaults.
	require.Equal(t, "0.1", cfg.ClaimRatioBuffer)

	threshold, err := cfg.BreakerThreshold()
	require.NoError(t, err)
	require.Zero(t, threshold.Cmp(big.NewRat(5, 2)))
}

func TestClaimThresholdScalesIssuanceRatio(t *testing.T) {
	cfg := Config{IssuanceRatio: "0.2", ClaimRatioBuffer: "0.1"}.Normalise()
	threshold, err := cfg.ClaimThreshold()
	require.NoError(t, err)
	// 0.2 * 1.1 = 0.22
	require.Zero(t, threshold.Cmp(big.NewRat(11, 50)))
}

func TestValidateRejectsBadDecimals(t *testing.T) {
	cfg := Config{BreakerDeviationFactor: "not-a-number"}.Normalise()
	require.Error(t, cfg.Validate())

	cfg = Config{IssuanceRatio: "0"}.Normalise()
	require.Error(t, cfg.Validate())

	cfg = Config{ClaimRatioBuffer: "-0.1"}.Normalise()
	require.Error(t, cfg.Validate())
}
