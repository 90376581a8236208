package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config controls the accounting engines' policy thresholds. Decimal fields
// are strings so configuration survives exact rational parsing instead of
// float truncation.
type Config struct {
	StableAsset            string `toml:"stable_asset"`
	SnapshotStaleSeconds   int64  `toml:"snapshot_stale_seconds"`
	BreakerDeviationFactor string `toml:"breaker_deviation_factor"`
	IssuanceRatio          string `toml:"issuance_ratio"`
	ClaimRatioBuffer       string `toml:"claim_ratio_buffer"`
	FeePeriodSeconds       int64  `toml:"fee_period_seconds"`
	FeePeriodCount         int    `toml:"fee_period_count"`
	RewardVestingSeconds   int64  `toml:"reward_vesting_seconds"`
}

// Load reads and normalises a TOML configuration file.
func Load(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg.Normalise(), nil
}

// Normalise applies defaults and canonical casing to the configuration.
func (c Config) Normalise() Config {
	cfg := c
	cfg.StableAsset = strings.ToUpper(strings.TrimSpace(cfg.StableAsset))
	if cfg.StableAsset == "" {
		cfg.StableAsset = "SUSD"
	}
	if cfg.SnapshotStaleSeconds <= 0 {
		cfg.SnapshotStaleSeconds = 3600
	}
	if strings.TrimSpace(cfg.BreakerDeviationFactor) == "" {
		cfg.BreakerDeviationFactor = "2"
	}
	if strings.TrimSpace(cfg.IssuanceRatio) == "" {
		cfg.IssuanceRatio = "0.2"
	}
	if strings.TrimSpace(cfg.ClaimRatioBuffer) == "" {
		cfg.ClaimRatioBuffer = "0.1"
	}
	if cfg.FeePeriodSeconds <= 0 {
		cfg.FeePeriodSeconds = 7 * 24 * 3600
	}
	if cfg.FeePeriodCount < 2 {
		cfg.FeePeriodCount = 2
	}
	if cfg.RewardVestingSeconds <= 0 {
		cfg.RewardVestingSeconds = 365 * 24 * 3600
	}
	return cfg
}

// Validate rejects configurations whose decimal fields do not parse or fall
// out of band.
func (c Config) Validate() error {
	if _, err := c.BreakerThreshold(); err != nil {
		return err
	}
	ratio, err := c.IssuanceRatioRat()
	if err != nil {
		return err
	}
	if ratio.Sign() <= 0 {
		return fmt.Errorf("config: issuance ratio must be positive")
	}
	if _, err := c.ClaimThreshold(); err != nil {
		return err
	}
	return nil
}

// StalenessWindow returns the snapshot staleness window.
func (c Config) StalenessWindow() time.Duration {
	return time.Duration(c.SnapshotStaleSeconds) * time.Second
}

// FeePeriodDuration returns the minimum open-period duration.
func (c Config) FeePeriodDuration() time.Duration {
	return time.Duration(c.FeePeriodSeconds) * time.Second
}

// RewardVesting returns the reward escrow vesting duration.
func (c Config) RewardVesting() time.Duration {
	return time.Duration(c.RewardVestingSeconds) * time.Second
}

// BreakerThreshold parses the allowed debt-ratio deviation factor.
func (c Config) BreakerThreshold() (*big.Rat, error) {
	return parseDecimal("breaker_deviation_factor", c.BreakerDeviationFactor)
}

// IssuanceRatioRat parses the target debt-per-collateral ratio.
func (c Config) IssuanceRatioRat() (*big.Rat, error) {
	return parseDecimal("issuance_ratio", c.IssuanceRatio)
}

// ClaimThreshold returns the maximum collateralisation ratio at which claims
// stay open: issuance ratio scaled up by the claim buffer.
func (c Config) ClaimThreshold() (*big.Rat, error) {
	ratio, err := c.IssuanceRatioRat()
	if err != nil {
		return nil, err
	}
	buffer, err := parseDecimal("claim_ratio_buffer", c.ClaimRatioBuffer)
	if err != nil {
		return nil, err
	}
	scale := new(big.Rat).Add(big.NewRat(1, 1), buffer)
	return scale.Mul(scale, ratio), nil
}

func parseDecimal(field, value string) (*big.Rat, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("config: %s required", field)
	}
	parsed, ok := new(big.Rat).SetString(trimmed)
	if !ok {
		return nil, fmt.Errorf("config: invalid %s %q", field, value)
	}
	if parsed.Sign() < 0 {
		return nil, fmt.Errorf("config: %s must not be negative", field)
	}
	return parsed, nil
}
