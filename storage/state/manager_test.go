package state

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"synthchain/native/debt"
	"synthchain/native/feepool"
)

func openTestManager(t *testing.T) *Manager {
	t.Helper()
	manager, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })
	return manager
}

func TestDebtStateRoundTrip(t *testing.T) {
	store := NewDebtState(openTestManager(t))

	snapshot, err := store.DebtSnapshot()
	require.NoError(t, err)
	require.Nil(t, snapshot)

	written := debt.NewSnapshot()
	written.PerAsset["SBTC"] = big.NewInt(60000)
	written.PerAsset["SETH"] = big.NewInt(20000)
	written.External = big.NewInt(2000)
	written.Excluded["SETH"] = big.NewInt(5000)
	written.TotalDebt = big.NewInt(77000)
	written.Timestamp = 1_700_000_000
	written.Invalid = false
	require.NoError(t, store.PutDebtSnapshot(written))

	loaded, err := store.DebtSnapshot()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Zero(t, loaded.TotalDebt.Cmp(written.TotalDebt))
	require.Equal(t, written.Timestamp, loaded.Timestamp)
	require.Equal(t, written.Invalid, loaded.Invalid)
	require.Len(t, loaded.PerAsset, 2)
	require.Zero(t, loaded.PerAsset["SBTC"].Cmp(big.NewInt(60000)))
	require.Zero(t, loaded.External.Cmp(big.NewInt(2000)))
	require.Zero(t, loaded.Excluded["SETH"].Cmp(big.NewInt(5000)))

	done, err := store.ExcludedImportDone()
	require.NoError(t, err)
	require.False(t, done)
	require.NoError(t, store.SetExcludedImportDone())
	done, err = store.ExcludedImportDone()
	require.NoError(t, err)
	require.True(t, done)
}

func TestSharesStateRoundTrip(t *testing.T) {
	store := NewSharesState(openTestManager(t))
	var account [20]byte
	account[19] = 0xA1

	balance, err := store.ShareBalance(account)
	require.NoError(t, err)
	require.Zero(t, balance.Sign())

	require.NoError(t, store.PutShareBalance(account, big.NewInt(750)))
	require.NoError(t, store.PutShareSupply(big.NewInt(1000)))

	balance, err = store.ShareBalance(account)
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(big.NewInt(750)))
	supply, err := store.ShareSupply()
	require.NoError(t, err)
	require.Zero(t, supply.Cmp(big.NewInt(1000)))

	// Full burns keep the account on record at zero.
	require.NoError(t, store.PutShareBalance(account, big.NewInt(0)))
	balance, err = store.ShareBalance(account)
	require.NoError(t, err)
	require.Zero(t, balance.Sign())
}

func TestSharesStateRatioRoundTrip(t *testing.T) {
	store := NewSharesState(openTestManager(t))

	ratio, err := store.LastDebtRatio()
	require.NoError(t, err)
	require.Nil(t, ratio)

	require.NoError(t, store.PutLastDebtRatio(big.NewRat(5, 2)))
	ratio, err = store.LastDebtRatio()
	require.NoError(t, err)
	require.NotNil(t, ratio)
	require.Zero(t, ratio.Cmp(big.NewRat(5, 2)))

	require.NoError(t, store.PutLastDebtRatio(nil))
	ratio, err = store.LastDebtRatio()
	require.NoError(t, err)
	require.Nil(t, ratio)
}

func TestFeePoolStateRoundTrip(t *testing.T) {
	store := NewFeePoolState(openTestManager(t))

	base, err := store.PeriodBase()
	require.NoError(t, err)
	require.Zero(t, base)
	require.NoError(t, store.PutPeriodBase(3))
	base, err = store.PeriodBase()
	require.NoError(t, err)
	require.EqualValues(t, 3, base)

	period, err := store.Period(1)
	require.NoError(t, err)
	require.Nil(t, period)

	written := feepool.NewFeePeriod(42, 1_700_000_000)
	written.DebtAtClose = big.NewInt(5000)
	written.ShareSupplyAtClose = big.NewInt(1000)
	written.FeesToDistribute = big.NewInt(160)
	written.FeesClaimed = big.NewInt(60)
	require.NoError(t, store.PutPeriod(1, written))

	loaded, err := store.Period(1)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.EqualValues(t, 42, loaded.ID)
	require.EqualValues(t, 1_700_000_000, loaded.StartTime)
	require.Zero(t, loaded.DebtAtClose.Cmp(big.NewInt(5000)))
	require.Zero(t, loaded.FeesToDistribute.Cmp(big.NewInt(160)))
	require.Zero(t, loaded.FeesClaimed.Cmp(big.NewInt(60)))

	var account [20]byte
	account[19] = 0xB2
	id, err := store.LastClaimedPeriod(account)
	require.NoError(t, err)
	require.Zero(t, id)
	require.NoError(t, store.PutLastClaimedPeriod(account, 42))
	id, err = store.LastClaimedPeriod(account)
	require.NoError(t, err)
	require.EqualValues(t, 42, id)
}
