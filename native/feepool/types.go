package feepool

import (
	"io"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/rlp"
)

// Ring layout: index 0 is the open, unclaimable period; indices 1..N-1 are
// closed and claimable, newest to oldest. Encoded as named constants to keep
// the open/closed boundary explicit.
const (
	OpenPeriodIndex    = 0
	FirstClosedPeriod  = 1
	MinimumPeriodCount = 2
)

// FeePeriod is one time-boxed accrual window. DebtAtClose and
// ShareSupplyAtClose are written exactly once, when the period is sealed, so
// historical debt percentages stay reproducible after the fact.
type FeePeriod struct {
	ID                  uint64
	StartTime           int64
	DebtAtClose         *big.Int
	ShareSupplyAtClose  *big.Int
	FeesToDistribute    *big.Int
	FeesClaimed         *big.Int
	RewardsToDistribute *big.Int
	RewardsClaimed      *big.Int
}

// NewFeePeriod returns a zeroed period opened at the supplied time.
func NewFeePeriod(id uint64, start int64) *FeePeriod {
	return &FeePeriod{
		ID:                  id,
		StartTime:           start,
		DebtAtClose:         big.NewInt(0),
		ShareSupplyAtClose:  big.NewInt(0),
		FeesToDistribute:    big.NewInt(0),
		FeesClaimed:         big.NewInt(0),
		RewardsToDistribute: big.NewInt(0),
		RewardsClaimed:      big.NewInt(0),
	}
}

// Clone returns a deep copy.
func (p *FeePeriod) Clone() *FeePeriod {
	if p == nil {
		return NewFeePeriod(0, 0)
	}
	return &FeePeriod{
		ID:                  p.ID,
		StartTime:           p.StartTime,
		DebtAtClose:         copyBigInt(p.DebtAtClose),
		ShareSupplyAtClose:  copyBigInt(p.ShareSupplyAtClose),
		FeesToDistribute:    copyBigInt(p.FeesToDistribute),
		FeesClaimed:         copyBigInt(p.FeesClaimed),
		RewardsToDistribute: copyBigInt(p.RewardsToDistribute),
		RewardsClaimed:      copyBigInt(p.RewardsClaimed),
	}
}

func (p *FeePeriod) normalise() *FeePeriod {
	if p.DebtAtClose == nil {
		p.DebtAtClose = big.NewInt(0)
	}
	if p.ShareSupplyAtClose == nil {
		p.ShareSupplyAtClose = big.NewInt(0)
	}
	if p.FeesToDistribute == nil {
		p.FeesToDistribute = big.NewInt(0)
	}
	if p.FeesClaimed == nil {
		p.FeesClaimed = big.NewInt(0)
	}
	if p.RewardsToDistribute == nil {
		p.RewardsToDistribute = big.NewInt(0)
	}
	if p.RewardsClaimed == nil {
		p.RewardsClaimed = big.NewInt(0)
	}
	return p
}

type storedFeePeriod struct {
	ID                  uint64
	StartTime           uint64
	DebtAtClose         *big.Int
	ShareSupplyAtClose  *big.Int
	FeesToDistribute    *big.Int
	FeesClaimed         *big.Int
	RewardsToDistribute *big.Int
	RewardsClaimed      *big.Int
}

// EncodeRLP implements rlp.Encoder.
func (p *FeePeriod) EncodeRLP(w io.Writer) error {
	clone := p.Clone()
	return rlp.Encode(w, storedFeePeriod{
		ID:                  clone.ID,
		StartTime:           uint64(clone.StartTime),
		DebtAtClose:         clone.DebtAtClose,
		ShareSupplyAtClose:  clone.ShareSupplyAtClose,
		FeesToDistribute:    clone.FeesToDistribute,
		FeesClaimed:         clone.FeesClaimed,
		RewardsToDistribute: clone.RewardsToDistribute,
		RewardsClaimed:      clone.RewardsClaimed,
	})
}

// DecodeRLP implements rlp.Decoder.
func (p *FeePeriod) DecodeRLP(stream *rlp.Stream) error {
	var stored storedFeePeriod
	if err := stream.Decode(&stored); err != nil {
		return err
	}
	p.ID = stored.ID
	p.StartTime = int64(stored.StartTime)
	p.DebtAtClose = copyBigInt(stored.DebtAtClose)
	p.ShareSupplyAtClose = copyBigInt(stored.ShareSupplyAtClose)
	p.FeesToDistribute = copyBigInt(stored.FeesToDistribute)
	p.FeesClaimed = copyBigInt(stored.FeesClaimed)
	p.RewardsToDistribute = copyBigInt(stored.RewardsToDistribute)
	p.RewardsClaimed = copyBigInt(stored.RewardsClaimed)
	return nil
}

// PeriodEntitlement reports the pro-rata claim an account holds against one
// period; the open period entry is display-only.
type PeriodEntitlement struct {
	PeriodID  uint64
	Index     int
	Fees      *big.Int
	Rewards   *big.Int
	Claimable bool
}

// AggregateSource reports the cross-instance (debt, shareSupply) pair written
// onto a period at close. Consistency is "last reported value wins",
// timestamped; stale only flags the age of the report.
type AggregateSource interface {
	AggregateDebtAndShareSupply() (debt, shareSupply *big.Int, updatedAt int64, stale bool)
}

// SharesView is the fee pool's point-in-time view of the share ledger.
type SharesView interface {
	Balance(account [20]byte) (*big.Int, error)
	Supply() (*big.Int, error)
	CollateralisationRatio(account [20]byte) (*big.Rat, error)
}

// TokenMintBurn performs the stable-asset supply effects of a fee payout.
type TokenMintBurn interface {
	IssueStable(account [20]byte, amount *big.Int) error
	BurnStable(account [20]byte, amount *big.Int) error
}

// RewardsEscrow locks claimed inflation rewards for the vesting duration.
type RewardsEscrow interface {
	Deposit(account [20]byte, amount *big.Int, vesting time.Duration) error
}

// DebtAggregator receives the sealed (debt, shareSupply) pair so independently
// deployed instances can reconcile.
type DebtAggregator interface {
	NotifyPeriodClosed(debt, shareSupply *big.Int)
}

// State abstracts the persistence required by the fee pool. Slots are
// physical ring positions; the base offset maps logical indices onto them.
type State interface {
	PeriodBase() (uint64, error)
	PutPeriodBase(base uint64) error
	Period(slot uint64) (*FeePeriod, error)
	PutPeriod(slot uint64, period *FeePeriod) error
	LastClaimedPeriod(account [20]byte) (uint64, error)
	PutLastClaimedPeriod(account [20]byte, id uint64) error
}

func copyBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
