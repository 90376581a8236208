package feepool

import (
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"synthchain/core/events"
	nativecommon "synthchain/native/common"
	"synthchain/observability/metrics"
)

// Engine accrues trading fees and inflation rewards into time-boxed periods
// held in a fixed ring, and pays debt-share holders their pro-rata claim on
// closed periods. Rotation never copies period records: a base offset walks
// the ring and the evicted period's unclaimed remainder is folded into the
// next-oldest period so value is conserved.
type Engine struct {
	mu             sync.Mutex
	state          State
	shares         SharesView
	aggregate      AggregateSource
	tokens         TokenMintBurn
	escrow         RewardsEscrow
	aggregator     DebtAggregator
	pauses         nativecommon.PauseView
	emitter        events.Emitter
	logger         *slog.Logger
	clock          clockwork.Clock
	periodCount    int
	minDuration    time.Duration
	vesting        time.Duration
	claimThreshold *big.Rat
	feeAccount     [20]byte
	authorities    map[[20]byte]struct{}
}

// NewEngine constructs a fee pool with a ring of periodCount periods. The fee
// account holds accrued stable-asset fees until claims burn-then-reissue them.
func NewEngine(state State, periodCount int, minDuration, vesting time.Duration, claimThreshold *big.Rat, feeAccount [20]byte) *Engine {
	if periodCount < MinimumPeriodCount {
		periodCount = MinimumPeriodCount
	}
	return &Engine{
		state:          state,
		clock:          clockwork.NewRealClock(),
		periodCount:    periodCount,
		minDuration:    minDuration,
		vesting:        vesting,
		claimThreshold: claimThreshold,
		feeAccount:     feeAccount,
		authorities:    make(map[[20]byte]struct{}),
	}
}

// SetShares wires the share ledger view used for ownership and ratio checks.
func (e *Engine) SetShares(view SharesView) {
	if e == nil {
		return
	}
	e.shares = view
}

// SetAggregate wires the cross-instance debt/share-supply source.
func (e *Engine) SetAggregate(source AggregateSource) {
	if e == nil {
		return
	}
	e.aggregate = source
}

// SetTokens wires the stable asset mint/burn collaborator.
func (e *Engine) SetTokens(tokens TokenMintBurn) {
	if e == nil {
		return
	}
	e.tokens = tokens
}

// SetEscrow wires the reward vesting collaborator.
func (e *Engine) SetEscrow(escrow RewardsEscrow) {
	if e == nil {
		return
	}
	e.escrow = escrow
}

// SetAggregator wires the collaborator notified after each rollover.
func (e *Engine) SetAggregator(aggregator DebtAggregator) {
	if e == nil {
		return
	}
	e.aggregator = aggregator
}

// SetPauses wires the engine to the system-wide suspension flags.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter wires the engine to an event sink.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	e.emitter = emitter
}

// SetLogger attaches a structured logger.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if e == nil {
		return
	}
	e.logger = logger
}

// SetClock overrides the wall clock, primarily for tests.
func (e *Engine) SetClock(clock clockwork.Clock) {
	if e == nil || clock == nil {
		return
	}
	e.clock = clock
}

// Authorize grants the address the right to accrue fees and rewards.
func (e *Engine) Authorize(addr [20]byte) {
	if e == nil {
		return
	}
	e.authorities[addr] = struct{}{}
}

func (e *Engine) requireAuthority(caller [20]byte) error {
	if _, ok := e.authorities[caller]; !ok {
		return ErrUnauthorized
	}
	return nil
}

// recentSlot maps a logical ring index (0 = open) to its physical slot.
func (e *Engine) recentSlot(base uint64, index int) uint64 {
	return (base + uint64(index)) % uint64(e.periodCount)
}

func (e *Engine) loadPeriod(slot uint64) (*FeePeriod, error) {
	period, err := e.state.Period(slot)
	if err != nil {
		return nil, err
	}
	if period == nil {
		period = NewFeePeriod(0, 0)
	}
	return period.normalise(), nil
}

// openPeriod loads the open slot, stamping a never-opened ring on first use.
func (e *Engine) openPeriod(base uint64) (*FeePeriod, uint64, error) {
	slot := e.recentSlot(base, OpenPeriodIndex)
	period, err := e.loadPeriod(slot)
	if err != nil {
		return nil, 0, err
	}
	if period.ID == 0 {
		now := e.clock.Now().Unix()
		period.ID = uint64(now)
		period.StartTime = now
	}
	return period, slot, nil
}

// RecordFeePaid accrues exchanged fees onto the open period. Restricted to
// trusted collaborators.
func (e *Engine) RecordFeePaid(caller [20]byte, amount *big.Int) error {
	return e.accrue(caller, amount, func(p *FeePeriod, v *big.Int) {
		p.FeesToDistribute = new(big.Int).Add(p.FeesToDistribute, v)
	})
}

// SetRewardsToDistribute accrues inflation rewards onto the open period.
// Restricted to trusted collaborators.
func (e *Engine) SetRewardsToDistribute(caller [20]byte, amount *big.Int) error {
	return e.accrue(caller, amount, func(p *FeePeriod, v *big.Int) {
		p.RewardsToDistribute = new(big.Int).Add(p.RewardsToDistribute, v)
	})
}

func (e *Engine) accrue(caller [20]byte, amount *big.Int, apply func(*FeePeriod, *big.Int)) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := e.requireAuthority(caller); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, nativecommon.SectionFeePeriod); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	base, err := e.state.PeriodBase()
	if err != nil {
		return err
	}
	period, slot, err := e.openPeriod(base)
	if err != nil {
		return err
	}
	apply(period, amount)
	return e.state.PutPeriod(slot, period)
}

// ClosePeriod seals the open period with the aggregate (debt, shareSupply)
// pair, folds the evicted period's unclaimed remainder into the next-oldest
// period, and rotates the ring. Callable once the minimum duration elapsed.
func (e *Engine) ClosePeriod() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, nativecommon.SectionFeePeriod); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	base, err := e.state.PeriodBase()
	if err != nil {
		return err
	}
	open, openSlot, err := e.openPeriod(base)
	if err != nil {
		return err
	}
	now := e.clock.Now()
	if now.Unix()-open.StartTime < int64(e.minDuration/time.Second) {
		return ErrPeriodTooEarly
	}

	var debt, supply *big.Int
	if e.aggregate != nil {
		debt, supply, _, _ = e.aggregate.AggregateDebtAndShareSupply()
	}
	open.DebtAtClose = copyBigInt(debt)
	open.ShareSupplyAtClose = copyBigInt(supply)

	oldestSlot := e.recentSlot(base, e.periodCount-1)
	oldest, err := e.loadPeriod(oldestSlot)
	if err != nil {
		return err
	}
	carryFees := new(big.Int).Sub(oldest.FeesToDistribute, oldest.FeesClaimed)
	if carryFees.Sign() < 0 {
		carryFees.SetInt64(0)
	}
	carryRewards := new(big.Int).Sub(oldest.RewardsToDistribute, oldest.RewardsClaimed)
	if carryRewards.Sign() < 0 {
		carryRewards.SetInt64(0)
	}

	nextOldestSlot := e.recentSlot(base, e.periodCount-2)
	nextOldest := open
	if nextOldestSlot != openSlot {
		nextOldest, err = e.loadPeriod(nextOldestSlot)
		if err != nil {
			return err
		}
	}
	nextOldest.FeesToDistribute = new(big.Int).Add(nextOldest.FeesToDistribute, carryFees)
	nextOldest.RewardsToDistribute = new(big.Int).Add(nextOldest.RewardsToDistribute, carryRewards)

	if err := e.state.PutPeriod(openSlot, open); err != nil {
		return err
	}
	if nextOldestSlot != openSlot {
		if err := e.state.PutPeriod(nextOldestSlot, nextOldest); err != nil {
			return err
		}
	}

	// Rotate: the evicted slot becomes the fresh open period.
	newBase := (base + uint64(e.periodCount) - 1) % uint64(e.periodCount)
	fresh := NewFeePeriod(uint64(now.Unix()), now.Unix())
	if err := e.state.PutPeriod(e.recentSlot(newBase, OpenPeriodIndex), fresh); err != nil {
		return err
	}
	if err := e.state.PutPeriodBase(newBase); err != nil {
		return err
	}

	if e.aggregator != nil {
		e.aggregator.NotifyPeriodClosed(copyBigInt(debt), copyBigInt(supply))
	}
	metrics.Synth().RecordPeriodClose()
	e.emit(events.FeePeriodClosed{
		PeriodID:           open.ID,
		DebtAtClose:        copyBigInt(open.DebtAtClose),
		ShareSupplyAtClose: copyBigInt(open.ShareSupplyAtClose),
		FeesCarried:        carryFees,
		RewardsCarried:     carryRewards,
	})
	if e.logger != nil {
		e.logger.Info("fee period closed",
			"period_id", open.ID,
			"debt_at_close", open.DebtAtClose.String(),
			"fees_carried", carryFees.String())
	}
	return nil
}

// FeesAvailable returns the total claimable fees and rewards across closed
// periods the account has not yet claimed. The open period is excluded; use
// FeesByPeriod for display.
func (e *Engine) FeesAvailable(account [20]byte) (*big.Int, *big.Int, error) {
	if e == nil || e.state == nil {
		return nil, nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	entitlements, err := e.entitlementsLocked(account)
	if err != nil {
		return nil, nil, err
	}
	fees := big.NewInt(0)
	rewards := big.NewInt(0)
	for _, entry := range entitlements {
		if !entry.Claimable {
			continue
		}
		fees.Add(fees, entry.Fees)
		rewards.Add(rewards, entry.Rewards)
	}
	return fees, rewards, nil
}

// FeesByPeriod reports the account's entitlement per ring period, newest to
// oldest, including the open (display-only) period.
func (e *Engine) FeesByPeriod(account [20]byte) ([]PeriodEntitlement, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.entitlementsLocked(account)
}

func (e *Engine) entitlementsLocked(account [20]byte) ([]PeriodEntitlement, error) {
	if e.shares == nil {
		return nil, ErrNilShares
	}
	base, err := e.state.PeriodBase()
	if err != nil {
		return nil, err
	}
	balance, err := e.shares.Balance(account)
	if err != nil {
		return nil, err
	}
	balance = copyBigInt(balance)
	lastClaimed, err := e.state.LastClaimedPeriod(account)
	if err != nil {
		return nil, err
	}
	out := make([]PeriodEntitlement, 0, e.periodCount)
	for i := 0; i < e.periodCount; i++ {
		period, err := e.loadPeriod(e.recentSlot(base, i))
		if err != nil {
			return nil, err
		}
		entry := PeriodEntitlement{
			PeriodID: period.ID,
			Index:    i,
			Fees:     big.NewInt(0),
			Rewards:  big.NewInt(0),
		}
		if i == OpenPeriodIndex {
			// Display estimate against the live supply; never claimable.
			entry.Fees, entry.Rewards = e.openEstimate(balance, period)
			out = append(out, entry)
			continue
		}
		if period.ID == 0 || period.ID <= lastClaimed {
			out = append(out, entry)
			continue
		}
		entry.Fees = proRata(balance, period.ShareSupplyAtClose, period.FeesToDistribute)
		entry.Rewards = proRata(balance, period.ShareSupplyAtClose, period.RewardsToDistribute)
		entry.Claimable = entry.Fees.Sign() > 0 || entry.Rewards.Sign() > 0
		out = append(out, entry)
	}
	return out, nil
}

func (e *Engine) openEstimate(balance *big.Int, period *FeePeriod) (*big.Int, *big.Int) {
	supply, err := e.shares.Supply()
	if err != nil || supply == nil || supply.Sign() == 0 {
		return big.NewInt(0), big.NewInt(0)
	}
	return proRata(balance, supply, period.FeesToDistribute),
		proRata(balance, supply, period.RewardsToDistribute)
}

// Claim pays the account its pro-rata fees across all unclaimed closed
// periods and escrows rewards for the vesting duration. A claim may span
// several periods; each period releases at most its outstanding remainder.
func (e *Engine) Claim(account [20]byte) (*big.Int, *big.Int, error) {
	if e == nil || e.state == nil {
		return nil, nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, nativecommon.SectionClaims); err != nil {
		return nil, nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.shares == nil {
		return nil, nil, ErrNilShares
	}
	ratio, err := e.shares.CollateralisationRatio(account)
	if err != nil {
		return nil, nil, err
	}
	if e.claimThreshold != nil && ratio != nil && ratio.Cmp(e.claimThreshold) > 0 {
		return nil, nil, ErrRatioTooHigh
	}

	entitlements, err := e.entitlementsLocked(account)
	if err != nil {
		return nil, nil, err
	}
	owedFees := big.NewInt(0)
	owedRewards := big.NewInt(0)
	for _, entry := range entitlements {
		if !entry.Claimable {
			continue
		}
		owedFees.Add(owedFees, entry.Fees)
		owedRewards.Add(owedRewards, entry.Rewards)
	}
	if owedFees.Sign() == 0 && owedRewards.Sign() == 0 {
		return nil, nil, ErrNothingToClaim
	}

	base, err := e.state.PeriodBase()
	if err != nil {
		return nil, nil, err
	}
	// Pin the claim marker to the newest closed period that actually exists;
	// an empty slot must not reset the marker to zero.
	var lastClaimedID uint64
	for i := FirstClosedPeriod; i < e.periodCount; i++ {
		period, err := e.loadPeriod(e.recentSlot(base, i))
		if err != nil {
			return nil, nil, err
		}
		if period.ID != 0 {
			lastClaimedID = period.ID
			break
		}
	}

	// Allocate oldest to newest so carry-over remainders drain first. The
	// allocations stage in memory; nothing persists until every collaborator
	// effect has succeeded.
	type allocation struct {
		slot   uint64
		period *FeePeriod
	}
	feesLeft := new(big.Int).Set(owedFees)
	rewardsLeft := new(big.Int).Set(owedRewards)
	staged := make([]allocation, 0, e.periodCount)
	for i := e.periodCount - 1; i >= FirstClosedPeriod; i-- {
		if feesLeft.Sign() == 0 && rewardsLeft.Sign() == 0 {
			break
		}
		slot := e.recentSlot(base, i)
		period, err := e.loadPeriod(slot)
		if err != nil {
			return nil, nil, err
		}
		if period.ID == 0 {
			continue
		}
		feeTake := allocate(period.FeesToDistribute, period.FeesClaimed, feesLeft)
		rewardTake := allocate(period.RewardsToDistribute, period.RewardsClaimed, rewardsLeft)
		if feeTake.Sign() == 0 && rewardTake.Sign() == 0 {
			continue
		}
		period.FeesClaimed = new(big.Int).Add(period.FeesClaimed, feeTake)
		period.RewardsClaimed = new(big.Int).Add(period.RewardsClaimed, rewardTake)
		feesLeft.Sub(feesLeft, feeTake)
		rewardsLeft.Sub(rewardsLeft, rewardTake)
		staged = append(staged, allocation{slot: slot, period: period})
	}

	paidFees := new(big.Int).Sub(owedFees, feesLeft)
	paidRewards := new(big.Int).Sub(owedRewards, rewardsLeft)
	if paidFees.Sign() > 0 && e.tokens != nil {
		if err := e.tokens.BurnStable(e.feeAccount, new(big.Int).Set(paidFees)); err != nil {
			return nil, nil, err
		}
		if err := e.tokens.IssueStable(account, new(big.Int).Set(paidFees)); err != nil {
			return nil, nil, err
		}
	}
	if paidRewards.Sign() > 0 && e.escrow != nil {
		if err := e.escrow.Deposit(account, new(big.Int).Set(paidRewards), e.vesting); err != nil {
			return nil, nil, err
		}
	}

	for _, entry := range staged {
		if err := e.state.PutPeriod(entry.slot, entry.period); err != nil {
			return nil, nil, err
		}
	}
	if lastClaimedID != 0 {
		if err := e.state.PutLastClaimedPeriod(account, lastClaimedID); err != nil {
			return nil, nil, err
		}
	}
	metrics.Synth().RecordClaim(paidFees)
	e.emit(events.FeesClaimed{Account: account, Fees: paidFees, Rewards: paidRewards})
	return paidFees, paidRewards, nil
}

// ImportFeePeriod backfills a closed ring slot during instance migration. The
// target slot must be empty.
func (e *Engine) ImportFeePeriod(caller [20]byte, index int, period *FeePeriod) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := e.requireAuthority(caller); err != nil {
		return err
	}
	if index < FirstClosedPeriod || index >= e.periodCount {
		return ErrInvalidIndex
	}
	if period == nil {
		return ErrInvalidAmount
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	base, err := e.state.PeriodBase()
	if err != nil {
		return err
	}
	slot := e.recentSlot(base, index)
	existing, err := e.loadPeriod(slot)
	if err != nil {
		return err
	}
	if existing.ID != 0 {
		return ErrPeriodNotEmpty
	}
	return e.state.PutPeriod(slot, period.Clone().normalise())
}

// EffectiveDebtRatio returns debtAtClose/shareSupplyAtClose for a closed
// period. Nil when the period never closed or sealed a zero supply.
func (e *Engine) EffectiveDebtRatio(index int) (*big.Rat, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if index < FirstClosedPeriod || index >= e.periodCount {
		return nil, ErrInvalidIndex
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	base, err := e.state.PeriodBase()
	if err != nil {
		return nil, err
	}
	period, err := e.loadPeriod(e.recentSlot(base, index))
	if err != nil {
		return nil, err
	}
	if period.ID == 0 || period.ShareSupplyAtClose.Sign() == 0 {
		return nil, nil
	}
	return new(big.Rat).SetFrac(period.DebtAtClose, period.ShareSupplyAtClose), nil
}

// RecentPeriod returns a copy of the period at the supplied logical index.
func (e *Engine) RecentPeriod(index int) (*FeePeriod, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if index < 0 || index >= e.periodCount {
		return nil, ErrInvalidIndex
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	base, err := e.state.PeriodBase()
	if err != nil {
		return nil, err
	}
	period, err := e.loadPeriod(e.recentSlot(base, index))
	if err != nil {
		return nil, err
	}
	return period.Clone(), nil
}

// proRata computes floor(balance/supply * amount), capping ownership at one.
func proRata(balance, supply, amount *big.Int) *big.Int {
	if balance == nil || supply == nil || amount == nil {
		return big.NewInt(0)
	}
	if balance.Sign() <= 0 || supply.Sign() <= 0 || amount.Sign() <= 0 {
		return big.NewInt(0)
	}
	if balance.Cmp(supply) >= 0 {
		return new(big.Int).Set(amount)
	}
	value := new(big.Int).Mul(balance, amount)
	return value.Quo(value, supply)
}

// allocate returns min(outstanding remainder, requested).
func allocate(total, claimed, requested *big.Int) *big.Int {
	remaining := new(big.Int).Sub(total, claimed)
	if remaining.Sign() <= 0 || requested.Sign() <= 0 {
		return big.NewInt(0)
	}
	if remaining.Cmp(requested) > 0 {
		return new(big.Int).Set(requested)
	}
	return remaining
}

func (e *Engine) emit(event events.Event) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(event)
}
