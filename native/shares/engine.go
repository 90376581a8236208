package shares

import (
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"synthchain/core/events"
	nativecommon "synthchain/native/common"
	"synthchain/observability/metrics"
)

// Engine keeps the per-account debt share ledger. Shares represent a
// proportional claim on total system debt, decoupled from which specific
// assets exist. Every mutation runs the circuit breaker against the observed
// global debt ratio and aborts cleanly on invalid or stale prices.
type Engine struct {
	mu          sync.Mutex
	state       State
	debtCache   DebtCache
	prices      PriceSource
	collateral  CollateralValuer
	tokens      TokenMintBurn
	pauses      nativecommon.PauseView
	suspender   nativecommon.Suspender
	emitter     events.Emitter
	logger      *slog.Logger
	stableAsset string
	// breakerThreshold bounds the allowed factor between consecutive debt
	// ratio observations. issuanceRatio caps debt per unit of collateral.
	breakerThreshold *big.Rat
	issuanceRatio    *big.Rat
}

// NewEngine constructs a share ledger. The stable asset names the cached debt
// line adjusted as shares are issued and burned.
func NewEngine(state State, debtCache DebtCache, stableAsset string, breakerThreshold, issuanceRatio *big.Rat) *Engine {
	return &Engine{
		state:            state,
		debtCache:        debtCache,
		stableAsset:      stableAsset,
		breakerThreshold: breakerThreshold,
		issuanceRatio:    issuanceRatio,
	}
}

// SetPrices wires the per-asset rate source used for denomination conversion.
func (e *Engine) SetPrices(prices PriceSource) {
	if e == nil {
		return
	}
	e.prices = prices
}

// SetCollateralValuer wires the collateral valuation collaborator.
func (e *Engine) SetCollateralValuer(valuer CollateralValuer) {
	if e == nil {
		return
	}
	e.collateral = valuer
}

// SetTokens wires the stable asset mint/burn collaborator.
func (e *Engine) SetTokens(tokens TokenMintBurn) {
	if e == nil {
		return
	}
	e.tokens = tokens
}

// SetPauses wires the engine to the system-wide suspension flags.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetSuspender wires the flag the circuit breaker flips when it trips.
func (e *Engine) SetSuspender(s nativecommon.Suspender) {
	if e == nil {
		return
	}
	e.suspender = s
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

// Issue mints debt shares against newly created stable-asset debt. When share
// supply is zero the first minter bootstraps at one share per unit. A tripped
// circuit breaker completes the call as a no-op; invalid or stale prices and
// over-cap amounts abort with no state change.
func (e *Engine) Issue(account [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, nativecommon.SectionIssuance); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	total, supply, err := e.trustedDebtAndSupply()
	if err != nil {
		return err
	}
	ok, err := e.runBreaker(total, supply)
	if err != nil {
		return err
	}
	if !ok {
		// Fail soft: the triggering call is a no-op while the suspension
		// flag halts everything after it.
		return nil
	}

	issuable, err := e.maxIssuableLocked(account, total, supply)
	if err != nil {
		return err
	}
	if issuable != nil && amount.Cmp(issuable) > 0 {
		return ErrOverMaxIssuable
	}

	minted := sharesForAmount(amount, supply, total)
	balance, err := e.state.ShareBalance(account)
	if err != nil {
		return err
	}
	newBalance := new(big.Int).Add(copyBigInt(balance), minted)
	newSupply := new(big.Int).Add(supply, minted)

	// Collaborator effects run before any ledger write so a failed mint
	// aborts with no partial state.
	if e.tokens != nil {
		if err := e.tokens.IssueStable(account, new(big.Int).Set(amount)); err != nil {
			return err
		}
	}
	if err := e.debtCache.RecordDebtDelta(e.stableAsset, new(big.Int).Set(amount)); err != nil {
		return err
	}
	if err := e.state.PutShareBalance(account, newBalance); err != nil {
		return err
	}
	if err := e.state.PutShareSupply(newSupply); err != nil {
		return err
	}
	metrics.Synth().SetShareSupply(newSupply)
	e.emit(events.SharesIssued{Account: account, Amount: new(big.Int).Set(amount), Shares: minted})
	return nil
}

// Burn retires debt shares against repaid debt. The burn clamps to the
// account's balance rather than failing on excess amounts; liquidation
// policies rely on being able to burn "everything" without prior balance
// queries.
func (e *Engine) Burn(account [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, nativecommon.SectionBurning); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	total, supply, err := e.trustedDebtAndSupply()
	if err != nil {
		return err
	}
	ok, err := e.runBreaker(total, supply)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	balance, err := e.state.ShareBalance(account)
	if err != nil {
		return err
	}
	balance = copyBigInt(balance)
	if supply.Sign() == 0 || balance.Sign() == 0 {
		return nil
	}

	burned := sharesForAmount(amount, supply, total)
	repaid := new(big.Int).Set(amount)
	if burned.Cmp(balance) >= 0 {
		burned = new(big.Int).Set(balance)
		repaid = amountForShares(burned, supply, total)
	}
	if burned.Sign() == 0 {
		return nil
	}

	newBalance := new(big.Int).Sub(balance, burned)
	newSupply := new(big.Int).Sub(supply, burned)
	// Collaborator effects run before any ledger write so a failed burn
	// aborts with no partial state.
	if repaid.Sign() > 0 {
		if e.tokens != nil {
			if err := e.tokens.BurnStable(account, new(big.Int).Set(repaid)); err != nil {
				return err
			}
		}
		if err := e.debtCache.RecordDebtDelta(e.stableAsset, new(big.Int).Neg(repaid)); err != nil {
			return err
		}
	}
	if err := e.state.PutShareBalance(account, newBalance); err != nil {
		return err
	}
	if err := e.state.PutShareSupply(newSupply); err != nil {
		return err
	}
	metrics.Synth().SetShareSupply(newSupply)
	e.emit(events.SharesBurned{Account: account, Amount: repaid, Shares: burned})
	return nil
}

// Balance returns the account's share balance.
func (e *Engine) Balance(account [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	balance, err := e.state.ShareBalance(account)
	if err != nil {
		return nil, err
	}
	return copyBigInt(balance), nil
}

// Supply returns the total outstanding shares.
func (e *Engine) Supply() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	supply, err := e.state.ShareSupply()
	if err != nil {
		return nil, err
	}
	return copyBigInt(supply), nil
}

// DebtBalanceOf returns the account's proportional claim on system debt,
// denominated in the supplied asset. Zero when no shares are outstanding.
func (e *Engine) DebtBalanceOf(account [20]byte, asset string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	value, err := e.debtBalanceLocked(account)
	if err != nil {
		return nil, err
	}
	if asset == "" || equalAsset(asset, e.stableAsset) {
		return ratFloor(value), nil
	}
	if e.prices == nil {
		return nil, ErrInvalidPrice
	}
	rate, invalid := e.prices.Rate(asset)
	if invalid || rate == nil || rate.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	converted := new(big.Rat).Quo(value, rate)
	return ratFloor(converted), nil
}

// CollateralisationRatio returns debt / collateral value for the account in
// reference units. Zero when the account holds no collateral.
func (e *Engine) CollateralisationRatio(account [20]byte) (*big.Rat, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.collateralisationRatioLocked(account)
}

func (e *Engine) collateralisationRatioLocked(account [20]byte) (*big.Rat, error) {
	debtValue, err := e.debtBalanceLocked(account)
	if err != nil {
		return nil, err
	}
	if e.collateral == nil {
		return new(big.Rat), nil
	}
	collateral := e.collateral.CollateralValue(account)
	if collateral == nil || collateral.Sign() == 0 {
		return new(big.Rat), nil
	}
	return new(big.Rat).Quo(debtValue, collateral), nil
}

// MaxIssuable returns how much additional stable-asset debt the account may
// take on given its collateral value and the issuance ratio.
func (e *Engine) MaxIssuable(account [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	total, supply, err := e.trustedDebtAndSupply()
	if err != nil {
		return nil, err
	}
	issuable, err := e.maxIssuableLocked(account, total, supply)
	if err != nil {
		return nil, err
	}
	if issuable == nil {
		return nil, nil
	}
	return new(big.Int).Set(issuable), nil
}

// VerifyCircuitBreaker evaluates the breaker against the current debt ratio.
// It returns false after suspending issuance and burning when the observed
// deviation exceeds the configured factor; the stored ratio then stays at its
// last trusted value.
func (e *Engine) VerifyCircuitBreaker() (bool, error) {
	if e == nil || e.state == nil {
		return false, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	total, supply, err := e.trustedDebtAndSupply()
	if err != nil {
		return false, err
	}
	return e.runBreaker(total, supply)
}

func (e *Engine) runBreaker(total, supply *big.Int) (bool, error) {
	last, err := e.state.LastDebtRatio()
	if err != nil {
		return false, err
	}
	var fresh *big.Rat
	if supply.Sign() > 0 {
		fresh = new(big.Rat).SetFrac(new(big.Int).Set(total), new(big.Int).Set(supply))
	}
	outcome := evaluateBreaker(last, fresh, e.breakerThreshold)
	if outcome.tripped {
		if e.suspender != nil {
			e.suspender.Suspend(nativecommon.SectionIssuance, "debt ratio deviation")
			e.suspender.Suspend(nativecommon.SectionBurning, "debt ratio deviation")
		}
		metrics.Synth().RecordBreakerTrip()
		e.emit(events.CircuitBreakerTripped{
			LastRatio:  ratString(outcome.last),
			FreshRatio: ratString(outcome.fresh),
			Deviation:  ratString(outcome.deviation),
		})
		if e.logger != nil {
			e.logger.Warn("circuit breaker tripped",
				"last_ratio", ratString(outcome.last),
				"fresh_ratio", ratString(outcome.fresh))
		}
		return false, nil
	}
	if fresh != nil && (last == nil || last.Cmp(fresh) != 0) {
		if err := e.state.PutLastDebtRatio(fresh); err != nil {
			return false, err
		}
	}
	return true, nil
}

// trustedDebtAndSupply loads the cached debt and share supply, rejecting when
// the cache is flagged invalid or has gone stale. The stale cache is never
// silently reused.
func (e *Engine) trustedDebtAndSupply() (*big.Int, *big.Int, error) {
	if e.debtCache == nil {
		return nil, nil, ErrNilDebtCache
	}
	total, invalid, stale, err := e.debtCache.CachedDebt()
	if err != nil {
		return nil, nil, err
	}
	if invalid {
		return nil, nil, ErrInvalidPrice
	}
	if stale {
		return nil, nil, ErrStalePrice
	}
	supply, err := e.state.ShareSupply()
	if err != nil {
		return nil, nil, err
	}
	return total, copyBigInt(supply), nil
}

func (e *Engine) debtBalanceLocked(account [20]byte) (*big.Rat, error) {
	total, supply, err := e.trustedDebtAndSupply()
	if err != nil {
		return nil, err
	}
	if supply.Sign() == 0 {
		return new(big.Rat), nil
	}
	balance, err := e.state.ShareBalance(account)
	if err != nil {
		return nil, err
	}
	balance = copyBigInt(balance)
	if balance.Sign() == 0 {
		return new(big.Rat), nil
	}
	value := new(big.Rat).SetFrac(new(big.Int).Mul(balance, total), supply)
	return value, nil
}

func (e *Engine) maxIssuableLocked(account [20]byte, total, supply *big.Int) (*big.Int, error) {
	if e.collateral == nil || e.issuanceRatio == nil || e.issuanceRatio.Sign() <= 0 {
		// No collateral policy wired: issuance is uncapped.
		return nil, nil
	}
	collateral := e.collateral.CollateralValue(account)
	if collateral == nil || collateral.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	cap := new(big.Rat).Mul(collateral, e.issuanceRatio)
	existing := new(big.Rat)
	if supply.Sign() > 0 {
		balance, err := e.state.ShareBalance(account)
		if err != nil {
			return nil, err
		}
		balance = copyBigInt(balance)
		if balance.Sign() > 0 {
			existing.SetFrac(new(big.Int).Mul(balance, total), supply)
		}
	}
	headroom := new(big.Rat).Sub(cap, existing)
	if headroom.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	return ratFloor(headroom), nil
}

// sharesForAmount converts a stable-asset amount into shares at the current
// ratio, bootstrapping one share per unit when no shares or debt exist.
func sharesForAmount(amount, supply, total *big.Int) *big.Int {
	if supply.Sign() == 0 || total.Sign() == 0 {
		return new(big.Int).Set(amount)
	}
	minted := new(big.Int).Mul(amount, supply)
	minted.Quo(minted, total)
	if minted.Sign() == 0 && amount.Sign() > 0 {
		minted.SetInt64(1)
	}
	return minted
}

// amountForShares converts shares back into a stable-asset amount.
func amountForShares(count, supply, total *big.Int) *big.Int {
	if supply.Sign() == 0 {
		return big.NewInt(0)
	}
	amount := new(big.Int).Mul(count, total)
	return amount.Quo(amount, supply)
}

func (e *Engine) emit(event events.Event) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(event)
}

func equalAsset(a, b string) bool {
	return normaliseAsset(a) == normaliseAsset(b)
}

func normaliseAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}

func ratFloor(r *big.Rat) *big.Int {
	if r == nil || r.Sign() <= 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Quo(r.Num(), r.Denom())
}

func ratString(r *big.Rat) string {
	if r == nil {
		return ""
	}
	return r.FloatString(6)
}

func copyBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
