package debt

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

const moduleName = nativecommon.SectionDebtCache

// Engine maintains the cached system debt snapshot. Reads degrade gracefully
// when a single feed is stale or flagged: the missing contribution counts as
// zero and the cache is marked invalid rather than poisoned with a default
// price. All operations serialize behind a single writer.
type Engine struct {
	mu          sync.Mutex
	state       State
	prices      PriceSource
	supplies    SupplyView
	external    ExternalDebtSource
	pauses      nativecommon.PauseView
	emitter     events.Emitter
	logger      *slog.Logger
	clock       clockwork.Clock
	staleness   time.Duration
	authorities map[[20]byte]struct{}
}

// NewEngine constructs a debt ledger over the supplied state, price and supply
// sources. The staleness window bounds how long a snapshot stays trusted.
func NewEngine(state State, prices PriceSource, supplies SupplyView, staleness time.Duration) *Engine {
	return &Engine{
		state:       state,
		prices:      prices,
		supplies:    supplies,
		clock:       clockwork.NewRealClock(),
		staleness:   staleness,
		authorities: make(map[[20]byte]struct{}),
	}
}

// SetExternalDebt wires the source reporting debt carried outside the
// per-asset supplies.
func (e *Engine) SetExternalDebt(source ExternalDebtSource) {
	if e == nil {
		return
	}
	e.external = source
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

// Authorize grants the address the right to mutate the cache.
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

// contribution resolves one asset's uncached debt contribution. A missing or
// non-positive rate contributes zero and flips the invalid flag.
func (e *Engine) contribution(asset string) (*big.Int, bool) {
	supply := e.supplies.AssetSupply(asset)
	if supply == nil || supply.Sign() <= 0 {
		return big.NewInt(0), false
	}
	rate, invalid := e.prices.Rate(asset)
	if rate == nil || rate.Sign() <= 0 {
		return big.NewInt(0), true
	}
	value := new(big.Rat).SetInt(supply)
	value.Mul(value, rate)
	return new(big.Int).Quo(value.Num(), value.Denom()), invalid
}

// externalContribution resolves the external-debt term. A nil source
// contributes zero; a flagged report contributes its value and flips invalid.
func (e *Engine) externalContribution() (*big.Int, bool) {
	if e.external == nil {
		return big.NewInt(0), false
	}
	value, invalid := e.external.ExternalDebt()
	if value == nil || value.Sign() < 0 {
		return big.NewInt(0), true
	}
	return new(big.Int).Set(value), invalid
}

// CurrentDebt recomputes the total system debt for the supplied asset set
// without touching the cache. anyInvalid reports whether any feed was stale
// or flagged during the computation.
func (e *Engine) CurrentDebt(keys []string) (*big.Int, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	snapshot, err := e.loadSnapshot()
	if err != nil {
		return nil, false, err
	}
	total := big.NewInt(0)
	anyInvalid := false
	for _, key := range keys {
		asset := NormaliseAsset(key)
		if asset == "" {
			return nil, false, ErrInvalidAsset
		}
		value, invalid := e.contribution(asset)
		total.Add(total, value)
		anyInvalid = anyInvalid || invalid
	}
	external, invalid := e.externalContribution()
	total.Add(total, external)
	anyInvalid = anyInvalid || invalid
	for _, value := range snapshot.Excluded {
		if value != nil {
			total.Sub(total, value)
		}
	}
	if total.Sign() < 0 {
		total.SetInt64(0)
	}
	return total, anyInvalid, nil
}

// TakeSnapshot recomputes every supplied asset's contribution and writes the
// full snapshot, stamping the current time. This is the only non-privileged
// path that clears a previously set invalid flag.
func (e *Engine) TakeSnapshot(caller [20]byte, keys []string) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := e.requireAuthority(caller); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	snapshot, err := e.loadSnapshot()
	if err != nil {
		return err
	}
	updated := snapshot.Clone()
	updated.PerAsset = make(map[string]*big.Int, len(keys))
	anyInvalid := false
	for _, key := range keys {
		asset := NormaliseAsset(key)
		if asset == "" {
			return ErrInvalidAsset
		}
		value, invalid := e.contribution(asset)
		updated.PerAsset[asset] = value
		anyInvalid = anyInvalid || invalid
	}
	external, invalid := e.externalContribution()
	updated.External = external
	anyInvalid = anyInvalid || invalid
	updated.recomputeTotal()
	updated.Timestamp = e.clock.Now().Unix()
	updated.Invalid = anyInvalid
	if err := e.state.PutDebtSnapshot(updated); err != nil {
		return err
	}
	metrics.Synth().RecordSnapshot(updated.TotalDebt)
	e.emit(events.DebtSnapshotTaken{
		TotalDebt: new(big.Int).Set(updated.TotalDebt),
		Assets:    len(updated.PerAsset),
		Timestamp: updated.Timestamp,
		Invalid:   updated.Invalid,
	})
	if e.logger != nil {
		e.logger.Info("debt snapshot taken",
			"total", updated.TotalDebt.String(),
			"assets", len(updated.PerAsset),
			"invalid", updated.Invalid)
	}
	return nil
}

// UpdateCachedRates incrementally replaces the stored contributions for the
// named assets using the supplied rates, leaving other assets untouched.
// Invalidity is monotonic here: anyInvalid marks the cache invalid, while a
// valid batch never clears a previously set flag.
func (e *Engine) UpdateCachedRates(caller [20]byte, keys []string, rates []*big.Rat, anyInvalid bool) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := e.requireAuthority(caller); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if len(keys) != len(rates) {
		return ErrLengthMismatch
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	snapshot, err := e.loadSnapshot()
	if err != nil {
		return err
	}
	updated := snapshot.Clone()
	for i, key := range keys {
		asset := NormaliseAsset(key)
		if asset == "" {
			return ErrInvalidAsset
		}
		rate := rates[i]
		value := big.NewInt(0)
		if rate == nil || rate.Sign() <= 0 {
			anyInvalid = true
		} else {
			supply := e.supplies.AssetSupply(asset)
			if supply != nil && supply.Sign() > 0 {
				scaled := new(big.Rat).SetInt(supply)
				scaled.Mul(scaled, rate)
				value = new(big.Int).Quo(scaled.Num(), scaled.Denom())
			}
		}
		updated.PerAsset[asset] = value
	}
	updated.recomputeTotal()
	wasValid := !updated.Invalid
	if anyInvalid {
		updated.Invalid = true
	}
	if err := e.state.PutDebtSnapshot(updated); err != nil {
		return err
	}
	metrics.Synth().SetCachedDebt(updated.TotalDebt)
	if anyInvalid && wasValid {
		e.emit(events.DebtCacheInvalidated{Timestamp: e.clock.Now().Unix()})
	}
	return nil
}

// PurgeCachedAsset removes a retired asset's entry from the cache.
func (e *Engine) PurgeCachedAsset(caller [20]byte, key string) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := e.requireAuthority(caller); err != nil {
		return err
	}
	asset := NormaliseAsset(key)
	if asset == "" {
		return ErrInvalidAsset
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	snapshot, err := e.loadSnapshot()
	if err != nil {
		return err
	}
	if _, ok := snapshot.PerAsset[asset]; !ok {
		return ErrUnknownAsset
	}
	updated := snapshot.Clone()
	delete(updated.PerAsset, asset)
	updated.recomputeTotal()
	return e.state.PutDebtSnapshot(updated)
}

// RecordDebtDelta adjusts one asset's cached contribution by a signed delta.
// The share ledger uses it to keep the stable-asset line in sync as debt is
// created and repaid without waiting for the next full snapshot.
func (e *Engine) RecordDebtDelta(caller [20]byte, key string, delta *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := e.requireAuthority(caller); err != nil {
		return err
	}
	asset := NormaliseAsset(key)
	if asset == "" {
		return ErrInvalidAsset
	}
	if delta == nil {
		return ErrInvalidAmount
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	snapshot, err := e.loadSnapshot()
	if err != nil {
		return err
	}
	current := big.NewInt(0)
	if stored, ok := snapshot.PerAsset[asset]; ok && stored != nil {
		current = stored
	}
	next := new(big.Int).Add(current, delta)
	if next.Sign() < 0 {
		return ErrNegativeDebt
	}
	updated := snapshot.Clone()
	updated.PerAsset[asset] = next
	updated.recomputeTotal()
	if err := e.state.PutDebtSnapshot(updated); err != nil {
		return err
	}
	metrics.Synth().SetCachedDebt(updated.TotalDebt)
	return nil
}

// RecordExcludedDebtDelta adjusts the excluded (non-native-backed) debt ledger
// for an asset. The resulting entry must stay non-negative.
func (e *Engine) RecordExcludedDebtDelta(caller [20]byte, key string, delta *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := e.requireAuthority(caller); err != nil {
		return err
	}
	asset := NormaliseAsset(key)
	if asset == "" {
		return ErrInvalidAsset
	}
	if delta == nil {
		return ErrInvalidAmount
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	snapshot, err := e.loadSnapshot()
	if err != nil {
		return err
	}
	current := big.NewInt(0)
	if stored, ok := snapshot.Excluded[asset]; ok && stored != nil {
		current = stored
	}
	next := new(big.Int).Add(current, delta)
	if next.Sign() < 0 {
		return ErrNegativeExcluded
	}
	updated := snapshot.Clone()
	updated.Excluded[asset] = next
	updated.recomputeTotal()
	if err := e.state.PutDebtSnapshot(updated); err != nil {
		return err
	}
	e.emit(events.ExcludedDebtUpdated{Asset: asset, Total: new(big.Int).Set(next)})
	return nil
}

// ImportExcludedDebt migrates excluded-debt entries from a prior ledger
// instance. Guarded by a one-shot flag; entries sum into any existing values
// rather than overwriting them.
func (e *Engine) ImportExcludedDebt(caller [20]byte, prior map[string]*big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := e.requireAuthority(caller); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	done, err := e.state.ExcludedImportDone()
	if err != nil {
		return err
	}
	if done {
		return ErrAlreadyImported
	}
	snapshot, err := e.loadSnapshot()
	if err != nil {
		return err
	}
	updated := snapshot.Clone()
	for key, value := range prior {
		asset := NormaliseAsset(key)
		if asset == "" || value == nil || value.Sign() <= 0 {
			continue
		}
		current := big.NewInt(0)
		if stored, ok := updated.Excluded[asset]; ok && stored != nil {
			current = stored
		}
		updated.Excluded[asset] = new(big.Int).Add(current, value)
	}
	updated.recomputeTotal()
	if err := e.state.PutDebtSnapshot(updated); err != nil {
		return err
	}
	return e.state.SetExcludedImportDone()
}

// ResetValidity clears the invalid flag without a full recomputation. This is
// the privileged escape hatch for operator intervention after an upstream
// feed incident.
func (e *Engine) ResetValidity(caller [20]byte) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := e.requireAuthority(caller); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	snapshot, err := e.loadSnapshot()
	if err != nil {
		return err
	}
	if !snapshot.Invalid {
		return nil
	}
	updated := snapshot.Clone()
	updated.Invalid = false
	return e.state.PutDebtSnapshot(updated)
}

// IsStale reports whether the cached snapshot has aged past the staleness
// window or was never taken.
func (e *Engine) IsStale() bool {
	if e == nil || e.state == nil {
		return true
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	snapshot, err := e.loadSnapshot()
	if err != nil {
		return true
	}
	return e.stale(snapshot)
}

func (e *Engine) stale(snapshot *Snapshot) bool {
	if snapshot.Timestamp == 0 {
		return true
	}
	age := e.clock.Now().Unix() - snapshot.Timestamp
	return age > int64(e.staleness/time.Second)
}

// CachedDebt returns the cached total along with the invalid and stale flags.
// Callers requiring a trusted total must reject when either flag is set.
func (e *Engine) CachedDebt() (*big.Int, bool, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, false, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	snapshot, err := e.loadSnapshot()
	if err != nil {
		return nil, false, false, err
	}
	return new(big.Int).Set(snapshot.TotalDebt), snapshot.Invalid, e.stale(snapshot), nil
}

// SnapshotInfo returns a deep copy of the cached snapshot for reporting.
func (e *Engine) SnapshotInfo() (*Snapshot, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	snapshot, err := e.loadSnapshot()
	if err != nil {
		return nil, err
	}
	return snapshot.Clone(), nil
}

func (e *Engine) loadSnapshot() (*Snapshot, error) {
	snapshot, err := e.state.DebtSnapshot()
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		snapshot = NewSnapshot()
	}
	return snapshot.normalise(), nil
}

func (e *Engine) emit(event events.Event) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(event)
}
