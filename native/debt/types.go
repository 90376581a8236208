package debt

import (
	"math/big"
	"strings"
)

// Snapshot caches the system debt decomposition. It exists from construction
// onward: asset entries may be purged but the snapshot itself is never
// deleted. A zero Timestamp marks a snapshot that has never been taken.
type Snapshot struct {
	TotalDebt *big.Int
	PerAsset  map[string]*big.Int
	External  *big.Int
	Excluded  map[string]*big.Int
	Timestamp int64
	Invalid   bool
}

// NewSnapshot returns the initial snapshot: empty, unstamped and flagged
// invalid until the first full recomputation lands.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		TotalDebt: big.NewInt(0),
		PerAsset:  make(map[string]*big.Int),
		External:  big.NewInt(0),
		Excluded:  make(map[string]*big.Int),
		Timestamp: 0,
		Invalid:   true,
	}
}

// Clone returns a deep copy so callers cannot mutate cached state.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return NewSnapshot()
	}
	clone := &Snapshot{
		TotalDebt: copyBigInt(s.TotalDebt),
		PerAsset:  make(map[string]*big.Int, len(s.PerAsset)),
		External:  copyBigInt(s.External),
		Excluded:  make(map[string]*big.Int, len(s.Excluded)),
		Timestamp: s.Timestamp,
		Invalid:   s.Invalid,
	}
	for key, value := range s.PerAsset {
		clone.PerAsset[key] = copyBigInt(value)
	}
	for key, value := range s.Excluded {
		clone.Excluded[key] = copyBigInt(value)
	}
	return clone
}

// normalise backfills nil big.Int fields after decoding or construction.
func (s *Snapshot) normalise() *Snapshot {
	if s == nil {
		return NewSnapshot()
	}
	if s.TotalDebt == nil {
		s.TotalDebt = big.NewInt(0)
	}
	if s.PerAsset == nil {
		s.PerAsset = make(map[string]*big.Int)
	}
	if s.External == nil {
		s.External = big.NewInt(0)
	}
	if s.Excluded == nil {
		s.Excluded = make(map[string]*big.Int)
	}
	return s
}

// recomputeTotal enforces the conservation invariant
// TotalDebt = max(0, sum(PerAsset) + External - sum(Excluded)).
func (s *Snapshot) recomputeTotal() {
	total := big.NewInt(0)
	for _, value := range s.PerAsset {
		if value != nil {
			total.Add(total, value)
		}
	}
	if s.External != nil {
		total.Add(total, s.External)
	}
	for _, value := range s.Excluded {
		if value != nil {
			total.Sub(total, value)
		}
	}
	if total.Sign() < 0 {
		total.SetInt64(0)
	}
	s.TotalDebt = total
}

// PriceSource resolves the reference-unit rate for an asset. The invalid flag
// marks the rate as stale or flagged upstream; the ledger never substitutes a
// default price for an invalid one.
type PriceSource interface {
	Rate(asset string) (*big.Rat, bool)
}

// SupplyView reports the outstanding supply for an asset. The asset set is
// externally owned and supplied per call.
type SupplyView interface {
	AssetSupply(asset string) *big.Int
}

// ExternalDebtSource reports debt carried outside the per-asset supplies
// (wrappers, futures markets). The invalid flag marks the reported total as
// stale or flagged upstream.
type ExternalDebtSource interface {
	ExternalDebt() (*big.Int, bool)
}

// State abstracts the persistence required by the debt ledger.
type State interface {
	DebtSnapshot() (*Snapshot, error)
	PutDebtSnapshot(*Snapshot) error
	ExcludedImportDone() (bool, error)
	SetExcludedImportDone() error
}

// NormaliseAsset canonicalises asset keys for consistent lookups.
func NormaliseAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}

func copyBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
