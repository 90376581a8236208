package debt

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

type mockState struct {
	snapshot   *Snapshot
	importDone bool
}

func (m *mockState) DebtSnapshot() (*Snapshot, error) { return m.snapshot, nil }

func (m *mockState) PutDebtSnapshot(s *Snapshot) error { m.snapshot = s; return nil }

func (m *mockState) ExcludedImportDone() (bool, error) { return m.importDone, nil }

func (m *mockState) SetExcludedImportDone() error { m.importDone = true; return nil }

type mockPrices struct {
	rates   map[string]*big.Rat
	invalid map[string]bool
}

func (m *mockPrices) Rate(asset string) (*big.Rat, bool) {
	return m.rates[asset], m.invalid[asset]
}

type mockSupplies struct {
	supplies map[string]*big.Int
}

func (m *mockSupplies) AssetSupply(asset string) *big.Int {
	return m.supplies[asset]
}

type mockExternal struct {
	value   *big.Int
	invalid bool
}

func (m *mockExternal) ExternalDebt() (*big.Int, bool) { return m.value, m.invalid }

func makeAddress(suffix byte) [20]byte {
	var addr [20]byte
	addr[len(addr)-1] = suffix
	return addr
}

func newTestEngine(t *testing.T) (*Engine, *mockState, *mockPrices, *mockSupplies, *clockwork.FakeClock, [20]byte) {
	t.Helper()
	state := &mockState{}
	prices := &mockPrices{
		rates:   map[string]*big.Rat{"SBTC": big.NewRat(30_000, 1), "SETH": big.NewRat(2_000, 1)},
		invalid: map[string]bool{},
	}
	supplies := &mockSupplies{supplies: map[string]*big.Int{
		"SBTC": big.NewInt(2),
		"SETH": big.NewInt(10),
	}}
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	engine := NewEngine(state, prices, supplies, time.Hour)
	engine.SetClock(clock)
	authority := makeAddress(0x01)
	engine.Authorize(authority)
	return engine, state, prices, supplies, clock, authority
}

func TestTakeSnapshotComputesTotals(t *testing.T) {
	engine, state, _, _, clock, authority := newTestEngine(t)

	if err := engine.TakeSnapshot(authority, []string{"SBTC", "SETH"}); err != nil {
		t.Fatalf("take snapshot: %v", err)
	}
	if state.snapshot == nil {
		t.Fatal("snapshot not persisted")
	}
	// 2*30000 + 10*2000 = 80000
	if got := state.snapshot.TotalDebt; got.Cmp(big.NewInt(80_000)) != 0 {
		t.Fatalf("total debt = %s, want 80000", got)
	}
	if state.snapshot.Invalid {
		t.Fatal("snapshot should be valid")
	}
	if state.snapshot.Timestamp != clock.Now().Unix() {
		t.Fatalf("timestamp = %d, want %d", state.snapshot.Timestamp, clock.Now().Unix())
	}
}

func TestTakeSnapshotSubtractsExcludedDebt(t *testing.T) {
	engine, state, _, _, _, authority := newTestEngine(t)

	if err := engine.RecordExcludedDebtDelta(authority, "SETH", big.NewInt(5_000)); err != nil {
		t.Fatalf("record excluded: %v", err)
	}
	if err := engine.TakeSnapshot(authority, []string{"SBTC", "SETH"}); err != nil {
		t.Fatalf("take snapshot: %v", err)
	}
	if got := state.snapshot.TotalDebt; got.Cmp(big.NewInt(75_000)) != 0 {
		t.Fatalf("total debt = %s, want 75000", got)
	}
}

func TestExternalDebtCountsTowardTotals(t *testing.T) {
	engine, state, _, _, _, authority := newTestEngine(t)
	engine.SetExternalDebt(&mockExternal{value: big.NewInt(7_000)})

	total, anyInvalid, err := engine.CurrentDebt([]string{"SBTC", "SETH"})
	if err != nil {
		t.Fatalf("current debt: %v", err)
	}
	if anyInvalid {
		t.Fatal("healthy external source must not flag invalid")
	}
	// 80000 native + 7000 external
	if total.Cmp(big.NewInt(87_000)) != 0 {
		t.Fatalf("total = %s, want 87000", total)
	}

	if err := engine.TakeSnapshot(authority, []string{"SBTC", "SETH"}); err != nil {
		t.Fatalf("take snapshot: %v", err)
	}
	if got := state.snapshot.External; got.Cmp(big.NewInt(7_000)) != 0 {
		t.Fatalf("external = %s, want 7000", got)
	}
	if got := state.snapshot.TotalDebt; got.Cmp(big.NewInt(87_000)) != 0 {
		t.Fatalf("snapshot total = %s, want 87000", got)
	}
	if state.snapshot.Invalid {
		t.Fatal("snapshot should be valid")
	}
}

func TestFlaggedExternalDebtMarksInvalid(t *testing.T) {
	engine, state, _, _, _, authority := newTestEngine(t)
	engine.SetExternalDebt(&mockExternal{value: big.NewInt(500), invalid: true})

	total, anyInvalid, err := engine.CurrentDebt([]string{"SBTC"})
	if err != nil {
		t.Fatalf("current debt: %v", err)
	}
	if !anyInvalid {
		t.Fatal("flagged external source must mark the computation invalid")
	}
	if total.Cmp(big.NewInt(60_500)) != 0 {
		t.Fatalf("total = %s, want 60500", total)
	}

	if err := engine.TakeSnapshot(authority, []string{"SBTC"}); err != nil {
		t.Fatalf("take snapshot: %v", err)
	}
	if !state.snapshot.Invalid {
		t.Fatal("snapshot must carry the invalid flag")
	}
}

func TestCurrentDebtFlagsMissingRate(t *testing.T) {
	engine, _, prices, supplies, _, _ := newTestEngine(t)
	supplies.supplies["SDOT"] = big.NewInt(100)
	delete(prices.rates, "SDOT")

	total, anyInvalid, err := engine.CurrentDebt([]string{"SBTC", "SDOT"})
	if err != nil {
		t.Fatalf("current debt: %v", err)
	}
	if !anyInvalid {
		t.Fatal("missing rate should flag invalid")
	}
	// SDOT contributes zero rather than substituting a default price.
	if total.Cmp(big.NewInt(60_000)) != 0 {
		t.Fatalf("total = %s, want 60000", total)
	}
}

func TestUpdateCachedRatesAdjustsOnlyNamedAssets(t *testing.T) {
	engine, state, _, _, _, authority := newTestEngine(t)
	if err := engine.TakeSnapshot(authority, []string{"SBTC", "SETH"}); err != nil {
		t.Fatalf("take snapshot: %v", err)
	}

	if err := engine.UpdateCachedRates(authority, []string{"SBTC"}, []*big.Rat{big.NewRat(40_000, 1)}, false); err != nil {
		t.Fatalf("update cached rates: %v", err)
	}
	if got := state.snapshot.TotalDebt; got.Cmp(big.NewInt(100_000)) != 0 {
		t.Fatalf("total = %s, want 100000", got)
	}
	if got := state.snapshot.PerAsset["SETH"]; got.Cmp(big.NewInt(20_000)) != 0 {
		t.Fatalf("SETH contribution = %s, want untouched 20000", got)
	}
}

func TestInvalidityIsMonotonic(t *testing.T) {
	engine, state, _, _, _, authority := newTestEngine(t)
	if err := engine.TakeSnapshot(authority, []string{"SBTC", "SETH"}); err != nil {
		t.Fatalf("take snapshot: %v", err)
	}

	if err := engine.UpdateCachedRates(authority, []string{"SBTC"}, []*big.Rat{big.NewRat(31_000, 1)}, true); err != nil {
		t.Fatalf("update: %v", err)
	}
	if !state.snapshot.Invalid {
		t.Fatal("anyInvalid batch must mark the cache invalid")
	}

	// A later valid batch must not clear the flag.
	if err := engine.UpdateCachedRates(authority, []string{"SBTC"}, []*big.Rat{big.NewRat(32_000, 1)}, false); err != nil {
		t.Fatalf("update: %v", err)
	}
	if !state.snapshot.Invalid {
		t.Fatal("valid batch cleared invalidity")
	}

	if err := engine.ResetValidity(authority); err != nil {
		t.Fatalf("reset validity: %v", err)
	}
	if state.snapshot.Invalid {
		t.Fatal("reset validity should clear the flag")
	}
}

func TestUnauthorizedMutationsRejected(t *testing.T) {
	engine, _, _, _, _, _ := newTestEngine(t)
	intruder := makeAddress(0x99)

	if err := engine.TakeSnapshot(intruder, []string{"SBTC"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("take snapshot err = %v, want ErrUnauthorized", err)
	}
	if err := engine.RecordDebtDelta(intruder, "SUSD", big.NewInt(1)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("record debt delta err = %v, want ErrUnauthorized", err)
	}
	if err := engine.RecordExcludedDebtDelta(intruder, "SETH", big.NewInt(1)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("record excluded err = %v, want ErrUnauthorized", err)
	}
}

func TestRecordExcludedDebtDeltaRejectsNegativeResult(t *testing.T) {
	engine, state, _, _, _, authority := newTestEngine(t)

	if err := engine.RecordExcludedDebtDelta(authority, "SETH", big.NewInt(100)); err != nil {
		t.Fatalf("record excluded: %v", err)
	}
	err := engine.RecordExcludedDebtDelta(authority, "SETH", big.NewInt(-200))
	if !errors.Is(err, ErrNegativeExcluded) {
		t.Fatalf("err = %v, want ErrNegativeExcluded", err)
	}
	if got := state.snapshot.Excluded["SETH"]; got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("excluded = %s, want unchanged 100", got)
	}
}

func TestRecordDebtDeltaRejectsNegativeResult(t *testing.T) {
	engine, _, _, _, _, authority := newTestEngine(t)

	if err := engine.RecordDebtDelta(authority, "SUSD", big.NewInt(500)); err != nil {
		t.Fatalf("record delta: %v", err)
	}
	if err := engine.RecordDebtDelta(authority, "SUSD", big.NewInt(-600)); !errors.Is(err, ErrNegativeDebt) {
		t.Fatalf("err = %v, want ErrNegativeDebt", err)
	}
}

func TestImportExcludedDebtRunsOnce(t *testing.T) {
	engine, state, _, _, _, authority := newTestEngine(t)
	if err := engine.RecordExcludedDebtDelta(authority, "SETH", big.NewInt(50)); err != nil {
		t.Fatalf("seed excluded: %v", err)
	}

	prior := map[string]*big.Int{"SETH": big.NewInt(30), "SBTC": big.NewInt(10)}
	if err := engine.ImportExcludedDebt(authority, prior); err != nil {
		t.Fatalf("import: %v", err)
	}
	// Sums rather than overwrites.
	if got := state.snapshot.Excluded["SETH"]; got.Cmp(big.NewInt(80)) != 0 {
		t.Fatalf("SETH excluded = %s, want 80", got)
	}
	if got := state.snapshot.Excluded["SBTC"]; got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("SBTC excluded = %s, want 10", got)
	}

	if err := engine.ImportExcludedDebt(authority, prior); !errors.Is(err, ErrAlreadyImported) {
		t.Fatalf("second import err = %v, want ErrAlreadyImported", err)
	}
}

func TestIsStale(t *testing.T) {
	engine, _, _, _, clock, authority := newTestEngine(t)

	if !engine.IsStale() {
		t.Fatal("unstamped snapshot must read stale")
	}
	if err := engine.TakeSnapshot(authority, []string{"SBTC"}); err != nil {
		t.Fatalf("take snapshot: %v", err)
	}
	if engine.IsStale() {
		t.Fatal("fresh snapshot should not be stale")
	}
	clock.Advance(time.Hour + time.Second)
	if !engine.IsStale() {
		t.Fatal("snapshot past the window must be stale")
	}
}

func TestPurgeCachedAsset(t *testing.T) {
	engine, state, _, _, _, authority := newTestEngine(t)
	if err := engine.TakeSnapshot(authority, []string{"SBTC", "SETH"}); err != nil {
		t.Fatalf("take snapshot: %v", err)
	}

	if err := engine.PurgeCachedAsset(authority, "SETH"); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if _, ok := state.snapshot.PerAsset["SETH"]; ok {
		t.Fatal("SETH entry should be gone")
	}
	if got := state.snapshot.TotalDebt; got.Cmp(big.NewInt(60_000)) != 0 {
		t.Fatalf("total = %s, want 60000", got)
	}
	if err := engine.PurgeCachedAsset(authority, "SETH"); !errors.Is(err, ErrUnknownAsset) {
		t.Fatalf("second purge err = %v, want ErrUnknownAsset", err)
	}
}
