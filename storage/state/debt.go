package state

import (
	"synthchain/native/debt"
)

var (
	debtSnapshotKey   = []byte("debt/snapshot")
	debtImportFlagKey = []byte("debt/excluded-import-done")
)

// DebtState binds the debt ledger's state interface onto the manager.
type DebtState struct {
	m *Manager
}

// NewDebtState constructs the binding.
func NewDebtState(m *Manager) *DebtState {
	return &DebtState{m: m}
}

// DebtSnapshot loads the cached snapshot, nil when never written.
func (s *DebtState) DebtSnapshot() (*debt.Snapshot, error) {
	var snapshot debt.Snapshot
	ok, err := s.m.KVGet(debtSnapshotKey, &snapshot)
	if err != nil || !ok {
		return nil, err
	}
	return &snapshot, nil
}

// PutDebtSnapshot persists the snapshot.
func (s *DebtState) PutDebtSnapshot(snapshot *debt.Snapshot) error {
	return s.m.KVPut(debtSnapshotKey, snapshot)
}

// ExcludedImportDone reports whether the one-shot excluded-debt import ran.
func (s *DebtState) ExcludedImportDone() (bool, error) {
	var done bool
	ok, err := s.m.KVGet(debtImportFlagKey, &done)
	if err != nil || !ok {
		return false, err
	}
	return done, nil
}

// SetExcludedImportDone latches the import flag.
func (s *DebtState) SetExcludedImportDone() error {
	return s.m.KVPut(debtImportFlagKey, true)
}
