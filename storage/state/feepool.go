package state

import (
	"strconv"

	"synthchain/native/feepool"
)

var (
	feePeriodPrefix  = []byte("feepool/period/")
	feePeriodBaseKey = []byte("feepool/base")
	feeClaimedPrefix = []byte("feepool/claimed/")
)

// FeePoolState binds the fee pool's state interface onto the manager.
type FeePoolState struct {
	m *Manager
}

// NewFeePoolState constructs the binding.
func NewFeePoolState(m *Manager) *FeePoolState {
	return &FeePoolState{m: m}
}

func feePeriodKey(slot uint64) []byte {
	return append(append([]byte(nil), feePeriodPrefix...), strconv.FormatUint(slot, 10)...)
}

func feeClaimedKey(account [20]byte) []byte {
	key := make([]byte, 0, len(feeClaimedPrefix)+len(account))
	key = append(key, feeClaimedPrefix...)
	return append(key, account[:]...)
}

// PeriodBase loads the ring's rotating base offset.
func (s *FeePoolState) PeriodBase() (uint64, error) {
	var base uint64
	ok, err := s.m.KVGet(feePeriodBaseKey, &base)
	if err != nil || !ok {
		return 0, err
	}
	return base, nil
}

// PutPeriodBase persists the ring's base offset.
func (s *FeePoolState) PutPeriodBase(base uint64) error {
	return s.m.KVPut(feePeriodBaseKey, base)
}

// Period loads the record at a physical ring slot; nil when never written.
func (s *FeePoolState) Period(slot uint64) (*feepool.FeePeriod, error) {
	var period feepool.FeePeriod
	ok, err := s.m.KVGet(feePeriodKey(slot), &period)
	if err != nil || !ok {
		return nil, err
	}
	return &period, nil
}

// PutPeriod persists the record at a physical ring slot.
func (s *FeePoolState) PutPeriod(slot uint64, period *feepool.FeePeriod) error {
	return s.m.KVPut(feePeriodKey(slot), period)
}

// LastClaimedPeriod loads the newest period id the account has claimed
// through; zero when the account never claimed.
func (s *FeePoolState) LastClaimedPeriod(account [20]byte) (uint64, error) {
	var id uint64
	ok, err := s.m.KVGet(feeClaimedKey(account), &id)
	if err != nil || !ok {
		return 0, err
	}
	return id, nil
}

// PutLastClaimedPeriod records the newest claimed period id for the account.
func (s *FeePoolState) PutLastClaimedPeriod(account [20]byte, id uint64) error {
	return s.m.KVPut(feeClaimedKey(account), id)
}
