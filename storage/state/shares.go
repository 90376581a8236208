package state

import (
	"math/big"
)

var (
	shareBalancePrefix = []byte("shares/account/")
	shareSupplyKey     = []byte("shares/supply")
	shareRatioKey      = []byte("shares/last-ratio")
)

type storedRatio struct {
	Num   *big.Int
	Denom *big.Int
}

// SharesState binds the share ledger's state interface onto the manager.
type SharesState struct {
	m *Manager
}

// NewSharesState constructs the binding.
func NewSharesState(m *Manager) *SharesState {
	return &SharesState{m: m}
}

func shareBalanceKey(account [20]byte) []byte {
	key := make([]byte, 0, len(shareBalancePrefix)+len(account))
	key = append(key, shareBalancePrefix...)
	return append(key, account[:]...)
}

// ShareBalance loads an account's share balance; zero when never written.
func (s *SharesState) ShareBalance(account [20]byte) (*big.Int, error) {
	balance := new(big.Int)
	ok, err := s.m.KVGet(shareBalanceKey(account), balance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return balance, nil
}

// PutShareBalance persists an account's share balance. Zero balances stay on
// record: the account remains a valid entry after a full burn.
func (s *SharesState) PutShareBalance(account [20]byte, balance *big.Int) error {
	if balance == nil {
		balance = big.NewInt(0)
	}
	return s.m.KVPut(shareBalanceKey(account), balance)
}

// ShareSupply loads the total outstanding shares.
func (s *SharesState) ShareSupply() (*big.Int, error) {
	supply := new(big.Int)
	ok, err := s.m.KVGet(shareSupplyKey, supply)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return supply, nil
}

// PutShareSupply persists the total outstanding shares.
func (s *SharesState) PutShareSupply(supply *big.Int) error {
	if supply == nil {
		supply = big.NewInt(0)
	}
	return s.m.KVPut(shareSupplyKey, supply)
}

// LastDebtRatio loads the stored debt-ratio observation; nil when unset.
func (s *SharesState) LastDebtRatio() (*big.Rat, error) {
	var stored storedRatio
	ok, err := s.m.KVGet(shareRatioKey, &stored)
	if err != nil || !ok {
		return nil, err
	}
	if stored.Denom == nil || stored.Denom.Sign() == 0 {
		return nil, nil
	}
	return new(big.Rat).SetFrac(stored.Num, stored.Denom), nil
}

// PutLastDebtRatio persists the debt-ratio observation.
func (s *SharesState) PutLastDebtRatio(ratio *big.Rat) error {
	if ratio == nil {
		return s.m.KVDelete(shareRatioKey)
	}
	return s.m.KVPut(shareRatioKey, storedRatio{
		Num:   new(big.Int).Set(ratio.Num()),
		Denom: new(big.Int).Set(ratio.Denom()),
	})
}
