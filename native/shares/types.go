package shares

import "math/big"

// DebtCache is the share ledger's view of the debt snapshot cache. Callers
// requiring a trusted total reject when either flag is set.
type DebtCache interface {
	CachedDebt() (total *big.Int, invalid bool, stale bool, err error)
	RecordDebtDelta(asset string, delta *big.Int) error
}

// PriceSource resolves the reference-unit rate for an asset.
type PriceSource interface {
	Rate(asset string) (*big.Rat, bool)
}

// CollateralValuer reports the reference-unit value of an account's locked
// collateral. A nil or zero value means the account holds none.
type CollateralValuer interface {
	CollateralValue(account [20]byte) *big.Rat
}

// TokenMintBurn performs the supply-side effects of debt creation and
// repayment in the stable asset. The ledger invokes but never implements it.
type TokenMintBurn interface {
	IssueStable(account [20]byte, amount *big.Int) error
	BurnStable(account [20]byte, amount *big.Int) error
}

// State abstracts the persistence required by the share ledger. A zero share
// balance remains a valid stored record.
type State interface {
	ShareBalance(account [20]byte) (*big.Int, error)
	PutShareBalance(account [20]byte, balance *big.Int) error
	ShareSupply() (*big.Int, error)
	PutShareSupply(supply *big.Int) error
	LastDebtRatio() (*big.Rat, error)
	PutLastDebtRatio(ratio *big.Rat) error
}
