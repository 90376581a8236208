package debt

import "errors"

var (
	ErrNilState         = errors.New("debt: state not configured")
	ErrUnauthorized     = errors.New("debt: unauthorized caller")
	ErrInvalidAsset     = errors.New("debt: asset key required")
	ErrInvalidAmount    = errors.New("debt: amount must not be nil")
	ErrLengthMismatch   = errors.New("debt: keys and rates length mismatch")
	ErrNegativeDebt     = errors.New("debt: cached asset debt cannot go negative")
	ErrNegativeExcluded = errors.New("debt: excluded debt cannot go negative")
	ErrAlreadyImported  = errors.New("debt: excluded debt already imported")
	ErrUnknownAsset     = errors.New("debt: asset not present in cache")
)
