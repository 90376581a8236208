package feepool

import "errors"

var (
	ErrNilState       = errors.New("feepool: state not configured")
	ErrNilShares      = errors.New("feepool: share ledger not configured")
	ErrUnauthorized   = errors.New("feepool: unauthorized caller")
	ErrInvalidAmount  = errors.New("feepool: amount must be positive")
	ErrInvalidIndex   = errors.New("feepool: period index out of range")
	ErrPeriodTooEarly = errors.New("feepool: period duration has not elapsed")
	ErrPeriodNotEmpty = errors.New("feepool: period slot already populated")
	ErrNothingToClaim = errors.New("feepool: nothing to claim")
	ErrRatioTooHigh   = errors.New("feepool: collateralisation ratio above claim threshold")
)
