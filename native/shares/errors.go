package shares

import "errors"

var (
	ErrNilState        = errors.New("shares: state not configured")
	ErrNilDebtCache    = errors.New("shares: debt cache not configured")
	ErrInvalidAmount   = errors.New("shares: amount must be positive")
	ErrInvalidPrice    = errors.New("shares: required price invalid")
	ErrStalePrice      = errors.New("shares: debt snapshot stale")
	ErrOverMaxIssuable = errors.New("shares: amount exceeds max issuable")
)
