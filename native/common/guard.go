package common

import "errors"

// ErrSectionSuspended is returned by Guard when the requested protocol section
// is suspended. Callers must abort the mutation without partial effect.
var ErrSectionSuspended = errors.New("section suspended")

// Well-known protocol sections gated by suspension flags.
const (
	SectionDebtCache = "debt-cache"
	SectionIssuance  = "issuance"
	SectionBurning   = "burning"
	SectionClaims    = "claims"
	SectionFeePeriod = "fee-period"
)

// PauseView exposes read access to the system-wide suspension flags.
type PauseView interface {
	IsSuspended(section string) bool
}

// Suspender flips a suspension flag. The circuit breaker uses it to halt
// issuance without raising an error on the triggering call.
type Suspender interface {
	Suspend(section, reason string)
}

// Guard checks the suspension flag for a section before a mutating call. A nil
// view or empty section always passes.
func Guard(p PauseView, section string) error {
	if p == nil || section == "" {
		return nil
	}
	if p.IsSuspended(section) {
		return ErrSectionSuspended
	}
	return nil
}
