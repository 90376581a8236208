package shares

import "math/big"

// breakerOutcome reports a single circuit breaker evaluation against the
// stored debt-ratio observation.
type breakerOutcome struct {
	tripped bool
	last    *big.Rat
	fresh   *big.Rat
	// deviation is nil when no comparison was possible (first observation).
	deviation *big.Rat
}

// evaluateBreaker compares the fresh debt ratio with the last stored
// observation. The stored ratio only advances when the deviation stays within
// the threshold factor; on a trip the stale ratio is retained so the next
// evaluation compares against the last trusted value.
func evaluateBreaker(last, fresh, threshold *big.Rat) breakerOutcome {
	if fresh == nil {
		// No computable ratio (zero share supply); nothing to compare.
		return breakerOutcome{last: last}
	}
	if last == nil {
		// First observation is trusted by definition.
		return breakerOutcome{fresh: fresh}
	}
	if last.Sign() == 0 || fresh.Sign() == 0 {
		if last.Cmp(fresh) == 0 {
			return breakerOutcome{last: last, fresh: fresh}
		}
		// A jump to or from zero has no finite deviation factor.
		return breakerOutcome{tripped: true, last: last, fresh: fresh}
	}
	deviation := new(big.Rat).Quo(fresh, last)
	inverse := new(big.Rat).Quo(last, fresh)
	if inverse.Cmp(deviation) > 0 {
		deviation = inverse
	}
	if threshold != nil && threshold.Sign() > 0 && deviation.Cmp(threshold) > 0 {
		return breakerOutcome{tripped: true, last: last, fresh: fresh, deviation: deviation}
	}
	return breakerOutcome{last: last, fresh: fresh, deviation: deviation}
}
