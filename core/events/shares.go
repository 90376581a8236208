package events

import (
	"encoding/hex"
	"math/big"
)

const (
	EventSharesIssued          = "shares.issued"
	EventSharesBurned          = "shares.burned"
	EventCircuitBreakerTripped = "shares.breaker.tripped"
)

// SharesIssued records a mint of debt shares against newly created debt.
type SharesIssued struct {
	Account [20]byte
	Amount  *big.Int
	Shares  *big.Int
}

// EventType implements the Event interface.
func (SharesIssued) EventType() string { return EventSharesIssued }

// Attributes implements the Event interface.
func (e SharesIssued) Attributes() map[string]string {
	return map[string]string{
		"account": hex.EncodeToString(e.Account[:]),
		"amount":  bigString(e.Amount),
		"shares":  bigString(e.Shares),
	}
}

// SharesBurned records a burn of debt shares against repaid debt.
type SharesBurned struct {
	Account [20]byte
	Amount  *big.Int
	Shares  *big.Int
}

// EventType implements the Event interface.
func (SharesBurned) EventType() string { return EventSharesBurned }

// Attributes implements the Event interface.
func (e SharesBurned) Attributes() map[string]string {
	return map[string]string{
		"account": hex.EncodeToString(e.Account[:]),
		"amount":  bigString(e.Amount),
		"shares":  bigString(e.Shares),
	}
}

// CircuitBreakerTripped signals that the observed debt ratio deviated beyond
// the allowed factor and issuance was suspended system-wide.
type CircuitBreakerTripped struct {
	LastRatio  string
	FreshRatio string
	Deviation  string
}

// EventType implements the Event interface.
func (CircuitBreakerTripped) EventType() string { return EventCircuitBreakerTripped }

// Attributes implements the Event interface.
func (e CircuitBreakerTripped) Attributes() map[string]string {
	return map[string]string{
		"last_ratio":  e.LastRatio,
		"fresh_ratio": e.FreshRatio,
		"deviation":   e.Deviation,
	}
}
