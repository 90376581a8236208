package events

import (
	"encoding/hex"
	"math/big"
	"strconv"
)

const (
	EventFeePeriodClosed = "feepool.period.closed"
	EventFeesClaimed     = "feepool.fees.claimed"
)

// FeePeriodClosed signals that the open fee period was sealed and the ring
// rotated, evicting the oldest period after carrying its unclaimed remainder.
type FeePeriodClosed struct {
	PeriodID           uint64
	DebtAtClose        *big.Int
	ShareSupplyAtClose *big.Int
	FeesCarried        *big.Int
	RewardsCarried     *big.Int
}

// EventType implements the Event interface.
func (FeePeriodClosed) EventType() string { return EventFeePeriodClosed }

// Attributes implements the Event interface.
func (e FeePeriodClosed) Attributes() map[string]string {
	return map[string]string{
		"period_id":             strconv.FormatUint(e.PeriodID, 10),
		"debt_at_close":         bigString(e.DebtAtClose),
		"share_supply_at_close": bigString(e.ShareSupplyAtClose),
		"fees_carried":          bigString(e.FeesCarried),
		"rewards_carried":       bigString(e.RewardsCarried),
	}
}

// FeesClaimed records a successful pro-rata claim across closed periods.
type FeesClaimed struct {
	Account [20]byte
	Fees    *big.Int
	Rewards *big.Int
}

// EventType implements the Event interface.
func (FeesClaimed) EventType() string { return EventFeesClaimed }

// Attributes implements the Event interface.
func (e FeesClaimed) Attributes() map[string]string {
	return map[string]string{
		"account": hex.EncodeToString(e.Account[:]),
		"fees":    bigString(e.Fees),
		"rewards": bigString(e.Rewards),
	}
}
