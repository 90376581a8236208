package events

import (
	"math/big"
	"strconv"
)

const (
	EventDebtSnapshotTaken    = "debt.snapshot.taken"
	EventDebtCacheInvalidated = "debt.cache.invalidated"
	EventExcludedDebtUpdated  = "debt.excluded.updated"
)

// DebtSnapshotTaken signals that the full system debt snapshot was recomputed
// and written to the cache.
type DebtSnapshotTaken struct {
	TotalDebt *big.Int
	Assets    int
	Timestamp int64
	Invalid   bool
}

// EventType implements the Event interface.
func (DebtSnapshotTaken) EventType() string { return EventDebtSnapshotTaken }

// Attributes implements the Event interface.
func (e DebtSnapshotTaken) Attributes() map[string]string {
	return map[string]string{
		"total_debt": bigString(e.TotalDebt),
		"assets":     strconv.Itoa(e.Assets),
		"timestamp":  strconv.FormatInt(e.Timestamp, 10),
		"invalid":    strconv.FormatBool(e.Invalid),
	}
}

// DebtCacheInvalidated signals that an incremental update flagged the cached
// debt total as untrusted until the next full snapshot.
type DebtCacheInvalidated struct {
	Timestamp int64
}

// EventType implements the Event interface.
func (DebtCacheInvalidated) EventType() string { return EventDebtCacheInvalidated }

// Attributes implements the Event interface.
func (e DebtCacheInvalidated) Attributes() map[string]string {
	return map[string]string{"timestamp": strconv.FormatInt(e.Timestamp, 10)}
}

// ExcludedDebtUpdated records a change to the non-native-backed debt ledger.
type ExcludedDebtUpdated struct {
	Asset string
	Total *big.Int
}

// EventType implements the Event interface.
func (ExcludedDebtUpdated) EventType() string { return EventExcludedDebtUpdated }

// Attributes implements the Event interface.
func (e ExcludedDebtUpdated) Attributes() map[string]string {
	return map[string]string{
		"asset": e.Asset,
		"total": bigString(e.Total),
	}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
