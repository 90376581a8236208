package debt

import "math/big"

// Handle binds an engine to a pre-authorized caller so collaborating modules
// can hold a typed dependency without threading the caller address through
// every operation.
type Handle struct {
	engine *Engine
	caller [20]byte
}

// NewHandle returns a handle acting as the supplied caller. The caller must
// separately be granted authority on the engine.
func NewHandle(engine *Engine, caller [20]byte) *Handle {
	return &Handle{engine: engine, caller: caller}
}

// CachedDebt returns the cached total with its invalid and stale flags.
func (h *Handle) CachedDebt() (*big.Int, bool, bool, error) {
	if h == nil || h.engine == nil {
		return nil, false, false, ErrNilState
	}
	return h.engine.CachedDebt()
}

// RecordDebtDelta adjusts the named asset's cached contribution.
func (h *Handle) RecordDebtDelta(asset string, delta *big.Int) error {
	if h == nil || h.engine == nil {
		return ErrNilState
	}
	return h.engine.RecordDebtDelta(h.caller, asset, delta)
}
