package common

import "sync"

// SuspensionRegistry is an in-memory implementation of the suspension flags
// shared by the accounting engines. It satisfies both PauseView and Suspender.
type SuspensionRegistry struct {
	mu      sync.RWMutex
	flags   map[string]string
	changed func(section, reason string)
}

// NewSuspensionRegistry constructs an empty registry.
func NewSuspensionRegistry() *SuspensionRegistry {
	return &SuspensionRegistry{flags: make(map[string]string)}
}

// OnChange registers a callback invoked whenever a section is suspended or
// resumed. Used to surface suspension transitions to logs and metrics.
func (r *SuspensionRegistry) OnChange(fn func(section, reason string)) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.changed = fn
	r.mu.Unlock()
}

// Suspend marks the section as suspended with the supplied reason. Suspending
// an already suspended section updates the stored reason.
func (r *SuspensionRegistry) Suspend(section, reason string) {
	if r == nil || section == "" {
		return
	}
	r.mu.Lock()
	r.flags[section] = reason
	fn := r.changed
	r.mu.Unlock()
	if fn != nil {
		fn(section, reason)
	}
}

// Resume clears the suspension flag for the section.
func (r *SuspensionRegistry) Resume(section string) {
	if r == nil || section == "" {
		return
	}
	r.mu.Lock()
	delete(r.flags, section)
	fn := r.changed
	r.mu.Unlock()
	if fn != nil {
		fn(section, "")
	}
}

// IsSuspended reports whether the section is currently suspended.
func (r *SuspensionRegistry) IsSuspended(section string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	_, ok := r.flags[section]
	r.mu.RUnlock()
	return ok
}

// Reason returns the reason recorded for a suspended section, if any.
func (r *SuspensionRegistry) Reason(section string) (string, bool) {
	if r == nil {
		return "", false
	}
	r.mu.RLock()
	reason, ok := r.flags[section]
	r.mu.RUnlock()
	return reason, ok
}
