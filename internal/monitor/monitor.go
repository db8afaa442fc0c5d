// Package monitor tracks the two external conditions a sync depends on:
// network reachability and availability of the destination storage.
package monitor

import (
	"slices"
	"sync"
)

// Monitor is a boolean condition that notifies on change.
type Monitor interface {
	Current() bool
	OnChange(handler func(bool))
}

// edge holds the last observed value and fires handlers only on transitions.
type edge struct {
	mu       sync.Mutex
	value    bool
	handlers []func(bool)
}

func (e *edge) get() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

func (e *edge) OnChange(handler func(bool)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
}

// set records v and reports whether it differed from the previous value.
// Handlers run outside the lock, in registration order.
func (e *edge) set(v bool) bool {
	e.mu.Lock()
	if e.value == v {
		e.mu.Unlock()
		return false
	}

	e.value = v
	handlers := slices.Clone(e.handlers)
	e.mu.Unlock()

	for _, h := range handlers {
		h(v)
	}

	return true
}
