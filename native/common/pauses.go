// Package common holds the small pieces shared by native modules.
package common

import (
	"errors"
	"strings"
	"sync"
)

// ErrModulePaused is returned by Guard when a module is administratively
// halted.
var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a named module is halted.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard returns ErrModulePaused when the view reports the module halted. A
// nil view or empty module name never blocks.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// Pauses is a concurrency-safe PauseView with runtime toggles.
type Pauses struct {
	mu     sync.RWMutex
	halted map[string]struct{}
}

// NewPauses returns an empty pause set; no module starts halted.
func NewPauses() *Pauses {
	return &Pauses{halted: make(map[string]struct{})}
}

// Set halts or resumes the named module.
func (p *Pauses) Set(module string, paused bool) {
	module = normalizeModule(module)
	if p == nil || module == "" {
		return
	}
	p.mu.Lock()
	if paused {
		p.halted[module] = struct{}{}
	} else {
		delete(p.halted, module)
	}
	p.mu.Unlock()
}

// IsPaused implements the PauseView interface.
func (p *Pauses) IsPaused(module string) bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	_, ok := p.halted[normalizeModule(module)]
	p.mu.RUnlock()
	return ok
}

func normalizeModule(module string) string {
	return strings.ToLower(strings.TrimSpace(module))
}
