package common

import "errors"

var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a named module is administratively paused.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard returns ErrModulePaused when the named module is paused. A nil view
// never pauses anything.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// Pauses is a mutable PauseView backed by a set of module names. It is the
// default implementation used by the daemon; tests often supply their own.
type Pauses struct {
	paused map[string]bool
}

func NewPauses() *Pauses {
	return &Pauses{paused: make(map[string]bool)}
}

func (p *Pauses) IsPaused(module string) bool {
	if p == nil {
		return false
	}
	return p.paused[module]
}

func (p *Pauses) Pause(module string) {
	if p == nil || module == "" {
		return
	}
	p.paused[module] = true
}

func (p *Pauses) Resume(module string) {
	if p == nil || module == "" {
		return
	}
	delete(p.paused, module)
}
