// Package hook installs the platform's global keyboard hook and reports
// hotkey.KeyEvents to a handler.
//
// Windows uses a WH_KEYBOARD_LL hook, macOS a CGEventTap, and other
// platforms libuiohook through gohook. Only the Windows and macOS hooks can
// swallow events.
//
// None of those APIs passes a user pointer to its callback: the
// LowLevelKeyboardProc, the exported goKeyEvent and gohook's event channel
// are all process-wide. The handler therefore cannot travel with a backend
// value. Start installs it in a single package slot, and a second Start fails
// with ErrRunning until Stop clears it.
package hook

import (
	"errors"
	"sync"

	"go.aimuz.me/dictate/hotkey"
)

// ErrUnsupported is returned when no global hook is available.
var ErrUnsupported = errors.New("global keyboard hook not supported on this platform")

// ErrRunning is returned by Start while a hook is installed.
var ErrRunning = errors.New("keyboard hook already running")

// New returns the backend for the running platform.
func New() hotkey.Backend {
	return newBackend()
}

// slot read by every platform callback.
var (
	slotMu  sync.RWMutex
	handler func(hotkey.KeyEvent) bool
)

func setHandler(h func(hotkey.KeyEvent) bool) error {
	slotMu.Lock()
	defer slotMu.Unlock()
	if h != nil && handler != nil {
		return ErrRunning
	}
	handler = h
	return nil
}

// dispatch forwards ev to the installed handler and reports whether to
// swallow it.
func dispatch(ev hotkey.KeyEvent) bool {
	slotMu.RLock()
	h := handler
	slotMu.RUnlock()
	if h == nil {
		return false
	}
	return h(ev)
}
