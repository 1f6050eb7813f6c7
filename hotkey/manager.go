package hotkey

import (
	"errors"
	"log/slog"
	"sync"
)

// Backend is a platform keyboard hook. handler runs inside the hook's event
// dispatch and returns whether the event should be swallowed; it never
// blocks.
type Backend interface {
	Start(handler func(KeyEvent) bool) error
	Stop() error
}

// Manager owns a Backend and a Detector and hands detected intents to a
// handler on a separate goroutine so the OS hook is never stalled.
type Manager struct {
	backend Backend
	handler func(Intent)

	mu       sync.Mutex
	detector *Detector
	running  bool
}

// NewManager creates a Manager. handler receives every detected Intent.
func NewManager(backend Backend, handler func(Intent)) *Manager {
	return &Manager{backend: backend, handler: handler}
}

// Start installs the hook with binding b.
func (m *Manager) Start(b Binding, th Thresholds) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("hotkey manager already running")
	}

	det := NewDetector(b, th, m.dispatch)
	if err := m.backend.Start(det.Handle); err != nil {
		return err
	}
	m.detector = det
	m.running = true
	slog.Info("hotkey registered", "binding", b.String(), "hold", th.Hold, "double_click", th.DoubleClick)
	return nil
}

// Reload swaps the binding and thresholds without reinstalling the hook.
func (m *Manager) Reload(b Binding, th Thresholds) {
	m.mu.Lock()
	det := m.detector
	m.mu.Unlock()
	if det == nil {
		return
	}
	if det.Binding().String() != b.String() {
		slog.Info("hotkey changed", "binding", b.String())
	}
	det.Update(b, th)
}

// Stop removes the hook.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return nil
	}
	m.running = false
	m.detector = nil
	return m.backend.Stop()
}

func (m *Manager) dispatch(i Intent) {
	slog.Debug("gesture detected", "intent", i.String())
	go m.handler(i)
}
