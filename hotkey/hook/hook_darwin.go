//go:build darwin

package hook

/*
#cgo LDFLAGS: -framework ApplicationServices -framework CoreFoundation

extern int dictateStartTap(void);
extern void dictateRunTap(void);
extern void dictateStopTap(void);
extern int dictateAccessibilityTrusted(void);
*/
import "C"

import (
	"errors"
	"log/slog"
	"runtime"
	"time"

	"go.aimuz.me/dictate/hotkey"
)

// macKeys maps virtual keycodes to logical keys.
var macKeys = map[int]hotkey.Key{
	63: hotkey.KeyFn,
	55: hotkey.KeyMeta, 54: hotkey.KeyMeta,
	56: hotkey.KeyShift, 60: hotkey.KeyShift,
	59: hotkey.KeyCtrl, 62: hotkey.KeyCtrl,
	58: hotkey.KeyAlt, 61: hotkey.KeyAlt,
	0x31: hotkey.KeySpace,

	0x00: "a", 0x0B: "b", 0x08: "c", 0x02: "d", 0x0E: "e", 0x03: "f", 0x05: "g",
	0x04: "h", 0x22: "i", 0x26: "j", 0x28: "k", 0x25: "l", 0x2E: "m", 0x2D: "n",
	0x1F: "o", 0x23: "p", 0x0C: "q", 0x0F: "r", 0x01: "s", 0x11: "t", 0x20: "u",
	0x09: "v", 0x0D: "w", 0x07: "x", 0x10: "y", 0x06: "z",

	0x1D: "0", 0x12: "1", 0x13: "2", 0x14: "3", 0x15: "4",
	0x17: "5", 0x16: "6", 0x1A: "7", 0x1C: "8", 0x19: "9",

	0x7A: "f1", 0x78: "f2", 0x63: "f3", 0x76: "f4", 0x60: "f5", 0x61: "f6",
	0x62: "f7", 0x64: "f8", 0x65: "f9", 0x6D: "f10", 0x67: "f11", 0x6F: "f12",
	0x69: "f13", 0x6B: "f14", 0x71: "f15", 0x6A: "f16", 0x40: "f17", 0x4F: "f18",
	0x50: "f19", 0x5A: "f20",
}

//export goKeyEvent
func goKeyEvent(keycode C.int, down C.int) C.int {
	key, ok := macKeys[int(keycode)]
	if !ok {
		return 0
	}
	if dispatch(hotkey.KeyEvent{Key: key, Down: down != 0, At: time.Now()}) {
		return 1
	}
	return 0
}

type backend struct {
	done chan struct{}
}

func newBackend() hotkey.Backend {
	return &backend{}
}

// Start installs the event tap. It fails when the process lacks
// Accessibility permission.
func (b *backend) Start(h func(hotkey.KeyEvent) bool) error {
	if C.dictateAccessibilityTrusted() == 0 {
		slog.Warn("accessibility permission not granted")
	}
	if err := setHandler(h); err != nil {
		return err
	}

	ready := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		if C.dictateStartTap() != 0 {
			ready <- errors.New("failed to create event tap (accessibility permission required)")
			return
		}
		ready <- nil
		C.dictateRunTap()
		slog.Debug("event tap removed")
	}()

	if err := <-ready; err != nil {
		_ = setHandler(nil)
		return err
	}
	b.done = done
	return nil
}

func (b *backend) Stop() error {
	if b.done == nil {
		return nil
	}
	C.dictateStopTap()
	<-b.done
	b.done = nil
	return setHandler(nil)
}
