//go:build !windows && !darwin

package hook

import (
	"log/slog"
	"sync"
	"time"

	gohook "github.com/robotn/gohook"

	"go.aimuz.me/dictate/hotkey"
)

// vcKeys maps libuiohook virtual key codes to logical keys.
var vcKeys = map[uint16]hotkey.Key{
	0x001D: hotkey.KeyCtrl, 0x0E1D: hotkey.KeyCtrl,
	0x002A: hotkey.KeyShift, 0x0036: hotkey.KeyShift,
	0x0038: hotkey.KeyAlt, 0x0E38: hotkey.KeyAlt,
	0x0E5B: hotkey.KeyMeta, 0x0E5C: hotkey.KeyMeta,
	0x0039: hotkey.KeySpace,

	0x001E: "a", 0x0030: "b", 0x002E: "c", 0x0020: "d", 0x0012: "e", 0x0021: "f",
	0x0022: "g", 0x0023: "h", 0x0017: "i", 0x0024: "j", 0x0025: "k", 0x0026: "l",
	0x0032: "m", 0x0031: "n", 0x0018: "o", 0x0019: "p", 0x0010: "q", 0x0013: "r",
	0x001F: "s", 0x0014: "t", 0x0016: "u", 0x002F: "v", 0x0011: "w", 0x002D: "x",
	0x0015: "y", 0x002C: "z",

	0x0002: "1", 0x0003: "2", 0x0004: "3", 0x0005: "4", 0x0006: "5",
	0x0007: "6", 0x0008: "7", 0x0009: "8", 0x000A: "9", 0x000B: "0",

	0x003B: "f1", 0x003C: "f2", 0x003D: "f3", 0x003E: "f4", 0x003F: "f5",
	0x0040: "f6", 0x0041: "f7", 0x0042: "f8", 0x0043: "f9", 0x0044: "f10",
	0x0057: "f11", 0x0058: "f12",
	0x005B: "f13", 0x005C: "f14", 0x005D: "f15", 0x005E: "f16", 0x005F: "f17",
	0x0060: "f18", 0x0061: "f19", 0x0062: "f20", 0x0063: "f21", 0x0064: "f22",
	0x0065: "f23", 0x0066: "f24",
}

// backend reads libuiohook events. It cannot swallow events, so the
// handler's verdict is ignored.
type backend struct {
	mu   sync.Mutex
	done chan struct{}
}

func newBackend() hotkey.Backend {
	return &backend{}
}

func (b *backend) Start(h func(hotkey.KeyEvent) bool) error {
	if err := setHandler(h); err != nil {
		return err
	}

	evChan := gohook.Start()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range evChan {
			var down bool
			switch ev.Kind {
			case gohook.KeyHold:
				down = true
			case gohook.KeyUp:
			default:
				continue
			}
			key, ok := vcKeys[ev.Keycode]
			if !ok {
				continue
			}
			at := ev.When
			if at.IsZero() {
				at = time.Now()
			}
			dispatch(hotkey.KeyEvent{Key: key, Down: down, At: at})
		}
		slog.Debug("keyboard hook removed")
	}()

	b.mu.Lock()
	b.done = done
	b.mu.Unlock()
	return nil
}

func (b *backend) Stop() error {
	b.mu.Lock()
	done := b.done
	b.done = nil
	b.mu.Unlock()
	if done == nil {
		return nil
	}
	gohook.End()
	select {
	case <-done:
	case <-time.After(time.Second):
		slog.Warn("keyboard hook did not stop in time")
	}
	return setHandler(nil)
}
