package hook

import (
	"errors"
	"testing"

	"go.aimuz.me/dictate/hotkey"
)

func TestHandlerSlot(t *testing.T) {
	t.Cleanup(func() { _ = setHandler(nil) })

	if dispatch(hotkey.KeyEvent{Key: hotkey.KeyCtrl, Down: true}) {
		t.Fatal("dispatch without handler swallowed")
	}

	var seen []hotkey.KeyEvent
	if err := setHandler(func(ev hotkey.KeyEvent) bool {
		seen = append(seen, ev)
		return !ev.Down
	}); err != nil {
		t.Fatal(err)
	}
	if err := setHandler(func(hotkey.KeyEvent) bool { return false }); !errors.Is(err, ErrRunning) {
		t.Fatalf("second install err = %v, want ErrRunning", err)
	}

	if dispatch(hotkey.KeyEvent{Key: hotkey.KeyCtrl, Down: true}) {
		t.Error("key down swallowed")
	}
	if !dispatch(hotkey.KeyEvent{Key: hotkey.KeyCtrl}) {
		t.Error("handler verdict ignored")
	}
	if len(seen) != 2 {
		t.Fatalf("handler saw %d events, want 2", len(seen))
	}

	if err := setHandler(nil); err != nil {
		t.Fatal(err)
	}
	if dispatch(hotkey.KeyEvent{Key: hotkey.KeyCtrl}) {
		t.Fatal("cleared handler still called")
	}

	// A cleared slot accepts the next backend's handler.
	if err := setHandler(func(hotkey.KeyEvent) bool { return true }); err != nil {
		t.Fatalf("reinstall after clear: %v", err)
	}
	if !dispatch(hotkey.KeyEvent{Key: hotkey.KeyCtrl}) {
		t.Fatal("reinstalled handler not called")
	}
}
