package hotkey

import (
	"errors"
	"slices"
	"sync"
	"testing"
	"time"
)

type fakeTimer struct {
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type harness struct {
	t      *testing.T
	det    *Detector
	base   time.Time
	timers []*fakeTimer

	mu      sync.Mutex
	intents []Intent
}

func newHarness(t *testing.T, spec string) *harness {
	t.Helper()
	b, err := ParseSpec(spec)
	if err != nil {
		t.Fatalf("ParseSpec(%q): %v", spec, err)
	}
	h := &harness{t: t, base: time.Unix(1000, 0)}
	h.det = NewDetector(b, DefaultThresholds(), func(i Intent) {
		h.mu.Lock()
		h.intents = append(h.intents, i)
		h.mu.Unlock()
	})
	h.det.afterFunc = func(_ time.Duration, f func()) timer {
		ft := &fakeTimer{fn: f}
		h.timers = append(h.timers, ft)
		return ft
	}
	return h
}

func (h *harness) key(k Key, down bool, atMs int) bool {
	return h.det.Handle(KeyEvent{Key: k, Down: down, At: h.base.Add(time.Duration(atMs) * time.Millisecond)})
}

func (h *harness) tap(k Key, downMs, upMs int) bool {
	h.key(k, true, downMs)
	return h.key(k, false, upMs)
}

// fire runs the most recent hold timer even if it was stopped, the way a
// timer that already started running would.
func (h *harness) fire() {
	h.t.Helper()
	if len(h.timers) == 0 {
		h.t.Fatal("no hold timer scheduled")
	}
	h.timers[len(h.timers)-1].fn()
}

func (h *harness) got() []Intent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.intents)
}

func TestDoubleTapEmitsOnce(t *testing.T) {
	h := newHarness(t, "Ctrl")

	if h.tap(KeyCtrl, 0, 50) {
		t.Error("first tap swallowed")
	}
	if !h.tap(KeyCtrl, 150, 200) {
		t.Error("double-tap release not swallowed")
	}
	if got := h.got(); !slices.Equal(got, []Intent{StartOrToggle}) {
		t.Fatalf("intents = %v, want [start_or_toggle]", got)
	}

	// A third tap right after the pair only starts a new pair.
	if h.tap(KeyCtrl, 260, 290) {
		t.Error("third tap swallowed")
	}
	if got := h.got(); len(got) != 1 {
		t.Fatalf("third tap retriggered: %v", got)
	}
	h.tap(KeyCtrl, 350, 400)
	if got := h.got(); len(got) != 2 {
		t.Fatalf("fourth tap should complete a new pair: %v", got)
	}
}

func TestTapsTooFarApart(t *testing.T) {
	h := newHarness(t, "Ctrl")
	h.tap(KeyCtrl, 0, 50)
	h.tap(KeyCtrl, 400, 450)
	if got := h.got(); len(got) != 0 {
		t.Fatalf("intents = %v, want none", got)
	}
	// The second tap is remembered, so a quick third completes a pair.
	h.tap(KeyCtrl, 500, 550)
	if got := h.got(); len(got) != 1 {
		t.Fatalf("intents = %v, want one", got)
	}
}

func TestHoldStartsAndReleaseStops(t *testing.T) {
	h := newHarness(t, "Ctrl")

	h.key(KeyCtrl, true, 0)
	h.fire()
	if got := h.got(); !slices.Equal(got, []Intent{StartOrToggle}) {
		t.Fatalf("after hold: %v", got)
	}
	if !h.key(KeyCtrl, false, 900) {
		t.Error("hold release not swallowed")
	}
	if got := h.got(); !slices.Equal(got, []Intent{StartOrToggle, ForceStop}) {
		t.Fatalf("after release: %v", got)
	}

	// The held press never counts as a tap.
	h.tap(KeyCtrl, 1000, 1050)
	if got := h.got(); len(got) != 2 {
		t.Fatalf("tap after hold paired with the hold: %v", got)
	}
}

func TestLongPressWithoutTimerIsNotATap(t *testing.T) {
	h := newHarness(t, "Ctrl")
	h.tap(KeyCtrl, 0, 50)
	// Released after hold_ms but the timer never ran.
	if h.tap(KeyCtrl, 100, 290) {
		t.Error("slow release swallowed")
	}
	if got := h.got(); len(got) != 0 {
		t.Fatalf("intents = %v, want none", got)
	}
}

func TestStaleHoldTimer(t *testing.T) {
	h := newHarness(t, "Ctrl")

	h.key(KeyCtrl, true, 0)
	first := h.timers[0]
	h.key(KeyCtrl, false, 50)
	if !first.stopped {
		t.Error("release did not stop the hold timer")
	}
	h.key(KeyCtrl, true, 500)

	// The first press's timer fires late during the second press.
	first.fn()
	if got := h.got(); len(got) != 0 {
		t.Fatalf("stale timer emitted %v", got)
	}

	h.fire()
	h.fire()
	if got := h.got(); !slices.Equal(got, []Intent{StartOrToggle}) {
		t.Fatalf("intents = %v, want exactly one start", got)
	}
}

func TestAutoRepeatIgnored(t *testing.T) {
	h := newHarness(t, "Ctrl")
	h.key(KeyCtrl, true, 0)
	h.key(KeyCtrl, true, 30)
	h.key(KeyCtrl, true, 60)
	if len(h.timers) != 1 {
		t.Fatalf("scheduled %d hold timers, want 1", len(h.timers))
	}
	h.key(KeyCtrl, false, 90)
	h.tap(KeyCtrl, 120, 150)
	if got := h.got(); len(got) != 1 {
		t.Fatalf("intents = %v, want one double tap", got)
	}
}

func TestModifiersRequired(t *testing.T) {
	h := newHarness(t, "Win+Shift+D")

	// Trigger alone does nothing and schedules no hold.
	h.tap("d", 0, 50)
	h.tap("d", 100, 150)
	h.key("d", true, 200)
	if len(h.timers) != 0 {
		t.Fatal("hold scheduled without modifiers")
	}
	h.key("d", false, 250)
	if got := h.got(); len(got) != 0 {
		t.Fatalf("intents without modifiers: %v", got)
	}

	h.key(KeyMeta, true, 300)
	h.key(KeyShift, true, 310)
	h.tap("d", 320, 350)
	if !h.tap("d", 400, 430) {
		t.Error("double tap with modifiers not swallowed")
	}
	if got := h.got(); !slices.Equal(got, []Intent{StartOrToggle}) {
		t.Fatalf("intents = %v", got)
	}

	// Taps released without all modifiers do not count.
	h.key(KeyShift, false, 500)
	h.tap("d", 600, 620)
	h.tap("d", 650, 670)
	if got := h.got(); len(got) != 1 {
		t.Fatalf("intents = %v, want only the first pair", got)
	}
}

func TestOtherKeysIgnored(t *testing.T) {
	h := newHarness(t, "Fn")
	for i := 0; i < 4; i++ {
		if h.tap("a", i*40, i*40+20) {
			t.Fatal("unrelated key swallowed")
		}
	}
	if len(h.got()) != 0 || len(h.timers) != 0 {
		t.Fatal("unrelated key produced gestures")
	}
}

func TestUpdateForgetsPress(t *testing.T) {
	h := newHarness(t, "Ctrl")
	h.key(KeyCtrl, true, 0)
	b, _ := ParseSpec("Alt")
	h.det.Update(b, DefaultThresholds())

	h.fire()
	if len(h.got()) != 0 {
		t.Fatal("timer from before Update fired")
	}
	if h.key(KeyCtrl, false, 50) {
		t.Fatal("old trigger release swallowed")
	}
	h.tap(KeyAlt, 100, 120)
	h.tap(KeyAlt, 150, 170)
	if got := h.got(); len(got) != 1 {
		t.Fatalf("intents = %v, want one on the new trigger", got)
	}
}

func TestParseSpec(t *testing.T) {
	tests := []struct {
		spec    string
		want    string
		wantErr bool
	}{
		{spec: "Win+Shift+D", want: "meta+shift+d"},
		{spec: "Ctrl", want: "ctrl"},
		{spec: "fn", want: "fn"},
		{spec: " cmd + option + space ", want: "meta+alt+space"},
		{spec: "Ctrl+Shift", want: "ctrl+shift"},
		{spec: "control+F12", want: "ctrl+f12"},
		{spec: "Super+9", want: "meta+9"},
		{spec: "Shift+Shift+A", want: "shift+a"},
		{spec: "", wantErr: true},
		{spec: "+", wantErr: true},
		{spec: "Ctrl+Hyper", wantErr: true},
		{spec: "F25", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			b, err := ParseSpec(tt.spec)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSpec) {
					t.Fatalf("err = %v, want ErrInvalidSpec", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got := b.String(); got != tt.want {
				t.Errorf("ParseSpec(%q) = %q, want %q", tt.spec, got, tt.want)
			}
		})
	}
}

func TestParseSpecModifierAloneIsTrigger(t *testing.T) {
	b, err := ParseSpec("Ctrl+Shift")
	if err != nil {
		t.Fatal(err)
	}
	if b.Trigger != KeyShift || !slices.Equal(b.Modifiers, []Key{KeyCtrl}) {
		t.Fatalf("binding = %+v", b)
	}
}

func TestParseSpecOrDefault(t *testing.T) {
	b, err := ParseSpecOrDefault("???")
	if err == nil {
		t.Fatal("want error for invalid spec")
	}
	if b.Trigger == "" {
		t.Fatal("no fallback binding")
	}
}
