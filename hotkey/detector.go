package hotkey

import (
	"sync"
	"time"
)

type timer interface {
	Stop() bool
}

func stdAfterFunc(d time.Duration, f func()) timer {
	return time.AfterFunc(d, f)
}

// Detector turns KeyEvents for one Binding into Intents.
//
// A press held past Thresholds.Hold emits StartOrToggle when the hold
// timer fires and ForceStop on release. Two taps shorter than Hold whose
// releases are less than Thresholds.DoubleClick apart emit StartOrToggle;
// the pair is consumed, so a third tap starts a new pair.
//
// Handle and the hold timer share one mutex. emit is always called after it
// is released.
type Detector struct {
	mu        sync.Mutex
	binding   Binding
	th        Thresholds
	emit      func(Intent)
	afterFunc func(time.Duration, func()) timer

	mods      map[Key]bool
	down      bool
	downAt    time.Time
	holdFired bool
	press     uint64
	hold      timer
	lastTap   time.Time
}

// NewDetector creates a Detector. emit is called once per Intent from the
// caller of Handle or from the hold timer goroutine.
func NewDetector(b Binding, th Thresholds, emit func(Intent)) *Detector {
	return &Detector{
		binding:   b,
		th:        th,
		emit:      emit,
		afterFunc: stdAfterFunc,
		mods:      make(map[Key]bool),
	}
}

// Binding returns the current binding.
func (d *Detector) Binding() Binding {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.binding
}

// Update replaces the binding and thresholds. Any press in progress is
// forgotten.
func (d *Detector) Update(b Binding, th Thresholds) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.binding = b
	d.th = th
	d.resetPress()
	d.lastTap = time.Time{}
}

// Handle processes one event and reports whether the backend should swallow
// it. Only the trigger release that produced ForceStop or a double-tap
// StartOrToggle is swallowed.
func (d *Detector) Handle(ev KeyEvent) (swallow bool) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	var intent Intent
	d.mu.Lock()
	intent, swallow = d.handleLocked(ev)
	d.mu.Unlock()

	if intent != 0 {
		d.emit(intent)
	}
	return swallow
}

func (d *Detector) handleLocked(ev KeyEvent) (Intent, bool) {
	if ev.Key != d.binding.Trigger {
		if ev.Key.IsModifier() {
			d.mods[ev.Key] = ev.Down
		}
		return 0, false
	}

	if ev.Down {
		if d.down {
			// auto-repeat
			return 0, false
		}
		d.down = true
		d.downAt = ev.At
		d.holdFired = false
		d.press++
		if d.modifiersMatch() {
			press := d.press
			d.hold = d.afterFunc(d.th.Hold, func() { d.onHold(press) })
		}
		return 0, false
	}

	if !d.down {
		return 0, false
	}
	held := ev.At.Sub(d.downAt)
	fired := d.holdFired
	d.resetPress()

	if fired {
		return ForceStop, true
	}
	if held >= d.th.Hold || !d.modifiersMatch() {
		return 0, false
	}

	if !d.lastTap.IsZero() && ev.At.Sub(d.lastTap) < d.th.DoubleClick {
		d.lastTap = time.Time{}
		return StartOrToggle, true
	}
	d.lastTap = ev.At
	return 0, false
}

func (d *Detector) onHold(press uint64) {
	d.mu.Lock()
	if !d.down || d.holdFired || d.press != press {
		d.mu.Unlock()
		return
	}
	d.holdFired = true
	d.lastTap = time.Time{}
	d.mu.Unlock()

	d.emit(StartOrToggle)
}

func (d *Detector) resetPress() {
	if d.hold != nil {
		d.hold.Stop()
		d.hold = nil
	}
	d.down = false
	d.downAt = time.Time{}
	d.holdFired = false
}

func (d *Detector) modifiersMatch() bool {
	for _, m := range d.binding.Modifiers {
		if !d.mods[m] {
			return false
		}
	}
	return true
}
