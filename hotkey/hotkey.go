// Package hotkey classifies raw global key events into dictation gestures.
//
// A Detector tracks one Binding: a trigger key plus the modifiers that must
// be held with it. Taps, double taps and holds of the trigger become
// Intents. Platform hooks live in the hook subpackage and feed a Detector
// through a Manager.
package hotkey

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidSpec is returned by ParseSpec for empty or unknown key specs.
var ErrInvalidSpec = errors.New("invalid hotkey")

// Key names a logical key. Left and right variants of a modifier share one Key.
type Key string

const (
	KeyCtrl  Key = "ctrl"
	KeyShift Key = "shift"
	KeyAlt   Key = "alt"
	KeyMeta  Key = "meta"
	KeyFn    Key = "fn"
	KeySpace Key = "space"
)

// IsModifier reports whether k is one of the tracked modifier keys.
func (k Key) IsModifier() bool {
	switch k {
	case KeyCtrl, KeyShift, KeyAlt, KeyMeta, KeyFn:
		return true
	}
	return false
}

// KeyEvent is one raw key transition reported by a backend.
type KeyEvent struct {
	Key  Key
	Down bool
	At   time.Time
}

// Intent is a classified gesture.
type Intent int

const (
	// StartOrToggle starts recording, or stops it when one is running.
	StartOrToggle Intent = iota + 1
	// ForceStop ends a push-to-talk hold.
	ForceStop
)

func (i Intent) String() string {
	switch i {
	case StartOrToggle:
		return "start_or_toggle"
	case ForceStop:
		return "force_stop"
	default:
		return "Intent(" + strconv.Itoa(int(i)) + ")"
	}
}

// Thresholds are the gesture timing limits.
type Thresholds struct {
	// Hold is how long the trigger must stay down before it counts as a hold.
	Hold time.Duration
	// DoubleClick is the longest gap between two taps of a double tap.
	DoubleClick time.Duration
}

// DefaultThresholds returns 180ms hold and 300ms double tap.
func DefaultThresholds() Thresholds {
	return Thresholds{Hold: 180 * time.Millisecond, DoubleClick: 300 * time.Millisecond}
}

// Binding is a parsed hotkey.
type Binding struct {
	Modifiers []Key
	Trigger   Key
}

func (b Binding) String() string {
	parts := make([]string, 0, len(b.Modifiers)+1)
	for _, m := range b.Modifiers {
		parts = append(parts, string(m))
	}
	parts = append(parts, string(b.Trigger))
	return strings.Join(parts, "+")
}

// DefaultSpec returns the trigger used when none is configured for goos.
func DefaultSpec(goos string) string {
	if goos == "darwin" {
		return "Fn"
	}
	return "Ctrl"
}

// ParseSpec parses specs such as "Win+Shift+D", "Ctrl" or "Fn". Tokens are
// case-insensitive. The last non-modifier token is the trigger; when only
// modifiers are given the last one is the trigger, used alone.
func ParseSpec(spec string) (Binding, error) {
	var (
		mods    []Key
		trigger Key
	)
	for part := range strings.SplitSeq(spec, "+") {
		tok := strings.ToLower(strings.TrimSpace(part))
		if tok == "" {
			continue
		}
		k, ok := parseToken(tok)
		if !ok {
			return Binding{}, fmt.Errorf("%w: unsupported key %q in %q", ErrInvalidSpec, part, spec)
		}
		if k.IsModifier() {
			if !slices.Contains(mods, k) {
				mods = append(mods, k)
			}
			continue
		}
		trigger = k
	}

	if trigger == "" {
		if len(mods) == 0 {
			return Binding{}, fmt.Errorf("%w: empty spec %q", ErrInvalidSpec, spec)
		}
		trigger = mods[len(mods)-1]
		mods = mods[:len(mods)-1]
	}
	return Binding{Modifiers: mods, Trigger: trigger}, nil
}

// ParseSpecOrDefault parses spec and falls back to DefaultSpec for the
// running platform when it is invalid.
func ParseSpecOrDefault(spec string) (Binding, error) {
	b, err := ParseSpec(spec)
	if err == nil {
		return b, nil
	}
	def, _ := ParseSpec(DefaultSpec(runtime.GOOS))
	return def, err
}

func parseToken(tok string) (Key, bool) {
	switch tok {
	case "win", "meta", "super", "cmd", "command":
		return KeyMeta, true
	case "shift":
		return KeyShift, true
	case "ctrl", "control":
		return KeyCtrl, true
	case "alt", "option":
		return KeyAlt, true
	case "fn":
		return KeyFn, true
	case "space":
		return KeySpace, true
	}
	if len(tok) == 1 {
		c := tok[0]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			return Key(tok), true
		}
		return "", false
	}
	if n, ok := strings.CutPrefix(tok, "f"); ok {
		if v, err := strconv.Atoi(n); err == nil && v >= 1 && v <= 24 {
			return Key(tok), true
		}
	}
	return "", false
}
