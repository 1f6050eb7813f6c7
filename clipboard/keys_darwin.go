//go:build darwin

package clipboard

import "github.com/micmonay/keybd_event"

// setPasteModifier selects Cmd for Cmd+V.
func setPasteModifier(kb *keybd_event.KeyBonding) {
	kb.HasSuper(true)
}
