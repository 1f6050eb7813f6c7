// Package clipboard inserts text into the focused application by way of the
// system clipboard and a synthetic paste keystroke.
package clipboard

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/micmonay/keybd_event"
)

// ErrPaste wraps every failure of PasteWithRestore.
var ErrPaste = errors.New("paste failed")

// settle is how long the target application gets to read the clipboard
// before the original contents are put back.
const settle = 150 * time.Millisecond

// Board reads and writes clipboard text.
type Board interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

// Keyboard sends the platform paste shortcut.
type Keyboard interface {
	Paste() error
}

// Paster implements paste-with-restore. It is safe for concurrent use;
// pastes are serialized.
type Paster struct {
	mu     sync.Mutex
	board  Board
	keys   Keyboard
	settle time.Duration
}

// New returns a Paster on the system clipboard and keyboard.
func New() (*Paster, error) {
	kb, err := newKeyboard()
	if err != nil {
		return nil, fmt.Errorf("%w: init keyboard: %v", ErrPaste, err)
	}
	return NewWith(systemBoard{}, kb), nil
}

// NewWith returns a Paster on the given clipboard and keyboard.
func NewWith(b Board, k Keyboard) *Paster {
	return &Paster{board: b, keys: k, settle: settle}
}

// PasteWithRestore puts text on the clipboard and sends the paste shortcut.
// When restore is true the previous clipboard text, if any could be read, is
// written back after a short delay. A failed restore is reported as
// ErrPaste even though the text was already pasted.
func (p *Paster) PasteWithRestore(text string, restore bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var (
		orig    string
		hasOrig bool
	)
	if restore {
		s, err := p.board.ReadAll()
		if err != nil {
			slog.Debug("read clipboard", "error", err)
		} else {
			orig, hasOrig = s, true
		}
	}

	if err := p.board.WriteAll(text); err != nil {
		return fmt.Errorf("%w: write clipboard: %v", ErrPaste, err)
	}
	if err := p.keys.Paste(); err != nil {
		return fmt.Errorf("%w: send paste keystroke: %v", ErrPaste, err)
	}

	if !hasOrig {
		return nil
	}
	time.Sleep(p.settle)
	if err := p.board.WriteAll(orig); err != nil {
		return fmt.Errorf("%w: restore clipboard: %v", ErrPaste, err)
	}
	return nil
}

// Copy puts text on the system clipboard without pasting it.
func Copy(text string) error {
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	return nil
}

type systemBoard struct{}

func (systemBoard) ReadAll() (string, error)   { return clipboard.ReadAll() }
func (systemBoard) WriteAll(text string) error { return clipboard.WriteAll(text) }

// bonding sends modifier+V through keybd_event.
type bonding struct {
	kb keybd_event.KeyBonding
}

func newKeyboard() (*bonding, error) {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, err
	}
	setPasteModifier(&kb)
	kb.SetKeys(keybd_event.VK_V)
	return &bonding{kb: kb}, nil
}

func (b *bonding) Paste() error {
	return b.kb.Launching()
}
