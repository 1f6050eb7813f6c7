//go:build windows

package hook

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"syscall"
	"time"
	"unsafe"

	"go.aimuz.me/dictate/hotkey"
)

const (
	whKeyboardLL  = 13
	wmKeyDown     = 0x0100
	wmKeyUp       = 0x0101
	wmSysKeyDown  = 0x0104
	wmSysKeyUp    = 0x0105
	wmQuit        = 0x0012
	llkhfInjected = 0x10
)

var (
	user32                  = syscall.NewLazyDLL("user32.dll")
	kernel32                = syscall.NewLazyDLL("kernel32.dll")
	procSetWindowsHookExW   = user32.NewProc("SetWindowsHookExW")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procGetMessageW         = user32.NewProc("GetMessageW")
	procPostThreadMessageW  = user32.NewProc("PostThreadMessageW")
	procGetCurrentThreadId  = kernel32.NewProc("GetCurrentThreadId")
)

type kbdllhookstruct struct {
	vkCode      uint32
	scanCode    uint32
	flags       uint32
	time        uint32
	dwExtraInfo uintptr
}

type msg struct {
	hwnd    uintptr
	message uint32
	wParam  uintptr
	lParam  uintptr
	time    uint32
	ptX     int32
	ptY     int32
}

// vkKeys maps virtual-key codes to logical keys. The generic and the
// left/right modifier codes collapse to one key.
var vkKeys = func() map[uint32]hotkey.Key {
	m := map[uint32]hotkey.Key{
		0x10: hotkey.KeyShift, 0xA0: hotkey.KeyShift, 0xA1: hotkey.KeyShift,
		0x11: hotkey.KeyCtrl, 0xA2: hotkey.KeyCtrl, 0xA3: hotkey.KeyCtrl,
		0x12: hotkey.KeyAlt, 0xA4: hotkey.KeyAlt, 0xA5: hotkey.KeyAlt,
		0x5B: hotkey.KeyMeta, 0x5C: hotkey.KeyMeta,
		0x20: hotkey.KeySpace,
	}
	for c := 'A'; c <= 'Z'; c++ {
		m[uint32(c)] = hotkey.Key(string(c + 'a' - 'A'))
	}
	for c := '0'; c <= '9'; c++ {
		m[uint32(c)] = hotkey.Key(string(c))
	}
	for n := 1; n <= 24; n++ {
		m[0x70+uint32(n-1)] = hotkey.Key(fmt.Sprintf("f%d", n))
	}
	return m
}()

type backend struct {
	threadID uintptr
	done     chan struct{}
}

func newBackend() hotkey.Backend {
	return &backend{}
}

var hookProc = syscall.NewCallback(func(nCode, wParam, lParam uintptr) uintptr {
	if int32(nCode) < 0 {
		ret, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
		return ret
	}

	var down bool
	switch uint32(wParam) {
	case wmKeyDown, wmSysKeyDown:
		down = true
	case wmKeyUp, wmSysKeyUp:
	default:
		ret, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
		return ret
	}

	k := (*kbdllhookstruct)(unsafe.Pointer(lParam))
	if k.flags&llkhfInjected == 0 {
		if key, ok := vkKeys[k.vkCode]; ok {
			if dispatch(hotkey.KeyEvent{Key: key, Down: down, At: time.Now()}) {
				return 1
			}
		}
	}

	ret, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
	return ret
})

func (b *backend) Start(h func(hotkey.KeyEvent) bool) error {
	if err := setHandler(h); err != nil {
		return err
	}

	type started struct {
		threadID uintptr
		err      error
	}
	ready := make(chan started, 1)
	done := make(chan struct{})

	go func() {
		defer close(done)
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		tid, _, _ := procGetCurrentThreadId.Call()
		hk, _, err := procSetWindowsHookExW.Call(whKeyboardLL, hookProc, 0, 0)
		if hk == 0 {
			ready <- started{err: fmt.Errorf("SetWindowsHookExW failed: %v", err)}
			return
		}
		ready <- started{threadID: tid}

		var m msg
		for {
			ret, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
			if int32(ret) <= 0 {
				break
			}
		}
		procUnhookWindowsHookEx.Call(hk)
		slog.Debug("keyboard hook removed")
	}()

	select {
	case s := <-ready:
		if s.err != nil {
			_ = setHandler(nil)
			return s.err
		}
		b.threadID = s.threadID
		b.done = done
		return nil
	case <-time.After(2 * time.Second):
		_ = setHandler(nil)
		return errors.New("timeout installing keyboard hook")
	}
}

func (b *backend) Stop() error {
	if b.done == nil {
		return nil
	}
	defer func() { _ = setHandler(nil) }()
	r, _, err := procPostThreadMessageW.Call(b.threadID, wmQuit, 0, 0)
	if r == 0 {
		return fmt.Errorf("PostThreadMessageW failed: %v", err)
	}
	<-b.done
	b.done = nil
	return nil
}
