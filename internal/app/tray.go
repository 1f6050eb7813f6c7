package app

import (
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/wailsapp/wails/v3/pkg/application"

	"go.aimuz.me/dictate/dictation"
	"go.aimuz.me/dictate/internal/types"
)

const (
	trayTitle     = "Dictate"
	recentLimit   = 10
	recentLabelAt = 40
)

// trayView is what the tray shows for a status.
type trayView struct {
	Toggle  string
	Enabled bool
	Icon    iconKind
	Tooltip string
}

func trayState(st dictation.Status) trayView {
	v := trayView{Toggle: "Start", Enabled: true, Icon: iconIdle}
	label := "Idle"
	switch st.State {
	case dictation.Recording:
		v.Toggle = "Stop"
		v.Icon = iconRecording
		label = "Recording"
	case dictation.Transcribing, dictation.Inserting:
		v.Enabled = false
		v.Icon = iconBusy
		label = titleCase(st.State.String())
	}
	if st.LastError != "" {
		v.Icon = iconError
		label = "Error"
	}
	v.Tooltip = trayTitle + " (" + label + ")"
	return v
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// recentLabel shortens a transcript to one menu line.
func recentLabel(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= recentLabelAt {
		return text
	}
	r := []rune(text)
	return string(r[:recentLabelAt]) + "…"
}

// tray owns the system tray icon and menu.
type tray struct {
	icons trayIcons

	mu     sync.Mutex
	st     *application.SystemTray
	menu   *application.Menu
	toggle *application.MenuItem
	recent *application.Menu
}

// setupTray creates the tray icon with Toggle, Recent and Quit items.
func (s *Service) setupTray() {
	t := &tray{icons: newTrayIcons()}

	t.st = s.app.SystemTray.New()
	t.menu = s.app.NewMenu()
	t.toggle = t.menu.Add("Start").OnClick(func(*application.Context) {
		go func() {
			if err := s.ToggleRecording(); err != nil {
				slog.Debug("toggle from tray", "error", err)
			}
		}()
	})
	t.recent = t.menu.AddSubmenu("Recent")
	t.menu.AddSeparator()
	t.menu.Add("Quit").
		SetAccelerator("CmdOrCtrl+Q").
		OnClick(func(*application.Context) {
			s.Shutdown()
			s.app.Quit()
		})

	t.st.SetMenu(t.menu)
	s.tray = t
	t.apply(trayState(s.dictation.Status()))
	s.refreshRecent()
}

func (t *tray) apply(v trayView) {
	if t == nil {
		return
	}
	application.InvokeAsync(func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		icon := t.icons[v.Icon]
		if runtime.GOOS == "darwin" {
			t.st.SetTemplateIcon(icon)
		} else {
			t.st.SetIcon(icon)
		}
		t.st.SetTooltip(v.Tooltip)
		t.toggle.SetLabel(v.Toggle)
		t.toggle.SetEnabled(v.Enabled)
		t.menu.Update()
	})
}

// setRecent lists entries in the Recent submenu. Clicking one copies it.
func (t *tray) setRecent(entries []types.Transcript, copyText func(string)) {
	if t == nil {
		return
	}
	application.InvokeAsync(func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.recent.Clear()
		if len(entries) == 0 {
			t.recent.Add("No transcripts").SetEnabled(false)
		}
		for _, e := range entries {
			text := e.Text
			t.recent.Add(recentLabel(text)).OnClick(func(*application.Context) {
				copyText(text)
			})
		}
		t.menu.Update()
	})
}
