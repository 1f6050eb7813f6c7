// Package app provides the core application service for Wails bindings.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wailsapp/wails/v3/pkg/application"

	"go.aimuz.me/dictate/audiocapture"
	"go.aimuz.me/dictate/audiocapture/mic"
	"go.aimuz.me/dictate/clipboard"
	"go.aimuz.me/dictate/config"
	"go.aimuz.me/dictate/dictation"
	"go.aimuz.me/dictate/errlog"
	"go.aimuz.me/dictate/history"
	"go.aimuz.me/dictate/hotkey"
	"go.aimuz.me/dictate/hotkey/hook"
	"go.aimuz.me/dictate/internal/types"
	"go.aimuz.me/dictate/langdetect"
	"go.aimuz.me/dictate/stt"
)

// maxQueuedSamples bounds the capture backlog to about 30 seconds at 48 kHz.
const maxQueuedSamples = 48000 * 30

// Service provides application functionality bound to Wails.
// This struct focuses on orchestration; the recording lifecycle lives in
// package dictation.
type Service struct {
	store *config.Store

	cfgMu sync.RWMutex
	cfg   config.Config

	errs      *errlog.Sink
	history   *history.Store
	host      *mic.Host
	dictation *dictation.Service
	hotkeys   *hotkey.Manager
	notifier  notifier
	stopWatch context.CancelFunc

	// lastState is only touched by the status listener, which dictation
	// runs one at a time.
	lastState dictation.State

	// UI references - set via Init
	app  *application.App
	tray *tray

	shutdown sync.Once

	// Version info (set by caller)
	version string
}

// New creates a new Service. Call Init() after Wails app is created.
func New(version string) *Service {
	return &Service{version: version, notifier: desktop{}}
}

// GetVersion returns the application version.
func (s *Service) GetVersion() string {
	return s.version
}

// Init wires configuration, capture, paste, hotkey and tray.
// Must be called after Wails application is created.
func (s *Service) Init(app *application.App) {
	s.app = app

	s.setupConfig()
	s.setupErrorLog()
	s.setupHistory()

	s.dictation = s.newDictation(s.newRecorder(), s.newInserter())

	s.setupTray()
	s.setupHotkey()
	s.watchConfig()
}

// Shutdown cleans up resources.
func (s *Service) Shutdown() {
	s.shutdown.Do(func() {
		if s.stopWatch != nil {
			s.stopWatch()
		}
		if s.hotkeys != nil {
			if err := s.hotkeys.Stop(); err != nil {
				slog.Error("stop hotkey", "error", err)
			}
		}
		if s.dictation != nil {
			if err := s.dictation.Discard(); err != nil && !errors.Is(err, dictation.ErrNotRecording) {
				slog.Warn("discard recording", "error", err)
			}
		}
		if s.host != nil {
			if err := s.host.Close(); err != nil {
				slog.Error("close audio", "error", err)
			}
		}
		if s.history != nil {
			if err := s.history.Close(); err != nil {
				slog.Error("close history", "error", err)
			}
		}
		if s.errs != nil {
			_ = s.errs.Close()
		}
	})
}

func (s *Service) config() config.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

func (s *Service) setConfig(cfg config.Config) {
	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()
}

func (s *Service) setupConfig() {
	store, err := config.DefaultStore()
	if err != nil {
		slog.Error("locate config", "error", err)
		store = config.NewStore(filepath.Join(os.TempDir(), "dictate"))
	}
	s.store = store

	cfg, err := store.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		cfg = config.Default()
	}
	s.setConfig(cfg)
	if !cfg.HasAPIKey() {
		slog.Warn("no API key configured", "provider", cfg.Transcription.Provider, "path", store.Path())
	}
}

func (s *Service) setupErrorLog() {
	dir, err := errlog.DefaultDir()
	if err == nil {
		s.errs, err = errlog.Open(dir)
	}
	if err != nil {
		slog.Error("open error log", "error", err)
		return
	}
	slog.Info("error log opened", "path", s.errs.Path())
}

func (s *Service) setupHistory() {
	dir, err := os.UserCacheDir()
	if err != nil {
		slog.Error("get cache dir for history", "error", err)
		return
	}
	cfg := s.config().History
	path := filepath.Join(dir, "dictate", "history")
	h, err := history.Open(path,
		history.WithTTL(time.Duration(cfg.RetentionHours)*time.Hour),
		history.WithMaxEntries(cfg.MaxEntries),
	)
	if err != nil {
		slog.Error("init history", "error", err)
		return
	}
	s.history = h
	slog.Info("history initialized", "path", path)
}

func (s *Service) newRecorder() dictation.Recorder {
	host, err := mic.New()
	if err != nil {
		slog.Error("init audio", "error", err)
		return dictation.CaptureRecorder(audiocapture.NewRecorder(unavailableHost{err}))
	}
	s.host = host
	return dictation.CaptureRecorder(audiocapture.NewRecorder(host, audiocapture.WithMaxQueued(maxQueuedSamples)))
}

func (s *Service) newInserter() dictation.Inserter {
	p, err := clipboard.New()
	if err != nil {
		slog.Error("init paste", "error", err)
		return unavailableInserter{err}
	}
	return p
}

func (s *Service) newDictation(rec dictation.Recorder, ins dictation.Inserter) *dictation.Service {
	opts := dictation.Options{
		Recorder: rec,
		Inserter: ins,
		Load:     s.loadCycle,
	}
	if s.errs != nil {
		opts.Sink = s.errs
	}
	d := dictation.New(opts)
	d.OnStatus(s.handleStatus)
	d.OnTranscript(func(text string) { go s.recordTranscript(text) })
	return d
}

// loadCycle re-reads the config file so every recording uses the latest
// settings.
func (s *Service) loadCycle() (dictation.Cycle, error) {
	cfg, err := s.store.Load()
	if err != nil {
		return dictation.Cycle{}, err
	}
	s.setConfig(cfg)

	sc := cfg.STT()
	return dictation.Cycle{
		MaxDuration:      cfg.MaxDuration(),
		RestoreClipboard: cfg.Insert.RestoreClipboard,
		Suffix:           cfg.Insert.Suffix(),
		Transcribe: func(ctx context.Context, wav []byte) (string, error) {
			tr, err := stt.New(sc)
			if err != nil {
				return "", err
			}
			return tr.Transcribe(ctx, wav)
		},
	}, nil
}

func (s *Service) handleStatus(st dictation.Status) {
	prev := s.lastState
	s.lastState = st.State

	s.emit(EventStatus, statusPayload(st))
	s.tray.apply(trayState(st))

	switch {
	case st.State == dictation.Recording && prev != dictation.Recording:
		s.beep(cueStartFreq)
	case prev == dictation.Recording && st.State != dictation.Recording:
		s.beep(cueStopFreq)
	}
	if st.LastError != "" {
		s.notifyError(st.LastError)
	}
}

func statusPayload(st dictation.Status) types.Status {
	return types.Status{State: st.State.String(), LastError: st.LastError}
}

// recordTranscript tags text with its language, stores it when history is
// enabled and tells the UI.
func (s *Service) recordTranscript(text string) types.Transcript {
	code, name := langdetect.Detect(text)
	e := history.Entry{Text: text, Language: code, LanguageName: name}

	if s.history != nil && s.config().History.Enabled {
		saved, err := s.history.Add(e)
		if err != nil {
			slog.Warn("save transcript", "error", err)
		} else {
			e = saved
		}
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
		e.CreatedAt = time.Now()
	}

	t := toTranscript(e)
	s.emit(EventTranscript, t)
	s.refreshRecent()
	return t
}

func toTranscript(e history.Entry) types.Transcript {
	return types.Transcript{
		ID:           e.ID,
		Text:         e.Text,
		Language:     e.Language,
		LanguageName: e.LanguageName,
		CreatedAt:    e.CreatedAt.UnixMilli(),
	}
}

func (s *Service) refreshRecent() {
	if s.tray == nil {
		return
	}
	entries, err := s.GetHistory(recentLimit)
	if err != nil {
		slog.Warn("load recent transcripts", "error", err)
		return
	}
	s.tray.setRecent(entries, func(text string) {
		if err := clipboard.Copy(text); err != nil {
			slog.Error("copy transcript", "error", err)
		}
	})
}

func (s *Service) setupHotkey() {
	s.hotkeys = hotkey.NewManager(hook.New(), func(i hotkey.Intent) {
		if err := s.dictation.HandleIntent(context.Background(), i); err != nil {
			slog.Debug("handle gesture", "intent", i.String(), "error", err)
		}
	})

	b, th := hotkeySettings(s.config())
	if err := s.hotkeys.Start(b, th); err != nil {
		slog.Error("start hotkey", "error", err)
		s.errs.Append("start hotkey", err.Error())
	}
}

func hotkeySettings(cfg config.Config) (hotkey.Binding, hotkey.Thresholds) {
	spec := cfg.HotkeyFor(runtime.GOOS)
	if strings.TrimSpace(spec) == "" {
		spec = hotkey.DefaultSpec(runtime.GOOS)
	}
	b, err := hotkey.ParseSpecOrDefault(spec)
	if err != nil {
		slog.Warn("invalid hotkey, using default", "spec", spec, "binding", b.String(), "error", err)
	}
	th := hotkey.Thresholds{
		Hold:        time.Duration(cfg.Thresholds.HoldMs) * time.Millisecond,
		DoubleClick: time.Duration(cfg.Thresholds.DoubleClickMs) * time.Millisecond,
	}
	return b, th
}

func (s *Service) watchConfig() {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopWatch = cancel
	if err := s.store.Watch(ctx, s.applyConfig); err != nil {
		slog.Warn("watch config", "error", err)
	}
}

// applyConfig takes effect immediately for the hotkey; recording settings
// are read again at the next start.
func (s *Service) applyConfig(cfg config.Config) {
	s.setConfig(cfg)
	if s.hotkeys != nil {
		s.hotkeys.Reload(hotkeySettings(cfg))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Bound methods
// ─────────────────────────────────────────────────────────────────────────────

// GetStatus returns the current dictation status.
func (s *Service) GetStatus() types.Status {
	return statusPayload(s.dictation.Status())
}

// ToggleRecording starts a recording or stops the current one.
func (s *Service) ToggleRecording() error {
	return s.dictation.Toggle(context.Background())
}

// StopRecording stops the current recording.
func (s *Service) StopRecording() error {
	return s.dictation.Stop(context.Background())
}

// CheckAPIKey reports whether the active provider has credentials.
func (s *Service) CheckAPIKey() types.APIKeyStatus {
	cfg := s.config()
	return types.APIKeyStatus{
		Provider:   cfg.Transcription.Provider,
		Configured: cfg.HasAPIKey(),
	}
}

// GetConfig returns the configuration file contents.
func (s *Service) GetConfig() (config.Config, error) {
	return s.store.LoadFile()
}

// SetConfig saves cfg and applies it.
func (s *Service) SetConfig(cfg config.Config) error {
	if err := s.store.Save(cfg); err != nil {
		return err
	}
	loaded, err := s.store.Load()
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	s.applyConfig(loaded)
	return nil
}

// GetHistory returns up to limit recent transcripts, newest first.
func (s *Service) GetHistory(limit int) ([]types.Transcript, error) {
	if s.history == nil {
		return nil, nil
	}
	entries, err := s.history.Recent(limit)
	if err != nil {
		return nil, err
	}
	out := make([]types.Transcript, len(entries))
	for i, e := range entries {
		out[i] = toTranscript(e)
	}
	return out, nil
}

// unavailableHost reports why no input device can be opened.
type unavailableHost struct{ err error }

func (h unavailableHost) DefaultInput() (audiocapture.Device, error) {
	return nil, fmt.Errorf("%w: %v", audiocapture.ErrNoDevice, h.err)
}

// unavailableInserter reports why text cannot be pasted.
type unavailableInserter struct{ err error }

func (i unavailableInserter) PasteWithRestore(string, bool) error {
	return i.err
}
