package app

import (
	"log/slog"

	"github.com/gen2brain/beeep"
)

// Event names for frontend communication.
const (
	EventStatus     = "dictation-status"
	EventTranscript = "dictation-transcript"
)

// Sound cue pitches in Hz; cues last cueMs.
const (
	cueStartFreq = 880.0
	cueStopFreq  = 660.0
	cueMs        = 80
)

// notifier plays sound cues and shows desktop notifications.
type notifier interface {
	Beep(freq float64, ms int) error
	Notify(title, message string) error
}

type desktop struct{}

func (desktop) Beep(freq float64, ms int) error {
	return beeep.Beep(freq, ms)
}

func (desktop) Notify(title, message string) error {
	return beeep.Notify(title, message, "")
}

// emit is a safe wrapper around app.Event.Emit
func (s *Service) emit(name string, data any) {
	if s.app != nil {
		s.app.Event.Emit(name, data)
	}
}

func (s *Service) beep(freq float64) {
	if !s.config().Sound.Enabled {
		return
	}
	// Beep blocks for the cue on some platforms.
	go func() {
		if err := s.notifier.Beep(freq, cueMs); err != nil {
			slog.Debug("play sound cue", "error", err)
		}
	}()
}

func (s *Service) notifyError(msg string) {
	go func() {
		if err := s.notifier.Notify(trayTitle, msg); err != nil {
			slog.Debug("show notification", "error", err)
		}
	}()
}
