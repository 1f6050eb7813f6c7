// Package dictation runs the recording lifecycle: Idle, Recording,
// Transcribing, Inserting and back to Idle.
//
// A Service owns at most one capture session. Gestures start and stop it;
// stopping transcribes the audio, pastes the text into the focused
// application and deletes the audio file. Every failure ends the cycle in
// Idle with the error recorded; nothing is retried.
package dictation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"go.aimuz.me/dictate/audiocapture"
	"go.aimuz.me/dictate/hotkey"
)

var (
	// ErrBusy is returned when a gesture arrives while a recording is being
	// transcribed or inserted.
	ErrBusy = errors.New("busy")

	// ErrNotRecording is returned by Stop while Idle.
	ErrNotRecording = errors.New("not recording")
)

// State is the lifecycle state.
type State int

const (
	Idle State = iota
	Recording
	Transcribing
	Inserting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Transcribing:
		return "transcribing"
	case Inserting:
		return "inserting"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Status is broadcast on every transition.
type Status struct {
	State     State
	LastError string
}

// Session is a running capture.
type Session interface {
	Stop() (string, error)
}

// Recorder starts captures into a file.
type Recorder interface {
	Start(path string) (Session, error)
}

// Inserter pastes text into the focused application.
type Inserter interface {
	PasteWithRestore(text string, restore bool) error
}

// ErrorSink receives every error that ends a cycle.
type ErrorSink interface {
	Append(context, message string)
}

// TranscribeFunc converts a finalized WAV file to text.
type TranscribeFunc func(ctx context.Context, wav []byte) (string, error)

// Cycle is the configuration captured when a recording starts. Edits made
// while recording take effect from the next recording.
type Cycle struct {
	MaxDuration      time.Duration
	RestoreClipboard bool
	// Suffix is appended to the transcript before pasting.
	Suffix     string
	Transcribe TranscribeFunc
}

// Options configures a Service.
type Options struct {
	Recorder Recorder
	Inserter Inserter
	Sink     ErrorSink
	// Load is called at the start of every cycle.
	Load func() (Cycle, error)
	// TempDir holds in-flight recordings. Empty means os.TempDir().
	TempDir string
}

type timer interface {
	Stop() bool
}

// Service is the lifecycle state machine.
type Service struct {
	opts      Options
	afterFunc func(time.Duration, func()) timer

	mu      sync.Mutex
	status  Status
	token   uint32
	session Session
	path    string
	cycle   Cycle
	guard   timer

	// emitMu keeps broadcasts in transition order.
	emitMu       sync.Mutex
	onStatus     []func(Status)
	onTranscript []func(string)
}

// New creates an Idle Service.
func New(opts Options) *Service {
	return &Service{
		opts: opts,
		afterFunc: func(d time.Duration, f func()) timer {
			return time.AfterFunc(d, f)
		},
	}
}

// OnStatus registers fn for every status transition. Register listeners
// before the first gesture. Listeners must not call Toggle or Stop.
func (s *Service) OnStatus(fn func(Status)) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.onStatus = append(s.onStatus, fn)
}

// OnTranscript registers fn for every successfully inserted transcript.
func (s *Service) OnTranscript(fn func(text string)) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.onTranscript = append(s.onTranscript, fn)
}

// Status returns the current status.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// HandleIntent maps a gesture to Toggle or Stop. Expected rejections are
// logged rather than returned to the hook.
func (s *Service) HandleIntent(ctx context.Context, intent hotkey.Intent) error {
	var err error
	switch intent {
	case hotkey.StartOrToggle:
		err = s.Toggle(ctx)
	case hotkey.ForceStop:
		err = s.Stop(ctx)
	default:
		return fmt.Errorf("unknown intent %v", intent)
	}
	if errors.Is(err, ErrBusy) || errors.Is(err, ErrNotRecording) {
		slog.Debug("gesture ignored", "intent", intent.String(), "reason", err)
		return nil
	}
	return err
}

// Toggle starts a recording when Idle and otherwise stops the current one.
// A stop blocks until the cycle is back in Idle and returns the error that
// ended it, if any.
func (s *Service) Toggle(ctx context.Context) error {
	s.mu.Lock()
	switch s.status.State {
	case Idle:
		return s.startLocked()
	case Recording:
		return s.stopLocked(ctx)
	default:
		s.mu.Unlock()
		return ErrBusy
	}
}

// Stop ends the current recording and runs the rest of the cycle.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	switch s.status.State {
	case Recording:
		return s.stopLocked(ctx)
	case Idle:
		s.mu.Unlock()
		return ErrNotRecording
	default:
		s.mu.Unlock()
		return ErrBusy
	}
}

// Discard ends the current recording without transcribing it and deletes
// its audio. It is used on shutdown. s.mu stays held while the capture
// stops so no gesture can observe the half-closed session.
func (s *Service) Discard() error {
	s.mu.Lock()
	switch s.status.State {
	case Recording:
	case Idle:
		s.mu.Unlock()
		return ErrNotRecording
	default:
		s.mu.Unlock()
		return ErrBusy
	}

	sess, path := s.session, s.path
	s.session = nil
	s.token++
	if s.guard != nil {
		s.guard.Stop()
		s.guard = nil
	}
	got, err := sess.Stop()
	if got != "" {
		path = got
	}
	removeRecording(path)
	slog.Info("recording discarded", "path", path)
	if err != nil {
		s.failLocked("stop recording", err)
		return err
	}
	s.transitionLocked(Idle, "")
	return nil
}

// startLocked is entered with s.mu held and releases it.
func (s *Service) startLocked() error {
	cycle, err := s.opts.Load()
	if err != nil {
		err = fmt.Errorf("load config: %w", err)
		s.failLocked("start recording", err)
		return err
	}

	path := audiocapture.TempPath(s.opts.TempDir)
	sess, err := s.opts.Recorder.Start(path)
	if err != nil {
		s.failLocked("start recording", err)
		return err
	}

	s.token++
	token := s.token
	s.session = sess
	s.path = path
	s.cycle = cycle
	if cycle.MaxDuration > 0 {
		s.guard = s.afterFunc(cycle.MaxDuration, func() { s.maxDurationReached(token) })
	}
	slog.Info("recording started", "path", path, "max", cycle.MaxDuration)
	s.transitionLocked(Recording, "")
	return nil
}

func (s *Service) maxDurationReached(token uint32) {
	s.mu.Lock()
	if s.status.State != Recording || s.token != token {
		s.mu.Unlock()
		return
	}
	slog.Info("max recording duration reached")
	if err := s.stopLocked(context.Background()); err != nil {
		slog.Debug("auto stop finished with error", "error", err)
	}
}

// stopLocked is entered with s.mu held in Recording and releases it.
func (s *Service) stopLocked(ctx context.Context) error {
	sess, path, cycle := s.session, s.path, s.cycle
	s.session = nil
	if s.guard != nil {
		s.guard.Stop()
		s.guard = nil
	}
	s.transitionLocked(Transcribing, "")

	got, err := sess.Stop()
	if err != nil {
		return s.fail(path, "stop recording", err)
	}
	if got != "" {
		path = got
	}

	wav, err := os.ReadFile(path)
	if err != nil {
		return s.fail(path, "read recording", err)
	}

	if cycle.Transcribe == nil {
		return s.fail(path, "transcribe", errors.New("no transcriber configured"))
	}
	text, err := cycle.Transcribe(ctx, wav)
	if err != nil {
		return s.fail(path, "transcribe", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		slog.Info("empty transcript, nothing to insert")
		removeRecording(path)
		s.transition(Idle, "")
		return nil
	}

	s.transition(Inserting, "")
	if err := s.opts.Inserter.PasteWithRestore(text+cycle.Suffix, cycle.RestoreClipboard); err != nil {
		return s.fail(path, "insert text", err)
	}

	removeRecording(path)
	s.transition(Idle, "")
	s.emitTranscript(text)
	return nil
}

// fail deletes the recording, records err and returns to Idle.
func (s *Service) fail(path, op string, err error) error {
	removeRecording(path)
	s.mu.Lock()
	s.failLocked(op, err)
	return err
}

// failLocked is entered with s.mu held and releases it.
func (s *Service) failLocked(op string, err error) {
	slog.Error(op, "error", err)
	if s.opts.Sink != nil {
		s.opts.Sink.Append(op, err.Error())
	}
	s.transitionLocked(Idle, err.Error())
}

func (s *Service) transition(state State, lastErr string) {
	s.mu.Lock()
	s.transitionLocked(state, lastErr)
}

// transitionLocked is entered with s.mu held and releases it. Listeners run
// after the lock is released.
func (s *Service) transitionLocked(state State, lastErr string) {
	s.status = Status{State: state, LastError: lastErr}
	st := s.status
	s.emitMu.Lock()
	s.mu.Unlock()
	defer s.emitMu.Unlock()

	for _, fn := range s.onStatus {
		fn(st)
	}
}

func (s *Service) emitTranscript(text string) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	for _, fn := range s.onTranscript {
		fn(text)
	}
}

func removeRecording(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("remove recording", "path", path, "error", err)
	}
}

// CaptureRecorder adapts an audiocapture.Recorder.
func CaptureRecorder(r *audiocapture.Recorder) Recorder {
	return captureRecorder{r}
}

type captureRecorder struct {
	r *audiocapture.Recorder
}

func (c captureRecorder) Start(path string) (Session, error) {
	sess, err := c.r.Start(path)
	if err != nil {
		return nil, err
	}
	return sess, nil
}
