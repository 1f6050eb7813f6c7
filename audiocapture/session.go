package audiocapture

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Session is one capture-to-file operation. Stop must be called exactly
// once; it blocks until the device is released and the file is finalized.
type Session struct {
	path string

	stopOnce sync.Once
	stop     chan struct{}
	done     chan result

	mu      sync.Mutex
	stopped bool
}

type result struct {
	path string
	err  error
}

func startSession(path string, stream Stream, q *queue, w *wavWriter, inRate int) *Session {
	s := &Session{
		path: path,
		stop: make(chan struct{}),
		done: make(chan result, 1),
	}
	go s.run(stream, q, w, inRate)
	return s
}

// Path returns the output file path.
func (s *Session) Path() string {
	return s.path
}

// Stop signals the capture to end and waits for the worker. It returns the
// finalized path, or the first device, write or finalize error. A second
// call returns ErrAlreadyStopped.
func (s *Session) Stop() (string, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return "", ErrAlreadyStopped
	}
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	res, ok := <-s.done
	if !ok {
		return "", ErrWorkerPanic
	}
	return res.path, res.err
}

// cancel sends the stop signal. Extra calls are no-ops.
func (s *Session) cancel() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Session) run(stream Stream, q *queue, w *wavWriter, inRate int) {
	defer close(s.done)
	s.done <- s.capture(stream, q, w, inRate)
}

func (s *Session) capture(stream Stream, q *queue, w *wavWriter, inRate int) (res result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("capture worker panic", "panic", r)
			q.close()
			res = result{err: fmt.Errorf("%w: %v", ErrWorkerPanic, r)}
		}
	}()

	writerDone := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				writerDone <- fmt.Errorf("%w: writer: %v", ErrWorkerPanic, r)
				// Keep draining so the producer is never blocked on a dead consumer.
				for {
					if _, ok := q.pop(); !ok {
						return
					}
				}
			}
		}()
		writerDone <- drain(q, NewResampler(inRate, OutputSampleRate), w)
	}()

	<-s.stop

	closeErr := stream.Close()
	q.close()
	writeErr := <-writerDone

	if n := q.droppedSamples(); n > 0 {
		slog.Warn("capture queue overflow", "dropped_samples", n)
	}

	switch {
	case writeErr != nil:
		return result{err: writeErr}
	case closeErr != nil:
		return result{err: fmt.Errorf("failed to stop input stream: %w", closeErr)}
	default:
		return result{path: s.path}
	}
}

// IsWorkerPanic reports whether err came from a panicked capture worker
// rather than from the audio device or the file.
func IsWorkerPanic(err error) bool {
	return errors.Is(err, ErrWorkerPanic)
}
