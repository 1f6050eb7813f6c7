// Package audiocapture records the default microphone into a mono 16 kHz
// 16-bit PCM WAV file.
//
// A driver callback converts each device frame to mono float32 and hands it
// to an unbounded queue. A writer goroutine drains the queue through a
// linear resampler into the WAV encoder. Stopping a Session tears the device
// stream down, closes the queue, and waits for the writer to finalize the file.
package audiocapture

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// OutputSampleRate is the sample rate of every file written by a Recorder.
const OutputSampleRate = 16000

// OutputBitDepth is the PCM bit depth of every file written by a Recorder.
const OutputBitDepth = 16

var (
	// ErrNoDevice is returned when the host has no default input device.
	ErrNoDevice = errors.New("no default input device")

	// ErrDeviceConfig is returned when the device format cannot be queried.
	ErrDeviceConfig = errors.New("failed to get default input config")

	// ErrUnsupportedFormat is returned for native sample formats other than
	// int16, uint16 and float32.
	ErrUnsupportedFormat = errors.New("unsupported sample format")

	// ErrStreamStart is returned when the input stream cannot be opened or started.
	ErrStreamStart = errors.New("failed to start input stream")

	// ErrAlreadyStopped is returned by a second Stop on the same Session.
	ErrAlreadyStopped = errors.New("recording already stopped")

	// ErrWorkerPanic is returned when the capture worker panicked. It is kept
	// apart from device and I/O errors so callers can tell them apart.
	ErrWorkerPanic = errors.New("recording worker panicked")
)

// SampleFormat is the native sample encoding of an input device.
type SampleFormat int

const (
	FormatUnknown SampleFormat = iota
	FormatInt16
	FormatUint16
	FormatFloat32
)

func (f SampleFormat) String() string {
	switch f {
	case FormatInt16:
		return "i16"
	case FormatUint16:
		return "u16"
	case FormatFloat32:
		return "f32"
	default:
		return fmt.Sprintf("SampleFormat(%d)", int(f))
	}
}

// Format describes the native input configuration of a device.
type Format struct {
	SampleRate   int
	Channels     int
	SampleFormat SampleFormat
}

// Callback receives interleaved frames from the audio driver. Exactly one
// method is called per driver buffer, matching the stream's SampleFormat.
// Implementations run on the driver's real-time thread and must not block.
type Callback interface {
	Int16(data []int16)
	Uint16(data []uint16)
	Float32(data []float32)
}

// Stream is a running input stream.
type Stream interface {
	// Close halts the stream and releases the device. After Close returns
	// the callback is no longer invoked.
	Close() error
}

// Device is an audio input device.
type Device interface {
	// Format reports the device's native input format.
	Format() (Format, error)

	// Open starts delivering frames in format f to cb.
	Open(f Format, cb Callback) (Stream, error)
}

// Host gives access to the platform's default input device.
type Host interface {
	DefaultInput() (Device, error)
}

// Recorder starts capture sessions on a Host.
type Recorder struct {
	host      Host
	maxQueued int
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithMaxQueued bounds the number of mono samples that may wait between the
// driver callback and the writer. Chunks arriving while the bound is reached
// are dropped and counted. Zero means unbounded.
func WithMaxQueued(samples int) Option {
	return func(r *Recorder) { r.maxQueued = samples }
}

// NewRecorder creates a Recorder on host.
func NewRecorder(host Host, opts ...Option) *Recorder {
	r := &Recorder{host: host}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start opens the default input device and begins writing outputPath.
//
// Device errors are reported before the file is created. If the stream
// fails to start after the file was created, the file is removed.
func (r *Recorder) Start(outputPath string) (*Session, error) {
	dev, err := r.host.DefaultInput()
	if err != nil {
		return nil, err
	}
	if dev == nil {
		return nil, ErrNoDevice
	}

	format, err := dev.Format()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceConfig, err)
	}
	switch format.SampleFormat {
	case FormatInt16, FormatUint16, FormatFloat32:
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, format.SampleFormat)
	}
	if format.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrDeviceConfig, format.SampleRate)
	}

	w, err := createWriter(outputPath)
	if err != nil {
		return nil, err
	}

	q := newQueue(r.maxQueued)
	prod := &producer{channels: format.Channels, queue: q}

	stream, err := dev.Open(format, prod)
	if err != nil {
		_ = w.abort()
		return nil, fmt.Errorf("%w: %v", ErrStreamStart, err)
	}

	slog.Debug("capture started",
		"path", outputPath,
		"rate", format.SampleRate,
		"channels", format.Channels,
		"format", format.SampleFormat.String(),
	)

	return startSession(outputPath, stream, q, w, format.SampleRate), nil
}

// TempPath returns a unique WAV path in dir, or in os.TempDir() when dir is empty.
func TempPath(dir string) string {
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, fmt.Sprintf("dictate-%s.wav", uuid.New().String()))
}

// producer runs inside the driver callback.
type producer struct {
	channels int
	queue    *queue
}

func (p *producer) Int16(data []int16) {
	if mono := FromInt16(data, p.channels); len(mono) > 0 {
		p.queue.push(mono)
	}
}

func (p *producer) Uint16(data []uint16) {
	if mono := FromUint16(data, p.channels); len(mono) > 0 {
		p.queue.push(mono)
	}
}

func (p *producer) Float32(data []float32) {
	if mono := FromFloat32(data, p.channels); len(mono) > 0 {
		p.queue.push(mono)
	}
}
