// Package mic provides the PortAudio input host used by audiocapture.
package mic

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"go.aimuz.me/dictate/audiocapture"
)

// maxChannels caps the channel count requested from multi-channel
// interfaces. Only the first channel is recorded.
const maxChannels = 2

// Host is the PortAudio host. Create it once per process with New and
// release it with Close.
type Host struct {
	mu     sync.Mutex
	closed bool
}

// New initializes PortAudio.
func New() (*Host, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init failed: %w", err)
	}
	return &Host{}, nil
}

// Close terminates PortAudio. Streams must be closed first.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return portaudio.Terminate()
}

// DefaultInput implements audiocapture.Host.
func (h *Host) DefaultInput() (audiocapture.Device, error) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return nil, errors.New("portaudio host closed")
	}

	info, err := portaudio.DefaultInputDevice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", audiocapture.ErrNoDevice, err)
	}
	if info == nil || info.MaxInputChannels < 1 {
		return nil, audiocapture.ErrNoDevice
	}
	return &device{info: info}, nil
}

type device struct {
	info *portaudio.DeviceInfo
}

// Format reports the device's default rate. PortAudio converts any native
// encoding to float32, so that is what is requested first.
func (d *device) Format() (audiocapture.Format, error) {
	if d.info.DefaultSampleRate <= 0 {
		return audiocapture.Format{}, fmt.Errorf("device %q reports no sample rate", d.info.Name)
	}
	return audiocapture.Format{
		SampleRate:   int(d.info.DefaultSampleRate),
		Channels:     min(d.info.MaxInputChannels, maxChannels),
		SampleFormat: audiocapture.FormatFloat32,
	}, nil
}

// Open starts a callback stream. When the host API rejects float32 the
// stream is reopened as int16.
func (d *device) Open(f audiocapture.Format, cb audiocapture.Callback) (audiocapture.Stream, error) {
	params := portaudio.LowLatencyParameters(d.info, nil)
	params.Input.Channels = f.Channels
	params.SampleRate = float64(f.SampleRate)
	params.FramesPerBuffer = portaudio.FramesPerBufferUnspecified

	var (
		s   *portaudio.Stream
		err error
	)
	switch f.SampleFormat {
	case audiocapture.FormatInt16:
		s, err = portaudio.OpenStream(params, cb.Int16)
	default:
		s, err = portaudio.OpenStream(params, cb.Float32)
		if err != nil {
			slog.Debug("float32 stream rejected, retrying int16", "device", d.info.Name, "error", err)
			s, err = portaudio.OpenStream(params, cb.Int16)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open stream failed: %w", err)
	}

	if err := s.Start(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("start stream failed: %w", err)
	}
	return &stream{s: s}, nil
}

type stream struct {
	s *portaudio.Stream
}

func (s *stream) Close() error {
	stopErr := s.s.Stop()
	closeErr := s.s.Close()
	return errors.Join(stopErr, closeErr)
}
