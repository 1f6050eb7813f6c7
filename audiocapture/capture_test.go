package audiocapture

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/wav"
)

type fakeHost struct {
	dev    *fakeDevice
	err    error
	noDev  bool
	called int
}

func (h *fakeHost) DefaultInput() (Device, error) {
	h.called++
	if h.err != nil {
		return nil, h.err
	}
	if h.noDev {
		return nil, nil
	}
	return h.dev, nil
}

type fakeDevice struct {
	format    Format
	formatErr error
	openErr   error
	closeErr  error

	cb     Callback
	stream *fakeStream
}

func (d *fakeDevice) Format() (Format, error) {
	return d.format, d.formatErr
}

func (d *fakeDevice) Open(f Format, cb Callback) (Stream, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.cb = cb
	d.stream = &fakeStream{err: d.closeErr}
	return d.stream, nil
}

type fakeStream struct {
	closed bool
	err    error
}

func (s *fakeStream) Close() error {
	s.closed = true
	return s.err
}

func newDevice(rate, channels int, sf SampleFormat) *fakeDevice {
	return &fakeDevice{format: Format{SampleRate: rate, Channels: channels, SampleFormat: sf}}
}

func TestRecorderEmptyRecordingIsValidWAV(t *testing.T) {
	dev := newDevice(48000, 2, FormatFloat32)
	path := filepath.Join(t.TempDir(), "empty.wav")

	sess, err := NewRecorder(&fakeHost{dev: dev}).Start(path)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if sess.Path() != path {
		t.Errorf("Path() = %q, want %q", sess.Path(), path)
	}

	got, err := sess.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got != path {
		t.Errorf("Stop() path = %q, want %q", got, path)
	}
	if !dev.stream.closed {
		t.Error("stream not closed after Stop")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}
	if len(data) < 44 {
		t.Fatalf("wav is %d bytes, want at least a 44 byte header", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("bad RIFF header %q", data[:12])
	}
	if ch := binary.LittleEndian.Uint16(data[22:24]); ch != 1 {
		t.Errorf("channels = %d, want 1", ch)
	}
	if rate := binary.LittleEndian.Uint32(data[24:28]); rate != OutputSampleRate {
		t.Errorf("sample rate = %d, want %d", rate, OutputSampleRate)
	}
	if bits := binary.LittleEndian.Uint16(data[34:36]); bits != OutputBitDepth {
		t.Errorf("bits = %d, want %d", bits, OutputBitDepth)
	}
	if string(data[36:40]) != "data" {
		t.Fatalf("data chunk at %q", data[36:40])
	}
	if size := binary.LittleEndian.Uint32(data[40:44]); size != 0 {
		t.Errorf("data size = %d, want 0", size)
	}
}

func TestRecorderResamplesToMono16k(t *testing.T) {
	tests := []struct {
		name    string
		rate    int
		format  SampleFormat
		deliver func(cb Callback, frames int)
	}{
		{
			name:   "int16_stereo_48k",
			rate:   48000,
			format: FormatInt16,
			deliver: func(cb Callback, frames int) {
				cb.Int16(make([]int16, frames*2))
			},
		},
		{
			name:   "uint16_stereo_48k",
			rate:   48000,
			format: FormatUint16,
			deliver: func(cb Callback, frames int) {
				buf := make([]uint16, frames*2)
				for i := range buf {
					buf[i] = 32768
				}
				cb.Uint16(buf)
			},
		},
		{
			name:   "float32_stereo_48k_chunked",
			rate:   48000,
			format: FormatFloat32,
			deliver: func(cb Callback, frames int) {
				for i := 0; i < frames; i += 480 {
					cb.Float32(make([]float32, 480*2))
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newDevice(tt.rate, 2, tt.format)
			path := filepath.Join(t.TempDir(), "out.wav")

			sess, err := NewRecorder(&fakeHost{dev: dev}).Start(path)
			if err != nil {
				t.Fatalf("Start: %v", err)
			}
			tt.deliver(dev.cb, 4800) // 100ms
			if _, err := sess.Stop(); err != nil {
				t.Fatalf("Stop: %v", err)
			}

			f, err := os.Open(path)
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()

			dec := wav.NewDecoder(f)
			buf, err := dec.FullPCMBuffer()
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if dec.SampleRate != OutputSampleRate || dec.NumChans != 1 || dec.BitDepth != OutputBitDepth {
				t.Fatalf("format = %d Hz %d ch %d bit", dec.SampleRate, dec.NumChans, dec.BitDepth)
			}
			if n := len(buf.Data); n < 1590 || n > 1600 {
				t.Errorf("got %d samples for 100ms, want about 1600", n)
			}
			for i, v := range buf.Data {
				if v != 0 {
					t.Fatalf("sample %d = %d, want silence", i, v)
				}
			}
		})
	}
}

func TestRecorderScalesSamples(t *testing.T) {
	// The second channel carries a different level so the test also checks
	// that only the first channel is recorded.
	tests := []struct {
		name    string
		format  SampleFormat
		deliver func(cb Callback, frames int)
		want    int
	}{
		{
			name:   "int16_negative",
			format: FormatInt16,
			deliver: func(cb Callback, frames int) {
				buf := make([]int16, frames*2)
				for i := 0; i < len(buf); i += 2 {
					buf[i], buf[i+1] = -8000, 30000
				}
				cb.Int16(buf)
			},
			want: -8000,
		},
		{
			name:   "uint16_above_midpoint",
			format: FormatUint16,
			deliver: func(cb Callback, frames int) {
				buf := make([]uint16, frames*2)
				for i := 0; i < len(buf); i += 2 {
					buf[i], buf[i+1] = 49152, 0
				}
				cb.Uint16(buf)
			},
			want: 16383, // 0.5 full scale
		},
		{
			name:   "uint16_below_midpoint",
			format: FormatUint16,
			deliver: func(cb Callback, frames int) {
				buf := make([]uint16, frames*2)
				for i := 0; i < len(buf); i += 2 {
					buf[i], buf[i+1] = 16384, 65535
				}
				cb.Uint16(buf)
			},
			want: -16383,
		},
		{
			name:   "float32_clipped",
			format: FormatFloat32,
			deliver: func(cb Callback, frames int) {
				buf := make([]float32, frames*2)
				for i := 0; i < len(buf); i += 2 {
					buf[i], buf[i+1] = 1.5, 0
				}
				cb.Float32(buf)
			},
			want: 32767,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newDevice(48000, 2, tt.format)
			path := filepath.Join(t.TempDir(), "out.wav")

			sess, err := NewRecorder(&fakeHost{dev: dev}).Start(path)
			if err != nil {
				t.Fatalf("Start: %v", err)
			}
			tt.deliver(dev.cb, 4800)
			if _, err := sess.Stop(); err != nil {
				t.Fatalf("Stop: %v", err)
			}

			f, err := os.Open(path)
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()

			buf, err := wav.NewDecoder(f).FullPCMBuffer()
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(buf.Data) < 1590 {
				t.Fatalf("got %d samples, want about 1600", len(buf.Data))
			}
			// float32 rounding may cost one step of truncation.
			for i, v := range buf.Data {
				if d := v - tt.want; d < -1 || d > 1 {
					t.Fatalf("sample %d = %d, want %d", i, v, tt.want)
				}
			}
		})
	}
}

func TestSessionDoubleStop(t *testing.T) {
	dev := newDevice(16000, 1, FormatInt16)
	sess, err := NewRecorder(&fakeHost{dev: dev}).Start(filepath.Join(t.TempDir(), "a.wav"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sess.Stop(); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if _, err := sess.Stop(); !errors.Is(err, ErrAlreadyStopped) {
		t.Fatalf("second Stop error = %v, want ErrAlreadyStopped", err)
	}
}

func TestRecorderStartErrorsLeaveNoFile(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name    string
		host    *fakeHost
		wantErr error
	}{
		{"no_device", &fakeHost{noDev: true}, ErrNoDevice},
		{"host_error", &fakeHost{err: ErrNoDevice}, ErrNoDevice},
		{"config_error", &fakeHost{dev: &fakeDevice{formatErr: boom}}, ErrDeviceConfig},
		{"unknown_format", &fakeHost{dev: newDevice(48000, 1, FormatUnknown)}, ErrUnsupportedFormat},
		{"zero_rate", &fakeHost{dev: newDevice(0, 1, FormatInt16)}, ErrDeviceConfig},
		{"open_fails", &fakeHost{dev: &fakeDevice{
			format:  Format{SampleRate: 48000, Channels: 1, SampleFormat: FormatFloat32},
			openErr: boom,
		}}, ErrStreamStart},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "x.wav")
			sess, err := NewRecorder(tt.host).Start(path)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Start error = %v, want %v", err, tt.wantErr)
			}
			if sess != nil {
				t.Fatal("Start returned a session on error")
			}
			if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
				t.Errorf("file left behind: %v", statErr)
			}
		})
	}
}

func TestRecorderUnsupportedFormatMessage(t *testing.T) {
	_, err := NewRecorder(&fakeHost{dev: newDevice(48000, 1, SampleFormat(9))}).
		Start(filepath.Join(t.TempDir(), "x.wav"))
	if err == nil || !strings.Contains(err.Error(), "unsupported sample format") {
		t.Fatalf("error = %v", err)
	}
}

func TestSessionStreamCloseError(t *testing.T) {
	dev := newDevice(16000, 1, FormatInt16)
	dev.closeErr = errors.New("device gone")
	sess, err := NewRecorder(&fakeHost{dev: dev}).Start(filepath.Join(t.TempDir(), "a.wav"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sess.Stop(); err == nil || !strings.Contains(err.Error(), "device gone") {
		t.Fatalf("Stop error = %v, want device close error", err)
	}
}

type panicStream struct{}

func (panicStream) Close() error { panic("driver crashed") }

type panicDevice struct{ fakeDevice }

func (d *panicDevice) Open(Format, Callback) (Stream, error) { return panicStream{}, nil }

func TestSessionWorkerPanic(t *testing.T) {
	dev := &panicDevice{fakeDevice: *newDevice(16000, 1, FormatInt16)}
	host := hostFunc(func() (Device, error) { return dev, nil })

	sess, err := NewRecorder(host).Start(filepath.Join(t.TempDir(), "a.wav"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = sess.Stop()
	if !IsWorkerPanic(err) {
		t.Fatalf("Stop error = %v, want worker panic", err)
	}
	if errors.Is(err, ErrStreamStart) {
		t.Fatal("worker panic reported as a device error")
	}
}

type hostFunc func() (Device, error)

func (f hostFunc) DefaultInput() (Device, error) { return f() }

func TestQueueDropsOverLimit(t *testing.T) {
	q := newQueue(10)
	q.push(make([]float32, 8))
	q.push(make([]float32, 8))
	q.push(make([]float32, 2))
	q.close()

	var total int
	for {
		c, ok := q.pop()
		if !ok {
			break
		}
		total += len(c)
	}
	if total != 10 {
		t.Errorf("delivered %d samples, want 10", total)
	}
	if q.droppedSamples() != 8 {
		t.Errorf("dropped %d samples, want 8", q.droppedSamples())
	}
}

func TestTempPathUnique(t *testing.T) {
	dir := t.TempDir()
	a, b := TempPath(dir), TempPath(dir)
	if a == b {
		t.Fatal("TempPath returned the same path twice")
	}
	if filepath.Dir(a) != dir || filepath.Ext(a) != ".wav" {
		t.Errorf("TempPath = %q", a)
	}
}
