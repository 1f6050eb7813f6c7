package audiocapture

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// flushSamples is how many output samples are batched per encoder write.
const flushSamples = 4096

var outputFormat = &audio.Format{NumChannels: 1, SampleRate: OutputSampleRate}

// wavWriter streams mono 16-bit samples into a WAV file.
type wavWriter struct {
	path string
	file *os.File
	enc  *wav.Encoder
	buf  []int
}

func createWriter(path string) (*wavWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create wav %s: %w", path, err)
	}
	w := &wavWriter{
		path: path,
		file: f,
		enc:  wav.NewEncoder(f, OutputSampleRate, OutputBitDepth, 1, 1),
		buf:  make([]int, 0, flushSamples),
	}
	// An empty write emits the RIFF and fmt headers so the file is well formed
	// even if no audio ever arrives.
	if err := w.flush(); err != nil {
		_ = w.abort()
		return nil, err
	}
	return w, nil
}

func (w *wavWriter) write(sample float32) error {
	w.buf = append(w.buf, toPCM16(sample))
	if len(w.buf) >= flushSamples {
		return w.flush()
	}
	return nil
}

func (w *wavWriter) flush() error {
	buf := &audio.IntBuffer{Format: outputFormat, Data: w.buf, SourceBitDepth: OutputBitDepth}
	if err := w.enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write wav sample: %w", err)
	}
	w.buf = w.buf[:0]
	return nil
}

// finalize flushes pending samples and rewrites the header length fields.
func (w *wavWriter) finalize() error {
	if err := w.flush(); err != nil {
		_ = w.file.Close()
		return err
	}
	if err := w.enc.Close(); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("failed to finalize wav: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to finalize wav: %w", err)
	}
	return nil
}

// abort closes and removes the file.
func (w *wavWriter) abort() error {
	_ = w.file.Close()
	return os.Remove(w.path)
}

// drain feeds every chunk from q through the resampler into w until q is
// closed. After the first write error the remaining chunks are discarded so
// the producer side is never left holding memory.
func drain(q *queue, rs *Resampler, w *wavWriter) error {
	var firstErr error
	for {
		chunk, ok := q.pop()
		if !ok {
			break
		}
		if firstErr != nil {
			continue
		}
		rs.Push(chunk)
		for {
			s, ok := rs.Next()
			if !ok {
				break
			}
			if err := w.write(s); err != nil {
				firstErr = err
				break
			}
		}
	}
	if firstErr != nil {
		_ = w.file.Close()
		return firstErr
	}
	return w.finalize()
}
