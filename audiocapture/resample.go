package audiocapture

// Resampler converts a mono stream between sample rates by linear
// interpolation. It is not safe for concurrent use.
type Resampler struct {
	ratio float64
	pos   float64
	buf   []float32
}

// NewResampler creates a Resampler from inRate to outRate.
func NewResampler(inRate, outRate int) *Resampler {
	return &Resampler{ratio: float64(inRate) / float64(outRate)}
}

// Ratio returns inRate / outRate.
func (r *Resampler) Ratio() float64 {
	return r.ratio
}

// Push appends input samples.
func (r *Resampler) Push(samples []float32) {
	r.buf = append(r.buf, samples...)
}

// Next returns the next output sample. ok is false when more input is
// needed; the stream is not over and Next may be called again after Push.
func (r *Resampler) Next() (sample float32, ok bool) {
	i0 := int(r.pos)
	i1 := i0 + 1
	if i1 >= len(r.buf) {
		return 0, false
	}

	s0, s1 := r.buf[i0], r.buf[i1]
	frac := float32(r.pos - float64(i0))
	out := s0 + (s1-s0)*frac

	r.pos += r.ratio

	// Evict consumed input so the buffer stays bounded by the push size.
	if drop := int(r.pos); drop > 0 {
		if drop > len(r.buf) {
			drop = len(r.buf)
		}
		r.buf = r.buf[drop:]
		r.pos -= float64(drop)
	}

	return out, true
}

// Buffered returns the number of input samples not yet evicted.
func (r *Resampler) Buffered() int {
	return len(r.buf)
}
