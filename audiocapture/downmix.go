package audiocapture

import "math"

// FromInt16 takes the first channel of each interleaved frame and scales it
// to [-1, 1]. A zero channel count yields nil. Trailing partial frames are
// dropped.
func FromInt16(data []int16, channels int) []float32 {
	if channels <= 0 {
		return nil
	}
	mono := make([]float32, 0, len(data)/channels)
	for i := 0; i+channels <= len(data); i += channels {
		mono = append(mono, float32(data[i])/math.MaxInt16)
	}
	return mono
}

// FromUint16 takes the first channel of each interleaved frame, centres it
// on zero and scales it to [-1, 1).
func FromUint16(data []uint16, channels int) []float32 {
	if channels <= 0 {
		return nil
	}
	mono := make([]float32, 0, len(data)/channels)
	for i := 0; i+channels <= len(data); i += channels {
		mono = append(mono, (float32(data[i])-32768)/32768)
	}
	return mono
}

// FromFloat32 takes the first channel of each interleaved frame unchanged.
// The result never aliases data, which belongs to the driver.
func FromFloat32(data []float32, channels int) []float32 {
	if channels <= 0 {
		return nil
	}
	mono := make([]float32, 0, len(data)/channels)
	for i := 0; i+channels <= len(data); i += channels {
		mono = append(mono, data[i])
	}
	return mono
}

// toPCM16 clamps s to [-1, 1] and scales it to int16, truncating toward zero.
func toPCM16(s float32) int {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return int(int16(s * math.MaxInt16))
}
