package audio

import (
	"encoding/binary"
	"math"
)

// PCM16LE converts float32 samples to little-endian signed 16-bit bytes,
// clamping to [-1, 1].
func PCM16LE(samples []float32) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		clamped := math.Max(-1.0, math.Min(1.0, float64(s)))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(clamped*32767)))
	}
	return buf
}

// Mono averages interleaved channels down to a single channel.
func Mono(p PCM) []float32 {
	if p.Channels <= 1 {
		return append([]float32(nil), p.Samples...)
	}
	frames := p.Frames()
	out := make([]float32, frames)
	for i := range frames {
		var sum float32
		base := i * p.Channels
		for c := range p.Channels {
			sum += p.Samples[base+c]
		}
		out[i] = sum / float32(p.Channels)
	}
	return out
}

// Resample converts mono samples from one rate to another using linear
// interpolation.
func Resample(samples []float32, from, to int) []float32 {
	if from <= 0 || to <= 0 || from == to || len(samples) == 0 {
		return append([]float32(nil), samples...)
	}

	n := int(math.Round(float64(len(samples)) * float64(to) / float64(from)))
	if n < 1 {
		n = 1
	}
	out := make([]float32, n)
	step := float64(from) / float64(to)
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= last {
			out[i] = samples[last]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}
	return out
}

// Duration returns the playback length in seconds.
func Duration(numSamples, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(numSamples) / float64(sampleRate)
}
