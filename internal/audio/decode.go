package audio

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/cwbudde/wav"
)

// ErrInvalidWAV is returned when input bytes are not a decodable PCM WAV.
var ErrInvalidWAV = errors.New("invalid WAV file")

// PCM is decoded audio. Samples are interleaved when Channels > 1.
type PCM struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames.
func (p PCM) Frames() int {
	if p.Channels <= 0 {
		return 0
	}
	return len(p.Samples) / p.Channels
}

// DecodeWAV decodes WAV bytes into float32 PCM in [-1, 1].
func DecodeWAV(data []byte) (PCM, error) {
	if len(data) == 0 {
		return PCM{}, fmt.Errorf("%w: empty input", ErrInvalidWAV)
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return PCM{}, ErrInvalidWAV
	}
	if dec.NumChans == 0 || dec.SampleRate == 0 {
		return PCM{}, fmt.Errorf("%w: missing format chunk", ErrInvalidWAV)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return PCM{}, fmt.Errorf("reading PCM data: %w", err)
	}

	return PCM{
		Samples:    buf.Data,
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
	}, nil
}

// DecodeWAVFile reads and decodes the WAV file at path.
func DecodeWAVFile(path string) (PCM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PCM{}, fmt.Errorf("read WAV file: %w", err)
	}
	return DecodeWAV(data)
}
