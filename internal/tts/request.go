package tts

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"unicode/utf8"
)

// MaxTextChars is the number of characters kept after trimming.
const MaxTextChars = 1000

// Control ranges and defaults.
const (
	MinExpressiveness     = 0.3
	MaxExpressiveness     = 1.2
	DefaultExpressiveness = 0.5

	MinGuidanceWeight     = 0.2
	MaxGuidanceWeight     = 0.9
	DefaultGuidanceWeight = 0.5

	MinTemperature     = 0.05
	MaxTemperature     = 1.5
	DefaultTemperature = 0.7
)

var (
	// ErrInvalidInput marks requests the caller must fix.
	ErrInvalidInput = errors.New("invalid input")
	// ErrModelUnavailable is returned when the model could not be loaded.
	ErrModelUnavailable = errors.New("model unavailable")
)

// GenerationRequest is one synthesis request. Zero-valued controls take
// their defaults; Seed 0 means nondeterministic.
type GenerationRequest struct {
	Text               string
	ReferenceAudioPath string
	Expressiveness     float64
	Temperature        float64
	Seed               int64
	GuidanceWeight     float64
}

// GenerationResult is a complete mono buffer at SampleRate.
type GenerationResult struct {
	SampleRate int
	Samples    []float32
}

// PrepareText trims surrounding whitespace and keeps at most the first
// MaxTextChars characters. Empty text is rejected.
func PrepareText(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", fmt.Errorf("%w: text is empty", ErrInvalidInput)
	}

	if utf8.RuneCountInString(text) <= MaxTextChars {
		return text, nil
	}

	n := 0
	for i := range text {
		if n == MaxTextChars {
			return text[:i], nil
		}
		n++
	}
	return text, nil
}

// WithDefaults fills zero-valued controls.
func (r GenerationRequest) WithDefaults() GenerationRequest {
	if r.Expressiveness == 0 {
		r.Expressiveness = DefaultExpressiveness
	}
	if r.GuidanceWeight == 0 {
		r.GuidanceWeight = DefaultGuidanceWeight
	}
	if r.Temperature == 0 {
		r.Temperature = DefaultTemperature
	}
	return r
}

// Validate checks control ranges and the reference clip path.
func (r GenerationRequest) Validate() error {
	if err := inRange("expressiveness", r.Expressiveness, MinExpressiveness, MaxExpressiveness); err != nil {
		return err
	}
	if err := inRange("guidance_weight", r.GuidanceWeight, MinGuidanceWeight, MaxGuidanceWeight); err != nil {
		return err
	}
	if err := inRange("temperature", r.Temperature, MinTemperature, MaxTemperature); err != nil {
		return err
	}
	if r.ReferenceAudioPath != "" {
		return checkReference(r.ReferenceAudioPath)
	}
	return nil
}

func inRange(name string, v, lo, hi float64) error {
	if math.IsNaN(v) || v < lo || v > hi {
		return fmt.Errorf("%w: %s %.3g outside [%.3g, %.3g]", ErrInvalidInput, name, v, lo, hi)
	}
	return nil
}

func checkReference(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: reference audio: %w", ErrInvalidInput, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: reference audio: %w", ErrInvalidInput, err)
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("%w: reference audio %s is not a regular file", ErrInvalidInput, path)
	}
	return nil
}
