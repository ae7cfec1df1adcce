// Package model defines the contract every synthesis backend implements and
// owns the process-wide handle to the loaded model.
package model

import (
	"context"
	"errors"
	"math/rand/v2"

	"github.com/example/go-voice-clone/internal/device"
)

var (
	// ErrInvalidReference is returned by backends when the reference audio
	// cannot be read or decoded.
	ErrInvalidReference = errors.New("invalid reference audio")
	// ErrEmptyOutput is returned when a backend produces no samples.
	ErrEmptyOutput = errors.New("model produced no audio")
	// ErrHandleClosed is returned to callers whose load finished after the
	// handle was closed.
	ErrHandleClosed = errors.New("model handle closed during load")
)

// GenerateOptions carries the recognized generation controls for one call.
type GenerateOptions struct {
	// Expressiveness scales emotional intensity (exaggeration).
	Expressiveness float64
	// Temperature controls sampling variation.
	Temperature float64
	// GuidanceWeight is the classifier-free guidance weight.
	GuidanceWeight float64
	// ReferenceAudioPath optionally points at the voice sample to clone.
	ReferenceAudioPath string
	// Seed is the user seed; 0 means nondeterministic. Backends that run
	// out of process forward it, in-process backends draw from RNG.
	Seed int64
	// RNG is the per-request random source. Never nil when called through
	// tts.Service.
	RNG *rand.Rand
}

// Model is a loaded voice-cloning synthesis model.
type Model interface {
	// Generate synthesizes text and returns a mono sample buffer in [-1, 1].
	Generate(ctx context.Context, text string, opts GenerateOptions) ([]float32, error)
	// SampleRate of the buffers Generate returns.
	SampleRate() int
	// Device the model currently runs on.
	Device() device.Device
	Close() error
}

// Relocator is implemented by models that can move to another device.
type Relocator interface {
	To(ctx context.Context, dev device.Device) error
}

// CacheReleaser is implemented by models that hold transient buffers which
// can be dropped between generations.
type CacheReleaser interface {
	ReleaseCache()
}

// Loader constructs a model from pretrained artifacts on dev.
type Loader func(ctx context.Context, dev device.Device) (Model, error)
