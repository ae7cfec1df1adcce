// Package pocketcli runs synthesis through the pocket-tts command line tool,
// passing the reference clip as the voice prompt.
package pocketcli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	pockettts "github.com/MeKo-Christian/go-call-pocket-tts"

	"github.com/example/go-voice-clone/internal/audio"
	"github.com/example/go-voice-clone/internal/device"
	"github.com/example/go-voice-clone/internal/model"
)

// SampleRate is the output rate of pocket-tts.
const SampleRate = 24000

type Options struct {
	// ExecutablePath overrides the "pocket-tts" binary looked up on PATH.
	ExecutablePath string
	// Voice is used when a request carries no reference audio.
	Voice     string
	LogWriter io.Writer
	Logger    *slog.Logger
}

type generateFunc func(ctx context.Context, text string, opts *pockettts.Options) (*pockettts.WAVResult, error)

// Model drives one pocket-tts subprocess per generation.
type Model struct {
	opts     Options
	log      *slog.Logger
	generate generateFunc
}

var _ model.Model = (*Model)(nil)

// Loader checks that the executable resolves and returns a Model.
func Loader(opts Options) model.Loader {
	return func(_ context.Context, _ device.Device) (model.Model, error) {
		if err := pockettts.Preflight(opts.ExecutablePath); err != nil {
			return nil, fmt.Errorf("pocket-tts preflight: %w", err)
		}
		return New(opts), nil
	}
}

func New(opts Options) *Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Model{opts: opts, log: logger, generate: pockettts.Generate}
}

func (m *Model) Generate(ctx context.Context, text string, opts model.GenerateOptions) ([]float32, error) {
	po := m.cliOptions(opts)

	if opts.Seed != 0 {
		m.log.Debug("pocket-tts cannot be seeded; output is not reproducible", slog.Int64("seed", opts.Seed))
	}
	m.log.Debug("pocket-tts ignores expressiveness and guidance",
		slog.Float64("expressiveness", opts.Expressiveness),
		slog.Float64("guidance_weight", opts.GuidanceWeight),
	)

	res, err := m.generate(ctx, text, po)
	if err != nil {
		return nil, fmt.Errorf("pocket-tts generate: %w", err)
	}

	pcm, err := audio.DecodeWAV(res.Data)
	if err != nil {
		return nil, fmt.Errorf("decode pocket-tts output: %w", err)
	}

	samples := audio.Resample(audio.Mono(pcm), pcm.SampleRate, SampleRate)
	if len(samples) == 0 {
		return nil, model.ErrEmptyOutput
	}

	return samples, nil
}

func (m *Model) cliOptions(opts model.GenerateOptions) *pockettts.Options {
	voice := m.opts.Voice
	if opts.ReferenceAudioPath != "" {
		voice = opts.ReferenceAudioPath
	}

	return &pockettts.Options{
		Voice:          voice,
		Temperature:    opts.Temperature,
		Quiet:          true,
		ExecutablePath: m.opts.ExecutablePath,
		LogWriter:      m.opts.LogWriter,
	}
}

func (m *Model) SampleRate() int { return SampleRate }

func (m *Model) Device() device.Device { return device.CPU }

func (m *Model) Close() error { return nil }
