// Package tts turns generation requests into calls on the loaded model.
package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/go-voice-clone/internal/model"
)

// ModelProvider hands out the process-wide model, loading it on first use.
type ModelProvider interface {
	Get(ctx context.Context) (model.Model, error)
}

type Service struct {
	models ModelProvider
	log    *slog.Logger
}

type ServiceOption func(*Service)

func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.log = l }
}

func NewService(models ModelProvider, opts ...ServiceOption) *Service {
	s := &Service{models: models, log: slog.Default()}
	for _, fn := range opts {
		fn(s)
	}
	return s
}

// Warmup loads the model ahead of the first request.
func (s *Service) Warmup(ctx context.Context) error {
	if _, err := s.models.Get(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	return nil
}

// Generate runs one request to completion. It returns either the full
// buffer or an error, never a partial result.
func (s *Service) Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error) {
	text, err := PrepareText(req.Text)
	if err != nil {
		return GenerationResult{}, err
	}

	req = req.WithDefaults()
	if err := req.Validate(); err != nil {
		return GenerationResult{}, err
	}

	m, err := s.models.Get(ctx)
	if err != nil {
		return GenerationResult{}, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}

	if cr, ok := m.(model.CacheReleaser); ok {
		cr.ReleaseCache()
	}

	opts := model.GenerateOptions{
		Expressiveness:     req.Expressiveness,
		Temperature:        req.Temperature,
		GuidanceWeight:     req.GuidanceWeight,
		ReferenceAudioPath: req.ReferenceAudioPath,
		Seed:               req.Seed,
		RNG:                NewRNG(req.Seed),
	}

	start := time.Now()
	samples, err := m.Generate(ctx, text, opts)
	if err != nil {
		if errors.Is(err, model.ErrInvalidReference) {
			return GenerationResult{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return GenerationResult{}, fmt.Errorf("generate: %w", err)
	}
	if len(samples) == 0 {
		return GenerationResult{}, model.ErrEmptyOutput
	}

	s.log.DebugContext(ctx, "generation finished",
		slog.Int("text_chars", len([]rune(text))),
		slog.Int64("seed", req.Seed),
		slog.Bool("reference", req.ReferenceAudioPath != ""),
		slog.Int("samples", len(samples)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	return GenerationResult{SampleRate: m.SampleRate(), Samples: samples}, nil
}
