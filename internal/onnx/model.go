package onnx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/example/go-voice-clone/internal/audio"
	"github.com/example/go-voice-clone/internal/device"
	"github.com/example/go-voice-clone/internal/model"
	"github.com/example/go-voice-clone/internal/tokenizer"
)

// Options configures Load.
type Options struct {
	ModelDir       string
	ORTLibraryPath string
	ORTAPIVersion  uint32
	Logger         *slog.Logger
}

// Model runs an exported voice-cloning graph on the CPU execution provider.
type Model struct {
	manifest Manifest
	graph    graphRunner
	tok      tokenizer.Tokenizer
	log      *slog.Logger

	defaultRef []float32
}

var _ model.Model = (*Model)(nil)

// Loader adapts Load to model.Loader.
func Loader(opts Options) model.Loader {
	return func(ctx context.Context, _ device.Device) (model.Model, error) {
		return Load(ctx, opts)
	}
}

// Load opens the bundle in opts.ModelDir.
func Load(_ context.Context, opts Options) (*Model, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	manifest, err := LoadManifest(opts.ModelDir)
	if err != nil {
		return nil, err
	}

	info, err := DetectRuntime(opts.ORTLibraryPath)
	if err != nil {
		return nil, err
	}

	tok, err := tokenizer.Load(manifest.Path(manifest.Tokenizer))
	if err != nil {
		return nil, err
	}

	var defaultRef []float32
	if manifest.DefaultReference != "" {
		defaultRef, err = decodeReference(manifest.Path(manifest.DefaultReference), manifest.ReferenceSampleRate)
		if err != nil {
			return nil, fmt.Errorf("default reference: %w", err)
		}
	}

	runner, err := NewRunner("voiceclone", manifest.Path(manifest.Graph), RunnerConfig{
		LibraryPath: info.LibraryPath,
		APIVersion:  opts.ORTAPIVersion,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("loaded onnx bundle",
		slog.String("graph", manifest.Path(manifest.Graph)),
		slog.String("ort_library", info.LibraryPath),
		slog.String("ort_version", info.Version),
		slog.Int("sample_rate", manifest.SampleRate),
	)

	return newModel(manifest, runner, tok, defaultRef, logger), nil
}

func newModel(manifest Manifest, graph graphRunner, tok tokenizer.Tokenizer, defaultRef []float32, logger *slog.Logger) *Model {
	return &Model{
		manifest:   manifest,
		graph:      graph,
		tok:        tok,
		log:        logger,
		defaultRef: defaultRef,
	}
}

func (m *Model) Generate(ctx context.Context, text string, opts model.GenerateOptions) ([]float32, error) {
	ids, err := m.tok.Encode(text)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}
	if len(ids) == 0 {
		return nil, errors.New("tokenize: text produced no tokens")
	}

	ref, err := m.reference(opts.ReferenceAudioPath)
	if err != nil {
		return nil, err
	}

	idsTensor, err := NewTensor(ids, []int64{1, int64(len(ids))})
	if err != nil {
		return nil, err
	}

	refTensor, err := NewTensor(ref, []int64{1, int64(len(ref))})
	if err != nil {
		return nil, err
	}

	noise, err := m.drawNoise(opts.RNG)
	if err != nil {
		return nil, err
	}

	n := m.manifest.Nodes
	outputs, err := m.graph.Run(ctx, map[string]*Tensor{
		n.InputIDs:     idsTensor,
		n.Reference:    refTensor,
		n.Exaggeration: Scalar(opts.Expressiveness),
		n.CFGWeight:    Scalar(opts.GuidanceWeight),
		n.Temperature:  Scalar(opts.Temperature),
		n.Noise:        noise,
	})
	if err != nil {
		return nil, err
	}

	wave, ok := outputs[n.Waveform]
	if !ok {
		return nil, fmt.Errorf("missing %q in graph output", n.Waveform)
	}

	samples, err := ExtractFloat32(wave)
	if err != nil {
		return nil, fmt.Errorf("extract waveform: %w", err)
	}
	if len(samples) == 0 {
		return nil, model.ErrEmptyOutput
	}

	return samples, nil
}

func (m *Model) SampleRate() int { return m.manifest.SampleRate }

func (m *Model) Device() device.Device { return device.CPU }

func (m *Model) Close() error {
	m.graph.Close()
	return nil
}

// reference decodes the clip for one call. Nothing is kept between calls.
func (m *Model) reference(path string) ([]float32, error) {
	if path == "" {
		if len(m.defaultRef) > 0 {
			return m.defaultRef, nil
		}
		// One silent sample selects the graph's built-in conditioning.
		return []float32{0}, nil
	}

	return decodeReference(path, m.manifest.ReferenceSampleRate)
}

func (m *Model) drawNoise(rng *rand.Rand) (*Tensor, error) {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	noise := make([]float32, m.manifest.NoiseLength)
	for i := range noise {
		noise[i] = float32(rng.NormFloat64())
	}

	return NewTensor(noise, []int64{1, int64(len(noise))})
}

func decodeReference(path string, rate int) ([]float32, error) {
	pcm, err := audio.DecodeWAVFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidReference, err)
	}

	mono := audio.Mono(pcm)
	if len(mono) == 0 {
		return nil, fmt.Errorf("%w: %s has no samples", model.ErrInvalidReference, path)
	}

	return audio.Resample(mono, pcm.SampleRate, rate), nil
}
