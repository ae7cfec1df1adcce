package remote

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/example/go-voice-clone/internal/audio"
	"github.com/example/go-voice-clone/internal/device"
	"github.com/example/go-voice-clone/internal/model"
)

// HealthTimeout bounds the health probe done at load time.
const HealthTimeout = 10 * time.Second

type Options struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Model forwards generations to the inference server. The device it asks
// the server to use travels with every request, so relocation is local.
type Model struct {
	client *Client
	rate   int
	log    *slog.Logger

	mu  sync.RWMutex
	dev device.Device
}

var (
	_ model.Model     = (*Model)(nil)
	_ model.Relocator = (*Model)(nil)
)

// Loader probes the server's health and returns a Model bound to it.
func Loader(opts Options) model.Loader {
	return func(ctx context.Context, _ device.Device) (model.Model, error) {
		return Load(ctx, opts)
	}
}

func Load(ctx context.Context, opts Options) (*Model, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := NewClient(opts.BaseURL, opts.Timeout)

	hctx, cancel := context.WithTimeout(ctx, HealthTimeout)
	defer cancel()

	h, err := client.Health(hctx)
	if err != nil {
		return nil, err
	}
	if h.SampleRate <= 0 {
		return nil, fmt.Errorf("inference server reported sample rate %d", h.SampleRate)
	}

	dev, err := device.Parse(h.Device)
	if err != nil || dev == "" {
		dev = device.CPU
	}

	logger.Info("connected to inference server",
		slog.String("url", opts.BaseURL),
		slog.String("device", dev.String()),
		slog.Int("sample_rate", h.SampleRate),
	)

	return &Model{client: client, rate: h.SampleRate, dev: dev, log: logger}, nil
}

func (m *Model) Generate(ctx context.Context, text string, opts model.GenerateOptions) ([]float32, error) {
	req := GenerateRequest{
		Text:         text,
		Exaggeration: opts.Expressiveness,
		Temperature:  opts.Temperature,
		CFGWeight:    opts.GuidanceWeight,
		Seed:         opts.Seed,
		Device:       m.Device().String(),
	}

	if opts.ReferenceAudioPath != "" {
		clip, err := os.ReadFile(opts.ReferenceAudioPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", model.ErrInvalidReference, err)
		}
		req.AudioPrompt = base64.StdEncoding.EncodeToString(clip)
	}

	data, err := m.client.Generate(ctx, req)
	if err != nil {
		if opts.ReferenceAudioPath != "" && errors.Is(err, ErrRejected) {
			return nil, fmt.Errorf("%w: %w", model.ErrInvalidReference, err)
		}
		return nil, err
	}

	pcm, err := audio.DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("decode server audio: %w", err)
	}

	samples := audio.Resample(audio.Mono(pcm), pcm.SampleRate, m.rate)
	if len(samples) == 0 {
		return nil, model.ErrEmptyOutput
	}
	return samples, nil
}

// To changes the device sent with subsequent requests.
func (m *Model) To(_ context.Context, dev device.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dev = dev
	return nil
}

func (m *Model) SampleRate() int { return m.rate }

func (m *Model) Device() device.Device {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.dev
}

func (m *Model) Close() error {
	m.client.httpClient.CloseIdleConnections()
	return nil
}
