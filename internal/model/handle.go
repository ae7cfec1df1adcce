package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/example/go-voice-clone/internal/device"
	"golang.org/x/sync/singleflight"
)

// Handle is a lazily initialized cache cell for the process model. The first
// Get loads it; concurrent first calls share one load. A failed load leaves
// the cell empty so the next Get tries again.
type Handle struct {
	load   Loader
	device device.Device
	log    *slog.Logger

	group singleflight.Group

	mu    sync.RWMutex
	model Model
	// gen advances on every Close; a load that started under an older
	// generation is discarded.
	gen uint64
}

// HandleOption configures a Handle.
type HandleOption func(*Handle)

// WithLogger sets the logger used for load events.
func WithLogger(l *slog.Logger) HandleOption {
	return func(h *Handle) { h.log = l }
}

// NewHandle returns an empty handle that loads with load on dev.
func NewHandle(load Loader, dev device.Device, opts ...HandleOption) *Handle {
	h := &Handle{
		load:   load,
		device: dev,
		log:    slog.Default(),
	}
	for _, fn := range opts {
		fn(h)
	}
	return h
}

// Device returns the device selected for this process.
func (h *Handle) Device() device.Device { return h.device }

// Loaded reports whether a model is cached.
func (h *Handle) Loaded() bool {
	return h.cached() != nil
}

// Get returns the cached model, loading it first if needed.
func (h *Handle) Get(ctx context.Context) (Model, error) {
	if m := h.cached(); m != nil {
		return m, nil
	}

	// The load outlives any single caller; one client hanging up must not
	// fail the load for everyone waiting on it.
	loadCtx := context.WithoutCancel(ctx)

	v, err, _ := h.group.Do("model", func() (any, error) {
		h.mu.RLock()
		m, gen := h.model, h.gen
		h.mu.RUnlock()
		if m != nil {
			return m, nil
		}

		m, err := h.loadModel(loadCtx)
		if err != nil {
			return nil, err
		}

		h.mu.Lock()
		if h.gen != gen {
			h.mu.Unlock()
			h.log.InfoContext(loadCtx, "handle closed during load, releasing model")
			if err := m.Close(); err != nil {
				return nil, errors.Join(ErrHandleClosed, err)
			}
			return nil, ErrHandleClosed
		}
		h.model = m
		h.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Model), nil
}

// Close releases the cached model. A load in flight is released when it
// finishes instead of being cached. A later Get loads it again.
func (h *Handle) Close() error {
	h.mu.Lock()
	m := h.model
	h.model = nil
	h.gen++
	h.mu.Unlock()

	if m == nil {
		return nil
	}
	return m.Close()
}

func (h *Handle) cached() Model {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.model
}

func (h *Handle) loadModel(ctx context.Context) (Model, error) {
	h.log.InfoContext(ctx, "model not loaded, initializing", slog.String("device", h.device.String()))

	m, err := h.load(ctx, h.device)
	if err != nil {
		h.log.ErrorContext(ctx, "model load failed",
			slog.String("device", h.device.String()),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("load model: %w", err)
	}

	if got := m.Device(); got != h.device {
		h.relocate(ctx, m, got)
	}

	h.log.InfoContext(ctx, "model loaded",
		slog.String("device", m.Device().String()),
		slog.Int("sample_rate", m.SampleRate()),
	)
	return m, nil
}

func (h *Handle) relocate(ctx context.Context, m Model, from device.Device) {
	r, ok := m.(Relocator)
	if !ok {
		h.log.WarnContext(ctx, "model cannot be relocated",
			slog.String("model_device", from.String()),
			slog.String("selected_device", h.device.String()),
		)
		return
	}
	if err := r.To(ctx, h.device); err != nil {
		h.log.WarnContext(ctx, "model relocation failed",
			slog.String("model_device", from.String()),
			slog.String("selected_device", h.device.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	h.log.InfoContext(ctx, "model relocated",
		slog.String("from", from.String()),
		slog.String("to", h.device.String()),
	)
}
