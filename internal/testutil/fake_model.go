package testutil

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/example/go-voice-clone/internal/device"
	"github.com/example/go-voice-clone/internal/model"
)

// FakeCall records one Generate invocation.
type FakeCall struct {
	Text string
	Opts model.GenerateOptions
}

// FakeModel is an in-memory model.Model. Its output is drawn entirely from
// opts.RNG, so equal seeds give equal buffers.
type FakeModel struct {
	Rate int
	Dev  device.Device
	Err  error

	mu       sync.Mutex
	calls    []FakeCall
	released int
	closed   bool
	movedTo  []device.Device
}

// NewFakeModel returns a 24 kHz CPU fake.
func NewFakeModel() *FakeModel {
	return &FakeModel{Rate: 24000, Dev: device.CPU}
}

func (f *FakeModel) Generate(ctx context.Context, text string, opts model.GenerateOptions) ([]float32, error) {
	f.mu.Lock()
	f.calls = append(f.calls, FakeCall{Text: text, Opts: opts})
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Err != nil {
		return nil, f.Err
	}

	rng := opts.RNG
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	out := make([]float32, 256+len(text))
	for i := range out {
		out[i] = float32(rng.Float64()*2-1) * float32(opts.Expressiveness)
	}
	return out, nil
}

func (f *FakeModel) SampleRate() int { return f.Rate }

func (f *FakeModel) Device() device.Device {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Dev
}

func (f *FakeModel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *FakeModel) ReleaseCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
}

// Calls returns a copy of the recorded Generate calls.
func (f *FakeModel) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeCall(nil), f.calls...)
}

// Released returns how many times ReleaseCache ran.
func (f *FakeModel) Released() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

// Closed reports whether Close ran.
func (f *FakeModel) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// RelocatableFakeModel is a FakeModel that implements model.Relocator.
type RelocatableFakeModel struct {
	*FakeModel
	MoveErr error
}

func (r *RelocatableFakeModel) To(_ context.Context, dev device.Device) error {
	if r.MoveErr != nil {
		return r.MoveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.movedTo = append(r.movedTo, dev)
	r.Dev = dev
	return nil
}

// MovedTo returns the devices the model was relocated to.
func (r *RelocatableFakeModel) MovedTo() []device.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]device.Device(nil), r.movedTo...)
}
