package remote

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/go-voice-clone/internal/audio"
	"github.com/example/go-voice-clone/internal/device"
	"github.com/example/go-voice-clone/internal/model"
	"github.com/example/go-voice-clone/internal/testutil"
)

// fakeServer mimics the inference server contract.
type fakeServer struct {
	health     Health
	healthCode int
	genCode    int
	genBody    string
	rate       int

	mu   sync.Mutex
	last GenerateRequest
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		health:     Health{Status: "ok", Device: "cuda", SampleRate: 24000},
		healthCode: http.StatusOK,
		genCode:    http.StatusOK,
		rate:       24000,
	}
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case apiHealth:
		w.WriteHeader(f.healthCode)
		_ = json.NewEncoder(w).Encode(f.health)
	case apiGenerate:
		var req GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}

		f.mu.Lock()
		f.last = req
		f.mu.Unlock()

		if f.genCode != http.StatusOK {
			w.Header().Set("Content-Type", contentTypeJSON)
			w.WriteHeader(f.genCode)
			_, _ = w.Write([]byte(f.genBody))
			return
		}

		data, err := audio.EncodeWAV(make([]float32, f.rate/10), f.rate)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", contentTypeWAV)
		_, _ = w.Write(data)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeServer) lastRequest() GenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func startFake(t *testing.T, f *fakeServer) string {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestLoad_ReadsHealth(t *testing.T) {
	url := startFake(t, newFakeServer())

	m, err := Load(context.Background(), Options{BaseURL: url, Timeout: 5 * time.Second})
	require.NoError(t, err)

	assert.Equal(t, 24000, m.SampleRate())
	assert.Equal(t, device.CUDA, m.Device())
}

func TestLoad_UnhealthyServer(t *testing.T) {
	f := newFakeServer()
	f.healthCode = http.StatusServiceUnavailable

	_, err := Load(context.Background(), Options{BaseURL: startFake(t, f)})
	require.Error(t, err)
}

func TestLoad_BadSampleRate(t *testing.T) {
	f := newFakeServer()
	f.health.SampleRate = 0

	_, err := Load(context.Background(), Options{BaseURL: startFake(t, f)})
	require.Error(t, err)
}

func TestLoad_UnknownDeviceFallsBackToCPU(t *testing.T) {
	f := newFakeServer()
	f.health.Device = "mps"

	m, err := Load(context.Background(), Options{BaseURL: startFake(t, f)})
	require.NoError(t, err)
	assert.Equal(t, device.CPU, m.Device())
}

func TestGenerate_ForwardsControls(t *testing.T) {
	f := newFakeServer()
	m, err := Load(context.Background(), Options{BaseURL: startFake(t, f)})
	require.NoError(t, err)

	ref := testutil.WriteToneWAV(t, 16000, 0.2)
	clip, err := os.ReadFile(ref)
	require.NoError(t, err)

	out, err := m.Generate(context.Background(), "hello", model.GenerateOptions{
		Expressiveness:     0.9,
		Temperature:        0.6,
		GuidanceWeight:     0.4,
		Seed:               42,
		ReferenceAudioPath: ref,
	})
	require.NoError(t, err)
	assert.Len(t, out, 2400)

	got := f.lastRequest()
	assert.Equal(t, "hello", got.Text)
	assert.InDelta(t, 0.9, got.Exaggeration, 1e-9)
	assert.InDelta(t, 0.6, got.Temperature, 1e-9)
	assert.InDelta(t, 0.4, got.CFGWeight, 1e-9)
	assert.Equal(t, int64(42), got.Seed)
	assert.Equal(t, "cuda", got.Device)
	assert.Equal(t, base64.StdEncoding.EncodeToString(clip), got.AudioPrompt)
}

func TestGenerate_RelocationChangesRequestDevice(t *testing.T) {
	f := newFakeServer()
	m, err := Load(context.Background(), Options{BaseURL: startFake(t, f)})
	require.NoError(t, err)

	require.NoError(t, m.To(context.Background(), device.CPU))
	assert.Equal(t, device.CPU, m.Device())

	_, err = m.Generate(context.Background(), "hello", model.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "cpu", f.lastRequest().Device)
	assert.Empty(t, f.lastRequest().AudioPrompt)
}

func TestGenerate_ResamplesToServerRate(t *testing.T) {
	f := newFakeServer()
	f.rate = 48000

	m, err := Load(context.Background(), Options{BaseURL: startFake(t, f)})
	require.NoError(t, err)

	out, err := m.Generate(context.Background(), "hello", model.GenerateOptions{})
	require.NoError(t, err)
	assert.Len(t, out, 2400)
}

func TestGenerate_MissingReference(t *testing.T) {
	m, err := Load(context.Background(), Options{BaseURL: startFake(t, newFakeServer())})
	require.NoError(t, err)

	_, err = m.Generate(context.Background(), "hello", model.GenerateOptions{
		ReferenceAudioPath: filepath.Join(t.TempDir(), "missing.wav"),
	})
	require.ErrorIs(t, err, model.ErrInvalidReference)
}

func TestGenerate_RejectedReference(t *testing.T) {
	f := newFakeServer()
	m, err := Load(context.Background(), Options{BaseURL: startFake(t, f)})
	require.NoError(t, err)

	f.genCode = http.StatusBadRequest
	f.genBody = `{"detail":"could not decode audio prompt","error_code":"bad_audio"}`

	_, err = m.Generate(context.Background(), "hello", model.GenerateOptions{
		ReferenceAudioPath: testutil.WriteToneWAV(t, 16000, 0.1),
	})
	require.ErrorIs(t, err, model.ErrInvalidReference)
	require.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "bad_audio")
}

func TestGenerate_ServerError(t *testing.T) {
	f := newFakeServer()
	m, err := Load(context.Background(), Options{BaseURL: startFake(t, f)})
	require.NoError(t, err)

	f.genCode = http.StatusInternalServerError
	f.genBody = "CUDA out of memory"

	_, err = m.Generate(context.Background(), "hello", model.GenerateOptions{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "CUDA out of memory")
}

func TestClient_RejectsEmptyText(t *testing.T) {
	c := NewClient("http://127.0.0.1:0", time.Second)

	_, err := c.Generate(context.Background(), GenerateRequest{})
	require.Error(t, err)
}

func TestClient_UnexpectedContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("hi"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Generate(context.Background(), GenerateRequest{Text: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected content type")
}
