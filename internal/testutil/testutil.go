// Package testutil provides shared fixtures and skip helpers for tests.
//
// Skip helpers call t.Skip with a clear human-readable reason when the named
// prerequisite is absent, so integration tests remain runnable in partial
// environments without failing noisily.
//
// Typical usage:
//
//	func TestMyIntegration(t *testing.T) {
//	    testutil.RequirePocketTTS(t)
//	    ref := testutil.WriteToneWAV(t, 24000, 0.5)
//	    ...
//	}
package testutil

import (
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/example/go-voice-clone/internal/audio"
)

// RequirePocketTTS skips the test if the pocket-tts binary is not found in
// PATH or at the path given by VOICECLONE_TTS_CLI_PATH.
func RequirePocketTTS(tb testing.TB) {
	tb.Helper()

	exe := os.Getenv("VOICECLONE_TTS_CLI_PATH")
	if exe == "" {
		exe = "pocket-tts"
	}

	_, err := exec.LookPath(exe)
	if err != nil {
		tb.Skipf("pocket-tts binary not available (%q not in PATH); set VOICECLONE_TTS_CLI_PATH to override", exe)
	}
}

// RequireModelBundle skips the test unless dir holds an ONNX model bundle
// and an ONNX Runtime library is reachable via ORT_LIBRARY_PATH.
func RequireModelBundle(tb testing.TB, dir string) {
	tb.Helper()

	if _, err := os.Stat(filepath.Join(dir, "voiceclone.json")); err != nil {
		tb.Skipf("model bundle not available in %q: %v", dir, err)
	}

	lib := os.Getenv("ORT_LIBRARY_PATH")
	if lib == "" {
		tb.Skip("ONNX Runtime shared library not configured; set ORT_LIBRARY_PATH")
	}
	if _, err := os.Stat(lib); err != nil {
		tb.Skipf("ONNX Runtime library not found at ORT_LIBRARY_PATH=%q", lib)
	}
}

// WriteToneWAV writes a mono 220 Hz tone of the given length to a temp file
// and returns its path. It stands in for a recorded reference voice.
func WriteToneWAV(tb testing.TB, sampleRate int, seconds float64) string {
	tb.Helper()

	n := int(float64(sampleRate) * seconds)
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(0.3 * math.Sin(2*math.Pi*220*float64(i)/float64(sampleRate)))
	}

	data, err := audio.EncodeWAV(samples, sampleRate)
	if err != nil {
		tb.Fatalf("encode tone WAV: %v", err)
	}

	path := filepath.Join(tb.TempDir(), "reference.wav")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		tb.Fatalf("write tone WAV: %v", err)
	}
	return path
}
