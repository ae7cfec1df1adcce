package onnx

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDetectRuntime_ConfiguredPathWins(t *testing.T) {
	tmp := t.TempDir()
	lib := filepath.Join(tmp, "libonnxruntime.so.1.22.0")
	if err := os.WriteFile(lib, []byte("fake"), 0o644); err != nil {
		t.Fatalf("write fake lib: %v", err)
	}

	t.Setenv("ORT_LIBRARY_PATH", filepath.Join(tmp, "does-not-exist"))
	t.Setenv("ORT_VERSION", "")

	info, err := DetectRuntime(lib)
	if err != nil {
		t.Fatalf("DetectRuntime failed: %v", err)
	}

	if info.LibraryPath != lib {
		t.Fatalf("expected %q, got %q", lib, info.LibraryPath)
	}

	if info.Version != "1.22.0" {
		t.Fatalf("expected version inferred from filename, got %q", info.Version)
	}
}

func TestDetectRuntime_EnvFallback(t *testing.T) {
	tmp := t.TempDir()
	lib := filepath.Join(tmp, "libonnxruntime.so")
	if err := os.WriteFile(lib, []byte("fake"), 0o644); err != nil {
		t.Fatalf("write fake lib: %v", err)
	}

	t.Setenv("ORT_LIBRARY_PATH", lib)
	t.Setenv("ORT_VERSION", "1.23.1")

	info, err := DetectRuntime("")
	if err != nil {
		t.Fatalf("DetectRuntime failed: %v", err)
	}

	if info.LibraryPath != lib || info.Version != "1.23.1" {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestDetectRuntime_MissingConfiguredPath(t *testing.T) {
	_, err := DetectRuntime(filepath.Join(t.TempDir(), "nope.so"))
	if err == nil {
		t.Fatal("expected error for missing library")
	}

	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}

func TestInferVersionFromPath(t *testing.T) {
	if got := inferVersionFromPath("/x/onnxruntime-1.20.1.dll"); got != "1.20.1" {
		t.Fatalf("got %q", got)
	}

	if got := inferVersionFromPath("/x/libonnxruntime.so"); got != "" {
		t.Fatalf("got %q; want empty", got)
	}
}
