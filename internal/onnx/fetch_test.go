package onnx

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func sha256hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// fakeHub serves files under /org/voice/resolve/main/. LFS-style files
// advertise their sha256 via X-Linked-Etag.
type fakeHub struct {
	files map[string][]byte
	lfs   map[string]bool
	token string

	mu   sync.Mutex
	gets map[string]int
}

func (h *fakeHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.token != "" && r.Header.Get("Authorization") != "Bearer "+h.token {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/org/voice/resolve/main/")
	data, ok := h.files[name]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if h.lfs[name] {
		w.Header().Set("X-Linked-Etag", `"`+sha256hex(data)+`"`)
	} else {
		w.Header().Set("Etag", `"abc123"`)
	}

	if r.Method == http.MethodHead {
		return
	}

	h.mu.Lock()
	h.gets[name]++
	h.mu.Unlock()

	_, _ = w.Write(data)
}

func newFakeHub() *fakeHub {
	return &fakeHub{
		files: map[string][]byte{
			ManifestFile:      []byte(`{"graph":"voiceclone.onnx","tokenizer":"tokenizer.model"}`),
			"voiceclone.onnx": []byte("graph bytes"),
			"tokenizer.model": []byte("spm bytes"),
		},
		lfs:  map[string]bool{"voiceclone.onnx": true},
		gets: map[string]int{},
	}
}

func TestFetch_DownloadsBundle(t *testing.T) {
	hub := newFakeHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	out := t.TempDir()
	var log strings.Builder

	err := Fetch(context.Background(), FetchOptions{Repo: "org/voice", OutDir: out, HubURL: srv.URL, Stdout: &log})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	for name, want := range hub.files {
		got, err := os.ReadFile(filepath.Join(out, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}

		if string(got) != string(want) {
			t.Errorf("%s = %q; want %q", name, got, want)
		}
	}

	if _, err := LoadManifest(out); err != nil {
		t.Errorf("fetched bundle does not load: %v", err)
	}

	lock := readLockManifest(filepath.Join(out, lockFile))
	if lock.Files["voiceclone.onnx"].SHA256 != sha256hex(hub.files["voiceclone.onnx"]) {
		t.Errorf("lock = %+v", lock.Files)
	}
}

func TestFetch_SkipsVerifiedFiles(t *testing.T) {
	hub := newFakeHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	out := t.TempDir()
	opts := FetchOptions{Repo: "org/voice", OutDir: out, HubURL: srv.URL}

	if err := Fetch(context.Background(), opts); err != nil {
		t.Fatalf("first Fetch: %v", err)
	}

	if err := Fetch(context.Background(), opts); err != nil {
		t.Fatalf("second Fetch: %v", err)
	}

	for name := range hub.files {
		if hub.gets[name] != 1 {
			t.Errorf("%s downloaded %d times; want 1", name, hub.gets[name])
		}
	}
}

func TestFetch_ChecksumMismatch(t *testing.T) {
	hub := newFakeHub()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "voiceclone.onnx") {
			w.Header().Set("X-Linked-Etag", strings.Repeat("a", 64))
			if r.Method == http.MethodGet {
				_, _ = w.Write([]byte("tampered"))
			}
			return
		}
		hub.ServeHTTP(w, r)
	}))
	defer srv.Close()

	err := Fetch(context.Background(), FetchOptions{Repo: "org/voice", OutDir: t.TempDir(), HubURL: srv.URL})
	if err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Fatalf("expected checksum mismatch, got %v", err)
	}
}

func TestFetch_AccessDenied(t *testing.T) {
	hub := newFakeHub()
	hub.token = "secret"
	srv := httptest.NewServer(hub)
	defer srv.Close()

	err := Fetch(context.Background(), FetchOptions{Repo: "org/voice", OutDir: t.TempDir(), HubURL: srv.URL})

	var denied *AccessDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected AccessDeniedError, got %T: %v", err, err)
	}

	err = Fetch(context.Background(), FetchOptions{Repo: "org/voice", OutDir: t.TempDir(), HubURL: srv.URL, HFToken: "secret"})
	if err != nil {
		t.Fatalf("Fetch with token: %v", err)
	}
}

func TestFetch_RequiredOptions(t *testing.T) {
	if err := Fetch(context.Background(), FetchOptions{OutDir: t.TempDir()}); err == nil {
		t.Error("expected error for empty repo")
	}

	if err := Fetch(context.Background(), FetchOptions{Repo: "org/voice"}); err == nil {
		t.Error("expected error for empty out dir")
	}
}

func TestNormalizeETag(t *testing.T) {
	got := normalizeETag(`W/"58aa704a88faad35f22c34ea1cb55c4c5629de8b8e035c6e4936e2673dc07617"`)
	want := "58aa704a88faad35f22c34ea1cb55c4c5629de8b8e035c6e4936e2673dc07617"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if !isSHA256Hex(got) {
		t.Fatalf("expected valid sha256")
	}
}

func TestExistingMatches(t *testing.T) {
	p := filepath.Join(t.TempDir(), "x.bin")
	if err := os.WriteFile(p, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	ok, err := existingMatches(p, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824")
	if err != nil {
		t.Fatalf("existingMatches error: %v", err)
	}
	if !ok {
		t.Fatal("expected checksum match")
	}

	ok, err = existingMatches(filepath.Join(t.TempDir(), "missing"), "00")
	if err != nil || ok {
		t.Fatalf("missing file = %v, %v; want false, nil", ok, err)
	}
}

func TestFetch_RejectsNamesOutsideOutDir(t *testing.T) {
	for _, name := range []string{"../escaped.onnx", "sub/../../escaped.onnx", "/abs/escaped.onnx"} {
		t.Run(name, func(t *testing.T) {
			hub := newFakeHub()
			hub.files[ManifestFile] = []byte(`{"graph":"` + name + `"}`)
			hub.files[name] = []byte("pwned")
			hub.files["escaped.onnx"] = []byte("pwned")
			srv := httptest.NewServer(hub)
			defer srv.Close()

			parent := t.TempDir()
			out := filepath.Join(parent, "bundle")

			err := Fetch(context.Background(), FetchOptions{Repo: "org/voice", OutDir: out, HubURL: srv.URL})
			if err == nil {
				t.Fatal("Fetch() = nil; want error for bundle file outside the out dir")
			}

			if _, statErr := os.Stat(filepath.Join(parent, "escaped.onnx")); !errors.Is(statErr, os.ErrNotExist) {
				t.Errorf("file written outside OutDir: stat err = %v", statErr)
			}
		})
	}
}
