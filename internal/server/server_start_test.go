package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/example/go-voice-clone/internal/config"
	"github.com/example/go-voice-clone/internal/tts"
)

type nopGenerator struct{}

func (nopGenerator) Generate(context.Context, tts.GenerationRequest) (tts.GenerationResult, error) {
	return tts.GenerationResult{SampleRate: 24000, Samples: []float32{0}}, nil
}

type emptyVoices struct{}

func (emptyVoices) Voices() []tts.Voice { return nil }
func (emptyVoices) Resolve(id string) (string, error) {
	return "", fmt.Errorf("%w %q", tts.ErrUnknownVoice, id)
}

func freeAddr(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestStart_LifecycleHealthAndShutdown(t *testing.T) {
	addr := freeAddr(t)

	cfg := config.DefaultConfig()
	cfg.Server.ListenAddr = addr

	s := New(cfg, nopGenerator{}, emptyVoices{}).WithShutdownTimeout(2 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)

	go func() {
		errCh <- s.Start(ctx)
	}()

	probeCtx, probeCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer probeCancel()

	var err error
	for range 50 {
		err = ProbeHTTP(probeCtx, addr)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server never became ready: %v", err)
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s/health", addr))
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode /health: %v", err)
	}

	if body["status"] != "ok" {
		t.Errorf("status = %v; want ok", body["status"])
	}

	// Graceful shutdown.
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Start() returned error on shutdown: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestStart_ListenErrorIsReturned(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	cfg := config.DefaultConfig()
	cfg.Server.ListenAddr = ln.Addr().String()

	err = New(cfg, nopGenerator{}, emptyVoices{}).Start(context.Background())
	if err == nil {
		t.Fatal("Start() = nil; want listen error for occupied port")
	}
}

func TestProbeHTTP_Non200IsError(t *testing.T) {
	addr := freeAddr(t)
	err := ProbeHTTP(context.Background(), "http://"+addr)
	if err == nil {
		t.Fatal("ProbeHTTP() = nil; want error when nothing listens")
	}
}
