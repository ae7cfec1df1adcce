package main

import (
	"fmt"
	"log/slog"

	"github.com/example/go-voice-clone/internal/config"
	"github.com/example/go-voice-clone/internal/device"
	"github.com/example/go-voice-clone/internal/model"
	"github.com/example/go-voice-clone/internal/tts"
)

// newLoader and detectDevice are replaced in tests.
var (
	newLoader                 = tts.NewLoader
	detectDevice device.Probe = device.DetectCUDA
)

// buildService selects the compute device once and wires the lazy model
// handle behind a generation service.
func buildService(cfg config.Config, logger *slog.Logger) (*model.Handle, *tts.Service, error) {
	dev, err := device.Select(cfg.Runtime.Device, detectDevice)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("compute device selected", slog.String("device", dev.String()))

	load, err := newLoader(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("configure backend: %w", err)
	}

	handle := model.NewHandle(load, dev, model.WithLogger(logger))
	return handle, tts.NewService(handle, tts.WithLogger(logger)), nil
}
