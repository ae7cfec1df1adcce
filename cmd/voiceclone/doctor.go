package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/example/go-voice-clone/internal/config"
	"github.com/example/go-voice-clone/internal/device"
	"github.com/example/go-voice-clone/internal/doctor"
	"github.com/example/go-voice-clone/internal/tts"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run local runtime, backend and voice checks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			backend, err := config.NormalizeBackend(cfg.TTS.Backend)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "backend: %s\n", backend)

			var extra []string

			dev, err := device.Select(cfg.Runtime.Device, detectDevice)
			if err != nil {
				extra = append(extra, fmt.Sprintf("device: %v", err))
				dev = device.CPU
			}

			checks, err := doctor.BackendChecks(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			voiceFiles, err := collectVoiceFiles(cfg)
			if err != nil {
				extra = append(extra, fmt.Sprintf("voice manifest: %v", err))
			}

			result := doctor.Run(doctor.Config{
				Device:        dev,
				Backend:       backend,
				BackendChecks: checks,
				VoiceFiles:    voiceFiles,
			}, out)
			for _, msg := range extra {
				result.AddFailure(msg)
			}

			if result.Failed() {
				slog.Debug("doctor failures", slog.Any("failures", result.Failures()))
				return fmt.Errorf("doctor found %d problem(s)", len(result.Failures()))
			}
			return nil
		},
	}
}

func collectVoiceFiles(cfg config.Config) ([]string, error) {
	lib, err := tts.LoadVoiceLibrary(cfg.Paths.VoicesManifest)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, v := range lib.Voices() {
		p, err := lib.Resolve(v.ID)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}
