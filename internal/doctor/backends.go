package doctor

import (
	"context"
	"fmt"

	pockettts "github.com/MeKo-Christian/go-call-pocket-tts"

	"github.com/example/go-voice-clone/internal/config"
	"github.com/example/go-voice-clone/internal/onnx"
	"github.com/example/go-voice-clone/internal/remote"
)

// BackendChecks returns the prerequisite checks for the backend selected in
// cfg.
func BackendChecks(ctx context.Context, cfg config.Config) ([]Check, error) {
	backend, err := config.NormalizeBackend(cfg.TTS.Backend)
	if err != nil {
		return nil, err
	}

	switch backend {
	case config.BackendCLI:
		return []Check{{
			Name: "pocket-tts binary",
			Run: func() (string, error) {
				exe := cfg.TTS.CLIPath
				if exe == "" {
					exe = "pocket-tts"
				}
				if err := pockettts.Preflight(cfg.TTS.CLIPath); err != nil {
					return "", err
				}
				return exe, nil
			},
		}}, nil
	case config.BackendRemote:
		return []Check{{
			Name: "inference server",
			Run: func() (string, error) {
				checkCtx, cancel := context.WithTimeout(ctx, remote.HealthTimeout)
				defer cancel()
				h, err := remote.NewClient(cfg.TTS.RemoteURL, remote.HealthTimeout).Health(checkCtx)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("%s %s (%s, %d Hz)", cfg.TTS.RemoteURL, h.Status, h.Device, h.SampleRate), nil
			},
		}}, nil
	default:
		return []Check{
			{
				Name: "onnx runtime",
				Run: func() (string, error) {
					info, err := onnx.DetectRuntime(cfg.Runtime.ORTLibraryPath)
					if err != nil {
						return "", err
					}
					if info.Version != "" {
						return fmt.Sprintf("%s (%s)", info.LibraryPath, info.Version), nil
					}
					return info.LibraryPath, nil
				},
			},
			{
				Name: "model bundle",
				Run: func() (string, error) {
					m, err := onnx.LoadManifest(cfg.Paths.ModelDir)
					if err != nil {
						return "", err
					}
					return fmt.Sprintf("%s (%d files, %d Hz)", cfg.Paths.ModelDir, len(m.Files()), m.SampleRate), nil
				},
			},
		}, nil
	}
}
