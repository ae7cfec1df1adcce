package tts

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/example/go-voice-clone/internal/config"
	"github.com/example/go-voice-clone/internal/model"
	"github.com/example/go-voice-clone/internal/onnx"
	"github.com/example/go-voice-clone/internal/pocketcli"
	"github.com/example/go-voice-clone/internal/remote"
)

// NewLoader returns the model loader for the configured backend.
func NewLoader(cfg config.Config, logger *slog.Logger) (model.Loader, error) {
	backend, err := config.NormalizeBackend(cfg.TTS.Backend)
	if err != nil {
		return nil, err
	}

	switch backend {
	case config.BackendONNX:
		return onnx.Loader(onnx.Options{
			ModelDir:       cfg.Paths.ModelDir,
			ORTLibraryPath: cfg.Runtime.ORTLibraryPath,
			ORTAPIVersion:  uint32(cfg.Runtime.ORTAPIVersion),
			Logger:         logger,
		}), nil
	case config.BackendCLI:
		return pocketcli.Loader(pocketcli.Options{
			ExecutablePath: cfg.TTS.CLIPath,
			Voice:          cfg.TTS.CLIVoice,
			LogWriter:      os.Stderr,
			Logger:         logger,
		}), nil
	case config.BackendRemote:
		return remote.Loader(remote.Options{
			BaseURL: cfg.TTS.RemoteURL,
			Timeout: time.Duration(cfg.TTS.RemoteTimeout) * time.Second,
			Logger:  logger,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported backend %q", backend)
	}
}
