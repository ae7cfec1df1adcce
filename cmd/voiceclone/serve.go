package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/go-voice-clone/internal/server"
	"github.com/example/go-voice-clone/internal/tts"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the voice cloning HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			logger := slog.Default()

			handle, svc, err := buildService(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = handle.Close() }()

			voices, err := tts.LoadVoiceLibrary(cfg.Paths.VoicesManifest)
			if err != nil {
				return err
			}
			logger.Info("voice library loaded",
				slog.String("manifest", cfg.Paths.VoicesManifest),
				slog.Int("voices", len(voices.Voices())),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			warmup(ctx, svc, logger)

			srv := server.New(cfg, svc, voices,
				server.WithLogger(logger),
				server.WithModelStatus(handle),
			)

			logger.Info("listening", slog.String("addr", cfg.Server.ListenAddr))
			return srv.Start(ctx)
		},
	}
}

// warmup loads the model before the first request. A failure is logged and
// the server keeps running; requests retry the load.
func warmup(ctx context.Context, svc *tts.Service, logger *slog.Logger) {
	if err := svc.Warmup(ctx); err != nil {
		logger.Log(ctx, levelCritical, "model failed to load; requests will retry",
			slog.String("error", err.Error()))
		return
	}
	logger.Info("model ready")
}
