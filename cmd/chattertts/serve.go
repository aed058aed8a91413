package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/go-chatter-tts/internal/config"
	"github.com/example/go-chatter-tts/internal/engine"
	"github.com/example/go-chatter-tts/internal/server"
	"github.com/example/go-chatter-tts/internal/tts"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Chatter TTS HTTP server",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			svc, device, err := buildService(cfg)
			if err != nil {
				return err
			}

			srv := server.New(cfg, svc, device).
				WithShutdownTimeout(time.Duration(cfg.Server.ShutdownTimeout) * time.Second)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = srv.Start(ctx)

			// Models live only in memory; eviction on the way out keeps
			// any external runtime's accelerator memory honest.
			svc.ClearCache()
			return err
		},
	}

	defaults := config.DefaultConfig()
	config.RegisterFlags(cmd.Flags(), defaults)

	return cmd
}

// buildService assembles the model cache and dispatcher from config.
func buildService(cfg config.Config) (*tts.Service, string, error) {
	log := slog.Default()

	device, err := config.NormalizeDevice(cfg.Engine.Device)
	if err != nil {
		return nil, "", err
	}

	loader, err := engine.NewLoader(cfg.Engine, log)
	if err != nil {
		return nil, "", err
	}

	cache := tts.NewModelCache(loader, log)
	svc := tts.NewService(cache, tts.ServiceOptions{
		MaxTextChars:    cfg.TTS.MaxTextChars,
		DefaultLanguage: cfg.TTS.DefaultLanguage,
		Serialize:       cfg.TTS.Serialize,
		Logger:          log,
	})

	return svc, engine.ResolveDevice(device), nil
}
