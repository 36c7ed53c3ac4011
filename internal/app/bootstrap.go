// Package app orchestrates startup: configuration, logging, recording.
package app

import (
	"log/slog"

	"github.com/ianfigueroa/Titan/internal/infra"
	"github.com/ianfigueroa/Titan/internal/storage"
)

// Bootstrap performs the application startup sequence.
type Bootstrap struct {
	Config   *infra.Config
	Recorder *storage.Recorder
}

// NewBootstrap creates a new Bootstrap instance.
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration, installs the logger and opens the
// recording database. Errors here are fatal; main decides the exit code.
func (b *Bootstrap) Initialize(configPath string) error {
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}
	b.Config = cfg

	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	if cfg.Recording.Enabled {
		rec, err := storage.NewRecorder(cfg.Recording.Path)
		if err != nil {
			return err
		}
		b.Recorder = rec
		slog.Info("Recording database ready", slog.String("path", cfg.Recording.Path))
	}

	return nil
}
