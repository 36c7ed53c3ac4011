package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ianfigueroa/Titan/internal/app"
	"github.com/ianfigueroa/Titan/internal/domain"
	"github.com/ianfigueroa/Titan/internal/engine"
	"github.com/ianfigueroa/Titan/internal/event"
	"github.com/ianfigueroa/Titan/internal/feed"
	"github.com/ianfigueroa/Titan/internal/orderbook"
	"github.com/ianfigueroa/Titan/internal/output"
	"github.com/ianfigueroa/Titan/internal/queue"
	"github.com/ianfigueroa/Titan/internal/trade"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to YAML configuration file")
	symbol := flag.String("symbol", "", "trading symbol override (e.g. btcusdt)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("titan v%s\nMarket data engine for Binance Futures\n", version)
		return
	}

	// Bootstrapping: config, logger, recording DB.
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	cfg := bootstrap.Config

	// CLI overrides beat everything else.
	if *symbol != "" {
		cfg.Network.Symbol = *symbol
	}

	slog.Info("Starting titan",
		slog.String("symbol", cfg.SymbolLower()),
		slog.String("ws", cfg.Network.WSHost+":"+cfg.Network.WSPort),
		slog.String("rest", cfg.Network.RESTHost+":"+cfg.Network.RESTPort),
		slog.Uint64("queue", cfg.Engine.QueueCapacity))

	// Graceful shutdown on interrupt or termination.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The ring between the feed goroutine and the engine goroutine.
	ring, err := queue.NewSpscRing[event.Message](cfg.Engine.QueueCapacity)
	if err != nil {
		slog.Error("Invalid queue capacity", slog.Any("error", err))
		os.Exit(1)
	}

	// Broadcast endpoint: a bind failure is fatal.
	hub := output.NewHub(cfg.Output.ServerPort)
	if err := hub.Start(); err != nil {
		slog.Error("Failed to start broadcast endpoint", slog.Any("error", err))
		os.Exit(1)
	}

	sinks := []domain.Sink{
		output.NewConsole(cfg.ConsoleInterval()),
		output.NewBroadcastSink(hub),
	}
	if bootstrap.Recorder != nil {
		sinks = append(sinks, bootstrap.Recorder)
	}

	coordinator := feed.NewCoordinator(cfg, feed.NewWSStream(), feed.NewRESTClient(), ring)

	eng := engine.New(
		ring,
		orderbook.New(cfg.Output.ImbalanceLevels),
		trade.NewFlow(cfg.Engine.VWAPWindow, cfg.Engine.LargeTradeStdDevs),
		coordinator,
		cfg.ConsoleInterval(),
		sinks...,
	)

	g, runCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		coordinator.Run(runCtx)
		return nil
	})

	g.Go(func() error {
		// The engine exits on the Shutdown message the coordinator pushes
		// when its context ends, so it drains the ring before stopping.
		eng.Run(context.Background())
		return nil
	})

	if bootstrap.Recorder != nil {
		g.Go(func() error {
			bootstrap.Recorder.Run(runCtx)
			return nil
		})
	}

	slog.Info("titan operational, press Ctrl+C to exit")

	<-ctx.Done()
	slog.Info("Shutting down gracefully")

	_ = g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	hub.Stop(shutdownCtx)

	slog.Info("Shutdown complete")
}
