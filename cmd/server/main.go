package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/edsabi/AISubBrawl/internal/config"
	appnet "github.com/edsabi/AISubBrawl/internal/net"
	"github.com/edsabi/AISubBrawl/internal/sim"
	"github.com/edsabi/AISubBrawl/internal/store"
	"github.com/edsabi/AISubBrawl/internal/telemetry"
)

func main() {
	configDir := flag.String("config-dir", ".", "directory containing game_config.json")
	listen := flag.String("listen", "", "listen address override")
	flag.Parse()

	if err := run(*configDir, *listen); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configDir, listenOverride string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}
	if listenOverride != "" {
		cfg.Listen = listenOverride
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()

	st, err := store.Open(cfg.Database, log)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	counters := telemetry.NewCounters()
	hub := appnet.NewHub(log)
	world := sim.NewWorld(cfg, rand.New(rand.NewSource(time.Now().UnixNano())))
	engine := sim.NewEngine(world, cfg, sim.EngineOptions{
		Dispatcher: hub,
		Persister:  st,
		Counters:   counters,
		Logger:     log,
	})

	stop := make(chan struct{})
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		engine.Run(stop)
	}()

	handler := appnet.NewHandler(world, st, hub, counters, cfg, log)
	server := &http.Server{
		Addr:        cfg.Listen,
		Handler:     handler.Routes(),
		ReadTimeout: 15 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Listen).Int("tick_hz", cfg.TickHz).Msg("server listening")
		serveErr <- server.ListenAndServe()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		close(stop)
		<-loopDone
		return err
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("shutting down")
	}

	close(stop)
	<-loopDone

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info().Uint64("ticks", counters.Snapshot().Ticks).Msg("stopped")
	return nil
}
