package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"powercable/internal/bus"
	"powercable/internal/consumer"
	"powercable/internal/history"
	"powercable/internal/supervisor"
	"powercable/internal/tickgen"
	"powercable/internal/turbine"
	"powercable/internal/ws"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	frontendDir := flag.String("frontend-dir", "frontend/build", "directory containing frontend build")
	chargers := flag.Int("chargers", 5, "number of chargers")
	turbines := flag.Int("turbines", 3, "number of turbines")
	vehicles := flag.Int("vehicles", 10, "number of vehicles")
	speed := flag.Float64("speed", 10, "seconds per phase")
	slpPath := flag.String("slp", "", "standard load profile CSV (time,H0,G0,L0); synthetic shapes when empty")
	curvePath := flag.String("curve-cache", "powercable.db", "sqlite file caching turbine power curves; empty disables")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(*addr, *frontendDir, *chargers, *turbines, *vehicles, *speed, *slpPath, *curvePath); err != nil {
		slog.Error("powercable exited", "error", err)
		os.Exit(1)
	}
}

func run(addr, frontendDir string, chargers, turbines, vehicles int, speed float64, slpPath, curvePath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := bus.New()

	var cache *turbine.CurveCache
	if curvePath != "" {
		var err error
		cache, err = turbine.OpenCurveCache(curvePath)
		if err != nil {
			return fmt.Errorf("opening curve cache: %w", err)
		}
		defer cache.Close()
	}

	timelines, err := loadTimelines(slpPath)
	if err != nil {
		return err
	}

	clock, err := tickgen.New(b, tickgen.Config{Speed: speed})
	if err != nil {
		return fmt.Errorf("building tick generator: %w", err)
	}

	sup := supervisor.New(b, supervisor.Config{
		Chargers:   chargers,
		Turbines:   turbines,
		Vehicles:   vehicles,
		CurveCache: cache,
		Timelines:  timelines,
	})

	hub := ws.NewHub()
	bridge := ws.NewBridge(hub, b)
	handler := ws.NewHandler(hub, b)

	charts := history.New(0)
	recorder := history.NewRecorder(b, charts)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.Handle("/ws", handler)
	mux.Handle("GET /api/history", history.Handler(charts))
	if _, err := os.Stat(frontendDir); err == nil {
		slog.Info("serving frontend", "dir", frontendDir)
		mux.Handle("/", http.FileServer(http.Dir(frontendDir)))
	}
	server := &http.Server{Addr: addr, Handler: mux}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return clock.Run(ctx) })
	g.Go(func() error { return sup.Run(ctx) })
	g.Go(func() error { return bridge.Run(ctx) })
	g.Go(func() error { return recorder.Run(ctx) })
	g.Go(func() error {
		slog.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// loadTimelines parses the optional SLP CSV once per profile class.
func loadTimelines(path string) (map[consumer.Profile]consumer.Timeline, error) {
	if path == "" {
		return nil, nil
	}

	timelines := make(map[consumer.Profile]consumer.Timeline)
	for _, profile := range []consumer.Profile{
		consumer.ProfileHousehold,
		consumer.ProfileCommercial,
		consumer.ProfileAgriculture,
	} {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening SLP file: %w", err)
		}
		timeline, err := consumer.NewSLPParser(profile).Parse(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("parsing SLP profile %s: %w", profile, err)
		}
		timelines[profile] = timeline
		slog.Info("loaded load profile", "profile", profile)
	}
	return timelines, nil
}
