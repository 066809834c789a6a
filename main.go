package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rrt-planner/config"
	"rrt-planner/logging"
	"rrt-planner/render"
	"rrt-planner/rrt"
	"rrt-planner/server"
	"rrt-planner/session"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	addr := flag.String("addr", "", "listen address (overrides server.addr)")
	headless := flag.Bool("headless", false, "grow one tree to completion, write it out and exit")
	out := flag.String("out", "rrt", "output file prefix for headless mode")
	seed := flag.Int64("seed", 0, "random seed (overrides planner.seed)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *seed != 0 {
		cfg.Planner.Seed = *seed
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *headless {
		err = runHeadless(ctx, cfg, logger, *out)
	} else {
		err = serve(ctx, cfg, logger)
	}
	if err != nil {
		logger.Fatal("❌ exiting", zap.Error(err))
	}
}

func serve(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	registry := session.NewRegistry(cfg, logger)
	defer registry.Close()

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.New(registry, cfg, logger).Handler(),
	}

	logger.Info("🚀 RRT planner server starting",
		zap.String("addr", cfg.Server.Addr),
		zap.Float64("step_size", cfg.Planner.StepSize),
		zap.Float64("goal_threshold", cfg.Planner.GoalThreshold),
		zap.Int("frame_rate", cfg.Frames.Rate))
	logger.Info("endpoints",
		zap.Strings("routes", []string{
			"POST /plans",
			"GET  /plans",
			"GET  /plans/{id}",
			"DELETE /plans/{id}",
			"GET  /plans/{id}/lines",
			"GET  /plans/{id}/geojson",
			"GET  /plans/{id}/region",
			"GET  /plans/{id}/image.png",
			"GET  /plans/{id}/stream",
			"GET  /health",
		}))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// runHeadless ticks one session as fast as possible until the goal is reached
// or the iteration budget runs out, then writes <out>.png and <out>.geojson.
func runHeadless(ctx context.Context, cfg config.Config, logger *zap.Logger, out string) error {
	registry := session.NewRegistry(cfg, logger)
	sess, err := registry.Prepare(session.Params{})
	if err != nil {
		return err
	}

	start := time.Now()
	frame := sess.Frame()
	logger.Info("🌱 growing tree",
		zap.String("plan_id", sess.ID),
		zap.Float64("start_x", frame.Start.X),
		zap.Float64("start_y", frame.Start.Y),
		zap.Float64("goal_x", frame.Goal.X),
		zap.Float64("goal_y", frame.Goal.Y))

	for frame.State != rrt.Reached.String() && frame.State != session.StateHalted {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame = sess.Tick()
	}

	if frame.Reached {
		fmt.Println("Goal Reached!")
	}
	logger.Info("✅ tree finished",
		zap.String("state", frame.State),
		zap.Int("nodes", len(frame.Nodes)),
		zap.Int("iterations", frame.Iterations),
		zap.Int("path_len", len(frame.Path)),
		zap.Duration("elapsed", time.Since(start)))

	if err := writeFrame(frame, cfg, out); err != nil {
		return err
	}
	logger.Info("💾 frame written", zap.String("png", out+".png"), zap.String("geojson", out+".geojson"))
	return nil
}

func writeFrame(frame session.Frame, cfg config.Config, out string) error {
	f, err := os.Create(out + ".png")
	if err != nil {
		return fmt.Errorf("failed to create image: %w", err)
	}
	defer f.Close()
	if err := render.NewRaster(server.StyleFromConfig(cfg.Render)).WritePNG(f, frame.Scene()); err != nil {
		return err
	}

	data, err := json.MarshalIndent(render.GeoJSON(frame.Scene()), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal geojson: %w", err)
	}
	if err := os.WriteFile(out+".geojson", data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
