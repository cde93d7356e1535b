package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gekko3d/boids"
	"github.com/gekko3d/boids/swarmrt/rt/app"
	"github.com/gekko3d/boids/swarmrt/rt/config"
	"github.com/gekko3d/boids/swarmrt/rt/device"
	"github.com/gekko3d/boids/swarmrt/rt/gpu"
	"github.com/gekko3d/boids/swarmrt/rt/kernels"
	"github.com/gekko3d/boids/swarmrt/rt/shaders"
	"github.com/gekko3d/boids/swarmrt/rt/viewer"
)

const (
	frameInterval = 16 * time.Millisecond
	statsEvery    = 120
)

func init() {
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "", "YAML config file")
	frames := flag.Int("frames", 600, "frames to run when not viewing")
	view := flag.Bool("view", false, "draw the swarm in the terminal")
	overrides := config.RegisterFlags(flag.CommandLine)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	overrides.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		fatal(err)
	}

	if err := run(cfg, *frames, *view); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "boids: %v\n", err)
	os.Exit(1)
}

func run(cfg config.Config, frames int, view bool) error {
	logger, flush := openLogger(cfg, view, os.Stderr)
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := app.NewMetrics()
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, metrics, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	settings := cfg.Settings()
	sim := app.NewSimulation(app.Options{
		Settings:       settings,
		GroupSize:      cfg.Grid.GroupSize,
		Particles:      cfg.Particles.Count,
		ViewportWidth:  cfg.Viewport.Width,
		ViewportHeight: cfg.Viewport.Height,
		Seed:           cfg.Particles.Seed,
		Backend:        backendFactory(cfg),
		Kernel: device.Kernel{
			Label:      kernels.BoidsName,
			Source:     shaders.Boids(cfg.Grid.GroupSize),
			EntryPoint: shaders.BoidsEntryPoint,
		},
		Prime:   cfg.Prime,
		Logger:  logger,
		Metrics: metrics,
	})
	if err := sim.Initialize(); err != nil {
		return err
	}
	defer sim.Shutdown()

	if view {
		return runViewer(ctx, cfg, sim)
	}
	return runHeadless(ctx, sim, frames, logger)
}

// openLogger picks the run logger. The viewer owns the terminal, so in view
// mode logs go to the configured file or nowhere. When zap cannot be built
// the run continues on a plain text logger writing to stderr.
func openLogger(cfg config.Config, view bool, stderr io.Writer) (boids.Logger, func()) {
	var paths []string
	if cfg.LogFile != "" {
		paths = append(paths, cfg.LogFile)
	} else if view {
		return boids.NewNopLogger(), func() {}
	}

	zl, err := boids.NewZapLogger("boids", cfg.Debug, paths...)
	if err != nil {
		if view {
			return boids.NewNopLogger(), func() {}
		}
		tl := boids.NewTextLogger(stderr, "boids", cfg.Debug)
		tl.Warnf("zap logger unavailable, logging plain text: %v", err)
		return tl, func() {}
	}
	return zl, func() { _ = zl.Sync() }
}

func backendFactory(cfg config.Config) app.BackendFactory {
	if cfg.Backend == config.BackendHost {
		return func() (device.Backend, error) {
			host := device.NewHostBackend()
			host.Register(kernels.BoidsName, kernels.Boids(cfg.Grid.GroupSize, kernels.DefaultParams))
			return host, nil
		}
	}
	return func() (device.Backend, error) {
		return gpu.New()
	}
}

func serveMetrics(addr string, metrics *app.Metrics, logger boids.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("metrics server: %v", err)
		}
	}()
	logger.Infof("serving metrics on %s/metrics", addr)
	return srv
}

func runHeadless(ctx context.Context, sim *app.Simulation, frames int, logger boids.Logger) error {
	clock := boids.NewClock()
	for i := 0; i < frames; i++ {
		select {
		case <-ctx.Done():
			logger.Infof("interrupted after %d frames", sim.Frames())
			return nil
		default:
		}

		if _, err := sim.Step(app.FrameContext{Dt: clock.Tick()}); err != nil {
			return err
		}
		if logger.DebugEnabled() && sim.Frames()%statsEvery == 0 {
			logger.Debugf("frame %d\n%s", sim.Frames(), sim.Profiler())
		}
	}
	logger.Infof("ran %d frames", sim.Frames())
	return nil
}

func runViewer(ctx context.Context, cfg config.Config, sim *app.Simulation) error {
	v, err := viewer.Open(cfg.Viewport.Width, cfg.Viewport.Height)
	if err != nil {
		return err
	}
	defer v.Close()
	v.Start()

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	clock := boids.NewClock()
	for !v.Quit() {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		v.Poll()
		instances, err := sim.Step(app.FrameContext{Dt: clock.Tick(), Pointer: v.Pointer()})
		if err != nil {
			return err
		}
		v.Draw(instances)
	}
	return nil
}
