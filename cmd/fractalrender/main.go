// Command fractalrender renders a preset headlessly with the bucket renderer and writes a PNG with a JSON sidecar.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Carmen-Shannon/oxy-fractal/common"
	"github.com/Carmen-Shannon/oxy-fractal/engine"
	"github.com/Carmen-Shannon/oxy-fractal/engine/bucket"
	"github.com/Carmen-Shannon/oxy-fractal/engine/preset"
	"github.com/Carmen-Shannon/oxy-fractal/engine/settings"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		settingsPath = flag.String("settings", "", "settings file (YAML)")
		presetPath   = flag.String("preset", "", "preset file (JSON)")
		backend      = flag.String("backend", "", "renderer backend: wgpu or software")
		width        = flag.Int("width", 0, "canvas width before upscaling")
		height       = flag.Int("height", 0, "canvas height before upscaling")
		upscale      = flag.Int("upscale", 0, "export upscale factor")
		tile         = flag.Int("tile", 0, "tile edge length in output pixels")
		maxSamples   = flag.Uint("max-samples", 0, "sample limit per tile")
		exposure     = flag.Float64("exposure", 0, "exposure applied to the PNG")
		output       = flag.String("out", "render.png", "output PNG path")
		metricsAddr  = flag.String("metrics", "", "serve Prometheus metrics on this address while rendering, e.g. :9100")
		timeout      = flag.Duration("timeout", 0, "abort the render after this long, 0 for no limit")
	)
	flag.Parse()

	s, err := settings.Load(*settingsPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *settingsPath == "" {
		s.Backend = "software"
	}
	s.Backend = common.Coalesce(*backend, s.Backend)
	s.Width = common.Coalesce(*width, s.Width)
	s.Height = common.Coalesce(*height, s.Height)
	s.Bucket.Upscale = common.Coalesce(*upscale, s.Bucket.Upscale)
	s.Bucket.TileSize = common.Coalesce(*tile, s.Bucket.TileSize)
	s.Bucket.MaxSamplesPerTile = common.Coalesce(*maxSamples, s.Bucket.MaxSamplesPerTile)
	s.Exposure = common.Coalesce(float32(*exposure), s.Exposure)
	s.Preset = common.Coalesce(*presetPath, s.Preset)
	// headless renders never present
	s.VSync = false
	s.FrameLimit = 0

	logger, err := s.Logger("fractalrender")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()
	common.SetLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	if err := run(ctx, s, *output, *metricsAddr, logger); err != nil {
		logger.Error("render failed", zap.Error(err))
		os.Exit(1)
	}
}

// run renders s into output, serving metrics alongside when metricsAddr is set.
func run(ctx context.Context, s settings.Settings, output, metricsAddr string, logger *zap.Logger) error {
	opts, err := s.EngineOptions()
	if err != nil {
		return err
	}
	if s.Preset != "" {
		p, err := preset.Load(s.Preset)
		if err != nil {
			return err
		}
		opts = append(opts, engine.WithPreset(p))
	}
	opts = append(opts, engine.WithLogger(logger))

	eng, err := engine.NewEngine(opts...)
	if err != nil {
		return errors.Wrap(err, "create engine")
	}
	defer eng.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if metricsAddr != "" {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           metricsMux(eng),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("serving metrics", zap.String("addr", metricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "metrics server")
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer cancel()
		res, err := render(ctx, eng, s, logger)
		if err != nil {
			return err
		}
		side, err := res.Save(output, s.Exposure)
		if err != nil {
			return err
		}
		logger.Info("render written",
			zap.String("image", output),
			zap.String("sidecar", side),
			zap.Int("width", res.Width),
			zap.Int("height", res.Height),
			zap.Uint64("samples", res.Samples),
			zap.Duration("elapsed", res.Elapsed),
		)
		return nil
	})

	return g.Wait()
}

func metricsMux(eng engine.Engine) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(eng.Profiler().Registry(), promhttp.HandlerOpts{}))
	return mux
}

// render waits for the first program, runs one export job and returns its result.
func render(ctx context.Context, eng engine.Engine, s settings.Settings, logger *zap.Logger) (*bucket.Result, error) {
	var (
		result     *bucket.Result
		compileErr error
		progress   float32
	)
	eng.SetEventListener(func(ev engine.Event) {
		switch ev := ev.(type) {
		case engine.CompileFailed:
			compileErr = ev.Err
		case engine.CompileTime:
			logger.Info("program compiled", zap.Float64("seconds", ev.Seconds))
		case engine.BucketProgress:
			if ev.Percent-progress >= 10 || ev.Percent >= 100 {
				progress = ev.Percent
				logger.Info("bucket progress", zap.Float32("percent", ev.Percent))
			}
		case engine.BucketDone:
			result = ev.Result
		}
	})
	defer eng.SetEventListener(nil)

	if cmd := s.SampleCapCommand(); cmd != nil {
		if err := eng.Submit(cmd); err != nil {
			return nil, err
		}
	}

	last := time.Now()
	tick := func() error {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "render aborted")
		}
		now := time.Now()
		eng.Tick(now.Sub(last).Seconds())
		last = now
		return nil
	}

	for {
		if err := tick(); err != nil {
			return nil, err
		}
		if compileErr != nil {
			return nil, errors.Wrap(compileErr, "compile program")
		}
		if st := eng.Stats(); st.Program != "" && !st.Compiling {
			break
		}
	}

	err := eng.Submit(engine.StartBucket{
		Export:   true,
		Config:   s.Bucket,
		Metadata: map[string]string{"tool": "fractalrender", "preset": s.Preset},
	})
	if err != nil {
		return nil, err
	}
	if err := tick(); err != nil {
		return nil, err
	}
	if result == nil && !eng.Stats().BucketActive {
		return nil, errors.New("export job did not start")
	}

	for result == nil {
		if err := tick(); err != nil {
			_ = eng.Submit(engine.StopBucket{})
			eng.Tick(0)
			return nil, err
		}
	}
	return result, nil
}
