// Command fractalview opens an interactive window that progressively raymarches a fractal preset.
//
// Controls:
//
//	W/A/S/D, Q/E   move forward/left/back/right, down/up
//	left drag      look around
//	right drag     orbit the point under the cursor
//	scroll         zoom
//	1-7            select formula
//	P              toggle direct / path traced
//	H              hold accumulation
//	R              reset accumulation
//	B              refine the view tile by tile
//	X              export the view at the configured upscale
//	F              save the current preset
//	Backspace      stop a running bucket job
//	Esc            quit
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Carmen-Shannon/oxy-fractal/common"
	"github.com/Carmen-Shannon/oxy-fractal/engine"
	"github.com/Carmen-Shannon/oxy-fractal/engine/preset"
	"github.com/Carmen-Shannon/oxy-fractal/engine/settings"
	"github.com/Carmen-Shannon/oxy-fractal/engine/window"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func main() {
	var (
		settingsPath = flag.String("settings", "", "settings file (YAML)")
		presetPath   = flag.String("preset", "", "preset file (JSON), overrides the settings file")
		backend      = flag.String("backend", "", "renderer backend: wgpu or software")
		watch        = flag.Bool("watch", false, "reload the preset when the file changes")
		outDir       = flag.String("out", "renders", "directory for exported images and saved presets")
		profile      = flag.Bool("profile", false, "log frame rate and memory every second")
	)
	flag.Parse()

	s, err := settings.Load(*settingsPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	s.Backend = common.Coalesce(*backend, s.Backend)
	s.Preset = common.Coalesce(*presetPath, s.Preset)
	if *watch {
		s.WatchPreset = true
	}
	if *profile {
		s.Profile = true
	}

	logger, err := s.Logger("fractalview")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()
	common.SetLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, s, *outDir, logger); err != nil {
		logger.Error("viewer failed", zap.Error(err))
		os.Exit(1)
	}
}

// run opens the window and blocks in the message loop until the window closes or ctx is cancelled.
func run(ctx context.Context, s settings.Settings, outDir string, logger *zap.Logger) error {
	opts, err := s.EngineOptions()
	if err != nil {
		return err
	}

	win, err := window.NewWindow(
		window.WithTitle("oxy-fractal"),
		window.WithSize(s.Width, s.Height),
	)
	if err != nil {
		return err
	}
	opts = append(opts, engine.WithWindow(win), engine.WithLogger(logger))

	if s.Preset != "" {
		p, err := preset.Load(s.Preset)
		if err != nil {
			_ = win.Close()
			return err
		}
		opts = append(opts, engine.WithPreset(p))
	}

	eng, err := engine.NewEngine(opts...)
	if err != nil {
		_ = win.Close()
		return errors.Wrap(err, "create engine")
	}
	defer eng.Release()

	if cmd := s.SampleCapCommand(); cmd != nil {
		_ = eng.Submit(cmd)
	}

	v := newViewer(eng, win, s, outDir, logger)
	eng.SetEventListener(v.onEvent)
	eng.SetTickCallback(v.onTick)
	win.SetKeyCallback(v.onKey)
	win.SetMouseButtonCallback(v.onMouseButton)

	if s.WatchPreset && s.Preset != "" {
		w, err := preset.NewWatcher(s.Preset, func(p *preset.Preset) {
			if err := eng.Submit(engine.LoadPreset{Preset: p}); err != nil {
				logger.Warn("preset reload dropped", zap.Error(err))
			}
		})
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = w.Stop() }()
	}

	logger.Info("viewer started", zap.String("renderer", eng.Renderer().Name()), zap.String("out", outDir))
	eng.Run(ctx)
	return nil
}

// exportPath returns a timestamped file path under outDir.
func exportPath(outDir, prefix, ext string, now time.Time) string {
	return filepath.Join(outDir, fmt.Sprintf("%s-%s%s", prefix, now.Format("20060102-150405.000"), ext))
}
