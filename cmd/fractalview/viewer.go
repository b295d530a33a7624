package main

import (
	"fmt"
	"time"

	"github.com/Carmen-Shannon/oxy-fractal/common"
	"github.com/Carmen-Shannon/oxy-fractal/engine"
	"github.com/Carmen-Shannon/oxy-fractal/engine/formula"
	"github.com/Carmen-Shannon/oxy-fractal/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-fractal/engine/settings"
	"github.com/Carmen-Shannon/oxy-fractal/engine/shaderconfig"
	"github.com/Carmen-Shannon/oxy-fractal/engine/window"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

const (
	// moveRate is the number of controller steps per second at unit distance from the surface.
	moveRate = 20
	// lookRate is radians per dragged pixel.
	lookRate = 0.004
	// zoomRate scales scroll steps by the distance to the surface.
	zoomRate = 2
	// titleInterval throttles title bar updates.
	titleInterval = 250 * time.Millisecond
)

// viewer maps window input to engine commands and reports engine state in the title bar.
type viewer struct {
	eng    engine.Engine
	win    window.Window
	s      settings.Settings
	outDir string
	logger *zap.Logger

	distance   float32
	orbiting   bool
	orbitPivot mgl32.Vec3

	compiling    string
	bucketActive bool
	bucketPct    float32

	frames    int
	lastTitle time.Time
}

func newViewer(eng engine.Engine, win window.Window, s settings.Settings, outDir string, logger *zap.Logger) *viewer {
	return &viewer{
		eng:       eng,
		win:       win,
		s:         s,
		outDir:    outDir,
		logger:    logger,
		distance:  1,
		lastTitle: time.Now(),
	}
}

func (v *viewer) submit(cmd engine.Command) {
	if err := v.eng.Submit(cmd); err != nil {
		v.logger.Debug("input dropped", zap.Error(err))
	}
}

// surfaceScale bounds the centre distance so movement neither stalls near the surface nor explodes far away.
func surfaceScale(d float32) float32 {
	return min(max(d, 1e-5), 10)
}

// onTick polls held input once per frame.
func (v *viewer) onTick(dt float64) {
	v.frames++
	w, h := v.win.Width(), v.win.Height()
	if d, ok := v.eng.MeasureDistanceAtScreenPoint(float32(w)/2, float32(h)/2); ok {
		v.distance = d
	}
	scale := surfaceScale(v.distance)

	in := v.win.Input()
	step := scale * float32(dt) * moveRate
	right := in.Axis(common.KeyA, common.KeyD)
	up := in.Axis(common.KeyQ, common.KeyE)
	forward := in.Axis(common.KeyS, common.KeyW)
	if right != 0 || up != 0 || forward != 0 {
		v.submit(engine.CameraMove{Right: right * step, Up: up * step, Forward: forward * step})
	}

	dx, dy, scroll := in.Consume()
	if dx != 0 || dy != 0 {
		switch {
		case v.orbiting && in.Held(common.MouseButtonRight):
			v.submit(engine.CameraOrbit{Pivot: v.orbitPivot, Azimuth: -dx * lookRate, Elevation: -dy * lookRate})
		case in.Held(common.MouseButtonLeft):
			v.submit(engine.CameraMove{Yaw: -dx * lookRate, Pitch: -dy * lookRate})
		}
	}
	if scroll != 0 {
		v.submit(engine.CameraZoom{Delta: scroll * scale * zoomRate})
	}

	if now := time.Now(); now.Sub(v.lastTitle) >= titleInterval {
		fps := float64(v.frames) / now.Sub(v.lastTitle).Seconds()
		v.frames = 0
		v.lastTitle = now
		v.win.SetTitle(v.title(fps))
	}
}

func (v *viewer) title(fps float64) string {
	st := v.eng.Stats()
	m := v.eng.Manager()
	t := fmt.Sprintf("oxy-fractal | %s %s | %d spp | %.0f fps", m.Formula(), m.Mode(), st.Samples, fps)
	switch {
	case v.compiling != "":
		t += " | " + v.compiling
	case v.bucketActive:
		t += fmt.Sprintf(" | bucket %.0f%%", v.bucketPct)
	case st.Holding:
		t += " | held"
	}
	return t
}

// onMouseButton anchors orbiting at the surface point under the cursor.
func (v *viewer) onMouseButton(button int, pressed bool, x, y float32) {
	if button != common.MouseButtonRight {
		return
	}
	v.orbiting = false
	if !pressed {
		return
	}
	world, ok := v.eng.PickWorldPosition(x, y)
	if !ok {
		return
	}
	offset := v.eng.Space().Offset()
	v.orbitPivot = mgl32.Vec3{
		float32(world[0] - offset[0]),
		float32(world[1] - offset[1]),
		float32(world[2] - offset[2]),
	}
	v.orbiting = true
}

func (v *viewer) onKey(key uint32, pressed bool) {
	if !pressed {
		return
	}
	if key >= common.Key1 && key <= common.Key7 {
		kinds := formula.Kinds()
		if i := int(key - common.Key1); i < len(kinds) {
			v.submit(engine.SetUniform{Feature: shaderconfig.FeatureFormula, Name: shaderconfig.ParamFormulaType, Value: kinds[i].String()})
		}
		return
	}

	switch key {
	case common.KeyP:
		next := shader.RenderModePathTraced
		if v.eng.Manager().Mode() == shader.RenderModePathTraced {
			next = shader.RenderModeDirect
		}
		v.submit(engine.SetUniform{Feature: shaderconfig.FeatureRender, Name: shaderconfig.ParamRenderMode, Value: next.String()})
	case common.KeyH:
		v.submit(engine.SetHolding{Hold: !v.eng.Stats().Holding})
	case common.KeyR:
		v.submit(engine.ResetAccum{})
	case common.KeySpace:
		v.submit(engine.CameraAbsorb{})
	case common.KeyB:
		v.submit(engine.StartBucket{Config: v.s.Bucket, Metadata: map[string]string{"tool": "fractalview"}})
	case common.KeyX:
		v.submit(engine.StartBucket{Export: true, Config: v.s.Bucket, Metadata: map[string]string{"tool": "fractalview"}})
	case common.KeyBackspace:
		v.submit(engine.StopBucket{})
	case common.KeyF:
		path := exportPath(v.outDir, "preset", ".json", time.Now())
		if err := v.eng.Preset().Save(path); err != nil {
			v.logger.Error("save preset", zap.Error(err))
			return
		}
		v.logger.Info("preset saved", zap.String("path", path))
	}
}

func (v *viewer) onEvent(ev engine.Event) {
	switch ev := ev.(type) {
	case engine.IsCompiling:
		v.compiling = ev.Message
	case engine.CompileTime:
		v.logger.Info("program compiled", zap.Float64("seconds", ev.Seconds))
	case engine.CompileFailed:
		v.logger.Error("compile failed, keeping the previous program", zap.Error(ev.Err))
	case engine.BucketStatus:
		v.bucketActive = ev.Active
		v.bucketPct = 0
	case engine.BucketProgress:
		v.bucketPct = ev.Percent
	case engine.BucketDone:
		if !ev.Result.Export {
			v.logger.Info("refine finished", zap.Duration("elapsed", ev.Result.Elapsed))
			return
		}
		path := exportPath(v.outDir, "export", ".png", time.Now())
		side, err := ev.Result.Save(path, v.s.Exposure)
		if err != nil {
			v.logger.Error("save export", zap.Error(err))
			return
		}
		v.logger.Info("export saved", zap.String("image", path), zap.String("sidecar", side))
	}
}
