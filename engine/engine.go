// Package engine ties the progressive raymarching components together. An Engine owns the renderer, the shader
// configuration and its compiler, the accumulation pipeline, the bucket renderer and the camera. All of that state
// is mutated only inside Tick; other goroutines talk to the engine through typed commands.
package engine

import (
	"context"
	"fmt"
	"image"
	"strconv"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-fractal/common"
	"github.com/Carmen-Shannon/oxy-fractal/engine/accumulation"
	"github.com/Carmen-Shannon/oxy-fractal/engine/bucket"
	"github.com/Carmen-Shannon/oxy-fractal/engine/camera"
	"github.com/Carmen-Shannon/oxy-fractal/engine/formula"
	"github.com/Carmen-Shannon/oxy-fractal/engine/preset"
	"github.com/Carmen-Shannon/oxy-fractal/engine/profiler"
	"github.com/Carmen-Shannon/oxy-fractal/engine/renderer"
	"github.com/Carmen-Shannon/oxy-fractal/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-fractal/engine/shaderconfig"
	"github.com/Carmen-Shannon/oxy-fractal/engine/virtualspace"
	"github.com/Carmen-Shannon/oxy-fractal/engine/window"
	"github.com/go-gl/mathgl/mgl32"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// convergenceEvery is the viewport sample interval between convergence measurements.
const convergenceEvery = 16

// ErrQueueFull is returned by Submit when the command queue is full.
var ErrQueueFull = errors.New("engine: command queue full")

// engine implements the Engine interface.
type engine struct {
	mu *sync.Mutex

	commands chan Command
	events   []Event
	listener func(Event)

	renderer   renderer.Renderer
	manager    shaderconfig.Manager
	compiler   shaderconfig.Compiler
	pipeline   accumulation.Pipeline
	bucket     bucket.Renderer
	space      virtualspace.Space
	spaceRev   uint64
	camera     camera.Camera
	controller camera.CameraController
	profiler   *profiler.Profiler
	window     window.Window

	width, height int
	exposure      float32
	lastDistance  float32

	quit     chan struct{}
	quitOnce sync.Once

	logger *zap.Logger

	// Pre-creation config collected from builder options
	backendType      renderer.RendererBackendType
	workers          int
	precision        renderer.Precision
	presentMode      *renderer.PresentMode
	commandBuffer    int
	initialConfig    shaderconfig.Config
	initialPreset    *preset.Preset
	profilingEnabled bool
	renderFrameLimit time.Duration
	tickCallback     func(dt float64)
	ownsRenderer     bool
}

// Stats is a snapshot of the render state.
type Stats struct {
	Width, Height     int
	Samples           uint
	BlendWeight       float32
	WriteIndex        int
	Elapsed           time.Duration
	Compiling         bool
	CompileState      shaderconfig.CompileState
	Program           string
	BucketActive      bool
	BucketProgress    float32
	Holding           bool
	AccumulationOn    bool
	SampleCap         uint
	Precision         renderer.Precision
	RendererName      string
	QueuedCommands    int
}

// Engine is the main entry point for the fractal renderer.
// It orchestrates the render loop, the command queue and the window when one is attached.
type Engine interface {
	// Submit queues a command for the next tick. It never blocks.
	//
	// Parameters:
	//   - cmd: the command
	//
	// Returns:
	//   - error: ErrQueueFull if the queue is full
	Submit(cmd Command) error

	// SetEventListener registers the function receiving events. It runs on the goroutine calling Tick, after the
	// tick released the engine, so it may call queries.
	//
	// Parameters:
	//   - listener: the event callback, nil to drop events
	SetEventListener(listener func(Event))

	// SetTickCallback sets a function called at the start of every Tick, before commands are drained.
	// Commands it submits apply in the same tick.
	//
	// Parameters:
	//   - callback: function receiving the frame delta in seconds, nil to disable
	SetTickCallback(callback func(dt float64))

	// Tick runs one frame: drains commands, advances the compiler, moves the camera, draws one sample (or one bucket
	// step) and presents when a surface is attached. Panics are recovered and logged.
	//
	// Parameters:
	//   - dt: seconds since the previous tick
	Tick(dt float64)

	// Run drives Tick until ctx is cancelled or Quit is called. With a window attached it runs the window message
	// loop on the calling goroutine, which must be the main thread, and closes the window on exit.
	//
	// Parameters:
	//   - ctx: the lifetime of the loop
	Run(ctx context.Context)

	// Quit stops Run. Safe to call multiple times.
	Quit()

	// MeasureDistanceAtScreenPoint marches the CPU estimator through a canvas pixel.
	//
	// Parameters:
	//   - x, y: canvas position in pixels, origin top-left
	//
	// Returns:
	//   - float32: distance from the camera to the surface, or the last measured distance on a miss
	//   - bool: false on a miss
	MeasureDistanceAtScreenPoint(x, y float32) (float32, bool)

	// PickWorldPosition returns the world position of the surface under a canvas pixel, offset included.
	//
	// Parameters:
	//   - x, y: canvas position in pixels, origin top-left
	//
	// Returns:
	//   - [3]float64: world position in double precision
	//   - bool: false on a miss
	PickWorldPosition(x, y float32) ([3]float64, bool)

	// CompiledFragmentShader returns the assembled WGSL of the installed program.
	CompiledFragmentShader() string

	// TranslatedFragmentShader returns the backend form of the installed program.
	TranslatedFragmentShader() string

	// CaptureSnapshot tone maps the current output.
	//
	// Returns:
	//   - *image.RGBA: the image
	//   - error: a readback failure
	CaptureSnapshot() (*image.RGBA, error)

	// Preset captures the current view.
	Preset() *preset.Preset

	// Stats returns a snapshot of the render state.
	Stats() Stats

	// Manager returns the shader configuration manager. Mutate it only through commands.
	Manager() shaderconfig.Manager

	// Pipeline returns the accumulation pipeline. Mutate it only through commands.
	Pipeline() accumulation.Pipeline

	// Camera returns the camera.
	Camera() camera.Camera

	// Space returns the virtual space.
	Space() virtualspace.Space

	// Renderer returns the renderer.
	Renderer() renderer.Renderer

	// Profiler returns the profiler holding the render metrics.
	Profiler() *profiler.Profiler

	// Window returns the attached window, or nil when headless.
	Window() window.Window

	// Release frees the pipeline and, unless it was injected, the renderer.
	Release()
}

var _ Engine = &engine{}

// NewEngine creates a new Engine with the provided options.
// Without WithRenderer it creates the renderer itself, presenting to the window given by WithWindow.
// The first program compile is requested immediately; samples are drawn once it is installed.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
//   - error: error if the renderer or the render targets could not be created
func NewEngine(options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		mu:            &sync.Mutex{},
		quit:          make(chan struct{}),
		width:         1280,
		height:        720,
		exposure:      1,
		commandBuffer: 256,
		backendType:   renderer.BackendTypeWGPU,
	}
	for _, opt := range options {
		opt(e)
	}
	if e.logger == nil {
		e.logger = common.Logger().Named("engine")
	}
	if e.window != nil {
		e.width, e.height = e.window.Width(), e.window.Height()
	}
	e.commands = make(chan Command, e.commandBuffer)

	if e.renderer == nil {
		opts := []renderer.RendererBuilderOption{renderer.WithWorkers(e.workers), renderer.WithLogger(e.logger)}
		if e.window != nil {
			opts = append(opts, renderer.WithSurface(e.window))
		}
		if e.presentMode != nil {
			opts = append(opts, renderer.WithPresentMode(*e.presentMode))
		}
		r, err := renderer.NewRenderer(e.backendType, opts...)
		if err != nil {
			return nil, errors.Wrap(err, "create renderer")
		}
		e.renderer = r
		e.ownsRenderer = true
	}

	if e.profiler == nil {
		e.profiler = profiler.NewProfiler(profiler.WithLogger(e.logger), profiler.WithLogging(e.profilingEnabled))
	}
	e.manager = shaderconfig.NewManager(shaderconfig.WithInitialConfig(e.initialConfig), shaderconfig.WithLogger(e.logger))
	e.compiler = shaderconfig.NewCompiler(e.renderer, shaderconfig.WithCompilerLogger(e.logger))
	e.pipeline = accumulation.NewPipeline(e.renderer,
		accumulation.WithPrecision(e.precision),
		accumulation.WithAccumulation(e.manager.Accumulation()),
		accumulation.WithSampleCap(uint(max(e.manager.SampleCap(), 0))),
		accumulation.WithLogger(e.logger),
	)
	e.bucket = bucket.NewRenderer(e.pipeline, bucket.WithLogger(e.logger))
	e.space = virtualspace.NewSpace(virtualspace.WithLogger(e.logger))
	e.controller = camera.NewCameraController(
		camera.WithSpace(e.space),
		camera.WithInitialPose(virtualspace.Pose{Position: mgl32.Vec3{0, 0, 3}, Rotation: mgl32.QuatIdent(), Fov: mgl32.DegToRad(45)}),
	)
	e.camera = camera.NewCamera(camera.WithController(e.controller), camera.WithAspect(float32(e.width)/float32(e.height)))
	e.camera.Update()

	if err := e.pipeline.Resize(e.width, e.height); err != nil {
		e.Release()
		return nil, errors.Wrapf(err, "allocate %dx%d targets", e.width, e.height)
	}
	if e.initialPreset != nil {
		LoadPreset{Preset: e.initialPreset}.apply(e)
	}
	e.compiler.Request(e.manager.ProgramKey(), e.manager.Features())
	e.spaceRev = e.space.Revision()

	if e.window != nil {
		e.window.SetResizeCallback(func(width, height int) {
			_ = e.Submit(Resize{Width: width, Height: height})
		})
	}

	e.logger.Info("engine ready",
		zap.String("renderer", e.renderer.Name()),
		zap.Int("width", e.width),
		zap.Int("height", e.height),
	)
	return e, nil
}

func (e *engine) Submit(cmd Command) error {
	if cmd == nil {
		return nil
	}
	select {
	case e.commands <- cmd:
		return nil
	default:
		e.logger.Warn("command dropped", zap.String("command", fmt.Sprintf("%T", cmd)))
		return ErrQueueFull
	}
}

func (e *engine) SetEventListener(listener func(Event)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listener = listener
}

func (e *engine) SetTickCallback(callback func(dt float64)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickCallback = callback
}

func (e *engine) emit(ev Event) {
	e.events = append(e.events, ev)
}

func (e *engine) Tick(dt float64) {
	e.mu.Lock()
	cb := e.tickCallback
	e.mu.Unlock()
	if cb != nil {
		cb(dt)
	}

	e.mu.Lock()
	e.tick(dt)
	events, listener := e.events, e.listener
	e.events = nil
	e.mu.Unlock()

	if listener == nil {
		return
	}
	for _, ev := range events {
		listener(ev)
	}
}

// tick runs one frame. Caller must hold the mutex.
func (e *engine) tick(dt float64) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("render tick recovered from panic", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	e.drain()
	e.stepCompiler()

	if e.controller.Update(dt) {
		e.pipeline.Reset()
	}
	// any offset change moves every sample in world space
	if rev := e.space.Revision(); rev != e.spaceRev {
		e.spaceRev = rev
		e.pipeline.Reset()
	}
	e.camera.Update()

	in := e.frameInput()
	switch {
	case e.compiler.Busy():
		// the installed program does not match the configuration until the pending compile lands
	case e.bucket.Active():
		e.tickBucket(in)
	case e.pipeline.Render(in):
		count := e.pipeline.AccumulationCount()
		e.profiler.ObserveSample(count)
		if count%convergenceEvery == 0 {
			if d, ok := e.pipeline.MeasureConvergence(common.FullFrame.Min, common.FullFrame.Max); ok {
				e.profiler.ObserveConvergence(d)
			}
		}
	}

	if e.renderer.CanPresent() {
		if t := e.pipeline.OutputTarget(); t != nil {
			if err := e.renderer.Present(t, e.exposure); err != nil {
				e.logger.Debug("present skipped", zap.Error(err))
			}
		}
	}
	e.profiler.Tick()
}

// drain applies every queued command in submission order.
func (e *engine) drain() {
	for {
		select {
		case cmd := <-e.commands:
			cmd.apply(e)
		default:
			return
		}
	}
}

// stepCompiler advances the compile state machine by one state and turns the result into events.
func (e *engine) stepCompiler() {
	res := e.compiler.Step()
	if res.Busy != "" {
		e.emit(IsCompiling{Compiling: true, Message: res.Busy})
	}
	if !res.Finished {
		return
	}
	e.emit(IsCompiling{Compiling: false})
	if res.Err != nil {
		e.profiler.ObserveCompile(0, true)
		e.emit(CompileFailed{Err: res.Err})
		return
	}
	e.profiler.ObserveCompile(res.Seconds, false)
	e.emit(CompileTime{Seconds: res.Seconds})
	e.emit(ShaderCode{Source: e.compiler.Source()})
	e.pipeline.Reset()
}

// handleDiff turns a configuration diff into compiler and pipeline actions.
func (e *engine) handleDiff(d shaderconfig.Diff, noReset bool) {
	if d.Empty() {
		return
	}
	if d.RebuildNeeded || d.ModeChanged {
		key := e.manager.ProgramKey()
		if e.compiler.Activate(key) {
			e.compiler.Cancel()
			e.emit(ShaderCode{Source: e.compiler.Source()})
		} else {
			e.compiler.Request(key, e.manager.Features())
		}
	}

	accumKey := shaderconfig.FeatureRender + "." + shaderconfig.ParamAccumulation
	capKey := shaderconfig.FeatureRender + "." + shaderconfig.ParamSampleCap
	viewportOnly := true
	for _, k := range d.Changed {
		if k != accumKey && k != capKey {
			viewportOnly = false
			break
		}
	}
	if d.Has(accumKey) {
		e.setAccumulation(e.manager.Accumulation())
	}
	if d.Has(capKey) {
		e.setSampleCap(uint(max(e.manager.SampleCap(), 0)))
	}
	if noReset && !d.RebuildNeeded && !d.ModeChanged {
		return
	}
	if e.bucket.Active() {
		if !viewportOnly {
			e.restartBucket()
		}
		return
	}
	e.pipeline.Reset()
}

// restartBucket samples a running job again from the first tile after the image it renders changed.
func (e *engine) restartBucket() {
	if e.bucket.Restart(e.provenance()) {
		e.profiler.ObserveBucket(0)
		e.emit(BucketProgress{Percent: 0})
	}
}

// setHolding pauses the viewport. While a job runs the change is kept for when it ends.
func (e *engine) setHolding(hold bool) {
	if !e.bucket.UpdateViewport(func(v *bucket.ViewportState) { v.Holding = hold }) {
		e.pipeline.SetHolding(hold)
	}
}

func (e *engine) setSampleCap(n uint) {
	if !e.bucket.UpdateViewport(func(v *bucket.ViewportState) { v.SampleCap = n }) {
		e.pipeline.SetSampleCap(n)
	}
}

func (e *engine) setAccumulation(enabled bool) {
	if !e.bucket.UpdateViewport(func(v *bucket.ViewportState) { v.Accumulation = enabled }) {
		e.pipeline.SetAccumulation(enabled)
	}
}

// frameInput builds the sample request from the installed program, the configuration and the camera.
func (e *engine) frameInput() accumulation.FrameInput {
	var u shader.FrameUniforms
	e.manager.FillUniforms(&u)
	u.Camera = e.camera.GPU(e.space)
	return accumulation.FrameInput{Program: e.compiler.Active(), Uniforms: u}
}

func (e *engine) tickBucket(in accumulation.FrameInput) {
	res := e.bucket.Tick(in)
	for range res.Drawn {
		e.profiler.ObserveSample(e.pipeline.AccumulationCount())
	}
	if res.Committed || res.Result != nil {
		e.profiler.ObserveBucket(res.Progress)
		e.emit(BucketProgress{Percent: res.Progress})
	}
	if res.Result != nil {
		e.profiler.ObserveBucketEnd("done")
		e.emit(BucketDone{Result: res.Result})
		e.emit(BucketStatus{Active: false})
	}
}

// resize changes the canvas size. A running bucket job is aborted first.
func (e *engine) resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	if e.bucket.Stop() {
		e.profiler.ObserveBucketEnd("stopped")
		e.emit(BucketStatus{Active: false})
	}
	e.width, e.height = width, height
	e.camera.SetAspect(float32(width) / float32(height))
	if e.renderer.CanPresent() {
		if err := e.renderer.Resize(width, height); err != nil {
			e.logger.Error("resize surface", zap.Error(err))
		}
	}
	if err := e.pipeline.Resize(width, height); err != nil {
		e.logger.Error("resize targets", zap.Int("width", width), zap.Int("height", height), zap.Error(err))
	}
}

// provenance describes the current view for bucket results.
func (e *engine) provenance() map[string]string {
	pose := e.camera.Pose()
	world := e.space.WorldPosition(pose.Position)
	offset := e.space.Offset()
	params, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalToString(e.manager.Params())
	if err != nil {
		e.logger.Warn("encode params", zap.Error(err))
	}
	return map[string]string{
		"formula":  e.manager.Formula().String(),
		"mode":     e.manager.Mode().String(),
		"params":   params,
		"camera":   fmt.Sprintf("%.17g,%.17g,%.17g", world[0], world[1], world[2]),
		"rotation": fmt.Sprintf("%g,%g,%g,%g", pose.Rotation.W, pose.Rotation.V[0], pose.Rotation.V[1], pose.Rotation.V[2]),
		"fov":      strconv.FormatFloat(float64(e.camera.Fov()), 'g', -1, 32),
		"offset":   fmt.Sprintf("%.17g,%.17g,%.17g", offset[0], offset[1], offset[2]),
		"program":  e.manager.Hash(),
		"renderer": e.renderer.Name(),
	}
}

func (e *engine) Run(ctx context.Context) {
	if e.window != nil {
		e.runWindow(ctx)
		return
	}
	e.handleRender(ctx)
}

// handleRender runs the uncapped (or frame-limited) render loop until ctx is done or Quit is called.
func (e *engine) handleRender(ctx context.Context) {
	lastRender := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.quit:
			return
		default:
			now := time.Now()
			dt := now.Sub(lastRender).Seconds()
			lastRender = now

			e.Tick(dt)
			e.limitFrame(now)
		}
	}
}

// runWindow drives Tick from the window message loop.
func (e *engine) runWindow(ctx context.Context) {
	stop := context.AfterFunc(ctx, e.Quit)
	defer stop()

	closed := false
	closeWindow := func() {
		if closed {
			return
		}
		closed = true
		if err := e.window.Close(); err != nil {
			e.logger.Warn("close window", zap.Error(err))
		}
	}

	lastRender := time.Now()
	e.window.SetUpdateCallback(func() {
		select {
		case <-e.quit:
			closeWindow()
			return
		default:
		}
		now := time.Now()
		dt := now.Sub(lastRender).Seconds()
		lastRender = now
		e.Tick(dt)
		e.limitFrame(now)
	})
	e.window.ProcessMessages()
	closeWindow()
	e.Quit()
}

func (e *engine) limitFrame(start time.Time) {
	if e.renderFrameLimit <= 0 {
		return
	}
	if remaining := e.renderFrameLimit - time.Since(start); remaining > 0 {
		time.Sleep(remaining)
	}
}

func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		close(e.quit)
	})
}

// ray returns the world-space ray through a canvas pixel, with the origin split into the float32 pair.
func (e *engine) ray(x, y float32) (formula.Ray, mgl32.Vec3) {
	u := x/float32(e.width)*2 - 1
	v := 1 - y/float32(e.height)*2
	dir := e.camera.RayDirection(u, v)
	g := e.camera.GPU(e.space)
	origin := mgl32.Vec3{g.High[0] + g.Low[0], g.High[1] + g.Low[1], g.High[2] + g.Low[2]}
	return formula.Ray{Origin: origin, Direction: dir}, dir
}

// marchSettings mirrors the quality configuration with the CPU step budget.
func (e *engine) marchSettings() formula.MarchSettings {
	s := formula.DefaultMarchSettings
	s.MaxSteps = max(e.manager.Features().MaxSteps, s.MaxSteps)
	s.Epsilon = e.quality("epsilon", s.Epsilon)
	s.MaxDistance = e.quality("maxDistance", s.MaxDistance)
	s.StepFactor = e.quality("stepFactor", s.StepFactor)
	return s
}

func (e *engine) quality(name string, def float32) float32 {
	v, _ := e.manager.Value(shaderconfig.FeatureQuality, name)
	if f, ok := v.(float32); ok && f > 0 {
		return f
	}
	return def
}

// march traces a canvas pixel against the configured formula. Caller must hold the mutex.
func (e *engine) march(x, y float32) (formula.Hit, mgl32.Vec3) {
	ray, dir := e.ray(x, y)
	est := formula.Lookup(e.manager.Formula())
	return formula.March(est, e.manager.Params(), ray, e.marchSettings()), dir
}

func (e *engine) MeasureDistanceAtScreenPoint(x, y float32) (float32, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, _ := e.march(x, y)
	if !h.Hit {
		return e.lastDistance, false
	}
	e.lastDistance = h.T
	return h.T, true
}

func (e *engine) PickWorldPosition(x, y float32) ([3]float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, dir := e.march(x, y)
	if !h.Hit {
		return [3]float64{}, false
	}
	local := e.camera.Pose().Position.Add(dir.Mul(h.T))
	return e.space.WorldPosition(local), true
}

func (e *engine) CompiledFragmentShader() string {
	return e.compiler.Source()
}

func (e *engine) TranslatedFragmentShader() string {
	p := e.compiler.Active()
	if p == nil {
		return ""
	}
	return e.renderer.TranslatedSource(p.Key())
}

func (e *engine) CaptureSnapshot() (*image.RGBA, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pipeline.Snapshot(e.exposure)
}

func (e *engine) Preset() *preset.Preset {
	e.mu.Lock()
	defer e.mu.Unlock()
	gradients := make([][]common.GradientStop, shader.GradientLayers)
	for layer := range gradients {
		gradients[layer] = e.manager.Gradient(layer)
	}
	return preset.New(e.manager.Config(), gradients, e.space, e.controller.TargetPose())
}

func (e *engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	w, h := e.pipeline.Size()
	s := Stats{
		Width:          w,
		Height:         h,
		Samples:        e.pipeline.AccumulationCount(),
		BlendWeight:    e.pipeline.BlendWeight(),
		WriteIndex:     e.pipeline.WriteIndex(),
		Elapsed:        e.pipeline.Elapsed(),
		Compiling:      e.compiler.Busy(),
		CompileState:   e.compiler.State(),
		BucketActive:   e.bucket.Active(),
		BucketProgress: e.bucket.Progress(),
		Holding:        e.pipeline.Holding(),
		AccumulationOn: e.pipeline.Accumulation(),
		SampleCap:      e.pipeline.SampleCap(),
		Precision:      e.pipeline.Precision(),
		RendererName:   e.renderer.Name(),
		QueuedCommands: len(e.commands),
	}
	// while a job owns the pipeline the viewport settings live in the job
	if v, ok := e.bucket.Viewport(); ok {
		s.Holding, s.AccumulationOn, s.SampleCap = v.Holding, v.Accumulation, v.SampleCap
	}
	if p := e.compiler.Active(); p != nil {
		s.Program = p.Key()
	}
	return s
}

func (e *engine) Manager() shaderconfig.Manager   { return e.manager }
func (e *engine) Pipeline() accumulation.Pipeline { return e.pipeline }
func (e *engine) Camera() camera.Camera           { return e.camera }
func (e *engine) Space() virtualspace.Space       { return e.space }
func (e *engine) Renderer() renderer.Renderer     { return e.renderer }
func (e *engine) Profiler() *profiler.Profiler    { return e.profiler }
func (e *engine) Window() window.Window           { return e.window }

func (e *engine) Release() {
	e.Quit()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pipeline != nil {
		e.pipeline.Release()
	}
	if e.ownsRenderer && e.renderer != nil {
		e.renderer.Release()
		e.renderer = nil
	}
}
