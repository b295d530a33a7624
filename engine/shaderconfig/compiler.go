package shaderconfig

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-fractal/common"
	"github.com/Carmen-Shannon/oxy-fractal/engine/camera"
	"github.com/Carmen-Shannon/oxy-fractal/engine/formula"
	"github.com/Carmen-Shannon/oxy-fractal/engine/renderer"
	"github.com/Carmen-Shannon/oxy-fractal/engine/renderer/shader"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// CompileState is the state of the recompilation state machine.
type CompileState int

const (
	// StateIdle has no compile in flight.
	StateIdle CompileState = iota
	// StateAwaitingRenderer has signalled busy and waits one tick so the indicator can paint.
	StateAwaitingRenderer
	// StateCompilingSource assembles the WGSL for the requested features.
	StateCompilingSource
	// StateLinkingProgram hands the source to the backend and forces the link with a throwaway draw.
	StateLinkingProgram
	// StateDone installs the program on the next step.
	StateDone
)

func (s CompileState) String() string {
	switch s {
	case StateAwaitingRenderer:
		return "awaiting-renderer"
	case StateCompilingSource:
		return "compiling-source"
	case StateLinkingProgram:
		return "linking-program"
	case StateDone:
		return "done"
	default:
		return "idle"
	}
}

// StepResult reports what one Step did. The caller turns it into events and pipeline actions.
type StepResult struct {
	// State is the state after the step.
	State CompileState

	// Busy carries the busy indicator message when the compile started.
	Busy string

	// Source is the assembled program source once it exists.
	Source string

	// Installed is the new active program on completion. The caller must reset accumulation.
	Installed renderer.Program

	// Seconds is the wall time of the compile on completion.
	Seconds float64

	// Finished is set when the compile ended, successfully or not.
	Finished bool

	// Err is the compile failure. The previous program stays active.
	Err error
}

type compileJob struct {
	key      ProgramKey
	features shader.Features
	shader   shader.Shader
	program  renderer.Program
	started  time.Time
}

// compiler is the implementation of the Compiler interface.
type compiler struct {
	mu        *sync.Mutex
	r         renderer.Renderer
	state     CompileState
	job       *compileJob
	cache     map[ProgramKey]renderer.Program
	order     []ProgramKey
	cacheSize int
	active    renderer.Program
	activeKey ProgramKey
	source    string
	logger    *zap.Logger
}

// Compiler rebuilds raymarch programs one state per Step and caches the results by ProgramKey.
type Compiler interface {
	// Request starts compiling the program for f, replacing any compile in flight.
	//
	// Parameters:
	//   - key: the cache key of the program
	//   - f: compile-time features
	Request(key ProgramKey, f shader.Features)

	// Step advances the state machine by one state. It is a no-op when idle.
	//
	// Returns:
	//   - StepResult: what the step did
	Step() StepResult

	// Cancel abandons the compile in flight and returns to StateIdle. Partially built programs stay in the backend
	// cache but are not installed.
	Cancel()

	// State returns the current state.
	State() CompileState

	// Busy reports whether a compile is in flight.
	Busy() bool

	// Activate installs the cached program for key without compiling.
	//
	// Parameters:
	//   - key: the cache key
	//
	// Returns:
	//   - bool: false if no program is cached for key
	Activate(key ProgramKey) bool

	// Cached reports whether a program exists for key.
	Cached(key ProgramKey) bool

	// Active returns the installed program, or nil before the first compile completes.
	Active() renderer.Program

	// ActiveKey returns the key of the installed program.
	ActiveKey() ProgramKey

	// Source returns the assembled source of the installed program.
	Source() string
}

var _ Compiler = &compiler{}

// NewCompiler creates a Compiler that builds programs on r.
//
// Parameters:
//   - r: the renderer
//   - options: functional options to configure the compiler
//
// Returns:
//   - Compiler: the compiler
func NewCompiler(r renderer.Renderer, options ...CompilerBuilderOption) Compiler {
	c := &compiler{
		mu:        &sync.Mutex{},
		r:         r,
		cache:     make(map[ProgramKey]renderer.Program),
		cacheSize: 8,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.logger == nil {
		c.logger = common.Logger().Named("compiler")
	}
	return c
}

func (c *compiler) Request(key ProgramKey, f shader.Features) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.job != nil {
		c.logger.Debug("restarting compile", zap.String("previous", c.job.features.Key()), zap.String("next", f.Key()))
	}
	c.job = &compileJob{key: key, features: f.Normalized(), started: time.Now()}
	c.state = StateAwaitingRenderer
}

func (c *compiler) Step() StepResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	job := c.job
	if job == nil {
		c.state = StateIdle
		return StepResult{State: StateIdle}
	}

	switch c.state {
	case StateAwaitingRenderer:
		c.state = StateCompilingSource
		msg := fmt.Sprintf("compiling %s (%s)", job.features.Formula, job.features.Mode)
		return StepResult{State: c.state, Busy: msg}

	case StateCompilingSource:
		s, err := shader.NewRaymarchShader(job.features)
		if err != nil {
			return c.fail(err)
		}
		job.shader = s
		c.state = StateLinkingProgram
		return StepResult{State: c.state, Source: s.Source()}

	case StateLinkingProgram:
		p, err := c.r.RegisterProgram(job.shader)
		if err != nil {
			return c.fail(err)
		}
		if err := c.warmup(p); err != nil {
			c.r.ReleaseProgram(p.Key())
			return c.fail(err)
		}
		job.program = p
		c.state = StateDone
		return StepResult{State: c.state}

	case StateDone:
		c.store(job.key, job.program)
		c.active, c.activeKey, c.source = job.program, job.key, job.shader.Source()
		c.job = nil
		c.state = StateIdle
		seconds := time.Since(job.started).Seconds()
		c.logger.Info("program compiled", zap.String("program", job.program.Key()), zap.Float64("seconds", seconds))
		return StepResult{State: c.state, Installed: job.program, Seconds: seconds, Finished: true}

	default:
		c.job = nil
		c.state = StateIdle
		return StepResult{State: StateIdle}
	}
}

// fail ends the job and keeps the previous program. Caller must hold the mutex.
func (c *compiler) fail(err error) StepResult {
	key := c.job.features.Key()
	c.job = nil
	c.state = StateIdle
	c.logger.Error("program compile failed", zap.String("program", key), zap.Error(err))
	return StepResult{State: StateIdle, Finished: true, Err: errors.Wrapf(err, "compile %s", key)}
}

// warmup forces the backend to link p by drawing one pixel into scratch targets.
func (c *compiler) warmup(p renderer.Program) error {
	a, err := c.r.CreateTarget(1, 1, renderer.PrecisionFloat32)
	if err != nil {
		return err
	}
	defer c.r.ReleaseTarget(a)
	b, err := c.r.CreateTarget(1, 1, renderer.PrecisionFloat32)
	if err != nil {
		return err
	}
	defer c.r.ReleaseTarget(b)
	return c.r.Draw(renderer.DrawRequest{Program: p, Uniforms: warmupUniforms(p.Shader().Features()), History: a, Dest: b})
}

func warmupUniforms(f shader.Features) shader.FrameUniforms {
	return shader.FrameUniforms{
		Resolution: [4]float32{1, 1, 0, 0},
		Accum:      [4]float32{0, 0, 1, 0},
		Camera: camera.GPUCamera{
			High:    [4]float32{0, 0, 4, 0.5},
			Low:     [4]float32{0, 0, 0, 1},
			Right:   [4]float32{1, 0, 0, 0},
			Up:      [4]float32{0, 1, 0, 0},
			Forward: [4]float32{0, 0, -1, 0},
		},
		Formula: formula.DefaultParams(f.Formula).GPU(),
		Quality: [4]float32{1e-3, 8, 1, 0},
		Light:   [4]float32{0, 1, 0, 1},
	}
}

// store caches p under key and evicts the oldest programs past the cache size. The program being installed and the
// active program are never evicted. Caller must hold the mutex.
func (c *compiler) store(key ProgramKey, p renderer.Program) {
	if _, exists := c.cache[key]; !exists {
		c.order = append(c.order, key)
	}
	c.cache[key] = p
	for len(c.order) > c.cacheSize {
		i := slices.IndexFunc(c.order, func(k ProgramKey) bool { return k != key && k != c.activeKey })
		if i < 0 {
			break
		}
		oldest := c.order[i]
		c.order = slices.Delete(c.order, i, i+1)
		evicted, ok := c.cache[oldest]
		delete(c.cache, oldest)
		if ok && !c.shared(evicted) {
			c.r.ReleaseProgram(evicted.Key())
		}
	}
}

// shared reports whether another cache entry still uses the backend program of p.
func (c *compiler) shared(p renderer.Program) bool {
	for _, other := range c.cache {
		if other.Key() == p.Key() {
			return true
		}
	}
	return false
}

func (c *compiler) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.job != nil {
		c.logger.Debug("compile cancelled", zap.String("program", c.job.features.Key()), zap.Stringer("state", c.state))
	}
	c.job = nil
	c.state = StateIdle
}

func (c *compiler) State() CompileState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *compiler) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job != nil
}

func (c *compiler) Activate(key ProgramKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.cache[key]
	if !ok {
		return false
	}
	c.active, c.activeKey, c.source = p, key, p.Shader().Source()
	if i := slices.Index(c.order, key); i >= 0 {
		c.order = append(slices.Delete(c.order, i, i+1), key)
	}
	return true
}

func (c *compiler) Cached(key ProgramKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.cache[key]
	return ok
}

func (c *compiler) Active() renderer.Program {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *compiler) ActiveKey() ProgramKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeKey
}

func (c *compiler) Source() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source
}
