package renderer

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-fractal/common"
	"github.com/Carmen-Shannon/oxy-fractal/engine/renderer/shader"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrNoSurface is returned by presentation calls on a renderer without a window surface.
var ErrNoSurface = errors.New("renderer: no presentation surface")

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	programCache map[string]Program

	backendType RendererBackendType
	backend     RendererBackend
	logger      *zap.Logger

	// Pre-creation config collected from builder options
	surface              Surface
	forceFallbackAdapter bool
	workers              int
	pendingPresentMode   *PresentMode
}

// Renderer defines the interface for the rendering system.
//
// The Renderer owns a backend and a cache of compiled raymarch programs keyed by shader key. Every method must be
// called from the render goroutine, the cache itself is safe for concurrent lookups.
type Renderer interface {
	// BackendType returns the type of the backend the renderer was created with.
	//
	// Returns:
	//   - RendererBackendType: the backend type
	BackendType() RendererBackendType

	// Name returns the backend name.
	//
	// Returns:
	//   - string: backend name
	Name() string

	// RegisterProgram compiles s and caches the result under s.Key().
	// Shaders whose keys are already registered are not compiled again, the cached program is returned.
	//
	// Parameters:
	//   - s: the assembled raymarch shader
	//
	// Returns:
	//   - Program: the cached or newly compiled program
	//   - error: a compile or link failure
	RegisterProgram(s shader.Shader) (Program, error)

	// Program retrieves the cached Program associated with the given key, or nil if not found.
	//
	// Parameters:
	//   - key: the shader key
	//
	// Returns:
	//   - Program: the program, or nil
	Program(key string) Program

	// Programs returns a copy of the program cache.
	//
	// Returns:
	//   - map[string]Program: shader keys to compiled programs
	Programs() map[string]Program

	// ReleaseProgram removes the program under key from the cache and frees it.
	//
	// Parameters:
	//   - key: the shader key
	ReleaseProgram(key string)

	// TranslatedSource returns the backend form of the program under key, or an empty string.
	//
	// Parameters:
	//   - key: the shader key
	//
	// Returns:
	//   - string: translated source
	TranslatedSource(key string) string

	// CreateTarget allocates a zeroed render target.
	//
	// Parameters:
	//   - width, height: size in pixels
	//   - precision: texel format
	//
	// Returns:
	//   - Target: the new target
	//   - error: an error if the size is invalid or allocation fails
	CreateTarget(width, height int, precision Precision) (Target, error)

	// ReleaseTarget frees t. Releasing nil is a no-op.
	ReleaseTarget(t Target)

	// ClearTarget zeroes t.
	ClearTarget(t Target) error

	// Draw executes one raymarch draw.
	Draw(req DrawRequest) error

	// Diff returns the largest per-channel difference between a and b over region, sampled on the probe grid.
	Diff(a, b Target, region common.NormRect) (float32, error)

	// ReadPixels reads t back as rgba float32 values.
	ReadPixels(t Target) ([]float32, error)

	// ReadRegion reads the pixel rectangle r of t back, clipped to t.
	ReadRegion(t Target, r common.Rect) ([]float32, error)

	// WritePixels replaces the contents of t with pix, which must hold Width*Height*4 values.
	WritePixels(t Target, pix []float32) error

	// CanPresent reports whether the backend is attached to a window surface.
	CanPresent() bool

	// Resize configures the surface for a new window size.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	//
	// Returns:
	//   - error: ErrNoSurface or a device error
	Resize(width, height int) error

	// SetPresentMode sets the surface present mode. A call to Resize is required for the new mode to take effect.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// Present tone maps t onto the window surface and presents it.
	//
	// Parameters:
	//   - t: the target to display
	//   - exposure: linear exposure applied before the ACES curve
	//
	// Returns:
	//   - error: ErrNoSurface or a surface error
	Present(t Target, exposure float32) error

	// Release frees every cached program and the backend.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer with the specified backend type.
// The WGPU backend presents to the surface given by WithSurface, and runs headless without one.
//
// Parameters:
//   - backendType: the type of rendering backend to use
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: a new Renderer configured with the specified backend and options
//   - error: an error if the device could not be created
func NewRenderer(backendType RendererBackendType, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:           &sync.Mutex{},
		programCache: make(map[string]Program),
		backendType:  backendType,
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}
	if r.logger == nil {
		r.logger = common.Logger().Named("renderer")
	}

	switch backendType {
	case BackendTypeSoftware:
		r.backend = newSoftwareRendererBackend(r.workers, r.logger)
	case BackendTypeWGPU:
		fallthrough
	default:
		b, err := newWGPURendererBackend(r.surface, r.forceFallbackAdapter, r.logger)
		if err != nil {
			return nil, errors.Wrap(err, "create wgpu backend")
		}
		r.backend = b
	}

	if p, ok := r.backend.(SurfacePresenter); ok && r.surface != nil {
		if r.pendingPresentMode != nil {
			p.SetPresentMode(*r.pendingPresentMode)
		}
		if err := p.ConfigureSurface(r.surface.Width(), r.surface.Height()); err != nil {
			r.backend.Release()
			return nil, errors.Wrap(err, "configure surface")
		}
	}

	r.logger.Info("renderer ready", zap.String("backend", r.backend.Name()))
	return r, nil
}

func (r *renderer) BackendType() RendererBackendType {
	return r.backendType
}

func (r *renderer) Name() string {
	return r.backend.Name()
}

func (r *renderer) RegisterProgram(s shader.Shader) (Program, error) {
	if s == nil {
		return nil, errors.New("renderer: nil shader")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, exists := r.programCache[s.Key()]; exists {
		return p, nil
	}
	p, err := r.backend.CompileProgram(s)
	if err != nil {
		return nil, errors.Wrapf(err, "compile %s", s.Key())
	}
	r.programCache[s.Key()] = p
	return p, nil
}

func (r *renderer) Program(key string) Program {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.programCache[key]
}

func (r *renderer) Programs() map[string]Program {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Program, len(r.programCache))
	for k, p := range r.programCache {
		out[k] = p
	}
	return out
}

func (r *renderer) ReleaseProgram(key string) {
	r.mu.Lock()
	p, exists := r.programCache[key]
	delete(r.programCache, key)
	r.mu.Unlock()
	if exists {
		r.backend.ReleaseProgram(p)
	}
}

func (r *renderer) TranslatedSource(key string) string {
	p := r.Program(key)
	if p == nil {
		return ""
	}
	return r.backend.TranslatedSource(p)
}

func (r *renderer) CreateTarget(width, height int, precision Precision) (Target, error) {
	return r.backend.CreateTarget(width, height, precision)
}

func (r *renderer) ReleaseTarget(t Target) {
	if t != nil {
		r.backend.ReleaseTarget(t)
	}
}

func (r *renderer) ClearTarget(t Target) error {
	return r.backend.ClearTarget(t)
}

func (r *renderer) Draw(req DrawRequest) error {
	if req.Program == nil {
		return errors.New("renderer: draw without program")
	}
	return r.backend.Draw(req)
}

func (r *renderer) Diff(a, b Target, region common.NormRect) (float32, error) {
	return r.backend.Diff(a, b, region)
}

func (r *renderer) ReadPixels(t Target) ([]float32, error) {
	return r.backend.ReadRegion(t, common.Rect{})
}

func (r *renderer) ReadRegion(t Target, rect common.Rect) ([]float32, error) {
	return r.backend.ReadRegion(t, rect)
}

func (r *renderer) WritePixels(t Target, pix []float32) error {
	return r.backend.WritePixels(t, pix)
}

func (r *renderer) presenter() (SurfacePresenter, bool) {
	if r.surface == nil {
		return nil, false
	}
	p, ok := r.backend.(SurfacePresenter)
	return p, ok
}

func (r *renderer) CanPresent() bool {
	_, ok := r.presenter()
	return ok
}

func (r *renderer) Resize(width, height int) error {
	p, ok := r.presenter()
	if !ok {
		return ErrNoSurface
	}
	return p.ConfigureSurface(width, height)
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	if p, ok := r.presenter(); ok {
		p.SetPresentMode(mode)
	}
}

func (r *renderer) Present(t Target, exposure float32) error {
	p, ok := r.presenter()
	if !ok {
		return ErrNoSurface
	}
	return p.PresentTarget(t, exposure)
}

func (r *renderer) Release() {
	r.mu.Lock()
	programs := r.programCache
	r.programCache = make(map[string]Program)
	r.mu.Unlock()
	for _, p := range programs {
		r.backend.ReleaseProgram(p)
	}
	r.backend.Release()
}
