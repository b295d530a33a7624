package renderer

import (
	"strings"

	"github.com/Carmen-Shannon/oxy-fractal/common"
	"github.com/Carmen-Shannon/oxy-fractal/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pkg/errors"
)

// RendererBackendType identifies the device implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based backend.
	BackendTypeWGPU RendererBackendType = iota

	// BackendTypeSoftware selects the CPU backend. It evaluates the same programs with the Go mirror of the
	// distance estimators and is deterministic, so tests and headless exports can run without a GPU.
	BackendTypeSoftware
)

func (t RendererBackendType) String() string {
	if t == BackendTypeSoftware {
		return "software"
	}
	return "wgpu"
}

// ParseBackendType resolves a backend name. Unknown names resolve to BackendTypeWGPU and false.
func ParseBackendType(name string) (RendererBackendType, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "wgpu", "gpu", "webgpu":
		return BackendTypeWGPU, true
	case "software", "cpu":
		return BackendTypeSoftware, true
	default:
		return BackendTypeWGPU, false
	}
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	PresentModeUncapped
)

// Precision is the storage format of accumulation targets.
type Precision int

const (
	// PrecisionFloat32 stores rgba32float texels.
	PrecisionFloat32 Precision = iota

	// PrecisionFloat16 stores rgba16float texels. Halves memory at the cost of accumulation precision.
	PrecisionFloat16
)

func (p Precision) String() string {
	if p == PrecisionFloat16 {
		return "half"
	}
	return "float"
}

// ParsePrecision resolves a precision name. Unknown names resolve to PrecisionFloat32 and false.
func ParsePrecision(name string) (Precision, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "float", "float32", "f32", "full":
		return PrecisionFloat32, true
	case "half", "float16", "f16":
		return PrecisionFloat16, true
	default:
		return PrecisionFloat32, false
	}
}

var (
	// ErrInvalidSize is returned when a target is requested with a non-positive dimension.
	ErrInvalidSize = errors.New("renderer: target size must be positive")

	// ErrForeignResource is returned when a target or program created by another backend is passed in.
	ErrForeignResource = errors.New("renderer: resource belongs to another backend")

	// ErrSizeMismatch is returned when a draw or diff mixes targets of different sizes.
	ErrSizeMismatch = errors.New("renderer: target sizes differ")

	// ErrReleased is returned when a released backend is used.
	ErrReleased = errors.New("renderer: backend released")
)

// Target is an rgba float render target owned by a backend.
type Target interface {
	Width() int
	Height() int
	Precision() Precision
}

// Program is a raymarch program compiled by a backend.
type Program interface {
	// Key is the key of the shader the program was compiled from.
	Key() string

	// Shader returns the assembled program source and reflection data.
	Shader() shader.Shader
}

// DrawRequest is one fullscreen raymarch draw.
type DrawRequest struct {
	Program  Program
	Uniforms shader.FrameUniforms

	// History is sampled by the program for blending. It must differ from Dest.
	History Target

	// Dest receives the blended sample.
	Dest Target

	// Region restricts the draw to a pixel rectangle of Dest. An empty Region draws the whole target.
	Region common.Rect
}

// RendererBackend is the device interface the Renderer drives. Every method is called from the render goroutine.
type RendererBackend interface {
	// Name returns the backend name for logs and metadata.
	Name() string

	// CreateTarget allocates a zeroed target.
	//
	// Parameters:
	//   - width, height: size in pixels
	//   - precision: texel format
	//
	// Returns:
	//   - Target: the new target
	//   - error: ErrInvalidSize or a device error
	CreateTarget(width, height int, precision Precision) (Target, error)

	// ReleaseTarget frees the device memory of t. Releasing nil is a no-op.
	ReleaseTarget(t Target)

	// ClearTarget sets every texel of t to zero.
	ClearTarget(t Target) error

	// CompileProgram builds a raymarch program from an assembled shader.
	//
	// Parameters:
	//   - s: the assembled raymarch shader
	//
	// Returns:
	//   - Program: the compiled program
	//   - error: a compile or link failure
	CompileProgram(s shader.Shader) (Program, error)

	// ReleaseProgram frees a compiled program. Releasing nil is a no-op.
	ReleaseProgram(p Program)

	// TranslatedSource returns the program source in the form the device consumes.
	TranslatedSource(p Program) string

	// Draw executes one raymarch draw.
	Draw(req DrawRequest) error

	// Diff samples a ProbeSize x ProbeSize grid over region of a and b and returns the largest absolute
	// difference of any colour channel.
	//
	// Parameters:
	//   - a, b: targets of equal size
	//   - region: normalized sub-rectangle to probe
	//
	// Returns:
	//   - float32: the largest per-channel difference
	//   - error: a readback failure
	Diff(a, b Target, region common.NormRect) (float32, error)

	// ReadRegion reads the pixels of r back as row-major rgba float32 values. The region is clipped to t and an
	// empty region reads the whole target.
	//
	// Parameters:
	//   - t: the target to read
	//   - r: pixel rectangle of t
	//
	// Returns:
	//   - []float32: r.W*r.H*4 values of the clipped region
	//   - error: a readback failure
	ReadRegion(t Target, r common.Rect) ([]float32, error)

	// WritePixels uploads row-major rgba float32 values covering all of t.
	WritePixels(t Target, pix []float32) error

	// Release frees every device resource. The backend must not be used afterwards.
	Release()
}

// SurfacePresenter is implemented by backends that can display a target on a window surface.
type SurfacePresenter interface {
	// ConfigureSurface sizes the swapchain. Call again when the window is resized.
	ConfigureSurface(width, height int) error

	// SetPresentMode selects vsync or uncapped presentation. Takes effect on the next ConfigureSurface.
	SetPresentMode(mode PresentMode)

	// PresentTarget draws t tone mapped onto the surface and presents it.
	PresentTarget(t Target, exposure float32) error
}

// Surface is the window side of a presenting backend.
type Surface interface {
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
	Width() int
	Height() int
}
