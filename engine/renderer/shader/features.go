package shader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-fractal/engine/formula"
)

// RenderMode selects the integrator compiled into a raymarch program.
type RenderMode int

const (
	// RenderModeDirect shades the first hit with one light, soft shadows, step-count occlusion and fog.
	RenderModeDirect RenderMode = iota

	// RenderModePathTraced follows cosine-weighted bounces with next event estimation towards the light.
	RenderModePathTraced
)

func (m RenderMode) String() string {
	if m == RenderModePathTraced {
		return "pathtraced"
	}
	return "direct"
}

// ParseRenderMode resolves a mode name. Unknown names resolve to RenderModeDirect and false.
func ParseRenderMode(name string) (RenderMode, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "direct":
		return RenderModeDirect, true
	case "pathtraced", "path_traced", "pt":
		return RenderModePathTraced, true
	default:
		return RenderModeDirect, false
	}
}

const (
	// MaxMarchSteps bounds the compile-time step count.
	MaxMarchSteps = 2048
	// MaxBounces bounds the path tracer depth.
	MaxBounces = 8
	// ProbeSize is the edge length of the convergence probe grid.
	ProbeSize = 64
)

// Features are the compile-time inputs of a raymarch program. Two programs with equal Features are identical.
type Features struct {
	Formula          formula.Kind
	Mode             RenderMode
	MaxSteps         int
	Bounces          int
	Shadows          bool
	AmbientOcclusion bool
	Fog              bool
	Gradient         bool
}

// DefaultFeatures returns the features of the default program.
func DefaultFeatures() Features {
	return Features{
		Formula:          formula.KindMandelbulb,
		Mode:             RenderModeDirect,
		MaxSteps:         128,
		Bounces:          1,
		Shadows:          true,
		AmbientOcclusion: true,
	}
}

// Normalized clamps the step and bounce counts and resolves unknown formulas to the default.
func (f Features) Normalized() Features {
	if !f.Formula.Valid() {
		f.Formula = formula.KindMandelbulb
	}
	if f.Mode != RenderModePathTraced {
		f.Mode = RenderModeDirect
	}
	f.MaxSteps = min(max(f.MaxSteps, 1), MaxMarchSteps)
	f.Bounces = min(max(f.Bounces, 0), MaxBounces)
	return f
}

// Key returns a stable label for the program built from f.
func (f Features) Key() string {
	f = f.Normalized()
	flags := []byte("----")
	for i, on := range []bool{f.Shadows, f.AmbientOcclusion, f.Fog, f.Gradient} {
		if on {
			flags[i] = "SAFG"[i]
		}
	}
	return fmt.Sprintf("%s/%s/s%d/b%d/%s", f.Formula, f.Mode, f.MaxSteps, f.Bounces, flags)
}

// Definitions converts f into pre-processor inputs.
func (f Features) Definitions() Definitions {
	f = f.Normalized()
	return Definitions{
		Formula: f.Formula,
		Flags: map[string]bool{
			"PATH_TRACED": f.Mode == RenderModePathTraced,
			"SHADOWS":     f.Shadows,
			"AO":          f.AmbientOcclusion,
			"FOG":         f.Fog,
			"GRADIENT":    f.Gradient,
		},
		Constants: map[string]string{
			"MAX_STEPS":  strconv.Itoa(f.MaxSteps),
			"BOUNCES":    strconv.Itoa(f.Bounces),
			"PROBE_SIZE": strconv.Itoa(ProbeSize),
		},
	}
}
