// Package formula implements the distance estimators for every supported fractal.
//
// Each formula variant lives in its own file and carries two renditions of the same estimator: a CPU implementation
// (Estimate) used for picking, distance queries and the software backend, and the WGSL function emitted into the
// assembled fragment program (AppendWGSL). Shared constants are injected into the WGSL from the Go constants in this
// file, so both renditions iterate, bail out and clamp identically.
package formula

import (
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// Kind identifies one fractal formula. The set is closed; unknown names resolve to KindMandelbulb.
type Kind int

const (
	// KindMandelbulb is the power-n spherical Mandelbulb. It is the default formula.
	KindMandelbulb Kind = iota
	// KindMandelbox is the box fold + sphere fold Mandelbox.
	KindMandelbox
	// KindMengerSponge is the Menger sponge iterated function system.
	KindMengerSponge
	// KindSierpinski is the Sierpinski tetrahedron built from reflection folds.
	KindSierpinski
	// KindQuaternionJulia is the quaternion Julia set z = z^2 + c.
	KindQuaternionJulia
	// KindMandeltorus is the Mandelbulb with a latitude (toroidal) angle decomposition.
	KindMandeltorus
	// KindKleinian is a pseudo-Kleinian limit set built from box folds and sphere inversions.
	KindKleinian
)

const (
	// MaxIterations is the hard iteration cap shared by every estimator on CPU and GPU.
	MaxIterations = 20

	// MinDerivative is the floor applied to the running derivative before dividing by it.
	MinDerivative = 1e-6
)

var kindNames = map[Kind]string{
	KindMandelbulb:      "mandelbulb",
	KindMandelbox:       "mandelbox",
	KindMengerSponge:    "menger",
	KindSierpinski:      "sierpinski",
	KindQuaternionJulia: "julia",
	KindMandeltorus:     "mandeltorus",
	KindKleinian:        "kleinian",
}

// String returns the canonical lower-case formula id.
func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return kindNames[KindMandelbulb]
}

// Valid reports whether k is one of the defined formula kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind resolves a formula id. Matching is case-insensitive and unknown ids return KindMandelbulb.
//
// Parameters:
//   - name: formula id such as "mandelbox"
//
// Returns:
//   - Kind: the resolved formula kind
//   - bool: false if name was not recognised and the default was substituted
func ParseKind(name string) (Kind, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return KindMandelbulb, false
}

// Kinds returns every formula kind in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindMandelbulb,
		KindMandelbox,
		KindMengerSponge,
		KindSierpinski,
		KindQuaternionJulia,
		KindMandeltorus,
		KindKleinian,
	}
}

// Estimator is a single distance estimator.
type Estimator interface {
	// Kind returns the formula this estimator implements.
	//
	// Returns:
	//   - Kind: the formula kind
	Kind() Kind

	// Estimate returns a conservative lower bound on the distance from p to the fractal surface together with the
	// running derivative magnitude at exit. The derivative is never below MinDerivative.
	//
	// Parameters:
	//   - p: sample position in fractal space
	//   - params: formula parameters
	//
	// Returns:
	//   - float32: distance estimate
	//   - float32: running derivative
	Estimate(p mgl32.Vec3, params Params) (float32, float32)

	// FunctionName returns the name of the WGSL function emitted by AppendWGSL.
	//
	// Returns:
	//   - string: WGSL function name
	FunctionName() string

	// AppendWGSL appends the WGSL rendition of the estimator to dst.
	// The function has the signature fn <name>(p: vec3<f32>, fp: FormulaParams) -> vec2<f32>, returning (distance, dr).
	//
	// Parameters:
	//   - dst: buffer to append to
	//
	// Returns:
	//   - []byte: the extended buffer
	AppendWGSL(dst []byte) []byte
}

var estimators = map[Kind]Estimator{
	KindMandelbulb:      mandelbulb{},
	KindMandelbox:       mandelbox{},
	KindMengerSponge:    menger{},
	KindSierpinski:      sierpinski{},
	KindQuaternionJulia: quaternionJulia{},
	KindMandeltorus:     mandeltorus{},
	KindKleinian:        kleinian{},
}

// Lookup resolves the estimator for k once, at formula selection time. Unknown kinds return the Mandelbulb.
//
// Parameters:
//   - k: formula kind
//
// Returns:
//   - Estimator: the estimator for k
func Lookup(k Kind) Estimator {
	if e, ok := estimators[k]; ok {
		return e
	}
	return estimators[KindMandelbulb]
}

// escapeDistance is the escape-time estimate 0.5 * ln(r) * r / dr with dr floor-clamped.
func escapeDistance(r, dr float32) (float32, float32) {
	dr = max(dr, MinDerivative)
	if r <= 0 {
		return 0, dr
	}
	return 0.5 * logf(r) * r / dr, dr
}

// linearDistance is the r / |dr| estimate used by the folding formulas.
func linearDistance(r, dr float32) (float32, float32) {
	dr = max(absf(dr), MinDerivative)
	return r / dr, dr
}
