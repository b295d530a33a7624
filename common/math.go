package common

import (
	"math"
	"unsafe"
)

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	total := int(unsafe.Sizeof(zero)) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), total)
}

// StructToBytes reinterprets a pointer to a struct as a raw byte slice.
// The struct must only contain fixed size fields laid out in WGSL uniform order.
//
// Parameters:
//   - v: pointer to the struct to reinterpret
//
// Returns:
//   - []byte: byte slice view of the struct's memory
func StructToBytes[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), int(unsafe.Sizeof(*v)))
}

// BytesToFloat32s reinterprets a little-endian byte buffer read back from the GPU as float32 values.
// Trailing bytes that do not form a whole float are ignored.
//
// Parameters:
//   - b: raw bytes
//
// Returns:
//   - []float32: a view over b
func BytesToFloat32s(b []byte) []float32 {
	n := len(b) / 4
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), n)
}

// RadicalInverse returns the van der Corput radical inverse of index in the given base.
// Used to build low-discrepancy Halton jitter sequences.
//
// Parameters:
//   - index: sequence index (1-based sequences start at 1)
//   - base: prime base, normally 2 or 3
//
// Returns:
//   - float64: value in [0, 1)
func RadicalInverse(index uint32, base uint32) float64 {
	inv := 1.0 / float64(base)
	f := inv
	r := 0.0
	for index > 0 {
		r += f * float64(index%base)
		index /= base
		f *= inv
	}
	return r
}

// SmoothingFactor converts a per-second sharpness into the blend factor for one exponential smoothing step.
// A sharpness <= 0 means "no smoothing" and returns 1.
//
// Parameters:
//   - sharpness: convergence rate per second
//   - dt: elapsed seconds
//
// Returns:
//   - float64: blend factor in [0, 1]
func SmoothingFactor(sharpness, dt float64) float64 {
	if sharpness <= 0 {
		return 1
	}
	if dt <= 0 {
		return 0
	}
	return 1 - math.Exp(-sharpness*dt)
}

// Saturate clamps v to [0, 1].
func Saturate(v float32) float32 {
	return Clamp(v, 0, 1)
}

// Clamp restricts v to [lo, hi].
func Clamp[T ~float32 | ~float64 | ~int | ~uint32](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ACESFilm applies the Narkowicz fitted ACES curve used for display output of HDR accumulation buffers.
func ACESFilm(x float32) float32 {
	const a, b, c, d, e = 2.51, 0.03, 2.43, 0.59, 0.14
	return Saturate((x * (a*x + b)) / (x*(c*x+d) + e))
}
