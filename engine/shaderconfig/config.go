package shaderconfig

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
)

// Config is a shader configuration tree: feature id to parameter name to value.
// A partial Config holds only the parameters to change.
type Config map[string]map[string]any

// Clone returns a deep copy of c. Vector values are arrays and copy by value.
func (c Config) Clone() Config {
	out := make(Config, len(c))
	for feature, group := range c {
		g := make(map[string]any, len(group))
		for name, v := range group {
			g[name] = v
		}
		out[feature] = g
	}
	return out
}

// Set stores value under feature and name, creating the feature group when needed.
func (c Config) Set(feature, name string, value any) Config {
	if c[feature] == nil {
		c[feature] = make(map[string]any)
	}
	c[feature][name] = value
	return c
}

// Get returns the value under feature and name.
func (c Config) Get(feature, name string) (any, bool) {
	v, ok := c[feature][name]
	return v, ok
}

// canonical renders the values under keys sorted, for hashing.
func (c Config) canonical(include func(feature, name string) bool) string {
	keys := make([]string, 0, 32)
	for feature, group := range c {
		for name := range group {
			if include(feature, name) {
				keys = append(keys, feature+"."+name)
			}
		}
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		feature, name, _ := strings.Cut(k, ".")
		fmt.Fprintf(&sb, "%s=%v;", k, c[feature][name])
	}
	return sb.String()
}

// Diff is the classification of one applied update.
type Diff struct {
	// RebuildNeeded is set when a compile parameter, the formula or a hard cap changed.
	RebuildNeeded bool

	// UniformUpdate is set when no rebuild is needed and a uniform-bound parameter changed.
	UniformUpdate bool

	// ModeChanged is set when the render mode toggled.
	ModeChanged bool

	// Changed lists every changed parameter as feature.param, sorted.
	Changed []string

	// Ignored lists unknown or undecodable parameters that were dropped.
	Ignored []string
}

// Empty reports whether the update changed nothing.
func (d Diff) Empty() bool {
	return len(d.Changed) == 0
}

// Has reports whether feature.param is in Changed.
func (d Diff) Has(key string) bool {
	_, found := slices.BinarySearch(d.Changed, key)
	return found
}

// equalValues compares decoded values of the same kind. Floats and vectors compare within tol.
func equalValues(a, b any, tol float64) bool {
	switch av := a.(type) {
	case float32:
		bv, ok := b.(float32)
		return ok && math.Abs(float64(av)-float64(bv)) <= tol
	case [3]float32:
		bv, ok := b.([3]float32)
		if !ok {
			return false
		}
		for i := range av {
			if math.Abs(float64(av[i])-float64(bv[i])) > tol {
				return false
			}
		}
		return true
	case [4]float32:
		bv, ok := b.([4]float32)
		if !ok {
			return false
		}
		for i := range av {
			if math.Abs(float64(av[i])-float64(bv[i])) > tol {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
