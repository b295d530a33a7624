package shaderconfig

import (
	"sort"
	"sync"

	"github.com/Carmen-Shannon/oxy-fractal/common"
	"github.com/Carmen-Shannon/oxy-fractal/engine/formula"
	"github.com/Carmen-Shannon/oxy-fractal/engine/renderer/shader"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrInvalidLayer is returned by SetGradient for a layer outside [0, shader.GradientLayers).
var ErrInvalidLayer = errors.New("shaderconfig: gradient layer out of range")

// hashNamespace seeds the name-based UUIDs used as configuration hashes.
var hashNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("oxy-fractal/shaderconfig"))

// ProgramKey identifies a compiled raymarch program: the compile configuration hash and the render mode.
type ProgramKey struct {
	Hash string
	Mode shader.RenderMode
}

// manager is the implementation of the Manager interface.
type manager struct {
	mu        *sync.Mutex
	registry  *Registry
	config    Config
	gradients [shader.GradientLayers][]common.GradientStop
	logger    *zap.Logger

	initial Config
}

// Manager owns the canonical shader configuration.
type Manager interface {
	// Apply merges a partial configuration and classifies the result.
	// Unknown features or parameters and values that cannot be decoded are ignored with a warning.
	//
	// Parameters:
	//   - partial: feature id to parameter name to value
	//
	// Returns:
	//   - Diff: the classification of the update
	Apply(partial Config) Diff

	// Config returns a deep copy of the current configuration.
	//
	// Returns:
	//   - Config: every parameter of every feature
	Config() Config

	// Value returns the decoded value of feature.name.
	Value(feature, name string) (any, bool)

	// Spec returns the parameter spec of feature.name.
	Spec(feature, name string) (ParamSpec, bool)

	// Formula returns the active formula.
	Formula() formula.Kind

	// Params returns the normalized formula parameters.
	Params() formula.Params

	// Mode returns the active render mode.
	Mode() shader.RenderMode

	// Features returns the compile-time features of the program matching the configuration.
	Features() shader.Features

	// Accumulation reports whether temporal accumulation is enabled.
	Accumulation() bool

	// SampleCap returns the configured sample cap, 0 meaning unbounded.
	SampleCap() int

	// Hash returns a stable hash of every compile parameter except the render mode.
	Hash() string

	// ProgramKey returns the cache key of the program matching the configuration.
	ProgramKey() ProgramKey

	// SetGradient replaces the colour stops of a gradient layer. Stops are sorted by position and clamped into
	// [0, 1]; stops past common.MaxGradientStops are dropped.
	//
	// Parameters:
	//   - layer: gradient layer index
	//   - stops: the new stops
	//
	// Returns:
	//   - error: ErrInvalidLayer
	SetGradient(layer int, stops []common.GradientStop) error

	// Gradient returns a copy of the stops of layer.
	Gradient(layer int) []common.GradientStop

	// FillUniforms writes every configuration-driven member of u. Resolution, accumulation and camera are left
	// untouched.
	FillUniforms(u *shader.FrameUniforms)
}

var _ Manager = &manager{}

// NewManager creates a Manager holding the registry defaults.
//
// Parameters:
//   - options: functional options to configure the manager
//
// Returns:
//   - Manager: the manager
func NewManager(options ...ManagerBuilderOption) Manager {
	m := &manager{
		mu: &sync.Mutex{},
	}
	for _, opt := range options {
		opt(m)
	}
	if m.registry == nil {
		m.registry = DefaultRegistry()
	}
	if m.logger == nil {
		m.logger = common.Logger().Named("shaderconfig")
	}
	m.config = m.registry.Defaults()
	if m.initial != nil {
		m.Apply(m.initial)
		m.initial = nil
	}
	return m
}

// decodeValue converts raw into the Go type of ps.Kind.
func decodeValue(ps ParamSpec, raw any) (any, error) {
	var err error
	switch ps.Kind {
	case KindFloat:
		var v float32
		err = mapstructure.WeakDecode(raw, &v)
		return v, err
	case KindInt:
		var v int
		err = mapstructure.WeakDecode(raw, &v)
		return v, err
	case KindBool:
		var v bool
		err = mapstructure.WeakDecode(raw, &v)
		return v, err
	case KindString:
		var v string
		err = mapstructure.WeakDecode(raw, &v)
		return v, err
	case KindVec3:
		var v [3]float32
		err = mapstructure.WeakDecode(raw, &v)
		return v, err
	case KindVec4:
		var v [4]float32
		err = mapstructure.WeakDecode(raw, &v)
		return v, err
	default:
		return nil, errors.Errorf("unsupported value kind %d", ps.Kind)
	}
}

// canonicalize resolves enum strings. Unknown names fall back to the default with a warning.
func (m *manager) canonicalize(feature string, ps ParamSpec, v any) any {
	switch {
	case feature == FeatureFormula && ps.Name == ParamFormulaType:
		k, ok := formula.ParseKind(v.(string))
		if !ok {
			m.logger.Warn("unknown formula, using default", zap.Any("formula", v), zap.Stringer("default", k))
		}
		return k.String()
	case feature == FeatureRender && ps.Name == ParamRenderMode:
		mode, ok := shader.ParseRenderMode(v.(string))
		if !ok {
			m.logger.Warn("unknown render mode, using default", zap.Any("mode", v), zap.Stringer("default", mode))
		}
		return mode.String()
	}
	return v
}

func (m *manager) Apply(partial Config) Diff {
	m.mu.Lock()
	defer m.mu.Unlock()

	var d Diff
	next := m.config.Clone()

	// A formula switch starts from the defaults of the new formula; explicit values in partial still win.
	if raw, ok := partial[FeatureFormula][ParamFormulaType]; ok {
		ps, _ := m.registry.Feature(FeatureFormula)
		spec, _ := ps.Param(ParamFormulaType)
		if v, err := decodeValue(spec, raw); err == nil {
			name := m.canonicalize(FeatureFormula, spec, v).(string)
			if name != next[FeatureFormula][ParamFormulaType] {
				k, _ := formula.ParseKind(name)
				for param, v := range formula.DefaultParams(k).ToMap() {
					if _, known := ps.Param(param); known {
						next[FeatureFormula][param] = v
					}
				}
			}
		}
	}

	for feature, group := range partial {
		fs, ok := m.registry.Feature(feature)
		if !ok {
			for name := range group {
				d.Ignored = append(d.Ignored, feature+"."+name)
			}
			m.logger.Warn("ignoring unknown feature", zap.String("feature", feature))
			continue
		}
		for name, raw := range group {
			ps, ok := fs.Param(name)
			if !ok {
				d.Ignored = append(d.Ignored, feature+"."+name)
				m.logger.Warn("ignoring unknown parameter", zap.String("feature", feature), zap.String("param", name))
				continue
			}
			v, err := decodeValue(ps, raw)
			if err != nil {
				d.Ignored = append(d.Ignored, feature+"."+name)
				m.logger.Warn("ignoring undecodable parameter", zap.String("feature", feature),
					zap.String("param", name), zap.Error(err))
				continue
			}
			next[feature][name] = m.canonicalize(feature, ps, v)
		}
	}

	uniformTouched := false
	for _, fs := range m.registry.features {
		for _, ps := range fs.Params {
			old, updated := m.config[fs.ID][ps.Name], next[fs.ID][ps.Name]
			if equalValues(old, updated, ps.Tolerance) {
				// Keep the previous value so sub-tolerance drift never accumulates.
				next[fs.ID][ps.Name] = old
				continue
			}
			d.Changed = append(d.Changed, fs.ID+"."+ps.Name)
			switch {
			case fs.ID == FeatureRender && ps.Name == ParamRenderMode:
				d.ModeChanged = true
			case ps.Update == UpdateCompile:
				d.RebuildNeeded = true
			}
			if ps.Uniform != "" {
				uniformTouched = true
			}
		}
	}
	d.UniformUpdate = uniformTouched && !d.RebuildNeeded
	sort.Strings(d.Changed)
	sort.Strings(d.Ignored)

	m.config = next
	if !d.Empty() {
		m.logger.Debug("config applied", zap.Strings("changed", d.Changed),
			zap.Bool("rebuild", d.RebuildNeeded), zap.Bool("uniforms", d.UniformUpdate), zap.Bool("mode", d.ModeChanged))
	}
	return d
}

func (m *manager) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config.Clone()
}

func (m *manager) Value(feature, name string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config.Get(feature, name)
}

func (m *manager) Spec(feature, name string) (ParamSpec, bool) {
	fs, ok := m.registry.Feature(feature)
	if !ok {
		return ParamSpec{}, false
	}
	return fs.Param(name)
}

// value returns feature.name as T, or the zero value. Caller must hold the mutex.
func value[T any](c Config, feature, name string) T {
	v, _ := c[feature][name].(T)
	return v
}

func (m *manager) formulaKind() formula.Kind {
	k, _ := formula.ParseKind(value[string](m.config, FeatureFormula, ParamFormulaType))
	return k
}

func (m *manager) Formula() formula.Kind {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.formulaKind()
}

func (m *manager) params() formula.Params {
	c := m.config
	p := formula.Params{
		Power:      value[float32](c, FeatureFormula, "power"),
		Scale:      value[float32](c, FeatureFormula, "scale"),
		MinRadius:  value[float32](c, FeatureFormula, "minRadius"),
		FoldLimit:  value[float32](c, FeatureFormula, "foldLimit"),
		Bailout:    value[float32](c, FeatureFormula, "bailout"),
		Iterations: value[int](c, FeatureFormula, ParamIterations),
		Julia:      value[[4]float32](c, FeatureFormula, "julia"),
		Offset:     value[[3]float32](c, FeatureFormula, "offset"),
	}
	return p.Normalized(m.formulaKind())
}

func (m *manager) Params() formula.Params {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.params()
}

func (m *manager) mode() shader.RenderMode {
	mode, _ := shader.ParseRenderMode(value[string](m.config, FeatureRender, ParamRenderMode))
	return mode
}

func (m *manager) Mode() shader.RenderMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode()
}

func (m *manager) Features() shader.Features {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.config
	return shader.Features{
		Formula:          m.formulaKind(),
		Mode:             m.mode(),
		MaxSteps:         value[int](c, FeatureQuality, ParamMaxSteps),
		Bounces:          value[int](c, FeatureRender, "bounces"),
		Shadows:          value[bool](c, FeatureLighting, "shadows"),
		AmbientOcclusion: value[bool](c, FeatureLighting, "ambientOcclusion"),
		Fog:              value[bool](c, FeatureLighting, "fog"),
		Gradient:         value[bool](c, FeatureColoring, "gradient"),
	}.Normalized()
}

func (m *manager) Accumulation() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return value[bool](m.config, FeatureRender, ParamAccumulation)
}

func (m *manager) SampleCap() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return max(value[int](m.config, FeatureRender, ParamSampleCap), 0)
}

func (m *manager) hash() string {
	canonical := m.config.canonical(func(feature, name string) bool {
		if feature == FeatureRender && name == ParamRenderMode {
			return false
		}
		fs, _ := m.registry.Feature(feature)
		ps, ok := fs.Param(name)
		return ok && ps.Update == UpdateCompile
	})
	return uuid.NewSHA1(hashNamespace, []byte(canonical)).String()
}

func (m *manager) Hash() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hash()
}

func (m *manager) ProgramKey() ProgramKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ProgramKey{Hash: m.hash(), Mode: m.mode()}
}

func (m *manager) SetGradient(layer int, stops []common.GradientStop) error {
	if layer < 0 || layer >= shader.GradientLayers {
		return errors.Wrapf(ErrInvalidLayer, "layer %d", layer)
	}
	sorted := make([]common.GradientStop, len(stops))
	copy(sorted, stops)
	for i := range sorted {
		sorted[i].Position = common.Clamp(sorted[i].Position, 0, 1)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })
	if len(sorted) > common.MaxGradientStops {
		m.logger.Warn("dropping gradient stops", zap.Int("layer", layer), zap.Int("stops", len(sorted)),
			zap.Int("max", common.MaxGradientStops))
		sorted = sorted[:common.MaxGradientStops]
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.gradients[layer] = sorted
	return nil
}

func (m *manager) Gradient(layer int) []common.GradientStop {
	if layer < 0 || layer >= shader.GradientLayers {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]common.GradientStop, len(m.gradients[layer]))
	copy(out, m.gradients[layer])
	return out
}
