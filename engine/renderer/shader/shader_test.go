package shader

import (
	"strings"
	"testing"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-fractal/engine/formula"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnnotation(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    AnnotationType
		wantErr bool
	}{
		{"plain code", "let x = 1.0;", "", false},
		{"plain comment", "// just a comment", "", false},
		{"include", "//@oxy:include formula", annotationTypeInclude, false},
		{"group", "//@oxy:group 0 0 uniform u frame", AnnotationTypeBindingGroup, false},
		{"define", "  //@oxy:define MAX_STEPS i32", annotationTypeDefine, false},
		{"if", "//@oxy:if !FOG", annotationTypeIf, false},
		{"endif", "//@oxy:endif", annotationTypeEndIf, false},
		{"unknown chunk", "//@oxy:include lights", "", true},
		{"bad group number", "//@oxy:group x 0 uniform u frame", "", true},
		{"bad define type", "//@oxy:define N vec3", "", true},
		{"unknown type", "//@oxy:provider camera", "", true},
		{"empty", "//@oxy:", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := parseAnnotation(tt.line, 3)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.want == "" {
				assert.Nil(t, a)
				return
			}
			require.NotNil(t, a)
			assert.Equal(t, tt.want, a.Type)
			assert.Equal(t, 3, a.Line)
		})
	}
}

func TestProcessConditionals(t *testing.T) {
	src := strings.Join([]string{
		"a",
		"//@oxy:if ONE",
		"b",
		"//@oxy:if !TWO",
		"c",
		"//@oxy:else",
		"d",
		"//@oxy:endif",
		"//@oxy:else",
		"e",
		"//@oxy:endif",
		"f",
	}, "\n")

	pp := NewPreProcessor()
	out, err := pp.Process(src, Definitions{Flags: map[string]bool{"ONE": true}})
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc\nf", out)

	out, err = pp.Process(src, Definitions{Flags: map[string]bool{"ONE": true, "TWO": true}})
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nd\nf", out)

	out, err = pp.Process(src, Definitions{})
	require.NoError(t, err)
	assert.Equal(t, "a\ne\nf", out)
}

func TestProcessErrors(t *testing.T) {
	pp := NewPreProcessor()
	_, err := pp.Process("//@oxy:if A\nx", Definitions{})
	assert.Error(t, err)
	_, err = pp.Process("//@oxy:endif", Definitions{})
	assert.Error(t, err)
	_, err = pp.Process("//@oxy:if A\n//@oxy:else\n//@oxy:else\n//@oxy:endif", Definitions{})
	assert.Error(t, err)
	_, err = pp.Process("//@oxy:define N i32", Definitions{})
	assert.Error(t, err)
	_, err = pp.Process("//@oxy:define N i32", Definitions{Constants: map[string]string{"N": "1.5"}})
	assert.Error(t, err)
	_, err = pp.Process("//@oxy:group 0 0 uniform n noise", Definitions{})
	assert.Error(t, err, "noise declares no bindable type")
}

func TestProcessDefinesAndGroups(t *testing.T) {
	pp := NewPreProcessor()
	out, err := pp.Process("//@oxy:define A i32\n//@oxy:define B f32\n//@oxy:define C u32\n//@oxy:group 1 2 uniform cam camera",
		Definitions{Constants: map[string]string{"A": "7", "B": "2", "C": "64"}})
	require.NoError(t, err)
	assert.Contains(t, out, "const A: i32 = 7;")
	assert.Contains(t, out, "const B: f32 = 2.0;")
	assert.Contains(t, out, "const C: u32 = 64u;")
	assert.Contains(t, out, "@group(1) @binding(2) var<uniform> cam: CameraUniform;")

	decls := pp.Declarations()
	require.Len(t, decls, 1)
	assert.Equal(t, 1, *decls[0].Group)
	assert.Equal(t, 2, *decls[0].Binding)
}

func TestRaymarchShaderAssembly(t *testing.T) {
	for _, k := range formula.Kinds() {
		f := DefaultFeatures()
		f.Formula = k
		s, err := NewRaymarchShader(f)
		require.NoError(t, err, k.String())

		src := s.Source()
		assert.NotContains(t, src, "@oxy:")
		assert.Contains(t, src, "fn "+formula.Lookup(k).FunctionName()+"(")
		assert.Contains(t, src, "const MAX_STEPS: i32 = 128;")
		assert.Contains(t, src, "shade_direct(u.camera.high.xyz")
		assert.NotContains(t, src, "shade_path(u.camera.high.xyz")
		assert.Equal(t, "fs_main", s.EntryPoint())
		assert.Equal(t, "vs_main", s.StageEntryPoint(ShaderTypeVertex))
		assert.Equal(t, f.Normalized(), s.Features())
	}
}

func TestRaymarchShaderFlags(t *testing.T) {
	f := DefaultFeatures()
	f.Mode = RenderModePathTraced
	f.Shadows = false
	f.Fog = true
	f.Bounces = 3
	s, err := NewRaymarchShader(f)
	require.NoError(t, err)
	src := s.Source()
	assert.Contains(t, src, "shade_path(u.camera.high.xyz")
	assert.Contains(t, src, "const BOUNCES: i32 = 3;")
	assert.NotContains(t, src, "shadow = soft_shadow(")
	assert.Contains(t, src, "1.0 - exp(-u.shading.w * m.t)")
	assert.Contains(t, s.Key(), "pathtraced")
}

func TestRaymarchBindGroupLayout(t *testing.T) {
	s, err := NewRaymarchShader(DefaultFeatures())
	require.NoError(t, err)

	layouts := s.BindGroupLayoutDescriptors()
	require.Contains(t, layouts, 0)
	entries := layouts[0].Entries
	require.Len(t, entries, 2)

	assert.Equal(t, wgpu.BufferBindingTypeUniform, entries[0].Buffer.Type)
	assert.Equal(t, uint64(unsafe.Sizeof(FrameUniforms{})), entries[0].Buffer.MinBindingSize)
	assert.Equal(t, uint64(528), entries[0].Buffer.MinBindingSize)
	assert.Equal(t, wgpu.TextureSampleTypeUnfilterableFloat, entries[1].Texture.SampleType)

	assert.Equal(t, "u", s.BindGroupVarName(0, 0))
	b, ok := s.BindGroupFromVarName(0, "history")
	assert.True(t, ok)
	assert.Equal(t, 1, b)
	_, ok = s.BindGroupFromVarName(0, "missing")
	assert.False(t, ok)
}

func TestConvergenceShader(t *testing.T) {
	s, err := NewConvergenceShader()
	require.NoError(t, err)
	assert.Equal(t, ShaderTypeCompute, s.ShaderType())
	assert.Equal(t, "cs_main", s.EntryPoint())
	assert.Equal(t, [3]uint32{8, 8, 1}, s.WorkgroupSize())
	assert.Contains(t, s.Source(), "const PROBE_SIZE: u32 = 64u;")

	entries := s.BindGroupLayoutDescriptors()[0].Entries
	require.Len(t, entries, 4)
	assert.Equal(t, wgpu.BufferBindingTypeStorage, entries[2].Buffer.Type)
	assert.Equal(t, uint64(4), entries[2].Buffer.MinBindingSize)
	assert.Equal(t, uint64(unsafe.Sizeof(ProbeUniforms{})), entries[3].Buffer.MinBindingSize)
}

func TestPresentShader(t *testing.T) {
	s, err := NewPresentShader()
	require.NoError(t, err)
	assert.Contains(t, s.Source(), "fn aces_film(")
	assert.Equal(t, uint64(16), s.BindGroupLayoutDescriptors()[0].Entries[1].Buffer.MinBindingSize)
}

func TestFeaturesNormalized(t *testing.T) {
	f := Features{Formula: formula.Kind(99), Mode: RenderMode(5), MaxSteps: 100000, Bounces: -2}.Normalized()
	assert.Equal(t, formula.KindMandelbulb, f.Formula)
	assert.Equal(t, RenderModeDirect, f.Mode)
	assert.Equal(t, MaxMarchSteps, f.MaxSteps)
	assert.Equal(t, 0, f.Bounces)

	a, b := DefaultFeatures(), DefaultFeatures()
	assert.Equal(t, a.Key(), b.Key())
	b.Fog = true
	assert.NotEqual(t, a.Key(), b.Key())
}

func TestParseRenderMode(t *testing.T) {
	m, ok := ParseRenderMode("PathTraced")
	assert.True(t, ok)
	assert.Equal(t, RenderModePathTraced, m)
	m, ok = ParseRenderMode("bogus")
	assert.False(t, ok)
	assert.Equal(t, RenderModeDirect, m)
}

func TestRandomRange(t *testing.T) {
	seed := PixelSeed(3, 4, 5)
	again := PixelSeed(3, 4, 5)
	assert.Equal(t, seed, again)
	assert.NotEqual(t, seed, PixelSeed(3, 4, 6))
	for range 1000 {
		v := Random(&seed)
		assert.GreaterOrEqual(t, v, float32(0))
		assert.Less(t, v, float32(1))
	}
}

func TestStripComments(t *testing.T) {
	src := "a // line\n/* block /* nested */ still */b\nc"
	assert.Equal(t, "a \nb\nc", stripComments(src))
}
