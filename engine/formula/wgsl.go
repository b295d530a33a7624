package formula

import (
	"fmt"

	"github.com/chewxy/math32"
)

// ParamsWGSL is the WGSL declaration matching GPUParams.
const ParamsWGSL = `struct FormulaParams {
    a: vec4<f32>,      // power, scale, minRadius, foldLimit
    b: vec4<f32>,      // bailout, iterations
    julia: vec4<f32>,
    offset: vec4<f32>,
}`

// appendPreamble emits the constants and helpers shared by every WGSL estimator.
func appendPreamble(dst []byte) []byte {
	dst = fmt.Appendf(dst, "const DE_MAX_ITERATIONS: i32 = %d;\n", MaxIterations)
	dst = fmt.Appendf(dst, "const DE_MIN_DR: f32 = %g;\n\n", float32(MinDerivative))
	dst = append(dst, `fn de_escape(r: f32, dr_in: f32) -> vec2<f32> {
    let dr = max(dr_in, DE_MIN_DR);
    if (r <= 0.0) {
        return vec2<f32>(0.0, dr);
    }
    return vec2<f32>(0.5 * log(r) * r / dr, dr);
}

fn de_linear(r: f32, dr_in: f32) -> vec2<f32> {
    let dr = max(abs(dr_in), DE_MIN_DR);
    return vec2<f32>(r / dr, dr);
}

fn de_fmod(x: vec3<f32>, y: f32) -> vec3<f32> {
    return x - y * floor(x / y);
}

fn de_box_fold(z: vec3<f32>, limit: f32) -> vec3<f32> {
    return clamp(z, vec3<f32>(-limit), vec3<f32>(limit)) * 2.0 - z;
}

`...)
	return dst
}

// Library returns the WGSL source for the estimator of k: the FormulaParams struct, the shared helpers, the
// estimator itself and a formula_de dispatcher bound to it. The formula is fixed at program build time.
//
// Parameters:
//   - k: formula kind, unknown kinds emit the Mandelbulb
//
// Returns:
//   - string: WGSL source
func Library(k Kind) string {
	e := Lookup(k)
	dst := make([]byte, 0, 4096)
	dst = append(dst, ParamsWGSL...)
	dst = append(dst, "\n\n"...)
	dst = appendPreamble(dst)
	dst = e.AppendWGSL(dst)
	dst = fmt.Appendf(dst, "\nfn formula_de(p: vec3<f32>, fp: FormulaParams) -> vec2<f32> {\n    return %s(p, fp);\n}\n", e.FunctionName())
	return string(dst)
}

func logf(x float32) float32 { return math32.Log(x) }

func absf(x float32) float32 { return math32.Abs(x) }

func clampf(x, lo, hi float32) float32 { return max(lo, min(hi, x)) }

// fmodf is the floor based modulo used by GLSL and WGSL helpers, not the truncating math.Mod.
func fmodf(x, y float32) float32 {
	return x - y*math32.Floor(x/y)
}
