package shader

// The hash below is PCG, used by both the WGSL programs and the software backend so that the path tracer draws the
// same random sequence on either side.

// Hash returns the PCG hash of v.
func Hash(v uint32) uint32 {
	state := v*747796405 + 2891336453
	word := ((state >> ((state >> 28) + 4)) ^ state) * 277803737
	return (word >> 22) ^ word
}

// PixelSeed seeds the random sequence of one pixel and sample.
func PixelSeed(x, y, sample uint32) uint32 {
	return Hash(x ^ Hash(y^Hash(sample)))
}

// Random advances seed and returns a float in [0, 1).
func Random(seed *uint32) float32 {
	*seed = Hash(*seed)
	return float32(*seed>>8) / 16777216.0
}

const noiseSource = `fn pcg_hash(v: u32) -> u32 {
    let state = v * 747796405u + 2891336453u;
    let word = ((state >> ((state >> 28u) + 4u)) ^ state) * 277803737u;
    return (word >> 22u) ^ word;
}

fn pixel_seed(x: u32, y: u32, index: u32) -> u32 {
    return pcg_hash(x ^ pcg_hash(y ^ pcg_hash(index)));
}

fn random(seed: ptr<function, u32>) -> f32 {
    *seed = pcg_hash(*seed);
    return f32(*seed >> 8u) / 16777216.0;
}`

const tonemapSource = `fn aces_film(x: vec3<f32>) -> vec3<f32> {
    let a = 2.51;
    let b = 0.03;
    let c = 2.43;
    let d = 0.59;
    let e = 0.14;
    return clamp((x * (a * x + b)) / (x * (c * x + d) + e), vec3<f32>(0.0), vec3<f32>(1.0));
}

fn display(c: vec3<f32>, exposure: f32) -> vec3<f32> {
    return pow(aces_film(c * exposure), vec3<f32>(1.0 / 2.2));
}`
