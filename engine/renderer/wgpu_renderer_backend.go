package renderer

import (
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-fractal/common"
	"github.com/Carmen-Shannon/oxy-fractal/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pkg/errors"
	"github.com/x448/float16"
	"go.uber.org/zap"
)

// copyRowAlignment is the bytes-per-row alignment of texture to buffer copies.
const copyRowAlignment = 256

type wgpuTarget struct {
	owner     *wgpuRendererBackend
	width     int
	height    int
	precision Precision
	texture   *wgpu.Texture
	view      *wgpu.TextureView
}

var _ Target = &wgpuTarget{}

func (t *wgpuTarget) Width() int           { return t.width }
func (t *wgpuTarget) Height() int          { return t.height }
func (t *wgpuTarget) Precision() Precision { return t.precision }

type wgpuProgram struct {
	shader         shader.Shader
	module         *wgpu.ShaderModule
	layout         *wgpu.BindGroupLayout
	pipelineLayout *wgpu.PipelineLayout
	uniform        *wgpu.Buffer

	uniformBinding uint32
	historyBinding uint32

	// pipelines holds one render pipeline per target format, created on first use.
	pipelines map[Precision]*wgpu.RenderPipeline
}

var _ Program = &wgpuProgram{}

func (p *wgpuProgram) Key() string           { return p.shader.Key() }
func (p *wgpuProgram) Shader() shader.Shader { return p.shader }

// probeResources are the compute pipeline and buffers of the convergence probe.
type probeResources struct {
	shader   shader.Shader
	pipeline *wgpu.ComputePipeline
	layout   *wgpu.BindGroupLayout
	result   *wgpu.Buffer
	readback *wgpu.Buffer
	uniform  *wgpu.Buffer
}

// presentResources are the render pipeline and uniform of the surface pass.
type presentResources struct {
	pipeline *wgpu.RenderPipeline
	layout   *wgpu.BindGroupLayout
	uniform  *wgpu.Buffer
}

type wgpuRendererBackend struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat *wgpu.TextureFormat
	surfaceWidth  int
	surfaceHeight int
	presentMode   wgpu.PresentMode // defaults to PresentModeImmediate (Uncapped)

	probe   *probeResources
	present *presentResources

	released bool
	logger   *zap.Logger
}

var (
	_ RendererBackend  = &wgpuRendererBackend{}
	_ SurfacePresenter = &wgpuRendererBackend{}
)

// newWGPURendererBackend requests an adapter and device. With a nil surface the backend is headless.
//
// Parameters:
//   - s: the window surface, or nil
//   - forceFallbackAdapter: request the software fallback adapter
//   - logger: destination for device logs
//
// Returns:
//   - *wgpuRendererBackend: the backend
//   - error: an adapter, device or probe pipeline failure
func newWGPURendererBackend(s Surface, forceFallbackAdapter bool, logger *zap.Logger) (*wgpuRendererBackend, error) {
	runtime.LockOSThread()
	if logger == nil {
		logger = common.Logger()
	}
	w := &wgpuRendererBackend{
		mu:          &sync.Mutex{},
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeImmediate,
		logger:      logger.Named("wgpu"),
	}
	if s != nil {
		w.surface = w.instance.CreateSurface(s.SurfaceDescriptor())
	}

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    w.surface,
	})
	if err != nil {
		return nil, errors.Wrap(err, "request adapter")
	}
	w.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Fractal Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "request device")
	}
	w.device = d
	w.queue = d.GetQueue()

	if w.probe, err = w.createProbe(); err != nil {
		w.Release()
		return nil, errors.Wrap(err, "create convergence probe")
	}
	return w, nil
}

func (b *wgpuRendererBackend) Name() string {
	return BackendTypeWGPU.String()
}

func textureFormat(p Precision) wgpu.TextureFormat {
	if p == PrecisionFloat16 {
		return wgpu.TextureFormatRGBA16Float
	}
	return wgpu.TextureFormatRGBA32Float
}

func (b *wgpuRendererBackend) CreateTarget(width, height int, precision Precision) (Target, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(ErrInvalidSize, "%dx%d", width, height)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return nil, ErrReleased
	}

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Accumulation Target",
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        textureFormat(precision),
		Usage: wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding |
			wgpu.TextureUsageCopySrc | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create target texture")
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, errors.Wrap(err, "create target view")
	}
	t := &wgpuTarget{owner: b, width: width, height: height, precision: precision, texture: tex, view: view}
	if err := b.clear(t); err != nil {
		b.releaseTarget(t)
		return nil, err
	}
	return t, nil
}

func (b *wgpuRendererBackend) target(t Target) (*wgpuTarget, error) {
	wt, ok := t.(*wgpuTarget)
	if !ok || wt == nil || wt.owner != b || wt.texture == nil {
		return nil, ErrForeignResource
	}
	return wt, nil
}

func (b *wgpuRendererBackend) releaseTarget(t *wgpuTarget) {
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.texture != nil {
		t.texture.Release()
		t.texture = nil
	}
}

func (b *wgpuRendererBackend) ReleaseTarget(t Target) {
	wt, err := b.target(t)
	if err != nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.releaseTarget(wt)
}

func (b *wgpuRendererBackend) ClearTarget(t Target) error {
	wt, err := b.target(t)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clear(wt)
}

// clear runs an empty render pass that loads zero into every texel of t.
func (b *wgpuRendererBackend) clear(t *wgpuTarget) error {
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return errors.Wrap(err, "create encoder")
	}
	defer encoder.Release()
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       t.view,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{},
			},
		},
	})
	pass.End()
	return b.submit(encoder)
}

func (b *wgpuRendererBackend) submit(encoder *wgpu.CommandEncoder) error {
	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return errors.Wrap(err, "finish encoder")
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	return nil
}

// bindGroupLayouts creates the device layouts of every group declared by s, indexed by group.
func (b *wgpuRendererBackend) bindGroupLayouts(s shader.Shader) ([]*wgpu.BindGroupLayout, error) {
	descriptors := s.BindGroupLayoutDescriptors()
	maxGroup := -1
	for g := range descriptors {
		maxGroup = max(maxGroup, g)
	}
	layouts := make([]*wgpu.BindGroupLayout, maxGroup+1)
	for g, desc := range descriptors {
		layout, err := b.device.CreateBindGroupLayout(&desc)
		if err != nil {
			return nil, errors.Wrapf(err, "create bind group layout for group %d", g)
		}
		layouts[g] = layout
	}
	return layouts, nil
}

// frameUniformBinding finds the binding of the frame uniform block from the group annotations of s.
func frameUniformBinding(s shader.Shader) (uint32, bool) {
	for _, decl := range s.Declarations() {
		if decl.Type != shader.AnnotationTypeBindingGroup || decl.Binding == nil || len(decl.Args) < 3 {
			continue
		}
		if decl.Args[2] == shader.AnnotationArgFrame {
			return uint32(*decl.Binding), true
		}
	}
	return 0, false
}

func (b *wgpuRendererBackend) CompileProgram(s shader.Shader) (Program, error) {
	if s == nil || s.ShaderType() != shader.ShaderTypeFragment {
		return nil, errors.New("wgpu: raymarch program must be a render program")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return nil, ErrReleased
	}

	uniformBinding, ok := frameUniformBinding(s)
	if !ok {
		return nil, errors.Errorf("wgpu: %s declares no frame uniform", s.Key())
	}
	historyBinding, ok := s.BindGroupFromVarName(0, "history")
	if !ok {
		return nil, errors.Errorf("wgpu: %s declares no history texture", s.Key())
	}

	module, err := b.device.CreateShaderModule(s.Module())
	if err != nil {
		return nil, errors.Wrapf(err, "compile %s", s.Key())
	}
	layouts, err := b.bindGroupLayouts(s)
	if err != nil {
		module.Release()
		return nil, err
	}
	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            s.Key(),
		BindGroupLayouts: layouts,
	})
	if err != nil {
		module.Release()
		return nil, errors.Wrapf(err, "link %s", s.Key())
	}
	uniform, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: s.Key() + " Frame Uniforms",
		Size:  uint64(len(common.StructToBytes(&shader.FrameUniforms{}))),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		module.Release()
		return nil, errors.Wrap(err, "create frame uniform buffer")
	}

	p := &wgpuProgram{
		shader:         s,
		module:         module,
		layout:         layouts[0],
		pipelineLayout: pipelineLayout,
		uniform:        uniform,
		uniformBinding: uniformBinding,
		historyBinding: uint32(historyBinding),
		pipelines:      make(map[Precision]*wgpu.RenderPipeline, 2),
	}
	// Link eagerly for the full precision format so shader errors surface at compile time.
	if _, err := b.pipelineFor(p, PrecisionFloat32); err != nil {
		b.releaseProgram(p)
		return nil, err
	}
	return p, nil
}

func (b *wgpuRendererBackend) pipelineFor(p *wgpuProgram, precision Precision) (*wgpu.RenderPipeline, error) {
	if rp, ok := p.pipelines[precision]; ok {
		return rp, nil
	}
	rp, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.Key() + " Render Pipeline",
		Layout: p.pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     p.module,
			EntryPoint: p.shader.StageEntryPoint(shader.ShaderTypeVertex),
		},
		Fragment: &wgpu.FragmentState{
			Module:     p.module,
			EntryPoint: p.shader.EntryPoint(),
			Targets: []wgpu.ColorTargetState{
				{
					Format:    textureFormat(precision),
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "link %s for %s targets", p.Key(), precision)
	}
	p.pipelines[precision] = rp
	return rp, nil
}

func (b *wgpuRendererBackend) releaseProgram(p *wgpuProgram) {
	for k, rp := range p.pipelines {
		rp.Release()
		delete(p.pipelines, k)
	}
	if p.uniform != nil {
		p.uniform.Release()
		p.uniform = nil
	}
	if p.pipelineLayout != nil {
		p.pipelineLayout.Release()
		p.pipelineLayout = nil
	}
	if p.module != nil {
		p.module.Release()
		p.module = nil
	}
}

func (b *wgpuRendererBackend) ReleaseProgram(p Program) {
	wp, ok := p.(*wgpuProgram)
	if !ok || wp == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.releaseProgram(wp)
}

// TranslatedSource returns the WGSL handed to the device. wgpu-native performs the platform translation internally.
func (b *wgpuRendererBackend) TranslatedSource(p Program) string {
	if p == nil {
		return ""
	}
	return p.Shader().Module().WGSLDescriptor.Code
}

func (b *wgpuRendererBackend) Draw(req DrawRequest) error {
	prog, ok := req.Program.(*wgpuProgram)
	if !ok || prog == nil {
		return ErrForeignResource
	}
	dest, err := b.target(req.Dest)
	if err != nil {
		return err
	}
	hist, err := b.target(req.History)
	if err != nil {
		return err
	}
	if dest == hist {
		return errors.New("wgpu: history and destination must differ")
	}
	if dest.width != hist.width || dest.height != hist.height {
		return errors.Wrapf(ErrSizeMismatch, "%dx%d vs %dx%d", dest.width, dest.height, hist.width, hist.height)
	}
	region := clipRegion(req.Region, dest.width, dest.height)
	if region.Empty() {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	rp, err := b.pipelineFor(prog, dest.precision)
	if err != nil {
		return err
	}
	u := req.Uniforms
	b.queue.WriteBuffer(prog.uniform, 0, common.StructToBytes(&u))

	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  prog.Key() + " Bind Group",
		Layout: prog.layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: prog.uniformBinding, Buffer: prog.uniform, Offset: 0, Size: wgpu.WholeSize},
			{Binding: prog.historyBinding, TextureView: hist.view},
		},
	})
	if err != nil {
		return errors.Wrap(err, "create draw bind group")
	}
	defer bindGroup.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return errors.Wrap(err, "create encoder")
	}
	defer encoder.Release()

	// Pixels outside the region keep their previous value.
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:    dest.view,
				LoadOp:  wgpu.LoadOpLoad,
				StoreOp: wgpu.StoreOpStore,
			},
		},
	})
	pass.SetPipeline(rp)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.SetScissorRect(uint32(region.X), uint32(region.Y), uint32(region.W), uint32(region.H))
	pass.Draw(3, 1, 0, 0)
	pass.End()
	return b.submit(encoder)
}

func (b *wgpuRendererBackend) createProbe() (*probeResources, error) {
	s, err := shader.NewConvergenceShader()
	if err != nil {
		return nil, err
	}
	module, err := b.device.CreateShaderModule(s.Module())
	if err != nil {
		return nil, errors.Wrap(err, "compile convergence probe")
	}
	layouts, err := b.bindGroupLayouts(s)
	if err != nil {
		return nil, err
	}
	layout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            s.Key(),
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return nil, err
	}
	pipeline, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  s.Key() + " Compute Pipeline",
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: s.EntryPoint(),
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "link convergence probe")
	}
	result, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Convergence Result",
		Size:  4,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	readback, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Convergence Readback",
		Size:  4,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	uniform, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Convergence Probe",
		Size:  uint64(len(common.StructToBytes(&shader.ProbeUniforms{}))),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	return &probeResources{
		shader:   s,
		pipeline: pipeline,
		layout:   layouts[0],
		result:   result,
		readback: readback,
		uniform:  uniform,
	}, nil
}

func (b *wgpuRendererBackend) Diff(a, c Target, region common.NormRect) (float32, error) {
	ta, err := b.target(a)
	if err != nil {
		return 0, err
	}
	tb, err := b.target(c)
	if err != nil {
		return 0, err
	}
	if ta.width != tb.width || ta.height != tb.height {
		return 0, ErrSizeMismatch
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	probe := shader.ProbeUniforms{Region: [4]float32{region.Min[0], region.Min[1], region.Max[0], region.Max[1]}}
	zero := [1]uint32{}
	b.queue.WriteBuffer(b.probe.uniform, 0, common.StructToBytes(&probe))
	b.queue.WriteBuffer(b.probe.result, 0, common.SliceToBytes(zero[:]))

	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Convergence Bind Group",
		Layout: b.probe.layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: ta.view},
			{Binding: 1, TextureView: tb.view},
			{Binding: 2, Buffer: b.probe.result, Offset: 0, Size: wgpu.WholeSize},
			{Binding: 3, Buffer: b.probe.uniform, Offset: 0, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return 0, errors.Wrap(err, "create probe bind group")
	}
	defer bindGroup.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return 0, errors.Wrap(err, "create encoder")
	}
	defer encoder.Release()

	wg := b.probe.shader.WorkgroupSize()
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(b.probe.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups((shader.ProbeSize+wg[0]-1)/wg[0], (shader.ProbeSize+wg[1]-1)/wg[1], 1)
	pass.End()
	encoder.CopyBufferToBuffer(b.probe.result, 0, b.probe.readback, 0, 4)
	if err := b.submit(encoder); err != nil {
		return 0, err
	}

	raw, err := b.mapRead(b.probe.readback, 4)
	if err != nil {
		return 0, err
	}
	return common.BytesToFloat32s(raw)[0], nil
}

// mapRead maps buf for reading, blocks until the device has finished pending work and copies the contents out.
func (b *wgpuRendererBackend) mapRead(buf *wgpu.Buffer, size uint64) ([]byte, error) {
	done := false
	status := wgpu.BufferMapAsyncStatusSuccess
	err := buf.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
		done = true
	})
	if err != nil {
		return nil, errors.Wrap(err, "map readback buffer")
	}
	for !done {
		b.device.Poll(true, nil)
	}
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, errors.Errorf("map readback buffer: status %v", status)
	}
	mapped := buf.GetMappedRange(0, uint(size))
	out := make([]byte, len(mapped))
	copy(out, mapped)
	buf.Unmap()
	return out, nil
}

func (b *wgpuRendererBackend) ReadRegion(t Target, r common.Rect) ([]float32, error) {
	wt, err := b.target(t)
	if err != nil {
		return nil, err
	}
	region := clipRegion(r, wt.width, wt.height)
	if region.Empty() {
		return nil, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	texel := texelBytes(wt.precision)
	rowBytes := region.W * texel
	stride := (rowBytes + copyRowAlignment - 1) / copyRowAlignment * copyRowAlignment
	size := uint64(stride * region.H)

	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Target Readback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create readback buffer")
	}
	defer buf.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, errors.Wrap(err, "create encoder")
	}
	defer encoder.Release()
	err = encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{
			Texture:  wt.texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{X: uint32(region.X), Y: uint32(region.Y)},
			Aspect:   wgpu.TextureAspectAll,
		},
		&wgpu.ImageCopyBuffer{
			Buffer: buf,
			Layout: wgpu.TextureDataLayout{Offset: 0, BytesPerRow: uint32(stride), RowsPerImage: uint32(region.H)},
		},
		&wgpu.Extent3D{Width: uint32(region.W), Height: uint32(region.H), DepthOrArrayLayers: 1},
	)
	if err != nil {
		return nil, errors.Wrap(err, "copy target region")
	}
	if err := b.submit(encoder); err != nil {
		return nil, err
	}
	raw, err := b.mapRead(buf, size)
	if err != nil {
		return nil, err
	}

	out := make([]float32, region.W*region.H*4)
	for y := range region.H {
		row := raw[y*stride : y*stride+rowBytes]
		dst := out[y*region.W*4 : (y+1)*region.W*4]
		if wt.precision == PrecisionFloat16 {
			for i := range dst {
				dst[i] = float16.Frombits(uint16(row[i*2]) | uint16(row[i*2+1])<<8).Float32()
			}
			continue
		}
		copy(dst, common.BytesToFloat32s(row))
	}
	return out, nil
}

func (b *wgpuRendererBackend) WritePixels(t Target, pix []float32) error {
	wt, err := b.target(t)
	if err != nil {
		return err
	}
	if len(pix) != wt.width*wt.height*4 {
		return errors.Wrapf(ErrSizeMismatch, "%d values for %dx%d", len(pix), wt.width, wt.height)
	}
	var data []byte
	if wt.precision == PrecisionFloat16 {
		data = make([]byte, len(pix)*2)
		for i, v := range pix {
			h := float16.Fromfloat32(v).Bits()
			data[i*2] = byte(h)
			data[i*2+1] = byte(h >> 8)
		}
	} else {
		data = common.SliceToBytes(pix)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	err = b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{Texture: wt.texture, MipLevel: 0, Origin: wgpu.Origin3D{}, Aspect: wgpu.TextureAspectAll},
		data,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(wt.width * texelBytes(wt.precision)),
			RowsPerImage: uint32(wt.height),
		},
		&wgpu.Extent3D{Width: uint32(wt.width), Height: uint32(wt.height), DepthOrArrayLayers: 1},
	)
	return errors.Wrap(err, "upload target pixels")
}

// texelBytes is the size of one rgba texel of precision p.
func texelBytes(p Precision) int {
	if p == PrecisionFloat16 {
		return 8
	}
	return 16
}

func (b *wgpuRendererBackend) ConfigureSurface(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.surface == nil {
		return ErrNoSurface
	}
	if width <= 0 || height <= 0 {
		return errors.Wrapf(ErrInvalidSize, "surface %dx%d", width, height)
	}

	capabilities := b.surface.GetCapabilities(b.adapter)
	if len(capabilities.Formats) == 0 {
		return errors.New("wgpu: surface reports no formats")
	}
	formatChanged := b.surfaceFormat == nil || *b.surfaceFormat != capabilities.Formats[0]
	b.surfaceFormat = &capabilities.Formats[0]
	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      *b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	b.surfaceWidth, b.surfaceHeight = width, height

	if b.present == nil || formatChanged {
		p, err := b.createPresent(*b.surfaceFormat)
		if err != nil {
			return err
		}
		b.present = p
	}
	return nil
}

func (b *wgpuRendererBackend) createPresent(format wgpu.TextureFormat) (*presentResources, error) {
	s, err := shader.NewPresentShader()
	if err != nil {
		return nil, err
	}
	module, err := b.device.CreateShaderModule(s.Module())
	if err != nil {
		return nil, errors.Wrap(err, "compile present program")
	}
	layouts, err := b.bindGroupLayouts(s)
	if err != nil {
		return nil, err
	}
	layout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            s.Key(),
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return nil, err
	}
	pipeline, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  s.Key() + " Render Pipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: s.StageEntryPoint(shader.ShaderTypeVertex),
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: s.EntryPoint(),
			Targets: []wgpu.ColorTargetState{
				{Format: format, WriteMask: wgpu.ColorWriteMaskAll},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "link present program")
	}
	uniform, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Present Uniform",
		Size:  16,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	return &presentResources{pipeline: pipeline, layout: layouts[0], uniform: uniform}, nil
}

func (b *wgpuRendererBackend) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeVSync:
		b.presentMode = wgpu.PresentModeFifo
	case PresentModeUncapped:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeImmediate
	}
}

func (b *wgpuRendererBackend) PresentTarget(t Target, exposure float32) error {
	wt, err := b.target(t)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.surface == nil || b.present == nil {
		return ErrNoSurface
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return errors.Wrap(err, "acquire surface texture")
	}
	defer surfaceTexture.Release()
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		return errors.Wrap(err, "create surface view")
	}
	defer view.Release()

	params := [4]float32{float32(b.surfaceWidth), float32(b.surfaceHeight), exposure, 0}
	b.queue.WriteBuffer(b.present.uniform, 0, common.SliceToBytes(params[:]))
	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Present Bind Group",
		Layout: b.present.layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: wt.view},
			{Binding: 1, Buffer: b.present.uniform, Offset: 0, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return errors.Wrap(err, "create present bind group")
	}
	defer bindGroup.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return errors.Wrap(err, "create encoder")
	}
	defer encoder.Release()
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       view,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{A: 1},
			},
		},
	})
	pass.SetPipeline(b.present.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.Draw(3, 1, 0, 0)
	pass.End()
	if err := b.submit(encoder); err != nil {
		return err
	}
	b.surface.Present()
	return nil
}

func (b *wgpuRendererBackend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return
	}
	b.released = true

	if b.present != nil {
		b.present.uniform.Release()
		b.present.pipeline.Release()
		b.present = nil
	}
	if b.probe != nil {
		b.probe.uniform.Release()
		b.probe.readback.Release()
		b.probe.result.Release()
		b.probe.pipeline.Release()
		b.probe = nil
	}
	if b.device != nil {
		b.device.Release()
	}
	if b.adapter != nil {
		b.adapter.Release()
	}
	if b.surface != nil {
		b.surface.Release()
	}
	if b.instance != nil {
		b.instance.Release()
	}
	b.logger.Debug("wgpu backend released")
}
