package renderer

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-fractal/common"
	"github.com/Carmen-Shannon/oxy-fractal/engine/formula"
	"github.com/Carmen-Shannon/oxy-fractal/engine/renderer/shader"
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"github.com/x448/float16"
	"go.uber.org/zap"
)

type softwareTarget struct {
	owner     *softwareRendererBackend
	width     int
	height    int
	precision Precision
	pix       []float32
}

var _ Target = &softwareTarget{}

func (t *softwareTarget) Width() int           { return t.width }
func (t *softwareTarget) Height() int          { return t.height }
func (t *softwareTarget) Precision() Precision { return t.precision }

// store writes one texel, rounding through binary16 for half precision targets.
func (t *softwareTarget) store(i int, c [4]float32) {
	if t.precision == PrecisionFloat16 {
		for k := range c {
			c[k] = float16.Fromfloat32(c[k]).Float32()
		}
	}
	copy(t.pix[i:i+4], c[:])
}

type softwareProgram struct {
	shader    shader.Shader
	estimator formula.Estimator
}

var _ Program = &softwareProgram{}

func (p *softwareProgram) Key() string           { return p.shader.Key() }
func (p *softwareProgram) Shader() shader.Shader { return p.shader }

type softwareRendererBackend struct {
	mu       *sync.Mutex
	pool     worker.DynamicWorkerPool
	workers  int
	taskID   int
	released bool
	logger   *zap.Logger
}

var _ RendererBackend = &softwareRendererBackend{}

// newSoftwareRendererBackend creates the CPU backend. Pixel rows are shaded in parallel on a dynamic worker pool.
//
// Parameters:
//   - workers: pool size, 0 selects one worker per spare CPU
//   - logger: destination for backend logs
//
// Returns:
//   - *softwareRendererBackend: the backend
func newSoftwareRendererBackend(workers int, logger *zap.Logger) *softwareRendererBackend {
	if workers <= 0 {
		workers = max(runtime.NumCPU()-1, 1)
	}
	if logger == nil {
		logger = common.Logger()
	}
	return &softwareRendererBackend{
		mu:      &sync.Mutex{},
		pool:    worker.NewDynamicWorkerPool(workers, 256, 1*time.Second),
		workers: workers,
		logger:  logger.Named("software"),
	}
}

func (b *softwareRendererBackend) Name() string {
	return BackendTypeSoftware.String()
}

func (b *softwareRendererBackend) CreateTarget(width, height int, precision Precision) (Target, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(ErrInvalidSize, "%dx%d", width, height)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return nil, ErrReleased
	}
	return &softwareTarget{
		owner:     b,
		width:     width,
		height:    height,
		precision: precision,
		pix:       make([]float32, width*height*4),
	}, nil
}

func (b *softwareRendererBackend) target(t Target) (*softwareTarget, error) {
	st, ok := t.(*softwareTarget)
	if !ok || st == nil || st.owner != b {
		return nil, ErrForeignResource
	}
	return st, nil
}

func (b *softwareRendererBackend) ReleaseTarget(t Target) {
	if st, err := b.target(t); err == nil {
		st.pix = nil
	}
}

func (b *softwareRendererBackend) ClearTarget(t Target) error {
	st, err := b.target(t)
	if err != nil {
		return err
	}
	clear(st.pix)
	return nil
}

func (b *softwareRendererBackend) CompileProgram(s shader.Shader) (Program, error) {
	if s == nil {
		return nil, errors.New("software: nil shader")
	}
	if s.ShaderType() != shader.ShaderTypeFragment {
		return nil, errors.Errorf("software: program %s is not a render program", s.Key())
	}
	f := s.Features()
	return &softwareProgram{shader: s, estimator: formula.Lookup(f.Formula)}, nil
}

func (b *softwareRendererBackend) ReleaseProgram(Program) {}

// TranslatedSource describes the CPU evaluation of p. The WGSL source is appended for reference.
func (b *softwareRendererBackend) TranslatedSource(p Program) string {
	sp, ok := p.(*softwareProgram)
	if !ok || sp == nil {
		return ""
	}
	f := sp.shader.Features()
	var sb strings.Builder
	fmt.Fprintf(&sb, "// software mirror of %s\n", sp.Key())
	fmt.Fprintf(&sb, "// estimator: %s (%s)\n", f.Formula, sp.estimator.FunctionName())
	fmt.Fprintf(&sb, "// mode: %s, steps: %d, bounces: %d\n", f.Mode, f.MaxSteps, f.Bounces)
	sb.WriteString(sp.shader.Source())
	return sb.String()
}

func (b *softwareRendererBackend) Draw(req DrawRequest) error {
	prog, ok := req.Program.(*softwareProgram)
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
		return errors.New("software: history and destination must differ")
	}
	if dest.width != hist.width || dest.height != hist.height {
		return errors.Wrapf(ErrSizeMismatch, "%dx%d vs %dx%d", dest.width, dest.height, hist.width, hist.height)
	}

	region := clipRegion(req.Region, dest.width, dest.height)
	if region.Empty() {
		return nil
	}

	u := req.Uniforms
	ps := newPixelShader(&u, prog.shader.Features(), prog.estimator)
	weight := u.Accum[2]

	b.parallelRows(region, func(y int) {
		for x := region.X; x < region.X+region.W; x++ {
			c := ps.shade(x, y)
			i := (y*dest.width + x) * 4
			prev := hist.pix[i : i+4]
			dest.store(i, [4]float32{
				prev[0]*(1-weight) + c[0]*weight,
				prev[1]*(1-weight) + c[1]*weight,
				prev[2]*(1-weight) + c[2]*weight,
				prev[3]*(1-weight) + weight,
			})
		}
	})
	return nil
}

// parallelRows runs fn for every row of region, spreading contiguous row bands over the worker pool.
func (b *softwareRendererBackend) parallelRows(region common.Rect, fn func(y int)) {
	bands := min(region.H, b.workers*4)
	rowsPerBand := (region.H + bands - 1) / bands

	b.mu.Lock()
	var wg sync.WaitGroup
	for y0 := region.Y; y0 < region.Y+region.H; y0 += rowsPerBand {
		y1 := min(y0+rowsPerBand, region.Y+region.H)
		wg.Add(1)
		id := b.taskID
		b.taskID++
		b.pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				for y := y0; y < y1; y++ {
					fn(y)
				}
				return nil, nil
			},
		})
	}
	b.mu.Unlock()
	wg.Wait()
}

func (b *softwareRendererBackend) Diff(a, c Target, region common.NormRect) (float32, error) {
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

	w, h := float32(ta.width), float32(ta.height)
	var worst float32
	for gy := range shader.ProbeSize {
		fy := (float32(gy) + 0.5) / shader.ProbeSize
		py := int(common.Clamp(math32.Floor((region.Min[1]+(region.Max[1]-region.Min[1])*fy)*h), 0, h-1))
		for gx := range shader.ProbeSize {
			fx := (float32(gx) + 0.5) / shader.ProbeSize
			px := int(common.Clamp(math32.Floor((region.Min[0]+(region.Max[0]-region.Min[0])*fx)*w), 0, w-1))
			i := (py*ta.width + px) * 4
			for k := range 3 {
				worst = max(worst, math32.Abs(ta.pix[i+k]-tb.pix[i+k]))
			}
		}
	}
	return worst, nil
}

func (b *softwareRendererBackend) ReadRegion(t Target, r common.Rect) ([]float32, error) {
	st, err := b.target(t)
	if err != nil {
		return nil, err
	}
	region := clipRegion(r, st.width, st.height)
	out := make([]float32, region.W*region.H*4)
	for y := range region.H {
		src := ((region.Y+y)*st.width + region.X) * 4
		copy(out[y*region.W*4:(y+1)*region.W*4], st.pix[src:src+region.W*4])
	}
	return out, nil
}

func (b *softwareRendererBackend) WritePixels(t Target, pix []float32) error {
	st, err := b.target(t)
	if err != nil {
		return err
	}
	if len(pix) != len(st.pix) {
		return errors.Wrapf(ErrSizeMismatch, "%d values for %dx%d", len(pix), st.width, st.height)
	}
	for i := 0; i < len(pix); i += 4 {
		st.store(i, [4]float32{pix[i], pix[i+1], pix[i+2], pix[i+3]})
	}
	return nil
}

func (b *softwareRendererBackend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.released {
		b.released = true
		b.logger.Debug("software backend released", zap.Int("tasks", b.taskID))
	}
}

// clipRegion resolves an empty region to the full target and clips r to the target bounds.
func clipRegion(r common.Rect, width, height int) common.Rect {
	if r.Empty() {
		return common.Rect{W: width, H: height}
	}
	x0, y0 := max(r.X, 0), max(r.Y, 0)
	x1, y1 := min(r.X+r.W, width), min(r.Y+r.H, height)
	if x1 <= x0 || y1 <= y0 {
		return common.Rect{}
	}
	return common.Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}
