// Package bucket renders an image tile by tile, sampling each tile until it converges. Refine jobs sharpen the
// visible canvas in place; export jobs render at an upscaled resolution and hand back the raster with its metadata.
package bucket

import (
	"image"
	"strconv"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-fractal/common"
	"github.com/Carmen-Shannon/oxy-fractal/engine/accumulation"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	// ErrJobActive is returned by Start while another job runs.
	ErrJobActive = errors.New("bucket: a job is already running")

	// ErrInvalidConfig is returned by Start when the job configuration cannot produce tiles.
	ErrInvalidConfig = errors.New("bucket: invalid job configuration")
)

// Metadata keys added to every result.
const (
	MetaJobID     = "job_id"
	MetaMode      = "mode"
	MetaSize      = "size"
	MetaUpscale   = "upscale"
	MetaTileSize  = "tile_size"
	MetaTiles     = "tiles"
	MetaSamples   = "samples"
	MetaRenderSec = "render_seconds"
)

// Config bounds a bucket job.
type Config struct {
	// TileSize is the edge length of a tile in output pixels.
	TileSize int `yaml:"tileSize" json:"tileSize"`

	// Upscale multiplies the canvas size for export jobs. Refine jobs always render at 1x.
	Upscale int `yaml:"upscale" json:"upscale"`

	// ConvergenceThreshold commits a tile once the largest per-channel change of a sample falls below it.
	ConvergenceThreshold float32 `yaml:"convergenceThreshold" json:"convergenceThreshold"`

	// MinSamplesPerTile is the number of samples drawn before convergence is measured.
	MinSamplesPerTile uint `yaml:"minSamplesPerTile" json:"minSamplesPerTile"`

	// MaxSamplesPerTile commits a tile that has not converged.
	MaxSamplesPerTile uint `yaml:"maxSamplesPerTile" json:"maxSamplesPerTile"`

	// SamplesPerTick is the number of draws performed per Tick.
	SamplesPerTick int `yaml:"samplesPerTick" json:"samplesPerTick"`
}

// DefaultConfig returns the default job bounds.
func DefaultConfig() Config {
	return Config{
		TileSize:             128,
		Upscale:              1,
		ConvergenceThreshold: 0.002,
		MinSamplesPerTile:    8,
		MaxSamplesPerTile:    256,
		SamplesPerTick:       4,
	}
}

// normalized fills zero fields with defaults and reports whether the result is usable.
func (c Config) normalized() (Config, bool) {
	def := DefaultConfig()
	if c.Upscale <= 0 {
		c.Upscale = def.Upscale
	}
	if c.ConvergenceThreshold <= 0 {
		c.ConvergenceThreshold = def.ConvergenceThreshold
	}
	if c.MaxSamplesPerTile == 0 {
		c.MaxSamplesPerTile = def.MaxSamplesPerTile
	}
	c.MinSamplesPerTile = max(min(c.MinSamplesPerTile, c.MaxSamplesPerTile), 2)
	if c.SamplesPerTick <= 0 {
		c.SamplesPerTick = def.SamplesPerTick
	}
	return c, c.TileSize > 0
}

// Partition splits a width x height frame into row-major tiles of tileSize pixels. Edge tiles are clipped to the
// frame, so the tiles cover every pixel exactly once.
//
// Parameters:
//   - width, height: frame size in pixels
//   - tileSize: tile edge length in pixels
//
// Returns:
//   - []common.Rect: the tiles, empty if any argument is not positive
func Partition(width, height, tileSize int) []common.Rect {
	if width <= 0 || height <= 0 || tileSize <= 0 {
		return nil
	}
	cols := (width + tileSize - 1) / tileSize
	rows := (height + tileSize - 1) / tileSize
	tiles := make([]common.Rect, 0, cols*rows)
	for y := 0; y < height; y += tileSize {
		for x := 0; x < width; x += tileSize {
			tiles = append(tiles, common.Rect{X: x, Y: y, W: min(tileSize, width-x), H: min(tileSize, height-y)})
		}
	}
	return tiles
}

// Result is a finished job.
type Result struct {
	// ID is the job id.
	ID uuid.UUID

	// Export is true for export jobs.
	Export bool

	// Width and Height are the raster size.
	Width, Height int

	// Pixels holds the committed linear rgba values in row-major order.
	Pixels []float32

	// Metadata is the provenance of the render: the caller's entries plus job statistics.
	Metadata map[string]string

	// Samples is the total number of draws over all tiles.
	Samples uint64

	// Elapsed is the wall time of the job.
	Elapsed time.Duration
}

// Image tone maps the raster.
//
// Parameters:
//   - exposure: linear exposure applied before the ACES curve
//
// Returns:
//   - *image.RGBA: the display-ready image
func (r *Result) Image(exposure float32) *image.RGBA {
	return accumulation.ToneMap(r.Pixels, r.Width, r.Height, exposure)
}

// TickResult reports what a Tick did.
type TickResult struct {
	// Active is true while a job runs after this tick.
	Active bool

	// Drawn is the number of samples drawn this tick.
	Drawn int

	// Committed is true when a tile was committed this tick.
	Committed bool

	// Progress is the job progress in percent.
	Progress float32

	// Result is set on the tick that commits the last tile.
	Result *Result
}

// ViewportState is the pipeline state a job saves on Start and hands back when it ends. Changes requested while
// a job runs are made to the saved state instead of the pipeline.
type ViewportState struct {
	SampleCap    uint
	Holding      bool
	Accumulation bool
}

// viewport is the saved pipeline size and state.
type viewport struct {
	width, height int
	state         ViewportState
}

// job is the BucketJob.
type job struct {
	id       uuid.UUID
	export   bool
	cfg      Config
	width    int
	height   int
	tiles    []common.Rect
	current  int
	entered  bool
	samples  uint64
	minCount uint
	raster   []float32
	metadata map[string]string
	started  time.Time
	restore  viewport
}

// bucketRenderer is the implementation of the Renderer interface.
type bucketRenderer struct {
	mu       *sync.Mutex
	pipeline accumulation.Pipeline
	job      *job
	logger   *zap.Logger
}

// Renderer runs one bucket job at a time on an accumulation pipeline. It must be driven from the render goroutine.
type Renderer interface {
	// Start begins a job over the current pipeline size. Export jobs resize the pipeline to the upscaled size.
	//
	// Parameters:
	//   - export: true for an export job, false to refine the visible canvas
	//   - cfg: job bounds, zero fields take defaults
	//   - metadata: provenance copied into the result
	//
	// Returns:
	//   - uuid.UUID: the job id
	//   - error: ErrJobActive, ErrInvalidConfig or a resize failure
	Start(export bool, cfg Config, metadata map[string]string) (uuid.UUID, error)

	// Tick draws up to SamplesPerTick samples of the current tile and commits it once converged.
	// Without a job it does nothing.
	//
	// Parameters:
	//   - in: the program and uniforms to draw with; the region is set per tile
	//
	// Returns:
	//   - TickResult: what happened this tick
	Tick(in accumulation.FrameInput) TickResult

	// Stop aborts the running job and discards its raster.
	//
	// Returns:
	//   - bool: true if a job was running
	Stop() bool

	// Active reports whether a job runs.
	Active() bool

	// Progress returns the percentage of committed tiles, 0 without a job.
	Progress() float32

	// CurrentTile returns the tile being sampled and its index.
	CurrentTile() (common.Rect, int, bool)

	// Tiles returns a copy of the tiles of the running job.
	Tiles() []common.Rect

	// UpdateViewport applies fn to the state saved for the viewport while a job owns the pipeline. The change takes
	// effect when the job ends.
	//
	// Parameters:
	//   - fn: the change to apply
	//
	// Returns:
	//   - bool: false without a job, fn is then not called
	UpdateViewport(fn func(*ViewportState)) bool

	// Viewport returns the saved viewport state and whether a job runs.
	Viewport() (ViewportState, bool)

	// Restart discards every committed tile and samples the job again from the first tile. Used when the
	// configuration changes under a running job.
	//
	// Parameters:
	//   - metadata: entries merged over the job metadata, nil keeps it
	//
	// Returns:
	//   - bool: true if a job was running
	Restart(metadata map[string]string) bool
}

var _ Renderer = &bucketRenderer{}

// NewRenderer creates a bucket renderer sampling through p.
//
// Parameters:
//   - p: the accumulation pipeline shared with the viewport
//   - options: functional options to configure the renderer
//
// Returns:
//   - Renderer: the bucket renderer
func NewRenderer(p accumulation.Pipeline, options ...RendererBuilderOption) Renderer {
	b := &bucketRenderer{
		mu:       &sync.Mutex{},
		pipeline: p,
	}
	for _, opt := range options {
		opt(b)
	}
	if b.logger == nil {
		b.logger = common.Logger().Named("bucket")
	}
	return b
}

func (b *bucketRenderer) Start(export bool, cfg Config, metadata map[string]string) (uuid.UUID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.job != nil {
		return uuid.Nil, ErrJobActive
	}
	cfg, ok := cfg.normalized()
	if !ok {
		return uuid.Nil, errors.Wrapf(ErrInvalidConfig, "tile size %d", cfg.TileSize)
	}
	if !export {
		cfg.Upscale = 1
	}

	vw, vh := b.pipeline.Size()
	if vw == 0 || vh == 0 {
		return uuid.Nil, errors.Wrap(ErrInvalidConfig, "pipeline has no targets")
	}
	restore := viewport{
		width:  vw,
		height: vh,
		state: ViewportState{
			SampleCap:    b.pipeline.SampleCap(),
			Holding:      b.pipeline.Holding(),
			Accumulation: b.pipeline.Accumulation(),
		},
	}

	width, height := vw*cfg.Upscale, vh*cfg.Upscale
	if err := b.pipeline.Resize(width, height); err != nil {
		_ = b.pipeline.Resize(vw, vh)
		return uuid.Nil, errors.Wrapf(err, "resize pipeline to %dx%d", width, height)
	}
	b.pipeline.SetSampleCap(0)
	b.pipeline.SetHolding(false)
	b.pipeline.SetAccumulation(true)
	if err := b.pipeline.Clear(); err != nil {
		b.restore(restore, nil)
		return uuid.Nil, errors.Wrap(err, "clear pipeline")
	}

	j := &job{
		id:       uuid.New(),
		export:   export,
		cfg:      cfg,
		width:    width,
		height:   height,
		tiles:    Partition(width, height, cfg.TileSize),
		raster:   make([]float32, width*height*4),
		metadata: common.CopyMap(metadata),
		started:  time.Now(),
		restore:  restore,
	}
	b.job = j

	b.logger.Info("bucket job started",
		zap.Stringer("id", j.id),
		zap.Bool("export", export),
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Int("tiles", len(j.tiles)),
	)
	return j.id, nil
}

func (b *bucketRenderer) Tick(in accumulation.FrameInput) TickResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	j := b.job
	if j == nil {
		return TickResult{}
	}
	res := TickResult{Active: true}
	tile := j.tiles[j.current]

	if !j.entered {
		// The first sample after a reset replaces the history inside the tile, committed tiles stay untouched.
		b.pipeline.Reset()
		j.entered = true
	}

	in.Region = tile
	norm := tile.Normalized(j.width, j.height)
	for range j.cfg.SamplesPerTick {
		if !b.pipeline.Render(in) {
			break
		}
		res.Drawn++
		j.samples++

		count := b.pipeline.AccumulationCount()
		if count < j.cfg.MinSamplesPerTile && count < j.cfg.MaxSamplesPerTile {
			continue
		}
		d, ok := b.pipeline.MeasureConvergence(norm.Min, norm.Max)
		if (ok && d < j.cfg.ConvergenceThreshold) || count >= j.cfg.MaxSamplesPerTile {
			if err := b.commit(j, tile, count); err != nil {
				b.logger.Warn("tile readback failed, resampling", zap.Int("tile", j.current), zap.Error(err))
				j.entered = false
				break
			}
			res.Committed = true
			b.logger.Debug("tile committed",
				zap.Int("tile", j.current),
				zap.Uint("samples", count),
				zap.Float32("convergence", d),
			)
			j.current++
			j.entered = false
			break
		}
	}

	res.Progress = j.progress()
	if j.current >= len(j.tiles) {
		res.Result = b.finish(j)
		res.Active = false
	}
	return res
}

// commit reads the tile back from the output target into the job raster.
func (b *bucketRenderer) commit(j *job, tile common.Rect, count uint) error {
	pix, err := b.pipeline.ReadOutputRegion(tile)
	if err != nil {
		return err
	}
	if len(pix) != tile.W*tile.H*4 {
		return errors.Errorf("bucket: readback of %d values, expected %d", len(pix), tile.W*tile.H*4)
	}
	for y := range tile.H {
		row := ((tile.Y+y)*j.width + tile.X) * 4
		copy(j.raster[row:row+tile.W*4], pix[y*tile.W*4:(y+1)*tile.W*4])
	}
	if j.current == 0 || count < j.minCount {
		j.minCount = count
	}
	return nil
}

// finish builds the result and hands the pipeline back. Caller must hold the mutex.
func (b *bucketRenderer) finish(j *job) *Result {
	elapsed := time.Since(j.started)
	meta := j.metadata
	meta[MetaJobID] = j.id.String()
	meta[MetaMode] = "refine"
	if j.export {
		meta[MetaMode] = "export"
	}
	meta[MetaSize] = strconv.Itoa(j.width) + "x" + strconv.Itoa(j.height)
	meta[MetaUpscale] = strconv.Itoa(j.cfg.Upscale)
	meta[MetaTileSize] = strconv.Itoa(j.cfg.TileSize)
	meta[MetaTiles] = strconv.Itoa(len(j.tiles))
	meta[MetaSamples] = strconv.FormatUint(j.samples, 10)
	meta[MetaRenderSec] = strconv.FormatFloat(elapsed.Seconds(), 'f', 3, 64)

	if j.export {
		b.restore(j.restore, nil)
	} else {
		b.restore(j.restore, j)
	}
	b.job = nil
	b.logger.Info("bucket job finished",
		zap.Stringer("id", j.id),
		zap.Uint64("samples", j.samples),
		zap.Duration("elapsed", elapsed),
	)
	return &Result{
		ID:       j.id,
		Export:   j.export,
		Width:    j.width,
		Height:   j.height,
		Pixels:   j.raster,
		Metadata: meta,
		Samples:  j.samples,
		Elapsed:  elapsed,
	}
}

// restore gives the pipeline back to the viewport. A finished refine job leaves its raster behind as the viewport
// history, so the view keeps the refined image and later samples continue from it.
func (b *bucketRenderer) restore(v viewport, refined *job) {
	if err := b.pipeline.Resize(v.width, v.height); err != nil {
		b.logger.Error("restore viewport size", zap.Error(err))
	}
	b.pipeline.SetAccumulation(v.state.Accumulation)
	b.pipeline.SetSampleCap(v.state.SampleCap)
	b.pipeline.SetHolding(v.state.Holding)
	if refined == nil {
		b.pipeline.Reset()
		return
	}
	if err := b.pipeline.LoadHistory(refined.raster, refined.minCount); err != nil {
		b.logger.Warn("refined image not kept", zap.Error(err))
	}
}

func (b *bucketRenderer) UpdateViewport(fn func(*ViewportState)) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.job == nil {
		return false
	}
	fn(&b.job.restore.state)
	return true
}

func (b *bucketRenderer) Viewport() (ViewportState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.job == nil {
		return ViewportState{}, false
	}
	return b.job.restore.state, true
}

func (b *bucketRenderer) Restart(metadata map[string]string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	j := b.job
	if j == nil {
		return false
	}
	for k, v := range metadata {
		j.metadata[k] = v
	}
	if err := b.pipeline.Clear(); err != nil {
		b.logger.Warn("clear pipeline on restart", zap.Error(err))
	}
	clear(j.raster)
	j.current = 0
	j.entered = false
	j.samples = 0
	j.minCount = 0
	j.started = time.Now()
	b.logger.Info("bucket job restarted", zap.Stringer("id", j.id))
	return true
}

func (b *bucketRenderer) Stop() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	j := b.job
	if j == nil {
		return false
	}
	b.restore(j.restore, nil)
	b.job = nil
	b.logger.Info("bucket job stopped", zap.Stringer("id", j.id), zap.Int("committed", j.current))
	return true
}

func (b *bucketRenderer) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.job != nil
}

func (b *bucketRenderer) Progress() float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.job == nil {
		return 0
	}
	return b.job.progress()
}

func (b *bucketRenderer) CurrentTile() (common.Rect, int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.job == nil || b.job.current >= len(b.job.tiles) {
		return common.Rect{}, 0, false
	}
	return b.job.tiles[b.job.current], b.job.current, true
}

func (b *bucketRenderer) Tiles() []common.Rect {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.job == nil {
		return nil
	}
	out := make([]common.Rect, len(b.job.tiles))
	copy(out, b.job.tiles)
	return out
}

func (j *job) progress() float32 {
	if len(j.tiles) == 0 {
		return 100
	}
	if j.current >= len(j.tiles) {
		return 100
	}
	return float32(j.current) / float32(len(j.tiles)) * 100
}
