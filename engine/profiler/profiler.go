package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-fractal/common"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Profiler tracks frame rate, memory and render statistics.
// Frame and memory stats go to the log at a configurable interval, render stats are exported as prometheus metrics
// on a private registry.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	logging        bool
	logger         *zap.Logger

	registry       *prometheus.Registry
	fps            prometheus.Gauge
	heapBytes      prometheus.Gauge
	samples        prometheus.Counter
	accumulation   prometheus.Gauge
	convergence    prometheus.Gauge
	compileSeconds prometheus.Histogram
	compileErrors  prometheus.Counter
	bucketProgress prometheus.Gauge
	bucketJobs     *prometheus.CounterVec
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second and periodic logging is off.
//
// Parameters:
//   - options: functional options to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		lastTime:       time.Now(),
		updateInterval: time.Second,
		registry:       prometheus.NewRegistry(),
		fps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "oxy_fractal",
			Name:      "frames_per_second",
			Help:      "Render loop frame rate over the last interval.",
		}),
		heapBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "oxy_fractal",
			Name:      "heap_bytes",
			Help:      "Live heap bytes at the last interval.",
		}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "oxy_fractal",
			Name:      "samples_total",
			Help:      "Raymarch samples drawn.",
		}),
		accumulation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "oxy_fractal",
			Name:      "accumulation_count",
			Help:      "Samples accumulated since the last reset.",
		}),
		convergence: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "oxy_fractal",
			Name:      "convergence",
			Help:      "Largest per-channel change of the last measured sample.",
		}),
		compileSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "oxy_fractal",
			Name:      "compile_seconds",
			Help:      "Raymarch program compile time.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
		compileErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "oxy_fractal",
			Name:      "compile_errors_total",
			Help:      "Raymarch program compiles that failed.",
		}),
		bucketProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "oxy_fractal",
			Name:      "bucket_progress_percent",
			Help:      "Progress of the running bucket job.",
		}),
		bucketJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oxy_fractal",
			Name:      "bucket_jobs_total",
			Help:      "Bucket jobs by outcome.",
		}, []string{"outcome"}),
	}
	for _, opt := range options {
		opt(p)
	}
	if p.logger == nil {
		p.logger = common.Logger().Named("profiler")
	}
	p.registry.MustRegister(
		p.fps, p.heapBytes, p.samples, p.accumulation, p.convergence,
		p.compileSeconds, p.compileErrors, p.bucketProgress, p.bucketJobs,
	)
	return p
}

// Registry returns the registry holding the render metrics.
func (p *Profiler) Registry() *prometheus.Registry {
	return p.registry
}

// SetLogging enables or disables the periodic stats log.
func (p *Profiler) SetLogging(enabled bool) {
	p.logging = enabled
}

// Tick should be called once per frame to track frame timing.
// Updates the frame gauges and logs statistics when the update interval has elapsed.
// Statistics include: FPS, heap usage, allocation rate, GC count/pause times, total memory.
//
// Returns:
//   - bool: true if an interval elapsed this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)

	if elapsed < p.updateInterval {
		return false
	}
	fps := float64(p.frameCount) / elapsed.Seconds()

	runtime.ReadMemStats(&p.memStats)
	// Alloc: live heap, TotalAlloc: cumulative (tracks churn), Sys: process footprint
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024

	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		// PauseNs is a circular buffer of last 256 GC pauses
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			maxPauseUs = max(maxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	p.fps.Set(fps)
	p.heapBytes.Set(float64(p.memStats.Alloc))
	if p.logging {
		p.logger.Info("frame stats",
			zap.Float64("fps", fps),
			zap.Float64("heap_mb", allocMB),
			zap.Float64("alloc_rate_mb_s", allocRateMB),
			zap.Uint32("gc", gcCount),
			zap.Uint64("gc_last_us", lastPauseUs),
			zap.Uint64("gc_max_us", maxPauseUs),
			zap.Float64("sys_mb", sysMB),
		)
	}

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// ObserveSample records a drawn sample and the accumulation count after it.
func (p *Profiler) ObserveSample(count uint) {
	p.samples.Inc()
	p.accumulation.Set(float64(count))
}

// ObserveConvergence records a convergence measurement.
func (p *Profiler) ObserveConvergence(d float32) {
	p.convergence.Set(float64(d))
}

// ObserveCompile records a finished compile. A failed compile only counts as an error.
func (p *Profiler) ObserveCompile(seconds float64, failed bool) {
	if failed {
		p.compileErrors.Inc()
		return
	}
	p.compileSeconds.Observe(seconds)
}

// ObserveBucket records bucket job progress in percent.
func (p *Profiler) ObserveBucket(progress float32) {
	p.bucketProgress.Set(float64(progress))
}

// ObserveBucketEnd records the outcome of a bucket job, "done" or "stopped".
func (p *Profiler) ObserveBucketEnd(outcome string) {
	p.bucketJobs.WithLabelValues(outcome).Inc()
}
