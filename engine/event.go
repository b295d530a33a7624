package engine

import "github.com/Carmen-Shannon/oxy-fractal/engine/bucket"

// Event is a notification delivered to the registered listener on the render goroutine after each tick.
type Event interface {
	isEvent()
}

// IsCompiling reports the busy indicator. Message is empty when Compiling is false.
type IsCompiling struct {
	Compiling bool
	Message   string
}

// CompileTime reports the wall time of a finished compile.
type CompileTime struct {
	Seconds float64
}

// ShaderCode carries the assembled source of the newly installed program.
type ShaderCode struct {
	Source string
}

// CompileFailed reports a compile error. The previous program stays installed.
type CompileFailed struct {
	Err error
}

// BucketStatus reports that a bucket job started or ended.
type BucketStatus struct {
	Active bool
}

// BucketProgress reports bucket job progress in percent.
type BucketProgress struct {
	Percent float32
}

// BucketDone carries the result of a finished bucket job.
type BucketDone struct {
	Result *bucket.Result
}

func (IsCompiling) isEvent()    {}
func (CompileTime) isEvent()    {}
func (ShaderCode) isEvent()     {}
func (CompileFailed) isEvent()  {}
func (BucketStatus) isEvent()   {}
func (BucketProgress) isEvent() {}
func (BucketDone) isEvent()     {}
