package window

import (
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pkg/errors"
)

// Window provides platform windowing and input event handling for the fractal viewer.
// It satisfies renderer.Surface so the WGPU backend can present to it.
type Window interface {
	// SetUpdateCallback sets the function called each message loop iteration.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the framebuffer is resized.
	//
	// Parameters:
	//   - callback: function receiving new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetScrollCallback sets the callback for mouse scroll wheel events.
	//
	// Parameters:
	//   - callback: function receiving scroll delta (positive = up/zoom in, negative = down/zoom out)
	SetScrollCallback(callback func(delta float32))

	// SetKeyCallback sets the callback for key events. Key repeats are reported as presses.
	//
	// Parameters:
	//   - callback: function receiving the virtual key code and whether it was pressed
	SetKeyCallback(callback func(keyCode uint32, pressed bool))

	// SetMouseButtonCallback sets the callback for mouse button events.
	//
	// Parameters:
	//   - callback: function receiving the button, whether it was pressed and the pointer position
	SetMouseButtonCallback(callback func(button int, pressed bool, x, y float32))

	// SetMouseMoveCallback sets the callback for pointer movement.
	//
	// Parameters:
	//   - callback: function receiving the pointer position in pixels
	SetMouseMoveCallback(callback func(x, y float32))

	// SetTitle replaces the title bar text.
	SetTitle(title string)

	// Input returns the tracker fed by every input event before the callbacks run.
	Input() *Input

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor suitable for creating a WebGPU surface.
	// The descriptor is platform-appropriate (Windows HWND, X11 Xlib, Wayland, macOS Metal, etc.)
	// and is created by the wgpuglfw bridge from the underlying GLFW window.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform-specific surface descriptor, or nil if window is not initialized
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning returns true if the window is still active.
	IsRunning() bool

	// Close closes the window and releases platform resources.
	//
	// Returns:
	//   - error: error if the window was never opened or is already closed
	Close() error

	// ProcessMessages runs the window message loop.
	// Blocks until the window is closed. Calls the update callback each iteration.
	ProcessMessages()

	// Width returns the current framebuffer width in pixels.
	Width() int

	// Height returns the current framebuffer height in pixels.
	Height() int
}

// ErrNotOpen is returned when operating on a window that was closed or never opened.
var ErrNotOpen = errors.New("window: not open")

// engineWindow is the implementation of the Window interface.
type engineWindow struct {
	title string

	// size limits applied to interactive resizes
	maxWidth, maxHeight int
	minWidth, minHeight int

	// current framebuffer size
	width, height int

	// internalWindow holds the platform-specific window data (glfwWindow).
	internalWindow any

	input *Input

	onUpdate      func()
	onResize      func(width, height int)
	onScroll      func(delta float32)
	onKey         func(keyCode uint32, pressed bool)
	onMouseButton func(button int, pressed bool, x, y float32)
	onMouseMove   func(x, y float32)
}

var _ Window = &engineWindow{}

// NewWindow creates and opens a Window with the specified options.
// It locks the calling goroutine to its OS thread, so it must be called from the main goroutine.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the opened window
//   - error: an error if the platform window could not be created
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &engineWindow{
		title:     "oxy-fractal",
		maxWidth:  7680,
		maxHeight: 4320,
		minWidth:  320,
		minHeight: 200,
		width:     1280,
		height:    720,
		input:     NewInput(),
	}
	for _, opt := range options {
		opt(w)
	}
	w.width, w.height = clampSize(w.width, w.height, w.minWidth, w.minHeight, w.maxWidth, w.maxHeight)
	if err := newPlatformWindow(w); err != nil {
		return nil, errors.Wrap(err, "create platform window")
	}
	return w, nil
}

// clampSize bounds a requested size by the limits. A limit of zero or less is ignored.
func clampSize(width, height, minWidth, minHeight, maxWidth, maxHeight int) (int, int) {
	if minWidth > 0 {
		width = max(width, minWidth)
	}
	if minHeight > 0 {
		height = max(height, minHeight)
	}
	if maxWidth > 0 {
		width = min(width, maxWidth)
	}
	if maxHeight > 0 {
		height = min(height, maxHeight)
	}
	return width, height
}

func (w *engineWindow) SetUpdateCallback(callback func()) {
	w.onUpdate = callback
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetScrollCallback(callback func(delta float32)) {
	w.onScroll = callback
}

func (w *engineWindow) SetKeyCallback(callback func(keyCode uint32, pressed bool)) {
	w.onKey = callback
}

func (w *engineWindow) SetMouseButtonCallback(callback func(button int, pressed bool, x, y float32)) {
	w.onMouseButton = callback
}

func (w *engineWindow) SetMouseMoveCallback(callback func(x, y float32)) {
	w.onMouseMove = callback
}

func (w *engineWindow) SetTitle(title string) {
	w.title = title
	platformSetTitle(w, title)
}

func (w *engineWindow) Input() *Input {
	return w.input
}

// dispatchKey feeds the input tracker, then the user callback.
func (w *engineWindow) dispatchKey(key uint32, pressed bool) {
	w.input.SetKey(key, pressed)
	if w.onKey != nil {
		w.onKey(key, pressed)
	}
}

func (w *engineWindow) dispatchButton(button int, pressed bool, x, y float32) {
	w.input.SetButton(button, pressed, x, y)
	if w.onMouseButton != nil {
		w.onMouseButton(button, pressed, x, y)
	}
}

func (w *engineWindow) dispatchMove(x, y float32) {
	w.input.Move(x, y)
	if w.onMouseMove != nil {
		w.onMouseMove(x, y)
	}
}

func (w *engineWindow) dispatchScroll(delta float32) {
	w.input.Scroll(delta)
	if w.onScroll != nil {
		w.onScroll(delta)
	}
}

func (w *engineWindow) dispatchResize(width, height int) {
	// minimized windows report 0x0, keep the last usable size
	if width <= 0 || height <= 0 {
		return
	}
	w.width, w.height = width, height
	if w.onResize != nil {
		w.onResize(width, height)
	}
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *engineWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *engineWindow) Close() error {
	return platformCloseWindow(w)
}

func (w *engineWindow) ProcessMessages() {
	for w.IsRunning() {
		if succ := platformProcessMessages(w); !succ {
			break
		}

		if w.onUpdate != nil {
			w.onUpdate()
		}

		runtime.Gosched()
	}
}

func (w *engineWindow) Width() int {
	return w.width
}

func (w *engineWindow) Height() int {
	return w.height
}
