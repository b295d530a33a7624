package window

import (
	"sync"
)

// Input tracks held keys, held mouse buttons and the pointer so the viewer can poll input once per frame instead of
// reacting to individual events. Every method is safe for concurrent use.
type Input struct {
	mu *sync.Mutex

	keys    map[uint32]bool
	buttons map[int]bool

	x, y           float32
	dragX, dragY   float32
	scroll         float32
	pointerTracked bool
}

// NewInput creates an empty input tracker.
//
// Returns:
//   - *Input: the tracker
func NewInput() *Input {
	return &Input{
		mu:      &sync.Mutex{},
		keys:    make(map[uint32]bool),
		buttons: make(map[int]bool),
	}
}

// SetKey records a key press or release.
//
// Parameters:
//   - key: the virtual key code
//   - pressed: true on press
func (in *Input) SetKey(key uint32, pressed bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if pressed {
		in.keys[key] = true
		return
	}
	delete(in.keys, key)
}

// Pressed reports whether key is held.
func (in *Input) Pressed(key uint32) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.keys[key]
}

// Axis returns -1 when only neg is held, 1 when only pos is held and 0 otherwise.
//
// Parameters:
//   - neg: key driving the axis negative
//   - pos: key driving the axis positive
//
// Returns:
//   - float32: the axis value
func (in *Input) Axis(neg, pos uint32) float32 {
	in.mu.Lock()
	defer in.mu.Unlock()
	var v float32
	if in.keys[neg] {
		v--
	}
	if in.keys[pos] {
		v++
	}
	return v
}

// SetButton records a mouse button press or release at the given pointer position.
//
// Parameters:
//   - button: the mouse button, see common.MouseButtonLeft and friends
//   - pressed: true on press
//   - x, y: pointer position in pixels
func (in *Input) SetButton(button int, pressed bool, x, y float32) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.x, in.y = x, y
	in.pointerTracked = true
	if pressed {
		in.buttons[button] = true
		return
	}
	delete(in.buttons, button)
	if len(in.buttons) == 0 {
		in.dragX, in.dragY = 0, 0
	}
}

// Held reports whether a mouse button is held.
func (in *Input) Held(button int) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.buttons[button]
}

// Move records pointer movement. Movement while any button is held accumulates into the drag delta.
//
// Parameters:
//   - x, y: pointer position in pixels
func (in *Input) Move(x, y float32) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.pointerTracked && len(in.buttons) > 0 {
		in.dragX += x - in.x
		in.dragY += y - in.y
	}
	in.x, in.y = x, y
	in.pointerTracked = true
}

// Pointer returns the last known pointer position.
func (in *Input) Pointer() (float32, float32) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.x, in.y
}

// Scroll accumulates scroll wheel movement.
func (in *Input) Scroll(delta float32) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.scroll += delta
}

// Consume returns and clears the drag and scroll deltas accumulated since the previous call.
//
// Returns:
//   - dx, dy: drag delta in pixels
//   - scroll: accumulated scroll delta
func (in *Input) Consume() (dx, dy, scroll float32) {
	in.mu.Lock()
	defer in.mu.Unlock()
	dx, dy, scroll = in.dragX, in.dragY, in.scroll
	in.dragX, in.dragY, in.scroll = 0, 0, 0
	return dx, dy, scroll
}
