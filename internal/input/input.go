// Package input turns polled window state into per-frame key and mouse
// events.
package input

import (
	"github.com/vulkan-go/glfw/v3.3/glfw"
)

// Source is the polled device state. *glfw.Window satisfies it through
// WindowSource.
type Source interface {
	Key(k glfw.Key) bool
	MouseButton(b glfw.MouseButton) bool
	CursorPos() (x, y float64)
}

type windowSource struct{ w *glfw.Window }

// WindowSource polls a glfw window.
func WindowSource(w *glfw.Window) Source { return windowSource{w} }

func (s windowSource) Key(k glfw.Key) bool { return s.w.GetKey(k) == glfw.Press }

func (s windowSource) MouseButton(b glfw.MouseButton) bool {
	return s.w.GetMouseButton(b) == glfw.Press
}

func (s windowSource) CursorPos() (float64, float64) { return s.w.GetCursorPos() }

// Input reports press and release edges. Each key and button keeps its own
// edge state, so the Down and Up queries of different keys never interfere.
// The edge queries are meant to be called once per frame per key.
type Input struct {
	src Source

	keyDown, keyUp map[glfw.Key]bool
	btnDown, btnUp map[glfw.MouseButton]bool

	vPrev, hPrev float64
	vInit, hInit bool
}

func New(src Source) *Input {
	return &Input{
		src:     src,
		keyDown: make(map[glfw.Key]bool),
		keyUp:   make(map[glfw.Key]bool),
		btnDown: make(map[glfw.MouseButton]bool),
		btnUp:   make(map[glfw.MouseButton]bool),
	}
}

// KeyDown is true on the first poll that sees k pressed.
func (in *Input) KeyDown(k glfw.Key) bool {
	return pressEdge(in.keyDown, k, in.src.Key(k))
}

// Key is true while k is held.
func (in *Input) Key(k glfw.Key) bool { return in.src.Key(k) }

// KeyUp is true on the first poll that sees k released after a press.
func (in *Input) KeyUp(k glfw.Key) bool {
	return releaseEdge(in.keyUp, k, in.src.Key(k))
}

func (in *Input) MouseButtonDown(b glfw.MouseButton) bool {
	return pressEdge(in.btnDown, b, in.src.MouseButton(b))
}

func (in *Input) MouseButton(b glfw.MouseButton) bool { return in.src.MouseButton(b) }

func (in *Input) MouseButtonUp(b glfw.MouseButton) bool {
	return releaseEdge(in.btnUp, b, in.src.MouseButton(b))
}

func (in *Input) MousePos() (x, y float64) { return in.src.CursorPos() }

// MouseVAxis is the sign of the vertical cursor motion since its last call.
func (in *Input) MouseVAxis() int {
	_, y := in.src.CursorPos()
	d := axis(in.vPrev, y, in.vInit)
	in.vPrev, in.vInit = y, true
	return d
}

// MouseHAxis is the sign of the horizontal cursor motion since its last call.
func (in *Input) MouseHAxis() int {
	x, _ := in.src.CursorPos()
	d := axis(in.hPrev, x, in.hInit)
	in.hPrev, in.hInit = x, true
	return d
}

func pressEdge[K comparable](state map[K]bool, k K, pressed bool) bool {
	was := state[k]
	state[k] = pressed
	return pressed && !was
}

func releaseEdge[K comparable](state map[K]bool, k K, pressed bool) bool {
	was := state[k]
	state[k] = pressed
	return !pressed && was
}

func axis(prev, cur float64, init bool) int {
	switch {
	case !init:
		return 0
	case cur > prev:
		return 1
	case cur < prev:
		return -1
	}
	return 0
}
