package input

import (
	"testing"

	"github.com/vulkan-go/glfw/v3.3/glfw"
)

type fakeSource struct {
	keys    map[glfw.Key]bool
	buttons map[glfw.MouseButton]bool
	x, y    float64
}

func newFake() *fakeSource {
	return &fakeSource{keys: map[glfw.Key]bool{}, buttons: map[glfw.MouseButton]bool{}}
}

func (f *fakeSource) Key(k glfw.Key) bool                 { return f.keys[k] }
func (f *fakeSource) MouseButton(b glfw.MouseButton) bool { return f.buttons[b] }
func (f *fakeSource) CursorPos() (float64, float64)       { return f.x, f.y }

func TestKeyEdges(t *testing.T) {
	src := newFake()
	in := New(src)

	if in.KeyDown(glfw.KeyW) || in.KeyUp(glfw.KeyW) {
		t.Fatal("no edges before any press")
	}
	src.keys[glfw.KeyW] = true
	if !in.KeyDown(glfw.KeyW) {
		t.Fatal("press edge missed")
	}
	if in.KeyUp(glfw.KeyW) {
		t.Fatal("release reported while held")
	}
	if in.KeyDown(glfw.KeyW) {
		t.Fatal("press edge repeated while held")
	}
	if !in.Key(glfw.KeyW) {
		t.Fatal("held key not reported")
	}
	src.keys[glfw.KeyW] = false
	if !in.KeyUp(glfw.KeyW) {
		t.Fatal("release edge missed")
	}
	if in.KeyUp(glfw.KeyW) {
		t.Fatal("release edge repeated")
	}
	src.keys[glfw.KeyW] = true
	in.KeyDown(glfw.KeyW)
	src.keys[glfw.KeyW] = false
	in.KeyDown(glfw.KeyW)
	src.keys[glfw.KeyW] = true
	if !in.KeyDown(glfw.KeyW) {
		t.Fatal("second press edge missed")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	src := newFake()
	in := New(src)

	src.keys[glfw.KeyW] = true
	if !in.KeyDown(glfw.KeyW) {
		t.Fatal("W press missed")
	}
	src.keys[glfw.KeyS] = true
	if !in.KeyDown(glfw.KeyS) {
		t.Fatal("S press swallowed by the held W")
	}
}

func TestMouseButtonEdges(t *testing.T) {
	src := newFake()
	in := New(src)

	src.buttons[glfw.MouseButtonLeft] = true
	if !in.MouseButtonDown(glfw.MouseButtonLeft) || in.MouseButtonDown(glfw.MouseButtonLeft) {
		t.Fatal("left press should fire exactly once")
	}
	src.buttons[glfw.MouseButtonRight] = true
	if !in.MouseButtonDown(glfw.MouseButtonRight) {
		t.Fatal("right press swallowed by the held left button")
	}
	in.MouseButtonUp(glfw.MouseButtonLeft)
	src.buttons[glfw.MouseButtonLeft] = false
	if !in.MouseButtonUp(glfw.MouseButtonLeft) {
		t.Fatal("left release missed")
	}
	if !in.MouseButton(glfw.MouseButtonRight) {
		t.Fatal("right button not held")
	}
}

func TestMouseAxes(t *testing.T) {
	src := newFake()
	in := New(src)

	src.x, src.y = 10, 10
	if in.MouseVAxis() != 0 || in.MouseHAxis() != 0 {
		t.Fatal("first sample has no motion")
	}
	src.x, src.y = 5, 20
	if got := in.MouseVAxis(); got != 1 {
		t.Fatalf("VAxis = %d, want 1", got)
	}
	if got := in.MouseHAxis(); got != -1 {
		t.Fatalf("HAxis = %d, want -1", got)
	}
	if in.MouseVAxis() != 0 || in.MouseHAxis() != 0 {
		t.Fatal("no motion since last call")
	}
	if x, y := in.MousePos(); x != 5 || y != 20 {
		t.Fatalf("MousePos = %v, %v", x, y)
	}
}
