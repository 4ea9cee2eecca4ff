package scene

import (
	"errors"
	"testing"
	"time"

	mgl32 "github.com/go-gl/mathgl/mgl32"
)

func TestArenaHandlesAreStable(t *testing.T) {
	var a Arena[string]
	s1, s2, s3 := "a", "b", "c"
	h1, h2, h3 := a.Add(&s1), a.Add(&s2), a.Add(&s3)
	if h1 != 1 || h2 != 2 || h3 != 3 {
		t.Fatalf("handles = %d %d %d, want 1 2 3", h1, h2, h3)
	}

	if got := a.Remove(h2); got != &s2 {
		t.Fatalf("Remove returned %v", got)
	}
	if a.Get(h2) != nil {
		t.Fatalf("removed handle still resolves")
	}
	if a.Remove(h2) != nil {
		t.Fatalf("double remove returned a value")
	}
	if *a.Get(h3) != "c" {
		t.Fatalf("removal shifted later handles")
	}

	s4 := "d"
	if h4 := a.Add(&s4); h4 != 4 {
		t.Fatalf("handle reused: %d", h4)
	}
	if a.Len() != 3 {
		t.Fatalf("Len = %d, want 3", a.Len())
	}
	if a.Get(NoHandle) != nil || a.Get(99) != nil {
		t.Fatalf("invalid handles must resolve to nil")
	}

	got := a.Handles()
	want := []Handle{1, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("Handles = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Handles = %v, want %v", got, want)
		}
	}
}

func TestArenaRemoveDuringEach(t *testing.T) {
	var a Arena[int]
	for i := 0; i < 4; i++ {
		v := i
		a.Add(&v)
	}
	visited := 0
	a.Each(func(h Handle, _ *int) {
		visited++
		a.Remove(h)
	})
	if visited != 4 || a.Len() != 0 {
		t.Fatalf("visited %d, %d left", visited, a.Len())
	}
	if h, v := a.First(); h != NoHandle || v != nil {
		t.Fatalf("First on empty arena = %d %v", h, v)
	}
}

func TestWorldFactories(t *testing.T) {
	w := testWorld()
	a := w.CreateObject("a", "a.obj", "a.png", mgl32.Vec3{}, mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}, "")
	b := w.CreateObject("b", "b.obj", "b.png", mgl32.Vec3{}, mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}, "")
	if a.Index != 1 || b.Index != 2 {
		t.Fatalf("object indices = %d %d", a.Index, b.Index)
	}
	if w.Objects.Get(b.Index) != b {
		t.Fatalf("object handle does not resolve to the object")
	}

	cam := w.CreateCamera(mgl32.Vec3{0, 2, 20}, mgl32.Vec3{})
	light := w.CreateLight(mgl32.Vec3{0, 1.5, 1}, mgl32.Vec3{}, mgl32.Vec3{1, 1, 1})
	if cam.Index != 0 || light.Index != 0 {
		t.Fatalf("camera/light indices = %d %d, want 0 0", cam.Index, light.Index)
	}
	if w.MainCamera() != cam || w.MainLight() != light {
		t.Fatalf("main camera/light not the first registered")
	}
	if len(w.Texels) != 8 {
		t.Fatalf("texel seed has %d floats", len(w.Texels))
	}
}

func TestCreateUI(t *testing.T) {
	w := testWorld()
	ui, err := w.CreateUI("button", true, mgl32.Vec3{}, mgl32.Vec4{0, 0, 50, 50})
	if err != nil {
		t.Fatalf("CreateUI: %v", err)
	}
	if ui.Index != 1 || ui.TexPath != DefaultUITexture || ui.VertPath != "spv/UI/vert.spv" {
		t.Fatalf("ui = %+v", ui)
	}
	want := mgl32.Vec4{-1, -1, -0.875, -250.0 / 300.0}
	if !ui.NormExtent.ApproxEqualThreshold(want, 1e-6) {
		t.Fatalf("NormExtent = %v, want %v", ui.NormExtent, want)
	}

	_, err = w.CreateUI("wide", false, mgl32.Vec3{}, mgl32.Vec4{0, 0, 801, 10})
	if !errors.Is(err, ErrExtentOutOfWindow) {
		t.Fatalf("wide ui err = %v", err)
	}
	_, err = w.CreateUI("tall", false, mgl32.Vec3{}, mgl32.Vec4{0, 0, 10, 601})
	if !errors.Is(err, ErrExtentOutOfWindow) {
		t.Fatalf("tall ui err = %v", err)
	}
	if w.UIs.Len() != 1 {
		t.Fatalf("rejected UIs were registered")
	}
}

func TestNormalizeExtentFullWindow(t *testing.T) {
	got := NormalizeExtent(mgl32.Vec4{0, 0, 800, 600}, 800, 600)
	if got != (mgl32.Vec4{-1, -1, 1, 1}) {
		t.Fatalf("full window = %v", got)
	}
	got = NormalizeExtent(mgl32.Vec4{400, 300, 400, 300}, 800, 600)
	if got != (mgl32.Vec4{}) {
		t.Fatalf("center = %v", got)
	}
}

func TestHitMap(t *testing.T) {
	w := NewWorld(100, 80, Shaders{})
	mustUI := func(name string, clickable bool, ext mgl32.Vec4) *UI {
		ui, err := w.CreateUI(name, clickable, mgl32.Vec3{}, ext)
		if err != nil {
			t.Fatal(err)
		}
		return ui
	}
	button := mgl32.Vec4{0, 0, 50, 50}
	b := mustUI("button", true, button)
	mustUI("label", false, mgl32.Vec4{0, 0, 100, 80})
	top := mustUI("top", true, mgl32.Vec4{40, 40, 60, 60})

	m := NewHitMap(100, 80)
	m.Batch(w)

	tests := []struct {
		x, y float64
		want uint32
	}{
		{10, 10, uint32(b.Index)},
		{49.9, 0, uint32(b.Index)},
		{50, 10, 0},
		{45, 45, uint32(top.Index)},
		{59, 59, uint32(top.Index)},
		{90, 70, 0},
		{-1, 10, 0},
		{10, 80, 0},
		{500, 500, 0},
	}
	for _, tt := range tests {
		if got := m.At(tt.x, tt.y); got != tt.want {
			t.Errorf("At(%v, %v) = %d, want %d", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestCameraAndLight(t *testing.T) {
	c := NewCamera(mgl32.Vec3{0, 2, 20}, mgl32.Vec3{})
	c.MoveZ(mgl32.Vec3{0, 0, -1000})
	if !c.Position.ApproxEqual(mgl32.Vec3{0, 2, 19}) {
		t.Fatalf("camera position = %v", c.Position)
	}
	c.MoveY(1000)
	if !c.Position.ApproxEqual(mgl32.Vec3{0, 3, 19}) {
		t.Fatalf("camera position after MoveY = %v", c.Position)
	}
	c.Pitch(10)
	c.Yaw(-5)
	if c.Rotation != (mgl32.Vec3{10, -5, 0}) {
		t.Fatalf("rotation = %v", c.Rotation)
	}
	eye := c.View().Mul4x1(c.Position.Vec4(1))
	if !eye.ApproxEqualThreshold(mgl32.Vec4{0, 0, 0, 1}, 1e-5) {
		t.Fatalf("camera position is not the view origin: %v", eye)
	}

	l := &Light{Position: mgl32.Vec3{0, 1.5, 1}}
	if v := l.VectorTo(mgl32.Vec3{0, 0, 3}); v != (mgl32.Vec3{0, 1.5, 2}) {
		t.Fatalf("light vector = %v", v)
	}
}

func TestClock(t *testing.T) {
	now := time.Duration(0)
	c := &Clock{now: func() time.Duration { return now }}
	now = 5 * time.Second
	c.Start()

	now += 250 * time.Millisecond
	c.Tick()
	if c.Time != 0.25 || c.Delta != 0.25 {
		t.Fatalf("after first tick time=%v delta=%v", c.Time, c.Delta)
	}

	now += 500 * time.Millisecond
	c.Tick()
	if c.Time != 0.75 || c.Delta != 0.5 {
		t.Fatalf("after second tick time=%v delta=%v", c.Time, c.Delta)
	}
}
