package scene

import (
	"errors"

	mgl32 "github.com/go-gl/mathgl/mgl32"
)

var ErrExtentOutOfWindow = errors.New("ui extent exceeds the window")

const DefaultUITexture = "textures/Button.png"

// UI is a screen-space textured quad.
type UI struct {
	Index     Handle
	Name      string
	Clickable bool

	Position mgl32.Vec3
	Rotate   mgl32.Vec3

	// Extent is x0, y0, x1, y1 in window pixels.
	Extent mgl32.Vec4
	// NormExtent is Extent mapped to normalized device coordinates.
	NormExtent mgl32.Vec4

	TexPath  string
	VertPath string
	FragPath string
}

// NormalizeExtent maps pixel coordinates to [-1,1] against a window of
// width x height.
func NormalizeExtent(extent mgl32.Vec4, width, height int) mgl32.Vec4 {
	hw := float32(width) / 2
	hh := float32(height) / 2
	return mgl32.Vec4{
		(extent[0] - hw) / hw,
		(extent[1] - hh) / hh,
		(extent[2] - hw) / hw,
		(extent[3] - hh) / hh,
	}
}

// HitMap resolves window pixels to the 1-based index of the clickable UI
// covering them. Later UIs win where they overlap.
type HitMap struct {
	width, height int
	cells         []uint32
}

func NewHitMap(width, height int) *HitMap {
	return &HitMap{width: width, height: height, cells: make([]uint32, width*height)}
}

// Batch writes every clickable UI of w into the map.
func (m *HitMap) Batch(w *World) {
	w.UIs.Each(func(h Handle, ui *UI) {
		if !ui.Clickable {
			return
		}
		x0, y0 := clampInt(int(ui.Extent[0]), 0, m.width), clampInt(int(ui.Extent[1]), 0, m.height)
		x1, y1 := clampInt(int(ui.Extent[2]), 0, m.width), clampInt(int(ui.Extent[3]), 0, m.height)
		for y := y0; y < y1; y++ {
			row := m.cells[y*m.width : (y+1)*m.width]
			for x := x0; x < x1; x++ {
				row[x] = uint32(h)
			}
		}
	})
}

// At returns the UI index under the cursor, or 0.
func (m *HitMap) At(x, y float64) uint32 {
	ix, iy := int(x), int(y)
	if x < 0 || y < 0 || ix >= m.width || iy >= m.height {
		return 0
	}
	return m.cells[iy*m.width+ix]
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
