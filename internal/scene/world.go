// Package scene holds the CPU side of the engine: entity registries,
// transforms, colliders and the routine lifecycle.
package scene

import (
	"fmt"

	mgl32 "github.com/go-gl/mathgl/mgl32"
)

// Shaders are the default shader paths new entities start with.
type Shaders struct {
	ObjectVert string
	ObjectFrag string
	UIVert     string
	UIFrag     string
}

// World is the application context shared by the routine and the renderer.
type World struct {
	Width, Height int
	Shaders       Shaders

	Objects Arena[GameObject]
	UIs     Arena[UI]
	Cameras Arena[Camera]
	Lights  Arena[Light]

	// Texels seeds every model's texel buffer.
	Texels []float32
}

func NewWorld(width, height int, shaders Shaders) *World {
	return &World{
		Width:   width,
		Height:  height,
		Shaders: shaders,
		Texels:  []float32{1, 0, 0, 1, 1, 0, 0, 1},
	}
}

// CreateObject registers a GameObject with one primary model. An empty
// fragPath selects the default material.
func (w *World) CreateObject(name, objPath, texPath string, pos, rot, scale mgl32.Vec3, fragPath string) *GameObject {
	g := &GameObject{
		Name:     name,
		Position: pos,
		Rotate:   rot,
		Scale:    scale,
		vertPath: w.Shaders.ObjectVert,
		fragPath: w.Shaders.ObjectFrag,
	}
	g.AppendModel(name, objPath, texPath, fragPath)
	g.Index = w.Objects.Add(g)
	return g
}

// CreateUI registers a UI quad covering extent (x0, y0, x1, y1) in pixels.
func (w *World) CreateUI(name string, clickable bool, pos mgl32.Vec3, extent mgl32.Vec4) (*UI, error) {
	if extent[2] > float32(w.Width) || extent[3] > float32(w.Height) {
		return nil, fmt.Errorf("ui %q extent %v in %dx%d window: %w", name, extent, w.Width, w.Height, ErrExtentOutOfWindow)
	}
	ui := &UI{
		Name:       name,
		Clickable:  clickable,
		Position:   pos,
		Extent:     extent,
		NormExtent: NormalizeExtent(extent, w.Width, w.Height),
		TexPath:    DefaultUITexture,
		VertPath:   w.Shaders.UIVert,
		FragPath:   w.Shaders.UIFrag,
	}
	ui.Index = w.UIs.Add(ui)
	return ui, nil
}

func (w *World) CreateCamera(pos, rot mgl32.Vec3) *Camera {
	c := NewCamera(pos, rot)
	c.Index = uint32(w.Cameras.Add(c)) - 1
	return c
}

func (w *World) CreateLight(pos, rot, color mgl32.Vec3) *Light {
	l := &Light{Position: pos, Rotation: rot, Color: color}
	l.Index = uint32(w.Lights.Add(l)) - 1
	return l
}

// MainCamera is the first registered camera, or nil.
func (w *World) MainCamera() *Camera {
	_, c := w.Cameras.First()
	return c
}

// MainLight is the first registered light, or nil.
func (w *World) MainLight() *Light {
	_, l := w.Lights.First()
	return l
}
