package scene

import (
	mgl32 "github.com/go-gl/mathgl/mgl32"
)

// ColliderBox is an axis-aligned box. Pos follows the owning object, Local
// offsets the box from it and Size holds the half-extents.
type ColliderBox struct {
	Pos   mgl32.Vec3
	Local mgl32.Vec3
	Size  mgl32.Vec3
}

func (c *ColliderBox) SetSize3D(pos, local, size mgl32.Vec3) {
	c.Pos = pos
	c.Local = local
	c.Size = size
}

// Center is the world-space center of the box.
func (c *ColliderBox) Center() mgl32.Vec3 {
	return c.Pos.Add(c.Local)
}

// IsCollision3D reports whether both boxes overlap on all three axes.
// Touching faces count as overlap.
func (c *ColliderBox) IsCollision3D(t *ColliderBox) bool {
	if t == nil {
		return false
	}
	p, q := c.Center(), t.Center()
	for i := 0; i < 3; i++ {
		if !axisOverlap(p[i], c.Size[i], q[i], t.Size[i]) {
			return false
		}
	}
	return true
}

// IsCollision2D is IsCollision3D restricted to the X and Y axes.
func (c *ColliderBox) IsCollision2D(t *ColliderBox) bool {
	if t == nil {
		return false
	}
	p, q := c.Center(), t.Center()
	return axisOverlap(p[0], c.Size[0], q[0], t.Size[0]) &&
		axisOverlap(p[1], c.Size[1], q[1], t.Size[1])
}

func axisOverlap(p, s, t, ts float32) bool {
	return !(p+s < t-ts || p-s > t+ts)
}
