package scene

import (
	mgl32 "github.com/go-gl/mathgl/mgl32"
)

// moveScale damps per-call motion deltas for cameras and lights.
const moveScale = 0.001

type Camera struct {
	Index    uint32
	Position mgl32.Vec3
	Rotation mgl32.Vec3 // degrees
	Front    mgl32.Vec3
	Up       mgl32.Vec3
}

func NewCamera(pos, rot mgl32.Vec3) *Camera {
	return &Camera{
		Position: pos,
		Rotation: rot,
		Front:    mgl32.Vec3{0, 0, -1},
		Up:       mgl32.Vec3{0, 1, 0},
	}
}

func (c *Camera) Pitch(x float32) { c.Rotation[0] += x }
func (c *Camera) Yaw(y float32)   { c.Rotation[1] += y }
func (c *Camera) Roll(z float32)  { c.Rotation[2] += z }

func (c *Camera) MoveX(delta mgl32.Vec3) { c.Position = c.Position.Add(delta.Mul(moveScale)) }
func (c *Camera) MoveZ(delta mgl32.Vec3) { c.Position = c.Position.Add(delta.Mul(moveScale)) }

func (c *Camera) MoveY(delta float32) {
	c.Position = c.Position.Add(c.Up.Mul(delta * moveScale))
}

// View looks from the camera along Front.
func (c *Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position, c.Position.Add(c.Front), mgl32.Vec3{0, 1, 0})
}

// EulerMatrices returns the pitch, yaw and roll rotations of the camera.
func (c *Camera) EulerMatrices() (pitch, yaw, roll mgl32.Mat4) {
	return mgl32.HomogRotate3DX(mgl32.DegToRad(c.Rotation[0])),
		mgl32.HomogRotate3DY(mgl32.DegToRad(c.Rotation[1])),
		mgl32.HomogRotate3DZ(mgl32.DegToRad(c.Rotation[2]))
}

type Light struct {
	Index    uint32
	Position mgl32.Vec3
	Rotation mgl32.Vec3
	Color    mgl32.Vec3
}

func (l *Light) Pitch(x float32) { l.Rotation[0] += x }
func (l *Light) Yaw(y float32)   { l.Rotation[1] += y }
func (l *Light) Roll(z float32)  { l.Rotation[2] += z }

func (l *Light) Move(delta mgl32.Vec3)   { l.Position = l.Position.Add(delta.Mul(moveScale)) }
func (l *Light) Rotate(delta mgl32.Vec3) { l.Rotation = l.Rotation.Add(delta.Mul(moveScale)) }

// VectorTo is the shading light vector for an object at pos: light minus
// object with z flipped.
func (l *Light) VectorTo(pos mgl32.Vec3) mgl32.Vec3 {
	v := l.Position.Sub(pos)
	v[2] = -v[2]
	return v
}
