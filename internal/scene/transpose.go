package scene

import (
	mgl32 "github.com/go-gl/mathgl/mgl32"
)

// Transpose integrates motion with semi-implicit Euler.
type Transpose struct {
	Velo  mgl32.Vec3
	Accel mgl32.Vec3
}

// VelBySec advances the velocity by dt and returns the position delta for
// the same step. The caller applies the delta.
func (t *Transpose) VelBySec(dt float32) mgl32.Vec3 {
	t.Velo = t.Velo.Add(t.Accel.Mul(dt))
	return t.Velo.Mul(dt)
}

// Stop clears both velocity and acceleration.
func (t *Transpose) Stop() {
	t.Velo = mgl32.Vec3{}
	t.Accel = mgl32.Vec3{}
}
