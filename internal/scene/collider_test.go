package scene

import (
	"testing"

	mgl32 "github.com/go-gl/mathgl/mgl32"
)

func box(pos, size mgl32.Vec3) *ColliderBox {
	c := &ColliderBox{}
	c.SetSize3D(pos, mgl32.Vec3{}, size)
	return c
}

func TestIsCollision3D(t *testing.T) {
	unit := mgl32.Vec3{1, 1, 1}
	tests := []struct {
		name string
		a, b *ColliderBox
		want bool
	}{
		{"separated on x", box(mgl32.Vec3{0, 0, 0}, unit), box(mgl32.Vec3{3, 0, 0}, unit), false},
		{"overlap on x", box(mgl32.Vec3{0, 0, 0}, unit), box(mgl32.Vec3{1.5, 0, 0}, unit), true},
		{"touching faces", box(mgl32.Vec3{0, 0, 0}, unit), box(mgl32.Vec3{2, 0, 0}, unit), true},
		{"separated on y", box(mgl32.Vec3{0, 0, 0}, unit), box(mgl32.Vec3{0, 3, 0}, unit), false},
		{"separated on z", box(mgl32.Vec3{0, 0, 0}, unit), box(mgl32.Vec3{0, 0, -2.5}, unit), false},
		{"y axis uses y position", box(mgl32.Vec3{10, 0, 0}, unit), box(mgl32.Vec3{10, 0, 0}, unit), true},
		{"thin floor", box(mgl32.Vec3{0, 0.9, 0}, mgl32.Vec3{0.5, 1, 0.5}), box(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{10, 0.5, 10}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.IsCollision3D(tt.b); got != tt.want {
				t.Fatalf("a vs b = %v, want %v", got, tt.want)
			}
			if got := tt.b.IsCollision3D(tt.a); got != tt.want {
				t.Fatalf("b vs a = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsCollision3DReflexive(t *testing.T) {
	for _, c := range []*ColliderBox{
		box(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 1, 1}),
		box(mgl32.Vec3{-4, 7, 2}, mgl32.Vec3{0.1, 3, 0.5}),
		{Pos: mgl32.Vec3{1, 1, 1}, Local: mgl32.Vec3{0, 5, 0}, Size: mgl32.Vec3{0, 0, 0}},
	} {
		if !c.IsCollision3D(c) {
			t.Fatalf("box %+v does not collide with itself", c)
		}
	}
}

func TestIsCollision3DLocalOffset(t *testing.T) {
	a := &ColliderBox{}
	a.SetSize3D(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 5, 0}, mgl32.Vec3{1, 1, 1})
	b := box(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 1, 1})
	if a.IsCollision3D(b) {
		t.Fatalf("offset box should clear the origin box")
	}
	c := box(mgl32.Vec3{0, 5.5, 0}, mgl32.Vec3{1, 1, 1})
	if !a.IsCollision3D(c) {
		t.Fatalf("offset box should hit a box at its shifted center")
	}
	if a.IsCollision3D(nil) {
		t.Fatalf("nil target must not collide")
	}
}

func TestIsCollision2DIgnoresZ(t *testing.T) {
	a := box(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 1, 1})
	b := box(mgl32.Vec3{0.5, 0.5, 50}, mgl32.Vec3{1, 1, 1})
	if !a.IsCollision2D(b) {
		t.Fatalf("2D test should ignore z")
	}
	if a.IsCollision3D(b) {
		t.Fatalf("3D test should see the z gap")
	}
	c := box(mgl32.Vec3{10, 0, 0}, mgl32.Vec3{1, 1, 1})
	if !c.IsCollision2D(c) {
		t.Fatalf("2D test must be reflexive away from the origin")
	}
}
