package scene

import (
	"errors"
	"testing"

	mgl32 "github.com/go-gl/mathgl/mgl32"
)

func testWorld() *World {
	return NewWorld(800, 600, Shaders{
		ObjectVert: "spv/GameObject/vert.spv",
		ObjectFrag: "spv/GameObject/base.spv",
		UIVert:     "spv/UI/vert.spv",
		UIFrag:     "spv/UI/frag.spv",
	})
}

func TestVelBySecSemiImplicit(t *testing.T) {
	tr := Transpose{Velo: mgl32.Vec3{1, 2, 3}, Accel: mgl32.Vec3{0, -2, 0}}

	d := tr.VelBySec(0.5)
	if want := (mgl32.Vec3{0.5, 0.5, 1.5}); d != want {
		t.Fatalf("first delta = %v, want %v", d, want)
	}
	if want := (mgl32.Vec3{1, 1, 3}); tr.Velo != want {
		t.Fatalf("velocity after first step = %v, want %v", tr.Velo, want)
	}

	d = tr.VelBySec(0.25)
	if want := (mgl32.Vec3{0.25, 0.125, 0.75}); d != want {
		t.Fatalf("second delta = %v, want %v", d, want)
	}
	if want := (mgl32.Vec3{1, 0.5, 3}); tr.Velo != want {
		t.Fatalf("velocity after second step = %v, want %v", tr.Velo, want)
	}

	tr.Stop()
	if d := tr.VelBySec(1); d != (mgl32.Vec3{}) {
		t.Fatalf("stopped transpose moved by %v", d)
	}
}

func TestMoveKeepsColliderInLockstep(t *testing.T) {
	w := testWorld()
	g := w.CreateObject("body", "models/body.obj", "textures/body.png",
		mgl32.Vec3{5, 5, 0}, mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}, "spv/GameObject/soft.spv")
	g.AppendModel("hair", "models/hair.obj", "textures/hair.png", "")
	g.SetColliderAt(mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0.5, 1, 0.5})

	v := mgl32.Vec3{1.5, -2, 0.25}
	tr := Transpose{Velo: v}
	if err := g.Move(tr.VelBySec(1.0)); err != nil {
		t.Fatalf("Move: %v", err)
	}

	want := mgl32.Vec3{6.5, 3, 0.25}
	if g.Position != want {
		t.Fatalf("position = %v, want %v", g.Position, want)
	}
	if g.Collider.Pos != want {
		t.Fatalf("collider pos = %v, want %v", g.Collider.Pos, want)
	}
	if g.Collider.Local != (mgl32.Vec3{0, 1, 0}) {
		t.Fatalf("collider local offset changed to %v", g.Collider.Local)
	}
}

func TestMoveWithoutCollider(t *testing.T) {
	w := testWorld()
	g := w.CreateObject("sky", "models/sky.obj", "textures/sky.png", mgl32.Vec3{}, mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}, "")
	if err := g.Move(mgl32.Vec3{1, 0, 0}); !errors.Is(err, ErrNoCollider) {
		t.Fatalf("Move err = %v, want ErrNoCollider", err)
	}
	if g.Position != (mgl32.Vec3{}) {
		t.Fatalf("failed move changed position to %v", g.Position)
	}
	if err := g.DrawCollider(); !errors.Is(err, ErrNoCollider) {
		t.Fatalf("DrawCollider err = %v, want ErrNoCollider", err)
	}
}

func TestModelsAndMaterials(t *testing.T) {
	w := testWorld()
	g := w.CreateObject("body", "models/body.obj", "textures/body.png", mgl32.Vec3{}, mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}, "")
	g.AppendModel("bow", "models/bow.obj", "textures/bow.png", "spv/GameObject/glass.spv")
	g.SetColliderAt(mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0.5, 1, 0.5})
	if err := g.DrawCollider(); err != nil {
		t.Fatalf("DrawCollider: %v", err)
	}

	names := []string{}
	for _, m := range g.Models {
		names = append(names, m.Name)
	}
	if len(names) != 3 || names[0] != "body" || names[1] != "bow" || names[2] != ColliderModelName {
		t.Fatalf("models = %v", names)
	}
	if g.Models[0].FragPath != "spv/GameObject/base.spv" {
		t.Fatalf("primary material = %q, want default", g.Models[0].FragPath)
	}
	if g.Find("bow").FragPath != "spv/GameObject/glass.spv" {
		t.Fatalf("bow material = %q", g.Find("bow").FragPath)
	}
	col := g.Find(ColliderModelName)
	if col.Position != (mgl32.Vec3{0, 1, 0}) || col.Scale != (mgl32.Vec3{0.5, 1, 0.5}) {
		t.Fatalf("collider model placed at %v scale %v", col.Position, col.Scale)
	}
	if col.ObjPath != ColliderObjPath || col.VertPath != "spv/GameObject/vert.spv" {
		t.Fatalf("collider model paths = %q %q", col.ObjPath, col.VertPath)
	}
	if g.Find("missing") != nil {
		t.Fatalf("Find returned a model for an unknown name")
	}
}

func TestIsColliderAndEnter(t *testing.T) {
	w := testWorld()
	a := w.CreateObject("a", "a.obj", "a.png", mgl32.Vec3{0, 3, 0}, mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}, "")
	floor := w.CreateObject("floor", "f.obj", "f.png", mgl32.Vec3{}, mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}, "")
	bare := w.CreateObject("bare", "b.obj", "b.png", mgl32.Vec3{0, 3, 0}, mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}, "")
	a.SetCollider(mgl32.Vec3{0.5, 1, 0.5})
	floor.SetCollider(mgl32.Vec3{10, 0.5, 10})

	if a.IsCollider(bare) || bare.IsCollider(a) {
		t.Fatalf("an object without collider must never collide")
	}
	if a.OnColliderEnter(floor) {
		t.Fatalf("no contact yet")
	}
	if err := a.Move(mgl32.Vec3{0, -1.6, 0}); err != nil {
		t.Fatal(err)
	}
	if !a.IsCollider(floor) {
		t.Fatalf("expected contact at %v", a.Position)
	}
	if !a.OnColliderEnter(floor) {
		t.Fatalf("first contact frame should report enter")
	}
	if a.OnColliderEnter(floor) {
		t.Fatalf("continued contact should not report enter again")
	}
	if err := a.Move(mgl32.Vec3{0, 5, 0}); err != nil {
		t.Fatal(err)
	}
	a.OnColliderEnter(floor)
	if err := a.Move(mgl32.Vec3{0, -5, 0}); err != nil {
		t.Fatal(err)
	}
	if !a.OnColliderEnter(floor) {
		t.Fatalf("re-entering should report enter")
	}
}

func TestModelMatrixOrder(t *testing.T) {
	m := TransformMatrix(mgl32.Vec3{1, 2, 3}, mgl32.Vec3{0, 90, 0}, mgl32.Vec3{2, 2, 2})
	// Scale first, then rotate 90 degrees about y, then translate.
	got := m.Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	want := mgl32.Vec4{1, 2, 1, 1}
	if !got.ApproxEqualThreshold(want, 1e-5) {
		t.Fatalf("transformed point = %v, want %v", got, want)
	}
}
