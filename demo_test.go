package main

import (
	"errors"
	"testing"

	mgl32 "github.com/go-gl/mathgl/mgl32"
	"github.com/vulkan-go/glfw/v3.3/glfw"

	"github.com/hellhand/kube-engine/internal/input"
	"github.com/hellhand/kube-engine/internal/scene"
)

type keys map[glfw.Key]bool

func (k keys) Key(key glfw.Key) bool             { return k[key] }
func (k keys) MouseButton(glfw.MouseButton) bool { return false }
func (k keys) CursorPos() (float64, float64)     { return 0, 0 }

type fakeGPU struct {
	objects, uis []scene.Handle
	failOn       scene.Handle
}

func (f *fakeGPU) InitObject(h scene.Handle) error {
	if h == f.failOn {
		return errors.New("upload failed")
	}
	f.objects = append(f.objects, h)
	return nil
}

func (f *fakeGPU) InitUI(h scene.Handle) error {
	f.uis = append(f.uis, h)
	return nil
}

func newTestDemo(t *testing.T, k keys) (*demo, *scene.World) {
	t.Helper()
	w := scene.NewWorld(800, 600, scene.Shaders{ObjectVert: "v.spv", ObjectFrag: "f.spv", UIVert: "uv.spv", UIFrag: "uf.spv"})
	d := newDemo(input.New(k))
	if err := d.Awake(w); err != nil {
		t.Fatal(err)
	}
	return d, w
}

func TestDemoAwake(t *testing.T) {
	d, w := newTestDemo(t, keys{})

	if w.Objects.Len() != 4 || w.UIs.Len() != 1 {
		t.Fatalf("objects %d uis %d, want 4 and 1", w.Objects.Len(), w.UIs.Len())
	}
	if got := len(d.character.Models); got != 5 {
		t.Errorf("character has %d models, want body, bow, clothes, hair and collider", got)
	}
	if d.character.Find(scene.ColliderModelName) == nil || d.floor.Find(scene.ColliderModelName) == nil {
		t.Error("colliders are not drawn")
	}
	if got := d.skybox.Models[0].Cull; got != scene.CullNone {
		t.Errorf("skybox cull = %v, want none so it renders from inside", got)
	}
	if w.MainCamera() != d.cam || w.MainLight() != d.light {
		t.Error("main camera or light not registered first")
	}
}

func TestDemoStartProvisionsEverything(t *testing.T) {
	d, w := newTestDemo(t, keys{})
	gpu := &fakeGPU{}
	d.gpu = gpu
	if err := d.Start(w); err != nil {
		t.Fatal(err)
	}
	if len(gpu.objects) != 4 || len(gpu.uis) != 1 {
		t.Errorf("provisioned %d objects and %d uis", len(gpu.objects), len(gpu.uis))
	}

	d, w = newTestDemo(t, keys{})
	d.gpu = &fakeGPU{failOn: d.skybox.Index}
	if err := d.Start(w); err == nil {
		t.Error("upload failure not reported")
	}

	d, w = newTestDemo(t, keys{})
	if err := d.Start(w); err == nil {
		t.Error("start without a renderer should fail")
	}
}

func TestDemoCharacterLandsOnFloor(t *testing.T) {
	d, _ := newTestDemo(t, keys{})

	const dt = 0.05
	landed := -1
	for i := 0; i < 200; i++ {
		if err := d.step(dt); err != nil {
			t.Fatal(err)
		}
		if landed < 0 && d.character.IsCollider(d.floor) {
			landed = i
		}
	}
	if landed < 0 {
		t.Fatalf("character never reached the floor, y = %v", d.character.Position[1])
	}

	rest := d.character.Position
	for i := 0; i < 20; i++ {
		if err := d.step(dt); err != nil {
			t.Fatal(err)
		}
	}
	if d.character.Position != rest {
		t.Errorf("character drifted from %v to %v while resting", rest, d.character.Position)
	}
	if d.fall.Velo != (mgl32.Vec3{}) {
		t.Errorf("velocity %v after landing", d.fall.Velo)
	}
	if d.character.Collider.Pos != d.character.Position {
		t.Error("collider out of sync with the character")
	}
}

func TestDemoControls(t *testing.T) {
	k := keys{glfw.KeyW: true, glfw.KeyUp: true}
	d, _ := newTestDemo(t, k)
	cam, light := d.cam.Position, d.light.Position

	if err := d.step(0.1); err != nil {
		t.Fatal(err)
	}
	if d.cam.Position[2] >= cam[2] {
		t.Errorf("W should move the camera forward (-z): %v -> %v", cam, d.cam.Position)
	}
	if d.light.Position[2] >= light[2] {
		t.Errorf("Up should move the light to -z: %v -> %v", light, d.light.Position)
	}
	// The marker is placed before the light moves, so it trails by one step.
	if d.marker.Position != light {
		t.Errorf("marker %v does not follow the light", d.marker.Position)
	}

	k[glfw.KeyLeftAlt] = true
	pos := d.cam.Position
	if err := d.step(0.1); err != nil {
		t.Fatal(err)
	}
	if d.cam.Position != pos {
		t.Error("alt should rotate instead of move")
	}
	if d.cam.Rotation[0] >= 0 {
		t.Errorf("alt+W should pitch down, rotation %v", d.cam.Rotation)
	}
}
