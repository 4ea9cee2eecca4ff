package render

import (
	"testing"
	"time"

	mgl32 "github.com/go-gl/mathgl/mgl32"
	"github.com/vulkan-go/vulkan"
	"golang.org/x/image/font/basicfont"

	"github.com/hellhand/kube-engine/internal/scene"
)

func TestGlyphQuads(t *testing.T) {
	extent := vulkan.Extent2D{Width: 800, Height: 600}
	face := basicfont.Face7x13

	if got := glyphQuads(face, "FPS", vulkan.Extent2D{}, 2); got != nil {
		t.Errorf("zero extent gave %d vertices", len(got))
	}
	if got := glyphQuads(face, "   ", extent, 2); len(got) != 0 {
		t.Errorf("spaces gave %d vertices", len(got))
	}

	one := glyphQuads(face, "1", extent, 2)
	if len(one) == 0 || len(one)%6 != 0 {
		t.Fatalf("glyph 1 gave %d vertices", len(one))
	}
	two := glyphQuads(face, "11", extent, 2)
	if len(two) != 2*len(one) {
		t.Errorf("\"11\" gave %d vertices, want %d", len(two), 2*len(one))
	}
	for _, v := range two {
		if v.pos[0] < -1 || v.pos[0] > 1 || v.pos[1] < -1 || v.pos[1] > 1 {
			t.Fatalf("vertex %v outside clip space", v.pos)
		}
		if v.color != hudColor {
			t.Fatalf("color = %v", v.color)
		}
	}
	// The second glyph sits to the right of the first.
	if two[len(one)].pos[0] <= one[0].pos[0] {
		t.Error("second glyph not advanced")
	}
}

func TestQuadToVertices(t *testing.T) {
	extent := vulkan.Extent2D{Width: 100, Height: 50}
	v := quadToVertices(0, 0, 50, 25, mgl32.Vec3{1, 0, 0}, extent)
	if len(v) != 6 {
		t.Fatalf("len = %d", len(v))
	}
	if v[0].pos != (mgl32.Vec2{-1, -1}) || v[2].pos != (mgl32.Vec2{0, 0}) || v[4].pos != (mgl32.Vec2{-1, 0}) {
		t.Errorf("corners = %v %v %v", v[0].pos, v[2].pos, v[4].pos)
	}
}

func TestFPSCounter(t *testing.T) {
	c := fpsCounter{}
	for i := 0; i < 59; i++ {
		if got := c.tick(time.Duration(i) * time.Second / 60); got != 0 {
			t.Fatalf("rate reported before a second passed: %v", got)
		}
	}
	if got := c.tick(time.Second); got != 60 {
		t.Errorf("fps = %v, want 60", got)
	}
	if got := c.tick(time.Second + time.Millisecond); got != 60 {
		t.Errorf("rate should hold between refreshes, got %v", got)
	}
}

func TestPipelineStateMapping(t *testing.T) {
	if cullMode(scene.CullBack) != vulkan.CullModeBackBit || cullMode(scene.CullNone) != vulkan.CullModeNone {
		t.Error("cull mode mapping")
	}
	if topology(scene.LineList) != vulkan.PrimitiveTopologyLineList || topology(scene.TriangleList) != vulkan.PrimitiveTopologyTriangleList {
		t.Error("topology mapping")
	}
	if polygonMode(scene.PolygonLine) != vulkan.PolygonModeLine || polygonMode(scene.PolygonFill) != vulkan.PolygonModeFill {
		t.Error("polygon mode mapping")
	}
}

func TestHUDBuffersPerImage(t *testing.T) {
	var clock time.Duration
	var got []*hudFrame
	h := &hud{
		face:   basicfont.Face7x13,
		frames: make([]hudFrame, 3),
		now:    func() time.Duration { clock += time.Second / 60; return clock },
		upload: func(f *hudFrame, verts []overlayVertex, cmd vulkan.DrawIndirectCommand) error {
			if cmd.VertexCount != uint32(len(verts)) || cmd.InstanceCount != 1 {
				t.Errorf("draw %+v for %d vertices", cmd, len(verts))
			}
			got = append(got, f)
			return nil
		},
	}
	extent := vulkan.Extent2D{Width: 800, Height: 600}
	images := []uint32{0, 1, 2, 1, 0, 2}

	f := &fakeFrame{acquireRes: vulkan.Success, presentRes: vulkan.Success, images: images}
	f.onRecord = func(image uint32) error { return h.update(image, extent) }

	frame := 0
	for range images {
		var err error
		if frame, err = runFrame(f, frame, false); err != nil {
			t.Fatal(err)
		}
	}
	for _, c := range f.calls {
		if c == "idle" {
			t.Fatal("idle wait with wait_idle_per_frame off")
		}
	}
	if len(got) != len(images) {
		t.Fatalf("%d uploads, want %d", len(got), len(images))
	}
	for i, img := range images {
		if got[i] != &h.frames[img] {
			t.Errorf("frame %d wrote the buffers of another image than %d", i, img)
		}
	}
	if got[0] == got[1] {
		t.Error("consecutive images share HUD buffers")
	}

	if err := h.update(3, extent); err == nil {
		t.Error("image without buffers accepted")
	}
}
