package render

import (
	"fmt"
	"image"
	"time"
	"unsafe"

	mgl32 "github.com/go-gl/mathgl/mgl32"
	"github.com/loov/hrtime"
	"github.com/vulkan-go/vulkan"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	maxOverlayVertices = 6 * 4096
	hudMargin          = 8
	hudScale           = 2
)

var hudColor = mgl32.Vec3{1, 1, 1}

type overlayVertex struct {
	pos   mgl32.Vec2
	color mgl32.Vec3
}

var overlayVertexLayout = vertexLayout{
	stride: uint32(unsafe.Sizeof(overlayVertex{})),
	attrs: []vulkan.VertexInputAttributeDescription{
		{Location: 0, Binding: 0, Format: vulkan.FormatR32g32Sfloat, Offset: uint32(unsafe.Offsetof(overlayVertex{}.pos))},
		{Location: 1, Binding: 0, Format: vulkan.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(overlayVertex{}.color))},
	},
}

type fpsCounter struct {
	frames int
	last   time.Duration
	fps    float64
}

// tick counts a frame at now and refreshes the rate once per second.
func (c *fpsCounter) tick(now time.Duration) float64 {
	c.frames++
	if elapsed := now - c.last; elapsed >= time.Second {
		c.fps = float64(c.frames) / elapsed.Seconds()
		c.frames = 0
		c.last = now
	}
	return c.fps
}

// hudFrame holds the buffers one swapchain image draws the HUD from. The
// CPU rewrites them only when that image comes around again, after its
// fence has been waited on.
type hudFrame struct {
	vertices buffer
	indirect buffer
}

// hud draws the frame rate in the top left corner.
type hud struct {
	layout   vulkan.PipelineLayout
	pipeline vulkan.Pipeline
	frames   []hudFrame

	face    font.Face
	counter fpsCounter
	now     func() time.Duration
	upload  func(f *hudFrame, verts []overlayVertex, cmd vulkan.DrawIndirectCommand) error
}

func (r *Renderer) newHUD() (*hud, error) {
	h := &hud{
		face:   basicfont.Face7x13,
		now:    hrtime.Now,
		upload: r.uploadHUDFrame,
	}
	h.counter.last = h.now()

	if err := h.refresh(r); err != nil {
		h.destroy(r.device)
		return nil, err
	}
	return h, nil
}

// refresh rebuilds the pipeline against the current render pass and extent,
// and keeps one buffer pair per swapchain image.
func (h *hud) refresh(r *Renderer) error {
	destroyPipeline(r.device, &h.pipeline)
	destroyPipelineLayout(r.device, &h.layout)

	var err error
	if h.layout, err = r.createPipelineLayout(nil, nil); err != nil {
		return fmt.Errorf("overlay: %w", err)
	}
	h.pipeline, err = r.createGraphicsPipeline(graphicsPipeline{
		vertPath: r.cfg.Assets.Shaders.OverlayVert,
		fragPath: r.cfg.Assets.Shaders.OverlayFrag,
		layout:   h.layout,
		vertex:   overlayVertexLayout,
		topology: vulkan.PrimitiveTopologyTriangleList,
		polygon:  vulkan.PolygonModeFill,
		cull:     vulkan.CullModeNone,
	})
	if err != nil {
		return fmt.Errorf("overlay: %w", err)
	}
	if len(h.frames) == len(r.swapchainImages) {
		return nil
	}
	h.destroyFrames(r.device)
	for i := range r.swapchainImages {
		f, err := r.createHUDFrame()
		if err != nil {
			return fmt.Errorf("overlay image %d: %w", i, err)
		}
		h.frames = append(h.frames, f)
	}
	return nil
}

func (r *Renderer) createHUDFrame() (hudFrame, error) {
	var f hudFrame
	var err error
	hostVisible := vulkan.MemoryPropertyHostVisibleBit | vulkan.MemoryPropertyHostCoherentBit
	f.vertices, err = r.createBuffer(
		vulkan.DeviceSize(maxOverlayVertices)*vulkan.DeviceSize(overlayVertexLayout.stride),
		vulkan.BufferUsageFlags(vulkan.BufferUsageVertexBufferBit), hostVisible)
	if err != nil {
		return f, fmt.Errorf("vertex buffer: %w", err)
	}
	f.indirect, err = r.createBuffer(
		vulkan.DeviceSize(unsafe.Sizeof(vulkan.DrawIndirectCommand{})),
		vulkan.BufferUsageFlags(vulkan.BufferUsageIndirectBufferBit), hostVisible)
	if err != nil {
		f.vertices.destroy(r.device)
		return f, fmt.Errorf("indirect buffer: %w", err)
	}
	return f, nil
}

func (r *Renderer) uploadHUDFrame(f *hudFrame, verts []overlayVertex, cmd vulkan.DrawIndirectCommand) error {
	if len(verts) > 0 {
		if err := r.writeMemory(f.vertices.memory, bytesOf(verts)); err != nil {
			return fmt.Errorf("overlay vertices: %w", err)
		}
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(&cmd)), unsafe.Sizeof(cmd))
	if err := r.writeMemory(f.indirect.memory, data); err != nil {
		return fmt.Errorf("overlay indirect draw: %w", err)
	}
	return nil
}

// update rewrites the text vertices and the indirect draw count of image.
func (h *hud) update(image uint32, extent vulkan.Extent2D) error {
	if int(image) >= len(h.frames) {
		return fmt.Errorf("overlay: no buffers for image %d of %d", image, len(h.frames))
	}
	fps := h.counter.tick(h.now())
	verts := glyphQuads(h.face, fmt.Sprintf("FPS: %.1f", fps), extent, hudScale)
	cmd := vulkan.DrawIndirectCommand{
		VertexCount:   uint32(len(verts)),
		InstanceCount: 1,
	}
	return h.upload(&h.frames[image], verts, cmd)
}

func (h *hud) record(cb vulkan.CommandBuffer, image uint32) {
	f := &h.frames[image]
	vulkan.CmdBindPipeline(cb, vulkan.PipelineBindPointGraphics, h.pipeline)
	vulkan.CmdBindVertexBuffers(cb, 0, 1, []vulkan.Buffer{f.vertices.handle}, []vulkan.DeviceSize{0})
	vulkan.CmdDrawIndirect(cb, f.indirect.handle, 0, 1, 0)
}

func (h *hud) destroyFrames(device vulkan.Device) {
	for i := range h.frames {
		h.frames[i].indirect.destroy(device)
		h.frames[i].vertices.destroy(device)
	}
	h.frames = nil
}

func (h *hud) destroy(device vulkan.Device) {
	destroyPipeline(device, &h.pipeline)
	destroyPipelineLayout(device, &h.layout)
	h.destroyFrames(device)
}

// glyphQuads rasterizes text with face into one scaled quad per set pixel,
// in clip space for a target of the given extent.
func glyphQuads(face font.Face, text string, extent vulkan.Extent2D, scale float32) []overlayVertex {
	if extent.Width == 0 || extent.Height == 0 {
		return nil
	}
	var verts []overlayVertex
	ascent := face.Metrics().Ascent
	dot := fixed.Point26_6{X: 0, Y: ascent}
	for _, ch := range text {
		dr, mask, maskp, advance, ok := face.Glyph(dot, ch)
		if ok {
			for y := dr.Min.Y; y < dr.Max.Y; y++ {
				for x := dr.Min.X; x < dr.Max.X; x++ {
					if !opaque(mask, maskp.X+x-dr.Min.X, maskp.Y+y-dr.Min.Y) {
						continue
					}
					px := hudMargin + float32(x)*scale
					py := hudMargin + float32(y)*scale
					verts = append(verts, quadToVertices(px, py, scale, scale, hudColor, extent)...)
					if len(verts) >= maxOverlayVertices {
						return verts[:maxOverlayVertices]
					}
				}
			}
		}
		dot.X += advance
	}
	return verts
}

func opaque(mask image.Image, x, y int) bool {
	_, _, _, a := mask.At(x, y).RGBA()
	return a >= 0x8000
}

// quadToVertices makes two triangles for a pixel-space quad mapped to NDC.
func quadToVertices(x, y, w, h float32, color mgl32.Vec3, extent vulkan.Extent2D) []overlayVertex {
	toNDC := func(px, py float32) mgl32.Vec2 {
		return mgl32.Vec2{
			px/float32(extent.Width)*2 - 1,
			py/float32(extent.Height)*2 - 1,
		}
	}
	p0 := toNDC(x, y)
	p1 := toNDC(x+w, y)
	p2 := toNDC(x+w, y+h)
	p3 := toNDC(x, y+h)
	return []overlayVertex{
		{pos: p0, color: color},
		{pos: p1, color: color},
		{pos: p2, color: color},
		{pos: p2, color: color},
		{pos: p3, color: color},
		{pos: p0, color: color},
	}
}
