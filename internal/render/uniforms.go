package render

import (
	"unsafe"

	mgl32 "github.com/go-gl/mathgl/mgl32"
	"github.com/vulkan-go/vulkan"

	"github.com/hellhand/kube-engine/internal/scene"
)

const (
	fovDegrees = 45
	nearPlane  = 0.1
	farPlane   = 300
)

// uniformBufferObject matches the std140 block of the object and UI vertex
// shaders.
type uniformBufferObject struct {
	Model mgl32.Mat4
	Pitch mgl32.Mat4
	Yaw   mgl32.Mat4
	Roll  mgl32.Mat4
	View  mgl32.Mat4
	Proj  mgl32.Mat4
}

// computeConstants is pushed before each compute dispatch.
type computeConstants struct {
	CamPos   mgl32.Vec4
	MousePos mgl32.Vec4
	HalfPos  mgl32.Vec4
}

// graphicsConstants is pushed to every object draw.
type graphicsConstants struct {
	CamPos   mgl32.Vec4
	LightVec mgl32.Vec4
	Normal   mgl32.Vec4
}

var (
	uboSize           = vulkan.DeviceSize(unsafe.Sizeof(uniformBufferObject{}))
	computeConstSize  = uint32(unsafe.Sizeof(computeConstants{}))
	graphicsConstSize = uint32(unsafe.Sizeof(graphicsConstants{}))

	halfPos       = mgl32.Vec4{0, 10, 10, 0}
	defaultNormal = mgl32.Vec4{0.58, 0.58, 0.58, 0}
)

// projection is a right-handed perspective with Y flipped for Vulkan clip
// space.
func projection(width, height uint32) mgl32.Mat4 {
	aspect := float32(1)
	if height != 0 {
		aspect = float32(width) / float32(height)
	}
	proj := mgl32.Perspective(mgl32.DegToRad(fovDegrees), aspect, nearPlane, farPlane)
	proj[5] *= -1
	return proj
}

// objectUniforms builds the UBO of one model of g seen from cam.
func objectUniforms(g *scene.GameObject, m *scene.Model, cam *scene.Camera, width, height uint32) uniformBufferObject {
	ubo := uniformBufferObject{
		Model: g.ModelMatrix().Mul4(m.LocalMatrix()),
		Pitch: mgl32.Ident4(),
		Yaw:   mgl32.Ident4(),
		Roll:  mgl32.Ident4(),
		View:  mgl32.Ident4(),
		Proj:  projection(width, height),
	}
	if cam != nil {
		ubo.Pitch, ubo.Yaw, ubo.Roll = cam.EulerMatrices()
		ubo.View = cam.View()
	}
	return ubo
}

func identityUniforms() uniformBufferObject {
	return uniformBufferObject{
		Model: mgl32.Ident4(),
		Pitch: mgl32.Ident4(),
		Yaw:   mgl32.Ident4(),
		Roll:  mgl32.Ident4(),
		View:  mgl32.Ident4(),
		Proj:  mgl32.Ident4(),
	}
}

func objectConstants(g *scene.GameObject, cam *scene.Camera, light *scene.Light) graphicsConstants {
	c := graphicsConstants{Normal: defaultNormal}
	if cam != nil {
		c.CamPos = cam.Position.Vec4(1)
	}
	if light != nil {
		c.LightVec = light.VectorTo(g.Position).Vec4(0)
	}
	return c
}

func dispatchConstants(cam *scene.Camera, mouse mgl32.Vec2) computeConstants {
	c := computeConstants{
		MousePos: mgl32.Vec4{mouse[0], mouse[1], 0, 0},
		HalfPos:  halfPos,
	}
	if cam != nil {
		c.CamPos = cam.Position.Vec4(1)
	}
	return c
}

func (r *Renderer) writeUniforms(b buffer, ubo *uniformBufferObject) error {
	data := unsafe.Slice((*byte)(unsafe.Pointer(ubo)), uboSize)
	return r.writeMemory(b.memory, data)
}
