package scene

import (
	"errors"

	mgl32 "github.com/go-gl/mathgl/mgl32"
)

var ErrNoCollider = errors.New("game object has no collider")

const (
	ColliderModelName = "collider"
	ColliderObjPath   = "models/Effect/collider.obj"
	ColliderTexPath   = "textures/effect/collider.png"
)

type CullMode int

const (
	CullNone CullMode = iota
	CullBack
	CullFront
)

type Topology int

const (
	TriangleList Topology = iota
	LineList
	PointList
)

type PolygonMode int

const (
	PolygonFill PolygonMode = iota
	PolygonLine
	PolygonPoint
)

// Model is one drawable mesh of a GameObject together with the material
// and raster state its pipeline is built from.
type Model struct {
	Name     string
	ObjPath  string
	TexPath  string
	VertPath string
	FragPath string

	// Local transform relative to the owning object.
	Position mgl32.Vec3
	Rotate   mgl32.Vec3
	Scale    mgl32.Vec3

	Topology Topology
	Polygon  PolygonMode
	Cull     CullMode
}

func newModel(name, objPath, texPath, vertPath, fragPath string) *Model {
	return &Model{
		Name:     name,
		ObjPath:  objPath,
		TexPath:  texPath,
		VertPath: vertPath,
		FragPath: fragPath,
		Scale:    mgl32.Vec3{1, 1, 1},
		Topology: TriangleList,
		Polygon:  PolygonFill,
		Cull:     CullNone,
	}
}

// LocalMatrix places the model relative to its object.
func (m *Model) LocalMatrix() mgl32.Mat4 {
	return TransformMatrix(m.Position, m.Rotate, m.Scale)
}

// GameObject is a rigid assembly of Models sharing one world transform.
// Models[0] is the primary mesh.
type GameObject struct {
	Index Handle
	Name  string

	Models []*Model

	Position mgl32.Vec3
	Rotate   mgl32.Vec3 // degrees
	Scale    mgl32.Vec3

	Collider *ColliderBox

	vertPath string
	fragPath string
	contacts map[Handle]bool
}

// AppendModel adds a sub-mesh with its own fragment shader. An empty
// fragPath selects the default material.
func (g *GameObject) AppendModel(name, objPath, texPath, fragPath string) *Model {
	if fragPath == "" {
		fragPath = g.fragPath
	}
	m := newModel(name, objPath, texPath, g.vertPath, fragPath)
	g.Models = append(g.Models, m)
	return m
}

// AppendModelAt adds a sub-mesh placed at a local offset and scale.
func (g *GameObject) AppendModelAt(name, objPath, texPath string, pos, scale mgl32.Vec3) *Model {
	m := g.AppendModel(name, objPath, texPath, "")
	m.Position = pos
	m.Scale = scale
	return m
}

// Find returns the first model called name, or nil.
func (g *GameObject) Find(name string) *Model {
	for _, m := range g.Models {
		if m.Name == name {
			return m
		}
	}
	return nil
}

func (g *GameObject) SetCollider(size mgl32.Vec3) {
	g.SetColliderAt(mgl32.Vec3{}, size)
}

func (g *GameObject) SetColliderAt(local, size mgl32.Vec3) {
	g.Collider = &ColliderBox{}
	g.Collider.SetSize3D(g.Position, local, size)
}

// IsCollider reports whether the colliders of g and other overlap. It is
// false when either side has none.
func (g *GameObject) IsCollider(other *GameObject) bool {
	if g.Collider == nil || other == nil || other.Collider == nil {
		return false
	}
	return g.Collider.IsCollision3D(other.Collider)
}

// OnColliderEnter is true only on the first check of a new contact with
// other. It must be called once per update to track contact state.
func (g *GameObject) OnColliderEnter(other *GameObject) bool {
	hit := g.IsCollider(other)
	if other == nil {
		return false
	}
	if g.contacts == nil {
		g.contacts = make(map[Handle]bool)
	}
	was := g.contacts[other.Index]
	g.contacts[other.Index] = hit
	return hit && !was
}

// Move translates the object and keeps its collider in lockstep.
func (g *GameObject) Move(v mgl32.Vec3) error {
	if g.Collider == nil {
		return ErrNoCollider
	}
	g.Position = g.Position.Add(v)
	g.Collider.Pos = g.Position
	return nil
}

// SetPosition places the object and its collider, if any.
func (g *GameObject) SetPosition(p mgl32.Vec3) {
	g.Position = p
	if g.Collider != nil {
		g.Collider.Pos = p
	}
}

// DrawCollider appends a visible box matching the collider.
func (g *GameObject) DrawCollider() error {
	if g.Collider == nil {
		return ErrNoCollider
	}
	g.AppendModelAt(ColliderModelName, ColliderObjPath, ColliderTexPath, g.Collider.Local, g.Collider.Size)
	return nil
}

// ModelMatrix is T * Rx * Ry * Rz * S with Euler angles in degrees.
func (g *GameObject) ModelMatrix() mgl32.Mat4 {
	return TransformMatrix(g.Position, g.Rotate, g.Scale)
}

func TransformMatrix(pos, rotDeg, scale mgl32.Vec3) mgl32.Mat4 {
	rx := mgl32.HomogRotate3DX(mgl32.DegToRad(rotDeg[0]))
	ry := mgl32.HomogRotate3DY(mgl32.DegToRad(rotDeg[1]))
	rz := mgl32.HomogRotate3DZ(mgl32.DegToRad(rotDeg[2]))
	return mgl32.Translate3D(pos[0], pos[1], pos[2]).
		Mul4(rx).Mul4(ry).Mul4(rz).
		Mul4(mgl32.Scale3D(scale[0], scale[1], scale[2]))
}
