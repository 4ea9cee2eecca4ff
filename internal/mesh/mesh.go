// Package mesh builds indexed vertex data for the renderer.
package mesh

import (
	"math"

	mgl32 "github.com/go-gl/mathgl/mgl32"
)

// Vertex matches the vertex input layout of every graphics pipeline:
// location 0 position, 1 texture coordinate, 2 normal.
type Vertex struct {
	Pos      mgl32.Vec3
	TexCoord mgl32.Vec2
	Normal   mgl32.Vec3
}

// VertexStride is the size of one Vertex in a vertex buffer.
const VertexStride = 8 * 4

// Offsets of the vertex attributes inside Vertex.
const (
	OffsetPos      = 0
	OffsetTexCoord = 3 * 4
	OffsetNormal   = 5 * 4
)

type Triangle [3]Vertex

type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

// Deduplicate turns a triangle soup into an indexed mesh. Vertices equal in
// every attribute share one index; first occurrence order is kept.
func Deduplicate(tris []Triangle) Mesh {
	seen := make(map[Vertex]uint32, len(tris)*3)
	m := Mesh{Indices: make([]uint32, 0, len(tris)*3)}
	for _, t := range tris {
		for _, v := range t {
			idx, ok := seen[v]
			if !ok {
				idx = uint32(len(m.Vertices))
				seen[v] = idx
				m.Vertices = append(m.Vertices, v)
			}
			m.Indices = append(m.Indices, idx)
		}
	}
	return m
}

// FlatNormal is the unit face normal of a, b, c wound counter-clockwise.
// Degenerate triangles get a zero normal.
func FlatNormal(a, b, c mgl32.Vec3) mgl32.Vec3 {
	n := b.Sub(a).Cross(c.Sub(a))
	if l := n.Len(); l > 0 {
		return n.Mul(1 / l)
	}
	return mgl32.Vec3{}
}

// UIQuad is the screen quad for a UI with extent (x0, y0, x1, y1) in
// normalized device coordinates, as two triangles of the same winding.
func UIQuad(ext mgl32.Vec4) Mesh {
	x0, y0, x1, y1 := ext[0], ext[1], ext[2], ext[3]
	v := func(x, y, u, w float32) Vertex {
		return Vertex{Pos: mgl32.Vec3{x, y, 0}, TexCoord: mgl32.Vec2{u, w}, Normal: mgl32.Vec3{0, 0, 1}}
	}
	return Deduplicate([]Triangle{
		{v(x0, y0, 0, 0), v(x1, y0, 1, 0), v(x1, y1, 1, 1)},
		{v(x0, y0, 0, 0), v(x1, y1, 1, 1), v(x0, y1, 0, 1)},
	})
}

// MipLevels is floor(log2(max(w, h))) + 1.
func MipLevels(w, h int) uint32 {
	m := w
	if h > m {
		m = h
	}
	if m < 1 {
		return 1
	}
	return uint32(math.Floor(math.Log2(float64(m)))) + 1
}

// MipExtent halves one dimension, never below 1.
func MipExtent(n int32) int32 {
	if n > 1 {
		return n / 2
	}
	return 1
}
