package mesh

import (
	"io"
	"os"
	"strings"

	"github.com/g3n/engine/loader/obj"
	mgl32 "github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// LoadOBJ decodes a Wavefront OBJ stream into an indexed mesh. Polygons are
// fan-triangulated, V is flipped to Vulkan's top-left origin and every
// triangle gets its flat face normal. Material libraries are ignored.
func LoadOBJ(r io.Reader) (Mesh, error) {
	dec, err := obj.DecodeReader(r, strings.NewReader(""))
	if err != nil {
		return Mesh{}, errors.Wrap(err, "decode obj")
	}

	var tris []Triangle
	for _, o := range dec.Objects {
		for _, face := range o.Faces {
			for i := 2; i < len(face.Vertices); i++ {
				var t Triangle
				for k, corner := range [3]int{0, i - 1, i} {
					v, err := objVertex(dec, face, corner)
					if err != nil {
						return Mesh{}, errors.Wrapf(err, "object %q", o.Name)
					}
					t[k] = v
				}
				n := FlatNormal(t[0].Pos, t[1].Pos, t[2].Pos)
				for k := range t {
					t[k].Normal = n
				}
				tris = append(tris, t)
			}
		}
	}
	if len(tris) == 0 {
		return Mesh{}, errors.New("obj has no faces")
	}
	return Deduplicate(tris), nil
}

func objVertex(dec *obj.Decoder, face obj.Face, corner int) (Vertex, error) {
	var v Vertex
	vi := face.Vertices[corner]
	if vi < 0 || vi*3+2 >= len(dec.Vertices) {
		return v, errors.Errorf("vertex index %d out of range", vi)
	}
	v.Pos = mgl32.Vec3{dec.Vertices[vi*3], dec.Vertices[vi*3+1], dec.Vertices[vi*3+2]}

	if corner < len(face.Uvs) {
		ui := face.Uvs[corner]
		if ui >= 0 && ui*2+1 < len(dec.Uvs) {
			v.TexCoord = mgl32.Vec2{dec.Uvs[ui*2], 1 - dec.Uvs[ui*2+1]}
		}
	}
	return v, nil
}

// LoadOBJFile reads the OBJ at path.
func LoadOBJFile(path string) (Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return Mesh{}, errors.Wrap(err, "open model")
	}
	defer f.Close()
	m, err := LoadOBJ(f)
	if err != nil {
		return Mesh{}, errors.Wrapf(err, "load %s", path)
	}
	return m, nil
}
