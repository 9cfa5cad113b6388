// Package scene holds the in-memory scene graph produced by an importer and
// the post-process steps applied to it before upload.
package scene

import (
	"fmt"
	"strings"

	lin "github.com/xlab/linmath"
)

// TextureType is the semantic a material gives to a texture.
type TextureType int

const (
	TextureDiffuse TextureType = iota
	TextureNormal
	TextureSpecular
	TextureEmissive
	TextureOcclusion
)

var textureNames = [...]string{
	TextureDiffuse:   "texture_diffuse",
	TextureNormal:    "texture_normal",
	TextureSpecular:  "texture_specular",
	TextureEmissive:  "texture_emissive",
	TextureOcclusion: "texture_occlusion",
}

func (t TextureType) String() string {
	if t >= 0 && int(t) < len(textureNames) {
		return textureNames[t]
	}
	return fmt.Sprintf("TextureType(%d)", int(t))
}

// ParseTextureType accepts both "texture_diffuse" and "diffuse".
func ParseTextureType(s string) (TextureType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range textureNames {
		if s == name || "texture_"+s == name {
			return TextureType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown texture type %q", s)
}

// TextureRef is one texture slot of a material.
type TextureRef struct {
	Type TextureType
	Path string
}

type Material struct {
	Name     string
	Textures []TextureRef
}

// TexturesOf returns the paths of every slot of the given type, in order.
func (m *Material) TexturesOf(typ TextureType) []string {
	var paths []string
	for _, ref := range m.Textures {
		if ref.Type == typ {
			paths = append(paths, ref.Path)
		}
	}
	return paths
}

// Mesh is a set of polygons sharing one material. Attribute slices other
// than Positions are either empty or as long as Positions.
type Mesh struct {
	Name       string
	Positions  []lin.Vec3
	Normals    []lin.Vec3
	TexCoords  []lin.Vec2
	Tangents   []lin.Vec3
	Bitangents []lin.Vec3
	// Faces index into the attribute slices. After Triangulate every face
	// has exactly three indices.
	Faces [][]uint32
	// MaterialIndex is -1 when the mesh has no material.
	MaterialIndex int
}

func (m *Mesh) HasNormals() bool { return len(m.Normals) == len(m.Positions) && len(m.Normals) > 0 }
func (m *Mesh) HasTexCoords() bool {
	return len(m.TexCoords) == len(m.Positions) && len(m.TexCoords) > 0
}
func (m *Mesh) HasTangents() bool {
	return len(m.Tangents) == len(m.Positions) && len(m.Bitangents) == len(m.Positions) && len(m.Tangents) > 0
}

// Indices flattens Faces.
func (m *Mesh) Indices() []uint32 {
	var n int
	for _, f := range m.Faces {
		n += len(f)
	}
	idx := make([]uint32, 0, n)
	for _, f := range m.Faces {
		idx = append(idx, f...)
	}
	return idx
}

type Node struct {
	Name     string
	Meshes   []int
	Children []*Node
}

// Walk visits n and its descendants depth first, parents before children.
func (n *Node) Walk(fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

type Scene struct {
	Root      *Node
	Meshes    []*Mesh
	Materials []*Material
	// Incomplete is set by importers that could not read the whole file.
	Incomplete bool
	// Warnings collects non-fatal importer messages.
	Warnings []string
}

// Material returns the material of m, or nil.
func (s *Scene) Material(m *Mesh) *Material {
	if m.MaterialIndex < 0 || m.MaterialIndex >= len(s.Materials) {
		return nil
	}
	return s.Materials[m.MaterialIndex]
}

// MeshOrder returns mesh indices in depth-first node order. A mesh
// referenced by several nodes appears once per reference.
func (s *Scene) MeshOrder() []int {
	var order []int
	s.Root.Walk(func(n *Node) {
		order = append(order, n.Meshes...)
	})
	return order
}

// Validate reports the first structural problem found.
func (s *Scene) Validate() error {
	if s.Root == nil {
		return fmt.Errorf("scene has no root node")
	}
	var err error
	s.Root.Walk(func(n *Node) {
		for _, mi := range n.Meshes {
			if err == nil && (mi < 0 || mi >= len(s.Meshes)) {
				err = fmt.Errorf("node %q references mesh %d of %d", n.Name, mi, len(s.Meshes))
			}
		}
	})
	if err != nil {
		return err
	}
	for i, m := range s.Meshes {
		n := len(m.Positions)
		for _, a := range []struct {
			name string
			l    int
		}{
			{"normals", len(m.Normals)},
			{"texcoords", len(m.TexCoords)},
			{"tangents", len(m.Tangents)},
			{"bitangents", len(m.Bitangents)},
		} {
			if a.l != 0 && a.l != n {
				return fmt.Errorf("mesh %d (%q): %d %s for %d positions", i, m.Name, a.l, a.name, n)
			}
		}
		for fi, f := range m.Faces {
			for _, v := range f {
				if int(v) >= n {
					return fmt.Errorf("mesh %d (%q): face %d index %d out of range", i, m.Name, fi, v)
				}
			}
		}
		if m.MaterialIndex >= len(s.Materials) {
			return fmt.Errorf("mesh %d (%q): material %d of %d", i, m.Name, m.MaterialIndex, len(s.Materials))
		}
	}
	return nil
}
