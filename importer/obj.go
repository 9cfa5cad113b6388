package importer

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/andewx/vkscene/scene"
	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
	lin "github.com/xlab/linmath"
)

func importOBJ(path string) (*scene.Scene, error) {
	dec, err := obj.Decode(path, "")
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	maps, err := readMaterialMaps(path)
	if err != nil {
		return nil, err
	}
	return buildOBJ(dec, maps, filepath.Dir(path), filepath.Base(path))
}

// objKey identifies one corner of a face: position, texcoord and normal
// indices.
type objKey struct{ v, uv, n int }

// buildOBJ converts decoded obj data. maps supplies the texture statements
// the decoder does not read, by material name.
func buildOBJ(dec *obj.Decoder, maps map[string]mtlMaps, dir, name string) (*scene.Scene, error) {
	s := &scene.Scene{Root: &scene.Node{Name: name}}
	for _, w := range dec.Warnings {
		if !unsupportedWarning(w) {
			s.Warnings = append(s.Warnings, w)
		}
	}

	// Materials in name order so indices are stable.
	names := make([]string, 0, len(dec.Materials))
	for n := range dec.Materials {
		names = append(names, n)
	}
	sort.Strings(names)
	matIndex := make(map[string]int, len(names))
	for _, n := range names {
		m := dec.Materials[n]
		mat := &scene.Material{Name: n}
		if m.MapKd != "" {
			mat.Textures = append(mat.Textures, scene.TextureRef{Type: scene.TextureDiffuse, Path: resolve(dir, m.MapKd)})
		}
		mat.Textures = append(mat.Textures, maps[n].refs(dir)...)
		matIndex[n] = len(s.Materials)
		s.Materials = append(s.Materials, mat)
	}

	nv, nuv, nn := len(dec.Vertices)/3, len(dec.Uvs)/2, len(dec.Normals)/3
	for _, o := range dec.Objects {
		node := &scene.Node{Name: o.Name}
		// One mesh per material used by the object, in order of first use.
		meshes := make(map[string]*scene.Mesh)
		corners := make(map[string]map[objKey]uint32)
		var order []string
		for fi, f := range o.Faces {
			m, ok := meshes[f.Material]
			if !ok {
				idx, found := matIndex[f.Material]
				if !found {
					idx = -1
					if f.Material != "" {
						s.Warnings = append(s.Warnings, fmt.Sprintf("object %q: unknown material %q", o.Name, f.Material))
					}
				}
				m = &scene.Mesh{Name: o.Name, MaterialIndex: idx}
				meshes[f.Material] = m
				corners[f.Material] = make(map[objKey]uint32)
				order = append(order, f.Material)
			}
			seen := corners[f.Material]
			face := make([]uint32, 0, len(f.Vertices))
			for i, v := range f.Vertices {
				if v < 0 || v >= nv {
					return nil, errors.Newf("object %q face %d: vertex index %d out of range", o.Name, fi, v)
				}
				k := objKey{v: v, uv: -1, n: -1}
				if i < len(f.Uvs) && f.Uvs[i] >= 0 && f.Uvs[i] < nuv {
					k.uv = f.Uvs[i]
				}
				if i < len(f.Normals) && f.Normals[i] >= 0 && f.Normals[i] < nn {
					k.n = f.Normals[i]
				}
				idx, ok := seen[k]
				if !ok {
					idx = uint32(len(m.Positions))
					seen[k] = idx
					m.Positions = append(m.Positions, lin.Vec3{dec.Vertices[3*v], dec.Vertices[3*v+1], dec.Vertices[3*v+2]})
					var uv lin.Vec2
					if k.uv >= 0 {
						uv = lin.Vec2{dec.Uvs[2*k.uv], dec.Uvs[2*k.uv+1]}
					}
					m.TexCoords = append(m.TexCoords, uv)
					var n lin.Vec3
					if k.n >= 0 {
						n = lin.Vec3{dec.Normals[3*k.n], dec.Normals[3*k.n+1], dec.Normals[3*k.n+2]}
					}
					m.Normals = append(m.Normals, n)
				}
				face = append(face, idx)
			}
			m.Faces = append(m.Faces, face)
		}
		for _, mat := range order {
			m := meshes[mat]
			if nuv == 0 {
				m.TexCoords = nil
			}
			if nn == 0 {
				m.Normals = nil
			}
			node.Meshes = append(node.Meshes, len(s.Meshes))
			s.Meshes = append(s.Meshes, m)
		}
		s.Root.Children = append(s.Root.Children, node)
	}
	return s, nil
}
