package importer

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/andewx/vkscene/scene"
	"github.com/cockroachdb/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	lin "github.com/xlab/linmath"
)

func importGLTF(path string) (*scene.Scene, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	return buildGLTF(doc, filepath.Dir(path), filepath.Base(path))
}

type gltfBuilder struct {
	doc *gltf.Document
	dir string
	s   *scene.Scene
	// meshes maps a glTF mesh to the scene meshes of its primitives.
	meshes map[int][]int
}

func buildGLTF(doc *gltf.Document, dir, name string) (*scene.Scene, error) {
	if len(doc.Scenes) == 0 {
		return nil, errors.Newf("%s: document has no scenes", name)
	}
	root := 0
	if doc.Scene != nil {
		root = *doc.Scene
	}
	if root < 0 || root >= len(doc.Scenes) {
		return nil, errors.Newf("%s: default scene %d out of range", name, root)
	}

	b := &gltfBuilder{
		doc:    doc,
		dir:    dir,
		s:      &scene.Scene{Root: &scene.Node{Name: name}},
		meshes: make(map[int][]int),
	}
	b.materials()
	for _, ni := range doc.Scenes[root].Nodes {
		n, err := b.node(ni, 0)
		if err != nil {
			return nil, err
		}
		b.s.Root.Children = append(b.s.Root.Children, n)
	}
	return b.s, nil
}

func (b *gltfBuilder) materials() {
	for i, m := range b.doc.Materials {
		mat := &scene.Material{Name: m.Name}
		if mat.Name == "" {
			mat.Name = fmt.Sprintf("material%d", i)
		}
		add := func(typ scene.TextureType, tex *int) {
			if tex == nil {
				return
			}
			if p, ok := b.texturePath(*tex); ok {
				mat.Textures = append(mat.Textures, scene.TextureRef{Type: typ, Path: p})
			}
		}
		if pbr := m.PBRMetallicRoughness; pbr != nil && pbr.BaseColorTexture != nil {
			add(scene.TextureDiffuse, &pbr.BaseColorTexture.Index)
		}
		if m.NormalTexture != nil {
			add(scene.TextureNormal, m.NormalTexture.Index)
		}
		if m.EmissiveTexture != nil {
			add(scene.TextureEmissive, &m.EmissiveTexture.Index)
		}
		if m.OcclusionTexture != nil {
			add(scene.TextureOcclusion, m.OcclusionTexture.Index)
		}
		b.s.Materials = append(b.s.Materials, mat)
	}
}

// texturePath returns the file behind a glTF texture. Images stored in
// buffers or data URIs have no path and are reported as warnings.
func (b *gltfBuilder) texturePath(ti int) (string, bool) {
	if ti < 0 || ti >= len(b.doc.Textures) || b.doc.Textures[ti].Source == nil {
		b.warnf("texture %d has no image", ti)
		return "", false
	}
	si := *b.doc.Textures[ti].Source
	if si < 0 || si >= len(b.doc.Images) {
		b.warnf("texture %d: image %d out of range", ti, si)
		return "", false
	}
	img := b.doc.Images[si]
	if img.BufferView != nil || img.URI == "" || strings.HasPrefix(img.URI, "data:") {
		b.warnf("image %d is embedded, skipped", si)
		return "", false
	}
	return resolve(b.dir, img.URI), true
}

func (b *gltfBuilder) warnf(format string, args ...interface{}) {
	b.s.Warnings = append(b.s.Warnings, fmt.Sprintf(format, args...))
}

func (b *gltfBuilder) node(ni, depth int) (*scene.Node, error) {
	if ni < 0 || ni >= len(b.doc.Nodes) {
		return nil, errors.Newf("node %d out of range", ni)
	}
	// glTF forbids cycles; the depth bound keeps a malformed file from
	// recursing forever.
	if depth > len(b.doc.Nodes) {
		return nil, errors.Newf("node %d: hierarchy has a cycle", ni)
	}
	gn := b.doc.Nodes[ni]
	n := &scene.Node{Name: gn.Name}
	if gn.Mesh != nil {
		idx, err := b.mesh(*gn.Mesh)
		if err != nil {
			return nil, err
		}
		n.Meshes = idx
	}
	for _, ci := range gn.Children {
		c, err := b.node(ci, depth+1)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, c)
	}
	return n, nil
}

// mesh converts each triangle primitive of a glTF mesh once, however many
// nodes instance it.
func (b *gltfBuilder) mesh(mi int) ([]int, error) {
	if idx, ok := b.meshes[mi]; ok {
		return idx, nil
	}
	if mi < 0 || mi >= len(b.doc.Meshes) {
		return nil, errors.Newf("mesh %d out of range", mi)
	}
	gm := b.doc.Meshes[mi]
	var idx []int
	for pi, p := range gm.Primitives {
		m, err := b.primitive(p)
		if err != nil {
			return nil, errors.Wrapf(err, "mesh %q primitive %d", gm.Name, pi)
		}
		if m == nil {
			b.warnf("mesh %q primitive %d: mode %d skipped", gm.Name, pi, p.Mode)
			continue
		}
		m.Name = gm.Name
		idx = append(idx, len(b.s.Meshes))
		b.s.Meshes = append(b.s.Meshes, m)
	}
	b.meshes[mi] = idx
	return idx, nil
}

func (b *gltfBuilder) accessor(i int) (*gltf.Accessor, error) {
	if i < 0 || i >= len(b.doc.Accessors) {
		return nil, errors.Newf("accessor %d out of range", i)
	}
	return b.doc.Accessors[i], nil
}

func (b *gltfBuilder) primitive(p *gltf.Primitive) (*scene.Mesh, error) {
	switch p.Mode {
	case gltf.PrimitiveTriangles, gltf.PrimitiveTriangleStrip, gltf.PrimitiveTriangleFan:
	default:
		return nil, nil
	}
	pa, ok := p.Attributes[gltf.POSITION]
	if !ok {
		return nil, errors.New("no POSITION attribute")
	}
	acr, err := b.accessor(pa)
	if err != nil {
		return nil, err
	}
	pos, err := modeler.ReadPosition(b.doc, acr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "read positions")
	}
	m := &scene.Mesh{MaterialIndex: -1}
	if p.Material != nil {
		m.MaterialIndex = *p.Material
	}
	m.Positions = make([]lin.Vec3, len(pos))
	for i, v := range pos {
		m.Positions[i] = lin.Vec3(v)
	}

	if a, ok := p.Attributes[gltf.NORMAL]; ok {
		if acr, err = b.accessor(a); err != nil {
			return nil, err
		}
		normals, err := modeler.ReadNormal(b.doc, acr, nil)
		if err != nil {
			return nil, errors.Wrap(err, "read normals")
		}
		m.Normals = make([]lin.Vec3, len(normals))
		for i, v := range normals {
			m.Normals[i] = lin.Vec3(v)
		}
	}
	if a, ok := p.Attributes[gltf.TEXCOORD_0]; ok {
		if acr, err = b.accessor(a); err != nil {
			return nil, err
		}
		uvs, err := modeler.ReadTextureCoord(b.doc, acr, nil)
		if err != nil {
			return nil, errors.Wrap(err, "read texcoords")
		}
		m.TexCoords = make([]lin.Vec2, len(uvs))
		for i, v := range uvs {
			m.TexCoords[i] = lin.Vec2(v)
		}
	}
	if a, ok := p.Attributes[gltf.TANGENT]; ok && len(m.Normals) == len(m.Positions) {
		if acr, err = b.accessor(a); err != nil {
			return nil, err
		}
		tangents, err := modeler.ReadTangent(b.doc, acr, nil)
		if err != nil {
			return nil, errors.Wrap(err, "read tangents")
		}
		if len(tangents) == len(m.Positions) {
			m.Tangents = make([]lin.Vec3, len(tangents))
			m.Bitangents = make([]lin.Vec3, len(tangents))
			for i, v := range tangents {
				t := lin.Vec3{v[0], v[1], v[2]}
				// The w component stores the handedness of the bitangent.
				var bt lin.Vec3
				bt.MultCross(&m.Normals[i], &t)
				bt.Scale(&bt, v[3])
				m.Tangents[i], m.Bitangents[i] = t, bt
			}
		}
	}

	var indices []uint32
	if p.Indices != nil {
		if acr, err = b.accessor(*p.Indices); err != nil {
			return nil, err
		}
		if indices, err = modeler.ReadIndices(b.doc, acr, nil); err != nil {
			return nil, errors.Wrap(err, "read indices")
		}
	} else {
		indices = make([]uint32, len(pos))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	m.Faces = assemble(p.Mode, indices)
	return m, nil
}

// assemble groups an index stream into triangles.
func assemble(mode gltf.PrimitiveMode, idx []uint32) [][]uint32 {
	var faces [][]uint32
	switch mode {
	case gltf.PrimitiveTriangleStrip:
		for i := 0; i+2 < len(idx); i++ {
			if i%2 == 0 {
				faces = append(faces, []uint32{idx[i], idx[i+1], idx[i+2]})
			} else {
				faces = append(faces, []uint32{idx[i+1], idx[i], idx[i+2]})
			}
		}
	case gltf.PrimitiveTriangleFan:
		for i := 1; i+1 < len(idx); i++ {
			faces = append(faces, []uint32{idx[0], idx[i], idx[i+1]})
		}
	default:
		for i := 0; i+2 < len(idx); i += 3 {
			faces = append(faces, []uint32{idx[i], idx[i+1], idx[i+2]})
		}
	}
	return faces
}
