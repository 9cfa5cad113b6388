package importer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/andewx/vkscene/scene"
	"github.com/cockroachdb/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quadOBJ = `mtllib scene.mtl
o wall
usemtl brick
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
f 1/1/1 2/2/1 3/3/1 4/4/1
`

const quadMTL = `newmtl brick
Kd 1 1 1
map_Kd textures/wall.png
`

func writeOBJ(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scene.obj"), []byte(quadOBJ), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scene.mtl"), []byte(quadMTL), 0644))
	return filepath.Join(dir, "scene.obj")
}

func TestImportOBJ(t *testing.T) {
	path := writeOBJ(t)
	s, err := New(0).Import(path)
	require.NoError(t, err)

	require.Len(t, s.Meshes, 1)
	m := s.Meshes[0]
	assert.Equal(t, "wall", m.Name)
	assert.Len(t, m.Positions, 4)
	assert.True(t, m.HasNormals())
	assert.True(t, m.HasTexCoords())
	assert.Equal(t, [][]uint32{{0, 1, 2, 3}}, m.Faces)

	require.Len(t, s.Materials, 1)
	mat := s.Material(m)
	require.NotNil(t, mat)
	assert.Equal(t, []string{filepath.Join(filepath.Dir(path), "textures", "wall.png")}, mat.TexturesOf(scene.TextureDiffuse))

	require.Len(t, s.Root.Children, 1)
	assert.Equal(t, []int{0}, s.Root.Children[0].Meshes)
}

func TestImportOBJPostProcess(t *testing.T) {
	s, err := New(scene.DefaultPostProcess).Import(writeOBJ(t))
	require.NoError(t, err)
	m := s.Meshes[0]
	assert.Len(t, m.Faces, 2)
	assert.True(t, m.HasTangents())
	// v flipped
	assert.Equal(t, float32(1), m.TexCoords[0][1])
}

func TestImportErrors(t *testing.T) {
	_, err := New(0).Import("model.fbx")
	assert.True(t, errors.Is(err, ErrUnsupported))

	_, err = New(0).Import(filepath.Join(t.TempDir(), "missing.obj"))
	assert.Error(t, err)

	_, err = New(0).Import(filepath.Join(t.TempDir(), "missing.gltf"))
	assert.Error(t, err)
}

func quadDocument() *gltf.Document {
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}})
	nrm := modeler.WriteNormal(doc, [][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}})
	uv := modeler.WriteTextureCoord(doc, [][2]float32{{0, 0}, {1, 0}, {0, 1}, {1, 1}})
	idx := modeler.WriteIndices(doc, []uint16{0, 1, 2, 2, 1, 3})

	doc.Images = []*gltf.Image{
		{URI: "tex/base%20color.png"},
		{URI: "data:image/png;base64,AAAA"},
	}
	doc.Textures = []*gltf.Texture{{Source: gltf.Index(0)}, {Source: gltf.Index(1)}}
	doc.Materials = []*gltf.Material{{
		Name: "painted",
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorTexture: &gltf.TextureInfo{Index: 0},
		},
		NormalTexture: &gltf.NormalTexture{Index: gltf.Index(1)},
	}}
	doc.Meshes = []*gltf.Mesh{{
		Name: "quad",
		Primitives: []*gltf.Primitive{{
			Indices:    gltf.Index(idx),
			Material:   gltf.Index(0),
			Attributes: map[string]int{gltf.POSITION: pos, gltf.NORMAL: nrm, gltf.TEXCOORD_0: uv},
		}},
	}}
	doc.Nodes = []*gltf.Node{
		{Name: "parent", Mesh: gltf.Index(0), Children: []int{1}},
		{Name: "child", Mesh: gltf.Index(0)},
	}
	doc.Scenes[0].Nodes = []int{0}
	return doc
}

func TestBuildGLTF(t *testing.T) {
	dir := filepath.Join("models", "quad")
	s, err := buildGLTF(quadDocument(), dir, "quad.gltf")
	require.NoError(t, err)

	require.Len(t, s.Meshes, 1, "instanced mesh converted once")
	parent := s.Root.Children[0]
	assert.Equal(t, "parent", parent.Name)
	assert.Equal(t, []int{0}, parent.Meshes)
	assert.Equal(t, []int{0}, parent.Children[0].Meshes)

	m := s.Meshes[0]
	assert.Equal(t, "quad", m.Name)
	assert.Len(t, m.Positions, 4)
	assert.True(t, m.HasNormals())
	assert.True(t, m.HasTexCoords())
	assert.Equal(t, [][]uint32{{0, 1, 2}, {2, 1, 3}}, m.Faces)
	assert.Equal(t, 0, m.MaterialIndex)

	mat := s.Materials[0]
	assert.Equal(t, []string{filepath.Join(dir, "tex", "base color.png")}, mat.TexturesOf(scene.TextureDiffuse))
	assert.Empty(t, mat.TexturesOf(scene.TextureNormal), "embedded image skipped")
	assert.NotEmpty(t, s.Warnings)
	require.NoError(t, s.Validate())
}

func TestBuildGLTFNoScene(t *testing.T) {
	doc := quadDocument()
	doc.Scenes = nil
	doc.Scene = nil
	_, err := buildGLTF(doc, ".", "empty.gltf")
	assert.Error(t, err)
}

func TestAssemble(t *testing.T) {
	idx := []uint32{0, 1, 2, 3, 4}
	assert.Equal(t, [][]uint32{{0, 1, 2}}, assemble(gltf.PrimitiveTriangles, idx))
	assert.Equal(t, [][]uint32{{0, 1, 2}, {2, 1, 3}, {2, 3, 4}}, assemble(gltf.PrimitiveTriangleStrip, idx))
	assert.Equal(t, [][]uint32{{0, 1, 2}, {0, 2, 3}, {0, 3, 4}}, assemble(gltf.PrimitiveTriangleFan, idx))
}

func TestResolve(t *testing.T) {
	assert.Equal(t, filepath.Join("a", "b", "c.png"), resolve("a", `b\c.png`))
	assert.Equal(t, filepath.Join("a", "my tex.png"), resolve("a", "my%20tex.png"))
	abs := filepath.Join(string(filepath.Separator), "tmp", "x.png")
	assert.Equal(t, abs, resolve("a", abs))
}

const mappedMTL = `newmtl brick
map_Kd wall.png
map_Ks spec.png
norm n.png
map_Bump -bm 0.5 bump.png

newmtl plain
Kd 1 1 1
map_bump plain_bump.png
`

func TestImportOBJMaterialMaps(t *testing.T) {
	dir := t.TempDir()
	obj := "mtllib scene.mtl\no wall\nusemtl brick\nv 0 0 0\nv 1 0 0\nv 0 1 0\nvt 0 0\nvt 1 0\nvt 0 1\nf 1/1 2/2 3/3\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scene.obj"), []byte(obj), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scene.mtl"), []byte(mappedMTL), 0644))

	s, err := New(0).Import(filepath.Join(dir, "scene.obj"))
	require.NoError(t, err)

	var brick, plain *scene.Material
	for _, m := range s.Materials {
		switch m.Name {
		case "brick":
			brick = m
		case "plain":
			plain = m
		}
	}
	require.NotNil(t, brick)
	assert.Equal(t, []string{filepath.Join(dir, "wall.png")}, brick.TexturesOf(scene.TextureDiffuse))
	assert.Equal(t, []string{filepath.Join(dir, "spec.png")}, brick.TexturesOf(scene.TextureSpecular))
	assert.Equal(t, []string{filepath.Join(dir, "n.png")}, brick.TexturesOf(scene.TextureNormal))

	require.NotNil(t, plain)
	assert.Equal(t, []string{filepath.Join(dir, "plain_bump.png")}, plain.TexturesOf(scene.TextureNormal))

	for _, w := range s.Warnings {
		assert.NotContains(t, w, "map_Ks")
		assert.NotContains(t, w, "norm")
	}
}

func TestMaterialMapsRefs(t *testing.T) {
	m := mtlMaps{"map_bump": "b.png", "bump": "c.png", "map_ke": "glow.png"}
	assert.Equal(t, []scene.TextureRef{
		{Type: scene.TextureNormal, Path: filepath.Join("d", "b.png")},
		{Type: scene.TextureEmissive, Path: filepath.Join("d", "glow.png")},
	}, m.refs("d"))
	assert.Empty(t, mtlMaps(nil).refs("d"))
}

func TestUnsupportedWarning(t *testing.T) {
	assert.True(t, unsupportedWarning("field not supported: map_Ks"))
	assert.True(t, unsupportedWarning("field not supported: norm"))
	assert.False(t, unsupportedWarning("field not supported: map_d"))
	assert.False(t, unsupportedWarning("unknown material norm"))
}
