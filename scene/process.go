package scene

import (
	"fmt"
	"math"
	"strings"

	lin "github.com/xlab/linmath"
)

// PostProcess selects the steps Process applies.
type PostProcess uint32

const (
	Triangulate PostProcess = 1 << iota
	FlipUVs
	CalcTangentSpace
	JoinIdenticalVertices
	OptimizeMeshes
)

// DefaultPostProcess is the pipeline every model is imported with.
const DefaultPostProcess = Triangulate | FlipUVs | CalcTangentSpace | JoinIdenticalVertices | OptimizeMeshes

var postProcessNames = []struct {
	flag PostProcess
	name string
}{
	{Triangulate, "triangulate"},
	{FlipUVs, "flip_uvs"},
	{CalcTangentSpace, "calc_tangent_space"},
	{JoinIdenticalVertices, "join_identical_vertices"},
	{OptimizeMeshes, "optimize_meshes"},
}

func (p PostProcess) String() string {
	var names []string
	for _, n := range postProcessNames {
		if p&n.flag != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

// ParsePostProcess combines step names as written by PostProcess.String.
func ParsePostProcess(names []string) (PostProcess, error) {
	var p PostProcess
next:
	for _, s := range names {
		s = strings.ToLower(strings.TrimSpace(s))
		for _, n := range postProcessNames {
			if n.name == s {
				p |= n.flag
				continue next
			}
		}
		return 0, fmt.Errorf("unknown post-process step %q", s)
	}
	return p, nil
}

// Process applies the selected steps to s in a fixed order: triangulate,
// flip UVs, tangent space, vertex join, mesh merge.
func Process(s *Scene, flags PostProcess) error {
	if err := s.Validate(); err != nil {
		return err
	}
	for _, m := range s.Meshes {
		if flags&Triangulate != 0 {
			triangulate(m)
		}
		if flags&FlipUVs != 0 {
			for i := range m.TexCoords {
				m.TexCoords[i][1] = 1 - m.TexCoords[i][1]
			}
		}
		if flags&CalcTangentSpace != 0 && !m.HasTangents() {
			if m.HasTexCoords() && m.HasNormals() {
				calcTangentSpace(m)
			} else {
				s.Warnings = append(s.Warnings, fmt.Sprintf("mesh %q: no texcoords or normals, tangents not computed", m.Name))
			}
		}
		if flags&JoinIdenticalVertices != 0 {
			joinIdenticalVertices(m)
		}
	}
	if flags&OptimizeMeshes != 0 {
		optimizeMeshes(s)
	}
	return nil
}

// triangulate splits polygons into fans and drops points and lines.
func triangulate(m *Mesh) {
	faces := make([][]uint32, 0, len(m.Faces))
	for _, f := range m.Faces {
		if len(f) < 3 {
			continue
		}
		for i := 1; i+1 < len(f); i++ {
			faces = append(faces, []uint32{f[0], f[i], f[i+1]})
		}
	}
	m.Faces = faces
}

func dot(a, b *lin.Vec3) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func isZero(v *lin.Vec3) bool {
	return dot(v, v) < 1e-12
}

// calcTangentSpace accumulates per-triangle tangents and bitangents and
// orthogonalizes them against the vertex normal.
func calcTangentSpace(m *Mesh) {
	n := len(m.Positions)
	tan := make([]lin.Vec3, n)
	bitan := make([]lin.Vec3, n)
	for _, f := range m.Faces {
		if len(f) != 3 {
			continue
		}
		i0, i1, i2 := f[0], f[1], f[2]
		var e1, e2 lin.Vec3
		e1.Sub(&m.Positions[i1], &m.Positions[i0])
		e2.Sub(&m.Positions[i2], &m.Positions[i0])
		du1 := m.TexCoords[i1][0] - m.TexCoords[i0][0]
		dv1 := m.TexCoords[i1][1] - m.TexCoords[i0][1]
		du2 := m.TexCoords[i2][0] - m.TexCoords[i0][0]
		dv2 := m.TexCoords[i2][1] - m.TexCoords[i0][1]
		r := du1*dv2 - du2*dv1
		if math.Abs(float64(r)) < 1e-12 {
			continue
		}
		inv := 1 / r
		var a, b, t, bt lin.Vec3
		a.Scale(&e1, dv2)
		b.Scale(&e2, dv1)
		t.Sub(&a, &b)
		t.Scale(&t, inv)
		a.Scale(&e2, du1)
		b.Scale(&e1, du2)
		bt.Sub(&a, &b)
		bt.Scale(&bt, inv)
		for _, i := range f {
			tan[i].Add(&tan[i], &t)
			bitan[i].Add(&bitan[i], &bt)
		}
	}
	m.Tangents = make([]lin.Vec3, n)
	m.Bitangents = make([]lin.Vec3, n)
	for i := 0; i < n; i++ {
		nrm := m.Normals[i]
		t := tan[i]
		// Gram-Schmidt: t -= n * dot(n, t)
		var proj lin.Vec3
		proj.Scale(&nrm, dot(&nrm, &t))
		t.Sub(&t, &proj)
		if isZero(&t) {
			t = perpendicular(&nrm)
		}
		t.Norm(&t)
		var b lin.Vec3
		b.MultCross(&nrm, &t)
		if dot(&b, &bitan[i]) < 0 {
			b.Scale(&b, -1)
		}
		m.Tangents[i] = t
		m.Bitangents[i] = b
	}
}

// perpendicular returns some vector orthogonal to n.
func perpendicular(n *lin.Vec3) lin.Vec3 {
	axis := lin.Vec3{1, 0, 0}
	if math.Abs(float64(n[0])) > 0.9 {
		axis = lin.Vec3{0, 1, 0}
	}
	var p lin.Vec3
	p.MultCross(n, &axis)
	return p
}

type vertexKey struct {
	p, n, t, b lin.Vec3
	uv         lin.Vec2
}

func joinIdenticalVertices(m *Mesh) {
	hasN, hasUV, hasT := m.HasNormals(), m.HasTexCoords(), m.HasTangents()
	key := func(i uint32) vertexKey {
		k := vertexKey{p: m.Positions[i]}
		if hasN {
			k.n = m.Normals[i]
		}
		if hasUV {
			k.uv = m.TexCoords[i]
		}
		if hasT {
			k.t, k.b = m.Tangents[i], m.Bitangents[i]
		}
		return k
	}
	seen := make(map[vertexKey]uint32, len(m.Positions))
	remap := make([]uint32, len(m.Positions))
	var keep []uint32
	for i := range m.Positions {
		k := key(uint32(i))
		if j, ok := seen[k]; ok {
			remap[i] = j
			continue
		}
		j := uint32(len(keep))
		seen[k] = j
		remap[i] = j
		keep = append(keep, uint32(i))
	}
	if len(keep) == len(m.Positions) {
		return
	}
	m.Positions = gather(m.Positions, keep)
	if hasN {
		m.Normals = gather(m.Normals, keep)
	}
	if hasUV {
		m.TexCoords = gather(m.TexCoords, keep)
	}
	if hasT {
		m.Tangents = gather(m.Tangents, keep)
		m.Bitangents = gather(m.Bitangents, keep)
	}
	for _, f := range m.Faces {
		for j, v := range f {
			f[j] = remap[v]
		}
	}
}

func gather[T any](src []T, idx []uint32) []T {
	dst := make([]T, len(idx))
	for i, j := range idx {
		dst[i] = src[j]
	}
	return dst
}

type mergeKey struct {
	material       int
	normals, uvs   bool
	tangents, used bool
}

// optimizeMeshes merges meshes that are referenced once, live in the same
// node and share a material and attribute layout.
func optimizeMeshes(s *Scene) {
	refs := make([]int, len(s.Meshes))
	s.Root.Walk(func(n *Node) {
		for _, mi := range n.Meshes {
			refs[mi]++
		}
	})
	removed := make([]bool, len(s.Meshes))
	s.Root.Walk(func(n *Node) {
		first := make(map[mergeKey]int)
		kept := n.Meshes[:0]
		for _, mi := range n.Meshes {
			m := s.Meshes[mi]
			if refs[mi] != 1 {
				kept = append(kept, mi)
				continue
			}
			k := mergeKey{m.MaterialIndex, m.HasNormals(), m.HasTexCoords(), m.HasTangents(), true}
			if dst, ok := first[k]; ok {
				appendMesh(s.Meshes[dst], m)
				removed[mi] = true
				continue
			}
			first[k] = mi
			kept = append(kept, mi)
		}
		n.Meshes = kept
	})
	remap := make([]int, len(s.Meshes))
	meshes := s.Meshes[:0]
	for i, m := range s.Meshes {
		if removed[i] {
			remap[i] = -1
			continue
		}
		remap[i] = len(meshes)
		meshes = append(meshes, m)
	}
	for i := len(meshes); i < len(s.Meshes); i++ {
		s.Meshes[i] = nil
	}
	s.Meshes = meshes
	s.Root.Walk(func(n *Node) {
		for j, mi := range n.Meshes {
			n.Meshes[j] = remap[mi]
		}
	})
}

func appendMesh(dst, src *Mesh) {
	base := uint32(len(dst.Positions))
	dst.Positions = append(dst.Positions, src.Positions...)
	dst.Normals = append(dst.Normals, src.Normals...)
	dst.TexCoords = append(dst.TexCoords, src.TexCoords...)
	dst.Tangents = append(dst.Tangents, src.Tangents...)
	dst.Bitangents = append(dst.Bitangents, src.Bitangents...)
	for _, f := range src.Faces {
		nf := make([]uint32, len(f))
		for i, v := range f {
			nf[i] = v + base
		}
		dst.Faces = append(dst.Faces, nf)
	}
}
