package vkscene

import (
	"encoding/binary"
	"math"

	"github.com/andewx/vkscene/scene"
	lin "github.com/xlab/linmath"
)

const (
	// VertexStride is position, normal, texcoord, tangent and bitangent as
	// little-endian float32.
	VertexStride = (3 + 3 + 2 + 3 + 3) * 4
	IndexStride  = 4
)

// PackVertices interleaves the attributes of m. Missing attributes are zero.
func PackVertices(m *scene.Mesh) []byte {
	hasN, hasUV, hasT := m.HasNormals(), m.HasTexCoords(), m.HasTangents()
	out := make([]byte, len(m.Positions)*VertexStride)
	var zero3 lin.Vec3
	var zero2 lin.Vec2
	for i := range m.Positions {
		p := out[i*VertexStride:]
		p = putFloats(p, m.Positions[i][:])
		if hasN {
			p = putFloats(p, m.Normals[i][:])
		} else {
			p = putFloats(p, zero3[:])
		}
		if hasUV {
			p = putFloats(p, m.TexCoords[i][:])
		} else {
			p = putFloats(p, zero2[:])
		}
		if hasT {
			p = putFloats(p, m.Tangents[i][:])
			putFloats(p, m.Bitangents[i][:])
		} else {
			p = putFloats(p, zero3[:])
			putFloats(p, zero3[:])
		}
	}
	return out
}

func putFloats(p []byte, v []float32) []byte {
	for _, f := range v {
		binary.LittleEndian.PutUint32(p, math.Float32bits(f))
		p = p[4:]
	}
	return p
}

// PackIndices encodes idx as little-endian uint32.
func PackIndices(idx []uint32) []byte {
	out := make([]byte, len(idx)*IndexStride)
	for i, v := range idx {
		binary.LittleEndian.PutUint32(out[i*IndexStride:], v)
	}
	return out
}

// geometryUploader creates per-mesh vertex and index buffers. They are never
// shared or cached.
type geometryUploader struct {
	ctx   DeviceContext
	alloc *Allocator
	stage bool
}

// upload copies data into a new buffer. Staged buffers are device local and
// filled through a transient host-visible buffer.
func (g *geometryUploader) upload(data []byte, usage BufferUsageFlags, count, stride uint32) (*GeometryBuffer, error) {
	size := uint64(len(data))
	if !g.stage {
		buf, err := g.alloc.AllocateBuffer(size, usage, MemoryPropertyHostVisible|MemoryPropertyHostCoherent)
		if err != nil {
			return nil, err
		}
		if err = g.alloc.upload(buf, data); err != nil {
			buf.Release()
			return nil, err
		}
		return &GeometryBuffer{BufferResource: *buf, Count: count, Stride: stride}, nil
	}

	staging, err := g.alloc.AllocateBuffer(size, BufferUsageTransferSrc, MemoryPropertyHostVisible|MemoryPropertyHostCoherent)
	if err != nil {
		return nil, err
	}
	defer staging.Release()
	if err = g.alloc.upload(staging, data); err != nil {
		return nil, err
	}
	buf, err := g.alloc.AllocateBuffer(size, usage|BufferUsageTransferDst, MemoryPropertyDeviceLocal)
	if err != nil {
		return nil, err
	}
	if err = g.ctx.CopyBuffer(staging.Buffer, buf.Buffer, size); err != nil {
		buf.Release()
		return nil, allocError("", err, "copy staging buffer")
	}
	return &GeometryBuffer{BufferResource: *buf, Count: count, Stride: stride}, nil
}

// uploadMesh creates the vertex and index buffers of m. If the index buffer
// fails the vertex buffer is released.
func (g *geometryUploader) uploadMesh(m *scene.Mesh) (vertices, indices *GeometryBuffer, err error) {
	idx := m.Indices()
	vertices, err = g.upload(PackVertices(m), BufferUsageVertex, uint32(len(m.Positions)), VertexStride)
	if err != nil {
		return nil, nil, err
	}
	indices, err = g.upload(PackIndices(idx), BufferUsageIndex, uint32(len(idx)), IndexStride)
	if err != nil {
		vertices.Release()
		return nil, nil, err
	}
	return vertices, indices, nil
}
