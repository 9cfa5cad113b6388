package vkscene

import (
	"github.com/andewx/vkscene/scene"
	"github.com/cockroachdb/errors"
)

// BufferResource owns a buffer and the memory bound to it.
type BufferResource struct {
	dev    Device
	Buffer Buffer
	Memory DeviceMemory
	Size   uint64
}

// Release destroys the buffer, then frees its memory. It is a no-op on an
// already released resource.
func (b *BufferResource) Release() error {
	if b == nil || b.dev == nil {
		return nil
	}
	var err error
	if b.Buffer != 0 {
		err = errors.CombineErrors(err, errors.Wrap(b.dev.DestroyBuffer(b.Buffer), "destroy buffer"))
	}
	if b.Memory != 0 {
		err = errors.CombineErrors(err, errors.Wrap(b.dev.FreeMemory(b.Memory), "free buffer memory"))
	}
	*b = BufferResource{}
	return err
}

// ImageResource owns an image and the memory bound to it.
type ImageResource struct {
	dev    Device
	Image  Image
	Memory DeviceMemory
	Width  uint32
	Height uint32
	Format Format
}

// Release destroys the image, then frees its memory.
func (r *ImageResource) Release() error {
	if r == nil || r.dev == nil {
		return nil
	}
	var err error
	if r.Image != 0 {
		err = errors.CombineErrors(err, errors.Wrap(r.dev.DestroyImage(r.Image), "destroy image"))
	}
	if r.Memory != 0 {
		err = errors.CombineErrors(err, errors.Wrap(r.dev.FreeMemory(r.Memory), "free image memory"))
	}
	*r = ImageResource{}
	return err
}

// Texture is a sampled image uploaded from one source file.
type Texture struct {
	dev     Device
	Image   Image
	Memory  DeviceMemory
	View    ImageView
	Sampler Sampler
	// Type is the semantic of the first material that requested the file.
	Type   scene.TextureType
	Path   string
	Width  uint32
	Height uint32
}

// Valid reports whether all four GPU handles are present.
func (t *Texture) Valid() bool {
	return t != nil && t.Image != 0 && t.Memory != 0 && t.View != 0 && t.Sampler != 0
}

// Release destroys the sampler, view, image and memory, in that order. Every
// step runs even if an earlier one failed.
func (t *Texture) Release() error {
	if t == nil || t.dev == nil {
		return nil
	}
	var err error
	if t.Sampler != 0 {
		err = errors.CombineErrors(err, errors.Wrap(t.dev.DestroySampler(t.Sampler), "destroy sampler"))
	}
	if t.View != 0 {
		err = errors.CombineErrors(err, errors.Wrap(t.dev.DestroyImageView(t.View), "destroy image view"))
	}
	if t.Image != 0 {
		err = errors.CombineErrors(err, errors.Wrap(t.dev.DestroyImage(t.Image), "destroy image"))
	}
	if t.Memory != 0 {
		err = errors.CombineErrors(err, errors.Wrap(t.dev.FreeMemory(t.Memory), "free image memory"))
	}
	t.dev = nil
	t.Sampler, t.View, t.Image, t.Memory = 0, 0, 0, 0
	return err
}

// GeometryBuffer is a per-mesh vertex or index buffer.
type GeometryBuffer struct {
	BufferResource
	Count  uint32
	Stride uint32
}
