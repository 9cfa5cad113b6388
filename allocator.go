package vkscene

import (
	"github.com/cockroachdb/errors"
)

// FindMemoryType returns the lowest memory type index whose bit is set in
// filter and whose property flags include every flag in want.
func FindMemoryType(props MemoryProperties, filter uint32, want MemoryPropertyFlags) (uint32, error) {
	for i, typ := range props.Types {
		if i >= 32 {
			break
		}
		if filter&(1<<uint(i)) == 0 {
			continue
		}
		if typ.PropertyFlags&want == want {
			return uint32(i), nil
		}
	}
	return 0, errors.Wrapf(ErrNoMemoryType, "filter %#x, properties %#x", filter, uint32(want))
}

// Allocator creates buffers and images with bound device memory. Memory
// properties are read once, at construction.
type Allocator struct {
	dev   Device
	props MemoryProperties
}

func NewAllocator(dev Device) *Allocator {
	return &Allocator{
		dev:   dev,
		props: dev.MemoryProperties(),
	}
}

// MemoryProperties returns the snapshot taken by NewAllocator.
func (a *Allocator) MemoryProperties() MemoryProperties { return a.props }

// AllocateBuffer creates a buffer of size bytes and binds memory with the
// requested properties to it. On failure nothing created here survives.
// The caller owns the result: register it or Release it.
func (a *Allocator) AllocateBuffer(size uint64, usage BufferUsageFlags, props MemoryPropertyFlags) (*BufferResource, error) {
	if size == 0 {
		return nil, newError(KindAllocation, "", errors.New("zero-sized buffer"))
	}
	buf, err := a.dev.CreateBuffer(size, usage)
	if err != nil {
		return nil, allocError("", err, "create buffer (%d bytes)", size)
	}
	req := a.dev.BufferMemoryRequirements(buf)
	mem, err := a.allocate(req, props)
	if err != nil {
		return nil, errors.CombineErrors(err, a.dev.DestroyBuffer(buf))
	}
	if err = a.dev.BindBufferMemory(buf, mem); err != nil {
		err = allocError("", err, "bind buffer memory")
		err = errors.CombineErrors(err, a.dev.DestroyBuffer(buf))
		return nil, errors.CombineErrors(err, a.dev.FreeMemory(mem))
	}
	return &BufferResource{
		dev:    a.dev,
		Buffer: buf,
		Memory: mem,
		Size:   size,
	}, nil
}

// AllocateImage creates a 2D image and binds memory with the requested
// properties to it. The same ownership rules as AllocateBuffer apply.
func (a *Allocator) AllocateImage(width, height uint32, format Format, tiling ImageTiling, usage ImageUsageFlags, props MemoryPropertyFlags) (*ImageResource, error) {
	if width == 0 || height == 0 {
		return nil, newError(KindAllocation, "", errors.Newf("zero-sized image %dx%d", width, height))
	}
	img, err := a.dev.CreateImage(ImageInfo{
		Width:  width,
		Height: height,
		Format: format,
		Tiling: tiling,
		Usage:  usage,
	})
	if err != nil {
		return nil, allocError("", err, "create image %dx%d", width, height)
	}
	req := a.dev.ImageMemoryRequirements(img)
	mem, err := a.allocate(req, props)
	if err != nil {
		return nil, errors.CombineErrors(err, a.dev.DestroyImage(img))
	}
	if err = a.dev.BindImageMemory(img, mem); err != nil {
		err = allocError("", err, "bind image memory")
		err = errors.CombineErrors(err, a.dev.DestroyImage(img))
		return nil, errors.CombineErrors(err, a.dev.FreeMemory(mem))
	}
	return &ImageResource{
		dev:    a.dev,
		Image:  img,
		Memory: mem,
		Width:  width,
		Height: height,
		Format: format,
	}, nil
}

func (a *Allocator) allocate(req MemoryRequirements, props MemoryPropertyFlags) (DeviceMemory, error) {
	typ, err := FindMemoryType(a.props, req.TypeBits, props)
	if err != nil {
		return 0, newError(KindAllocation, "", err)
	}
	mem, err := a.dev.AllocateMemory(req.Size, typ)
	if err != nil {
		return 0, allocError("", err, "allocate %d bytes from memory type %d", req.Size, typ)
	}
	return mem, nil
}

// CreateImageView creates a 2D color view of the single level and layer of img.
func (a *Allocator) CreateImageView(img *ImageResource) (ImageView, error) {
	view, err := a.dev.CreateImageView(img.Image, img.Format)
	if err != nil {
		return 0, allocError("", err, "create image view")
	}
	return view, nil
}

// CreateSampler creates a sampler from info.
func (a *Allocator) CreateSampler(info SamplerInfo) (Sampler, error) {
	s, err := a.dev.CreateSampler(info)
	if err != nil {
		return 0, allocError("", err, "create sampler")
	}
	return s, nil
}

// upload copies data into a host-visible resource's memory.
func (a *Allocator) upload(res *BufferResource, data []byte) error {
	p, err := a.dev.MapMemory(res.Memory, uint64(len(data)))
	if err != nil {
		return allocError("", err, "map memory")
	}
	n := copy(p, data)
	a.dev.UnmapMemory(res.Memory)
	if n != len(data) {
		return newError(KindAllocation, "", errors.Newf("mapped %d bytes, need %d", n, len(data)))
	}
	return nil
}
