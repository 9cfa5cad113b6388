// Package vulkan implements vkscene.DeviceContext on top of vulkan-go.
package vulkan

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/andewx/vkscene"
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
	"golang.org/x/sync/semaphore"
)

var _ vkscene.DeviceContext = (*Context)(nil)

// table maps opaque vkscene handles to Vulkan handles.
type table[K ~uint64, V any] struct {
	mu      sync.Mutex
	entries map[K]V
	next    *uint64
}

func newTable[K ~uint64, V any](next *uint64) *table[K, V] {
	return &table[K, V]{entries: make(map[K]V), next: next}
}

func (t *table[K, V]) add(v V) K {
	k := K(atomic.AddUint64(t.next, 1))
	t.mu.Lock()
	t.entries[k] = v
	t.mu.Unlock()
	return k
}

func (t *table[K, V]) get(k K) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.entries[k]
	return v, ok
}

func (t *table[K, V]) remove(k K) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.entries[k]
	delete(t.entries, k)
	return v, ok
}

func (t *table[K, V]) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Context wraps the device, physical device, graphics queue and command pool
// of an embedding renderer. It never creates or destroys those four objects.
type Context struct {
	device vk.Device
	gpu    vk.PhysicalDevice
	queue  vk.Queue
	pool   vk.CommandPool
	props  vkscene.MemoryProperties

	// submit serializes use of queue and pool, neither of which is
	// externally synchronized by Vulkan.
	submit *semaphore.Weighted
	fences *fenceManager

	next     uint64
	buffers  *table[vkscene.Buffer, vk.Buffer]
	images   *table[vkscene.Image, vk.Image]
	views    *table[vkscene.ImageView, vk.ImageView]
	samplers *table[vkscene.Sampler, vk.Sampler]
	memory   *table[vkscene.DeviceMemory, vk.DeviceMemory]
}

// NewContext reads the memory properties of gpu once. Share one Context
// between loaders that submit to the same queue.
func NewContext(device vk.Device, gpu vk.PhysicalDevice, queue vk.Queue, pool vk.CommandPool) *Context {
	c := &Context{
		device: device,
		gpu:    gpu,
		queue:  queue,
		pool:   pool,
		submit: semaphore.NewWeighted(1),
		fences: newFenceManager(device),
	}
	c.buffers = newTable[vkscene.Buffer, vk.Buffer](&c.next)
	c.images = newTable[vkscene.Image, vk.Image](&c.next)
	c.views = newTable[vkscene.ImageView, vk.ImageView](&c.next)
	c.samplers = newTable[vkscene.Sampler, vk.Sampler](&c.next)
	c.memory = newTable[vkscene.DeviceMemory, vk.DeviceMemory](&c.next)

	var mp vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(gpu, &mp)
	mp.Deref()
	for i := uint32(0); i < mp.MemoryTypeCount; i++ {
		t := mp.MemoryTypes[i]
		t.Deref()
		c.props.Types = append(c.props.Types, vkscene.MemoryType{
			PropertyFlags: vkscene.MemoryPropertyFlags(t.PropertyFlags),
			HeapIndex:     t.HeapIndex,
		})
	}
	return c
}

// Live returns the number of objects created through c and not yet destroyed.
func (c *Context) Live() int {
	return c.buffers.count() + c.images.count() + c.views.count() + c.samplers.count() + c.memory.count()
}

// Destroy releases the fences c created. Objects created through c must
// already be destroyed.
func (c *Context) Destroy() {
	c.fences.destroy()
}

func (c *Context) MemoryProperties() vkscene.MemoryProperties { return c.props }

func unknown(kind string, h uint64) error {
	return errors.Newf("unknown %s handle %d", kind, h)
}

func (c *Context) CreateBuffer(size uint64, usage vkscene.BufferUsageFlags) (vkscene.Buffer, error) {
	var buf vk.Buffer
	ret := vk.CreateBuffer(c.device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &buf)
	if isError(ret) {
		return 0, newError(ret)
	}
	return c.buffers.add(buf), nil
}

func (c *Context) BufferMemoryRequirements(buf vkscene.Buffer) vkscene.MemoryRequirements {
	b, ok := c.buffers.get(buf)
	if !ok {
		return vkscene.MemoryRequirements{}
	}
	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(c.device, b, &req)
	req.Deref()
	return vkscene.MemoryRequirements{
		Size:      uint64(req.Size),
		Alignment: uint64(req.Alignment),
		TypeBits:  req.MemoryTypeBits,
	}
}

func (c *Context) BindBufferMemory(buf vkscene.Buffer, mem vkscene.DeviceMemory) error {
	b, ok := c.buffers.get(buf)
	if !ok {
		return unknown("buffer", uint64(buf))
	}
	m, ok := c.memory.get(mem)
	if !ok {
		return unknown("memory", uint64(mem))
	}
	return newError(vk.BindBufferMemory(c.device, b, m, 0))
}

func (c *Context) DestroyBuffer(buf vkscene.Buffer) error {
	b, ok := c.buffers.remove(buf)
	if !ok {
		return unknown("buffer", uint64(buf))
	}
	vk.DestroyBuffer(c.device, b, nil)
	return nil
}

func (c *Context) CreateImage(info vkscene.ImageInfo) (vkscene.Image, error) {
	var img vk.Image
	ret := vk.CreateImage(c.device, &vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  info.Width,
			Height: info.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        vk.Format(info.Format),
		Tiling:        vk.ImageTiling(info.Tiling),
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         vk.ImageUsageFlags(info.Usage),
		SharingMode:   vk.SharingModeExclusive,
		Samples:       vk.SampleCount1Bit,
	}, nil, &img)
	if isError(ret) {
		return 0, newError(ret)
	}
	return c.images.add(img), nil
}

func (c *Context) ImageMemoryRequirements(img vkscene.Image) vkscene.MemoryRequirements {
	i, ok := c.images.get(img)
	if !ok {
		return vkscene.MemoryRequirements{}
	}
	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(c.device, i, &req)
	req.Deref()
	return vkscene.MemoryRequirements{
		Size:      uint64(req.Size),
		Alignment: uint64(req.Alignment),
		TypeBits:  req.MemoryTypeBits,
	}
}

func (c *Context) BindImageMemory(img vkscene.Image, mem vkscene.DeviceMemory) error {
	i, ok := c.images.get(img)
	if !ok {
		return unknown("image", uint64(img))
	}
	m, ok := c.memory.get(mem)
	if !ok {
		return unknown("memory", uint64(mem))
	}
	return newError(vk.BindImageMemory(c.device, i, m, 0))
}

func (c *Context) DestroyImage(img vkscene.Image) error {
	i, ok := c.images.remove(img)
	if !ok {
		return unknown("image", uint64(img))
	}
	vk.DestroyImage(c.device, i, nil)
	return nil
}

func (c *Context) AllocateMemory(size uint64, typeIndex uint32) (vkscene.DeviceMemory, error) {
	var mem vk.DeviceMemory
	ret := vk.AllocateMemory(c.device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: typeIndex,
	}, nil, &mem)
	if isError(ret) {
		return 0, newError(ret)
	}
	return c.memory.add(mem), nil
}

func (c *Context) MapMemory(mem vkscene.DeviceMemory, size uint64) ([]byte, error) {
	m, ok := c.memory.get(mem)
	if !ok {
		return nil, unknown("memory", uint64(mem))
	}
	var p unsafe.Pointer
	if err := newError(vk.MapMemory(c.device, m, 0, vk.DeviceSize(size), 0, &p)); err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(p), size), nil
}

func (c *Context) UnmapMemory(mem vkscene.DeviceMemory) {
	if m, ok := c.memory.get(mem); ok {
		vk.UnmapMemory(c.device, m)
	}
}

func (c *Context) FreeMemory(mem vkscene.DeviceMemory) error {
	m, ok := c.memory.remove(mem)
	if !ok {
		return unknown("memory", uint64(mem))
	}
	vk.FreeMemory(c.device, m, nil)
	return nil
}

func (c *Context) CreateImageView(img vkscene.Image, format vkscene.Format) (vkscene.ImageView, error) {
	i, ok := c.images.get(img)
	if !ok {
		return 0, unknown("image", uint64(img))
	}
	var view vk.ImageView
	ret := vk.CreateImageView(c.device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    i,
		ViewType: vk.ImageViewType2d,
		Format:   vk.Format(format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}, nil, &view)
	if isError(ret) {
		return 0, newError(ret)
	}
	return c.views.add(view), nil
}

func (c *Context) DestroyImageView(view vkscene.ImageView) error {
	v, ok := c.views.remove(view)
	if !ok {
		return unknown("image view", uint64(view))
	}
	vk.DestroyImageView(c.device, v, nil)
	return nil
}

func (c *Context) CreateSampler(info vkscene.SamplerInfo) (vkscene.Sampler, error) {
	anisotropy := vk.Bool32(vk.False)
	if info.AnisotropyEnable {
		anisotropy = vk.True
	}
	var s vk.Sampler
	ret := vk.CreateSampler(c.device, &vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.Filter(info.MagFilter),
		MinFilter:               vk.Filter(info.MinFilter),
		MipmapMode:              vk.SamplerMipmapMode(info.MipmapMode),
		AddressModeU:            vk.SamplerAddressMode(info.AddressModeU),
		AddressModeV:            vk.SamplerAddressMode(info.AddressModeV),
		AddressModeW:            vk.SamplerAddressMode(info.AddressModeW),
		MipLodBias:              0,
		AnisotropyEnable:        anisotropy,
		MaxAnisotropy:           info.MaxAnisotropy,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MinLod:                  info.MinLod,
		MaxLod:                  info.MaxLod,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
	}, nil, &s)
	if isError(ret) {
		return 0, newError(ret)
	}
	return c.samplers.add(s), nil
}

func (c *Context) DestroySampler(s vkscene.Sampler) error {
	v, ok := c.samplers.remove(s)
	if !ok {
		return unknown("sampler", uint64(s))
	}
	vk.DestroySampler(c.device, v, nil)
	return nil
}
