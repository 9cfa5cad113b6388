package vkscene

// Opaque graphics-API handles. The zero value of every handle type is the
// null handle.
type (
	Buffer       uint64
	Image        uint64
	ImageView    uint64
	Sampler      uint64
	DeviceMemory uint64
)

// Flag and enum values mirror the Vulkan constants so that a backend can
// convert them with a plain type conversion.
type (
	BufferUsageFlags    uint32
	ImageUsageFlags     uint32
	MemoryPropertyFlags uint32
	Format              uint32
	ImageTiling         uint32
	ImageLayout         uint32
	Filter              uint32
	SamplerAddressMode  uint32
	SamplerMipmapMode   uint32
)

const (
	BufferUsageTransferSrc BufferUsageFlags = 0x00000001
	BufferUsageTransferDst BufferUsageFlags = 0x00000002
	BufferUsageIndex       BufferUsageFlags = 0x00000040
	BufferUsageVertex      BufferUsageFlags = 0x00000080
)

const (
	ImageUsageTransferSrc ImageUsageFlags = 0x00000001
	ImageUsageTransferDst ImageUsageFlags = 0x00000002
	ImageUsageSampled     ImageUsageFlags = 0x00000004
)

const (
	MemoryPropertyDeviceLocal  MemoryPropertyFlags = 0x00000001
	MemoryPropertyHostVisible  MemoryPropertyFlags = 0x00000002
	MemoryPropertyHostCoherent MemoryPropertyFlags = 0x00000004
	MemoryPropertyHostCached   MemoryPropertyFlags = 0x00000008
)

const (
	FormatUndefined     Format = 0
	FormatR8G8B8A8Unorm Format = 37
)

const (
	ImageTilingOptimal ImageTiling = 0
	ImageTilingLinear  ImageTiling = 1
)

const (
	ImageLayoutUndefined             ImageLayout = 0
	ImageLayoutShaderReadOnlyOptimal ImageLayout = 5
	ImageLayoutTransferDstOptimal    ImageLayout = 7
)

const (
	FilterNearest Filter = 0
	FilterLinear  Filter = 1
)

const (
	SamplerAddressModeRepeat      SamplerAddressMode = 0
	SamplerAddressModeClampToEdge SamplerAddressMode = 2
)

const (
	SamplerMipmapModeNearest SamplerMipmapMode = 0
	SamplerMipmapModeLinear  SamplerMipmapMode = 1
)

// MemoryType is one hardware-exposed category of device memory.
type MemoryType struct {
	PropertyFlags MemoryPropertyFlags
	HeapIndex     uint32
}

// MemoryProperties lists the memory types of a physical device in the order
// the driver reports them.
type MemoryProperties struct {
	Types []MemoryType
}

// MemoryRequirements is what the device reports for a buffer or image.
type MemoryRequirements struct {
	Size      uint64
	Alignment uint64
	TypeBits  uint32
}

// ImageInfo describes a single-level, single-layer 2D image.
type ImageInfo struct {
	Width  uint32
	Height uint32
	Format Format
	Tiling ImageTiling
	Usage  ImageUsageFlags
}

// SamplerInfo describes the filtering and addressing of texture reads.
type SamplerInfo struct {
	MagFilter        Filter
	MinFilter        Filter
	MipmapMode       SamplerMipmapMode
	AddressModeU     SamplerAddressMode
	AddressModeV     SamplerAddressMode
	AddressModeW     SamplerAddressMode
	MinLod           float32
	MaxLod           float32
	AnisotropyEnable bool
	MaxAnisotropy    float32
}

// Device is the part of the graphics API the loader sequences. Creation
// calls return unbound objects; memory is bound explicitly. Destroy calls
// report unknown or already destroyed handles as errors.
type Device interface {
	MemoryProperties() MemoryProperties

	CreateBuffer(size uint64, usage BufferUsageFlags) (Buffer, error)
	BufferMemoryRequirements(buf Buffer) MemoryRequirements
	BindBufferMemory(buf Buffer, mem DeviceMemory) error
	DestroyBuffer(buf Buffer) error

	CreateImage(info ImageInfo) (Image, error)
	ImageMemoryRequirements(img Image) MemoryRequirements
	BindImageMemory(img Image, mem DeviceMemory) error
	DestroyImage(img Image) error

	AllocateMemory(size uint64, typeIndex uint32) (DeviceMemory, error)
	// MapMemory returns a host view of the first size bytes of mem. The
	// slice is invalid after UnmapMemory.
	MapMemory(mem DeviceMemory, size uint64) ([]byte, error)
	UnmapMemory(mem DeviceMemory)
	FreeMemory(mem DeviceMemory) error

	CreateImageView(img Image, format Format) (ImageView, error)
	DestroyImageView(view ImageView) error

	CreateSampler(info SamplerInfo) (Sampler, error)
	DestroySampler(s Sampler) error
}

// Transfer records and submits copy work on the graphics queue. Every call
// blocks until the GPU has finished the recorded commands.
type Transfer interface {
	TransitionImageLayout(img Image, format Format, from, to ImageLayout) error
	CopyBufferToImage(src Buffer, dst Image, width, height uint32) error
	CopyBuffer(src, dst Buffer, size uint64) error
}

// DeviceContext is supplied by the embedding renderer: its logical and
// physical device, graphics queue and command pool. The loader never creates
// or destroys it, and it must outlive every resource the loader creates.
type DeviceContext interface {
	Device
	Transfer
}
