package vkscene

import (
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
)

// fakeDevice is an in-memory DeviceContext. It records every call in order
// and fails the n-th call of a named method when asked to.
type fakeDevice struct {
	mu    sync.Mutex
	props MemoryProperties
	// typeBits is reported by every memory requirements query.
	typeBits uint32

	next    uint64
	live    map[uint64]string
	memory  map[DeviceMemory][]byte
	calls   []string
	counts  map[string]int
	failAt  map[string]int
	layouts map[Image]ImageLayout
	bound   map[Buffer]DeviceMemory
	// pixels holds what CopyBufferToImage last wrote into each image.
	pixels map[Image][]byte
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		props: MemoryProperties{Types: []MemoryType{
			{PropertyFlags: MemoryPropertyDeviceLocal},
			{PropertyFlags: MemoryPropertyHostVisible | MemoryPropertyHostCoherent},
			{PropertyFlags: MemoryPropertyHostVisible | MemoryPropertyHostCoherent | MemoryPropertyHostCached},
		}},
		typeBits: 0xffffffff,
		live:     make(map[uint64]string),
		memory:   make(map[DeviceMemory][]byte),
		counts:   make(map[string]int),
		failAt:   make(map[string]int),
		layouts:  make(map[Image]ImageLayout),
		bound:    make(map[Buffer]DeviceMemory),
		pixels:   make(map[Image][]byte),
	}
}

// failOn makes the n-th (1-based) call of method fail.
func (d *fakeDevice) failOn(method string, n int) {
	d.mu.Lock()
	d.failAt[method] = n
	d.mu.Unlock()
}

func (d *fakeDevice) record(method string, arg interface{}) error {
	d.calls = append(d.calls, fmt.Sprintf("%s(%v)", method, arg))
	d.counts[method]++
	if n, ok := d.failAt[method]; ok && n == d.counts[method] {
		return errors.Newf("injected %s failure", method)
	}
	return nil
}

func (d *fakeDevice) create(method, kind string) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record(method, kind); err != nil {
		return 0, err
	}
	d.next++
	d.live[d.next] = kind
	return d.next, nil
}

func (d *fakeDevice) destroy(method, kind string, h uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record(method, h); err != nil {
		return err
	}
	if d.live[h] != kind {
		return errors.Newf("%s: unknown %s %d", method, kind, h)
	}
	delete(d.live, h)
	return nil
}

func (d *fakeDevice) count(method string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counts[method]
}

// liveCount returns the number of live objects of kind, or of every kind
// when kind is empty.
func (d *fakeDevice) liveCount(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, k := range d.live {
		if kind == "" || k == kind {
			n++
		}
	}
	return n
}

// callsMatching returns the recorded calls whose method has one of the
// given prefixes.
func (d *fakeDevice) callsMatching(prefixes ...string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for _, c := range d.calls {
		for _, p := range prefixes {
			if strings.HasPrefix(c, p) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// imagePixels returns the bytes last copied into img.
func (d *fakeDevice) imagePixels(img Image) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pixels[img]
}

func (d *fakeDevice) MemoryProperties() MemoryProperties { return d.props }

func (d *fakeDevice) CreateBuffer(size uint64, usage BufferUsageFlags) (Buffer, error) {
	h, err := d.create("CreateBuffer", "buffer")
	return Buffer(h), err
}

func (d *fakeDevice) BufferMemoryRequirements(buf Buffer) MemoryRequirements {
	return MemoryRequirements{Size: 256, Alignment: 16, TypeBits: d.typeBits}
}

func (d *fakeDevice) BindBufferMemory(buf Buffer, mem DeviceMemory) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("BindBufferMemory", buf); err != nil {
		return err
	}
	d.bound[buf] = mem
	return nil
}

func (d *fakeDevice) DestroyBuffer(buf Buffer) error {
	return d.destroy("DestroyBuffer", "buffer", uint64(buf))
}

func (d *fakeDevice) CreateImage(info ImageInfo) (Image, error) {
	h, err := d.create("CreateImage", "image")
	return Image(h), err
}

func (d *fakeDevice) ImageMemoryRequirements(img Image) MemoryRequirements {
	return MemoryRequirements{Size: 1024, Alignment: 256, TypeBits: d.typeBits}
}

func (d *fakeDevice) BindImageMemory(img Image, mem DeviceMemory) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.record("BindImageMemory", img)
}

func (d *fakeDevice) DestroyImage(img Image) error {
	return d.destroy("DestroyImage", "image", uint64(img))
}

func (d *fakeDevice) AllocateMemory(size uint64, typeIndex uint32) (DeviceMemory, error) {
	h, err := d.create("AllocateMemory", "memory")
	if err != nil {
		return 0, err
	}
	d.mu.Lock()
	d.memory[DeviceMemory(h)] = make([]byte, size)
	d.mu.Unlock()
	return DeviceMemory(h), nil
}

func (d *fakeDevice) MapMemory(mem DeviceMemory, size uint64) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("MapMemory", mem); err != nil {
		return nil, err
	}
	buf, ok := d.memory[mem]
	if !ok {
		return nil, errors.Newf("MapMemory: unknown memory %d", mem)
	}
	if uint64(len(buf)) < size {
		// Requirements are fixed in the fake; grow to fit.
		buf = make([]byte, size)
		d.memory[mem] = buf
	}
	return buf[:size], nil
}

func (d *fakeDevice) UnmapMemory(mem DeviceMemory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("UnmapMemory", mem)
}

func (d *fakeDevice) FreeMemory(mem DeviceMemory) error {
	err := d.destroy("FreeMemory", "memory", uint64(mem))
	if err == nil {
		d.mu.Lock()
		delete(d.memory, mem)
		d.mu.Unlock()
	}
	return err
}

func (d *fakeDevice) CreateImageView(img Image, format Format) (ImageView, error) {
	h, err := d.create("CreateImageView", "view")
	return ImageView(h), err
}

func (d *fakeDevice) DestroyImageView(view ImageView) error {
	return d.destroy("DestroyImageView", "view", uint64(view))
}

func (d *fakeDevice) CreateSampler(info SamplerInfo) (Sampler, error) {
	h, err := d.create("CreateSampler", "sampler")
	return Sampler(h), err
}

func (d *fakeDevice) DestroySampler(s Sampler) error {
	return d.destroy("DestroySampler", "sampler", uint64(s))
}

func (d *fakeDevice) TransitionImageLayout(img Image, format Format, from, to ImageLayout) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("TransitionImageLayout", fmt.Sprintf("%d->%d", from, to)); err != nil {
		return err
	}
	if d.layouts[img] != from {
		return errors.Newf("image %d is in layout %d, not %d", img, d.layouts[img], from)
	}
	d.layouts[img] = to
	return nil
}

func (d *fakeDevice) CopyBufferToImage(src Buffer, dst Image, width, height uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("CopyBufferToImage", fmt.Sprintf("%dx%d", width, height)); err != nil {
		return err
	}
	if d.layouts[dst] != ImageLayoutTransferDstOptimal {
		return errors.Newf("copy into image %d in layout %d", dst, d.layouts[dst])
	}
	staged := d.memory[d.bound[src]]
	n := int(width) * int(height) * 4
	if len(staged) < n {
		n = len(staged)
	}
	d.pixels[dst] = append([]byte(nil), staged[:n]...)
	return nil
}

func (d *fakeDevice) CopyBuffer(src, dst Buffer, size uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.record("CopyBuffer", size)
}

// fakeDecoder serves solid images by path and counts decodes.
type fakeDecoder struct {
	mu      sync.Mutex
	sizes   map[string]image.Point
	decodes map[string]int
	// gate, when set, blocks every decode until closed.
	gate chan struct{}
}

func newFakeDecoder(paths ...string) *fakeDecoder {
	d := &fakeDecoder{
		sizes:   make(map[string]image.Point),
		decodes: make(map[string]int),
	}
	for _, p := range paths {
		d.sizes[p] = image.Pt(4, 2)
	}
	return d
}

func (d *fakeDecoder) Decode(path string) (*image.NRGBA, error) {
	if d.gate != nil {
		<-d.gate
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.decodes[path]++
	size, ok := d.sizes[path]
	if !ok {
		return nil, errors.Newf("open %s: no such file", path)
	}
	img := image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			img.Set(x, y, color.NRGBA{R: 255, A: 255})
		}
	}
	return img, nil
}

func (d *fakeDecoder) decodeCount(path string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.decodes[path]
}
