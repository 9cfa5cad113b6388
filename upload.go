package vkscene

import (
	"image"

	"github.com/andewx/vkscene/scene"
	"github.com/cockroachdb/errors"
)

// DefaultSamplerInfo is the sampler every texture gets: linear filtering,
// repeat addressing and no anisotropy.
func DefaultSamplerInfo(maxLod float32) SamplerInfo {
	return SamplerInfo{
		MagFilter:    FilterLinear,
		MinFilter:    FilterLinear,
		MipmapMode:   SamplerMipmapModeLinear,
		AddressModeU: SamplerAddressModeRepeat,
		AddressModeV: SamplerAddressModeRepeat,
		AddressModeW: SamplerAddressModeRepeat,
		MinLod:       0,
		MaxLod:       maxLod,
	}
}

// Uploader turns image files into sampled device-local textures.
type Uploader struct {
	ctx     DeviceContext
	alloc   *Allocator
	decoder ImageDecoder
	sampler SamplerInfo
}

func NewUploader(ctx DeviceContext, alloc *Allocator, decoder ImageDecoder, sampler SamplerInfo) *Uploader {
	if decoder == nil {
		decoder = StdDecoder{}
	}
	return &Uploader{
		ctx:     ctx,
		alloc:   alloc,
		decoder: decoder,
		sampler: sampler,
	}
}

// Upload decodes path, copies it to a device-local image through a staging
// buffer and creates its view and sampler. On error nothing stays allocated.
// The returned texture is not tracked by any registry.
func (u *Uploader) Upload(path string, typ scene.TextureType) (_ *Texture, err error) {
	pixels, err := u.decoder.Decode(path)
	if err != nil {
		return nil, newError(KindTextureLoad, path, err)
	}
	width, height := uint32(pixels.Rect.Dx()), uint32(pixels.Rect.Dy())
	if width == 0 || height == 0 {
		return nil, newError(KindTextureLoad, path, errors.New("image has zero size"))
	}
	size := uint64(width) * uint64(height) * 4

	staging, err := u.alloc.AllocateBuffer(size, BufferUsageTransferSrc, MemoryPropertyHostVisible|MemoryPropertyHostCoherent)
	if err != nil {
		return nil, withPath(err, path)
	}
	defer staging.Release()

	if err = u.alloc.upload(staging, tightPixels(pixels)); err != nil {
		return nil, withPath(err, path)
	}

	img, err := u.alloc.AllocateImage(width, height, FormatR8G8B8A8Unorm, ImageTilingOptimal,
		ImageUsageTransferSrc|ImageUsageTransferDst|ImageUsageSampled, MemoryPropertyDeviceLocal)
	if err != nil {
		return nil, withPath(err, path)
	}
	tex := &Texture{
		dev:    u.ctx,
		Image:  img.Image,
		Memory: img.Memory,
		Type:   typ,
		Path:   path,
		Width:  width,
		Height: height,
	}
	defer func() {
		if err != nil {
			tex.Release()
		}
	}()

	if err = u.ctx.TransitionImageLayout(img.Image, img.Format, ImageLayoutUndefined, ImageLayoutTransferDstOptimal); err != nil {
		return nil, allocError(path, err, "transition to transfer dst")
	}
	if err = u.ctx.CopyBufferToImage(staging.Buffer, img.Image, width, height); err != nil {
		return nil, allocError(path, err, "copy staging buffer to image")
	}
	if err = u.ctx.TransitionImageLayout(img.Image, img.Format, ImageLayoutTransferDstOptimal, ImageLayoutShaderReadOnlyOptimal); err != nil {
		return nil, allocError(path, err, "transition to shader read")
	}

	if tex.View, err = u.alloc.CreateImageView(img); err != nil {
		return nil, withPath(err, path)
	}
	if tex.Sampler, err = u.alloc.CreateSampler(u.sampler); err != nil {
		return nil, withPath(err, path)
	}
	return tex, nil
}

// tightPixels returns the pixel rows of img without stride padding.
func tightPixels(img *image.NRGBA) []byte {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	row := 4 * w
	if img.Stride == row && img.Rect.Min == (image.Point{}) {
		return img.Pix[:row*h]
	}
	out := make([]byte, 0, row*h)
	for y := img.Rect.Min.Y; y < img.Rect.Max.Y; y++ {
		off := img.PixOffset(img.Rect.Min.X, y)
		out = append(out, img.Pix[off:off+row]...)
	}
	return out
}

// withPath fills in the file an allocation error happened for.
func withPath(err error, path string) error {
	var e *Error
	if errors.As(err, &e) && e.Path == "" {
		e.Path = path
	}
	return err
}
