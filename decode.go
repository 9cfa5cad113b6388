package vkscene

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/cockroachdb/errors"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageDecoder loads an image file as 8-bit RGBA with straight
// (non-premultiplied) alpha, the layout uploaded to the GPU unchanged.
type ImageDecoder interface {
	Decode(path string) (*image.NRGBA, error)
}

// StdDecoder decodes every format registered with the image package.
type StdDecoder struct{}

func (StdDecoder) Decode(path string) (*image.NRGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	src, format, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrap(err, "decode image")
	}
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, errors.Newf("%s image has zero size %dx%d", format, b.Dx(), b.Dy())
	}
	if n, ok := src.(*image.NRGBA); ok && b.Min == (image.Point{}) && n.Stride == 4*b.Dx() {
		return n, nil
	}
	// Drawing into NRGBA un-premultiplies sources such as *image.RGBA.
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst, nil
}
