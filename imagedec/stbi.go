// Package imagedec provides image decoders backed by C libraries.
package imagedec

import (
	"image"

	"github.com/cockroachdb/errors"
	"neilpa.me/go-stbi"
)

// STBI decodes images with stb_image. It reads every format stb_image
// supports, including PSD, HDR (tone mapped to 8 bits) and TGA.
type STBI struct{}

// Decode returns stb_image's pixels as they are. stbi.Load wraps them in an
// *image.RGBA, but stb_image never premultiplies alpha.
func (STBI) Decode(path string) (*image.NRGBA, error) {
	img, err := stbi.Load(path)
	if err != nil {
		return nil, errors.Wrapf(err, "stbi load %s", path)
	}
	if img.Rect.Dx() == 0 || img.Rect.Dy() == 0 {
		return nil, errors.Newf("%s: zero-sized image", path)
	}
	return &image.NRGBA{Pix: img.Pix, Stride: img.Stride, Rect: img.Rect}, nil
}
