// Package codec implements the loader and exporter boundaries of the
// composition pipeline: decoding input sources into planes and serializing
// the composite raster and the lossless stack to output sinks.
//
// The engine itself never touches container formats; everything
// format-specific lives here.
package codec

import (
	"image"
	"io"
	"os"

	// Registered input formats. TIFF is the native microscopy container;
	// PNG and JPEG cover exported previews being fed back in.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/tiff"

	"github.com/fluostack/fluostack/pkg/errors"
	"github.com/fluostack/fluostack/pkg/plane"
)

// Source names one input of a composition job.
type Source struct {
	Role plane.Role
	Path string
}

// DecodePlane decodes one single-channel image into a Plane. The source
// string identifies the input in error messages and plane metadata.
//
// Grayscale images keep their native bit depth (uint8 or uint16). Color
// inputs are reduced to 16-bit luminance: the loader's contract is to
// yield a single-channel plane, and microscopy exports are occasionally
// RGB-tagged grayscale.
func DecodePlane(r io.Reader, role plane.Role, source string) (*plane.Plane, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDecode, err, "decode source %s", source)
	}

	p, err := fromImage(img, role)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDecode, err, "decode source %s", source)
	}
	p.Source = source
	return p, nil
}

// LoadFiles decodes each source file into a plane, in the given order.
func LoadFiles(sources []Source) ([]*plane.Plane, error) {
	planes := make([]*plane.Plane, 0, len(sources))
	for _, src := range sources {
		f, err := os.Open(src.Path)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeDecode, err, "open source %s", src.Path)
		}
		p, err := DecodePlane(f, src.Role, src.Path)
		f.Close()
		if err != nil {
			return nil, err
		}
		planes = append(planes, p)
	}
	return planes, nil
}

// fromImage converts a decoded image into a plane, preserving bit depth
// for grayscale inputs.
func fromImage(img image.Image, role plane.Role) (*plane.Plane, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	switch img := img.(type) {
	case *image.Gray:
		samples := make([]float64, w*h)
		for y := 0; y < h; y++ {
			row := img.Pix[y*img.Stride : y*img.Stride+w]
			for x, v := range row {
				samples[y*w+x] = float64(v)
			}
		}
		return plane.New(role, w, h, plane.KindUint8, samples)

	case *image.Gray16:
		samples := make([]float64, w*h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := y*img.Stride + x*2
				samples[y*w+x] = float64(uint16(img.Pix[i])<<8 | uint16(img.Pix[i+1]))
			}
		}
		return plane.New(role, w, h, plane.KindUint16, samples)

	default:
		// Luminance reduction for color-tagged inputs.
		samples := make([]float64, w*h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				// ITU-R BT.601 luma on 16-bit components
				luma := (19595*uint64(r) + 38470*uint64(g) + 7471*uint64(bl)) >> 16
				samples[y*w+x] = float64(luma)
			}
		}
		return plane.New(role, w, h, plane.KindUint16, samples)
	}
}
