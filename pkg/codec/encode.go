package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/fluostack/fluostack/pkg/errors"
	"github.com/fluostack/fluostack/pkg/normalize"
	"github.com/fluostack/fluostack/pkg/plane"
	"github.com/fluostack/fluostack/pkg/stack"
)

// EncodeCompositePNG serializes the composite raster as a web-displayable
// PNG.
func EncodeCompositePNG(img *image.NRGBA) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.Wrap(errors.ErrCodeWrite, err, "encode composite png")
	}
	return buf.Bytes(), nil
}

// EncodeStack serializes the stack as a multi-page TIFF artifact.
func EncodeStack(s *stack.Stack) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeStackTIFF(&buf, s); err != nil {
		return nil, errors.Wrap(errors.ErrCodeWrite, err, "encode stack tiff")
	}
	return buf.Bytes(), nil
}

// WriteFile writes an encoded artifact to its destination. Failures carry
// the destination path and the underlying cause.
func WriteFile(dest string, data []byte) error {
	if dir := filepath.Dir(dest); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(errors.ErrCodeWrite, err, "write %s", dest)
		}
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeWrite, err, "write %s", dest)
	}
	return nil
}

// FrameImage renders one stack frame as a standalone grayscale image for
// per-frame preview export. Integer planes map 1:1 onto the matching
// stdlib gray type; float planes are windowed to their own min/max first
// since PNG has no float representation.
func FrameImage(p *plane.Plane) (image.Image, error) {
	switch p.Kind {
	case plane.KindUint8:
		img := image.NewGray(image.Rect(0, 0, p.Width, p.Height))
		for i, v := range p.Samples {
			img.Pix[i] = uint8(clampTo(v, 255))
		}
		return img, nil

	case plane.KindUint16:
		img := image.NewGray16(image.Rect(0, 0, p.Width, p.Height))
		for i, v := range p.Samples {
			u := uint16(clampTo(v, 65535))
			img.Pix[i*2] = uint8(u >> 8)
			img.Pix[i*2+1] = uint8(u)
		}
		return img, nil

	case plane.KindFloat32:
		np, err := normalize.Apply(p, normalize.MinMax{})
		if err != nil {
			return nil, err
		}
		img := image.NewGray16(image.Rect(0, 0, p.Width, p.Height))
		for i, v := range p.Samples {
			u := uint16(np.Value(v)*65535 + 0.5)
			img.Pix[i*2] = uint8(u >> 8)
			img.Pix[i*2+1] = uint8(u)
		}
		return img, nil

	default:
		return nil, errors.New(errors.ErrCodeUnsupportedSample, "frame %s has kind %s", p.Role, p.Kind)
	}
}

// WriteFramePNGs exports every stack frame as an individual grayscale PNG
// under dir, named by frame index and role label.
func WriteFramePNGs(dir string, s *stack.Stack) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeWrite, err, "create frame directory %s", dir)
	}
	for i, f := range s.Frames {
		img, err := FrameImage(f.Plane)
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return errors.Wrap(errors.ErrCodeWrite, err, "encode frame %s", f.Label)
		}
		dest := filepath.Join(dir, fmt.Sprintf("%02d_%s.png", i, f.Label))
		if err := WriteFile(dest, buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}
