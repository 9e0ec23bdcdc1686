// Package composite blends normalized, color-weighted planes into a single
// RGB raster.
//
// The blend is additive with saturation: for each pixel and output
// component, the normalized values of all enabled planes are multiplied by
// their channel weights, summed, and clamped at the representable maximum.
// Summation always runs in fixed role order (base first, channels
// ascending) so the output is bit-identical no matter how the input list
// was ordered.
package composite

import (
	"image"
	"runtime"
	"sort"
	"sync"

	"github.com/fluostack/fluostack/pkg/errors"
	"github.com/fluostack/fluostack/pkg/normalize"
	"github.com/fluostack/fluostack/pkg/palette"
	"github.com/fluostack/fluostack/pkg/plane"
)

// Options tunes the render.
type Options struct {
	// Workers is the number of goroutines blending row bands.
	// Zero or negative selects runtime.NumCPU().
	Workers int
}

// layer is one enabled plane with its resolved weights.
type layer struct {
	np *normalize.NormalizedPlane
	w  palette.Weights
}

// Render blends the planes into an 8-bit RGBA raster. Assignments missing
// from the map fall back to the default palette for their role. Disabled
// planes contribute nothing; if every plane is disabled the result is an
// all-zero (black, opaque) raster of the planes' shared geometry.
//
// The planes must already have passed validation: Render assumes they all
// share the first plane's dimensions.
func Render(planes []*normalize.NormalizedPlane, assigns map[plane.Role]palette.Assignment, opts Options) (*image.NRGBA, error) {
	if len(planes) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no planes to composite")
	}

	// Fixed summation order keeps floating-point rounding reproducible
	// under input permutation.
	ordered := make([]*normalize.NormalizedPlane, len(planes))
	copy(ordered, planes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Plane.Role < ordered[j].Plane.Role
	})

	var layers []layer
	for _, np := range ordered {
		a, ok := assigns[np.Plane.Role]
		if !ok {
			a = palette.Default(np.Plane.Role)
		}
		if !a.Enabled {
			continue
		}
		layers = append(layers, layer{np: np, w: a.Weights})
	}

	w, h := ordered[0].Plane.Bounds()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > h {
		workers = h
	}

	rowsPer := (h + workers - 1) / workers
	var wg sync.WaitGroup
	for band := 0; band < workers; band++ {
		y0 := band * rowsPer
		y1 := y0 + rowsPer
		if y1 > h {
			y1 = h
		}
		if y0 >= y1 {
			break
		}
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			blendRows(img, layers, w, y0, y1)
		}(y0, y1)
	}
	wg.Wait()

	return img, nil
}

// blendRows composites rows [y0, y1) into img. Each pixel depends only on
// its own inputs, so bands never contend.
func blendRows(img *image.NRGBA, layers []layer, w, y0, y1 int) {
	for y := y0; y < y1; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			var r, g, b float64
			for _, l := range layers {
				v := l.np.At(x, y)
				r += v * l.w.R
				g += v * l.w.G
				b += v * l.w.B
			}
			px := row[x*4 : x*4+4]
			px[0] = quantize(r)
			px[1] = quantize(g)
			px[2] = quantize(b)
			px[3] = 0xff
		}
	}
}

// quantize clamps a summed component to [0,1] and scales it to 8 bits.
// The clamp saturates; it never wraps.
func quantize(v float64) uint8 {
	if v >= 1 {
		return 0xff
	}
	if v <= 0 {
		return 0
	}
	return uint8(v*255 + 0.5)
}
