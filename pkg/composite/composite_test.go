package composite

import (
	"bytes"
	"image"
	"testing"

	"github.com/fluostack/fluostack/pkg/normalize"
	"github.com/fluostack/fluostack/pkg/palette"
	"github.com/fluostack/fluostack/pkg/plane"
)

// constPlane builds a w x h uint8 plane filled with value v, normalized
// over the full 8-bit range so raw value v maps to v/255.
func constPlane(t *testing.T, role plane.Role, w, h int, v float64) *normalize.NormalizedPlane {
	t.Helper()
	samples := make([]float64, w*h)
	for i := range samples {
		samples[i] = v
	}
	p, err := plane.New(role, w, h, plane.KindUint8, samples)
	if err != nil {
		t.Fatalf("plane.New: %v", err)
	}
	np, err := normalize.Apply(p, normalize.FullRange(plane.KindUint8))
	if err != nil {
		t.Fatalf("normalize.Apply: %v", err)
	}
	return np
}

func TestRenderBaseAndRedChannel(t *testing.T) {
	// Base 100x100 constant 50, channel 1 constant 200 with red weights.
	base := constPlane(t, plane.RoleBase, 100, 100, 50)
	red := constPlane(t, plane.Role(1), 100, 100, 200)

	img, err := Render([]*normalize.NormalizedPlane{base, red}, map[plane.Role]palette.Assignment{
		plane.RoleBase: {Role: plane.RoleBase, Weights: palette.Weights{R: 1, G: 1, B: 1}, Enabled: true},
		plane.Role(1):  {Role: plane.Role(1), Weights: palette.Weights{R: 1}, Enabled: true},
	}, Options{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	// R sums 50+200 and saturates at 255; G and B carry only the base.
	wantR, wantG, wantB := uint8(250), uint8(50), uint8(50)
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.NRGBAAt(x, y)
			if c.R != wantR || c.G != wantG || c.B != wantB {
				t.Fatalf("pixel (%d,%d) = (%d,%d,%d), want (%d,%d,%d)",
					x, y, c.R, c.G, c.B, wantR, wantG, wantB)
			}
		}
	}
}

func TestRenderSaturates(t *testing.T) {
	// Two bright planes on the same component must clamp, not wrap.
	a := constPlane(t, plane.RoleBase, 4, 4, 200)
	b := constPlane(t, plane.Role(1), 4, 4, 200)

	img, err := Render([]*normalize.NormalizedPlane{a, b}, map[plane.Role]palette.Assignment{
		plane.RoleBase: {Role: plane.RoleBase, Weights: palette.Weights{R: 1}, Enabled: true},
		plane.Role(1):  {Role: plane.Role(1), Weights: palette.Weights{R: 1}, Enabled: true},
	}, Options{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if c := img.NRGBAAt(0, 0); c.R != 255 {
		t.Errorf("R = %d, want saturated 255", c.R)
	}
}

func TestRenderAllDisabled(t *testing.T) {
	np := constPlane(t, plane.RoleBase, 8, 6, 128)

	img, err := Render([]*normalize.NormalizedPlane{np}, map[plane.Role]palette.Assignment{
		plane.RoleBase: {Role: plane.RoleBase, Weights: palette.Weights{R: 1, G: 1, B: 1}, Enabled: false},
	}, Options{})
	if err != nil {
		t.Fatalf("Render with all planes disabled must not error: %v", err)
	}

	if got := img.Bounds(); got != image.Rect(0, 0, 8, 6) {
		t.Fatalf("bounds = %v, want 8x6", got)
	}
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			if c := img.NRGBAAt(x, y); c.R != 0 || c.G != 0 || c.B != 0 {
				t.Fatalf("pixel (%d,%d) = %v, want all-zero", x, y, c)
			}
		}
	}
}

func TestRenderOrderIndependent(t *testing.T) {
	mk := func(role plane.Role, seed float64) *normalize.NormalizedPlane {
		samples := make([]float64, 16*16)
		for i := range samples {
			samples[i] = float64((i*31+int(seed)*17)%256) / 3.7
		}
		p, err := plane.New(role, 16, 16, plane.KindUint8, samples)
		if err != nil {
			t.Fatalf("plane.New: %v", err)
		}
		np, err := normalize.Apply(p, normalize.MinMax{})
		if err != nil {
			t.Fatalf("normalize.Apply: %v", err)
		}
		return np
	}

	planes := []*normalize.NormalizedPlane{
		mk(plane.RoleBase, 1), mk(plane.Role(1), 2), mk(plane.Role(2), 3), mk(plane.Role(5), 4),
	}
	permuted := []*normalize.NormalizedPlane{planes[2], planes[0], planes[3], planes[1]}

	assigns := map[plane.Role]palette.Assignment{}
	for _, np := range planes {
		assigns[np.Plane.Role] = palette.Default(np.Plane.Role)
	}

	a, err := Render(planes, assigns, Options{Workers: 3})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	b, err := Render(permuted, assigns, Options{Workers: 1})
	if err != nil {
		t.Fatalf("Render permuted: %v", err)
	}

	if !bytes.Equal(a.Pix, b.Pix) {
		t.Error("permuting the plane list changed the raster")
	}
}

func TestRenderMissingAssignmentUsesDefault(t *testing.T) {
	np := constPlane(t, plane.Role(3), 4, 4, 255) // channel 3 defaults to blue

	img, err := Render([]*normalize.NormalizedPlane{np}, nil, Options{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if c := img.NRGBAAt(2, 2); c.B != 255 || c.R != 0 || c.G != 0 {
		t.Errorf("pixel = %v, want pure blue via default palette", c)
	}
}

func TestRenderNoPlanes(t *testing.T) {
	if _, err := Render(nil, nil, Options{}); err == nil {
		t.Error("Render with no planes should fail")
	}
}

func TestQuantize(t *testing.T) {
	tests := []struct {
		in   float64
		want uint8
	}{
		{-0.5, 0},
		{0, 0},
		{0.5, 128},
		{1, 255},
		{1.7, 255},
	}
	for _, tt := range tests {
		if got := quantize(tt.in); got != tt.want {
			t.Errorf("quantize(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
