package normalize

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/fluostack/fluostack/pkg/errors"
	"github.com/fluostack/fluostack/pkg/plane"
)

// flatWindow is the half-width of the display window substituted when a
// policy produces a degenerate (zero-width) range, e.g. min_max on a flat
// plane. It keeps the mapping finite without ever dividing by zero.
const flatWindow = 0.5

// NormalizedPlane pairs a plane with its resolved display range.
// The plane is held by reference and never copied or mutated; the
// invariant DisplayMin < DisplayMax always holds after Apply.
type NormalizedPlane struct {
	Plane *plane.Plane

	DisplayMin, DisplayMax float64
}

// Value maps one raw sample into [0,1]: values at or below DisplayMin map
// to 0, at or above DisplayMax map to 1, linear in between. Pure and
// order-independent per pixel.
func (n *NormalizedPlane) Value(v float64) float64 {
	if v <= n.DisplayMin {
		return 0
	}
	if v >= n.DisplayMax {
		return 1
	}
	return (v - n.DisplayMin) / (n.DisplayMax - n.DisplayMin)
}

// At returns the normalized value of the pixel at (x, y).
func (n *NormalizedPlane) At(x, y int) float64 {
	return n.Value(n.Plane.At(x, y))
}

// Apply resolves the policy against the plane and returns the resulting
// NormalizedPlane. The plane itself is read only; normalized values are
// computed lazily via Value/At so no second sample buffer is allocated.
func Apply(p *plane.Plane, pol Policy) (*NormalizedPlane, error) {
	if pol == nil {
		pol = MinMax{}
	}
	if err := pol.Validate(); err != nil {
		return nil, err
	}

	var lo, hi float64
	switch pol := pol.(type) {
	case MinMax:
		lo, hi = p.MinMax()
	case Percentile:
		lo, hi = quantiles(p.Samples, pol.Lo/100, pol.Hi/100)
	case Fixed:
		lo, hi = pol.Min, pol.Max
	default:
		return nil, errors.New(errors.ErrCodeInvalidPolicy, "unhandled policy %T", pol)
	}

	// A flat plane (or a percentile window that collapses) gets a fixed
	// window around the constant value instead of a zero-width range.
	if lo >= hi {
		mid := lo
		lo, hi = mid-flatWindow, mid+flatWindow
	}

	return &NormalizedPlane{Plane: p, DisplayMin: lo, DisplayMax: hi}, nil
}

// quantiles computes the sample values at fractions lo and hi of the
// distribution with linear interpolation, matching the semantics the
// acquisition tooling used for its percentile sliders.
func quantiles(samples []float64, lo, hi float64) (float64, float64) {
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)
	return stat.Quantile(lo, stat.LinInterp, sorted, nil),
		stat.Quantile(hi, stat.LinInterp, sorted, nil)
}
