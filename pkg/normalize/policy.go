// Package normalize maps raw plane intensities to the canonical [0,1]
// display range.
//
// Each plane carries its own normalization policy. The policy set is closed:
// MinMax, Percentile, and Fixed. Dispatch is an exhaustive type switch, so a
// new policy cannot be added without the compiler pointing at every site
// that must handle it.
package normalize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fluostack/fluostack/pkg/errors"
	"github.com/fluostack/fluostack/pkg/plane"
)

// Policy selects how a plane's display range is derived.
// The implementations are MinMax, Percentile, and Fixed.
type Policy interface {
	// Validate checks the policy parameters.
	Validate() error

	// String returns the canonical textual form of the policy.
	String() string

	// isPolicy seals the interface to this package's variants.
	isPolicy()
}

// MinMax derives the display range from the plane's actual minimum and
// maximum sample values.
type MinMax struct{}

func (MinMax) isPolicy() {}

// Validate always succeeds: MinMax has no parameters.
func (MinMax) Validate() error { return nil }

func (MinMax) String() string { return "min_max" }

// Percentile derives the display range from the sample values at the Lo-th
// and Hi-th percentiles, clipping outliers the way the original acquisition
// tooling does.
type Percentile struct {
	Lo, Hi float64
}

func (Percentile) isPolicy() {}

// Validate requires 0 <= Lo < Hi <= 100.
func (p Percentile) Validate() error {
	if p.Lo < 0 || p.Hi > 100 || p.Lo >= p.Hi {
		return errors.New(errors.ErrCodeInvalidPolicy,
			"percentile bounds must satisfy 0 <= lo < hi <= 100, got (%v, %v)", p.Lo, p.Hi)
	}
	return nil
}

func (p Percentile) String() string {
	return fmt.Sprintf("percentile(%s,%s)", formatBound(p.Lo), formatBound(p.Hi))
}

// Fixed uses caller-supplied display bounds.
type Fixed struct {
	Min, Max float64
}

func (Fixed) isPolicy() {}

// Validate requires Min < Max.
func (f Fixed) Validate() error {
	if f.Min >= f.Max {
		return errors.New(errors.ErrCodeInvalidPolicy,
			"fixed bounds must satisfy min < max, got (%v, %v)", f.Min, f.Max)
	}
	return nil
}

func (f Fixed) String() string {
	return fmt.Sprintf("fixed(%s,%s)", formatBound(f.Min), formatBound(f.Max))
}

// DefaultPercentile is the percentile window applied when a config selects
// "percentile" without explicit bounds, matching the 1-99 default of the
// acquisition UI this engine replaced.
func DefaultPercentile() Percentile {
	return Percentile{Lo: 1, Hi: 99}
}

// FullRange returns the Fixed policy spanning the entire representable
// range of a sample kind: [0,255] for uint8, [0,65535] for uint16, and
// [0,1] for float32 (the convention for float-valued acquisitions).
func FullRange(kind plane.SampleKind) Fixed {
	switch kind {
	case plane.KindUint8:
		return Fixed{Min: 0, Max: 255}
	case plane.KindUint16:
		return Fixed{Min: 0, Max: 65535}
	default:
		return Fixed{Min: 0, Max: 1}
	}
}

// ParsePolicy converts the textual policy forms used in config files and
// CLI flags back into a Policy:
//
//	min_max
//	percentile            (defaults to percentile(1,99))
//	percentile(lo,hi)
//	fixed(min,max)
func ParsePolicy(s string) (Policy, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || s == "min_max":
		return MinMax{}, nil
	case s == "percentile":
		return DefaultPercentile(), nil
	case strings.HasPrefix(s, "percentile(") && strings.HasSuffix(s, ")"):
		lo, hi, err := parseBounds(s[len("percentile(") : len(s)-1])
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPolicy, err, "parse %q", s)
		}
		p := Percentile{Lo: lo, Hi: hi}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		return p, nil
	case strings.HasPrefix(s, "fixed(") && strings.HasSuffix(s, ")"):
		min, max, err := parseBounds(s[len("fixed(") : len(s)-1])
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPolicy, err, "parse %q", s)
		}
		f := Fixed{Min: min, Max: max}
		if err := f.Validate(); err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidPolicy, "unknown normalization policy %q", s)
	}
}

func parseBounds(s string) (float64, float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("want two comma-separated bounds, got %q", s)
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, err
	}
	hi, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
