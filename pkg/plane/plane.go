// Package plane defines the single-channel image plane that flows through
// the composition pipeline, together with the geometry and sample-type
// validation gate.
//
// A Plane is created once by the loader, validated, and then consumed
// read-only by the normalizer, compositor, and stack builder. Samples are
// stored as float64 values: this representation is lossless for every
// supported sample kind (8/16-bit unsigned integers and 32-bit floats are
// all exactly representable), so the stack path can reproduce the original
// values bit-for-bit.
package plane

import (
	"fmt"
	"math"
)

// Role identifies a plane's position in a composition job.
// Role 0 is the base plane; roles 1..7 are the numbered channels.
type Role int

// Role constants.
const (
	RoleBase Role = 0

	// MaxChannels is the highest channel index. A job carries at most
	// the base plane plus channels 1..MaxChannels.
	MaxChannels = 7

	// NumRoles is the total number of roles (base + channels).
	NumRoles = MaxChannels + 1
)

// Valid reports whether the role is within the supported range.
func (r Role) Valid() bool {
	return r >= RoleBase && r <= MaxChannels
}

// String returns the canonical role name ("base" or "channel_N").
func (r Role) String() string {
	if r == RoleBase {
		return "base"
	}
	return fmt.Sprintf("channel_%d", int(r))
}

// ParseRole converts a role name back into a Role.
// Accepted forms are "base" and "channel_1" through "channel_7".
func ParseRole(s string) (Role, error) {
	if s == "base" {
		return RoleBase, nil
	}
	var n int
	if _, err := fmt.Sscanf(s, "channel_%d", &n); err == nil {
		r := Role(n)
		if r.Valid() && r != RoleBase {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// SampleKind identifies the numeric representation of a plane's samples.
type SampleKind int

// Supported sample kinds.
const (
	KindInvalid SampleKind = iota
	KindUint8              // 8-bit unsigned
	KindUint16             // 16-bit unsigned
	KindFloat32            // 32-bit float
)

// String returns a human-readable name for the sample kind.
func (k SampleKind) String() string {
	switch k {
	case KindUint8:
		return "uint8"
	case KindUint16:
		return "uint16"
	case KindFloat32:
		return "float32"
	default:
		return "invalid"
	}
}

// Supported reports whether the kind can be carried losslessly
// through the pipeline.
func (k SampleKind) Supported() bool {
	switch k {
	case KindUint8, KindUint16, KindFloat32:
		return true
	default:
		return false
	}
}

// BitDepth returns the number of bits per sample.
func (k SampleKind) BitDepth() int {
	switch k {
	case KindUint8:
		return 8
	case KindUint16:
		return 16
	case KindFloat32:
		return 32
	default:
		return 0
	}
}

// Plane is one single-channel 2-D intensity image.
// It is immutable once validated; all downstream stages read it only.
type Plane struct {
	// Role is this plane's position in the job (base or channel index).
	Role Role

	// Width and Height are the plane dimensions in pixels.
	Width, Height int

	// Kind is the original numeric representation of the samples.
	Kind SampleKind

	// Samples holds the intensity values in row-major order,
	// len(Samples) == Width*Height.
	Samples []float64

	// Source is the identifier of the input this plane was decoded from.
	Source string
}

// New constructs a plane and checks the sample buffer length.
func New(role Role, width, height int, kind SampleKind, samples []float64) (*Plane, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("plane %s: dimensions must be positive, got %dx%d", role, width, height)
	}
	if len(samples) != width*height {
		return nil, fmt.Errorf("plane %s: %d samples for %dx%d plane", role, len(samples), width, height)
	}
	return &Plane{
		Role:    role,
		Width:   width,
		Height:  height,
		Kind:    kind,
		Samples: samples,
	}, nil
}

// At returns the sample at pixel (x, y).
func (p *Plane) At(x, y int) float64 {
	return p.Samples[y*p.Width+x]
}

// Bounds returns the plane dimensions as a (width, height) pair.
func (p *Plane) Bounds() (int, int) {
	return p.Width, p.Height
}

// MinMax returns the smallest and largest sample values.
func (p *Plane) MinMax() (float64, float64) {
	min, max := math.Inf(1), math.Inf(-1)
	for _, v := range p.Samples {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// String describes the plane for logs and error messages.
func (p *Plane) String() string {
	return fmt.Sprintf("%s %dx%d %s", p.Role, p.Width, p.Height, p.Kind)
}
