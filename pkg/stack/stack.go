// Package stack assembles the lossless multi-frame bundle of a composition
// job.
//
// Unlike the composite path, nothing here is normalized or color-mapped:
// frames reference the original planes so every sample value and the
// original bit depth survive into the exported artifact. Frame order is the
// role order (base first, then channels by ascending index, absent roles
// skipped) and is what downstream analysis tools key on.
package stack

import (
	"image"
	"sort"

	"github.com/fluostack/fluostack/pkg/errors"
	"github.com/fluostack/fluostack/pkg/plane"
)

// Frame is one stack entry: a plane plus its role label, which the
// exporter records as per-frame metadata.
type Frame struct {
	Plane *plane.Plane
	Label string
}

// Stack is the ordered, immutable sequence of frames for one job.
type Stack struct {
	Frames []Frame

	// Composite optionally carries the blended RGB raster to be appended
	// as a trailing preview frame. It is never part of the lossless frame
	// order above.
	Composite *image.NRGBA
}

// Build orders the planes by role and wraps them into a Stack.
// The input planes are not copied or mutated. An empty input fails with
// EMPTY_STACK; duplicate roles are rejected because frame order would be
// ambiguous.
func Build(planes []*plane.Plane) (*Stack, error) {
	if len(planes) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyStack, "no planes to stack")
	}

	ordered := make([]*plane.Plane, len(planes))
	copy(ordered, planes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Role < ordered[j].Role
	})

	frames := make([]Frame, 0, len(ordered))
	var prev plane.Role = -1
	for _, p := range ordered {
		if p.Role == prev {
			return nil, errors.New(errors.ErrCodeInvalidRole, "duplicate role %s in stack input", p.Role)
		}
		prev = p.Role
		frames = append(frames, Frame{Plane: p, Label: p.Role.String()})
	}

	return &Stack{Frames: frames}, nil
}

// WithComposite returns a copy of the stack carrying the composite raster
// as an optional trailing frame. The original stack is left untouched.
func (s *Stack) WithComposite(img *image.NRGBA) *Stack {
	return &Stack{Frames: s.Frames, Composite: img}
}

// Len returns the number of lossless frames (the composite, if any, is not
// counted).
func (s *Stack) Len() int {
	return len(s.Frames)
}
