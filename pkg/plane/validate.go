package plane

import (
	"github.com/fluostack/fluostack/pkg/errors"
)

// Validate checks that every plane in the job shares the base plane's
// geometry and uses a supported sample kind. The first plane in the list
// is the reference; by convention it is the base plane.
//
// On success the input slice is returned unchanged. The check is pure:
// no plane is mutated and nothing is cropped or resized on mismatch.
func Validate(planes []*Plane) ([]*Plane, error) {
	if len(planes) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no planes to validate")
	}

	ref := planes[0]
	for _, p := range planes {
		if !p.Role.Valid() {
			return nil, errors.New(errors.ErrCodeInvalidRole, "role index %d out of range", int(p.Role))
		}
		if !p.Kind.Supported() {
			return nil, errors.New(errors.ErrCodeUnsupportedSample,
				"%s: sample kind %s cannot be normalized losslessly", p.Role, p.Kind)
		}
		if p.Width != ref.Width || p.Height != ref.Height {
			return nil, errors.New(errors.ErrCodeDimensionMismatch,
				"%s: got %dx%d, want %dx%d (reference: %s)",
				p.Role, p.Width, p.Height, ref.Width, ref.Height, ref.Role)
		}
	}
	return planes, nil
}
