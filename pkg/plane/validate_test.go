package plane

import (
	"strings"
	"testing"

	"github.com/fluostack/fluostack/pkg/errors"
)

func testPlane(t *testing.T, role Role, w, h int, kind SampleKind) *Plane {
	t.Helper()
	p, err := New(role, w, h, kind, make([]float64, w*h))
	if err != nil {
		t.Fatalf("New(%v, %dx%d): %v", role, w, h, err)
	}
	return p
}

func TestValidateAccepts(t *testing.T) {
	planes := []*Plane{
		testPlane(t, RoleBase, 100, 80, KindUint8),
		testPlane(t, Role(1), 100, 80, KindUint16),
		testPlane(t, Role(3), 100, 80, KindFloat32),
	}

	got, err := Validate(planes)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	// Returned list is the input, unchanged
	if len(got) != len(planes) {
		t.Fatalf("Validate returned %d planes, want %d", len(got), len(planes))
	}
	for i := range got {
		if got[i] != planes[i] {
			t.Errorf("plane %d was replaced", i)
		}
	}
}

func TestValidateDimensionMismatch(t *testing.T) {
	planes := []*Plane{
		testPlane(t, RoleBase, 100, 80, KindUint8),
		testPlane(t, Role(2), 100, 81, KindUint8),
	}

	_, err := Validate(planes)
	if err == nil {
		t.Fatal("Validate should reject mismatched geometry")
	}
	if !errors.Is(err, errors.ErrCodeDimensionMismatch) {
		t.Errorf("error code = %q, want DIMENSION_MISMATCH", errors.GetCode(err))
	}
	// The offending role and both shapes are named
	msg := err.Error()
	for _, want := range []string{"channel_2", "100x81", "100x80"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q should contain %q", msg, want)
		}
	}
}

func TestValidateUnsupportedKind(t *testing.T) {
	p := testPlane(t, RoleBase, 10, 10, KindUint8)
	bad := testPlane(t, Role(1), 10, 10, KindUint8)
	bad.Kind = KindInvalid

	_, err := Validate([]*Plane{p, bad})
	if !errors.Is(err, errors.ErrCodeUnsupportedSample) {
		t.Errorf("error code = %q, want UNSUPPORTED_SAMPLE_TYPE", errors.GetCode(err))
	}
}

func TestValidateEmpty(t *testing.T) {
	_, err := Validate(nil)
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("error code = %q, want INVALID_INPUT", errors.GetCode(err))
	}
}

func TestValidateBadRole(t *testing.T) {
	p := testPlane(t, RoleBase, 10, 10, KindUint8)
	bad := testPlane(t, RoleBase, 10, 10, KindUint8)
	bad.Role = Role(12)

	_, err := Validate([]*Plane{p, bad})
	if !errors.Is(err, errors.ErrCodeInvalidRole) {
		t.Errorf("error code = %q, want INVALID_ROLE", errors.GetCode(err))
	}
}
