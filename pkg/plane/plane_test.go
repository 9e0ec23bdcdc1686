package plane

import (
	"testing"
)

func TestRoleString(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{RoleBase, "base"},
		{Role(1), "channel_1"},
		{Role(7), "channel_7"},
	}

	for _, tt := range tests {
		if got := tt.role.String(); got != tt.want {
			t.Errorf("Role(%d).String() = %q, want %q", int(tt.role), got, tt.want)
		}
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"base", RoleBase, false},
		{"channel_1", Role(1), false},
		{"channel_7", Role(7), false},
		{"channel_8", 0, true},
		{"channel_0", 0, true},
		{"channel_-1", 0, true},
		{"slice_3", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseRole(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRole(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseRole(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRoleRoundTrip(t *testing.T) {
	for r := RoleBase; r <= MaxChannels; r++ {
		got, err := ParseRole(r.String())
		if err != nil {
			t.Fatalf("ParseRole(%q): %v", r.String(), err)
		}
		if got != r {
			t.Errorf("round trip %v -> %q -> %v", r, r.String(), got)
		}
	}
}

func TestSampleKind(t *testing.T) {
	tests := []struct {
		kind      SampleKind
		supported bool
		bits      int
	}{
		{KindUint8, true, 8},
		{KindUint16, true, 16},
		{KindFloat32, true, 32},
		{KindInvalid, false, 0},
		{SampleKind(99), false, 0},
	}

	for _, tt := range tests {
		if got := tt.kind.Supported(); got != tt.supported {
			t.Errorf("%v.Supported() = %v, want %v", tt.kind, got, tt.supported)
		}
		if got := tt.kind.BitDepth(); got != tt.bits {
			t.Errorf("%v.BitDepth() = %d, want %d", tt.kind, got, tt.bits)
		}
	}
}

func TestNew(t *testing.T) {
	samples := make([]float64, 12)
	p, err := New(RoleBase, 4, 3, KindUint8, samples)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if w, h := p.Bounds(); w != 4 || h != 3 {
		t.Errorf("Bounds = %dx%d, want 4x3", w, h)
	}

	// Sample buffer length must match the geometry
	if _, err := New(RoleBase, 4, 4, KindUint8, samples); err == nil {
		t.Error("New should reject a short sample buffer")
	}
	if _, err := New(RoleBase, 0, 3, KindUint8, nil); err == nil {
		t.Error("New should reject zero width")
	}
}

func TestAt(t *testing.T) {
	p, err := New(Role(1), 3, 2, KindUint8, []float64{
		1, 2, 3,
		4, 5, 6,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := p.At(2, 0); got != 3 {
		t.Errorf("At(2,0) = %v, want 3", got)
	}
	if got := p.At(0, 1); got != 4 {
		t.Errorf("At(0,1) = %v, want 4", got)
	}
}

func TestMinMax(t *testing.T) {
	p, _ := New(RoleBase, 2, 2, KindUint16, []float64{9, 1, 5, 7})
	min, max := p.MinMax()
	if min != 1 || max != 9 {
		t.Errorf("MinMax = (%v, %v), want (1, 9)", min, max)
	}

	flat, _ := New(RoleBase, 2, 2, KindUint8, []float64{3, 3, 3, 3})
	min, max = flat.MinMax()
	if min != 3 || max != 3 {
		t.Errorf("flat MinMax = (%v, %v), want (3, 3)", min, max)
	}
}
