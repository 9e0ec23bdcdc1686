package pipeline

import (
	"bytes"
	"context"
	"image/png"
	"testing"

	"github.com/fluostack/fluostack/pkg/cache"
	"github.com/fluostack/fluostack/pkg/codec"
	"github.com/fluostack/fluostack/pkg/errors"
	"github.com/fluostack/fluostack/pkg/normalize"
	"github.com/fluostack/fluostack/pkg/plane"
)

func mustPlane(t *testing.T, role plane.Role, value float64) *plane.Plane {
	t.Helper()
	samples := make([]float64, 4*3)
	for i := range samples {
		samples[i] = value
	}
	p, err := plane.New(role, 4, 3, plane.KindUint8, samples)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func fullRange(roles ...plane.Role) map[plane.Role]normalize.Policy {
	m := make(map[plane.Role]normalize.Policy, len(roles))
	for _, r := range roles {
		m[r] = normalize.Fixed{Min: 0, Max: 255}
	}
	return m
}

func TestExecutePlanes(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	planes := []*plane.Plane{
		mustPlane(t, plane.RoleBase, 50),
		mustPlane(t, plane.Role(1), 200),
	}

	result, err := r.ExecutePlanes(context.Background(), planes, Options{
		Policies: fullRange(plane.RoleBase, plane.Role(1)),
	})
	if err != nil {
		t.Fatalf("ExecutePlanes: %v", err)
	}

	if result.Stats.PlaneCount != 2 || result.Stats.Width != 4 || result.Stats.Height != 3 {
		t.Errorf("stats = %+v", result.Stats)
	}
	if result.PlanesHash == "" {
		t.Error("missing planes hash")
	}

	// Both targets produced by default.
	pngData, ok := result.Artifacts[TargetComposite]
	if !ok {
		t.Fatal("missing composite artifact")
	}
	tiffData, ok := result.Artifacts[TargetStack]
	if !ok {
		t.Fatal("missing stack artifact")
	}
	if len(tiffData) == 0 {
		t.Error("empty stack artifact")
	}
	if result.Stack == nil || len(result.Stack.Frames) != 2 {
		t.Fatalf("stack info = %+v", result.Stack)
	}
	if result.Stack.Frames[0].Label != "base" || result.Stack.Frames[1].Label != "channel_1" {
		t.Errorf("frame labels = %+v", result.Stack.Frames)
	}

	// Base 50 gray plus channel 1 (red) 200: R saturates additively at
	// 50+200=250, G and B stay at the base's 50.
	img, err := png.Decode(bytes.NewReader(pngData))
	if err != nil {
		t.Fatalf("decode composite: %v", err)
	}
	cr, cg, cb, _ := img.At(2, 1).RGBA()
	if cr>>8 != 250 || cg>>8 != 50 || cb>>8 != 50 {
		t.Errorf("composite pixel = (%d,%d,%d), want (250,50,50)", cr>>8, cg>>8, cb>>8)
	}
}

func TestExecutePlanesCaching(t *testing.T) {
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(fc, nil, nil)
	planes := []*plane.Plane{mustPlane(t, plane.RoleBase, 128)}

	first, err := r.ExecutePlanes(context.Background(), planes, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if first.CacheInfo.CompositeHit || first.CacheInfo.StackHit {
		t.Error("first run should not hit the cache")
	}

	second, err := r.ExecutePlanes(context.Background(), planes, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheInfo.CompositeHit || !second.CacheInfo.StackHit {
		t.Errorf("second run should hit the cache, got %+v", second.CacheInfo)
	}
	if !bytes.Equal(first.Artifacts[TargetComposite], second.Artifacts[TargetComposite]) {
		t.Error("cached composite differs from rendered composite")
	}

	// Refresh bypasses the cache.
	third, err := r.ExecutePlanes(context.Background(), planes, Options{Refresh: true})
	if err != nil {
		t.Fatal(err)
	}
	if third.CacheInfo.CompositeHit || third.CacheInfo.StackHit {
		t.Error("refresh run should not hit the cache")
	}

	// A different policy must not share the composite entry.
	changed, err := r.ExecutePlanes(context.Background(), planes, Options{
		Targets:  []string{TargetComposite},
		Policies: fullRange(plane.RoleBase),
	})
	if err != nil {
		t.Fatal(err)
	}
	if changed.CacheInfo.CompositeHit {
		t.Error("policy change should miss the composite cache")
	}
}

func TestExecutePlanesTargetSelection(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	planes := []*plane.Plane{mustPlane(t, plane.RoleBase, 10)}

	result, err := r.ExecutePlanes(context.Background(), planes, Options{
		Targets: []string{TargetComposite},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := result.Artifacts[TargetStack]; ok {
		t.Error("stack artifact produced without being requested")
	}
	if _, ok := result.Artifacts[TargetComposite]; !ok {
		t.Error("composite artifact missing")
	}
}

func TestExecutePlanesIncludeComposite(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	planes := []*plane.Plane{mustPlane(t, plane.RoleBase, 10)}

	without, err := r.ExecutePlanes(context.Background(), planes, Options{
		Targets: []string{TargetStack},
	})
	if err != nil {
		t.Fatal(err)
	}
	with, err := r.ExecutePlanes(context.Background(), planes, Options{
		Targets:          []string{TargetStack},
		IncludeComposite: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(with.Artifacts[TargetStack]) <= len(without.Artifacts[TargetStack]) {
		t.Error("stack with composite frame should be larger")
	}
}

func TestOptionsValidation(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		code errors.Code
	}{
		{
			name: "no sources",
			opts: Options{},
			code: errors.ErrCodeInvalidInput,
		},
		{
			name: "invalid role",
			opts: Options{Sources: srcs(plane.Role(9))},
			code: errors.ErrCodeInvalidRole,
		},
		{
			name: "duplicate role",
			opts: Options{Sources: srcs(plane.Role(2), plane.Role(2))},
			code: errors.ErrCodeInvalidRole,
		},
		{
			name: "bad target",
			opts: Options{Sources: srcs(plane.RoleBase), Targets: []string{"gif"}},
			code: errors.ErrCodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.GetCode(err); got != tt.code {
				t.Errorf("code = %v, want %v", got, tt.code)
			}
		})
	}

	// Defaults
	opts := Options{Sources: srcs(plane.RoleBase)}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if !opts.WantsTarget(TargetComposite) || !opts.WantsTarget(TargetStack) {
		t.Error("empty targets should default to both")
	}
	if opts.Logger == nil {
		t.Error("logger default missing")
	}
}

func TestHashPlanesPermutationInvariant(t *testing.T) {
	a := mustPlane(t, plane.RoleBase, 1)
	b := mustPlane(t, plane.Role(3), 2)
	c := mustPlane(t, plane.Role(5), 3)

	h1 := HashPlanes([]*plane.Plane{a, b, c})
	h2 := HashPlanes([]*plane.Plane{c, a, b})
	if h1 != h2 {
		t.Error("hash should not depend on input order")
	}

	d := mustPlane(t, plane.Role(5), 4)
	if HashPlanes([]*plane.Plane{a, b, d}) == h1 {
		t.Error("different samples should change the hash")
	}
}

func srcs(roles ...plane.Role) []codec.Source {
	out := make([]codec.Source, 0, len(roles))
	for _, r := range roles {
		out = append(out, codec.Source{Role: r, Path: "x.tif"})
	}
	return out
}
