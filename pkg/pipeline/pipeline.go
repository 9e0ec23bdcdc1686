// Package pipeline provides the core composition pipeline for Fluostack.
//
// This package implements the complete load → compose → export pipeline that
// can be used by CLI and API components. By centralizing this logic, we
// ensure consistent behavior across all entry points and avoid code
// duplication.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Load: Decode input sources into planes and validate geometry/type
//  2. Compose: Normalize each plane and blend the enabled ones into an
//     8-bit RGB composite
//  3. Export: Encode the composite (PNG) and the lossless stack (multi-page
//     TIFF)
//
// Any gate failure aborts the job; nothing is partially exported.
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{
//	    Sources: []codec.Source{
//	        {Role: plane.RoleBase, Path: "dapi.tif"},
//	        {Role: plane.Role(1), Path: "gfp.tif"},
//	    },
//	}
//	result, err := runner.Execute(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	png := result.Artifacts[pipeline.TargetComposite]
package pipeline

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/fluostack/fluostack/pkg/cache"
	"github.com/fluostack/fluostack/pkg/codec"
	"github.com/fluostack/fluostack/pkg/errors"
	"github.com/fluostack/fluostack/pkg/normalize"
	"github.com/fluostack/fluostack/pkg/palette"
	"github.com/fluostack/fluostack/pkg/plane"
)

// Target constants for output artifacts.
const (
	TargetComposite = "composite"
	TargetStack     = "stack"
)

// ValidTargets is the set of supported output targets.
var ValidTargets = map[string]bool{
	TargetComposite: true,
	TargetStack:     true,
}

// Default artifact names used by CLI export.
const (
	DefaultCompositeName = "composite.png"
	DefaultStackName     = "stack.tif"
	DefaultFrameDir      = "frames"
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for one composition job.
type Options struct {
	// Load options
	Sources []codec.Source `json:"sources,omitempty"`

	// Compose options. Missing map entries keep the defaults for their
	// role (min_max policy, default palette hue, enabled).
	Policies  map[plane.Role]normalize.Policy  `json:"-"`
	Overrides map[plane.Role]*palette.Override `json:"-"`
	Workers   int                              `json:"workers,omitempty"`

	// Export options
	Targets          []string `json:"targets,omitempty"` // empty means both
	IncludeComposite bool     `json:"include_composite,omitempty"`
	ExportFrames     bool     `json:"export_frames,omitempty"`
	OutputDir        string   `json:"output_dir,omitempty"`

	// Refresh bypasses cached artifacts.
	Refresh bool `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Planes are the decoded, validated input planes in role order.
	Planes []*plane.Plane

	// PlanesHash is the content hash of the validated planes.
	PlanesHash string

	// Artifacts contains encoded outputs keyed by target.
	Artifacts map[string][]byte

	// Stack is the assembled lossless stack, present when the stack target
	// was produced. CLI frame export reads it.
	Stack *StackResult

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which artifacts came from the cache.
	CacheInfo CacheInfo
}

// StackResult pairs the assembled stack with its frame labels for callers
// that export frames individually.
type StackResult struct {
	Frames []FrameInfo
}

// FrameInfo describes one exported stack frame.
type FrameInfo struct {
	Label string
	Kind  plane.SampleKind
}

// Stats contains pipeline execution statistics.
type Stats struct {
	PlaneCount  int
	Width       int
	Height      int
	LoadTime    time.Duration
	ComposeTime time.Duration
	ExportTime  time.Duration
}

// CacheInfo tracks cache hits for each artifact.
type CacheInfo struct {
	CompositeHit bool // Whether the composite PNG came from cache
	StackHit     bool // Whether the stack TIFF came from cache
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateTarget checks that a target is valid.
func ValidateTarget(target string) error {
	if !ValidTargets[target] {
		return errors.New(errors.ErrCodeInvalidInput,
			"invalid target: %q (must be one of: composite, stack)", target)
	}
	return nil
}

// ValidateTargets checks that all targets are valid.
func ValidateTargets(targets []string) error {
	for _, t := range targets {
		if err := ValidateTarget(t); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks required fields and applies defaults.
// This method is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if len(o.Sources) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "at least one source is required")
	}
	seen := make(map[plane.Role]bool, len(o.Sources))
	for _, src := range o.Sources {
		if !src.Role.Valid() {
			return errors.New(errors.ErrCodeInvalidRole, "invalid role %d for source %s", src.Role, src.Path)
		}
		if seen[src.Role] {
			return errors.New(errors.ErrCodeInvalidRole, "duplicate role %s", src.Role)
		}
		seen[src.Role] = true
	}
	if err := ValidateTargets(o.Targets); err != nil {
		return err
	}
	if len(o.Targets) == 0 {
		o.Targets = []string{TargetComposite, TargetStack}
	}
	for role, pol := range o.Policies {
		if pol == nil {
			continue
		}
		if err := pol.Validate(); err != nil {
			return fmt.Errorf("%s: %w", role, err)
		}
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// WantsTarget reports whether the given artifact was requested.
func (o *Options) WantsTarget(target string) bool {
	for _, t := range o.Targets {
		if t == target {
			return true
		}
	}
	return false
}

// policy returns the effective normalization policy for a role.
func (o *Options) policy(role plane.Role) normalize.Policy {
	if pol, ok := o.Policies[role]; ok && pol != nil {
		return pol
	}
	return normalize.MinMax{}
}

// assignment returns the effective palette assignment for a role.
func (o *Options) assignment(role plane.Role) palette.Assignment {
	return palette.Resolve(role, o.Overrides[role])
}

// keyStrings derives the canonical per-plane policy and assignment strings
// that enter cache keys, in role order.
func (o *Options) keyStrings(planes []*plane.Plane) (policies, assigns []string) {
	roles := make([]plane.Role, 0, len(planes))
	for _, p := range planes {
		roles = append(roles, p.Role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })

	for _, role := range roles {
		policies = append(policies, fmt.Sprintf("%s=%s", role, o.policy(role)))
		a := o.assignment(role)
		assigns = append(assigns, fmt.Sprintf("%s=%s:%t", role, a.Weights.Hex(), a.Enabled))
	}
	return policies, assigns
}

// CompositeKeyOpts returns cache key options for the composite artifact.
func (o *Options) CompositeKeyOpts(planes []*plane.Plane) cache.CompositeKeyOpts {
	policies, assigns := o.keyStrings(planes)
	return cache.CompositeKeyOpts{
		Policies:    policies,
		Assignments: assigns,
	}
}

// StackKeyOpts returns cache key options for the stack artifact.
func (o *Options) StackKeyOpts(planes []*plane.Plane) cache.StackKeyOpts {
	opts := cache.StackKeyOpts{IncludeComposite: o.IncludeComposite}
	if o.IncludeComposite {
		// The composite frame bakes policies and colors into the artifact.
		opts.Policies, opts.Assignments = o.keyStrings(planes)
	}
	return opts
}
