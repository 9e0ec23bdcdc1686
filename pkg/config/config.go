// Package config loads composition job files.
//
// A job file is TOML describing the input planes and output targets of one
// composition run:
//
//	[output]
//	dir = "out"
//	targets = ["composite", "stack"]
//	include_composite = true
//
//	[base]
//	path = "testdata/dapi.tif"
//	policy = "min_max"
//
//	[[channel]]
//	index = 1
//	path = "testdata/gfp.tif"
//	policy = "percentile(1,99)"
//	color = "#00FF00"
//
// CLI flags override file values; the file supplies defaults for anything
// the flags leave unset.
package config

import (
	"github.com/BurntSushi/toml"

	"github.com/fluostack/fluostack/pkg/errors"
	"github.com/fluostack/fluostack/pkg/normalize"
	"github.com/fluostack/fluostack/pkg/palette"
	"github.com/fluostack/fluostack/pkg/plane"
)

// Job is a fully parsed job file.
type Job struct {
	Output   Output   `toml:"output"`
	Base     *Source  `toml:"base"`
	Channels []Source `toml:"channel"`
}

// Output selects what a job writes and where.
type Output struct {
	// Dir is the destination directory. Empty means the current directory.
	Dir string `toml:"dir"`

	// Targets lists the artifacts to produce: "composite", "stack", or both.
	// Empty means both.
	Targets []string `toml:"targets"`

	// IncludeComposite appends the rendered composite as the final stack
	// frame.
	IncludeComposite bool `toml:"include_composite"`

	// ExportFrames additionally writes each stack frame as a grayscale PNG.
	ExportFrames bool `toml:"export_frames"`

	// Workers bounds render parallelism. Zero means NumCPU.
	Workers int `toml:"workers"`
}

// Source describes one input plane.
type Source struct {
	// Index is the channel number 1..7. Ignored for the base entry.
	Index int `toml:"index"`

	// Path locates the image file.
	Path string `toml:"path"`

	// Policy is the normalization policy in its textual form
	// ("min_max", "percentile", "percentile(lo,hi)", "fixed(min,max)").
	// Empty means min_max.
	Policy string `toml:"policy"`

	// Color overrides the default hue as #RRGGBB. Empty keeps the default.
	Color string `toml:"color"`

	// Enabled toggles the plane's contribution to the composite. The plane
	// still appears in the stack. Nil means enabled.
	Enabled *bool `toml:"enabled"`
}

// Load reads and validates a job file.
func Load(path string) (*Job, error) {
	var job Job
	if _, err := toml.DecodeFile(path, &job); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "parse job file %s", path)
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return &job, nil
}

// Validate checks the job for structural errors: at least one source, valid
// channel indices without duplicates, parseable policies and colors.
func (j *Job) Validate() error {
	if j.Base == nil && len(j.Channels) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "job file names no input planes")
	}
	if j.Base != nil {
		if err := j.Base.validate(plane.RoleBase); err != nil {
			return err
		}
	}
	seen := make(map[int]bool, len(j.Channels))
	for i := range j.Channels {
		ch := &j.Channels[i]
		if ch.Index < 1 || ch.Index > plane.MaxChannels {
			return errors.New(errors.ErrCodeInvalidRole,
				"channel index must be 1..%d, got %d", plane.MaxChannels, ch.Index)
		}
		if seen[ch.Index] {
			return errors.New(errors.ErrCodeInvalidRole, "duplicate channel index %d", ch.Index)
		}
		seen[ch.Index] = true
		if err := ch.validate(plane.Role(ch.Index)); err != nil {
			return err
		}
	}
	for _, t := range j.Output.Targets {
		if t != "composite" && t != "stack" {
			return errors.New(errors.ErrCodeInvalidInput,
				"unknown output target %q, want composite or stack", t)
		}
	}
	return nil
}

func (s *Source) validate(role plane.Role) error {
	if s.Path == "" {
		return errors.New(errors.ErrCodeInvalidInput, "%s: missing path", role)
	}
	if _, err := normalize.ParsePolicy(s.Policy); err != nil {
		return err
	}
	if s.Color != "" {
		if _, err := palette.ParseHex(s.Color); err != nil {
			return err
		}
	}
	return nil
}

// ParsedPolicy returns the source's normalization policy.
// Validate must have succeeded first.
func (s *Source) ParsedPolicy() normalize.Policy {
	p, err := normalize.ParsePolicy(s.Policy)
	if err != nil {
		return normalize.MinMax{}
	}
	return p
}

// ParsedOverride returns the palette override implied by the source's
// Color and Enabled fields, or nil when both keep their defaults.
func (s *Source) ParsedOverride() *palette.Override {
	var ov palette.Override
	if s.Color != "" {
		if w, err := palette.ParseHex(s.Color); err == nil {
			ov.Weights = &w
		}
	}
	ov.Enabled = s.Enabled
	if ov.Weights == nil && ov.Enabled == nil {
		return nil
	}
	return &ov
}

// Role returns the plane role of this source given its position in the job:
// RoleBase for the [base] table, Role(Index) for [[channel]] entries.
func (s *Source) Role(isBase bool) plane.Role {
	if isBase {
		return plane.RoleBase
	}
	return plane.Role(s.Index)
}
