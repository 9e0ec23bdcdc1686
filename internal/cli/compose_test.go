package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fluostack/fluostack/pkg/errors"
	"github.com/fluostack/fluostack/pkg/normalize"
	"github.com/fluostack/fluostack/pkg/pipeline"
	"github.com/fluostack/fluostack/pkg/plane"
)

func TestParseRoleToken(t *testing.T) {
	tests := []struct {
		in      string
		want    plane.Role
		wantErr bool
	}{
		{"base", plane.RoleBase, false},
		{"channel_1", plane.Role(1), false},
		{"channel_7", plane.Role(7), false},
		{"3", plane.Role(3), false},
		{" 5 ", plane.Role(5), false},
		{"channel_8", 0, true},
		{"8", 0, true},
		{"red", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := parseRoleToken(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseRoleToken(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("parseRoleToken(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSplitRoleArg(t *testing.T) {
	role, val, err := splitRoleArg("2=gfp.tif", "channel")
	if err != nil {
		t.Fatal(err)
	}
	if role != plane.Role(2) || val != "gfp.tif" {
		t.Errorf("got (%v, %q)", role, val)
	}

	if _, _, err := splitRoleArg("no-equals", "channel"); err == nil {
		t.Error("expected error for missing =")
	}
	if _, _, err := splitRoleArg("2=", "channel"); err == nil {
		t.Error("expected error for empty value")
	}
}

func TestBuildPipelineOptionsFromFlags(t *testing.T) {
	opts := &composeOpts{
		base:             "dapi.tif",
		channels:         []string{"1=gfp.tif", "3=cy5.tif"},
		policies:         []string{"channel_1=percentile(1,99)", "base=fixed(0,255)"},
		colors:           []string{"1=#00FF00"},
		disabled:         []string{"3"},
		targetsStr:       "composite",
		includeComposite: true,
		output:           "out",
		workers:          2,
	}

	pipeOpts, err := buildPipelineOptions(opts)
	if err != nil {
		t.Fatal(err)
	}

	// Sources in role order: base, channel_1, channel_3.
	if len(pipeOpts.Sources) != 3 {
		t.Fatalf("got %d sources", len(pipeOpts.Sources))
	}
	if pipeOpts.Sources[0].Role != plane.RoleBase || pipeOpts.Sources[0].Path != "dapi.tif" {
		t.Errorf("source[0] = %+v", pipeOpts.Sources[0])
	}
	if pipeOpts.Sources[2].Role != plane.Role(3) || pipeOpts.Sources[2].Path != "cy5.tif" {
		t.Errorf("source[2] = %+v", pipeOpts.Sources[2])
	}

	p, ok := pipeOpts.Policies[plane.Role(1)].(normalize.Percentile)
	if !ok || p.Lo != 1 || p.Hi != 99 {
		t.Errorf("channel_1 policy = %v", pipeOpts.Policies[plane.Role(1)])
	}
	if _, ok := pipeOpts.Policies[plane.RoleBase].(normalize.Fixed); !ok {
		t.Errorf("base policy = %v", pipeOpts.Policies[plane.RoleBase])
	}

	ov := pipeOpts.Overrides[plane.Role(1)]
	if ov == nil || ov.Weights == nil || ov.Weights.G != 1 {
		t.Errorf("channel_1 override = %+v", ov)
	}
	ov = pipeOpts.Overrides[plane.Role(3)]
	if ov == nil || ov.Enabled == nil || *ov.Enabled {
		t.Errorf("channel_3 should be disabled, got %+v", ov)
	}

	if len(pipeOpts.Targets) != 1 || pipeOpts.Targets[0] != pipeline.TargetComposite {
		t.Errorf("targets = %v", pipeOpts.Targets)
	}
	if !pipeOpts.IncludeComposite || pipeOpts.OutputDir != "out" || pipeOpts.Workers != 2 {
		t.Errorf("output options = %+v", pipeOpts)
	}
}

func TestBuildPipelineOptionsFlagsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	jobPath := filepath.Join(dir, "job.toml")
	job := `
[output]
dir = "config-out"

[base]
path = "config-base.tif"
policy = "min_max"

[[channel]]
index = 1
path = "config-gfp.tif"
color = "#112233"
`
	if err := os.WriteFile(jobPath, []byte(job), 0644); err != nil {
		t.Fatal(err)
	}

	opts := &composeOpts{
		configPath: jobPath,
		base:       "flag-base.tif", // overrides the file's base path
		output:     "flag-out",      // overrides the file's output dir
	}
	pipeOpts, err := buildPipelineOptions(opts)
	if err != nil {
		t.Fatal(err)
	}

	if pipeOpts.Sources[0].Path != "flag-base.tif" {
		t.Errorf("base path = %q, want flag override", pipeOpts.Sources[0].Path)
	}
	if pipeOpts.Sources[1].Path != "config-gfp.tif" {
		t.Errorf("channel path = %q, want config value", pipeOpts.Sources[1].Path)
	}
	if pipeOpts.OutputDir != "flag-out" {
		t.Errorf("output dir = %q", pipeOpts.OutputDir)
	}
	if ov := pipeOpts.Overrides[plane.Role(1)]; ov == nil || ov.Weights == nil {
		t.Error("config color override lost in merge")
	}
}

func TestBuildPipelineOptionsRejectsBaseAsChannel(t *testing.T) {
	opts := &composeOpts{channels: []string{"base=x.tif"}}
	_, err := buildPipelineOptions(opts)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := errors.GetCode(err); got != errors.ErrCodeInvalidRole {
		t.Errorf("code = %v", got)
	}
}
