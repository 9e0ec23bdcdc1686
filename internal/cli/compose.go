package cli

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fluostack/fluostack/pkg/codec"
	"github.com/fluostack/fluostack/pkg/config"
	"github.com/fluostack/fluostack/pkg/errors"
	"github.com/fluostack/fluostack/pkg/normalize"
	"github.com/fluostack/fluostack/pkg/palette"
	"github.com/fluostack/fluostack/pkg/pipeline"
	"github.com/fluostack/fluostack/pkg/plane"
)

// composeOpts holds the command-line flags for the compose command.
type composeOpts struct {
	configPath       string   // job file (TOML); flags override its values
	base             string   // base plane path
	channels         []string // channel inputs as "N=path"
	policies         []string // per-role policies as "role=policy"
	colors           []string // per-role color overrides as "role=#RRGGBB"
	disabled         []string // roles excluded from the composite
	targetsStr       string   // comma-separated artifact targets
	includeComposite bool     // append the composite as a trailing stack frame
	exportFrames     bool     // also write each stack frame as a PNG
	output           string   // output directory
	workers          int      // render parallelism (0 = NumCPU)
	noCache          bool     // disable artifact caching
	refresh          bool     // bypass cached artifacts
}

// composeCommand creates the compose command, the CLI's main entry point:
// it runs one full load → compose → export job.
func (c *CLI) composeCommand() *cobra.Command {
	var opts composeOpts

	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Compose channel planes into a composite and a stack",
		Long: `Compose merges up to eight single-channel planes into an RGB composite
preview (PNG) and a lossless multi-frame stack (TIFF).

Inputs come from flags, a TOML job file, or both; flags win on conflict.

Examples:
  fluostack compose --base dapi.tif --channel 1=gfp.tif --channel 2=tritc.tif
  fluostack compose --config job.toml --refresh
  fluostack compose --base b.png --policy base=percentile(1,99) --color 1=#00FF80`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCompose(cmd, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "TOML job file")
	cmd.Flags().StringVar(&opts.base, "base", "", "base plane image path")
	cmd.Flags().StringArrayVar(&opts.channels, "channel", nil, "channel input as N=path (repeatable, N in 1..7)")
	cmd.Flags().StringArrayVar(&opts.policies, "policy", nil, "normalization policy as role=policy (repeatable)")
	cmd.Flags().StringArrayVar(&opts.colors, "color", nil, "color override as role=#RRGGBB (repeatable)")
	cmd.Flags().StringArrayVar(&opts.disabled, "disable", nil, "exclude a role from the composite (repeatable)")
	cmd.Flags().StringVarP(&opts.targetsStr, "targets", "t", "", "artifacts to produce: composite, stack (default both)")
	cmd.Flags().BoolVar(&opts.includeComposite, "include-composite", false, "append the composite as the final stack frame")
	cmd.Flags().BoolVar(&opts.exportFrames, "export-frames", false, "also export each stack frame as a grayscale PNG")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output directory (default current directory)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "render worker count (0 = all CPUs)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the artifact cache")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "re-render even when cached")

	return cmd
}

func (c *CLI) runCompose(cmd *cobra.Command, opts *composeOpts) error {
	pipeOpts, err := buildPipelineOptions(opts)
	if err != nil {
		return err
	}
	pipeOpts.Logger = c.Logger

	runner, err := c.newRunner(opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	spin := newSpinnerWithContext(cmd.Context(), "composing planes")
	spin.Start()

	p := newProgress(c.Logger)
	result, err := runner.Execute(cmd.Context(), *pipeOpts)
	if err != nil {
		spin.StopWithError(errors.UserMessage(err))
		return err
	}
	spin.Stop()
	p.done(fmt.Sprintf("Composed %d planes", result.Stats.PlaneCount))

	printSuccess("Composed %d planes (%dx%d)",
		result.Stats.PlaneCount, result.Stats.Width, result.Stats.Height)
	printArtifactStats(result)

	outDir := pipeOpts.OutputDir
	if data, ok := result.Artifacts[pipeline.TargetComposite]; ok {
		dest := filepath.Join(outDir, pipeline.DefaultCompositeName)
		if err := codec.WriteFile(dest, data); err != nil {
			return err
		}
		printFile(dest)
	}
	if data, ok := result.Artifacts[pipeline.TargetStack]; ok {
		dest := filepath.Join(outDir, pipeline.DefaultStackName)
		if err := codec.WriteFile(dest, data); err != nil {
			return err
		}
		printFile(dest)
	}

	if pipeOpts.ExportFrames {
		s, err := runner.BuildStack(result.Planes)
		if err != nil {
			return err
		}
		frameDir := filepath.Join(outDir, pipeline.DefaultFrameDir)
		if err := codec.WriteFramePNGs(frameDir, s); err != nil {
			return err
		}
		printFile(frameDir + string(filepath.Separator))
	}

	return nil
}

// buildPipelineOptions merges the job file (if any) with the flags.
// Flags override file values per role.
func buildPipelineOptions(opts *composeOpts) (*pipeline.Options, error) {
	pipeOpts := &pipeline.Options{
		Policies:  make(map[plane.Role]normalize.Policy),
		Overrides: make(map[plane.Role]*palette.Override),
	}
	paths := make(map[plane.Role]string)

	if opts.configPath != "" {
		job, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		applyJob(job, pipeOpts, paths)
	}

	if opts.base != "" {
		paths[plane.RoleBase] = opts.base
	}
	for _, spec := range opts.channels {
		role, path, err := splitRoleArg(spec, "channel")
		if err != nil {
			return nil, err
		}
		if role == plane.RoleBase {
			return nil, errors.New(errors.ErrCodeInvalidRole, "--channel takes indices 1..%d, use --base for the base plane", plane.MaxChannels)
		}
		paths[role] = path
	}
	for _, spec := range opts.policies {
		role, val, err := splitRoleArg(spec, "policy")
		if err != nil {
			return nil, err
		}
		pol, err := normalize.ParsePolicy(val)
		if err != nil {
			return nil, err
		}
		pipeOpts.Policies[role] = pol
	}
	for _, spec := range opts.colors {
		role, val, err := splitRoleArg(spec, "color")
		if err != nil {
			return nil, err
		}
		weights, err := palette.ParseHex(val)
		if err != nil {
			return nil, err
		}
		ov := pipeOpts.Overrides[role]
		if ov == nil {
			ov = &palette.Override{}
			pipeOpts.Overrides[role] = ov
		}
		ov.Weights = &weights
	}
	for _, token := range opts.disabled {
		role, err := parseRoleToken(token)
		if err != nil {
			return nil, err
		}
		disabled := false
		ov := pipeOpts.Overrides[role]
		if ov == nil {
			ov = &palette.Override{}
			pipeOpts.Overrides[role] = ov
		}
		ov.Enabled = &disabled
	}

	// Stable source order: base first, channels ascending.
	for role := plane.RoleBase; role.Valid(); role++ {
		if path, ok := paths[role]; ok {
			pipeOpts.Sources = append(pipeOpts.Sources, codec.Source{Role: role, Path: path})
		}
	}

	if targets := parseTargets(opts.targetsStr); targets != nil {
		pipeOpts.Targets = targets
	}
	if opts.includeComposite {
		pipeOpts.IncludeComposite = true
	}
	if opts.exportFrames {
		pipeOpts.ExportFrames = true
	}
	if opts.output != "" {
		pipeOpts.OutputDir = opts.output
	}
	if opts.workers > 0 {
		pipeOpts.Workers = opts.workers
	}
	pipeOpts.Refresh = opts.refresh

	return pipeOpts, nil
}

// applyJob copies a loaded job file into pipeline options and the role→path
// map that flags may override.
func applyJob(job *config.Job, pipeOpts *pipeline.Options, paths map[plane.Role]string) {
	apply := func(src *config.Source, role plane.Role) {
		paths[role] = src.Path
		if src.Policy != "" {
			pipeOpts.Policies[role] = src.ParsedPolicy()
		}
		if ov := src.ParsedOverride(); ov != nil {
			pipeOpts.Overrides[role] = ov
		}
	}
	if job.Base != nil {
		apply(job.Base, plane.RoleBase)
	}
	for i := range job.Channels {
		ch := &job.Channels[i]
		apply(ch, ch.Role(false))
	}

	pipeOpts.Targets = job.Output.Targets
	pipeOpts.IncludeComposite = job.Output.IncludeComposite
	pipeOpts.ExportFrames = job.Output.ExportFrames
	pipeOpts.OutputDir = job.Output.Dir
	pipeOpts.Workers = job.Output.Workers
}

// splitRoleArg parses a "role=value" flag argument.
func splitRoleArg(spec, flag string) (plane.Role, string, error) {
	token, value, found := strings.Cut(spec, "=")
	if !found || value == "" {
		return 0, "", errors.New(errors.ErrCodeInvalidInput, "--%s wants role=value, got %q", flag, spec)
	}
	role, err := parseRoleToken(token)
	if err != nil {
		return 0, "", err
	}
	return role, value, nil
}

// parseRoleToken accepts "base", "channel_N", or a bare channel index.
func parseRoleToken(s string) (plane.Role, error) {
	s = strings.TrimSpace(s)
	if role, err := plane.ParseRole(s); err == nil {
		return role, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		role := plane.Role(n)
		if role.Valid() {
			return role, nil
		}
	}
	return 0, errors.New(errors.ErrCodeInvalidRole,
		"unknown role %q (want base, channel_1..channel_%d, or 1..%d)", s, plane.MaxChannels, plane.MaxChannels)
}

// printArtifactStats prints per-artifact size and cache status.
func printArtifactStats(result *pipeline.Result) {
	if data, ok := result.Artifacts[pipeline.TargetComposite]; ok {
		printCachedDetail("composite", len(data), result.CacheInfo.CompositeHit)
	}
	if data, ok := result.Artifacts[pipeline.TargetStack]; ok {
		printCachedDetail("stack", len(data), result.CacheInfo.StackHit)
	}
}
