package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/fluostack/fluostack/pkg/cache"
	"github.com/fluostack/fluostack/pkg/codec"
	"github.com/fluostack/fluostack/pkg/composite"
	"github.com/fluostack/fluostack/pkg/errors"
	"github.com/fluostack/fluostack/pkg/normalize"
	"github.com/fluostack/fluostack/pkg/observability"
	"github.com/fluostack/fluostack/pkg/palette"
	"github.com/fluostack/fluostack/pkg/plane"
	"github.com/fluostack/fluostack/pkg/stack"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API can use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store job results. Multiple goroutines can safely use the same Runner
// with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete load → compose → export pipeline with caching,
// decoding the sources named in opts from the filesystem.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	r.applyLogger(&opts)

	loadStart := time.Now()
	planes, err := r.Load(ctx, opts.Sources)
	if err != nil {
		return nil, err
	}
	loadTime := time.Since(loadStart)

	result, err := r.ExecutePlanes(ctx, planes, opts)
	if err != nil {
		return nil, err
	}
	result.Stats.LoadTime = loadTime
	return result, nil
}

// ExecutePlanes runs the compose and export stages on already-decoded
// planes. The API server uses this entry point after decoding multipart
// uploads.
func (r *Runner) ExecutePlanes(ctx context.Context, planes []*plane.Plane, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	r.applyLogger(&opts)

	validated, err := plane.Validate(planes)
	if err != nil {
		return nil, err
	}

	w, h := validated[0].Bounds()
	result := &Result{
		Planes:     validated,
		PlanesHash: HashPlanes(validated),
		Artifacts:  make(map[string][]byte),
	}
	result.Stats.PlaneCount = len(validated)
	result.Stats.Width = w
	result.Stats.Height = h

	// The composite raster is rendered at most once, on first demand: for
	// the composite artifact on a cache miss, or for the trailing stack
	// frame when include_composite is set.
	var raster *image.NRGBA
	ensureRaster := func() error {
		if raster != nil {
			return nil
		}
		composeStart := time.Now()
		raster, err = r.RenderComposite(ctx, validated, opts)
		result.Stats.ComposeTime += time.Since(composeStart)
		return err
	}

	exportStart := time.Now()
	observability.Pipeline().OnExportStart(ctx, opts.Targets)

	if opts.WantsTarget(TargetComposite) {
		data, hit, err := r.compositeArtifact(ctx, validated, opts, result.PlanesHash, ensureRaster, &raster)
		if err != nil {
			observability.Pipeline().OnExportComplete(ctx, opts.Targets, time.Since(exportStart), err)
			return nil, err
		}
		result.Artifacts[TargetComposite] = data
		result.CacheInfo.CompositeHit = hit
	}

	if opts.WantsTarget(TargetStack) {
		data, info, hit, err := r.stackArtifact(ctx, validated, opts, result.PlanesHash, ensureRaster, &raster)
		if err != nil {
			observability.Pipeline().OnExportComplete(ctx, opts.Targets, time.Since(exportStart), err)
			return nil, err
		}
		result.Artifacts[TargetStack] = data
		result.Stack = info
		result.CacheInfo.StackHit = hit
	}

	result.Stats.ExportTime = time.Since(exportStart) - result.Stats.ComposeTime
	observability.Pipeline().OnExportComplete(ctx, opts.Targets, result.Stats.ExportTime, nil)

	r.Logger.Info("composition complete",
		"planes", result.Stats.PlaneCount,
		"size", result.Stats.Width*result.Stats.Height,
		"composite_hit", result.CacheInfo.CompositeHit,
		"stack_hit", result.CacheInfo.StackHit)

	return result, nil
}

// Load decodes and validates the sources.
func (r *Runner) Load(ctx context.Context, sources []codec.Source) ([]*plane.Plane, error) {
	start := time.Now()
	observability.Pipeline().OnLoadStart(ctx, len(sources))

	planes, err := codec.LoadFiles(sources)
	if err == nil {
		planes, err = plane.Validate(planes)
	}
	observability.Pipeline().OnLoadComplete(ctx, len(planes), time.Since(start), err)
	if err != nil {
		return nil, err
	}

	r.Logger.Info("loaded planes", "count", len(planes), "duration", time.Since(start))
	return planes, nil
}

// RenderComposite normalizes the planes per their policies and blends the
// enabled ones into the RGB raster. No caching happens at this level; the
// cache holds encoded artifacts, not rasters.
func (r *Runner) RenderComposite(ctx context.Context, planes []*plane.Plane, opts Options) (*image.NRGBA, error) {
	if len(planes) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no planes to compose")
	}
	w, h := planes[0].Bounds()

	start := time.Now()
	observability.Pipeline().OnComposeStart(ctx, len(planes), w, h)

	normalized := make([]*normalize.NormalizedPlane, 0, len(planes))
	assigns := make(map[plane.Role]palette.Assignment, len(planes))
	for _, p := range planes {
		np, err := normalize.Apply(p, opts.policy(p.Role))
		if err != nil {
			observability.Pipeline().OnComposeComplete(ctx, time.Since(start), err)
			return nil, err
		}
		normalized = append(normalized, np)
		assigns[p.Role] = opts.assignment(p.Role)
	}

	img, err := composite.Render(normalized, assigns, composite.Options{Workers: opts.Workers})
	observability.Pipeline().OnComposeComplete(ctx, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	r.Logger.Info("rendered composite",
		"planes", len(normalized),
		"width", w, "height", h,
		"duration", time.Since(start))
	return img, nil
}

// compositeArtifact returns the encoded composite PNG, consulting the cache
// first.
func (r *Runner) compositeArtifact(ctx context.Context, planes []*plane.Plane, opts Options, planesHash string, ensureRaster func() error, raster **image.NRGBA) ([]byte, bool, error) {
	key := r.Keyer.CompositeKey(planesHash, opts.CompositeKeyOpts(planes))

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			observability.Cache().OnCacheHit(ctx, TargetComposite)
			return data, true, nil
		}
		observability.Cache().OnCacheMiss(ctx, TargetComposite)
	}

	if err := ensureRaster(); err != nil {
		return nil, false, err
	}
	data, err := codec.EncodeCompositePNG(*raster)
	if err != nil {
		return nil, false, err
	}

	if err := r.Cache.Set(ctx, key, data, cache.TTLComposite); err == nil {
		observability.Cache().OnCacheSet(ctx, TargetComposite, len(data))
	}
	return data, false, nil
}

// stackArtifact returns the encoded multi-page TIFF, consulting the cache
// first.
func (r *Runner) stackArtifact(ctx context.Context, planes []*plane.Plane, opts Options, planesHash string, ensureRaster func() error, raster **image.NRGBA) ([]byte, *StackResult, bool, error) {
	s, err := stack.Build(planes)
	if err != nil {
		return nil, nil, false, err
	}
	info := &StackResult{Frames: make([]FrameInfo, 0, s.Len())}
	for _, f := range s.Frames {
		info.Frames = append(info.Frames, FrameInfo{Label: f.Label, Kind: f.Plane.Kind})
	}

	key := r.Keyer.StackKey(planesHash, opts.StackKeyOpts(planes))
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			observability.Cache().OnCacheHit(ctx, TargetStack)
			return data, info, true, nil
		}
		observability.Cache().OnCacheMiss(ctx, TargetStack)
	}

	if opts.IncludeComposite {
		if err := ensureRaster(); err != nil {
			return nil, nil, false, err
		}
		s = s.WithComposite(*raster)
	}

	data, err := codec.EncodeStack(s)
	if err != nil {
		return nil, nil, false, err
	}

	if err := r.Cache.Set(ctx, key, data, cache.TTLStack); err == nil {
		observability.Cache().OnCacheSet(ctx, TargetStack, len(data))
	}
	return data, info, false, nil
}

// BuildStack assembles the lossless stack for callers that export frames
// individually (the CLI's --export-frames path).
func (r *Runner) BuildStack(planes []*plane.Plane) (*stack.Stack, error) {
	return stack.Build(planes)
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

// HashPlanes derives the content hash of a validated plane set: roles,
// geometry, sample kinds, and every sample value enter the digest, so two
// jobs share cache entries only when their inputs are byte-identical.
func HashPlanes(planes []*plane.Plane) string {
	// Role order, so permuted inputs share cache entries.
	ordered := make([]*plane.Plane, len(planes))
	copy(ordered, planes)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Role < ordered[j].Role })

	var buf bytes.Buffer
	for _, p := range ordered {
		binary.Write(&buf, binary.LittleEndian, int64(p.Role))
		binary.Write(&buf, binary.LittleEndian, int64(p.Kind))
		binary.Write(&buf, binary.LittleEndian, int64(p.Width))
		binary.Write(&buf, binary.LittleEndian, int64(p.Height))
		binary.Write(&buf, binary.LittleEndian, p.Samples)
	}
	return cache.Hash(buf.Bytes())
}
