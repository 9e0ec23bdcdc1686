// Package pkg provides the core libraries for Fluostack channel composition.
//
// # Overview
//
// Fluostack merges up to eight single-channel microscopy planes (a base
// plane plus numbered channels) into an RGB composite preview and a
// lossless multi-frame stack. The pkg directory is organized into three
// main areas:
//
//  1. Core domain logic (planes, normalization, palette, compositing,
//     stacking)
//  2. External boundaries (codec: decoding inputs, encoding artifacts)
//  3. Orchestration and infrastructure (pipeline, cache, config,
//     observability)
//
// # Architecture
//
// The typical data flow through Fluostack:
//
//	Input images (TIFF/PNG)
//	         ↓
//	    [codec] package (decode into planes)
//	         ↓
//	    [plane] package (geometry and sample-type validation)
//	         ↓
//	    [normalize] + [palette] packages (display range, color weights)
//	         ↓
//	    [composite] + [stack] packages (RGB blend, lossless ordering)
//	         ↓
//	    [codec] package (composite PNG, multi-page stack TIFF)
//
// # Quick Start
//
// Run a complete composition job:
//
//	import (
//	    "context"
//	    "github.com/fluostack/fluostack/pkg/codec"
//	    "github.com/fluostack/fluostack/pkg/pipeline"
//	    "github.com/fluostack/fluostack/pkg/plane"
//	)
//
//	runner := pipeline.NewRunner(nil, nil, nil)
//	result, err := runner.Execute(context.Background(), pipeline.Options{
//	    Sources: []codec.Source{
//	        {Role: plane.RoleBase, Path: "dapi.tif"},
//	        {Role: plane.Role(1), Path: "gfp.tif"},
//	    },
//	})
//
// # Main Packages
//
// [plane] - The single-channel image plane (role, geometry, sample kind,
// float64 sample buffer) and the validation gate that rejects mismatched
// dimensions and unsupported sample types.
//
// [normalize] - Display-range policies (min_max, percentile, fixed) mapping
// raw intensities into [0,1].
//
// [palette] - Default role → color table, hex parsing, and per-role
// overrides.
//
// [composite] - Additive-saturating RGB blend of enabled planes, data
// parallel across row bands.
//
// [stack] - Ordered lossless frame sequence, optionally carrying the
// composite as a trailing preview frame.
//
// [codec] - Loader and exporter boundaries: image decoding, composite PNG
// encoding, and the multi-page TIFF stack writer.
//
// [pipeline] - Complete load → compose → export pipeline used by CLI and
// API. Ensures consistent behavior across all entry points.
//
// [cache] - Artifact caching keyed by plane content hashes, with file,
// Redis, and null backends.
//
// [config] - TOML job files.
//
// [errors] - Structured error codes shared by CLI and HTTP API.
//
// [observability] - Optional instrumentation hooks for pipeline stages and
// cache operations.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...          # All tests
//	go test ./pkg/composite/   # Specific package
//
// [plane]: https://pkg.go.dev/github.com/fluostack/fluostack/pkg/plane
// [normalize]: https://pkg.go.dev/github.com/fluostack/fluostack/pkg/normalize
// [palette]: https://pkg.go.dev/github.com/fluostack/fluostack/pkg/palette
// [composite]: https://pkg.go.dev/github.com/fluostack/fluostack/pkg/composite
// [stack]: https://pkg.go.dev/github.com/fluostack/fluostack/pkg/stack
// [codec]: https://pkg.go.dev/github.com/fluostack/fluostack/pkg/codec
// [pipeline]: https://pkg.go.dev/github.com/fluostack/fluostack/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/fluostack/fluostack/pkg/cache
// [config]: https://pkg.go.dev/github.com/fluostack/fluostack/pkg/config
// [errors]: https://pkg.go.dev/github.com/fluostack/fluostack/pkg/errors
// [observability]: https://pkg.go.dev/github.com/fluostack/fluostack/pkg/observability
package pkg
