// Package api implements the Fluostack HTTP service.
//
// The service mirrors the interactive composition flow: clients upload up to
// eight single-channel planes as multipart form files, set per-channel
// normalization policies and colors as form fields, and download the
// rendered composite PNG or the lossless stack TIFF.
//
// # Endpoints
//
//	GET  /healthz       - liveness probe
//	GET  /version       - build information
//	GET  /v1/palette    - default role → color table (JSON)
//	POST /v1/composite  - render and return the composite PNG
//	POST /v1/stack      - assemble and return the stack TIFF
//
// # Upload Format
//
// File parts are named by role: "base", "channel_1" .. "channel_7". Per-role
// form fields:
//
//	policy_<role>  - "min_max", "percentile", "percentile(lo,hi)", "fixed(min,max)"
//	color_<role>   - "#RRGGBB"
//	enabled_<role> - "true" / "false"
//
// POST /v1/stack additionally accepts include_composite=true.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fluostack/fluostack/pkg/buildinfo"
	"github.com/fluostack/fluostack/pkg/codec"
	"github.com/fluostack/fluostack/pkg/errors"
	"github.com/fluostack/fluostack/pkg/normalize"
	"github.com/fluostack/fluostack/pkg/observability"
	"github.com/fluostack/fluostack/pkg/palette"
	"github.com/fluostack/fluostack/pkg/pipeline"
	"github.com/fluostack/fluostack/pkg/plane"
)

// maxUploadBytes bounds one multipart request: eight uncompressed 16-bit
// planes at typical microscope resolutions fit comfortably.
const maxUploadBytes = 512 << 20

// Server serves composition jobs over HTTP.
type Server struct {
	runner *pipeline.Runner
	logger *log.Logger
}

// NewServer creates a server around the given runner.
func NewServer(runner *pipeline.Runner, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{runner: runner, logger: logger}
}

// Router builds the chi route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestID)

	r.Get("/healthz", s.handleHealth)
	r.Get("/version", s.handleVersion)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/palette", s.handlePalette)
		r.Post("/composite", s.handleComposite)
		r.Post("/stack", s.handleStack)
	})

	return r
}

// ListenAndServe runs the server until the context is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// =============================================================================
// Middleware
// =============================================================================

// requestID assigns a job identifier to every request and records timing
// through the API hooks.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		observability.API().OnRequest(r.Context(), r.Method, r.URL.Path)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		observability.API().OnResponse(r.Context(), r.Method, r.URL.Path, rec.status, time.Since(start))
		s.logger.Info("request",
			"id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": buildinfo.Version,
		"commit":  buildinfo.Commit,
		"built":   buildinfo.Date,
	})
}

// handlePalette returns the default role → color table.
func (s *Server) handlePalette(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		Role    string `json:"role"`
		Color   string `json:"color"`
		Enabled bool   `json:"enabled"`
	}
	entries := make([]entry, 0, plane.NumRoles)
	for role := plane.RoleBase; role.Valid(); role++ {
		a := palette.Default(role)
		entries = append(entries, entry{
			Role:    role.String(),
			Color:   a.Weights.Hex(),
			Enabled: a.Enabled,
		})
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleComposite renders the uploaded planes into a composite PNG.
func (s *Server) handleComposite(w http.ResponseWriter, r *http.Request) {
	planes, opts, err := s.parseJob(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	opts.Targets = []string{pipeline.TargetComposite}

	result, err := s.runner.ExecutePlanes(r.Context(), planes, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Cache", cacheStatus(result.CacheInfo.CompositeHit))
	w.WriteHeader(http.StatusOK)
	w.Write(result.Artifacts[pipeline.TargetComposite])
}

// handleStack assembles the uploaded planes into a multi-page TIFF.
func (s *Server) handleStack(w http.ResponseWriter, r *http.Request) {
	planes, opts, err := s.parseJob(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	opts.Targets = []string{pipeline.TargetStack}
	opts.IncludeComposite = r.FormValue("include_composite") == "true"

	result, err := s.runner.ExecutePlanes(r.Context(), planes, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/tiff")
	w.Header().Set("Content-Disposition", `attachment; filename="stack.tif"`)
	w.Header().Set("X-Cache", cacheStatus(result.CacheInfo.StackHit))
	w.WriteHeader(http.StatusOK)
	w.Write(result.Artifacts[pipeline.TargetStack])
}

// =============================================================================
// Request Parsing
// =============================================================================

// parseJob decodes the uploaded planes and per-role settings.
func (s *Server) parseJob(r *http.Request) ([]*plane.Plane, pipeline.Options, error) {
	var opts pipeline.Options

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, opts, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse multipart form")
	}

	opts.Policies = make(map[plane.Role]normalize.Policy)
	opts.Overrides = make(map[plane.Role]*palette.Override)
	opts.Refresh = r.FormValue("refresh") == "true"

	var planes []*plane.Plane
	for role := plane.RoleBase; role.Valid(); role++ {
		name := role.String()
		file, _, err := r.FormFile(name)
		if err != nil {
			continue // role not uploaded
		}
		p, err := codec.DecodePlane(file, role, name)
		file.Close()
		if err != nil {
			return nil, opts, err
		}
		planes = append(planes, p)

		if v := r.FormValue("policy_" + name); v != "" {
			pol, err := normalize.ParsePolicy(v)
			if err != nil {
				return nil, opts, err
			}
			opts.Policies[role] = pol
		}

		var ov palette.Override
		if v := r.FormValue("color_" + name); v != "" {
			weights, err := palette.ParseHex(v)
			if err != nil {
				return nil, opts, err
			}
			ov.Weights = &weights
		}
		if v := r.FormValue("enabled_" + name); v != "" {
			enabled := v == "true"
			ov.Enabled = &enabled
		}
		if ov.Weights != nil || ov.Enabled != nil {
			opts.Overrides[role] = &ov
		}
	}

	if len(planes) == 0 {
		return nil, opts, errors.New(errors.ErrCodeInvalidInput, "no plane uploads in request")
	}

	// ExecutePlanes skips the load stage; Sources only feeds validation.
	opts.Sources = make([]codec.Source, 0, len(planes))
	for _, p := range planes {
		opts.Sources = append(opts.Sources, codec.Source{Role: p.Role, Path: p.Source})
	}
	opts.Logger = s.logger

	return planes, opts, nil
}

// =============================================================================
// Responses
// =============================================================================

// writeError maps a pipeline error to an HTTP status and a JSON body.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusForCode(errors.GetCode(err))
	s.logger.Error("request failed", "code", errors.GetCode(err), "error", err)
	writeJSON(w, status, map[string]string{
		"code":  string(errors.GetCode(err)),
		"error": errors.UserMessage(err),
	})
}

// statusForCode maps pipeline error codes onto HTTP statuses: client-side
// input problems are 400s, everything else is a 500.
func statusForCode(code errors.Code) int {
	switch code {
	case errors.ErrCodeDecode,
		errors.ErrCodeDimensionMismatch,
		errors.ErrCodeUnsupportedSample,
		errors.ErrCodeInvalidPolicy,
		errors.ErrCodeEmptyStack,
		errors.ErrCodeInvalidInput,
		errors.ErrCodeInvalidFormat,
		errors.ErrCodeInvalidRole:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func cacheStatus(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}
