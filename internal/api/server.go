package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/banshee-data/surface.report/internal/httputil"
	"github.com/banshee-data/surface.report/internal/particles"
	"github.com/banshee-data/surface.report/internal/render"
	"github.com/banshee-data/surface.report/internal/security"
	"github.com/banshee-data/surface.report/internal/surface"
	"github.com/banshee-data/surface.report/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxIngestSize caps request bodies on the ingest endpoints.
const maxIngestSize = 64 * 1024 * 1024

// Fetcher retrieves buildings for a list of codes. *particles.Client
// satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, codes []string) ([]surface.Building, error)
}

// Server holds the most recent pipeline result and the catalog's sort
// toggles. A new run replaces both. The stored catalog is sorted in place,
// so it is only read under mu.
type Server struct {
	fetcher  Fetcher
	pipeline *surface.Pipeline
	render   render.Options

	mu     sync.Mutex
	result *surface.Result
	ids    []string
	sort   surface.SortState
}

func NewServer(f Fetcher, p *surface.Pipeline, opts render.Options) *Server {
	if p == nil {
		p = &surface.Pipeline{}
	}
	return &Server{
		fetcher:  f,
		pipeline: p,
		render:   opts,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/surfaces", s.handleSurfaces)
	mux.HandleFunc("/surfaces/raw", s.handleSurfacesRaw)
	mux.HandleFunc("/catalog", s.handleCatalog)
	mux.HandleFunc("/catalog/sort", s.handleCatalogSort)
	mux.HandleFunc("/meshes", s.handleMeshes)
	mux.HandleFunc("/scene", s.handleScene)
	mux.HandleFunc("/plan.png", s.handlePlan)
	mux.HandleFunc("/version", s.handleVersion)
	return mux
}

// Result returns the stored result, or nil before the first run.
func (s *Server) Result() *surface.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Store replaces the current result and resets every sort toggle.
func (s *Server) Store(res *surface.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = res
	s.ids = nil
	if res != nil {
		s.ids = buildingIDs(res.Catalog)
	}
	s.sort.Reset()
}

// snapshot returns the stored meshes and the building IDs in run order.
// Meshes are never modified after Store.
func (s *Server) snapshot() (surface.Meshes, []string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return nil, nil, false
	}
	return s.result.Meshes, s.ids, true
}

// surfacesRequest accepts either an explicit code list or the raw text a
// user typed into the input box.
type surfacesRequest struct {
	Codes []string `json:"codes"`
	Input string   `json:"input"`
}

type boundsJSON struct {
	Min [3]float64 `json:"min"`
	Max [3]float64 `json:"max"`
}

type runResponse struct {
	RunID   string          `json:"run_id"`
	Outcome surface.Outcome `json:"outcome"`
	Message string          `json:"message,omitempty"`
	Summary surface.Summary `json:"summary"`
	Bounds  *boundsJSON     `json:"bounds,omitempty"`
}

func newRunResponse(res *surface.Result) runResponse {
	resp := runResponse{
		RunID:   res.RunID,
		Outcome: res.Outcome(),
		Summary: res.Summary,
	}
	if resp.Outcome == surface.OutcomeEmpty {
		resp.Message = surface.ErrNothingToRender.Error()
		return resp
	}
	b := res.Summary.Bounds
	resp.Bounds = &boundsJSON{
		Min: [3]float64{b.Min.X, b.Min.Y, b.Min.Z},
		Max: [3]float64{b.Max.X, b.Max.Y, b.Max.Z},
	}
	return resp
}

func (s *Server) handleSurfaces(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.fetcher == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "particle service not configured")
		return
	}

	var req surfacesRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxIngestSize)).Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	codes := req.Codes
	if len(codes) == 0 {
		var err error
		if codes, err = particles.ParseCodes(req.Input); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
	}

	buildings, err := s.fetcher.Fetch(r.Context(), codes)
	if err != nil {
		if surface.IsDataError(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.writeRunError(w, err)
			return
		}
		log.Printf("[Surfaces] fetch %v failed: %v", codes, err)
		httputil.BadGateway(w, err.Error())
		return
	}

	res, err := s.pipeline.Run(r.Context(), buildings)
	if err != nil {
		s.writeRunError(w, err)
		return
	}
	s.Store(res)
	httputil.WriteJSONOK(w, newRunResponse(res))
}

func (s *Server) handleSurfacesRaw(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestSize))
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("failed to read request body: %v", err))
		return
	}

	res, err := s.pipeline.Process(r.Context(), body)
	if err != nil {
		s.writeRunError(w, err)
		return
	}
	s.Store(res)
	httputil.WriteJSONOK(w, newRunResponse(res))
}

func (s *Server) writeRunError(w http.ResponseWriter, err error) {
	switch {
	case surface.IsDataError(err):
		httputil.UnprocessableEntity(w, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, err.Error())
	default:
		httputil.InternalServerError(w, err.Error())
	}
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	s.mu.Lock()
	var rows surface.Catalog
	if s.result != nil {
		rows = s.result.Catalog.Clone()
	}
	s.mu.Unlock()

	if rows == nil {
		httputil.NotFound(w, "no data")
		return
	}
	httputil.WriteJSONOK(w, rows)
}

type sortResponse struct {
	Field      string          `json:"field"`
	Descending bool            `json:"descending"`
	Records    surface.Catalog `json:"records"`
}

// handleCatalogSort sorts the stored catalog by one column, alternating
// ascending and descending on repeated requests for the same column.
func (s *Server) handleCatalogSort(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	field, err := surface.ParseField(r.URL.Query().Get("field"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	s.mu.Lock()
	if s.result == nil {
		s.mu.Unlock()
		httputil.NotFound(w, "no data")
		return
	}
	descending := s.sort.Sort(s.result.Catalog, field)
	resp := sortResponse{
		Field:      field.Key(),
		Descending: descending,
		Records:    s.result.Catalog.Clone(),
	}
	s.mu.Unlock()

	httputil.WriteJSONOK(w, resp)
}

type meshJSON struct {
	Vertices  [][3]float64 `json:"vertices"`
	Triangles [][3]int     `json:"triangles"`
}

func (s *Server) handleMeshes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	res := s.Result()
	if res == nil {
		httputil.NotFound(w, "no data")
		return
	}

	out := make(map[surface.SurfaceClass]meshJSON, len(res.Meshes))
	for _, c := range res.Meshes.Present() {
		buf := res.Meshes[c]
		m := meshJSON{
			Vertices:  make([][3]float64, len(buf.Vertices)),
			Triangles: buf.Triangles,
		}
		for i, v := range buf.Vertices {
			m.Vertices[i] = [3]float64{v.X, v.Y, v.Z}
		}
		out[c] = m
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) handleScene(w http.ResponseWriter, r *http.Request) {
	s.serveRendering(w, r, "scene", "html", "text/html; charset=utf-8", render.SceneHTML)
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	s.serveRendering(w, r, "plan", "png", "image/png", render.PlanPNG)
}

// serveRendering renders the stored meshes with fn. ?download=1 asks the
// browser to save the file under a name built from the building IDs, which
// keep their run order however the catalog has been sorted since.
func (s *Server) serveRendering(w http.ResponseWriter, r *http.Request, kind, ext, contentType string,
	fn func(io.Writer, surface.Meshes, render.Options) error) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	meshes, ids, ok := s.snapshot()
	if !ok {
		httputil.NotFound(w, "no data")
		return
	}

	var buf bytes.Buffer
	if err := fn(&buf, meshes, s.render); err != nil {
		if errors.Is(err, surface.ErrNothingToRender) {
			httputil.NotFound(w, err.Error())
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("failed to render: %v", err))
		return
	}

	disposition := "inline"
	if d, _ := strconv.ParseBool(r.URL.Query().Get("download")); d {
		disposition = "attachment"
	}
	name := security.ExportFilename(ids, kind, ext)
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, name))
	httputil.WriteBody(w, contentType, buf.Bytes())
}

// buildingIDs lists the catalog's building IDs in first-seen order.
func buildingIDs(c surface.Catalog) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, rec := range c {
		if !seen[rec.BuildingID] {
			seen[rec.BuildingID] = true
			ids = append(ids, rec.BuildingID)
		}
	}
	return ids
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, version.Get())
}
