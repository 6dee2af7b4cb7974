package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/banshee-data/surface.report/internal/httputil"
	"github.com/banshee-data/surface.report/internal/monitoring"
	"github.com/banshee-data/surface.report/internal/particles"
	"github.com/banshee-data/surface.report/internal/render"
	"github.com/banshee-data/surface.report/internal/surface"
	"github.com/banshee-data/surface.report/internal/testutil"
	"github.com/banshee-data/surface.report/internal/version"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// fixtureBody is one building with a roof, a wall and a floor triangle plus a
// second building with a single roof.
func fixtureBody(t *testing.T) []byte {
	return testutil.MarshalBuildings(t,
		testutil.NewBuilding("101036327",
			testutil.OffsetParticle(0, 0, 3, 0.9, 4),
			testutil.OffsetParticle(0, 0, 0, 0, 12),
			testutil.OffsetParticle(0, 0, 0, -1, 2),
		),
		testutil.NewBuilding("101036328",
			testutil.OffsetParticle(5, 0, 3, 1, 7),
		),
	)
}

func setupTestServer(t *testing.T, mock *httputil.MockHTTPClient) *Server {
	t.Helper()
	client := particles.NewClient("http://particles.test/api", mock)
	return NewServer(client, surface.NewPipeline(0, false), render.Options{})
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	w := testutil.NewTestRecorder()
	h.ServeHTTP(w, testutil.NewTestRequest(http.MethodGet, path))
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	return resp["error"]
}

func TestHandleSurfaces_Codes(t *testing.T) {
	mock := httputil.NewMockHTTPClient().AddResponse(http.StatusOK, string(fixtureBody(t)))
	server := setupTestServer(t, mock)
	mux := server.ServeMux()

	w := postJSON(t, mux, "/surfaces", `{"codes":["101036327","101036328"]}`)
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	var resp runResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Outcome != surface.OutcomeData {
		t.Errorf("Expected outcome data, got %s", resp.Outcome)
	}
	if !strings.HasPrefix(resp.RunID, "run_") {
		t.Errorf("Expected run_ prefix, got %q", resp.RunID)
	}
	if resp.Summary.Triangles != 4 || resp.Summary.Buildings != 2 {
		t.Errorf("Unexpected summary: %+v", resp.Summary)
	}
	if got := resp.Summary.Classes[surface.Roof].Triangles; got != 2 {
		t.Errorf("Expected 2 roof triangles, got %d", got)
	}
	want := boundsJSON{Min: [3]float64{0, 0, 0}, Max: [3]float64{6, 1, 3}}
	if resp.Bounds == nil || *resp.Bounds != want {
		t.Errorf("bounds = %+v, want %+v", resp.Bounds, want)
	}

	var sent []string
	if err := json.Unmarshal(mock.GetBody(0), &sent); err != nil {
		t.Fatalf("Failed to decode upstream body: %v", err)
	}
	if len(sent) != 2 || sent[0] != "101036327" {
		t.Errorf("Unexpected upstream codes: %v", sent)
	}

	if server.Result() == nil {
		t.Fatal("Expected result to be stored")
	}
}

func TestHandleSurfaces_Input(t *testing.T) {
	mock := httputil.NewMockHTTPClient().AddResponse(http.StatusOK, string(fixtureBody(t)))
	server := setupTestServer(t, mock)

	w := postJSON(t, server.ServeMux(), "/surfaces", `{"input":" 101036327 , 101036328 ,"}`)
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	var sent []string
	_ = json.Unmarshal(mock.GetBody(0), &sent)
	if len(sent) != 2 || sent[1] != "101036328" {
		t.Errorf("Unexpected upstream codes: %v", sent)
	}
}

func TestHandleSurfaces_Errors(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		body     string
		upstream func(*httputil.MockHTTPClient)
		status   int
	}{
		{"wrong method", http.MethodGet, "", nil, http.StatusMethodNotAllowed},
		{"invalid json", http.MethodPost, "{", nil, http.StatusBadRequest},
		{"no codes", http.MethodPost, `{"input":" , "}`, nil, http.StatusBadRequest},
		{"upstream 500", http.MethodPost, `{"codes":["1"]}`, func(m *httputil.MockHTTPClient) {
			m.AddResponse(http.StatusInternalServerError, "boom")
		}, http.StatusBadGateway},
		{"upstream unreachable", http.MethodPost, `{"codes":["1"]}`, func(m *httputil.MockHTTPClient) {
			m.AddErrorResponse(errors.New("connection refused"))
		}, http.StatusBadGateway},
		{"upstream timed out", http.MethodPost, `{"codes":["1"]}`, func(m *httputil.MockHTTPClient) {
			m.AddErrorResponse(context.DeadlineExceeded)
		}, http.StatusServiceUnavailable},
		{"request cancelled during fetch", http.MethodPost, `{"codes":["1"]}`, func(m *httputil.MockHTTPClient) {
			m.AddErrorResponse(context.Canceled)
		}, http.StatusServiceUnavailable},
		{"missing area", http.MethodPost, `{"codes":["1"]}`, func(m *httputil.MockHTTPClient) {
			m.AddResponse(http.StatusOK, `[{"ehr":"1","particles":[{"x0":0,"y0":0,"z0":0,"x1":1,"y1":0,"z1":0,"x2":0,"y2":1,"z2":0,"nz":1}]}]`)
		}, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := httputil.NewMockHTTPClient()
			if tt.upstream != nil {
				tt.upstream(mock)
			}
			server := setupTestServer(t, mock)

			req := httptest.NewRequest(tt.method, "/surfaces", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			server.ServeMux().ServeHTTP(w, req)

			testutil.AssertStatusCode(t, w.Code, tt.status)
			if decodeError(t, w) == "" {
				t.Error("Expected an error message")
			}
			if server.Result() != nil {
				t.Error("A failed run must not store a result")
			}
		})
	}
}

func TestHandleSurfaces_NoFetcher(t *testing.T) {
	server := NewServer(nil, nil, render.Options{})
	w := postJSON(t, server.ServeMux(), "/surfaces", `{"codes":["1"]}`)
	testutil.AssertStatusCode(t, w.Code, http.StatusServiceUnavailable)
}

func TestHandleSurfacesRaw(t *testing.T) {
	server := setupTestServer(t, nil)
	mux := server.ServeMux()

	w := postJSON(t, mux, "/surfaces/raw", string(fixtureBody(t)))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	// Empty input is an empty outcome, not an error.
	w = postJSON(t, mux, "/surfaces/raw", `[]`)
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	var resp runResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Outcome != surface.OutcomeEmpty {
		t.Errorf("Expected empty outcome, got %s", resp.Outcome)
	}
	if resp.Message != surface.ErrNothingToRender.Error() {
		t.Errorf("Unexpected message %q", resp.Message)
	}
	if resp.Bounds != nil {
		t.Errorf("Expected no bounds for an empty run, got %+v", resp.Bounds)
	}

	w = postJSON(t, mux, "/surfaces/raw", `{"not":"an array"}`)
	testutil.AssertStatusCode(t, w.Code, http.StatusUnprocessableEntity)

	w = get(mux, "/surfaces/raw")
	testutil.AssertStatusCode(t, w.Code, http.StatusMethodNotAllowed)
}

func TestHandlers_NoData(t *testing.T) {
	mux := setupTestServer(t, nil).ServeMux()

	for _, path := range []string{"/catalog", "/meshes", "/scene", "/plan.png"} {
		w := get(mux, path)
		testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)
		if msg := decodeError(t, w); msg != "no data" {
			t.Errorf("%s: expected 'no data', got %q", path, msg)
		}
	}

	w := postJSON(t, mux, "/catalog/sort?field=area", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)
}

func TestHandleCatalog(t *testing.T) {
	server := setupTestServer(t, nil)
	mux := server.ServeMux()
	postJSON(t, mux, "/surfaces/raw", string(fixtureBody(t)))

	w := get(mux, "/catalog")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	var rows []map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&rows); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("Expected 4 rows, got %d", len(rows))
	}
	want := map[string]interface{}{"building_id": "101036327", "surface_type": "Wall", "area": 12.0, "index": 1.0}
	for k, v := range want {
		if rows[1][k] != v {
			t.Errorf("row 1 %s = %v, want %v", k, rows[1][k], v)
		}
	}
}

func TestHandleCatalogSort_Toggles(t *testing.T) {
	server := setupTestServer(t, nil)
	mux := server.ServeMux()
	postJSON(t, mux, "/surfaces/raw", string(fixtureBody(t)))

	sortBy := func(field string) sortResponse {
		t.Helper()
		w := postJSON(t, mux, "/catalog/sort?field="+field, "")
		testutil.AssertStatusCode(t, w.Code, http.StatusOK)
		var resp sortResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		return resp
	}

	areas := func(c surface.Catalog) []float64 {
		out := make([]float64, len(c))
		for i, r := range c {
			out[i] = r.Area
		}
		return out
	}

	first := sortBy("area")
	if first.Descending || first.Field != "area" {
		t.Errorf("first sort: descending=%v field=%s", first.Descending, first.Field)
	}
	if got := areas(first.Records); !equalFloats(got, []float64{2, 4, 7, 12}) {
		t.Errorf("ascending areas = %v", got)
	}

	second := sortBy("area")
	if !second.Descending {
		t.Error("second sort should be descending")
	}
	if got := areas(second.Records); !equalFloats(got, []float64{12, 7, 4, 2}) {
		t.Errorf("descending areas = %v", got)
	}

	// Other columns keep their own toggle.
	byType := sortBy("surface_type")
	if byType.Descending {
		t.Error("first surface_type sort should be ascending")
	}

	// The stored catalog reflects the last sort.
	var rows surface.Catalog
	if err := json.NewDecoder(get(mux, "/catalog").Body).Decode(&rows); err != nil {
		t.Fatalf("Failed to decode catalog: %v", err)
	}
	if rows[0].Class != surface.Floor || rows[3].Class != surface.Wall {
		t.Errorf("catalog not sorted by type: %+v", rows)
	}

	// A new run resets every toggle.
	postJSON(t, mux, "/surfaces/raw", string(fixtureBody(t)))
	if again := sortBy("area"); again.Descending {
		t.Error("sort state should reset after a new run")
	}

	w := postJSON(t, mux, "/catalog/sort?field=height", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)
	w = get(mux, "/catalog/sort?field=area")
	testutil.AssertStatusCode(t, w.Code, http.StatusMethodNotAllowed)
}

func equalFloats(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestHandleMeshes(t *testing.T) {
	server := setupTestServer(t, nil)
	mux := server.ServeMux()
	postJSON(t, mux, "/surfaces/raw", string(fixtureBody(t)))

	w := get(mux, "/meshes")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	var meshes map[string]meshJSON
	if err := json.NewDecoder(w.Body).Decode(&meshes); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	roof, ok := meshes["Roof"]
	if !ok {
		t.Fatal("Expected a Roof buffer")
	}
	if len(roof.Vertices) != 6 || len(roof.Triangles) != 2 {
		t.Errorf("Roof buffer has %d vertices, %d triangles", len(roof.Vertices), len(roof.Triangles))
	}
	if roof.Triangles[1] != [3]int{3, 4, 5} {
		t.Errorf("second roof triple = %v", roof.Triangles[1])
	}
	if roof.Vertices[3] != [3]float64{5, 0, 3} {
		t.Errorf("second roof first vertex = %v", roof.Vertices[3])
	}
	if len(meshes) != 3 {
		t.Errorf("Expected 3 classes, got %d", len(meshes))
	}
}

func TestHandleRenderings(t *testing.T) {
	server := setupTestServer(t, nil)
	mux := server.ServeMux()
	postJSON(t, mux, "/surfaces/raw", string(fixtureBody(t)))

	w := get(mux, "/scene")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("scene content-type = %s", ct)
	}
	if !strings.Contains(w.Body.String(), "scatter3D") {
		t.Error("scene page missing scatter3D series")
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `inline; filename="surfaces_101036327-101036328_scene.html"` {
		t.Errorf("scene content-disposition = %s", cd)
	}

	w = get(mux, "/plan.png?download=1")
	if cd := w.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") {
		t.Errorf("download content-disposition = %s", cd)
	}

	w = get(mux, "/plan.png")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("plan content-type = %s", ct)
	}
	if _, err := png.Decode(bytes.NewReader(w.Body.Bytes())); err != nil {
		t.Errorf("plan is not a valid PNG: %v", err)
	}

	// An empty run has nothing to render.
	postJSON(t, mux, "/surfaces/raw", `[{"ehr":"1","particles":[]}]`)
	w = get(mux, "/scene")
	testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)
	if msg := decodeError(t, w); msg != surface.ErrNothingToRender.Error() {
		t.Errorf("Unexpected message %q", msg)
	}
}

// Sorting the catalog while renderings are served must neither race nor
// change the export filename, which follows run order.
func TestHandleRenderings_ConcurrentSort(t *testing.T) {
	server := setupTestServer(t, nil)
	mux := server.ServeMux()
	postJSON(t, mux, "/surfaces/raw", string(fixtureBody(t)))

	const workers = 16
	sceneCodes := make([]int, workers)
	sortCodes := make([]int, workers)
	dispositions := make([]string, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			w := postJSON(t, mux, "/catalog/sort?field=building_id", "")
			sortCodes[i] = w.Code
		}(i)
		go func(i int) {
			defer wg.Done()
			w := get(mux, "/scene")
			sceneCodes[i] = w.Code
			dispositions[i] = w.Header().Get("Content-Disposition")
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		testutil.AssertStatusCode(t, sortCodes[i], http.StatusOK)
		testutil.AssertStatusCode(t, sceneCodes[i], http.StatusOK)
		if dispositions[i] != `inline; filename="surfaces_101036327-101036328_scene.html"` {
			t.Errorf("scene %d content-disposition = %s", i, dispositions[i])
		}
	}
}

func TestHandleVersion(t *testing.T) {
	w := get(setupTestServer(t, nil).ServeMux(), "/version")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	var info version.Info
	if err := json.NewDecoder(w.Body).Decode(&info); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if info != version.Get() {
		t.Errorf("version = %+v, want %+v", info, version.Get())
	}
}

type cancelledFetcher struct{}

func (cancelledFetcher) Fetch(ctx context.Context, codes []string) ([]surface.Building, error) {
	return []surface.Building{{ID: "1"}}, nil
}

func TestHandleSurfaces_CancelledRun(t *testing.T) {
	server := NewServer(cancelledFetcher{}, nil, render.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := httptest.NewRequest(http.MethodPost, "/surfaces", strings.NewReader(`{"codes":["1"]}`)).WithContext(ctx)
	w := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(w, req)
	testutil.AssertStatusCode(t, w.Code, http.StatusServiceUnavailable)
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(io.Discard)

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/catalog?x=1", nil))

	testutil.AssertStatusCode(t, w.Code, http.StatusTeapot)
	out := buf.String()
	if !strings.Contains(out, "418") || !strings.Contains(out, "/catalog?x=1") {
		t.Errorf("unexpected log line %q", out)
	}
}

func TestStatusCodeColor(t *testing.T) {
	tests := []struct {
		code   int
		prefix string
	}{
		{200, colorBoldGreen},
		{304, colorYellow},
		{404, colorBoldRed},
		{502, colorBoldRed},
		{101, ""},
	}
	for _, tt := range tests {
		got := statusCodeColor(tt.code)
		if tt.prefix == "" {
			if got != "101" {
				t.Errorf("statusCodeColor(%d) = %q", tt.code, got)
			}
			continue
		}
		if !strings.HasPrefix(got, tt.prefix) || !strings.HasSuffix(got, colorReset) {
			t.Errorf("statusCodeColor(%d) = %q", tt.code, got)
		}
	}
}
