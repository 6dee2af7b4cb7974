package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/surface.report/internal/api"
	"github.com/banshee-data/surface.report/internal/config"
	"github.com/banshee-data/surface.report/internal/httputil"
	"github.com/banshee-data/surface.report/internal/particles"
	"github.com/banshee-data/surface.report/internal/render"
	"github.com/banshee-data/surface.report/internal/surface"
	"github.com/banshee-data/surface.report/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to surface config JSON (defaults built in)")
	listen      = flag.String("listen", "", "Listen address (overrides config)")
	ehr         = flag.String("ehr", "", "Comma separated building codes to process once and exit")
	inputFile   = flag.String("input", "", "Read buildings from a local JSON file instead of the particle service")
	sortField   = flag.String("sort", "", "Catalog column to sort by: building_id, surface_type or area")
	descending  = flag.Bool("desc", false, "Sort descending")
	outDir      = flag.String("out", "", "Directory to write scene.html and plan.png into")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// oneShot holds the flags that drive a single run.
type oneShot struct {
	codes      []string
	inputFile  string
	sortField  string
	descending bool
	outDir     string
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get())
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := particles.NewClient(cfg.GetAPIURL(), httputil.NewStandardClient(cfg.GetRequestTimeout()))
	pipeline := surface.NewPipeline(cfg.GetEpsilon(), cfg.GetParallel())
	opts := renderOptions(cfg)

	if *ehr != "" || *inputFile != "" {
		job := oneShot{inputFile: *inputFile, sortField: *sortField, descending: *descending, outDir: *outDir}
		if *ehr != "" {
			if job.codes, err = particles.ParseCodes(*ehr); err != nil {
				log.Fatalf("invalid -ehr: %v", err)
			}
		}
		if err := runOnce(ctx, os.Stdout, client, pipeline, opts, job); err != nil {
			log.Fatalf("run failed: %v", err)
		}
		return
	}

	addr := cfg.GetListen()
	if *listen != "" {
		addr = *listen
	}
	serve(ctx, addr, api.NewServer(client, pipeline, opts))
}

func loadConfig(path string) (*config.SurfaceConfig, error) {
	if path == "" {
		return config.DefaultSurfaceConfig(), nil
	}
	return config.LoadSurfaceConfig(path)
}

func renderOptions(cfg *config.SurfaceConfig) render.Options {
	return render.Options{
		Opacity: cfg.GetOpacity(),
		Width:   render.CmToLength(cfg.GetPlotWidthCm()),
		Height:  render.CmToLength(cfg.GetPlotHeightCm()),
	}
}

// runOnce fetches or reads the buildings, runs the pipeline and prints the
// catalog. An empty result is reported, not treated as a failure.
func runOnce(ctx context.Context, w io.Writer, f api.Fetcher, p *surface.Pipeline, opts render.Options, job oneShot) error {
	var (
		buildings []surface.Building
		err       error
	)
	if job.inputFile != "" {
		buildings, err = readBuildings(job.inputFile)
	} else {
		buildings, err = f.Fetch(ctx, job.codes)
	}
	if err != nil {
		return err
	}

	res, err := p.Run(ctx, buildings)
	if err != nil {
		return err
	}

	if job.sortField != "" {
		field, err := surface.ParseField(job.sortField)
		if err != nil {
			return err
		}
		surface.SortBy(res.Catalog, field, job.descending)
	}

	if err := writeCatalog(w, res.Catalog); err != nil {
		return err
	}
	writeSummary(w, res)

	if res.Outcome() == surface.OutcomeEmpty {
		fmt.Fprintln(w, surface.ErrNothingToRender.Error())
		return nil
	}
	if job.outDir != "" {
		return writeRenderings(job.outDir, res.Meshes, opts)
	}
	return nil
}

func readBuildings(path string) ([]surface.Building, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()
	return surface.DecodeReader(f)
}

func writeCatalog(w io.Writer, catalog surface.Catalog) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", surface.FieldBuildingID, surface.FieldSurfaceClass, surface.FieldArea, "Index")
	for _, r := range catalog {
		fmt.Fprintf(tw, "%s\t%s\t%.3f\t%d\n", r.BuildingID, r.Class, r.Area, r.Index)
	}
	return tw.Flush()
}

func writeSummary(w io.Writer, res *surface.Result) {
	s := res.Summary
	fmt.Fprintf(w, "\n%s: %d buildings, %d triangles, total area %.3f\n", res.RunID, s.Buildings, s.Triangles, s.TotalArea)
	for _, c := range surface.Classes {
		cs, ok := s.Classes[c]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "  %-6s %d triangles, area %.3f (mean %.3f)\n", c, cs.Triangles, cs.TotalArea, cs.MeanArea)
	}
}

func writeRenderings(dir string, meshes surface.Meshes, opts render.Options) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	outputs := []struct {
		name string
		fn   func(io.Writer, surface.Meshes, render.Options) error
	}{
		{"scene.html", render.SceneHTML},
		{"plan.png", render.PlanPNG},
	}
	for _, o := range outputs {
		path := filepath.Join(dir, o.name)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", o.name, err)
		}
		err = o.fn(f, meshes, opts)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", o.name, err)
		}
		log.Printf("wrote %s", path)
	}
	return nil
}

// serve runs the HTTP API until ctx is cancelled.
func serve(ctx context.Context, addr string, srv *api.Server) {
	var wg sync.WaitGroup

	server := &http.Server{
		Addr:    addr,
		Handler: api.LoggingMiddleware(srv.ServeMux()),
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		go func() {
			log.Printf("listening on %s (version %s)", addr, version.Version)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
