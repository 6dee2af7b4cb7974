package surface

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/surface.report/internal/monitoring"
)

// Outcome distinguishes a run that produced geometry from one that had
// nothing to render. Failures are reported through the error return instead.
type Outcome string

const (
	OutcomeData  Outcome = "data"
	OutcomeEmpty Outcome = "empty"
)

// Result holds both artifacts of one pipeline run. It is replaced wholesale
// by the next run; nothing in it is updated incrementally.
type Result struct {
	RunID   string
	Meshes  Meshes
	Catalog Catalog
	Summary Summary
}

// Outcome reports whether the run produced anything to render.
func (r *Result) Outcome() Outcome {
	if r == nil || r.Meshes.Empty() {
		return OutcomeEmpty
	}
	return OutcomeData
}

// Pipeline drives classification, aggregation and catalog construction.
// The zero value uses DefaultEpsilon and runs sequentially.
type Pipeline struct {
	// Epsilon is the Wall band half-width. Values <= 0 use DefaultEpsilon.
	Epsilon float64
	// Parallel builds the mesh buffers and the catalog on separate
	// goroutines. Both read the same input and share no mutable state.
	Parallel bool
}

// NewPipeline returns a Pipeline with the given tolerance.
func NewPipeline(epsilon float64, parallel bool) *Pipeline {
	return &Pipeline{Epsilon: epsilon, Parallel: parallel}
}

func (p *Pipeline) epsilon() float64 {
	if p == nil || p.Epsilon <= 0 {
		return DefaultEpsilon
	}
	return p.Epsilon
}

// Process decodes the particle service's JSON and runs the pipeline over it.
// A *DataError anywhere in the input aborts the run and no Result is
// returned.
func (p *Pipeline) Process(ctx context.Context, data []byte) (*Result, error) {
	buildings, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode particles: %w", err)
	}
	return p.Run(ctx, buildings)
}

// Run classifies every triangle and builds the mesh buffers and catalog in a
// single pass. ctx is checked between buildings; a cancelled run returns the
// context error and no partial Result.
func (p *Pipeline) Run(ctx context.Context, buildings []Building) (*Result, error) {
	runID := "run_" + uuid.NewString()
	eps := p.epsilon()
	defer monitoring.Timed("[Pipeline] " + runID)()

	total := 0
	for _, b := range buildings {
		total += len(b.Triangles)
	}

	classified := make([]ClassifiedTriangle, 0, total)
	for i, b := range buildings {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s cancelled at building %d: %w", runID, i, err)
		}
		for _, t := range b.Triangles {
			classified = append(classified, ClassifiedTriangle{
				Triangle: t,
				Class:    ClassifyWithTolerance(t.NZ, eps),
			})
		}
	}

	var (
		meshes  Meshes
		catalog Catalog
	)
	if p != nil && p.Parallel {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			meshes = Aggregate(classified)
		}()
		go func() {
			defer wg.Done()
			catalog = BuildCatalog(buildings, eps)
		}()
		wg.Wait()
	} else {
		meshes = Aggregate(classified)
		catalog = BuildCatalog(buildings, eps)
	}

	res := &Result{
		RunID:   runID,
		Meshes:  meshes,
		Catalog: catalog,
		Summary: Summarise(len(buildings), meshes, catalog),
	}

	monitoring.Logf("[Pipeline] %s: buildings=%d triangles=%d classes=%v outcome=%s",
		runID, len(buildings), total, meshes.Present(), res.Outcome())
	return res, nil
}
