package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/banshee-data/surface.report/internal/surface"
)

// SceneHTML writes a self-contained HTML page with a rotatable 3D view of
// meshes. Each class that has data gets a Scatter3D series of its vertices in
// buffer order, plus one closed line3D outline per index triple so the facets
// are visible. Outlines share the class name, so one legend entry toggles
// both. Faces are not shaded.
func SceneHTML(w io.Writer, meshes surface.Meshes, o Options) error {
	present := meshes.Present()
	if len(present) == 0 {
		return surface.ErrNothingToRender
	}

	total := 0
	legend := make([]string, 0, len(present))
	for _, c := range present {
		total += meshes[c].TriangleCount()
		legend = append(legend, c.String())
	}

	hidden := opts.Bool(false)
	scene := charts.NewScatter3D()
	scene.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: o.title(), Width: "100%", Height: "720px"}),
		charts.WithTitleOpts(opts.Title{Title: o.title(), Subtitle: fmt.Sprintf("%s: %d triangles", LegendTitle, total)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Data: legend}),
		charts.WithXAxis3DOpts(opts.XAxis3D{Show: hidden}),
		charts.WithYAxis3DOpts(opts.YAxis3D{Show: hidden}),
		charts.WithZAxis3DOpts(opts.ZAxis3D{Show: hidden}),
		charts.WithGrid3DOpts(opts.Grid3D{Show: hidden, ViewControl: &opts.ViewControl{AutoRotate: opts.Bool(false)}}),
	)

	alpha := opts.Float(float32(o.opacity()))
	for _, c := range present {
		buf := meshes[c]
		data := make([]opts.Chart3DData, 0, buf.VertexCount())
		for _, v := range buf.Vertices {
			data = append(data, opts.Chart3DData{Value: []interface{}{v.X, v.Y, v.Z}})
		}
		scene.AddSeries(c.String(), data, charts.WithItemStyleOpts(opts.ItemStyle{Color: Hex(c), Opacity: alpha}))
		scene.MultiSeries = append(scene.MultiSeries, facetOutlines(c, buf, alpha)...)
	}

	if err := scene.Render(w); err != nil {
		return fmt.Errorf("failed to render scene: %w", err)
	}
	return nil
}

// facetOutlines returns one line3D series per triangle tracing v0, v1, v2
// and back to v0.
func facetOutlines(c surface.SurfaceClass, buf *surface.MeshBuffer, alpha types.Float) []charts.SingleSeries {
	out := make([]charts.SingleSeries, 0, buf.TriangleCount())
	for i := range buf.Triangles {
		corners := buf.Corners(i)
		ring := make([]opts.Chart3DData, 0, 4)
		for _, v := range []int{0, 1, 2, 0} {
			p := corners[v]
			ring = append(ring, opts.Chart3DData{Value: []interface{}{p.X, p.Y, p.Z}})
		}
		series := charts.SingleSeries{
			Name:        c.String(),
			Type:        types.ChartLine3D,
			CoordSystem: types.ChartCartesian3D,
			Data:        ring,
		}
		series.ConfigureSeriesOpts(charts.WithLineStyleOpts(opts.LineStyle{Color: Hex(c), Width: 1, Opacity: alpha}))
		out = append(out, series)
	}
	return out
}
