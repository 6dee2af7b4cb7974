package render

import (
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/surface.report/internal/surface"
)

// planOrder draws floors first and roofs last so the roof outline stays on
// top in the projection.
var planOrder = []surface.SurfaceClass{surface.Floor, surface.Wall, surface.Roof}

// planMargin pads the plan on every side, as a fraction of its wider extent.
const planMargin = 0.05

// NewPlan builds a top-down plot of meshes: every triangle becomes a filled
// polygon over its (x, y) projection. The axes are framed on the scene's
// bounds plus planMargin.
func NewPlan(meshes surface.Meshes, o Options) (*plot.Plot, error) {
	if meshes.Empty() {
		return nil, surface.ErrNothingToRender
	}

	p := plot.New()
	p.Title.Text = o.title()
	p.HideAxes()
	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.Add(LegendTitle)

	for _, c := range planOrder {
		buf, ok := meshes[c]
		if !ok {
			continue
		}
		fill := o.fill(c)
		var first *plotter.Polygon
		for i := range buf.Triangles {
			corners := buf.Corners(i)
			ring := make(plotter.XYs, len(corners))
			for j, v := range corners {
				ring[j] = plotter.XY{X: v.X, Y: v.Y}
			}
			poly, err := plotter.NewPolygon(ring)
			if err != nil {
				return nil, fmt.Errorf("%s triangle %d: %w", c, i, err)
			}
			poly.Color = fill
			poly.LineStyle.Width = 0
			p.Add(poly)
			if first == nil {
				first = poly
			}
		}
		if first != nil {
			p.Legend.Add(c.String(), first)
		}
	}

	frame(p, surface.Bounds(meshes))
	return p, nil
}

// frame sets the plot ranges to b grown by planMargin of its wider (x, y)
// side. A single point gets a unit frame around it.
func frame(p *plot.Plot, b r3.Box) {
	pad := planMargin * math.Max(b.Max.X-b.Min.X, b.Max.Y-b.Min.Y)
	if pad == 0 {
		pad = 0.5
	}
	p.X.Min, p.X.Max = b.Min.X-pad, b.Max.X+pad
	p.Y.Min, p.Y.Max = b.Min.Y-pad, b.Max.Y+pad
}

// PlanPNG renders NewPlan as a PNG image.
func PlanPNG(w io.Writer, meshes surface.Meshes, o Options) error {
	p, err := NewPlan(meshes, o)
	if err != nil {
		return err
	}
	width, height := o.size()
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("failed to create png canvas: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write png: %w", err)
	}
	return nil
}

// CmToLength converts centimetres from the config file into a vg.Length.
func CmToLength(cm float64) vg.Length {
	return vg.Length(cm) * vg.Centimeter
}
