// Package render turns per-class mesh buffers into viewable artifacts: an
// interactive 3D page built with go-echarts and a top-down PNG plan built
// with gonum/plot. Colours are fixed per class and every class with data
// gets one legend entry.
package render

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/surface.report/internal/surface"
)

// LegendTitle heads the legend in both renderings.
const LegendTitle = "Surface Types"

// DefaultOpacity is the fill alpha applied to every class.
const DefaultOpacity = 0.5

var classColors = map[surface.SurfaceClass]color.NRGBA{
	surface.Roof:  {R: 0xff, A: 0xff},
	surface.Wall:  {R: 0x80, G: 0x80, B: 0x80, A: 0xff},
	surface.Floor: {G: 0x80, A: 0xff},
}

// Color returns the opaque colour for class c. Unknown classes are black.
func Color(c surface.SurfaceClass) color.NRGBA {
	if col, ok := classColors[c]; ok {
		return col
	}
	return color.NRGBA{A: 0xff}
}

// Hex returns the colour for class c as a #rrggbb string.
func Hex(c surface.SurfaceClass) string {
	col := Color(c)
	return fmt.Sprintf("#%02x%02x%02x", col.R, col.G, col.B)
}

// Options controls both renderers. The zero value is usable.
type Options struct {
	Title string
	// Opacity in (0, 1]. Zero or out-of-range uses DefaultOpacity.
	Opacity float64
	// Width and Height size the PNG plan.
	Width, Height vg.Length
}

func (o Options) opacity() float64 {
	if o.Opacity <= 0 || o.Opacity > 1 {
		return DefaultOpacity
	}
	return o.Opacity
}

func (o Options) size() (vg.Length, vg.Length) {
	w, h := o.Width, o.Height
	if w <= 0 {
		w = 20 * vg.Centimeter
	}
	if h <= 0 {
		h = 20 * vg.Centimeter
	}
	return w, h
}

func (o Options) title() string {
	if o.Title == "" {
		return "Building Surfaces"
	}
	return o.Title
}

// fill returns class c's colour with the configured alpha, non-premultiplied.
func (o Options) fill(c surface.SurfaceClass) color.NRGBA {
	col := Color(c)
	col.A = uint8(o.opacity()*255 + 0.5)
	return col
}
