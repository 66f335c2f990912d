package export

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"path/filepath"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/copyleftdev/spiderwasp/internal/optimization"
)

// Projection selects how a landscape is drawn.
type Projection string

const (
	// ProjectionContour draws iso-lines of the objective.
	ProjectionContour Projection = "contour"
	// ProjectionHeatMap fills every grid cell with a colour for its height.
	ProjectionHeatMap Projection = "heatmap"
)

// landscapeResolution is the number of samples along each plotted axis.
const landscapeResolution = 100

// ParseProjection accepts "contour" and "heatmap". "2d" and "3d" are
// aliases for them.
func ParseProjection(s string) (Projection, error) {
	switch s {
	case "contour", "2d":
		return ProjectionContour, nil
	case "heatmap", "3d":
		return ProjectionHeatMap, nil
	}
	return "", fmt.Errorf("unknown projection %q (want contour or heatmap)", s)
}

// LandscapePath names the landscape image of function inside dir.
func LandscapePath(dir, function string, proj Projection) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.png", function, proj))
}

// PlotLandscape samples fn over the first two axes of space with every
// other coordinate held at 0, marks best when it has at least two
// coordinates and saves the chart to path.
func PlotLandscape(path string, fn optimization.Objective, space optimization.SearchSpace, best []float64, proj Projection) error {
	grid, err := sampleLandscape(fn, space, landscapeResolution)
	if err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s landscape", fn.Name())
	if space.Dim > 2 {
		p.Title.Text += fmt.Sprintf(" (x3..x%d = 0)", space.Dim)
	}
	p.X.Label.Text = "x1"
	p.Y.Label.Text = "x2"

	switch proj {
	case ProjectionContour:
		p.Add(plotter.NewContour(grid, nil, palette.Heat(12, 1)))
	case ProjectionHeatMap:
		p.Add(plotter.NewHeatMap(grid, palette.Heat(64, 1)))
	default:
		return fmt.Errorf("unknown projection %q", proj)
	}

	if len(best) >= 2 {
		s, err := plotter.NewScatter(plotter.XYs{{X: best[0], Y: best[1]}})
		if err != nil {
			return fmt.Errorf("%s: best point: %w", fn.Name(), err)
		}
		s.GlyphStyle.Color = color.RGBA{R: 220, A: 255}
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		s.GlyphStyle.Radius = vg.Points(4)
		p.Add(s)
		p.Legend.Add("best", s)
		p.Legend.Top = true
	}

	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}

// landscapeGrid is a plotter.GridXYZ over a regular sample of two axes.
// Rows of z follow y, columns follow x.
type landscapeGrid struct {
	xs, ys []float64
	z      *mat.Dense
}

func (g landscapeGrid) Dims() (c, r int)   { return len(g.xs), len(g.ys) }
func (g landscapeGrid) Z(c, r int) float64 { return g.z.At(r, c) }
func (g landscapeGrid) X(c int) float64    { return g.xs[c] }
func (g landscapeGrid) Y(r int) float64    { return g.ys[r] }

// sampleLandscape evaluates fn on an n by n grid. Non-finite values become
// NaN so the plotters leave those cells out.
func sampleLandscape(fn optimization.Objective, space optimization.SearchSpace, n int) (landscapeGrid, error) {
	if err := space.Validate(); err != nil {
		return landscapeGrid{}, err
	}
	if space.Dim < 2 {
		return landscapeGrid{}, fmt.Errorf("landscape needs at least 2 dimensions, got %d", space.Dim)
	}
	if space.Lower[0] == space.Upper[0] || space.Lower[1] == space.Upper[1] {
		return landscapeGrid{}, errors.New("landscape needs non-degenerate bounds on the first two axes")
	}

	g := landscapeGrid{
		xs: floats.Span(make([]float64, n), space.Lower[0], space.Upper[0]),
		ys: floats.Span(make([]float64, n), space.Lower[1], space.Upper[1]),
		z:  mat.NewDense(n, n, nil),
	}
	x := make([]float64, space.Dim)
	finite := 0
	for r, y := range g.ys {
		for c, xv := range g.xs {
			x[0], x[1] = xv, y
			v, err := fn.Evaluate(x)
			if err != nil {
				return landscapeGrid{}, fmt.Errorf("%s: %w", fn.Name(), err)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = math.NaN()
			} else {
				finite++
			}
			g.z.Set(r, c, v)
		}
	}
	if finite == 0 {
		return landscapeGrid{}, fmt.Errorf("%s: nothing to plot: no finite values on the grid", fn.Name())
	}
	return g, nil
}
