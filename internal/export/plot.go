package export

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/copyleftdev/spiderwasp/internal/runner"
)

// PlotConvergence draws one best-score line per report and saves the chart to
// path. The image format follows the extension (png, svg, pdf, ...).
func PlotConvergence(path string, reports []runner.Report) error {
	p := plot.New()
	p.Title.Text = "Spider wasp optimizer convergence"
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = "Best score"
	p.Add(plotter.NewGrid())

	lines := 0
	for i, rep := range reports {
		pts := convergencePoints(rep.Convergence)
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("%s: %w", rep.Function, err)
		}
		line.Color = plotutil.Color(i)
		line.Dashes = plotutil.Dashes(i)
		p.Add(line)
		p.Legend.Add(rep.Function, line)
		lines++
	}
	if lines == 0 {
		return errors.New("nothing to plot: no finite convergence values")
	}
	p.Legend.Top = true

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}

// convergencePoints skips non-finite entries, which plotter rejects.
func convergencePoints(trace []float64) plotter.XYs {
	pts := make(plotter.XYs, 0, len(trace))
	for i, v := range trace {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(i + 1), Y: v})
	}
	return pts
}
