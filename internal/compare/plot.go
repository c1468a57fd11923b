package compare

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

var (
	scatterColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	fitColor     = color.RGBA{R: 214, B: 40, A: 255}
	refColor     = color.RGBA{R: 90, G: 90, B: 90, A: 255}
	modelColor   = color.RGBA{R: 255, G: 127, B: 14, A: 255}
)

// renderFigure composes one panel row per component (bias over time on the
// left, measured vs modeled with the fitted line on the right) plus, when
// cloud coverage data is available, a final row relating GHI bias to cloud
// cover and the GHI/DHI ratios over time.
func renderFigure(location string, cmp *Comparison, fits map[string]FitStats, path string) error {
	rows := len(components)
	if cmp.Cloud != nil {
		rows++
	}

	plots := make([][]*plot.Plot, rows)
	for i, comp := range components {
		left, err := biasPanel(location, comp, cmp)
		if err != nil {
			return err
		}
		right, err := fitPanel(comp, cmp, fits[comp])
		if err != nil {
			return err
		}
		plots[i] = []*plot.Plot{left, right}
	}
	if cmp.Cloud != nil {
		left, err := cloudPanel(cmp)
		if err != nil {
			return err
		}
		right, err := ratioPanel(cmp)
		if err != nil {
			return err
		}
		plots[len(components)] = []*plot.Plot{left, right}
	}

	img := vgimg.New(vg.Points(960), vg.Points(float64(rows)*240))
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: rows, Cols: 2,
		PadX: vg.Points(12), PadY: vg.Points(12),
		PadTop: vg.Points(8), PadBottom: vg.Points(8),
		PadLeft: vg.Points(8), PadRight: vg.Points(8),
	}
	canvases := plot.Align(plots, tiles, dc)
	for r := range plots {
		for c := range plots[r] {
			plots[r][c].Draw(canvases[r][c])
		}
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func biasPanel(location, comp string, cmp *Comparison) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s: %s bias (model - ground)", location, comp)
	p.X.Label.Text = "Time (UTC)"
	p.Y.Label.Text = "Bias (W/m^2)"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}

	sc, err := plotter.NewScatter(timeXY(cmp.Times, cmp.Bias(comp)))
	if err != nil {
		return nil, err
	}
	sc.GlyphStyle.Radius = vg.Points(1)
	sc.GlyphStyle.Color = scatterColor

	zero, err := plotter.NewLine(plotter.XYs{
		{X: float64(cmp.Times[0].Unix()), Y: 0},
		{X: float64(cmp.Times[len(cmp.Times)-1].Unix()), Y: 0},
	})
	if err != nil {
		return nil, err
	}
	zero.LineStyle.Color = refColor
	zero.LineStyle.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}

	p.Add(plotter.NewGrid(), sc, zero)
	return p, nil
}

func fitPanel(comp string, cmp *Comparison, fit FitStats) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s measured vs modeled", comp)
	p.X.Label.Text = fmt.Sprintf("Ground %s (W/m^2)", comp)
	p.Y.Label.Text = fmt.Sprintf("CAMS %s (W/m^2)", comp)

	ground, model := cmp.Ground[comp], cmp.Model[comp]
	sc, err := plotter.NewScatter(pairXY(ground, model))
	if err != nil {
		return nil, err
	}
	sc.GlyphStyle.Radius = vg.Points(1)
	sc.GlyphStyle.Color = scatterColor

	lo, hi := ground[0], ground[0]
	for _, v := range ground {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	fitLine, err := plotter.NewLine(plotter.XYs{
		{X: lo, Y: fit.Intercept + fit.Slope*lo},
		{X: hi, Y: fit.Intercept + fit.Slope*hi},
	})
	if err != nil {
		return nil, err
	}
	fitLine.LineStyle.Color = fitColor
	fitLine.LineStyle.Width = vg.Points(1.5)

	oneToOne, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return nil, err
	}
	oneToOne.LineStyle.Color = refColor
	oneToOne.LineStyle.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}

	p.Add(plotter.NewGrid(), sc, fitLine, oneToOne)
	p.Legend.Add(fmt.Sprintf("fit: y = %.2fx + %.1f, R^2 = %.3f", fit.Slope, fit.Intercept, fit.RSquared), fitLine)
	p.Legend.Add("1:1", oneToOne)
	p.Legend.Top = true
	p.Legend.Left = true
	return p, nil
}

func cloudPanel(cmp *Comparison) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "GHI bias vs cloud coverage"
	p.X.Label.Text = "Cloud coverage"
	p.Y.Label.Text = "GHI bias (W/m^2)"

	sc, err := plotter.NewScatter(pairXY(cmp.Cloud, cmp.Bias("GHI")))
	if err != nil {
		return nil, err
	}
	sc.GlyphStyle.Radius = vg.Points(1)
	sc.GlyphStyle.Color = scatterColor

	p.Add(plotter.NewGrid(), sc)
	return p, nil
}

func ratioPanel(cmp *Comparison) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "GHI/DHI ratio"
	p.X.Label.Text = "Time (UTC)"
	p.Y.Label.Text = "Ratio"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}

	groundSc, err := plotter.NewScatter(timeXY(cmp.Times, cmp.GroundRatio()))
	if err != nil {
		return nil, err
	}
	groundSc.GlyphStyle.Radius = vg.Points(1)
	groundSc.GlyphStyle.Color = scatterColor

	modelSc, err := plotter.NewScatter(timeXY(cmp.Times, cmp.ModelRatio()))
	if err != nil {
		return nil, err
	}
	modelSc.GlyphStyle.Radius = vg.Points(1)
	modelSc.GlyphStyle.Color = modelColor

	p.Add(plotter.NewGrid(), groundSc, modelSc)
	p.Legend.Add("ground", groundSc)
	p.Legend.Add("CAMS", modelSc)
	p.Legend.Top = true
	return p, nil
}

// timeXY pairs timestamps with values, skipping NaN values.
func timeXY(times []time.Time, ys []float64) plotter.XYs {
	xys := make(plotter.XYs, 0, len(ys))
	for i, y := range ys {
		if math.IsNaN(y) {
			continue
		}
		xys = append(xys, plotter.XY{X: float64(times[i].Unix()), Y: y})
	}
	return xys
}

// pairXY pairs two series, skipping rows where either side is NaN.
func pairXY(xs, ys []float64) plotter.XYs {
	xys := make(plotter.XYs, 0, len(xs))
	for i := range xs {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
			continue
		}
		xys = append(xys, plotter.XY{X: xs[i], Y: ys[i]})
	}
	return xys
}
