// Package compare validates CAMS model output against quality-controlled
// ground measurements: per station it joins the two series on timestamp,
// computes bias and fit statistics per component and renders a multi-panel
// comparison figure.
package compare

import (
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/wetsa/solrad/internal/ingest"
	"github.com/wetsa/solrad/internal/metrics"
	"github.com/wetsa/solrad/internal/stations"
	"github.com/wetsa/solrad/internal/store"
	"github.com/wetsa/solrad/internal/timeseries"
)

const (
	groundTimeColumn = "Datetime (UTC)"
	cloudColumn      = "Cloud coverage"
)

// components in the order they appear in figures and the ledger.
var components = []string{"GHI", "DHI", "DNI"}

// flagColumns are the ground QC flags; only the ones present in a file are
// consulted. A row survives when the sum of its flags is exactly zero.
var flagColumns = []string{
	"flag_ghi", "flag_dhi", "flag_dni",
	"flag_ghi_rare", "flag_dhi_rare", "flag_dni_rare",
	"flag_comp1", "flag_comp2",
}

type Runner struct {
	Store     *store.Store // nil disables the ledger
	GroundDir string
	ModelDir  string
	OutDir    string
	Factor    float64 // applied to model GHI/DHI/BNI before joining
	Year      string  // year segment of the QC ground file name
}

// Run compares each station, logging and skipping individual failures. It
// returns an error only when no station could be compared at all.
func (r *Runner) Run(sts []stations.Station) error {
	if len(sts) == 0 {
		return fmt.Errorf("no stations to compare")
	}
	if err := os.MkdirAll(r.OutDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	ok := 0
	for _, st := range sts {
		if err := r.compareOne(st); err != nil {
			metrics.StationsComparedTotal.WithLabelValues("skipped").Inc()
			log.Printf("compare: %s: %v (skipping)", st.Name, err)
			continue
		}
		metrics.StationsComparedTotal.WithLabelValues("ok").Inc()
		ok++
	}
	if ok == 0 {
		return fmt.Errorf("no stations were successfully compared")
	}
	log.Printf("compare: finished %d of %d stations", ok, len(sts))
	return nil
}

func (r *Runner) compareOne(st stations.Station) error {
	safe := ingest.SanitizeName(st.Name)
	groundPath := filepath.Join(r.GroundDir, fmt.Sprintf("QC_%s_%s_flagged.csv", safe, r.Year))
	modelPath := filepath.Join(r.ModelDir, fmt.Sprintf("processed_10min_%s_observed_cloud.csv", safe))
	for _, p := range []string{groundPath, modelPath} {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("input file missing: %w", err)
		}
	}

	ground, err := loadGround(groundPath)
	if err != nil {
		return fmt.Errorf("ground data: %w", err)
	}
	model, err := loadModel(modelPath, r.Factor)
	if err != nil {
		return fmt.Errorf("model data: %w", err)
	}

	cmp, err := join(ground, model)
	if err != nil {
		return err
	}
	metrics.ComparisonPointsTotal.Add(float64(len(cmp.Times)))

	fits := make(map[string]FitStats, len(components))
	for _, comp := range components {
		fits[comp] = ComputeFit(cmp.Ground[comp], cmp.Model[comp])
	}

	figPath := filepath.Join(r.OutDir, fmt.Sprintf("solar_radiation_comparison_%s.png", safe))
	if err := renderFigure(st.Name, cmp, fits, figPath); err != nil {
		return fmt.Errorf("render figure: %w", err)
	}

	r.recordStats(st.Name, fits)

	ghi := fits["GHI"]
	log.Printf("compare: %s: %d matched points, GHI bias %.2f, R^2 %.3f, wrote %s",
		st.Name, len(cmp.Times), ghi.MeanBias, ghi.RSquared, figPath)
	return nil
}

func (r *Runner) recordStats(location string, fits map[string]FitStats) {
	if r.Store == nil {
		return
	}
	now := time.Now().UTC()
	for _, comp := range components {
		fit := fits[comp]
		err := r.Store.UpsertComparisonStats(store.ComparisonStats{
			Location:  location,
			Component: comp,
			N:         fit.N,
			MeanBias:  fit.MeanBias,
			MAE:       fit.MAE,
			RMSE:      fit.RMSE,
			Slope:     fit.Slope,
			Intercept: fit.Intercept,
			RSquared:  fit.RSquared,
			CreatedAt: now,
		})
		if err != nil {
			log.Printf("compare: record stats for %s/%s: %v", location, comp, err)
		}
	}
}

// loadGround reads a QC-flagged ground file and drops every row whose
// present flag columns do not sum to zero. Flag columns are not carried into
// the result.
func loadGround(path string) (*timeseries.Frame, error) {
	f, err := timeseries.ReadCSV(path, groundTimeColumn)
	if err != nil {
		return nil, err
	}
	if err := f.RequireColumns(components...); err != nil {
		return nil, err
	}

	var present []string
	flagged := make(map[string]bool)
	for _, c := range flagColumns {
		if f.HasColumn(c) {
			present = append(present, c)
			flagged[c] = true
		}
	}

	out := timeseries.NewFrame()
	for _, col := range f.Columns {
		if flagged[col] {
			continue
		}
		out.Columns = append(out.Columns, col)
		out.Values[col] = nil
	}

	for i := range f.Times {
		var sum float64
		for _, c := range present {
			sum += f.Values[c][i]
		}
		// A NaN flag also fails this test and drops the row.
		if sum != 0 {
			continue
		}
		out.Times = append(out.Times, f.Times[i])
		for _, col := range out.Columns {
			out.Values[col] = append(out.Values[col], f.Values[col][i])
		}
	}
	return out, nil
}

// loadModel reads a processed model file, renames BNI to DNI and scales the
// irradiance components by factor. A cloud coverage column, when present,
// passes through unscaled.
func loadModel(path string, factor float64) (*timeseries.Frame, error) {
	f, err := timeseries.ReadCSV(path, "time")
	if err != nil {
		return nil, err
	}
	if err := f.RequireColumns("GHI", "DHI", "BNI"); err != nil {
		return nil, err
	}
	if err := f.Rename("BNI", "DNI"); err != nil {
		return nil, err
	}
	for _, comp := range components {
		vals := f.Values[comp]
		for i := range vals {
			vals[i] *= factor
		}
	}
	return f, nil
}

// Comparison holds the inner join of ground and model series. Component
// slices are NaN-free and aligned with Times; Cloud is nil when the model
// file carries no cloud coverage column.
type Comparison struct {
	Times  []time.Time
	Ground map[string][]float64
	Model  map[string][]float64
	Cloud  []float64
}

func join(ground, model *timeseries.Frame) (*Comparison, error) {
	idx := make(map[int64]int, model.Len())
	for i, t := range model.Times {
		idx[t.Unix()] = i
	}
	hasCloud := model.HasColumn(cloudColumn)

	c := &Comparison{
		Ground: make(map[string][]float64, len(components)),
		Model:  make(map[string][]float64, len(components)),
	}
	for gi, t := range ground.Times {
		mi, ok := idx[t.Unix()]
		if !ok {
			continue
		}
		valid := true
		for _, comp := range components {
			if math.IsNaN(ground.Values[comp][gi]) || math.IsNaN(model.Values[comp][mi]) {
				valid = false
				break
			}
		}
		if !valid {
			continue
		}
		c.Times = append(c.Times, t)
		for _, comp := range components {
			c.Ground[comp] = append(c.Ground[comp], ground.Values[comp][gi])
			c.Model[comp] = append(c.Model[comp], model.Values[comp][mi])
		}
		if hasCloud {
			c.Cloud = append(c.Cloud, model.Values[cloudColumn][mi])
		}
	}
	if len(c.Times) == 0 {
		return nil, fmt.Errorf("no overlapping timestamps between ground and model data")
	}
	return c, nil
}

// Bias returns the per-row model minus ground difference for one component.
func (c *Comparison) Bias(component string) []float64 {
	g, m := c.Ground[component], c.Model[component]
	out := make([]float64, len(g))
	for i := range g {
		out[i] = m[i] - g[i]
	}
	return out
}

// GroundRatio returns the per-row ground GHI/DHI ratio.
func (c *Comparison) GroundRatio() []float64 {
	return ratio(c.Ground["GHI"], c.Ground["DHI"])
}

// ModelRatio returns the per-row model GHI/DHI ratio.
func (c *Comparison) ModelRatio() []float64 {
	return ratio(c.Model["GHI"], c.Model["DHI"])
}

// ratio divides element-wise; a zero denominator yields NaN.
func ratio(num, den []float64) []float64 {
	out := make([]float64, len(num))
	for i := range num {
		if den[i] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = num[i] / den[i]
	}
	return out
}
