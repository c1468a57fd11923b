package compare

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// FitStats summarizes the agreement between ground and model values of one
// component: error magnitudes plus an ordinary least squares fit of model
// against ground.
type FitStats struct {
	N         int
	MeanBias  float64
	MAE       float64
	RMSE      float64
	Slope     float64
	Intercept float64
	RSquared  float64
}

// ComputeFit expects NaN-free slices of equal length, as produced by join.
func ComputeFit(ground, model []float64) FitStats {
	n := len(ground)
	if n == 0 {
		return FitStats{}
	}

	var sumBias, sumAbs, sumSq float64
	for i := range ground {
		d := model[i] - ground[i]
		sumBias += d
		sumAbs += math.Abs(d)
		sumSq += d * d
	}

	intercept, slope := stat.LinearRegression(ground, model, nil, false)
	r2 := stat.RSquared(ground, model, nil, intercept, slope)

	return FitStats{
		N:         n,
		MeanBias:  sumBias / float64(n),
		MAE:       sumAbs / float64(n),
		RMSE:      math.Sqrt(sumSq / float64(n)),
		Slope:     slope,
		Intercept: intercept,
		RSquared:  r2,
	}
}
