package srg

import (
	"srgscan/domain/core"
	"srgscan/domain/dataset"

	"gonum.org/v1/gonum/stat"
)

// FitTrend fits inverse average expression on detection count by ordinary
// least squares over the whole population. Fewer than two distinct detection
// counts leave the slope undefined and fail before any regression runs.
func FitTrend(records []dataset.GeneRecord) (dataset.TrendFit, error) {
	if distinct := distinctDetections(records); distinct < 2 {
		return dataset.TrendFit{}, core.NewInsufficientDataError(distinct)
	}

	xs := make([]float64, len(records))
	ys := make([]float64, len(records))
	for i, r := range records {
		xs[i] = float64(r.CellsDetected)
		ys[i] = r.InvAvgExpression
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	return dataset.TrendFit{
		Intercept: alpha,
		Slope:     beta,
		RSquared:  stat.RSquared(xs, ys, nil, alpha, beta),
		N:         len(records),
	}, nil
}

// ApplyTrend fills the predicted inverse average expression and the residual
// of every record from a shared fit.
func ApplyTrend(records []dataset.GeneRecord, fit dataset.TrendFit) []dataset.GeneRecord {
	out := dataset.Clone(records)
	for i := range out {
		out[i].PredictedInvAvgExpression = fit.Predict(out[i].CellsDetected)
		out[i].Residual = out[i].InvAvgExpression - out[i].PredictedInvAvgExpression
	}
	return out
}

func distinctDetections(records []dataset.GeneRecord) int {
	seen := make(map[int]struct{})
	for _, r := range records {
		seen[r.CellsDetected] = struct{}{}
		if len(seen) >= 2 {
			return len(seen)
		}
	}
	return len(seen)
}
