package srg

import (
	"math"
	"sort"

	"srgscan/domain/core"
	"srgscan/domain/dataset"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultZScoreCutoff flags genes more than one residual standard deviation
// below the trend.
const DefaultZScoreCutoff = -1.0

// degenerateTolerance is the residual spread, relative to the data scale,
// below which residuals are treated as identical.
const degenerateTolerance = 1e-12

// ClassifyOptions controls Z-scoring and the SRG decision.
type ClassifyOptions struct {
	Cutoff float64
	// CenterResiduals subtracts the residual mean before scaling. Off by
	// default: the score is the residual's distance from zero in units of
	// the residual spread.
	CenterResiduals bool
}

// DefaultClassifyOptions returns the cutoff of -1 with uncentred scores.
func DefaultClassifyOptions() ClassifyOptions {
	return ClassifyOptions{Cutoff: DefaultZScoreCutoff}
}

// ResidualSummary returns the mean and population standard deviation of the
// residual column.
func ResidualSummary(records []dataset.GeneRecord) (dataset.ResidualStats, error) {
	if len(records) == 0 {
		return dataset.ResidualStats{}, &core.StageError{
			Stage: core.StageClassify, Field: "residual", Detail: "no records", Err: core.ErrInsufficientData,
		}
	}

	residuals := make(stats.Float64Data, len(records))
	for i, r := range records {
		residuals[i] = r.Residual
	}

	mean, err := stats.Mean(residuals)
	if err != nil {
		return dataset.ResidualStats{}, err
	}
	stdDev, err := stats.StandardDeviationPopulation(residuals)
	if err != nil {
		return dataset.ResidualStats{}, err
	}
	return dataset.ResidualStats{Mean: mean, StdDev: stdDev, N: len(records)}, nil
}

// Classify Z-scores every residual, flags records strictly below the cutoff
// and returns them stably sorted by ascending Z-score. Ties keep input order.
func Classify(records []dataset.GeneRecord, opts ClassifyOptions) ([]dataset.GeneRecord, dataset.ResidualStats, error) {
	summary, err := ResidualSummary(records)
	if err != nil {
		return nil, dataset.ResidualStats{}, err
	}
	if isDegenerate(records, summary.StdDev) {
		return nil, summary, core.NewDegenerateDistributionError(summary.StdDev)
	}

	center := 0.0
	if opts.CenterResiduals {
		center = summary.Mean
	}

	out := dataset.Clone(records)
	for i := range out {
		z := (out[i].Residual - center) / summary.StdDev
		out[i].ZScore = z
		out[i].LowerTailP = distuv.UnitNormal.CDF(z)
		out[i].IsSRG = z < opts.Cutoff
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ZScore < out[j].ZScore
	})
	return out, summary, nil
}

// Hits returns the ids of SRG records in the order given.
func Hits(records []dataset.GeneRecord) []string {
	hits := make([]string, 0)
	for _, r := range records {
		if r.IsSRG {
			hits = append(hits, r.GeneID)
		}
	}
	return hits
}

// isDegenerate reports whether the residual spread is zero up to rounding,
// measured against the larger of the mean |inverse expression| and the
// largest |residual|.
func isDegenerate(records []dataset.GeneRecord, stdDev float64) bool {
	if stdDev == 0 || math.IsNaN(stdDev) {
		return true
	}
	var scale, sumAbsInv float64
	for _, r := range records {
		sumAbsInv += math.Abs(r.InvAvgExpression)
		scale = math.Max(scale, math.Abs(r.Residual))
	}
	scale = math.Max(scale, sumAbsInv/float64(len(records)))
	return stdDev <= degenerateTolerance*scale
}
