package profiling

import (
	"math"
	"sort"

	"srgscan/domain/dataset"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// minShapeSamples is the smallest sample for which skewness and kurtosis are
// defined.
const minShapeSamples = 4

// NormalityAlpha is the significance level below which residuals are reported
// as non-normal.
const NormalityAlpha = 0.05

// ProfileResiduals performs distribution shape analysis on trend residuals.
func ProfileResiduals(residuals []float64) (dataset.ResidualProfile, error) {
	profile := dataset.ResidualProfile{NormalityP: 1}

	min, err := stats.Min(residuals)
	if err != nil {
		return profile, err
	}
	max, err := stats.Max(residuals)
	if err != nil {
		return profile, err
	}
	median, err := stats.Median(residuals)
	if err != nil {
		return profile, err
	}

	// Quartiles for IQR-based outlier detection. stat.Quantile needs sorted
	// input and is defined for any non-empty sample.
	sorted := append([]float64(nil), residuals...)
	sort.Float64s(sorted)
	q25 := stat.Quantile(0.25, stat.Empirical, sorted, nil)
	q75 := stat.Quantile(0.75, stat.Empirical, sorted, nil)

	profile.Min = min
	profile.Max = max
	profile.Median = median
	profile.Q25 = q25
	profile.Q75 = q75
	profile.IQROutliers = detectOutliers(residuals, q25, q75)

	if len(residuals) < minShapeSamples {
		return profile, nil
	}

	skew := finiteOrZero(stat.Skew(residuals, nil))
	kurt := finiteOrZero(stat.ExKurtosis(residuals, nil))
	jb, p := jarqueBera(len(residuals), skew, kurt)

	profile.Skewness = skew
	profile.ExcessKurtosis = kurt
	profile.JarqueBera = jb
	profile.NormalityP = p
	return profile, nil
}

// IsNormal reports whether the profile is consistent with normal residuals at
// NormalityAlpha.
func IsNormal(p dataset.ResidualProfile) bool {
	return p.NormalityP >= NormalityAlpha
}

// jarqueBera returns the JB statistic and its chi-square(2) upper-tail p-value.
func jarqueBera(n int, skew, exKurt float64) (float64, float64) {
	jb := float64(n) / 6 * (skew*skew + exKurt*exKurt/4)
	chi := distuv.ChiSquared{K: 2}
	return jb, chi.Survival(jb)
}

// detectOutliers counts values outside the 1.5 IQR fences
func detectOutliers(data []float64, q25, q75 float64) int {
	iqr := q75 - q25
	lowerBound := q25 - 1.5*iqr
	upperBound := q75 + 1.5*iqr

	outlierCount := 0
	for _, x := range data {
		if x < lowerBound || x > upperBound {
			outlierCount++
		}
	}
	return outlierCount
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
