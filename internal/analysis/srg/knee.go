package srg

import (
	"fmt"
	"math"
	"sort"

	"srgscan/domain/core"
	"srgscan/domain/dataset"

	"github.com/montanaflynn/stats"
)

// minKneePoints is the fewest distinct detection counts the knee search needs.
const minKneePoints = 5

// KneeSuggestion is the outcome of a knee search over the detection curve.
type KneeSuggestion struct {
	Threshold int     `json:"threshold"`
	Distance  float64 `json:"distance"` // normalized distance from the chord at the knee
	Points    int     `json:"points"`   // distinct detection counts considered
}

// SuggestMaxDetected locates the point where the mean inverse expression per
// detection count departs furthest from the straight chord joining the ends
// of the curve (Kneedle). The curve is smoothed with a centred moving median
// first. The returned threshold is a candidate for FilterMaxDetected and is
// never applied automatically by the pipeline unless asked to.
func SuggestMaxDetected(records []dataset.GeneRecord) (KneeSuggestion, error) {
	xs, ys := detectionCurve(records)
	if len(xs) < minKneePoints {
		return KneeSuggestion{}, &core.StageError{
			Stage:  "knee",
			Field:  "cells_detected",
			Detail: fmt.Sprintf("need at least %d distinct values, got %d", minKneePoints, len(xs)),
			Err:    core.ErrInsufficientData,
		}
	}

	ys = movingMedian(ys, smoothingWindow(len(ys)))

	x0, x1 := xs[0], xs[len(xs)-1]
	y0, y1 := ys[0], ys[len(ys)-1]
	if x1 == x0 || y1 == y0 {
		return KneeSuggestion{Threshold: int(x1) + 1, Points: len(xs)}, nil
	}

	best, bestDist := len(xs)-1, -1.0
	for i := range xs {
		xn := (xs[i] - x0) / (x1 - x0)
		yn := (ys[i] - y0) / (y1 - y0)
		// Chord in normalized space is yn == xn.
		if d := math.Abs(yn - xn); d > bestDist {
			best, bestDist = i, d
		}
	}

	return KneeSuggestion{
		Threshold: int(xs[best]),
		Distance:  bestDist,
		Points:    len(xs),
	}, nil
}

// detectionCurve returns the distinct detection counts in ascending order with
// the mean inverse expression observed at each.
func detectionCurve(records []dataset.GeneRecord) ([]float64, []float64) {
	groups := make(map[int][]float64)
	for _, r := range records {
		groups[r.CellsDetected] = append(groups[r.CellsDetected], r.InvAvgExpression)
	}

	keys := make([]int, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	xs := make([]float64, len(keys))
	ys := make([]float64, len(keys))
	for i, k := range keys {
		xs[i] = float64(k)
		ys[i], _ = stats.Mean(groups[k])
	}
	return xs, ys
}

func smoothingWindow(n int) int {
	w := n / 20
	if w < 1 {
		w = 1
	}
	return w
}

// movingMedian replaces each value by the median of its neighbours within
// half-width w, truncated at the ends.
func movingMedian(ys []float64, w int) []float64 {
	out := make([]float64, len(ys))
	for i := range ys {
		lo, hi := i-w, i+w+1
		if lo < 0 {
			lo = 0
		}
		if hi > len(ys) {
			hi = len(ys)
		}
		out[i], _ = stats.Median(ys[lo:hi])
	}
	return out
}
