package srg

import (
	"testing"

	"srgscan/domain/core"
	"srgscan/domain/dataset"
	"srgscan/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitTrend_RecoversLine(t *testing.T) {
	tests := []struct {
		noise float64
		tol   float64
	}{
		{0, 1e-9},
		{1e-6, 1e-5},
		{1e-4, 1e-3},
	}

	for _, tt := range tests {
		recs := testkit.LinearTrendRecords(500, 2, 2.0, -0.001, tt.noise, 42)
		fit, err := FitTrend(recs)
		require.NoError(t, err)

		assert.InDelta(t, 2.0, fit.Intercept, tt.tol, "noise=%g", tt.noise)
		assert.InDelta(t, -0.001, fit.Slope, tt.tol/100, "noise=%g", tt.noise)
		assert.Equal(t, 500, fit.N)
	}
}

func TestFitTrend_InsufficientData(t *testing.T) {
	same := []dataset.GeneRecord{
		{GeneID: "a", CellsDetected: 5, InvAvgExpression: 0.5},
		{GeneID: "b", CellsDetected: 5, InvAvgExpression: 0.7},
		{GeneID: "c", CellsDetected: 5, InvAvgExpression: 0.9},
	}
	_, err := FitTrend(same)
	require.ErrorIs(t, err, core.ErrInsufficientData)
	assert.Equal(t, core.StageTrend, core.StageOf(err))

	_, err = FitTrend(nil)
	assert.ErrorIs(t, err, core.ErrInsufficientData)
}

func TestApplyTrend_Residuals(t *testing.T) {
	recs := []dataset.GeneRecord{
		{GeneID: "a", CellsDetected: 10, InvAvgExpression: 0.9},
		{GeneID: "b", CellsDetected: 20, InvAvgExpression: 0.5},
	}
	fit := dataset.TrendFit{Intercept: 1.0, Slope: -0.01}

	out := ApplyTrend(recs, fit)
	assert.InDelta(t, 0.9, out[0].PredictedInvAvgExpression, 1e-12)
	assert.InDelta(t, 0.0, out[0].Residual, 1e-12)
	assert.InDelta(t, 0.8, out[1].PredictedInvAvgExpression, 1e-12)
	assert.InDelta(t, -0.3, out[1].Residual, 1e-12)
	assert.Zero(t, recs[1].Residual, "input must not be modified")
}
