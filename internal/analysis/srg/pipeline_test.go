package srg

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"srgscan/domain/core"
	"srgscan/domain/dataset"
	"srgscan/internal"
	apperrors "srgscan/internal/errors"
	"srgscan/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *internal.Logger {
	return internal.NewLoggerTo(&bytes.Buffer{}, internal.LogLevelError)
}

func newTestPipeline(t *testing.T, opts Options) *Pipeline {
	t.Helper()
	p, err := NewPipeline(opts, quietLogger())
	require.NoError(t, err)
	return p
}

func TestPipeline_ScenarioSingleSurvivor(t *testing.T) {
	m := scenarioMatrix()

	recs, err := Aggregate(context.Background(), m, 1)
	require.NoError(t, err)
	kept := FilterMinDetected(recs, DefaultMinCellsDetected)
	require.Equal(t, []string{"GeneA"}, dataset.GeneIDs(kept))

	withMetric, err := ComputeExpression(kept)
	require.NoError(t, err)
	assert.Equal(t, 4, withMetric[0].CellsDetected)
	assert.Equal(t, int64(4), withMetric[0].TotalUMI)
	assert.Equal(t, 1.0, withMetric[0].AvgExpression)
	assert.Equal(t, 1.0, withMetric[0].InvAvgExpression)

	// One surviving gene cannot support a regression.
	_, err = newTestPipeline(t, DefaultOptions()).Run(context.Background(), m)
	require.ErrorIs(t, err, core.ErrInsufficientData)
	assert.Equal(t, apperrors.CodeInsufficientData, apperrors.GetCode(err))
}

func TestPipeline_ScenarioExtended(t *testing.T) {
	m := scenarioMatrix()
	m.GeneIDs = append(m.GeneIDs, "GeneD", "GeneE", "GeneF")
	m.Counts = append(m.Counts,
		[]int32{3, 0, 7, 1},
		[]int32{2, 2, 0, 0},
		[]int32{0, 9, 9, 0},
	)

	res, err := newTestPipeline(t, DefaultOptions()).Run(context.Background(), m)
	require.NoError(t, err)

	ids := dataset.GeneIDs(res.Records)
	assert.ElementsMatch(t, []string{"GeneA", "GeneD", "GeneE", "GeneF"}, ids)
	assert.NotContains(t, ids, "GeneB")
	assert.NotContains(t, ids, "GeneC")
	assert.NotContains(t, ids, "GeneZ")
	for _, r := range res.Records {
		assert.GreaterOrEqual(t, r.CellsDetected, 2)
		assert.InDelta(t, r.InvAvgExpression-res.Fit.Predict(r.CellsDetected), r.Residual, 1e-12)
		assert.InDelta(t, r.Residual/res.Residuals.StdDev, r.ZScore, 1e-12)
	}

	// Hand-computed fit: inv = -0.3889 + 0.3127*cells; residual sd 0.2125.
	// GeneD (11 UMI over 3 cells) sits 1.3 sd below the line.
	assert.InDelta(t, -0.38889, res.Fit.Intercept, 1e-4)
	assert.InDelta(t, 0.31267, res.Fit.Slope, 1e-4)
	assert.Equal(t, "GeneD", res.Records[0].GeneID)
	assert.InDelta(t, -1.30, res.Records[0].ZScore, 0.01)
	assert.Equal(t, []string{"GeneD"}, res.Hits)

	require.Len(t, res.Stages, 6)
	assert.Equal(t, core.StageFilterMin, res.Stages[1].Stage)
	assert.Equal(t, 3, res.Stages[1].Dropped)
}

func TestPipeline_RecoversPlantedGenes(t *testing.T) {
	fx, err := testkit.GenerateDGE(testkit.DefaultDGEConfig())
	require.NoError(t, err)

	res, err := newTestPipeline(t, DefaultOptions()).Run(context.Background(), fx.Matrix)
	require.NoError(t, err)

	truePos := 0
	for _, h := range res.Hits {
		if fx.IsPlanted(h) {
			truePos++
		}
	}
	recall := float64(truePos) / float64(len(fx.Planted))
	precision := float64(truePos) / float64(len(res.Hits))
	assert.GreaterOrEqual(t, recall, 0.9, "hits=%v", res.Hits)
	assert.GreaterOrEqual(t, precision, 0.9, "hits=%v", res.Hits)

	require.NotNil(t, res.Profile)
	assert.LessOrEqual(t, res.Profile.Min, res.Profile.Median)
	assert.LessOrEqual(t, res.Profile.Median, res.Profile.Max)
	for _, r := range res.Records {
		assert.GreaterOrEqual(t, r.Residual, res.Profile.Min)
	}
}

func TestPipeline_HitsFollowAscendingZ(t *testing.T) {
	fx, err := testkit.GenerateDGE(testkit.DefaultDGEConfig())
	require.NoError(t, err)

	res, err := newTestPipeline(t, DefaultOptions()).Run(context.Background(), fx.Matrix)
	require.NoError(t, err)

	z := make(map[string]float64, len(res.Records))
	for i, r := range res.Records {
		z[r.GeneID] = r.ZScore
		if i > 0 {
			assert.LessOrEqual(t, res.Records[i-1].ZScore, r.ZScore)
		}
	}
	for i := 1; i < len(res.Hits); i++ {
		assert.LessOrEqual(t, z[res.Hits[i-1]], z[res.Hits[i]])
	}
	for _, h := range res.Hits {
		assert.Less(t, z[h], DefaultZScoreCutoff)
	}
}

func TestPipeline_Deterministic(t *testing.T) {
	fx, err := testkit.GenerateDGE(testkit.DefaultDGEConfig())
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Workers = 1
	a, err := newTestPipeline(t, opts).Run(context.Background(), fx.Matrix)
	require.NoError(t, err)

	opts.Workers = 8
	b, err := newTestPipeline(t, opts).Run(context.Background(), fx.Matrix)
	require.NoError(t, err)

	assert.Equal(t, a.Records, b.Records)
	assert.Equal(t, a.Hits, b.Hits)
	assert.Equal(t, a.Fit, b.Fit)
}

func TestPipeline_MaxThresholdApplied(t *testing.T) {
	fx, err := testkit.GenerateDGE(testkit.DefaultDGEConfig())
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.MaxCellsDetected = 100
	res, err := newTestPipeline(t, opts).Run(context.Background(), fx.Matrix)
	require.NoError(t, err)

	assert.Equal(t, 100, res.MaxCellsApplied)
	for _, r := range res.Records {
		assert.Less(t, r.CellsDetected, 100)
	}
}

func TestPipeline_AutoMaxUsesKnee(t *testing.T) {
	fx, err := testkit.GenerateDGE(testkit.DefaultDGEConfig())
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.AutoMaxCells = true
	res, err := newTestPipeline(t, opts).Run(context.Background(), fx.Matrix)
	require.NoError(t, err)

	require.NotNil(t, res.Knee)
	if res.Knee.Threshold > opts.MinCellsDetected {
		assert.Equal(t, res.Knee.Threshold, res.MaxCellsApplied)
	} else {
		assert.Zero(t, res.MaxCellsApplied)
	}

	// An explicit threshold wins over the knee.
	opts.MaxCellsDetected = 150
	res, err = newTestPipeline(t, opts).Run(context.Background(), fx.Matrix)
	require.NoError(t, err)
	assert.Nil(t, res.Knee)
	assert.Equal(t, 150, res.MaxCellsApplied)
}

func TestPipeline_DegenerateResiduals(t *testing.T) {
	m := &dataset.Matrix{
		GeneIDs: []string{"GeneA", "GeneB", "GeneC"},
		CellIDs: []string{"c1", "c2", "c3", "c4"},
		Counts: [][]int32{
			{1, 1, 0, 0},
			{1, 1, 1, 0},
			{1, 1, 1, 1},
		},
	}
	_, err := newTestPipeline(t, DefaultOptions()).Run(context.Background(), m)
	require.ErrorIs(t, err, core.ErrDegenerateDistribution)
	assert.Equal(t, core.StageClassify, core.StageOf(err))
}

func TestPipeline_ProfileOnThreeGenes(t *testing.T) {
	m := &dataset.Matrix{
		GeneIDs: []string{"GeneA", "GeneB", "GeneC"},
		CellIDs: []string{"c1", "c2", "c3", "c4"},
		Counts: [][]int32{
			{1, 1, 1, 1},
			{2, 3, 0, 0},
			{1, 4, 2, 0},
		},
	}
	res, err := newTestPipeline(t, DefaultOptions()).Run(context.Background(), m)
	require.NoError(t, err)
	require.NotNil(t, res.Profile)
	assert.LessOrEqual(t, res.Profile.Min, res.Profile.Median)
	assert.LessOrEqual(t, res.Profile.Median, res.Profile.Max)
	assert.LessOrEqual(t, res.Profile.Q25, res.Profile.Q75)
}

func TestPipeline_TracesStageReports(t *testing.T) {
	fx, err := testkit.GenerateDGE(testkit.DefaultDGEConfig())
	require.NoError(t, err)

	var buf bytes.Buffer
	p, err := NewPipeline(DefaultOptions(), internal.NewLoggerTo(&buf, internal.LogLevelTrace))
	require.NoError(t, err)
	_, err = p.Run(context.Background(), fx.Matrix)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "[TRACE]")
	assert.Contains(t, out, "stage "+core.StageClassify+":")
	assert.Contains(t, out, "stage "+core.StageFilterMin+":")
}

func TestPipeline_MalformedMatrix(t *testing.T) {
	m := scenarioMatrix()
	m.GeneIDs[1] = "GeneA"

	_, err := newTestPipeline(t, DefaultOptions()).Run(context.Background(), m)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrMalformedMatrix))
	assert.Equal(t, apperrors.CodeMalformedMatrix, apperrors.GetCode(err))
}

func TestOptionsValidate(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())

	bad := []Options{
		{MinCellsDetected: 1, ZScoreCutoff: -1},
		{MinCellsDetected: 5, MaxCellsDetected: 5, ZScoreCutoff: -1},
		{MinCellsDetected: 2, ZScoreCutoff: nan()},
	}
	for _, o := range bad {
		_, err := NewPipeline(o, quietLogger())
		require.Error(t, err, "%+v", o)
		assert.Equal(t, apperrors.CodeConfigInvalid, apperrors.GetCode(err))
	}
}

func nan() float64 {
	zero := 0.0
	return zero / zero
}
