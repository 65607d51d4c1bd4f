package testkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDGE_Deterministic(t *testing.T) {
	cfg := DefaultDGEConfig()
	cfg.Genes = 50
	cfg.Cells = 60

	a, err := GenerateDGE(cfg)
	require.NoError(t, err)
	b, err := GenerateDGE(cfg)
	require.NoError(t, err)

	assert.Equal(t, a.Matrix.Counts, b.Matrix.Counts)
	assert.Equal(t, a.Planted, b.Planted)
	require.NoError(t, a.Matrix.Validate())

	cfg.Seed = 7
	c, err := GenerateDGE(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, a.Matrix.Counts, c.Matrix.Counts)
}

func TestGenerateDGE_PlantsEveryNth(t *testing.T) {
	cfg := DefaultDGEConfig()
	cfg.Genes = 30
	cfg.Cells = 50

	fx, err := GenerateDGE(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"Gene0010", "Gene0020", "Gene0030"}, fx.Planted)
	assert.True(t, fx.IsPlanted("Gene0020"))
	assert.False(t, fx.IsPlanted("Gene0001"))
	for _, r := range fx.Rates {
		assert.GreaterOrEqual(t, r, cfg.MinRate)
		assert.LessOrEqual(t, r, cfg.MaxRate)
	}
}

func TestGenerateDGE_RejectsBadConfig(t *testing.T) {
	cfg := DefaultDGEConfig()
	cfg.Cells = 1
	_, err := GenerateDGE(cfg)
	assert.Error(t, err)

	cfg = DefaultDGEConfig()
	cfg.RestrictedFraction = 1.5
	_, err = GenerateDGE(cfg)
	assert.Error(t, err)
}

func TestLinearTrendRecords_NoiseFree(t *testing.T) {
	recs := LinearTrendRecords(5, 10, 2.0, -0.001, 0, 1)
	require.Len(t, recs, 5)
	assert.Equal(t, 10, recs[0].CellsDetected)
	assert.InDelta(t, 2.0-0.001*14, recs[4].InvAvgExpression, 1e-12)
}
