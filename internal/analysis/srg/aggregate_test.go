package srg

import (
	"context"
	"testing"

	"srgscan/domain/dataset"
	"srgscan/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioMatrix() *dataset.Matrix {
	return &dataset.Matrix{
		GeneIDs: []string{"GeneA", "GeneB", "GeneC", "GeneZ"},
		CellIDs: []string{"c1", "c2", "c3", "c4"},
		Counts: [][]int32{
			{1, 1, 1, 1},
			{0, 0, 0, 2},
			{5, 0, 0, 0},
			{0, 0, 0, 0},
		},
	}
}

func TestAggregate_HandComputed(t *testing.T) {
	m := scenarioMatrix()
	m.GeneIDs = append(m.GeneIDs, "GeneD")
	m.Counts = append(m.Counts, []int32{3, 0, 7, 1})

	recs, err := Aggregate(context.Background(), m, 1)
	require.NoError(t, err)
	require.Len(t, recs, 5)

	want := []struct {
		id    string
		cells int
		total int64
	}{
		{"GeneA", 4, 4},
		{"GeneB", 1, 2},
		{"GeneC", 1, 5},
		{"GeneZ", 0, 0},
		{"GeneD", 3, 11},
	}
	for i, w := range want {
		assert.Equal(t, w.id, recs[i].GeneID)
		assert.Equal(t, i, recs[i].Index)
		assert.Equal(t, w.cells, recs[i].CellsDetected, w.id)
		assert.Equal(t, w.total, recs[i].TotalUMI, w.id)
	}
}

func TestAggregate_NoUMIMeansNoDetection(t *testing.T) {
	fx, err := testkit.GenerateDGE(testkit.DefaultDGEConfig())
	require.NoError(t, err)

	recs, err := Aggregate(context.Background(), fx.Matrix, 4)
	require.NoError(t, err)
	for _, r := range recs {
		if r.TotalUMI == 0 {
			assert.Zero(t, r.CellsDetected, r.GeneID)
		}
		assert.LessOrEqual(t, int64(r.CellsDetected), r.TotalUMI, r.GeneID)
	}
}

func TestAggregate_WorkerCountDoesNotChangeResult(t *testing.T) {
	cfg := testkit.DefaultDGEConfig()
	cfg.Genes = 1000
	cfg.Cells = 30
	fx, err := testkit.GenerateDGE(cfg)
	require.NoError(t, err)

	serial, err := Aggregate(context.Background(), fx.Matrix, 1)
	require.NoError(t, err)
	for _, workers := range []int{0, 2, 3, 16} {
		parallel, err := Aggregate(context.Background(), fx.Matrix, workers)
		require.NoError(t, err)
		assert.Equal(t, serial, parallel, "workers=%d", workers)
	}
}

func TestAggregate_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Aggregate(ctx, scenarioMatrix(), 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAggregate_Empty(t *testing.T) {
	recs, err := Aggregate(context.Background(), &dataset.Matrix{CellIDs: []string{"a", "b"}}, 2)
	require.NoError(t, err)
	assert.Empty(t, recs)
}
