package srg

import (
	"errors"
	"testing"

	"srgscan/domain/core"
	"srgscan/domain/dataset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeExpression(t *testing.T) {
	in := []dataset.GeneRecord{
		{GeneID: "GeneA", CellsDetected: 4, TotalUMI: 4},
		{GeneID: "GeneD", CellsDetected: 3, TotalUMI: 11},
	}

	out, err := ComputeExpression(in)
	require.NoError(t, err)

	assert.Equal(t, 1.0, out[0].AvgExpression)
	assert.Equal(t, 1.0, out[0].InvAvgExpression)
	assert.InDelta(t, 11.0/3.0, out[1].AvgExpression, 1e-12)
	assert.Equal(t, 1/out[1].AvgExpression, out[1].InvAvgExpression)

	assert.Zero(t, in[0].AvgExpression, "input must not be modified")
}

func TestComputeExpression_RejectsDetectedWithoutUMI(t *testing.T) {
	_, err := ComputeExpression([]dataset.GeneRecord{
		{GeneID: "ok", CellsDetected: 2, TotalUMI: 3},
		{GeneID: "broken", CellsDetected: 2, TotalUMI: 0},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidExpression))

	var se *core.StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, core.StageExpression, se.Stage)
	assert.Equal(t, "broken", se.GeneID)
	assert.Equal(t, "total_umi", se.Field)
}

func TestComputeExpression_RejectsUndetected(t *testing.T) {
	_, err := ComputeExpression([]dataset.GeneRecord{{GeneID: "z"}})
	assert.ErrorIs(t, err, core.ErrInvalidExpression)
}
