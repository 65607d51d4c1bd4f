package srg

import (
	"fmt"
	"math"

	"srgscan/domain/core"
	"srgscan/domain/dataset"
)

// ComputeExpression derives average and inverse-average expression for every
// record. A detected gene with no UMIs breaks the count contract and is
// rejected rather than producing an infinite inverse.
func ComputeExpression(records []dataset.GeneRecord) ([]dataset.GeneRecord, error) {
	out := dataset.Clone(records)
	for i := range out {
		r := &out[i]
		if r.CellsDetected < 1 {
			return nil, core.NewInvalidExpressionError(r.GeneID, "cells_detected",
				fmt.Sprintf("cells_detected is %d", r.CellsDetected))
		}
		if r.TotalUMI <= 0 {
			return nil, core.NewInvalidExpressionError(r.GeneID, "total_umi",
				fmt.Sprintf("total_umi is %d with %d cells detected", r.TotalUMI, r.CellsDetected))
		}

		r.AvgExpression = float64(r.TotalUMI) / float64(r.CellsDetected)
		r.InvAvgExpression = 1 / r.AvgExpression
		if math.IsInf(r.InvAvgExpression, 0) || math.IsNaN(r.InvAvgExpression) {
			return nil, core.NewInvalidExpressionError(r.GeneID, "inv_avg_expression", "not finite")
		}
	}
	return out, nil
}
