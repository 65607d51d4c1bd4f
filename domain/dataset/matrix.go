package dataset

import (
	"fmt"

	"srgscan/domain/core"
)

// Matrix is a digital gene-expression (DGE) matrix: one row of UMI counts per
// gene, one column per cell. Counts[i] is aligned to CellIDs.
type Matrix struct {
	GeneIDs []string  `json:"gene_ids"`
	CellIDs []string  `json:"cell_ids"`
	Counts  [][]int32 `json:"counts"`
}

// NumGenes returns the number of gene rows
func (m *Matrix) NumGenes() int { return len(m.GeneIDs) }

// NumCells returns the number of cell columns
func (m *Matrix) NumCells() int { return len(m.CellIDs) }

// Validate checks the input contract: unique non-empty gene ids, at least two
// cells, rectangular rows and non-negative counts.
func (m *Matrix) Validate() error {
	if m == nil {
		return core.NewMalformedMatrixError("", "", "matrix is nil")
	}
	if len(m.CellIDs) < 2 {
		return core.NewMalformedMatrixError("", "cell_ids", fmt.Sprintf("need at least 2 cells, got %d", len(m.CellIDs)))
	}
	if len(m.Counts) != len(m.GeneIDs) {
		return core.NewMalformedMatrixError("", "counts",
			fmt.Sprintf("%d count rows for %d genes", len(m.Counts), len(m.GeneIDs)))
	}

	seen := make(map[string]int, len(m.GeneIDs))
	for i, g := range m.GeneIDs {
		if g == "" {
			return core.NewMalformedMatrixError("", "gene_id", fmt.Sprintf("empty gene id at row %d", i))
		}
		if prev, dup := seen[g]; dup {
			return core.NewMalformedMatrixError(g, "gene_id", fmt.Sprintf("duplicate of row %d at row %d", prev, i))
		}
		seen[g] = i

		row := m.Counts[i]
		if len(row) != len(m.CellIDs) {
			return core.NewMalformedMatrixError(g, "counts",
				fmt.Sprintf("row has %d values, expected %d", len(row), len(m.CellIDs)))
		}
		for j, v := range row {
			if v < 0 {
				return core.NewMalformedMatrixError(g, "counts",
					fmt.Sprintf("negative count %d at cell %s", v, m.CellIDs[j]))
			}
		}
	}
	return nil
}

// Fingerprint returns the content hash of the matrix.
func (m *Matrix) Fingerprint() core.InputHash {
	return core.ComputeInputHash(m.GeneIDs, m.CellIDs, m.Counts)
}
