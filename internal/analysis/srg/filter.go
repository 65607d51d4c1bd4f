package srg

import "srgscan/domain/dataset"

// DefaultMinCellsDetected is the smallest detection count that can support a
// meaningful average; genes seen in a single cell are always dropped.
const DefaultMinCellsDetected = 2

// FilterMinDetected keeps records with CellsDetected >= minCells, preserving
// order. minCells below DefaultMinCellsDetected is raised to it.
func FilterMinDetected(records []dataset.GeneRecord, minCells int) []dataset.GeneRecord {
	if minCells < DefaultMinCellsDetected {
		minCells = DefaultMinCellsDetected
	}
	out := make([]dataset.GeneRecord, 0, len(records))
	for _, r := range records {
		if r.CellsDetected >= minCells {
			out = append(out, r)
		}
	}
	return out
}

// FilterMaxDetected drops records with CellsDetected >= threshold. Genes
// detected in nearly every cell saturate and bend the linear trend. A
// threshold <= 0 is treated as unset and keeps everything.
func FilterMaxDetected(records []dataset.GeneRecord, threshold int) []dataset.GeneRecord {
	if threshold <= 0 {
		return dataset.Clone(records)
	}
	out := make([]dataset.GeneRecord, 0, len(records))
	for _, r := range records {
		if r.CellsDetected < threshold {
			out = append(out, r)
		}
	}
	return out
}
