package srg

import (
	"context"
	"runtime"

	"srgscan/domain/dataset"

	"golang.org/x/sync/errgroup"
)

// minChunkRows keeps goroutine overhead small relative to the work per chunk.
const minChunkRows = 256

// Aggregate reduces every gene row to its detection count and UMI total.
// Records come back in matrix row order. Rows are reduced in parallel chunks
// bounded by workers (<= 0 means runtime.NumCPU()); the result does not depend
// on the worker count. The matrix is expected to have passed Validate.
func Aggregate(ctx context.Context, m *dataset.Matrix, workers int) ([]dataset.GeneRecord, error) {
	n := m.NumGenes()
	records := make([]dataset.GeneRecord, n)
	if n == 0 {
		return records, nil
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	chunk := (n + workers - 1) / workers
	if chunk < minChunkRows {
		chunk = minChunkRows
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		lo, hi := start, end
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				records[i] = aggregateRow(i, m.GeneIDs[i], m.Counts[i])
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

func aggregateRow(index int, geneID string, row []int32) dataset.GeneRecord {
	rec := dataset.GeneRecord{GeneID: geneID, Index: index}
	for _, v := range row {
		if v != 0 {
			rec.CellsDetected++
			rec.TotalUMI += int64(v)
		}
	}
	return rec
}
