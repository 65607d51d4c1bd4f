package ports

import (
	"context"

	"srgscan/domain/dataset"
)

// MatrixReader loads a gene x cell count table into memory.
// Implementations report unparsable cells as core.ErrMalformedMatrix.
type MatrixReader interface {
	ReadMatrix(ctx context.Context, path string) (*dataset.Matrix, error)
}
