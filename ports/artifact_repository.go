package ports

import (
	"context"

	"srgscan/domain/dataset"
	"srgscan/domain/run"
)

// Artifact kinds written by a run.
const (
	ArtifactTable    = "table"
	ArtifactHits     = "hits"
	ArtifactManifest = "manifest"
)

// ResultWriter persists the outputs of a completed run. Write methods stage
// an artifact and return the path it will have once committed. Nothing is
// visible at those paths until Commit.
type ResultWriter interface {
	// WriteTable writes the per-gene statistics table in the given order.
	WriteTable(ctx context.Context, records []dataset.GeneRecord, fit dataset.TrendFit, residuals dataset.ResidualStats) (string, error)
	// WriteHits writes one gene id per line, no header, no quoting.
	WriteHits(ctx context.Context, hits []string) (string, error)
	// WriteManifest writes the run manifest as JSON.
	WriteManifest(ctx context.Context, manifest *run.Manifest) (string, error)
	// Commit moves every staged artifact to its final path.
	Commit(ctx context.Context) error
	// Discard drops every artifact staged since the last Commit.
	Discard(ctx context.Context) error
}
