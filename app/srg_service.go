package app

import (
	"context"
	"fmt"
	"time"

	"srgscan/domain/core"
	"srgscan/domain/run"
	"srgscan/internal"
	"srgscan/internal/analysis/srg"
	"srgscan/internal/errors"
	"srgscan/ports"
)

// ClassifyRequest defines the inputs for one classification run
type ClassifyRequest struct {
	InputPath string
	Options   srg.Options
}

// ClassifyResult contains the complete output of a run
type ClassifyResult struct {
	RunID     core.RunID        `json:"run_id"`
	Result    *srg.Result       `json:"result"`
	Manifest  *run.Manifest     `json:"manifest"`
	Outputs   map[string]string `json:"outputs"`
	RuntimeMs int64             `json:"runtime_ms"`
}

// SRGService reads a matrix, runs the classification pipeline and persists
// the table, hit list and manifest. Nothing is written unless the pipeline
// succeeds. The three artifacts are staged and committed together, so a
// failed write leaves any earlier run's outputs in place.
type SRGService struct {
	reader      ports.MatrixReader
	writer      ports.ResultWriter
	codeVersion string
	logger      *internal.Logger
}

// NewSRGService creates the service
func NewSRGService(reader ports.MatrixReader, writer ports.ResultWriter, codeVersion string, logger *internal.Logger) *SRGService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &SRGService{
		reader:      reader,
		writer:      writer,
		codeVersion: codeVersion,
		logger:      logger.With("SRGService"),
	}
}

// Classify executes a full run.
func (s *SRGService) Classify(ctx context.Context, req ClassifyRequest) (*ClassifyResult, error) {
	startTime := time.Now()

	pipeline, err := srg.NewPipeline(req.Options, s.logger)
	if err != nil {
		return nil, err
	}

	m, err := s.reader.ReadMatrix(ctx, req.InputPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", req.InputPath)
	}

	result, err := pipeline.Run(ctx, m)
	if err != nil {
		s.logger.Error("pipeline failed at stage %q: %v", core.StageOf(err), err)
		return nil, errors.Wrap(err, "classification failed")
	}

	manifest := run.NewManifest(req.InputPath, m, req.Options.Params(), s.codeVersion)
	manifest.RecordStages(result.Stages)
	manifest.Fit = result.Fit
	manifest.Residuals = result.Residuals
	manifest.ResidualProfile = result.Profile
	manifest.MaxCellsApplied = result.MaxCellsApplied
	manifest.HitCount = len(result.Hits)
	if result.Knee != nil {
		manifest.KneeThreshold = result.Knee.Threshold
	}
	if err := manifest.Validate(); err != nil {
		return nil, errors.Wrap(err, "incomplete run manifest")
	}

	if err := s.persist(ctx, result, manifest); err != nil {
		return nil, err
	}

	runtime := time.Since(startTime)
	s.logger.Info("run %s (fingerprint %s): %d hits, outputs in %s",
		manifest.RunID, manifest.Fingerprint.Fingerprint.Short(), len(result.Hits), manifest.Outputs[ports.ArtifactTable])
	return &ClassifyResult{
		RunID:     manifest.RunID,
		Result:    result,
		Manifest:  manifest,
		Outputs:   manifest.Outputs,
		RuntimeMs: runtime.Milliseconds(),
	}, nil
}

// persist stages table, hits and manifest in that order and commits them
// once all three are staged. On failure the staged artifacts are discarded.
func (s *SRGService) persist(ctx context.Context, result *srg.Result, manifest *run.Manifest) error {
	discard := func(cause error) error {
		if err := s.writer.Discard(ctx); err != nil {
			s.logger.Warn("failed to discard staged outputs: %v", err)
		}
		return cause
	}

	path, err := s.writer.WriteTable(ctx, result.Records, result.Fit, result.Residuals)
	if err != nil {
		return discard(err)
	}
	manifest.Outputs[ports.ArtifactTable] = path

	path, err = s.writer.WriteHits(ctx, result.Hits)
	if err != nil {
		return discard(err)
	}
	manifest.Outputs[ports.ArtifactHits] = path

	path, err = s.writer.WriteManifest(ctx, manifest)
	if err != nil {
		return discard(err)
	}
	manifest.Outputs[ports.ArtifactManifest] = path

	if err := s.writer.Commit(ctx); err != nil {
		return discard(err)
	}
	return nil
}

// KneeRequest asks for a max-detection threshold suggestion
type KneeRequest struct {
	InputPath        string
	MinCellsDetected int
	Workers          int
}

// SuggestKnee reads the matrix and proposes a max-detection threshold from
// the genes surviving the min-detection filter. Nothing is written.
func (s *SRGService) SuggestKnee(ctx context.Context, req KneeRequest) (srg.KneeSuggestion, error) {
	opts := srg.DefaultOptions()
	opts.MinCellsDetected = req.MinCellsDetected
	opts.Workers = req.Workers
	if err := opts.Validate(); err != nil {
		return srg.KneeSuggestion{}, err
	}

	m, err := s.reader.ReadMatrix(ctx, req.InputPath)
	if err != nil {
		return srg.KneeSuggestion{}, errors.Wrapf(err, "failed to read %s", req.InputPath)
	}
	if err := m.Validate(); err != nil {
		return srg.KneeSuggestion{}, err
	}

	records, err := srg.Aggregate(ctx, m, opts.Workers)
	if err != nil {
		return srg.KneeSuggestion{}, err
	}
	records = srg.FilterMinDetected(records, opts.MinCellsDetected)
	records, err = srg.ComputeExpression(records)
	if err != nil {
		return srg.KneeSuggestion{}, err
	}

	knee, err := srg.SuggestMaxDetected(records)
	if err != nil {
		return srg.KneeSuggestion{}, errors.Wrap(err, "knee detection failed")
	}
	s.logger.Info("suggested max threshold %d over %d detection counts", knee.Threshold, knee.Points)
	return knee, nil
}

// Describe renders a one-line summary of a result for terminal output.
func Describe(res *ClassifyResult) string {
	return fmt.Sprintf("%d of %d genes classified as SRG (run %s, %dms)",
		len(res.Result.Hits), len(res.Result.Records), res.RunID, res.RuntimeMs)
}
