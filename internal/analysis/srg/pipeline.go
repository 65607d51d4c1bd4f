// Package srg classifies Spatially Restricted Genes: genes detected in fewer
// cells than their expression level predicts.
//
// The pipeline runs strictly forward:
//
//	Aggregate -> FilterMinDetected -> FilterMaxDetected -> ComputeExpression
//	          -> FitTrend/ApplyTrend -> Classify
//
// Each stage returns a new record slice. FitTrend and Classify reduce over the
// whole surviving population; everything before them is per-gene.
package srg

import (
	"context"
	"fmt"
	"math"
	"time"

	"srgscan/domain/core"
	"srgscan/domain/dataset"
	"srgscan/domain/stage"
	"srgscan/internal"
	"srgscan/internal/errors"
	"srgscan/internal/profiling"
)

// Options configures a pipeline run.
type Options struct {
	MinCellsDetected int     `json:"min_cells_detected"`
	MaxCellsDetected int     `json:"max_cells_detected"` // <= 0: no cap
	ZScoreCutoff     float64 `json:"z_score_cutoff"`
	CenterResiduals  bool    `json:"center_residuals"`
	AutoMaxCells     bool    `json:"auto_max_cells"` // use the knee suggestion when MaxCellsDetected is unset
	Workers          int     `json:"workers"`        // aggregation parallelism, <= 0: NumCPU
}

// DefaultOptions returns min 2, no max cap, cutoff -1.
func DefaultOptions() Options {
	return Options{
		MinCellsDetected: DefaultMinCellsDetected,
		ZScoreCutoff:     DefaultZScoreCutoff,
	}
}

// Validate rejects option combinations the pipeline cannot honour.
func (o Options) Validate() error {
	if o.MinCellsDetected < DefaultMinCellsDetected {
		return errors.ConfigInvalid(fmt.Sprintf("min_cells_detected must be >= %d, got %d", DefaultMinCellsDetected, o.MinCellsDetected))
	}
	if o.MaxCellsDetected > 0 && o.MaxCellsDetected <= o.MinCellsDetected {
		return errors.ConfigInvalid(fmt.Sprintf("max_cells_detected (%d) must exceed min_cells_detected (%d)", o.MaxCellsDetected, o.MinCellsDetected))
	}
	if math.IsNaN(o.ZScoreCutoff) || math.IsInf(o.ZScoreCutoff, 0) {
		return errors.ConfigInvalid("z_score_cutoff must be finite")
	}
	return nil
}

// Params flattens the options for hashing into a run fingerprint.
func (o Options) Params() map[string]interface{} {
	return map[string]interface{}{
		"min_cells_detected": o.MinCellsDetected,
		"max_cells_detected": o.MaxCellsDetected,
		"z_score_cutoff":     o.ZScoreCutoff,
		"center_residuals":   o.CenterResiduals,
		"auto_max_cells":     o.AutoMaxCells,
	}
}

// Result is the output of a completed run.
type Result struct {
	Records   []dataset.GeneRecord  `json:"records"` // ascending Z-score
	Hits      []string              `json:"hits"`
	Fit       dataset.TrendFit      `json:"fit"`
	Residuals dataset.ResidualStats `json:"residuals"`
	Stages    []stage.Report        `json:"stages"`

	// Profile is nil when the residual shape could not be described.
	Profile *dataset.ResidualProfile `json:"residual_profile,omitempty"`

	// MaxCellsApplied is the max threshold actually used (0 when uncapped).
	MaxCellsApplied int             `json:"max_cells_applied"`
	Knee            *KneeSuggestion `json:"knee,omitempty"`
}

// Pipeline runs the SRG classification over a loaded matrix.
type Pipeline struct {
	opts   Options
	logger *internal.Logger
}

// NewPipeline validates opts and returns a pipeline. A nil logger uses the
// package default.
func NewPipeline(opts Options, logger *internal.Logger) (*Pipeline, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Pipeline{opts: opts, logger: logger.With("SRG")}, nil
}

// Options returns the pipeline configuration.
func (p *Pipeline) Options() Options { return p.opts }

// Run executes every stage. Any failure aborts the run and no partial result
// is returned.
func (p *Pipeline) Run(ctx context.Context, m *dataset.Matrix) (*Result, error) {
	res := &Result{}
	runStart := time.Now()

	if err := m.Validate(); err != nil {
		return nil, err
	}
	p.logger.Info("matrix: %d genes x %d cells", m.NumGenes(), m.NumCells())

	start := time.Now()
	records, err := Aggregate(ctx, m, p.opts.Workers)
	if err != nil {
		return nil, &core.StageError{Stage: core.StageAggregate, Err: err}
	}
	res.addStage(core.StageAggregate, m.NumGenes(), len(records), start)

	start = time.Now()
	before := len(records)
	records = FilterMinDetected(records, p.opts.MinCellsDetected)
	res.addStage(core.StageFilterMin, before, len(records), start)
	p.logger.Info("min-detection filter (>= %d cells): kept %d of %d genes", p.opts.MinCellsDetected, len(records), before)

	maxCells := p.opts.MaxCellsDetected
	if maxCells <= 0 && p.opts.AutoMaxCells {
		knee, err := p.suggestMax(records)
		if err != nil {
			return nil, err
		}
		res.Knee = &knee
		p.logger.Info("knee detection suggests max threshold %d (distance %.3f over %d points)", knee.Threshold, knee.Distance, knee.Points)
		if knee.Threshold > p.opts.MinCellsDetected {
			maxCells = knee.Threshold
		} else {
			p.logger.Warn("ignoring knee threshold %d: not above min_cells_detected %d", knee.Threshold, p.opts.MinCellsDetected)
		}
	}

	start = time.Now()
	before = len(records)
	records = FilterMaxDetected(records, maxCells)
	res.MaxCellsApplied = maxCells
	res.addStage(core.StageFilterMax, before, len(records), start)
	if maxCells > 0 {
		p.logger.Info("max-detection filter (< %d cells): kept %d of %d genes", maxCells, len(records), before)
	}

	start = time.Now()
	records, err = ComputeExpression(records)
	if err != nil {
		return nil, err
	}
	res.addStage(core.StageExpression, len(records), len(records), start)

	start = time.Now()
	fit, err := FitTrend(records)
	if err != nil {
		return nil, err
	}
	records = ApplyTrend(records, fit)
	res.Fit = fit
	res.addStage(core.StageTrend, len(records), len(records), start)
	p.logger.Info("trend: inv_avg = %.6g + %.6g * cells_detected (r2=%.4f, n=%d)", fit.Intercept, fit.Slope, fit.RSquared, fit.N)

	start = time.Now()
	records, summary, err := Classify(records, ClassifyOptions{
		Cutoff:          p.opts.ZScoreCutoff,
		CenterResiduals: p.opts.CenterResiduals,
	})
	if err != nil {
		return nil, err
	}
	res.Records = records
	res.Residuals = summary
	res.Hits = Hits(records)
	res.addStage(core.StageClassify, len(records), len(records), start)
	res.Profile = p.profileResiduals(records)

	p.logger.Info("classified %d SRGs among %d genes (residual mean %.4g, sd %.4g)", len(res.Hits), len(records), summary.Mean, summary.StdDev)
	for _, s := range res.Stages {
		p.logger.Trace("stage %s: processed %d, kept %d, dropped %d (%dms)", s.Stage, s.Processed, s.Kept, s.Dropped, s.DurationMs)
	}
	p.logger.Debug("run completed in %s", time.Since(runStart))
	return res, nil
}

// suggestMax runs the knee search on a metric-bearing copy of the population.
func (p *Pipeline) suggestMax(records []dataset.GeneRecord) (KneeSuggestion, error) {
	withMetric, err := ComputeExpression(records)
	if err != nil {
		return KneeSuggestion{}, err
	}
	return SuggestMaxDetected(withMetric)
}

// profileResiduals describes the residual distribution the Z-scores were
// computed from. Failure here never fails the run.
func (p *Pipeline) profileResiduals(records []dataset.GeneRecord) *dataset.ResidualProfile {
	residuals := make([]float64, len(records))
	for i, r := range records {
		residuals[i] = r.Residual
	}
	profile, err := profiling.ProfileResiduals(residuals)
	if err != nil {
		p.logger.Warn("residual profile unavailable: %v", err)
		return nil
	}
	if !profiling.IsNormal(profile) {
		p.logger.Info("residuals depart from normality (skew %.3f, excess kurtosis %.3f, Jarque-Bera p=%.3g); lower-tail p-values are approximate",
			profile.Skewness, profile.ExcessKurtosis, profile.NormalityP)
	}
	return &profile
}

func (r *Result) addStage(name string, processed, kept int, start time.Time) {
	r.Stages = append(r.Stages, stage.Report{
		Stage:      name,
		Processed:  processed,
		Kept:       kept,
		Dropped:    processed - kept,
		DurationMs: time.Since(start).Milliseconds(),
	})
}
