package run

import (
	"srgscan/domain/core"
	"srgscan/domain/dataset"
	"srgscan/domain/stage"
)

// Manifest is the audit record written next to a run's outputs.
type Manifest struct {
	RunID       core.RunID             `json:"run_id"`
	CodeVersion string                 `json:"code_version"`
	Fingerprint RunFingerprint         `json:"fingerprint"`
	InputPath   string                 `json:"input_path"`
	Genes       int                    `json:"genes"`
	Cells       int                    `json:"cells"`
	Params      map[string]interface{} `json:"params"`

	Stages  []stage.Report `json:"stages"`
	Summary stage.Summary  `json:"summary"`

	Fit             dataset.TrendFit         `json:"fit"`
	Residuals       dataset.ResidualStats    `json:"residuals"`
	ResidualProfile *dataset.ResidualProfile `json:"residual_profile,omitempty"`
	MaxCellsApplied int                      `json:"max_cells_applied"`
	KneeThreshold   int                      `json:"knee_threshold,omitempty"`
	HitCount        int                      `json:"hit_count"`

	Outputs   map[string]string `json:"outputs,omitempty"` // artifact kind -> path
	CreatedAt core.Timestamp    `json:"created_at"`
}

// NewManifest starts a manifest for a matrix and parameter set.
func NewManifest(inputPath string, m *dataset.Matrix, params map[string]interface{}, codeVersion string) *Manifest {
	return &Manifest{
		RunID:       core.NewRunID(),
		CodeVersion: codeVersion,
		Fingerprint: NewRunFingerprint(m.Fingerprint(), core.ComputeConfigHash(params), codeVersion),
		InputPath:   inputPath,
		Genes:       m.NumGenes(),
		Cells:       m.NumCells(),
		Params:      params,
		Outputs:     make(map[string]string),
		CreatedAt:   core.Now(),
	}
}

// RecordStages stores the stage reports and their summary.
func (r *Manifest) RecordStages(reports []stage.Report) {
	r.Stages = append([]stage.Report(nil), reports...)
	r.Summary = stage.Summarize(reports)
}

// Validate checks if the manifest is complete
func (r *Manifest) Validate() error {
	if _, err := core.ParseRunID(string(r.RunID)); err != nil {
		return core.NewValidationError("run_manifest", "run_id must be a UUID")
	}
	if core.Hash(r.Fingerprint.InputHash).IsEmpty() {
		return core.NewValidationError("run_manifest", "input_hash cannot be empty")
	}
	if r.CodeVersion == "" {
		return core.NewValidationError("run_manifest", "code_version cannot be empty")
	}
	if r.CreatedAt.IsZero() {
		return core.NewValidationError("run_manifest", "created_at cannot be zero")
	}
	return nil
}
