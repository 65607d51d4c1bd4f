package dataset

// GeneRecord holds the per-gene statistics accumulated by the pipeline.
// Stages fill fields in order and return new slices; a record is never
// mutated after it has been handed to the next stage.
type GeneRecord struct {
	GeneID string `json:"gene_id"`
	Index  int    `json:"index"` // row in the input matrix

	// Aggregator
	CellsDetected int   `json:"cells_detected"`
	TotalUMI      int64 `json:"total_umi"`

	// ExpressionMetric
	AvgExpression    float64 `json:"avg_expression"`
	InvAvgExpression float64 `json:"inv_avg_expression"`

	// TrendModel
	PredictedInvAvgExpression float64 `json:"predicted_inv_avg_expression"`
	Residual                  float64 `json:"residual"`

	// Classifier
	ZScore     float64 `json:"z_score"`
	LowerTailP float64 `json:"lower_tail_p"` // uncorrected, informational
	IsSRG      bool    `json:"is_srg"`
}

// TrendFit is the ordinary-least-squares line of inverse average expression
// on detection count, shared read-only by all records once fitted.
type TrendFit struct {
	Intercept float64 `json:"intercept"`
	Slope     float64 `json:"slope"`
	RSquared  float64 `json:"r_squared"`
	N         int     `json:"n"`
}

// Predict evaluates the fitted line at a detection count.
func (f TrendFit) Predict(cellsDetected int) float64 {
	return f.Intercept + f.Slope*float64(cellsDetected)
}

// ResidualStats summarizes the residual column.
type ResidualStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"` // population (divide by N)
	N      int     `json:"n"`
}

// ResidualProfile describes the shape of the residual distribution. Z-scores
// assume it is roughly normal; NormalityP is the Jarque-Bera p-value.
type ResidualProfile struct {
	Min            float64 `json:"min"`
	Max            float64 `json:"max"`
	Median         float64 `json:"median"`
	Q25            float64 `json:"q25"`
	Q75            float64 `json:"q75"`
	Skewness       float64 `json:"skewness"`
	ExcessKurtosis float64 `json:"excess_kurtosis"`
	JarqueBera     float64 `json:"jarque_bera"`
	NormalityP     float64 `json:"normality_p"`
	IQROutliers    int     `json:"iqr_outliers"`
}

// Clone returns a copy of the record slice so stages never share backing arrays.
func Clone(records []GeneRecord) []GeneRecord {
	out := make([]GeneRecord, len(records))
	copy(out, records)
	return out
}

// GeneIDs returns the ids of records in order.
func GeneIDs(records []GeneRecord) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.GeneID
	}
	return ids
}
