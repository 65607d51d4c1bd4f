package stage

// Report records what one pipeline stage did to the gene population.
// CONTRACT: Processed = Kept + Dropped; stages after the filters drop nothing.
type Report struct {
	Stage      string `json:"stage"`
	Processed  int    `json:"processed"`
	Kept       int    `json:"kept"`
	Dropped    int    `json:"dropped"`
	DurationMs int64  `json:"duration_ms"`
}

// Summary aggregates a run's stage reports.
type Summary struct {
	TotalStages   int   `json:"total_stages"`
	InputGenes    int   `json:"input_genes"`
	FinalGenes    int   `json:"final_genes"`
	TotalDropped  int   `json:"total_dropped"`
	TotalDuration int64 `json:"total_duration_ms"`
}

// Summarize folds reports into a Summary. Input genes are taken from the first
// report and final genes from the last.
func Summarize(reports []Report) Summary {
	var s Summary
	if len(reports) == 0 {
		return s
	}
	s.TotalStages = len(reports)
	s.InputGenes = reports[0].Processed
	s.FinalGenes = reports[len(reports)-1].Kept
	for _, r := range reports {
		s.TotalDropped += r.Dropped
		s.TotalDuration += r.DurationMs
	}
	return s
}
