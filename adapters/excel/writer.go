package excel

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"srgscan/domain/dataset"
	"srgscan/domain/run"
	"srgscan/internal"
	apperrors "srgscan/internal/errors"

	"github.com/xuri/excelize/v2"
)

// Output file names inside the output directory.
const (
	TableBaseName = "srg_table"
	HitsFileName  = "hits.txt"
	ManifestName  = "manifest.json"

	genesSheet   = "genes"
	summarySheet = "summary"
)

// TableColumns is the header of the statistics table, one column per
// GeneRecord field.
var TableColumns = []string{
	"gene_id",
	"cells_detected",
	"total_umi",
	"avg_expression",
	"inv_avg_expression",
	"predicted_inv_avg_expression",
	"residual",
	"z_score",
	"lower_tail_p",
	"is_srg",
}

// DataWriter writes run outputs into a directory. Write calls stage each file
// under a temporary name next to its destination. Commit renames the staged
// files into place and Discard removes them, so outputs from an earlier run
// stay untouched until a whole run has been written.
type DataWriter struct {
	dir         string
	tableFormat string
	logger      *internal.Logger

	mu     sync.Mutex
	staged []stagedFile
}

type stagedFile struct {
	tmp   string
	final string
}

// NewDataWriter creates a writer for dir using tableFormat (csv, tsv or xlsx).
func NewDataWriter(dir, tableFormat string, logger *internal.Logger) (*DataWriter, error) {
	switch tableFormat {
	case FormatCSV, FormatTSV, FormatXLSX:
	default:
		return nil, apperrors.ConfigInvalid("unsupported table format: " + tableFormat)
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &DataWriter{dir: dir, tableFormat: tableFormat, logger: logger.With("DataWriter")}, nil
}

// TablePath returns the path of the statistics table.
func (w *DataWriter) TablePath() string {
	return filepath.Join(w.dir, TableBaseName+"."+w.tableFormat)
}

// WriteTable stages the per-gene statistics table.
func (w *DataWriter) WriteTable(ctx context.Context, records []dataset.GeneRecord, fit dataset.TrendFit, residuals dataset.ResidualStats) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := w.TablePath()

	var err error
	switch w.tableFormat {
	case FormatXLSX:
		err = w.writeExcelTable(path, records, fit, residuals)
	case FormatTSV:
		err = w.stage(path, func(out io.Writer) error { return writeDelimitedTable(out, records, '\t') })
	default:
		err = w.stage(path, func(out io.Writer) error { return writeDelimitedTable(out, records, ',') })
	}
	if err != nil {
		return "", apperrors.IOError("failed to write statistics table", err)
	}
	w.logger.Debug("staged %d gene rows for %s", len(records), path)
	return path, nil
}

// WriteHits stages hits.txt: one gene id per line, no header, no quoting.
func (w *DataWriter) WriteHits(ctx context.Context, hits []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(w.dir, HitsFileName)
	err := w.stage(path, func(out io.Writer) error {
		bw := bufio.NewWriter(out)
		for _, h := range hits {
			if _, err := bw.WriteString(h + "\n"); err != nil {
				return err
			}
		}
		return bw.Flush()
	})
	if err != nil {
		return "", apperrors.IOError("failed to write hits", err)
	}
	w.logger.Debug("staged %d hits for %s", len(hits), path)
	return path, nil
}

// WriteManifest stages the run manifest as indented JSON.
func (w *DataWriter) WriteManifest(ctx context.Context, manifest *run.Manifest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(w.dir, ManifestName)
	err := w.stage(path, func(out io.Writer) error {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(manifest)
	})
	if err != nil {
		return "", apperrors.IOError("failed to write manifest", err)
	}
	return path, nil
}

// Commit renames every staged file into place in the order it was staged.
// Files not yet renamed when a rename fails stay staged for Discard.
func (w *DataWriter) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	for len(w.staged) > 0 {
		sf := w.staged[0]
		if err := os.Rename(sf.tmp, sf.final); err != nil {
			return apperrors.IOError("failed to commit "+sf.final, err)
		}
		w.staged = w.staged[1:]
		w.logger.Info("wrote %s", sf.final)
	}
	w.staged = nil
	return nil
}

// Discard removes every staged file. Committed files are left alone.
func (w *DataWriter) Discard(_ context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	for _, sf := range w.staged {
		if err := os.Remove(sf.tmp); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = apperrors.IOError("failed to discard staged "+sf.final, err)
		}
	}
	w.staged = nil
	return firstErr
}

func tableRow(r dataset.GeneRecord) []string {
	return []string{
		r.GeneID,
		strconv.Itoa(r.CellsDetected),
		strconv.FormatInt(r.TotalUMI, 10),
		formatFloat(r.AvgExpression),
		formatFloat(r.InvAvgExpression),
		formatFloat(r.PredictedInvAvgExpression),
		formatFloat(r.Residual),
		formatFloat(r.ZScore),
		formatFloat(r.LowerTailP),
		strconv.FormatBool(r.IsSRG),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func writeDelimitedTable(out io.Writer, records []dataset.GeneRecord, comma rune) error {
	cw := csv.NewWriter(out)
	cw.Comma = comma
	if err := cw.Write(TableColumns); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(tableRow(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (w *DataWriter) writeExcelTable(path string, records []dataset.GeneRecord, fit dataset.TrendFit, residuals dataset.ResidualStats) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), genesSheet); err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(genesSheet)
	if err != nil {
		return err
	}

	header := make([]interface{}, len(TableColumns))
	for i, c := range TableColumns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}
	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			r.GeneID, r.CellsDetected, r.TotalUMI, r.AvgExpression, r.InvAvgExpression,
			r.PredictedInvAvgExpression, r.Residual, r.ZScore, r.LowerTailP, r.IsSRG,
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}
	summary := [][]interface{}{
		{"intercept", fit.Intercept},
		{"slope", fit.Slope},
		{"r_squared", fit.RSquared},
		{"genes_fitted", fit.N},
		{"residual_mean", residuals.Mean},
		{"residual_std_dev", residuals.StdDev},
	}
	for i, row := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}

	return w.stage(path, func(out io.Writer) error {
		_, err := f.WriteTo(out)
		return err
	})
}

// stage streams into a temporary file in the target directory and records it
// for Commit. Staging the same path again replaces the earlier staged file.
func (w *DataWriter) stage(path string, fill func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if err := fill(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for i, sf := range w.staged {
		if sf.final == path {
			os.Remove(sf.tmp)
			w.staged = append(w.staged[:i], w.staged[i+1:]...)
			break
		}
	}
	w.staged = append(w.staged, stagedFile{tmp: tmpName, final: path})
	return nil
}
