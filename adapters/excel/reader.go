package excel

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"srgscan/domain/core"
	"srgscan/domain/dataset"
	"srgscan/internal"
	apperrors "srgscan/internal/errors"

	"github.com/xuri/excelize/v2"
)

// DataReader reads DGE count matrices from CSV, TSV or Excel files. The first
// row holds cell ids after a label cell; every following row is a gene id
// followed by its counts.
type DataReader struct {
	logger *internal.Logger
}

// NewDataReader creates a reader logging through logger (nil: default logger).
func NewDataReader(logger *internal.Logger) *DataReader {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &DataReader{logger: logger.With("DataReader")}
}

// ReadMatrix loads the matrix at path.
func (r *DataReader) ReadMatrix(ctx context.Context, path string) (*dataset.Matrix, error) {
	format, gzipped, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, apperrors.IOError("matrix file not readable: "+path, err)
	}

	start := time.Now()
	var m *dataset.Matrix
	switch format {
	case FormatXLSX:
		m, err = r.readExcel(ctx, path)
	default:
		comma := ','
		if format == FormatTSV {
			comma = '\t'
		}
		m, err = r.readDelimited(ctx, path, comma, gzipped)
	}
	if err != nil {
		return nil, err
	}

	r.logger.Info("%s matrix read in %.2fms (%d genes, %d cells)",
		strings.ToUpper(format), float64(time.Since(start).Nanoseconds())/1e6, m.NumGenes(), m.NumCells())
	return m, nil
}

func (r *DataReader) readDelimited(ctx context.Context, path string, comma rune, gzipped bool) (*dataset.Matrix, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, apperrors.IOError("failed to open matrix file", err)
	}
	defer file.Close()

	var src io.Reader = file
	if gzipped {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, apperrors.IOError("failed to open gzip stream", err)
		}
		defer gz.Close()
		src = gz
	}

	reader := csv.NewReader(src)
	reader.Comma = comma
	reader.FieldsPerRecord = -1 // ragged rows are reported per gene below
	reader.ReuseRecord = true
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, core.NewMalformedMatrixError("", "header", "file is empty")
	}
	if err != nil {
		return nil, apperrors.IOError("failed to read header row", err)
	}

	b, err := newMatrixBuilder(header)
	if err != nil {
		return nil, err
	}

	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, core.NewMalformedMatrixError("", "row", perr.Error())
			}
			return nil, apperrors.IOError("failed to read matrix row", err)
		}
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if err := b.addRow(rec); err != nil {
			return nil, err
		}
	}
	return b.matrix(), nil
}

func (r *DataReader) readExcel(ctx context.Context, path string) (*dataset.Matrix, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.IOError("failed to open Excel file", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, apperrors.IOError(fmt.Sprintf("failed to read sheet %q", sheet), err)
	}
	defer rows.Close()

	var b *matrixBuilder
	for line := 1; rows.Next(); line++ {
		rec, err := rows.Columns()
		if err != nil {
			return nil, apperrors.IOError(fmt.Sprintf("failed to read row %d", line), err)
		}
		if b == nil {
			if b, err = newMatrixBuilder(rec); err != nil {
				return nil, err
			}
			continue
		}
		if len(rec) == 0 {
			continue
		}
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		// excelize drops trailing blank cells; pad so they report as empty values.
		for len(rec) < len(b.m.CellIDs)+1 {
			rec = append(rec, "")
		}
		if err := b.addRow(rec); err != nil {
			return nil, err
		}
	}
	if b == nil {
		return nil, core.NewMalformedMatrixError("", "header", "sheet "+sheet+" is empty")
	}
	return b.matrix(), nil
}

// matrixBuilder accumulates parsed rows against a fixed header.
type matrixBuilder struct {
	m dataset.Matrix
}

func newMatrixBuilder(header []string) (*matrixBuilder, error) {
	if len(header) < 3 {
		return nil, core.NewMalformedMatrixError("", "header",
			fmt.Sprintf("need a label and at least 2 cell ids, got %d columns", len(header)))
	}
	cells := make([]string, len(header)-1)
	for i, h := range header[1:] {
		cells[i] = strings.TrimSpace(h)
	}
	return &matrixBuilder{m: dataset.Matrix{CellIDs: cells}}, nil
}

func (b *matrixBuilder) addRow(rec []string) error {
	gene := strings.TrimSpace(rec[0])
	if len(rec)-1 != len(b.m.CellIDs) {
		return core.NewMalformedMatrixError(gene, "counts",
			fmt.Sprintf("row has %d values, expected %d", len(rec)-1, len(b.m.CellIDs)))
	}

	counts := make([]int32, len(b.m.CellIDs))
	for j, cell := range rec[1:] {
		v, err := parseCount(cell)
		if err != nil {
			return core.NewMalformedMatrixError(gene, "counts",
				fmt.Sprintf("cell %s: %v", b.m.CellIDs[j], err))
		}
		counts[j] = v
	}
	b.m.GeneIDs = append(b.m.GeneIDs, gene)
	b.m.Counts = append(b.m.Counts, counts)
	return nil
}

func (b *matrixBuilder) matrix() *dataset.Matrix {
	m := b.m
	return &m
}

// parseCount accepts integers and integral decimals such as "3.0". Sign is
// kept so negative counts fail matrix validation with their location.
func parseCount(s string) (int32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	if v, err := strconv.ParseInt(s, 10, 32); err == nil {
		return int32(v), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a count: %q", s)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("non-integer count %q", s)
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("count %q out of range", s)
	}
	return int32(f), nil
}
