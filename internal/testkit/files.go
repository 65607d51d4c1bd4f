package testkit

import (
	"compress/gzip"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"srgscan/domain/dataset"

	"github.com/xuri/excelize/v2"
)

// GeneHeader is the label written in the top-left cell of fixture files.
const GeneHeader = "GENE"

// WriteDelimited writes m as a delimited text matrix (header row of cell ids,
// one row per gene). A path ending in .gz is gzip-compressed.
func WriteDelimited(path string, m *dataset.Matrix, comma rune) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var w io.Writer = f
	if strings.HasSuffix(path, ".gz") {
		gz := gzip.NewWriter(f)
		defer gz.Close()
		w = gz
	}

	cw := csv.NewWriter(w)
	cw.Comma = comma
	if err := cw.Write(append([]string{GeneHeader}, m.CellIDs...)); err != nil {
		return err
	}
	for i, g := range m.GeneIDs {
		rec := make([]string, 0, len(m.CellIDs)+1)
		rec = append(rec, g)
		for _, v := range m.Counts[i] {
			rec = append(rec, strconv.FormatInt(int64(v), 10))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes m to the first sheet of a new workbook.
func WriteXLSX(path string, m *dataset.Matrix) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}

	header := make([]interface{}, 0, len(m.CellIDs)+1)
	header = append(header, GeneHeader)
	for _, c := range m.CellIDs {
		header = append(header, c)
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	for i, g := range m.GeneIDs {
		row := make([]interface{}, 0, len(m.CellIDs)+1)
		row = append(row, g)
		for _, v := range m.Counts[i] {
			row = append(row, int64(v))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	return f.SaveAs(path)
}
