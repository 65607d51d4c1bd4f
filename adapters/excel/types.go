package excel

import (
	"path/filepath"
	"strings"

	apperrors "srgscan/internal/errors"
)

// Supported table formats
const (
	FormatCSV  = "csv"
	FormatTSV  = "tsv"
	FormatXLSX = "xlsx"
)

// DetectFormat infers the table format from a file name. A trailing .gz is
// ignored for delimited text.
func DetectFormat(path string) (format string, gzipped bool, err error) {
	name := strings.ToLower(filepath.Base(path))
	if strings.HasSuffix(name, ".gz") {
		gzipped = true
		name = strings.TrimSuffix(name, ".gz")
	}
	switch filepath.Ext(name) {
	case ".csv":
		return FormatCSV, gzipped, nil
	case ".tsv", ".txt", ".dge":
		return FormatTSV, gzipped, nil
	case ".xlsx":
		if gzipped {
			return "", false, apperrors.InvalidInput("gzip-compressed xlsx is not supported: " + path)
		}
		return FormatXLSX, false, nil
	}
	return "", false, apperrors.InvalidInput("unsupported matrix file type: " + path)
}
