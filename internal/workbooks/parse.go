package workbooks

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/vinodismyname/ritualstats/internal/records"
	"github.com/xuri/excelize/v2"
)

// Format is a supported ledger file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

var (
	// ErrUnsupportedFormat indicates an extension the loader cannot read.
	ErrUnsupportedFormat = errors.New("workbooks: unsupported format")
	// ErrEmptyTable indicates the first sheet has no header row.
	ErrEmptyTable = errors.New("workbooks: no header row")
)

// Extensions lists the accepted file extensions.
var Extensions = []string{".xlsx", ".xlsm", ".csv"}

func formatOf(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// Digest is the hex SHA-256 of the raw file bytes; it identifies an input
// for result caching.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Parse decodes file bytes into a table. Spreadsheets are read from their
// first sheet; the first row is the header. It returns the sheet name used.
func Parse(name string, data []byte) (*records.Table, string, error) {
	format, err := formatOf(name)
	if err != nil {
		return nil, "", err
	}
	var rows [][]string
	sheet := ""
	switch format {
	case FormatCSV:
		rows, err = readCSV(bytes.NewReader(data))
	default:
		rows, sheet, err = readXLSX(bytes.NewReader(data))
	}
	if err != nil {
		return nil, "", err
	}
	if len(rows) == 0 {
		return nil, sheet, ErrEmptyTable
	}
	return records.NewTable(rows[0], rows[1:]), sheet, nil
}

func readXLSX(r io.Reader) ([][]string, string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, "", fmt.Errorf("workbooks: open spreadsheet: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, "", ErrEmptyTable
	}
	sheet := sheets[0]
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, sheet, fmt.Errorf("workbooks: read sheet %q: %w", sheet, err)
	}
	return rows, sheet, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	// spreadsheet exports often prefix a UTF-8 BOM
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("workbooks: read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("workbooks: parse csv: %w", err)
	}
	return rows, nil
}
