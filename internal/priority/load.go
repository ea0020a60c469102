package priority

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/corine-cli/internal/normalize"
)

// LoadOptions names the two columns of the tabular source. Column names are
// resolved case-insensitively against the header row.
type LoadOptions struct {
	CodeField string // default "CODE"
	PriField  string // default "PRI"
}

func (o LoadOptions) withDefaults() LoadOptions {
	if o.CodeField == "" {
		o.CodeField = "CODE"
	}
	if o.PriField == "" {
		o.PriField = "PRI"
	}
	return o
}

// Load reads a priority table from a .csv or .xlsx file. Rows with a blank
// code or an unparseable priority are skipped (counted and logged, never
// fatal); duplicate codes follow last-wins semantics.
func Load(path string, opts LoadOptions) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSV(path, opts)
	case ".xlsx":
		return LoadXLSX(path, opts)
	}
	return nil, eris.Errorf("priority: unsupported table format %q (want .csv or .xlsx)", filepath.Ext(path))
}

// LoadCSV reads a priority table from a CSV file with a header row.
func LoadCSV(path string, opts LoadOptions) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "priority: open %s", path)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, eris.Wrapf(err, "priority: read header of %s", path)
	}

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "priority: read %s", path)
		}
		rows = append(rows, rec)
	}

	return fromRows(header, rows, opts)
}

// LoadXLSX reads a priority table from the first sheet of an XLSX workbook.
func LoadXLSX(path string, opts LoadOptions) (*Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "priority: open %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("priority: %s has no sheets", path)
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("priority: %s has no rows", path)
	}

	header := rowToStrings(sheet.Rows[0])
	rows := make([][]string, 0, len(sheet.Rows)-1)
	for _, row := range sheet.Rows[1:] {
		rows = append(rows, rowToStrings(row))
	}

	return fromRows(header, rows, opts)
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func fromRows(header []string, rows [][]string, opts LoadOptions) (*Table, error) {
	opts = opts.withDefaults()

	codeIdx, err := resolveColumn(header, opts.CodeField)
	if err != nil {
		return nil, err
	}
	priIdx, err := resolveColumn(header, opts.PriField)
	if err != nil {
		return nil, err
	}

	t := New()
	var skipped int
	for _, rec := range rows {
		if codeIdx >= len(rec) || priIdx >= len(rec) {
			skipped++
			continue
		}
		code := normalize.Coerce(rec[codeIdx])
		if code == "" {
			skipped++
			continue
		}
		pri, err := strconv.Atoi(strings.TrimSpace(rec[priIdx]))
		if err != nil {
			skipped++
			continue
		}
		t.Set(code, pri)
	}

	if skipped > 0 {
		zap.L().Debug("priority: skipped unusable table rows", zap.Int("skipped", skipped))
	}
	if t.Len() == 0 {
		zap.L().Warn("priority: table is empty, all lookups will use the default priority")
	}
	return t, nil
}

// resolveColumn finds a header column case-insensitively, mirroring how field
// names behave in the upstream GIS tables the priority source is exported from.
func resolveColumn(header []string, wanted string) (int, error) {
	wl := strings.ToLower(wanted)
	for i, h := range header {
		if strings.ToLower(strings.TrimSpace(h)) == wl {
			return i, nil
		}
	}
	return 0, eris.Errorf("priority: column %q not found in header %v", wanted, header)
}
