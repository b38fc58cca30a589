package groundtruth

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Sheet is one worksheet flattened to a header row plus data rows.
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]string
}

// ReadWorkbook reads every non-empty worksheet. The first row of each sheet
// is its header; headers are normalized to snake_case so curated workbooks
// can use readable column titles.
func ReadWorkbook(path string) ([]Sheet, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "groundtruth: open workbook")
	}

	var sheets []Sheet
	for _, ws := range f.Sheets {
		if len(ws.Rows) < 2 {
			continue
		}
		sheet := Sheet{
			Name:    ws.Name,
			Headers: normalizeHeaders(rowToStrings(ws.Rows[0])),
		}
		for _, row := range ws.Rows[1:] {
			cells := rowToStrings(row)
			if emptyRow(cells) {
				continue
			}
			sheet.Rows = append(sheet.Rows, cells)
		}
		if len(sheet.Rows) > 0 {
			sheets = append(sheets, sheet)
		}
	}
	if len(sheets) == 0 {
		return nil, eris.Errorf("groundtruth: workbook %s has no data sheets", path)
	}
	return sheets, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

// normalizeHeaders turns "Interior Min Lot Area (sqft)" into
// "interior_min_lot_area_sqft".
func normalizeHeaders(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		h = strings.ToLower(strings.TrimSpace(h))
		h = strings.NewReplacer("(", "", ")", "", "-", " ", "/", " ").Replace(h)
		out[i] = strings.Join(strings.Fields(h), "_")
	}
	return out
}

func emptyRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
