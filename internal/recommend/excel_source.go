package recommend

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ExcelSource reads the reference set from a workbook: first sheet, header
// row skipped, description in the third column and category in the fourth.
// The file is opened on every call so edits are picked up without a
// restart.
type ExcelSource struct {
	Path string
}

func NewExcelSource(path string) *ExcelSource {
	return &ExcelSource{Path: path}
}

func (s *ExcelSource) Examples(ctx context.Context) ([]Example, error) {
	if _, err := os.Stat(s.Path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDatasetUnavailable, s.Path)
	}
	f, err := excelize.OpenFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrDatasetUnavailable, s.Path, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrDatasetUnavailable, s.Path, err)
	}

	var out []Example
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		if len(row) < 4 {
			continue
		}
		desc := strings.TrimSpace(row[2])
		cat := strings.TrimSpace(row[3])
		if desc == "" || cat == "" {
			continue
		}
		out = append(out, Example{Description: desc, Category: cat})
	}
	return out, nil
}
