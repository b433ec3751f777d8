package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

type SheetSpec struct {
	Title  string
	Header []string
	Rows   [][]string
}

type Workbook struct {
	File *excelize.File
}

// NewWorkbook строит книгу: один лист на SheetSpec, в порядке передачи.
func NewWorkbook(sheets []SheetSpec) (*Workbook, error) {
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	f := excelize.NewFile()
	for i, s := range sheets {
		name := s.Title
		if i == 0 {
			// стандартный Sheet1 переименовываем, а не удаляем: в книге должен остаться хоть один лист
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("new sheet: %w", err)
		}

		for col, h := range s.Header {
			cell := fmt.Sprintf("%s1", columName(col+1))
			if err := f.SetCellStr(name, cell, h); err != nil {
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
		for r, row := range s.Rows {
			for c, val := range row {
				cell := fmt.Sprintf("%s%d", columName(c+1), r+2)
				if err := f.SetCellStr(name, cell, val); err != nil {
					return nil, fmt.Errorf("set cell %s: %w", cell, err)
				}
			}
		}
		if err := ApplyDefaultExcelFormatting(f, name); err != nil {
			return nil, fmt.Errorf("format %s: %w", name, err)
		}
	}
	f.SetActiveSheet(0)
	return &Workbook{File: f}, nil
}

func (w *Workbook) SaveAs(path string) error { return w.File.SaveAs(path) }

func (w *Workbook) WriteTo(out io.Writer) (int64, error) { return w.File.WriteTo(out) }
