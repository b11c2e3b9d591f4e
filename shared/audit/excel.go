package audit

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

var errNoSheet = errors.New("no active sheet")

// Workbook implements ExcelWriter on top of excelize.
type Workbook struct {
	file   *excelize.File
	sheet  string
	row    int
	header int // bold style id, 0 until first header
}

// NewWorkbook creates an empty workbook.
func NewWorkbook() ExcelWriter {
	return &Workbook{file: excelize.NewFile()}
}

// AddSheet starts a new sheet; the first call renames the default one.
func (w *Workbook) AddSheet(name string) error {
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	if w.sheet == "" {
		if err := w.file.SetSheetName(w.file.GetSheetName(0), name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	w.sheet = name
	w.row = 1
	return nil
}

// WriteHeader writes a bold, frozen header row.
func (w *Workbook) WriteHeader(columns []string) error {
	if w.sheet == "" {
		return errNoSheet
	}
	if w.header == 0 {
		style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return err
		}
		w.header = style
	}

	row := make([]interface{}, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	if err := w.setRow(row); err != nil {
		return err
	}

	first, _ := excelize.CoordinatesToCellName(1, w.row)
	last, _ := excelize.CoordinatesToCellName(len(columns), w.row)
	if err := w.file.SetCellStyle(w.sheet, first, last, w.header); err != nil {
		return err
	}
	if w.row == 1 {
		_ = w.file.SetPanes(w.sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	}
	w.row++
	return nil
}

// WriteRow appends one data row.
func (w *Workbook) WriteRow(row []interface{}) error {
	if w.sheet == "" {
		return errNoSheet
	}
	if err := w.setRow(row); err != nil {
		return err
	}
	w.row++
	return nil
}

// SetColumnWidths sets widths for the leading columns of the current sheet.
func (w *Workbook) SetColumnWidths(widths ...float64) error {
	if w.sheet == "" {
		return errNoSheet
	}
	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := w.file.SetColWidth(w.sheet, col, col, width); err != nil {
			return err
		}
	}
	return nil
}

func (w *Workbook) setRow(row []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	return w.file.SetSheetRow(w.sheet, cell, &row)
}

func (w *Workbook) Save(wr io.Writer) error {
	return w.file.Write(wr)
}

func (w *Workbook) SaveToFile(path string) error {
	return w.file.SaveAs(path)
}

func (w *Workbook) Close() error {
	return w.file.Close()
}
