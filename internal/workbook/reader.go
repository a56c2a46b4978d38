package workbook

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// ReadFile загружает все листы книги в исходном порядке.
func ReadFile(path string) ([]Sheet, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return readXLSX(path)
	case ".xls":
		return readXLS(path)
	}
	return nil, fmt.Errorf("неподдерживаемый формат файла %s", path)
}

func readXLSX(path string) ([]Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", path, err)
	}
	defer f.Close()

	var sheets []Sheet
	for _, name := range f.GetSheetList() {
		s, err := readSheet(f, name)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения листа %q из %s: %w", name, path, err)
		}
		sheets = append(sheets, s)
	}
	return sheets, nil
}

// readSheet читает лист построчно, сохраняя тип значения и стиль каждой ячейки.
func readSheet(f *excelize.File, name string) (Sheet, error) {
	rows, err := f.Rows(name)
	if err != nil {
		return Sheet{}, err
	}
	defer rows.Close()

	sheet := Sheet{Name: name}
	styles := make(map[int]*excelize.Style)
	rowIdx := 0
	for rows.Next() {
		rowIdx++
		raw, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return Sheet{}, fmt.Errorf("ошибка чтения строки %d: %w", rowIdx, err)
		}

		row := Row{
			Cells:  make([]Cell, len(raw)),
			Height: rows.GetRowOpts().Height,
		}
		for i, cellVal := range raw {
			cellRef, _ := excelize.CoordinatesToCellName(i+1, rowIdx)
			valType, err := f.GetCellType(name, cellRef)
			if err != nil {
				valType = excelize.CellTypeInlineString
			}
			row.Cells[i] = Cell{
				Value: convertValue(valType, cellVal),
				Style: cellStyle(f, name, cellRef, styles),
			}
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	if err := rows.Error(); err != nil {
		return Sheet{}, err
	}
	return sheet, nil
}

func cellStyle(f *excelize.File, sheet, cellRef string, cache map[int]*excelize.Style) *excelize.Style {
	styleID, err := f.GetCellStyle(sheet, cellRef)
	if err != nil || styleID == 0 {
		return nil
	}
	if st, ok := cache[styleID]; ok {
		return st
	}
	st, err := f.GetStyle(styleID)
	if err != nil {
		st = nil
	}
	cache[styleID] = st
	return st
}

// convertValue восстанавливает тип из сырого значения ячейки.
// Числовые ячейки в OOXML часто хранятся без атрибута типа (CellTypeUnset).
func convertValue(valType excelize.CellType, raw string) any {
	if raw == "" {
		return nil
	}
	switch valType {
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true")
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return n
		}
	}
	return raw
}

// readXLS читает книгу старого формата. Библиотека отдаёт значения
// уже отформатированными строками, поэтому типы не восстанавливаются.
func readXLS(path string) (sheets []Sheet, err error) {
	defer func() {
		if r := recover(); r != nil {
			sheets, err = nil, fmt.Errorf("ошибка разбора файла %s: %v", path, r)
		}
	}()

	fi, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", path, err)
	}
	defer fi.Close()

	wb, err := xls.OpenReader(fi, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", path, err)
	}
	if wb == nil {
		return nil, fmt.Errorf("файл %s не содержит книги", path)
	}

	for i := 0; i < wb.NumSheets(); i++ {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}
		sheet := Sheet{Name: ws.Name}
		for r := 0; r <= int(ws.MaxRow); r++ {
			var row Row
			if src := xlsRow(ws, r); src != nil {
				for c := 0; c < src.LastCol(); c++ {
					var v any
					if s := src.Col(c); s != "" {
						v = s
					}
					row.Cells = append(row.Cells, Cell{Value: v})
				}
			}
			sheet.Rows = append(sheet.Rows, row)
		}
		sheet.Rows = trimTrailingEmpty(sheet.Rows)
		sheets = append(sheets, sheet)
	}
	return sheets, nil
}

// xlsRow возвращает nil для отсутствующей строки: WorkSheet.Row
// паникует на пустых индексах.
func xlsRow(ws *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return ws.Row(i)
}

func trimTrailingEmpty(rows []Row) []Row {
	for len(rows) > 0 && rows[len(rows)-1].empty() {
		rows = rows[:len(rows)-1]
	}
	return rows
}

func (r Row) empty() bool {
	for _, c := range r.Cells {
		if c.Value != nil {
			return false
		}
	}
	return r.Height == 0
}
