// Package workbook читает входящие книги и хранит мастер-книгу (Ledger).
package workbook

import (
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// LockPrefix отмечает имена временных файлов-блокировок редактора.
const LockPrefix = "~$"

// Cell хранит значение и стиль ячейки. Value: nil, string, int64, float64 или bool.
type Cell struct {
	Value any
	Style *excelize.Style
}

// Row хранит ячейки строки. Height = 0 означает высоту по умолчанию.
type Row struct {
	Cells  []Cell
	Height float64
}

// Values возвращает значения ячеек строки.
func (r Row) Values() []any {
	out := make([]any, len(r.Cells))
	for i, c := range r.Cells {
		out[i] = c.Value
	}
	return out
}

// Sheet хранит строки именованного листа. Rows[i] соответствует строке i+1.
type Sheet struct {
	Name string
	Rows []Row
}

// Values возвращает значения всех строк листа.
func (s Sheet) Values() [][]any {
	out := make([][]any, len(s.Rows))
	for i, r := range s.Rows {
		out[i] = r.Values()
	}
	return out
}

// IsSpreadsheet сообщает, что у файла расширение .xls или .xlsx.
func IsSpreadsheet(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xls", ".xlsx":
		return true
	}
	return false
}

// IsLockArtifact сообщает, что имя файла начинается с маркера блокировки.
func IsLockArtifact(path string) bool {
	return strings.HasPrefix(filepath.Base(path), LockPrefix)
}

// SplitName делит имя файла на логическое имя и расширение.
func SplitName(path string) (name, ext string) {
	base := filepath.Base(path)
	ext = filepath.Ext(base)
	return strings.TrimSuffix(base, ext), ext
}
