package workbook

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Ledger представляет открытую мастер-книгу, в которую дописываются листы.
type Ledger struct {
	path string
	file *excelize.File
}

// CreateLedger создаёт пустую мастер-книгу, если файла ещё нет.
// Существующий файл не проверяется. Возвращает true, если файл создан.
func CreateLedger(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("ошибка проверки мастер-файла %s: %w", path, err)
	}

	f := excelize.NewFile()
	defer f.Close()
	l := &Ledger{path: path, file: f}
	if err := l.Save(); err != nil {
		return false, err
	}
	return true, nil
}

// OpenLedger открывает существующую мастер-книгу.
func OpenLedger(path string) (*Ledger, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия мастер-файла %s: %w", path, err)
	}
	return &Ledger{path: path, file: f}, nil
}

// SheetNames возвращает имена листов в порядке книги.
func (l *Ledger) SheetNames() []string {
	return l.file.GetSheetList()
}

// HasSheet сравнивает имена без учёта регистра, как это делает Excel.
func (l *Ledger) HasSheet(name string) bool {
	for _, s := range l.file.GetSheetList() {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// AppendSheet создаёт новый лист name и переносит в него строки src
// с сохранением порядка, значений и стилей ячеек.
func (l *Ledger) AppendSheet(name string, src Sheet) error {
	if l.HasSheet(name) {
		return fmt.Errorf("лист %q уже существует", name)
	}
	if _, err := l.file.NewSheet(name); err != nil {
		return fmt.Errorf("ошибка создания листа %q: %w", name, err)
	}

	sw, err := l.file.NewStreamWriter(name)
	if err != nil {
		return fmt.Errorf("ошибка создания StreamWriter: %w", err)
	}

	styleIDs := make(map[*excelize.Style]int)
	for i, row := range src.Rows {
		if len(row.Cells) == 0 && row.Height == 0 {
			continue
		}
		rowData := make([]interface{}, len(row.Cells))
		for j, c := range row.Cells {
			rowData[j] = excelize.Cell{
				Value:   c.Value,
				StyleID: l.styleID(c.Style, styleIDs),
			}
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := sw.SetRow(cell, rowData, excelize.RowOpts{Height: row.Height}); err != nil {
			return fmt.Errorf("ошибка записи строки %d листа %q: %w", i+1, name, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("ошибка финального flush: %w", err)
	}
	return nil
}

func (l *Ledger) styleID(st *excelize.Style, cache map[*excelize.Style]int) int {
	if st == nil {
		return 0
	}
	if id, ok := cache[st]; ok {
		return id
	}
	id, err := l.file.NewStyle(st)
	if err != nil {
		id = 0
	}
	cache[st] = id
	return id
}

// Sheet читает лист мастер-книги.
func (l *Ledger) Sheet(name string) (Sheet, error) {
	return readSheet(l.file, name)
}

// Save записывает книгу во временный файл рядом с мастер-файлом и
// переименовывает его поверх. На диске всегда остаётся целый снимок.
func (l *Ledger) Save() error {
	buf, err := l.file.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("ошибка сериализации мастер-файла: %w", err)
	}
	if err := writeFileAtomic(l.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("ошибка сохранения файла %s: %w", l.path, err)
	}
	return nil
}

func (l *Ledger) Close() error {
	return l.file.Close()
}

// writeFileAtomic пишет через временный файл с префиксом блокировки,
// чтобы наблюдатель каталога не принял его за входящий.
func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, LockPrefix+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmpFile.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()
	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Chmod(mode); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}
