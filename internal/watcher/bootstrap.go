package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ryabkov82/xlsx-consolidator/internal/merger"
)

// Summary содержит итог начального сканирования.
type Summary struct {
	Files      int `json:"files"`
	Merged     int `json:"merged"`
	Duplicates int `json:"duplicates"`
	Foreign    int `json:"foreign"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

func (s *Summary) add(out merger.Outcome) {
	s.Files++
	switch out {
	case merger.OutcomeMerged:
		s.Merged++
	case merger.OutcomeDuplicate:
		s.Duplicates++
	case merger.OutcomeForeign:
		s.Foreign++
	case merger.OutcomeSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
}

// Scan передаёт в конвейер файлы, лежащие в dir до начала наблюдения.
// Подпапки не сканируются, мастер-файл пропускается по имени.
// Сбой одного файла не прерывает обработку остальных.
func Scan(ctx context.Context, dir, ledgerName string, ing merger.Ingester) (Summary, error) {
	var sum Summary
	entries, err := os.ReadDir(dir)
	if err != nil {
		return sum, fmt.Errorf("ошибка чтения папки %s: %w", dir, err)
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if !e.Type().IsRegular() {
			continue
		}
		if strings.EqualFold(e.Name(), ledgerName) {
			continue
		}
		out, _ := route(ctx, ing, filepath.Join(dir, e.Name()))
		sum.add(out)
	}
	return sum, nil
}
