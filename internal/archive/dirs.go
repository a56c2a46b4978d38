// Package archive перемещает файлы в конечные папки processed и not_applicable.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ryabkov82/xlsx-consolidator/internal/fsutil"
	"github.com/ryabkov82/xlsx-consolidator/internal/workbook"
)

const (
	ProcessedDir     = "processed"
	NotApplicableDir = "not_applicable"
)

// ProcessedFor возвращает папку processed рядом с файлом.
func ProcessedFor(path string) string {
	return filepath.Join(filepath.Dir(path), ProcessedDir)
}

// NotApplicableFor возвращает папку not_applicable рядом с файлом.
func NotApplicableFor(path string) string {
	return filepath.Join(filepath.Dir(path), NotApplicableDir)
}

// Ensure создаёт папку архива, если её нет.
func Ensure(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ошибка создания папки %s: %w", dir, err)
	}
	return nil
}

// InArchive сообщает, что путь лежит внутри processed или not_applicable
// относительно root.
func InArchive(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part == ProcessedDir || part == NotApplicableDir {
			return true
		}
	}
	return false
}

// UniquePath возвращает dir/base+ext, если такого файла нет, иначе
// dir/base_copyN+ext с наименьшим свободным N начиная с 1.
func UniquePath(dir, base, ext string) string {
	candidate := filepath.Join(dir, base+ext)
	for n := 1; fsutil.Exists(candidate); n++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_copy%d%s", base, n, ext))
	}
	return candidate
}

// HasProcessed сообщает, что в папке dir уже есть файл с тем же логическим
// именем и расширением, что и path. Копии вида name_copyN тоже учитываются.
func HasProcessed(dir, path string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, fmt.Errorf("ошибка чтения папки %s: %w", dir, err)
	}
	name, ext := workbook.SplitName(path)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n, x := workbook.SplitName(e.Name())
		if !strings.EqualFold(x, ext) {
			continue
		}
		if n == name || isCopyOf(n, name) {
			return true, nil
		}
	}
	return false, nil
}

func isCopyOf(candidate, name string) bool {
	suffix, ok := strings.CutPrefix(candidate, name+"_copy")
	if !ok || suffix == "" {
		return false
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
