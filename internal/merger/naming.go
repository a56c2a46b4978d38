package merger

import (
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

var sheetNameReplacer = strings.NewReplacer(
	":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_",
)

// mergedSheetName строит имя листа в мастер-книге: {файл}_{лист}.
// Символы, запрещённые в именах листов, заменяются на "_".
func mergedSheetName(fileName, sheetName string) string {
	name := sheetNameReplacer.Replace(fileName + "_" + sheetName)
	return strings.Trim(name, "'")
}

// uniqueSheetName возвращает candidate, если имя свободно, иначе
// candidate_N с наименьшим свободным N начиная с 1. Имя укорачивается
// до предела длины листа так, чтобы суффикс сохранился.
func uniqueSheetName(candidate string, exists func(string) bool) string {
	name := truncateRunes(candidate, excelize.MaxSheetNameLength)
	if !exists(name) {
		return name
	}
	for n := 1; ; n++ {
		suffix := "_" + strconv.Itoa(n)
		name = truncateRunes(candidate, excelize.MaxSheetNameLength-len(suffix)) + suffix
		if !exists(name) {
			return name
		}
	}
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return strings.TrimRight(string(r[:limit]), "'")
}
