package merger

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func existsIn(names ...string) func(string) bool {
	return func(n string) bool {
		for _, s := range names {
			if strings.EqualFold(s, n) {
				return true
			}
		}
		return false
	}
}

func TestMergedSheetName(t *testing.T) {
	tests := []struct {
		file, sheet, want string
	}{
		{"A", "Sheet1", "A_Sheet1"},
		{"report", "Data", "report_Data"},
		{"q1[draft]", "a/b", "q1_draft__a_b"},
		{"'quoted", "x'", "quoted_x"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, mergedSheetName(tt.file, tt.sheet))
		})
	}
}

func TestUniqueSheetName(t *testing.T) {
	assert.Equal(t, "report_Data", uniqueSheetName("report_Data", existsIn("Sheet1")))
	assert.Equal(t, "report_Data_1", uniqueSheetName("report_Data", existsIn("report_Data")))
	assert.Equal(t, "report_Data_3",
		uniqueSheetName("report_Data", existsIn("REPORT_DATA", "report_Data_1", "report_data_2")))
}

func TestUniqueSheetNameFitsLengthLimit(t *testing.T) {
	long := strings.Repeat("к", 40)

	first := uniqueSheetName(long, existsIn())
	assert.Equal(t, 31, utf8.RuneCountInString(first))

	second := uniqueSheetName(long, existsIn(first))
	assert.Equal(t, 31, utf8.RuneCountInString(second))
	assert.True(t, strings.HasSuffix(second, "_1"))
	assert.NotEqual(t, first, second)
}
