package archive

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryabkov82/xlsx-consolidator/internal/notify"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(filepath.Base(path)), 0o644))
}

func TestUniquePathSequence(t *testing.T) {
	dir := t.TempDir()

	first := UniquePath(dir, "x", ".csv")
	assert.Equal(t, filepath.Join(dir, "x.csv"), first)
	touch(t, first)

	second := UniquePath(dir, "x", ".csv")
	assert.Equal(t, filepath.Join(dir, "x_copy1.csv"), second)
	touch(t, second)

	assert.Equal(t, filepath.Join(dir, "x_copy2.csv"), UniquePath(dir, "x", ".csv"))
}

func TestUniquePathFillsFirstGap(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "x.csv"))
	touch(t, filepath.Join(dir, "x_copy2.csv"))

	assert.Equal(t, filepath.Join(dir, "x_copy1.csv"), UniquePath(dir, "x", ".csv"))
}

func TestInArchive(t *testing.T) {
	root := filepath.Join("data", "watch")
	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(root, "a.xlsx"), false},
		{filepath.Join(root, "processed", "a.xlsx"), true},
		{filepath.Join(root, "sub", "not_applicable", "a.txt"), true},
		{filepath.Join(root, "processed_old", "a.xlsx"), false},
		{filepath.Join(root, "sub", "a.xlsx"), false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, InArchive(root, tt.path))
		})
	}
}

func TestInArchiveIgnoresRootName(t *testing.T) {
	root := filepath.Join("srv", "processed", "inbox")
	assert.False(t, InArchive(root, filepath.Join(root, "a.xlsx")))
}

func TestHasProcessed(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "report.xlsx"))
	touch(t, filepath.Join(dir, "budget_copy3.XLSX"))
	touch(t, filepath.Join(dir, "notes.txt"))

	tests := []struct {
		incoming string
		want     bool
	}{
		{"report.xlsx", true},
		{"report.xls", false},
		{"budget.xlsx", true},
		{"report2.xlsx", false},
		{"notes.xlsx", false},
		{"rep.xlsx", false},
	}
	for _, tt := range tests {
		t.Run(tt.incoming, func(t *testing.T) {
			got, err := HasProcessed(dir, filepath.Join("in", tt.incoming))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMoveIntoUsesUniqueNames(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(root, "not_applicable")
	require.NoError(t, Ensure(dest))
	m := &Mover{Interval: time.Millisecond}

	var got []string
	for i := 0; i < 3; i++ {
		src := filepath.Join(root, "x.csv")
		touch(t, src)
		dst, err := m.MoveInto(context.Background(), src, dest)
		require.NoError(t, err)
		got = append(got, filepath.Base(dst))
	}

	assert.Equal(t, []string{"x.csv", "x_copy1.csv", "x_copy2.csv"}, got)
}

func TestMoveIntoRetriesWhileLocked(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "a.xlsx")
	touch(t, src)
	rec := &notify.Recorder{}

	calls := 0
	m := &Mover{Interval: time.Millisecond, Attempts: 10, Sink: rec}
	m.rename = func(s, d string) error {
		calls++
		if calls < 3 {
			return &fs.PathError{Op: "rename", Path: s, Err: fs.ErrPermission}
		}
		return os.Rename(s, d)
	}

	require.NoError(t, Ensure(filepath.Join(root, "processed")))
	dst, err := m.MoveInto(context.Background(), src, filepath.Join(root, "processed"))
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, filepath.Join(root, "processed", "a.xlsx"), dst)
	assert.True(t, rec.Contains("Повтор (2/10)"))
}

func TestMoveIntoGivesUpAfterBound(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "a.xlsx")
	touch(t, src)

	calls := 0
	m := &Mover{Interval: time.Millisecond, Attempts: 4}
	m.rename = func(s, d string) error {
		calls++
		return &fs.PathError{Op: "rename", Path: s, Err: fs.ErrPermission}
	}

	_, err := m.MoveInto(context.Background(), src, root)
	assert.ErrorIs(t, err, ErrMoveAbandoned)
	assert.Equal(t, 4, calls)
	assert.FileExists(t, src)
}

func TestMoveIntoDoesNotRetryUnexpectedErrors(t *testing.T) {
	root := t.TempDir()
	calls := 0
	m := &Mover{Interval: time.Millisecond}
	m.rename = func(s, d string) error {
		calls++
		return errors.New("disk on fire")
	}

	_, err := m.MoveInto(context.Background(), filepath.Join(root, "a.xlsx"), root)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMoveAbandoned)
	assert.Equal(t, 1, calls)
}
