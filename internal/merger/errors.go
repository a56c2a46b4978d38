package merger

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreadableWorkbook: входящая книга не читается даже после повторов.
	ErrUnreadableWorkbook = errors.New("книга не читается")
	// ErrLedgerBusy: мастер-файл не освободился за ledger.max_wait.
	ErrLedgerBusy = errors.New("мастер-файл занят")
)

// IngestError описывает сбой обработки одного файла.
type IngestError struct {
	Path  string
	Stage string // "classify", "read", "merge", "save", "archive"
	Err   error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ошибка обработки %s (%s): %v", e.Path, e.Stage, e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

func newIngestError(path, stage string, err error) *IngestError {
	return &IngestError{Path: path, Stage: stage, Err: err}
}
