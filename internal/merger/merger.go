package merger

import (
	"context"
)

// Ingester принимает файлы от начального сканирования и наблюдателя.
type Ingester interface {
	ClassifyAndIngest(ctx context.Context, path string) (Outcome, error)
	MoveToNotApplicable(ctx context.Context, path string) (Outcome, error)
}

// Outcome описывает, чем закончилась обработка одного файла.
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeMerged
	OutcomeDuplicate
	OutcomeForeign
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeMerged:
		return "merged"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeForeign:
		return "foreign"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}
