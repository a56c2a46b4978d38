package archive

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ryabkov82/xlsx-consolidator/internal/fsutil"
	"github.com/ryabkov82/xlsx-consolidator/internal/notify"
	"github.com/ryabkov82/xlsx-consolidator/internal/workbook"
)

// ErrMoveAbandoned возвращается, когда файл так и не освободился.
var ErrMoveAbandoned = errors.New("перемещение отменено")

const DefaultAttempts = 10

// Mover перемещает файлы с ограниченным числом повторов при блокировке.
type Mover struct {
	Interval time.Duration
	Attempts int
	Sink     notify.Sink
	// Settle задаёт паузу перед первой попыткой: источник может ещё дописываться.
	Settle time.Duration

	rename func(src, dst string) error
}

func (m *Mover) sink() notify.Sink {
	if m.Sink == nil {
		return notify.Discard
	}
	return m.Sink
}

// MoveInto перемещает src в папку dir под неконфликтующим именем и
// возвращает итоговый путь. Ошибка, не связанная с блокировкой, не повторяется.
func (m *Mover) MoveInto(ctx context.Context, src, dir string) (string, error) {
	rename := m.rename
	if rename == nil {
		rename = fsutil.Rename
	}
	attempts := m.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	folder := filepath.Base(dir)

	if err := fsutil.Sleep(ctx, m.Settle); err != nil {
		return "", err
	}

	base, ext := workbook.SplitName(src)
	for attempt := 1; ; attempt++ {
		dst := UniquePath(dir, base, ext)
		err := rename(src, dst)
		if err == nil {
			return dst, nil
		}
		if !fsutil.IsLocked(err) {
			m.sink().Printf("Непредвиденная ошибка при перемещении %s: %v", src, err)
			return "", fmt.Errorf("ошибка перемещения %s в %s: %w", src, folder, err)
		}
		m.sink().Printf("Ошибка перемещения %s в папку %s: %v", src, folder, err)
		if attempt >= attempts {
			m.sink().Printf("Файл %s не перемещён после %d попыток", src, attempts)
			return "", fmt.Errorf("%w: %s после %d попыток: %v", ErrMoveAbandoned, src, attempts, err)
		}
		m.sink().Printf("Повтор (%d/%d)...", attempt, attempts)
		if err := fsutil.Sleep(ctx, m.Interval); err != nil {
			return "", err
		}
	}
}
