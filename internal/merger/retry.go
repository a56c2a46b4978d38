package merger

import (
	"context"
	"fmt"

	"github.com/hako/durafmt"

	"github.com/ryabkov82/xlsx-consolidator/internal/fsutil"
	"github.com/ryabkov82/xlsx-consolidator/internal/workbook"
)

// withLedger выполняет op над мастер-файлом, дожидаясь его освобождения.
// Пока путь выглядит как файл-блокировка, op не вызывается. Ошибка
// монопольного доступа приводит к повтору через один интервал; прочие
// ошибки возвращаются сразу. Число повторов не ограничено, если не задан MaxWait.
func (c *Consolidator) withLedger(ctx context.Context, op func() error) error {
	start := c.now()
	for {
		if workbook.IsLockArtifact(c.ledgerPath) {
			c.sink.Printf("Мастер-файл %s временно недоступен, ожидание...", c.ledgerPath)
		} else {
			err := op()
			if err == nil || !fsutil.IsLocked(err) {
				return err
			}
			c.sink.Printf("Ожидание освобождения %s (прошло %s)...",
				c.ledgerPath, durafmt.Parse(c.now().Sub(start)).LimitFirstN(2))
		}

		if c.maxWait > 0 && c.now().Sub(start) >= c.maxWait {
			return fmt.Errorf("%w: %s не освободился за %s", ErrLedgerBusy, c.ledgerPath, durafmt.Parse(c.maxWait))
		}
		if err := fsutil.Sleep(ctx, c.interval); err != nil {
			return err
		}
	}
}
