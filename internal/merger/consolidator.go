// Package merger объединяет листы входящих книг в мастер-книгу и
// раскладывает исходные файлы по папкам архива.
package merger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/ryabkov82/xlsx-consolidator/internal/archive"
	"github.com/ryabkov82/xlsx-consolidator/internal/fsutil"
	"github.com/ryabkov82/xlsx-consolidator/internal/notify"
	"github.com/ryabkov82/xlsx-consolidator/internal/workbook"
)

// Book описывает операции мастер-книги, нужные для слияния.
type Book interface {
	HasSheet(name string) bool
	AppendSheet(name string, src workbook.Sheet) error
	Save() error
	Close() error
}

// Opener открывает мастер-книгу по пути.
type Opener func(path string) (Book, error)

func openLedger(path string) (Book, error) {
	l, err := workbook.OpenLedger(path)
	if err != nil {
		return nil, err
	}
	return l, nil
}

type Options struct {
	LedgerPath string
	// Interval задаёт паузу между повторами.
	Interval time.Duration
	// MaxWait ограничивает ожидание мастер-файла; 0 означает ждать бесконечно.
	MaxWait      time.Duration
	MoveAttempts int
	Sink         notify.Sink
	// Opener подменяет доступ к мастер-книге; по умолчанию excelize.
	Opener Opener
}

// Consolidator владеет правилами классификации, слияния и архивации.
type Consolidator struct {
	ledgerPath string
	interval   time.Duration
	maxWait    time.Duration
	attempts   int
	sink       notify.Sink
	open       Opener
	read       func(path string) ([]workbook.Sheet, error)
	mover      *archive.Mover
	now        func() time.Time

	// mu сериализует цикл загрузка→слияние→сохранение внутри процесса.
	mu sync.Mutex
	// inflight хранит пути, обработка которых уже идёт.
	inflight *cache.Cache
}

func NewConsolidator(opts Options) (*Consolidator, error) {
	ledgerPath := strings.TrimSpace(opts.LedgerPath)
	if ledgerPath == "" {
		return nil, fmt.Errorf("не указан путь к мастер-файлу")
	}
	ledgerPath = filepath.Clean(ledgerPath)
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Second
	}
	attempts := opts.MoveAttempts
	if attempts <= 0 {
		attempts = archive.DefaultAttempts
	}
	sink := opts.Sink
	if sink == nil {
		sink = notify.Discard
	}
	open := opts.Opener
	if open == nil {
		open = openLedger
	}
	return &Consolidator{
		ledgerPath: ledgerPath,
		interval:   interval,
		maxWait:    opts.MaxWait,
		attempts:   attempts,
		sink:       sink,
		open:       open,
		read:       workbook.ReadFile,
		mover: &archive.Mover{
			Interval: interval,
			Attempts: attempts,
			Sink:     sink,
			Settle:   interval,
		},
		now:      time.Now,
		inflight: cache.New(time.Hour, 10*time.Minute),
	}, nil
}

// LedgerPath возвращает путь к мастер-файлу.
func (c *Consolidator) LedgerPath() string { return c.ledgerPath }

// EnsureLedger создаёт пустую мастер-книгу, если её нет.
func (c *Consolidator) EnsureLedger() error {
	created, err := workbook.CreateLedger(c.ledgerPath)
	if err != nil {
		return err
	}
	if created {
		c.sink.Printf("Создан мастер-файл: %s", c.ledgerPath)
	}
	return nil
}

// ClassifyAndIngest служит единой точкой входа для начального сканирования и
// событий наблюдателя.
func (c *Consolidator) ClassifyAndIngest(ctx context.Context, path string) (Outcome, error) {
	path = filepath.Clean(path)
	if c.ignored(path) {
		return OutcomeSkipped, nil
	}
	if !workbook.IsSpreadsheet(path) {
		return c.MoveToNotApplicable(ctx, path)
	}
	if !c.claim(path) {
		c.sink.Printf("Файл %s уже обрабатывается", path)
		return OutcomeSkipped, nil
	}
	defer c.release(path)
	if c.gone(path) {
		return OutcomeSkipped, nil
	}

	processed := archive.ProcessedFor(path)
	if err := archive.Ensure(processed); err != nil {
		return c.fail(path, "classify", err)
	}

	dup, err := archive.HasProcessed(processed, path)
	if err != nil {
		return c.fail(path, "classify", err)
	}
	if dup {
		dst, err := c.mover.MoveInto(ctx, path, processed)
		if err != nil {
			return c.fail(path, "archive", err)
		}
		c.sink.Printf("Файл уже обработан. %s перемещён в папку processed как %s", path, dst)
		return OutcomeDuplicate, nil
	}

	sheets, err := c.readIncoming(ctx, path)
	if err != nil {
		return c.fail(path, "read", err)
	}

	added, err := c.merge(ctx, path, sheets)
	if err != nil {
		var ie *IngestError
		if errors.As(err, &ie) {
			c.sink.Printf("%v", ie)
			return OutcomeFailed, ie
		}
		return c.fail(path, "merge", err)
	}
	c.sink.Printf("Добавлен %s в мастер-файл (листы: %s)", path, strings.Join(added, ", "))

	dst, err := c.mover.MoveInto(ctx, path, processed)
	if err != nil {
		return c.fail(path, "archive", err)
	}
	c.sink.Printf("Перемещён %s в папку processed как %s", path, dst)
	return OutcomeMerged, nil
}

// MoveToNotApplicable перемещает посторонний файл в папку not_applicable.
func (c *Consolidator) MoveToNotApplicable(ctx context.Context, path string) (Outcome, error) {
	path = filepath.Clean(path)
	if c.ignored(path) {
		return OutcomeSkipped, nil
	}
	if !c.claim(path) {
		c.sink.Printf("Файл %s уже обрабатывается", path)
		return OutcomeSkipped, nil
	}
	defer c.release(path)
	if c.gone(path) {
		return OutcomeSkipped, nil
	}

	dir := archive.NotApplicableFor(path)
	if err := archive.Ensure(dir); err != nil {
		return c.fail(path, "archive", err)
	}
	dst, err := c.mover.MoveInto(ctx, path, dir)
	if err != nil {
		return c.fail(path, "archive", err)
	}
	c.sink.Printf("Перемещён %s в папку not_applicable как %s", path, dst)
	return OutcomeForeign, nil
}

// ignored отсекает сам мастер-файл и временные файлы-блокировки.
func (c *Consolidator) ignored(path string) bool {
	if c.isLedger(path) {
		return true
	}
	if workbook.IsLockArtifact(path) {
		c.sink.Printf("Пропущен временный файл %s", path)
		return true
	}
	return false
}

func (c *Consolidator) isLedger(path string) bool {
	a, errA := filepath.Abs(path)
	b, errB := filepath.Abs(c.ledgerPath)
	if errA == nil && errB == nil && a == b {
		return true
	}
	fa, errA := os.Stat(path)
	fb, errB := os.Stat(c.ledgerPath)
	return errA == nil && errB == nil && os.SameFile(fa, fb)
}

// gone отсекает файл, который уже перенёс другой обработчик, например
// наблюдатель во время начального сканирования.
func (c *Consolidator) gone(path string) bool {
	if fsutil.Exists(path) {
		return false
	}
	c.sink.Printf("Файл %s уже перемещён, пропущен", path)
	return true
}

func (c *Consolidator) claim(path string) bool {
	return c.inflight.Add(path, struct{}{}, cache.DefaultExpiration) == nil
}

func (c *Consolidator) release(path string) {
	c.inflight.Delete(path)
}

func (c *Consolidator) fail(path, stage string, err error) (Outcome, error) {
	ie := newIngestError(path, stage, err)
	c.sink.Printf("%v", ie)
	return OutcomeFailed, ie
}

// readIncoming читает входящую книгу с ограниченным числом повторов:
// событие создания может прийти раньше, чем файл дописан.
func (c *Consolidator) readIncoming(ctx context.Context, path string) ([]workbook.Sheet, error) {
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		sheets, err := c.read(path)
		if err == nil {
			return sheets, nil
		}
		lastErr = err
		if attempt == c.attempts {
			break
		}
		c.sink.Printf("Не удалось прочитать %s: %v. Повтор (%d/%d)...", path, err, attempt, c.attempts)
		if err := fsutil.Sleep(ctx, c.interval); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrUnreadableWorkbook, lastErr)
}

// merge дописывает листы в мастер-книгу и сохраняет её.
func (c *Consolidator) merge(ctx context.Context, path string, sheets []workbook.Sheet) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	book, err := c.acquire(ctx)
	if err != nil {
		return nil, newIngestError(path, "merge", err)
	}
	defer book.Close()

	fileName, _ := workbook.SplitName(path)
	added := make([]string, 0, len(sheets))
	for _, s := range sheets {
		name := uniqueSheetName(mergedSheetName(fileName, s.Name), book.HasSheet)
		if err := book.AppendSheet(name, s); err != nil {
			return nil, newIngestError(path, "merge", err)
		}
		added = append(added, name)
	}

	if err := c.withLedger(ctx, book.Save); err != nil {
		return nil, newIngestError(path, "save", err)
	}
	return added, nil
}

func (c *Consolidator) acquire(ctx context.Context) (Book, error) {
	var book Book
	err := c.withLedger(ctx, func() error {
		b, err := c.open(c.ledgerPath)
		if err != nil {
			return err
		}
		book = b
		return nil
	})
	return book, err
}
