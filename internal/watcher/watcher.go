// Package watcher передаёт новые файлы каталога в конвейер слияния.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/ryabkov82/xlsx-consolidator/internal/archive"
	"github.com/ryabkov82/xlsx-consolidator/internal/merger"
	"github.com/ryabkov82/xlsx-consolidator/internal/notify"
	"github.com/ryabkov82/xlsx-consolidator/internal/workbook"
)

type Options struct {
	Root     string
	Ingester merger.Ingester
	Sink     notify.Sink
	// LedgerPath исключает мастер-файл из обработки: каждое его
	// сохранение порождает событие создания.
	LedgerPath string
	Logger     *slog.Logger
}

// Watcher подписывается на события создания файлов в дереве каталогов.
// Папки processed и not_applicable не отслеживаются.
type Watcher struct {
	root   string
	ledger string
	ingest merger.Ingester
	sink   notify.Sink
	log    *slog.Logger
	fsw    *fsnotify.Watcher

	closeOnce sync.Once
	closeErr  error
}

func New(opts Options) (*Watcher, error) {
	if opts.Ingester == nil {
		return nil, fmt.Errorf("не задан обработчик файлов")
	}
	root := strings.TrimSpace(opts.Root)
	if root == "" {
		return nil, fmt.Errorf("не указана папка для наблюдения")
	}
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("ошибка доступа к папке %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s не является папкой", root)
	}
	sink := opts.Sink
	if sink == nil {
		sink = notify.Discard
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var ledger string
	if opts.LedgerPath != "" {
		ledger = filepath.Clean(opts.LedgerPath)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("ошибка создания наблюдателя: %w", err)
	}
	w := &Watcher{root: root, ledger: ledger, ingest: opts.Ingester, sink: sink, log: logger, fsw: fsw}
	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Start запускает цикл событий в отдельной горутине и сразу возвращает управление.
func (w *Watcher) Start(ctx context.Context) {
	go func() {
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.sink.Printf("Наблюдатель %s остановлен с ошибкой: %v", w.root, err)
		}
	}()
}

// Run обрабатывает события до отмены контекста или вызова Close.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			_ = w.Close()
			return ctx.Err()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				w.OnFileCreated(ctx, ev.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.sink.Printf("Ошибка наблюдателя: %v", err)
		}
	}
}

// OnFileCreated обрабатывает событие «создан файл».
// Для новой папки расширяется наблюдение и обрабатываются файлы, уже
// лежащие в ней: при переносе папки события для её содержимого не приходят.
func (w *Watcher) OnFileCreated(ctx context.Context, path string) {
	if archive.InArchive(w.root, path) {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		w.log.Debug("Файл исчез до обработки", "path", path, "error", err)
		return
	}
	if !info.IsDir() {
		w.handleFile(ctx, path)
		return
	}
	if err := w.addTree(path); err != nil {
		w.sink.Printf("Не удалось добавить папку %s в наблюдение: %v", path, err)
	}
	w.routeTree(ctx, path)
}

func (w *Watcher) handleFile(ctx context.Context, path string) {
	if w.isLedger(path) || workbook.IsLockArtifact(path) {
		return
	}
	w.sink.Printf("Обнаружен новый файл: %s", path)
	if out, err := route(ctx, w.ingest, path); err != nil {
		w.log.Debug("Ошибка обработки файла", "path", path, "outcome", out, "error", err)
	}
}

// routeTree передаёт в конвейер обычные файлы из dir и её подпапок,
// минуя папки архива.
func (w *Watcher) routeTree(ctx context.Context, dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != dir && archive.InArchive(w.root, path) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			w.handleFile(ctx, path)
		}
		return nil
	})
}

func (w *Watcher) isLedger(path string) bool {
	return w.ledger != "" && filepath.Clean(path) == w.ledger
}

// Close останавливает наблюдение. Повторные вызовы безопасны.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = w.fsw.Close()
	})
	return w.closeErr
}

// Root возвращает наблюдаемую папку.
func (w *Watcher) Root() string { return w.root }

// WatchList возвращает папки, на которые оформлена подписка.
func (w *Watcher) WatchList() []string { return w.fsw.WatchList() }

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && archive.InArchive(w.root, path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("ошибка подписки на %s: %w", path, err)
		}
		return nil
	})
}

// route передаёт файл в конвейер по расширению. Сбой уже сообщён
// через приёмник уведомлений; исход в этом случае OutcomeFailed.
func route(ctx context.Context, ing merger.Ingester, path string) (merger.Outcome, error) {
	var (
		out merger.Outcome
		err error
	)
	if workbook.IsSpreadsheet(path) {
		out, err = ing.ClassifyAndIngest(ctx, path)
	} else {
		out, err = ing.MoveToNotApplicable(ctx, path)
	}
	if err != nil {
		return merger.OutcomeFailed, err
	}
	return out, nil
}
