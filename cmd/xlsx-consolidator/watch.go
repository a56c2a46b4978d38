package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ryabkov82/xlsx-consolidator/internal/config"
	"github.com/ryabkov82/xlsx-consolidator/internal/merger"
	"github.com/ryabkov82/xlsx-consolidator/internal/notify"
	"github.com/ryabkov82/xlsx-consolidator/internal/watcher"
)

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [папка]",
		Short: "Следить за папкой и сразу обрабатывать новые файлы",
		Long: `Создаёт мастер-файл при необходимости, запускает наблюдение за папкой
и обрабатывает файлы, которые лежали в ней до запуска. Работает до Ctrl+C.`,
		Args: cobra.MaximumNArgs(1),
		RunE: a.runWatch,
	}
}

// load читает конфигурацию; позиционный аргумент заменяет --dir.
func (a *app) load(args []string) (*config.Config, error) {
	if len(args) == 1 {
		a.v.Set(config.KeyWatchDir, args[0])
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return nil, fmt.Errorf("ошибка конфигурации: %w", err)
	}
	return cfg, nil
}

func newConsolidator(cfg *config.Config, sink notify.Sink) (*merger.Consolidator, error) {
	c, err := merger.NewConsolidator(merger.Options{
		LedgerPath:   cfg.LedgerPath(),
		Interval:     cfg.RetryInterval,
		MaxWait:      cfg.MaxWait,
		MoveAttempts: cfg.MoveAttempts,
		Sink:         sink,
	})
	if err != nil {
		return nil, err
	}
	if err := c.EnsureLedger(); err != nil {
		return nil, err
	}
	return c, nil
}

func (a *app) runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := a.load(args)
	if err != nil {
		return err
	}
	sink := a.sink(cfg, cmd.OutOrStdout())
	c, err := newConsolidator(cfg, sink)
	if err != nil {
		return err
	}

	w, err := watcher.New(watcher.Options{
		Root:       cfg.WatchDir,
		Ingester:   c,
		Sink:       sink,
		LedgerPath: c.LedgerPath(),
		Logger:     slog.Default(),
	})
	if err != nil {
		return err
	}
	defer w.Close()
	sink.Printf("Наблюдение за папкой %s запущено, мастер-файл %s", w.Root(), c.LedgerPath())

	return runPipeline(cmd.Context(), w, cfg, c)
}

// runPipeline запускает цикл наблюдателя и начальное сканирование
// параллельно. Цикл подписан до сканирования, поэтому файлы, пришедшие
// во время сканирования, не теряются.
func runPipeline(ctx context.Context, w *watcher.Watcher, cfg *config.Config, ing merger.Ingester) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(gctx)
	})
	g.Go(func() error {
		sum, err := watcher.Scan(gctx, cfg.WatchDir, cfg.LedgerName, ing)
		if err != nil {
			return err
		}
		slog.Info("Начальное сканирование завершено",
			"files", sum.Files, "merged", sum.Merged, "duplicates", sum.Duplicates,
			"foreign", sum.Foreign, "failed", sum.Failed)
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		slog.Info("Наблюдение остановлено", "dir", cfg.WatchDir)
		return nil
	}
	return err
}
