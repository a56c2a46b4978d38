package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ryabkov82/xlsx-consolidator/internal/watcher"
)

type Output struct {
	Success  bool             `json:"success"`
	Ledger   string           `json:"ledger,omitempty"`
	Summary  *watcher.Summary `json:"summary,omitempty"`
	Error    string           `json:"error,omitempty"`
	Duration string           `json:"duration"`
}

func (a *app) scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan [папка]",
		Short: "Однократно обработать файлы папки и вывести итог в JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE:  a.runScan,
	}
}

// runScan выполняет начальное сканирование без наблюдения. Уведомления
// идут в stderr, чтобы stdout содержал только JSON.
func (a *app) runScan(cmd *cobra.Command, args []string) error {
	start := time.Now()
	out := cmd.OutOrStdout()

	cfg, err := a.load(args)
	if err != nil {
		return emitJSON(out, Output{
			Success:  false,
			Error:    err.Error(),
			Duration: time.Since(start).String(),
		})
	}

	c, err := newConsolidator(cfg, a.sink(cfg, cmd.ErrOrStderr()))
	if err != nil {
		return emitJSON(out, Output{
			Success:  false,
			Ledger:   cfg.LedgerPath(),
			Error:    fmt.Sprintf("Ошибка подготовки мастер-файла: %v", err),
			Duration: time.Since(start).String(),
		})
	}

	sum, err := watcher.Scan(cmd.Context(), cfg.WatchDir, cfg.LedgerName, c)
	if err != nil {
		return emitJSON(out, Output{
			Success:  false,
			Ledger:   cfg.LedgerPath(),
			Summary:  &sum,
			Error:    fmt.Sprintf("Ошибка сканирования: %v", err),
			Duration: time.Since(start).String(),
		})
	}

	return emitJSON(out, Output{
		Success:  sum.Failed == 0,
		Ledger:   cfg.LedgerPath(),
		Summary:  &sum,
		Duration: time.Since(start).String(),
	})
}

func emitJSON(w io.Writer, out Output) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("ошибка вывода JSON: %w", err)
	}
	return nil
}
