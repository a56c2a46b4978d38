package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	cc "github.com/ivanpirog/coloredcobra"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ryabkov82/xlsx-consolidator/internal/archive"
	"github.com/ryabkov82/xlsx-consolidator/internal/config"
	"github.com/ryabkov82/xlsx-consolidator/internal/notify"
)

var version = "dev"

// app хранит состояние одного запуска CLI.
type app struct {
	v       *viper.Viper
	cfgFile string
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	config.SetDefaults(a.v)

	rootCmd := &cobra.Command{
		Use:   "xlsx-consolidator",
		Short: "Сборка входящих таблиц в один мастер-файл",
		Long: `xlsx-consolidator следит за папкой и дописывает листы каждой новой
книги .xls/.xlsx в мастер-файл. Обработанные книги переносятся в processed/,
посторонние файлы в not_applicable/.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.initConfig,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "файл конфигурации (по умолчанию ./xlsx-consolidator.yaml)")
	flags.String("dir", "", "папка для наблюдения")
	flags.String("ledger", "master.xlsx", "имя мастер-файла внутри папки")
	flags.Duration("interval", time.Second, "интервал между повторами")
	flags.Duration("max-wait", 0, "предел ожидания мастер-файла, 0 - без ограничения")
	flags.Int("move-attempts", archive.DefaultAttempts, "число попыток перемещения файла")
	flags.String("log-level", "info", "уровень логирования (debug, info, warn, error)")
	flags.String("log-format", "auto", "формат логов (console, json, auto)")

	_ = a.v.BindPFlag(config.KeyWatchDir, flags.Lookup("dir"))
	_ = a.v.BindPFlag(config.KeyLedgerName, flags.Lookup("ledger"))
	_ = a.v.BindPFlag(config.KeyInterval, flags.Lookup("interval"))
	_ = a.v.BindPFlag(config.KeyLedgerWait, flags.Lookup("max-wait"))
	_ = a.v.BindPFlag(config.KeyMoveAttempts, flags.Lookup("move-attempts"))
	_ = a.v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))
	_ = a.v.BindPFlag(config.KeyLogFormat, flags.Lookup("log-format"))

	rootCmd.AddCommand(a.watchCmd())
	rootCmd.AddCommand(a.scanCmd())
	rootCmd.AddCommand(versionCmd())

	cc.Init(&cc.Config{
		RootCmd:  rootCmd,
		Headings: cc.HiCyan + cc.Bold + cc.Underline,
		Commands: cc.HiYellow + cc.Bold,
		Example:  cc.Italic,
		ExecName: cc.Bold,
		Flags:    cc.Bold,
	})
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) initConfig(cmd *cobra.Command, _ []string) error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			a.v.AddConfigPath(home + "/.config/xlsx-consolidator")
		}
		a.v.SetConfigName("xlsx-consolidator")
		a.v.SetConfigType("yaml")
	}

	if err := a.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("ошибка чтения конфигурации: %w", err)
		}
	}

	return setupLogging(cmd.ErrOrStderr(), a.v.GetString(config.KeyLogLevel), a.v.GetString(config.KeyLogFormat))
}

// resolveFormat выбирает текстовый вывод для терминала и JSON для остального.
func resolveFormat(format string, w io.Writer) string {
	if format != "auto" {
		return format
	}
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return "console"
	}
	return "json"
}

func setupLogging(w io.Writer, level, format string) error {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		return fmt.Errorf("неизвестный уровень логирования: %s", level)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: slogLevel}
	switch resolveFormat(format, w) {
	case "console":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return fmt.Errorf("неизвестный формат логов: %s", format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

// sink выбирает приёмник уведомлений: строки с временем для человека
// или записи slog при машинном формате логов.
func (a *app) sink(cfg *config.Config, w io.Writer) notify.Sink {
	if resolveFormat(cfg.LogFormat, w) == "json" {
		return notify.NewSlog(slog.Default())
	}
	return notify.NewWriter(w)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Показать версию",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "xlsx-consolidator %s\n", version)
		},
	}
}
