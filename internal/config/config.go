// Package config собирает настройки консолидатора из viper: файла
// конфигурации, переменных окружения XLSXC_* и флагов командной строки.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ryabkov82/xlsx-consolidator/internal/archive"
	"github.com/ryabkov82/xlsx-consolidator/internal/workbook"
)

const EnvPrefix = "XLSXC"

// Ключи конфигурации.
const (
	KeyWatchDir     = "watch.dir"
	KeyLedgerName   = "ledger.name"
	KeyLedgerWait   = "ledger.max_wait"
	KeyInterval     = "retry.interval"
	KeyMoveAttempts = "retry.move_attempts"
	KeyLogLevel     = "logging.level"
	KeyLogFormat    = "logging.format"
)

type Config struct {
	WatchDir   string
	LedgerName string
	// MaxWait ограничивает ожидание мастер-файла, 0 снимает ограничение.
	MaxWait       time.Duration
	RetryInterval time.Duration
	MoveAttempts  int
	LogLevel      string
	LogFormat     string // console, json или auto
}

// LedgerPath возвращает полный путь к мастер-файлу внутри наблюдаемой папки.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.WatchDir, c.LedgerName)
}

// SetDefaults регистрирует значения по умолчанию и привязку к окружению.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyWatchDir, "")
	v.SetDefault(KeyLedgerName, "master.xlsx")
	v.SetDefault(KeyLedgerWait, time.Duration(0))
	v.SetDefault(KeyInterval, time.Second)
	v.SetDefault(KeyMoveAttempts, archive.DefaultAttempts)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "auto")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load читает настройки из v, нормализует пути и проверяет значения.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		WatchDir:      strings.TrimSpace(v.GetString(KeyWatchDir)),
		LedgerName:    strings.TrimSpace(v.GetString(KeyLedgerName)),
		MaxWait:       v.GetDuration(KeyLedgerWait),
		RetryInterval: v.GetDuration(KeyInterval),
		MoveAttempts:  v.GetInt(KeyMoveAttempts),
		LogLevel:      strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
		LogFormat:     strings.ToLower(strings.TrimSpace(v.GetString(KeyLogFormat))),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Нормализация путей
	cfg.WatchDir = filepath.Clean(cfg.WatchDir)
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.WatchDir == "" {
		return fmt.Errorf("необходимо указать папку для наблюдения (%s)", KeyWatchDir)
	}
	if c.LedgerName == "" || c.LedgerName != filepath.Base(c.LedgerName) {
		return fmt.Errorf("имя мастер-файла должно быть именем файла без папок: %q", c.LedgerName)
	}
	if !strings.EqualFold(filepath.Ext(c.LedgerName), ".xlsx") {
		return fmt.Errorf("мастер-файл должен иметь расширение .xlsx: %q", c.LedgerName)
	}
	if workbook.IsLockArtifact(c.LedgerName) {
		return fmt.Errorf("имя мастер-файла не может начинаться с %s", workbook.LockPrefix)
	}
	if c.MaxWait < 0 {
		return fmt.Errorf("%s не может быть отрицательным", KeyLedgerWait)
	}
	if c.RetryInterval <= 0 {
		return fmt.Errorf("%s должен быть больше нуля", KeyInterval)
	}
	if c.MoveAttempts <= 0 {
		return fmt.Errorf("%s должен быть больше нуля", KeyMoveAttempts)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("неизвестный уровень логирования: %s", c.LogLevel)
	}
	switch c.LogFormat {
	case "console", "json", "auto":
	default:
		return fmt.Errorf("неизвестный формат логов: %s", c.LogFormat)
	}
	return nil
}
