package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoadDefaults(t *testing.T) {
	v := newViper(t)
	v.Set(KeyWatchDir, "./inbox/")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "inbox", cfg.WatchDir)
	assert.Equal(t, "master.xlsx", cfg.LedgerName)
	assert.Equal(t, filepath.Join("inbox", "master.xlsx"), cfg.LedgerPath())
	assert.Equal(t, time.Second, cfg.RetryInterval)
	assert.Equal(t, 10, cfg.MoveAttempts)
	assert.Zero(t, cfg.MaxWait)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "auto", cfg.LogFormat)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("XLSXC_WATCH_DIR", "/data/in")
	t.Setenv("XLSXC_RETRY_INTERVAL", "250ms")
	t.Setenv("XLSXC_LEDGER_MAX_WAIT", "2m")
	t.Setenv("XLSXC_LOGGING_FORMAT", "JSON")

	cfg, err := Load(newViper(t))
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean("/data/in"), cfg.WatchDir)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryInterval)
	assert.Equal(t, 2*time.Minute, cfg.MaxWait)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xlsx-consolidator.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
watch:
  dir: /srv/reports
ledger:
  name: total.xlsx
retry:
  move_attempts: 3
`), 0o644))

	v := newViper(t)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Clean("/srv/reports"), "total.xlsx"), cfg.LedgerPath())
	assert.Equal(t, 3, cfg.MoveAttempts)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			WatchDir:      "in",
			LedgerName:    "master.xlsx",
			RetryInterval: time.Second,
			MoveAttempts:  10,
			LogLevel:      "info",
			LogFormat:     "console",
		}
	}
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"пустая папка", func(c *Config) { c.WatchDir = "" }},
		{"мастер-файл с папкой", func(c *Config) { c.LedgerName = filepath.Join("sub", "master.xlsx") }},
		{"мастер-файл не xlsx", func(c *Config) { c.LedgerName = "master.xls" }},
		{"мастер-файл с префиксом блокировки", func(c *Config) { c.LedgerName = "~$master.xlsx" }},
		{"отрицательное ожидание", func(c *Config) { c.MaxWait = -time.Second }},
		{"нулевой интервал", func(c *Config) { c.RetryInterval = 0 }},
		{"нулевые попытки", func(c *Config) { c.MoveAttempts = 0 }},
		{"уровень логов", func(c *Config) { c.LogLevel = "verbose" }},
		{"формат логов", func(c *Config) { c.LogFormat = "xml" }},
	}

	base := valid()
	require.NoError(t, base.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
