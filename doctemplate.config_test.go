package doctemplate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/itsatony/go-cuserr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const fullConfigYAML = `
engine:
  locale: de
  escape: none
  patterns:
    integer: "0000"
    float: "#,##0.0"
    date: yyyy-MM-dd
  translations:
    - from: _FMTCHF
      to: "_FMT'CHF '#,##0.00"
storage:
  driver: memory
cache:
  enabled: true
  ttl: 2m
  max_entries: 50
  negative_ttl: 5s
  purge_schedule: "*/10 * * * *"
watch:
  dir: /srv/templates
  debounce: 500ms
`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig(strings.NewReader(fullConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, "de", cfg.Engine.Locale)
	assert.Equal(t, EscapeModeNone, cfg.Engine.Escape)
	assert.Equal(t, "0000", cfg.Engine.Patterns.Integer)
	assert.Equal(t, []TranslationConfig{{From: "_FMTCHF", To: "_FMT'CHF '#,##0.00"}}, cfg.Engine.Translations)
	assert.Equal(t, StorageDriverNameMemory, cfg.Storage.Driver)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 50, cfg.Cache.MaxEntries)
	assert.Equal(t, 5*time.Second, cfg.Cache.NegativeTTL)
	assert.Equal(t, "*/10 * * * *", cfg.Cache.PurgeSchedule)
	assert.Equal(t, "/srv/templates", cfg.Watch.Dir)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)
	assert.Empty(t, cfg.Path())
}

func TestParseConfig_Empty(t *testing.T) {
	cfg, err := ParseConfig(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Config{}, *cfg)
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		message string
	}{
		{"unknown field", "engine:\n  colour: red\n", ErrMsgConfigParse},
		{"malformed", "engine: [", ErrMsgConfigParse},
		{"bad duration", "cache:\n  ttl: soon\n", ErrMsgConfigParse},
		{"invalid locale", "engine:\n  locale: not-a-locale!\n", ErrMsgInvalidLocale},
		{"invalid escape", "engine:\n  escape: html\n", ErrMsgInvalidEscape},
		{"equal sentinels", "engine:\n  open_sentinel: '|'\n  close_sentinel: '|'\n", ErrMsgInvalidSentinels},
		{"empty translation", "engine:\n  translations:\n    - to: x\n", ErrMsgConfigInvalid},
		{"negative ttl", "cache:\n  ttl: -1s\n", ErrMsgConfigInvalid},
		{"negative entries", "cache:\n  max_entries: -1\n", ErrMsgConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig(strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doctemplate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  locale: fr\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "fr", cfg.Engine.Locale)
	assert.Equal(t, path, cfg.Path())

	missing := filepath.Join(dir, "absent.yaml")
	_, err = LoadConfig(missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrMsgConfigRead)

	var ce *cuserr.CustomError
	require.True(t, errors.As(err, &ce))
	got, ok := ce.GetMetadata(MetaKeyPath)
	require.True(t, ok)
	assert.Equal(t, missing, got)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("engine:\n  escape: html\n"), 0o644))
	_, err = LoadConfig(bad)
	require.True(t, errors.As(err, &ce))
	got, _ = ce.GetMetadata(MetaKeyPath)
	assert.Equal(t, bad, got)
}

func TestConfig_EngineOptions(t *testing.T) {
	ctx := context.Background()
	cfg, err := ParseConfig(strings.NewReader(fullConfigYAML))
	require.NoError(t, err)

	opts, err := cfg.EngineOptions()
	require.NoError(t, err)
	engine, err := New(opts...)
	require.NoError(t, err)

	src := NewBindingSource().
		Value("N", 7).
		Value("AMOUNT", 1234.5).
		Value("TEXT", "a<b").
		Value("WHEN", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))

	tests := []struct {
		name     string
		source   string
		expected string
	}{
		{"integer pattern", mk("FIELD_N"), "0007"},
		{"date pattern", mk("FIELD_WHEN"), "2024-03-05"},
		{"no escaping", mk("FIELD_TEXT"), "a<b"},
		{"configured translation", mk("FIELD_AMOUNT_FMTCHF"), "CHF 1.234,50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := engine.Merge(ctx, tt.source, src)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}

	t.Run("sentinels", func(t *testing.T) {
		cfg := &Config{Engine: EngineConfig{OpenSentinel: "{{", CloseSentinel: "}}"}}
		opts, err := cfg.EngineOptions()
		require.NoError(t, err)

		out, err := MustNew(opts...).Merge(ctx, "{{FIELD_TEXT}}", src)
		require.NoError(t, err)
		assert.Equal(t, "a&lt;b", out)
	})

	t.Run("extra options win", func(t *testing.T) {
		opts, err := cfg.EngineOptions(WithEscaper(XMLEscape))
		require.NoError(t, err)

		out, err := MustNew(opts...).Merge(ctx, mk("FIELD_TEXT"), src)
		require.NoError(t, err)
		assert.Equal(t, "a&lt;b", out)
	})
}

func TestConfig_OpenStorage(t *testing.T) {
	t.Run("default memory", func(t *testing.T) {
		storage, err := (&Config{}).OpenStorage(nil)
		require.NoError(t, err)
		defer storage.Close()
		assert.IsType(t, &MemoryStorage{}, storage)
	})

	t.Run("cached", func(t *testing.T) {
		core, logs := observer.New(zapcore.InfoLevel)
		cfg := &Config{
			Storage: StorageConfig{Driver: StorageDriverNameFilesystem, DSN: t.TempDir()},
			Cache:   CacheSection{Enabled: true, TTL: time.Minute, PurgeSchedule: "@every 1h"},
		}

		storage, err := cfg.OpenStorage(zap.New(core))
		require.NoError(t, err)
		defer storage.Close()

		cached, ok := storage.(*CachedStorage)
		require.True(t, ok)
		assert.Equal(t, time.Minute, cached.config.TTL)

		entries := logs.FilterMessage(LogMsgStorageOpened).All()
		require.Len(t, entries, 1)
		assert.Equal(t, StorageDriverNameFilesystem, entries[0].ContextMap()[LogFieldDriver])
		assert.Equal(t, true, entries[0].ContextMap()[LogFieldCached])
	})

	t.Run("bad schedule", func(t *testing.T) {
		cfg := &Config{Cache: CacheSection{Enabled: true, PurgeSchedule: "whenever"}}
		_, err := cfg.OpenStorage(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), ErrMsgInvalidSchedule)
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := &Config{Storage: StorageConfig{Driver: "mongo"}}
		_, err := cfg.OpenStorage(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), ErrMsgUnknownDriver)
	})
}

func TestConfig_OpenLibraryAndWatcher(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := &Config{
		Engine:  EngineConfig{Locale: "de"},
		Storage: StorageConfig{Driver: StorageDriverNameSQLite, DSN: filepath.Join(dir, "lib.db")},
		Watch:   WatchSection{Dir: dir, Debounce: time.Second},
	}

	lib, err := cfg.OpenLibrary()
	require.NoError(t, err)
	defer lib.Close()

	require.NoError(t, lib.Save(ctx, &StoredTemplate{Name: "sum", Source: mk("FIELD_X")}))
	out, err := lib.Merge(ctx, "sum", NewBindingSource().Value("X", 1234.5))
	require.NoError(t, err)
	assert.Equal(t, "1.234,50", out)

	w, err := cfg.NewWatcher(lib, nil)
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, time.Second, w.config.Debounce)
	require.NoError(t, w.Close())

	w, err = (&Config{}).NewWatcher(lib, nil)
	require.NoError(t, err)
	assert.Nil(t, w)
}
