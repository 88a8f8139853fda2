package doctemplate

import (
	"bytes"
	"errors"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config is the YAML file form of an engine, its storage and its watcher.
//
//	engine:
//	  locale: de_CH
//	  escape: xml
//	  patterns:
//	    integer: "#,##0"
//	    date: dd.MM.yyyy
//	storage:
//	  driver: filesystem
//	  dsn: /srv/templates
//	cache:
//	  enabled: true
//	  ttl: 5m
//	  purge_schedule: "*/5 * * * *"
//	watch:
//	  dir: /srv/templates
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Storage StorageConfig `yaml:"storage"`
	Cache   CacheSection  `yaml:"cache"`
	Watch   WatchSection  `yaml:"watch"`

	path string
}

// EngineConfig holds the engine section.
type EngineConfig struct {
	OpenSentinel  string              `yaml:"open_sentinel,omitempty"`
	CloseSentinel string              `yaml:"close_sentinel,omitempty"`
	Locale        string              `yaml:"locale,omitempty"`
	Escape        string              `yaml:"escape,omitempty"`
	Patterns      PatternsSection     `yaml:"patterns,omitempty"`
	Translations  []TranslationConfig `yaml:"translations,omitempty"`
}

// PatternsSection overrides the default value patterns.
type PatternsSection struct {
	Integer string `yaml:"integer,omitempty"`
	Float   string `yaml:"float,omitempty"`
	Date    string `yaml:"date,omitempty"`
}

// TranslationConfig appends one key translation to the built-in table.
type TranslationConfig struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// StorageConfig selects a registered storage driver.
type StorageConfig struct {
	Driver string `yaml:"driver,omitempty"`
	DSN    string `yaml:"dsn,omitempty"`
}

// CacheSection configures the CachedStorage wrapper.
type CacheSection struct {
	Enabled       bool          `yaml:"enabled"`
	TTL           time.Duration `yaml:"ttl,omitempty"`
	MaxEntries    int           `yaml:"max_entries,omitempty"`
	NegativeTTL   time.Duration `yaml:"negative_ttl,omitempty"`
	PurgeSchedule string        `yaml:"purge_schedule,omitempty"`
}

// WatchSection configures the directory Watcher.
type WatchSection struct {
	Dir      string        `yaml:"dir,omitempty"`
	Debounce time.Duration `yaml:"debounce,omitempty"`
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewConfigError(ErrMsgConfigRead, path, err)
	}
	return parseConfig(data, path)
}

// ParseConfig decodes and validates YAML configuration from r.
func ParseConfig(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, NewConfigError(ErrMsgConfigRead, "", err)
	}
	return parseConfig(data, "")
}

func parseConfig(data []byte, path string) (*Config, error) {
	cfg := &Config{path: path}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, NewConfigError(ErrMsgConfigParse, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that can be verified without opening anything.
func (c *Config) Validate() error {
	if c.Engine.Locale != "" {
		if _, err := ParseLocale(c.Engine.Locale); err != nil {
			return NewConfigError(ErrMsgInvalidLocale, c.path, nil)
		}
	}
	if _, ok := EscaperFor(c.Engine.Escape); !ok {
		return NewConfigError(ErrMsgInvalidEscape, c.path, nil)
	}
	if c.Engine.OpenSentinel != "" && c.Engine.OpenSentinel == c.Engine.CloseSentinel {
		return NewSentinelError(c.Engine.OpenSentinel)
	}
	for _, t := range c.Engine.Translations {
		if t.From == "" {
			return NewConfigError(ErrMsgConfigInvalid, c.path, nil)
		}
	}
	if c.Cache.TTL < 0 || c.Cache.NegativeTTL < 0 || c.Cache.MaxEntries < 0 || c.Watch.Debounce < 0 {
		return NewConfigError(ErrMsgConfigInvalid, c.path, nil)
	}
	return nil
}

// EngineOptions converts the engine section into Options. Extra options are
// applied after the configured ones.
func (c *Config) EngineOptions(extra ...Option) ([]Option, error) {
	var opts []Option

	if c.Engine.OpenSentinel != "" || c.Engine.CloseSentinel != "" {
		openSentinel, closeSentinel := c.Engine.OpenSentinel, c.Engine.CloseSentinel
		if openSentinel == "" {
			openSentinel = DefaultOpenSentinel
		}
		if closeSentinel == "" {
			closeSentinel = DefaultCloseSentinel
		}
		opts = append(opts, WithSentinels(openSentinel, closeSentinel))
	}
	if c.Engine.Locale != "" {
		tag, err := ParseLocale(c.Engine.Locale)
		if err != nil {
			return nil, NewConfigError(ErrMsgInvalidLocale, c.path, err)
		}
		opts = append(opts, WithLocale(tag))
	}
	escape, ok := EscaperFor(c.Engine.Escape)
	if !ok {
		return nil, NewConfigError(ErrMsgInvalidEscape, c.path, nil)
	}
	opts = append(opts, WithEscaper(escape))
	opts = append(opts, WithDefaultPatterns(DefaultPatterns{
		Integer: c.Engine.Patterns.Integer,
		Float:   c.Engine.Patterns.Float,
		Date:    c.Engine.Patterns.Date,
	}))
	for _, t := range c.Engine.Translations {
		opts = append(opts, WithKeyTranslation(t.From, t.To))
	}

	return append(opts, extra...), nil
}

// OpenStorage opens the configured driver, wrapped in a CachedStorage when
// the cache section is enabled. An empty driver means memory.
func (c *Config) OpenStorage(logger *zap.Logger) (TemplateStorage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	driver := c.Storage.Driver
	if driver == "" {
		driver = StorageDriverNameMemory
	}

	storage, err := OpenStorage(driver, c.Storage.DSN)
	if err != nil {
		return nil, err
	}
	logger.Info(LogMsgStorageOpened,
		zap.String(LogFieldDriver, driver),
		zap.Bool(LogFieldCached, c.Cache.Enabled))

	if !c.Cache.Enabled {
		return storage, nil
	}
	cached, err := NewCachedStorage(storage, CacheConfig{
		TTL:              c.Cache.TTL,
		MaxEntries:       c.Cache.MaxEntries,
		NegativeCacheTTL: c.Cache.NegativeTTL,
		PurgeSchedule:    c.Cache.PurgeSchedule,
		Logger:           logger,
	})
	if err != nil {
		storage.Close()
		return nil, err
	}
	return cached, nil
}

// OpenLibrary builds an engine from the engine section and a library over
// the configured storage.
func (c *Config) OpenLibrary(extra ...Option) (*Library, error) {
	opts, err := c.EngineOptions(extra...)
	if err != nil {
		return nil, err
	}
	engine, err := New(opts...)
	if err != nil {
		return nil, err
	}
	storage, err := c.OpenStorage(engine.Logger())
	if err != nil {
		return nil, err
	}
	return NewLibrary(LibraryConfig{Storage: storage, Engine: engine})
}

// NewWatcher creates a watcher for lib from the watch section, or returns
// nil when no directory is configured.
func (c *Config) NewWatcher(lib *Library, pre PreProcessor) (*Watcher, error) {
	if c.Watch.Dir == "" {
		return nil, nil
	}
	return NewWatcher(lib, WatcherConfig{
		Dir:          c.Watch.Dir,
		Debounce:     c.Watch.Debounce,
		PreProcessor: pre,
	})
}

// Path returns the file the configuration was loaded from, if any.
func (c *Config) Path() string {
	return c.path
}
