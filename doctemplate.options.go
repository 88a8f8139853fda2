package doctemplate

import (
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/itsatony/go-doctemplate/internal"
)

// Option is a functional option for configuring the Engine.
type Option func(*engineConfig)

// Translation rewrites a substring of every marker key before dispatch.
type Translation = internal.Translation

// DefaultPatterns holds the patterns applied to fields whose key carries none.
type DefaultPatterns = internal.DefaultPatterns

// Formatter renders a field value with a pattern. An empty pattern means none.
type Formatter = internal.ValueFormatter

// engineConfig holds the internal configuration for an Engine.
type engineConfig struct {
	openSentinel  string
	closeSentinel string
	translations  []Translation
	formatter     Formatter
	locale        language.Tag
	defaults      DefaultPatterns
	escape        func(string) string
	images        ImageEmbedder
	metrics       *Metrics
	logger        *zap.Logger
}

// defaultEngineConfig returns the default engine configuration.
func defaultEngineConfig() *engineConfig {
	return &engineConfig{
		openSentinel:  DefaultOpenSentinel,
		closeSentinel: DefaultCloseSentinel,
		translations:  internal.DefaultTranslations(),
		locale:        language.English,
		defaults: DefaultPatterns{
			Integer: DefaultIntegerPattern,
			Float:   DefaultFloatPattern,
			Date:    DefaultDatePattern,
		},
		escape: XMLEscape,
	}
}

// WithSentinels sets the strings that wrap every marker key.
// Default: "<doc-template-bookmark>" and "</doc-template-bookmark>"
func WithSentinels(open, close string) Option {
	return func(c *engineConfig) {
		if open != "" {
			c.openSentinel = open
		}
		if close != "" {
			c.closeSentinel = close
		}
	}
}

// WithKeyTranslations replaces the key translation table.
// Pass nothing to disable the built-in _FMT0DP/_FMT1DP/_FMT2DP shorthands.
func WithKeyTranslations(translations ...Translation) Option {
	return func(c *engineConfig) {
		c.translations = append([]Translation(nil), translations...)
	}
}

// WithKeyTranslation appends one translation to the table.
func WithKeyTranslation(from, to string) Option {
	return func(c *engineConfig) {
		c.translations = append(c.translations, Translation{From: from, To: to})
	}
}

// WithFormatter replaces the default formatter.
func WithFormatter(f Formatter) Option {
	return func(c *engineConfig) {
		c.formatter = f
	}
}

// WithLocale sets the locale of the default formatter.
// Ignored when WithFormatter supplies a formatter.
// Default: English
func WithLocale(tag language.Tag) Option {
	return func(c *engineConfig) {
		c.locale = tag
	}
}

// WithDefaultPatterns sets the patterns used for fields without _FMT.
// Empty members keep their current value.
func WithDefaultPatterns(p DefaultPatterns) Option {
	return func(c *engineConfig) {
		if p.Integer != "" {
			c.defaults.Integer = p.Integer
		}
		if p.Float != "" {
			c.defaults.Float = p.Float
		}
		if p.Date != "" {
			c.defaults.Date = p.Date
		}
	}
}

// WithEscaper sets the function applied to every formatted field value.
// A nil escaper writes values verbatim.
// Default: XMLEscape
func WithEscaper(escape func(string) string) Option {
	return func(c *engineConfig) {
		c.escape = escape
	}
}

// WithImageEmbedder sets the embedder for image-typed field values.
// Default: nil (image fields are skipped with a warning)
func WithImageEmbedder(images ImageEmbedder) Option {
	return func(c *engineConfig) {
		c.images = images
	}
}

// WithMetrics records merge and parse outcomes on m.
func WithMetrics(m *Metrics) Option {
	return func(c *engineConfig) {
		c.metrics = m
	}
}

// WithLogger sets the logger for the engine.
// Default: nil (no logging)
func WithLogger(logger *zap.Logger) Option {
	return func(c *engineConfig) {
		c.logger = logger
	}
}

var xmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// XMLEscape escapes the five XML special characters.
func XMLEscape(s string) string {
	return xmlReplacer.Replace(s)
}

// EscaperFor returns the escaper registered under mode.
func EscaperFor(mode string) (func(string) string, bool) {
	switch strings.ToLower(mode) {
	case "", EscapeModeXML:
		return XMLEscape, true
	case EscapeModeNone:
		return nil, true
	default:
		return nil, false
	}
}
