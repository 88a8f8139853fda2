package doctemplate

import (
	"context"
	"io"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/itsatony/go-doctemplate/internal"
)

// Engine is the main entry point for document template merging.
// It owns the parser and evaluator configuration and a registry of named templates.
type Engine struct {
	templates map[string]*Template // Named templates
	tmplMu    sync.RWMutex         // Protects templates map
	config    *engineConfig
	parser    *internal.Parser
	evaluator *internal.Evaluator
	logger    *zap.Logger
}

// New creates a new Engine with the given options.
func New(opts ...Option) (*Engine, error) {
	config := defaultEngineConfig()
	for _, opt := range opts {
		opt(config)
	}

	logger := config.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if config.openSentinel == config.closeSentinel {
		return nil, NewSentinelError(config.openSentinel)
	}

	formatter := config.formatter
	if formatter == nil {
		formatter = NewDefaultFormatter(config.locale)
	}

	parser := internal.NewParser(internal.ParserConfig{
		OpenSentinel:  config.openSentinel,
		CloseSentinel: config.closeSentinel,
		Translations:  config.translations,
	}, logger)

	evaluator := internal.NewEvaluator(internal.EvaluatorConfig{
		Formatter: formatter,
		Escape:    config.escape,
		Images:    config.images,
		Defaults:  config.defaults,
	}, logger)

	logger.Debug(LogMsgEngineCreated,
		zap.String(LogFieldKey, config.openSentinel),
		zap.Int(LogFieldCount, len(config.translations)))

	return &Engine{
		templates: make(map[string]*Template),
		config:    config,
		parser:    parser,
		evaluator: evaluator,
		logger:    logger,
	}, nil
}

// MustNew creates a new Engine and panics if there's an error.
func MustNew(opts ...Option) *Engine {
	engine, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return engine
}

// Parse parses a normalized marker stream and returns a Template.
// The returned Template can be merged many times, concurrently, with different sources.
func (e *Engine) Parse(source string) (*Template, error) {
	root, err := e.parser.Parse(source)
	e.config.metrics.observeParse(err)
	if err != nil {
		return nil, NewParseError(err)
	}
	return newTemplate(source, root, e), nil
}

// Merge is a convenience method that parses and merges in one step.
// For templates that will be merged repeatedly, use Parse instead.
func (e *Engine) Merge(ctx context.Context, source string, src MergeSource) (string, error) {
	tmpl, err := e.Parse(source)
	if err != nil {
		return "", err
	}
	return tmpl.Merge(ctx, src)
}

// MergeDocument runs pre on r, parses the result and merges it into w.
// A nil pre-processor reads r unchanged.
func (e *Engine) MergeDocument(ctx context.Context, pre PreProcessor, r io.Reader, w io.Writer, src MergeSource) (*MergeReport, error) {
	if pre == nil {
		pre = PassthroughPreProcessor{}
	}
	source, err := pre.PreProcess(ctx, r)
	if err != nil {
		return nil, NewPreProcessError(err)
	}
	tmpl, err := e.Parse(source)
	if err != nil {
		return nil, err
	}
	return tmpl.MergeWithReport(ctx, w, src)
}

// RegisterTemplate parses source and registers it under name.
// Returns an error if a template with the same name already exists.
func (e *Engine) RegisterTemplate(name string, source string) error {
	if name == "" {
		return NewEmptyTemplateNameError()
	}

	e.tmplMu.Lock()
	defer e.tmplMu.Unlock()

	if _, exists := e.templates[name]; exists {
		return NewTemplateExistsError(name)
	}

	tmpl, err := e.Parse(source)
	if err != nil {
		return err
	}

	e.templates[name] = tmpl
	e.logger.Debug(LogMsgTemplateRegistered,
		zap.String(LogFieldName, name),
		zap.Int(LogFieldNodes, tmpl.NodeCount()))
	return nil
}

// MustRegisterTemplate registers a template and panics on error.
func (e *Engine) MustRegisterTemplate(name string, source string) {
	if err := e.RegisterTemplate(name, source); err != nil {
		panic(err)
	}
}

// UnregisterTemplate removes a registered template by name.
// Returns true if the template existed and was removed, false otherwise.
func (e *Engine) UnregisterTemplate(name string) bool {
	e.tmplMu.Lock()
	defer e.tmplMu.Unlock()

	if _, exists := e.templates[name]; exists {
		delete(e.templates, name)
		return true
	}
	return false
}

// GetTemplate retrieves a registered template by name.
func (e *Engine) GetTemplate(name string) (*Template, bool) {
	e.tmplMu.RLock()
	defer e.tmplMu.RUnlock()

	tmpl, ok := e.templates[name]
	return tmpl, ok
}

// ListTemplates returns all registered template names in sorted order.
func (e *Engine) ListTemplates() []string {
	e.tmplMu.RLock()
	defer e.tmplMu.RUnlock()

	names := make([]string, 0, len(e.templates))
	for name := range e.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MergeTemplate merges a registered template by name.
func (e *Engine) MergeTemplate(ctx context.Context, name string, src MergeSource) (string, error) {
	tmpl, ok := e.GetTemplate(name)
	if !ok {
		return "", NewTemplateNotFoundError(name)
	}
	return tmpl.Merge(ctx, src)
}

// Logger returns the engine's logger.
func (e *Engine) Logger() *zap.Logger {
	return e.logger
}
