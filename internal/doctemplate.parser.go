package internal

import (
	"html"
	"strings"

	"go.uber.org/zap"
)

// Translation is one literal substitution applied to marker keys
type Translation struct {
	From string
	To   string
}

// DefaultTranslations returns the built-in key translation table.
// The short pattern aliases exist for host formats that forbid '#' and ',' in names.
func DefaultTranslations() []Translation {
	return []Translation{
		{From: InfixFormat + "0DP", To: InfixFormat + "#,##0"},
		{From: InfixFormat + "1DP", To: InfixFormat + "#,##0.0"},
		{From: InfixFormat + "2DP", To: InfixFormat + "#,##0.00"},
	}
}

// ParserConfig holds parser configuration
type ParserConfig struct {
	OpenSentinel  string
	CloseSentinel string
	Translations  []Translation
}

// DefaultParserConfig returns the default parser configuration.
func DefaultParserConfig() ParserConfig {
	return ParserConfig{
		OpenSentinel:  DefaultOpenSentinel,
		CloseSentinel: DefaultCloseSentinel,
		Translations:  DefaultTranslations(),
	}
}

// Parser turns a normalized marker stream into a tree of merge elements.
// A Parser holds no per-parse state and may be used concurrently.
type Parser struct {
	config ParserConfig
	logger *zap.Logger
}

// NewParser creates a new parser.
func NewParser(config ParserConfig, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.OpenSentinel == "" {
		config.OpenSentinel = DefaultOpenSentinel
	}
	if config.CloseSentinel == "" {
		config.CloseSentinel = DefaultCloseSentinel
	}
	return &Parser{config: config, logger: logger}
}

// Parse scans source and returns the root of the element tree.
func (p *Parser) Parse(source string) (*RootNode, error) {
	p.logger.Debug(LogMsgParserStart, zap.Int(LogFieldSource, len(source)))

	root := &RootNode{}
	stack := []Container{root}
	tr := newTracker(source)
	open, closing := p.config.OpenSentinel, p.config.CloseSentinel

	pos := 0
	for {
		idx := strings.Index(source[pos:], open)
		if idx < 0 {
			break
		}
		start := pos + idx
		if start > pos {
			stack[len(stack)-1].appendChild(NewStaticNode(source[pos:start], tr.at(pos)))
		}

		markerPos := tr.at(start)
		keyStart := start + len(open)
		end := strings.Index(source[keyStart:], closing)
		if end < 0 {
			return nil, NewStructureError(ErrMsgMissingEndSentinel, source[keyStart:min(len(source), keyStart+maxStaticDisplay)], NodeTypeRoot, markerPos)
		}
		key := normalizeKey(source[keyStart : keyStart+end])
		pos = keyStart + end + len(closing)

		var err error
		stack, err = p.dispatch(stack, key, markerPos)
		if err != nil {
			return nil, err
		}
	}
	if pos < len(source) {
		stack[len(stack)-1].appendChild(NewStaticNode(source[pos:], tr.at(pos)))
	}

	if len(stack) != 1 {
		inner := stack[len(stack)-1]
		return nil, NewStructureError(ErrMsgUnclosedContainer, containerKey(inner), inner.Type(), inner.Pos())
	}

	p.logger.Debug(LogMsgParserEnd, zap.Int(LogFieldNodes, countNodes(root)))
	return root, nil
}

// dispatch applies one marker key to the container stack and returns the new stack.
func (p *Parser) dispatch(stack []Container, key string, pos Position) ([]Container, error) {
	top := stack[len(stack)-1]

	switch {
	case strings.HasPrefix(key, PrefixField):
		top.appendChild(NewFieldNode(p.translate(key[len(PrefixField):]), pos))

	case strings.HasPrefix(key, PrefixIf):
		cond := NewConditionNode(p.translate(key[len(PrefixIf):]), pos)
		top.appendChild(cond)
		stack = append(stack, cond)

	case strings.HasPrefix(key, PrefixWhile):
		iter := NewIterationNode(p.translate(key[len(PrefixWhile):]), pos)
		top.appendChild(iter)
		stack = append(stack, iter)

	case strings.HasPrefix(key, PrefixSort):
		iter, ok := top.(*IterationNode)
		if !ok {
			p.logger.Warn(LogMsgSortIgnored,
				zap.String(LogFieldKey, key),
				zap.Int(LogFieldOffset, pos.Offset))
			return stack, nil
		}
		iter.SortKeys = append(iter.SortKeys, ParseSortKey(p.translate(key[len(PrefixSort):])))

	case strings.HasPrefix(key, PrefixEndIf), strings.HasPrefix(key, PrefixEndWhile):
		if len(stack) <= 1 {
			return nil, NewStructureError(ErrMsgUnbalancedEnd, key, endKind(key), pos)
		}
		stack = stack[:len(stack)-1]

	default:
		return nil, NewStructureError(ErrMsgUnknownMarker, key, NodeTypeRoot, pos)
	}
	return stack, nil
}

// translate applies the key translation table in order.
func (p *Parser) translate(key string) string {
	for _, t := range p.config.Translations {
		if t.From != "" {
			key = strings.ReplaceAll(key, t.From, t.To)
		}
	}
	return key
}

// normalizeKey unescapes entities, trims surrounding whitespace (including
// non-breaking spaces) and strips an _ALT or _ALT<digits> suffix.
func normalizeKey(raw string) string {
	key := strings.TrimSpace(html.UnescapeString(raw))
	p := strings.LastIndex(key, SuffixAlt)
	if p <= 0 {
		return key
	}
	for _, r := range key[p+len(SuffixAlt):] {
		if r < '0' || r > '9' {
			return key
		}
	}
	return key[:p]
}

func endKind(key string) NodeType {
	if strings.HasPrefix(key, PrefixEndWhile) {
		return NodeTypeIteration
	}
	return NodeTypeCondition
}

func containerKey(c Container) string {
	switch n := c.(type) {
	case *ConditionNode:
		return PrefixIf + n.Key
	case *IterationNode:
		return PrefixWhile + n.Key
	default:
		return ""
	}
}

func countNodes(root *RootNode) int {
	count := 0
	Walk(root, func(Node) bool {
		count++
		return true
	})
	return count - 1
}

// tracker converts byte offsets to line/column positions.
// Offsets must be requested in non-decreasing order.
type tracker struct {
	src  string
	off  int
	line int
	col  int
}

func newTracker(src string) *tracker {
	return &tracker{src: src, line: 1, col: 1}
}

func (t *tracker) at(offset int) Position {
	for t.off < offset && t.off < len(t.src) {
		if t.src[t.off] == '\n' {
			t.line++
			t.col = 1
		} else {
			t.col++
		}
		t.off++
	}
	return Position{Offset: offset, Line: t.line, Column: t.col}
}
