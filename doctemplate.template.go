package doctemplate

import (
	"context"
	"io"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/itsatony/go-doctemplate/internal"
)

// MergeCounts counts what happened during one merge.
type MergeCounts = internal.Report

// MergeReport is the outcome of a successful merge.
type MergeReport struct {
	MergeCounts
	Duration time.Duration
}

// TemplateKeys lists the distinct data keys a template asks its source for.
type TemplateKeys struct {
	Fields     []string
	Conditions []string
	Iterations []string
	SortKeys   []string
}

// Template represents a parsed template that can be merged multiple times.
// A Template is immutable and safe for concurrent merges.
type Template struct {
	source string
	root   *internal.RootNode
	engine *Engine
}

func newTemplate(source string, root *internal.RootNode, engine *Engine) *Template {
	engine.logger.Debug(LogMsgTemplateParsed, zap.Int(LogFieldNodes, countNodes(root)))
	return &Template{source: source, root: root, engine: engine}
}

// Merge renders the template against src and returns the result.
func (t *Template) Merge(ctx context.Context, src MergeSource) (string, error) {
	var sb strings.Builder
	if _, err := t.MergeWithReport(ctx, &sb, src); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// MergeTo renders the template against src into w.
// Output already written when an error occurs is not rolled back.
func (t *Template) MergeTo(ctx context.Context, w io.Writer, src MergeSource) error {
	_, err := t.MergeWithReport(ctx, w, src)
	return err
}

// MergeWithReport renders the template into w and reports what was resolved.
func (t *Template) MergeWithReport(ctx context.Context, w io.Writer, src MergeSource) (*MergeReport, error) {
	if src == nil {
		return nil, NewNilSourceError()
	}

	logger := t.engine.logger
	metrics := t.engine.config.metrics
	mctx := internal.NewMergeContext(ctx, src)

	start := time.Now()
	report, err := t.engine.evaluator.Evaluate(mctx, t.root, w)
	elapsed := time.Since(start)
	metrics.observeMerge(report, elapsed, err)

	if err != nil {
		logger.Warn(LogMsgMergeFailed, zap.Error(err))
		return nil, NewMergeError(err)
	}

	logger.Debug(LogMsgMergeComplete,
		zap.Duration(LogFieldDuration, elapsed),
		zap.Int(LogFieldMissing, report.MissingFields))
	return &MergeReport{MergeCounts: *report, Duration: elapsed}, nil
}

// Source returns the marker stream the template was parsed from.
func (t *Template) Source() string {
	return t.source
}

// String renders the element tree for debugging.
func (t *Template) String() string {
	return t.root.String()
}

// Depth returns the nesting depth of conditions and iterations.
func (t *Template) Depth() int {
	return internal.Depth(t.root)
}

// NodeCount returns the number of elements in the tree, root excluded.
func (t *Template) NodeCount() int {
	return countNodes(t.root)
}

// Keys collects the data keys referenced by the template, sorted and deduplicated.
// Field keys have their _FMT pattern removed; iteration keys their _SUB range.
func (t *Template) Keys() TemplateKeys {
	fields := map[string]struct{}{}
	conds := map[string]struct{}{}
	iters := map[string]struct{}{}
	sorts := map[string]struct{}{}

	internal.Walk(t.root, func(n internal.Node) bool {
		switch node := n.(type) {
		case *internal.FieldNode:
			key, _ := node.SplitFormat()
			fields[key] = struct{}{}
		case *internal.ConditionNode:
			conds[node.Key] = struct{}{}
		case *internal.IterationNode:
			key, _ := node.SplitSubRange()
			iters[key] = struct{}{}
			for _, sk := range node.SortKeys {
				sorts[sk.Field] = struct{}{}
			}
		}
		return true
	})

	return TemplateKeys{
		Fields:     sortedKeys(fields),
		Conditions: sortedKeys(conds),
		Iterations: sortedKeys(iters),
		SortKeys:   sortedKeys(sorts),
	}
}

func countNodes(root *internal.RootNode) int {
	n := -1
	internal.Walk(root, func(internal.Node) bool {
		n++
		return true
	})
	return n
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
