package internal

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"time"

	"go.uber.org/zap"
)

// ValueFormatter renders a field value. An empty pattern means no pattern.
type ValueFormatter interface {
	Format(value any, pattern string) (string, error)
}

// DefaultPatterns are the patterns used when a field key carries none.
type DefaultPatterns struct {
	Integer string
	Float   string
	Date    string
}

// EvaluatorConfig holds evaluator collaborators
type EvaluatorConfig struct {
	Formatter ValueFormatter
	Escape    func(string) string
	Images    ImageEmbedder
	Defaults  DefaultPatterns
}

// Report counts what happened during one merge.
type Report struct {
	Fields            int
	MissingFields     int
	Conditions        int
	UnknownConditions int
	Iterations        int
	MissingIterations int
	Rows              int
	Images            int
}

// Evaluator renders element trees against a merge source.
// An Evaluator is stateless between calls and may be used concurrently.
type Evaluator struct {
	config EvaluatorConfig
	logger *zap.Logger
}

// NewEvaluator creates a new evaluator.
func NewEvaluator(config EvaluatorConfig, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{config: config, logger: logger}
}

// evalState is the per-merge bookkeeping of one Evaluate call.
type evalState struct {
	mctx   *MergeContext
	w      io.Writer
	report *Report
	images []*Image
}

// Evaluate renders root to w using the current source of mctx.
func (e *Evaluator) Evaluate(mctx *MergeContext, root *RootNode, w io.Writer) (*Report, error) {
	e.logger.Debug(LogMsgEvaluatorStart)

	st := &evalState{mctx: mctx, w: w, report: &Report{}}
	if err := e.evalNodes(st, root.Children); err != nil {
		return st.report, err
	}

	e.logger.Debug(LogMsgEvaluatorEnd,
		zap.Int(LogFieldNodes, st.report.Fields),
		zap.Int(LogFieldRows, st.report.Rows))
	return st.report, nil
}

func (e *Evaluator) evalNodes(st *evalState, nodes []Node) error {
	for _, node := range nodes {
		if err := e.evalNode(st, node); err != nil {
			return err
		}
	}
	return nil
}

func (e *Evaluator) evalNode(st *evalState, node Node) error {
	switch n := node.(type) {
	case *StaticNode:
		return e.write(st, n.Text, n.Type())
	case *FieldNode:
		return e.evalField(st, n)
	case *ConditionNode:
		return e.evalCondition(st, n)
	case *IterationNode:
		return e.evalIteration(st, n)
	case nil:
		return NewEvalError(ErrMsgNilNode, "", NodeTypeRoot, nil)
	default:
		return NewEvalError(ErrMsgUnknownNodeType, node.String(), node.Type(), nil)
	}
}

func (e *Evaluator) evalField(st *evalState, n *FieldNode) error {
	st.report.Fields++
	dataKey, pattern := n.SplitFormat()

	value, err := st.mctx.CurrentSource().GetData(st.mctx, dataKey)
	if err != nil {
		return sourceError(err, dataKey, n.Type())
	}

	switch v := value.(type) {
	case nil:
		st.report.MissingFields++
		e.logger.Warn(LogMsgMissingField, zap.String(LogFieldKey, dataKey))
		return nil
	case *Image:
		return e.embedImage(st, v, pattern, dataKey)
	case Image:
		return e.embedImage(st, &v, pattern, dataKey)
	}

	if pattern == "" {
		pattern = e.defaultPattern(value)
	}
	text, err := e.format(value, pattern)
	if err != nil {
		return NewEvalError(ErrMsgFormatFailed, n.Key, n.Type(), err)
	}
	if e.config.Escape != nil {
		text = e.config.Escape(text)
	}
	return e.write(st, text, n.Type())
}

func (e *Evaluator) embedImage(st *evalState, img *Image, sizeHint, key string) error {
	if e.config.Images == nil {
		e.logger.Warn(LogMsgNoImageEmbedder, zap.String(LogFieldKey, key))
		return nil
	}

	ref := ImageRef{Index: len(st.images)}
	for i, seen := range st.images {
		if seen.Equal(img) {
			ref = ImageRef{Index: i, Duplicate: true}
			break
		}
	}
	if !ref.Duplicate {
		st.images = append(st.images, img)
	}
	st.report.Images++

	token, err := e.config.Images.EmbedImage(img, sizeHint, ref)
	if err != nil {
		return NewEvalError(ErrMsgImageFailed, key, NodeTypeField, err)
	}
	e.logger.Debug(LogMsgImageEmbedded,
		zap.String(LogFieldKey, key),
		zap.Int(LogFieldIndex, ref.Index))
	return e.write(st, token, NodeTypeField)
}

func (e *Evaluator) evalCondition(st *evalState, n *ConditionNode) error {
	st.report.Conditions++

	truth, err := st.mctx.CurrentSource().IfStatement(st.mctx, n.Key)
	if err != nil {
		return sourceError(err, n.Key, n.Type())
	}
	e.logger.Debug(LogMsgConditionEvaluated,
		zap.String(LogFieldKey, n.Key),
		zap.Stringer(LogFieldResult, truth))

	switch truth {
	case TruthTrue:
		return e.evalNodes(st, n.Children)
	case TruthUnknown:
		st.report.UnknownConditions++
		e.logger.Warn(LogMsgUnknownCondition, zap.String(LogFieldKey, n.Key))
	}
	return nil
}

func (e *Evaluator) evalIteration(st *evalState, n *IterationNode) error {
	st.report.Iterations++
	mctx := st.mctx
	outer := mctx.CurrentSource()
	listKey, subRange := n.SplitSubRange()

	rows, err := outer.WhileStatement(mctx, listKey)
	if err != nil {
		return sourceError(err, listKey, n.Type())
	}
	if rows == nil {
		st.report.MissingIterations++
		e.logger.Warn(LogMsgMissingIteration, zap.String(LogFieldKey, listKey))
		return nil
	}

	rows = SortRows(mctx, rows, outer, n.SortKeys, e.logger)
	if subRange != "" {
		if rows, err = ApplySubRange(rows, subRange, n.Key); err != nil {
			return err
		}
	}
	e.logger.Debug(LogMsgIterationRows,
		zap.String(LogFieldKey, listKey),
		zap.Int(LogFieldRows, len(rows)),
		zap.Int(LogFieldSortBy, len(n.SortKeys)))

	cursor := NewIterationCursor(rows, outer)
	mctx.SetCurrentSource(cursor)
	defer mctx.SetCurrentSource(outer)

	for cursor.Next() {
		if err := mctx.Context().Err(); err != nil {
			return err
		}
		st.report.Rows++
		if err := e.evalNodes(st, n.Children); err != nil {
			return err
		}
	}
	return nil
}

// defaultPattern picks the pattern for a value by its runtime kind.
func (e *Evaluator) defaultPattern(value any) string {
	switch value.(type) {
	case time.Time, *time.Time:
		return e.config.Defaults.Date
	}
	switch reflect.ValueOf(value).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return e.config.Defaults.Integer
	case reflect.Float32, reflect.Float64:
		return e.config.Defaults.Float
	default:
		return ""
	}
}

func (e *Evaluator) format(value any, pattern string) (string, error) {
	if e.config.Formatter == nil {
		return fmt.Sprint(value), nil
	}
	return e.config.Formatter.Format(value, pattern)
}

func (e *Evaluator) write(st *evalState, text string, kind NodeType) error {
	if text == "" {
		return nil
	}
	if _, err := io.WriteString(st.w, text); err != nil {
		return NewEvalError(ErrMsgWriteFailed, "", kind, err)
	}
	return nil
}

// sourceError keeps range errors intact and wraps anything else with the key.
func sourceError(err error, key string, kind NodeType) error {
	var rangeErr *RangeError
	if errors.As(err, &rangeErr) {
		return err
	}
	return NewEvalError(ErrMsgSourceFailed, key, kind, err)
}
