package doctemplate

import "strings"

// FieldFunc computes a field value on demand.
type FieldFunc func(mctx *MergeContext) (any, error)

// ConditionFunc computes a condition on demand.
type ConditionFunc func(mctx *MergeContext) (bool, error)

// IterationFunc produces the rows of an iteration on demand.
type IterationFunc func(mctx *MergeContext) ([]MergeSource, error)

// BindingSource is a MergeSource assembled from explicit key bindings.
// Keys are matched exactly. Conditions honor the _NOT suffix.
// Bindings must be complete before the source is used in a merge.
type BindingSource struct {
	fields     map[string]FieldFunc
	conditions map[string]ConditionFunc
	iterations map[string]IterationFunc
}

// NewBindingSource creates an empty binding source.
func NewBindingSource() *BindingSource {
	return &BindingSource{
		fields:     make(map[string]FieldFunc),
		conditions: make(map[string]ConditionFunc),
		iterations: make(map[string]IterationFunc),
	}
}

// Field binds key to a computed value.
func (b *BindingSource) Field(key string, fn FieldFunc) *BindingSource {
	b.fields[key] = fn
	return b
}

// Value binds key to a constant value.
func (b *BindingSource) Value(key string, value any) *BindingSource {
	return b.Field(key, func(*MergeContext) (any, error) { return value, nil })
}

// Condition binds key to a computed condition.
func (b *BindingSource) Condition(key string, fn ConditionFunc) *BindingSource {
	b.conditions[key] = fn
	return b
}

// Flag binds key to a constant condition.
func (b *BindingSource) Flag(key string, value bool) *BindingSource {
	return b.Condition(key, func(*MergeContext) (bool, error) { return value, nil })
}

// Iteration binds key to computed rows.
func (b *BindingSource) Iteration(key string, fn IterationFunc) *BindingSource {
	b.iterations[key] = fn
	return b
}

// Rows binds key to a constant list of rows.
func (b *BindingSource) Rows(key string, rows ...MergeSource) *BindingSource {
	if rows == nil {
		rows = []MergeSource{}
	}
	return b.Iteration(key, func(*MergeContext) ([]MergeSource, error) { return rows, nil })
}

// GetData implements MergeSource.
func (b *BindingSource) GetData(mctx *MergeContext, key string) (any, error) {
	fn, ok := b.fields[key]
	if !ok {
		return nil, nil
	}
	return fn(mctx)
}

// IfStatement implements MergeSource.
func (b *BindingSource) IfStatement(mctx *MergeContext, key string) (Truth, error) {
	negate := false
	fn, ok := b.conditions[key]
	if !ok && strings.HasSuffix(key, SuffixNot) {
		fn, ok = b.conditions[strings.TrimSuffix(key, SuffixNot)]
		negate = true
	}
	if !ok {
		return TruthUnknown, nil
	}

	v, err := fn(mctx)
	if err != nil {
		return TruthUnknown, err
	}
	if negate {
		v = !v
	}
	return TruthOf(v), nil
}

// WhileStatement implements MergeSource.
func (b *BindingSource) WhileStatement(mctx *MergeContext, key string) ([]MergeSource, error) {
	fn, ok := b.iterations[key]
	if !ok {
		return nil, nil
	}
	rows, err := fn(mctx)
	if err == nil && rows == nil {
		rows = []MergeSource{}
	}
	return rows, err
}

// RowsOf maps items to rows with bind.
func RowsOf[T any](items []T, bind func(T) MergeSource) []MergeSource {
	rows := make([]MergeSource, 0, len(items))
	for _, item := range items {
		rows = append(rows, bind(item))
	}
	return rows
}
