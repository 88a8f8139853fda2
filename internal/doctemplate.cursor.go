package internal

import (
	"cmp"
	"errors"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	errEmptyBound    = errors.New("empty bound")
	errNegativeBound = errors.New("negative bound")
	errTooManyBounds = errors.New("too many bounds")
	errUnclosedIndex = errors.New("index not closed")
	errNegativeIndex = errors.New("negative index")
)

// IterationCursor is the source installed while an iteration body renders.
// It answers lookups from the current row first and falls back to the outer
// source. A key suffix _[N] addresses the row N positions after the current
// one without moving the cursor.
type IterationCursor struct {
	rows  []MergeSource
	outer MergeSource
	pos   int
}

// NewIterationCursor creates a cursor positioned before the first row.
func NewIterationCursor(rows []MergeSource, outer MergeSource) *IterationCursor {
	return &IterationCursor{rows: rows, outer: outer, pos: -1}
}

// Len returns the number of rows.
func (c *IterationCursor) Len() int {
	return len(c.rows)
}

// Next advances to the next row and reports whether one exists.
func (c *IterationCursor) Next() bool {
	if c.pos < len(c.rows) {
		c.pos++
	}
	return c.pos < len(c.rows)
}

// HasNext reports whether another row follows the current one.
func (c *IterationCursor) HasNext() bool {
	return c.pos+1 < len(c.rows)
}

// Row returns the row offset positions after the current one, or the shared
// empty source when that row does not exist.
func (c *IterationCursor) Row(offset int) MergeSource {
	i := max(c.pos, 0) + offset
	if i < 0 || i >= len(c.rows) {
		return sharedEmpty
	}
	return c.rows[i]
}

// GetData implements MergeSource.
func (c *IterationCursor) GetData(mctx *MergeContext, key string) (any, error) {
	key, row, err := c.resolve(key)
	if err != nil {
		return nil, err
	}
	return lookupData(mctx, row, c.outer, key)
}

// IfStatement implements MergeSource. Keys ending in hasNext report whether
// more rows follow.
func (c *IterationCursor) IfStatement(mctx *MergeContext, key string) (Truth, error) {
	if strings.HasSuffix(key, SuffixHasNext) {
		return TruthOf(c.HasNext()), nil
	}
	key, row, err := c.resolve(key)
	if err != nil {
		return TruthUnknown, err
	}
	return lookupIf(mctx, row, c.outer, key)
}

// WhileStatement implements MergeSource.
func (c *IterationCursor) WhileStatement(mctx *MergeContext, key string) ([]MergeSource, error) {
	key, row, err := c.resolve(key)
	if err != nil {
		return nil, err
	}
	return lookupWhile(mctx, row, c.outer, key)
}

// resolve strips an _[N] suffix and returns the addressed row.
func (c *IterationCursor) resolve(key string) (string, MergeSource, error) {
	offset, stripped, err := ParseRowIndex(key)
	if err != nil {
		return "", nil, err
	}
	return stripped, c.Row(offset), nil
}

// ParseRowIndex extracts an _[N] suffix from key. Keys without one address row 0.
func ParseRowIndex(key string) (int, string, error) {
	p := strings.Index(key, InfixIndexOpen)
	if p <= 0 {
		return 0, key, nil
	}
	if key[len(key)-1] != CharIndexClose {
		return 0, "", NewRangeError(ErrMsgInvalidIndex, key, errUnclosedIndex)
	}
	n, err := strconv.Atoi(key[p+len(InfixIndexOpen) : len(key)-1])
	if err != nil {
		return 0, "", NewRangeError(ErrMsgInvalidIndex, key, err)
	}
	if n < 0 {
		return 0, "", NewRangeError(ErrMsgInvalidIndex, key, errNegativeIndex)
	}
	return n, key[:p], nil
}

// ApplySubRange narrows rows to the inclusive range encoded as "from" or "from_to".
// Bounds past the end clamp to the list length.
func ApplySubRange(rows []MergeSource, spec, key string) ([]MergeSource, error) {
	parts := strings.Split(spec, CharRangeSep)
	if len(parts) > 2 {
		return nil, NewRangeError(ErrMsgInvalidSubRange, key, errTooManyBounds)
	}
	bounds := make([]int, 0, 2)
	for _, part := range parts {
		if part == "" {
			return nil, NewRangeError(ErrMsgInvalidSubRange, key, errEmptyBound)
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, NewRangeError(ErrMsgInvalidSubRange, key, err)
		}
		if n < 0 {
			return nil, NewRangeError(ErrMsgInvalidSubRange, key, errNegativeBound)
		}
		bounds = append(bounds, n)
	}

	from, end := bounds[0], len(rows)
	if len(bounds) == 2 && bounds[1] < end {
		end = bounds[1] + 1
	}
	if from >= end || from >= len(rows) {
		return []MergeSource{}, nil
	}
	return rows[from:end], nil
}

// sortCell is one resolved sort value of one row.
type sortCell struct {
	value  any
	failed bool
}

// SortRows returns a stably sorted copy of rows. Each sort key is resolved on
// the row first and on outer when the row does not know it. Values of
// different types, or of unordered types, tie. A key that fails to resolve on
// either row makes the whole comparison a tie.
func SortRows(mctx *MergeContext, rows []MergeSource, outer MergeSource, keys []SortKey, logger *zap.Logger) []MergeSource {
	if len(keys) == 0 || len(rows) < 2 {
		return rows
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	saved := mctx.CurrentSource()
	defer mctx.SetCurrentSource(saved)

	type decorated struct {
		row   MergeSource
		cells []sortCell
	}
	items := make([]decorated, len(rows))
	for i, row := range rows {
		mctx.SetCurrentSource(row)
		cells := make([]sortCell, len(keys))
		for k, sk := range keys {
			v, err := lookupData(mctx, row, outer, sk.Field)
			if err != nil {
				logger.Warn(LogMsgComparatorFailed,
					zap.String(LogFieldKey, sk.Field),
					zap.Int(LogFieldIndex, i),
					zap.Error(err))
				cells[k] = sortCell{failed: true}
				continue
			}
			if v == nil {
				v = ""
			}
			cells[k] = sortCell{value: v}
		}
		items[i] = decorated{row: row, cells: cells}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return compareCells(items[i].cells, items[j].cells, keys) < 0
	})

	sorted := make([]MergeSource, len(items))
	for i, it := range items {
		sorted[i] = it.row
	}
	return sorted
}

func compareCells(a, b []sortCell, keys []SortKey) int {
	for k, sk := range keys {
		if a[k].failed || b[k].failed {
			return 0
		}
		result := CompareValues(a[k].value, b[k].value)
		if sk.Descending {
			result = -result
		}
		if result != 0 {
			return result
		}
	}
	return 0
}

var timeType = reflect.TypeOf(time.Time{})

// CompareValues orders two values of the same ordered type. Values of
// different types, or of types without a natural order, compare as equal.
func CompareValues(a, b any) int {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta == nil || ta != tb {
		return 0
	}
	if ta == timeType {
		return a.(time.Time).Compare(b.(time.Time))
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch va.Kind() {
	case reflect.String:
		return strings.Compare(va.String(), vb.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cmp.Compare(va.Int(), vb.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return cmp.Compare(va.Uint(), vb.Uint())
	case reflect.Float32, reflect.Float64:
		return cmp.Compare(va.Float(), vb.Float())
	case reflect.Bool:
		switch {
		case va.Bool() == vb.Bool():
			return 0
		case vb.Bool():
			return -1
		default:
			return 1
		}
	default:
		return 0
	}
}
