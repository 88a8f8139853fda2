package doctemplate

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ObjectSource resolves dotted keys against a Go value by reflection.
//
// A path segment matches, case-insensitively, an exported field (promoted
// fields included), a zero-argument method returning T or (T, error), the
// same method without its Get or Is prefix, or an entry of a string-keyed map.
//
// With a claim prefix the source only answers keys starting with that prefix
// (compared case-insensitively) or with ReflectionPrefix; the prefix is removed
// before resolution. Without one it answers every key. Rows produced by
// WhileStatement claim "<key>.".
type ObjectSource struct {
	root    any
	prefix  string
	compare bool
	logger  *zap.Logger
}

// ObjectOption configures an ObjectSource.
type ObjectOption func(*ObjectSource)

// WithClaimPrefix restricts the source to keys starting with prefix.
func WithClaimPrefix(prefix string) ObjectOption {
	return func(s *ObjectSource) {
		s.prefix = strings.ToUpper(prefix)
	}
}

// WithSourceLogger sets the logger for accessor and iteration warnings.
func WithSourceLogger(logger *zap.Logger) ObjectOption {
	return func(s *ObjectSource) {
		s.logger = logger
	}
}

// NewObjectSource creates a source backed by root.
func NewObjectSource(root any, opts ...ObjectOption) *ObjectSource {
	s := &ObjectSource{root: root}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Root returns the value the source resolves against.
func (s *ObjectSource) Root() any {
	return s.root
}

// claim strips the claim prefix from key and reports whether the source answers it.
func (s *ObjectSource) claim(key string) (string, bool) {
	if hasPrefixFold(key, ReflectionPrefix) {
		return key[len(ReflectionPrefix):], true
	}
	if s.prefix == "" {
		return key, true
	}
	if hasPrefixFold(key, s.prefix) {
		return key[len(s.prefix):], true
	}
	return "", false
}

// GetData implements MergeSource.
func (s *ObjectSource) GetData(_ *MergeContext, key string) (any, error) {
	path, ok := s.claim(key)
	if !ok {
		return nil, nil
	}

	value, found, err := resolvePath(s.root, path)
	if err != nil {
		s.logger.Warn(LogMsgAccessorFailed, zap.String(LogFieldKey, key), zap.Error(err))
		return err.Error(), nil
	}
	if !found {
		return nil, nil
	}
	if value == nil {
		return "", nil
	}
	return value, nil
}

// IfStatement implements MergeSource.
func (s *ObjectSource) IfStatement(mctx *MergeContext, key string) (Truth, error) {
	if s.compare {
		if truth, ok, err := s.compareStatement(mctx, key); ok || err != nil {
			return truth, err
		}
	}

	negate := false
	if strings.HasSuffix(key, SuffixNot) {
		key = strings.TrimSuffix(key, SuffixNot)
		negate = true
	}

	value, err := s.GetData(mctx, key)
	if err != nil || value == nil {
		return TruthUnknown, err
	}

	truth := TruthOf(truthy(value))
	if negate {
		truth = truth.Negate()
	}
	return truth, nil
}

// WhileStatement implements MergeSource.
func (s *ObjectSource) WhileStatement(_ *MergeContext, key string) ([]MergeSource, error) {
	path, ok := s.claim(key)
	if !ok {
		return nil, nil
	}

	value, found, err := resolvePath(s.root, path)
	if err != nil {
		s.logger.Warn(LogMsgAccessorFailed, zap.String(LogFieldKey, key), zap.Error(err))
		return []MergeSource{}, nil
	}
	if !found || value == nil {
		return []MergeSource{}, nil
	}

	v := indirect(reflect.ValueOf(value))
	if !v.IsValid() {
		return []MergeSource{}, nil
	}
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		s.logger.Warn(LogMsgNotIterable,
			zap.String(LogFieldKey, key),
			zap.String(LogFieldType, v.Type().String()))
		return []MergeSource{}, nil
	}

	rows := make([]MergeSource, v.Len())
	for i := range rows {
		rows[i] = &ObjectSource{
			root:    normalize(v.Index(i)),
			prefix:  strings.ToUpper(key + PathSeparator),
			compare: s.compare,
			logger:  s.logger,
		}
	}
	return rows, nil
}

// resolvePath walks path from obj. found is false when a segment has no accessor.
// A nil value part-way down the path ends the walk with a nil value.
func resolvePath(obj any, path string) (value any, found bool, err error) {
	if path == "" {
		return obj, true, nil
	}
	current := obj
	for _, segment := range strings.Split(path, PathSeparator) {
		if current == nil {
			return nil, true, nil
		}
		current, found, err = lookupSegment(current, segment)
		if err != nil || !found {
			return nil, found, err
		}
	}
	return current, true, nil
}

func lookupSegment(obj any, name string) (any, bool, error) {
	v := reflect.ValueOf(obj)
	if base := indirect(v); base.Kind() == reflect.Map && base.Type().Key().Kind() == reflect.String {
		if value, ok := mapEntry(base, name); ok {
			return value, true, nil
		}
	}

	acc, ok := accessorsFor(v.Type())[strings.ToLower(name)]
	if !ok {
		return nil, false, nil
	}
	value, err := acc(v)
	return value, true, err
}

func mapEntry(m reflect.Value, name string) (any, bool) {
	key := reflect.ValueOf(name).Convert(m.Type().Key())
	if e := m.MapIndex(key); e.IsValid() {
		return normalize(e), true
	}
	iter := m.MapRange()
	for iter.Next() {
		if strings.EqualFold(iter.Key().String(), name) {
			return normalize(iter.Value()), true
		}
	}
	return nil, false
}

// accessor reads one named property from a value of the type it was built for.
type accessor func(v reflect.Value) (any, error)

var accessorCache = struct {
	sync.RWMutex
	byType map[reflect.Type]map[string]accessor
}{byType: make(map[reflect.Type]map[string]accessor)}

// accessorsFor returns the accessor table of t, building it on first use.
func accessorsFor(t reflect.Type) map[string]accessor {
	accessorCache.RLock()
	table, ok := accessorCache.byType[t]
	accessorCache.RUnlock()
	if ok {
		return table
	}

	table = buildAccessors(t)

	accessorCache.Lock()
	defer accessorCache.Unlock()
	if existing, ok := accessorCache.byType[t]; ok {
		return existing
	}
	accessorCache.byType[t] = table
	return table
}

func buildAccessors(t reflect.Type) map[string]accessor {
	table := make(map[string]accessor)

	st := t
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	if st.Kind() == reflect.Struct {
		for _, f := range reflect.VisibleFields(st) {
			if !f.IsExported() {
				continue
			}
			name := strings.ToLower(f.Name)
			if _, taken := table[name]; !taken {
				table[name] = fieldAccessor(f.Index)
			}
		}
	}

	exact := make(map[string]accessor)
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if !isGetter(m.Type) {
			continue
		}
		acc := methodAccessor(m.Index, m.Name)
		exact[strings.ToLower(m.Name)] = acc
		for _, bean := range []string{"Get", "Is"} {
			if len(m.Name) > len(bean) && strings.HasPrefix(m.Name, bean) {
				name := strings.ToLower(m.Name[len(bean):])
				if _, taken := table[name]; !taken {
					table[name] = acc
				}
			}
		}
	}
	for name, acc := range exact {
		table[name] = acc
	}
	return table
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// isGetter accepts func(recv) T and func(recv) (T, error).
func isGetter(mt reflect.Type) bool {
	if mt.NumIn() != 1 {
		return false
	}
	switch mt.NumOut() {
	case 1:
		return true
	case 2:
		return mt.Out(1) == errorType
	default:
		return false
	}
}

func fieldAccessor(index []int) accessor {
	return func(v reflect.Value) (any, error) {
		v = indirect(v)
		if !v.IsValid() {
			return nil, nil
		}
		f, err := v.FieldByIndexErr(index)
		if err != nil {
			// nil embedded pointer
			return nil, nil
		}
		return normalize(f), nil
	}
}

func methodAccessor(index int, name string) accessor {
	return func(v reflect.Value) (value any, err error) {
		if v.Kind() == reflect.Pointer && v.IsNil() {
			return nil, nil
		}
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s: %v", name, r)
			}
		}()
		out := v.Method(index).Call(nil)
		if len(out) == 2 && !out[1].IsNil() {
			return nil, out[1].Interface().(error)
		}
		return normalize(out[0]), nil
	}
}

// normalize unwraps a reflect value into an interface, mapping nil pointers,
// interfaces, maps and slices to nil.
func normalize(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if v.IsNil() {
			return nil
		}
	}
	if v.Kind() == reflect.Interface {
		return normalize(v.Elem())
	}
	if !v.CanInterface() {
		return nil
	}
	return v.Interface()
}

// indirect follows pointers until a non-pointer or a nil pointer.
func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// truthy coerces a non-nil value into a condition result.
func truthy(value any) bool {
	if b, ok := value.(bool); ok {
		return b
	}
	v := indirect(reflect.ValueOf(value))
	if !v.IsValid() {
		return false
	}
	switch v.Kind() {
	case reflect.Bool:
		return v.Bool()
	case reflect.Slice, reflect.Array, reflect.Map:
		return v.Len() > 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return v.Float() != 0
	default:
		return fmt.Sprint(v.Interface()) != ""
	}
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
