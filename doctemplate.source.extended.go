package doctemplate

import (
	"fmt"
	"strings"
)

// NewExtendedObjectSource creates an ObjectSource whose conditions also accept
// "<path>_EQ_<literal>" and "<path>_NEQ_<literal>". The path is resolved through
// the current source of the merge, so row values and outer values both work.
// Rows produced by the source are extended as well.
func NewExtendedObjectSource(root any, opts ...ObjectOption) *ObjectSource {
	s := NewObjectSource(root, opts...)
	s.compare = true
	return s
}

// compareStatement evaluates an equality key. ok is false when key is not one.
func (s *ObjectSource) compareStatement(mctx *MergeContext, key string) (truth Truth, ok bool, err error) {
	path, literal, equal, ok := splitComparison(key)
	if !ok {
		return TruthUnknown, false, nil
	}
	if _, claimed := s.claim(path); !claimed {
		return TruthUnknown, false, nil
	}

	var src MergeSource = s
	if mctx != nil && mctx.CurrentSource() != nil {
		src = mctx.CurrentSource()
	}
	value, err := src.GetData(mctx, path)
	if err != nil {
		return TruthUnknown, true, err
	}
	if value == nil {
		return TruthOf(!equal), true, nil
	}
	return TruthOf((fmt.Sprint(value) == literal) == equal), true, nil
}

// splitComparison splits "path_EQ_lit" and "path_NEQ_lit" at the first operator.
func splitComparison(key string) (path, literal string, equal, ok bool) {
	eq := strings.Index(key, InfixEquals)
	neq := strings.Index(key, InfixNotEqual)
	switch {
	case eq > 0 && (neq <= 0 || eq < neq):
		return key[:eq], key[eq+len(InfixEquals):], true, true
	case neq > 0:
		return key[:neq], key[neq+len(InfixNotEqual):], false, true
	default:
		return "", "", false, false
	}
}
