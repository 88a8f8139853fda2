package internal

// Truth is the tri-state answer of a condition lookup.
type Truth int

// Truth values. TruthUnknown means no source could answer the key.
const (
	TruthUnknown Truth = iota
	TruthFalse
	TruthTrue
)

// Truth string names
const (
	TruthNameUnknown = "unknown"
	TruthNameFalse   = "false"
	TruthNameTrue    = "true"
)

// TruthOf converts a concrete boolean into a Truth.
func TruthOf(b bool) Truth {
	if b {
		return TruthTrue
	}
	return TruthFalse
}

// Known reports whether the truth value is concrete.
func (t Truth) Known() bool {
	return t != TruthUnknown
}

// Bool returns true only for TruthTrue.
func (t Truth) Bool() bool {
	return t == TruthTrue
}

// Negate flips a concrete value and leaves TruthUnknown untouched.
func (t Truth) Negate() Truth {
	switch t {
	case TruthTrue:
		return TruthFalse
	case TruthFalse:
		return TruthTrue
	default:
		return TruthUnknown
	}
}

// String returns the string representation of the truth value
func (t Truth) String() string {
	switch t {
	case TruthTrue:
		return TruthNameTrue
	case TruthFalse:
		return TruthNameFalse
	default:
		return TruthNameUnknown
	}
}

// MergeSource answers the three lookups a template can make.
//
// A nil value from GetData, TruthUnknown from IfStatement and a nil slice from
// WhileStatement all mean "not mine": layered sources fall through to the next
// source. An empty non-nil slice from WhileStatement is a claimed but empty list.
// Errors are fatal for the merge and are reserved for broken templates or
// failing backends, never for missing data.
type MergeSource interface {
	GetData(mctx *MergeContext, key string) (any, error)
	IfStatement(mctx *MergeContext, key string) (Truth, error)
	WhileStatement(mctx *MergeContext, key string) ([]MergeSource, error)
}

// emptySource answers every lookup with its neutral value.
type emptySource struct{}

var sharedEmpty MergeSource = emptySource{}

// Empty returns the shared empty source.
func Empty() MergeSource {
	return sharedEmpty
}

func (emptySource) GetData(*MergeContext, string) (any, error) {
	return "", nil
}

func (emptySource) IfStatement(*MergeContext, string) (Truth, error) {
	return TruthFalse, nil
}

func (emptySource) WhileStatement(*MergeContext, string) ([]MergeSource, error) {
	return []MergeSource{}, nil
}

// lookupData resolves key on primary and falls back to fallback when primary
// does not know it.
func lookupData(mctx *MergeContext, primary, fallback MergeSource, key string) (any, error) {
	v, err := primary.GetData(mctx, key)
	if err != nil || v != nil || fallback == nil {
		return v, err
	}
	return fallback.GetData(mctx, key)
}

func lookupIf(mctx *MergeContext, primary, fallback MergeSource, key string) (Truth, error) {
	t, err := primary.IfStatement(mctx, key)
	if err != nil || t.Known() || fallback == nil {
		return t, err
	}
	return fallback.IfStatement(mctx, key)
}

func lookupWhile(mctx *MergeContext, primary, fallback MergeSource, key string) ([]MergeSource, error) {
	rows, err := primary.WhileStatement(mctx, key)
	if err != nil || rows != nil || fallback == nil {
		return rows, err
	}
	return fallback.WhileStatement(mctx, key)
}
