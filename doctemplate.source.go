package doctemplate

import (
	"context"

	"github.com/itsatony/go-doctemplate/internal"
)

// MergeSource answers the field, condition and iteration lookups of a merge.
//
// Returning nil from GetData, TruthUnknown from IfStatement or a nil slice from
// WhileStatement means the source does not know the key. An iteration source
// for an empty list returns an empty non-nil slice. Errors abort the merge.
type MergeSource = internal.MergeSource

// MergeContext carries the current source and per-merge attributes.
type MergeContext = internal.MergeContext

// Truth is the tri-state result of a condition lookup.
type Truth = internal.Truth

// Truth values
const (
	TruthUnknown = internal.TruthUnknown
	TruthFalse   = internal.TruthFalse
	TruthTrue    = internal.TruthTrue
)

// TruthOf converts a bool into a known Truth.
func TruthOf(b bool) Truth {
	return internal.TruthOf(b)
}

// NewMergeContext creates a merge context rooted at src.
// Custom sources rarely need this; Template.Merge creates one per call.
func NewMergeContext(ctx context.Context, src MergeSource) *MergeContext {
	return internal.NewMergeContext(ctx, src)
}

// EmptySource returns the source that answers "" for fields, false for
// conditions and an empty list for iterations. It never defers to another source.
func EmptySource() MergeSource {
	return internal.Empty()
}

// ChainSource asks its sources in order and returns the first known answer.
// Errors stop the chain.
type ChainSource []MergeSource

// Chain layers sources; earlier sources shadow later ones. Nil entries are dropped.
func Chain(sources ...MergeSource) ChainSource {
	out := make(ChainSource, 0, len(sources))
	for _, s := range sources {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// GetData returns the first non-nil value.
func (c ChainSource) GetData(mctx *MergeContext, key string) (any, error) {
	for _, s := range c {
		v, err := s.GetData(mctx, key)
		if err != nil || v != nil {
			return v, err
		}
	}
	return nil, nil
}

// IfStatement returns the first known truth value.
func (c ChainSource) IfStatement(mctx *MergeContext, key string) (Truth, error) {
	for _, s := range c {
		t, err := s.IfStatement(mctx, key)
		if err != nil || t.Known() {
			return t, err
		}
	}
	return TruthUnknown, nil
}

// WhileStatement returns the first claimed list, empty lists included.
func (c ChainSource) WhileStatement(mctx *MergeContext, key string) ([]MergeSource, error) {
	for _, s := range c {
		rows, err := s.WhileStatement(mctx, key)
		if err != nil || rows != nil {
			return rows, err
		}
	}
	return nil, nil
}
