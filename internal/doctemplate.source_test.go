package internal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource is a map-backed MergeSource for tests.
type fakeSource struct {
	data  map[string]any
	conds map[string]Truth
	lists map[string][]MergeSource
	fail  map[string]error
	calls []string
}

func newFake() *fakeSource {
	return &fakeSource{
		data:  map[string]any{},
		conds: map[string]Truth{},
		lists: map[string][]MergeSource{},
		fail:  map[string]error{},
	}
}

func (f *fakeSource) with(key string, v any) *fakeSource {
	f.data[key] = v
	return f
}

func (f *fakeSource) cond(key string, t Truth) *fakeSource {
	f.conds[key] = t
	return f
}

func (f *fakeSource) list(key string, rows ...MergeSource) *fakeSource {
	if rows == nil {
		rows = []MergeSource{}
	}
	f.lists[key] = rows
	return f
}

func (f *fakeSource) failing(key string, err error) *fakeSource {
	f.fail[key] = err
	return f
}

func (f *fakeSource) GetData(_ *MergeContext, key string) (any, error) {
	f.calls = append(f.calls, key)
	if err, ok := f.fail[key]; ok {
		return nil, err
	}
	return f.data[key], nil
}

func (f *fakeSource) IfStatement(_ *MergeContext, key string) (Truth, error) {
	f.calls = append(f.calls, key)
	if err, ok := f.fail[key]; ok {
		return TruthUnknown, err
	}
	return f.conds[key], nil
}

func (f *fakeSource) WhileStatement(_ *MergeContext, key string) ([]MergeSource, error) {
	f.calls = append(f.calls, key)
	if err, ok := f.fail[key]; ok {
		return nil, err
	}
	return f.lists[key], nil
}

func row(kv ...any) *fakeSource {
	f := newFake()
	for i := 0; i+1 < len(kv); i += 2 {
		f.with(kv[i].(string), kv[i+1])
	}
	return f
}

func TestTruth_Negate(t *testing.T) {
	tests := []struct {
		name     string
		in       Truth
		expected Truth
	}{
		{"true flips", TruthTrue, TruthFalse},
		{"false flips", TruthFalse, TruthTrue},
		{"unknown stays unknown", TruthUnknown, TruthUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.in.Negate())
		})
	}
}

func TestTruth_Helpers(t *testing.T) {
	assert.Equal(t, TruthTrue, TruthOf(true))
	assert.Equal(t, TruthFalse, TruthOf(false))
	assert.True(t, TruthTrue.Known())
	assert.False(t, TruthUnknown.Known())
	assert.False(t, TruthFalse.Bool())
	assert.Equal(t, TruthNameUnknown, TruthUnknown.String())
	assert.Equal(t, TruthNameTrue, TruthTrue.String())
}

func TestEmpty_NeutralAnswers(t *testing.T) {
	mctx := NewMergeContext(context.Background(), nil)
	src := Empty()

	v, err := src.GetData(mctx, "anything")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	truth, err := src.IfStatement(mctx, "anything")
	require.NoError(t, err)
	assert.Equal(t, TruthFalse, truth)

	rows, err := src.WhileStatement(mctx, "anything")
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)

	assert.Equal(t, Empty(), src)
}

func TestLookup_FallsBackOnlyWhenPrimaryDoesNotKnow(t *testing.T) {
	mctx := NewMergeContext(context.Background(), nil)
	primary := row("name", "row")
	fallback := row("name", "outer", "city", "Bern")

	v, err := lookupData(mctx, primary, fallback, "name")
	require.NoError(t, err)
	assert.Equal(t, "row", v)

	v, err = lookupData(mctx, primary, fallback, "city")
	require.NoError(t, err)
	assert.Equal(t, "Bern", v)

	boom := errors.New("boom")
	primary.failing("broken", boom)
	_, err = lookupData(mctx, primary, fallback, "broken")
	assert.ErrorIs(t, err, boom)

	primary.cond("flag", TruthFalse)
	fallback.cond("flag", TruthTrue).cond("other", TruthTrue)
	truth, err := lookupIf(mctx, primary, fallback, "flag")
	require.NoError(t, err)
	assert.Equal(t, TruthFalse, truth)
	truth, err = lookupIf(mctx, primary, fallback, "other")
	require.NoError(t, err)
	assert.Equal(t, TruthTrue, truth)

	primary.list("empty")
	fallback.list("empty", row()).list("items", row(), row())
	rows, err := lookupWhile(mctx, primary, fallback, "empty")
	require.NoError(t, err)
	assert.Empty(t, rows)
	rows, err = lookupWhile(mctx, primary, fallback, "items")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestMergeContext_Attributes(t *testing.T) {
	root := row()
	mctx := NewMergeContext(nil, root)

	assert.NotNil(t, mctx.Context())
	assert.Same(t, root, mctx.CurrentSource())

	_, ok := mctx.Attribute("missing")
	assert.False(t, ok)

	mctx.SetAttribute("page", 3)
	v, ok := mctx.Attribute("page")
	require.True(t, ok)
	assert.Equal(t, 3, v)

	mctx.RemoveAttribute("page")
	_, ok = mctx.Attribute("page")
	assert.False(t, ok)

	other := row()
	mctx.SetCurrentSource(other)
	assert.Same(t, other, mctx.CurrentSource())
}
