package internal

import "context"

// MergeContext is the per-merge mutable state threaded through evaluation.
// It is created at the start of a merge and must not be shared between merges.
type MergeContext struct {
	ctx     context.Context
	current MergeSource
	attrs   map[string]any
}

// NewMergeContext creates a context whose current source is root.
func NewMergeContext(ctx context.Context, root MergeSource) *MergeContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &MergeContext{ctx: ctx, current: root}
}

// Context returns the caller's context.
func (m *MergeContext) Context() context.Context {
	return m.ctx
}

// CurrentSource returns the source currently answering lookups.
func (m *MergeContext) CurrentSource() MergeSource {
	return m.current
}

// SetCurrentSource swaps the source answering lookups.
func (m *MergeContext) SetCurrentSource(src MergeSource) {
	m.current = src
}

// Attribute returns a value from the attribute bag.
func (m *MergeContext) Attribute(key string) (any, bool) {
	if m.attrs == nil {
		return nil, false
	}
	v, ok := m.attrs[key]
	return v, ok
}

// SetAttribute stores a value in the attribute bag.
func (m *MergeContext) SetAttribute(key string, value any) {
	if m.attrs == nil {
		m.attrs = make(map[string]any)
	}
	m.attrs[key] = value
}

// RemoveAttribute deletes a value from the attribute bag.
func (m *MergeContext) RemoveAttribute(key string) {
	delete(m.attrs, key)
}
