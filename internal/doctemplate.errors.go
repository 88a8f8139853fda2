package internal

import "fmt"

// Position represents a location in the normalized marker stream
type Position struct {
	Offset int // Byte offset from start
	Line   int // 1-indexed line number
	Column int // 1-indexed column number
}

// String returns a human-readable position string
func (p Position) String() string {
	return fmt.Sprintf("line %d, column %d", p.Line, p.Column)
}

// StructureError reports an unbalanced or unrecognized marker.
// It is always fatal for the parse.
type StructureError struct {
	Message  string
	Key      string
	Kind     NodeType
	Position Position
}

// NewStructureError creates a new structure error.
func NewStructureError(message, key string, kind NodeType, pos Position) *StructureError {
	return &StructureError{
		Message:  message,
		Key:      key,
		Kind:     kind,
		Position: pos,
	}
}

// Error implements the error interface.
func (e *StructureError) Error() string {
	if e.Key != "" {
		return e.Message + ": " + e.Key + " at " + e.Position.String()
	}
	return e.Message + " at " + e.Position.String()
}

// RangeError reports a malformed sub-range or row index in a key.
type RangeError struct {
	Message string
	Key     string
	Cause   error
}

// NewRangeError creates a new range error.
func NewRangeError(message, key string, cause error) *RangeError {
	return &RangeError{
		Message: message,
		Key:     key,
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *RangeError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Key + ": " + e.Cause.Error()
	}
	return e.Message + ": " + e.Key
}

// Unwrap returns the underlying cause.
func (e *RangeError) Unwrap() error {
	return e.Cause
}

// EvalError wraps a failure raised by a collaborator while evaluating a node.
type EvalError struct {
	Message string
	Key     string
	Kind    NodeType
	Cause   error
}

// NewEvalError creates a new evaluation error.
func NewEvalError(message, key string, kind NodeType, cause error) *EvalError {
	return &EvalError{
		Message: message,
		Key:     key,
		Kind:    kind,
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *EvalError) Error() string {
	msg := e.Message
	if e.Key != "" {
		msg += ": " + e.Key
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *EvalError) Unwrap() error {
	return e.Cause
}
