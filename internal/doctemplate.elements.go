package internal

import (
	"fmt"
	"strings"
)

// Node is one element of a parsed template tree.
// Trees are built by the parser and never mutated afterwards.
type Node interface {
	// Type returns the node type identifier
	Type() NodeType
	// Pos returns the stream position of the marker that produced the node
	Pos() Position
	// String returns a human-readable representation
	String() string
}

// Container is a node that owns children.
type Container interface {
	Node
	Nodes() []Node
	appendChild(n Node)
}

// Display limits for String output
const (
	maxStaticDisplay = 40
	truncationSuffix = "..."
)

// RootNode is the top-level container of a template
type RootNode struct {
	Children []Node
}

// Type returns NodeTypeRoot
func (n *RootNode) Type() NodeType { return NodeTypeRoot }

// Pos returns the start of the stream
func (n *RootNode) Pos() Position { return Position{Line: 1, Column: 1} }

// Nodes returns the children
func (n *RootNode) Nodes() []Node { return n.Children }

func (n *RootNode) appendChild(c Node) { n.Children = append(n.Children, c) }

// String returns a string representation of the tree
func (n *RootNode) String() string {
	var sb strings.Builder
	sb.WriteString("RootNode{\n")
	writeChildren(&sb, n.Children, 1)
	sb.WriteString("}")
	return sb.String()
}

// StaticNode is literal text emitted unchanged
type StaticNode struct {
	pos  Position
	Text string
}

// NewStaticNode creates a new static node
func NewStaticNode(text string, pos Position) *StaticNode {
	return &StaticNode{pos: pos, Text: text}
}

// Type returns NodeTypeStatic
func (n *StaticNode) Type() NodeType { return NodeTypeStatic }

// Pos returns the stream position
func (n *StaticNode) Pos() Position { return n.pos }

// String returns a string representation
func (n *StaticNode) String() string {
	text := n.Text
	if len(text) > maxStaticDisplay {
		text = text[:maxStaticDisplay] + truncationSuffix
	}
	return fmt.Sprintf("Static{%q}", text)
}

// FieldNode is a single value lookup. Key may carry a format suffix.
type FieldNode struct {
	pos Position
	Key string
}

// NewFieldNode creates a new field node
func NewFieldNode(key string, pos Position) *FieldNode {
	return &FieldNode{pos: pos, Key: key}
}

// Type returns NodeTypeField
func (n *FieldNode) Type() NodeType { return NodeTypeField }

// Pos returns the stream position
func (n *FieldNode) Pos() Position { return n.pos }

// String returns a string representation
func (n *FieldNode) String() string { return fmt.Sprintf("Field{%s}", n.Key) }

// SplitFormat splits the key into the data key and the explicit pattern.
// The pattern is empty when the key has no format suffix.
func (n *FieldNode) SplitFormat() (dataKey, pattern string) {
	if p := strings.Index(n.Key, InfixFormat); p > 0 {
		return n.Key[:p], n.Key[p+len(InfixFormat):]
	}
	return n.Key, ""
}

// ConditionNode renders its children when its key is true
type ConditionNode struct {
	pos      Position
	Key      string
	Children []Node
}

// NewConditionNode creates a new condition node
func NewConditionNode(key string, pos Position) *ConditionNode {
	return &ConditionNode{pos: pos, Key: key}
}

// Type returns NodeTypeCondition
func (n *ConditionNode) Type() NodeType { return NodeTypeCondition }

// Pos returns the stream position
func (n *ConditionNode) Pos() Position { return n.pos }

// Nodes returns the children
func (n *ConditionNode) Nodes() []Node { return n.Children }

func (n *ConditionNode) appendChild(c Node) { n.Children = append(n.Children, c) }

// String returns a string representation
func (n *ConditionNode) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Condition{%s\n", n.Key)
	writeChildren(&sb, n.Children, 1)
	sb.WriteString("}")
	return sb.String()
}

// SortKey is one ordering criterion of an iteration
type SortKey struct {
	Field      string
	Descending bool
}

// ParseSortKey builds a sort key, reading the descending flag from a _DESC suffix.
func ParseSortKey(key string) SortKey {
	if strings.HasSuffix(key, SuffixDesc) {
		return SortKey{Field: strings.TrimSuffix(key, SuffixDesc), Descending: true}
	}
	return SortKey{Field: key}
}

// IterationNode renders its children once per row
type IterationNode struct {
	pos      Position
	Key      string
	SortKeys []SortKey
	Children []Node
}

// NewIterationNode creates a new iteration node
func NewIterationNode(key string, pos Position) *IterationNode {
	return &IterationNode{pos: pos, Key: key}
}

// Type returns NodeTypeIteration
func (n *IterationNode) Type() NodeType { return NodeTypeIteration }

// Pos returns the stream position
func (n *IterationNode) Pos() Position { return n.pos }

// Nodes returns the children
func (n *IterationNode) Nodes() []Node { return n.Children }

func (n *IterationNode) appendChild(c Node) { n.Children = append(n.Children, c) }

// SplitSubRange splits the key into the list key and its sub-range suffix.
// The range is empty when the key has none.
func (n *IterationNode) SplitSubRange() (listKey, subRange string) {
	if p := strings.Index(n.Key, InfixSubRange); p > 0 {
		return n.Key[:p], n.Key[p+len(InfixSubRange):]
	}
	return n.Key, ""
}

// String returns a string representation
func (n *IterationNode) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Iteration{%s", n.Key)
	for _, sk := range n.SortKeys {
		if sk.Descending {
			fmt.Fprintf(&sb, " sort=%s desc", sk.Field)
		} else {
			fmt.Fprintf(&sb, " sort=%s", sk.Field)
		}
	}
	sb.WriteString("\n")
	writeChildren(&sb, n.Children, 1)
	sb.WriteString("}")
	return sb.String()
}

func writeChildren(sb *strings.Builder, children []Node, indent int) {
	pad := strings.Repeat("  ", indent)
	for i, child := range children {
		for j, line := range strings.Split(child.String(), "\n") {
			if j == 0 {
				fmt.Fprintf(sb, "%s[%d] %s\n", pad, i, line)
			} else {
				fmt.Fprintf(sb, "%s%s\n", pad, line)
			}
		}
	}
}

// Walk visits every node depth-first in document order.
// Returning false from fn skips the children of that node.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	if c, ok := n.(Container); ok {
		for _, child := range c.Nodes() {
			Walk(child, fn)
		}
	}
}

// Depth returns the maximum container nesting depth below n.
func Depth(n Node) int {
	c, ok := n.(Container)
	if !ok {
		return 0
	}
	deepest := 0
	for _, child := range c.Nodes() {
		if _, isContainer := child.(Container); isContainer {
			if d := Depth(child) + 1; d > deepest {
				deepest = d
			}
		}
	}
	return deepest
}
