package internal

// NodeType identifies merge element kinds
type NodeType int

// Node type constants
const (
	NodeTypeRoot NodeType = iota
	NodeTypeStatic
	NodeTypeField
	NodeTypeCondition
	NodeTypeIteration
)

// Node type string names for diagnostics
const (
	NodeTypeNameRoot      = "ROOT"
	NodeTypeNameStatic    = "STATIC"
	NodeTypeNameField     = "FIELD"
	NodeTypeNameCondition = "CONDITION"
	NodeTypeNameIteration = "ITERATION"
)

// String returns the string representation of the node type
func (n NodeType) String() string {
	switch n {
	case NodeTypeStatic:
		return NodeTypeNameStatic
	case NodeTypeField:
		return NodeTypeNameField
	case NodeTypeCondition:
		return NodeTypeNameCondition
	case NodeTypeIteration:
		return NodeTypeNameIteration
	default:
		return NodeTypeNameRoot
	}
}

// Default sentinels wrapping every marker key in a normalized stream
const (
	DefaultOpenSentinel  = "<doc-template-bookmark>"
	DefaultCloseSentinel = "</doc-template-bookmark>"
)

// Marker key prefixes
const (
	PrefixField    = "FIELD_"
	PrefixIf       = "IF_"
	PrefixEndIf    = "ENDIF_"
	PrefixWhile    = "WHILE_"
	PrefixEndWhile = "ENDWHILE_"
	PrefixSort     = "SORT_"
)

// Marker key suffixes and infixes
const (
	SuffixAlt      = "_ALT"
	SuffixDesc     = "_DESC"
	SuffixNot      = "_NOT"
	SuffixHasNext  = "hasNext"
	InfixFormat    = "_FMT"
	InfixSubRange  = "_SUB"
	InfixIndexOpen = "_["
	CharIndexClose = ']'
	CharRangeSep   = "_"
)

// Default value patterns by runtime kind
const (
	DefaultIntegerPattern = "#,##0"
	DefaultFloatPattern   = "#,##0.00"
	DefaultDatePattern    = "dd.MM.yyyy"
)

// Log messages
const (
	LogMsgParserStart        = "starting parse"
	LogMsgParserEnd          = "parse complete"
	LogMsgSortIgnored        = "sort marker outside iteration ignored"
	LogMsgEvaluatorStart     = "starting merge"
	LogMsgEvaluatorEnd       = "merge complete"
	LogMsgMissingField       = "no template source with key"
	LogMsgUnknownCondition   = "no condition source with key"
	LogMsgMissingIteration   = "no iteration source with key"
	LogMsgComparatorFailed   = "error in sort comparator"
	LogMsgImageEmbedded      = "image embedded"
	LogMsgNoImageEmbedder    = "image value without image embedder"
	LogMsgIterationRows      = "iteration rows prepared"
	LogMsgConditionEvaluated = "condition evaluated"
)

// Log field names
const (
	LogFieldKey    = "key"
	LogFieldNodes  = "node_count"
	LogFieldSource = "source_length"
	LogFieldRows   = "rows"
	LogFieldSortBy = "sort_keys"
	LogFieldIndex  = "index"
	LogFieldType   = "type"
	LogFieldResult = "result"
	LogFieldOffset = "offset"
)

// Error messages
const (
	ErrMsgUnbalancedEnd      = "end marker without matching open container"
	ErrMsgUnclosedContainer  = "container not closed at end of template"
	ErrMsgUnknownMarker      = "invalid merge command key"
	ErrMsgMissingEndSentinel = "marker key is not terminated"
	ErrMsgInvalidSubRange    = "error reading iteration range"
	ErrMsgInvalidIndex       = "error reading merge field index"
	ErrMsgNilNode            = "nil node in template tree"
	ErrMsgUnknownNodeType    = "unknown node type"
	ErrMsgSourceFailed       = "merge source lookup failed"
	ErrMsgFormatFailed       = "value formatting failed"
	ErrMsgImageFailed        = "image embedding failed"
	ErrMsgWriteFailed        = "writing merge output failed"
)
