package doctemplate

import (
	"time"

	"github.com/itsatony/go-doctemplate/internal"
)

// Sentinel constants - wrap every marker key in a normalized stream
const (
	DefaultOpenSentinel  = internal.DefaultOpenSentinel
	DefaultCloseSentinel = internal.DefaultCloseSentinel
)

// Attribute-safe sentinel variant used by hosts that forbid '<' in attribute values
const (
	BracketOpenSentinel  = "[doc-template-bookmark]"
	BracketCloseSentinel = "[/doc-template-bookmark]"
)

// Marker key prefixes
const (
	PrefixField    = internal.PrefixField
	PrefixIf       = internal.PrefixIf
	PrefixEndIf    = internal.PrefixEndIf
	PrefixWhile    = internal.PrefixWhile
	PrefixEndWhile = internal.PrefixEndWhile
	PrefixSort     = internal.PrefixSort
)

// Key suffixes understood by the built-in sources
const (
	SuffixNot     = internal.SuffixNot
	InfixEquals   = "_EQ_"
	InfixNotEqual = "_NEQ_"
	PathSeparator = "."
)

// ReflectionPrefix is always claimed by object sources regardless of their claim prefix.
const ReflectionPrefix = "BRX_"

// Default value patterns
const (
	DefaultIntegerPattern = internal.DefaultIntegerPattern
	DefaultFloatPattern   = internal.DefaultFloatPattern
	DefaultDatePattern    = internal.DefaultDatePattern
)

// Escape mode names accepted by configuration
const (
	EscapeModeXML  = "xml"
	EscapeModeNone = "none"
)

// Storage driver names
const (
	StorageDriverNameMemory     = "memory"
	StorageDriverNameFilesystem = "filesystem"
	StorageDriverNamePostgres   = "postgres"
	StorageDriverNameSQLite     = "sqlite"
)

// Cache defaults
const (
	DefaultCacheTTL        = 5 * time.Minute
	DefaultCacheMaxEntries = 1000
	DefaultNegativeTTL     = 30 * time.Second
)

// Watcher defaults
const (
	DefaultWatchDebounce = 200 * time.Millisecond
	TemplateFileExt      = ".tmpl"
)

// Log messages
const (
	LogMsgEngineCreated      = "engine created"
	LogMsgTemplateParsed     = "template parsed"
	LogMsgTemplateRegistered = "template registered"
	LogMsgMergeComplete      = "merge complete"
	LogMsgMergeFailed        = "merge failed"
	LogMsgAccessorFailed     = "accessor invocation failed"
	LogMsgNotIterable        = "value is not iterable"
	LogMsgStorageOpened      = "template storage opened"
	LogMsgCachePurged        = "expired cache entries purged"
	LogMsgLibraryLoaded      = "template loaded into library"
	LogMsgLibraryInvalidated = "library entry invalidated"
	LogMsgWatcherStarted     = "template watcher started"
	LogMsgWatcherStopped     = "template watcher stopped"
	LogMsgWatcherEvent       = "template file changed"
	LogMsgWatcherError       = "template watcher error"

	LogMsgWatcherReimportFailed = "re-importing template file failed"
)

// Log field names
const (
	LogFieldKey       = internal.LogFieldKey
	LogFieldName      = "template_name"
	LogFieldVersion   = "version"
	LogFieldNodes     = "node_count"
	LogFieldDuration  = "duration"
	LogFieldDriver    = "driver"
	LogFieldPath      = "path"
	LogFieldType      = "type"
	LogFieldCount     = "count"
	LogFieldOp        = "op"
	LogFieldMissing   = "missing_fields"
	LogFieldRemaining = "remaining"
	LogFieldCached    = "cached"
)

// Metadata key constants for cuserr errors
const (
	MetaKeyKey      = "key"
	MetaKeyKind     = "kind"
	MetaKeyLine     = "line"
	MetaKeyColumn   = "column"
	MetaKeyOffset   = "offset"
	MetaKeyName     = "template_name"
	MetaKeyVersion  = "version"
	MetaKeyPath     = "path"
	MetaKeyValue    = "value"
	MetaKeyReason   = "reason"
	MetaKeySchedule = "schedule"
)
