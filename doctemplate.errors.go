package doctemplate

import (
	"errors"
	"strconv"

	"github.com/itsatony/go-cuserr"

	"github.com/itsatony/go-doctemplate/internal"
)

// Error message constants - ALL error messages must be constants (NO MAGIC STRINGS)
const (
	// Structure errors
	ErrMsgParseFailed        = "template parsing failed"
	ErrMsgUnbalancedEnd      = internal.ErrMsgUnbalancedEnd
	ErrMsgUnclosedContainer  = internal.ErrMsgUnclosedContainer
	ErrMsgUnknownMarker      = internal.ErrMsgUnknownMarker
	ErrMsgMissingEndSentinel = internal.ErrMsgMissingEndSentinel

	// Range errors
	ErrMsgInvalidSubRange = internal.ErrMsgInvalidSubRange
	ErrMsgInvalidIndex    = internal.ErrMsgInvalidIndex

	// Merge errors
	ErrMsgMergeFailed  = "template merge failed"
	ErrMsgSourceFailed = internal.ErrMsgSourceFailed
	ErrMsgFormatFailed = internal.ErrMsgFormatFailed
	ErrMsgImageFailed  = internal.ErrMsgImageFailed
	ErrMsgNilSource    = "merge source is nil"

	// Template registry errors
	ErrMsgTemplateNotFound  = "template not found"
	ErrMsgTemplateLookup    = "template lookup failed"
	ErrMsgVersionNotFound   = "template version not found"
	ErrMsgTemplateExists    = "template already registered"
	ErrMsgEmptyTemplateName = "template name cannot be empty"

	// Formatting errors
	ErrMsgInvalidPattern = "invalid format pattern"

	// Configuration errors
	ErrMsgConfigRead       = "reading configuration failed"
	ErrMsgConfigParse      = "parsing configuration failed"
	ErrMsgConfigInvalid    = "invalid configuration value"
	ErrMsgInvalidSchedule  = "invalid purge schedule"
	ErrMsgInvalidSentinels = "open and close sentinels must differ"
	ErrMsgUnknownDriver    = "unknown storage driver"
	ErrMsgInvalidLocale    = "invalid locale"
	ErrMsgInvalidEscape    = "unknown escape mode"

	// Pre-processing errors
	ErrMsgPreProcessFailed = "pre-processing template failed"
)

// Error code constants for categorization
const (
	ErrCodeStructure = "DOCTEMPLATE_STRUCTURE"
	ErrCodeRange     = "DOCTEMPLATE_RANGE"
	ErrCodeMerge     = "DOCTEMPLATE_MERGE"
	ErrCodeSource    = "DOCTEMPLATE_SOURCE"
	ErrCodeFormat    = "DOCTEMPLATE_FORMAT"
	ErrCodeRegistry  = "DOCTEMPLATE_REGISTRY"
	ErrCodeConfig    = "DOCTEMPLATE_CONFIG"
	ErrCodeNotFound  = "DOCTEMPLATE_NOT_FOUND"
)

// Position represents a location in the normalized marker stream
type Position = internal.Position

// NewStructureError converts a parser structure error into a coded error
func NewStructureError(se *internal.StructureError) error {
	return cuserr.WrapStdError(se, ErrCodeStructure, ErrMsgParseFailed).
		WithMetadata(MetaKeyKey, se.Key).
		WithMetadata(MetaKeyKind, se.Kind.String()).
		WithMetadata(MetaKeyLine, strconv.Itoa(se.Position.Line)).
		WithMetadata(MetaKeyColumn, strconv.Itoa(se.Position.Column)).
		WithMetadata(MetaKeyOffset, strconv.Itoa(se.Position.Offset))
}

// NewParseError wraps any other parse failure
func NewParseError(cause error) error {
	var se *internal.StructureError
	if errors.As(cause, &se) {
		return NewStructureError(se)
	}
	return cuserr.WrapStdError(cause, ErrCodeStructure, ErrMsgParseFailed)
}

// NewRangeError converts a malformed sub-range or row index into a coded error
func NewRangeError(re *internal.RangeError) error {
	return cuserr.WrapStdError(re, ErrCodeRange, ErrMsgMergeFailed).
		WithMetadata(MetaKeyKey, re.Key)
}

// NewMergeError classifies an evaluation failure by its cause
func NewMergeError(err error) error {
	var re *internal.RangeError
	if errors.As(err, &re) {
		return NewRangeError(re)
	}

	var ee *internal.EvalError
	if errors.As(err, &ee) {
		code := ErrCodeMerge
		switch ee.Message {
		case internal.ErrMsgSourceFailed:
			code = ErrCodeSource
		case internal.ErrMsgFormatFailed:
			code = ErrCodeFormat
		}
		return cuserr.WrapStdError(ee, code, ErrMsgMergeFailed).
			WithMetadata(MetaKeyKey, ee.Key).
			WithMetadata(MetaKeyKind, ee.Kind.String())
	}

	return cuserr.WrapStdError(err, ErrCodeMerge, ErrMsgMergeFailed)
}

// NewNilSourceError creates an error for a merge without a data source
func NewNilSourceError() error {
	return cuserr.NewValidationError(ErrCodeMerge, ErrMsgNilSource)
}

// ErrTemplateNotFound matches every missing-template error via errors.Is.
var ErrTemplateNotFound = errors.New(ErrMsgTemplateNotFound)

// NewTemplateNotFoundError creates an error for a missing named template
func NewTemplateNotFoundError(name string) error {
	return cuserr.WrapStdError(ErrTemplateNotFound, ErrCodeNotFound, ErrMsgTemplateLookup).
		WithMetadata(MetaKeyName, name)
}

// NewVersionNotFoundError creates an error for a missing template version
func NewVersionNotFoundError(name string, version int) error {
	return cuserr.WrapStdError(ErrTemplateNotFound, ErrCodeNotFound, ErrMsgVersionNotFound).
		WithMetadata(MetaKeyName, name).
		WithMetadata(MetaKeyVersion, strconv.Itoa(version))
}

// NewTemplateExistsError creates an error for a duplicate named template
func NewTemplateExistsError(name string) error {
	return cuserr.NewValidationError(ErrCodeRegistry, ErrMsgTemplateExists).
		WithMetadata(MetaKeyName, name)
}

// NewEmptyTemplateNameError creates an error for an empty template name
func NewEmptyTemplateNameError() error {
	return cuserr.NewValidationError(ErrCodeRegistry, ErrMsgEmptyTemplateName)
}

// NewPatternError creates an error for a format pattern that cannot be applied
func NewPatternError(pattern, reason string) error {
	return cuserr.NewValidationError(ErrCodeFormat, ErrMsgInvalidPattern).
		WithMetadata(MetaKeyValue, pattern).
		WithMetadata(MetaKeyReason, reason)
}

// NewConfigError creates a configuration error
func NewConfigError(msg, path string, cause error) error {
	var err *cuserr.CustomError
	if cause != nil {
		err = cuserr.WrapStdError(cause, ErrCodeConfig, msg)
	} else {
		err = cuserr.NewValidationError(ErrCodeConfig, msg)
	}
	return err.WithMetadata(MetaKeyPath, path)
}

// NewScheduleError creates an error for a purge schedule cron cannot parse
func NewScheduleError(schedule string, cause error) error {
	return cuserr.WrapStdError(cause, ErrCodeConfig, ErrMsgInvalidSchedule).
		WithMetadata(MetaKeySchedule, schedule)
}

// NewSentinelError creates an error for open and close sentinels that cannot be told apart
func NewSentinelError(sentinel string) error {
	return cuserr.NewValidationError(ErrCodeConfig, ErrMsgInvalidSentinels).
		WithMetadata(MetaKeyValue, sentinel)
}

// NewPreProcessError wraps a failing pre-processor
func NewPreProcessError(cause error) error {
	return cuserr.WrapStdError(cause, ErrCodeMerge, ErrMsgPreProcessFailed)
}
