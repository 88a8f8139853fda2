package main

// Command names
const (
	CmdNameRender   = "render"
	CmdNameValidate = "validate"
	CmdNameDiff     = "diff"
	CmdNameVersion  = "version"
	CmdNameHelp     = "help"
)

// Flag names - long form
const (
	FlagTemplate = "template"
	FlagData     = "data"
	FlagExpected = "expected"
	FlagOutput   = "output"
	FlagConfig   = "config"
	FlagFormat   = "format"
	FlagBracket  = "bracket"
	FlagNoColor  = "no-color"
	FlagStrict   = "strict"
)

// Flag names - short form
const (
	FlagTemplateShort = "t"
	FlagDataShort     = "d"
	FlagExpectedShort = "e"
	FlagOutputShort   = "o"
	FlagConfigShort   = "c"
	FlagFormatShort   = "F"
)

// Flag default values
const (
	FlagDefaultOutput = "-" // stdout
	FlagDefaultFormat = "text"
)

// Output formats
const (
	OutputFormatText = "text"
	OutputFormatJSON = "json"
)

// Exit codes
const (
	ExitCodeSuccess         = 0
	ExitCodeError           = 1
	ExitCodeUsageError      = 2
	ExitCodeValidationError = 3
	ExitCodeInputError      = 4
	ExitCodeMismatch        = 5
)

// Input source indicators
const (
	InputSourceStdin = "-"
)

// Data file extensions
const (
	DataExtJSON = ".json"
	DataExtYAML = ".yaml"
	DataExtYML  = ".yml"
)

// Error messages - ALL must be constants
const (
	ErrMsgUnknownCommand      = "unknown command"
	ErrMsgMissingTemplate     = "template source required"
	ErrMsgMissingExpected     = "expected output file required"
	ErrMsgStdinConflict       = "template and data cannot both be read from stdin"
	ErrMsgInvalidData         = "invalid data file"
	ErrMsgDataNotObject       = "data must be an object at the top level"
	ErrMsgReadFileFailed      = "failed to read file"
	ErrMsgWriteOutputFailed   = "failed to write output"
	ErrMsgParseTemplateFailed = "template parsing failed"
	ErrMsgMergeFailed         = "template merge failed"
	ErrMsgInvalidFormat       = "invalid output format"
	ErrMsgConfigFailed        = "failed to load config"
)

// Help text templates
const (
	HelpMainUsage = `go-doctemplate - Document template merge CLI

Usage:
    doctemplate <command> [options]

Commands:
    render      Merge a template with data
    validate    Check a template's structure and list its keys
    diff        Merge a template and compare it with an expected file
    version     Show version information
    help        Show help for a command

Use "doctemplate help <command>" for more information about a command.`

	HelpRenderUsage = `Merge a template with data

Usage:
    doctemplate render [options]

Options:
    -t, --template <file>   Template file (use "-" for stdin)
    -d, --data <file>       Data file, JSON or YAML (use "-" for stdin)
    -o, --output <file>     Output file (default: stdout)
    -c, --config <file>     Engine configuration file (YAML)
    --bracket               Rewrite attribute-safe bracket markers first

Examples:
    doctemplate render -t letter.xml -d customer.json
    doctemplate render -t letter.xml -d customer.yaml -o letter.out.xml
    cat letter.xml | doctemplate render -t - -d customer.json -c doctemplate.yaml`

	HelpValidateUsage = `Check a template's structure and list its keys

Usage:
    doctemplate validate [options]

Options:
    -t, --template <file>   Template file (use "-" for stdin)
    -F, --format <format>   Output format: text, json (default: text)
    -c, --config <file>     Engine configuration file (YAML)
    --bracket               Rewrite attribute-safe bracket markers first
    --no-color              Disable colored output

Examples:
    doctemplate validate -t letter.xml
    doctemplate validate -t letter.xml -F json`

	HelpDiffUsage = `Merge a template and compare it with an expected file

Usage:
    doctemplate diff [options]

Options:
    -t, --template <file>   Template file (use "-" for stdin)
    -d, --data <file>       Data file, JSON or YAML
    -e, --expected <file>   File holding the expected merge output
    -c, --config <file>     Engine configuration file (YAML)
    --bracket               Rewrite attribute-safe bracket markers first
    --no-color              Disable colored output

Exit status is 5 when the output differs.

Examples:
    doctemplate diff -t letter.xml -d customer.json -e letter.golden.xml`

	HelpVersionUsage = `Show version information

Usage:
    doctemplate version [options]

Options:
    -F, --format <format>   Output format: text, json (default: text)`

	HelpHelpUsage = `Show help for a command

Usage:
    doctemplate help [command]

Commands:
    render      Show help for render command
    validate    Show help for validate command
    diff        Show help for diff command
    version     Show help for version command`
)

// Version output format templates
const (
	VersionTextTemplate = "go-doctemplate version %s\nCommit: %s\nBranch: %s\nBuilt: %s\nGo: %s"
	VersionUnknown      = "unknown"
)

// Validation output
const (
	ValidationTextSuccess   = "Template is valid"
	ValidationTextFailure   = "Template is invalid"
	ValidationTextStats     = "%d elements, depth %d"
	ValidationTextKeyHeader = "%s:"
	ValidationTextKeyFormat = "  %s"
	ValidationTextNoKeys    = "no data keys referenced"
)

// Key group names
const (
	KeyGroupFields     = "fields"
	KeyGroupConditions = "conditions"
	KeyGroupIterations = "iterations"
	KeyGroupSortKeys   = "sort keys"
)

// Diff output
const (
	DiffTextMatch    = "Output matches %s"
	DiffTextMismatch = "Output differs from %s"
)

// CLI metadata
const (
	CLIName        = "doctemplate"
	CLIDescription = "Document template merge CLI"
)

// File permission constant
const (
	FilePermissions = 0644
)

// Format string constants
const (
	FmtErrorWithDetail = "%s: %s\n"
	FmtErrorWithCause  = "%s: %v\n"
	FmtNewline         = "\n"
)
