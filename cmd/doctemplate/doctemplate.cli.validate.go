package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/itsatony/go-doctemplate"
)

// validateConfig holds parsed validate command configuration
type validateConfig struct {
	sharedFlags
	format  string
	noColor bool
}

// validationOutput represents JSON output for validation
type validationOutput struct {
	Valid      bool     `json:"valid"`
	Error      string   `json:"error,omitempty"`
	Elements   int      `json:"elements"`
	Depth      int      `json:"depth"`
	Fields     []string `json:"fields"`
	Conditions []string `json:"conditions"`
	Iterations []string `json:"iterations"`
	SortKeys   []string `json:"sort_keys"`
}

func runValidate(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := parseValidateFlags(args)
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgMissingTemplate, err)
		return ExitCodeUsageError
	}

	raw, err := readInput(cfg.templatePath, stdin)
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgReadFileFailed, err)
		return ExitCodeInputError
	}

	engine, err := newEngine(cfg.configPath)
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgConfigFailed, err)
		return ExitCodeUsageError
	}

	source, err := preProcessor(cfg.bracket).PreProcess(context.Background(), bytes.NewReader(raw))
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgReadFileFailed, err)
		return ExitCodeInputError
	}

	tmpl, parseErr := engine.Parse(source)
	if cfg.format == OutputFormatJSON {
		return outputValidationJSON(tmpl, parseErr, stdout)
	}
	return outputValidationText(tmpl, parseErr, newPalette(colorEnabled(stdout, cfg.noColor)), stdout)
}

func parseValidateFlags(args []string) (*validateConfig, error) {
	fs := flag.NewFlagSet(CmdNameValidate, flag.ContinueOnError)
	fs.SetOutput(io.Discard) // Suppress default error messages

	cfg := &validateConfig{}
	registerSharedFlags(fs, &cfg.sharedFlags)
	fs.StringVar(&cfg.format, FlagFormat, FlagDefaultFormat, "")
	fs.StringVar(&cfg.format, FlagFormatShort, FlagDefaultFormat, "")
	fs.BoolVar(&cfg.noColor, FlagNoColor, false, "")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.sharedFlags.validate(""); err != nil {
		return nil, err
	}
	if cfg.format != OutputFormatText && cfg.format != OutputFormatJSON {
		return nil, errors.New(ErrMsgInvalidFormat)
	}
	return cfg, nil
}

func outputValidationText(tmpl *doctemplate.Template, parseErr error, p *palette, stdout io.Writer) int {
	if parseErr != nil {
		p.fail.Fprintln(stdout, ValidationTextFailure)
		fmt.Fprintf(stdout, FmtErrorWithCause, ErrMsgParseTemplateFailed, parseErr)
		return ExitCodeValidationError
	}

	p.ok.Fprintln(stdout, ValidationTextSuccess)
	fmt.Fprintf(stdout, ValidationTextStats+FmtNewline, tmpl.NodeCount(), tmpl.Depth())

	keys := tmpl.Keys()
	groups := []struct {
		name string
		keys []string
	}{
		{KeyGroupFields, keys.Fields},
		{KeyGroupConditions, keys.Conditions},
		{KeyGroupIterations, keys.Iterations},
		{KeyGroupSortKeys, keys.SortKeys},
	}

	listed := false
	for _, g := range groups {
		if len(g.keys) == 0 {
			continue
		}
		listed = true
		p.header.Fprintf(stdout, ValidationTextKeyHeader+FmtNewline, g.name)
		for _, k := range g.keys {
			fmt.Fprintf(stdout, ValidationTextKeyFormat+FmtNewline, k)
		}
	}
	if !listed {
		fmt.Fprintln(stdout, ValidationTextNoKeys)
	}
	return ExitCodeSuccess
}

func outputValidationJSON(tmpl *doctemplate.Template, parseErr error, stdout io.Writer) int {
	output := validationOutput{
		Valid:      parseErr == nil,
		Fields:     []string{},
		Conditions: []string{},
		Iterations: []string{},
		SortKeys:   []string{},
	}

	if parseErr != nil {
		output.Error = parseErr.Error()
	} else {
		keys := tmpl.Keys()
		output.Elements = tmpl.NodeCount()
		output.Depth = tmpl.Depth()
		output.Fields = append(output.Fields, keys.Fields...)
		output.Conditions = append(output.Conditions, keys.Conditions...)
		output.Iterations = append(output.Iterations, keys.Iterations...)
		output.SortKeys = append(output.SortKeys, keys.SortKeys...)
	}

	jsonBytes, _ := json.MarshalIndent(output, "", "  ")
	fmt.Fprintln(stdout, string(jsonBytes))

	if !output.Valid {
		return ExitCodeValidationError
	}
	return ExitCodeSuccess
}
