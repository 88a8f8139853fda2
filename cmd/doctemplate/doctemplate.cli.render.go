package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/itsatony/go-doctemplate"
)

// renderConfig holds parsed render command configuration
type renderConfig struct {
	sharedFlags
	dataPath   string
	outputPath string
}

func runRender(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := parseRenderFlags(args)
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgMissingTemplate, err)
		return ExitCodeUsageError
	}

	out, code := mergeInputs(cfg.sharedFlags, cfg.dataPath, stdin, stderr)
	if code != ExitCodeSuccess {
		return code
	}

	if err := writeOutput(cfg.outputPath, out, stdout); err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgWriteOutputFailed, err)
		return ExitCodeError
	}
	return ExitCodeSuccess
}

func parseRenderFlags(args []string) (*renderConfig, error) {
	fs := flag.NewFlagSet(CmdNameRender, flag.ContinueOnError)
	fs.SetOutput(io.Discard) // Suppress default error messages

	cfg := &renderConfig{}
	registerSharedFlags(fs, &cfg.sharedFlags)
	fs.StringVar(&cfg.dataPath, FlagData, "", "")
	fs.StringVar(&cfg.dataPath, FlagDataShort, "", "")
	fs.StringVar(&cfg.outputPath, FlagOutput, FlagDefaultOutput, "")
	fs.StringVar(&cfg.outputPath, FlagOutputShort, FlagDefaultOutput, "")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.sharedFlags.validate(cfg.dataPath); err != nil {
		return nil, err
	}
	return cfg, nil
}

func registerSharedFlags(fs *flag.FlagSet, shared *sharedFlags) {
	fs.StringVar(&shared.templatePath, FlagTemplate, "", "")
	fs.StringVar(&shared.templatePath, FlagTemplateShort, "", "")
	fs.StringVar(&shared.configPath, FlagConfig, "", "")
	fs.StringVar(&shared.configPath, FlagConfigShort, "", "")
	fs.BoolVar(&shared.bracket, FlagBracket, false, "")
}

func (s sharedFlags) validate(dataPath string) error {
	if s.templatePath == "" {
		return errors.New(ErrMsgMissingTemplate)
	}
	if s.templatePath == InputSourceStdin && dataPath == InputSourceStdin {
		return errors.New(ErrMsgStdinConflict)
	}
	return nil
}

// mergeInputs reads the template and data, merges them and returns the
// output or a non-zero exit code after reporting to stderr.
func mergeInputs(shared sharedFlags, dataPath string, stdin io.Reader, stderr io.Writer) ([]byte, int) {
	source, err := readInput(shared.templatePath, stdin)
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgReadFileFailed, err)
		return nil, ExitCodeInputError
	}

	data, err := loadData(dataPath, stdin)
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgInvalidData, err)
		return nil, ExitCodeInputError
	}

	engine, err := newEngine(shared.configPath)
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgConfigFailed, err)
		return nil, ExitCodeUsageError
	}

	var buf bytes.Buffer
	_, err = engine.MergeDocument(context.Background(), preProcessor(shared.bracket),
		bytes.NewReader(source), &buf, doctemplate.NewObjectSource(data))
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgMergeFailed, err)
		return nil, ExitCodeError
	}
	return buf.Bytes(), ExitCodeSuccess
}
