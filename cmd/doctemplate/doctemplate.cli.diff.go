package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// diffConfig holds parsed diff command configuration
type diffConfig struct {
	sharedFlags
	dataPath     string
	expectedPath string
	noColor      bool
}

func runDiff(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := parseDiffFlags(args)
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgMissingTemplate, err)
		return ExitCodeUsageError
	}

	expected, err := os.ReadFile(cfg.expectedPath)
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgReadFileFailed, err)
		return ExitCodeInputError
	}

	actual, code := mergeInputs(cfg.sharedFlags, cfg.dataPath, stdin, stderr)
	if code != ExitCodeSuccess {
		return code
	}

	p := newPalette(colorEnabled(stdout, cfg.noColor))
	if string(actual) == string(expected) {
		p.ok.Fprintf(stdout, DiffTextMatch+FmtNewline, cfg.expectedPath)
		return ExitCodeSuccess
	}

	p.fail.Fprintf(stdout, DiffTextMismatch+FmtNewline, cfg.expectedPath)
	fmt.Fprintln(stdout, renderDiff(string(expected), string(actual), p))
	return ExitCodeMismatch
}

func parseDiffFlags(args []string) (*diffConfig, error) {
	fs := flag.NewFlagSet(CmdNameDiff, flag.ContinueOnError)
	fs.SetOutput(io.Discard) // Suppress default error messages

	cfg := &diffConfig{}
	registerSharedFlags(fs, &cfg.sharedFlags)
	fs.StringVar(&cfg.dataPath, FlagData, "", "")
	fs.StringVar(&cfg.dataPath, FlagDataShort, "", "")
	fs.StringVar(&cfg.expectedPath, FlagExpected, "", "")
	fs.StringVar(&cfg.expectedPath, FlagExpectedShort, "", "")
	fs.BoolVar(&cfg.noColor, FlagNoColor, false, "")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.sharedFlags.validate(cfg.dataPath); err != nil {
		return nil, err
	}
	if cfg.expectedPath == "" {
		return nil, errors.New(ErrMsgMissingExpected)
	}
	return cfg, nil
}

// renderDiff shows the edits that turn expected into actual. Insertions are
// wrapped in {+ +} and deletions in [- -] so the output reads without color.
func renderDiff(expected, actual string, p *palette) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(expected, actual, false))

	var out []byte
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			out = append(out, p.insert.Sprint("{+"+d.Text+"+}")...)
		case diffmatchpatch.DiffDelete:
			out = append(out, p.remove.Sprint("[-"+d.Text+"-]")...)
		case diffmatchpatch.DiffEqual:
			out = append(out, d.Text...)
		}
	}
	return string(out)
}
