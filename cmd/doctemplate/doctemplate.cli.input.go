package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/itsatony/go-doctemplate"
	"gopkg.in/yaml.v3"
)

// sharedFlags are the options every merging command understands.
type sharedFlags struct {
	templatePath string
	configPath   string
	bracket      bool
}

// readInput reads content from a file or stdin
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == InputSourceStdin {
		return io.ReadAll(stdin)
	}

	return os.ReadFile(path)
}

// writeOutput writes content to a file or stdout
func writeOutput(path string, data []byte, stdout io.Writer) error {
	if path == FlagDefaultOutput {
		_, err := stdout.Write(data)
		return err
	}

	return os.WriteFile(path, data, FilePermissions)
}

// loadData reads a JSON or YAML document into a map. JSON is chosen by
// extension; anything else, stdin included, goes through the YAML decoder.
func loadData(path string, stdin io.Reader) (map[string]any, error) {
	if path == "" {
		return make(map[string]any), nil
	}

	raw, err := readInput(path, stdin)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return make(map[string]any), nil
	}

	var decoded any
	if strings.EqualFold(filepath.Ext(path), DataExtJSON) {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&decoded); err != nil {
			return nil, err
		}
		decoded = normalizeNumbers(decoded)
	} else if err := yaml.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}

	result, ok := decoded.(map[string]any)
	if !ok {
		return nil, errors.New(ErrMsgDataNotObject)
	}
	return result, nil
}

// normalizeNumbers turns json.Number into int64 where the value is integral
// and float64 otherwise, so integer and float patterns apply as in YAML.
func normalizeNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case map[string]any:
		for k, e := range val {
			val[k] = normalizeNumbers(e)
		}
		return val
	case []any:
		for i, e := range val {
			val[i] = normalizeNumbers(e)
		}
		return val
	default:
		return v
	}
}

// newEngine builds an engine from the optional configuration file.
func newEngine(configPath string) (*doctemplate.Engine, error) {
	if configPath == "" {
		return doctemplate.New()
	}
	cfg, err := doctemplate.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	opts, err := cfg.EngineOptions()
	if err != nil {
		return nil, err
	}
	return doctemplate.New(opts...)
}

func preProcessor(bracket bool) doctemplate.PreProcessor {
	if bracket {
		return doctemplate.BracketPreProcessor{}
	}
	return doctemplate.PassthroughPreProcessor{}
}
