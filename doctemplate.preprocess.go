package doctemplate

import (
	"context"
	"io"
	"strings"
)

// PreProcessor turns a host document into a normalized marker stream.
type PreProcessor interface {
	PreProcess(ctx context.Context, r io.Reader) (string, error)
}

// PreProcessorFunc adapts a function to PreProcessor.
type PreProcessorFunc func(ctx context.Context, r io.Reader) (string, error)

// PreProcess implements PreProcessor.
func (f PreProcessorFunc) PreProcess(ctx context.Context, r io.Reader) (string, error) {
	return f(ctx, r)
}

// PassthroughPreProcessor reads a stream that is already normalized.
type PassthroughPreProcessor struct{}

// PreProcess implements PreProcessor.
func (PassthroughPreProcessor) PreProcess(ctx context.Context, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// BracketPreProcessor rewrites the attribute-safe bracket sentinels to
// Open and Close. Zero values select the default sentinels.
type BracketPreProcessor struct {
	Open  string
	Close string
}

// PreProcess implements PreProcessor.
func (p BracketPreProcessor) PreProcess(ctx context.Context, r io.Reader) (string, error) {
	src, err := PassthroughPreProcessor{}.PreProcess(ctx, r)
	if err != nil {
		return "", err
	}
	open, close := p.Open, p.Close
	if open == "" {
		open = DefaultOpenSentinel
	}
	if close == "" {
		close = DefaultCloseSentinel
	}
	return strings.NewReplacer(
		BracketOpenSentinel, open,
		BracketCloseSentinel, close,
	).Replace(src), nil
}
