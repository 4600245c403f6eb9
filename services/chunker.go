package services

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 100
)

// Chunker splits raw document text into ordered chunk texts.
type Chunker interface {
	Split(text string) ([]string, error)
}

// ChunkText splits text into overlapping windows of at most size runes. Each
// window starts size-overlap runes after the previous one; windows are trimmed
// and blank ones are dropped. The window that reaches the end of the text is
// the last one.
func ChunkText(text string, size, overlap int) ([]string, error) {
	if err := validateChunkConfig(size, overlap); err != nil {
		return nil, err
	}
	runes := []rune(text)
	step := size - overlap

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := min(start+size, len(runes))
		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}

func validateChunkConfig(size, overlap int) error {
	if overlap <= 0 || overlap >= size {
		return fmt.Errorf("%w: need 0 < overlap < size, got size=%d overlap=%d", ErrInvalidChunkConfig, size, overlap)
	}
	return nil
}

// WindowChunker is the fixed-size overlapping window strategy.
type WindowChunker struct {
	size    int
	overlap int
}

func NewWindowChunker(size, overlap int) (*WindowChunker, error) {
	if err := validateChunkConfig(size, overlap); err != nil {
		return nil, err
	}
	return &WindowChunker{size: size, overlap: overlap}, nil
}

func (c *WindowChunker) Split(text string) ([]string, error) {
	return ChunkText(text, c.size, c.overlap)
}

// RecursiveChunker prefers paragraph, line and word boundaries over the hard
// window cut.
type RecursiveChunker struct {
	splitter textsplitter.RecursiveCharacter
}

func NewRecursiveChunker(size, overlap int) (*RecursiveChunker, error) {
	if err := validateChunkConfig(size, overlap); err != nil {
		return nil, err
	}
	return &RecursiveChunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
		),
	}, nil
}

func (c *RecursiveChunker) Split(text string) ([]string, error) {
	parts, err := c.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("recursive split: %w", err)
	}
	chunks := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			chunks = append(chunks, p)
		}
	}
	return chunks, nil
}

// NewChunker builds the chunking strategy named by kind ("window" or "recursive").
func NewChunker(kind string, size, overlap int) (Chunker, error) {
	switch kind {
	case "window", "":
		return NewWindowChunker(size, overlap)
	case "recursive":
		return NewRecursiveChunker(size, overlap)
	default:
		return nil, fmt.Errorf("%w: unknown chunker %q", ErrInvalidInput, kind)
	}
}
