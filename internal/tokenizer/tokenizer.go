// Package tokenizer turns request text into the token ids consumed by the
// voice model graph.
package tokenizer

import (
	"errors"
	"fmt"
	"os"
)

// Tokenizer encodes text into model token ids.
type Tokenizer interface {
	Encode(text string) ([]int64, error)
}

// ErrEmptyPath is returned when a tokenizer model path is empty.
var ErrEmptyPath = errors.New("tokenizer model path must not be empty")

// Load returns a SentencePiece tokenizer for path. An empty path selects the
// byte-level tokenizer used by bundles exported without a vocabulary file.
func Load(path string) (Tokenizer, error) {
	if path == "" {
		return NewByteTokenizer(), nil
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("tokenizer model: %w", err)
	}

	return NewSentencePieceTokenizer(path)
}
