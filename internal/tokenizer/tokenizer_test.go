package tokenizer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// modelPath returns the path to the real tokenizer model, skipping if absent.
func modelPath(t *testing.T) string {
	t.Helper()
	dir, err := filepath.Abs(".")
	if err != nil {
		t.Fatalf("abs path: %v", err)
	}

	for {
		candidate := filepath.Join(dir, "models", "tokenizer.model")

		_, err = os.Stat(candidate)
		if err == nil {
			return candidate
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}

		dir = parent
	}

	t.Skip("models/tokenizer.model not found; skipping tokenizer tests")

	return ""
}

// ---------------------------------------------------------------------------
// NewSentencePieceTokenizer
// ---------------------------------------------------------------------------

func TestNewSentencePieceTokenizer_ValidModel(t *testing.T) {
	path := modelPath(t)

	tok, err := NewSentencePieceTokenizer(path)
	if err != nil {
		t.Fatalf("NewSentencePieceTokenizer(%q): %v", path, err)
	}

	if tok == nil {
		t.Fatal("expected non-nil tokenizer")
	}
}

func TestNewSentencePieceTokenizer_MissingFile(t *testing.T) {
	_, err := NewSentencePieceTokenizer("/nonexistent/tokenizer.model")
	if err == nil {
		t.Fatal("expected error for missing model file")
	}
}

func TestNewSentencePieceTokenizer_EmptyPath(t *testing.T) {
	_, err := NewSentencePieceTokenizer("")
	if err == nil {
		t.Fatal("expected error for empty path")
	}

	if !errors.Is(err, ErrEmptyPath) {
		t.Errorf("expected ErrEmptyPath, got: %v", err)
	}
}

// ---------------------------------------------------------------------------
// SentencePiece Encode (needs models/tokenizer.model)
// ---------------------------------------------------------------------------

func TestEncode_EmptyString(t *testing.T) {
	path := modelPath(t)

	tok, err := NewSentencePieceTokenizer(path)
	if err != nil {
		t.Fatalf("NewSentencePieceTokenizer: %v", err)
	}

	got, err := tok.Encode("")
	if err != nil {
		t.Fatalf("Encode(\"\") should not error: %v", err)
	}

	if len(got) != 0 {
		t.Errorf("Encode(\"\") = %v, want empty slice", got)
	}
}

func TestEncode_TokenIDsInRange(t *testing.T) {
	path := modelPath(t)

	tok, err := NewSentencePieceTokenizer(path)
	if err != nil {
		t.Fatalf("NewSentencePieceTokenizer: %v", err)
	}

	ids, err := tok.Encode("The quick brown fox jumps over the lazy dog.")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if len(ids) == 0 {
		t.Fatal("Encode returned empty result")
	}

	for i, id := range ids {
		if id < 0 {
			t.Errorf("token[%d] = %d; want non-negative", i, id)
		}
	}
}

func TestEncode_Deterministic(t *testing.T) {
	path := modelPath(t)

	tok, err := NewSentencePieceTokenizer(path)
	if err != nil {
		t.Fatalf("NewSentencePieceTokenizer: %v", err)
	}

	a, err := tok.Encode("Voice cloning studio.")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	b, err := tok.Encode("Voice cloning studio.")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if !equalInt64(a, b) {
		t.Errorf("Encode not deterministic: %v vs %v", a, b)
	}
}

func TestEncode_ImplementsInterface(t *testing.T) {
	path := modelPath(t)

	tok, err := NewSentencePieceTokenizer(path)
	if err != nil {
		t.Fatalf("NewSentencePieceTokenizer: %v", err)
	}
	var _ Tokenizer = tok
}

// ---------------------------------------------------------------------------
// ByteTokenizer and Load
// ---------------------------------------------------------------------------

func TestByteTokenizer_Encode(t *testing.T) {
	got, err := NewByteTokenizer().Encode("hi")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	want := []int64{StartID, 'h' + ByteOffset, 'i' + ByteOffset, StopID}
	if !equalInt64(got, want) {
		t.Errorf("Encode(%q) = %v, want %v", "hi", got, want)
	}
}

func TestByteTokenizer_MultiByteRune(t *testing.T) {
	got, err := NewByteTokenizer().Encode("é")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// start + 2 UTF-8 bytes + stop
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4 (%v)", len(got), got)
	}

	if got[1] != 0xC3+ByteOffset || got[2] != 0xA9+ByteOffset {
		t.Errorf("bytes = %v", got[1:3])
	}
}

func TestByteTokenizer_Empty(t *testing.T) {
	got, err := NewByteTokenizer().Encode("")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if len(got) != 0 {
		t.Errorf("Encode(\"\") = %v, want empty", got)
	}
}

func TestLoad_EmptyPathSelectsBytes(t *testing.T) {
	tok, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, ok := tok.(ByteTokenizer); !ok {
		t.Errorf("Load(\"\") = %T, want ByteTokenizer", tok)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.model"))
	if err == nil {
		t.Fatal("expected error for missing tokenizer model")
	}

	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got: %v", err)
	}
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func equalInt64(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
