package tokenizer

// Reserved ids of the byte vocabulary. Byte b encodes as b+ByteOffset.
const (
	PadID      int64 = 0
	StartID    int64 = 1
	StopID     int64 = 2
	ByteOffset int64 = 3
)

// ByteTokenizer maps UTF-8 bytes to ids and wraps them in start/stop markers.
type ByteTokenizer struct{}

func NewByteTokenizer() ByteTokenizer { return ByteTokenizer{} }

func (ByteTokenizer) Encode(text string) ([]int64, error) {
	if text == "" {
		return []int64{}, nil
	}

	ids := make([]int64, 0, len(text)+2)
	ids = append(ids, StartID)
	for i := 0; i < len(text); i++ {
		ids = append(ids, int64(text[i])+ByteOffset)
	}

	return append(ids, StopID), nil
}
