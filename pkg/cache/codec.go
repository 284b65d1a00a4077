package cache

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Envelope tags prefixed to every encoded value.
const (
	tagRaw  byte = 0
	tagZstd byte = 1
)

// DefaultCompressThreshold is the encoded size above which payloads are
// zstd-compressed.
const DefaultCompressThreshold = 1024

type codec struct {
	threshold int
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
}

func newCodec(threshold int) (*codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	return &codec{threshold: threshold, encoder: enc, decoder: dec}, nil
}

// encode marshals v to JSON and compresses it when it exceeds the threshold.
// A threshold of zero or less disables compression.
func (c *codec) encode(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling cache entry: %w", err)
	}

	if c.threshold > 0 && len(raw) > c.threshold {
		out := make([]byte, 1, len(raw)/2+1)
		out[0] = tagZstd
		return c.encoder.EncodeAll(raw, out), nil
	}

	out := make([]byte, 0, len(raw)+1)
	out = append(out, tagRaw)
	return append(out, raw...), nil
}

func (c *codec) decode(b []byte, v any) error {
	if len(b) == 0 {
		return fmt.Errorf("%w: empty value", ErrCorruptEntry)
	}

	payload := b[1:]
	switch b[0] {
	case tagRaw:
	case tagZstd:
		var err error
		payload, err = c.decoder.DecodeAll(payload, nil)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorruptEntry, err)
		}
	default:
		return fmt.Errorf("%w: unknown envelope tag %d", ErrCorruptEntry, b[0])
	}

	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}
	return nil
}

func (c *codec) close() {
	c.encoder.Close()
	c.decoder.Close()
}
