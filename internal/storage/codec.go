package storage

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Encoder and decoder are safe for concurrent EncodeAll/DecodeAll use.
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

// maxPayloadBytes bounds a decompressed job payload.
const maxPayloadBytes = 256 << 20

func encodePayload(p payload) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return zstdEncoder.EncodeAll(raw, make([]byte, 0, len(raw)/4)), nil
}

func decodePayload(blob []byte) (payload, error) {
	var p payload
	raw, err := zstdDecoder.DecodeAll(blob, nil)
	if err != nil {
		return p, fmt.Errorf("decompress payload: %w", err)
	}
	if len(raw) > maxPayloadBytes {
		return p, fmt.Errorf("payload too large: %d bytes", len(raw))
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}
