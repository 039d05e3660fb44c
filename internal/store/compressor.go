package store

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// maxRecordSize bounds the decoded size of one state record, follower
// lists included, so a damaged frame cannot exhaust memory on restore.
const maxRecordSize = 256 << 20

// Compressor encodes state records for the file backend.
type Compressor interface {
	Compress(val []byte) ([]byte, error)
	Decompress(val []byte) ([]byte, error)
	Close()
}

// zstdCodec is safe for concurrent use by all runners.
type zstdCodec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func (z *zstdCodec) Compress(val []byte) ([]byte, error) {
	return z.encoder.EncodeAll(val, nil), nil
}

func (z *zstdCodec) Decompress(val []byte) ([]byte, error) {
	out, err := z.decoder.DecodeAll(val, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd record: %w", err)
	}
	return out, nil
}

func (z *zstdCodec) Close() {
	_ = z.encoder.Close()
	z.decoder.Close()
}

// NewZstdCompressor favours ratio over speed: records are written once
// per poll and follower lists compress well. The cleanup releases the
// codec once every store using it is closed.
func NewZstdCompressor() (Compressor, func(), error) {
	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(0),
		zstd.WithDecoderMaxMemory(maxRecordSize),
	)
	if err != nil {
		_ = encoder.Close()
		return nil, nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	codec := &zstdCodec{encoder: encoder, decoder: decoder}
	return codec, codec.Close, nil
}
