package store

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionType defines the compression algorithm used for a string-pool
// table region.
type CompressionType uint8

const (
	// CompressionNone stores the table uncompressed.
	CompressionNone CompressionType = 0
	// CompressionLZ4 uses LZ4 block compression (fast decode).
	CompressionLZ4 CompressionType = 1
	// CompressionZSTD uses ZSTD block compression (better ratio).
	CompressionZSTD CompressionType = 2
)

// Frame layout: [type u8][rawLen u32][compLen u32][payload].
// If compLen == 0 the payload is stored raw (rawLen bytes).
const frameHeaderSize = 1 + 4 + 4

// compressFrame encodes raw into a framed, optionally compressed blob.
// Falls back to raw storage when compression does not shrink the payload.
func compressFrame(raw []byte, ct CompressionType) ([]byte, error) {
	var payload []byte
	switch ct {
	case CompressionNone:
		payload = nil
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(raw)))
		var c lz4.Compressor
		n, err := c.CompressBlock(raw, buf)
		if err != nil {
			return nil, err
		}
		if n > 0 && n < len(raw) {
			payload = buf[:n]
		}
	case CompressionZSTD:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, err
		}
		buf := enc.EncodeAll(raw, nil)
		enc.Close()
		if len(buf) < len(raw) {
			payload = buf
		}
	default:
		return nil, fmt.Errorf("unknown compression type %d", ct)
	}
	out := make([]byte, 0, frameHeaderSize+len(raw))
	out = append(out, byte(ct))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(raw)))
	if payload == nil {
		out = binary.LittleEndian.AppendUint32(out, 0)
		out = append(out, raw...)
	} else {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(payload)))
		out = append(out, payload...)
	}
	return out, nil
}

// decompressFrame decodes a blob written by compressFrame.
func decompressFrame(src []byte) ([]byte, error) {
	if len(src) < frameHeaderSize {
		return nil, fmt.Errorf("%w: frame too short", ErrCorrupt)
	}
	ct := CompressionType(src[0])
	rawLen := binary.LittleEndian.Uint32(src[1:5])
	compLen := binary.LittleEndian.Uint32(src[5:9])
	body := src[frameHeaderSize:]
	if compLen == 0 {
		if uint32(len(body)) < rawLen {
			return nil, fmt.Errorf("%w: raw frame truncated", ErrCorrupt)
		}
		out := make([]byte, rawLen)
		copy(out, body[:rawLen])
		return out, nil
	}
	if uint32(len(body)) < compLen {
		return nil, fmt.Errorf("%w: compressed frame truncated", ErrCorrupt)
	}
	body = body[:compLen]
	switch ct {
	case CompressionLZ4:
		out := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, err
		}
		if uint32(n) != rawLen {
			return nil, fmt.Errorf("%w: lz4 frame decoded %d bytes, want %d", ErrCorrupt, n, rawLen)
		}
		return out, nil
	case CompressionZSTD:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		out, err := dec.DecodeAll(body, make([]byte, 0, rawLen))
		if err != nil {
			return nil, err
		}
		if uint32(len(out)) != rawLen {
			return nil, fmt.Errorf("%w: zstd frame decoded %d bytes, want %d", ErrCorrupt, len(out), rawLen)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown compression type %d", ErrCorrupt, ct)
	}
}
