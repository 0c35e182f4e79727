package eventstore

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// maxDecompressedSize bounds snapshot payloads at decompression time so
// a corrupt or hostile size prefix cannot trigger a huge allocation.
const maxDecompressedSize = 1 << 20

// compressSnapshot LZ4 block-compresses data behind a 4-byte
// little-endian uncompressed-size prefix. Incompressible payloads are
// stored raw; decompressSnapshot tells the two apart by comparing the
// prefix against the payload length.
func compressSnapshot(data []byte) ([]byte, error) {
	if len(data) > maxDecompressedSize {
		return nil, fmt.Errorf("snapshot state is %d bytes, limit is %d", len(data), maxDecompressedSize)
	}

	buf := make([]byte, 4+lz4.CompressBlockBound(len(data)))
	binary.LittleEndian.PutUint32(buf, uint32(len(data)))

	var c lz4.Compressor
	n, err := c.CompressBlock(data, buf[4:])
	if err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	if n == 0 || n >= len(data) {
		return append(buf[:4], data...), nil
	}
	return buf[:4+n], nil
}

// decompressSnapshot reverses compressSnapshot, enforcing the size bound
// before allocating.
func decompressSnapshot(blob []byte) ([]byte, error) {
	if len(blob) < 4 {
		return nil, fmt.Errorf("snapshot blob is %d bytes, want at least 4", len(blob))
	}
	size := binary.LittleEndian.Uint32(blob)
	if size > maxDecompressedSize {
		return nil, fmt.Errorf("snapshot claims %d decompressed bytes, limit is %d", size, maxDecompressedSize)
	}

	payload := blob[4:]
	if int(size) == len(payload) {
		out := make([]byte, size)
		copy(out, payload)
		return out, nil
	}

	out := make([]byte, size)
	n, err := lz4.UncompressBlock(payload, out)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	if n != int(size) {
		return nil, fmt.Errorf("snapshot decompressed to %d bytes, prefix says %d", n, size)
	}
	return out, nil
}
