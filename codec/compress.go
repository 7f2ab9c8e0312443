package codec

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v3"

	"github.com/Thema-AI/web-index/cmn"
)

// Compress frames body as an LZ4 stream. Every partition file is
// compressed before its checksum trailer is computed, since headers and
// response bodies both compress well and the engine pays the decode cost
// only on actual reads, never on writes-at-rest.
func Compress(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(body); err != nil {
		return nil, cmn.Structuralf("codec: lz4 compress: %v", err)
	}
	if err := w.Close(); err != nil {
		return nil, cmn.Structuralf("codec: lz4 close: %v", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func Decompress(body []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(body))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, cmn.CorruptPartitionf("<file>", err)
	}
	return out, nil
}
