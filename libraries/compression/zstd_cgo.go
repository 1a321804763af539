//go:build cgo
// +build cgo

package compression

import (
	"io"

	"github.com/DataDog/zstd"
)

func ZstdCompressLevel(dst, src []byte, level int) ([]byte, error) {
	return zstd.CompressLevel(dst, src, level)
}

func ZstdDecompress(dst, src []byte) ([]byte, error) {
	return zstd.Decompress(dst, src)
}

// NewZstdWriter returns a streaming compressor at the given level.
func NewZstdWriter(w io.Writer, level int) io.WriteCloser {
	return zstd.NewWriterLevel(w, level)
}

// NewZstdReader returns a streaming decompressor. Close releases it.
func NewZstdReader(r io.Reader) io.ReadCloser {
	return zstd.NewReader(r)
}
