//go:build !cgo
// +build !cgo

package compression

import (
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// decoderPool provides thread-safe access to zstd decoders
var decoderPool = sync.Pool{
	New: func() interface{} {
		d, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		return d
	},
}

func getDecoder() *zstd.Decoder {
	return decoderPool.Get().(*zstd.Decoder)
}

func putDecoder(d *zstd.Decoder) {
	decoderPool.Put(d)
}

func ZstdCompressLevel(dst, src []byte, level int) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(src, dst[:0]), nil
}

func ZstdDecompress(dst, src []byte) ([]byte, error) {
	dec := getDecoder()
	defer putDecoder(dec)
	return dec.DecodeAll(src, dst[:0])
}

// NewZstdWriter returns a streaming compressor at the given level.
func NewZstdWriter(w io.Writer, level int) io.WriteCloser {
	enc, _ := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	return enc
}

type zstdReadCloser struct {
	dec *zstd.Decoder
}

func (z zstdReadCloser) Read(p []byte) (int, error) { return z.dec.Read(p) }

func (z zstdReadCloser) Close() error {
	z.dec.Close()
	return nil
}

// NewZstdReader returns a streaming decompressor. Close releases it.
func NewZstdReader(r io.Reader) io.ReadCloser {
	dec, _ := zstd.NewReader(r)
	return zstdReadCloser{dec: dec}
}
