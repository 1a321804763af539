package blocklog

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// readFile provides positioned reads from a file that another handle is
// appending to. ReadAt carries no cursor, so any number of goroutines
// may read concurrently.
type readFile struct {
	file *os.File
}

func openReadFile(path string) (*readFile, error) {
	file, err := os.OpenFile(path, os.O_RDONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &readFile{file: file}, nil
}

// Size stats the file on every call so freshly flushed appends are
// visible.
func (r *readFile) Size() (uint64, error) {
	stat, err := r.file.Stat()
	if err != nil {
		return 0, err
	}
	return uint64(stat.Size()), nil
}

// ReadAt fills buf from the given offset, failing with ErrShortRead
// when fewer bytes are available.
func (r *readFile) ReadAt(buf []byte, offset uint64) error {
	n, err := r.file.ReadAt(buf, int64(offset))
	if err == io.EOF || (err == nil && n < len(buf)) {
		return fmt.Errorf("%w: %d bytes at offset %d, got %d", ErrShortRead, len(buf), offset, n)
	}
	return err
}

// ReadUint64At reads an 8-byte little-endian value.
func (r *readFile) ReadUint64At(offset uint64) (uint64, error) {
	var buf [8]byte
	if err := r.ReadAt(buf[:], offset); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// SectionReader returns a reader over [offset, limit), suitable for
// handing to a codec.
func (r *readFile) SectionReader(offset, limit uint64) io.Reader {
	return io.NewSectionReader(r.file, int64(offset), int64(limit-offset))
}

func (r *readFile) Close() error {
	return r.file.Close()
}
