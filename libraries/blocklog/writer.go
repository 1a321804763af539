package blocklog

import (
	"bufio"
	"encoding/binary"
	"os"
)

const defaultWriteBufferSize = 1024 * 1024

// appendFile provides buffered append-only writes to a single file.
// Callers serialize access; the BlockLog append lock covers both the
// log and index writers.
type appendFile struct {
	file    *os.File
	buffer  *bufio.Writer
	offset  uint64
	scratch [8]byte
}

func openAppendFile(path string, bufferSize int) (*appendFile, error) {
	if bufferSize <= 0 {
		bufferSize = defaultWriteBufferSize
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	return &appendFile{
		file:   file,
		buffer: bufio.NewWriterSize(file, bufferSize),
		offset: uint64(stat.Size()),
	}, nil
}

// Append writes data at the logical end of the file and returns the
// offset of its first byte.
func (w *appendFile) Append(data []byte) (uint64, error) {
	offset := w.offset
	if _, err := w.buffer.Write(data); err != nil {
		return 0, err
	}
	w.offset += uint64(len(data))
	return offset, nil
}

// AppendUint64 appends an 8-byte little-endian value.
func (w *appendFile) AppendUint64(v uint64) error {
	binary.LittleEndian.PutUint64(w.scratch[:], v)
	if _, err := w.buffer.Write(w.scratch[:]); err != nil {
		return err
	}
	w.offset += 8
	return nil
}

// Size returns the logical size including buffered bytes.
func (w *appendFile) Size() uint64 {
	return w.offset
}

// Flush pushes buffered data to the OS.
func (w *appendFile) Flush() error {
	return w.buffer.Flush()
}

// Sync flushes and fsyncs.
func (w *appendFile) Sync() error {
	if err := w.buffer.Flush(); err != nil {
		return err
	}
	return w.file.Sync()
}

// Truncate discards any buffered bytes and cuts the file to n bytes.
// Used by open-time repair and by index construction, under the append
// lock.
func (w *appendFile) Truncate(n uint64) error {
	w.buffer.Reset(w.file)
	if err := w.file.Truncate(int64(n)); err != nil {
		return err
	}
	w.offset = n
	return nil
}

func (w *appendFile) Close() error {
	flushErr := w.buffer.Flush()
	closeErr := w.file.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
