package blocklog

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
)

const trailerSize = 8

// IndexSuffix is appended to the log path to derive the index path.
const IndexSuffix = ".index"

// Options configures an open block log. The zero value (plus a codec)
// gives a locked log with the default write buffer.
type Options struct {
	// Codec decodes and encodes blocks. Required.
	Codec Codec

	// WriteBufferSize is the size of the append buffers. Zero picks
	// the default.
	WriteBufferSize int

	// DisableLocking opens the log with internal locks off, for
	// single-threaded bulk replay. See SetLocking.
	DisableLocking bool
}

// BlockLog is an append-only log of irreversible blocks paired with a
// dense positional index. Each log entry is the serialized block
// followed by an 8-byte little-endian trailer holding the offset of the
// entry's first byte; the index file holds one such offset per block.
//
// A single goroutine may append while any number of goroutines read.
type BlockLog struct {
	path      string
	indexPath string
	codec     Codec

	// locking can be switched off for bulk replay. Toggle only while
	// no other goroutine is using the log.
	locking atomic.Bool
	opened  atomic.Bool

	appendMu sync.Mutex

	// headMu guards the head cache and the committed block count.
	headMu  sync.RWMutex
	head    Block
	headPos uint64
	count   uint32

	logW *appendFile
	idxW *appendFile
	logR *readFile
	idxR *readFile
}

// Open opens the block log at path, creating it when absent. The index
// lives at path+IndexSuffix and is reconstructed or repaired as needed:
// a missing or short index is rebuilt from the log, an overlong index
// is truncated, and a partially written final entry is trimmed so the
// log ends on a complete entry.
func Open(path string, opts Options) (*BlockLog, error) {
	if opts.Codec == nil {
		return nil, fmt.Errorf("blocklog: codec is required")
	}

	l := &BlockLog{
		path:      path,
		indexPath: path + IndexSuffix,
		codec:     opts.Codec,
	}
	l.locking.Store(!opts.DisableLocking)

	ok := false
	defer func() {
		if !ok {
			l.closeFiles()
		}
	}()

	var err error
	if l.logW, err = openAppendFile(path, opts.WriteBufferSize); err != nil {
		return nil, err
	}
	if l.idxW, err = openAppendFile(l.indexPath, opts.WriteBufferSize); err != nil {
		return nil, err
	}
	if l.logR, err = openReadFile(path); err != nil {
		return nil, err
	}
	if l.idxR, err = openReadFile(l.indexPath); err != nil {
		return nil, err
	}

	if err := l.recover(); err != nil {
		return nil, err
	}

	ok = true
	l.opened.Store(true)
	return l, nil
}

// IsOpen reports whether the log is open.
func (l *BlockLog) IsOpen() bool {
	return l.opened.Load()
}

// Path returns the log file path.
func (l *BlockLog) Path() string { return l.path }

// IndexPath returns the index file path.
func (l *BlockLog) IndexPath() string { return l.indexPath }

// SetLocking enables or disables the internal locks. Disabling is an
// escape hatch for bulk replay where the caller guarantees
// single-threaded access; toggle only while no operation is in flight.
func (l *BlockLog) SetLocking(enabled bool) {
	l.locking.Store(enabled)
}

func (l *BlockLog) lockAppend() {
	if l.locking.Load() {
		l.appendMu.Lock()
	}
}

func (l *BlockLog) unlockAppend() {
	if l.locking.Load() {
		l.appendMu.Unlock()
	}
}

func (l *BlockLog) rlockHead() {
	if l.locking.Load() {
		l.headMu.RLock()
	}
}

func (l *BlockLog) runlockHead() {
	if l.locking.Load() {
		l.headMu.RUnlock()
	}
}

func (l *BlockLog) setState(head Block, headPos uint64, count uint32) {
	if l.locking.Load() {
		l.headMu.Lock()
		defer l.headMu.Unlock()
	}
	l.head = head
	l.headPos = headPos
	l.count = count
}

// Append adds an irreversible block to the end of the log and returns
// the offset its serialized bytes begin at. The block number must be
// exactly one past the current head (or 1 for an empty log); anything
// else fails with ErrOutOfOrder and leaves the log untouched.
//
// The entry bytes and trailer are issued as one buffered write, the log
// is flushed before the index, and the head cache is updated last, so
// readers never observe a partially appended block.
func (l *BlockLog) Append(b Block) (uint64, error) {
	if !l.opened.Load() {
		return 0, ErrNotOpen
	}

	l.lockAppend()
	defer l.unlockAppend()

	headNum := uint32(0)
	if l.head != nil {
		headNum = l.head.BlockNum()
	}
	if b.BlockNum() != headNum+1 {
		return 0, fmt.Errorf("%w: appending block %d onto head %d", ErrOutOfOrder, b.BlockNum(), headNum)
	}

	data, err := l.codec.Marshal(b)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize block %d: %w", b.BlockNum(), err)
	}

	start := l.logW.Size()

	// Block bytes and trailer go out as a single write so the trailer
	// can never land without the bytes it points at.
	entry := make([]byte, len(data)+trailerSize)
	copy(entry, data)
	binary.LittleEndian.PutUint64(entry[len(data):], start)

	if _, err := l.logW.Append(entry); err != nil {
		return 0, err
	}
	if err := l.idxW.AppendUint64(start); err != nil {
		return 0, err
	}

	// Log before index: a crash here leaves an index that is at worst
	// longer than the log, which open-time repair truncates.
	if err := l.logW.Flush(); err != nil {
		return 0, err
	}
	if err := l.idxW.Flush(); err != nil {
		return 0, err
	}

	l.setState(b, start, b.BlockNum())
	return start, nil
}

// Flush pushes buffered appends to the OS, log first.
func (l *BlockLog) Flush() error {
	if !l.opened.Load() {
		return ErrNotOpen
	}

	l.lockAppend()
	defer l.unlockAppend()

	if err := l.logW.Flush(); err != nil {
		return err
	}
	return l.idxW.Flush()
}

// Sync flushes and fsyncs both files, log first.
func (l *BlockLog) Sync() error {
	if !l.opened.Load() {
		return ErrNotOpen
	}

	l.lockAppend()
	defer l.unlockAppend()

	if err := l.logW.Sync(); err != nil {
		return err
	}
	return l.idxW.Sync()
}

// Close flushes and closes both files. Closing a closed log is a no-op.
func (l *BlockLog) Close() error {
	if !l.opened.Swap(false) {
		return nil
	}

	l.lockAppend()
	defer l.unlockAppend()

	flushErr := l.logW.Flush()
	if err := l.idxW.Flush(); flushErr == nil {
		flushErr = err
	}

	l.setState(nil, 0, 0)

	if err := l.closeFiles(); flushErr == nil {
		flushErr = err
	}
	return flushErr
}

func (l *BlockLog) closeFiles() error {
	var firstErr error
	if l.logW != nil {
		if err := l.logW.Close(); firstErr == nil {
			firstErr = err
		}
	}
	if l.idxW != nil {
		if err := l.idxW.Close(); firstErr == nil {
			firstErr = err
		}
	}
	if l.logR != nil {
		if err := l.logR.Close(); firstErr == nil {
			firstErr = err
		}
	}
	if l.idxR != nil {
		if err := l.idxR.Close(); firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Head returns the cached most recent block, or nil for an empty log.
func (l *BlockLog) Head() Block {
	l.rlockHead()
	defer l.runlockHead()
	return l.head
}

// Count returns the number of blocks in the log. Equal to the head
// block number when non-empty.
func (l *BlockLog) Count() uint32 {
	l.rlockHead()
	defer l.runlockHead()
	return l.count
}

// OffsetOf returns the log offset of the given block number, or NPOS
// when the block is not in the log. Block numbers start at 1.
func (l *BlockLog) OffsetOf(blockNum uint32) (uint64, error) {
	if !l.opened.Load() {
		return NPOS, ErrNotOpen
	}

	l.rlockHead()
	count := l.count
	l.runlockHead()

	if blockNum == 0 || blockNum > count {
		return NPOS, nil
	}

	off, err := l.idxR.ReadUint64At(uint64(blockNum-1) * 8)
	if err != nil {
		return NPOS, err
	}
	return off, nil
}

// ReadBlockByNum returns the block with the given number and the offset
// of its trailer (useful as a forward-iteration cursor), or (nil, 0,
// nil) when the block is not in the log.
func (l *BlockLog) ReadBlockByNum(blockNum uint32) (Block, uint64, error) {
	off, err := l.OffsetOf(blockNum)
	if err != nil {
		return nil, 0, err
	}
	if off == NPOS {
		return nil, 0, nil
	}

	b, trailerPos, err := l.readEntry(off)
	if err != nil {
		return nil, 0, err
	}
	if b.BlockNum() != blockNum {
		return nil, 0, fmt.Errorf("%w: offset %d holds block %d, index says %d",
			ErrIndexInconsistent, off, b.BlockNum(), blockNum)
	}
	return b, trailerPos, nil
}

// ReadBlock decodes the block at the given offset and returns it along
// with the offset of its trailer.
func (l *BlockLog) ReadBlock(offset uint64) (Block, uint64, error) {
	if !l.opened.Load() {
		return nil, 0, ErrNotOpen
	}

	size, err := l.logR.Size()
	if err != nil {
		return nil, 0, err
	}
	if offset >= size {
		return nil, 0, fmt.Errorf("%w: offset %d beyond log end %d", ErrInvalidOffset, offset, size)
	}

	b, trailerPos, err := l.readEntry(offset)
	if err != nil {
		return nil, 0, err
	}
	if trailerPos+trailerSize > size {
		return nil, 0, fmt.Errorf("%w: entry at %d extends past log end", ErrInvalidOffset, offset)
	}
	return b, trailerPos, nil
}

// ReadHead decodes the head block from disk by following the trailing
// trailer; it works even when the index is damaged. Returns nil for an
// empty log.
func (l *BlockLog) ReadHead() (Block, error) {
	if !l.opened.Load() {
		return nil, ErrNotOpen
	}

	size, err := l.logR.Size()
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}
	if size < trailerSize {
		return nil, fmt.Errorf("%w: log smaller than a trailer", ErrCorrupt)
	}

	pos, err := l.logR.ReadUint64At(size - trailerSize)
	if err != nil {
		return nil, err
	}
	if pos > size-trailerSize {
		return nil, fmt.Errorf("%w: head trailer points past log end", ErrCorrupt)
	}

	b, _, err := l.readEntry(pos)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// readEntry decodes one block at offset and returns it with the
// position of its trailer.
func (l *BlockLog) readEntry(offset uint64) (Block, uint64, error) {
	size, err := l.logR.Size()
	if err != nil {
		return nil, 0, err
	}
	if offset >= size {
		return nil, 0, fmt.Errorf("%w: offset %d beyond log end %d", ErrInvalidOffset, offset, size)
	}

	r := bufio.NewReaderSize(l.logR.SectionReader(offset, size), 64*1024)
	b, n, err := l.codec.Unmarshal(r)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: at offset %d: %v", ErrMalformedBlock, offset, err)
	}
	return b, offset + uint64(n), nil
}

// verifyEntry decodes the entry at offset and checks its trailer
// points back at it within the given limit. Returns the block and the
// trailer position.
func (l *BlockLog) verifyEntry(offset, limit uint64) (Block, uint64, bool) {
	if offset >= limit {
		return nil, 0, false
	}

	r := bufio.NewReaderSize(l.logR.SectionReader(offset, limit), 64*1024)
	b, n, err := l.codec.Unmarshal(r)
	if err != nil {
		return nil, 0, false
	}

	trailerPos := offset + uint64(n)
	if trailerPos+trailerSize > limit {
		return nil, 0, false
	}
	trailer, err := l.logR.ReadUint64At(trailerPos)
	if err != nil || trailer != offset {
		return nil, 0, false
	}
	return b, trailerPos, true
}

// Iterate walks every block in the log at path in order, calling fn for
// each; fn returns whether iteration should continue. It operates on
// the files directly and does not require an open BlockLog.
func Iterate(path string, codec Codec, fn func(Block) bool) error {
	r, err := openReadFile(path)
	if err != nil {
		return err
	}
	defer r.Close()

	size, err := r.Size()
	if err != nil {
		return err
	}

	offset := uint64(0)
	for offset < size {
		sr := bufio.NewReaderSize(r.SectionReader(offset, size), 64*1024)
		b, n, err := codec.Unmarshal(sr)
		if err != nil {
			return fmt.Errorf("%w: at offset %d: %v", ErrMalformedBlock, offset, err)
		}
		if !fn(b) {
			return nil
		}
		offset += uint64(n) + trailerSize
	}
	return nil
}
