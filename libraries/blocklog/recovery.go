package blocklog

import (
	"fmt"

	"github.com/internetbuilder/hive/libraries/logger"
)

const indexProgressInterval = 1_000_000

// recover runs at open: it trims a damaged tail, then brings the index
// into agreement with the log. Local conditions (missing, short, or
// long index; partial final entry) are repaired silently; structural
// damage such as a numbering gap surfaces as ErrCorrupt.
func (l *BlockLog) recover() error {
	logSize := l.logW.Size()

	if logSize == 0 {
		if l.idxW.Size() != 0 {
			logger.Printf("blocklog", "Empty log with %d byte index, truncating index", l.idxW.Size())
			if err := l.idxW.Truncate(0); err != nil {
				return err
			}
		}
		l.setState(nil, 0, 0)
		return nil
	}

	head, headPos, ok := l.checkTail(logSize)
	if !ok {
		var err error
		head, headPos, logSize, err = l.repairTail(logSize)
		if err != nil {
			return err
		}
		if logSize == 0 {
			if err := l.idxW.Truncate(0); err != nil {
				return err
			}
			l.setState(nil, 0, 0)
			return nil
		}
	}

	return l.reconcileIndex(head, headPos, logSize)
}

// checkTail verifies that the log ends on a complete entry: the
// trailing 8 bytes must point at an offset whose entry decodes and ends
// exactly at that trailer.
func (l *BlockLog) checkTail(logSize uint64) (Block, uint64, bool) {
	if logSize < trailerSize {
		return nil, 0, false
	}

	pos, err := l.logR.ReadUint64At(logSize - trailerSize)
	if err != nil || pos > logSize-trailerSize {
		return nil, 0, false
	}

	b, trailerPos, ok := l.verifyEntry(pos, logSize)
	if !ok || trailerPos != logSize-trailerSize {
		return nil, 0, false
	}
	return b, pos, true
}

// repairTail truncates the log to its last complete entry. The scan
// starts at the newest index entry that resolves to a valid entry (or
// offset 0 when the index offers no help) and walks forward, keeping
// the last position where an entry ended cleanly.
func (l *BlockLog) repairTail(logSize uint64) (Block, uint64, uint64, error) {
	logger.Printf("blocklog", "Block log does not end on a complete entry, scanning for the last good block...")

	start := uint64(0)
	if idxSize := l.idxW.Size(); idxSize >= 8 {
		for k := idxSize / 8; k > 0; k-- {
			off, err := l.idxR.ReadUint64At((k - 1) * 8)
			if err != nil {
				break
			}
			if off >= logSize {
				continue
			}
			if _, _, ok := l.verifyEntry(off, logSize); ok {
				start = off
				break
			}
		}
	}

	var lastBlock Block
	var lastPos uint64
	end := uint64(0)

	offset := start
	for offset < logSize {
		b, trailerPos, ok := l.verifyEntry(offset, logSize)
		if !ok {
			break
		}
		lastBlock = b
		lastPos = offset
		end = trailerPos + trailerSize
		offset = end
	}

	if end == logSize {
		// The tail entry was fine after all; the trailing trailer must
		// have pointed elsewhere, which means interleaved damage.
		return nil, 0, 0, fmt.Errorf("%w: tail trailer disagrees with entry chain", ErrCorrupt)
	}

	logger.Printf("blocklog", "Truncating block log from %d to %d bytes (dropping %d bytes of partial entry)",
		logSize, end, logSize-end)
	if err := l.logW.Truncate(end); err != nil {
		return nil, 0, 0, err
	}

	if lastBlock == nil {
		return nil, 0, 0, nil
	}
	return lastBlock, lastPos, end, nil
}

// reconcileIndex makes the index agree with a log whose tail is known
// good. The index file must end up holding exactly one offset per
// block.
func (l *BlockLog) reconcileIndex(head Block, headPos uint64, logSize uint64) error {
	headNum := head.BlockNum()
	expected := uint64(headNum) * 8
	idxSize := l.idxW.Size()

	if idxSize > expected {
		logger.Printf("blocklog", "Index is longer than the log (%d > %d bytes), truncating", idxSize, expected)
		if err := l.idxW.Truncate(expected); err != nil {
			return err
		}
		idxSize = expected
	}

	if idxSize == expected {
		last, lastErr := l.idxR.ReadUint64At(expected - 8)
		first, firstErr := l.idxR.ReadUint64At(0)
		if lastErr == nil && firstErr == nil && last == headPos && first == 0 {
			l.setState(head, headPos, headNum)
			return nil
		}
		logger.Printf("blocklog", "Index disagrees with the log head, rebuilding")
		if err := l.constructIndex(false, 0); err != nil {
			return err
		}
	} else {
		if err := l.constructIndex(idxSize >= 8, idxSize); err != nil {
			return err
		}
	}

	l.setState(head, headPos, headNum)
	return nil
}

// ConstructIndex rebuilds the positional index by scanning the log.
// With resume set, the scan restarts after the entry named by the last
// index value below indexPos (a byte position in the index file)
// instead of from the beginning; bulk reindexing uses this to continue
// an interrupted build. Numbering gaps abort with ErrCorrupt.
func (l *BlockLog) ConstructIndex(resume bool, indexPos uint64) error {
	if !l.opened.Load() {
		return ErrNotOpen
	}

	l.lockAppend()
	defer l.unlockAppend()

	if err := l.constructIndex(resume, indexPos); err != nil {
		return err
	}

	head, headPos, ok := l.checkTail(l.logW.Size())
	if !ok {
		return fmt.Errorf("%w: log tail unreadable after index build", ErrCorrupt)
	}
	l.setState(head, headPos, head.BlockNum())
	return nil
}

func (l *BlockLog) constructIndex(resume bool, indexPos uint64) error {
	logSize := l.logW.Size()

	scanOffset := uint64(0)
	expect := uint32(1)

	if resume && indexPos >= 8 {
		indexPos -= indexPos % 8

		resumed := false
		if off, err := l.idxR.ReadUint64At(indexPos - 8); err == nil && off < logSize {
			if b, trailerPos, ok := l.verifyEntry(off, logSize); ok && uint64(b.BlockNum()) == indexPos/8 {
				scanOffset = trailerPos + trailerSize
				expect = b.BlockNum() + 1
				resumed = true
			}
		}
		if !resumed {
			logger.Printf("blocklog", "Cannot resume index build at position %d, restarting from scratch", indexPos)
			return l.constructIndex(false, 0)
		}

		if err := l.idxW.Truncate(indexPos); err != nil {
			return err
		}
		logger.Printf("blocklog", "Resuming index build at block %d (offset %d)", expect, scanOffset)
	} else {
		if err := l.idxW.Truncate(0); err != nil {
			return err
		}
		logger.Printf("blocklog", "Reconstructing block log index...")
	}

	for scanOffset < logSize {
		b, trailerPos, ok := l.verifyEntry(scanOffset, logSize)
		if !ok {
			return fmt.Errorf("%w: unreadable entry at offset %d", ErrCorrupt, scanOffset)
		}
		if b.BlockNum() != expect {
			return fmt.Errorf("%w: expected block %d at offset %d, found %d",
				ErrCorrupt, expect, scanOffset, b.BlockNum())
		}

		if err := l.idxW.AppendUint64(scanOffset); err != nil {
			return err
		}

		if expect%indexProgressInterval == 0 {
			logger.Printf("blocklog", "Indexed %s blocks (%s of log)",
				logger.FormatCount(int64(expect)), logger.FormatBytes(int64(scanOffset)))
		}

		expect++
		scanOffset = trailerPos + trailerSize
	}

	return l.idxW.Flush()
}
