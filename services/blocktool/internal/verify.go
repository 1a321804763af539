package internal

import (
	"encoding/binary"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/internetbuilder/hive/libraries/blocklog"
	"github.com/internetbuilder/hive/libraries/chain"
	"github.com/internetbuilder/hive/libraries/logger"
	"golang.org/x/sync/errgroup"
)

// VerifyResult summarizes a full-log validation pass.
type VerifyResult struct {
	Blocks     uint32
	LogBytes   int64
	IndexBytes int64
	Elapsed    time.Duration
}

// Verify opens the log (so Open's tail and index repair runs first) and
// checks every block: the index
// entry must resolve to a block with the right number, the trailer
// after each block must point back at it, and the head read from disk
// must agree with the cache. Decode work fans out over a worker pool.
func Verify(path string, workers int) (*VerifyResult, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	start := time.Now()

	l, err := blocklog.Open(path, blocklog.Options{Codec: chain.Codec{}})
	if err != nil {
		return nil, err
	}
	defer l.Close()

	count := l.Count()
	logger.Printf("verify", "Verifying %s blocks with %d workers", logger.FormatCount(int64(count)), workers)

	raw, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer raw.Close()

	var g errgroup.Group
	g.SetLimit(workers)

	for n := uint32(1); n <= count; n++ {
		n := n
		g.Go(func() error {
			offset, err := l.OffsetOf(n)
			if err != nil {
				return err
			}
			if offset == blocklog.NPOS {
				return fmt.Errorf("block %d missing from index", n)
			}

			// ReadBlockByNum decodes the entry and checks the block
			// number against the index.
			_, trailerPos, err := l.ReadBlockByNum(n)
			if err != nil {
				return fmt.Errorf("block %d: %w", n, err)
			}

			var trailer [8]byte
			if _, err := raw.ReadAt(trailer[:], int64(trailerPos)); err != nil {
				return fmt.Errorf("block %d trailer: %w", n, err)
			}
			if got := binary.LittleEndian.Uint64(trailer[:]); got != offset {
				return fmt.Errorf("block %d trailer = %d, want %d", n, got, offset)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if count > 0 {
		head, err := l.ReadHead()
		if err != nil {
			return nil, fmt.Errorf("head: %w", err)
		}
		if head.BlockNum() != count {
			return nil, fmt.Errorf("head block on disk is %d, index says %d", head.BlockNum(), count)
		}
		cached := l.Head()
		if cached == nil || cached.BlockNum() != head.BlockNum() {
			return nil, fmt.Errorf("head cache disagrees with disk")
		}
	}

	logStat, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	idxStat, err := os.Stat(l.IndexPath())
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{
		Blocks:     count,
		LogBytes:   logStat.Size(),
		IndexBytes: idxStat.Size(),
		Elapsed:    time.Since(start),
	}

	logger.Printf("verify", "✓ %s blocks valid (%s log, %s index) in %.2fs",
		logger.FormatCount(int64(result.Blocks)),
		logger.FormatBytes(result.LogBytes),
		logger.FormatBytes(result.IndexBytes),
		result.Elapsed.Seconds())

	return result, nil
}
