package blocklog

import (
	"fmt"
	"os"

	"github.com/internetbuilder/hive/libraries/logger"
)

// Rewrite produces a fresh log at outputPath containing exactly blocks
// [1..maxBlockNum] of the log at inputPath, with a matching index. The
// output is written in place; swapping it over the input is the
// caller's responsibility. Fails with ErrInputTooShort when the input
// holds fewer than maxBlockNum blocks.
func Rewrite(inputPath, outputPath string, codec Codec, maxBlockNum uint32) error {
	if err := os.Remove(outputPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(outputPath + IndexSuffix); err != nil && !os.IsNotExist(err) {
		return err
	}

	out, err := Open(outputPath, Options{Codec: codec, DisableLocking: true})
	if err != nil {
		return err
	}
	defer out.Close()

	logger.Printf("rewrite", "Rewriting %s -> %s up to block %d", inputPath, outputPath, maxBlockNum)

	var appendErr error
	var written uint32

	err = Iterate(inputPath, codec, func(b Block) bool {
		if b.BlockNum() > maxBlockNum {
			return false
		}
		if _, appendErr = out.Append(b); appendErr != nil {
			return false
		}
		written = b.BlockNum()
		return written < maxBlockNum
	})
	if appendErr != nil {
		return appendErr
	}
	if err != nil {
		return err
	}
	if written < maxBlockNum {
		return fmt.Errorf("%w: wanted %d blocks, input ends at %d", ErrInputTooShort, maxBlockNum, written)
	}

	if err := out.Sync(); err != nil {
		return err
	}

	logger.Printf("rewrite", "Rewrite complete: %d blocks", written)
	return out.Close()
}
