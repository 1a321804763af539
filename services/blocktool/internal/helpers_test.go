package internal

import (
	"testing"

	"github.com/internetbuilder/hive/libraries/blocklog"
	"github.com/internetbuilder/hive/libraries/chain"
)

// buildTestLog writes a chain of n signed blocks to a fresh log at path
// and returns it open.
func buildTestLog(t *testing.T, path string, n uint32) *blocklog.BlockLog {
	t.Helper()

	l, err := blocklog.Open(path, blocklog.Options{Codec: chain.Codec{}})
	if err != nil {
		t.Fatal(err)
	}

	prev := chain.BlockID{}
	for i := uint32(1); i <= n; i++ {
		b := &chain.SignedBlock{
			Previous:  prev,
			Timestamp: 1700000000 + i*3,
			Witness:   "initminer",
			Transactions: [][]byte{
				{byte(i), byte(i >> 8)},
			},
		}
		if _, err := l.Append(b); err != nil {
			t.Fatalf("Append block %d: %v", i, err)
		}
		prev = b.ID()
	}

	return l
}
