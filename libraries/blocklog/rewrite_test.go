package blocklog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestRewriteTruncates(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "block_log")
	out := filepath.Join(dir, "block_log.pruned")

	l := openNumLog(t, in)
	appendBlocks(t, l, 1, 3)
	l.Close()

	if err := Rewrite(in, out, numCodec{}, 2); err != nil {
		t.Fatal(err)
	}

	stat, err := os.Stat(out)
	if err != nil {
		t.Fatal(err)
	}
	if stat.Size() != 24 {
		t.Errorf("output log size = %d, want 24", stat.Size())
	}
	idxStat, err := os.Stat(out + IndexSuffix)
	if err != nil {
		t.Fatal(err)
	}
	if idxStat.Size() != 16 {
		t.Errorf("output index size = %d, want 16", idxStat.Size())
	}

	var seen []uint32
	if err := Iterate(out, numCodec{}, func(b Block) bool {
		seen = append(seen, b.BlockNum())
		return true
	}); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("output blocks = %v, want [1 2]", seen)
	}
}

func TestRewriteInputTooShort(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "block_log")
	out := filepath.Join(dir, "block_log.pruned")

	l := openNumLog(t, in)
	appendBlocks(t, l, 1, 3)
	l.Close()

	err := Rewrite(in, out, numCodec{}, 10)
	if !errors.Is(err, ErrInputTooShort) {
		t.Errorf("Rewrite past input end: %v, want ErrInputTooShort", err)
	}
}

func TestRewriteExactLength(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "block_log")
	out := filepath.Join(dir, "block_log.copy")

	l := openNumLog(t, in)
	appendBlocks(t, l, 1, 5)
	l.Close()

	if err := Rewrite(in, out, numCodec{}, 5); err != nil {
		t.Fatal(err)
	}

	inBytes := readFileBytes(t, in)
	outBytes := readFileBytes(t, out)
	if len(inBytes) != len(outBytes) {
		t.Errorf("full rewrite size mismatch: %d != %d", len(outBytes), len(inBytes))
	}
}

func TestRewriteReplacesExistingOutput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "block_log")
	out := filepath.Join(dir, "block_log.pruned")

	l := openNumLog(t, in)
	appendBlocks(t, l, 1, 4)
	l.Close()

	if err := Rewrite(in, out, numCodec{}, 3); err != nil {
		t.Fatal(err)
	}
	// A second run with a lower target must not inherit the first
	// run's tail.
	if err := Rewrite(in, out, numCodec{}, 2); err != nil {
		t.Fatal(err)
	}

	l2 := openNumLog(t, out)
	defer l2.Close()
	if head := l2.Head(); head == nil || head.BlockNum() != 2 {
		t.Errorf("output head = %v, want block 2", head)
	}
}

func TestRewrittenLogIsUsable(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "block_log")
	out := filepath.Join(dir, "block_log.pruned")

	l := openNumLog(t, in)
	appendBlocks(t, l, 1, 10)
	l.Close()

	if err := Rewrite(in, out, numCodec{}, 6); err != nil {
		t.Fatal(err)
	}

	l2 := openNumLog(t, out)
	defer l2.Close()

	// The pruned log accepts the next block in sequence.
	if _, err := l2.Append(numBlock(7)); err != nil {
		t.Fatal(err)
	}
	b, _, err := l2.ReadBlockByNum(7)
	if err != nil {
		t.Fatal(err)
	}
	if b.BlockNum() != 7 {
		t.Errorf("block = %d", b.BlockNum())
	}
}
