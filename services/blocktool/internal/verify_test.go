package internal

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestVerifyCleanLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "block_log")
	l := buildTestLog(t, path, 25)
	l.Close()

	result, err := Verify(path, 4)
	if err != nil {
		t.Fatal(err)
	}
	if result.Blocks != 25 {
		t.Errorf("Blocks = %d, want 25", result.Blocks)
	}
	if result.IndexBytes != 25*8 {
		t.Errorf("IndexBytes = %d, want 200", result.IndexBytes)
	}
}

func TestVerifyEmptyLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "block_log")
	l := buildTestLog(t, path, 0)
	l.Close()

	result, err := Verify(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	if result.Blocks != 0 {
		t.Errorf("Blocks = %d, want 0", result.Blocks)
	}
}

func TestVerifyDetectsDamagedInteriorTrailer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "block_log")
	l := buildTestLog(t, path, 10)

	// Find the trailer of an interior block and flip a byte. Open-time
	// recovery only inspects the tail, so this damage survives reopen
	// and must be caught by the deep scan.
	_, trailerPos, err := l.ReadBlockByNum(5)
	if err != nil {
		t.Fatal(err)
	}
	l.Close()

	f, err := os.OpenFile(path, os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteAt([]byte{0xee}, int64(trailerPos)+2); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if _, err := Verify(path, 2); err == nil {
		t.Error("Verify accepted a log with a damaged interior trailer")
	}
}

func TestVerifyDetectsStaleIndexEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "block_log")
	l := buildTestLog(t, path, 10)

	off3, err := l.OffsetOf(3)
	if err != nil {
		t.Fatal(err)
	}
	l.Close()

	// Point index entry 5 at block 3. Both ends of the index still
	// line up, so the open succeeds; the scan must object.
	f, err := os.OpenFile(path+".index", os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], off3)
	if _, err := f.WriteAt(buf[:], 4*8); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if _, err := Verify(path, 2); err == nil {
		t.Error("Verify accepted an index entry pointing at the wrong block")
	}
}
