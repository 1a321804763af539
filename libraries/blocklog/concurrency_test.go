package blocklog

import (
	"path/filepath"
	"sync"
	"testing"
)

func TestConcurrentReadersDuringAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "block_log")
	l := openNumLog(t, path)
	defer l.Close()

	appendBlocks(t, l, 1, 100)

	const total = 2000
	var wg sync.WaitGroup

	// One appender, several readers hammering the read paths. Readers
	// must only ever observe fully appended blocks.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for n := uint32(101); n <= total; n++ {
			if _, err := l.Append(numBlock(n)); err != nil {
				t.Errorf("Append(%d): %v", n, err)
				return
			}
		}
	}()

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5000; j++ {
				head := l.Head()
				if head == nil {
					t.Error("Head() = nil with blocks present")
					return
				}
				n := head.BlockNum()

				b, _, err := l.ReadBlockByNum(n)
				if err != nil {
					t.Errorf("ReadBlockByNum(%d): %v", n, err)
					return
				}
				if b == nil {
					t.Errorf("ReadBlockByNum(%d) = nil for observed head", n)
					return
				}
				if b.BlockNum() != n {
					t.Errorf("ReadBlockByNum(%d) = block %d", n, b.BlockNum())
					return
				}
			}
		}()
	}

	wg.Wait()

	if l.Count() != total {
		t.Errorf("Count() = %d, want %d", l.Count(), total)
	}
}

func TestAppendVisibleToOtherGoroutine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "block_log")
	l := openNumLog(t, path)
	defer l.Close()

	done := make(chan uint32)
	go func() {
		off, err := l.Append(numBlock(1))
		if err != nil {
			t.Errorf("Append: %v", err)
		}
		if off != 0 {
			t.Errorf("offset = %d", off)
		}
		done <- 1
	}()

	n := <-done
	// The append happened-before the channel receive, so the new head
	// must be visible here.
	b, _, err := l.ReadBlockByNum(n)
	if err != nil {
		t.Fatal(err)
	}
	if b == nil || b.BlockNum() != n {
		t.Errorf("ReadBlockByNum(%d) = %v after append in other goroutine", n, b)
	}
}

func BenchmarkAppend(b *testing.B) {
	path := filepath.Join(b.TempDir(), "block_log")
	l, err := Open(path, Options{Codec: numCodec{}})
	if err != nil {
		b.Fatal(err)
	}
	defer l.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := l.Append(numBlock(uint32(i + 1))); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkReadBlockByNum(b *testing.B) {
	path := filepath.Join(b.TempDir(), "block_log")
	l, err := Open(path, Options{Codec: numCodec{}})
	if err != nil {
		b.Fatal(err)
	}
	defer l.Close()

	const total = 10000
	for n := uint32(1); n <= total; n++ {
		if _, err := l.Append(numBlock(n)); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		n := uint32(i%total) + 1
		if _, _, err := l.ReadBlockByNum(n); err != nil {
			b.Fatal(err)
		}
	}
}
