package internal

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestArchiveAndUnarchive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "block_log")
	l := buildTestLog(t, path, 50)
	l.Close()

	original, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	result, err := Archive(path, filepath.Join(dir, "cold"), 3)
	if err != nil {
		t.Fatal(err)
	}

	if result.RawBytes != int64(len(original)) {
		t.Errorf("RawBytes = %d, want %d", result.RawBytes, len(original))
	}
	if _, err := os.Stat(result.ArchivePath); err != nil {
		t.Errorf("archive missing: %v", err)
	}

	manifest, err := os.ReadFile(result.ManifestPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(manifest), result.SHA256) {
		t.Error("manifest does not carry the digest")
	}
	if !strings.Contains(string(manifest), "block_log") {
		t.Error("manifest does not name the file")
	}

	restored := filepath.Join(dir, "restored_log")
	if err := Unarchive(result.ArchivePath, result.ManifestPath, restored); err != nil {
		t.Fatal(err)
	}

	restoredBytes, err := os.ReadFile(restored)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(restoredBytes, original) {
		t.Error("restored log differs from original")
	}
}

func TestUnarchiveRejectsTamperedManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "block_log")
	l := buildTestLog(t, path, 5)
	l.Close()

	result, err := Archive(path, filepath.Join(dir, "cold"), 1)
	if err != nil {
		t.Fatal(err)
	}

	// Corrupt the recorded digest.
	manifest, err := os.ReadFile(result.ManifestPath)
	if err != nil {
		t.Fatal(err)
	}
	if manifest[0] == 'f' {
		manifest[0] = '0'
	} else {
		manifest[0] = 'f'
	}
	if err := os.WriteFile(result.ManifestPath, manifest, 0644); err != nil {
		t.Fatal(err)
	}

	restored := filepath.Join(dir, "restored_log")
	if err := Unarchive(result.ArchivePath, result.ManifestPath, restored); err == nil {
		t.Error("tampered manifest accepted")
	}
	if _, err := os.Stat(restored); !os.IsNotExist(err) {
		t.Error("partial restore left behind after digest mismatch")
	}
}

func TestArchivedLogStillOpens(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "block_log")
	l := buildTestLog(t, path, 10)
	l.Close()

	result, err := Archive(path, filepath.Join(dir, "cold"), 3)
	if err != nil {
		t.Fatal(err)
	}

	// Restore next to the original and make sure the restored copy is
	// a working block log.
	restored := filepath.Join(dir, "restored_log")
	if err := Unarchive(result.ArchivePath, result.ManifestPath, restored); err != nil {
		t.Fatal(err)
	}

	info, err := Info(restored)
	if err != nil {
		t.Fatal(err)
	}
	if info.HeadBlockNum != 10 {
		t.Errorf("restored head = %d, want 10", info.HeadBlockNum)
	}
}
