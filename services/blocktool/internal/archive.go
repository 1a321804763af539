package internal

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/internetbuilder/hive/libraries/compression"
	"github.com/internetbuilder/hive/libraries/logger"
)

// ArchiveResult reports what the archiver wrote.
type ArchiveResult struct {
	ArchivePath  string
	ManifestPath string
	RawBytes     int64
	PackedBytes  int64
	SHA256       string
}

// Archive writes a zstd-compressed copy of the log file into outDir
// together with a sha256 manifest of the uncompressed bytes, for cold
// storage of finalized logs. The log itself is left untouched.
func Archive(path, outDir string, level int) (*ArchiveResult, error) {
	if level <= 0 {
		level = 3
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, err
	}

	in, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	stat, err := in.Stat()
	if err != nil {
		return nil, err
	}

	base := filepath.Base(path)
	archivePath := filepath.Join(outDir, base+".zst")
	manifestPath := filepath.Join(outDir, base+".sha256")

	out, err := os.Create(archivePath)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	logger.Printf("archive", "Compressing %s (%s) at zstd level %d",
		base, logger.FormatBytes(stat.Size()), level)

	// Hash the uncompressed stream while compressing it, one pass.
	hasher := sha256.New()
	zw := compression.NewZstdWriter(out, level)

	if _, err := io.Copy(io.MultiWriter(hasher, zw), in); err != nil {
		zw.Close()
		os.Remove(archivePath)
		return nil, fmt.Errorf("compress %s: %w", base, err)
	}
	if err := zw.Close(); err != nil {
		os.Remove(archivePath)
		return nil, err
	}
	if err := out.Sync(); err != nil {
		return nil, err
	}

	digest := hex.EncodeToString(hasher.Sum(nil))
	manifest := fmt.Sprintf("%s  %s\n", digest, base)
	if err := os.WriteFile(manifestPath, []byte(manifest), 0644); err != nil {
		return nil, err
	}

	outStat, err := os.Stat(archivePath)
	if err != nil {
		return nil, err
	}

	logger.Printf("archive", "✓ %s -> %s (%s, %.1f%% of original)",
		base, filepath.Base(archivePath), logger.FormatBytes(outStat.Size()),
		float64(outStat.Size())/float64(stat.Size())*100)

	return &ArchiveResult{
		ArchivePath:  archivePath,
		ManifestPath: manifestPath,
		RawBytes:     stat.Size(),
		PackedBytes:  outStat.Size(),
		SHA256:       digest,
	}, nil
}

// Unarchive decompresses an archive produced by Archive and checks the
// result against the manifest. Used to restore a pruned log from cold
// storage.
func Unarchive(archivePath, manifestPath, destPath string) error {
	manifest, err := os.ReadFile(manifestPath)
	if err != nil {
		return err
	}
	if len(manifest) < sha256.Size*2 {
		return fmt.Errorf("manifest %s is too short", manifestPath)
	}
	wantDigest := string(manifest[:sha256.Size*2])

	in, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer out.Close()

	zr := compression.NewZstdReader(in)
	defer zr.Close()

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(hasher, out), zr); err != nil {
		os.Remove(destPath)
		return fmt.Errorf("decompress %s: %w", archivePath, err)
	}

	if got := hex.EncodeToString(hasher.Sum(nil)); got != wantDigest {
		os.Remove(destPath)
		return fmt.Errorf("digest mismatch restoring %s: got %s, manifest says %s",
			archivePath, got, wantDigest)
	}

	return out.Sync()
}
