package journal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

// compressFile writes a zstd compressed copy of src to dst.
func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat journal: %w", err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to create encoder: %w", err)
	}

	if _, err := io.Copy(enc, in); err != nil {
		enc.Close()
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to compress: %w", err)
	}

	if err := enc.Close(); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to close encoder: %w", err)
	}

	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to close archive: %w", err)
	}

	compressed, err := os.Stat(dst)
	if err != nil {
		return fmt.Errorf("failed to stat archive: %w", err)
	}

	ratio := 0.0
	if info.Size() > 0 {
		ratio = (1.0 - float64(compressed.Size())/float64(info.Size())) * 100
	}

	log.Info().
		Int64("original_bytes", info.Size()).
		Int64("compressed_bytes", compressed.Size()).
		Float64("compression_ratio_pct", ratio).
		Str("archive_path", dst).
		Msg("Journal archived with zstd compression")

	return nil
}

// Decompress restores an archive written by Archive to outputPath.
func Decompress(archivePath, outputPath string) error {
	in, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer in.Close()

	dec, err := zstd.NewReader(in)
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	defer dec.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}

	if _, err := io.Copy(out, dec); err != nil {
		out.Close()
		os.Remove(outputPath)
		return fmt.Errorf("failed to decompress: %w", err)
	}

	return out.Close()
}

// CleanupArchive removes archives in archiveDir older than retentionDays.
// Returns the number of files deleted.
func CleanupArchive(archiveDir string, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	entries, err := os.ReadDir(archiveDir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read archive directory: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	deleted := 0

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".zst" {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to get file info, skipping")
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(archiveDir, entry.Name())); err != nil {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to delete old archive file")
			continue
		}
		deleted++
	}

	if deleted > 0 {
		log.Info().Str("archive_dir", archiveDir).Int("deleted_files", deleted).Msg("Archive cleanup completed")
	}

	return deleted, nil
}
