package journal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/payroll/internal/telemetry"
)

var (
	// ErrClosed is returned when operating on a closed journal.
	ErrClosed = errors.New("journal is closed")
	// ErrRecordTooLarge is returned by Append when a payload exceeds the record size limit.
	ErrRecordTooLarge = errors.New("journal record too large")
)

// record is the index entry of one journal record.
type record struct {
	sequence  int64
	offset    int64
	length    int64
	timestamp int64
}

// Stats summarises the content of a journal.
type Stats struct {
	Records       int
	FirstSequence int64
	LastSequence  int64
	SizeBytes     int64
	Truncated     bool
}

// File is an append-only journal of committed ledger batches, fsynced on every append.
// A torn or corrupt tail found on open is truncated.
type File struct {
	mu           sync.RWMutex
	path         string
	file         *os.File
	records      []record
	nextSequence int64
	truncated    bool

	// sync flushes the file, replaced in tests to simulate fsync failures
	sync func(*os.File) error
}

// Open opens the journal at path, creating it and its directory when missing.
func Open(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	j := &File{
		path:         path,
		records:      make([]record, 0, 1024),
		nextSequence: 1,
		sync:         (*os.File).Sync,
	}

	if err := j.openOrCreate(); err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	log.Info().
		Str("path", path).
		Int("records", len(j.records)).
		Int64("next_sequence", j.nextSequence).
		Msg("Journal opened")

	return j, nil
}

func (j *File) openOrCreate() error {
	exists := false
	if info, err := os.Stat(j.path); err == nil && info.Size() > 0 {
		exists = true
	}

	var err error
	j.file, err = os.OpenFile(j.path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}

	if !exists {
		if err := j.writeHeader(); err != nil {
			j.file.Close()
			return err
		}
		return nil
	}

	if err := j.loadIndex(); err != nil {
		j.file.Close()
		return err
	}

	// subsequent appends go after the last valid record
	if _, err := j.file.Seek(0, io.SeekEnd); err != nil {
		j.file.Close()
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	return nil
}

// Path returns the journal file path.
func (j *File) Path() string {
	return j.path
}

// Append writes payload as the next record and fsyncs the file.
func (j *File) Append(ctx context.Context, payload []byte) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	// Open truncates anything larger, so refuse it before it can be written.
	if recordOverhead+len(payload) > maxRecordSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, len(payload))
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return 0, ErrClosed
	}

	offset, err := j.file.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("failed to get file position: %w", err)
	}

	sequence := j.nextSequence
	now := time.Now().UnixMilli()
	buf := buildRecord(sequence, now, payload)

	if _, err := j.file.Write(buf); err != nil {
		// drop any partial write so the next append starts on a record boundary
		j.discardFrom(offset, "write")
		return 0, fmt.Errorf("failed to write record: %w", err)
	}

	if err := j.sync(j.file); err != nil {
		// the caller treats the batch as failed, so it must not replay on restart
		j.discardFrom(offset, "fsync")
		return 0, fmt.Errorf("failed to fsync: %w", err)
	}

	j.records = append(j.records, record{
		sequence:  sequence,
		offset:    offset,
		length:    int64(len(buf)),
		timestamp: now,
	})
	j.nextSequence++

	telemetry.GetMetrics().JournalAppendsTotal.Add(ctx, 1)

	log.Debug().
		Int64("sequence", sequence).
		Int64("offset", offset).
		Int("bytes", len(buf)).
		Msg("Batch appended to journal")

	return sequence, nil
}

// discardFrom truncates the file back to offset after a failed append. Callers hold mu.
func (j *File) discardFrom(offset int64, op string) {
	if err := j.file.Truncate(offset); err != nil {
		log.Warn().Err(err).Str("op", op).Msg("Failed to truncate journal after append error")
	}
}

// Replay calls fn with every record in sequence order. Replay stops at the first error.
func (j *File) Replay(ctx context.Context, fn func(sequence int64, payload []byte) error) error {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.file == nil {
		return ErrClosed
	}

	for _, rec := range j.records {
		if err := ctx.Err(); err != nil {
			return err
		}

		payload, err := readRecordAt(j.file, rec)
		if err != nil {
			return fmt.Errorf("failed to read record %d: %w", rec.sequence, err)
		}

		if err := fn(rec.sequence, payload); err != nil {
			return err
		}
	}

	return nil
}

// Stats returns a summary of the journal.
func (j *File) Stats() (Stats, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.file == nil {
		return Stats{}, ErrClosed
	}

	info, err := j.file.Stat()
	if err != nil {
		return Stats{}, fmt.Errorf("failed to stat journal: %w", err)
	}

	stats := Stats{
		Records:   len(j.records),
		SizeBytes: info.Size(),
		Truncated: j.truncated,
	}
	if len(j.records) > 0 {
		stats.FirstSequence = j.records[0].sequence
		stats.LastSequence = j.records[len(j.records)-1].sequence
	}

	return stats, nil
}

// Archive writes a zstd compressed copy of the journal into archiveDir and returns its path.
// The journal stays open and usable.
func (j *File) Archive(ctx context.Context, archiveDir string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return "", ErrClosed
	}

	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	name := fmt.Sprintf("%s-%s.zst", filepath.Base(j.path), time.Now().UTC().Format("20060102T150405Z"))
	archivePath := filepath.Join(archiveDir, name)

	if err := compressFile(j.path, archivePath); err != nil {
		return "", fmt.Errorf("failed to archive journal: %w", err)
	}

	return archivePath, nil
}

// Close closes the journal file.
func (j *File) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return nil
	}

	if err := j.file.Close(); err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}
	j.file = nil

	log.Info().
		Str("path", j.path).
		Int("records", len(j.records)).
		Msg("Journal closed")

	return nil
}
