package journal

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/minio/crc64nvme"
	"github.com/rs/zerolog/log"
)

const (
	magic      = "PAYJRNL1"
	version    = uint32(1)
	headerSize = 16 // 8 bytes magic + 4 bytes version + 4 bytes reserved

	// length(4) + sequence(8) + timestamp(8) + crc(8)
	recordOverhead = 28
	maxRecordSize  = 16 * 1024 * 1024
)

func (j *File) writeHeader() error {
	header := make([]byte, headerSize)
	copy(header[0:8], magic)
	binary.LittleEndian.PutUint32(header[8:12], version)

	if _, err := j.file.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("failed to fsync header: %w", err)
	}

	return nil
}

// buildRecord encodes one record.
//
// Record format (28 + payload bytes):
//   - Length (4 bytes, uint32) - total record length including this field
//   - Sequence (8 bytes, int64)
//   - Timestamp (8 bytes, int64) - Unix milliseconds
//   - Payload (variable) - encoded batch
//   - CRC64 (8 bytes, uint64) - CRC64-NVME of sequence, timestamp and payload
func buildRecord(sequence, timestamp int64, payload []byte) []byte {
	//nolint:gosec // payload size is bounded by maxRecordSize in Append
	total := uint32(recordOverhead + len(payload))
	buf := bytes.NewBuffer(make([]byte, 0, total))

	// binary.Write to bytes.Buffer never errors
	_ = binary.Write(buf, binary.LittleEndian, total)
	_ = binary.Write(buf, binary.LittleEndian, sequence)
	_ = binary.Write(buf, binary.LittleEndian, timestamp)
	buf.Write(payload)

	crc := computeCRC64(buf.Bytes()[4:])
	_ = binary.Write(buf, binary.LittleEndian, crc)

	return buf.Bytes()
}

func computeCRC64(data []byte) uint64 {
	h := crc64nvme.New()
	h.Write(data)
	return h.Sum64()
}

// readRecordAt reads and validates the record described by rec and returns its payload.
func readRecordAt(file *os.File, rec record) ([]byte, error) {
	data := make([]byte, rec.length)
	if _, err := file.ReadAt(data, rec.offset); err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	if err := verifyRecord(data); err != nil {
		return nil, err
	}

	return data[20 : len(data)-8], nil
}

func verifyRecord(data []byte) error {
	stored := binary.LittleEndian.Uint64(data[len(data)-8:])
	computed := computeCRC64(data[4 : len(data)-8])
	if stored != computed {
		return fmt.Errorf("CRC64 mismatch: stored=%x computed=%x", stored, computed)
	}
	return nil
}

// loadIndex scans the file, indexes every valid record and truncates at the first invalid one.
func (j *File) loadIndex() error {
	if _, err := j.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to start: %w", err)
	}

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(j.file, header); err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	if string(header[0:8]) != magic {
		return fmt.Errorf("invalid magic: %q", header[0:8])
	}
	if v := binary.LittleEndian.Uint32(header[8:12]); v != version {
		return fmt.Errorf("unsupported version: %d", v)
	}

	offset := int64(headerSize)
	for {
		var lengthBuf [4]byte
		_, err := io.ReadFull(j.file, lengthBuf[:])
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			j.truncateAt(offset, "Failed to read record length")
			break
		}

		length := binary.LittleEndian.Uint32(lengthBuf[:])
		if length < recordOverhead || length > maxRecordSize {
			j.truncateAt(offset, "Invalid record length")
			break
		}

		data := make([]byte, length)
		copy(data, lengthBuf[:])
		if _, err := io.ReadFull(j.file, data[4:]); err != nil {
			j.truncateAt(offset, "Failed to read record data")
			break
		}

		if err := verifyRecord(data); err != nil {
			j.truncateAt(offset, "CRC mismatch")
			break
		}

		//nolint:gosec // written from int64
		sequence := int64(binary.LittleEndian.Uint64(data[4:12]))
		//nolint:gosec // written from int64
		timestamp := int64(binary.LittleEndian.Uint64(data[12:20]))

		j.records = append(j.records, record{
			sequence:  sequence,
			offset:    offset,
			length:    int64(length),
			timestamp: timestamp,
		})
		if sequence >= j.nextSequence {
			j.nextSequence = sequence + 1
		}

		offset += int64(length)
	}

	log.Debug().
		Str("path", j.path).
		Int("records", len(j.records)).
		Int64("next_sequence", j.nextSequence).
		Msg("Journal index loaded")

	return nil
}

func (j *File) truncateAt(offset int64, reason string) {
	log.Warn().
		Str("path", j.path).
		Int64("offset", offset).
		Msg(reason + ", truncating journal")

	if err := j.file.Truncate(offset); err != nil {
		log.Warn().Err(err).Msg("Failed to truncate journal")
		return
	}
	j.truncated = true
}
