package ranking

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pierrec/lz4/v4"
	"lukechampine.com/blake3"
)

// Pack encodes entries into a snapshot ready to be stored.
func Pack(runID uuid.UUID, entries []Entry, takenAt time.Time) (*Snapshot, error) {
	raw, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ranking entries: %w", err)
	}

	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("failed to compress ranking snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to flush ranking snapshot: %w", err)
	}

	payload := buf.Bytes()
	sum := blake3.Sum256(payload)

	return &Snapshot{
		RunID:      runID,
		EntryCount: len(entries),
		RawSize:    len(raw),
		Payload:    payload,
		Digest:     sum[:],
		TakenAt:    takenAt,
	}, nil
}

// Verify reports an error when the payload no longer matches its digest.
func Verify(s *Snapshot) error {
	sum := blake3.Sum256(s.Payload)
	if subtle.ConstantTimeCompare(sum[:], s.Digest) != 1 {
		return fmt.Errorf("ranking snapshot %d is corrupted: digest mismatch", s.ID)
	}
	return nil
}

// Unpack verifies s and decodes its entries.
func Unpack(s *Snapshot) ([]Entry, error) {
	if err := Verify(s); err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(lz4.NewReader(bytes.NewReader(s.Payload)))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress ranking snapshot: %w", err)
	}
	if len(raw) != s.RawSize {
		return nil, fmt.Errorf("ranking snapshot %d decompressed to %d bytes, want %d", s.ID, len(raw), s.RawSize)
	}

	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode ranking snapshot: %w", err)
	}
	return entries, nil
}
