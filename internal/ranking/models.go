// Package ranking maintains the leaderboard table, its compressed snapshot
// archive and the Redis copy served to readers.
package ranking

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

type Entry struct {
	Rank     int    `json:"rank"`
	ShipID   int    `json:"ship_id"`
	Name     string `json:"name"`
	Score    int64  `json:"score"`
	Credits  int64  `json:"credits"`
	Fighters int64  `json:"fighters"`
	Team     int    `json:"team"`
}

// Snapshot is one archived leaderboard. Payload is the lz4 compressed JSON
// encoding of the entries and Digest its blake3 sum.
type Snapshot struct {
	ID         int64     `json:"id"`
	RunID      uuid.UUID `json:"run_id"`
	EntryCount int       `json:"entry_count"`
	RawSize    int       `json:"raw_size"`
	Payload    []byte    `json:"-"`
	Digest     []byte    `json:"-"`
	TakenAt    time.Time `json:"taken_at"`
}

func (s *Snapshot) HexDigest() string {
	return hex.EncodeToString(s.Digest)
}
