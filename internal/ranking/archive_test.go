package ranking

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestPackUnpack(t *testing.T) {
	entries := []Entry{
		{Rank: 1, ShipID: 7, Name: "Nostromo", Score: 90210, Credits: 5000, Fighters: 40},
		{Rank: 2, ShipID: 3, Name: "Sulaco", Score: 1200, Team: 2},
	}

	snap, err := Pack(uuid.New(), entries, time.Now())
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if snap.EntryCount != 2 || len(snap.Digest) != 32 {
		t.Fatalf("snapshot meta = %d entries, %d byte digest", snap.EntryCount, len(snap.Digest))
	}

	got, err := Unpack(snap)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if len(got) != 2 || got[0] != entries[0] || got[1] != entries[1] {
		t.Errorf("unpacked = %+v", got)
	}
}

func TestVerifyDetectsCorruption(t *testing.T) {
	snap, err := Pack(uuid.New(), []Entry{{Rank: 1, ShipID: 1, Name: "Ripley", Score: 10}}, time.Now())
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if err := Verify(snap); err != nil {
		t.Fatalf("fresh snapshot failed verification: %v", err)
	}

	snap.Payload[len(snap.Payload)/2] ^= 0xff
	if err := Verify(snap); err == nil {
		t.Error("corrupted payload passed verification")
	}
	if _, err := Unpack(snap); err == nil {
		t.Error("corrupted payload unpacked")
	}
}
