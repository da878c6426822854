package defense

import "time"

type Type string

const (
	Fighters Type = "F"
	Mines    Type = "M"
)

func (t Type) IsValid() bool {
	return t == Fighters || t == Mines
}

// Stack is a quantity of fighters or mines one ship left in a sector. A ship
// has at most one stack per type per sector.
type Stack struct {
	ID        int       `json:"id"`
	ShipID    int       `json:"ship_id"`
	SectorID  int       `json:"sector_id"`
	Type      Type      `json:"type"`
	Quantity  int64     `json:"quantity"`
	Team      int       `json:"team"`
	CreatedAt time.Time `json:"created_at"`
}

// Hostile reports whether the stack would engage shipID on team.
func (s Stack) Hostile(shipID, team int) bool {
	if s.ShipID == shipID {
		return false
	}
	return team == 0 || s.Team != team
}

// Total sums stack quantities.
func Total(stacks []Stack) int64 {
	var total int64
	for _, s := range stacks {
		total += s.Quantity
	}
	return total
}
