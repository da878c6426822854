package defense

import "testing"

func TestHostile(t *testing.T) {
	tests := []struct {
		name   string
		stack  Stack
		shipID int
		team   int
		want   bool
	}{
		{"own stack", Stack{ShipID: 1, Team: 0}, 1, 0, false},
		{"stranger, no teams", Stack{ShipID: 2, Team: 0}, 1, 0, true},
		{"teammate", Stack{ShipID: 2, Team: 7}, 1, 7, false},
		{"other team", Stack{ShipID: 2, Team: 8}, 1, 7, true},
		{"teamless stack vs team ship", Stack{ShipID: 2, Team: 0}, 1, 7, true},
	}

	for _, tc := range tests {
		if got := tc.stack.Hostile(tc.shipID, tc.team); got != tc.want {
			t.Errorf("%s: Hostile = %v, want %v", tc.name, got, tc.want)
		}
	}
}
