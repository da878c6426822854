package planet

import (
	"encoding/json"
	"testing"
)

func TestProductionValidate(t *testing.T) {
	tests := []struct {
		name    string
		p       Production
		wantErr bool
	}{
		{"default", DefaultProduction(), false},
		{"all ore", Production{Ore: 100}, false},
		{"under 100", Production{Ore: 50, Goods: 49}, true},
		{"over 100", Production{Ore: 60, Goods: 41}, true},
		{"negative share", Production{Ore: 110, Goods: -10}, true},
	}

	for _, tc := range tests {
		err := tc.p.Validate()
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: Validate() error = %v, wantErr %v", tc.name, err, tc.wantErr)
		}
	}
}

func TestOwnerNullable(t *testing.T) {
	var o Owner
	if err := o.Scan(nil); err != nil || o.Valid {
		t.Fatalf("Scan(nil) = %+v, %v; want unowned", o, err)
	}
	if o.Is(0) {
		t.Errorf("unowned planet reported as owned by ship 0")
	}

	v, err := o.Value()
	if err != nil || v != nil {
		t.Errorf("Value() of unowned = %v, %v; want nil", v, err)
	}

	if err := o.Scan(int64(12)); err != nil || !o.Is(12) {
		t.Fatalf("Scan(12) = %+v, %v; want owner 12", o, err)
	}

	b, _ := json.Marshal(struct {
		Owner Owner `json:"owner_id"`
	}{})
	if string(b) != `{"owner_id":null}` {
		t.Errorf("unowned JSON = %s", b)
	}
}
