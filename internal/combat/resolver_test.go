package combat

import (
	"testing"

	"traders-server/internal/defense"
	"traders-server/internal/planet"
	"traders-server/internal/shared/config"
	"traders-server/internal/shared/errors"
)

// fixedRoller returns its values in order, repeating the last one.
type fixedRoller struct {
	values []int
	calls  int
}

func (f *fixedRoller) IntN(n int) int {
	v := f.values[min(f.calls, len(f.values)-1)]
	f.calls++
	return min(v, n-1)
}

func newTestResolver(rolls ...int) *Resolver {
	if len(rolls) == 0 {
		rolls = []int{0}
	}
	return NewResolver(config.DefaultGameConfig(), &fixedRoller{values: rolls})
}

func combatant(class string, mutate func(c *Combatant)) Combatant {
	cfg := config.DefaultGameConfig()
	c := Combatant{ShipID: 1, Class: cfg.ShipClasses[class], ArmorPts: 100}
	if mutate != nil {
		mutate(&c)
	}
	return c
}

func TestCanEscapeFasterDefender(t *testing.T) {
	r := newTestResolver()
	classes := []string{config.ClassScout, config.ClassMerchant, config.ClassWarship, config.ClassBalanced}

	for _, attackerClass := range classes {
		for _, defenderClass := range classes {
			attacker := combatant(attackerClass, func(c *Combatant) { c.Engines = 10; c.Beams = 30; c.Sensors = 30 })
			defender := combatant(defenderClass, func(c *Combatant) { c.ShipID = 2; c.Engines = 20 })

			out := r.ShipVsShip(attacker, defender)
			if !out.Escaped {
				t.Errorf("%s attacking %s: defender with engines 20 did not escape engines 10", attackerClass, defenderClass)
			}
			if out.DamageToDefender != 0 || out.TorpsFired != 0 {
				t.Errorf("escape exchanged fire: %+v", out)
			}
		}
	}
}

func TestCanEscapeCloak(t *testing.T) {
	r := newTestResolver()
	attacker := combatant(config.ClassBalanced, func(c *Combatant) { c.Engines = 10; c.Sensors = 3 })
	defender := combatant(config.ClassBalanced, func(c *Combatant) { c.Engines = 0; c.Cloak = 4 })

	if !r.CanEscape(attacker, defender) {
		t.Error("cloak above sensors should escape")
	}
	defender.Cloak = 3
	if r.CanEscape(attacker, defender) {
		t.Error("cloak equal to sensors should not escape")
	}
}

func TestShipVsShipDamage(t *testing.T) {
	r := newTestResolver()
	attacker := combatant(config.ClassBalanced, func(c *Combatant) {
		c.Beams = 2
		c.Torps = 25
		c.Fighters = 150
	})
	defender := combatant(config.ClassBalanced, func(c *Combatant) {
		c.ShipID = 2
		c.Fighters = 40
		c.Shields = 1
		c.Beams = 1
		c.Armor = 5
		c.ArmorPts = 700
	})

	out := r.ShipVsShip(attacker, defender)

	// beams 225 + 10 torps 100 + fighters 2*(100-40) 120 - shields 150
	if out.DamageToDefender != 295 {
		t.Errorf("damage to defender = %d, want 295", out.DamageToDefender)
	}
	if out.TorpsFired != 10 || out.AttackerFightersLost != 20 || out.DefenderFightersLost != 40 {
		t.Errorf("consumption = %+v", out)
	}
	// half of 150 beams is 75, below 100 shields
	if out.DamageToAttacker != 0 {
		t.Errorf("damage to attacker = %d, want 0", out.DamageToAttacker)
	}
	if out.DefenderDestroyed {
		t.Error("defender with 700 armor should survive 295 damage")
	}
}

func TestShipVsShipDestruction(t *testing.T) {
	tests := []struct {
		name     string
		armor    int
		armorPts int64
		want     bool
	}{
		{"damage exceeds armor points", 5, 225, true},
		{"damage equals armor points", 5, 238, true},
		{"damage exceeds armor level", 0, 500, true},
		{"armor holds", 5, 239, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestResolver()
			attacker := combatant(config.ClassBalanced, func(c *Combatant) { c.Beams = 3 })
			defender := combatant(config.ClassBalanced, func(c *Combatant) {
				c.ShipID = 2
				c.Armor = tc.armor
				c.ArmorPts = tc.armorPts
			})

			// 338 beams - 100 shields = 238; level 0 armor only stops 100
			out := r.ShipVsShip(attacker, defender)
			if out.DamageToDefender != 238 {
				t.Fatalf("damage = %d, want 238", out.DamageToDefender)
			}
			if out.DefenderDestroyed != tc.want {
				t.Errorf("destroyed = %v, want %v", out.DefenderDestroyed, tc.want)
			}
		})
	}
}

func TestMultipliersApplyBeforeThreshold(t *testing.T) {
	r := newTestResolver()
	attacker := combatant(config.ClassWarship, func(c *Combatant) { c.Beams = 4 })
	defender := combatant(config.ClassScout, func(c *Combatant) {
		c.ShipID = 2
		c.Armor = 10
		c.ArmorPts = 900
	})

	out := r.ShipVsShip(attacker, defender)

	// 506 * 1.5 / 0.7 = 1084, minus 100 shields
	if out.DamageToDefender != 984 {
		t.Errorf("damage = %d, want 984", out.DamageToDefender)
	}
	if !out.DefenderDestroyed {
		t.Error("scaled damage should destroy the defender")
	}
}

func TestSettlePlanet(t *testing.T) {
	r := newTestResolver()

	tests := []struct {
		name   string
		damage int64
		target PlanetTarget
		want   PlanetResult
	}{
		{"base falls to 10001 against 10000", 10_001, PlanetTarget{Base: true, Owner: planet.OwnedBy(9)}, PlanetBaseDestroyed},
		{"base holds at exactly 10000", 10_000, PlanetTarget{Base: true, Owner: planet.OwnedBy(9)}, PlanetHeld},
		{"captured at 501 against 500", 501, PlanetTarget{Torps: 50, Owner: planet.OwnedBy(9)}, PlanetCaptured},
		{"holds at 500 against 500", 500, PlanetTarget{Torps: 50, Owner: planet.OwnedBy(9)}, PlanetHeld},
	}

	for _, tc := range tests {
		if got := r.SettlePlanet(tc.damage, tc.target); got != tc.want {
			t.Errorf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestShipVsPlanetCapture(t *testing.T) {
	r := newTestResolver()
	attacker := combatant(config.ClassBalanced, func(c *Combatant) {
		c.Beams = 2
		c.Torps = 30
		c.Fighters = 38
	})
	target := PlanetTarget{PlanetID: 5, Owner: planet.OwnedBy(9), Torps: 50}

	out, err := r.ShipVsPlanet(attacker, target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 225 beams + 200 torps + 76 fighters
	if out.Damage != 501 || out.Defense != 500 {
		t.Errorf("damage %d vs defense %d, want 501 vs 500", out.Damage, out.Defense)
	}
	if out.Result != PlanetCaptured {
		t.Errorf("result = %s, want captured", out.Result)
	}
}

func TestShipVsPlanetBaseDestroyed(t *testing.T) {
	r := newTestResolver()
	attacker := combatant(config.ClassBalanced, func(c *Combatant) {
		c.Beams = 12
		c.Fighters = 1
	})
	target := PlanetTarget{PlanetID: 5, Owner: planet.OwnedBy(9), Base: true}

	out, err := r.ShipVsPlanet(attacker, target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Result != PlanetBaseDestroyed {
		t.Errorf("result = %s (damage %d), want base destroyed", out.Result, out.Damage)
	}
}

func TestShipVsPlanetRepelled(t *testing.T) {
	r := newTestResolver()
	attacker := combatant(config.ClassBalanced, func(c *Combatant) {
		c.Beams = 20
		c.Fighters = 10
		c.Torps = 5
	})
	target := PlanetTarget{PlanetID: 5, Fighters: 10, Base: true}

	out, err := r.ShipVsPlanet(attacker, target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Result != PlanetRepelled {
		t.Fatalf("result = %s, want repelled", out.Result)
	}
	// 500 base counter fire less 100 shields
	if out.DamageToShip != 400 || out.ShipFightersLost != 10 || out.PlanetFightersLost != 3 {
		t.Errorf("repel outcome = %+v", out)
	}
	if out.Damage != 0 {
		t.Errorf("repelled attack dealt %d damage", out.Damage)
	}
}

func TestShipVsPlanetRejectsOwnPlanet(t *testing.T) {
	r := newTestResolver()
	attacker := combatant(config.ClassBalanced, nil)

	_, err := r.ShipVsPlanet(attacker, PlanetTarget{Owner: planet.OwnedBy(attacker.ShipID)})
	if errors.GetType(err) != errors.ErrorTypeValidation {
		t.Fatalf("error = %v, want validation", err)
	}
}

func TestMineHitChanceIsCapped(t *testing.T) {
	r := newTestResolver()

	tests := []struct {
		mines int64
		want  int64
	}{
		{0, 0},
		{1, 20},
		{3, 60},
		{4, 80},
		{5, 80},
		{1000, 80},
	}

	for _, tc := range tests {
		if got := r.MineHitChance(tc.mines); got != tc.want {
			t.Errorf("MineHitChance(%d) = %d, want %d", tc.mines, got, tc.want)
		}
	}
}

func TestMinefield(t *testing.T) {
	tests := []struct {
		name  string
		enc   MineEncounter
		rolls []int
		want  MineOutcome
	}{
		{
			name: "starbase is immune",
			enc:  MineEncounter{Starbase: true, HullLevel: 10, Mines: 10},
			want: MineOutcome{Immune: true},
		},
		{
			name: "small hull is immune",
			enc:  MineEncounter{HullLevel: 7, Mines: 10},
			want: MineOutcome{Immune: true},
		},
		{
			name:  "roll above chance misses",
			enc:   MineEncounter{HullLevel: 8, Mines: 1},
			rolls: []int{20},
			want:  MineOutcome{HitChance: 20},
		},
		{
			name:  "deflector negates the hit",
			enc:   MineEncounter{HullLevel: 8, Mines: 10, Deflectors: 1},
			rolls: []int{0},
			want:  MineOutcome{HitChance: 80, Deflected: true},
		},
		{
			name:  "hit destroys up to three mines",
			enc:   MineEncounter{HullLevel: 8, Mines: 10},
			rolls: []int{79, 2},
			want:  MineOutcome{HitChance: 80, Hit: true, MinesDestroyed: 3, Damage: 1500},
		},
		{
			name:  "hit never destroys more mines than exist",
			enc:   MineEncounter{HullLevel: 8, Mines: 1},
			rolls: []int{0, 2},
			want:  MineOutcome{HitChance: 20, Hit: true, MinesDestroyed: 1, Damage: 500},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestResolver(tc.rolls...)
			got := r.Minefield(tc.enc)
			got.Message = ""
			if got != tc.want {
				t.Errorf("Minefield = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestSectorFighters(t *testing.T) {
	r := newTestResolver()

	if out := r.SectorFighters(AmbushEncounter{Starbase: true, Fighters: 1000}); !out.Immune || out.Damage != 0 {
		t.Errorf("starbase ambush = %+v", out)
	}
	if out := r.SectorFighters(AmbushEncounter{Fighters: 40}); out.Damage != 0 || !out.Attacked {
		t.Errorf("40 fighters vs 100 shields = %+v", out)
	}
	if out := r.SectorFighters(AmbushEncounter{Fighters: 300, Shields: 1}); out.Damage != 450 {
		t.Errorf("300 fighters vs 150 shields damage = %d, want 450", out.Damage)
	}
}

func TestDefenseVsDefense(t *testing.T) {
	r := newTestResolver()
	friendly := []defense.Stack{
		{ID: 1, Quantity: 10},
		{ID: 2, Quantity: 100},
	}
	hostile := []defense.Stack{
		{ID: 3, Quantity: 60},
		{ID: 4, Quantity: 1},
	}

	out := r.DefenseVsDefense(friendly, hostile)

	before := int64(171)
	after := defense.Total(out.Friendly) + defense.Total(out.Hostile)
	if out.FriendlyLosses+out.HostileLosses != before-after {
		t.Errorf("losses %d+%d do not match quantity change %d", out.FriendlyLosses, out.HostileLosses, before-after)
	}
	if out.FriendlyLosses > 110 || out.HostileLosses > 61 {
		t.Errorf("losses exceed pre-combat totals: %+v", out)
	}
	for _, s := range append(out.Friendly, out.Hostile...) {
		if s.Quantity < 0 {
			t.Errorf("stack %d went negative: %d", s.ID, s.Quantity)
		}
	}

	// 100 vs 60: friendly loses 30, hostile loses 50 -> 70 vs 10
	if out.Friendly[0].ID != 2 || out.Friendly[0].Quantity != 70 {
		t.Errorf("largest friendly stack = %+v, want id 2 with 70", out.Friendly[0])
	}
	if friendly[1].Quantity != 100 {
		t.Error("input stacks were modified")
	}
}

func TestDefenseVsDefenseNeverNegative(t *testing.T) {
	r := newTestResolver()

	for f := int64(0); f <= 50; f += 7 {
		for h := int64(0); h <= 50; h += 5 {
			out := r.DefenseVsDefense(
				[]defense.Stack{{ID: 1, Quantity: f}, {ID: 2, Quantity: f / 2}},
				[]defense.Stack{{ID: 3, Quantity: h}, {ID: 4, Quantity: 3 * h}},
			)
			for _, s := range append(out.Friendly, out.Hostile...) {
				if s.Quantity < 0 {
					t.Fatalf("f=%d h=%d: stack %d negative", f, h, s.ID)
				}
			}
			if out.FriendlyLosses > f+f/2 || out.HostileLosses > 4*h {
				t.Fatalf("f=%d h=%d: losses exceed totals: %+v", f, h, out)
			}
		}
	}
}
