// Package combat resolves fights between ships, planets and deployed sector
// defenses. The Resolver is pure: it computes outcomes and leaves every state
// change to the Service.
package combat

import (
	"cmp"
	"fmt"
	"math/rand/v2"
	"slices"

	"traders-server/internal/defense"
	"traders-server/internal/planet"
	"traders-server/internal/ship"
	"traders-server/internal/shared/config"
	"traders-server/internal/shared/errors"
)

// Roller is the source of randomness. *rand.Rand from math/rand/v2
// satisfies it.
type Roller interface {
	IntN(n int) int
}

// SharedRoller draws from the process-wide generator, which is safe for
// concurrent use.
type SharedRoller struct{}

func (SharedRoller) IntN(n int) int {
	return rand.IntN(n)
}

const (
	levelBase = 100
	// counter-attacks and fighter exchanges work at reduced effectiveness
	counterFactor       = 0.5
	shipFighterLossRate = 0.5
	planetFighterLoss   = 0.3
	stackDamageFactor   = 0.5

	repelDamageBase   = 500
	repelDamageNoBase = 100
	holdDamageBase    = 1000
	holdDamageNoBase  = 200
)

// Combatant is the combat-relevant view of a ship.
type Combatant struct {
	ShipID      int
	Team        int
	Class       config.ShipClassConfig
	CombatSkill int
	Engines     int
	Sensors     int
	Cloak       int
	Beams       int
	Shields     int
	Armor       int
	ArmorPts    int64
	Fighters    int64
	Torps       int64
}

// NewCombatant builds a Combatant from a ship.
func NewCombatant(cfg *config.GameConfig, s *ship.Ship) (Combatant, error) {
	class, err := ship.Class(cfg, s.Class)
	if err != nil {
		return Combatant{}, err
	}
	e := s.Equipment
	return Combatant{
		ShipID:      s.ID,
		Team:        s.Team,
		Class:       class,
		CombatSkill: s.Skills.Combat,
		Engines:     e.Engines,
		Sensors:     e.Sensors,
		Cloak:       e.Cloak,
		Beams:       e.Beams,
		Shields:     e.Shields,
		Armor:       e.Armor,
		ArmorPts:    s.ArmorPts,
		Fighters:    s.Fighters,
		Torps:       s.Torps,
	}, nil
}

// PlanetTarget is the combat-relevant view of a planet.
type PlanetTarget struct {
	PlanetID int
	Owner    planet.Owner
	Fighters int64
	Torps    int64
	Base     bool
}

func NewPlanetTarget(p *planet.Planet) PlanetTarget {
	return PlanetTarget{PlanetID: p.ID, Owner: p.Owner, Fighters: p.Fighters, Torps: p.Torps, Base: p.Base}
}

type Resolver struct {
	cfg *config.GameConfig
	rng Roller
}

func NewResolver(cfg *config.GameConfig, rng Roller) *Resolver {
	return &Resolver{cfg: cfg, rng: rng}
}

func (r *Resolver) BeamDamage(level int) int64 {
	return r.cfg.LevelValue(level, levelBase)
}

func (r *Resolver) ShieldStrength(level int) int64 {
	return r.cfg.LevelValue(level, levelBase)
}

func (r *Resolver) TorpedoDamage(fired int64) int64 {
	return fired * 10
}

func (r *Resolver) FighterDamage(fighters int64) int64 {
	return fighters * 2
}

// ArmorStrength is the armor a combatant can bring to bear: its armor points,
// limited by what its armor level supports.
func (r *Resolver) ArmorStrength(c Combatant) int64 {
	return min(c.ArmorPts, r.cfg.LevelValue(c.Armor, levelBase))
}

// CanEscape reports whether the defender slips away, either by outrunning
// the attacker or by out-cloaking its sensors.
func (r *Resolver) CanEscape(attacker, defender Combatant) bool {
	attackerSpeed := int64(float64(attacker.Engines) * attacker.Class.SpeedBonus)
	defenderSpeed := int64(float64(defender.Engines) * defender.Class.SpeedBonus)
	return defenderSpeed > attackerSpeed || defender.Cloak > attacker.Sensors
}

// AttackMultiplier combines the combat skill and class bonuses.
func (r *Resolver) AttackMultiplier(c Combatant) float64 {
	return ship.CombatSkillMultiplier(r.cfg, c.CombatSkill) * c.Class.CombatMultiplier
}

// scale applies the attacker's multiplier and divides by the target's class
// defense multiplier.
func scale(raw int64, attack, defense float64) int64 {
	if raw <= 0 {
		return 0
	}
	return int64(float64(raw) * attack / defense)
}

// destroyed applies the armor rule: damage beyond the usable armor breaches
// the hull, and damage covering every armor point finishes the ship.
func (r *Resolver) destroyed(damage int64, c Combatant) bool {
	if damage <= 0 {
		return false
	}
	armor := r.ArmorStrength(c)
	return damage > armor || c.ArmorPts <= min(damage, armor)
}

// exchange settles committed fighters. The larger side destroys all
// opposing fighters and loses lossRate of them; a side that does not
// outnumber loses everything it committed.
func exchange(attacking, defending int64, lossRate float64) (advantage, attackerLost, defenderLost int64) {
	if attacking > defending {
		return attacking - defending, int64(float64(defending) * lossRate), defending
	}
	return 0, attacking, int64(float64(attacking) * lossRate)
}

type ShipOutcome struct {
	Escaped              bool   `json:"escaped"`
	TorpsFired           int64  `json:"torps_fired"`
	AttackerFightersLost int64  `json:"attacker_fighters_lost"`
	DefenderFightersLost int64  `json:"defender_fighters_lost"`
	DamageToDefender     int64  `json:"damage_to_defender"`
	DamageToAttacker     int64  `json:"damage_to_attacker"`
	DefenderDestroyed    bool   `json:"defender_destroyed"`
	AttackerDestroyed    bool   `json:"attacker_destroyed"`
	Message              string `json:"message"`
}

// ShipVsShip resolves one attack. Multipliers scale the summed raw damage of
// each side before shields and the destruction check.
func (r *Resolver) ShipVsShip(attacker, defender Combatant) ShipOutcome {
	if r.CanEscape(attacker, defender) {
		return ShipOutcome{Escaped: true, Message: "Target escaped with better engines or cloaking."}
	}

	c := r.cfg.Combat
	var out ShipOutcome
	out.TorpsFired = min(max(attacker.Torps, 0), c.ShipTorpCap)

	advantage, attackerLost, defenderLost := exchange(
		min(max(attacker.Fighters, 0), c.ShipFighterCap),
		min(max(defender.Fighters, 0), c.ShipFighterCap),
		shipFighterLossRate,
	)
	out.AttackerFightersLost = attackerLost
	out.DefenderFightersLost = defenderLost

	raw := r.BeamDamage(attacker.Beams) + r.TorpedoDamage(out.TorpsFired) + r.FighterDamage(advantage)
	dealt := scale(raw, r.AttackMultiplier(attacker), defender.Class.DefenseMultiplier)
	out.DamageToDefender = max(0, dealt-r.ShieldStrength(defender.Shields))

	counter := int64(float64(r.BeamDamage(defender.Beams)) * counterFactor)
	taken := scale(counter, r.AttackMultiplier(defender), attacker.Class.DefenseMultiplier)
	out.DamageToAttacker = max(0, taken-r.ShieldStrength(attacker.Shields))

	out.DefenderDestroyed = r.destroyed(out.DamageToDefender, defender)
	out.AttackerDestroyed = r.destroyed(out.DamageToAttacker, attacker)

	if out.DefenderDestroyed {
		out.Message = "Target destroyed!"
	} else {
		out.Message = fmt.Sprintf("Attack successful, dealt %d damage.", out.DamageToDefender)
	}
	return out
}

type PlanetResult string

const (
	PlanetRepelled      PlanetResult = "repelled"
	PlanetBaseDestroyed PlanetResult = "base_destroyed"
	PlanetCaptured      PlanetResult = "captured"
	PlanetHeld          PlanetResult = "held"
)

type PlanetOutcome struct {
	Result             PlanetResult `json:"result"`
	TorpsFired         int64        `json:"torps_fired"`
	ShipFightersLost   int64        `json:"ship_fighters_lost"`
	PlanetFightersLost int64        `json:"planet_fighters_lost"`
	Damage             int64        `json:"damage"`
	Defense            int64        `json:"defense"`
	DamageToShip       int64        `json:"damage_to_ship"`
	ShipDestroyed      bool         `json:"ship_destroyed"`
	Message            string       `json:"message"`
}

// PlanetDefense is the damage a planet absorbs before falling.
func (r *Resolver) PlanetDefense(p PlanetTarget) int64 {
	var base int64
	if p.Base {
		base = r.cfg.Combat.BaseDefense
	}
	return base + p.Torps*10
}

// SettlePlanet decides what damage beyond the fighter screen does to a
// planet. Only damage exceeding the defense breaks through.
func (r *Resolver) SettlePlanet(damage int64, p PlanetTarget) PlanetResult {
	if damage <= r.PlanetDefense(p) {
		return PlanetHeld
	}
	if p.Base {
		return PlanetBaseDestroyed
	}
	return PlanetCaptured
}

// ShipVsPlanet resolves an assault on a planet the attacker does not own.
func (r *Resolver) ShipVsPlanet(attacker Combatant, target PlanetTarget) (PlanetOutcome, error) {
	if target.Owner.Is(attacker.ShipID) {
		return PlanetOutcome{}, errors.Validation("you cannot attack your own planet")
	}

	c := r.cfg.Combat
	var out PlanetOutcome
	out.TorpsFired = min(max(attacker.Torps, 0), c.PlanetTorpCap)
	out.Defense = r.PlanetDefense(target)

	advantage, shipLost, planetLost := exchange(
		min(max(attacker.Fighters, 0), c.PlanetFighterCap),
		min(max(target.Fighters, 0), c.PlanetFighterCap),
		planetFighterLoss,
	)
	out.ShipFightersLost = shipLost
	out.PlanetFightersLost = planetLost

	if advantage == 0 {
		out.Result = PlanetRepelled
		out.DamageToShip = r.planetCounter(attacker, target.Base, repelDamageBase, repelDamageNoBase)
		out.ShipDestroyed = r.destroyed(out.DamageToShip, attacker)
		out.Message = "Planet defenses repelled your attack!"
		return out, nil
	}

	raw := r.BeamDamage(attacker.Beams) + r.TorpedoDamage(out.TorpsFired) + r.FighterDamage(advantage)
	out.Damage = scale(raw, r.AttackMultiplier(attacker), 1)
	out.Result = r.SettlePlanet(out.Damage, target)

	switch out.Result {
	case PlanetBaseDestroyed:
		out.Message = "Planet base destroyed! The planet can now be captured."
	case PlanetCaptured:
		out.Message = "Planet captured!"
	default:
		out.DamageToShip = r.planetCounter(attacker, target.Base, holdDamageBase, holdDamageNoBase)
		out.ShipDestroyed = r.destroyed(out.DamageToShip, attacker)
		out.Message = "Planet damaged but defenses hold!"
	}
	return out, nil
}

func (r *Resolver) planetCounter(attacker Combatant, base bool, withBase, withoutBase int64) int64 {
	raw := withoutBase
	if base {
		raw = withBase
	}
	return max(0, scale(raw, 1, attacker.Class.DefenseMultiplier)-r.ShieldStrength(attacker.Shields))
}

// MineEncounter describes a ship entering a mined sector. Mines counts only
// mines hostile to the ship.
type MineEncounter struct {
	Starbase   bool
	HullLevel  int
	Mines      int64
	Deflectors int
}

type MineOutcome struct {
	Immune         bool   `json:"immune"`
	HitChance      int64  `json:"hit_chance"`
	Hit            bool   `json:"hit"`
	Deflected      bool   `json:"deflected"`
	MinesDestroyed int64  `json:"mines_destroyed"`
	Damage         int64  `json:"damage"`
	Message        string `json:"message,omitempty"`
}

// MineHitChance is the percentage chance of striking mines.
func (r *Resolver) MineHitChance(mines int64) int64 {
	return min(r.cfg.Combat.MineHitCap, max(mines, 0)*r.cfg.Combat.MineHitPerMine)
}

// Minefield rolls a mine strike. A deflector negates the hit and is used up
// instead.
func (r *Resolver) Minefield(enc MineEncounter) MineOutcome {
	c := r.cfg.Combat
	if enc.Starbase || enc.HullLevel < c.MineImmuneBelowHull {
		return MineOutcome{Immune: true}
	}
	if enc.Mines <= 0 {
		return MineOutcome{}
	}

	out := MineOutcome{HitChance: r.MineHitChance(enc.Mines)}
	if int64(r.rng.IntN(100)+1) > out.HitChance {
		return out
	}

	if enc.Deflectors > 0 {
		out.Deflected = true
		out.Message = fmt.Sprintf("Mine deflector activated, avoided %d mines.", enc.Mines)
		return out
	}

	out.Hit = true
	out.MinesDestroyed = min(enc.Mines, int64(r.rng.IntN(int(c.MaxMinesPerHit))+1))
	out.Damage = out.MinesDestroyed * c.MineDamage
	out.Message = fmt.Sprintf("Hit %d mines for %d damage.", out.MinesDestroyed, out.Damage)
	return out
}

// AmbushEncounter describes a ship entering a sector guarded by fighters.
// Fighters counts only fighters hostile to the ship.
type AmbushEncounter struct {
	Starbase bool
	Fighters int64
	Shields  int
}

type AmbushOutcome struct {
	Immune   bool   `json:"immune"`
	Attacked bool   `json:"attacked"`
	Fighters int64  `json:"fighters"`
	Damage   int64  `json:"damage"`
	Message  string `json:"message,omitempty"`
}

func (r *Resolver) SectorFighters(enc AmbushEncounter) AmbushOutcome {
	if enc.Starbase {
		return AmbushOutcome{Immune: true}
	}
	if enc.Fighters <= 0 {
		return AmbushOutcome{}
	}

	damage := max(0, r.FighterDamage(enc.Fighters)-r.ShieldStrength(enc.Shields))
	return AmbushOutcome{
		Attacked: true,
		Fighters: enc.Fighters,
		Damage:   damage,
		Message:  fmt.Sprintf("%d sector fighters attacked for %d damage.", enc.Fighters, damage),
	}
}

type DefenseOutcome struct {
	Friendly       []defense.Stack `json:"-"`
	Hostile        []defense.Stack `json:"-"`
	FriendlyLosses int64           `json:"friendly_losses"`
	HostileLosses  int64           `json:"hostile_losses"`
}

// DefenseVsDefense pits every friendly stack against every hostile stack,
// largest first. Each pairing sees the quantities left by the previous one.
// The returned slices hold the updated stacks; the inputs are not modified.
func (r *Resolver) DefenseVsDefense(friendly, hostile []defense.Stack) DefenseOutcome {
	out := DefenseOutcome{
		Friendly: largestFirst(friendly),
		Hostile:  largestFirst(hostile),
	}

	for i := range out.Friendly {
		f := &out.Friendly[i]
		for j := range out.Hostile {
			h := &out.Hostile[j]
			if f.Quantity <= 0 || h.Quantity <= 0 {
				continue
			}

			friendlyLoss := min(f.Quantity, int64(float64(h.Quantity)*stackDamageFactor))
			hostileLoss := min(h.Quantity, int64(float64(f.Quantity)*stackDamageFactor))
			f.Quantity -= friendlyLoss
			h.Quantity -= hostileLoss
			out.FriendlyLosses += friendlyLoss
			out.HostileLosses += hostileLoss
		}
	}
	return out
}

func largestFirst(stacks []defense.Stack) []defense.Stack {
	sorted := slices.Clone(stacks)
	slices.SortStableFunc(sorted, func(a, b defense.Stack) int {
		return cmp.Compare(b.Quantity, a.Quantity)
	})
	return sorted
}
