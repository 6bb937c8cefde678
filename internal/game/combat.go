package game

import "math"

// DefaultAttackReach is the horizontal reach of a melee attack in world units
const DefaultAttackReach = 1.5

// AttackEvent is emitted by a character after an accepted attack.
// It carries no damage; the combat collaborator decides who gets hit.
type AttackEvent struct {
	AttackerID string  `json:"attackerId"`
	Direction  Vec2    `json:"direction"`
	Facing     float64 `json:"facing"` // -1 or 1
	Attack     int     `json:"attack"` // Effective attack at the time of the swing
	Tick       uint64  `json:"tick"`
}

// Combatant is what the resolver needs to know about a possible target
type Combatant struct {
	ID       string
	Position Vec2
	Alive    bool
}

// CombatResolver picks the victim of a melee attack
type CombatResolver struct {
	Reach float64
}

// NewCombatResolver creates a resolver, falling back to DefaultAttackReach
func NewCombatResolver(reach float64) CombatResolver {
	if reach <= 0 {
		reach = DefaultAttackReach
	}
	return CombatResolver{Reach: reach}
}

// Resolve returns the nearest living combatant in front of the attacker,
// within Reach horizontally and Reach/2 vertically. ok is false on a whiff.
func (r CombatResolver) Resolve(ev AttackEvent, from Vec2, candidates []Combatant) (target Combatant, ok bool) {
	best := math.Inf(1)
	for _, c := range candidates {
		if c.ID == ev.AttackerID || !c.Alive {
			continue
		}

		dx := (c.Position.X - from.X) * ev.Facing
		dy := math.Abs(c.Position.Y - from.Y)
		if dx < 0 || dx > r.Reach || dy > r.Reach/2 {
			continue
		}

		// Ties go to the lower ID so resolution does not depend on map order
		if dx < best || (dx == best && c.ID < target.ID) {
			best = dx
			target = c
			ok = true
		}
	}
	return target, ok
}
