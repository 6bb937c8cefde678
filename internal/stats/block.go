package stats

import (
	"errors"
	"fmt"
)

// ErrUnknownStat is returned when a stat name cannot be parsed
var ErrUnknownStat = errors.New("unknown stat")

// Stat identifies a modifiable stat
type Stat uint8

const (
	StatDamage Stat = iota
	StatDefense
	StatSpeed
	StatFireRate

	statCount
)

// AllStats lists every modifiable stat in declaration order
var AllStats = []Stat{StatDamage, StatDefense, StatSpeed, StatFireRate}

// String returns the wire name of the stat
func (s Stat) String() string {
	switch s {
	case StatDamage:
		return "damage"
	case StatDefense:
		return "defense"
	case StatSpeed:
		return "speed"
	case StatFireRate:
		return "fireRate"
	default:
		return "unknown"
	}
}

// ParseStat maps a wire name (or common alias) to a Stat
func ParseStat(name string) (Stat, error) {
	switch name {
	case "damage", "attack", "atk":
		return StatDamage, nil
	case "defense", "def":
		return StatDefense, nil
	case "speed", "spd":
		return StatSpeed, nil
	case "fireRate", "firerate", "fire_rate":
		return StatFireRate, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStat, name)
}

// Base holds the designer-configured base values of a character
type Base struct {
	Attack    int     `json:"attack" yaml:"attack"`
	Defense   int     `json:"defense" yaml:"defense"`
	Speed     float64 `json:"speed" yaml:"speed"`
	FireRate  float64 `json:"fireRate" yaml:"fire_rate"`
	MaxHealth int     `json:"maxHealth" yaml:"max_health"`
}

// DefaultBase returns the stock character stats
func DefaultBase() Base {
	return Base{
		Attack:    100,
		Defense:   100,
		Speed:     5,
		FireRate:  0.3,
		MaxHealth: 500,
	}
}

// Block owns the base values of one character plus a modifier list per stat.
// Base values are fixed at creation; modifiers change during play.
type Block struct {
	base      Base
	modifiers [statCount]ModifierList
}

// NewBlock creates a stat block with no modifiers
func NewBlock(base Base) *Block {
	return &Block{base: base}
}

// Base returns the unmodified values
func (b *Block) Base() Base {
	return b.base
}

// Modifiers returns the list for stat so callers can add or remove entries
func (b *Block) Modifiers(stat Stat) *ModifierList {
	return &b.modifiers[stat]
}

// AddModifier appends m to the list of stat
func (b *Block) AddModifier(stat Stat, m Modifier) {
	b.modifiers[stat].Add(m)
}

// RemoveModifier removes one entry equal to m from the list of stat
func (b *Block) RemoveModifier(stat Stat, m Modifier) bool {
	return b.modifiers[stat].Remove(m)
}

// EffectiveAttack is the modified attack, truncated toward zero
func (b *Block) EffectiveAttack() int {
	return int(b.modifiers[StatDamage].EffectiveValue(float64(b.base.Attack)))
}

// EffectiveDefense is the modified defense, truncated toward zero
func (b *Block) EffectiveDefense() int {
	return int(b.modifiers[StatDefense].EffectiveValue(float64(b.base.Defense)))
}

// EffectiveSpeed is the modified move speed
func (b *Block) EffectiveSpeed() float64 {
	return b.modifiers[StatSpeed].EffectiveValue(b.base.Speed)
}

// EffectiveFireRate is the modified minimum delay between attacks, in seconds
func (b *Block) EffectiveFireRate() float64 {
	return b.modifiers[StatFireRate].EffectiveValue(b.base.FireRate)
}

// Snapshot is a read-only view of base and effective values
type Snapshot struct {
	Base      Base                  `json:"base"`
	Attack    int                   `json:"attack"`
	Defense   int                   `json:"defense"`
	Speed     float64               `json:"speed"`
	FireRate  float64               `json:"fireRate"`
	Modifiers map[string][]Modifier `json:"modifiers,omitempty"`
}

// Snapshot copies the current values for reporting
func (b *Block) Snapshot() Snapshot {
	s := Snapshot{
		Base:     b.base,
		Attack:   b.EffectiveAttack(),
		Defense:  b.EffectiveDefense(),
		Speed:    b.EffectiveSpeed(),
		FireRate: b.EffectiveFireRate(),
	}
	for _, stat := range AllStats {
		if b.modifiers[stat].Len() == 0 {
			continue
		}
		if s.Modifiers == nil {
			s.Modifiers = make(map[string][]Modifier)
		}
		s.Modifiers[stat.String()] = b.modifiers[stat].Entries()
	}
	return s
}
