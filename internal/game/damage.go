package game

import "math"

// Health tracks hit points. Current is only lowered by damage and may go
// negative; the raw value is kept so overkill can be reported.
type Health struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

// Overkill returns how far below zero health went
func (h Health) Overkill() int {
	if h.Current >= 0 {
		return 0
	}
	return -h.Current
}

// Display returns Current clamped at zero, for UIs and snapshots
func (h Health) Display() int {
	if h.Current < 0 {
		return 0
	}
	return h.Current
}

// DefenseSource supplies the defender's effective defense at hit time
type DefenseSource interface {
	EffectiveDefense() int
}

// CalculateEffectiveDamage applies the diminishing-returns defense curve:
//
//	raw² / (raw + defense)
//
// truncated toward zero, with a floor of 1 for any positive attack.
// Non-positive attacks deal nothing. The denominator is clamped to at least 1
// so heavily debuffed (negative) defense yields maximum damage, never a
// division by zero or a negative result. Results past the int range
// saturate at math.MaxInt.
func CalculateEffectiveDamage(rawAttack, effectiveDefense int) int {
	if rawAttack <= 0 {
		return 0
	}
	raw := float64(rawAttack)
	denom := raw + float64(effectiveDefense)
	if denom < 1 {
		denom = 1
	}
	q := raw * raw / denom
	if q >= float64(math.MaxInt) {
		return math.MaxInt
	}
	dmg := int(q)
	if dmg < 1 {
		dmg = 1
	}
	return dmg
}

// DamageResult describes one TakeDamage call
type DamageResult struct {
	Applied  int  `json:"applied"`
	Previous int  `json:"previous"`
	Current  int  `json:"current"`
	Killed   bool `json:"killed"` // True only on the hit that crossed to <= 0
}

// DamageModel owns a character's health and turns raw hits into damage
type DamageModel struct {
	defense DefenseSource
	health  Health
	dead    bool
}

// NewDamageModel starts at full health
func NewDamageModel(defense DefenseSource, maxHealth int) *DamageModel {
	return &DamageModel{
		defense: defense,
		health:  Health{Current: maxHealth, Max: maxHealth},
	}
}

// Health returns a copy of the health state
func (d *DamageModel) Health() Health {
	return d.health
}

// Dead reports whether the fatal hit already happened
func (d *DamageModel) Dead() bool {
	return d.dead
}

// CalculateEffectiveDamage uses the current effective defense of the owner
func (d *DamageModel) CalculateEffectiveDamage(rawAttack int) int {
	return CalculateEffectiveDamage(rawAttack, d.defense.EffectiveDefense())
}

// TakeDamage subtracts the hit from health without flooring at zero.
// ignoreDefense applies rawAttack as-is.
func (d *DamageModel) TakeDamage(rawAttack int, ignoreDefense bool) DamageResult {
	applied := rawAttack
	if !ignoreDefense {
		applied = d.CalculateEffectiveDamage(rawAttack)
	}

	res := DamageResult{Applied: applied, Previous: d.health.Current}
	d.health.Current -= applied
	res.Current = d.health.Current

	if !d.dead && d.health.Current <= 0 {
		d.dead = true
		res.Killed = true
	}
	return res
}

// Heal restores up to amount, capped at Max. Returns the amount restored.
// Dead characters cannot be healed.
func (d *DamageModel) Heal(amount int) int {
	if d.dead || amount <= 0 {
		return 0
	}
	before := d.health.Current
	d.health.Current += amount
	if d.health.Current > d.health.Max {
		d.health.Current = d.health.Max
	}
	return d.health.Current - before
}
