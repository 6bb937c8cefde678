// Package stats implements the stat-modifier aggregation used by characters.
//
// Every tracked stat owns a ModifierList. Multiplicative entries fold into the
// base value first (by product), additive entries fold second (by sum), so the
// result never depends on the order in which buffs were applied.
package stats

import (
	"fmt"
	"sort"
)

// ModifierKind tells how a modifier combines with the base value
type ModifierKind uint8

const (
	KindAdditive       ModifierKind = iota // Summed onto the scaled base
	KindMultiplicative                     // Scales the base, combined by product
)

// String returns the wire name of the kind
func (k ModifierKind) String() string {
	switch k {
	case KindAdditive:
		return "additive"
	case KindMultiplicative:
		return "multiplicative"
	default:
		return "unknown"
	}
}

// ParseModifierKind parses "additive"/"add" or "multiplicative"/"mul"
func ParseModifierKind(s string) (ModifierKind, error) {
	switch s {
	case "additive", "add", "+":
		return KindAdditive, nil
	case "multiplicative", "mul", "mult", "x":
		return KindMultiplicative, nil
	}
	return 0, fmt.Errorf("unknown modifier kind %q", s)
}

// Modifier is a single bonus entry. Values are immutable once created.
type Modifier struct {
	Kind  ModifierKind `json:"kind"`
	Value float64      `json:"value"`
}

// Additive returns a modifier summed onto the stat
func Additive(value float64) Modifier {
	return Modifier{Kind: KindAdditive, Value: value}
}

// Multiplicative returns a modifier that scales the stat
func Multiplicative(value float64) Modifier {
	return Modifier{Kind: KindMultiplicative, Value: value}
}

// ModifierList is the ordered set of modifiers stacked on one stat.
// The zero value is an empty list ready to use.
type ModifierList struct {
	entries []Modifier
}

// Add appends a modifier. No validation is done on the value.
func (l *ModifierList) Add(m Modifier) {
	l.entries = append(l.entries, m)
}

// Remove deletes one entry equal to m. Returns false if none matched.
func (l *ModifierList) Remove(m Modifier) bool {
	for i, e := range l.entries {
		if e == m {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Clear drops every entry
func (l *ModifierList) Clear() {
	l.entries = l.entries[:0]
}

// Len returns the number of entries
func (l *ModifierList) Len() int {
	return len(l.entries)
}

// Entries returns a copy of the entries in insertion order
func (l *ModifierList) Entries() []Modifier {
	out := make([]Modifier, len(l.entries))
	copy(out, l.entries)
	return out
}

// EffectiveValue applies the list to base:
//
//	base * Π(multiplicative) + Σ(additive)
//
// An empty list returns base unchanged. Each group is folded in sorted order so
// the floating point result is identical for any insertion order.
func (l *ModifierList) EffectiveValue(base float64) float64 {
	if len(l.entries) == 0 {
		return base
	}

	var mults, adds []float64
	for _, e := range l.entries {
		switch e.Kind {
		case KindMultiplicative:
			mults = append(mults, e.Value)
		case KindAdditive:
			adds = append(adds, e.Value)
		}
	}
	sort.Float64s(mults)
	sort.Float64s(adds)

	product := 1.0
	for _, v := range mults {
		product *= v
	}
	sum := 0.0
	for _, v := range adds {
		sum += v
	}
	return base*product + sum
}
