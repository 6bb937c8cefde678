package stats

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlock_NoModifiersReturnsBase(t *testing.T) {
	b := NewBlock(DefaultBase())

	assert.Equal(t, 100, b.EffectiveAttack())
	assert.Equal(t, 100, b.EffectiveDefense())
	assert.Equal(t, 5.0, b.EffectiveSpeed())
	assert.Equal(t, 0.3, b.EffectiveFireRate())
}

func TestBlock_IntegerStatsTruncateTowardZero(t *testing.T) {
	b := NewBlock(Base{Attack: 10, Defense: 10})

	b.AddModifier(StatDamage, Multiplicative(1.99))
	assert.Equal(t, 19, b.EffectiveAttack(), "19.9 truncates, does not round")

	b.AddModifier(StatDefense, Additive(-10.5))
	assert.Equal(t, 0, b.EffectiveDefense(), "-0.5 truncates toward zero")

	b.AddModifier(StatDefense, Additive(-1))
	assert.Equal(t, -1, b.EffectiveDefense())
}

func TestBlock_FloatStatsAreNotTruncated(t *testing.T) {
	b := NewBlock(Base{Speed: 5, FireRate: 0.3})

	b.AddModifier(StatSpeed, Multiplicative(1.25))
	b.AddModifier(StatFireRate, Multiplicative(0.5))

	assert.InDelta(t, 6.25, b.EffectiveSpeed(), 1e-12)
	assert.InDelta(t, 0.15, b.EffectiveFireRate(), 1e-12)
}

func TestBlock_ListsAreIndependent(t *testing.T) {
	b := NewBlock(DefaultBase())
	b.AddModifier(StatDamage, Additive(20))

	assert.Equal(t, 120, b.EffectiveAttack())
	assert.Equal(t, 100, b.EffectiveDefense())
	assert.Equal(t, 1, b.Modifiers(StatDamage).Len())
	assert.Equal(t, 0, b.Modifiers(StatSpeed).Len())
}

func TestBlock_RemoveModifier(t *testing.T) {
	b := NewBlock(DefaultBase())
	b.AddModifier(StatSpeed, Multiplicative(2))

	require.True(t, b.RemoveModifier(StatSpeed, Multiplicative(2)))
	assert.False(t, b.RemoveModifier(StatSpeed, Multiplicative(2)))
	assert.Equal(t, 5.0, b.EffectiveSpeed())
}

func TestBlock_ReadsArePure(t *testing.T) {
	b := NewBlock(DefaultBase())
	b.AddModifier(StatDamage, Multiplicative(1.5))

	first := b.EffectiveAttack()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, b.EffectiveAttack())
	}
	assert.Equal(t, 1, b.Modifiers(StatDamage).Len())
}

func TestBlock_Snapshot(t *testing.T) {
	b := NewBlock(DefaultBase())
	b.AddModifier(StatDefense, Additive(-30))

	s := b.Snapshot()
	assert.Equal(t, 70, s.Defense)
	assert.Equal(t, DefaultBase(), s.Base)
	assert.Len(t, s.Modifiers, 1)
	assert.Equal(t, []Modifier{Additive(-30)}, s.Modifiers["defense"])
}

func TestParseStat(t *testing.T) {
	for _, stat := range AllStats {
		got, err := ParseStat(stat.String())
		require.NoError(t, err)
		assert.Equal(t, stat, got)
	}

	_, err := ParseStat("luck")
	assert.True(t, errors.Is(err, ErrUnknownStat))
}
