package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectiveValue_EmptyListReturnsBase(t *testing.T) {
	var l ModifierList
	for _, base := range []float64{0, 1, -3.5, 100, 0.3, 1e9} {
		assert.Equal(t, base, l.EffectiveValue(base))
	}
}

func TestEffectiveValue_MultiplicativeThenAdditive(t *testing.T) {
	var l ModifierList
	l.Add(Multiplicative(2.0))
	l.Add(Additive(50))
	l.Add(Multiplicative(1.5))

	assert.Equal(t, 350.0, l.EffectiveValue(100))
}

func TestEffectiveValue_Fixtures(t *testing.T) {
	tests := []struct {
		name string
		base float64
		mods []Modifier
		want float64
	}{
		{"additive only", 10, []Modifier{Additive(5), Additive(-2)}, 13},
		{"multiplicative only", 10, []Modifier{Multiplicative(0.5), Multiplicative(4)}, 20},
		{"negative additive", 100, []Modifier{Additive(-150)}, -50},
		{"zero multiplier", 100, []Modifier{Multiplicative(0), Additive(7)}, 7},
		{"additive is not scaled", 2, []Modifier{Additive(10), Multiplicative(3)}, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l ModifierList
			for _, m := range tt.mods {
				l.Add(m)
			}
			assert.InDelta(t, tt.want, l.EffectiveValue(tt.base), 1e-9)
		})
	}
}

func TestEffectiveValue_OrderIndependent(t *testing.T) {
	mods := []Modifier{
		Multiplicative(1.1), Additive(0.7), Multiplicative(0.3),
		Additive(-12.25), Multiplicative(3.3), Additive(1e-3),
	}

	var ref ModifierList
	for _, m := range mods {
		ref.Add(m)
	}
	want := ref.EffectiveValue(17.9)

	// Every rotation and the reversed order must give the exact same bits.
	for shift := 0; shift < len(mods); shift++ {
		var l ModifierList
		for i := range mods {
			l.Add(mods[(i+shift)%len(mods)])
		}
		require.Equal(t, want, l.EffectiveValue(17.9), "rotation %d", shift)
	}

	var rev ModifierList
	for i := len(mods) - 1; i >= 0; i-- {
		rev.Add(mods[i])
	}
	assert.Equal(t, want, rev.EffectiveValue(17.9))
}

func TestRemove(t *testing.T) {
	var l ModifierList
	l.Add(Additive(5))
	l.Add(Additive(5))
	l.Add(Multiplicative(2))

	assert.True(t, l.Remove(Additive(5)))
	assert.Equal(t, 2, l.Len(), "only one matching entry is removed")
	assert.False(t, l.Remove(Additive(99)))
	assert.False(t, l.Remove(Multiplicative(5)), "kind must match too")
	assert.Equal(t, 2, l.Len())

	assert.Equal(t, 25.0, l.EffectiveValue(10))
}

func TestEntriesIsACopy(t *testing.T) {
	var l ModifierList
	l.Add(Additive(1))

	entries := l.Entries()
	entries[0] = Additive(1000)

	assert.Equal(t, 11.0, l.EffectiveValue(10))
}

func TestParseModifierKind(t *testing.T) {
	k, err := ParseModifierKind("mul")
	require.NoError(t, err)
	assert.Equal(t, KindMultiplicative, k)

	k, err = ParseModifierKind("additive")
	require.NoError(t, err)
	assert.Equal(t, KindAdditive, k)

	_, err = ParseModifierKind("percent")
	assert.Error(t, err)
}
