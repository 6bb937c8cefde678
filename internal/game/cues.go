package game

// Cue is a fire-and-forget presentation signal. The core never waits on one.
type Cue uint8

const (
	CueFlashDamage Cue = iota
	CueResetFlash
	CuePlayDeathAnimation
)

// String returns the wire name of the cue
func (c Cue) String() string {
	switch c {
	case CueFlashDamage:
		return "flash_damage"
	case CueResetFlash:
		return "reset_flash"
	case CuePlayDeathAnimation:
		return "play_death_animation"
	default:
		return "unknown"
	}
}

// Presenter receives cues for one character
type Presenter interface {
	Present(characterID string, cue Cue)
}

// PresenterFunc adapts a function to Presenter
type PresenterFunc func(characterID string, cue Cue)

// Present calls f
func (f PresenterFunc) Present(characterID string, cue Cue) { f(characterID, cue) }

type nopPresenter struct{}

func (nopPresenter) Present(string, Cue) {}

// DamageListener is the per-variant reaction to taking damage.
// Character variants compose one instead of overriding a base type.
type DamageListener interface {
	OnDamaged(current, previous int)
}

// DamageListenerFunc adapts a function to DamageListener
type DamageListenerFunc func(current, previous int)

// OnDamaged calls f
func (f DamageListenerFunc) OnDamaged(current, previous int) { f(current, previous) }

// AttackListener consumes attack events; it owns combat resolution
type AttackListener interface {
	OnAttack(ev AttackEvent)
}
