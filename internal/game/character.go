package game

import "github.com/volanre/jollyred/internal/stats"

// Lifecycle is the per-character life state
type Lifecycle uint8

const (
	LifecycleAlive Lifecycle = iota
	LifecycleDying           // Fatal hit taken, death animation running
	LifecycleDead            // Death complete, no further transitions
)

// String returns the lifecycle name
func (l Lifecycle) String() string {
	switch l {
	case LifecycleAlive:
		return "alive"
	case LifecycleDying:
		return "dying"
	case LifecycleDead:
		return "dead"
	default:
		return "unknown"
	}
}

// CharacterOptions wires a character's collaborators. Nil fields are no-ops.
type CharacterOptions struct {
	Presenter Presenter
	Damaged   DamageListener
	Attacks   AttackListener

	OnDeath         func(c *Character, res DamageResult) // Fatal hit
	OnDeathComplete func(c *Character)                   // DeathDelay later
}

// Character composes stats, health and the action state machine and
// exposes the two tick entry points the game loop drives
type Character struct {
	ID      string
	Name    string
	Profile string
	Stats   *stats.Block

	tuning    Tuning
	damage    *DamageModel
	actions   *ActionStateMachine
	sched     *Scheduler
	body      Body
	presenter Presenter
	opts      CharacterOptions

	lifecycle Lifecycle
	flashTask TaskHandle
	deathTask TaskHandle
}

// NewCharacter builds a character from a profile around the given body
func NewCharacter(id, name string, profile Profile, body Body, opts CharacterOptions) *Character {
	block := stats.NewBlock(profile.Base)
	sched := NewScheduler()

	c := &Character{
		ID:        id,
		Name:      name,
		Profile:   profile.Name,
		Stats:     block,
		tuning:    profile.Tuning,
		damage:    NewDamageModel(block, profile.Base.MaxHealth),
		actions:   NewActionStateMachine(profile.Tuning, block, body, sched),
		sched:     sched,
		body:      body,
		presenter: opts.Presenter,
		opts:      opts,
	}
	if c.presenter == nil {
		c.presenter = nopPresenter{}
	}
	c.actions.OnAttack = c.emitAttack
	return c
}

// HandleInput feeds one input event to the state machine.
// Returns false when the transition was declined.
func (c *Character) HandleInput(ev InputEvent) bool {
	if c.lifecycle != LifecycleAlive {
		return false
	}
	return c.actions.Handle(ev)
}

// OnLogicTick runs once per variable-rate frame
func (c *Character) OnLogicTick(dt float64) {
	if c.lifecycle == LifecycleDead {
		return
	}
	c.actions.OnLogicTick(dt)
	c.sched.Advance(dt)
}

// OnFixedTick runs once per fixed physics step
func (c *Character) OnFixedTick(fixedDt float64) {
	if c.lifecycle == LifecycleDead {
		return
	}
	c.actions.OnFixedTick(fixedDt)
}

// TakeDamage applies a hit. Hits while dying still lower health; hits after
// death completed are ignored and return a zero result.
func (c *Character) TakeDamage(rawAttack int, ignoreDefense bool) DamageResult {
	if c.lifecycle == LifecycleDead {
		return DamageResult{}
	}

	res := c.damage.TakeDamage(rawAttack, ignoreDefense)

	c.presenter.Present(c.ID, CueFlashDamage)
	c.sched.Cancel(c.flashTask)
	c.flashTask = c.sched.Schedule(c.tuning.FlashDuration, func() {
		c.presenter.Present(c.ID, CueResetFlash)
	})

	if c.opts.Damaged != nil {
		c.opts.Damaged.OnDamaged(res.Current, res.Previous)
	}

	if res.Killed {
		c.die(res)
	}
	return res
}

// die starts the one-way death transition
func (c *Character) die(res DamageResult) {
	if c.lifecycle != LifecycleAlive {
		return
	}
	c.lifecycle = LifecycleDying
	c.actions.Disable()
	c.presenter.Present(c.ID, CuePlayDeathAnimation)
	c.deathTask = c.sched.Schedule(c.tuning.DeathDelay, c.completeDeath)

	if c.opts.OnDeath != nil {
		c.opts.OnDeath(c, res)
	}
}

func (c *Character) completeDeath() {
	c.lifecycle = LifecycleDead
	c.deathTask = 0
	if c.opts.OnDeathComplete != nil {
		c.opts.OnDeathComplete(c)
	}
}

// Heal restores health for living characters. Returns the amount restored.
func (c *Character) Heal(amount int) int {
	if c.lifecycle != LifecycleAlive {
		return 0
	}
	return c.damage.Heal(amount)
}

func (c *Character) emitAttack(direction Vec2) {
	if c.opts.Attacks == nil {
		return
	}
	c.opts.Attacks.OnAttack(AttackEvent{
		AttackerID: c.ID,
		Direction:  direction,
		Facing:     c.actions.Facing(),
		Attack:     c.Stats.EffectiveAttack(),
	})
}

// CalculateEffectiveDamage previews what a hit of rawAttack would deal
func (c *Character) CalculateEffectiveDamage(rawAttack int) int {
	return c.damage.CalculateEffectiveDamage(rawAttack)
}

// EffectiveAttack is the outgoing attack value
func (c *Character) EffectiveAttack() int { return c.Stats.EffectiveAttack() }

// Health returns the current health state
func (c *Character) Health() Health { return c.damage.Health() }

// Lifecycle returns the life state
func (c *Character) Lifecycle() Lifecycle { return c.lifecycle }

// IsAlive reports whether the character can still act
func (c *Character) IsAlive() bool { return c.lifecycle == LifecycleAlive }

// DeathComplete reports whether the terminal death flag is set
func (c *Character) DeathComplete() bool { return c.lifecycle == LifecycleDead }

// Actions exposes the action state machine for inspection
func (c *Character) Actions() *ActionStateMachine { return c.actions }

// Body returns the physics collaborator
func (c *Character) Body() Body { return c.body }

// Tuning returns the designer constants this character was built with
func (c *Character) Tuning() Tuning { return c.tuning }

// Snapshot copies the character state. Position is filled by the owner of the body.
func (c *Character) Snapshot() CharacterSnapshot {
	h := c.damage.Health()
	return CharacterSnapshot{
		ID:        c.ID,
		Name:      c.Name,
		Profile:   c.Profile,
		Velocity:  c.body.LinearVelocity(),
		HP:        h.Display(),
		MaxHP:     h.Max,
		Overkill:  h.Overkill(),
		Lifecycle: c.lifecycle.String(),
		Action:    c.actions.Snapshot(),
		Stats:     c.Stats.Snapshot(),
	}
}
