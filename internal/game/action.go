package game

import (
	"math"

	"github.com/volanre/jollyred/internal/stats"
)

const (
	// groundedEpsilon is the vertical speed under which a body counts as grounded
	groundedEpsilon = 0.01

	// dashTimerSentinel is written to the dash timer when a dash starts.
	// EndDash resets it to 0, so the cooldown is measured from the dash end.
	dashTimerSentinel = -100.0

	jumpCutFactor       = 0.33
	dashSpeedMultiplier = 4.0
)

// Tuning holds the designer constants of one character
type Tuning struct {
	JumpForce        float64 `json:"jumpForce" yaml:"jump_force"`
	DashCooldown     float64 `json:"dashCooldown" yaml:"dash_cooldown"`
	DashLength       float64 `json:"dashLength" yaml:"dash_length"`
	JumpBoostForce   float64 `json:"jumpBoostForce" yaml:"jump_boost_force"`
	MaxJumpBoostTime float64 `json:"maxJumpBoostTime" yaml:"max_jump_boost_time"`
	DeathDelay       float64 `json:"deathDelay" yaml:"death_delay"`
	FlashDuration    float64 `json:"flashDuration" yaml:"flash_duration"`
}

// DefaultTuning returns the stock player tuning
func DefaultTuning() Tuning {
	return Tuning{
		JumpForce:        10,
		DashCooldown:     0.27,
		DashLength:       0.35,
		JumpBoostForce:   20,
		MaxJumpBoostTime: 0.15,
		DeathDelay:       0.5,
		FlashDuration:    0.07,
	}
}

// ActionState is the primary action a character is in.
// Jumping is tracked separately because it overlays the others.
type ActionState uint8

const (
	StateIdle ActionState = iota
	StateMoving
	StateDashing
	StateAttacking
)

// String returns the state name
func (s ActionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMoving:
		return "moving"
	case StateDashing:
		return "dashing"
	case StateAttacking:
		return "attacking"
	default:
		return "unknown"
	}
}

// ActionStateMachine owns the cooldown timers and mutually exclusive
// actions of one character. Declined transitions are silent no-ops.
type ActionStateMachine struct {
	tuning Tuning
	stats  *stats.Block
	body   Body
	sched  *Scheduler

	attackTimer    float64
	dashTimer      float64
	jumpBoostTimer float64

	moveDirection   Vec2
	dashDirection   Vec2
	attackDirection Vec2

	dashAvailable bool
	dashing       bool
	jumping       bool
	attackHeld    bool
	attackEnabled bool
	inputEnabled  bool

	endDash TaskHandle

	// OnAttack fires after every accepted attack with the attack direction
	OnAttack func(direction Vec2)
}

// NewActionStateMachine creates a machine in the idle state with all timers at zero
func NewActionStateMachine(tuning Tuning, block *stats.Block, body Body, sched *Scheduler) *ActionStateMachine {
	return &ActionStateMachine{
		tuning:          tuning,
		stats:           block,
		body:            body,
		sched:           sched,
		dashDirection:   Vec2{X: -1},
		attackDirection: Vec2{X: 1},
		dashAvailable:   true,
		attackEnabled:   true,
		inputEnabled:    true,
	}
}

// Handle applies one input event. Returns false when the transition was declined.
func (m *ActionStateMachine) Handle(ev InputEvent) bool {
	if !m.inputEnabled {
		return false
	}

	switch ev.Kind {
	case InputMoveChanged:
		m.moveDirection = ev.Vector
		if ev.Vector.X != 0 {
			m.dashDirection = ev.Vector
		}
		return true
	case InputMoveCleared:
		m.moveDirection = Vec2{}
		return true
	case InputDashPressed:
		return m.tryDash()
	case InputDashReleased:
		m.dashAvailable = true
		return true
	case InputAttackPressed:
		// Held state is tracked even while attacks are disabled mid-dash
		m.attackHeld = true
		if !m.attackEnabled {
			return false
		}
		return m.tryAttack()
	case InputAttackReleased:
		m.attackHeld = false
		return true
	case InputJumpPressed:
		return m.tryJump()
	case InputJumpReleased:
		m.releaseJump()
		return true
	default:
		return false
	}
}

func (m *ActionStateMachine) tryDash() bool {
	if !m.dashAvailable || m.dashTimer <= m.tuning.DashCooldown || m.attackHeld {
		return false
	}

	m.attackEnabled = false
	m.dashAvailable = false
	m.dashing = true
	m.dashTimer = dashTimerSentinel

	v := m.body.LinearVelocity()
	v.X = sign(m.dashDirection.X) * m.stats.Base().Speed * dashSpeedMultiplier
	m.body.SetLinearVelocity(v)

	m.endDash = m.sched.Schedule(m.tuning.DashLength, m.EndDash)
	return true
}

// EndDash finishes a dash. The dash cooldown starts counting from here.
func (m *ActionStateMachine) EndDash() {
	if !m.dashing {
		return
	}
	m.sched.Cancel(m.endDash)
	m.endDash = 0

	m.attackEnabled = true
	m.dashTimer = 0
	m.dashing = false

	v := m.body.LinearVelocity()
	v.X = m.IntendedVelocityX()
	m.body.SetLinearVelocity(v)
}

func (m *ActionStateMachine) tryAttack() bool {
	if m.dashing || m.attackTimer <= m.stats.EffectiveFireRate() {
		return false
	}
	m.attackTimer = 0
	m.attackDirection = m.moveDirection
	if m.OnAttack != nil {
		m.OnAttack(m.attackDirection)
	}
	return true
}

func (m *ActionStateMachine) tryJump() bool {
	if math.Abs(m.body.LinearVelocity().Y) >= groundedEpsilon {
		return false
	}
	m.body.AddForce(Up.Scale(m.tuning.JumpForce), ForceImpulse)
	m.jumping = true
	m.jumpBoostTimer = 0
	return true
}

func (m *ActionStateMachine) releaseJump() {
	m.jumping = false
	v := m.body.LinearVelocity()
	if v.Y > 0 {
		v.Y *= jumpCutFactor
		m.body.SetLinearVelocity(v)
	}
}

// OnLogicTick advances the cooldown timers by the frame time
func (m *ActionStateMachine) OnLogicTick(dt float64) {
	m.attackTimer += dt
	m.dashTimer += dt
}

// OnFixedTick drives the body once per physics step
func (m *ActionStateMachine) OnFixedTick(fixedDt float64) {
	m.jumpBoostTimer += fixedDt

	if !m.dashing {
		v := m.body.LinearVelocity()
		v.X = m.IntendedVelocityX()
		m.body.SetLinearVelocity(v)
	}

	if m.jumping && m.jumpBoostTimer < m.tuning.MaxJumpBoostTime {
		m.body.AddForce(Up.Scale(m.tuning.JumpBoostForce*fixedDt), ForceContinuous)
	}
}

// IntendedVelocityX is the input-driven horizontal velocity
func (m *ActionStateMachine) IntendedVelocityX() float64 {
	return sign(m.moveDirection.X) * m.stats.EffectiveSpeed()
}

// Disable stops all input processing for good and halts the body.
// Used by the death transition.
func (m *ActionStateMachine) Disable() {
	m.inputEnabled = false
	m.attackEnabled = false
	m.attackHeld = false
	m.jumping = false
	m.moveDirection = Vec2{}
	if m.dashing {
		m.sched.Cancel(m.endDash)
		m.endDash = 0
		m.dashing = false
	}
	m.body.SetLinearVelocity(Vec2{})
}

// State returns the primary action state
func (m *ActionStateMachine) State() ActionState {
	switch {
	case m.dashing:
		return StateDashing
	case m.attackHeld:
		return StateAttacking
	case m.moveDirection.X != 0:
		return StateMoving
	default:
		return StateIdle
	}
}

// Jumping reports whether the jump button is held after a successful jump
func (m *ActionStateMachine) Jumping() bool { return m.jumping }

// Dashing reports whether a dash is in progress
func (m *ActionStateMachine) Dashing() bool { return m.dashing }

// DashAvailable reports whether the dash button was released since the last dash
func (m *ActionStateMachine) DashAvailable() bool { return m.dashAvailable }

// InputEnabled reports whether input events are still processed
func (m *ActionStateMachine) InputEnabled() bool { return m.inputEnabled }

// AttackDirection is the move direction captured by the last attack
func (m *ActionStateMachine) AttackDirection() Vec2 { return m.attackDirection }

// DashDirection is the last move direction with a horizontal component
func (m *ActionStateMachine) DashDirection() Vec2 { return m.dashDirection }

// Facing is the horizontal direction attacks resolve toward: the attack
// direction when it has an X component, otherwise the last dash direction
func (m *ActionStateMachine) Facing() float64 {
	if m.attackDirection.X != 0 {
		return sign(m.attackDirection.X)
	}
	return sign(m.dashDirection.X)
}

// ActionSnapshot is a read-only copy of the machine for clients
type ActionSnapshot struct {
	State          string  `json:"state"`
	Jumping        bool    `json:"jumping"`
	DashAvailable  bool    `json:"dashAvailable"`
	AttackTimer    float64 `json:"attackTimer"`
	DashTimer      float64 `json:"dashTimer"`
	JumpBoostTimer float64 `json:"jumpBoostTimer"`
	MoveDirection  Vec2    `json:"moveDirection"`
	AttackDir      Vec2    `json:"attackDirection"`
}

// Snapshot copies the current machine state
func (m *ActionStateMachine) Snapshot() ActionSnapshot {
	return ActionSnapshot{
		State:          m.State().String(),
		Jumping:        m.jumping,
		DashAvailable:  m.dashAvailable,
		AttackTimer:    m.attackTimer,
		DashTimer:      m.dashTimer,
		JumpBoostTimer: m.jumpBoostTimer,
		MoveDirection:  m.moveDirection,
		AttackDir:      m.attackDirection,
	}
}
