package game

import "math"

// Vec2 is a 2D vector. +Y points up.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Up is the unit vector pointing up
var Up = Vec2{X: 0, Y: 1}

// Add returns v + o
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

// Scale returns v * s
func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }

// IsZero reports whether both components are zero
func (v Vec2) IsZero() bool { return v.X == 0 && v.Y == 0 }

// sign returns -1, 0 or 1
func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

// ForceMode selects how AddForce is applied
type ForceMode uint8

const (
	ForceImpulse    ForceMode = iota // Instant change of momentum
	ForceContinuous                  // Integrated over the next physics step
)

// Body is the rigid-body collaborator a character drives.
// The character never integrates position itself.
type Body interface {
	LinearVelocity() Vec2
	SetLinearVelocity(v Vec2)
	AddForce(f Vec2, mode ForceMode)
}

// Rigidbody is a minimal 2D body with gravity and a flat floor at Y=0.
// It exists so the engine can simulate characters headless.
type Rigidbody struct {
	Position Vec2
	Velocity Vec2
	Mass     float64
	Gravity  float64 // Downward acceleration, positive value

	pendingForce Vec2
}

// NewRigidbody creates a body resting on the floor at x
func NewRigidbody(x, mass, gravity float64) *Rigidbody {
	if mass <= 0 {
		mass = 1
	}
	return &Rigidbody{
		Position: Vec2{X: x},
		Mass:     mass,
		Gravity:  gravity,
	}
}

// LinearVelocity returns the current velocity
func (rb *Rigidbody) LinearVelocity() Vec2 {
	return rb.Velocity
}

// SetLinearVelocity overwrites the velocity
func (rb *Rigidbody) SetLinearVelocity(v Vec2) {
	rb.Velocity = v
}

// AddForce applies an impulse now or queues a force for the next Step
func (rb *Rigidbody) AddForce(f Vec2, mode ForceMode) {
	switch mode {
	case ForceImpulse:
		rb.Velocity = rb.Velocity.Add(f.Scale(1 / rb.Mass))
	case ForceContinuous:
		rb.pendingForce = rb.pendingForce.Add(f)
	}
}

// Step integrates one fixed physics step (semi-implicit Euler)
func (rb *Rigidbody) Step(dt float64) {
	accel := rb.pendingForce.Scale(1 / rb.Mass)
	accel.Y -= rb.Gravity
	rb.pendingForce = Vec2{}

	rb.Velocity = rb.Velocity.Add(accel.Scale(dt))
	rb.Position = rb.Position.Add(rb.Velocity.Scale(dt))

	// Floor contact
	if rb.Position.Y <= 0 {
		rb.Position.Y = 0
		if rb.Velocity.Y < 0 {
			rb.Velocity.Y = 0
		}
	}
}

// Grounded reports whether the body rests on the floor
func (rb *Rigidbody) Grounded() bool {
	return rb.Position.Y <= 0 && math.Abs(rb.Velocity.Y) < groundedEpsilon
}
