package game

import (
	"testing"

	"github.com/volanre/jollyred/internal/stats"
)

// recordingBody is a Body that records every call instead of simulating
type recordingBody struct {
	velocity   Vec2
	impulses   []Vec2
	continuous []Vec2
}

func (b *recordingBody) LinearVelocity() Vec2     { return b.velocity }
func (b *recordingBody) SetLinearVelocity(v Vec2) { b.velocity = v }

func (b *recordingBody) AddForce(f Vec2, mode ForceMode) {
	switch mode {
	case ForceImpulse:
		b.impulses = append(b.impulses, f)
		b.velocity = b.velocity.Add(f)
	case ForceContinuous:
		b.continuous = append(b.continuous, f)
	}
}

// recordingPresenter keeps every cue it receives
type recordingPresenter struct {
	cues []Cue
}

func (p *recordingPresenter) Present(_ string, cue Cue) {
	p.cues = append(p.cues, cue)
}

func (p *recordingPresenter) count(cue Cue) int {
	n := 0
	for _, c := range p.cues {
		if c == cue {
			n++
		}
	}
	return n
}

// machineFixture is an action state machine with its collaborators exposed
type machineFixture struct {
	m     *ActionStateMachine
	body  *recordingBody
	sched *Scheduler
	block *stats.Block
}

func newMachineFixture(t *testing.T, tuning Tuning) *machineFixture {
	t.Helper()
	f := &machineFixture{
		body:  &recordingBody{},
		sched: NewScheduler(),
		block: stats.NewBlock(stats.DefaultBase()),
	}
	f.m = NewActionStateMachine(tuning, f.block, f.body, f.sched)
	return f
}

// logic runs one logic tick the way Character does
func (f *machineFixture) logic(dt float64) {
	f.m.OnLogicTick(dt)
	f.sched.Advance(dt)
}

func assertFloat(t *testing.T, name string, want, got float64) {
	t.Helper()
	const eps = 1e-9
	if got < want-eps || got > want+eps {
		t.Errorf("Expected %s %v, got %v", name, want, got)
	}
}
