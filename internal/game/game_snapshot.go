package game

import (
	"sync/atomic"
	"time"

	"github.com/volanre/jollyred/internal/stats"
)

// ResourceLimits defines hard caps on engine state
type ResourceLimits struct {
	MaxCharacters         int // Hard cap on live characters (logic)
	MaxSnapshotCharacters int // Hard cap on characters copied per snapshot
	TraceLength           int // Samples kept per character trace
}

// DefaultLimits provides production-safe default limits
var DefaultLimits = ResourceLimits{
	MaxCharacters:         256,
	MaxSnapshotCharacters: 128,
	TraceLength:           256,
}

// CharacterSnapshot is an immutable copy of a character for clients.
// Uses value types only.
type CharacterSnapshot struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Profile   string         `json:"profile"`
	Position  Vec2           `json:"position"`
	Velocity  Vec2           `json:"velocity"`
	HP        int            `json:"hp"`
	MaxHP     int            `json:"maxHp"`
	Overkill  int            `json:"overkill"`
	Lifecycle string         `json:"lifecycle"`
	Action    ActionSnapshot `json:"action"`
	Stats     stats.Snapshot `json:"stats"`
}

// GameSnapshot is a complete immutable engine state.
// Slices are pre-allocated and capped.
type GameSnapshot struct {
	Sequence   uint64    `json:"sequence"`
	Timestamp  time.Time `json:"timestamp"`
	TickNumber uint64    `json:"tick"`
	SimTime    float64   `json:"simTime"` // Seconds simulated since start

	Characters []CharacterSnapshot `json:"characters"`

	CharacterCount int `json:"characterCount"`
	AliveCount     int `json:"aliveCount"`
	TotalDeaths    int `json:"totalDeaths"`
}

// Clone copies the snapshot out of the pool so it can outlive the next ticks
func (s *GameSnapshot) Clone() GameSnapshot {
	out := *s
	out.Characters = append([]CharacterSnapshot(nil), s.Characters...)
	return out
}

// SnapshotPool pre-allocates snapshots to avoid GC pressure.
// Uses triple buffering for lock-free producer/consumer.
type SnapshotPool struct {
	snapshots [3]GameSnapshot
	writeIdx  uint32 // atomic - producer index
	readIdx   uint32 // atomic - consumer index
	sequence  uint64 // atomic - monotonic sequence
}

// NewSnapshotPool creates a pool with pre-allocated slices
func NewSnapshotPool(limits ResourceLimits) *SnapshotPool {
	pool := &SnapshotPool{}
	for i := 0; i < 3; i++ {
		pool.snapshots[i] = GameSnapshot{
			Characters: make([]CharacterSnapshot, 0, limits.MaxSnapshotCharacters),
		}
	}
	return pool
}

// AcquireWrite gets the next write slot (producer only, called from the tick).
// Returns a snapshot with reset slices but preserved capacity.
func (p *SnapshotPool) AcquireWrite() *GameSnapshot {
	idx := atomic.AddUint32(&p.writeIdx, 1) % 3
	snap := &p.snapshots[idx]

	snap.Characters = snap.Characters[:0]
	snap.CharacterCount = 0
	snap.AliveCount = 0

	snap.Sequence = atomic.AddUint64(&p.sequence, 1)
	snap.Timestamp = time.Now()

	return snap
}

// PublishWrite marks the write complete and advances the read pointer
func (p *SnapshotPool) PublishWrite() {
	atomic.StoreUint32(&p.readIdx, atomic.LoadUint32(&p.writeIdx))
}

// AcquireRead gets the latest complete snapshot (consumer only)
func (p *SnapshotPool) AcquireRead() *GameSnapshot {
	idx := atomic.LoadUint32(&p.readIdx) % 3
	return &p.snapshots[idx]
}
