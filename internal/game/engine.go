package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/volanre/jollyred/internal/stats"
)

var (
	// ErrCharacterNotFound is returned for unknown character IDs
	ErrCharacterNotFound = errors.New("character not found")
	// ErrCharacterLimit is returned when the engine is full
	ErrCharacterLimit = errors.New("character limit reached")
)

// EngineConfig holds simulation settings
type EngineConfig struct {
	TickRate      int     // Logic ticks per second
	FixedTimestep float64 // Seconds per physics step
	MaxFixedSteps int     // Physics steps allowed per logic tick
	Gravity       float64 // Downward acceleration
	Mass          float64 // Rigidbody mass for every character
	AttackReach   float64 // Melee reach in world units
	ArenaWidth    float64 // Random spawns land in [-ArenaWidth/2, ArenaWidth/2]
	Seed          int64   // Spawn RNG seed, 0 picks one from the clock
	Limits        ResourceLimits
	EventLog      EventLogConfig
}

// DefaultEngineConfig returns the default simulation settings
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TickRate:      60,
		FixedTimestep: 0.02,
		MaxFixedSteps: 5,
		Gravity:       9.81,
		Mass:          1,
		AttackReach:   DefaultAttackReach,
		ArenaWidth:    20,
		Limits:        DefaultLimits,
		EventLog:      DefaultEventLogConfig(),
	}
}

// DeathRecord describes one death for the ledger
type DeathRecord struct {
	CharacterID string    `json:"characterId"`
	Name        string    `json:"name"`
	Profile     string    `json:"profile"`
	KillerID    string    `json:"killerId,omitempty"`
	Overkill    int       `json:"overkill"`
	Tick        uint64    `json:"tick"`
	SimTime     float64   `json:"simTime"`
	At          time.Time `json:"at"`
}

// DeathRecorder persists death records
type DeathRecorder interface {
	RecordDeath(ctx context.Context, rec DeathRecord) error
}

// DamageEvent is passed to the damage callback
type DamageEvent struct {
	AttackerID string       `json:"attackerId,omitempty"`
	VictimID   string       `json:"victimId"`
	Raw        int          `json:"raw"`
	Result     DamageResult `json:"result"`
}

// ActionEvent is passed to the action callback for every input event
type ActionEvent struct {
	CharacterID string     `json:"characterId"`
	Input       InputEvent `json:"input"`
	Accepted    bool       `json:"accepted"`
}

// entity is a character with the body and trace the engine owns for it
type entity struct {
	char  *Character
	body  *Rigidbody
	trace *Trace
}

// Engine drives every character on a logic tick plus a fixed physics step
type Engine struct {
	mu       sync.RWMutex
	cfg      EngineConfig
	entities map[string]*entity
	order    []string // Spawn order, keeps iteration deterministic
	resolver CombatResolver

	accumulator float64
	tickCount   uint64
	simTime     float64
	totalDeaths int

	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}

	rng *rand.Rand

	// Event callbacks, invoked on their own goroutine
	onDamage func(DamageEvent)
	onDeath  func(DeathRecord)
	onAction func(ActionEvent)
	onTick   func(time.Duration)

	presenter Presenter
	recorder  DeathRecorder

	snapshotPool *SnapshotPool
	eventLog     *EventLog
}

// NewEngine creates an engine. Zero fields in cfg fall back to defaults.
func NewEngine(cfg EngineConfig) *Engine {
	def := DefaultEngineConfig()
	if cfg.TickRate <= 0 {
		cfg.TickRate = def.TickRate
	}
	if cfg.FixedTimestep <= 0 {
		cfg.FixedTimestep = def.FixedTimestep
	}
	if cfg.MaxFixedSteps <= 0 {
		cfg.MaxFixedSteps = def.MaxFixedSteps
	}
	if cfg.Mass <= 0 {
		cfg.Mass = def.Mass
	}
	if cfg.Limits.MaxCharacters <= 0 {
		cfg.Limits = def.Limits
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Engine{
		cfg:          cfg,
		entities:     make(map[string]*entity),
		resolver:     NewCombatResolver(cfg.AttackReach),
		rng:          rand.New(rand.NewSource(seed)),
		presenter:    nopPresenter{},
		snapshotPool: NewSnapshotPool(cfg.Limits),
		eventLog:     NewEventLog(cfg.EventLog),
	}
}

// Start begins the game loop
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stopChan = make(chan struct{})
	e.ticker = time.NewTicker(time.Second / time.Duration(e.cfg.TickRate))
	ticker, stop := e.ticker, e.stopChan
	onTick := e.onTick
	e.mu.Unlock()

	go func() {
		last := time.Now()
		for {
			select {
			case now := <-ticker.C:
				dt := now.Sub(last).Seconds()
				last = now
				e.Step(dt)
				if onTick != nil {
					onTick(time.Since(now))
				}
			case <-stop:
				return
			}
		}
	}()

	log.Printf("🎮 Engine started at %d TPS (fixed step %.3fs)", e.cfg.TickRate, e.cfg.FixedTimestep)
}

// Stop stops the game loop
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}

	e.running = false
	e.ticker.Stop()
	close(e.stopChan)
	log.Println("🛑 Engine stopped")
}

// Step advances the simulation by one logic frame of dt seconds.
// Fixed physics steps run first, as many as the accumulated time allows.
func (e *Engine) Step(dt float64) {
	if dt <= 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.tickCount++
	e.simTime += dt

	fixed := e.cfg.FixedTimestep
	e.accumulator += dt
	steps := 0
	for e.accumulator+1e-9 >= fixed && steps < e.cfg.MaxFixedSteps {
		for _, id := range e.order {
			ent := e.entities[id]
			ent.char.OnFixedTick(fixed)
			ent.body.Step(fixed)
		}
		e.accumulator -= fixed
		steps++
	}
	// Drop time we could not catch up on instead of spiralling
	if e.accumulator > fixed {
		e.accumulator = math.Mod(e.accumulator, fixed)
	}

	for _, id := range e.order {
		ent := e.entities[id]
		ent.char.OnLogicTick(dt)
		e.sample(ent)
	}

	e.eventLog.EmitSimple(EventTypeTick, e.tickCount, "", TickPayload{
		CharacterCount: len(e.order),
		DeltaTimeNs:    int64(dt * 1e9),
		FixedSteps:     steps,
	})

	e.produceSnapshot()
}

func (e *Engine) sample(ent *entity) {
	ent.trace.Add(TraceSample{
		Time:     e.simTime,
		Position: ent.body.Position,
		Velocity: ent.body.Velocity,
		HP:       ent.char.Health().Current,
		State:    ent.char.Actions().State().String(),
	})
}

// Spawn adds a character built from profile at a random spot in the arena
func (e *Engine) Spawn(name string, profile Profile) (CharacterSnapshot, error) {
	e.mu.Lock()
	x := (e.rng.Float64() - 0.5) * e.cfg.ArenaWidth
	e.mu.Unlock()
	return e.SpawnAt(name, profile, x)
}

// SpawnAt adds a character built from profile on the floor at x
func (e *Engine) SpawnAt(name string, profile Profile, x float64) (CharacterSnapshot, error) {
	if err := profile.Validate(); err != nil {
		return CharacterSnapshot{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.entities) >= e.cfg.Limits.MaxCharacters {
		log.Printf("⚠️ Character limit reached (%d), rejecting: %s", e.cfg.Limits.MaxCharacters, name)
		return CharacterSnapshot{}, fmt.Errorf("spawn %s: %w", name, ErrCharacterLimit)
	}

	id := uuid.NewString()
	if name == "" {
		name = profile.Title
	}

	ent := &entity{
		body:  NewRigidbody(x, e.cfg.Mass, e.cfg.Gravity),
		trace: NewTrace(e.cfg.Limits.TraceLength),
	}
	ent.char = NewCharacter(id, name, profile, ent.body, CharacterOptions{
		Presenter: PresenterFunc(func(id string, cue Cue) { e.presenter.Present(id, cue) }),
		Damaged: DamageListenerFunc(func(current, previous int) {
			e.sample(ent)
		}),
		Attacks:         attackResolver{e},
		OnDeathComplete: e.deathComplete,
	})

	e.entities[id] = ent
	e.order = append(e.order, id)

	e.eventLog.EmitSimple(EventTypeSpawn, e.tickCount, id, SpawnPayload{
		CharacterID: id,
		Name:        name,
		Profile:     profile.Name,
		SpawnX:      x,
	})

	log.Printf("👤 Spawned %s (%s) as %s", name, id, profile.Name)
	return e.snapshotOf(ent), nil
}

// Remove deletes a character
func (e *Engine) Remove(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.entities[id]; !ok {
		return fmt.Errorf("remove %s: %w", id, ErrCharacterNotFound)
	}
	delete(e.entities, id)
	for i, oid := range e.order {
		if oid == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	e.eventLog.EmitSimple(EventTypeRemove, e.tickCount, id, nil)
	return nil
}

// Get returns a snapshot of one character
func (e *Engine) Get(id string) (CharacterSnapshot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ent, ok := e.entities[id]
	if !ok {
		return CharacterSnapshot{}, fmt.Errorf("get %s: %w", id, ErrCharacterNotFound)
	}
	return e.snapshotOf(ent), nil
}

// ApplyInput feeds an input event to a character. The bool reports whether
// the transition was accepted.
func (e *Engine) ApplyInput(id string, ev InputEvent) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entities[id]
	if !ok {
		return false, fmt.Errorf("input %s: %w", id, ErrCharacterNotFound)
	}

	accepted := ent.char.HandleInput(ev)
	if accepted {
		e.eventLog.EmitSimple(EventTypeAction, e.tickCount, id, ActionPayload{
			CharacterID: id,
			Input:       ev.Kind.String(),
			State:       ent.char.Actions().State().String(),
		})
	}
	if e.onAction != nil {
		go e.onAction(ActionEvent{CharacterID: id, Input: ev, Accepted: accepted})
	}
	return accepted, nil
}

// ApplyDamage hits a character from outside combat
func (e *Engine) ApplyDamage(id string, rawAttack int, ignoreDefense bool) (DamageResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entities[id]
	if !ok {
		return DamageResult{}, fmt.Errorf("damage %s: %w", id, ErrCharacterNotFound)
	}
	return e.applyDamage(ent, rawAttack, ignoreDefense, ""), nil
}

// applyDamage must be called with e.mu held
func (e *Engine) applyDamage(victim *entity, rawAttack int, ignoreDefense bool, attackerID string) DamageResult {
	if victim.char.DeathComplete() {
		return DamageResult{}
	}

	res := victim.char.TakeDamage(rawAttack, ignoreDefense)
	id := victim.char.ID

	e.eventLog.EmitSimple(EventTypeDamage, e.tickCount, id, DamagePayload{
		AttackerID:    attackerID,
		VictimID:      id,
		Raw:           rawAttack,
		Applied:       res.Applied,
		VictimHP:      res.Current,
		IgnoreDefense: ignoreDefense,
	})
	if e.onDamage != nil {
		go e.onDamage(DamageEvent{AttackerID: attackerID, VictimID: id, Raw: rawAttack, Result: res})
	}

	if res.Killed {
		e.handleDeath(victim, res, attackerID)
	}
	return res
}

func (e *Engine) handleDeath(victim *entity, res DamageResult, killerID string) {
	e.totalDeaths++
	rec := DeathRecord{
		CharacterID: victim.char.ID,
		Name:        victim.char.Name,
		Profile:     victim.char.Profile,
		KillerID:    killerID,
		Overkill:    victim.char.Health().Overkill(),
		Tick:        e.tickCount,
		SimTime:     e.simTime,
		At:          time.Now(),
	}

	log.Printf("💀 %s died (overkill %d)", rec.Name, rec.Overkill)

	e.eventLog.EmitSimple(EventTypeDeath, e.tickCount, rec.CharacterID, DeathPayload{
		CharacterID: rec.CharacterID,
		KillerID:    killerID,
		Overkill:    rec.Overkill,
	})

	if e.onDeath != nil {
		go e.onDeath(rec)
	}
	if e.recorder != nil {
		go e.recordDeath(e.recorder, rec)
	}
}

func (e *Engine) recordDeath(r DeathRecorder, rec DeathRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.RecordDeath(ctx, rec); err != nil {
		log.Printf("⚠️ Failed to record death of %s: %v", rec.CharacterID, err)
	}
}

// deathComplete runs inside a character's logic tick, with e.mu held
func (e *Engine) deathComplete(c *Character) {
	e.eventLog.EmitSimple(EventTypeDeathComplete, e.tickCount, c.ID, DeathPayload{CharacterID: c.ID})
}

// attackResolver turns attack events into hits on the nearest opponent
type attackResolver struct {
	e *Engine
}

// OnAttack runs inside ApplyInput, with e.mu held
func (r attackResolver) OnAttack(ev AttackEvent) {
	e := r.e
	attacker, ok := e.entities[ev.AttackerID]
	if !ok {
		return
	}
	ev.Tick = e.tickCount

	e.eventLog.EmitSimple(EventTypeAttack, e.tickCount, ev.AttackerID, ev)

	candidates := make([]Combatant, 0, len(e.order))
	for _, id := range e.order {
		ent := e.entities[id]
		candidates = append(candidates, Combatant{
			ID:       id,
			Position: ent.body.Position,
			Alive:    ent.char.IsAlive(),
		})
	}

	target, hit := e.resolver.Resolve(ev, attacker.body.Position, candidates)
	if !hit {
		return
	}
	e.applyDamage(e.entities[target.ID], ev.Attack, false, ev.AttackerID)
}

// Heal restores health to a living character
func (e *Engine) Heal(id string, amount int) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entities[id]
	if !ok {
		return 0, fmt.Errorf("heal %s: %w", id, ErrCharacterNotFound)
	}

	healed := ent.char.Heal(amount)
	if healed > 0 {
		e.eventLog.EmitSimple(EventTypeHeal, e.tickCount, id, HealPayload{
			CharacterID: id,
			Amount:      healed,
			CurrentHP:   ent.char.Health().Current,
		})
	}
	return healed, nil
}

// AddModifier attaches a modifier to one of a character's stats.
// It takes effect on the next effective-value read.
func (e *Engine) AddModifier(id string, stat stats.Stat, m stats.Modifier) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entities[id]
	if !ok {
		return fmt.Errorf("add modifier %s: %w", id, ErrCharacterNotFound)
	}
	ent.char.Stats.AddModifier(stat, m)
	e.logModifier(id, stat, m, false)
	return nil
}

// RemoveModifier detaches one matching modifier. The bool reports whether one was found.
func (e *Engine) RemoveModifier(id string, stat stats.Stat, m stats.Modifier) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entities[id]
	if !ok {
		return false, fmt.Errorf("remove modifier %s: %w", id, ErrCharacterNotFound)
	}
	removed := ent.char.Stats.RemoveModifier(stat, m)
	if removed {
		e.logModifier(id, stat, m, true)
	}
	return removed, nil
}

func (e *Engine) logModifier(id string, stat stats.Stat, m stats.Modifier, removed bool) {
	e.eventLog.EmitSimple(EventTypeModifier, e.tickCount, id, ModifierPayload{
		CharacterID: id,
		Stat:        stat.String(),
		Kind:        m.Kind.String(),
		Value:       m.Value,
		Removed:     removed,
	})
}

// Trace returns the recorded history of a character, oldest first
func (e *Engine) Trace(id string) ([]TraceSample, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ent, ok := e.entities[id]
	if !ok {
		return nil, fmt.Errorf("trace %s: %w", id, ErrCharacterNotFound)
	}
	return ent.trace.Samples(), nil
}

// SetCallbacks sets event callbacks. Call before Start.
func (e *Engine) SetCallbacks(onDamage func(DamageEvent), onDeath func(DeathRecord), onAction func(ActionEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onDamage = onDamage
	e.onDeath = onDeath
	e.onAction = onAction
}

// SetTickObserver receives the wall time of every ticker-driven Step. Call before Start.
func (e *Engine) SetTickObserver(fn func(time.Duration)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTick = fn
}

// SetPresenter routes presentation cues. Cues are delivered with the engine
// lock held, so p must not block or call back into the engine.
func (e *Engine) SetPresenter(p Presenter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p == nil {
		p = nopPresenter{}
	}
	e.presenter = p
}

// SetDeathRecorder sets where death records are persisted
func (e *Engine) SetDeathRecorder(r DeathRecorder) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recorder = r
}

// snapshotOf must be called with e.mu held
func (e *Engine) snapshotOf(ent *entity) CharacterSnapshot {
	s := ent.char.Snapshot()
	s.Position = ent.body.Position
	return s
}

// GetSnapshot returns a private copy of the latest published snapshot.
// The copy is taken under the read lock so a tick cannot recycle the slot
// while it is being read.
func (e *Engine) GetSnapshot() *GameSnapshot {
	e.mu.RLock()
	snap := e.snapshotPool.AcquireRead().Clone()
	e.mu.RUnlock()
	return &snap
}

// produceSnapshot must be called with e.mu held
func (e *Engine) produceSnapshot() {
	snap := e.snapshotPool.AcquireWrite()
	snap.TickNumber = e.tickCount
	snap.SimTime = e.simTime
	snap.TotalDeaths = e.totalDeaths

	for _, id := range e.order {
		ent := e.entities[id]
		if ent.char.IsAlive() {
			snap.AliveCount++
		}
		if len(snap.Characters) < e.cfg.Limits.MaxSnapshotCharacters {
			snap.Characters = append(snap.Characters, e.snapshotOf(ent))
		}
	}
	snap.CharacterCount = len(e.order)

	e.snapshotPool.PublishWrite()
}

// StartEventLog starts recording events to filePath
func (e *Engine) StartEventLog(filePath string) error {
	return e.eventLog.Start(filePath)
}

// StopEventLog flushes and stops the event log
func (e *Engine) StopEventLog() {
	e.eventLog.Stop()
}

// EventLogStats returns event log counters
func (e *Engine) EventLogStats() EventLogStats {
	return e.eventLog.Stats()
}

// Config returns the engine settings
func (e *Engine) Config() EngineConfig {
	return e.cfg
}
