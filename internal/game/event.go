package game

import (
	"encoding/json"
	"time"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeTick              // Tick boundary
	EventTypeSpawn
	EventTypeRemove
	EventTypeAction
	EventTypeAttack
	EventTypeDamage
	EventTypeHeal
	EventTypeDeath
	EventTypeDeathComplete
	EventTypeModifier
)

// EventVersion for backwards compatibility in replay
const EventVersion uint8 = 1

// Event is the core event structure for the event log
type Event struct {
	Version     uint8     `json:"version"`     // Schema version
	Type        EventType `json:"type"`        // Event type
	Timestamp   int64     `json:"timestamp"`   // Unix nano
	Sequence    uint64    `json:"sequence"`    // Monotonic sequence
	TickNum     uint64    `json:"tickNum"`     // Engine tick this occurred in
	CharacterID string    `json:"characterId"` // Source character (for rate limiting)
	Payload     []byte    `json:"payload"`     // JSON-encoded payload
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeTick:
		return "tick"
	case EventTypeSpawn:
		return "spawn"
	case EventTypeRemove:
		return "remove"
	case EventTypeAction:
		return "action"
	case EventTypeAttack:
		return "attack"
	case EventTypeDamage:
		return "damage"
	case EventTypeHeal:
		return "heal"
	case EventTypeDeath:
		return "death"
	case EventTypeDeathComplete:
		return "death_complete"
	case EventTypeModifier:
		return "modifier"
	default:
		return "unknown"
	}
}

// Typed payloads for different event types

// TickPayload contains tick boundary information for replay
type TickPayload struct {
	CharacterCount int   `json:"characterCount"`
	DeltaTimeNs    int64 `json:"deltaTimeNs"`
	FixedSteps     int   `json:"fixedSteps"`
}

// SpawnPayload contains spawn details
type SpawnPayload struct {
	CharacterID string  `json:"characterId"`
	Name        string  `json:"name"`
	Profile     string  `json:"profile"`
	SpawnX      float64 `json:"spawnX"`
}

// ActionPayload records an accepted input transition
type ActionPayload struct {
	CharacterID string `json:"characterId"`
	Input       string `json:"input"`
	State       string `json:"state"`
}

// DamagePayload contains damage event details. AttackerID is empty for
// damage applied from outside combat.
type DamagePayload struct {
	AttackerID    string `json:"attackerId,omitempty"`
	VictimID      string `json:"victimId"`
	Raw           int    `json:"raw"`
	Applied       int    `json:"applied"`
	VictimHP      int    `json:"victimHp"`
	IgnoreDefense bool   `json:"ignoreDefense"`
}

// HealPayload contains heal event details
type HealPayload struct {
	CharacterID string `json:"characterId"`
	Amount      int    `json:"amount"`
	CurrentHP   int    `json:"currentHp"`
}

// DeathPayload contains death details
type DeathPayload struct {
	CharacterID string `json:"characterId"`
	KillerID    string `json:"killerId,omitempty"`
	Overkill    int    `json:"overkill"`
}

// ModifierPayload records a modifier added or removed
type ModifierPayload struct {
	CharacterID string  `json:"characterId"`
	Stat        string  `json:"stat"`
	Kind        string  `json:"kind"`
	Value       float64 `json:"value"`
	Removed     bool    `json:"removed"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, tickNum uint64, characterID string, payload interface{}) Event {
	return Event{
		Version:     EventVersion,
		Type:        eventType,
		Timestamp:   time.Now().UnixNano(),
		TickNum:     tickNum,
		CharacterID: characterID,
		Payload:     EncodePayload(payload),
	}
}
