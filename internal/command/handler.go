package command

import (
	"errors"
	"fmt"

	"github.com/volanre/jollyred/internal/game"
)

// ErrRateLimited is returned when a client sends commands too fast
var ErrRateLimited = errors.New("rate limited")

// InputApplier is the part of the engine commands drive
type InputApplier interface {
	ApplyInput(id string, ev game.InputEvent) (bool, error)
}

// Handler processes commands and applies them to the game
type Handler struct {
	engine      InputApplier
	rateLimiter *RateLimiter
}

// NewHandler creates a new command handler
func NewHandler(engine InputApplier, limits RateLimitConfig) *Handler {
	return &Handler{
		engine:      engine,
		rateLimiter: NewRateLimiter(limits),
	}
}

// ProcessCommand handles a single command. The bool reports whether the
// character accepted the resulting input.
func (h *Handler) ProcessCommand(cmd Command) (bool, error) {
	if !h.rateLimiter.Allow(cmd.ClientID) {
		return false, fmt.Errorf("client %s: %w", cmd.ClientID, ErrRateLimited)
	}

	ev, err := game.ParseInput(cmd.Name, cmd.Args)
	if err != nil {
		return false, err
	}

	return h.engine.ApplyInput(cmd.CharacterID, ev)
}

// Close releases the rate limiter
func (h *Handler) Close() {
	h.rateLimiter.Stop()
}
