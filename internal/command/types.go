// Package command turns text commands from remote clients into character
// input and feeds them to the engine through a sharded worker queue.
package command

import (
	"errors"
	"strings"
	"time"
)

// ErrEmptyCommand is returned for blank command text
var ErrEmptyCommand = errors.New("empty command")

// Command is one parsed client command aimed at a character
type Command struct {
	ClientID    string   // Rate limit and ordering key
	CharacterID string   // Target character
	Name        string   // "jump", "move", "-dash", etc.
	Args        []string // Arguments after the name
	ReceivedAt  time.Time
}

// Parse splits command text into a Command. A leading "!" is accepted so
// chat-style input works unchanged.
func Parse(clientID, characterID, text string) (Command, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "!")
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Command{}, ErrEmptyCommand
	}

	return Command{
		ClientID:    clientID,
		CharacterID: characterID,
		Name:        strings.ToLower(fields[0]),
		Args:        fields[1:],
	}, nil
}
