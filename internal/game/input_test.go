package game

import (
	"errors"
	"testing"
)

// TestParseInput tests command words and aliases
func TestParseInput(t *testing.T) {
	tests := []struct {
		command string
		args    []string
		want    InputEvent
	}{
		{"left", nil, Move(-1, 0)},
		{"RIGHT", nil, Move(1, 0)},
		{"move", []string{"0.5"}, Move(0.5, 0)},
		{"move", []string{"-1", "0.25"}, Move(-1, 0.25)},
		{"stop", nil, Press(InputMoveCleared)},
		{"dash", nil, Press(InputDashPressed)},
		{"-dash", nil, Press(InputDashReleased)},
		{" attack ", nil, Press(InputAttackPressed)},
		{"-fire", nil, Press(InputAttackReleased)},
		{"jump", nil, Press(InputJumpPressed)},
		{"-jump", nil, Press(InputJumpReleased)},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			got, err := ParseInput(tt.command, tt.args)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

// TestParseInputErrors tests rejected commands
func TestParseInputErrors(t *testing.T) {
	tests := []struct {
		name    string
		command string
		args    []string
	}{
		{"unknown word", "teleport", nil},
		{"move without x", "move", nil},
		{"move with bad x", "move", []string{"fast"}},
		{"move with bad y", "move", []string{"1", "up"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseInput(tt.command, tt.args)
			if !errors.Is(err, ErrUnknownInput) {
				t.Errorf("Expected ErrUnknownInput, got %v", err)
			}
		})
	}
}

// TestInputKindNamesRoundTrip tests that every kind's name parses back to it
func TestInputKindNamesRoundTrip(t *testing.T) {
	for k := InputMoveCleared; k <= InputJumpReleased; k++ {
		ev, err := ParseInput(k.String(), nil)
		if err != nil {
			t.Fatalf("%s: %v", k, err)
		}
		if ev.Kind != k {
			t.Errorf("Expected %s, got %s", k, ev.Kind)
		}
	}
}
