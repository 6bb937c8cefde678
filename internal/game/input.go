package game

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownInput is returned when a command does not name an input event
var ErrUnknownInput = errors.New("unknown input")

// InputKind is a discrete input event delivered once per device change
type InputKind uint8

const (
	InputMoveChanged InputKind = iota
	InputMoveCleared
	InputDashPressed
	InputDashReleased
	InputAttackPressed
	InputAttackReleased
	InputJumpPressed
	InputJumpReleased
)

// String returns the canonical command name
func (k InputKind) String() string {
	switch k {
	case InputMoveChanged:
		return "move"
	case InputMoveCleared:
		return "stop"
	case InputDashPressed:
		return "dash"
	case InputDashReleased:
		return "-dash"
	case InputAttackPressed:
		return "attack"
	case InputAttackReleased:
		return "-attack"
	case InputJumpPressed:
		return "jump"
	case InputJumpReleased:
		return "-jump"
	default:
		return "unknown"
	}
}

// InputEvent is one input transition. Vector is only used by InputMoveChanged.
type InputEvent struct {
	Kind   InputKind `json:"kind"`
	Vector Vec2      `json:"vector"`
}

// Move builds a MoveChanged event
func Move(x, y float64) InputEvent {
	return InputEvent{Kind: InputMoveChanged, Vector: Vec2{X: x, Y: y}}
}

// Press builds an argument-free event
func Press(kind InputKind) InputEvent {
	return InputEvent{Kind: kind}
}

// inputAliases maps command words to events. Direction words carry their vector.
var inputAliases = map[string]InputEvent{
	"move":    {Kind: InputMoveChanged},
	"left":    Move(-1, 0),
	"right":   Move(1, 0),
	"a":       Move(-1, 0),
	"d":       Move(1, 0),
	"stop":    {Kind: InputMoveCleared},
	"-move":   {Kind: InputMoveCleared},
	"-left":   {Kind: InputMoveCleared},
	"-right":  {Kind: InputMoveCleared},
	"dash":    {Kind: InputDashPressed},
	"+dash":   {Kind: InputDashPressed},
	"-dash":   {Kind: InputDashReleased},
	"attack":  {Kind: InputAttackPressed},
	"+attack": {Kind: InputAttackPressed},
	"fire":    {Kind: InputAttackPressed},
	"-attack": {Kind: InputAttackReleased},
	"-fire":   {Kind: InputAttackReleased},
	"jump":    {Kind: InputJumpPressed},
	"+jump":   {Kind: InputJumpPressed},
	"space":   {Kind: InputJumpPressed},
	"-jump":   {Kind: InputJumpReleased},
	"-space":  {Kind: InputJumpReleased},
}

// ParseInput turns a command word plus arguments into an input event.
// "move" takes an x and optional y argument; direction words need none.
func ParseInput(command string, args []string) (InputEvent, error) {
	key := strings.ToLower(strings.TrimSpace(command))
	ev, ok := inputAliases[key]
	if !ok {
		return InputEvent{}, fmt.Errorf("%w: %q", ErrUnknownInput, command)
	}

	if ev.Kind == InputMoveChanged && key == "move" {
		if len(args) == 0 {
			return InputEvent{}, fmt.Errorf("%w: move needs an x component", ErrUnknownInput)
		}
		x, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return InputEvent{}, fmt.Errorf("%w: bad move x %q", ErrUnknownInput, args[0])
		}
		var y float64
		if len(args) > 1 {
			y, err = strconv.ParseFloat(args[1], 64)
			if err != nil {
				return InputEvent{}, fmt.Errorf("%w: bad move y %q", ErrUnknownInput, args[1])
			}
		}
		ev.Vector = Vec2{X: x, Y: y}
	}
	return ev, nil
}
