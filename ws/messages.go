package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"tictactoe/game"
	"tictactoe/store"
)

// inboundFrame is the wire envelope for everything a client sends.
type inboundFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type movePayload struct {
	Position int `json:"position"`
}

// command is the closed set of actions a connection can request. Frames
// with a type outside this set are logged and ignored.
type command interface{ isCommand() }

type moveCommand struct{ position int }
type resetCommand struct{}
type confirmStartCommand struct{}
type playAgainCommand struct{}
type playAgainMenuCommand struct{}

func (moveCommand) isCommand()          {}
func (resetCommand) isCommand()         {}
func (confirmStartCommand) isCommand()  {}
func (playAgainCommand) isCommand()     {}
func (playAgainMenuCommand) isCommand() {}

var errUnknownCommand = errors.New("unknown command type")

// parseCommand decodes one wire frame into a command.
func parseCommand(data []byte) (command, error) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	switch frame.Type {
	case "move":
		if frame.Payload == nil {
			return nil, errors.New("move frame missing payload")
		}
		var p movePayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return nil, fmt.Errorf("malformed move payload: %w", err)
		}
		return moveCommand{position: p.Position}, nil
	case "reset":
		return resetCommand{}, nil
	case "confirmGameStart":
		return confirmStartCommand{}, nil
	case "playAgainRequest":
		return playAgainCommand{}, nil
	case "play_again_menu_request":
		return playAgainMenuCommand{}, nil
	default:
		return nil, errUnknownCommand
	}
}

type seatPlayers struct {
	X *store.Player `json:"X"`
	O *store.Player `json:"O"`
}

// stateUpdate is the authoritative room snapshot pushed to every
// connection after a successful join, move, or reset.
type stateUpdate struct {
	Type       string      `json:"type"`
	GameState  *game.Game  `json:"gameState"`
	Players    seatPlayers `json:"players"`
	IsObserver bool        `json:"isObserver"`
}

// marshalStateUpdate produces the two per-audience variants of one
// broadcast; seated players and observers differ only in the flag.
func marshalStateUpdate(g *game.Game, playerX, playerO *store.Player) (seated, observer []byte, err error) {
	update := stateUpdate{
		Type:      "gameStateUpdate",
		GameState: g,
		Players:   seatPlayers{X: playerX, O: playerO},
	}
	if seated, err = json.Marshal(update); err != nil {
		return nil, nil, err
	}
	update.IsObserver = true
	if observer, err = json.Marshal(update); err != nil {
		return nil, nil, err
	}
	return seated, observer, nil
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func marshalError(message string) []byte {
	data, _ := json.Marshal(errorFrame{Type: "error", Message: message})
	return data
}

type playAgainFrame struct {
	Type             string `json:"type"`
	RequestingPlayer string `json:"requestingPlayer"`
}

func marshalPlayAgain(playerName string) []byte {
	data, _ := json.Marshal(playAgainFrame{Type: "playAgainRequest", RequestingPlayer: playerName})
	return data
}

func marshalPlayAgainMenu(playerName string) []byte {
	data, _ := json.Marshal(playAgainFrame{Type: "play_again_menu_request", RequestingPlayer: playerName})
	return data
}
