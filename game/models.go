package game

import "tictactoe/store"

const (
	StatusWaiting    = "waiting"
	StatusInProgress = "in_progress"
	StatusFinished   = "finished"
)

const (
	SymbolX = "X"
	SymbolO = "O"
)

// emptyBoard is nine blank cells, row-major.
const emptyBoard = "         "

// Seat identifies the player occupying one side of the board. The zero
// value is an empty seat; a nullable pointer is never used for seats.
type Seat struct {
	PlayerID int64 `json:"playerId"`
	Occupied bool  `json:"occupied"`
}

func SeatFor(playerID int64) Seat {
	return Seat{PlayerID: playerID, Occupied: true}
}

// Is reports whether the seat is occupied by the given player.
func (s Seat) Is(playerID int64) bool {
	return s.Occupied && s.PlayerID == playerID
}

// Game is the authoritative state of one match in a room.
type Game struct {
	ID          int64  `json:"id"`
	RoomID      string `json:"roomID"`
	SeatX       Seat   `json:"seatX"`
	SeatO       Seat   `json:"seatO"`
	Winner      Seat   `json:"winner"`
	Status      string `json:"status"`
	Board       string `json:"board"`
	CurrentTurn string `json:"currentTurn"`
}

// JoinResult is the outcome of seating or observing a joining player.
type JoinResult struct {
	Game     *Game         `json:"game"`
	Player   *store.Player `json:"player"`
	Observer bool          `json:"observer"`
}

func recordToGame(r *store.GameRecord) *Game {
	g := &Game{
		ID:          r.ID,
		RoomID:      r.RoomID,
		Status:      r.Status,
		Board:       r.Board,
		CurrentTurn: r.CurrentTurn,
	}
	if r.PlayerXID.Valid {
		g.SeatX = SeatFor(r.PlayerXID.Int64)
	}
	if r.PlayerOID.Valid {
		g.SeatO = SeatFor(r.PlayerOID.Int64)
	}
	if r.WinnerID.Valid {
		g.Winner = SeatFor(r.WinnerID.Int64)
	}
	return g
}
