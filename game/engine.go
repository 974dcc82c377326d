package game

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"tictactoe/store"
)

var (
	ErrInvalidPlayerName = errors.New("player name must be between 1 and 15 characters")
	ErrOutOfBounds       = errors.New("invalid move: position is out of bounds")
	ErrGameNotInProgress = errors.New("game is not currently in progress")
	ErrCellOccupied      = errors.New("invalid move: position is already taken")
	ErrNotYourTurn       = errors.New("it is not your turn")
	ErrNotSeated         = errors.New("only seated players can do that")
	ErrGameNotFound      = errors.New("game not found")
	ErrPlayerNotFound    = errors.New("player not found")
	ErrNameTaken         = errors.New("a player with this name already exists in the room")
)

// Engine owns the rules of the game: seating, moves, outcome detection,
// reset, and the resulting statistics updates. All mutations for one room
// run under that room's mutex, so concurrent read-modify-write cycles
// against the store cannot interleave.
type Engine struct {
	store store.Store
	log   *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewEngine(st store.Store, log *zap.Logger) *Engine {
	return &Engine{
		store: st,
		log:   log,
		locks: make(map[string]*sync.Mutex),
	}
}

// roomLock returns the mutex serializing mutations for a room. Entries are
// a few words each and are reused across rematches, so they are never
// collected.
func (e *Engine) roomLock(roomID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, ok := e.locks[roomID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[roomID] = l
	}
	return l
}

// JoinRoom upserts the player record and seats the player or attaches
// them as an observer of the room's game, creating the game when the room
// is empty. Filling the second seat starts the game with X to move.
func (e *Engine) JoinRoom(roomID, playerName string) (*JoinResult, error) {
	name := SanitizeName(playerName)
	if err := validateName(name); err != nil {
		return nil, err
	}

	l := e.roomLock(roomID)
	l.Lock()
	defer l.Unlock()

	player, err := e.store.GetOrCreatePlayerByName(name)
	if err != nil {
		return nil, fmt.Errorf("upsert player: %w", err)
	}

	rec, err := e.store.GetGameByRoomID(roomID)
	if err != nil {
		return nil, err
	}

	if rec == nil {
		rec = &store.GameRecord{
			RoomID:      roomID,
			PlayerXID:   sql.NullInt64{Int64: player.ID, Valid: true},
			Status:      StatusWaiting,
			Board:       emptyBoard,
			CurrentTurn: SymbolX,
		}
		err := e.store.CreateGame(rec)
		if err == nil {
			e.log.Info("room created",
				zap.String("room", roomID), zap.String("player", player.Name))
			return &JoinResult{Game: recordToGame(rec), Player: player}, nil
		}
		if !errors.Is(err, store.ErrActiveGameExists) {
			return nil, fmt.Errorf("create game: %w", err)
		}
		// Lost a creation race for this room id: seat against the record
		// that survived instead of producing a duplicate.
		rec, err = e.store.GetGameByRoomID(roomID)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, ErrGameNotFound
		}
	}

	return e.seat(rec, player)
}

// seat places the player into the open O seat or attaches them as an
// observer; a name already seated in the room is rejected. Called with
// the room lock held.
func (e *Engine) seat(rec *store.GameRecord, player *store.Player) (*JoinResult, error) {
	if err := e.checkNameCollision(rec, player); err != nil {
		return nil, err
	}

	if rec.Status == StatusWaiting && rec.PlayerXID.Valid && !rec.PlayerOID.Valid {
		rec.PlayerOID = sql.NullInt64{Int64: player.ID, Valid: true}
		rec.Status = StatusInProgress
		rec.CurrentTurn = SymbolX
		if err := e.store.UpdateGame(rec); err != nil {
			return nil, fmt.Errorf("seat player: %w", err)
		}
		e.log.Info("game started",
			zap.String("room", rec.RoomID), zap.String("player", player.Name))
		return &JoinResult{Game: recordToGame(rec), Player: player}, nil
	}

	return &JoinResult{Game: recordToGame(rec), Player: player, Observer: true}, nil
}

// checkNameCollision rejects a joiner whose name matches a currently
// seated player, ignoring case. Players are identified by name, so a
// seated player's own duplicate join collides with itself too.
func (e *Engine) checkNameCollision(rec *store.GameRecord, player *store.Player) error {
	for _, seatID := range []sql.NullInt64{rec.PlayerXID, rec.PlayerOID} {
		if !seatID.Valid {
			continue
		}
		seated, err := e.store.GetPlayerByID(seatID.Int64)
		if err != nil {
			return err
		}
		if seated != nil && strings.EqualFold(seated.Name, player.Name) {
			return ErrNameTaken
		}
	}
	return nil
}

// MakeMove validates and applies one move, then settles the outcome:
// a completed triple finishes the game and credits the winner, a full
// board finishes it as a draw, anything else passes the turn.
func (e *Engine) MakeMove(roomID string, playerID int64, position int) (*Game, error) {
	l := e.roomLock(roomID)
	l.Lock()
	defer l.Unlock()

	rec, err := e.store.GetGameByRoomID(roomID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrGameNotFound
	}
	if rec.Status != StatusInProgress {
		return nil, ErrGameNotInProgress
	}
	if position < 0 || position > 8 {
		return nil, ErrOutOfBounds
	}
	if rec.Board[position] != ' ' {
		return nil, ErrCellOccupied
	}

	seatID := rec.PlayerXID
	if rec.CurrentTurn == SymbolO {
		seatID = rec.PlayerOID
	}
	if !seatID.Valid || seatID.Int64 != playerID {
		return nil, ErrNotYourTurn
	}

	board := []byte(rec.Board)
	board[position] = rec.CurrentTurn[0]
	rec.Board = string(board)

	switch {
	case winnerSymbol(rec.Board) != "":
		if err := e.finishWithWinner(rec); err != nil {
			return nil, err
		}
	case boardFull(rec.Board):
		if err := e.finishWithDraw(rec); err != nil {
			return nil, err
		}
	default:
		if rec.CurrentTurn == SymbolX {
			rec.CurrentTurn = SymbolO
		} else {
			rec.CurrentTurn = SymbolX
		}
		if err := e.store.UpdateGame(rec); err != nil {
			return nil, fmt.Errorf("apply move: %w", err)
		}
	}

	return recordToGame(rec), nil
}

func (e *Engine) finishWithWinner(rec *store.GameRecord) error {
	winnerSeat, loserSeat := rec.PlayerXID, rec.PlayerOID
	if winnerSymbol(rec.Board) == SymbolO {
		winnerSeat, loserSeat = rec.PlayerOID, rec.PlayerXID
	}

	rec.Status = StatusFinished
	rec.WinnerID = winnerSeat

	var deltas []store.PlayerStatDelta
	if winnerSeat.Valid {
		deltas = append(deltas, store.PlayerStatDelta{PlayerID: winnerSeat.Int64, Wins: 1})
	}
	if loserSeat.Valid {
		deltas = append(deltas, store.PlayerStatDelta{PlayerID: loserSeat.Int64, Losses: 1})
	}
	if err := e.store.FinishGame(rec, deltas); err != nil {
		return fmt.Errorf("finish game: %w", err)
	}

	e.log.Info("game finished",
		zap.String("room", rec.RoomID), zap.Int64("winner", winnerSeat.Int64))
	return nil
}

func (e *Engine) finishWithDraw(rec *store.GameRecord) error {
	rec.Status = StatusFinished
	rec.WinnerID = sql.NullInt64{}

	var deltas []store.PlayerStatDelta
	for _, seatID := range []sql.NullInt64{rec.PlayerXID, rec.PlayerOID} {
		if seatID.Valid {
			deltas = append(deltas, store.PlayerStatDelta{PlayerID: seatID.Int64, Draws: 1})
		}
	}
	if err := e.store.FinishGame(rec, deltas); err != nil {
		return fmt.Errorf("finish game: %w", err)
	}

	e.log.Info("game drawn", zap.String("room", rec.RoomID))
	return nil
}

// Reset clears the board and restarts the current game with X to move.
// Only a seated player may reset, and only once the game has actually
// started; cumulative statistics are untouched.
func (e *Engine) Reset(roomID string, playerID int64) (*Game, error) {
	l := e.roomLock(roomID)
	l.Lock()
	defer l.Unlock()

	rec, err := e.store.GetGameByRoomID(roomID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrGameNotFound
	}
	if !rec.PlayerXID.Valid || !rec.PlayerOID.Valid {
		return nil, ErrGameNotInProgress
	}
	if !(rec.PlayerXID.Int64 == playerID || rec.PlayerOID.Int64 == playerID) {
		return nil, ErrNotSeated
	}

	rec.Board = emptyBoard
	rec.Status = StatusInProgress
	rec.CurrentTurn = SymbolX
	rec.WinnerID = sql.NullInt64{}
	if err := e.store.UpdateGame(rec); err != nil {
		return nil, fmt.Errorf("reset game: %w", err)
	}

	e.log.Info("game reset",
		zap.String("room", roomID), zap.Int64("player", playerID))
	return recordToGame(rec), nil
}

// RetireRoom marks the room's live game as retired once the last
// connection has left. The record stays in history; the next joiner
// starts a fresh game. stillEmpty re-checks occupancy under the room
// lock: a join that landed between the last leave and this call keeps
// the game alive.
func (e *Engine) RetireRoom(roomID string, stillEmpty func() bool) error {
	l := e.roomLock(roomID)
	l.Lock()
	defer l.Unlock()

	if stillEmpty != nil && !stillEmpty() {
		return nil
	}

	rec, err := e.store.GetGameByRoomID(roomID)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	if err := e.store.RetireGame(rec.ID); err != nil {
		return err
	}

	e.log.Info("room retired", zap.String("room", roomID))
	return nil
}

// RoomState returns the room's active game with both seat players
// resolved, for broadcasting.
func (e *Engine) RoomState(roomID string) (*Game, *store.Player, *store.Player, error) {
	rec, err := e.store.GetGameByRoomID(roomID)
	if err != nil {
		return nil, nil, nil, err
	}
	if rec == nil {
		return nil, nil, nil, ErrGameNotFound
	}

	var playerX, playerO *store.Player
	if rec.PlayerXID.Valid {
		if playerX, err = e.store.GetPlayerByID(rec.PlayerXID.Int64); err != nil {
			return nil, nil, nil, err
		}
	}
	if rec.PlayerOID.Valid {
		if playerO, err = e.store.GetPlayerByID(rec.PlayerOID.Int64); err != nil {
			return nil, nil, nil, err
		}
	}
	return recordToGame(rec), playerX, playerO, nil
}
