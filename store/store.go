package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrActiveGameExists is returned by CreateGame when the room already has a
// game that has not finished. Callers are expected to re-read the room and
// seat against the surviving record.
var ErrActiveGameExists = errors.New("room already has an active game")

type Store interface {
	GetOrCreatePlayerByName(name string) (*Player, error)
	GetPlayerByID(id int64) (*Player, error)
	GetPlayerByName(name string) (*Player, error)
	UpdatePlayer(player *Player) error

	CreateGame(game *GameRecord) error
	UpdateGame(game *GameRecord) error
	FinishGame(game *GameRecord, deltas []PlayerStatDelta) error
	RetireGame(id int64) error
	GetGameByRoomID(roomID string) (*GameRecord, error)

	GetTopPlayers(limit int) ([]*Player, error)
	CountGames() (int64, error)
	CountPlayers() (int64, error)
	GetGamesByRoomID(roomID string) ([]*GameRecord, error)

	Close() error
}

type Player struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Wins      int    `json:"wins"`
	Draws     int    `json:"draws"`
	Losses    int    `json:"losses"`
	CreatedAt string `json:"-"`
}

// GameRecord is the persisted form of a match. Seat and winner columns are
// nullable references into the players table. A retired record is kept for
// history but is no longer the game new joiners attach to.
type GameRecord struct {
	ID          int64
	RoomID      string
	PlayerXID   sql.NullInt64
	PlayerOID   sql.NullInt64
	WinnerID    sql.NullInt64
	Status      string
	Board       string
	CurrentTurn string
	Retired     bool
	CreatedAt   string
	UpdatedAt   string
}

// PlayerStatDelta is one player's cumulative-stat increment, applied
// atomically with the final game update in FinishGame.
type PlayerStatDelta struct {
	PlayerID int64
	Wins     int
	Draws    int
	Losses   int
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetOrCreatePlayerByName(name string) (*Player, error) {
	_, err := s.db.Exec(
		"INSERT INTO players (name) VALUES (?) ON CONFLICT(name) DO NOTHING",
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert player: %w", err)
	}
	player, err := s.GetPlayerByName(name)
	if err != nil {
		return nil, err
	}
	if player == nil {
		return nil, fmt.Errorf("player %q missing after upsert", name)
	}
	return player, nil
}

func (s *SQLiteStore) GetPlayerByName(name string) (*Player, error) {
	player := &Player{}
	err := s.db.QueryRow(
		"SELECT id, name, wins, draws, losses, created_at FROM players WHERE name = ?",
		name,
	).Scan(&player.ID, &player.Name, &player.Wins, &player.Draws, &player.Losses, &player.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return player, nil
}

func (s *SQLiteStore) GetPlayerByID(id int64) (*Player, error) {
	player := &Player{}
	err := s.db.QueryRow(
		"SELECT id, name, wins, draws, losses, created_at FROM players WHERE id = ?",
		id,
	).Scan(&player.ID, &player.Name, &player.Wins, &player.Draws, &player.Losses, &player.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return player, nil
}

func (s *SQLiteStore) UpdatePlayer(player *Player) error {
	_, err := s.db.Exec(
		"UPDATE players SET wins = ?, draws = ?, losses = ? WHERE id = ?",
		player.Wins, player.Draws, player.Losses, player.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update player: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreateGame(game *GameRecord) error {
	result, err := s.db.Exec(
		"INSERT INTO games (room_id, player_x_id, player_o_id, status, board, current_turn) VALUES (?, ?, ?, ?, ?, ?)",
		game.RoomID, game.PlayerXID, game.PlayerOID, game.Status, game.Board, game.CurrentTurn,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrActiveGameExists
		}
		return fmt.Errorf("failed to create game: %w", err)
	}
	game.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read game id: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateGame(game *GameRecord) error {
	_, err := s.db.Exec(
		`UPDATE games
		 SET player_x_id = ?, player_o_id = ?, winner_id = ?, status = ?, board = ?, current_turn = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		game.PlayerXID, game.PlayerOID, game.WinnerID, game.Status, game.Board, game.CurrentTurn, game.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update game: %w", err)
	}
	return nil
}

// FinishGame commits the terminal game state and the resulting stat
// increments in one transaction, so recorded outcomes and win/draw/loss
// counts cannot diverge.
func (s *SQLiteStore) FinishGame(game *GameRecord, deltas []PlayerStatDelta) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE games
		 SET player_x_id = ?, player_o_id = ?, winner_id = ?, status = ?, board = ?, current_turn = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		game.PlayerXID, game.PlayerOID, game.WinnerID, game.Status, game.Board, game.CurrentTurn, game.ID,
	); err != nil {
		return fmt.Errorf("failed to update game: %w", err)
	}

	for _, d := range deltas {
		if _, err := tx.Exec(
			"UPDATE players SET wins = wins + ?, draws = draws + ?, losses = losses + ? WHERE id = ?",
			d.Wins, d.Draws, d.Losses, d.PlayerID,
		); err != nil {
			return fmt.Errorf("failed to update player stats: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RetireGame marks a game as no longer joinable. The record stays for
// room history and statistics.
func (s *SQLiteStore) RetireGame(id int64) error {
	_, err := s.db.Exec(
		"UPDATE games SET retired = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to retire game: %w", err)
	}
	return nil
}

// GetGameByRoomID returns the room's live game (the latest record not yet
// retired), or nil when the room has none.
func (s *SQLiteStore) GetGameByRoomID(roomID string) (*GameRecord, error) {
	game := &GameRecord{}
	err := s.db.QueryRow(
		`SELECT id, room_id, player_x_id, player_o_id, winner_id, status, board, current_turn, retired, created_at, updated_at
		 FROM games WHERE room_id = ? AND retired = 0
		 ORDER BY id DESC LIMIT 1`,
		roomID,
	).Scan(&game.ID, &game.RoomID, &game.PlayerXID, &game.PlayerOID, &game.WinnerID,
		&game.Status, &game.Board, &game.CurrentTurn, &game.Retired, &game.CreatedAt, &game.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return game, nil
}

func (s *SQLiteStore) GetTopPlayers(limit int) ([]*Player, error) {
	rows, err := s.db.Query(
		"SELECT id, name, wins, draws, losses, created_at FROM players ORDER BY wins DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get top players: %w", err)
	}
	defer rows.Close()

	var players []*Player
	for rows.Next() {
		player := &Player{}
		if err := rows.Scan(&player.ID, &player.Name, &player.Wins, &player.Draws, &player.Losses, &player.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, player)
	}
	return players, rows.Err()
}

func (s *SQLiteStore) CountGames() (int64, error) {
	var count int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM games").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count games: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) CountPlayers() (int64, error) {
	var count int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM players").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count players: %w", err)
	}
	return count, nil
}

// GetGamesByRoomID returns the room's finished games, most recent first.
func (s *SQLiteStore) GetGamesByRoomID(roomID string) ([]*GameRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, room_id, player_x_id, player_o_id, winner_id, status, board, current_turn, retired, created_at, updated_at
		 FROM games WHERE room_id = ? AND status = 'finished'
		 ORDER BY id DESC`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get room games: %w", err)
	}
	defer rows.Close()

	var games []*GameRecord
	for rows.Next() {
		game := &GameRecord{}
		if err := rows.Scan(&game.ID, &game.RoomID, &game.PlayerXID, &game.PlayerOID, &game.WinnerID,
			&game.Status, &game.Board, &game.CurrentTurn, &game.Retired, &game.CreatedAt, &game.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, game)
	}
	return games, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
