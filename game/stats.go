package game

import "tictactoe/store"

// Stats is the read-only reporting side: rankings, totals, and room
// history over already-committed games.
type Stats struct {
	store store.Store
}

func NewStats(st store.Store) *Stats {
	return &Stats{store: st}
}

type Ranking struct {
	Players []*store.Player `json:"players"`
}

type Totals struct {
	TotalGames   int64 `json:"totalGames"`
	TotalPlayers int64 `json:"totalPlayers"`
}

// HistoryEntry is one finished game with its seat players resolved.
type HistoryEntry struct {
	Game    *Game         `json:"game"`
	PlayerX *store.Player `json:"playerX,omitempty"`
	PlayerO *store.Player `json:"playerO,omitempty"`
	Winner  *store.Player `json:"winner,omitempty"`
}

// Ranking returns the top players ordered by wins.
func (s *Stats) Ranking(limit int) (*Ranking, error) {
	players, err := s.store.GetTopPlayers(limit)
	if err != nil {
		return nil, err
	}
	return &Ranking{Players: players}, nil
}

func (s *Stats) Totals() (*Totals, error) {
	totalGames, err := s.store.CountGames()
	if err != nil {
		return nil, err
	}
	totalPlayers, err := s.store.CountPlayers()
	if err != nil {
		return nil, err
	}
	return &Totals{TotalGames: totalGames, TotalPlayers: totalPlayers}, nil
}

// RoomHistory returns the finished games played in a room, newest first.
func (s *Stats) RoomHistory(roomID string) ([]*HistoryEntry, error) {
	records, err := s.store.GetGamesByRoomID(roomID)
	if err != nil {
		return nil, err
	}

	entries := make([]*HistoryEntry, 0, len(records))
	for _, rec := range records {
		entry := &HistoryEntry{Game: recordToGame(rec)}
		if rec.PlayerXID.Valid {
			if entry.PlayerX, err = s.store.GetPlayerByID(rec.PlayerXID.Int64); err != nil {
				return nil, err
			}
		}
		if rec.PlayerOID.Valid {
			if entry.PlayerO, err = s.store.GetPlayerByID(rec.PlayerOID.Int64); err != nil {
				return nil, err
			}
		}
		if rec.WinnerID.Valid {
			if entry.Winner, err = s.store.GetPlayerByID(rec.WinnerID.Int64); err != nil {
				return nil, err
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// PlayerByName returns one player's cumulative record.
func (s *Stats) PlayerByName(name string) (*store.Player, error) {
	player, err := s.store.GetPlayerByName(SanitizeName(name))
	if err != nil {
		return nil, err
	}
	if player == nil {
		return nil, ErrPlayerNotFound
	}
	return player, nil
}
