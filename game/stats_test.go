package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomHistoryResolvesPlayers(t *testing.T) {
	e, fs := newTestEngine()
	stats := NewStats(fs)
	alice, bob := seatTwoPlayers(t, e)

	for _, m := range []struct {
		playerID int64
		position int
	}{
		{alice.ID, 0}, {bob.ID, 3}, {alice.ID, 1}, {bob.ID, 4}, {alice.ID, 2},
	} {
		_, err := e.MakeMove("r1", m.playerID, m.position)
		require.NoError(t, err)
	}

	history, err := stats.RoomHistory("r1")
	require.NoError(t, err)
	require.Len(t, history, 1)

	entry := history[0]
	assert.Equal(t, StatusFinished, entry.Game.Status)
	assert.Equal(t, "Alice", entry.PlayerX.Name)
	assert.Equal(t, "Bob", entry.PlayerO.Name)
	require.NotNil(t, entry.Winner)
	assert.Equal(t, "Alice", entry.Winner.Name)
}

func TestRoomHistoryExcludesUnfinishedGames(t *testing.T) {
	e, fs := newTestEngine()
	stats := NewStats(fs)
	seatTwoPlayers(t, e)

	history, err := stats.RoomHistory("r1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestTotals(t *testing.T) {
	e, fs := newTestEngine()
	stats := NewStats(fs)
	seatTwoPlayers(t, e)

	totals, err := stats.Totals()
	require.NoError(t, err)
	assert.Equal(t, int64(1), totals.TotalGames)
	assert.Equal(t, int64(2), totals.TotalPlayers)
}

func TestPlayerByName(t *testing.T) {
	e, fs := newTestEngine()
	stats := NewStats(fs)

	_, err := e.JoinRoom("r1", "Alice")
	require.NoError(t, err)

	player, err := stats.PlayerByName("Alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", player.Name)

	_, err = stats.PlayerByName("nobody")
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}
