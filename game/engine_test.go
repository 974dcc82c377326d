package game

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tictactoe/store"
)

// fakeStore is an in-memory store.Store with the same uniqueness rules as
// the sqlite adapter: unique player names, one live game per room.
type fakeStore struct {
	mu      sync.Mutex
	nextID  int64
	players map[int64]*store.Player
	games   map[int64]*store.GameRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		players: make(map[int64]*store.Player),
		games:   make(map[int64]*store.GameRecord),
	}
}

func (f *fakeStore) GetOrCreatePlayerByName(name string) (*store.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.players {
		if p.Name == name {
			cp := *p
			return &cp, nil
		}
	}
	f.nextID++
	p := &store.Player{ID: f.nextID, Name: name}
	f.players[p.ID] = p
	cp := *p
	return &cp, nil
}

func (f *fakeStore) GetPlayerByID(id int64) (*store.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.players[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) GetPlayerByName(name string) (*store.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.players {
		if p.Name == name {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) UpdatePlayer(player *store.Player) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *player
	f.players[player.ID] = &cp
	return nil
}

func (f *fakeStore) CreateGame(game *store.GameRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.games {
		if g.RoomID == game.RoomID && !g.Retired {
			return store.ErrActiveGameExists
		}
	}
	f.nextID++
	game.ID = f.nextID
	cp := *game
	f.games[game.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateGame(game *store.GameRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *game
	f.games[game.ID] = &cp
	return nil
}

func (f *fakeStore) FinishGame(game *store.GameRecord, deltas []store.PlayerStatDelta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *game
	f.games[game.ID] = &cp
	for _, d := range deltas {
		p, ok := f.players[d.PlayerID]
		if !ok {
			continue
		}
		p.Wins += d.Wins
		p.Draws += d.Draws
		p.Losses += d.Losses
	}
	return nil
}

func (f *fakeStore) RetireGame(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if g, ok := f.games[id]; ok {
		g.Retired = true
	}
	return nil
}

func (f *fakeStore) GetGameByRoomID(roomID string) (*store.GameRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *store.GameRecord
	for _, g := range f.games {
		if g.RoomID == roomID && !g.Retired && (latest == nil || g.ID > latest.ID) {
			latest = g
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeStore) GetTopPlayers(limit int) ([]*store.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var players []*store.Player
	for _, p := range f.players {
		cp := *p
		players = append(players, &cp)
	}
	if len(players) > limit {
		players = players[:limit]
	}
	return players, nil
}

func (f *fakeStore) CountGames() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.games)), nil
}

func (f *fakeStore) CountPlayers() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.players)), nil
}

func (f *fakeStore) GetGamesByRoomID(roomID string) ([]*store.GameRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var games []*store.GameRecord
	for _, g := range f.games {
		if g.RoomID == roomID && g.Status == StatusFinished {
			cp := *g
			games = append(games, &cp)
		}
	}
	return games, nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) gameCount(roomID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, g := range f.games {
		if g.RoomID == roomID {
			n++
		}
	}
	return n
}

func newTestEngine() (*Engine, *fakeStore) {
	fs := newFakeStore()
	return NewEngine(fs, zap.NewNop()), fs
}

func TestJoinCreatesWaitingGame(t *testing.T) {
	e, _ := newTestEngine()

	res, err := e.JoinRoom("r1", "Alice")
	require.NoError(t, err)

	assert.Equal(t, StatusWaiting, res.Game.Status)
	assert.True(t, res.Game.SeatX.Is(res.Player.ID))
	assert.False(t, res.Game.SeatO.Occupied)
	assert.False(t, res.Observer)
	assert.Equal(t, "         ", res.Game.Board)
}

func TestSecondJoinStartsGame(t *testing.T) {
	e, _ := newTestEngine()

	alice, err := e.JoinRoom("r1", "Alice")
	require.NoError(t, err)
	bob, err := e.JoinRoom("r1", "Bob")
	require.NoError(t, err)

	assert.Equal(t, StatusInProgress, bob.Game.Status)
	assert.Equal(t, SymbolX, bob.Game.CurrentTurn)
	assert.True(t, bob.Game.SeatX.Is(alice.Player.ID))
	assert.True(t, bob.Game.SeatO.Is(bob.Player.ID))
	assert.False(t, bob.Observer)
}

func TestJoinNameCollisionCaseInsensitive(t *testing.T) {
	e, _ := newTestEngine()

	_, err := e.JoinRoom("r1", "Alice")
	require.NoError(t, err)

	_, err = e.JoinRoom("r1", "alice")
	assert.ErrorIs(t, err, ErrNameTaken)
}

func TestJoinSeatedNameRejected(t *testing.T) {
	e, fs := newTestEngine()

	first, err := e.JoinRoom("r1", "Alice")
	require.NoError(t, err)

	// A second join under a seated name is a collision, not a reseat,
	// even when it is the player's own name verbatim.
	_, err = e.JoinRoom("r1", "Alice")
	assert.ErrorIs(t, err, ErrNameTaken)

	g, _, _, err := e.RoomState("r1")
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, g.Status)
	assert.True(t, g.SeatX.Is(first.Player.ID))
	assert.Equal(t, 1, fs.gameCount("r1"))
}

func TestThirdJoinBecomesObserver(t *testing.T) {
	e, _ := newTestEngine()

	_, err := e.JoinRoom("r1", "Alice")
	require.NoError(t, err)
	_, err = e.JoinRoom("r1", "Bob")
	require.NoError(t, err)

	carol, err := e.JoinRoom("r1", "Carol")
	require.NoError(t, err)

	assert.True(t, carol.Observer)
	assert.False(t, carol.Game.SeatX.Is(carol.Player.ID))
	assert.False(t, carol.Game.SeatO.Is(carol.Player.ID))
}

func TestJoinRejectsBadNames(t *testing.T) {
	e, _ := newTestEngine()

	_, err := e.JoinRoom("r1", "")
	assert.ErrorIs(t, err, ErrInvalidPlayerName)

	_, err = e.JoinRoom("r1", "abcdefghijklmnop") // 16 chars
	assert.ErrorIs(t, err, ErrInvalidPlayerName)

	// Markup-only names sanitize down to nothing.
	_, err = e.JoinRoom("r1", "<script></script>")
	assert.ErrorIs(t, err, ErrInvalidPlayerName)
}

func TestJoinSanitizesName(t *testing.T) {
	e, _ := newTestEngine()

	res, err := e.JoinRoom("r1", "  <b>Alice</b>  ")
	require.NoError(t, err)
	assert.Equal(t, "Alice", res.Player.Name)
}

func TestConcurrentJoinsCreateOneGame(t *testing.T) {
	e, fs := newTestEngine()

	var wg sync.WaitGroup
	for _, name := range []string{"Alice", "Bob"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_, err := e.JoinRoom("r1", name)
			assert.NoError(t, err)
		}(name)
	}
	wg.Wait()

	require.Equal(t, 1, fs.gameCount("r1"))

	game, _, _, err := e.RoomState("r1")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, game.Status)
	assert.True(t, game.SeatX.Occupied)
	assert.True(t, game.SeatO.Occupied)
	assert.NotEqual(t, game.SeatX.PlayerID, game.SeatO.PlayerID)
}

func seatTwoPlayers(t *testing.T, e *Engine) (alice, bob *store.Player) {
	t.Helper()
	a, err := e.JoinRoom("r1", "Alice")
	require.NoError(t, err)
	b, err := e.JoinRoom("r1", "Bob")
	require.NoError(t, err)
	return a.Player, b.Player
}

func TestMoveAlternatesTurns(t *testing.T) {
	e, _ := newTestEngine()
	alice, bob := seatTwoPlayers(t, e)

	g, err := e.MakeMove("r1", alice.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, byte('X'), g.Board[4])
	assert.Equal(t, SymbolO, g.CurrentTurn)

	g, err = e.MakeMove("r1", bob.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, byte('O'), g.Board[0])
	assert.Equal(t, SymbolX, g.CurrentTurn)
}

func TestMoveValidation(t *testing.T) {
	e, _ := newTestEngine()

	_, err := e.MakeMove("missing", 1, 0)
	assert.ErrorIs(t, err, ErrGameNotFound)

	alice, err2 := e.JoinRoom("r1", "Alice")
	require.NoError(t, err2)

	// One seat filled: not in progress yet.
	_, err = e.MakeMove("r1", alice.Player.ID, 0)
	assert.ErrorIs(t, err, ErrGameNotInProgress)

	bobRes, err2 := e.JoinRoom("r1", "Bob")
	require.NoError(t, err2)
	bob := bobRes.Player

	_, err = e.MakeMove("r1", alice.Player.ID, 9)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	_, err = e.MakeMove("r1", alice.Player.ID, -1)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	// O may not move first.
	_, err = e.MakeMove("r1", bob.ID, 0)
	assert.ErrorIs(t, err, ErrNotYourTurn)

	_, err = e.MakeMove("r1", alice.Player.ID, 0)
	require.NoError(t, err)
	_, err = e.MakeMove("r1", bob.ID, 0)
	assert.ErrorIs(t, err, ErrCellOccupied)

	// Failed moves leave the board untouched.
	g, _, _, err := e.RoomState("r1")
	require.NoError(t, err)
	assert.Equal(t, "X        ", g.Board)
	assert.Equal(t, SymbolO, g.CurrentTurn)
}

func TestWinFinishesGameAndStats(t *testing.T) {
	e, fs := newTestEngine()
	alice, bob := seatTwoPlayers(t, e)

	moves := []struct {
		playerID int64
		position int
	}{
		{alice.ID, 0}, {bob.ID, 3}, {alice.ID, 1}, {bob.ID, 4}, {alice.ID, 2},
	}
	var g *Game
	var err error
	for _, m := range moves {
		g, err = e.MakeMove("r1", m.playerID, m.position)
		require.NoError(t, err)
	}

	assert.Equal(t, StatusFinished, g.Status)
	assert.True(t, g.Winner.Is(alice.ID))

	winner, _ := fs.GetPlayerByID(alice.ID)
	loser, _ := fs.GetPlayerByID(bob.ID)
	assert.Equal(t, 1, winner.Wins)
	assert.Equal(t, 0, winner.Losses)
	assert.Equal(t, 1, loser.Losses)
	assert.Equal(t, 0, loser.Wins)

	// No further moves once finished.
	_, err = e.MakeMove("r1", bob.ID, 5)
	assert.ErrorIs(t, err, ErrGameNotInProgress)
}

func TestDrawFinishesGameAndStats(t *testing.T) {
	e, fs := newTestEngine()
	alice, bob := seatTwoPlayers(t, e)

	// Ends with board XOXXOOOXX: full, no triple.
	moves := []struct {
		playerID int64
		position int
	}{
		{alice.ID, 0}, {bob.ID, 1}, {alice.ID, 2}, {bob.ID, 4}, {alice.ID, 3},
		{bob.ID, 5}, {alice.ID, 7}, {bob.ID, 6}, {alice.ID, 8},
	}
	var g *Game
	var err error
	for _, m := range moves {
		g, err = e.MakeMove("r1", m.playerID, m.position)
		require.NoError(t, err)
	}

	assert.Equal(t, StatusFinished, g.Status)
	assert.False(t, g.Winner.Occupied)
	assert.Equal(t, "XOXXOOOXX", g.Board)

	for _, id := range []int64{alice.ID, bob.ID} {
		p, _ := fs.GetPlayerByID(id)
		assert.Equal(t, 1, p.Draws)
		assert.Equal(t, 0, p.Wins)
		assert.Equal(t, 0, p.Losses)
	}
}

func TestResetRequiresSeatedPlayer(t *testing.T) {
	e, _ := newTestEngine()
	seatTwoPlayers(t, e)

	carol, err := e.JoinRoom("r1", "Carol")
	require.NoError(t, err)
	require.True(t, carol.Observer)

	_, err = e.Reset("r1", carol.Player.ID)
	assert.ErrorIs(t, err, ErrNotSeated)
}

func TestResetBeforeOpponentJoins(t *testing.T) {
	e, _ := newTestEngine()

	alice, err := e.JoinRoom("r1", "Alice")
	require.NoError(t, err)

	_, err = e.Reset("r1", alice.Player.ID)
	assert.ErrorIs(t, err, ErrGameNotInProgress)
}

func TestResetClearsFinishedGame(t *testing.T) {
	e, fs := newTestEngine()
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

	g, err := e.Reset("r1", bob.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusInProgress, g.Status)
	assert.Equal(t, "         ", g.Board)
	assert.Equal(t, SymbolX, g.CurrentTurn)
	assert.False(t, g.Winner.Occupied)

	// Cumulative stats survive the reset.
	winner, _ := fs.GetPlayerByID(alice.ID)
	assert.Equal(t, 1, winner.Wins)
}

func TestRetireRoomAllowsFreshGame(t *testing.T) {
	e, fs := newTestEngine()
	seatTwoPlayers(t, e)

	require.NoError(t, e.RetireRoom("r1", nil))

	carol, err := e.JoinRoom("r1", "Carol")
	require.NoError(t, err)

	assert.Equal(t, StatusWaiting, carol.Game.Status)
	assert.True(t, carol.Game.SeatX.Is(carol.Player.ID))
	assert.False(t, carol.Observer)
	assert.Equal(t, 2, fs.gameCount("r1"))
}

func TestRetireRoomSkipsReoccupiedRoom(t *testing.T) {
	e, fs := newTestEngine()
	alice, _ := seatTwoPlayers(t, e)

	// A join landed again before the retire callback ran: the occupancy
	// check reports the room is live and the game must survive.
	require.NoError(t, e.RetireRoom("r1", func() bool { return false }))

	g, _, _, err := e.RoomState("r1")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, g.Status)
	assert.True(t, g.SeatX.Is(alice.ID))
	assert.Equal(t, 1, fs.gameCount("r1"))

	// Still empty by the time the check runs: retire proceeds.
	require.NoError(t, e.RetireRoom("r1", func() bool { return true }))
	_, _, _, err = e.RoomState("r1")
	assert.ErrorIs(t, err, ErrGameNotFound)
}
