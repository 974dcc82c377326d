package store

const schema = `
CREATE TABLE IF NOT EXISTS players (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT UNIQUE NOT NULL,
    wins INTEGER NOT NULL DEFAULT 0,
    draws INTEGER NOT NULL DEFAULT 0,
    losses INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS games (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    room_id TEXT NOT NULL,
    player_x_id INTEGER,
    player_o_id INTEGER,
    winner_id INTEGER,
    status TEXT NOT NULL DEFAULT 'waiting',
    board TEXT NOT NULL DEFAULT '         ',
    current_turn TEXT NOT NULL DEFAULT 'X',
    retired INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (player_x_id) REFERENCES players(id),
    FOREIGN KEY (player_o_id) REFERENCES players(id),
    FOREIGN KEY (winner_id) REFERENCES players(id)
);

-- One live game per room; concurrent creators lose the race here and fall
-- back to re-reading the surviving record.
CREATE UNIQUE INDEX IF NOT EXISTS idx_games_live_room ON games(room_id) WHERE retired = 0;
CREATE INDEX IF NOT EXISTS idx_games_room_id ON games(room_id);
`
