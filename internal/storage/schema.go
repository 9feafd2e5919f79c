package storage

const schema = `
-- Vocabulary sets. Names are unique across the application.
CREATE TABLE IF NOT EXISTS vocab_sets (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);

-- Flashcards. The front text is the card's key within its set.
-- shuffle_order is an optional fixed practice position.
CREATE TABLE IF NOT EXISTS cards (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    set_id INTEGER NOT NULL,
    front TEXT NOT NULL,
    back TEXT NOT NULL,
    level INTEGER NOT NULL DEFAULT 1,
    next_review DATETIME NOT NULL,
    shuffle_order INTEGER,

    UNIQUE(set_id, front),
    FOREIGN KEY(set_id) REFERENCES vocab_sets(id) ON DELETE CASCADE
);

-- Import sources: a local directory or a git repository of card files.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'local', -- 'local' or 'git'
    last_scanned DATETIME
);
`
