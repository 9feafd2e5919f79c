package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lukas-hzb/verve/internal/deck"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows one writer; a single connection also makes the cascade
	// pragma apply everywhere.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// CreateSet inserts a new, empty vocabulary set.
func (db *DB) CreateSet(name string, now time.Time) (*deck.Set, error) {
	res, err := db.conn.Exec(`
		INSERT INTO vocab_sets (name, created_at, updated_at)
		VALUES (?, ?, ?)
	`, name, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert set %q: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert ID for set %q: %w", name, err)
	}
	return &deck.Set{ID: id, Name: name, CreatedAt: now, UpdatedAt: now}, nil
}

// GetSet loads a set and all of its cards. Returns deck.ErrSetNotFound for
// an unknown ID.
func (db *DB) GetSet(id int64) (*deck.Set, error) {
	var s deck.Set
	row := db.conn.QueryRow(`
		SELECT id, name, created_at, updated_at
		FROM vocab_sets WHERE id = ?
	`, id)
	if err := row.Scan(&s.ID, &s.Name, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, deck.ErrSetNotFound
		}
		return nil, fmt.Errorf("failed to load set %d: %w", id, err)
	}

	cards, err := db.loadCards(id)
	if err != nil {
		return nil, err
	}
	s.Cards = cards
	return &s, nil
}

// FindSetByName retrieves a set (with cards) by name, or nil if absent.
func (db *DB) FindSetByName(name string) (*deck.Set, error) {
	var id int64
	row := db.conn.QueryRow(`SELECT id FROM vocab_sets WHERE name = ?`, name)
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Set not found
		}
		return nil, fmt.Errorf("failed to find set by name %q: %w", name, err)
	}
	return db.GetSet(id)
}

// ListSets loads every set together with its cards.
func (db *DB) ListSets() ([]*deck.Set, error) {
	rows, err := db.conn.Query(`
		SELECT id, name, created_at, updated_at
		FROM vocab_sets ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sets: %w", err)
	}
	defer rows.Close()

	var sets []*deck.Set
	for rows.Next() {
		var s deck.Set
		if err := rows.Scan(&s.ID, &s.Name, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan set row: %w", err)
		}
		sets = append(sets, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sets: %w", err)
	}

	for _, s := range sets {
		cards, err := db.loadCards(s.ID)
		if err != nil {
			return nil, err
		}
		s.Cards = cards
	}
	return sets, nil
}

func (db *DB) loadCards(setID int64) ([]*deck.Card, error) {
	rows, err := db.conn.Query(`
		SELECT id, front, back, level, next_review, shuffle_order
		FROM cards WHERE set_id = ? ORDER BY id
	`, setID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cards for set %d: %w", setID, err)
	}
	defer rows.Close()

	var cards []*deck.Card
	for rows.Next() {
		var c deck.Card
		var order sql.NullInt64 // shuffle_order is nullable
		if err := rows.Scan(&c.ID, &c.Front, &c.Back, &c.Level, &c.NextReview, &order); err != nil {
			return nil, fmt.Errorf("failed to scan card row for set %d: %w", setID, err)
		}
		if order.Valid {
			v := int(order.Int64)
			c.ShuffleOrder = &v
		}
		cards = append(cards, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cards for set %d: %w", setID, err)
	}
	return cards, nil
}

// InsertCard persists a new card and fills in its generated ID.
func (db *DB) InsertCard(setID int64, card *deck.Card) error {
	var order sql.NullInt64
	if card.ShuffleOrder != nil {
		order = sql.NullInt64{Int64: int64(*card.ShuffleOrder), Valid: true}
	}
	res, err := db.conn.Exec(`
		INSERT INTO cards (set_id, front, back, level, next_review, shuffle_order)
		VALUES (?, ?, ?, ?, ?, ?)
	`, setID, card.Front, card.Back, card.Level, card.NextReview, order)
	if err != nil {
		return fmt.Errorf("failed to insert card %q: %w", card.Front, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID for card %q: %w", card.Front, err)
	}
	card.ID = id
	return nil
}

// UpdateCardReview writes back a card's scheduling state after a review or
// restore.
func (db *DB) UpdateCardReview(card *deck.Card) error {
	_, err := db.conn.Exec(`
		UPDATE cards SET level = ?, next_review = ? WHERE id = ?
	`, card.Level, card.NextReview, card.ID)
	if err != nil {
		return fmt.Errorf("failed to update card %d: %w", card.ID, err)
	}
	return nil
}

// ResetSet puts every card of a set back to level 1, due at now.
func (db *DB) ResetSet(setID int64, now time.Time) error {
	_, err := db.conn.Exec(`
		UPDATE cards SET level = 1, next_review = ? WHERE set_id = ?
	`, now, setID)
	if err != nil {
		return fmt.Errorf("failed to reset set %d: %w", setID, err)
	}
	return db.TouchSet(setID, now)
}

// TouchSet bumps a set's updated_at timestamp.
func (db *DB) TouchSet(setID int64, now time.Time) error {
	_, err := db.conn.Exec(`
		UPDATE vocab_sets SET updated_at = ? WHERE id = ?
	`, now, setID)
	if err != nil {
		return fmt.Errorf("failed to touch set %d: %w", setID, err)
	}
	return nil
}

// DeleteCard removes a card from a set. Returns deck.ErrCardNotFound when the
// card is not in the given set.
func (db *DB) DeleteCard(setID, cardID int64) error {
	res, err := db.conn.Exec(`
		DELETE FROM cards WHERE id = ? AND set_id = ?
	`, cardID, setID)
	if err != nil {
		return fmt.Errorf("failed to delete card %d: %w", cardID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count deleted rows for card %d: %w", cardID, err)
	}
	if n == 0 {
		return deck.ErrCardNotFound
	}
	return nil
}

// DeleteSet removes a set; its cards go with it via the cascade.
func (db *DB) DeleteSet(id int64) error {
	res, err := db.conn.Exec(`DELETE FROM vocab_sets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete set %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count deleted rows for set %d: %w", id, err)
	}
	if n == 0 {
		return deck.ErrSetNotFound
	}
	return nil
}

// Source represents a card import source, either a local path or a git URL.
type Source struct {
	ID          int64
	Path        string
	Type        string
	LastScanned sql.NullTime
}

// InsertSource registers a new import source and returns its ID.
func (db *DB) InsertSource(path, sourceType string) (int64, error) {
	res, err := db.conn.Exec(`
		INSERT INTO sources (path, type) VALUES (?, ?)
	`, path, sourceType)
	if err != nil {
		return 0, fmt.Errorf("failed to insert source %s: %w", path, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for source %s: %w", path, err)
	}
	return id, nil
}

// GetAllSources retrieves all registered import sources.
func (db *DB) GetAllSources() ([]Source, error) {
	rows, err := db.conn.Query(`
		SELECT id, path, type, last_scanned FROM sources
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var s Source
		if err := rows.Scan(&s.ID, &s.Path, &s.Type, &s.LastScanned); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// UpdateSourceLastScanned records when a source was last reconciled.
func (db *DB) UpdateSourceLastScanned(sourceID int64, now time.Time) error {
	_, err := db.conn.Exec(`
		UPDATE sources SET last_scanned = ? WHERE id = ?
	`, now, sourceID)
	if err != nil {
		return fmt.Errorf("failed to update last scanned for source ID %d: %w", sourceID, err)
	}
	return nil
}

// DeleteSource unregisters an import source. Already imported cards stay.
func (db *DB) DeleteSource(id int64) error {
	_, err := db.conn.Exec(`DELETE FROM sources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete source %d: %w", id, err)
	}
	return nil
}
