package gateway

import (
	"database/sql"
	"fmt"
)

// Seed creates and fills the demo tracks table so the tutorials have
// something to query. Rows carry fixed ids, so seeding twice changes
// nothing.
func Seed(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS tracks (
	id     INTEGER PRIMARY KEY,
	title  TEXT NOT NULL,
	artist TEXT NOT NULL,
	genre  TEXT NOT NULL,
	year   INTEGER NOT NULL,
	plays  INTEGER NOT NULL DEFAULT 0
)`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create tracks table: %w", err)
	}

	const insert = `
INSERT OR IGNORE INTO tracks (id, title, artist, genre, year, plays) VALUES
	(1, 'So What',              'Miles Davis',               'jazz', 1959, 341),
	(2, 'Blue in Green',        'Miles Davis',               'jazz', 1959, 198),
	(3, 'Take Five',            'The Dave Brubeck Quartet',  'jazz', 1959, 512),
	(4, 'Goodbye Pork Pie Hat', 'Charles Mingus',            'jazz', 1959, 149),
	(5, 'Money',                'Pink Floyd',                'rock', 1973, 877),
	(6, 'Time',                 'Pink Floyd',                'rock', 1973, 654),
	(7, 'Kashmir',              'Led Zeppelin',              'rock', 1975, 701),
	(8, 'Paranoid Android',     'Radiohead',                 'rock', 1997, 433)`
	if _, err := db.Exec(insert); err != nil {
		return fmt.Errorf("seed tracks table: %w", err)
	}

	return nil
}

// DB exposes the gateway database, so the command layer can seed it.
func (g *Gateway) DB() *sql.DB {
	return g.db
}
