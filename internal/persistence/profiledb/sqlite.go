// Package profiledb stores human player profiles in SQLite, keyed by the
// stable os_username. One row per client identity, upserted on join and
// name change.
package profiledb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Voltarian-Technologies/mc.voltaccept.com/internal/session"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS profiles (
		os_username  TEXT PRIMARY KEY,
		uuid         TEXT NOT NULL,
		display_name TEXT NOT NULL,
		x            REAL NOT NULL,
		y            REAL NOT NULL,
		ground_y     REAL NOT NULL,
		map_width    REAL NOT NULL,
		updated_at   TEXT NOT NULL
	);`)
	return err
}

func (s *Store) Load() (map[string]session.Profile, error) {
	rows, err := s.db.Query(`SELECT os_username, uuid, display_name, x, y, ground_y, map_width FROM profiles`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]session.Profile)
	for rows.Next() {
		var p session.Profile
		if err := rows.Scan(&p.OSUsername, &p.UUID, &p.DisplayName, &p.Position.X, &p.Position.Y, &p.GroundY, &p.MapWidth); err != nil {
			return nil, err
		}
		out[p.OSUsername] = p
	}
	return out, rows.Err()
}

func (s *Store) Save(profiles map[string]session.Profile) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO profiles
		(os_username, uuid, display_name, x, y, ground_y, map_width, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(os_username) DO UPDATE SET
			uuid = excluded.uuid,
			display_name = excluded.display_name,
			x = excluded.x,
			y = excluded.y,
			ground_y = excluded.ground_y,
			map_width = excluded.map_width,
			updated_at = excluded.updated_at`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, p := range profiles {
		if p.IsAI {
			continue
		}
		if _, err := stmt.Exec(p.OSUsername, p.UUID, p.DisplayName, p.Position.X, p.Position.Y, p.GroundY, p.MapWidth, now); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) Close() error { return s.db.Close() }

var _ session.ProfileStore = (*Store)(nil)
