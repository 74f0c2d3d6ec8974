package event

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists events as JSON documents in a single SQLite table.
// Schema design is deliberately minimal: one row per event keyed by slug,
// the full event as a JSON document.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the SQLite database at path and ensures
// the events table exists. Use ":memory:" for an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	// The driver serializes access through a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS events (
		slug TEXT PRIMARY KEY,
		doc  BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create events table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Get implements Store.Get.
func (s *SQLiteStore) Get(slug string) (*Event, bool, error) {
	var doc []byte
	err := s.db.QueryRow(`SELECT doc FROM events WHERE slug = ?`, slug).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get event %q: %w", slug, err)
	}

	var ev Event
	if err := json.Unmarshal(doc, &ev); err != nil {
		return nil, false, fmt.Errorf("decode event %q: %w", slug, err)
	}
	return &ev, true, nil
}

// Put implements Store.Put.
func (s *SQLiteStore) Put(ev *Event) error {
	doc, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %q: %w", ev.Slug, err)
	}
	_, err = s.db.Exec(`INSERT INTO events (slug, doc) VALUES (?, ?)
		ON CONFLICT(slug) DO UPDATE SET doc = excluded.doc`, ev.Slug, doc)
	if err != nil {
		return fmt.Errorf("put event %q: %w", ev.Slug, err)
	}
	return nil
}

// Slugs implements Store.Slugs.
func (s *SQLiteStore) Slugs() ([]string, error) {
	rows, err := s.db.Query(`SELECT slug FROM events`)
	if err != nil {
		return nil, fmt.Errorf("list event slugs: %w", err)
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, fmt.Errorf("scan event slug: %w", err)
		}
		slugs = append(slugs, slug)
	}
	return slugs, rows.Err()
}

// Close implements Store.Close.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
