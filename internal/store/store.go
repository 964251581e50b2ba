// Package store provides persistent appliance state backed by an
// embedded SQLite database: source playback preferences, radio
// presets, configuration sections, and play history (spec §6).
//
// Migration design follows the teacher's (server/store/store.go):
// SQL statements live in the ordered [migrations] slice, each applied
// exactly once and tracked in schema_migrations. Append, never edit or
// reorder, existing entries.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	"audiorack/internal/errs"
	"audiorack/internal/queue"

	_ "modernc.org/sqlite"
)

var migrations = []string{
	// v1 — per-source playback prefs (last played item, position, shuffle/repeat)
	`CREATE TABLE IF NOT EXISTS source_prefs (
		source_id    TEXT PRIMARY KEY,
		last_played  TEXT NOT NULL DEFAULT '',
		position_ms  INTEGER NOT NULL DEFAULT 0,
		shuffle      INTEGER NOT NULL DEFAULT 0,
		repeat_mode  INTEGER NOT NULL DEFAULT 0
	)`,
	// v2 — SDR radio presets, unique per (source, band, frequency) per spec §4.2 S7
	`CREATE TABLE IF NOT EXISTS radio_presets (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		source_id  TEXT NOT NULL,
		label      TEXT NOT NULL,
		band       TEXT NOT NULL,
		frequency  REAL NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (unixepoch()),
		UNIQUE(source_id, band, frequency)
	)`,
	// v3 — persisted configuration sections (Audio, Visualizer, Output.*)
	`CREATE TABLE IF NOT EXISTS config_sections (
		section TEXT PRIMARY KEY,
		value   TEXT NOT NULL
	)`,
	// v4 — play history
	`CREATE TABLE IF NOT EXISTS play_history (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		source_id  TEXT NOT NULL,
		title      TEXT NOT NULL,
		artist     TEXT NOT NULL DEFAULT '',
		album      TEXT NOT NULL DEFAULT '',
		played_at  INTEGER NOT NULL
	)`,
	// v5 — index for recent-history queries
	`CREATE INDEX IF NOT EXISTS idx_play_history_played_at ON play_history(played_at)`,
	// v6 — enable WAL mode
	`PRAGMA journal_mode=WAL`,
}

// Store wraps a SQLite database and exposes the appliance's persisted
// state operations.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at path and applies any
// pending migrations. Use ":memory:" for ephemeral in-process storage
// (tests).
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		slog.Warn("store: WAL mode unavailable", "err", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		slog.Warn("store: busy_timeout unavailable", "err", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := s.db.QueryRow(
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`,
	).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i, stmt := range migrations {
		v := i + 1
		if v <= current {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", v, err)
		}
		if _, err := s.db.Exec(
			`INSERT INTO schema_migrations(version) VALUES(?)`, v,
		); err != nil {
			return fmt.Errorf("record migration %d: %w", v, err)
		}
		slog.Info("store: applied migration", "version", v)
	}
	return nil
}

// --- source prefs (spec §6, backs source.Prefs for FilePlayer) ---

// LoadSourcePrefs satisfies source.Prefs.
func (s *Store) LoadSourcePrefs(sourceID string) (lastPlayed string, positionMs int64, shuffle bool, repeat queue.RepeatMode, ok bool) {
	var shuffleInt, repeatInt int
	err := s.db.QueryRow(
		`SELECT last_played, position_ms, shuffle, repeat_mode FROM source_prefs WHERE source_id = ?`,
		sourceID,
	).Scan(&lastPlayed, &positionMs, &shuffleInt, &repeatInt)
	if err != nil {
		return "", 0, false, queue.RepeatOff, false
	}
	return lastPlayed, positionMs, shuffleInt != 0, queue.RepeatMode(repeatInt), true
}

// SaveSourcePrefs satisfies source.Prefs.
func (s *Store) SaveSourcePrefs(sourceID, lastPlayed string, positionMs int64, shuffle bool, repeat queue.RepeatMode) {
	shuffleInt := 0
	if shuffle {
		shuffleInt = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO source_prefs(source_id, last_played, position_ms, shuffle, repeat_mode)
		 VALUES(?, ?, ?, ?, ?)
		 ON CONFLICT(source_id) DO UPDATE SET
		   last_played = excluded.last_played,
		   position_ms = excluded.position_ms,
		   shuffle = excluded.shuffle,
		   repeat_mode = excluded.repeat_mode`,
		sourceID, lastPlayed, positionMs, shuffleInt, int(repeat),
	)
	if err != nil {
		slog.Warn("store: save source prefs failed", "source_id", sourceID, "err", err)
	}
}

// --- radio presets (backs source.PresetStore) ---

// SavePreset inserts a preset, translating the UNIQUE(source_id, band,
// frequency) violation into errs.Conflict (spec §4.2 S7).
func (s *Store) SavePreset(sourceID, label, band string, frequency float64) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO radio_presets(source_id, label, band, frequency) VALUES(?, ?, ?, ?)`,
		sourceID, label, band, frequency,
	)
	if err != nil {
		return 0, errs.New(errs.Conflict, "Store.SavePreset", "preset already exists for this band/frequency")
	}
	return res.LastInsertId()
}

type PresetRow struct {
	ID        int64
	Label     string
	Band      string
	Frequency float64
}

func (s *Store) ListPresets(sourceID string) ([]PresetRow, error) {
	rows, err := s.db.Query(
		`SELECT id, label, band, frequency FROM radio_presets WHERE source_id = ? ORDER BY id ASC`,
		sourceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PresetRow
	for rows.Next() {
		var p PresetRow
		if err := rows.Scan(&p.ID, &p.Label, &p.Band, &p.Frequency); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) DeletePreset(sourceID string, id int64) error {
	res, err := s.db.Exec(`DELETE FROM radio_presets WHERE source_id = ? AND id = ?`, sourceID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.New(errs.NotFound, "Store.DeletePreset", "no such preset")
	}
	return nil
}

// --- configuration sections (spec §6) ---

func (s *Store) GetConfigSection(section string) (string, bool, error) {
	var val string
	err := s.db.QueryRow(`SELECT value FROM config_sections WHERE section = ?`, section).Scan(&val)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *Store) SetConfigSection(section, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO config_sections(section, value) VALUES(?, ?)
		 ON CONFLICT(section) DO UPDATE SET value = excluded.value`,
		section, value,
	)
	return err
}

// --- play history (spec §6, backs internal/history) ---

type HistoryEntry struct {
	ID       int64
	SourceID string
	Title    string
	Artist   string
	Album    string
	PlayedAt int64 // unix seconds
}

func (s *Store) RecordPlay(e HistoryEntry) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO play_history(source_id, title, artist, album, played_at) VALUES(?, ?, ?, ?, ?)`,
		e.SourceID, e.Title, e.Artist, e.Album, e.PlayedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// LastPlay returns the most recent history entry for sourceID, if any.
func (s *Store) LastPlay(sourceID string) (HistoryEntry, bool, error) {
	var e HistoryEntry
	err := s.db.QueryRow(
		`SELECT id, source_id, title, artist, album, played_at FROM play_history
		 WHERE source_id = ? ORDER BY played_at DESC, id DESC LIMIT 1`,
		sourceID,
	).Scan(&e.ID, &e.SourceID, &e.Title, &e.Artist, &e.Album, &e.PlayedAt)
	if err == sql.ErrNoRows {
		return HistoryEntry{}, false, nil
	}
	if err != nil {
		return HistoryEntry{}, false, err
	}
	return e, true, nil
}

// ListHistory returns up to limit entries, most recent first.
func (s *Store) ListHistory(limit int) ([]HistoryEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, source_id, title, artist, album, played_at FROM play_history
		 ORDER BY played_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.SourceID, &e.Title, &e.Artist, &e.Album, &e.PlayedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// HistoryStats summarizes total plays and distinct tracks per source,
// backing internal/history's statistics operation (spec §6).
type HistoryStats struct {
	SourceID     string
	TotalPlays   int
	DistinctTrks int
}

func (s *Store) HistoryStatsBySource() ([]HistoryStats, error) {
	rows, err := s.db.Query(
		`SELECT source_id, COUNT(*), COUNT(DISTINCT title || '|' || artist) FROM play_history GROUP BY source_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryStats
	for rows.Next() {
		var h HistoryStats
		if err := rows.Scan(&h.SourceID, &h.TotalPlays, &h.DistinctTrks); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
