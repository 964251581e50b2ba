// Package history implements play-history domain logic on top of
// internal/store: recording track starts with duplicate suppression,
// listing recent entries, and per-source statistics (spec §6, Design
// Note (b)).
package history

import (
	"time"

	"audiorack/internal/errs"
	"audiorack/internal/store"
)

// suppressWindow is the window within which a repeat RecordPlay call
// for the same (source, title, artist) is treated as a duplicate and
// dropped rather than creating a second entry (spec Design Note (b),
// decided as 30s: long enough to absorb a metadata-refresh re-announce
// of the same track, short enough that a genuine replay still counts).
const suppressWindow = 30 * time.Second

// Recorder persists and queries play history, backed by *store.Store.
type Recorder struct {
	db    *store.Store
	clock func() time.Time
}

// New wires a Recorder to db. clock is injected for deterministic tests;
// production callers pass time.Now.
func New(db *store.Store, clock func() time.Time) *Recorder {
	return &Recorder{db: db, clock: clock}
}

// Entry is the domain-level play-history record.
type Entry struct {
	ID       int64
	SourceID string
	Title    string
	Artist   string
	Album    string
	PlayedAt time.Time
}

// RecordPlay records a track start, surfacing Conflict if the same
// (source, title, artist) was just recorded within suppressWindow — a
// track re-identified mid-play (spec §4.10 S8) must not fork the
// history into two separate listens, but the caller needs to know the
// write didn't happen (spec §6, §7: "duplicate play-history within
// suppression window" is a Conflict, not a silent no-op).
func (r *Recorder) RecordPlay(sourceID, title, artist, album string) error {
	now := r.clock()
	last, ok, err := r.db.LastPlay(sourceID)
	if err != nil {
		return err
	}
	if ok && last.Title == title && last.Artist == artist {
		gap := now.Sub(time.Unix(last.PlayedAt, 0))
		if gap >= 0 && gap < suppressWindow {
			return errs.New(errs.Conflict, "Recorder.RecordPlay", "duplicate play within suppression window")
		}
	}
	_, err = r.db.RecordPlay(store.HistoryEntry{
		SourceID: sourceID,
		Title:    title,
		Artist:   artist,
		Album:    album,
		PlayedAt: now.Unix(),
	})
	return err
}

// Recent returns the most recent limit entries across all sources,
// newest first.
func (r *Recorder) Recent(limit int) ([]Entry, error) {
	rows, err := r.db.ListHistory(limit)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, len(rows))
	for i, row := range rows {
		out[i] = toEntry(row)
	}
	return out, nil
}

// BySource filters Recent's result down to a single source.
func (r *Recorder) BySource(sourceID string, limit int) ([]Entry, error) {
	all, err := r.Recent(limit * 4) // overfetch then filter; history tables are small appliance-scale data
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range all {
		if e.SourceID == sourceID {
			out = append(out, e)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// Stat is one source's aggregate play statistics.
type Stat struct {
	SourceID       string `json:"source_id"`
	TotalPlays     int    `json:"total_plays"`
	DistinctTracks int    `json:"distinct_tracks"`
}

// Statistics returns per-source play counts and distinct-track counts.
func (r *Recorder) Statistics() ([]Stat, error) {
	rows, err := r.db.HistoryStatsBySource()
	if err != nil {
		return nil, err
	}
	out := make([]Stat, len(rows))
	for i, row := range rows {
		out[i] = Stat{SourceID: row.SourceID, TotalPlays: row.TotalPlays, DistinctTracks: row.DistinctTrks}
	}
	return out, nil
}

func toEntry(row store.HistoryEntry) Entry {
	return Entry{
		ID:       row.ID,
		SourceID: row.SourceID,
		Title:    row.Title,
		Artist:   row.Artist,
		Album:    row.Album,
		PlayedAt: time.Unix(row.PlayedAt, 0),
	}
}
