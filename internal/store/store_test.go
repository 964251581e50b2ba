package store

import (
	"testing"

	"audiorack/internal/errs"
	"audiorack/internal/queue"
)

func newMemStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrationsApplied(t *testing.T) {
	s := newMemStore(t)

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count); err != nil {
		t.Fatalf("query schema_migrations: %v", err)
	}
	if count != len(migrations) {
		t.Errorf("expected %d migrations recorded, got %d", len(migrations), count)
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	s := newMemStore(t)

	if err := s.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count); err != nil {
		t.Fatalf("query: %v", err)
	}
	if count != len(migrations) {
		t.Errorf("expected migrations applied only once, got %d records for %d migrations", count, len(migrations))
	}
}

func TestSourcePrefsRoundTrip(t *testing.T) {
	s := newMemStore(t)

	if _, _, _, _, ok := s.LoadSourcePrefs("file-1"); ok {
		t.Fatal("expected no prefs for unseen source")
	}

	s.SaveSourcePrefs("file-1", "track-7", 12345, true, queue.RepeatAll)
	last, pos, shuffle, repeat, ok := s.LoadSourcePrefs("file-1")
	if !ok {
		t.Fatal("expected prefs to be found after save")
	}
	if last != "track-7" || pos != 12345 || !shuffle || repeat != queue.RepeatAll {
		t.Fatalf("unexpected prefs: %q %d %v %v", last, pos, shuffle, repeat)
	}

	s.SaveSourcePrefs("file-1", "track-8", 99, false, queue.RepeatOff)
	last, pos, shuffle, repeat, ok = s.LoadSourcePrefs("file-1")
	if !ok || last != "track-8" || pos != 99 || shuffle || repeat != queue.RepeatOff {
		t.Fatalf("expected upsert to overwrite prefs, got %q %d %v %v", last, pos, shuffle, repeat)
	}
}

func TestRadioPresetUniqueConflict(t *testing.T) {
	s := newMemStore(t)

	if _, err := s.SavePreset("radio-1", "Jazz FM", "FM", 91.5); err != nil {
		t.Fatalf("unexpected error on first save: %v", err)
	}
	_, err := s.SavePreset("radio-1", "Jazz FM Dup", "FM", 91.5)
	if !errs.Is(err, errs.Conflict) {
		t.Fatalf("expected Conflict for duplicate (band, frequency), got %v", err)
	}

	// Different source, same (band, frequency): not a conflict since the
	// unique constraint is scoped per source_id.
	if _, err := s.SavePreset("radio-2", "Jazz FM", "FM", 91.5); err != nil {
		t.Fatalf("expected save on a different source to succeed: %v", err)
	}
}

func TestRadioPresetListAndDelete(t *testing.T) {
	s := newMemStore(t)
	id, err := s.SavePreset("radio-1", "News", "AM", 980)
	if err != nil {
		t.Fatalf("SavePreset: %v", err)
	}

	presets, err := s.ListPresets("radio-1")
	if err != nil {
		t.Fatalf("ListPresets: %v", err)
	}
	if len(presets) != 1 || presets[0].Label != "News" {
		t.Fatalf("expected one preset named News, got %+v", presets)
	}

	if err := s.DeletePreset("radio-1", id); err != nil {
		t.Fatalf("DeletePreset: %v", err)
	}
	if err := s.DeletePreset("radio-1", id); !errs.Is(err, errs.NotFound) {
		t.Fatalf("expected NotFound deleting an already-deleted preset, got %v", err)
	}
}

func TestConfigSectionRoundTrip(t *testing.T) {
	s := newMemStore(t)
	if _, ok, err := s.GetConfigSection("Audio"); err != nil || ok {
		t.Fatalf("expected no Audio section initially, ok=%v err=%v", ok, err)
	}
	if err := s.SetConfigSection("Audio", `{"sample_rate":48000}`); err != nil {
		t.Fatalf("SetConfigSection: %v", err)
	}
	val, ok, err := s.GetConfigSection("Audio")
	if err != nil || !ok || val != `{"sample_rate":48000}` {
		t.Fatalf("unexpected round-trip: %q ok=%v err=%v", val, ok, err)
	}
}

func TestPlayHistoryRecordAndList(t *testing.T) {
	s := newMemStore(t)
	for i, title := range []string{"A", "B", "C"} {
		if _, err := s.RecordPlay(HistoryEntry{SourceID: "file-1", Title: title, PlayedAt: int64(1000 + i)}); err != nil {
			t.Fatalf("RecordPlay: %v", err)
		}
	}

	entries, err := s.ListHistory(2)
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(entries) != 2 || entries[0].Title != "C" || entries[1].Title != "B" {
		t.Fatalf("expected most-recent-first order, got %+v", entries)
	}

	last, ok, err := s.LastPlay("file-1")
	if err != nil || !ok || last.Title != "C" {
		t.Fatalf("expected last play C, got %+v ok=%v err=%v", last, ok, err)
	}
}

func TestHistoryStatsBySource(t *testing.T) {
	s := newMemStore(t)
	_, _ = s.RecordPlay(HistoryEntry{SourceID: "file-1", Title: "A", Artist: "X", PlayedAt: 1})
	_, _ = s.RecordPlay(HistoryEntry{SourceID: "file-1", Title: "A", Artist: "X", PlayedAt: 2})
	_, _ = s.RecordPlay(HistoryEntry{SourceID: "file-1", Title: "B", Artist: "X", PlayedAt: 3})

	stats, err := s.HistoryStatsBySource()
	if err != nil {
		t.Fatalf("HistoryStatsBySource: %v", err)
	}
	if len(stats) != 1 || stats[0].TotalPlays != 3 || stats[0].DistinctTrks != 2 {
		t.Fatalf("expected 3 plays / 2 distinct tracks, got %+v", stats)
	}
}
