package runtime

import (
	"strconv"

	"audiorack/internal/source"
	"audiorack/internal/store"
)

// presetStoreAdapter bridges source.SdrRadio's PresetStore interface
// (string IDs, scoped to one radio instance) to internal/store's
// SQL-backed preset methods (int64 auto-increment IDs, scoped by
// sourceID parameter). Deferred from the orchestrator/store design
// discussion to this wiring layer since neither the radio variant nor
// the store is wrong for its own layer — only the glue needs to know
// both shapes.
type presetStoreAdapter struct {
	db       *store.Store
	sourceID string
}

func newPresetStoreAdapter(db *store.Store, sourceID string) *presetStoreAdapter {
	return &presetStoreAdapter{db: db, sourceID: sourceID}
}

func (a *presetStoreAdapter) ListPresets() ([]source.RadioPreset, error) {
	rows, err := a.db.ListPresets(a.sourceID)
	if err != nil {
		return nil, err
	}
	out := make([]source.RadioPreset, len(rows))
	for i, r := range rows {
		out[i] = source.RadioPreset{
			ID:        strconv.FormatInt(r.ID, 10),
			Name:      r.Label,
			Band:      source.Band(r.Band),
			Frequency: r.Frequency,
		}
	}
	return out, nil
}

func (a *presetStoreAdapter) SavePreset(p source.RadioPreset) error {
	_, err := a.db.SavePreset(a.sourceID, p.Name, string(p.Band), p.Frequency)
	return err
}

func (a *presetStoreAdapter) DeletePreset(id string) error {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return err
	}
	return a.db.DeletePreset(a.sourceID, n)
}
