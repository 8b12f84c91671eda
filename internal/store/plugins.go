package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ayusman/sugoi/internal/plugin"
)

// PluginRepository persists plugin registry state. It implements plugin.StateStore.
type PluginRepository struct {
	db *sql.DB
}

// Plugins returns the plugin repository for this store.
func (s *Store) Plugins() *PluginRepository {
	return &PluginRepository{db: s.db}
}

// Load reads the saved registry state. An empty database yields an empty state.
func (r *PluginRepository) Load() (plugin.State, error) {
	state := plugin.State{Settings: make(map[string]map[string]any)}

	rows, err := r.db.Query(`SELECT identity, enabled FROM plugin_state ORDER BY order_index`)
	if err != nil {
		return state, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			identity string
			enabled  bool
		)
		if err := rows.Scan(&identity, &enabled); err != nil {
			return state, err
		}
		state.Order = append(state.Order, identity)
		if enabled {
			state.Active = append(state.Active, identity)
		}
	}
	if err := rows.Err(); err != nil {
		return state, err
	}

	settings, err := r.db.Query(`SELECT identity, name, value FROM plugin_settings`)
	if err != nil {
		return state, err
	}
	defer settings.Close()

	for settings.Next() {
		var identity, name, raw string
		if err := settings.Scan(&identity, &name, &raw); err != nil {
			return state, err
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return state, fmt.Errorf("setting %s.%s: %w", identity, name, err)
		}
		if state.Settings[identity] == nil {
			state.Settings[identity] = make(map[string]any)
		}
		state.Settings[identity][name] = value
	}

	return state, settings.Err()
}

// Save replaces the saved registry state.
func (r *PluginRepository) Save(state plugin.State) error {
	active := make(map[string]bool, len(state.Active))
	for _, id := range state.Active {
		active[id] = true
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM plugin_state`); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM plugin_settings`); err != nil {
		return err
	}

	for i, identity := range state.Order {
		if _, err := tx.Exec(
			`INSERT INTO plugin_state (identity, enabled, order_index) VALUES (?, ?, ?)`,
			identity, active[identity], i,
		); err != nil {
			return err
		}
	}

	for identity, values := range state.Settings {
		for name, value := range values {
			raw, err := json.Marshal(value)
			if err != nil {
				return fmt.Errorf("setting %s.%s: %w", identity, name, err)
			}
			if _, err := tx.Exec(
				`INSERT INTO plugin_settings (identity, name, value) VALUES (?, ?, ?)`,
				identity, name, string(raw),
			); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}
