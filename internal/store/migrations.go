package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Plugin state - one row per known plugin, in execution order
		`CREATE TABLE IF NOT EXISTS plugin_state (
			identity TEXT PRIMARY KEY,
			enabled INTEGER NOT NULL DEFAULT 0,
			order_index INTEGER NOT NULL
		)`,

		// Plugin settings - JSON encoded values
		`CREATE TABLE IF NOT EXISTS plugin_settings (
			identity TEXT NOT NULL,
			name TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (identity, name)
		)`,

		// Game profiles - the hook last used per game
		`CREATE TABLE IF NOT EXISTS game_profiles (
			identity TEXT PRIMARY KEY,
			exe_name TEXT NOT NULL,
			exe_path TEXT NOT NULL,
			exe_size INTEGER NOT NULL,
			selector_kind TEXT NOT NULL CHECK(selector_kind IN ('manual', 'auto')),
			code TEXT NOT NULL DEFAULT '',
			hook_id TEXT NOT NULL DEFAULT '',
			label TEXT NOT NULL DEFAULT '',
			sample TEXT NOT NULL DEFAULT '',
			engine TEXT NOT NULL DEFAULT '',
			last_used DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_plugin_state_order ON plugin_state(order_index)`,
		`CREATE INDEX IF NOT EXISTS idx_game_profiles_last_used ON game_profiles(last_used)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
