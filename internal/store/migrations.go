package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Decisions table - one row per processed frame
		`CREATE TABLE IF NOT EXISTS decisions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			advisory TEXT NOT NULL,
			total_tracks INTEGER NOT NULL DEFAULT 0,
			red_votes INTEGER NOT NULL DEFAULT 0,
			green_votes INTEGER NOT NULL DEFAULT 0,
			dropped INTEGER NOT NULL DEFAULT 0,
			tracks TEXT NOT NULL DEFAULT '[]',
			decided_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_decisions_advisory ON decisions(advisory)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
