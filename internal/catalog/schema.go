package catalog

const schemaSongs = `
CREATE TABLE IF NOT EXISTS songs (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	artist TEXT,
	album TEXT,
	duration REAL NOT NULL DEFAULT 0 CHECK (duration >= 0),
	created_at INTEGER NOT NULL
);`

const schemaSongsIndexes = `
CREATE INDEX IF NOT EXISTS idx_songs_title ON songs(title);
CREATE INDEX IF NOT EXISTS idx_songs_artist ON songs(artist);`

func (s *sqliteStore) EnsureSchema() error {
	for _, stmt := range []string{schemaSongs, schemaSongsIndexes} {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
