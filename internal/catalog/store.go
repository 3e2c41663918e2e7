// Package catalog is the song catalog backing queue enrichment and the
// client-side song lookup.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vogiaan1904/listenroom/internal/models"
	"github.com/vogiaan1904/listenroom/pkg/logger"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("song not found")

type Store interface {
	GetSong(ctx context.Context, id string) (*models.Song, error)
	SaveSong(ctx context.Context, song models.Song) error
	DeleteSong(ctx context.Context, id string) error
	Close() error
}

type sqliteStore struct {
	db *sql.DB
	l  logger.Logger
}

func Open(dsn string, l logger.Logger) (Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// Every pooled connection to :memory: would see its own empty database.
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &sqliteStore{db: db, l: l}
	if err := s.EnsureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog: ensure schema: %w", err)
	}

	return s, nil
}

func (s *sqliteStore) GetSong(ctx context.Context, id string) (*models.Song, error) {
	var (
		song   models.Song
		artist sql.NullString
		album  sql.NullString
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, artist, album, duration
		FROM songs
		WHERE id = ?
	`, id).Scan(&song.ID, &song.Title, &artist, &album, &song.Duration)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		s.l.Errorf(ctx, "catalog.sqliteStore.GetSong: %v", err)
		return nil, err
	}

	song.Artist = artist.String
	song.Album = album.String

	return &song, nil
}

func (s *sqliteStore) SaveSong(ctx context.Context, song models.Song) error {
	if song.ID == "" || song.Title == "" {
		return fmt.Errorf("catalog: song id and title are required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO songs (id, title, artist, album, duration, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title,
			artist=excluded.artist,
			album=excluded.album,
			duration=excluded.duration
	`, song.ID, song.Title, nullString(song.Artist), nullString(song.Album), song.Duration, time.Now().Unix())
	if err != nil {
		s.l.Errorf(ctx, "catalog.sqliteStore.SaveSong: %v", err)
		return err
	}

	return nil
}

func (s *sqliteStore) DeleteSong(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM songs WHERE id = ?`, id)
	if err != nil {
		s.l.Errorf(ctx, "catalog.sqliteStore.DeleteSong: %v", err)
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
