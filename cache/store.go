package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("clspv.cache")

// Store is a SQLite-backed emission cache. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

// Stats summarizes the cache contents.
type Stats struct {
	Entries int64
	Hits    int64
	Bytes   int64
}

// Open opens or creates the cache database at path, creating parent
// directories as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cache: creating directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: opening database: %w", err)
	}
	// One writer at a time; SQLite serializes anyway.
	db.SetMaxOpenConns(1)

	// Set busy timeout for concurrent access from other processes
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS emissions (
		key        BLOB PRIMARY KEY,
		record     BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		hits       INTEGER NOT NULL DEFAULT 0
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: creating table: %w", err)
	}

	log.Debugf("opened cache %s", path)
	return &Store{db: db, path: path}, nil
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.path
}

// Get returns the record stored under key. The boolean is false on a miss.
func (s *Store) Get(ctx context.Context, key Key) (*Record, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT record FROM emissions WHERE key = ?`, key[:]).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: reading %s: %w", key, err)
	}

	rec, err := UnmarshalRecord(data)
	if err != nil {
		return nil, false, err
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE emissions SET hits = hits + 1 WHERE key = ?`, key[:]); err != nil {
		log.Warningf("counting hit for %s: %v", key, err)
	}
	return rec, true, nil
}

// Put stores rec under key, replacing any previous record.
func (s *Store) Put(ctx context.Context, key Key, rec *Record) error {
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().Unix()
	}
	data, err := MarshalRecord(rec)
	if err != nil {
		return fmt.Errorf("cache: encoding record: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO emissions (key, record, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET record = excluded.record, created_at = excluded.created_at, hits = 0`,
		key[:], data, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("cache: writing %s: %w", key, err)
	}
	return nil
}

// Prune deletes records created before the cutoff and returns how many
// were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM emissions WHERE created_at < ?`, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("cache: pruning: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns entry, hit and byte counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(hits), 0), COALESCE(SUM(LENGTH(record)), 0) FROM emissions`,
	).Scan(&st.Entries, &st.Hits, &st.Bytes)
	if err != nil {
		return Stats{}, fmt.Errorf("cache: stats: %w", err)
	}
	return st, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
