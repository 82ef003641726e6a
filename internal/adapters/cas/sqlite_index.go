package cas

import (
	"database/sql"
	"errors"
	"sync"

	"go.trai.ch/sift/internal/core/domain"
	"go.trai.ch/sift/internal/core/ports"
	"go.trai.ch/zerr"

	_ "modernc.org/sqlite"
)

// SQLiteIndexFile is the file name of the SQLite index inside the cache dir.
const SQLiteIndexFile = "index.db"

const nextArtifactKey = "next_artifact"

var _ ports.CacheIndex = (*SQLiteIndex)(nil)

// SQLiteIndex persists cache entries in an SQLite database.
type SQLiteIndex struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteIndex opens or creates the database at dbPath.
// Use ":memory:" for an in-memory database.
func NewSQLiteIndex(dbPath string) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to open sqlite index"), "path", dbPath)
	}
	// A single connection keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)

	index := &SQLiteIndex{db: db}
	if err := index.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, zerr.With(zerr.Wrap(err, "failed to initialize sqlite index"), "path", dbPath)
	}
	return index, nil
}

func (i *SQLiteIndex) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		input_path TEXT PRIMARY KEY,
		output_path TEXT NOT NULL,
		size INTEGER NOT NULL,
		mode INTEGER NOT NULL,
		mtime INTEGER NOT NULL,
		digest INTEGER NOT NULL,
		artifact TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);
	`
	_, err := i.db.Exec(schema)
	return err
}

// Load reads every entry and the next artifact sequence number.
func (i *SQLiteIndex) Load() (map[domain.RelativePath]domain.CacheEntry, uint64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	rows, err := i.db.Query("SELECT input_path, output_path, size, mode, mtime, digest, artifact FROM entries")
	if err != nil {
		return nil, 0, zerr.Wrap(err, "failed to query cache entries")
	}
	defer rows.Close() //nolint:errcheck // Best effort close in defer

	entries := make(map[domain.RelativePath]domain.CacheEntry)
	for rows.Next() {
		var (
			entry         domain.CacheEntry
			size, digest  int64
			mode          int64
			input, output string
		)
		if err := rows.Scan(&input, &output, &size, &mode, &entry.Fingerprint.MTime, &digest, &entry.Artifact); err != nil {
			return nil, 0, zerr.Wrap(err, "failed to scan cache entry")
		}
		entry.InputPath = domain.RelativePath(input)
		entry.OutputPath = domain.RelativePath(output)
		entry.Fingerprint.Size = uint64(size)     //nolint:gosec // Stored from a uint64
		entry.Fingerprint.Mode = uint32(mode)     //nolint:gosec // Stored from a uint32
		entry.Fingerprint.Digest = uint64(digest) //nolint:gosec // Bit pattern round trip
		entries[entry.InputPath] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, 0, zerr.Wrap(err, "failed to iterate cache entries")
	}

	var next int64
	err = i.db.QueryRow("SELECT value FROM meta WHERE key = ?", nextArtifactKey).Scan(&next)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, 0, zerr.Wrap(err, "failed to read artifact sequence")
	}

	return entries, uint64(next), nil //nolint:gosec // Stored from a uint64
}

// Save replaces every stored entry in a single transaction.
func (i *SQLiteIndex) Save(entries map[domain.RelativePath]domain.CacheEntry, next uint64) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	tx, err := i.db.Begin()
	if err != nil {
		return zerr.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	if _, err := tx.Exec("DELETE FROM entries"); err != nil {
		return zerr.Wrap(err, "failed to clear cache entries")
	}

	stmt, err := tx.Prepare(
		"INSERT INTO entries (input_path, output_path, size, mode, mtime, digest, artifact) VALUES (?, ?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return zerr.Wrap(err, "failed to prepare insert")
	}
	defer stmt.Close() //nolint:errcheck // Best effort close in defer

	for _, entry := range entries {
		fp := entry.Fingerprint
		_, err := stmt.Exec(
			string(entry.InputPath), string(entry.OutputPath),
			int64(fp.Size), int64(fp.Mode), fp.MTime, int64(fp.Digest), //nolint:gosec // Bit pattern round trip
			entry.Artifact,
		)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to insert cache entry"), "path", string(entry.InputPath))
		}
	}

	_, err = tx.Exec(
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		nextArtifactKey, int64(next), //nolint:gosec // Sequence numbers stay far below MaxInt64
	)
	if err != nil {
		return zerr.Wrap(err, "failed to store artifact sequence")
	}

	if err := tx.Commit(); err != nil {
		return zerr.Wrap(err, "failed to commit cache index")
	}
	return nil
}

// Close closes the database.
func (i *SQLiteIndex) Close() error {
	return i.db.Close()
}
