// Package store persists compiled Marten programs in a SQLite database,
// indexed by their content hash.
package store

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/chazu/marten/pkg/dist"
)

// ErrNotFound indicates the requested program is not in the store.
var ErrNotFound = errors.New("store: program not found")

// Store is a content-addressed program store backed by SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if needed) the store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS programs (
		hash TEXT PRIMARY KEY,
		module TEXT NOT NULL,
		data BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put stores a program image keyed by its content hash and returns the
// hash. Storing the same program twice is a no-op.
func (s *Store) Put(img *dist.ProgramImage) ([32]byte, error) {
	data, err := dist.MarshalProgram(img)
	if err != nil {
		return [32]byte{}, fmt.Errorf("serializing program: %w", err)
	}
	hash, err := dist.HashProgram(img)
	if err != nil {
		return [32]byte{}, err
	}

	module := ""
	if img.Entry >= 0 && img.Entry < len(img.Protos) {
		module = img.Protos[img.Entry].Module
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO programs (hash, module, data) VALUES (?, ?, ?)",
		hex.EncodeToString(hash[:]), module, data,
	)
	if err != nil {
		return [32]byte{}, fmt.Errorf("saving program: %w", err)
	}
	return hash, nil
}

// Get loads the program with the given content hash.
func (s *Store) Get(hash [32]byte) (*dist.ProgramImage, error) {
	var data []byte
	err := s.db.QueryRow(
		"SELECT data FROM programs WHERE hash = ?",
		hex.EncodeToString(hash[:]),
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying program: %w", err)
	}

	img, err := dist.UnmarshalProgram(data)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// Has reports whether a program with the given hash is stored.
func (s *Store) Has(hash [32]byte) (bool, error) {
	var one int
	err := s.db.QueryRow(
		"SELECT 1 FROM programs WHERE hash = ?",
		hex.EncodeToString(hash[:]),
	).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("querying program: %w", err)
	}
	return true, nil
}

// ByModule returns the hashes of every stored program whose entry
// prototype carries the given module name.
func (s *Store) ByModule(module string) ([][32]byte, error) {
	rows, err := s.db.Query(
		"SELECT hash FROM programs WHERE module = ? ORDER BY hash",
		module,
	)
	if err != nil {
		return nil, fmt.Errorf("querying module %q: %w", module, err)
	}
	defer rows.Close()

	var hashes [][32]byte
	for rows.Next() {
		var hexHash string
		if err := rows.Scan(&hexHash); err != nil {
			return nil, err
		}
		raw, err := hex.DecodeString(hexHash)
		if err != nil || len(raw) != 32 {
			return nil, fmt.Errorf("corrupt hash %q in store", hexHash)
		}
		var h [32]byte
		copy(h[:], raw)
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

// List returns every (hash, module) pair in the store.
func (s *Store) List() ([]Entry, error) {
	rows, err := s.db.Query("SELECT hash, module FROM programs ORDER BY module, hash")
	if err != nil {
		return nil, fmt.Errorf("listing programs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Hash, &e.Module); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Entry is one stored program's identity.
type Entry struct {
	Hash   string
	Module string
}
