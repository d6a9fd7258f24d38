package culog

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"sync"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

const storeAPIVersion = 1

// Store persists log entries to a local sqlite database so operators
// can query device-fatal errors and EOS transitions after a restart.
// Grounded on the NVR logger's sqlite-backed persistence; kept
// separate from the in-memory fan-out in Logger so a slow disk never
// blocks a producing goroutine.
type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

// OpenStore opens (creating if needed) the sqlite log store at path.
func OpenStore(path string) (*Store, error) {
	exists := fileExists(path)

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("could not open log store: %w", err)
	}

	if !exists {
		if err := createSchema(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("could not create log store schema: %w", err)
		}
	} else if err := checkSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{path: path, db: db}, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`create table entries (
		time INTEGER not null,
		level INTEGER not null,
		src TEXT not null,
		input TEXT,
		output TEXT,
		msg TEXT not null
	);`)
	if err != nil {
		return err
	}
	_, err = db.Exec("PRAGMA user_version = " + strconv.Itoa(storeAPIVersion))
	return err
}

func checkSchema(db *sql.DB) error {
	row := db.QueryRow("PRAGMA user_version;")
	var version int
	if err := row.Scan(&version); err != nil {
		return fmt.Errorf("could not read log store version: %w", err)
	}
	if version != storeAPIVersion {
		return fmt.Errorf("incompatible log store version %d, expected %d", version, storeAPIVersion)
	}
	return nil
}

const maxRows = 100_000

// Save persists one entry and trims the table to maxRows, oldest
// first.
func (s *Store) Save(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("could not start transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(
		"insert into entries(time, level, src, input, output, msg) values(?, ?, ?, ?, ?, ?)",
		e.Time.UnixMilli(), e.Level, e.Src, string(e.Input), string(e.Output), e.Msg,
	)
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}

	_, err = tx.Exec(
		"DELETE FROM entries WHERE rowid NOT IN (SELECT rowid FROM entries ORDER BY time DESC LIMIT ?)",
		maxRows,
	)
	if err != nil {
		return fmt.Errorf("trim: %w", err)
	}

	return tx.Commit()
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveFromFeed drains ch, persisting every entry, until ch is closed.
// Intended to run in its own goroutine fed by Logger.Subscribe.
func (s *Store) SaveFromFeed(ch <-chan Entry) {
	for e := range ch {
		if err := s.Save(e); err != nil {
			fmt.Fprintf(os.Stderr, "culog: could not persist entry: %v\n", err)
		}
	}
}
