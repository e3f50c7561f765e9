// Package sessionstore persists checker-run summaries (an
// [engine.Summary], as produced at Teardown) to a local, queryable history:
// every run is appended to a WAL, then replayed into a SQLite index:
// JSON-encoded ops with a CRC32C-checksummed footer, replayed on Open and
// truncated once durable in SQLite.
package sessionstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Store is a single open session history, backed by one WAL file and one
// SQLite database in the same directory.
type Store struct {
	mu sync.Mutex

	dir    string
	wal    *os.File
	sql    *sql.DB
	closed bool
}

// Open opens (creating if absent) the session store rooted at dir. It
// recovers any uncommitted or unindexed WAL entries before returning.
func Open(ctx context.Context, dir string) (*Store, error) {
	err := os.MkdirAll(dir, 0o750)
	if err != nil {
		return nil, fmt.Errorf("sessionstore open: mkdir %s: %w", dir, err)
	}

	walFile, err := os.OpenFile(filepath.Join(dir, "sessions.wal"), os.O_RDWR|os.O_CREATE, 0o640)
	if err != nil {
		return nil, fmt.Errorf("sessionstore open: open wal: %w", err)
	}

	success := false

	defer func() {
		if !success {
			_ = walFile.Close()
		}
	}()

	db, err := openSqlite(ctx, filepath.Join(dir, "sessions.db"))
	if err != nil {
		return nil, fmt.Errorf("sessionstore open: %w", err)
	}

	defer func() {
		if !success {
			_ = db.Close()
		}
	}()

	s := &Store{dir: dir, wal: walFile, sql: db}

	err = s.recover(ctx)
	if err != nil {
		return nil, fmt.Errorf("sessionstore open: %w", err)
	}

	success = true

	return s, nil
}

// recover replays a committed WAL into SQLite (bringing the schema current
// if needed) and truncates the WAL once the index reflects it.
func (s *Store) recover(ctx context.Context) error {
	schemaStale := false

	version, err := storedSchemaVersion(ctx, s.sql)
	if err != nil {
		return err
	}

	if version != currentSchemaVersion {
		schemaStale = true
	}

	state, body, err := readWalState(s.wal)
	if err != nil {
		return err
	}

	switch state {
	case walEmpty:
		if schemaStale {
			return s.reindexEmpty(ctx)
		}

		return nil
	case walUncommitted:
		err = truncateWal(s.wal)
		if err != nil {
			return fmt.Errorf("recover: truncate uncommitted wal: %w", err)
		}

		if schemaStale {
			return s.reindexEmpty(ctx)
		}

		return nil
	case walCommitted:
		ops, err := decodeWalOps(body)
		if err != nil {
			return fmt.Errorf("recover: %w", err)
		}

		if schemaStale {
			err = s.reindexEmpty(ctx)
			if err != nil {
				return err
			}
		}

		err = applyOps(ctx, s.sql, ops, schemaStale)
		if err != nil {
			return fmt.Errorf("recover: %w", err)
		}

		return truncateWal(s.wal)
	default:
		return fmt.Errorf("recover: unknown wal state %d", state)
	}
}

func (s *Store) reindexEmpty(ctx context.Context) error {
	tx, err := s.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("reindex begin txn: %w", err)
	}

	committed := false

	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	err = dropAndRecreateSchema(ctx, tx)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion))
	if err != nil {
		return fmt.Errorf("reindex set user_version: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("reindex commit: %w", err)
	}

	committed = true

	return nil
}

// Append persists rec: it writes and fsyncs a WAL entry, folds it into the
// SQLite index in the same call, then truncates the WAL. If rec.SessionID
// is empty, a fresh UUID is assigned.
func (s *Store) Append(ctx context.Context, rec Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrClosed
	}

	if rec.SessionID == "" {
		rec.SessionID = uuid.NewString()
	}

	err := appendWAL(s.wal, nil, rec)
	if err != nil {
		return "", fmt.Errorf("sessionstore append: %w", err)
	}

	err = applyOps(ctx, s.sql, []walOp{{SessionID: rec.SessionID, Record: rec}}, false)
	if err != nil {
		return "", fmt.Errorf("sessionstore append: %w", err)
	}

	err = truncateWal(s.wal)
	if err != nil {
		return "", fmt.Errorf("sessionstore append: %w", err)
	}

	return rec.SessionID, nil
}

// Close releases the WAL file handle and the SQLite connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	walErr := s.wal.Close()
	sqlErr := s.sql.Close()

	if walErr != nil {
		return fmt.Errorf("sessionstore close: %w", walErr)
	}

	if sqlErr != nil {
		return fmt.Errorf("sessionstore close: %w", sqlErr)
	}

	return nil
}
