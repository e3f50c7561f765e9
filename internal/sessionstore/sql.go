package sessionstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// currentSchemaVersion is stored in SQLite's user_version pragma. Bump it
// whenever the schema changes; a mismatch triggers a full WAL replay plus
// reindex from scratch on Open.
const currentSchemaVersion = 1

const sqliteBusyTimeout = 10000 // milliseconds

func openSqlite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("open sqlite: path is empty")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	err = db.PingContext(ctx)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	err = applyPragmas(ctx, db)
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	return db, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		PRAGMA busy_timeout = %d;
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = FULL;
		PRAGMA temp_store = MEMORY;
	`, sqliteBusyTimeout))
	if err != nil {
		return fmt.Errorf("apply pragmas: %w", err)
	}

	return nil
}

func storedSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int

	err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}

	return version, nil
}

func dropAndRecreateSchema(ctx context.Context, tx *sql.Tx) error {
	statements := []string{
		"DROP TABLE IF EXISTS session_details",
		"DROP TABLE IF EXISTS sessions",
		`CREATE TABLE sessions (
			session_id TEXT PRIMARY KEY,
			host TEXT NOT NULL,
			config_digest TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			non_persistent_bytes INTEGER NOT NULL,
			non_persistent_count INTEGER NOT NULL,
			overwrite_count INTEGER NOT NULL,
			multi_flush_count INTEGER NOT NULL
		) WITHOUT ROWID`,
		`CREATE TABLE session_details (
			session_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			seq INTEGER NOT NULL,
			addr INTEGER NOT NULL,
			size INTEGER NOT NULL,
			state TEXT NOT NULL,
			call_site TEXT NOT NULL,
			ip_addr INTEGER NOT NULL,
			PRIMARY KEY (session_id, kind, seq)
		) WITHOUT ROWID`,
		"CREATE INDEX idx_sessions_host ON sessions(host)",
		"CREATE INDEX idx_sessions_started_at ON sessions(started_at)",
		"CREATE INDEX idx_sessions_bytes ON sessions(non_persistent_bytes)",
	}

	for i, stmt := range statements {
		_, err := tx.ExecContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}

	return nil
}

// applyOps replays WAL ops into SQLite within a single transaction, then
// advances user_version if it wasn't already current.
func applyOps(ctx context.Context, db *sql.DB, ops []walOp, setVersion bool) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("apply ops begin txn: %w: %w", ErrIndexUpdate, err)
	}

	committed := false

	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	insertSession, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO sessions (
			session_id, host, config_digest, started_at, finished_at,
			non_persistent_bytes, non_persistent_count, overwrite_count, multi_flush_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("apply ops prepare insert session: %w: %w", ErrIndexUpdate, err)
	}

	defer func() { _ = insertSession.Close() }()

	insertDetail, err := tx.PrepareContext(ctx, `
		INSERT INTO session_details (session_id, kind, seq, addr, size, state, call_site, ip_addr)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("apply ops prepare insert detail: %w: %w", ErrIndexUpdate, err)
	}

	defer func() { _ = insertDetail.Close() }()

	for _, op := range ops {
		err = ctx.Err()
		if err != nil {
			return fmt.Errorf("apply ops canceled: %w: %w", ErrIndexUpdate, context.Cause(ctx))
		}

		rec := op.Record

		_, err = tx.ExecContext(ctx, "DELETE FROM session_details WHERE session_id = ?", rec.SessionID)
		if err != nil {
			return fmt.Errorf("apply ops clear details %s: %w: %w", rec.SessionID, ErrIndexUpdate, err)
		}

		_, err = insertSession.ExecContext(ctx,
			rec.SessionID, rec.Host, rec.ConfigDigest,
			rec.StartedAt.UnixNano(), rec.FinishedAt.UnixNano(),
			rec.NonPersistentBytes, rec.NonPersistentCount, rec.OverwriteCount, rec.MultiFlushCount,
		)
		if err != nil {
			return fmt.Errorf("apply ops insert session %s: %w: %w", rec.SessionID, ErrIndexUpdate, err)
		}

		for seq, row := range rec.asRows() {
			_, err = insertDetail.ExecContext(ctx,
				row.SessionID, string(row.Kind), seq,
				row.Detail.Addr, row.Detail.Size, row.Detail.State, row.Detail.CallSite, row.Detail.IPAddr,
			)
			if err != nil {
				return fmt.Errorf("apply ops insert detail %s: %w: %w", rec.SessionID, ErrIndexUpdate, err)
			}
		}
	}

	if setVersion {
		_, err = tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion))
		if err != nil {
			return fmt.Errorf("apply ops set user_version: %w: %w", ErrIndexUpdate, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("apply ops commit: %w: %w", ErrIndexUpdate, err)
	}

	committed = true

	return nil
}

// marshalDigest is a small helper kept here (rather than in the engine
// package) so sessionstore owns its own notion of a config fingerprint,
// independent of how checkerconfig represents GlobalConfig in memory.
func marshalDigest(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal config digest: %w", err)
	}

	return string(b), nil
}
