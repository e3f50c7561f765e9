package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Query reads session summaries from SQLite; it never touches the WAL, so
// callers can list quickly right after Append.
func (s *Store) Query(ctx context.Context, opts *QueryOptions) ([]Record, error) {
	if ctx == nil {
		return nil, errors.New("query: context is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	options := QueryOptions{}
	if opts != nil {
		options = *opts
	}

	if options.Limit < 0 || options.Offset < 0 {
		return nil, errors.New("query: limit/offset must be non-negative")
	}

	clauses := make([]string, 0, 5)
	args := make([]any, 0, 5)

	if options.Host != "" {
		clauses = append(clauses, "host = ?")
		args = append(args, options.Host)
	}

	if options.SessionID != "" {
		clauses = append(clauses, "session_id = ?")
		args = append(args, options.SessionID)
	}

	if options.MinNonPersistentBytes > 0 {
		clauses = append(clauses, "non_persistent_bytes >= ?")
		args = append(args, options.MinNonPersistentBytes)
	}

	if !options.StartedAfter.IsZero() {
		clauses = append(clauses, "started_at >= ?")
		args = append(args, options.StartedAfter.UnixNano())
	}

	if !options.StartedBefore.IsZero() {
		clauses = append(clauses, "started_at <= ?")
		args = append(args, options.StartedBefore.UnixNano())
	}

	query := strings.Builder{}
	query.WriteString(`
		SELECT session_id, host, config_digest, started_at, finished_at,
			non_persistent_bytes, non_persistent_count, overwrite_count, multi_flush_count
		FROM sessions`)

	if len(clauses) > 0 {
		query.WriteString(" WHERE ")
		query.WriteString(strings.Join(clauses, " AND "))
	}

	query.WriteString(" ORDER BY started_at DESC")

	if options.Limit > 0 {
		query.WriteString(" LIMIT ?")
		args = append(args, options.Limit)

		if options.Offset > 0 {
			query.WriteString(" OFFSET ?")
			args = append(args, options.Offset)
		}
	} else if options.Offset > 0 {
		query.WriteString(" LIMIT -1 OFFSET ?")
		args = append(args, options.Offset)
	}

	rows, err := s.sql.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	defer func() { _ = rows.Close() }()

	records := make([]Record, 0)

	for rows.Next() {
		var (
			rec                Record
			startedAt, finished int64
		)

		err = rows.Scan(
			&rec.SessionID, &rec.Host, &rec.ConfigDigest,
			&startedAt, &finished,
			&rec.NonPersistentBytes, &rec.NonPersistentCount, &rec.OverwriteCount, &rec.MultiFlushCount,
		)
		if err != nil {
			return nil, fmt.Errorf("query scan: %w", err)
		}

		rec.StartedAt = time.Unix(0, startedAt).UTC()
		rec.FinishedAt = time.Unix(0, finished).UTC()

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}

	for i := range records {
		err = s.fillDetails(ctx, &records[i])
		if err != nil {
			return nil, err
		}
	}

	return records, nil
}

// fillDetails loads the three detail kinds for one session, in insertion
// (seq) order, without a join against the wide sessions row.
func (s *Store) fillDetails(ctx context.Context, rec *Record) error {
	rows, err := s.sql.QueryContext(ctx, `
		SELECT kind, addr, size, state, call_site, ip_addr
		FROM session_details
		WHERE session_id = ?
		ORDER BY kind, seq`, rec.SessionID)
	if err != nil {
		return fmt.Errorf("query details %s: %w", rec.SessionID, err)
	}

	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			kind string
			d    DetailRecord
		)

		err = rows.Scan(&kind, &d.Addr, &d.Size, &d.State, &d.CallSite, &d.IPAddr)
		if err != nil {
			return fmt.Errorf("query details scan %s: %w", rec.SessionID, err)
		}

		switch detailKind(kind) {
		case kindNonPersistent:
			rec.NonPersistent = append(rec.NonPersistent, d)
		case kindOverwrite:
			rec.Overwrites = append(rec.Overwrites, d)
		case kindMultiFlush:
			rec.MultiFlushes = append(rec.MultiFlushes, d)
		}
	}

	return rows.Err()
}
