package sessionstore_test

import (
	"testing"
	"time"

	"github.com/calvinalkan/pmemcheck/internal/sessionstore"
)

func Test_Append_Then_Query_Round_Trips_A_Session(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	s, err := sessionstore.Open(t.Context(), dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	defer func() { _ = s.Close() }()

	rec := sessionstore.Record{
		Host:               "build-host-1",
		ConfigDigest:       `{"flush_align":64}`,
		StartedAt:          time.Unix(1000, 0).UTC(),
		FinishedAt:         time.Unix(1010, 0).UTC(),
		NonPersistentBytes: 128,
		NonPersistentCount: 2,
		NonPersistent: []sessionstore.DetailRecord{
			{Addr: 0x1000, Size: 64, State: "DIRTY", CallSite: "main.foo", IPAddr: 0x4010},
			{Addr: 0x2000, Size: 64, State: "FLUSHED", CallSite: "main.bar", IPAddr: 0x4020},
		},
	}

	id, err := s.Append(t.Context(), rec)
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	if id == "" {
		t.Fatal("append returned empty session id")
	}

	got, err := s.Query(t.Context(), &sessionstore.QueryOptions{SessionID: id})
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}

	if got[0].Host != rec.Host {
		t.Fatalf("host = %q, want %q", got[0].Host, rec.Host)
	}

	if got[0].NonPersistentBytes != rec.NonPersistentBytes {
		t.Fatalf("non_persistent_bytes = %d, want %d", got[0].NonPersistentBytes, rec.NonPersistentBytes)
	}

	if len(got[0].NonPersistent) != 2 {
		t.Fatalf("expected 2 non-persistent details, got %d", len(got[0].NonPersistent))
	}

	if got[0].NonPersistent[0].Addr != 0x1000 || got[0].NonPersistent[1].Addr != 0x2000 {
		t.Fatalf("non-persistent details out of order: %+v", got[0].NonPersistent)
	}
}

func Test_Query_Filters_By_Host_And_MinBytes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	s, err := sessionstore.Open(t.Context(), dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	defer func() { _ = s.Close() }()

	for i, host := range []string{"host-a", "host-b", "host-a"} {
		_, err = s.Append(t.Context(), sessionstore.Record{
			Host:               host,
			StartedAt:          time.Unix(int64(1000+i), 0).UTC(),
			FinishedAt:         time.Unix(int64(1001+i), 0).UTC(),
			NonPersistentBytes: uint64(64 * (i + 1)),
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	got, err := s.Query(t.Context(), &sessionstore.QueryOptions{Host: "host-a"})
	if err != nil {
		t.Fatalf("query host: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 records for host-a, got %d", len(got))
	}

	got, err = s.Query(t.Context(), &sessionstore.QueryOptions{MinNonPersistentBytes: 128})
	if err != nil {
		t.Fatalf("query min bytes: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 records with >= 128 bytes, got %d", len(got))
	}
}

func Test_Reopen_After_Clean_Close_Keeps_Appended_Session(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	s, err := sessionstore.Open(t.Context(), dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	id, err := s.Append(t.Context(), sessionstore.Record{
		Host:       "crash-host",
		StartedAt:  time.Unix(2000, 0).UTC(),
		FinishedAt: time.Unix(2001, 0).UTC(),
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Append truncates the WAL after a successful index update, so a clean
	// close leaves nothing to replay; this reopen exercises the walEmpty path.
	s2, err := sessionstore.Open(t.Context(), dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}

	defer func() { _ = s2.Close() }()

	got, err := s2.Query(t.Context(), &sessionstore.QueryOptions{SessionID: id})
	if err != nil {
		t.Fatalf("query after reopen: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("expected session to survive reopen, got %d records", len(got))
	}
}

func Test_Append_Rejects_After_Close(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	s, err := sessionstore.Open(t.Context(), dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	_, err = s.Append(t.Context(), sessionstore.Record{Host: "h"})
	if err == nil {
		t.Fatal("expected error appending after close")
	}
}
