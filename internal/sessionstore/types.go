package sessionstore

import "time"

// DetailRecord mirrors engine.Detail in a storable shape (flattened call site,
// no pointer fields) so it round-trips through JSON and SQLite columns.
type DetailRecord struct {
	Addr     uint64 `json:"addr"`
	Size     uint64 `json:"size"`
	State    string `json:"state"`
	CallSite string `json:"call_site"`
	IPAddr   uint64 `json:"ip_addr"`
}

// Record is one persisted checker run: the Teardown [engine.Summary], tagged
// with a session ID, host, and wall-clock bounds. This is what `pmemcheck
// query` reads back.
type Record struct {
	SessionID          string
	Host               string
	ConfigDigest       string
	StartedAt          time.Time
	FinishedAt         time.Time
	NonPersistentBytes uint64
	NonPersistentCount int
	OverwriteCount     int
	MultiFlushCount    int
	NonPersistent      []DetailRecord
	Overwrites         []DetailRecord
	MultiFlushes       []DetailRecord
}

// asRows flattens a Record into its three detail slices for SQLite storage,
// each tagged with the owning session ID and a kind discriminator.
func (r Record) asRows() []detailRow {
	rows := make([]detailRow, 0, len(r.NonPersistent)+len(r.Overwrites)+len(r.MultiFlushes))

	for _, d := range r.NonPersistent {
		rows = append(rows, detailRow{SessionID: r.SessionID, Kind: kindNonPersistent, Detail: d})
	}

	for _, d := range r.Overwrites {
		rows = append(rows, detailRow{SessionID: r.SessionID, Kind: kindOverwrite, Detail: d})
	}

	for _, d := range r.MultiFlushes {
		rows = append(rows, detailRow{SessionID: r.SessionID, Kind: kindMultiFlush, Detail: d})
	}

	return rows
}

type detailKind string

const (
	kindNonPersistent detailKind = "non_persistent"
	kindOverwrite     detailKind = "overwrite"
	kindMultiFlush    detailKind = "multi_flush"
)

type detailRow struct {
	SessionID string
	Kind      detailKind
	Detail    DetailRecord
}

// QueryOptions mirrors the allowed SQLite filters for `pmemcheck query`; zero
// values mean "no filter".
type QueryOptions struct {
	Host                  string
	SessionID             string
	MinNonPersistentBytes uint64
	StartedAfter          time.Time
	StartedBefore         time.Time
	Limit                 int
	Offset                int
}
