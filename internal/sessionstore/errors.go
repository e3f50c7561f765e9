package sessionstore

import "errors"

// ErrWALCorrupt reports a committed WAL whose checksum does not match its body.
// Callers should use errors.Is(err, ErrWALCorrupt).
var ErrWALCorrupt = errors.New("wal corrupt")

// ErrWALReplay reports WAL decode or validation failures during recovery.
// Callers should use errors.Is(err, ErrWALReplay).
var ErrWALReplay = errors.New("wal replay")

// ErrIndexUpdate reports failures applying WAL ops to the SQLite index.
// Callers should use errors.Is(err, ErrIndexUpdate).
var ErrIndexUpdate = errors.New("index update")

// ErrClosed is returned by every method once Close has run.
var ErrClosed = errors.New("sessionstore: closed")
