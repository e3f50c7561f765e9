// Package checkpoint atomically snapshots a live [engine.Engine] to disk
// and restores it, so a long-running debugger session survives a restart
// without losing its in-flight tracking state.
package checkpoint

import (
	"encoding/json"
	"fmt"

	"github.com/calvinalkan/pmemcheck/internal/engine"
	"github.com/calvinalkan/pmemcheck/internal/fs"
)

// RegisteredFile is one backing file the engine learned about via
// REGISTER_FILE, carried in the checkpoint so [Rescan] can confirm it's
// still there after a resume.
type RegisteredFile struct {
	Path   string
	Addr   uint64
	Size   uint64
	Offset uint64
}

// State is the full on-disk checkpoint shape: the engine's snapshot plus
// the registered-file manifest [Rescan] checks on resume.
type State struct {
	Snapshot engine.Snapshot
	Files    []RegisteredFile
}

// checkpointPerm is the mode new checkpoint files are written with;
// checkpoints carry call-site strings and file paths, nothing a stricter
// mode would be warranted for.
const checkpointPerm = 0o644

// Save writes state to path via fsys. [fs.FS.WriteFileAtomic] is a temp
// file + rename, so a crash mid-write can never corrupt a previously saved
// checkpoint.
func Save(fsys fs.FS, path string, state State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("checkpoint: marshal: %w", err)
	}

	if err := fsys.WriteFileAtomic(path, data, checkpointPerm); err != nil {
		return fmt.Errorf("checkpoint: write %s: %w", path, err)
	}

	return nil
}

// Load reads and decodes a checkpoint written by [Save].
func Load(fsys fs.FS, path string) (State, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return State{}, fmt.Errorf("checkpoint: read %s: %w", path, err)
	}

	var state State

	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("checkpoint: unmarshal %s: %w", path, err)
	}

	return state, nil
}

// Lock acquires an advisory lock on path via fsys, so two debugger sessions
// never resume the same checkpoint concurrently. Callers close the
// returned [fs.Locker] when the session ends (clean shutdown or crash
// recovery handoff).
func Lock(fsys fs.FS, path string) (fs.Locker, error) {
	lock, err := fsys.Lock(path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: lock %s: %w", path, err)
	}

	return lock, nil
}
