package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/calvinalkan/fileproc"
)

// RescanIssue flags one registered file that no longer matches what was
// checkpointed.
type RescanIssue struct {
	File   RegisteredFile
	Reason string
}

// rescanEntry is the per-file result [fileproc.ProcessStat] collects: a
// confirmed on-disk size, keyed back to its registered file by path.
type rescanEntry struct {
	path string
	size int64
}

// Rescan walks dir (the directory previously holding REGISTER_FILE'd
// backing files) after a resume and confirms every file in files still
// exists and is sized consistently with its registered mapping
// (size+offset must still fit within the on-disk file). It never mutates
// the checkpoint or the engine; callers decide what to do with the
// returned issues (typically: warn and continue, since a resized backing
// file doesn't itself invalidate already-tracked stores).
func Rescan(ctx context.Context, dir string, files []RegisteredFile) ([]RescanIssue, error) {
	if len(files) == 0 {
		return nil, nil
	}

	opts := fileproc.Options{Recursive: true}

	results, errs := fileproc.ProcessStat(ctx, dir, func(path []byte, st fileproc.Stat, _ fileproc.LazyFile) (*rescanEntry, error) {
		return &rescanEntry{path: filepath.Join(dir, string(path)), size: st.Size}, nil
	}, opts)

	if len(errs) > 0 {
		return nil, fmt.Errorf("checkpoint: rescan %s: %w", dir, errors.Join(errs...))
	}

	onDisk := make(map[string]int64, len(results))
	for _, r := range results {
		onDisk[r.Value.path] = r.Value.size
	}

	var issues []RescanIssue

	for _, f := range files {
		size, ok := onDisk[f.Path]
		if !ok {
			issues = append(issues, RescanIssue{File: f, Reason: "file no longer exists"})

			continue
		}

		if uint64(size) < f.Offset+f.Size {
			issues = append(issues, RescanIssue{File: f, Reason: "file shrank below the registered mapping"})
		}
	}

	return issues, nil
}
