package checkpoint_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/pmemcheck/internal/checkpoint"
	"github.com/calvinalkan/pmemcheck/internal/engine"
	"github.com/calvinalkan/pmemcheck/internal/fs"
)

func Test_Save_Load_Round_Trips_Engine_Snapshot(t *testing.T) {
	t.Parallel()

	e := engine.New(engine.GlobalConfig{FlushAlign: 64}, nil, nil)
	e.RegisterMapping(0x1000, 0x1000)
	require.NoError(t, e.TraceStore(0x1000, 8, 0xA))

	dir := t.TempDir()
	path := filepath.Join(dir, "checkpoint.json")

	state := checkpoint.State{
		Snapshot: e.Snapshot(),
		Files:    []checkpoint.RegisteredFile{{Path: filepath.Join(dir, "backing.bin"), Addr: 0x1000, Size: 0x1000}},
	}

	fsys := fs.NewReal()

	require.NoError(t, checkpoint.Save(fsys, path, state))

	loaded, err := checkpoint.Load(fsys, path)
	require.NoError(t, err)
	require.Equal(t, state.Files, loaded.Files)

	restored := engine.New(engine.GlobalConfig{FlushAlign: 64}, nil, nil)
	require.NoError(t, restored.Restore(loaded.Snapshot))
	require.Equal(t, e.Tracked(), restored.Tracked())
}

func Test_Lock_Prevents_Concurrent_Resume(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "checkpoint.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	fsys := fs.NewReal()

	lock, err := checkpoint.Lock(fsys, path)
	require.NoError(t, err)
	defer lock.Close()

	_, err = fsys.Lock(path)
	require.Error(t, err)
}

func Test_Rescan_Flags_Missing_And_Shrunk_Files(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "present.bin"), make([]byte, 0x1000), 0o644))

	files := []checkpoint.RegisteredFile{
		{Path: filepath.Join(dir, "present.bin"), Addr: 0x1000, Size: 0x1000, Offset: 0},
		{Path: filepath.Join(dir, "missing.bin"), Addr: 0x2000, Size: 0x1000, Offset: 0},
		{Path: filepath.Join(dir, "present.bin"), Addr: 0x3000, Size: 0x1000, Offset: 0x900},
	}

	issues, err := checkpoint.Rescan(context.Background(), dir, files)
	require.NoError(t, err)
	require.Len(t, issues, 2)
}
