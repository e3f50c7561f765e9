package engine_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/pmemcheck/internal/engine"
)

func Test_Unflushed_Store_Is_Reported_Nonpersistent_At_Teardown(t *testing.T) {
	t.Parallel()

	e := engine.New(engine.GlobalConfig{FlushAlign: 64}, nil, nil)
	e.RegisterMapping(0x1000, 0x1000)

	require.NoError(t, e.TraceStore(0x1000, 8, 0xABC))

	summary := e.Teardown()
	require.Len(t, summary.NonPersistent, 1)
	require.Equal(t, uint64(8), summary.NonPersistentBytes)
	require.Equal(t, engine.StateDirty, summary.NonPersistent[0].State)
}

func Test_Full_Persistence_Cycle_Clears_The_Tracker(t *testing.T) {
	t.Parallel()

	e := engine.New(engine.GlobalConfig{FlushAlign: 64}, nil, nil)
	e.RegisterMapping(0x1000, 0x1000)

	require.NoError(t, e.TraceStore(0x1000, 8, 0xABC))
	e.Flush(0x1000, 8)
	e.Fence()
	e.Commit()
	e.Fence()

	summary := e.Teardown()
	require.Empty(t, summary.NonPersistent)
}

func Test_Overwrite_Of_Dirty_Store_Is_Flagged_When_Tracking_Enabled(t *testing.T) {
	t.Parallel()

	e := engine.New(engine.GlobalConfig{FlushAlign: 64, TrackMultipleStores: true}, nil, nil)
	e.RegisterMapping(0x1000, 0x1000)

	require.NoError(t, e.TraceStore(0x1000, 8, 0x1))
	require.NoError(t, e.TraceStore(0x1000, 8, 0x2))

	summary := e.Report()
	require.Len(t, summary.Overwrites, 1)
	require.Equal(t, uint64(0x1000), summary.Overwrites[0].Addr)
}

func Test_Overwrite_Within_Indifference_Window_Is_Suppressed(t *testing.T) {
	t.Parallel()

	e := engine.New(engine.GlobalConfig{FlushAlign: 64, TrackMultipleStores: true, StoreSBIndiff: 5}, nil, nil)
	e.RegisterMapping(0x1000, 0x1000)

	require.NoError(t, e.TraceStore(0x1000, 8, 0x1))
	e.OnSBEnter()
	require.NoError(t, e.TraceStore(0x1000, 8, 0x1)) // same addr, size, value, within window

	summary := e.Report()
	require.Empty(t, summary.Overwrites)
}

func Test_Overwrite_Outside_Indifference_Window_Still_Flagged(t *testing.T) {
	t.Parallel()

	e := engine.New(engine.GlobalConfig{FlushAlign: 64, TrackMultipleStores: true, StoreSBIndiff: 2}, nil, nil)
	e.RegisterMapping(0x1000, 0x1000)

	require.NoError(t, e.TraceStore(0x1000, 8, 0x1))

	for range 3 {
		e.OnSBEnter()
	}

	require.NoError(t, e.TraceStore(0x1000, 8, 0x1))

	summary := e.Report()
	require.Len(t, summary.Overwrites, 1)
}

func Test_Flushing_An_Already_Flushed_Store_Is_Recorded_As_Multi_Flush(t *testing.T) {
	t.Parallel()

	e := engine.New(engine.GlobalConfig{FlushAlign: 64, CheckFlush: true}, nil, nil)
	e.RegisterMapping(0x1000, 0x1000)

	require.NoError(t, e.TraceStore(0x1000, 8, 0x1))
	e.Flush(0x1000, 8)
	e.Flush(0x1000, 8) // redundant: already FLUSHED

	summary := e.Report()
	require.Len(t, summary.MultiFlushes, 1)
}

func Test_Flush_Window_Narrower_Than_Store_Splits_Off_Dirty_Fragments(t *testing.T) {
	t.Parallel()

	e := engine.New(engine.GlobalConfig{FlushAlign: 64}, nil, nil)
	e.RegisterMapping(0x0, 0x1000)

	// a 128-byte store straddling three cache lines
	require.NoError(t, e.TraceStore(0x30, 128, 0x1))

	// flush only the first 64-byte line
	e.Flush(0x0, 64)

	tracked := e.Tracked()
	require.Len(t, tracked, 2)

	var sawFlushed, sawDirty bool

	for _, ts := range tracked {
		switch ts.Payload.State {
		case engine.StateFlushed:
			sawFlushed = true
		case engine.StateDirty:
			sawDirty = true
		}
	}

	require.True(t, sawFlushed)
	require.True(t, sawDirty)
}

func Test_ClassifyMapping_Reports_Registered_Regions(t *testing.T) {
	t.Parallel()

	e := engine.New(engine.DefaultGlobalConfig(), nil, nil)
	e.RegisterMapping(0x1000, 0x1000)

	require.NotEqual(t, 0, int(e.ClassifyMapping(0x1000, 0x10)))

	e.RemoveMapping(0x1000, 0x1000)
	require.Equal(t, 0, int(e.ClassifyMapping(0x1000, 0x10)))
}

func Test_Store_Outside_Any_Mapping_Is_Not_Tracked(t *testing.T) {
	t.Parallel()

	e := engine.New(engine.DefaultGlobalConfig(), nil, nil)

	require.NoError(t, e.TraceStore(0x1000, 8, 0x1))
	require.Empty(t, e.Tracked())
}
