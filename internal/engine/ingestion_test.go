package engine_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/pmemcheck/internal/engine"
)

func Test_TraceStore_Returns_Overwrite_Flood_Once_Threshold_Exceeded(t *testing.T) {
	t.Parallel()

	e := engine.New(engine.GlobalConfig{FlushAlign: 64, TrackMultipleStores: true}, nil, nil)
	e.RegisterMapping(0x0, 0x100000)

	var lastErr error

	for i := 0; i <= engine.MaxMultOverwrites+1; i++ {
		// distinct values each time defeats the benign-rewrite heuristic
		lastErr = e.TraceStore(0x1000, 8, uint64(i))
		if lastErr != nil {
			break
		}
	}

	require.Error(t, lastErr)
	require.True(t, errors.Is(lastErr, engine.ErrOverwriteFlood))
}

func Test_TraceStore_Zero_Size_Is_A_Noop(t *testing.T) {
	t.Parallel()

	e := engine.New(engine.DefaultGlobalConfig(), nil, nil)
	e.RegisterMapping(0x1000, 0x1000)

	require.NoError(t, e.TraceStore(0x1000, 0, 0x1))
	require.Empty(t, e.Tracked())
}

func Test_OnSBEnter_Advances_Superblock_Counter(t *testing.T) {
	t.Parallel()

	e := engine.New(engine.DefaultGlobalConfig(), nil, nil)
	require.Equal(t, uint64(0), e.Superblock())

	e.OnSBEnter()
	e.OnSBEnter()

	require.Equal(t, uint64(2), e.Superblock())
}
