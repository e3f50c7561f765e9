package logsink_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/pmemcheck/internal/logsink"
)

func Test_Sink_Formats_Every_Record_Kind(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	s := logsink.New(&buf)
	s.Start()
	s.Store(0x1000, 0xdead, 8, true)
	s.Flush(0x1000, 0x40)
	s.Fence()
	s.Commit()
	s.RegisterFile("/tmp/data.bin", 0x1000, 0x1000, 0)
	s.Marker(logsink.MarkerFullReorder)
	s.Marker(logsink.MarkerPartialReorder)
	s.Marker(logsink.MarkerOnlyFault)
	s.Marker(logsink.MarkerStopReorderFault)
	s.Stop()

	want := "START\n" +
		"|STORE;0x1000;0xdead;0x8\n" +
		"|FLUSH;0x1000;0x40\n" +
		"|FENCE\n" +
		"|COMMIT\n" +
		"|REGISTER_FILE;/tmp/data.bin;0x1000;0x1000;0x0\n" +
		"|FREORDER\n" +
		"|PREORDER\n" +
		"|FAULT_ONLY\n" +
		"|NO_REORDER_FAULT\n" +
		"|STOP\n"

	require.Equal(t, want, buf.String())
}

func Test_Sink_Store_Is_Silent_When_Inactive(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	s := logsink.New(&buf)
	s.Store(0x1000, 1, 8, false)

	require.Empty(t, buf.String())
}
