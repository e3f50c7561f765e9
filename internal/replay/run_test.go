package replay

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Run_Prints_Usage_With_No_Args_Or_Help_Flag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{name: "no args", args: []string{"pmemcheck"}},
		{name: "long flag", args: []string{"pmemcheck", "--help"}},
		{name: "short flag", args: []string{"pmemcheck", "-h"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var stdout, stderr bytes.Buffer

			exitCode := Run(nil, &stdout, &stderr, tc.args, nil, nil)

			require.Equal(t, 0, exitCode)
			require.Empty(t, stderr.String())

			out := stdout.String()
			require.Contains(t, out, "pmemcheck - a persistent-memory correctness checker")
			require.Contains(t, out, "--cwd")
			require.Contains(t, out, "trace")
			require.Contains(t, out, "debug")
			require.Contains(t, out, "query")
		})
	}
}

func Test_Run_Rejects_Unknown_Command(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer

	exitCode := Run(nil, &stdout, &stderr, []string{"pmemcheck", "frobnicate"}, nil, nil)

	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "unknown command")
}

func Test_Run_Rejects_Invalid_Yes_No_Override(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer

	exitCode := Run(nil, &stdout, &stderr, []string{"pmemcheck", "--mult-stores=maybe", "trace", "x"}, nil, nil)

	require.Equal(t, 1, exitCode)
	require.True(t, strings.Contains(stderr.String(), "mult-stores"))
}

func Test_Run_Traces_An_Event_File(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	eventFile := dir + "/events.txt"
	writeFile(t, eventFile, "register_mapping 0x1000 0x40\nstore 0x1000 0x8 0xdead\ndo_flush 0x1000 0x40\ndo_fence\ndo_commit\ndo_fence\n")

	var stdout, stderr bytes.Buffer

	env := map[string]string{"HOME": dir}
	exitCode := Run(nil, &stdout, &stderr, []string{"pmemcheck", "-C", dir, "trace", eventFile}, env, nil)

	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "non-persistent stores: 0")
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()

	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}
