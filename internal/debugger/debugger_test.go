package debugger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Completer_Matches_Known_Prefixes(t *testing.T) {
	t.Parallel()

	d := &REPL{}
	require.ElementsMatch(t, []string{"print_stats"}, d.completer("print_s"))
	require.ElementsMatch(t, []string{"q", "quit"}, d.completer("q"))
	require.Empty(t, d.completer("nope"))
}
