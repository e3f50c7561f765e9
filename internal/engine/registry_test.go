package engine_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/pmemcheck/internal/engine"
	"github.com/calvinalkan/pmemcheck/pkg/interval"
)

func Test_Registry_Merges_Touching_Regions(t *testing.T) {
	t.Parallel()

	r := engine.NewRegistry()
	r.Register(interval.Interval{Addr: 0x1000, Size: 0x100})
	r.Register(interval.Interval{Addr: 0x1100, Size: 0x100})

	require.Equal(t, 1, r.Len())
}

func Test_Registry_Deregister_Splits_Middle(t *testing.T) {
	t.Parallel()

	r := engine.NewRegistry()
	r.Register(interval.Interval{Addr: 0x1000, Size: 0x300})
	r.Deregister(interval.Interval{Addr: 0x1100, Size: 0x100})

	require.Equal(t, 2, r.Len())
	require.False(t, r.ContainsAny(interval.Interval{Addr: 0x1100, Size: 0x100}))
}
