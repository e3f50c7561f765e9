// Package engine implements the durability checker's core: a region
// registry, a store tracker, and the DIRTY/FLUSHED/FENCED/COMMITTED state
// machine that reconciles traced stores against flush/fence/commit events.
package engine

import (
	"fmt"

	"github.com/calvinalkan/pmemcheck/pkg/interval"
)

// StoreState is a position in the durability state machine.
//
//	DIRTY --(flush)--> FLUSHED --(fence)--> FENCED --(commit)--> COMMITTED --(fence)--> retired
//
// CLEAN (retired) is not a member of this type: a retired store is removed
// from the tracker rather than transitioned to a terminal state.
type StoreState uint8

const (
	StateDirty StoreState = iota
	StateFlushed
	StateFenced
	StateCommitted
)

func (s StoreState) String() string {
	switch s {
	case StateDirty:
		return "DIRTY"
	case StateFlushed:
		return "FLUSHED"
	case StateFenced:
		return "FENCED"
	case StateCommitted:
		return "COMMITTED"
	default:
		return fmt.Sprintf("StoreState(%d)", uint8(s))
	}
}

// CallSite is a snapshot of the guest call stack at the moment a store was
// traced, preserved only for reporter attribution. How frames are captured
// is a host-instrumentation concern; the engine treats it as an opaque,
// comparable label.
type CallSite struct {
	Frames []string
}

func (c CallSite) String() string {
	if len(c.Frames) == 0 {
		return "<unknown call site>"
	}

	s := c.Frames[0]
	for _, f := range c.Frames[1:] {
		s += " <- " + f
	}

	return s
}

// StorePayload is the tracker's per-entry metadata for one in-flight store.
type StorePayload struct {
	Value    uint64
	BlockNum uint64
	Context  CallSite
	State    StoreState
}

// TrackedStore pairs an address range with its tracker payload; this is the
// shape the reporter and the property-test model both consume.
type TrackedStore = interval.Entry[StorePayload]

// GlobalConfig is the process-wide configuration, set once at startup and
// read-only thereafter: modeled as a value threaded through construction
// rather than a package-level global.
type GlobalConfig struct {
	// TrackMultipleStores enables overwrite detection.
	TrackMultipleStores bool
	// LogStores enables the durability log stream gate.
	LogStores bool
	// PrintSummary controls whether the reporter emits output on Teardown.
	PrintSummary bool
	// CheckFlush enables redundant-flush detection.
	CheckFlush bool
	// StoreSBIndiff is the superblock-count window for the benign-rewrite
	// heuristic.
	StoreSBIndiff uint64
	// FlushAlign is the cache-line granularity, a power of two (default 64).
	FlushAlign uint64
}

// DefaultGlobalConfig returns the CLI's default configuration.
func DefaultGlobalConfig() GlobalConfig {
	return GlobalConfig{
		TrackMultipleStores: false,
		LogStores:           false,
		PrintSummary:        true,
		CheckFlush:          false,
		StoreSBIndiff:       0,
		FlushAlign:          64,
	}
}

// MaxMultOverwrites is the hard cap on the overwrite-record list: exceeding
// it is a fatal, process-ending condition.
const MaxMultOverwrites = 10000

// MaxFlushErrorEvents is the soft cap on the multi-flush-record list:
// excess records beyond this are dropped silently.
const MaxFlushErrorEvents = 10000
