package engine

import "github.com/calvinalkan/pmemcheck/pkg/interval"

// Snapshot is a complete, restorable copy of an Engine's state: both
// registries, every in-flight tracked store, the superblock counter, and
// the overwrite/multi-flush lists. The debug command takes and restores
// one, and [internal/checkpoint] persists it; the engine itself never reads
// or writes one.
type Snapshot struct {
	PersistentMappings []interval.Interval
	LoggableRegions    []interval.Interval
	Tracked            []TrackedStore
	Superblock         uint64
	Overwrites         []TrackedStore
	MultiFlushes       []TrackedStore
}

// Snapshot captures e's entire state. The returned value shares no memory
// with e; mutating it afterward has no effect on the engine.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		PersistentMappings: e.persistentMappings.Regions(),
		LoggableRegions:    e.loggableRegions.Regions(),
		Tracked:            e.tracker.Entries(),
		Superblock:         e.superblock,
		Overwrites:         append([]TrackedStore(nil), e.overwrites...),
		MultiFlushes:       append([]TrackedStore(nil), e.multiFlushes...),
	}
}

// Restore replaces e's entire state with s. e must be freshly constructed
// (via [New]) with no prior activity; Restore does not merge with existing
// state, it overwrites it. Returns an error only if s.Tracked contains
// overlapping entries, which would indicate a corrupt checkpoint.
func (e *Engine) Restore(s Snapshot) error {
	e.persistentMappings = NewRegistry()
	for _, r := range s.PersistentMappings {
		e.persistentMappings.Register(r)
	}

	e.loggableRegions = NewRegistry()
	for _, r := range s.LoggableRegions {
		e.loggableRegions.Register(r)
	}

	e.tracker = NewTracker()
	for _, t := range s.Tracked {
		if err := e.tracker.Insert(t.Interval, t.Payload); err != nil {
			return err
		}
	}

	e.superblock = s.Superblock
	e.overwrites = append([]TrackedStore(nil), s.Overwrites...)
	e.multiFlushes = append([]TrackedStore(nil), s.MultiFlushes...)

	return nil
}
