package engine

import "github.com/calvinalkan/pmemcheck/pkg/interval"

// Tracker wraps an [interval.Set] holding in-flight (not-yet-persistent)
// stores.
//
// Unlike [Registry], Tracker never merges adjacent entries: each tracked
// store keeps its own call-site and state for diagnostic attribution, so
// two byte-adjacent stores in different states must stay distinct entries.
type Tracker struct {
	set *interval.Set[StorePayload]
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{set: interval.New[StorePayload]()}
}

// Overlapping returns a snapshot of every tracked store overlapping iv.
func (t *Tracker) Overlapping(iv interval.Interval) []TrackedStore {
	return t.set.Overlapping(iv)
}

// Insert adds a new tracked store. The caller (store ingestion) must have
// already evicted any overlapping entries.
func (t *Tracker) Insert(iv interval.Interval, payload StorePayload) error {
	return t.set.InsertNonMerging(iv, payload)
}

// Evict removes every tracked store overlapping iv, without splitting, and
// returns the evicted entries verbatim. This is store ingestion's overwrite
// path: a new store always fully displaces whatever previously occupied
// its bytes, regardless of partial overlap.
func (t *Tracker) Evict(iv interval.Interval) []TrackedStore {
	return t.set.Replace(iv, func(interval.Entry[StorePayload]) []TrackedStore {
		return nil
	})
}

// Replace is the flush primitive: for every tracked store overlapping iv,
// fn decides what (if anything) replaces it. See [interval.Set.Replace].
func (t *Tracker) Replace(iv interval.Interval, fn func(TrackedStore) []TrackedStore) []TrackedStore {
	return t.set.Replace(iv, fn)
}

// Entries returns a copy of every tracked store, in address order.
func (t *Tracker) Entries() []TrackedStore {
	return t.set.Entries()
}

// Len returns the number of tracked stores.
func (t *Tracker) Len() int {
	return t.set.Len()
}

// RemoveState deletes every entry currently in state and returns how many
// were removed. Used by fence() to retire COMMITTED entries.
func (t *Tracker) RemoveState(state StoreState) int {
	entries := t.set.Entries()

	removed := 0

	for _, e := range entries {
		if e.Payload.State != state {
			continue
		}

		t.set.Replace(e.Interval, func(interval.Entry[StorePayload]) []TrackedStore {
			return nil
		})

		removed++
	}

	return removed
}

// TransitionState walks every entry whose state equals from and sets it to
// to, in place. Used by fence() (FLUSHED->FENCED) and commit()
// (FENCED->COMMITTED), neither of which change the tracked interval.
func (t *Tracker) TransitionState(from, to StoreState) int {
	entries := t.set.Entries()

	changed := 0

	for _, e := range entries {
		if e.Payload.State != from {
			continue
		}

		payload := e.Payload
		payload.State = to

		t.set.Replace(e.Interval, func(old interval.Entry[StorePayload]) []TrackedStore {
			return []TrackedStore{{Interval: old.Interval, Payload: payload}}
		})

		changed++
	}

	return changed
}
