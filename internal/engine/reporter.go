package engine

// Detail is one reportable line: a remaining tracked store, an overwrite
// record, or a multi-flush record, all sharing the same
// {call-site stack, addr, size, state-name} shape.
type Detail struct {
	CallSite CallSite
	Addr     uint64
	Size     uint64
	State    StoreState
}

// Summary is the reporter's Teardown (or on-demand WRITE_STATS) output.
type Summary struct {
	// NonPersistent is every store still in the tracker: made durable never,
	// regardless of what state it reached.
	NonPersistent []Detail
	// NonPersistentBytes is the total byte volume of NonPersistent.
	NonPersistentBytes uint64

	// Overwrites is populated only when TrackMultipleStores is enabled.
	Overwrites []Detail
	// MultiFlushes is populated only when CheckFlush is enabled.
	MultiFlushes []Detail
}

func trackedToDetail(s TrackedStore) Detail {
	return Detail{
		CallSite: s.Payload.Context,
		Addr:     s.Addr,
		Size:     s.Size,
		State:    s.Payload.State,
	}
}

// Report builds a [Summary] from the engine's current state. It does not
// mutate the tracker or either list; call it as many times as desired
// (WRITE_STATS), with the final call happening at Teardown.
func (e *Engine) Report() Summary {
	entries := e.tracker.Entries()

	summary := Summary{
		NonPersistent: make([]Detail, 0, len(entries)),
	}

	for _, s := range entries {
		summary.NonPersistent = append(summary.NonPersistent, trackedToDetail(s))
		summary.NonPersistentBytes += s.Size
	}

	if e.config.TrackMultipleStores {
		summary.Overwrites = make([]Detail, 0, len(e.overwrites))
		for _, o := range e.overwrites {
			summary.Overwrites = append(summary.Overwrites, trackedToDetail(o))
		}
	}

	if e.config.CheckFlush {
		summary.MultiFlushes = make([]Detail, 0, len(e.multiFlushes))
		for _, m := range e.multiFlushes {
			summary.MultiFlushes = append(summary.MultiFlushes, trackedToDetail(m))
		}
	}

	return summary
}

// Teardown finalizes the engine and returns the last [Summary]. After
// Teardown, TraceStore and the state-machine operations still function,
// but callers should treat the engine as done.
func (e *Engine) Teardown() Summary {
	return e.Report()
}
