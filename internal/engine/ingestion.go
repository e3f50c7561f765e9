package engine

import "github.com/calvinalkan/pmemcheck/pkg/interval"

// TraceStore implements store ingestion. It is the hot path
// called once per guest store; on input outside any registered persistent
// mapping it returns immediately without allocating. The one
// allocation-bearing exception is the overwrite-flood abort, which is a
// deliberate process-ending condition, not a recoverable error.
func (e *Engine) TraceStore(addr, size, value uint64) error {
	iv := interval.Interval{Addr: addr, Size: size}
	if size == 0 || !e.persistentMappings.ContainsAny(iv) {
		return nil
	}

	payload := StorePayload{
		Value:    value,
		BlockNum: e.superblock,
		Context:  e.callSite(),
		State:    StateDirty,
	}

	if e.logger != nil {
		e.logger.Store(addr, value, size, e.loggingActiveFor(iv))
	}

	evicted := e.tracker.Evict(iv)

	for _, old := range evicted {
		if !e.config.TrackMultipleStores {
			continue // silently drop
		}

		if e.isBenignRewrite(old, addr, size, value) {
			continue // silently drop
		}

		if err := e.appendOverwrite(old); err != nil {
			return err
		}
	}

	// The eviction loop guarantees no overlaps remain.
	return e.tracker.Insert(iv, payload)
}

// isBenignRewrite implements the benign-rewrite heuristic:
// the prior store is within the superblock indifference window, targets
// the exact same address and size, and carries the exact same value.
func (e *Engine) isBenignRewrite(old TrackedStore, addr, size, value uint64) bool {
	if e.superblock-old.Payload.BlockNum >= e.config.StoreSBIndiff {
		return false
	}

	return old.Addr == addr && old.Size == size && old.Payload.Value == value
}

// appendOverwrite records old as an overwrite. If the list is already at
// [MaxMultOverwrites] before this append, it instead returns
// [ErrOverwriteFlood]: callers (the router / replay driver) terminate the
// process with a non-zero exit code.
func (e *Engine) appendOverwrite(old TrackedStore) error {
	if len(e.overwrites) >= MaxMultOverwrites {
		return ErrOverwriteFlood
	}

	e.overwrites = append(e.overwrites, old)

	return nil
}

// OnSBEnter advances the superblock counter. Called once per
// translated basic-block entry by the host.
func (e *Engine) OnSBEnter() {
	e.superblock++
}
