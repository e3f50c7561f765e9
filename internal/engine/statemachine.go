package engine

import "github.com/calvinalkan/pmemcheck/pkg/interval"

// alignDown rounds addr down to the nearest multiple of align (a power of two).
func alignDown(addr, align uint64) uint64 {
	return addr &^ (align - 1)
}

// alignUp rounds addr up to the nearest multiple of align (a power of two).
func alignUp(addr, align uint64) uint64 {
	return (addr + align - 1) &^ (align - 1)
}

// Flush implements flush(base, size): the window is aligned
// down to align (a power of two cache-line size) and widened up to a whole
// number of cache lines, then every DIRTY tracked store overlapping the
// aligned window is promoted to FLUSHED, splitting off any DIRTY portion
// that falls outside the window (head split before tail split, so at most
// two new DIRTY fragments are produced per flushed store).
//
// Every tracked store overlapping the window whose state is not DIRTY is
// left unchanged; if checkFlush is true, onRedundant is called with a copy
// of it (the caller uses this to build the multi-flush-record list, capped
// and non-fatal).
func Flush(t *Tracker, base, size, align uint64, checkFlush bool, onRedundant func(TrackedStore)) {
	if size == 0 || align == 0 {
		return
	}

	alignedBase := alignDown(base, align)
	alignedEnd := alignUp(base+size, align)
	window := interval.Interval{Addr: alignedBase, Size: alignedEnd - alignedBase}

	t.Replace(window, func(e TrackedStore) []TrackedStore {
		if e.Payload.State != StateDirty {
			if checkFlush && onRedundant != nil {
				onRedundant(e)
			}

			return []TrackedStore{e} // unchanged
		}

		var frags []TrackedStore

		if e.Addr < window.Addr {
			frags = append(frags, TrackedStore{
				Interval: interval.Interval{Addr: e.Addr, Size: window.Addr - e.Addr},
				Payload:  e.Payload,
			})
		}

		if e.End() > window.End() {
			frags = append(frags, TrackedStore{
				Interval: interval.Interval{Addr: window.End(), Size: e.End() - window.End()},
				Payload:  e.Payload,
			})
		}

		midAddr := max(e.Addr, window.Addr)
		midEnd := min(e.End(), window.End())
		flushed := e.Payload
		flushed.State = StateFlushed

		mid := TrackedStore{
			Interval: interval.Interval{Addr: midAddr, Size: midEnd - midAddr},
			Payload:  flushed,
		}

		// Tie-break: head fragment first, then the
		// flushed middle, then the tail fragment. Order only matters for
		// the property that at most two fragments are produced; Set.Replace
		// does not care about fn's return order.
		if len(frags) == 2 {
			return []TrackedStore{frags[0], mid, frags[1]}
		} else if len(frags) == 1 {
			if frags[0].Addr < midAddr {
				return []TrackedStore{frags[0], mid}
			}

			return []TrackedStore{mid, frags[0]}
		}

		return []TrackedStore{mid}
	})
}

// Fence implements fence(): FLUSHED entries become FENCED, and
// COMMITTED entries retire (are removed from the tracker). Returns the
// number of entries retired.
func Fence(t *Tracker) int {
	t.TransitionState(StateFlushed, StateFenced)

	return t.RemoveState(StateCommitted)
}

// Commit implements commit(): FENCED entries become COMMITTED.
// Returns the number of entries promoted.
func Commit(t *Tracker) int {
	return t.TransitionState(StateFenced, StateCommitted)
}
