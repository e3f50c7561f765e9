// Package replaytest drives the same deterministic, byte-stream-generated
// operation sequence through both [internal/engine.Engine] (the real
// implementation) and [internal/enginemodel.Model] (the brute-force oracle),
// and reports any observable divergence. This is the harness the property
// tests and end-to-end scenarios run through.
package replaytest

import (
	"sort"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/calvinalkan/pmemcheck/internal/engine"
	"github.com/calvinalkan/pmemcheck/internal/enginemodel"
)

// ModelConfig mirrors the subset of engine.GlobalConfig the model needs;
// callers derive both the engine and model configs from one source so the
// two never drift out of sync in a test.
func ModelConfig(c engine.GlobalConfig) enginemodel.Config {
	return enginemodel.Config{
		FlushAlign:          c.FlushAlign,
		StoreSBIndiff:       c.StoreSBIndiff,
		TrackMultipleStores: c.TrackMultipleStores,
		CheckFlush:          c.CheckFlush,
	}
}

// Apply feeds op into both e and m identically. Store errors from e
// (overwrite-flood) are returned to the caller; the model never errors.
func Apply(op Op, e *engine.Engine, m *enginemodel.Model) error {
	switch op.Kind {
	case OpRegisterMapping:
		e.RegisterMapping(op.Addr, op.Size)
		m.RegisterMapping(op.Addr, op.Size)
	case OpRemoveMapping:
		e.RemoveMapping(op.Addr, op.Size)
		m.RemoveMapping(op.Addr, op.Size)
	case OpAddLogRegion:
		e.AddLogRegion(op.Addr, op.Size)
		m.AddLogRegion(op.Addr, op.Size)
	case OpRemoveLogRegion:
		e.RemoveLogRegion(op.Addr, op.Size)
		m.RemoveLogRegion(op.Addr, op.Size)
	case OpStore:
		m.TraceStore(op.Addr, op.Size, op.Value)

		return e.TraceStore(op.Addr, op.Size, op.Value)
	case OpFlush:
		e.Flush(op.Addr, op.Size)
		m.Flush(op.Addr, op.Size)
	case OpFence:
		e.Fence()
		m.Fence()
	case OpCommit:
		e.Commit()
		m.Commit()
	case OpSBEnter:
		e.OnSBEnter()
		m.OnSBEnter()
	}

	return nil
}

// trackedView is the subset of engine.TrackedStore / enginemodel.Store
// that must agree: call-site and block-number bookkeeping is
// implementation detail the model doesn't reproduce exactly once
// superblock skew is involved, but addr/size/value/state must always match.
type trackedView struct {
	Addr  uint64
	Size  uint64
	Value uint64
	State string
}

// Diff returns a non-empty human-readable description of the first
// divergence between e's and m's observable state, or "" if they agree.
func Diff(e *engine.Engine, m *enginemodel.Model) string {
	got := toEngineView(e.Tracked())
	want := toModelView(m.Tracked())

	sortViews(got)
	sortViews(want)

	return cmp.Diff(want, got, cmpopts.EquateEmpty())
}

func toEngineView(ts []engine.TrackedStore) []trackedView {
	out := make([]trackedView, 0, len(ts))
	for _, t := range ts {
		out = append(out, trackedView{
			Addr:  t.Addr,
			Size:  t.Size,
			Value: t.Payload.Value,
			State: t.Payload.State.String(),
		})
	}

	return out
}

func toModelView(ss []enginemodel.Store) []trackedView {
	out := make([]trackedView, 0, len(ss))
	for _, s := range ss {
		out = append(out, trackedView{
			Addr:  s.Addr,
			Size:  s.Size,
			Value: s.Value,
			State: s.State.String(),
		})
	}

	return out
}

func sortViews(vs []trackedView) {
	sort.Slice(vs, func(i, j int) bool {
		if vs[i].Addr != vs[j].Addr {
			return vs[i].Addr < vs[j].Addr
		}

		return vs[i].Size < vs[j].Size
	})
}
