// Package interval provides a generic ordered collection of non-overlapping
// half-open intervals, each tagged with a caller-supplied payload.
//
// A [Set] is the shared backbone behind both the region registry and the
// store tracker: it knows how to merge overlapping/touching intervals on
// insert, split an interval on partial removal, and classify how a query
// interval relates to what is already present. Everything else (what a
// merge does to the payload, what a split does to the state machine) is
// left to the caller via [Set.Replace].
package interval

import "fmt"

// Interval is the half-open range [Addr, Addr+Size).
//
// Size is always > 0; zero-size intervals are never constructed by this
// package and callers must not pass them to [Set] methods.
type Interval struct {
	Addr uint64
	Size uint64
}

// End returns the exclusive upper bound Addr+Size.
func (iv Interval) End() uint64 {
	return iv.Addr + iv.Size
}

// Overlaps reports whether iv and other share any byte.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Addr < other.End() && other.Addr < iv.End()
}

// Touches reports whether iv and other are adjacent (share an endpoint but
// no bytes), in either order.
func (iv Interval) Touches(other Interval) bool {
	return iv.End() == other.Addr || other.End() == iv.Addr
}

// Contains reports whether other lies entirely within iv.
func (iv Interval) Contains(other Interval) bool {
	return iv.Addr <= other.Addr && other.End() <= iv.End()
}

func (iv Interval) String() string {
	return fmt.Sprintf("[0x%x, 0x%x)", iv.Addr, iv.End())
}

// Entry is one stored interval plus its payload.
type Entry[T any] struct {
	Interval
	Payload T
}

// Classification is the result of [Set.Classify].
type Classification int

const (
	// NotPresent means no existing entry overlaps the query interval.
	NotPresent Classification = iota
	// FullyInside means a single existing entry fully contains the query interval.
	FullyInside
	// OverlapHead means the query interval covers only an existing entry's
	// leading edge (the query interval starts before the entry).
	OverlapHead
	// OverlapTail means the query interval covers only an existing entry's
	// trailing edge (the query interval ends after the entry).
	OverlapTail
)

func (c Classification) String() string {
	switch c {
	case NotPresent:
		return "NotPresent"
	case FullyInside:
		return "FullyInside"
	case OverlapHead:
		return "OverlapHead"
	case OverlapTail:
		return "OverlapTail"
	default:
		return "Unknown"
	}
}

// ErrOverlap is returned by [Set.InsertNonMerging] when the interval being
// inserted overlaps an existing entry. Callers of InsertNonMerging are
// expected to have already cleared the region (see [Set.Replace]); seeing
// this error indicates a caller bug, not a data condition to recover from.
var ErrOverlap = fmt.Errorf("interval: overlaps existing entry")

// Set is an ordered collection of non-overlapping [Interval]s, each carrying
// a payload of type T. The zero value is not usable; construct with [New].
//
// Set is not safe for concurrent use; callers serialize access (this
// matches the single logical event stream the engine assumes throughout).
type Set[T any] struct {
	// entries is kept sorted by Addr and, other than during a single
	// Replace/InsertMerging call in progress, always pairwise non-overlapping.
	entries []Entry[T]
}

// New returns an empty Set.
func New[T any]() *Set[T] {
	return &Set[T]{}
}

// Len returns the number of entries currently stored.
func (s *Set[T]) Len() int {
	return len(s.entries)
}

// Entries returns a copy of all entries in address order. Safe to mutate by
// the caller; does not alias the Set's internal storage.
func (s *Set[T]) Entries() []Entry[T] {
	out := make([]Entry[T], len(s.entries))
	copy(out, s.entries)

	return out
}

// search returns the index of the first entry whose End() is > addr, i.e.
// the first entry that could possibly overlap an interval starting at addr.
// If no such entry exists, returns len(s.entries).
func (s *Set[T]) search(addr uint64) int {
	lo, hi := 0, len(s.entries)
	for lo < hi {
		mid := (lo + hi) / 2
		if s.entries[mid].End() <= addr {
			lo = mid + 1
		} else {
			hi = mid
		}
	}

	return lo
}

// Classify reports how iv relates to the entries currently in the set.
func (s *Set[T]) Classify(iv Interval) Classification {
	idx := s.search(iv.Addr)
	if idx >= len(s.entries) || !s.entries[idx].Overlaps(iv) {
		return NotPresent
	}

	e := s.entries[idx].Interval
	if e.Contains(iv) {
		return FullyInside
	}

	if iv.Addr < e.Addr && iv.End() <= e.End() {
		return OverlapHead
	}

	if iv.Addr >= e.Addr && iv.End() > e.End() {
		return OverlapTail
	}

	// iv spans past both ends of a single entry, or spans multiple entries;
	// only three overlap shapes are distinguished against a single entry,
	// so report the shape of whichever edge is not fully covered.
	if iv.Addr < e.Addr {
		return OverlapHead
	}

	return OverlapTail
}

// Overlapping returns a snapshot copy of every entry overlapping iv, in
// address order, as of the moment Overlapping is called.
func (s *Set[T]) Overlapping(iv Interval) []Entry[T] {
	var out []Entry[T]

	for idx := s.search(iv.Addr); idx < len(s.entries) && s.entries[idx].Addr < iv.End(); idx++ {
		if s.entries[idx].Overlaps(iv) {
			out = append(out, s.entries[idx])
		}
	}

	return out
}

// ContainsAny reports whether iv overlaps anything in the set.
func (s *Set[T]) ContainsAny(iv Interval) bool {
	return s.Classify(iv) != NotPresent
}

func (s *Set[T]) insertSorted(e Entry[T]) {
	idx := s.search(e.Addr)
	s.entries = append(s.entries, Entry[T]{})
	copy(s.entries[idx+1:], s.entries[idx:])
	s.entries[idx] = e
}

func (s *Set[T]) deleteAt(idx int) {
	s.entries = append(s.entries[:idx], s.entries[idx+1:]...)
}

// InsertNonMerging inserts iv with payload without coalescing. The caller
// must guarantee iv does not overlap any existing entry; InsertNonMerging
// returns [ErrOverlap] instead of corrupting the set if that guarantee is
// violated.
func (s *Set[T]) InsertNonMerging(iv Interval, payload T) error {
	if s.ContainsAny(iv) {
		return ErrOverlap
	}

	s.insertSorted(Entry[T]{Interval: iv, Payload: payload})

	return nil
}

// InsertMerging removes every existing entry overlapping or touching iv,
// then inserts a single entry spanning the union of iv and every removed
// entry, with the given payload. This is the region-registry insert: by
// construction, the set it maintains never holds overlapping or
// byte-adjacent (touching) entries.
func (s *Set[T]) InsertMerging(iv Interval, payload T) Entry[T] {
	union := iv

	idx := s.search(iv.Addr)
	// Touching means End()==Addr, which search() (strict End()<=addr) does
	// not find on the left; step back one to catch a left-touching neighbor.
	if idx > 0 && s.entries[idx-1].End() == iv.Addr {
		idx--
	}

	var removeFrom, removeTo int = -1, -1

	for i := idx; i < len(s.entries); i++ {
		e := s.entries[i].Interval
		if e.Addr > union.End() {
			break
		}

		if !e.Overlaps(union) && !e.Touches(union) {
			continue
		}

		if removeFrom == -1 {
			removeFrom = i
		}

		removeTo = i + 1

		if e.Addr < union.Addr {
			union.Size += union.Addr - e.Addr
			union.Addr = e.Addr
		}

		if e.End() > union.End() {
			union.Size = e.End() - union.Addr
		}
	}

	if removeFrom != -1 {
		s.entries = append(s.entries[:removeFrom], s.entries[removeTo:]...)
	}

	entry := Entry[T]{Interval: union, Payload: payload}
	s.insertSorted(entry)

	return entry
}

// Replace is the generic split/remove primitive. For every entry overlapping
// iv, it removes that entry and calls fn with a copy of it; fn returns zero
// or more replacement fragments to insert (which need not overlap iv, and
// need not overlap each other, but must not overlap anything else still in
// the set). Replace returns every original entry it removed, in address
// order, before fn ran: this is what callers use to build overwrite and
// multi-flush records.
//
// Replace tolerates fn returning the same entry unchanged (a no-op
// replacement) and resumes scanning from just after the last entry it
// touched, so it is safe even though fn mutates the set it is iterating.
func (s *Set[T]) Replace(iv Interval, fn func(Entry[T]) []Entry[T]) []Entry[T] {
	var removed []Entry[T]

	cursor := iv.Addr

	for cursor < iv.End() {
		idx := s.search(cursor)
		if idx >= len(s.entries) || s.entries[idx].Addr >= iv.End() {
			break
		}

		if !s.entries[idx].Overlaps(iv) {
			cursor = s.entries[idx].Addr

			continue
		}

		e := s.entries[idx]
		s.deleteAt(idx)
		removed = append(removed, e)

		for _, frag := range fn(e) {
			s.insertSorted(frag)
		}

		cursor = e.End()
	}

	return removed
}

// RemoveRange subtracts iv from every entry overlapping it: entries fully
// inside iv are deleted, entries straddling an edge are shrunk, and entries
// strictly containing iv are split into a head and tail fragment. This is
// the region-registry deregister operation.
func (s *Set[T]) RemoveRange(iv Interval) []Entry[T] {
	return s.Replace(iv, func(e Entry[T]) []Entry[T] {
		var frags []Entry[T]

		if e.Addr < iv.Addr {
			frags = append(frags, Entry[T]{
				Interval: Interval{Addr: e.Addr, Size: iv.Addr - e.Addr},
				Payload:  e.Payload,
			})
		}

		if e.End() > iv.End() {
			frags = append(frags, Entry[T]{
				Interval: Interval{Addr: iv.End(), Size: e.End() - iv.End()},
				Payload:  e.Payload,
			})
		}

		return frags
	})
}
