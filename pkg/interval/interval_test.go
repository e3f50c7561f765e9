package interval

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func Test_Interval_Overlaps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"disjoint", Interval{0, 10}, Interval{10, 10}, false},
		{"touching reversed", Interval{10, 10}, Interval{0, 10}, false},
		{"identical", Interval{0, 10}, Interval{0, 10}, true},
		{"partial head", Interval{0, 10}, Interval{5, 10}, true},
		{"fully inside", Interval{0, 100}, Interval{10, 5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			require.Equal(t, tt.want, tt.b.Overlaps(tt.a))
		})
	}
}

func Test_Set_InsertMerging_Unions_Overlapping_And_Touching(t *testing.T) {
	t.Parallel()

	s := New[struct{}]()
	s.InsertMerging(Interval{0x1000, 0x40}, struct{}{})
	s.InsertMerging(Interval{0x1040, 0x40}, struct{}{}) // touches
	require.Equal(t, 1, s.Len())
	require.Equal(t, Interval{0x1000, 0x80}, s.Entries()[0].Interval)

	s.InsertMerging(Interval{0x2000, 0x40}, struct{}{})
	require.Equal(t, 2, s.Len())

	s.InsertMerging(Interval{0x1080, 0x1000}, struct{}{}) // bridges both
	require.Equal(t, 1, s.Len())
	require.Equal(t, Interval{0x1000, 0x1080}, s.Entries()[0].Interval)
}

func Test_Set_InsertMerging_Commutative(t *testing.T) {
	t.Parallel()

	a, b := Interval{0x1000, 0x40}, Interval{0x1020, 0x40}

	s1 := New[struct{}]()
	s1.InsertMerging(a, struct{}{})
	s1.InsertMerging(b, struct{}{})

	s2 := New[struct{}]()
	s2.InsertMerging(b, struct{}{})
	s2.InsertMerging(a, struct{}{})

	if diff := cmp.Diff(s1.Entries(), s2.Entries()); diff != "" {
		t.Fatalf("insertion order changed result (-ab +ba):\n%s", diff)
	}
}

func Test_Set_RemoveRange_Splits_Strictly_Inner_Interval(t *testing.T) {
	t.Parallel()

	s := New[struct{}]()
	s.InsertNonMerging(Interval{0x1000, 0x100}, struct{}{})

	removed := s.RemoveRange(Interval{0x1040, 0x10})
	require.Len(t, removed, 1)
	require.Equal(t, Interval{0x1000, 0x100}, removed[0].Interval)

	require.Equal(t, 2, s.Len())
	require.Equal(t, Interval{0x1000, 0x40}, s.Entries()[0].Interval)
	require.Equal(t, Interval{0x1050, 0xb0}, s.Entries()[1].Interval)
}

func Test_Set_RemoveRange_Deletes_Fully_Covered_Entry(t *testing.T) {
	t.Parallel()

	s := New[struct{}]()
	s.InsertNonMerging(Interval{0x1000, 0x40}, struct{}{})

	s.RemoveRange(Interval{0x0ff0, 0x100})
	require.Equal(t, 0, s.Len())
}

func Test_Set_RemoveRange_Shrinks_Head_And_Tail_Overlap(t *testing.T) {
	t.Parallel()

	s := New[struct{}]()
	s.InsertNonMerging(Interval{0x1000, 0x40}, struct{}{})
	s.RemoveRange(Interval{0x0fe0, 0x30}) // overlaps head
	require.Equal(t, Interval{0x1010, 0x30}, s.Entries()[0].Interval)

	s2 := New[struct{}]()
	s2.InsertNonMerging(Interval{0x1000, 0x40}, struct{}{})
	s2.RemoveRange(Interval{0x1020, 0x30}) // overlaps tail
	require.Equal(t, Interval{0x1000, 0x20}, s2.Entries()[0].Interval)
}

func Test_Set_Classify(t *testing.T) {
	t.Parallel()

	s := New[struct{}]()
	s.InsertNonMerging(Interval{0x1000, 0x40}, struct{}{})

	require.Equal(t, NotPresent, s.Classify(Interval{0x2000, 0x10}))
	require.Equal(t, FullyInside, s.Classify(Interval{0x1008, 0x8}))
	require.Equal(t, OverlapHead, s.Classify(Interval{0x0ff0, 0x20}))
	require.Equal(t, OverlapTail, s.Classify(Interval{0x1030, 0x20}))
}

func Test_Set_InsertNonMerging_Rejects_Overlap(t *testing.T) {
	t.Parallel()

	s := New[struct{}]()
	require.NoError(t, s.InsertNonMerging(Interval{0x1000, 0x40}, struct{}{}))
	require.ErrorIs(t, s.InsertNonMerging(Interval{0x1010, 0x10}, struct{}{}), ErrOverlap)
}

// Test_Set_Invariants_Hold_Under_Random_Operations is a lightweight property
// check: after any sequence of InsertMerging calls, no two entries overlap
// or touch, regardless of insertion order.
func Test_Set_Invariants_Hold_Under_Random_Operations(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))

	var ivs []Interval
	for i := 0; i < 200; i++ {
		ivs = append(ivs, Interval{Addr: uint64(rng.Intn(4096)), Size: uint64(1 + rng.Intn(64))})
	}

	s := New[struct{}]()
	for _, iv := range ivs {
		s.InsertMerging(iv, struct{}{})
	}

	entries := s.Entries()
	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		require.Falsef(t, prev.Overlaps(cur.Interval), "entries overlap: %v %v", prev, cur)
		require.Falsef(t, prev.Touches(cur.Interval), "entries touch uncoalesced: %v %v", prev, cur)
	}

	shuffled := append([]Interval(nil), ivs...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	s2 := New[struct{}]()
	for _, iv := range shuffled {
		s2.InsertMerging(iv, struct{}{})
	}

	if diff := cmp.Diff(s.Entries(), s2.Entries()); diff != "" {
		t.Fatalf("insertion order changed final coverage (-ordered +shuffled):\n%s", diff)
	}
}

func Test_Set_Replace_Resumes_After_Mutation(t *testing.T) {
	t.Parallel()

	s := New[int]()
	s.InsertNonMerging(Interval{0, 10}, 1)
	s.InsertNonMerging(Interval{10, 10}, 2)
	s.InsertNonMerging(Interval{20, 10}, 3)

	removed := s.Replace(Interval{0, 30}, func(e Entry[int]) []Entry[int] {
		return []Entry[int]{{Interval: e.Interval, Payload: e.Payload * 10}}
	})

	require.Len(t, removed, 3)
	require.Equal(t, []int{1, 2, 3}, []int{removed[0].Payload, removed[1].Payload, removed[2].Payload})

	entries := s.Entries()
	require.Len(t, entries, 3)
	require.Equal(t, []int{10, 20, 30}, []int{entries[0].Payload, entries[1].Payload, entries[2].Payload})
}
