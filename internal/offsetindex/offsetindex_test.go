package offsetindex

import (
	"reflect"
	"testing"
)

func TestOffsets(t *testing.T) {
	got := Offsets([]uint64{10, 15, 20})
	want := []uint64{0, 10, 25, 45}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Offsets() = %v, want %v", got, want)
	}
}

func TestLookup(t *testing.T) {
	offsets := Offsets([]uint64{10, 15, 20})

	cases := []struct {
		name        string
		start, end  uint64
		wantIndices []int
	}{
		{"whole first fragment", 0, 10, []int{0}},
		{"spans first two", 5, 20, []int{0, 1}},
		{"starts exactly on boundary", 10, 25, []int{1}},
		{"spans all three", 0, 45, []int{0, 1, 2}},
		{"mid second to mid third", 12, 30, []int{1, 2}},
		{"empty range", 5, 5, nil},
		{"past the end", 45, 100, nil},
		{"single row in last fragment", 44, 45, []int{2}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entries := Lookup(offsets, tc.start, tc.end)
			var got []int
			for _, e := range entries {
				got = append(got, e.Index)
			}
			if !reflect.DeepEqual(got, tc.wantIndices) {
				t.Fatalf("Lookup(%d,%d) indices = %v, want %v", tc.start, tc.end, got, tc.wantIndices)
			}
		})
	}
}

func TestLookupNoFragments(t *testing.T) {
	if got := Lookup(Offsets(nil), 0, 1); got != nil {
		t.Fatalf("Lookup on empty fragment set = %v, want nil", got)
	}
}
