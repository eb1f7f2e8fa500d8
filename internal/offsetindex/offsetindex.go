// Package offsetindex provides the logical-offset lookup used to map a
// global row range onto the fragments that contain it. It knows nothing
// about the fragment type itself, only about a prefix-sum offset table, so
// it has no dependency on the manifest package it serves.
package offsetindex

import "sort"

// Entry identifies one fragment that overlaps a queried offset range, by
// its index into the caller's fragment slice and its starting logical
// offset.
type Entry struct {
	Index       int
	StartOffset uint64
}

// Offsets builds the prefix-sum table for a sequence of fragment row
// counts: offsets[i] is the logical offset of the first row of fragment i,
// and the final entry is the total row count across all fragments. The
// returned slice always has len(rows)+1 entries.
func Offsets(rows []uint64) []uint64 {
	offsets := make([]uint64, len(rows)+1)
	var total uint64
	for i, n := range rows {
		offsets[i] = total
		total += n
	}
	offsets[len(rows)] = total
	return offsets
}

// Lookup returns the fragments overlapping the half-open logical row range
// [start, end), given their prefix-sum offsets (as built by Offsets). The
// result is ordered by increasing index.
//
// The search locates start within the offset table the same way a binary
// search over sorted keys would: an exact hit on a fragment's starting
// offset begins the scan at that fragment, otherwise the scan begins one
// fragment before the insertion point, since that is the fragment whose
// range actually contains start.
func Lookup(offsets []uint64, start, end uint64) []Entry {
	n := len(offsets) - 1
	if n <= 0 || start >= end {
		return nil
	}

	idx := sort.Search(len(offsets), func(i int) bool { return offsets[i] >= start })
	var startIdx int
	if idx < len(offsets) && offsets[idx] == start {
		startIdx = idx
	} else {
		startIdx = idx - 1
	}
	if startIdx < 0 {
		startIdx = 0
	}
	if startIdx >= n {
		return nil
	}

	var entries []Entry
	for i := startIdx; i < n; i++ {
		if offsets[i] >= end {
			break
		}
		if offsets[i+1] <= start {
			continue
		}
		entries = append(entries, Entry{Index: i, StartOffset: offsets[i]})
	}
	return entries
}
