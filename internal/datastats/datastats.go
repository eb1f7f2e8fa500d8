// Package datastats computes per-field on-disk byte totals for an opened
// dataset, by fanning out a storage-stats probe across its fragments and
// summing the results. It is a read-only probe: it never touches the
// manifest chain or the version archive, and it returns immediately with
// zeroed statistics for datasets written in the legacy file format, which
// does not track per-field byte counts.
package datastats

import (
	"context"
	"sync"

	"github.com/aalhour/lancetable/internal/schema"
)

// FieldStatistics is the on-disk byte total for one schema field.
type FieldStatistics struct {
	ID          int32
	BytesOnDisk uint64
}

// DataStatistics is the per-field byte breakdown for a dataset, in the
// schema's depth-first field definition order (see Schema.FieldIDs).
type DataStatistics struct {
	Fields []FieldStatistics
}

// FragmentStatsProbe is the per-fragment capability Calculate fans out
// over. Implementations report the on-disk byte count per field id for
// their own fragment; bytes reported for a field id not in the probed
// schema are ignored by the caller.
type FragmentStatsProbe interface {
	StorageStats(ctx context.Context, sch *schema.Schema) (map[int32]uint64, error)
}

// StatsDataset is the narrow view over an opened dataset that Calculate
// needs: its schema, whether it uses the legacy (pre-field-stats) storage
// format, and its fragments.
type StatsDataset interface {
	Schema() *schema.Schema
	IsLegacyFormat() bool
	Fragments() []FragmentStatsProbe
}

// Calculate aggregates per-field on-disk byte counts across every fragment
// in ds, fanning out with at most ioParallelism concurrent probes. One
// FieldStatistics is produced per id in sch.FieldIDs() -- the schema's
// full depth-first field-id list, not just its top-level fields -- so a
// nested struct or list field's bytes are reported the same as any leaf.
// Results are emitted in that same depth-first definition order rather
// than sorted by id, matching the order the data model itself already
// walks the field tree in (schema.MaxFieldID, schema.FieldByID). A dataset
// using the legacy storage format returns zeroed statistics immediately,
// since that format never recorded per-field byte counts.
//
// The first fragment probe to fail cancels the remaining ones and its
// error is returned; results are otherwise summed into a single
// accumulator from one consumer goroutine, so no locking is needed around
// the running totals.
func Calculate(ctx context.Context, ds StatsDataset, ioParallelism int) (DataStatistics, error) {
	sch := ds.Schema()
	order := sch.FieldIDs()
	totals := make(map[int32]uint64, len(order))
	for _, id := range order {
		totals[id] = 0
	}

	if ds.IsLegacyFormat() {
		return buildResult(order, totals), nil
	}

	fragments := ds.Fragments()
	if len(fragments) == 0 {
		return buildResult(order, totals), nil
	}

	if ioParallelism <= 0 {
		ioParallelism = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type probeResult struct {
		bytes map[int32]uint64
		err   error
	}

	jobs := make(chan FragmentStatsProbe)
	results := make(chan probeResult)

	var wg sync.WaitGroup
	for i := 0; i < ioParallelism; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for probe := range jobs {
				bytes, err := probe.StorageStats(ctx, sch)
				select {
				case results <- probeResult{bytes: bytes, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, f := range fragments {
			select {
			case jobs <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var firstErr error
	for r := range results {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
				cancel()
			}
			continue
		}
		for id, n := range r.bytes {
			if _, known := totals[id]; !known {
				continue
			}
			totals[id] += n
		}
	}
	if firstErr != nil {
		return DataStatistics{}, firstErr
	}

	return buildResult(order, totals), nil
}

func buildResult(order []int32, totals map[int32]uint64) DataStatistics {
	out := DataStatistics{Fields: make([]FieldStatistics, len(order))}
	for i, id := range order {
		out.Fields[i] = FieldStatistics{ID: id, BytesOnDisk: totals[id]}
	}
	return out
}
