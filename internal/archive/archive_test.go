package archive

import (
	"context"
	"path"
	"testing"

	"github.com/aalhour/lancetable/internal/objectstore"
)

func fakeClock() func() int64 {
	var t int64
	return func() int64 {
		t++
		return t
	}
}

func TestFlushAndLoadLatestRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := objectstore.NewLocalStore(dir, 0)

	a, err := LoadOrNew(ctx, "", store, DefaultConfig(), nil, fakeClock())
	if err != nil {
		t.Fatalf("LoadOrNew: %v", err)
	}

	a.AddSummaries([]VersionSummary{
		{Version: 1, TimestampMillis: 100, Manifest: ManifestSummary{TotalRows: 10}, OperationType: "create"},
		{Version: 2, TimestampMillis: 200, Manifest: ManifestSummary{TotalRows: 20}, OperationType: "append", IsTagged: true},
	})
	if err := a.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	loaded, err := LoadLatest(ctx, "", store, DefaultConfig(), nil, fakeClock())
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if loaded == nil {
		t.Fatal("LoadLatest returned nil after a successful flush")
	}
	if loaded.LatestVersionNumber != 2 {
		t.Fatalf("LatestVersionNumber = %d, want 2", loaded.LatestVersionNumber)
	}
	if len(loaded.Versions) != 2 {
		t.Fatalf("Versions = %+v, want 2 entries", loaded.Versions)
	}
	if loaded.Versions[1].Manifest.TotalRows != 20 || !loaded.Versions[1].IsTagged {
		t.Fatalf("Versions[1] = %+v, want rows=20 tagged=true", loaded.Versions[1])
	}
}

func TestLoadLatestNilWhenNoArchiveFile(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewLocalStore(t.TempDir(), 0)

	a, err := LoadLatest(ctx, "", store, DefaultConfig(), nil, fakeClock())
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if a != nil {
		t.Fatalf("expected nil archive, got %+v", a)
	}
}

func TestLoadOrNewFreshWhenNoArchiveFile(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewLocalStore(t.TempDir(), 0)

	a, err := LoadOrNew(ctx, "", store, DefaultConfig(), nil, fakeClock())
	if err != nil {
		t.Fatalf("LoadOrNew: %v", err)
	}
	if a == nil || a.LatestVersionNumber != 0 || len(a.Versions) != 0 {
		t.Fatalf("expected fresh empty archive, got %+v", a)
	}
}

func TestFlushIsNoOpWithoutPendingVersions(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := objectstore.NewLocalStore(dir, 0)

	a, err := LoadOrNew(ctx, "", store, DefaultConfig(), nil, fakeClock())
	if err != nil {
		t.Fatalf("LoadOrNew: %v", err)
	}
	if err := a.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	files, err := listArchiveFiles(ctx, "", store)
	if err != nil {
		t.Fatalf("listArchiveFiles: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected no archive files written, got %+v", files)
	}
}

func TestCorruptNewestArchiveFallsBackToOlder(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := objectstore.NewLocalStore(dir, 0)

	a, err := LoadOrNew(ctx, "", store, DefaultConfig(), nil, fakeClock())
	if err != nil {
		t.Fatalf("LoadOrNew: %v", err)
	}
	a.AddSummaries([]VersionSummary{{Version: 1, TimestampMillis: 50}})
	if err := a.Flush(ctx); err != nil {
		t.Fatalf("Flush v1: %v", err)
	}

	a.AddSummaries([]VersionSummary{{Version: 2, TimestampMillis: 60}})
	if err := a.Flush(ctx); err != nil {
		t.Fatalf("Flush v2: %v", err)
	}

	// Corrupt the newest archive file (version 2) directly via the store.
	corruptPath := path.Join(archiveDir(a.base), archiveFileName(2))
	if err := store.Put(ctx, corruptPath, []byte{0xff, 0xff, 0xff}); err != nil {
		t.Fatalf("corrupting newest archive file: %v", err)
	}

	loaded, err := LoadLatest(ctx, "", store, DefaultConfig(), nil, fakeClock())
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected fallback to the older, uncorrupted archive file")
	}
	if loaded.LatestVersionNumber != 1 {
		t.Fatalf("LatestVersionNumber = %d, want 1 (fallback entry)", loaded.LatestVersionNumber)
	}
}

func TestCleanupRetainsOnlyMaxArchiveFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := objectstore.NewLocalStore(dir, 0)
	cfg := Config{Enabled: true, MaxEntries: 100, MaxArchiveFiles: 1}

	a, err := LoadOrNew(ctx, "", store, cfg, nil, fakeClock())
	if err != nil {
		t.Fatalf("LoadOrNew: %v", err)
	}
	for v := uint64(1); v <= 3; v++ {
		a.AddSummaries([]VersionSummary{{Version: v, TimestampMillis: int64(v * 10)}})
		if err := a.Flush(ctx); err != nil {
			t.Fatalf("Flush v%d: %v", v, err)
		}
	}

	files, err := listArchiveFiles(ctx, "", store)
	if err != nil {
		t.Fatalf("listArchiveFiles: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected only 1 archive file to survive cleanup, got %d: %+v", len(files), files)
	}
	if files[0].version != 3 {
		t.Fatalf("surviving archive file version = %d, want 3", files[0].version)
	}
}

func TestMaxEntriesTruncatesOldestVersions(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewLocalStore(t.TempDir(), 0)
	cfg := Config{Enabled: true, MaxEntries: 2, MaxArchiveFiles: 5}

	a, err := LoadOrNew(ctx, "", store, cfg, nil, fakeClock())
	if err != nil {
		t.Fatalf("LoadOrNew: %v", err)
	}
	a.AddSummaries([]VersionSummary{
		{Version: 1, TimestampMillis: 10},
		{Version: 2, TimestampMillis: 20},
		{Version: 3, TimestampMillis: 30},
	})
	if err := a.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	loaded, err := LoadLatest(ctx, "", store, cfg, nil, fakeClock())
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if len(loaded.Versions) != 2 {
		t.Fatalf("Versions = %+v, want 2 entries after MaxEntries truncation", loaded.Versions)
	}
	if loaded.Versions[0].Version != 2 || loaded.Versions[1].Version != 3 {
		t.Fatalf("Versions = %+v, want [2,3] (oldest dropped)", loaded.Versions)
	}
}

func TestParseConfigFallsBackOnMalformedValues(t *testing.T) {
	cfg := ParseConfig(map[string]string{
		"lance.version_archive.enabled":         "not-a-bool",
		"lance.version_archive.max_entries":     "not-a-number",
		"lance.version_archive.max_archive_files": "3",
	})
	def := DefaultConfig()
	if cfg.Enabled != def.Enabled {
		t.Fatalf("Enabled = %v, want default %v for malformed value", cfg.Enabled, def.Enabled)
	}
	if cfg.MaxEntries != def.MaxEntries {
		t.Fatalf("MaxEntries = %d, want default %d for malformed value", cfg.MaxEntries, def.MaxEntries)
	}
	if cfg.MaxArchiveFiles != 3 {
		t.Fatalf("MaxArchiveFiles = %d, want 3", cfg.MaxArchiveFiles)
	}
}

func TestToInvertedRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 42, 1 << 40} {
		if got := FromInverted(ToInverted(v)); got != v {
			t.Fatalf("FromInverted(ToInverted(%d)) = %d", v, got)
		}
	}
}
