//go:build crashtest

package archive

import (
	"context"
	"os"
	"os/exec"
	"testing"

	"github.com/aalhour/lancetable/internal/objectstore"
	"github.com/aalhour/lancetable/internal/testutil"
)

// TestFlushKillBeforeWriteLeavesNoPartialFile arms KPArchiveWrite0 -- the
// point right before the encoded archive file is written -- in a
// subprocess, then checks that a crash there never leaves behind a
// partially written or otherwise visible archive file.
func TestFlushKillBeforeWriteLeavesNoPartialFile(t *testing.T) {
	if os.Getenv("BE_CRASHER") == "1" {
		dir := os.Getenv("LANCETABLE_CRASH_DIR")
		ctx := context.Background()
		store := objectstore.NewLocalStore(dir, 0)
		a, err := LoadOrNew(ctx, "", store, DefaultConfig(), nil, fakeClock())
		if err != nil {
			os.Exit(1)
		}
		a.AddSummaries([]VersionSummary{{Version: 1, TimestampMillis: 1}})
		testutil.SetKillPoint(testutil.KPArchiveWrite0)
		if err := a.Flush(ctx); err != nil {
			os.Exit(1)
		}
		// The kill point should have exited the process before Flush
		// could return.
		os.Exit(1)
	}

	dir := t.TempDir()
	cmd := exec.Command(os.Args[0], "-test.run=^TestFlushKillBeforeWriteLeavesNoPartialFile$")
	cmd.Env = append(os.Environ(), "BE_CRASHER=1", "LANCETABLE_CRASH_DIR="+dir)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("subprocess did not exit cleanly at KPArchiveWrite0: %v\n%s", err, out)
	}

	ctx := context.Background()
	store := objectstore.NewLocalStore(dir, 0)
	files, err := listArchiveFiles(ctx, "", store)
	if err != nil {
		t.Fatalf("listArchiveFiles: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected no archive file after a kill before the write, got %+v", files)
	}

	a, err := LoadLatest(ctx, "", store, DefaultConfig(), nil, fakeClock())
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if a != nil {
		t.Fatalf("expected no recoverable archive after a kill before the write, got %+v", a)
	}
}

// TestFlushKillBeforeCleanupLeavesRecoverableLatestVersion arms
// KPArchiveCleanup0 -- after the new archive file is durably written but
// before the stale-file cleanup pass runs -- and checks that the new
// version is still recoverable, and that a later, uninterrupted flush
// finishes the cleanup a crashed process never got to.
func TestFlushKillBeforeCleanupLeavesRecoverableLatestVersion(t *testing.T) {
	cfg := Config{Enabled: true, MaxEntries: 100, MaxArchiveFiles: 1}

	if os.Getenv("BE_CRASHER") == "1" {
		dir := os.Getenv("LANCETABLE_CRASH_DIR")
		ctx := context.Background()
		store := objectstore.NewLocalStore(dir, 0)
		a, err := LoadOrNew(ctx, "", store, cfg, nil, fakeClock())
		if err != nil {
			os.Exit(1)
		}
		a.AddSummaries([]VersionSummary{{Version: 2, TimestampMillis: 2}})
		testutil.SetKillPoint(testutil.KPArchiveCleanup0)
		if err := a.Flush(ctx); err != nil {
			os.Exit(1)
		}
		os.Exit(1)
	}

	dir := t.TempDir()
	ctx := context.Background()
	store := objectstore.NewLocalStore(dir, 0)

	seed, err := LoadOrNew(ctx, "", store, cfg, nil, fakeClock())
	if err != nil {
		t.Fatalf("LoadOrNew: %v", err)
	}
	seed.AddSummaries([]VersionSummary{{Version: 1, TimestampMillis: 1}})
	if err := seed.Flush(ctx); err != nil {
		t.Fatalf("seeding v1: %v", err)
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestFlushKillBeforeCleanupLeavesRecoverableLatestVersion$")
	cmd.Env = append(os.Environ(), "BE_CRASHER=1", "LANCETABLE_CRASH_DIR="+dir)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("subprocess did not exit cleanly at KPArchiveCleanup0: %v\n%s", err, out)
	}

	files, err := listArchiveFiles(ctx, "", store)
	if err != nil {
		t.Fatalf("listArchiveFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected both the old and new archive files to survive a kill before cleanup, got %+v", files)
	}

	loaded, err := LoadLatest(ctx, "", store, cfg, nil, fakeClock())
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if loaded == nil || loaded.LatestVersionNumber != 2 {
		t.Fatalf("expected the new version to be recoverable despite the killed cleanup, got %+v", loaded)
	}

	if err := loaded.Flush(ctx); err != nil {
		t.Fatalf("recovery flush: %v", err)
	}
	files, err = listArchiveFiles(ctx, "", store)
	if err != nil {
		t.Fatalf("listArchiveFiles after recovery: %v", err)
	}
	if len(files) != 1 || files[0].version != 2 {
		t.Fatalf("expected cleanup to finish on a later uninterrupted flush, got %+v", files)
	}
}
