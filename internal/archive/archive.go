// Package archive maintains the version archive: a compact, append-mostly
// log of per-version summaries that lets callers answer "what did version N
// look like" without replaying every manifest since the dataset was
// created. It is deliberately lossy history, not a substitute for the
// manifest chain itself -- entries are summaries, and old entries are
// pruned once the archive's retention limits are exceeded.
package archive

import (
	"context"
	"fmt"
	"io"
	"math"
	"path"
	"sort"
	"strconv"
	"sync"

	"github.com/aalhour/lancetable/internal/logging"
	"github.com/aalhour/lancetable/internal/objectstore"
	"github.com/aalhour/lancetable/internal/testutil"
)

const (
	archiveDirName   = "_archive"
	versionsSubdir   = "versions"
	archiveFileSuffix = ".binpb"
)

// Config controls how aggressively the archive retains history.
type Config struct {
	Enabled         bool
	MaxEntries      int
	MaxArchiveFiles int
}

// DefaultConfig returns the archive's default retention policy.
func DefaultConfig() Config {
	return Config{Enabled: true, MaxEntries: 10000, MaxArchiveFiles: 2}
}

// ParseConfig builds a Config from a manifest's config map, falling back to
// defaults for any key that is missing or fails to parse. A malformed value
// never fails the caller: it silently keeps the default for that key, since
// a corrupt config value should degrade the archive, not the dataset.
func ParseConfig(cfg map[string]string) Config {
	c := DefaultConfig()
	if v, ok := cfg["lance.version_archive.enabled"]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Enabled = b
		}
	}
	if v, ok := cfg["lance.version_archive.max_entries"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxEntries = n
		}
	}
	if v, ok := cfg["lance.version_archive.max_archive_files"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxArchiveFiles = n
		}
	}
	return c
}

// ManifestSummary is the flattened, size/shape subset of a manifest worth
// keeping in the archive long after the manifest itself has been pruned.
type ManifestSummary struct {
	TotalFragments         uint64
	TotalDataFiles         uint64
	TotalFilesSize         uint64
	TotalDeletionFiles     uint64
	TotalDataFileRows      uint64
	TotalDeletionFileRows  uint64
	TotalRows              uint64
}

// VersionSummary is one archived entry.
type VersionSummary struct {
	Version               uint64
	TimestampMillis       int64
	Manifest              ManifestSummary
	IsTagged              bool
	IsCleanedUp           bool
	TransactionUUID       string
	ReadVersion           *uint64
	OperationType         string
	TransactionProperties map[string]string
}

// Archive is an in-memory, periodically flushed view of a dataset's version
// history summaries.
type Archive struct {
	mu sync.Mutex

	Versions             []VersionSummary
	LatestVersionNumber  uint64
	DatasetCreatedMillis int64
	CreatedAtMillis      int64

	config Config
	base   string
	store  objectstore.Store
	logger logging.Logger
	clock  func() int64
}

// ToInverted maps a real version number to its inverted form, used so that
// lexicographically sorting archive filenames yields newest-first order.
func ToInverted(v uint64) uint64 { return math.MaxUint64 - v }

// FromInverted is the inverse of ToInverted.
func FromInverted(inv uint64) uint64 { return math.MaxUint64 - inv }

func archiveDir(base string) string {
	return path.Join(base, archiveDirName, versionsSubdir)
}

func archiveFileName(version uint64) string {
	return fmt.Sprintf("%020d%s", ToInverted(version), archiveFileSuffix)
}

// archiveFile pairs a listed file's real version with its path, for
// newest-first iteration.
type archiveFile struct {
	version uint64
	path    string
}

// listArchiveFiles lists the archive directory and returns its entries
// sorted descending by real version (newest first). Unparseable filenames
// are silently skipped: an archive directory can contain files from a
// future format this reader does not recognize.
func listArchiveFiles(ctx context.Context, base string, store objectstore.Store) ([]archiveFile, error) {
	dir := archiveDir(base)
	metas, err := store.List(ctx, dir)
	if err != nil {
		return nil, err
	}
	var files []archiveFile
	for _, meta := range metas {
		name := path.Base(meta.Path)
		if path.Ext(name) != archiveFileSuffix {
			continue
		}
		invStr := name[:len(name)-len(archiveFileSuffix)]
		inv, err := strconv.ParseUint(invStr, 10, 64)
		if err != nil {
			continue
		}
		files = append(files, archiveFile{version: FromInverted(inv), path: meta.Path})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].version > files[j].version })
	return files, nil
}

// LoadOrNew loads the newest readable archive file under base, tolerating
// corruption by falling back through progressively older files, and
// finally returning a brand-new, empty archive if none decode cleanly.
func LoadOrNew(ctx context.Context, base string, store objectstore.Store, cfg Config, logger logging.Logger, now func() int64) (*Archive, error) {
	logger = logging.OrDefault(logger)
	files, err := listArchiveFiles(ctx, base, store)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		a, err := loadFromPath(ctx, base, store, f.path, cfg, logger, now)
		if err != nil {
			logger.Warnf(logging.NSArchive+"failed to load archive file %s: %v", f.path, err)
			continue
		}
		return a, nil
	}
	return &Archive{
		config:          cfg,
		base:            base,
		store:           store,
		logger:          logger,
		clock:           now,
		CreatedAtMillis: now(),
	}, nil
}

// LoadLatest is like LoadOrNew but returns nil, nil if no archive file
// could be loaded, instead of a fresh empty archive.
func LoadLatest(ctx context.Context, base string, store objectstore.Store, cfg Config, logger logging.Logger, now func() int64) (*Archive, error) {
	logger = logging.OrDefault(logger)
	files, err := listArchiveFiles(ctx, base, store)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		a, err := loadFromPath(ctx, base, store, f.path, cfg, logger, now)
		if err != nil {
			logger.Warnf(logging.NSArchive+"failed to load archive file %s: %v", f.path, err)
			continue
		}
		return a, nil
	}
	return nil, nil
}

func loadFromPath(ctx context.Context, base string, store objectstore.Store, p string, cfg Config, logger logging.Logger, now func() int64) (*Archive, error) {
	r, err := store.Open(ctx, p)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	a, err := decodeArchive(data)
	if err != nil {
		return nil, err
	}
	a.config = cfg
	a.base = base
	a.store = store
	a.logger = logger
	a.clock = now
	return a, nil
}

// AddSummaries appends new version summaries. It does not sort or enforce
// retention: that happens in Flush, so callers may batch many additions
// before paying the cost of a rewrite.
func (a *Archive) AddSummaries(summaries []VersionSummary) {
	if len(summaries) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Versions = append(a.Versions, summaries...)
}

// finalizeSummaries sorts by version, backfills DatasetCreatedMillis from
// the oldest entry, truncates the oldest entries beyond MaxEntries, and
// refreshes LatestVersionNumber. Must be called with a.mu held.
func (a *Archive) finalizeSummaries() {
	if len(a.Versions) == 0 {
		return
	}
	sort.Slice(a.Versions, func(i, j int) bool { return a.Versions[i].Version < a.Versions[j].Version })

	if a.DatasetCreatedMillis == 0 {
		a.DatasetCreatedMillis = a.Versions[0].TimestampMillis
	}

	if a.config.MaxEntries > 0 && len(a.Versions) > a.config.MaxEntries {
		remove := len(a.Versions) - a.config.MaxEntries
		a.Versions = a.Versions[remove:]
	}

	var max uint64
	for _, v := range a.Versions {
		if v.Version > max {
			max = v.Version
		}
	}
	a.LatestVersionNumber = max
	a.CreatedAtMillis = a.clock()
}

// Flush finalizes pending summaries, writes a new archive file named after
// the latest version, and removes archive files beyond MaxArchiveFiles.
// Flush is a no-op if the archive has no versions to persist.
func (a *Archive) Flush(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.finalizeSummaries()
	if len(a.Versions) == 0 {
		return nil
	}

	testutil.MaybeKill(testutil.KPArchiveEncode0)
	data := encodeArchive(a)
	testutil.MaybeKill(testutil.KPArchiveWrite0)
	p := path.Join(archiveDir(a.base), archiveFileName(a.LatestVersionNumber))
	if err := a.store.Put(ctx, p, data); err != nil {
		return fmt.Errorf("archive: flush: %w", err)
	}
	testutil.MaybeKill(testutil.KPArchiveWrite1)

	a.cleanupOldArchives(ctx)
	return nil
}

// cleanupOldArchives re-lists the archive directory and deletes the oldest
// files beyond MaxArchiveFiles, keeping the newest MaxArchiveFiles entries.
// Deletion failures are logged and swallowed: a leftover stale file is a
// disk-space nuisance, not a correctness problem, since LoadOrNew always
// tries newest-first.
func (a *Archive) cleanupOldArchives(ctx context.Context) {
	if a.config.MaxArchiveFiles <= 0 {
		return
	}
	testutil.MaybeKill(testutil.KPArchiveCleanup0)
	files, err := listArchiveFiles(ctx, a.base, a.store)
	if err != nil {
		a.logger.Warnf(logging.NSArchive+"failed to list archive files for cleanup: %v", err)
		return
	}
	if len(files) <= a.config.MaxArchiveFiles {
		return
	}
	// files is sorted newest-first; keep the head, delete the tail.
	for _, f := range files[a.config.MaxArchiveFiles:] {
		if err := a.store.Delete(ctx, f.path); err != nil {
			a.logger.Warnf(logging.NSArchive+"failed to delete stale archive file %s: %v", f.path, err)
		}
	}
}

// LatestVersion returns the highest version number recorded in the archive.
func (a *Archive) LatestVersion() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.LatestVersionNumber
}

// IsEnabled reports whether the archive's configuration enables it.
func (a *Archive) IsEnabled() bool {
	return a.config.Enabled
}
