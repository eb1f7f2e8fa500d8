// Package manifest defines the Manifest data model: the versioned,
// immutable description of a dataset's schema and fragment list at a single
// point in time. Each write produces a new Manifest; after construction a
// Manifest changes only through its explicit mutator methods, which modify
// it in place.
package manifest

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/aalhour/lancetable/internal/offsetindex"
	"github.com/aalhour/lancetable/internal/schema"
	"github.com/aalhour/lancetable/internal/writerversion"
)

// DetachedVersionMask marks a version number as belonging to a detached,
// out-of-history commit (e.g. a tagged checkout that should never be
// reachable by normal version traversal).
const DetachedVersionMask uint64 = 0x8000_0000_0000_0000

// Reader and writer feature flags. A reader that does not recognize a bit
// set in ReaderFeatureFlags must refuse to open the dataset; writer flags
// are informational for readers but gate which writers may safely append.
const (
	ReaderFlagMoveStableRowIDs uint64 = 1 << 0
	WriterFlagDeprecatedV2     uint64 = 1 << 0
)

const (
	LanceFormatName      = "lance"
	LegacyFormatVersion  = "0.1"
	StableFormatVersion  = "2.0"
	NewestFormatVersion  = "2.1"
)

var (
	// ErrFragmentsSinceFuture is returned by FragmentsSince when asked for
	// fragments added since a version that is not actually older than the
	// receiver.
	ErrFragmentsSinceFuture = errors.New("manifest: fragments since version must be older than current manifest")
	// ErrUnknownFieldMetadata is returned by ReplaceFieldMetadata for an
	// unrecognized field id.
	ErrUnknownFieldMetadata = errors.New("manifest: unknown field id")
	// ErrMissingRowIDMeta is returned while decoding a manifest whose
	// reader feature flags claim stable row ids but whose fragments do not
	// all carry row id metadata.
	ErrMissingRowIDMeta = errors.New("manifest: move-stable-row-ids flag set but fragment is missing row id metadata")
)

// DataFile is one physical file backing a fragment, restricted to a subset
// of the fragment's fields (multiple DataFiles let different field groups
// live in different files, e.g. after a column-add).
type DataFile struct {
	Path             string
	Fields           []int32
	ColumnIndices    []int32
	FileMajorVersion uint32
	FileMinorVersion uint32
}

// MaxFieldID returns the largest field id referenced by the file, or -1 if
// it references none.
func (d *DataFile) MaxFieldID() int32 {
	max := int32(-1)
	for _, id := range d.Fields {
		if id > max {
			max = id
		}
	}
	return max
}

// DeletionFileType distinguishes how a deletion file encodes removed rows.
type DeletionFileType int

const (
	DeletionFileTypeArrayAt DeletionFileType = iota
	DeletionFileTypeBitmap
)

// DeletionFile records soft-deleted rows within a fragment.
type DeletionFile struct {
	ReadVersion     uint64
	ID              uint64
	FileType        DeletionFileType
	NumDeletedRows  *uint64
}

// RowIDMeta describes where a fragment's stable row ids live: inline in the
// manifest itself for small fragments, or in an external file for large
// ones.
type RowIDMeta struct {
	Inline       []byte
	ExternalFile string
}

// Fragment is one physical shard of a dataset's rows at a given manifest
// version.
type Fragment struct {
	ID           uint32
	Files        []DataFile
	DeletionFile *DeletionFile
	RowIDMeta    *RowIDMeta
	PhysicalRows *uint64
}

// NumRows returns the fragment's row count and whether it is known. A
// fragment written by an older format may not have PhysicalRows populated.
func (f *Fragment) NumRows() (uint64, bool) {
	if f.PhysicalRows == nil {
		return 0, false
	}
	return *f.PhysicalRows, true
}

// MaxFieldID returns the largest field id referenced by any of the
// fragment's data files, or -1 if it has none.
func (f *Fragment) MaxFieldID() int32 {
	max := int32(-1)
	for i := range f.Files {
		if m := f.Files[i].MaxFieldID(); m > max {
			max = m
		}
	}
	return max
}

// DataStorageFormat names the on-disk file format and version fragments in
// a manifest are encoded with.
type DataStorageFormat struct {
	FileFormat string
	Version    string
}

// NewDataStorageFormat builds a DataStorageFormat for the lance file format
// at the given version.
func NewDataStorageFormat(version string) DataStorageFormat {
	return DataStorageFormat{FileFormat: LanceFormatName, Version: version}
}

// IsLegacy reports whether the format version is the pre-v2 row-major
// layout.
func (f DataStorageFormat) IsLegacy() bool {
	return f.Version == LegacyFormatVersion
}

// Manifest is the complete description of a dataset at one version.
// Construct one with New or NewFromPrevious. The mutator methods
// (SetTimestamp, UpdateConfig, DeleteConfigKeys, ReplaceSchemaMetadata,
// ReplaceFieldMetadata, UpdateMaxFragmentID, SetFragments) modify the
// receiver in place.
type Manifest struct {
	Schema      *schema.Schema
	LocalSchema *schema.Schema

	Version   uint64
	fragments []*Fragment

	// fragmentOffsets is the row-count prefix sum over fragments, derived
	// on construction and never encoded on the wire.
	fragmentOffsets []uint64

	WriterVersion *writerversion.WriterVersion

	VersionAuxData uint64
	IndexSection   *uint64

	// TimestampNanos is nanoseconds since the Unix epoch, or nil/zero for
	// "unset" -- a manifest written by a version that predates timestamps.
	TimestampNanos *big.Int

	Tag                *string
	ReaderFeatureFlags uint64
	WriterFeatureFlags uint64
	MaxFragmentIDHint  *uint32
	TransactionFile    *string
	NextRowID          uint64
	DataStorageFormat  DataStorageFormat
	Config             map[string]string
	BlobDatasetVersion *uint64
}

// computeFragmentOffsets mirrors the fragment row-count scan: offsets[i] is
// the logical row offset of fragment i, and the final entry is the total
// row count. Fragments with unknown row counts contribute zero, matching
// num_rows().unwrap_or_default() in the source format.
func computeFragmentOffsets(fragments []*Fragment) []uint64 {
	rows := make([]uint64, len(fragments))
	for i, f := range fragments {
		if n, ok := f.NumRows(); ok {
			rows[i] = n
		}
	}
	return offsetindex.Offsets(rows)
}

// New constructs a brand-new Manifest at version 1 with no history.
// blobDatasetVersion is the linked blob dataset's version, or nil if this
// dataset has no associated blob storage.
func New(sch *schema.Schema, fragments []*Fragment, storageFormat DataStorageFormat, blobDatasetVersion *uint64) *Manifest {
	m := &Manifest{
		Schema:             sch,
		Version:            1,
		fragments:          fragments,
		WriterVersion:      wvPtr(writerversion.Default()),
		DataStorageFormat:  storageFormat,
		ReaderFeatureFlags: 0,
		WriterFeatureFlags: 0,
		NextRowID:          0,
		BlobDatasetVersion: blobDatasetVersion,
	}
	m.LocalSchema = sch.RetainStorageClass(schema.StorageClassDefault)
	m.fragmentOffsets = computeFragmentOffsets(fragments)
	return m
}

// NewFromPrevious derives a new Manifest at prev.Version+1, carrying
// forward configuration, feature flags, next row id, and storage format
// from prev while replacing the schema and fragment list. The writer
// version is set to writerversion.Default(), not copied from prev.
// newBlobDatasetVersion overrides
// prev's blob dataset version if non-nil; otherwise prev's is carried
// forward unchanged.
func NewFromPrevious(prev *Manifest, sch *schema.Schema, fragments []*Fragment, newBlobDatasetVersion *uint64) *Manifest {
	blobVersion := prev.BlobDatasetVersion
	if newBlobDatasetVersion != nil {
		blobVersion = newBlobDatasetVersion
	}
	m := &Manifest{
		Schema:             sch,
		Version:            prev.Version + 1,
		fragments:          fragments,
		WriterVersion:      wvPtr(writerversion.Default()),
		ReaderFeatureFlags: prev.ReaderFeatureFlags,
		WriterFeatureFlags: prev.WriterFeatureFlags,
		DataStorageFormat:  prev.DataStorageFormat,
		NextRowID:          prev.NextRowID,
		Config:             cloneConfig(prev.Config),
		BlobDatasetVersion: blobVersion,
	}
	m.LocalSchema = sch.RetainStorageClass(schema.StorageClassDefault)
	m.fragmentOffsets = computeFragmentOffsets(fragments)
	return m
}

func wvPtr(v writerversion.WriterVersion) *writerversion.WriterVersion { return &v }

func cloneConfig(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// Fragments returns the manifest's fragment list. Callers must not mutate
// the returned slice or its elements.
func (m *Manifest) Fragments() []*Fragment { return m.fragments }

// SetFragments replaces the manifest's fragment list and recomputes the
// derived offset table. It exists for the wire codec, which builds a
// Manifest field by field while decoding; application code should prefer
// New or NewFromPrevious.
func (m *Manifest) SetFragments(fragments []*Fragment) {
	m.fragments = fragments
	m.fragmentOffsets = computeFragmentOffsets(fragments)
}

// FragmentOffsets returns the prefix-sum offset table for the manifest's
// fragments. len(result) == len(Fragments())+1.
func (m *Manifest) FragmentOffsets() []uint64 { return m.fragmentOffsets }

// Timestamp returns the manifest's commit time, or the zero time if unset.
func (m *Manifest) Timestamp() time.Time {
	if m.TimestampNanos == nil || m.TimestampNanos.Sign() == 0 {
		return time.Time{}
	}
	secs := new(big.Int).Div(m.TimestampNanos, big.NewInt(1e9))
	nanos := new(big.Int).Mod(m.TimestampNanos, big.NewInt(1e9))
	return time.Unix(secs.Int64(), nanos.Int64()).UTC()
}

// SetTimestamp sets the manifest's commit time.
func (m *Manifest) SetTimestamp(t time.Time) {
	m.TimestampNanos = big.NewInt(t.UnixNano())
}

// UpdateConfig merges the given key/value pairs into the manifest's config,
// overwriting any existing keys.
func (m *Manifest) UpdateConfig(updates map[string]string) {
	if m.Config == nil {
		m.Config = make(map[string]string, len(updates))
	}
	for k, v := range updates {
		m.Config[k] = v
	}
}

// DeleteConfigKeys removes the given keys from the manifest's config.
func (m *Manifest) DeleteConfigKeys(keys []string) {
	for _, k := range keys {
		delete(m.Config, k)
	}
}

// ReplaceSchemaMetadata replaces the top-level schema metadata.
func (m *Manifest) ReplaceSchemaMetadata(md map[string]string) {
	m.Schema = m.Schema.ReplaceMetadata(md)
	m.LocalSchema = m.Schema.RetainStorageClass(schema.StorageClassDefault)
}

// ReplaceFieldMetadata replaces the metadata of a single field, identified
// by id, across the schema.
func (m *Manifest) ReplaceFieldMetadata(id int32, md map[string]string) error {
	updated, err := m.Schema.ReplaceFieldMetadata(id, md)
	if err != nil {
		return fmt.Errorf("%w: %d", ErrUnknownFieldMetadata, id)
	}
	m.Schema = updated
	m.LocalSchema = m.Schema.RetainStorageClass(schema.StorageClassDefault)
	return nil
}

// UpdateMaxFragmentID raises the manifest's cached maximum fragment id hint
// to the largest id in its fragment list. It never lowers an existing hint
// and is a no-op if the manifest has no fragments.
func (m *Manifest) UpdateMaxFragmentID() {
	if len(m.fragments) == 0 {
		return
	}
	var max uint32
	for _, f := range m.fragments {
		if f.ID > max {
			max = f.ID
		}
	}
	if m.MaxFragmentIDHint == nil || max > *m.MaxFragmentIDHint {
		m.MaxFragmentIDHint = &max
	}
}

// MaxFragmentID returns the manifest's maximum fragment id, preferring the
// cached hint and falling back to scanning the fragment list. It returns
// false if the manifest has neither a hint nor any fragments.
func (m *Manifest) MaxFragmentID() (uint32, bool) {
	if m.MaxFragmentIDHint != nil {
		return *m.MaxFragmentIDHint, true
	}
	if len(m.fragments) == 0 {
		return 0, false
	}
	var max uint32
	for _, f := range m.fragments {
		if f.ID > max {
			max = f.ID
		}
	}
	return max, true
}

// MaxFieldID returns the largest field id known to the manifest, taking the
// maximum across the schema and every fragment's data files. It returns -1
// if neither the schema nor any fragment has fields.
func (m *Manifest) MaxFieldID() int32 {
	max := m.Schema.MaxFieldID()
	for _, f := range m.fragments {
		if fm := f.MaxFieldID(); fm > max {
			max = fm
		}
	}
	return max
}

// FragmentsSince returns the fragments added after the given manifest,
// identified by fragment id exceeding since's maximum fragment id (or all
// fragments if since has none). It is an error to ask for fragments since a
// manifest that is not strictly older than the receiver.
func (m *Manifest) FragmentsSince(since *Manifest) ([]*Fragment, error) {
	if since.Version >= m.Version {
		return nil, fmt.Errorf("%w: since=%d current=%d", ErrFragmentsSinceFuture, since.Version, m.Version)
	}
	sinceMax, ok := since.MaxFragmentID()
	if !ok {
		return append([]*Fragment(nil), m.fragments...), nil
	}
	var out []*Fragment
	for _, f := range m.fragments {
		if f.ID > sinceMax {
			out = append(out, f)
		}
	}
	return out, nil
}

// OffsetRangeEntry pairs a fragment with its starting logical row offset.
type OffsetRangeEntry struct {
	Fragment    *Fragment
	StartOffset uint64
}

// FragmentsByOffsetRange returns the fragments overlapping the half-open
// logical row range [start, end).
func (m *Manifest) FragmentsByOffsetRange(start, end uint64) []OffsetRangeEntry {
	entries := offsetindex.Lookup(m.fragmentOffsets, start, end)
	out := make([]OffsetRangeEntry, len(entries))
	for i, e := range entries {
		out[i] = OffsetRangeEntry{Fragment: m.fragments[e.Index], StartOffset: e.StartOffset}
	}
	return out
}

// UsesMoveStableRowIDs reports whether the manifest's reader feature flags
// require stable row ids to be honored across compaction.
func (m *Manifest) UsesMoveStableRowIDs() bool {
	return m.ReaderFeatureFlags&ReaderFlagMoveStableRowIDs != 0
}

// ShouldUseLegacyFormat reports whether fragments should be written using
// the legacy row-major file format.
func (m *Manifest) ShouldUseLegacyFormat() bool {
	return m.DataStorageFormat.IsLegacy()
}

// IsDetached reports whether the manifest's version carries the detached
// bit, marking it as outside normal version history traversal.
func (m *Manifest) IsDetached() bool {
	return m.Version&DetachedVersionMask != 0
}

// DebugString returns a one-line human-readable summary of the manifest,
// for test failure output and CLI dumping. It is not a stable format.
func (m *Manifest) DebugString() string {
	maxFragID, hasFragID := m.MaxFragmentID()
	fragIDStr := "none"
	if hasFragID {
		fragIDStr = fmt.Sprintf("%d", maxFragID)
	}
	var wv string
	if m.WriterVersion != nil {
		wv = fmt.Sprintf("%s/%s", m.WriterVersion.Library, m.WriterVersion.Version)
	} else {
		wv = "unknown"
	}
	return fmt.Sprintf(
		"Manifest{version=%d writer=%s fragments=%d max_fragment_id=%s next_row_id=%d rows=%d format=%s/%s detached=%v}",
		m.Version, wv, len(m.fragments), fragIDStr, m.NextRowID,
		m.fragmentOffsets[len(m.fragmentOffsets)-1],
		m.DataStorageFormat.FileFormat, m.DataStorageFormat.Version, m.IsDetached(),
	)
}
