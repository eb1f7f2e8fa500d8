package manifestpb

import (
	"fmt"
	"math/big"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/aalhour/lancetable/internal/manifest"
	"github.com/aalhour/lancetable/internal/schema"
	"github.com/aalhour/lancetable/internal/writerversion"
)

// --- generic append helpers -------------------------------------------------

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBoolField(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, 1)
}

func appendStringField(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, []byte(s))
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendMessageField(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendPackedVarints(b []byte, num protowire.Number, values []int32) []byte {
	if len(values) == 0 {
		return b
	}
	var packed []byte
	for _, v := range values {
		packed = protowire.AppendVarint(packed, uint64(uint32(v)))
	}
	return appendMessageField(b, num, packed)
}

func appendMapEntry(b []byte, num protowire.Number, key, value string) []byte {
	var entry []byte
	entry = appendStringField(entry, mapEntryFieldKey, key)
	entry = appendStringField(entry, mapEntryFieldValue, value)
	return appendMessageField(b, num, entry)
}

// --- generic consume helpers ------------------------------------------------

// fieldValue is one decoded (number, type, raw payload) triple from a
// single pass over a message's bytes.
type fieldValue struct {
	num     protowire.Number
	typ     protowire.Type
	varint  uint64
	bytesV  []byte
}

func parseFields(b []byte) ([]fieldValue, error) {
	var out []fieldValue
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("manifestpb: invalid tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("manifestpb: invalid varint: %w", protowire.ParseError(n))
			}
			out = append(out, fieldValue{num: num, typ: typ, varint: v})
			b = b[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("manifestpb: invalid bytes: %w", protowire.ParseError(n))
			}
			out = append(out, fieldValue{num: num, typ: typ, bytesV: v})
			b = b[n:]
		case protowire.Fixed32Type:
			_, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return nil, fmt.Errorf("manifestpb: invalid fixed32: %w", protowire.ParseError(n))
			}
			b = b[n:]
		case protowire.Fixed64Type:
			_, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return nil, fmt.Errorf("manifestpb: invalid fixed64: %w", protowire.ParseError(n))
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("manifestpb: invalid field: %w", protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return out, nil
}

func parsePackedVarints(b []byte) ([]int32, error) {
	var out []int32
	for len(b) > 0 {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, fmt.Errorf("manifestpb: invalid packed varint: %w", protowire.ParseError(n))
		}
		out = append(out, int32(uint32(v)))
		b = b[n:]
	}
	return out, nil
}

func parseMapEntry(b []byte) (string, string, error) {
	fields, err := parseFields(b)
	if err != nil {
		return "", "", err
	}
	var key, value string
	for _, f := range fields {
		switch f.num {
		case mapEntryFieldKey:
			key = string(f.bytesV)
		case mapEntryFieldValue:
			value = string(f.bytesV)
		}
	}
	return key, value, nil
}

// --- Field / Schema ----------------------------------------------------

func encodeField(f *schema.Field) []byte {
	var b []byte
	b = appendVarintField(b, fieldFieldID, uint64(uint32(f.ID)))
	b = appendStringField(b, fieldFieldName, f.Name)
	b = appendStringField(b, fieldFieldLogicalType, f.LogicalType)
	b = appendBoolField(b, fieldFieldNullable, f.Nullable)
	b = appendVarintField(b, fieldFieldStorageClass, uint64(f.StorageClass))
	for k, v := range f.Metadata {
		b = appendMapEntry(b, fieldFieldMetadata, k, v)
	}
	for _, child := range f.Children {
		b = appendMessageField(b, fieldFieldChildren, encodeField(child))
	}
	return b
}

func decodeField(b []byte) (*schema.Field, error) {
	fields, err := parseFields(b)
	if err != nil {
		return nil, err
	}
	f := &schema.Field{}
	for _, fv := range fields {
		switch fv.num {
		case fieldFieldID:
			f.ID = int32(uint32(fv.varint))
		case fieldFieldName:
			f.Name = string(fv.bytesV)
		case fieldFieldLogicalType:
			f.LogicalType = string(fv.bytesV)
		case fieldFieldNullable:
			f.Nullable = fv.varint != 0
		case fieldFieldStorageClass:
			f.StorageClass = schema.StorageClass(fv.varint)
		case fieldFieldMetadata:
			k, v, err := parseMapEntry(fv.bytesV)
			if err != nil {
				return nil, err
			}
			if f.Metadata == nil {
				f.Metadata = make(map[string]string)
			}
			f.Metadata[k] = v
		case fieldFieldChildren:
			child, err := decodeField(fv.bytesV)
			if err != nil {
				return nil, err
			}
			f.Children = append(f.Children, child)
		}
	}
	return f, nil
}

func encodeSchema(s *schema.Schema) []byte {
	var b []byte
	for _, f := range s.Fields {
		b = appendMessageField(b, schemaFieldFields, encodeField(f))
	}
	for k, v := range s.Metadata {
		b = appendMapEntry(b, schemaFieldMetadata, k, v)
	}
	return b
}

func decodeSchema(b []byte) (*schema.Schema, error) {
	fields, err := parseFields(b)
	if err != nil {
		return nil, err
	}
	s := &schema.Schema{}
	for _, fv := range fields {
		switch fv.num {
		case schemaFieldFields:
			f, err := decodeField(fv.bytesV)
			if err != nil {
				return nil, err
			}
			s.Fields = append(s.Fields, f)
		case schemaFieldMetadata:
			k, v, err := parseMapEntry(fv.bytesV)
			if err != nil {
				return nil, err
			}
			if s.Metadata == nil {
				s.Metadata = make(map[string]string)
			}
			s.Metadata[k] = v
		}
	}
	return s, nil
}

// --- DataFile / DeletionFile / RowIDMeta / Fragment --------------------

func encodeDataFile(d *manifest.DataFile) []byte {
	var b []byte
	b = appendStringField(b, dataFileFieldPath, d.Path)
	b = appendPackedVarints(b, dataFileFieldFields, d.Fields)
	b = appendPackedVarints(b, dataFileFieldColumnIndices, d.ColumnIndices)
	b = appendVarintField(b, dataFileFieldMajorVersion, uint64(d.FileMajorVersion))
	b = appendVarintField(b, dataFileFieldMinorVersion, uint64(d.FileMinorVersion))
	return b
}

func decodeDataFile(b []byte) (manifest.DataFile, error) {
	fields, err := parseFields(b)
	if err != nil {
		return manifest.DataFile{}, err
	}
	var d manifest.DataFile
	for _, fv := range fields {
		switch fv.num {
		case dataFileFieldPath:
			d.Path = string(fv.bytesV)
		case dataFileFieldFields:
			v, err := parsePackedVarints(fv.bytesV)
			if err != nil {
				return manifest.DataFile{}, err
			}
			d.Fields = v
		case dataFileFieldColumnIndices:
			v, err := parsePackedVarints(fv.bytesV)
			if err != nil {
				return manifest.DataFile{}, err
			}
			d.ColumnIndices = v
		case dataFileFieldMajorVersion:
			d.FileMajorVersion = uint32(fv.varint)
		case dataFileFieldMinorVersion:
			d.FileMinorVersion = uint32(fv.varint)
		}
	}
	return d, nil
}

func encodeDeletionFile(d *manifest.DeletionFile) []byte {
	var b []byte
	b = appendVarintField(b, deletionFileFieldReadVersion, d.ReadVersion)
	b = appendVarintField(b, deletionFileFieldID, d.ID)
	b = appendVarintField(b, deletionFileFieldFileType, uint64(d.FileType))
	if d.NumDeletedRows != nil {
		b = appendVarintField(b, deletionFileFieldNumDeletedRows, *d.NumDeletedRows)
		b = appendBoolField(b, deletionFileFieldHasNumDeleted, true)
	}
	return b
}

func decodeDeletionFile(b []byte) (*manifest.DeletionFile, error) {
	fields, err := parseFields(b)
	if err != nil {
		return nil, err
	}
	d := &manifest.DeletionFile{}
	var hasNumDeleted bool
	var numDeleted uint64
	for _, fv := range fields {
		switch fv.num {
		case deletionFileFieldReadVersion:
			d.ReadVersion = fv.varint
		case deletionFileFieldID:
			d.ID = fv.varint
		case deletionFileFieldFileType:
			d.FileType = manifest.DeletionFileType(fv.varint)
		case deletionFileFieldNumDeletedRows:
			numDeleted = fv.varint
		case deletionFileFieldHasNumDeleted:
			hasNumDeleted = fv.varint != 0
		}
	}
	if hasNumDeleted {
		d.NumDeletedRows = &numDeleted
	}
	return d, nil
}

func encodeRowIDMeta(r *manifest.RowIDMeta) []byte {
	var b []byte
	b = appendBytesField(b, rowIDMetaFieldInline, r.Inline)
	b = appendStringField(b, rowIDMetaFieldExternalFile, r.ExternalFile)
	return b
}

func decodeRowIDMeta(b []byte) (*manifest.RowIDMeta, error) {
	fields, err := parseFields(b)
	if err != nil {
		return nil, err
	}
	r := &manifest.RowIDMeta{}
	for _, fv := range fields {
		switch fv.num {
		case rowIDMetaFieldInline:
			r.Inline = append([]byte(nil), fv.bytesV...)
		case rowIDMetaFieldExternalFile:
			r.ExternalFile = string(fv.bytesV)
		}
	}
	return r, nil
}

func encodeFragment(f *manifest.Fragment) []byte {
	var b []byte
	b = appendVarintField(b, fragmentFieldID, uint64(f.ID))
	for i := range f.Files {
		b = appendMessageField(b, fragmentFieldFiles, encodeDataFile(&f.Files[i]))
	}
	if f.DeletionFile != nil {
		b = appendMessageField(b, fragmentFieldDeletionFile, encodeDeletionFile(f.DeletionFile))
	}
	if f.RowIDMeta != nil {
		b = appendMessageField(b, fragmentFieldRowIDMeta, encodeRowIDMeta(f.RowIDMeta))
	}
	if f.PhysicalRows != nil {
		b = appendVarintField(b, fragmentFieldPhysicalRows, *f.PhysicalRows)
		b = appendBoolField(b, fragmentFieldHasPhysicalRows, true)
	}
	return b
}

func decodeFragment(b []byte) (*manifest.Fragment, error) {
	fields, err := parseFields(b)
	if err != nil {
		return nil, err
	}
	f := &manifest.Fragment{}
	var hasPhysicalRows bool
	var physicalRows uint64
	for _, fv := range fields {
		switch fv.num {
		case fragmentFieldID:
			f.ID = uint32(fv.varint)
		case fragmentFieldFiles:
			df, err := decodeDataFile(fv.bytesV)
			if err != nil {
				return nil, err
			}
			f.Files = append(f.Files, df)
		case fragmentFieldDeletionFile:
			df, err := decodeDeletionFile(fv.bytesV)
			if err != nil {
				return nil, err
			}
			f.DeletionFile = df
		case fragmentFieldRowIDMeta:
			rm, err := decodeRowIDMeta(fv.bytesV)
			if err != nil {
				return nil, err
			}
			f.RowIDMeta = rm
		case fragmentFieldPhysicalRows:
			physicalRows = fv.varint
		case fragmentFieldHasPhysicalRows:
			hasPhysicalRows = fv.varint != 0
		}
	}
	if hasPhysicalRows {
		f.PhysicalRows = &physicalRows
	}
	return f, nil
}

// --- WriterVersion / DataStorageFormat ----------------------------------

func encodeWriterVersion(v *writerversion.WriterVersion) []byte {
	var b []byte
	b = appendStringField(b, writerVersionFieldLibrary, v.Library)
	b = appendStringField(b, writerVersionFieldVersion, v.Version)
	return b
}

func decodeWriterVersion(b []byte) (*writerversion.WriterVersion, error) {
	fields, err := parseFields(b)
	if err != nil {
		return nil, err
	}
	v := &writerversion.WriterVersion{}
	for _, fv := range fields {
		switch fv.num {
		case writerVersionFieldLibrary:
			v.Library = string(fv.bytesV)
		case writerVersionFieldVersion:
			v.Version = string(fv.bytesV)
		}
	}
	if v.Library == "" && v.Version == "" {
		return nil, nil
	}
	return v, nil
}

func encodeDataStorageFormat(f manifest.DataStorageFormat) []byte {
	var b []byte
	b = appendStringField(b, dataStorageFormatFieldFileFormat, f.FileFormat)
	b = appendStringField(b, dataStorageFormatFieldVersion, f.Version)
	return b
}

func decodeDataStorageFormat(b []byte) (manifest.DataStorageFormat, error) {
	fields, err := parseFields(b)
	if err != nil {
		return manifest.DataStorageFormat{}, err
	}
	var f manifest.DataStorageFormat
	for _, fv := range fields {
		switch fv.num {
		case dataStorageFormatFieldFileFormat:
			f.FileFormat = string(fv.bytesV)
		case dataStorageFormatFieldVersion:
			f.Version = string(fv.bytesV)
		}
	}
	return f, nil
}

// --- inferStorageFormat mirrors the reference decoder's fallback chain for
// manifests written before data_storage_format was always populated: first
// use the file version of the first data file (across all fragments, in
// order) that records a non-zero version, then fall back to the writer
// feature flags. ---------------------------------------------------------

func inferStorageFormat(fragments []*manifest.Fragment, writerFlags uint64) manifest.DataStorageFormat {
	for _, f := range fragments {
		for _, df := range f.Files {
			if df.FileMajorVersion == 0 && df.FileMinorVersion == 0 {
				continue
			}
			return manifest.NewDataStorageFormat(fmt.Sprintf("%d.%d", df.FileMajorVersion, df.FileMinorVersion))
		}
	}
	if writerFlags&manifest.WriterFlagDeprecatedV2 != 0 {
		return manifest.NewDataStorageFormat(manifest.StableFormatVersion)
	}
	return manifest.NewDataStorageFormat(manifest.LegacyFormatVersion)
}

// --- Manifest ------------------------------------------------------------

// EncodeManifest serializes m to its protobuf wire representation.
// local_schema and the fragment offset table are derived, never encoded.
func EncodeManifest(m *manifest.Manifest) []byte {
	var b []byte
	if m.Schema != nil {
		b = appendMessageField(b, manifestFieldSchema, encodeSchema(m.Schema))
	}
	b = appendVarintField(b, manifestFieldVersion, m.Version)
	if m.WriterVersion != nil {
		b = appendMessageField(b, manifestFieldWriterVersion, encodeWriterVersion(m.WriterVersion))
	}
	for _, f := range m.Fragments() {
		b = appendMessageField(b, manifestFieldFragments, encodeFragment(f))
	}
	b = appendVarintField(b, manifestFieldVersionAuxData, m.VersionAuxData)
	if m.IndexSection != nil {
		b = appendVarintField(b, manifestFieldIndexSection, *m.IndexSection)
		b = appendBoolField(b, manifestFieldHasIndexSection, true)
	}
	if m.TimestampNanos != nil && m.TimestampNanos.Sign() != 0 {
		secs := new(big.Int).Div(m.TimestampNanos, big.NewInt(1e9))
		nanos := new(big.Int).Mod(m.TimestampNanos, big.NewInt(1e9))
		b = appendVarintField(b, manifestFieldTimestampSeconds, secs.Uint64())
		b = appendVarintField(b, manifestFieldTimestampNanos, nanos.Uint64())
	}
	if m.Tag != nil {
		b = appendStringField(b, manifestFieldTag, *m.Tag)
	}
	b = appendVarintField(b, manifestFieldReaderFeatureFlags, m.ReaderFeatureFlags)
	b = appendVarintField(b, manifestFieldWriterFeatureFlags, m.WriterFeatureFlags)
	if m.MaxFragmentIDHint != nil {
		b = appendVarintField(b, manifestFieldMaxFragmentID, uint64(*m.MaxFragmentIDHint))
		b = appendBoolField(b, manifestFieldHasMaxFragmentID, true)
	}
	if m.TransactionFile != nil {
		b = appendStringField(b, manifestFieldTransactionFile, *m.TransactionFile)
	}
	b = appendVarintField(b, manifestFieldNextRowID, m.NextRowID)
	if m.DataStorageFormat != (manifest.DataStorageFormat{}) {
		b = appendMessageField(b, manifestFieldDataStorageFormat, encodeDataStorageFormat(m.DataStorageFormat))
	}
	for k, v := range m.Config {
		b = appendMapEntry(b, manifestFieldConfig, k, v)
	}
	if m.BlobDatasetVersion != nil {
		b = appendVarintField(b, manifestFieldBlobDatasetVersion, *m.BlobDatasetVersion)
	}
	return b
}

// DecodeManifest parses the protobuf wire representation produced by
// EncodeManifest. local_schema is recomputed from the decoded schema rather
// than read off the wire.
func DecodeManifest(b []byte) (*manifest.Manifest, error) {
	fields, err := parseFields(b)
	if err != nil {
		return nil, err
	}

	var (
		sch                                *schema.Schema
		fragments                          []*manifest.Fragment
		wv                                 *writerversion.WriterVersion
		hasDataFormat                      bool
		dataFormat                         manifest.DataStorageFormat
		hasIndexSection, hasMaxFragmentID  bool
		indexSection                       uint64
		maxFragmentID                      uint32
		timestampSeconds, timestampNanos   uint64
		tag, transactionFile               *string
		config                             map[string]string
	)

	m := &manifest.Manifest{}

	for _, fv := range fields {
		switch fv.num {
		case manifestFieldSchema:
			sch, err = decodeSchema(fv.bytesV)
			if err != nil {
				return nil, err
			}
		case manifestFieldVersion:
			m.Version = fv.varint
		case manifestFieldWriterVersion:
			wv, err = decodeWriterVersion(fv.bytesV)
			if err != nil {
				return nil, err
			}
		case manifestFieldFragments:
			f, err := decodeFragment(fv.bytesV)
			if err != nil {
				return nil, err
			}
			fragments = append(fragments, f)
		case manifestFieldVersionAuxData:
			m.VersionAuxData = fv.varint
		case manifestFieldIndexSection:
			indexSection = fv.varint
		case manifestFieldHasIndexSection:
			hasIndexSection = fv.varint != 0
		case manifestFieldTimestampSeconds:
			timestampSeconds = fv.varint
		case manifestFieldTimestampNanos:
			timestampNanos = fv.varint
		case manifestFieldTag:
			s := string(fv.bytesV)
			tag = &s
		case manifestFieldReaderFeatureFlags:
			m.ReaderFeatureFlags = fv.varint
		case manifestFieldWriterFeatureFlags:
			m.WriterFeatureFlags = fv.varint
		case manifestFieldMaxFragmentID:
			maxFragmentID = uint32(fv.varint)
		case manifestFieldHasMaxFragmentID:
			hasMaxFragmentID = fv.varint != 0
		case manifestFieldTransactionFile:
			s := string(fv.bytesV)
			transactionFile = &s
		case manifestFieldNextRowID:
			m.NextRowID = fv.varint
		case manifestFieldDataStorageFormat:
			dataFormat, err = decodeDataStorageFormat(fv.bytesV)
			if err != nil {
				return nil, err
			}
			hasDataFormat = true
		case manifestFieldConfig:
			k, v, err := parseMapEntry(fv.bytesV)
			if err != nil {
				return nil, err
			}
			if config == nil {
				config = make(map[string]string)
			}
			config[k] = v
		case manifestFieldBlobDatasetVersion:
			v := fv.varint
			m.BlobDatasetVersion = &v
		}
	}

	if err := validateMoveStableRowIDs(m.ReaderFeatureFlags, fragments); err != nil {
		return nil, err
	}

	if sch == nil {
		sch = schema.New()
	}
	m.Schema = sch
	m.LocalSchema = sch.RetainStorageClass(schema.StorageClassDefault)
	m.SetFragments(fragments)
	m.WriterVersion = wv
	m.Tag = tag
	m.TransactionFile = transactionFile
	m.Config = config

	if hasIndexSection {
		v := indexSection
		m.IndexSection = &v
	}
	if hasMaxFragmentID {
		v := maxFragmentID
		m.MaxFragmentIDHint = &v
	}
	if timestampSeconds != 0 || timestampNanos != 0 {
		nanos := new(big.Int).Mul(new(big.Int).SetUint64(timestampSeconds), big.NewInt(1e9))
		nanos.Add(nanos, new(big.Int).SetUint64(timestampNanos))
		m.TimestampNanos = nanos
	}
	if hasDataFormat {
		m.DataStorageFormat = dataFormat
	} else {
		m.DataStorageFormat = inferStorageFormat(fragments, m.WriterFeatureFlags)
	}

	return m, nil
}

func validateMoveStableRowIDs(readerFlags uint64, fragments []*manifest.Fragment) error {
	if readerFlags&manifest.ReaderFlagMoveStableRowIDs == 0 {
		return nil
	}
	for _, f := range fragments {
		if f.RowIDMeta == nil {
			return manifest.ErrMissingRowIDMeta
		}
	}
	return nil
}
