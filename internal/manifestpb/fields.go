// Package manifestpb encodes and decodes Manifest values as protobuf wire
// bytes, using the low-level encoding/protowire primitives directly instead
// of generated message code. This keeps the wire format hand-auditable and
// avoids committing a .proto/codegen pipeline for a handful of messages.
//
// Field numbers below are assigned once and must never be renumbered or
// reused for a different field: that would corrupt every manifest already
// written with the old assignment. Only ever append new numbers.
package manifestpb

import "google.golang.org/protobuf/encoding/protowire"

// Field message.
const (
	fieldFieldID           protowire.Number = 1
	fieldFieldName         protowire.Number = 2
	fieldFieldLogicalType  protowire.Number = 3
	fieldFieldNullable     protowire.Number = 4
	fieldFieldStorageClass protowire.Number = 5
	fieldFieldMetadata     protowire.Number = 6
	fieldFieldChildren     protowire.Number = 7
)

// Schema message.
const (
	schemaFieldFields   protowire.Number = 1
	schemaFieldMetadata protowire.Number = 2
)

// MapEntry message, shared by every string/string metadata map.
const (
	mapEntryFieldKey   protowire.Number = 1
	mapEntryFieldValue protowire.Number = 2
)

// DataFile message.
const (
	dataFileFieldPath            protowire.Number = 1
	dataFileFieldFields          protowire.Number = 2
	dataFileFieldColumnIndices   protowire.Number = 3
	dataFileFieldMajorVersion    protowire.Number = 4
	dataFileFieldMinorVersion    protowire.Number = 5
)

// DeletionFile message.
const (
	deletionFileFieldReadVersion    protowire.Number = 1
	deletionFileFieldID             protowire.Number = 2
	deletionFileFieldFileType       protowire.Number = 3
	deletionFileFieldNumDeletedRows protowire.Number = 4
	deletionFileFieldHasNumDeleted  protowire.Number = 5
)

// RowIDMeta message.
const (
	rowIDMetaFieldInline       protowire.Number = 1
	rowIDMetaFieldExternalFile protowire.Number = 2
)

// Fragment message.
const (
	fragmentFieldID              protowire.Number = 1
	fragmentFieldFiles           protowire.Number = 2
	fragmentFieldDeletionFile    protowire.Number = 3
	fragmentFieldRowIDMeta       protowire.Number = 4
	fragmentFieldPhysicalRows    protowire.Number = 5
	fragmentFieldHasPhysicalRows protowire.Number = 6
)

// WriterVersion message.
const (
	writerVersionFieldLibrary protowire.Number = 1
	writerVersionFieldVersion protowire.Number = 2
)

// DataStorageFormat message.
const (
	dataStorageFormatFieldFileFormat protowire.Number = 1
	dataStorageFormatFieldVersion    protowire.Number = 2
)

// Manifest message.
const (
	manifestFieldSchema              protowire.Number = 1
	manifestFieldVersion             protowire.Number = 2
	manifestFieldWriterVersion       protowire.Number = 3
	manifestFieldFragments           protowire.Number = 4
	manifestFieldVersionAuxData      protowire.Number = 5
	manifestFieldIndexSection        protowire.Number = 6
	manifestFieldHasIndexSection     protowire.Number = 7
	manifestFieldTimestampSeconds    protowire.Number = 8
	manifestFieldTimestampNanos      protowire.Number = 9
	manifestFieldTag                 protowire.Number = 10
	manifestFieldReaderFeatureFlags  protowire.Number = 11
	manifestFieldWriterFeatureFlags  protowire.Number = 12
	manifestFieldMaxFragmentID       protowire.Number = 13
	manifestFieldHasMaxFragmentID    protowire.Number = 14
	manifestFieldTransactionFile     protowire.Number = 15
	manifestFieldNextRowID           protowire.Number = 16
	manifestFieldDataStorageFormat   protowire.Number = 17
	manifestFieldConfig              protowire.Number = 18
	manifestFieldBlobDatasetVersion  protowire.Number = 19
)
