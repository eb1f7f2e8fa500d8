package archive

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers for the VersionArchive and VersionSummary wire messages.
// Assigned once; never renumber or reuse a number for a different field.
const (
	archiveFieldVersions             protowire.Number = 1
	archiveFieldLatestVersionNumber  protowire.Number = 2
	archiveFieldDatasetCreatedMillis protowire.Number = 3
	archiveFieldCreatedAtMillis      protowire.Number = 4

	summaryFieldVersion               protowire.Number = 1
	summaryFieldTimestampMillis       protowire.Number = 2
	summaryFieldManifest              protowire.Number = 3
	summaryFieldIsTagged              protowire.Number = 4
	summaryFieldIsCleanedUp           protowire.Number = 5
	summaryFieldTransactionUUID       protowire.Number = 6
	summaryFieldReadVersion           protowire.Number = 7
	summaryFieldHasReadVersion        protowire.Number = 8
	summaryFieldOperationType         protowire.Number = 9
	summaryFieldTransactionProperties protowire.Number = 10

	manifestSummaryFieldTotalFragments        protowire.Number = 1
	manifestSummaryFieldTotalDataFiles        protowire.Number = 2
	manifestSummaryFieldTotalFilesSize        protowire.Number = 3
	manifestSummaryFieldTotalDeletionFiles    protowire.Number = 4
	manifestSummaryFieldTotalDataFileRows     protowire.Number = 5
	manifestSummaryFieldTotalDeletionFileRows protowire.Number = 6
	manifestSummaryFieldTotalRows             protowire.Number = 7

	propEntryFieldKey   protowire.Number = 1
	propEntryFieldValue protowire.Number = 2
)

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

func appendMessageField(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

type fieldValue struct {
	num    protowire.Number
	varint uint64
	bytesV []byte
}

func parseFields(b []byte) ([]fieldValue, error) {
	var out []fieldValue
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("archive: invalid tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("archive: invalid varint: %w", protowire.ParseError(n))
			}
			out = append(out, fieldValue{num: num, varint: v})
			b = b[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("archive: invalid bytes: %w", protowire.ParseError(n))
			}
			out = append(out, fieldValue{num: num, bytesV: v})
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("archive: invalid field: %w", protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return out, nil
}

func encodeManifestSummary(s ManifestSummary) []byte {
	var b []byte
	b = appendVarintField(b, manifestSummaryFieldTotalFragments, s.TotalFragments)
	b = appendVarintField(b, manifestSummaryFieldTotalDataFiles, s.TotalDataFiles)
	b = appendVarintField(b, manifestSummaryFieldTotalFilesSize, s.TotalFilesSize)
	b = appendVarintField(b, manifestSummaryFieldTotalDeletionFiles, s.TotalDeletionFiles)
	b = appendVarintField(b, manifestSummaryFieldTotalDataFileRows, s.TotalDataFileRows)
	b = appendVarintField(b, manifestSummaryFieldTotalDeletionFileRows, s.TotalDeletionFileRows)
	b = appendVarintField(b, manifestSummaryFieldTotalRows, s.TotalRows)
	return b
}

func decodeManifestSummary(b []byte) (ManifestSummary, error) {
	fields, err := parseFields(b)
	if err != nil {
		return ManifestSummary{}, err
	}
	var s ManifestSummary
	for _, f := range fields {
		switch f.num {
		case manifestSummaryFieldTotalFragments:
			s.TotalFragments = f.varint
		case manifestSummaryFieldTotalDataFiles:
			s.TotalDataFiles = f.varint
		case manifestSummaryFieldTotalFilesSize:
			s.TotalFilesSize = f.varint
		case manifestSummaryFieldTotalDeletionFiles:
			s.TotalDeletionFiles = f.varint
		case manifestSummaryFieldTotalDataFileRows:
			s.TotalDataFileRows = f.varint
		case manifestSummaryFieldTotalDeletionFileRows:
			s.TotalDeletionFileRows = f.varint
		case manifestSummaryFieldTotalRows:
			s.TotalRows = f.varint
		}
	}
	return s, nil
}

func encodeVersionSummary(s VersionSummary) []byte {
	var b []byte
	b = appendVarintField(b, summaryFieldVersion, s.Version)
	b = appendVarintField(b, summaryFieldTimestampMillis, uint64(s.TimestampMillis))
	b = appendMessageField(b, summaryFieldManifest, encodeManifestSummary(s.Manifest))
	b = appendBoolField(b, summaryFieldIsTagged, s.IsTagged)
	b = appendBoolField(b, summaryFieldIsCleanedUp, s.IsCleanedUp)
	b = appendStringField(b, summaryFieldTransactionUUID, s.TransactionUUID)
	if s.ReadVersion != nil {
		b = appendVarintField(b, summaryFieldReadVersion, *s.ReadVersion)
		b = appendBoolField(b, summaryFieldHasReadVersion, true)
	}
	b = appendStringField(b, summaryFieldOperationType, s.OperationType)
	for k, v := range s.TransactionProperties {
		var entry []byte
		entry = appendStringField(entry, propEntryFieldKey, k)
		entry = appendStringField(entry, propEntryFieldValue, v)
		b = appendMessageField(b, summaryFieldTransactionProperties, entry)
	}
	return b
}

func decodeVersionSummary(b []byte) (VersionSummary, error) {
	fields, err := parseFields(b)
	if err != nil {
		return VersionSummary{}, err
	}
	var s VersionSummary
	var hasReadVersion bool
	var readVersion uint64
	for _, f := range fields {
		switch f.num {
		case summaryFieldVersion:
			s.Version = f.varint
		case summaryFieldTimestampMillis:
			s.TimestampMillis = int64(f.varint)
		case summaryFieldManifest:
			ms, err := decodeManifestSummary(f.bytesV)
			if err != nil {
				return VersionSummary{}, err
			}
			s.Manifest = ms
		case summaryFieldIsTagged:
			s.IsTagged = f.varint != 0
		case summaryFieldIsCleanedUp:
			s.IsCleanedUp = f.varint != 0
		case summaryFieldTransactionUUID:
			s.TransactionUUID = string(f.bytesV)
		case summaryFieldReadVersion:
			readVersion = f.varint
		case summaryFieldHasReadVersion:
			hasReadVersion = f.varint != 0
		case summaryFieldOperationType:
			s.OperationType = string(f.bytesV)
		case summaryFieldTransactionProperties:
			entryFields, err := parseFields(f.bytesV)
			if err != nil {
				return VersionSummary{}, err
			}
			var key, value string
			for _, ef := range entryFields {
				switch ef.num {
				case propEntryFieldKey:
					key = string(ef.bytesV)
				case propEntryFieldValue:
					value = string(ef.bytesV)
				}
			}
			if s.TransactionProperties == nil {
				s.TransactionProperties = make(map[string]string)
			}
			s.TransactionProperties[key] = value
		}
	}
	if hasReadVersion {
		s.ReadVersion = &readVersion
	}
	return s, nil
}

func encodeArchive(a *Archive) []byte {
	var b []byte
	for _, v := range a.Versions {
		b = appendMessageField(b, archiveFieldVersions, encodeVersionSummary(v))
	}
	b = appendVarintField(b, archiveFieldLatestVersionNumber, a.LatestVersionNumber)
	b = appendVarintField(b, archiveFieldDatasetCreatedMillis, uint64(a.DatasetCreatedMillis))
	b = appendVarintField(b, archiveFieldCreatedAtMillis, uint64(a.CreatedAtMillis))
	return b
}

func decodeArchive(data []byte) (*Archive, error) {
	fields, err := parseFields(data)
	if err != nil {
		return nil, err
	}
	a := &Archive{}
	for _, f := range fields {
		switch f.num {
		case archiveFieldVersions:
			v, err := decodeVersionSummary(f.bytesV)
			if err != nil {
				return nil, err
			}
			a.Versions = append(a.Versions, v)
		case archiveFieldLatestVersionNumber:
			a.LatestVersionNumber = f.varint
		case archiveFieldDatasetCreatedMillis:
			a.DatasetCreatedMillis = int64(f.varint)
		case archiveFieldCreatedAtMillis:
			a.CreatedAtMillis = int64(f.varint)
		}
	}
	return a, nil
}
