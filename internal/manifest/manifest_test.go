package manifest

import (
	"testing"

	"github.com/aalhour/lancetable/internal/schema"
)

func u64(v uint64) *uint64 { return &v }

func fragWithRows(id uint32, rows uint64) *Fragment {
	return &Fragment{ID: id, PhysicalRows: u64(rows)}
}

func TestFragmentsByOffsetRangeScenario(t *testing.T) {
	m := New(schema.New(), []*Fragment{
		fragWithRows(0, 10),
		fragWithRows(1, 15),
		fragWithRows(2, 20),
	}, NewDataStorageFormat(StableFormatVersion), nil)

	entries := m.FragmentsByOffsetRange(5, 20)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Fragment.ID != 0 || entries[1].Fragment.ID != 1 {
		t.Fatalf("entries = %+v", entries)
	}
}

func dataFile(fields ...int32) DataFile {
	return DataFile{Fields: fields}
}

func TestMaxFieldIDScenario(t *testing.T) {
	sch := &schema.Schema{Fields: []*schema.Field{
		{ID: 0}, {ID: 1}, {ID: 2},
	}}
	fragments := []*Fragment{
		{ID: 0, Files: []DataFile{dataFile(0, 1, 2)}},
		{ID: 1, Files: []DataFile{dataFile(0, 1, 43), dataFile(2)}},
	}
	m := New(sch, fragments, NewDataStorageFormat(StableFormatVersion), nil)
	if got := m.MaxFieldID(); got != 43 {
		t.Fatalf("MaxFieldID() = %d, want 43", got)
	}
}

func TestUpdateMaxFragmentIDNeverLowers(t *testing.T) {
	m := New(schema.New(), []*Fragment{{ID: 5}}, DataStorageFormat{}, nil)
	m.UpdateMaxFragmentID()
	if got, ok := m.MaxFragmentID(); !ok || got != 5 {
		t.Fatalf("MaxFragmentID() = (%d,%v), want (5,true)", got, ok)
	}

	m.fragments = []*Fragment{{ID: 1}}
	m.UpdateMaxFragmentID()
	if got, _ := m.MaxFragmentID(); got != 5 {
		t.Fatalf("MaxFragmentID() lowered to %d after adding a smaller fragment id", got)
	}
}

func TestUpdateMaxFragmentIDNoOpOnEmpty(t *testing.T) {
	m := New(schema.New(), nil, DataStorageFormat{}, nil)
	m.UpdateMaxFragmentID()
	if _, ok := m.MaxFragmentID(); ok {
		t.Fatal("expected no fragment id hint for an empty fragment list")
	}
}

func TestFragmentsSinceRejectsFutureBase(t *testing.T) {
	m1 := New(schema.New(), nil, DataStorageFormat{}, nil)
	m2 := NewFromPrevious(m1, schema.New(), nil, nil)
	if _, err := m1.FragmentsSince(m2); err == nil {
		t.Fatal("expected error asking for fragments since a newer manifest")
	}
}

func TestFragmentsSince(t *testing.T) {
	m1 := New(schema.New(), []*Fragment{{ID: 0}, {ID: 1}}, DataStorageFormat{}, nil)
	m1.UpdateMaxFragmentID()
	m2 := NewFromPrevious(m1, schema.New(), []*Fragment{{ID: 0}, {ID: 1}, {ID: 2}}, nil)

	added, err := m2.FragmentsSince(m1)
	if err != nil {
		t.Fatalf("FragmentsSince: %v", err)
	}
	if len(added) != 1 || added[0].ID != 2 {
		t.Fatalf("FragmentsSince() = %+v, want [fragment 2]", added)
	}
}

func TestNewFromPreviousCarriesConfigForward(t *testing.T) {
	m1 := New(schema.New(), nil, DataStorageFormat{}, nil)
	m1.UpdateConfig(map[string]string{"lance.version_archive.enabled": "true"})
	m2 := NewFromPrevious(m1, schema.New(), nil, nil)

	if m2.Config["lance.version_archive.enabled"] != "true" {
		t.Fatalf("config not carried forward: %+v", m2.Config)
	}
	m2.Config["lance.version_archive.enabled"] = "false"
	if m1.Config["lance.version_archive.enabled"] != "true" {
		t.Fatal("config map aliased between manifests")
	}
}

func TestReplaceFieldMetadataUnknownField(t *testing.T) {
	m := New(&schema.Schema{Fields: []*schema.Field{{ID: 0}}}, nil, DataStorageFormat{}, nil)
	if err := m.ReplaceFieldMetadata(99, nil); err == nil {
		t.Fatal("expected error for unknown field id")
	}
}
