package schema

import "testing"

func TestFieldCloneIsDeep(t *testing.T) {
	orig := &Field{
		ID:       1,
		Name:     "a",
		Metadata: map[string]string{"k": "v"},
		Children: []*Field{{ID: 2, Name: "a.x"}},
	}
	cp := orig.Clone()
	cp.Metadata["k"] = "changed"
	cp.Children[0].Name = "mutated"

	if orig.Metadata["k"] != "v" {
		t.Fatalf("mutating clone metadata leaked into original: %v", orig.Metadata)
	}
	if orig.Children[0].Name != "a.x" {
		t.Fatalf("mutating clone child leaked into original: %v", orig.Children[0].Name)
	}
}

func TestSchemaMaxFieldID(t *testing.T) {
	s := &Schema{Fields: []*Field{
		{ID: 0},
		{ID: 1, Children: []*Field{{ID: 2}, {ID: 43}}},
	}}
	if got := s.MaxFieldID(); got != 43 {
		t.Fatalf("MaxFieldID() = %d, want 43", got)
	}
	if got := New().MaxFieldID(); got != -1 {
		t.Fatalf("MaxFieldID() on empty schema = %d, want -1", got)
	}
}

func TestSchemaFieldIDsIsDepthFirst(t *testing.T) {
	s := &Schema{Fields: []*Field{
		{ID: 0},
		{ID: 1, Children: []*Field{{ID: 2}, {ID: 3, Children: []*Field{{ID: 4}}}}},
		{ID: 5},
	}}
	got := s.FieldIDs()
	want := []int32{0, 1, 2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("FieldIDs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("FieldIDs() = %v, want %v", got, want)
		}
	}
}

func TestSchemaFieldIDsEmpty(t *testing.T) {
	if got := New().FieldIDs(); len(got) != 0 {
		t.Fatalf("FieldIDs() on empty schema = %v, want empty", got)
	}
}

func TestRetainStorageClass(t *testing.T) {
	s := &Schema{Fields: []*Field{
		{ID: 0, Name: "x", StorageClass: StorageClassDefault},
		{ID: 1, Name: "blob", StorageClass: StorageClassBlob},
	}}
	local := s.RetainStorageClass(StorageClassDefault)
	if len(local.Fields) != 1 || local.Fields[0].Name != "x" {
		t.Fatalf("RetainStorageClass(Default) = %+v", local.Fields)
	}
	// Mutating the derived schema must not affect the original.
	local.Fields[0].Name = "renamed"
	if s.Fields[0].Name != "x" {
		t.Fatalf("RetainStorageClass aliased the original field")
	}
}

func TestReplaceFieldMetadataUnknownID(t *testing.T) {
	s := &Schema{Fields: []*Field{{ID: 0}}}
	if _, err := s.ReplaceFieldMetadata(99, nil); err == nil {
		t.Fatal("expected error for unknown field id")
	}
}

func TestReplaceFieldMetadata(t *testing.T) {
	s := &Schema{Fields: []*Field{{ID: 5}}}
	updated, err := s.ReplaceFieldMetadata(5, map[string]string{"a": "b"})
	if err != nil {
		t.Fatalf("ReplaceFieldMetadata: %v", err)
	}
	if updated.FieldByID(5).Metadata["a"] != "b" {
		t.Fatalf("metadata not applied: %+v", updated.FieldByID(5))
	}
	if s.FieldByID(5).Metadata != nil {
		t.Fatalf("original schema mutated")
	}
}
