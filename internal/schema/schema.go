// Package schema describes the logical field tree shared by every manifest
// version. A Schema never changes out from under a Manifest once it has been
// attached: Manifest callers that want to mutate it must Clone first, mutate
// the clone, and replace.
package schema

import "fmt"

// StorageClass selects which physical location a field's values live in.
// Default fields live inline with the row data files; Blob fields are
// written out-of-line and excluded from the file-level schema used for
// scan planning.
type StorageClass int

const (
	StorageClassDefault StorageClass = iota
	StorageClassBlob
)

func (c StorageClass) String() string {
	if c == StorageClassBlob {
		return "blob"
	}
	return "default"
}

// Field is one node of the schema tree. Struct and list fields carry
// Children; leaf fields leave Children nil.
type Field struct {
	ID           int32
	Name         string
	LogicalType  string
	Nullable     bool
	StorageClass StorageClass
	Metadata     map[string]string
	Children     []*Field
}

// Clone returns a deep copy of f: no Field, Metadata map, or Children slice
// is shared with the original.
func (f *Field) Clone() *Field {
	if f == nil {
		return nil
	}
	cp := *f
	cp.Metadata = cloneMetadata(f.Metadata)
	if f.Children != nil {
		cp.Children = make([]*Field, len(f.Children))
		for i, c := range f.Children {
			cp.Children[i] = c.Clone()
		}
	}
	return &cp
}

// maxFieldID returns the largest field id in f's subtree, including f
// itself.
func (f *Field) maxFieldID() int32 {
	max := f.ID
	for _, c := range f.Children {
		if m := c.maxFieldID(); m > max {
			max = m
		}
	}
	return max
}

// collectFieldIDs appends f's id, then the ids of its subtree in
// depth-first order, to out.
func (f *Field) collectFieldIDs(out *[]int32) {
	*out = append(*out, f.ID)
	for _, c := range f.Children {
		c.collectFieldIDs(out)
	}
}

// findByID walks f's subtree for the field with the given id.
func (f *Field) findByID(id int32) *Field {
	if f.ID == id {
		return f
	}
	for _, c := range f.Children {
		if found := c.findByID(id); found != nil {
			return found
		}
	}
	return nil
}

func cloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// Schema is the logical field tree plus top-level metadata.
type Schema struct {
	Fields   []*Field
	Metadata map[string]string
}

// New returns an empty schema ready for fields to be appended.
func New() *Schema {
	return &Schema{}
}

// Clone returns a deep copy of s. Mutating the clone never affects s.
func (s *Schema) Clone() *Schema {
	if s == nil {
		return nil
	}
	cp := &Schema{Metadata: cloneMetadata(s.Metadata)}
	if s.Fields != nil {
		cp.Fields = make([]*Field, len(s.Fields))
		for i, f := range s.Fields {
			cp.Fields[i] = f.Clone()
		}
	}
	return cp
}

// MaxFieldID returns the largest field id anywhere in the schema, or -1 if
// the schema has no fields.
func (s *Schema) MaxFieldID() int32 {
	max := int32(-1)
	for _, f := range s.Fields {
		if m := f.maxFieldID(); m > max {
			max = m
		}
	}
	return max
}

// FieldIDs returns the id of every field in the schema, including nested
// struct/list children, in depth-first definition order: a field's id
// precedes its descendants' ids, and siblings appear in declaration
// order. Callers that need one entry per field id (e.g. per-field
// statistics) should range over this instead of s.Fields directly, since
// s.Fields only holds the top-level fields.
func (s *Schema) FieldIDs() []int32 {
	var ids []int32
	for _, f := range s.Fields {
		f.collectFieldIDs(&ids)
	}
	return ids
}

// FieldByID returns the field with the given id, or nil if none exists.
func (s *Schema) FieldByID(id int32) *Field {
	for _, f := range s.Fields {
		if found := f.findByID(id); found != nil {
			return found
		}
	}
	return nil
}

// RetainStorageClass returns a clone of s containing only the top-level
// fields (and their subtrees) whose StorageClass matches class. It is used
// to derive the on-disk local_schema from the full logical schema, stripping
// blob fields out of the data-file-facing view.
func (s *Schema) RetainStorageClass(class StorageClass) *Schema {
	cp := &Schema{Metadata: cloneMetadata(s.Metadata)}
	for _, f := range s.Fields {
		if f.StorageClass == class {
			cp.Fields = append(cp.Fields, f.Clone())
		}
	}
	return cp
}

// ReplaceMetadata returns a clone of s with its top-level metadata replaced.
func (s *Schema) ReplaceMetadata(md map[string]string) *Schema {
	cp := s.Clone()
	cp.Metadata = cloneMetadata(md)
	return cp
}

// ReplaceFieldMetadata returns a clone of s with the metadata of the field
// identified by id replaced. It reports an error if no field with that id
// exists.
func (s *Schema) ReplaceFieldMetadata(id int32, md map[string]string) (*Schema, error) {
	cp := s.Clone()
	f := cp.FieldByID(id)
	if f == nil {
		return nil, &UnknownFieldError{ID: id}
	}
	f.Metadata = cloneMetadata(md)
	return cp, nil
}

// UnknownFieldError is returned when a field id does not exist in a schema.
type UnknownFieldError struct {
	ID int32
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("schema: unknown field id %d", e.ID)
}
