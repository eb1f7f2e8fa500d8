// Package catalog describes the external collaborators this core relies
// on but does not implement: the namespace catalog service and the
// catalog→schema→table adapter that sits in front of it. Both are
// modeled as interfaces only, matching the teacher's convention of
// isolating a storage-engine core from the SQL-facing layer above it
// through a narrow Go interface rather than an import of that layer.
//
// Neither interface has a concrete implementation in this core: the
// dynamic SQL catalog façade and the REST/directory-backed namespace
// service both live outside this module's scope.
package catalog

import "context"

// Request and Response are opaque payloads exchanged with a Namespace.
// The core never inspects their contents directly; it forwards whatever
// the caller supplies and returns whatever the namespace replies with.
type Request any

// Response is the opaque reply type paired with Request.
type Response any

// Namespace is the external namespace catalog service surface. Most of
// its operations exist only to complete the contract the service
// exposes; this core calls only LoadDataset and Children.
type Namespace interface {
	ListNamespaces(ctx context.Context, req Request) (Response, error)
	DescribeNamespace(ctx context.Context, req Request) (Response, error)
	CreateNamespace(ctx context.Context, req Request) (Response, error)
	DropNamespace(ctx context.Context, req Request) (Response, error)
	NamespaceExists(ctx context.Context, req Request) (bool, error)

	ListTables(ctx context.Context, req Request) (Response, error)
	DescribeTable(ctx context.Context, req Request) (Response, error)
	RegisterTable(ctx context.Context, req Request) (Response, error)
	TableExists(ctx context.Context, req Request) (bool, error)
	DropTable(ctx context.Context, req Request) (Response, error)
	DeregisterTable(ctx context.Context, req Request) (Response, error)
	CreateTable(ctx context.Context, req Request, data []byte) (Response, error)

	// CreateEmptyTable is retained for namespaces that still implement
	// it; callers should prefer CreateTable.
	//
	// Deprecated: superseded by CreateTable with an empty payload.
	CreateEmptyTable(ctx context.Context, req Request) (Response, error)
	DeclareTable(ctx context.Context, req Request) (Response, error)

	// LoadDataset resolves name to the dataset backing it, at its
	// current latest version. This and Children are the only two
	// operations the core itself calls.
	LoadDataset(ctx context.Context, name string) (Dataset, error)
	// Children lists the immediate child namespaces and tables under
	// this namespace.
	Children(ctx context.Context) ([]string, error)
}

// Dataset is the narrow view of an opened dataset that a Namespace
// hands back from LoadDataset: enough for an Adapter to cache it and
// decide whether that cache entry is stale.
type Dataset interface {
	// Version is the dataset's currently loaded version number.
	Version() uint64
}

// Adapter is a three-level catalog → schema → table mapping, with each
// catalog and schema level backed by one Namespace. Table resolution
// calls Namespace.LoadDataset and caches the result keyed by name; a
// cache entry is invalidated once the namespace's current latest
// version has moved past the version the cached entry was loaded at.
type Adapter interface {
	// ResolveTable returns the cached or freshly loaded dataset backing
	// ref, which may be a bare table name scoped to the adapter's
	// current catalog/schema or a URL-style reference. References
	// ending in ".lance" resolve directly to a dataset and bypass
	// namespace lookup entirely; everything else resolves through the
	// namespace chain.
	ResolveTable(ctx context.Context, ref string) (Dataset, error)
	// Invalidate drops any cached entry for name, forcing the next
	// ResolveTable call to reload it from the namespace.
	Invalidate(name string)
}
