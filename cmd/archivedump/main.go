// Archive dump utility.
//
// Use `archivedump` to print the version history summaries recorded in a
// dataset's version archive, loading the newest readable archive file and
// falling back through older ones on corruption.
//
// Run the tool:
//
// ```bash
// ./bin/archivedump <dataset-dir>
// ```
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aalhour/lancetable/internal/archive"
	"github.com/aalhour/lancetable/internal/objectstore"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: archivedump <dataset-dir>")
		os.Exit(1)
	}

	base := os.Args[1]
	store := objectstore.NewLocalStore(base, 0)
	ctx := context.Background()

	a, err := archive.LoadLatest(ctx, "", store, archive.DefaultConfig(), nil, func() int64 { return 0 })
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading archive: %v\n", err)
		os.Exit(1)
	}
	if a == nil {
		fmt.Println("No readable archive file found.")
		return
	}

	fmt.Printf("Latest version: %d\n", a.LatestVersionNumber)
	fmt.Printf("Dataset created (millis): %d\n", a.DatasetCreatedMillis)
	fmt.Printf("Archive written (millis): %d\n", a.CreatedAtMillis)
	fmt.Printf("Entries: %d\n", len(a.Versions))
	for _, v := range a.Versions {
		fmt.Printf("  v%d: rows=%d fragments=%d tagged=%v cleaned_up=%v op=%s\n",
			v.Version, v.Manifest.TotalRows, v.Manifest.TotalFragments, v.IsTagged, v.IsCleanedUp, v.OperationType)
	}
}
