// Manifest dump utility.
//
// Use `manifestdump` to print a summary of one manifest file decoded from
// its protobuf wire representation.
//
// Run the tool:
//
// ```bash
// ./bin/manifestdump <manifest-file>
// ```
package main

import (
	"fmt"
	"os"

	"github.com/aalhour/lancetable/internal/manifestpb"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: manifestdump <manifest-file>")
		os.Exit(1)
	}

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		os.Exit(1)
	}

	m, err := manifestpb.DecodeManifest(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error decoding manifest: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(m.DebugString())
	fmt.Printf("Schema fields: %d (local: %d)\n", len(m.Schema.Fields), len(m.LocalSchema.Fields))
	fmt.Printf("Timestamp: %s\n", m.Timestamp())
	if m.Tag != nil {
		fmt.Printf("Tag: %s\n", *m.Tag)
	}
	if m.BlobDatasetVersion != nil {
		fmt.Printf("Blob dataset version: %d\n", *m.BlobDatasetVersion)
	}
	fmt.Printf("Uses move-stable row ids: %v\n", m.UsesMoveStableRowIDs())

	for _, frag := range m.Fragments() {
		rows, known := frag.NumRows()
		rowsStr := "unknown"
		if known {
			rowsStr = fmt.Sprintf("%d", rows)
		}
		fmt.Printf("  fragment %d: files=%d rows=%s\n", frag.ID, len(frag.Files), rowsStr)
	}
}
