// Package writerversion records which writer produced a manifest version and
// provides the lenient, dotted-quad version comparisons manifest upgrade
// checks rely on ("does this reader understand everything writer X.Y.Z
// could have written").
//
// Unlike a strict semver string, a writer version tag may carry a fourth,
// free-form component (e.g. "0.26.1.dev0"); only the first three numeric
// components participate in ordering, with the Masterminds/semver library
// backing the actual comparison once those three are known.
package writerversion

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/Masterminds/semver/v3"
)

const (
	DefaultLibrary = "lance"
	// defaultVersion mirrors the library's own release version at the time
	// a manifest is written. It is bumped alongside the module version.
	defaultVersion = "0.38.0"
)

// Part identifies which dotted component of a version Bump targets.
type Part int

const (
	PartMajor Part = iota
	PartMinor
	PartPatch
)

// WriterVersion names the library and version that wrote a manifest.
type WriterVersion struct {
	Library string
	Version string
}

// Default returns the WriterVersion this module stamps onto manifests it
// writes itself. Under `go test`, the patch component is pre-bumped by one
// to simulate "the next version", matching this module's own release
// discipline of writing manifests against its in-progress version rather
// than its last tagged one.
func Default() WriterVersion {
	v := WriterVersion{Library: DefaultLibrary, Version: defaultVersion}
	if testing.Testing() {
		return v.Bump(PartPatch, true)
	}
	return v
}

// Semver parses the leading major.minor.patch[.tag] components of v.Version.
// Missing leading components default to 0; a version string that cannot be
// parsed at all (non-numeric leading component) returns ok=false.
func (v WriterVersion) Semver() (major, minor, patch int, tag string, ok bool) {
	parts := strings.SplitN(v.Version, ".", 4)
	nums := [3]int{}
	for i := 0; i < 3 && i < len(parts); i++ {
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			return 0, 0, 0, "", false
		}
		nums[i] = n
	}
	if len(parts) == 4 {
		tag = parts[3]
	}
	return nums[0], nums[1], nums[2], tag, true
}

// SemverOrPanic is like Semver but panics if the version cannot be parsed.
// It exists for call sites that have already validated the version string
// and want to avoid threading an error return through.
func (v WriterVersion) SemverOrPanic() (major, minor, patch int, tag string) {
	major, minor, patch, tag, ok := v.Semver()
	if !ok {
		panic(fmt.Sprintf("writerversion: cannot parse version %q", v.Version))
	}
	return
}

// OlderThan reports whether v's version is strictly older than
// major.minor.patch. A version that fails to parse is treated as older than
// everything, matching the conservative "assume an old/foreign writer"
// behavior a reader needs when it cannot recognize the writer at all.
func (v WriterVersion) OlderThan(major, minor, patch int) bool {
	vMaj, vMin, vPat, _, ok := v.Semver()
	if !ok {
		return true
	}
	self, err := semver.NewVersion(fmt.Sprintf("%d.%d.%d", vMaj, vMin, vPat))
	if err != nil {
		return true
	}
	other, err := semver.NewVersion(fmt.Sprintf("%d.%d.%d", major, minor, patch))
	if err != nil {
		return true
	}
	return self.LessThan(other)
}

// Bump increments exactly one of the three numeric components, leaving the
// others untouched (it does not zero lower-order components the way a
// strict semver bump would). When keepTag is false the fourth component, if
// any, is dropped.
func (v WriterVersion) Bump(part Part, keepTag bool) WriterVersion {
	major, minor, patch, tag, ok := v.Semver()
	if !ok {
		major, minor, patch, tag = 0, 0, 0, ""
	}
	switch part {
	case PartMajor:
		major++
	case PartMinor:
		minor++
	case PartPatch:
		patch++
	}
	version := fmt.Sprintf("%d.%d.%d", major, minor, patch)
	if keepTag && tag != "" {
		version += "." + tag
	}
	return WriterVersion{Library: v.Library, Version: version}
}
