package writerversion

import "testing"

func TestSemverLenientParsing(t *testing.T) {
	v := WriterVersion{Version: "0.26"}
	maj, min, pat, tag, ok := v.Semver()
	if !ok || maj != 0 || min != 26 || pat != 0 || tag != "" {
		t.Fatalf("Semver() = (%d,%d,%d,%q,%v)", maj, min, pat, tag, ok)
	}
}

func TestSemverWithTag(t *testing.T) {
	v := WriterVersion{Version: "1.2.3.dev0"}
	maj, min, pat, tag, ok := v.Semver()
	if !ok || maj != 1 || min != 2 || pat != 3 || tag != "dev0" {
		t.Fatalf("Semver() = (%d,%d,%d,%q,%v)", maj, min, pat, tag, ok)
	}
}

func TestSemverUnparseable(t *testing.T) {
	v := WriterVersion{Version: "not-a-version"}
	if _, _, _, _, ok := v.Semver(); ok {
		t.Fatal("expected Semver() to fail for non-numeric version")
	}
}

func TestOlderThan(t *testing.T) {
	v := WriterVersion{Version: "0.25.1"}
	if !v.OlderThan(0, 26, 0) {
		t.Fatal("expected 0.25.1 to be older than 0.26.0")
	}
	if v.OlderThan(0, 25, 0) {
		t.Fatal("expected 0.25.1 to not be older than 0.25.0")
	}
}

func TestOlderThanUnparseableIsOldest(t *testing.T) {
	v := WriterVersion{Version: "garbage"}
	if !v.OlderThan(0, 0, 0) {
		t.Fatal("expected unparseable version to be treated as older than everything")
	}
}

// TestBumpDoesNotZeroLowerParts preserves an intentional quirk: bumping the
// minor component does not reset patch to zero.
func TestBumpDoesNotZeroLowerParts(t *testing.T) {
	v := WriterVersion{Library: "lance", Version: "1.2.3"}
	bumped := v.Bump(PartMinor, false)
	if bumped.Version != "1.3.3" {
		t.Fatalf("Bump(Minor) = %q, want %q", bumped.Version, "1.3.3")
	}
	if !bumped.OlderThan(1, 4, 0) {
		t.Fatal("expected bumped version to remain older than 1.4.0")
	}
}

// TestDefaultBumpsPatchUnderTest mirrors the "test builds pre-bump by one
// patch to simulate the next version" rule: testing.Testing() is true for
// every call in this package's own test binary, so Default() here should
// never equal the raw defaultVersion.
func TestDefaultBumpsPatchUnderTest(t *testing.T) {
	d := Default()
	if d.Version == defaultVersion {
		t.Fatalf("Default() under test returned unbumped version %q", d.Version)
	}
	maj, min, pat, _, ok := d.Semver()
	if !ok {
		t.Fatalf("Default() version %q did not parse", d.Version)
	}
	baseMaj, baseMin, basePat, _, _ := WriterVersion{Version: defaultVersion}.Semver()
	if maj != baseMaj || min != baseMin || pat != basePat+1 {
		t.Fatalf("Default() = %d.%d.%d, want %d.%d.%d", maj, min, pat, baseMaj, baseMin, basePat+1)
	}
}

func TestBumpKeepsTagWhenRequested(t *testing.T) {
	v := WriterVersion{Version: "1.2.3.rc1"}
	bumped := v.Bump(PartPatch, true)
	if bumped.Version != "1.2.4.rc1" {
		t.Fatalf("Bump(Patch, keepTag=true) = %q", bumped.Version)
	}
	dropped := v.Bump(PartPatch, false)
	if dropped.Version != "1.2.4" {
		t.Fatalf("Bump(Patch, keepTag=false) = %q", dropped.Version)
	}
}
