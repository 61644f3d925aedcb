package digest

import (
	"bytes"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func sumOf(b []byte, alg *Algorithm) string {
	hasher := alg.New()
	hasher.Write(b)
	return hex.EncodeToString(hasher.Sum(nil))
}

func patterned(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7) + seed
	}
	return b
}

func TestWindowThreshold(t *testing.T) {
	cases := []struct {
		size     uint64
		head     int64
		tail     int64
		withTail bool
	}{
		{0, 0, 0, false},
		{100, 100, 0, false},
		{ChunkSize, ChunkSize, 0, false},
		{ChunkSize + 1, ChunkSize, 0, false},
		{TailThreshold, ChunkSize, 0, false},
		{TailThreshold + 1, ChunkSize, TailThreshold + 1 - ChunkSize, true},
		{10240, ChunkSize, 10240 - ChunkSize, true},
	}

	for _, tc := range cases {
		head, tail, withTail := Window(tc.size)
		if head != tc.head || tail != tc.tail || withTail != tc.withTail {
			t.Fatalf("Window(%d) = (%d, %d, %v), want (%d, %d, %v)",
				tc.size, head, tail, withTail, tc.head, tc.tail, tc.withTail)
		}
	}
}

func TestPartialHeadOnlyAtThreshold(t *testing.T) {
	alg, err := Lookup("md5")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}

	data := patterned(TailThreshold, 1)
	path := writeFile(t, t.TempDir(), "exact.pdf", data)

	got, err := Partial(path, uint64(len(data)), alg)
	if err != nil {
		t.Fatalf("partial: %v", err)
	}
	if want := sumOf(data[:ChunkSize], alg); got != want {
		t.Fatalf("8192-byte file should hash head only: got %s want %s", got, want)
	}
}

func TestPartialHeadAndTailAboveThreshold(t *testing.T) {
	alg, err := Lookup("md5")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}

	data := patterned(TailThreshold+1, 3)
	path := writeFile(t, t.TempDir(), "over.pdf", data)

	got, err := Partial(path, uint64(len(data)), alg)
	if err != nil {
		t.Fatalf("partial: %v", err)
	}

	window := append(bytes.Clone(data[:ChunkSize]), data[len(data)-ChunkSize:]...)
	if want := sumOf(window, alg); got != want {
		t.Fatalf("8193-byte file should hash head and tail: got %s want %s", got, want)
	}
	if headOnly := sumOf(data[:ChunkSize], alg); got == headOnly {
		t.Fatalf("tail chunk was not included")
	}
}

func TestPartialSmallFile(t *testing.T) {
	alg, _ := Lookup("md5")
	data := []byte("%PDF-1.4 tiny")
	path := writeFile(t, t.TempDir(), "tiny.pdf", data)

	got, err := Partial(path, uint64(len(data)), alg)
	if err != nil {
		t.Fatalf("partial: %v", err)
	}
	if want := sumOf(data, alg); got != want {
		t.Fatalf("unexpected digest %s, want %s", got, want)
	}
}

func TestPartialIgnoresMiddle(t *testing.T) {
	alg, _ := Lookup("md5")
	dir := t.TempDir()

	a := patterned(3*ChunkSize, 5)
	b := bytes.Clone(a)
	b[len(b)/2] ^= 0xff

	pa := writeFile(t, dir, "a.pdf", a)
	pb := writeFile(t, dir, "b.pdf", b)

	da, err := Partial(pa, uint64(len(a)), alg)
	if err != nil {
		t.Fatalf("partial a: %v", err)
	}
	db, err := Partial(pb, uint64(len(b)), alg)
	if err != nil {
		t.Fatalf("partial b: %v", err)
	}
	if da != db {
		t.Fatalf("partial digests should match when only the middle differs")
	}

	fa, err := Full(pa, uint64(len(a)), alg)
	if err != nil {
		t.Fatalf("full a: %v", err)
	}
	fb, err := Full(pb, uint64(len(b)), alg)
	if err != nil {
		t.Fatalf("full b: %v", err)
	}
	if fa == fb {
		t.Fatalf("full digests should differ")
	}
}

func TestPartialShrunkFile(t *testing.T) {
	alg, _ := Lookup("md5")
	data := patterned(100, 0)
	path := writeFile(t, t.TempDir(), "shrunk.pdf", data)

	_, err := Partial(path, 5000, alg)
	if !errors.Is(err, ErrSizeChanged) {
		t.Fatalf("expected ErrSizeChanged, got %v", err)
	}
}

func TestPartialGrownFile(t *testing.T) {
	alg, _ := Lookup("md5")
	data := patterned(3*ChunkSize, 0)
	path := writeFile(t, t.TempDir(), "grown.pdf", data)

	// bucketed at 10000 bytes, now 12288: the tail no longer sits at size-ChunkSize
	if _, err := Partial(path, 10000, alg); !errors.Is(err, ErrSizeChanged) {
		t.Fatalf("expected ErrSizeChanged, got %v", err)
	}
	// shrunk below the bucketed size but still longer than the head
	if _, err := Partial(path, 4*ChunkSize, alg); !errors.Is(err, ErrSizeChanged) {
		t.Fatalf("expected ErrSizeChanged, got %v", err)
	}
}

func TestFullSizeMismatch(t *testing.T) {
	alg, _ := Lookup("md5")
	data := patterned(2048, 0)
	path := writeFile(t, t.TempDir(), "grown.pdf", data)

	if _, err := Full(path, 1024, alg); !errors.Is(err, ErrSizeChanged) {
		t.Fatalf("expected ErrSizeChanged, got %v", err)
	}
}

func TestFullKnownMD5(t *testing.T) {
	alg, _ := Lookup("MD5")
	path := writeFile(t, t.TempDir(), "abc.pdf", []byte("abc"))

	got, err := Full(path, 3, alg)
	if err != nil {
		t.Fatalf("full: %v", err)
	}
	if got != "900150983cd24fb0d6963f7d28e17f72" {
		t.Fatalf("unexpected md5: %s", got)
	}
}

func TestFullMissingFile(t *testing.T) {
	alg, _ := Lookup("md5")
	if _, err := Full(filepath.Join(t.TempDir(), "missing.pdf"), 0, alg); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestAlgorithmsAreDeterministic(t *testing.T) {
	data := patterned(5000, 9)
	path := writeFile(t, t.TempDir(), "det.pdf", data)

	for _, name := range Names() {
		alg, err := Lookup(name)
		if err != nil {
			t.Fatalf("lookup %s: %v", name, err)
		}
		first, err := Full(path, uint64(len(data)), alg)
		if err != nil {
			t.Fatalf("%s full: %v", name, err)
		}
		second, err := Full(path, uint64(len(data)), alg)
		if err != nil {
			t.Fatalf("%s full: %v", name, err)
		}
		if first != second {
			t.Fatalf("%s not deterministic", name)
		}
		if len(first) != alg.Size*2 {
			t.Fatalf("%s digest length %d, want %d", name, len(first), alg.Size*2)
		}
		if first != sumOf(data, alg) {
			t.Fatalf("%s streamed digest differs from in-memory digest", name)
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, err := Lookup("crc7"); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Fatalf("expected ErrUnknownAlgorithm, got %v", err)
	}
	alg, err := Lookup("")
	if err != nil || alg.Name != DefaultAlgorithm {
		t.Fatalf("empty name should resolve to default, got %v %v", alg, err)
	}
}
