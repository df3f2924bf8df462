// file: internal/scanner/scanner_test.go
// version: 1.0.0
// guid: 5b7d9f1a-3c5e-4b8d-a0c2-e4f6a8b0c2d4

package scanner

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jdfalk/bookbot/internal/models"
	"github.com/jdfalk/bookbot/internal/testutil"
)

func TestTrackNumberFromFilename(t *testing.T) {
	tests := []struct {
		path string
		tags models.TagSet
		want int
	}{
		{"/b/01 - intro.mp3", models.TagSet{}, 1},
		{"/b/12 opening.mp3", models.TagSet{}, 12},
		{"/b/Track 7.mp3", models.TagSet{}, 7},
		{"/b/chapter 15.mp3", models.TagSet{}, 15},
		{"/b/Ch03.mp3", models.TagSet{}, 3},
		{"/b/Part 2.mp3", models.TagSet{}, 2},
		{"/b/dune 04 - worms.mp3", models.TagSet{}, 4},
		{"/b/untitled.mp3", models.TagSet{}, 0},
		// Tag value beats any filename pattern.
		{"/b/99 - whatever.mp3", models.TagSet{Track: 5}, 5},
	}
	for _, tt := range tests {
		if got := trackNumber(tt.path, tt.tags); got != tt.want {
			t.Errorf("trackNumber(%q) = %d, want %d", tt.path, got, tt.want)
		}
	}
}

func TestDiscNumberFromPath(t *testing.T) {
	tests := []struct {
		path string
		tags models.TagSet
		want int
	}{
		{"/b/dune/cd1/01.mp3", models.TagSet{}, 1},
		{"/b/dune/CD 2/01.mp3", models.TagSet{}, 2},
		{"/b/dune/Disc 3/01.mp3", models.TagSet{}, 3},
		{"/b/dune/disc-4/01.mp3", models.TagSet{}, 4},
		{"/b/dune/Book 2/01.mp3", models.TagSet{}, 2},
		{"/b/dune/Vol. 5/01.mp3", models.TagSet{}, 5},
		{"/b/dune/cd2.mp3", models.TagSet{}, 2},
		{"/b/dune/01.mp3", models.TagSet{}, 1},
		{"/b/dune/cd1/01.mp3", models.TagSet{Disc: 7}, 7},
	}
	for _, tt := range tests {
		if got := discNumber(tt.path, tt.tags); got != tt.want {
			t.Errorf("discNumber(%q) = %d, want %d", tt.path, got, tt.want)
		}
	}
}

func TestScanFiltersAndSorts(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, filepath.Join(root, "b", "02.mp3"), "two")
	testutil.WriteFile(t, filepath.Join(root, "a", "01.mp3"), "one")
	testutil.WriteFile(t, filepath.Join(root, "a", "cover.jpg"), "img")
	testutil.WriteFile(t, filepath.Join(root, "a", "notes.txt"), "txt")
	testutil.WriteFile(t, filepath.Join(root, ".hidden", "03.mp3"), "skip")

	tracks, err := Scan(root, Options{SkipChecksum: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 2 {
		t.Fatalf("got %d tracks, want 2: %+v", len(tracks), tracks)
	}
	if tracks[0].Path != filepath.Join(root, "a", "01.mp3") {
		t.Errorf("tracks not sorted by path: %q first", tracks[0].Path)
	}
	if tracks[1].Path != filepath.Join(root, "b", "02.mp3") {
		t.Errorf("unexpected second track %q", tracks[1].Path)
	}
}

func TestScanDegradesOnBadTags(t *testing.T) {
	root := t.TempDir()
	// Plain text with an .mp3 extension: tag parsing fails, the track stays.
	testutil.WriteFile(t, filepath.Join(root, "05 - broken.mp3"), "not audio")

	tracks, err := Scan(root, Options{SkipChecksum: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 {
		t.Fatalf("got %d tracks, want 1", len(tracks))
	}
	tr := tracks[0]
	if len(tr.Warnings) == 0 {
		t.Error("expected a tag-read warning")
	}
	if tr.Index != 5 {
		t.Errorf("Index = %d, want 5 from filename", tr.Index)
	}
	if tr.Format != "mp3" {
		t.Errorf("Format = %q, want mp3", tr.Format)
	}
	if tr.Size != int64(len("not audio")) {
		t.Errorf("Size = %d", tr.Size)
	}
}

func TestScanMaxDepth(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, filepath.Join(root, "01.mp3"), "a")
	testutil.WriteFile(t, filepath.Join(root, "deep", "nested", "02.mp3"), "b")

	tracks, err := Scan(root, Options{SkipChecksum: true, MaxDepth: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 {
		t.Fatalf("MaxDepth 1 should only see the root file, got %d tracks", len(tracks))
	}
}

func TestScanChecksumAndProgress(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, filepath.Join(root, "01.mp3"), "audio bytes")

	var mu sync.Mutex
	var seen []string
	tracks, err := Scan(root, Options{
		Workers:  4,
		Progress: func(path string) { mu.Lock(); seen = append(seen, path); mu.Unlock() },
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != 1 {
		t.Errorf("progress called %d times, want 1", len(seen))
	}

	sum := sha256.Sum256([]byte("audio bytes"))
	if tracks[0].Checksum != hex.EncodeToString(sum[:]) {
		t.Errorf("Checksum = %q, want full-content sha256", tracks[0].Checksum)
	}
}

func TestScanNonDirectoryRoot(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "x.mp3")
	testutil.WriteFile(t, file, "a")
	if _, err := Scan(file, Options{}); err == nil {
		t.Error("expected error for file root")
	}
	if _, err := Scan(filepath.Join(root, "missing"), Options{}); err == nil {
		t.Error("expected error for missing root")
	}
}

func TestChecksumFileDeterministic(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "a.mp3")
	testutil.WriteFile(t, p, "stable content")
	first, err := ChecksumFile(p)
	if err != nil {
		t.Fatal(err)
	}
	second, err := ChecksumFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("checksum not stable: %q vs %q", first, second)
	}
}
