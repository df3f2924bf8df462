// file: internal/grouper/grouper_test.go
// version: 1.0.0
// guid: 7f1b3d5a-9c2e-4b6d-8f0a-2c4e6a8b0d2f

package grouper

import (
	"reflect"
	"strings"
	"testing"

	"github.com/jdfalk/bookbot/internal/models"
)

func track(path, album string, disc, index int) models.Track {
	return models.Track{
		Path:  path,
		Disc:  disc,
		Index: index,
		Tags:  models.TagSet{Album: album, Track: index, Disc: disc},
	}
}

func TestGroupEveryTrackAssignedOnce(t *testing.T) {
	tracks := []models.Track{
		track("/lib/dune/01.mp3", "Dune", 1, 1),
		track("/lib/dune/02.mp3", "Dune", 1, 2),
		track("/lib/hobbit/01.mp3", "The Hobbit", 1, 1),
	}
	groups := Group(tracks)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	seen := make(map[string]int)
	for _, g := range groups {
		for _, tr := range g.Tracks {
			seen[tr.Path]++
		}
	}
	for _, tr := range tracks {
		if seen[tr.Path] != 1 {
			t.Errorf("track %s appears %d times", tr.Path, seen[tr.Path])
		}
	}
}

func TestGroupDeterministic(t *testing.T) {
	tracks := []models.Track{
		track("/lib/b/02.mp3", "Book B", 1, 2),
		track("/lib/a/01.mp3", "Book A", 1, 1),
		track("/lib/b/01.mp3", "Book B", 1, 1),
	}
	first := Group(tracks)
	second := Group(tracks)
	if !reflect.DeepEqual(first, second) {
		t.Error("repeated grouping produced different output")
	}
	if first[0].Dir != "/lib/a" || first[1].Dir != "/lib/b" {
		t.Errorf("groups not in directory order: %s, %s", first[0].Dir, first[1].Dir)
	}
}

func TestSplitDirByDisagreeingAlbums(t *testing.T) {
	tracks := []models.Track{
		track("/lib/mixed/dune-01.mp3", "Dune", 1, 1),
		track("/lib/mixed/dune-02.mp3", "Dune", 1, 2),
		track("/lib/mixed/hobbit-01.mp3", "The Hobbit", 1, 1),
		// Untagged file whose name matches the dune tracks.
		{Path: "/lib/mixed/dune-03.mp3", Disc: 1, Index: 3},
	}
	groups := Group(tracks)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}

	var dune, hobbit *models.WorkGroup
	for i := range groups {
		switch groups[i].TitleGuess {
		case "Dune":
			dune = &groups[i]
		case "The Hobbit":
			hobbit = &groups[i]
		}
	}
	if dune == nil || hobbit == nil {
		t.Fatalf("missing expected groups: %+v", groups)
	}
	if len(dune.Tracks) != 3 {
		t.Errorf("untagged file should attach to Dune by filename prefix; got %d tracks", len(dune.Tracks))
	}
	if len(hobbit.Tracks) != 1 {
		t.Errorf("expected 1 hobbit track, got %d", len(hobbit.Tracks))
	}
	if len(dune.Warnings) == 0 || !strings.Contains(dune.Warnings[0], "split by album tag") {
		t.Errorf("expected split warning, got %v", dune.Warnings)
	}
}

func TestUnnumberedTracksGetSequentialIndexes(t *testing.T) {
	tracks := []models.Track{
		track("/lib/book/01.mp3", "Book", 1, 1),
		track("/lib/book/02.mp3", "Book", 1, 2),
		{Path: "/lib/book/extra.mp3", Disc: 1, Tags: models.TagSet{Album: "Book"}},
	}
	groups := Group(tracks)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	g := groups[0]
	last := g.Tracks[len(g.Tracks)-1]
	if last.Path != "/lib/book/extra.mp3" || last.Index != 3 {
		t.Errorf("unnumbered track should get index 3 at the end, got %s index %d", last.Path, last.Index)
	}
	found := false
	for _, w := range g.Warnings {
		if strings.Contains(w, "no track number") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected numbering warning, got %v", g.Warnings)
	}
}

func TestGuessIdentityFromFolderName(t *testing.T) {
	tests := []struct {
		dir        string
		wantTitle  string
		wantAuthor string
		wantSeries string
		wantVolume string
	}{
		{"/lib/Frank Herbert - Dune", "Frank Herbert - Dune", "Frank Herbert", "", ""},
		{"/lib/Discworld Book 3", "Discworld Book 3", "", "Discworld", "3"},
		{"/lib/Dune (Unabridged) [64k]", "Dune", "", "", ""},
	}
	for _, tt := range tests {
		groups := Group([]models.Track{{Path: tt.dir + "/01.mp3", Disc: 1, Index: 1}})
		g := groups[0]
		if g.TitleGuess != tt.wantTitle {
			t.Errorf("%s: title = %q, want %q", tt.dir, g.TitleGuess, tt.wantTitle)
		}
		if g.AuthorGuess != tt.wantAuthor {
			t.Errorf("%s: author = %q, want %q", tt.dir, g.AuthorGuess, tt.wantAuthor)
		}
		if g.SeriesGuess != tt.wantSeries {
			t.Errorf("%s: series = %q, want %q", tt.dir, g.SeriesGuess, tt.wantSeries)
		}
		if g.VolumeGuess != tt.wantVolume {
			t.Errorf("%s: volume = %q, want %q", tt.dir, g.VolumeGuess, tt.wantVolume)
		}
	}
}

func TestConsistentTagsBeatFolderName(t *testing.T) {
	tracks := []models.Track{
		{Path: "/lib/ripped-cd-1/01.mp3", Disc: 1, Index: 1,
			Tags: models.TagSet{Album: "Project Hail Mary", AlbumArtist: "Andy Weir"}},
		{Path: "/lib/ripped-cd-1/02.mp3", Disc: 1, Index: 2,
			Tags: models.TagSet{Album: "Project Hail Mary", AlbumArtist: "Andy Weir"}},
	}
	g := Group(tracks)[0]
	if g.TitleGuess != "Project Hail Mary" {
		t.Errorf("title = %q, want tag-derived title", g.TitleGuess)
	}
	if g.AuthorGuess != "Andy Weir" {
		t.Errorf("author = %q, want tag-derived author", g.AuthorGuess)
	}
}

func TestDiscCount(t *testing.T) {
	tracks := []models.Track{
		track("/lib/book/cd1-01.mp3", "Book", 1, 1),
		track("/lib/book/cd2-01.mp3", "Book", 2, 1),
		track("/lib/book/cd3-01.mp3", "Book", 3, 1),
	}
	g := Group(tracks)[0]
	if g.DiscCount != 3 {
		t.Errorf("DiscCount = %d, want 3", g.DiscCount)
	}
}

func TestTaglessGroupWarns(t *testing.T) {
	g := Group([]models.Track{{Path: "/lib/unknown/part1.mp3", Disc: 1, Index: 1}})[0]
	found := false
	for _, w := range g.Warnings {
		if strings.Contains(w, "no usable tags") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected tagless warning, got %v", g.Warnings)
	}
}
