// file: internal/models/models_test.go
// version: 1.0.0
// guid: 5b7d9f1a-3c5e-4a7b-9d1f-3b5d7f9a1c3e

package models

import (
	"strings"
	"testing"
)

func TestTagSetIsEmpty(t *testing.T) {
	tests := []struct {
		name string
		tags TagSet
		want bool
	}{
		{"zero value", TagSet{}, true},
		{"only narrator", TagSet{Narrator: "Ray Porter"}, true},
		{"title set", TagSet{Title: "Chapter 1"}, false},
		{"track number set", TagSet{Track: 3}, false},
		{"album artist set", TagSet{AlbumArtist: "Frank Herbert"}, false},
	}
	for _, tt := range tests {
		if got := tt.tags.IsEmpty(); got != tt.want {
			t.Errorf("%s: IsEmpty() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSortTracksStable(t *testing.T) {
	g := WorkGroup{Tracks: []Track{
		{Path: "b.mp3", Disc: 2, Index: 1},
		{Path: "a.mp3", Disc: 1, Index: 2},
		{Path: "c.mp3", Disc: 1, Index: 1},
		{Path: "d.mp3", Disc: 1, Index: 1},
	}}
	g.SortTracks()

	want := []string{"c.mp3", "d.mp3", "a.mp3", "b.mp3"}
	for i, p := range want {
		if g.Tracks[i].Path != p {
			t.Fatalf("position %d: got %s, want %s", i, g.Tracks[i].Path, p)
		}
	}

	// Sorting again is a no-op.
	before := make([]string, len(g.Tracks))
	for i, tr := range g.Tracks {
		before[i] = tr.Path
	}
	g.SortTracks()
	for i, tr := range g.Tracks {
		if tr.Path != before[i] {
			t.Fatalf("second sort changed order at %d", i)
		}
	}
}

func TestValidateOrder(t *testing.T) {
	tests := []struct {
		name    string
		indexes []int
		wantSub string
	}{
		{"contiguous", []int{1, 2, 3}, ""},
		{"gap", []int{1, 2, 4}, "gaps"},
		{"duplicate", []int{1, 2, 2}, "duplicate"},
	}
	for _, tt := range tests {
		g := WorkGroup{}
		for _, n := range tt.indexes {
			g.Tracks = append(g.Tracks, Track{Disc: 1, Index: n})
		}
		issues := g.ValidateOrder()
		if tt.wantSub == "" {
			if len(issues) != 0 {
				t.Errorf("%s: unexpected issues %v", tt.name, issues)
			}
			continue
		}
		if len(issues) == 0 || !strings.Contains(issues[0], tt.wantSub) {
			t.Errorf("%s: want issue containing %q, got %v", tt.name, tt.wantSub, issues)
		}
	}
}

func TestValidateOrderPerDisc(t *testing.T) {
	// Each disc restarts numbering at 1; that is not a gap.
	g := WorkGroup{Tracks: []Track{
		{Disc: 1, Index: 1}, {Disc: 1, Index: 2},
		{Disc: 2, Index: 1}, {Disc: 2, Index: 2},
	}}
	if issues := g.ValidateOrder(); len(issues) != 0 {
		t.Errorf("unexpected issues %v", issues)
	}
}

func TestReconciledRecordString(t *testing.T) {
	r := ReconciledRecord{
		Title:       "Dune",
		Authors:     []string{"Frank Herbert"},
		SeriesName:  "Dune Chronicles",
		SeriesIndex: "1",
		Confidence:  0.93,
	}
	s := r.String()
	for _, want := range []string{"Dune", "Frank Herbert", "Dune Chronicles", "#1", "0.93"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
}
